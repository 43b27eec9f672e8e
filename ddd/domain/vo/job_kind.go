package vo

// JobKind 编码任务类型
type JobKind string

const (
	// JobKindRecording 新录制文件，需要完整编码入档案库
	JobKindRecording JobKind = "recording"
	// JobKindArchive 档案视频重新剪辑
	JobKindArchive JobKind = "archive"
	// JobKindIn 片头视频，在档案视频播放前播放
	JobKindIn JobKind = "in"
	// JobKindOut 片尾视频，在档案视频播放后播放
	JobKindOut JobKind = "out"
	// JobKindDownload 档案视频转回mp4供下载
	JobKindDownload JobKind = "download"
)

// IsValid 检查任务类型是否有效
func (k JobKind) IsValid() bool {
	switch k {
	case JobKindRecording, JobKindArchive, JobKindIn, JobKindOut, JobKindDownload:
		return true
	default:
		return false
	}
}

// String 返回任务类型字符串
func (k JobKind) String() string {
	return string(k)
}

// IsArchiveOnly 归档剪辑和下载任务由专用Worker处理
func (k JobKind) IsArchiveOnly() bool {
	return k == JobKindArchive || k == JobKindDownload
}

// InOutMode 片头/片尾任务的子命令
type InOutMode string

const (
	// InOutModeEncode 编码片头/片尾视频
	InOutModeEncode InOutMode = "encode"
	// InOutModeRefresh 只刷新所有合成清单，不编码
	InOutModeRefresh InOutMode = "refresh"
)

// ParseInOutMode 解析后台传来的子命令字符串
func ParseInOutMode(s string) InOutMode {
	switch s {
	case "Encode":
		return InOutModeEncode
	case "Refresh":
		return InOutModeRefresh
	default:
		return ""
	}
}
