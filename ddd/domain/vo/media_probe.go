package vo

// MediaProbe 媒体文件探测结果
type MediaProbe struct {
	// DurationSeconds 时长，秒
	DurationSeconds int
	// BitrateBps 总码率，单位bps（500k码率返回500000）
	BitrateBps int
	// Streams 第一路视频流和第一路音频流的映射标识，例如 ["0:0", "0:1"]
	Streams []string
}

// InOutFlags 频道片头/片尾的启用状态
type InOutFlags struct {
	InActive   bool
	OutActive  bool
	InVideoID  int
	OutVideoID int
}
