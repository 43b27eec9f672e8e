package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"jencoder/ddd/domain/vo"
	"jencoder/pkg/config"
)

// 文件名只允许字母、数字、点和下划线，其余字符来自外部输入一律剔除
var filenamePattern = regexp.MustCompile(`[^A-Za-z0-9._]`)

// SanitizeFilename 过滤掉文件名里的非法字符
func SanitizeFilename(name string) string {
	return filenamePattern.ReplaceAllString(name, "")
}

// Job 一个编码任务。从后台拉取后构造，处理期间不再修改。
type Job struct {
	// TicketID 本进程内分配的任务跟踪号，例如 J000001
	TicketID string

	ClientID  int
	ChannelNo int
	Kind      vo.JobKind
	// InOutMode 仅片头/片尾任务使用
	InOutMode vo.InOutMode

	// VideoInfoID 录制/归档任务的视频记录ID
	VideoInfoID int
	// InOutVideoInfoID 片头/片尾视频记录ID
	InOutVideoInfoID int
	// DownloadHistoryID 下载任务记录ID
	DownloadHistoryID int

	MP3Title  string
	MP3Artist string
	MP3Album  string

	// 剪辑区间，秒。ClipEndSeconds为0表示到视频结尾。
	ClipStartSeconds int
	ClipEndSeconds   int

	InputFilename  string
	OutputFilename string

	// ForceReencode 上传的视频需要强制重编码
	ForceReencode bool
}

// NewRecordingJob 录制文件任务
func NewRecordingJob(clientID, channelNo, videoInfoID int, title, artist, album string, clipStart, clipEnd int, inputFilename, outputFilename string, forceReencode bool, ticketID string) *Job {
	return &Job{
		TicketID:         ticketID,
		ClientID:         clientID,
		ChannelNo:        channelNo,
		Kind:             vo.JobKindRecording,
		VideoInfoID:      videoInfoID,
		MP3Title:         title,
		MP3Artist:        artist,
		MP3Album:         album,
		ClipStartSeconds: clipStart,
		ClipEndSeconds:   clipEnd,
		InputFilename:    SanitizeFilename(inputFilename),
		OutputFilename:   SanitizeFilename(outputFilename),
		ForceReencode:    forceReencode,
	}
}

// NewArchiveJob 归档视频重剪任务
func NewArchiveJob(clientID, channelNo, videoInfoID int, title, artist, album string, clipStart, clipEnd int, inputFilename, outputFilename string, forceReencode bool, ticketID string) *Job {
	j := NewRecordingJob(clientID, channelNo, videoInfoID, title, artist, album, clipStart, clipEnd, inputFilename, outputFilename, forceReencode, ticketID)
	j.Kind = vo.JobKindArchive
	return j
}

// NewInJob 片头视频任务
func NewInJob(clientID, channelNo, inOutVideoInfoID int, inputFilename, mode, ticketID string) *Job {
	return &Job{
		TicketID:         ticketID,
		ClientID:         clientID,
		ChannelNo:        channelNo,
		Kind:             vo.JobKindIn,
		InOutMode:        vo.ParseInOutMode(mode),
		InOutVideoInfoID: inOutVideoInfoID,
		InputFilename:    SanitizeFilename(inputFilename),
	}
}

// NewOutJob 片尾视频任务
func NewOutJob(clientID, channelNo, inOutVideoInfoID int, inputFilename, mode, ticketID string) *Job {
	j := NewInJob(clientID, channelNo, inOutVideoInfoID, inputFilename, mode, ticketID)
	j.Kind = vo.JobKindOut
	return j
}

// NewDownloadJob 下载任务，输出文件名与输入一致
func NewDownloadJob(clientID, channelNo, downloadHistoryID int, inputFilename, ticketID string) *Job {
	name := SanitizeFilename(inputFilename)
	return &Job{
		TicketID:          ticketID,
		ClientID:          clientID,
		ChannelNo:         channelNo,
		Kind:              vo.JobKindDownload,
		DownloadHistoryID: downloadHistoryID,
		InputFilename:     name,
		OutputFilename:    name,
	}
}

// DurationSeconds 剪辑区间长度。0表示不剪辑到结尾。
func (j *Job) DurationSeconds() int {
	return j.ClipEndSeconds - j.ClipStartSeconds
}

// InputPath 输入文件的绝对路径
func (j *Job) InputPath(paths *config.PathsConfig) string {
	switch j.Kind {
	case vo.JobKindRecording, vo.JobKindIn, vo.JobKindOut:
		return paths.Recording + "/" + strconv.Itoa(j.ClientID) + "/" + j.InputFilename
	case vo.JobKindArchive, vo.JobKindDownload:
		return paths.Archive + "/" + strconv.Itoa(j.ClientID) + "/" + j.InputFilename
	}
	return ""
}

// BackupInputPath 备份录制目录里的输入文件路径
func (j *Job) BackupInputPath(paths *config.PathsConfig) string {
	return paths.RecordingBackup + "/" + j.InputFilename
}

// InputPathNoExt 去掉扩展名的输入路径，归档任务用它定位码率子目录
func (j *Job) InputPathNoExt(paths *config.PathsConfig) string {
	noExt := strings.SplitN(j.InputFilename, ".", 2)[0]
	switch j.Kind {
	case vo.JobKindRecording, vo.JobKindIn, vo.JobKindOut:
		return paths.Recording + "/" + strconv.Itoa(j.ClientID) + "/" + noExt
	case vo.JobKindArchive, vo.JobKindDownload:
		return paths.Archive + "/" + strconv.Itoa(j.ClientID) + "/" + noExt
	}
	return ""
}

// OutputPathNoExt 输出位置。录制和归档输出到归档目录，片头/片尾输出到频道的inout目录，
// 下载输出到下载根目录。
func (j *Job) OutputPathNoExt(paths *config.PathsConfig) string {
	noExt := strings.SplitN(j.OutputFilename, ".", 2)[0]
	switch j.Kind {
	case vo.JobKindRecording, vo.JobKindArchive:
		return paths.Archive + "/" + strconv.Itoa(j.ClientID) + "/" + noExt
	case vo.JobKindIn, vo.JobKindOut:
		return paths.Archive + "/" + strconv.Itoa(j.ClientID) + "/inout/" + strconv.Itoa(j.ChannelNo) + "/" + strconv.Itoa(j.InOutVideoInfoID)
	case vo.JobKindDownload:
		return paths.Download
	}
	return ""
}

// ExportPath 录制原始文件的导出副本路径
func (j *Job) ExportPath(paths *config.PathsConfig) string {
	return paths.Export + "/" + j.InputFilename
}

func (j *Job) String() string {
	switch j.Kind {
	case vo.JobKindRecording, vo.JobKindArchive:
		return fmt.Sprintf("{Job %s kind:%s cid:%d cno:%d viid:%d clip:%d-%d input:%s output:%s force:%t}",
			j.TicketID, j.Kind, j.ClientID, j.ChannelNo, j.VideoInfoID, j.ClipStartSeconds, j.ClipEndSeconds, j.InputFilename, j.OutputFilename, j.ForceReencode)
	case vo.JobKindIn, vo.JobKindOut:
		return fmt.Sprintf("{Job %s kind:%s mode:%s cid:%d cno:%d ioviid:%d input:%s}",
			j.TicketID, j.Kind, j.InOutMode, j.ClientID, j.ChannelNo, j.InOutVideoInfoID, j.InputFilename)
	case vo.JobKindDownload:
		return fmt.Sprintf("{Job %s kind:%s cid:%d cno:%d dhid:%d input:%s}",
			j.TicketID, j.Kind, j.ClientID, j.ChannelNo, j.DownloadHistoryID, j.InputFilename)
	}
	return "{Job unknown}"
}
