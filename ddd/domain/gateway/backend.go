package gateway

import (
	"context"

	"jencoder/ddd/domain/entity"
	"jencoder/ddd/domain/vo"
)

// JobSource 从后台Web服务器拉取待处理任务。
// 返回的顺序就是后台给出的顺序，调度要按这个顺序分配票号。
type JobSource interface {
	// Poll 拉取一批任务。ticketFn为每个任务分配跟踪号。
	Poll(ctx context.Context, ticketFn func() string) ([]*entity.Job, error)
}

// JobSink 任务结果回调。每个任务恰好回调一次，失败只记日志不重试。
type JobSink interface {
	// NotifyArchiveDone 录制/归档任务完成
	NotifyArchiveDone(ctx context.Context, job *entity.Job, audioDuration, videoDuration int, audioFileSize int64) error

	// NotifyInOutDone 片头/片尾任务完成
	NotifyInOutDone(ctx context.Context, job *entity.Job) error

	// NotifyDownloadDone 下载任务完成
	NotifyDownloadDone(ctx context.Context, job *entity.Job, videoFileSize int64) error

	// NotifyMissingSource 源文件不存在，任务无法处理
	NotifyMissingSource(ctx context.Context, job *entity.Job) error
}

// InOutResolver 查询频道当前的片头/片尾启用状态
type InOutResolver interface {
	ResolveInOut(ctx context.Context, clientID, channelNo int, ticketID string) (vo.InOutFlags, error)
}
