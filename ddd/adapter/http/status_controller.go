package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"jencoder/ddd/infrastructure/worker"
	"jencoder/pkg/restapi"
)

// StatusController 运行状态控制器
type StatusController struct {
	component *worker.EncodingComponent
}

// NewStatusController 创建状态控制器
func NewStatusController(component *worker.EncodingComponent) *StatusController {
	return &StatusController{
		component: component,
	}
}

// QueueStatusResponse 队列状态响应
type QueueStatusResponse struct {
	GeneralQueueSize int  `json:"general_queue_size"`
	ArchiveQueueSize int  `json:"archive_queue_size"`
	GeneralClosed    bool `json:"general_closed"`
	ArchiveClosed    bool `json:"archive_closed"`
}

// WorkerStatusResponse 工作器状态响应
type WorkerStatusResponse struct {
	ProcessedJobs    uint64    `json:"processed_jobs"`
	SuccessfulJobs   uint64    `json:"successful_jobs"`
	CurrentlyRunning int       `json:"currently_running"`
	StartTime        time.Time `json:"start_time"`
	LastJobTime      time.Time `json:"last_job_time"`
}

// GetQueueStatus 获取队列状态
func (c *StatusController) GetQueueStatus(ctx *gin.Context) {
	restapi.Success(ctx, QueueStatusResponse{
		GeneralQueueSize: c.component.GeneralQueue.Size(),
		ArchiveQueueSize: c.component.ArchiveQueue.Size(),
		GeneralClosed:    c.component.GeneralQueue.IsClosed(),
		ArchiveClosed:    c.component.ArchiveQueue.IsClosed(),
	})
}

// GetWorkerStatus 获取所有工作器的统计信息
func (c *StatusController) GetWorkerStatus(ctx *gin.Context) {
	stats := c.component.Manager.GetAllStats()

	resp := make(map[string]WorkerStatusResponse, len(stats))
	for name, s := range stats {
		resp[name] = WorkerStatusResponse{
			ProcessedJobs:    s.ProcessedJobs,
			SuccessfulJobs:   s.SuccessfulJobs,
			CurrentlyRunning: s.CurrentlyRunning,
			StartTime:        s.StartTime,
			LastJobTime:      s.LastJobTime,
		}
	}

	restapi.Success(ctx, resp)
}
