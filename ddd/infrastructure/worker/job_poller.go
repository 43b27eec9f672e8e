package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"jencoder/ddd/domain/gateway"
	"jencoder/ddd/infrastructure/queue"
	"jencoder/pkg/logger"
)

// JobPoller 定时向后端拉取待处理任务并按类型分发到队列。
// 归档和下载任务进独占队列串行处理，其余进通用队列。
type JobPoller struct {
	source       gateway.JobSource
	generalQueue *queue.JobQueue
	archiveQueue *queue.JobQueue
	pollInterval time.Duration
	ticketSeq    uint64
	running      bool
	cancel       context.CancelFunc
	mu           sync.Mutex
	wg           sync.WaitGroup
}

// NewJobPoller 创建任务轮询器
func NewJobPoller(source gateway.JobSource, generalQueue, archiveQueue *queue.JobQueue, pollInterval time.Duration) *JobPoller {
	if pollInterval <= 0 {
		pollInterval = 60 * time.Second
	}
	return &JobPoller{
		source:       source,
		generalQueue: generalQueue,
		archiveQueue: archiveQueue,
		pollInterval: pollInterval,
	}
}

// Start 启动轮询
func (p *JobPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("job poller is already running")
	}

	pollerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	logger.Infof("Starting job poller with interval %s", p.pollInterval)

	p.wg.Add(1)
	go p.pollLoop(pollerCtx)

	return nil
}

// Stop 停止轮询
func (p *JobPoller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	logger.Infof("Stopping job poller")

	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.running = false
	return nil
}

// pollLoop 轮询主循环，启动时先拉一次
func (p *JobPoller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	p.pollOnce(ctx)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce 拉取一批任务并分发
func (p *JobPoller) pollOnce(ctx context.Context) {
	jobs, err := p.source.Poll(ctx, p.nextTicket)
	if err != nil {
		logger.Errorf("Job poller failed to fetch jobs: %v", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	for _, job := range jobs {
		target := p.generalQueue
		if job.Kind.IsArchiveOnly() {
			target = p.archiveQueue
		}
		if err := target.Enqueue(job); err != nil {
			logger.Errorf("Job poller failed to enqueue job %s: %v", job.TicketID, err)
			continue
		}
		logger.ChannelInfof(job.ClientID, job.ChannelNo, "Job [%s] Queued %s", job.TicketID, job)
	}

	logger.Infof("Job poller queued %d jobs (general:%d archive:%d)",
		len(jobs), p.generalQueue.Size(), p.archiveQueue.Size())
}

// nextTicket 生成单调递增的任务票号
func (p *JobPoller) nextTicket() string {
	return fmt.Sprintf("J%06d", atomic.AddUint64(&p.ticketSeq, 1))
}
