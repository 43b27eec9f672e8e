package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jencoder/ddd/domain/entity"
	"jencoder/ddd/domain/service"
	"jencoder/ddd/infrastructure/queue"
	"jencoder/pkg/logger"
)

// EncodeWorker 编码工作器接口
type EncodeWorker interface {
	// Start 启动工作器
	Start(ctx context.Context) error

	// Stop 停止工作器
	Stop() error

	// IsRunning 检查工作器是否运行中
	IsRunning() bool

	// GetStats 获取工作器统计信息
	GetStats() WorkerStats
}

// WorkerStats 工作器统计信息
type WorkerStats struct {
	ProcessedJobs    uint64
	SuccessfulJobs   uint64
	CurrentlyRunning int
	StartTime        time.Time
	LastJobTime      time.Time
}

// encodeWorkerImpl 编码工作器实现
type encodeWorkerImpl struct {
	id            string
	jobQueue      *queue.JobQueue
	processor     *service.JobProcessor
	workerCount   int
	sleepInterval time.Duration
	running       bool
	cancel        context.CancelFunc
	stats         WorkerStats
	mu            sync.RWMutex
	wg            sync.WaitGroup
}

// NewEncodeWorker 创建编码工作器
func NewEncodeWorker(
	id string,
	jobQueue *queue.JobQueue,
	processor *service.JobProcessor,
	workerCount int,
	sleepInterval time.Duration,
) EncodeWorker {
	if workerCount <= 0 {
		workerCount = 1
	}
	if sleepInterval <= 0 {
		sleepInterval = 10 * time.Second
	}

	return &encodeWorkerImpl{
		id:            id,
		jobQueue:      jobQueue,
		processor:     processor,
		workerCount:   workerCount,
		sleepInterval: sleepInterval,
		stats: WorkerStats{
			StartTime: time.Now(),
		},
	}
}

// Start 启动工作器
func (w *encodeWorkerImpl) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker %s is already running", w.id)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.stats.StartTime = time.Now()

	logger.Infof("Starting encode worker %s with %d goroutines", w.id, w.workerCount)

	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.workerLoop(workerCtx, i)
	}

	return nil
}

// Stop 停止工作器
func (w *encodeWorkerImpl) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	logger.Infof("Stopping encode worker %s", w.id)

	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	w.running = false
	logger.Infof("Encode worker %s stopped", w.id)

	return nil
}

// IsRunning 检查工作器是否运行中
func (w *encodeWorkerImpl) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStats 获取工作器统计信息
func (w *encodeWorkerImpl) GetStats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// workerLoop 工作器主循环：尽量把队列排空，空了再睡一轮
func (w *encodeWorkerImpl) workerLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger.Infof("Worker %s-%d started", w.id, workerID)
	defer logger.Infof("Worker %s-%d stopped", w.id, workerID)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job := w.jobQueue.TryDequeue()
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.sleepInterval):
			}
			continue
		}

		w.processJob(ctx, job, workerID)
	}
}

// processJob 处理单个任务，panic在这里兜住不拖垮整个工作器
func (w *encodeWorkerImpl) processJob(ctx context.Context, job *entity.Job, workerID int) {
	logger.Infof("Worker %s-%d processing job %s", w.id, workerID, job.TicketID)

	w.updateStats(func(stats *WorkerStats) {
		stats.CurrentlyRunning++
		stats.LastJobTime = time.Now()
	})

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Worker %s-%d panic while processing job %s: %v", w.id, workerID, job.TicketID, r)
		}
		w.updateStats(func(stats *WorkerStats) {
			stats.CurrentlyRunning--
			stats.ProcessedJobs++
		})
	}()

	w.processor.Process(ctx, job)

	w.updateStats(func(stats *WorkerStats) {
		stats.SuccessfulJobs++
	})
}

// updateStats 更新统计信息
func (w *encodeWorkerImpl) updateStats(updateFunc func(*WorkerStats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	updateFunc(&w.stats)
}

// WorkerManager 工作器管理器
type WorkerManager struct {
	workers map[string]EncodeWorker
	order   []string
	mu      sync.RWMutex
}

// NewWorkerManager 创建工作器管理器
func NewWorkerManager() *WorkerManager {
	return &WorkerManager{
		workers: make(map[string]EncodeWorker),
	}
}

// AddWorker 添加工作器
func (wm *WorkerManager) AddWorker(name string, worker EncodeWorker) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.workers[name] = worker
	wm.order = append(wm.order, name)
}

// StartAll 启动所有工作器
func (wm *WorkerManager) StartAll(ctx context.Context) error {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	for _, name := range wm.order {
		if err := wm.workers[name].Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker %s: %w", name, err)
		}
	}

	return nil
}

// StopAll 停止所有工作器
func (wm *WorkerManager) StopAll() error {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	var errs []error
	for _, name := range wm.order {
		if err := wm.workers[name].Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to stop some workers: %v", errs)
	}

	return nil
}

// GetAllStats 获取所有工作器的统计信息
func (wm *WorkerManager) GetAllStats() map[string]WorkerStats {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	stats := make(map[string]WorkerStats)
	for name, worker := range wm.workers {
		stats[name] = worker.GetStats()
	}

	return stats
}
