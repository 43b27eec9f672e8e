package worker

import (
	"context"

	"jencoder/ddd/domain/service"
	"jencoder/ddd/infrastructure/executor"
	"jencoder/ddd/infrastructure/queue"
	"jencoder/ddd/infrastructure/webclient"
	"jencoder/pkg/config"
	"jencoder/pkg/logger"
	"jencoder/pkg/task"
)

// EncodingComponent 编码子系统的装配器：
// 后台客户端、频道注册表、转码器、两条队列和对应的工作器加一个轮询器。
type EncodingComponent struct {
	GeneralQueue *queue.JobQueue
	ArchiveQueue *queue.JobQueue
	Manager      *WorkerManager
	Poller       *JobPoller
	Registry     *service.ChannelRegistry
	Processor    *service.JobProcessor
	Backend      *webclient.BackendClient
}

// MustCreateEncodingComponent 装配编码子系统并注册后台任务
func MustCreateEncodingComponent(cfg *config.Config) *EncodingComponent {
	backend := webclient.NewBackendClient(&cfg.Backend)
	registry := service.NewChannelRegistry(&cfg.Paths, backend)
	transcoder := executor.NewFFmpegTranscoder(cfg)
	relabeler := executor.NewRestoreconRelabeler(cfg)
	processor := service.NewJobProcessor(cfg, transcoder, backend, registry, relabeler)

	generalQueue := queue.NewJobQueue()
	archiveQueue := queue.NewJobQueue()

	manager := NewWorkerManager()
	// 通用工作器并发处理录制和片头/片尾任务
	manager.AddWorker("encode-worker",
		NewEncodeWorker("encode-worker", generalQueue, processor, cfg.Worker.EncoderWorkers, cfg.Worker.SleepInterval))
	// 归档和下载任务共享磁盘上的同一批目录，单工作器串行处理
	manager.AddWorker("archive-worker",
		NewEncodeWorker("archive-worker", archiveQueue, processor, 1, cfg.Worker.SleepInterval))

	poller := NewJobPoller(backend, generalQueue, archiveQueue, cfg.Worker.PollInterval)

	c := &EncodingComponent{
		GeneralQueue: generalQueue,
		ArchiveQueue: archiveQueue,
		Manager:      manager,
		Poller:       poller,
		Registry:     registry,
		Processor:    processor,
		Backend:      backend,
	}

	task.Register(&backgroundTaskAdapter{name: "workers", startFunc: manager.StartAll, stopFunc: c.stopWorkers})
	task.Register(&backgroundTaskAdapter{name: "jobPoller", startFunc: poller.Start, stopFunc: poller.Stop})

	logger.Infof("Encoding component registered background tasks encoder_workers=%d", cfg.Worker.EncoderWorkers)
	return c
}

// stopWorkers 先关队列挡住新任务，再等工作器退出
func (c *EncodingComponent) stopWorkers() error {
	c.GeneralQueue.Close()
	c.ArchiveQueue.Close()
	return c.Manager.StopAll()
}

// backgroundTaskAdapter adapts Start/Stop functions to the BackgroundTask interface.
type backgroundTaskAdapter struct {
	name      string
	startFunc func(ctx context.Context) error
	stopFunc  func() error
}

func (b *backgroundTaskAdapter) Name() string                    { return b.name }
func (b *backgroundTaskAdapter) Start(ctx context.Context) error { return b.startFunc(ctx) }
func (b *backgroundTaskAdapter) Stop() error                     { return b.stopFunc() }
