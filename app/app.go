package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	adapterhttp "jencoder/ddd/adapter/http"
	"jencoder/ddd/infrastructure/worker"
	"jencoder/pkg/config"
	"jencoder/pkg/logger"
	"jencoder/pkg/observability"
	"jencoder/pkg/task"
)

func Run() {
	// 先使用标准输出确保能看到日志
	fmt.Println("[STARTUP] Starting encoding service...")

	// 加载配置
	fmt.Println("[STARTUP] Loading config file...")
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	config.SetGlobalConfig(cfg)
	fmt.Printf("[STARTUP] Config file loaded: %s\n", cfgPath)

	// 立即初始化日志服务
	fmt.Println("[STARTUP] Initializing logger...")
	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	fmt.Println("[STARTUP] Logger initialized")

	logger.Debug("Logger initialized", map[string]interface{}{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
	})

	logger.Infof("Encoding service starting version=%s backend=%s%s", "1.0.0", cfg.Backend.ServerName, cfg.Backend.RootPath)

	// 环境变量没配地址时允许从配置文件启动性能分析
	if cfg.Profiling.Enabled {
		observability.StartProfilingAt("jencoder", cfg.Profiling.ServerAddress)
	}

	// 检查 FFmpeg 是否可用，直接在启动阶段失败
	ffmpegBin := cfg.FFmpeg.BinaryPath
	if strings.TrimSpace(ffmpegBin) == "" {
		ffmpegBin = "ffmpeg"
	}
	if _, err := exec.LookPath(ffmpegBin); err != nil {
		logger.Fatal(fmt.Sprintf("FFmpeg binary not found, please install or set ffmpeg.binary_path binary=%s error=%s", ffmpegBin, err.Error()))
	}

	// 装配编码子系统
	logger.Infof("Initializing encoding components...")
	component := worker.MustCreateEncodingComponent(cfg)
	logger.Infof("Encoding components initialized")

	// 启动后台任务：工作器和轮询器
	logger.Infof("Starting background tasks...")
	taskCtx, taskCancel := context.WithCancel(context.Background())
	defer taskCancel()
	if err := task.StartAll(taskCtx); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to start background tasks error=%v", err))
	}
	logger.Infof("Background tasks started")

	// 创建Gin引擎
	logger.Infof("Creating HTTP routes...")
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	engine := gin.New()

	router := adapterhttp.NewRouter(component)
	router.SetupMiddleware(engine)
	router.SetupRoutes(engine)
	logger.Infof("Routes registered")

	// 启动HTTP服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(fmt.Sprintf("Failed to start HTTP server error=%v", err))
		}
	}()

	logger.Infof("HTTP server started address=%s health_url=%s", addr, fmt.Sprintf("http://%s/health", addr))

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Received shutdown signal, shutting down server...")

	// 停止后台任务：先停轮询器和工作器，让在途任务跑完
	logger.Infof("Stopping background tasks...")
	task.StopAll()
	logger.Infof("Background tasks stopped")

	// 设置5秒超时
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("Server forced to close error=%v", err))
	}

	logger.Infof("Server exited safely")

	// 关闭日志服务
	logger.Infof("Closing logger...")
	if logService != nil {
		logService.Close()
	}

	fmt.Println("[SHUTDOWN] Encoding service exited safely")
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config_prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
