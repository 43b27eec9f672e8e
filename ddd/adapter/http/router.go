package http

import (
	"github.com/gin-gonic/gin"

	"jencoder/ddd/infrastructure/worker"
	"jencoder/pkg/middleware"
)

// Router 路由配置
type Router struct {
	component *worker.EncodingComponent
}

// NewRouter 创建路由配置
func NewRouter(component *worker.EncodingComponent) *Router {
	return &Router{
		component: component,
	}
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes(engine *gin.Engine) {
	statusController := NewStatusController(r.component)

	// API v1 路由组
	v1 := engine.Group("/api/v1")
	{
		status := v1.Group("/status")
		{
			status.GET("/queues", statusController.GetQueueStatus)   // 队列状态
			status.GET("/workers", statusController.GetWorkerStatus) // 工作器统计
		}
	}

	// 健康检查路由
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "jencoder",
			"version": "1.0.0",
		})
	})
}

// SetupMiddleware 设置中间件
func (r *Router) SetupMiddleware(engine *gin.Engine) {
	// 请求ID中间件
	engine.Use(middleware.RequestContextMiddleware())

	// 请求日志中间件
	engine.Use(gin.Logger())

	// 恢复中间件
	engine.Use(gin.Recovery())
}
