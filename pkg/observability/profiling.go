package observability

import (
	"fmt"
	"os"
	"sync"

	"github.com/grafana/pyroscope-go"
)

var startOnce sync.Once

// StartProfiling 启动pyroscope持续性能分析，地址从环境变量读取。
// 地址为空时不启动，留给配置文件驱动的StartProfilingAt兜底。
func StartProfiling(appName string) {
	addr := os.Getenv("PYROSCOPE_SERVER_ADDRESS")
	if addr == "" {
		return
	}
	StartProfilingAt(appName, addr)
}

// StartProfilingAt 向指定的pyroscope服务端上报，重复调用只生效一次
func StartProfilingAt(appName, addr string) {
	if addr == "" {
		return
	}

	startOnce.Do(func() {
		_, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: appName,
			ServerAddress:   addr,
			Logger:          nil,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
				pyroscope.ProfileGoroutines,
			},
		})
		if err != nil {
			fmt.Printf("[WARN] Failed to start profiling: %v\n", err)
		}
	})
}
