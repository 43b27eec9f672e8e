package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"jencoder/pkg/config"
)

// Logger 封装logrus，统一日志输出
type Logger struct {
	entry *logrus.Logger
	file  *os.File
}

// NewLogger 根据配置创建日志服务
func NewLogger(cfg *config.Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.Log.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05.000"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}

	logger := &Logger{entry: l}

	switch cfg.Log.Output {
	case "file":
		f, err := os.OpenFile(cfg.Log.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Printf("[ERROR] Failed to open log file %s: %v, falling back to stdout\n", cfg.Log.Filename, err)
			l.SetOutput(os.Stdout)
		} else {
			logger.file = f
			l.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	default:
		l.SetOutput(os.Stdout)
	}

	return logger
}

// Close 关闭日志文件
func (l *Logger) Close() {
	if l.file != nil {
		_ = l.file.Close()
	}
}

// WithChannel 带上客户端和频道上下文的日志条目
func (l *Logger) WithChannel(clientID, channelNo int) *logrus.Entry {
	return l.entry.WithFields(logrus.Fields{
		"client_id":  clientID,
		"channel_no": channelNo,
	})
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// SetGlobalLogger 设置全局日志服务
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

func get() *logrus.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return logrus.StandardLogger()
	}
	return globalLogger.entry
}

// Infof 格式化输出info级别日志
func Infof(format string, args ...interface{}) {
	get().Infof(format, args...)
}

// Warnf 格式化输出warn级别日志
func Warnf(format string, args ...interface{}) {
	get().Warnf(format, args...)
}

// Errorf 格式化输出error级别日志
func Errorf(format string, args ...interface{}) {
	get().Errorf(format, args...)
}

// Debugf 格式化输出debug级别日志
func Debugf(format string, args ...interface{}) {
	get().Debugf(format, args...)
}

// Debug 输出debug级别日志，附加结构化字段
func Debug(msg string, fields map[string]interface{}) {
	get().WithFields(fields).Debug(msg)
}

// Fatal 输出fatal级别日志并退出
func Fatal(msg string) {
	get().Fatal(msg)
}

// ChannelInfof 输出带客户端/频道上下文的info日志
func ChannelInfof(clientID, channelNo int, format string, args ...interface{}) {
	get().WithFields(logrus.Fields{"client_id": clientID, "channel_no": channelNo}).Infof(format, args...)
}

// ChannelErrorf 输出带客户端/频道上下文的error日志
func ChannelErrorf(clientID, channelNo int, format string, args ...interface{}) {
	get().WithFields(logrus.Fields{"client_id": clientID, "channel_no": channelNo}).Errorf(format, args...)
}
