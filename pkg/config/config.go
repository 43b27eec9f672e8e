package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Paths     PathsConfig     `mapstructure:"paths"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

// ServerConfig 状态接口服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// BackendConfig 后台Web服务器配置，任务轮询和结果回调都走这里
type BackendConfig struct {
	ServerName    string        `mapstructure:"server_name"`
	RootPath      string        `mapstructure:"root_path"`
	SourceAddress string        `mapstructure:"source_address"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// WorkerConfig Worker相关配置
type WorkerConfig struct {
	EncoderWorkers int           `mapstructure:"encoder_workers"`
	SleepInterval  time.Duration `mapstructure:"sleep_interval"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

// PathsConfig 媒体文件的各个根目录
type PathsConfig struct {
	Recording       string `mapstructure:"recording"`
	RecordingBackup string `mapstructure:"recording_backup"`
	Archive         string `mapstructure:"archive"`
	Download        string `mapstructure:"download"`
	Export          string `mapstructure:"export"`
	PublicVideoBase string `mapstructure:"public_video_base"`
}

// FFmpegConfig FFmpeg相关配置
type FFmpegConfig struct {
	BinaryPath     string `mapstructure:"binary_path"`
	RestoreconPath string `mapstructure:"restorecon_path"`
	EncodeThreads  int    `mapstructure:"encode_threads"`
	MuxThreads     int    `mapstructure:"mux_threads"`
}

// ProfilingConfig 持续性能分析配置
type ProfilingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8084)
	viper.SetDefault("worker.encoder_workers", 2)

	// 设置环境变量前缀
	viper.SetEnvPrefix("JENCODER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	// 解析配置
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.normalize()

	return &config, nil
}

// normalize 补全配置的默认值
func (c *Config) normalize() {
	if c.Worker.EncoderWorkers <= 0 {
		c.Worker.EncoderWorkers = 2
	}
	if c.Worker.SleepInterval <= 0 {
		c.Worker.SleepInterval = 10 * time.Second
	}
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = 60 * time.Second
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 30 * time.Second
	}
	if c.Paths.Recording == "" {
		c.Paths.Recording = "/opt/recordings"
	}
	if c.Paths.RecordingBackup == "" {
		c.Paths.RecordingBackup = "/opt/recordings_backup"
	}
	if c.Paths.Archive == "" {
		c.Paths.Archive = "/opt/archive/clients"
	}
	if c.Paths.Download == "" {
		c.Paths.Download = "/opt/downloads"
	}
	if c.Paths.Export == "" {
		c.Paths.Export = "/opt/export"
	}
	if c.Paths.PublicVideoBase == "" {
		c.Paths.PublicVideoBase = "/video/clients"
	}
	if c.FFmpeg.BinaryPath == "" {
		c.FFmpeg.BinaryPath = "ffmpeg"
	}
	if c.FFmpeg.RestoreconPath == "" {
		c.FFmpeg.RestoreconPath = "/sbin/restorecon"
	}
	if c.FFmpeg.EncodeThreads <= 0 {
		c.FFmpeg.EncodeThreads = 2
	}
	if c.FFmpeg.MuxThreads <= 0 {
		c.FFmpeg.MuxThreads = 3
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
}

var globalConfig *Config

// SetGlobalConfig 设置全局配置
func SetGlobalConfig(cfg *Config) {
	globalConfig = cfg
}

// GetGlobalConfig 获取全局配置
func GetGlobalConfig() *Config {
	return globalConfig
}
