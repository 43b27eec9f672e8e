package executor

import (
	"bytes"
	"context"
	"os/exec"

	"jencoder/pkg/config"
	"jencoder/pkg/logger"
)

// RestoreconRelabeler 新产出的文件调restorecon修复SELinux标签，
// 否则Web服务器读不到。失败只记日志，不影响任务结果。
type RestoreconRelabeler struct {
	cfg *config.Config
}

// NewRestoreconRelabeler 创建标签修复器
func NewRestoreconRelabeler(cfg *config.Config) *RestoreconRelabeler {
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	return &RestoreconRelabeler{cfg: cfg}
}

// Relabel 递归修复dirPrefix下所有产物的文件标签
func (r *RestoreconRelabeler) Relabel(ctx context.Context, clientID, channelNo int, dirPrefix, ticketID string) {
	target := dirPrefix + "*"
	logger.ChannelInfof(clientID, channelNo, "Job [%s] Restoring file contexts for %s", ticketID, target)

	cmd := exec.CommandContext(ctx, r.cfg.FFmpeg.RestoreconPath, "-r", target)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.ChannelErrorf(clientID, channelNo, "Job [%s] restorecon failed: %v stderr: %s", ticketID, err, stderr.String())
	}
}
