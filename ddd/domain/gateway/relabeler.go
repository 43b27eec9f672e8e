package gateway

import "context"

// Relabeler 编码产物落盘后修复SELinux上下文，Web服务器才读得到
type Relabeler interface {
	Relabel(ctx context.Context, clientID, channelNo int, dirPrefix, ticketID string)
}
