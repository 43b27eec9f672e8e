package gateway

import (
	"context"

	"jencoder/ddd/domain/vo"
)

// EncodeManifestParams 一次HLS编码的参数
type EncodeManifestParams struct {
	// InputPath 输入文件，mp4或m3u8都可以
	InputPath string
	// OutputPlaylist 输出的m3u8文件，父目录不存在会被创建
	OutputPlaylist string
	// ClipStartSeconds 剪辑起点，秒。0表示从头开始。
	ClipStartSeconds int
	// ClipDurationSeconds 剪辑时长，秒。0表示到结尾。
	ClipDurationSeconds int
	// ReencodeBitrate 重编码的视频码率bps。0表示流拷贝。
	ReencodeBitrate int
	// AudioOnly 只输出64k纯音频
	AudioOnly bool
	// Tag 日志标签，例如档位名
	Tag string
	// TicketID 任务跟踪号
	TicketID string
}

// Transcoder 媒体转码网关
type Transcoder interface {
	// EncodeManifest 把输入切成ts分片并产出子清单
	EncodeManifest(ctx context.Context, clientID, channelNo int, p EncodeManifestParams) error

	// EncodeMP3 产出mp3音频文件
	EncodeMP3(ctx context.Context, clientID, channelNo int, inputPath, outputPath string, clipStart, clipDuration int, title, artist, album string, copyOnly bool, ticketID string) error

	// EncodeMP4 把HLS清单流拷贝回mp4
	EncodeMP4(ctx context.Context, clientID, channelNo int, inputPlaylist, outputPath, ticketID string) error

	// Probe 探测媒体文件的时长、码率和流布局。
	// 输入是m3u8时探测同目录的0000.ts分片。
	Probe(ctx context.Context, inputPath string) (vo.MediaProbe, error)
}
