package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"jencoder/ddd/domain/entity"
	"jencoder/ddd/domain/gateway"
	"jencoder/ddd/domain/vo"
	"jencoder/pkg/config"
	"jencoder/pkg/errno"
	"jencoder/pkg/logger"
)

var (
	durationPattern = regexp.MustCompile(`Duration: (\d+):(\d+):(\d+)\.\d+, start: [\d.]+, bitrate: (\d+) kb/s`)
	streamPattern   = regexp.MustCompile(`Stream #0:(\d+).*: (Video|Audio):`)
)

// FFmpegTranscoder 基于本地ffmpeg进程实现gateway.Transcoder。
type FFmpegTranscoder struct {
	cfg *config.Config
}

// NewFFmpegTranscoder 创建ffmpeg转码器
func NewFFmpegTranscoder(cfg *config.Config) *FFmpegTranscoder {
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	return &FFmpegTranscoder{cfg: cfg}
}

// EncodeManifest 把输入切成HLS分片清单。
// ReencodeBitrate大于0时重编码到目标码率，否则流拷贝；
// 编码完成后把清单里的分片路径改成相对路径再写回。
func (t *FFmpegTranscoder) EncodeManifest(ctx context.Context, clientID, channelNo int, p gateway.EncodeManifestParams) error {
	outDir := filepath.Dir(p.OutputPlaylist)
	if err := os.MkdirAll(outDir, 0o775); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	probe, err := t.Probe(ctx, p.InputPath)
	if err != nil {
		logger.ChannelErrorf(clientID, channelNo, "Job [%s] Unable to probe input %s: %v", p.TicketID, p.InputPath, err)
	}

	args := []string{
		"-analyzeduration", "2147483647",
		"-probesize", "2147483647",
		"-n",
		"-loglevel", "quiet",
	}
	if p.ClipStartSeconds > 0 || p.ClipDurationSeconds > 0 {
		args = append(args,
			"-ss", secondsToFFmpeg(p.ClipStartSeconds),
			"-t", secondsToFFmpeg(p.ClipDurationSeconds))
	}
	args = append(args, "-i", p.InputPath, "-threads", strconv.Itoa(t.cfg.FFmpeg.EncodeThreads))

	reencode := p.ReencodeBitrate > 0
	switch {
	case p.AudioOnly:
		args = append(args, "-f", "segment", "-vn")
		if reencode {
			args = append(args, "-acodec", "libfdk_aac", "-b:a", "56k")
		} else {
			args = append(args, "-acodec", "copy")
		}
	case reencode:
		args = append(args,
			"-f", "ssegment",
			"-vcodec", "libx264",
			"-acodec", "libfdk_aac",
			"-b:v", fmt.Sprintf("%dk", p.ReencodeBitrate/1000),
			"-profile:v", "main",
			"-level", "3.1",
			"-force_key_frames", "expr:gte(t,n_forced*2)")
	default:
		args = append(args,
			"-f", "segment",
			"-codec", "copy",
			"-bsf:v", "h264_mp4toannexb")
	}

	for _, stream := range probe.Streams {
		args = append(args, "-map", stream)
	}

	args = append(args,
		"-segment_list", p.OutputPlaylist,
		"-segment_time", "10",
		outDir+"/%04d.ts")

	if err := t.run(ctx, clientID, channelNo, p.TicketID, p.Tag, args); err != nil {
		return err
	}

	// 分片路径去掉目录部分，重编码时统一目标时长
	playlist := entity.NewChildPlaylist(clientID, channelNo)
	if err := playlist.Load(p.OutputPlaylist); err != nil {
		return fmt.Errorf("load output playlist: %w", err)
	}
	playlist.StripDirectories()
	if reencode && !p.AudioOnly {
		playlist.SetTargetDuration10()
	}
	return playlist.Write(p.OutputPlaylist)
}

// EncodeMP3 产出mp3音频版本并写入元数据
func (t *FFmpegTranscoder) EncodeMP3(ctx context.Context, clientID, channelNo int, inputPath, outputPath string, clipStart, clipDuration int, title, artist, album string, copyOnly bool, ticketID string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o775); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	args := []string{
		"-analyzeduration", "2147483647",
		"-probesize", "2147483647",
		"-n",
		"-loglevel", "quiet",
	}
	if clipStart > 0 || clipDuration > 0 {
		args = append(args, "-ss", secondsToFFmpeg(clipStart))
	}
	args = append(args,
		"-i", inputPath,
		"-threads", strconv.Itoa(t.cfg.FFmpeg.MuxThreads),
		"-metadata", "title="+title,
		"-metadata", "artist="+artist,
		"-metadata", "album="+album,
		"-metadata", "genre=Podcast")
	if clipStart > 0 || clipDuration > 0 {
		args = append(args, "-t", secondsToFFmpeg(clipDuration))
	}
	if copyOnly {
		args = append(args, "-acodec", "copy", "-vn")
	} else {
		args = append(args,
			"-acodec", "libmp3lame",
			"-vn",
			"-ar", "22050",
			"-ab", "64k",
			"-ac", "1")
	}
	args = append(args, outputPath)

	return t.run(ctx, clientID, channelNo, ticketID, "mp3", args)
}

// EncodeMP4 把HLS清单封装回单个mp4文件
func (t *FFmpegTranscoder) EncodeMP4(ctx context.Context, clientID, channelNo int, inputPlaylist, outputPath, ticketID string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o775); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	args := []string{
		"-n",
		"-loglevel", "quiet",
		"-i", inputPlaylist,
		"-threads", strconv.Itoa(t.cfg.FFmpeg.MuxThreads),
		"-codec", "copy",
		"-bsf:a", "aac_adtstoasc",
		outputPath,
	}

	return t.run(ctx, clientID, channelNo, ticketID, "mp4", args)
}

// Probe 探测媒体时长、码率和流布局。
// m3u8清单没有整体码率，改探测同目录下的首个分片。
func (t *FFmpegTranscoder) Probe(ctx context.Context, inputPath string) (vo.MediaProbe, error) {
	if strings.HasSuffix(inputPath, ".m3u8") {
		inputPath = filepath.Dir(inputPath) + "/0000.ts"
	}

	cmd := exec.CommandContext(ctx, t.cfg.FFmpeg.BinaryPath, "-i", inputPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// ffmpeg没有输出文件时以非零码退出，探测只看stderr
	_ = cmd.Run()

	return parseProbeOutput(stderr.String())
}

// parseProbeOutput 从ffmpeg的stderr里抠出时长、码率和流编号
func parseProbeOutput(output string) (vo.MediaProbe, error) {
	probe := vo.MediaProbe{}

	m := durationPattern.FindStringSubmatch(output)
	if m == nil {
		return probe, errno.ErrProbeFailed
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	kbps, _ := strconv.Atoi(m[4])
	probe.DurationSeconds = hours*3600 + minutes*60 + seconds
	probe.BitrateBps = kbps * 1000

	videoDone, audioDone := false, false
	for _, sm := range streamPattern.FindAllStringSubmatch(output, -1) {
		switch sm[2] {
		case "Video":
			if !videoDone {
				probe.Streams = append(probe.Streams, "0:"+sm[1])
				videoDone = true
			}
		case "Audio":
			if !audioDone {
				probe.Streams = append(probe.Streams, "0:"+sm[1])
				audioDone = true
			}
		}
	}

	return probe, nil
}

// run 执行一次ffmpeg命令
func (t *FFmpegTranscoder) run(ctx context.Context, clientID, channelNo int, ticketID, tag string, args []string) error {
	logger.ChannelInfof(clientID, channelNo, "Job [%s] [%s] ffmpeg %s", ticketID, tag, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, t.cfg.FFmpeg.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.ChannelErrorf(clientID, channelNo, "Job [%s] [%s] ffmpeg failed: %v stderr: %s", ticketID, tag, err, stderr.String())
		return errno.ErrTranscodeFailed
	}
	return nil
}

// secondsToFFmpeg 把秒数转成ffmpeg的时间格式
func secondsToFFmpeg(total int) string {
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d.0", hours, minutes, seconds)
}
