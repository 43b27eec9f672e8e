package service

import (
	"context"
	"io"
	"os"

	"jencoder/ddd/domain/entity"
	"jencoder/ddd/domain/gateway"
	"jencoder/ddd/domain/vo"
	"jencoder/pkg/config"
	"jencoder/pkg/logger"
)

// JobProcessor 按任务类型编排转码、清单刷新和结果回调。
// 所有失败都在这里兜住：记日志、尽量回调，绝不向Worker抛错。
type JobProcessor struct {
	cfg        *config.Config
	transcoder gateway.Transcoder
	sink       gateway.JobSink
	registry   *ChannelRegistry
	relabeler  gateway.Relabeler
}

// NewJobProcessor 创建任务处理器
func NewJobProcessor(cfg *config.Config, transcoder gateway.Transcoder, sink gateway.JobSink, registry *ChannelRegistry, relabeler gateway.Relabeler) *JobProcessor {
	return &JobProcessor{
		cfg:        cfg,
		transcoder: transcoder,
		sink:       sink,
		registry:   registry,
		relabeler:  relabeler,
	}
}

// Process 处理一个任务
func (p *JobProcessor) Process(ctx context.Context, job *entity.Job) {
	logger.ChannelInfof(job.ClientID, job.ChannelNo, "Job [%s] Encoding job started", job.TicketID)

	switch job.Kind {
	case vo.JobKindRecording:
		p.processRecording(ctx, job)
	case vo.JobKindArchive:
		p.processArchive(ctx, job)
	case vo.JobKindIn, vo.JobKindOut:
		p.processInOut(ctx, job)
	case vo.JobKindDownload:
		p.processDownload(ctx, job)
	default:
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Unknown job kind: %s", job.TicketID, job.Kind)
		return
	}

	logger.ChannelInfof(job.ClientID, job.ChannelNo, "Job [%s] Encoding job finished", job.TicketID)
}

// processRecording 录制文件的完整入库流程：
// 导出副本、MP3、码率阶梯、合成清单刷新、结果回调，最后删除源文件。
func (p *JobProcessor) processRecording(ctx context.Context, job *entity.Job) {
	paths := &p.cfg.Paths

	input := job.InputPath(paths)
	if _, err := os.Stat(input); err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] File does not exist: %s", job.TicketID, input)

		// 主录制目录没有就去备份目录找
		input = job.BackupInputPath(paths)
		if _, err := os.Stat(input); err != nil {
			logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] File does not exist: %s. Unable to archive recording", job.TicketID, input)
			p.notifyMissingSource(ctx, job)
			return
		}
		logger.ChannelInfof(job.ClientID, job.ChannelNo, "Job [%s] Using backup file instead: %s", job.TicketID, input)
	}

	// 导出一份原始文件
	if err := copyFile(input, job.ExportPath(paths)); err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Unable to copy file to export path: %v", job.TicketID, err)
	}

	outNoExt := job.OutputPathNoExt(paths)

	// MP3版本
	mp3Path := outNoExt + ".mp3"
	mp3Duration, mp3Size := p.encodeMP3(ctx, job, input, mp3Path, false)

	// 码率阶梯
	p.encodeLadder(ctx, job, input, outNoExt)

	// 视频时长：有剪辑区间用剪辑长度，否则探测源文件
	videoDuration := job.DurationSeconds()
	if videoDuration <= 0 {
		if probe, err := p.transcoder.Probe(ctx, input); err == nil {
			videoDuration = probe.DurationSeconds
		} else {
			videoDuration = mp3Duration
		}
	}

	p.registry.RefreshOne(ctx, job.ClientID, job.ChannelNo, job.OutputFilename, job.TicketID)
	p.relabeler.Relabel(ctx, job.ClientID, job.ChannelNo, outNoExt, job.TicketID)

	if err := p.sink.NotifyArchiveDone(ctx, job, mp3Duration, videoDuration, mp3Size); err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Notify archive done failed: %v", job.TicketID, err)
	}

	// 处理完成后删掉源文件和备份
	p.removeIfExists(job, job.InputPath(paths))
	p.removeIfExists(job, job.BackupInputPath(paths))
}

// processArchive 归档视频重剪：输入已经是HLS阶梯，各档位拷贝剪辑后重建主清单。
func (p *JobProcessor) processArchive(ctx context.Context, job *entity.Job) {
	paths := &p.cfg.Paths
	inputDir := job.InputPathNoExt(paths)
	outDir := job.OutputPathNoExt(paths)

	inputs := make(map[vo.BitrateTier]string)
	for _, tier := range vo.Ladder() {
		path := inputDir + "/" + tier.PlaylistName()
		if _, err := os.Stat(path); err == nil {
			inputs[tier] = path
		}
	}
	if len(inputs) == 0 {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] No valid input rendition under %s", job.TicketID, inputDir)
		return
	}

	// 各档位拷贝剪辑，码率从首个分片探测
	bitrates := make(map[vo.BitrateTier]int)
	for _, tier := range vo.Ladder() {
		input, ok := inputs[tier]
		if !ok {
			continue
		}

		bitrate := 0
		if tier.IsAudioOnly() {
			bitrate = vo.BitrateAudio64k
		} else if probe, err := p.transcoder.Probe(ctx, input); err == nil {
			bitrate = probe.BitrateBps
		}

		err := p.transcoder.EncodeManifest(ctx, job.ClientID, job.ChannelNo, gateway.EncodeManifestParams{
			InputPath:           input,
			OutputPlaylist:      outDir + "/" + tier.PlaylistName(),
			ClipStartSeconds:    job.ClipStartSeconds,
			ClipDurationSeconds: job.DurationSeconds(),
			AudioOnly:           tier.IsAudioOnly(),
			Tag:                 tier.String(),
			TicketID:            job.TicketID,
		})
		if err != nil {
			logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Encode %s failed: %v", job.TicketID, tier, err)
			continue
		}
		bitrates[tier] = bitrate
	}

	p.writeMasterPlaylists(job, outDir, bitrates)

	// MP3版本从已有的mp3剪出来，只拷贝不重编码
	mp3Duration, mp3Size := p.encodeMP3(ctx, job, inputDir+".mp3", outDir+".mp3", true)

	videoDuration := job.DurationSeconds()
	if videoDuration <= 0 {
		videoDuration = mp3Duration
	}

	p.registry.RefreshOne(ctx, job.ClientID, job.ChannelNo, job.OutputFilename, job.TicketID)
	p.relabeler.Relabel(ctx, job.ClientID, job.ChannelNo, outDir, job.TicketID)

	if err := p.sink.NotifyArchiveDone(ctx, job, mp3Duration, videoDuration, mp3Size); err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Notify archive done failed: %v", job.TicketID, err)
	}
}

// processInOut 片头/片尾视频：按需编码，然后刷新整个频道的合成清单。
func (p *JobProcessor) processInOut(ctx context.Context, job *entity.Job) {
	paths := &p.cfg.Paths

	if job.InOutMode == vo.InOutModeEncode {
		p.encodeLadder(ctx, job, job.InputPath(paths), job.OutputPathNoExt(paths))
	}

	p.registry.RefreshAll(ctx, job.ClientID, job.ChannelNo, job.TicketID)

	if err := p.sink.NotifyInOutDone(ctx, job); err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Notify in/out done failed: %v", job.TicketID, err)
	}
}

// processDownload 把归档视频的最高可用档位拷回mp4供下载。
func (p *JobProcessor) processDownload(ctx context.Context, job *entity.Job) {
	paths := &p.cfg.Paths
	inputDir := job.InputPathNoExt(paths)

	input := ""
	for _, tier := range vo.Ladder() {
		path := inputDir + "/" + tier.PlaylistName()
		if _, err := os.Stat(path); err == nil {
			input = path
			break
		}
	}
	if input == "" {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] No valid input rendition under %s", job.TicketID, inputDir)
		return
	}

	logger.ChannelInfof(job.ClientID, job.ChannelNo, "Job [%s] DOWNLOAD using input: [%s]", job.TicketID, input)

	outputMP4 := job.OutputPathNoExt(paths) + "/" + job.InputFilename
	if err := p.transcoder.EncodeMP4(ctx, job.ClientID, job.ChannelNo, input, outputMP4, job.TicketID); err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Encode mp4 failed: %v", job.TicketID, err)
	}

	var fileSize int64
	if info, err := os.Stat(outputMP4); err == nil {
		fileSize = info.Size()
	} else {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Unable to get mp4 file [%s] size: %v", job.TicketID, outputMP4, err)
	}

	if err := p.sink.NotifyDownloadDone(ctx, job, fileSize); err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Notify download done failed: %v", job.TicketID, err)
	}
}

// encodeLadder 从单个输入产出HD/SD/LOW/64k阶梯和pc/ios主清单。
// 源码率低于某档位门槛时该档位不产出；超过档位上限或强制重编码时走重编码，否则流拷贝。
func (p *JobProcessor) encodeLadder(ctx context.Context, job *entity.Job, input, outDir string) {
	origBitrate := 0
	if probe, err := p.transcoder.Probe(ctx, input); err == nil {
		origBitrate = probe.BitrateBps
	} else {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Probe failed for %s: %v", job.TicketID, input, err)
	}

	bitrates := make(map[vo.BitrateTier]int)

	// HD：只有源码率超过SD上限才值得产出
	if origBitrate > vo.BitrateSDMaxCap {
		hdBitrate := 0
		if origBitrate > vo.BitrateHDMaxCap {
			hdBitrate = vo.BitrateHDMaxCap
		} else if job.ForceReencode {
			hdBitrate = origBitrate
		}
		if p.encodeTier(ctx, job, input, outDir, vo.TierHD, hdBitrate) {
			if hdBitrate == 0 {
				hdBitrate = origBitrate
			}
			bitrates[vo.TierHD] = hdBitrate
		}
	}

	// SD：源码率超过LOW上限才产出
	if origBitrate > vo.BitrateLOWMaxCap {
		sdBitrate := 0
		if origBitrate > vo.BitrateSDMaxCap {
			sdBitrate = vo.BitrateSDMaxCap
		} else if job.ForceReencode {
			sdBitrate = origBitrate
		}
		if p.encodeTier(ctx, job, input, outDir, vo.TierSD, sdBitrate) {
			if sdBitrate == 0 {
				sdBitrate = origBitrate
			}
			bitrates[vo.TierSD] = sdBitrate
		}
	}

	// LOW和64k总是产出
	if p.encodeTier(ctx, job, input, outDir, vo.TierLOW, vo.BitrateLOWMaxCap) {
		bitrates[vo.TierLOW] = vo.BitrateLOWMaxCap
	}
	if p.encodeTier(ctx, job, input, outDir, vo.Tier64k, vo.BitrateAudio64k) {
		bitrates[vo.Tier64k] = vo.BitrateAudio64k
	}

	logger.ChannelInfof(job.ClientID, job.ChannelNo, "Job [%s] Encoded ladder orig_bitrate:[%d] tiers:%v for input:[%s]",
		job.TicketID, origBitrate, tierNames(bitrates), input)

	p.writeMasterPlaylists(job, outDir, bitrates)
}

// encodeTier 产出单个档位，成功返回true
func (p *JobProcessor) encodeTier(ctx context.Context, job *entity.Job, input, outDir string, tier vo.BitrateTier, bitrate int) bool {
	err := p.transcoder.EncodeManifest(ctx, job.ClientID, job.ChannelNo, gateway.EncodeManifestParams{
		InputPath:           input,
		OutputPlaylist:      outDir + "/" + tier.PlaylistName(),
		ClipStartSeconds:    job.ClipStartSeconds,
		ClipDurationSeconds: job.DurationSeconds(),
		ReencodeBitrate:     bitrate,
		AudioOnly:           tier.IsAudioOnly(),
		Tag:                 tier.String(),
		TicketID:            job.TicketID,
	})
	if err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Encode %s failed: %v", job.TicketID, tier, err)
		return false
	}
	return true
}

// writeMasterPlaylists 写出pc.m3u8（不含64k）和ios.m3u8（含64k）。
// 变体顺序固定为HD、SD、LOW、64k。
func (p *JobProcessor) writeMasterPlaylists(job *entity.Job, outDir string, bitrates map[vo.BitrateTier]int) {
	master := entity.NewMasterPlaylist(job.ClientID, job.ChannelNo)
	for _, tier := range []vo.BitrateTier{vo.TierHD, vo.TierSD, vo.TierLOW} {
		if b, ok := bitrates[tier]; ok && b > 0 {
			master.Add(entity.NewVariantStream(b, tier.String(), tier.PlaylistName()))
		}
	}

	if err := master.WriteManual(outDir + "/pc.m3u8"); err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Unable to write pc.m3u8: %v", job.TicketID, err)
	}

	if b, ok := bitrates[vo.Tier64k]; ok && b > 0 {
		master.Add(entity.NewVariantStream(b, vo.Tier64k.String(), vo.Tier64k.PlaylistName()))
	}
	if err := master.WriteManual(outDir + "/ios.m3u8"); err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Unable to write ios.m3u8: %v", job.TicketID, err)
	}
}

// encodeMP3 产出mp3并返回探测到的时长和文件大小。失败时返回零值。
func (p *JobProcessor) encodeMP3(ctx context.Context, job *entity.Job, input, output string, copyOnly bool) (duration int, size int64) {
	err := p.transcoder.EncodeMP3(ctx, job.ClientID, job.ChannelNo, input, output,
		job.ClipStartSeconds, job.DurationSeconds(), job.MP3Title, job.MP3Artist, job.MP3Album, copyOnly, job.TicketID)
	if err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Encode mp3 failed: %v", job.TicketID, err)
	}

	if info, err := os.Stat(output); err == nil {
		size = info.Size()
	} else {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Unable to get mp3 file [%s] size: %v", job.TicketID, output, err)
	}

	if probe, err := p.transcoder.Probe(ctx, output); err == nil {
		duration = probe.DurationSeconds
	}
	return duration, size
}

func (p *JobProcessor) notifyMissingSource(ctx context.Context, job *entity.Job) {
	if err := p.sink.NotifyMissingSource(ctx, job); err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Notify missing source failed: %v", job.TicketID, err)
	}
}

func (p *JobProcessor) removeIfExists(job *entity.Job, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	logger.ChannelInfof(job.ClientID, job.ChannelNo, "Job [%s] Deleting the file: %s", job.TicketID, path)
	if err := os.Remove(path); err != nil {
		logger.ChannelErrorf(job.ClientID, job.ChannelNo, "Job [%s] Unable to delete file %s: %v", job.TicketID, path, err)
	}
}

// copyFile 复制文件内容，目标已存在时覆盖
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func tierNames(bitrates map[vo.BitrateTier]int) []string {
	names := make([]string, 0, len(bitrates))
	for _, tier := range vo.Ladder() {
		if _, ok := bitrates[tier]; ok {
			names = append(names, tier.String())
		}
	}
	return names
}
