package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jencoder/ddd/domain/entity"
	"jencoder/ddd/domain/gateway"
	"jencoder/ddd/domain/vo"
	"jencoder/pkg/config"
)

type fakeTranscoder struct {
	mu        sync.Mutex
	manifests []gateway.EncodeManifestParams
	mp3Inputs []string
	mp4Inputs []string
	probes    map[string]vo.MediaProbe
}

func (f *fakeTranscoder) EncodeManifest(ctx context.Context, clientID, channelNo int, p gateway.EncodeManifestParams) error {
	f.mu.Lock()
	f.manifests = append(f.manifests, p)
	f.mu.Unlock()

	// 产出一个最小可用的子清单，让后续的注册表刷新找得到文件
	if err := os.MkdirAll(filepath.Dir(p.OutputPlaylist), 0o775); err != nil {
		return err
	}
	content := "#EXTM3U\n#EXT-X-MEDIA-SEQUENCE:0\n#EXT-X-TARGETDURATION:10\n#EXTINF:10.00000,\n0000.ts\n"
	return os.WriteFile(p.OutputPlaylist, []byte(content), 0o644)
}

func (f *fakeTranscoder) EncodeMP3(ctx context.Context, clientID, channelNo int, inputPath, outputPath string, clipStart, clipDuration int, title, artist, album string, copyOnly bool, ticketID string) error {
	f.mu.Lock()
	f.mp3Inputs = append(f.mp3Inputs, inputPath)
	f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o775); err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("mp3data"), 0o644)
}

func (f *fakeTranscoder) EncodeMP4(ctx context.Context, clientID, channelNo int, inputPlaylist, outputPath, ticketID string) error {
	f.mu.Lock()
	f.mp4Inputs = append(f.mp4Inputs, inputPlaylist)
	f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o775); err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("mp4data!"), 0o644)
}

func (f *fakeTranscoder) Probe(ctx context.Context, inputPath string) (vo.MediaProbe, error) {
	if probe, ok := f.probes[inputPath]; ok {
		return probe, nil
	}
	return vo.MediaProbe{DurationSeconds: 60, BitrateBps: 1000000, Streams: []string{"0:0", "0:1"}}, nil
}

func (f *fakeTranscoder) manifestByTag(tag string) (gateway.EncodeManifestParams, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.manifests {
		if p.Tag == tag {
			return p, true
		}
	}
	return gateway.EncodeManifestParams{}, false
}

type archiveNotification struct {
	audioDuration int
	videoDuration int
	audioFileSize int64
}

type fakeSink struct {
	mu            sync.Mutex
	archiveDone   []archiveNotification
	inOutDone     int
	downloadDone  []int64
	missingSource int
}

func (f *fakeSink) NotifyArchiveDone(ctx context.Context, job *entity.Job, audioDuration, videoDuration int, audioFileSize int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archiveDone = append(f.archiveDone, archiveNotification{audioDuration, videoDuration, audioFileSize})
	return nil
}

func (f *fakeSink) NotifyInOutDone(ctx context.Context, job *entity.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inOutDone++
	return nil
}

func (f *fakeSink) NotifyDownloadDone(ctx context.Context, job *entity.Job, videoFileSize int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadDone = append(f.downloadDone, videoFileSize)
	return nil
}

func (f *fakeSink) NotifyMissingSource(ctx context.Context, job *entity.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missingSource++
	return nil
}

type fakeRelabeler struct {
	mu       sync.Mutex
	prefixes []string
}

func (f *fakeRelabeler) Relabel(ctx context.Context, clientID, channelNo int, dirPrefix, ticketID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes = append(f.prefixes, dirPrefix)
}

func processorFixture(t *testing.T, transcoder *fakeTranscoder) (*JobProcessor, *fakeSink, *fakeRelabeler, *config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Paths: config.PathsConfig{
			Recording:       filepath.Join(root, "recordings"),
			RecordingBackup: filepath.Join(root, "recordings_backup"),
			Archive:         filepath.Join(root, "archive", "clients"),
			Download:        filepath.Join(root, "downloads"),
			Export:          filepath.Join(root, "export"),
			PublicVideoBase: "/video/clients",
		},
	}
	for _, dir := range []string{cfg.Paths.Recording, cfg.Paths.RecordingBackup, cfg.Paths.Archive, cfg.Paths.Download, cfg.Paths.Export} {
		require.NoError(t, os.MkdirAll(dir, 0o775))
	}

	sink := &fakeSink{}
	relabeler := &fakeRelabeler{}
	registry := NewChannelRegistry(&cfg.Paths, &fakeResolver{})
	return NewJobProcessor(cfg, transcoder, sink, registry, relabeler), sink, relabeler, cfg
}

func writeSourceFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o775))
	require.NoError(t, os.WriteFile(path, []byte("source video bytes"), 0o644))
}

func TestProcessRecordingHappyPath(t *testing.T) {
	transcoder := &fakeTranscoder{probes: map[string]vo.MediaProbe{}}
	processor, sink, relabeler, cfg := processorFixture(t, transcoder)

	input := filepath.Join(cfg.Paths.Recording, "7", "rec.mp4")
	writeSourceFile(t, input)
	transcoder.probes[input] = vo.MediaProbe{DurationSeconds: 120, BitrateBps: 2000000, Streams: []string{"0:0", "0:1"}}

	outDir := filepath.Join(cfg.Paths.Archive, "7", "show55")
	transcoder.probes[filepath.Join(outDir+".mp3")] = vo.MediaProbe{DurationSeconds: 118, BitrateBps: 64000}

	job := entity.NewRecordingJob(7, 3, 55, "t", "a", "al", 0, 0, "rec.mp4", "show55.mp4", false, "J000001")
	processor.Process(context.Background(), job)

	// 源码率超过HD上限：HD压到上限，SD和LOW各自压到上限，64k纯音频
	hd, ok := transcoder.manifestByTag("HD")
	require.True(t, ok)
	assert.Equal(t, vo.BitrateHDMaxCap, hd.ReencodeBitrate)
	sd, ok := transcoder.manifestByTag("SD")
	require.True(t, ok)
	assert.Equal(t, vo.BitrateSDMaxCap, sd.ReencodeBitrate)
	low, ok := transcoder.manifestByTag("LOW")
	require.True(t, ok)
	assert.Equal(t, vo.BitrateLOWMaxCap, low.ReencodeBitrate)
	audio, ok := transcoder.manifestByTag("64k")
	require.True(t, ok)
	assert.True(t, audio.AudioOnly)

	// 主清单：pc不含64k，ios含
	pc, err := os.ReadFile(filepath.Join(outDir, "pc.m3u8"))
	require.NoError(t, err)
	assert.NotContains(t, string(pc), "64k")
	ios, err := os.ReadFile(filepath.Join(outDir, "ios.m3u8"))
	require.NoError(t, err)
	assert.Contains(t, string(ios), "64k/64k.m3u8")

	// 回调：音频时长取mp3探测值，视频时长取源文件探测值，大小是mp3文件字节数
	require.Len(t, sink.archiveDone, 1)
	assert.Equal(t, 118, sink.archiveDone[0].audioDuration)
	assert.Equal(t, 120, sink.archiveDone[0].videoDuration)
	assert.Equal(t, int64(len("mp3data")), sink.archiveDone[0].audioFileSize)

	// 导出副本保留，源文件删除
	_, err = os.Stat(filepath.Join(cfg.Paths.Export, "rec.mp4"))
	assert.NoError(t, err)
	_, err = os.Stat(input)
	assert.True(t, os.IsNotExist(err))

	require.Len(t, relabeler.prefixes, 1)
	assert.Equal(t, outDir, relabeler.prefixes[0])
}

func TestProcessRecordingLowBitrateSkipsUpperTiers(t *testing.T) {
	transcoder := &fakeTranscoder{probes: map[string]vo.MediaProbe{}}
	processor, _, _, cfg := processorFixture(t, transcoder)

	input := filepath.Join(cfg.Paths.Recording, "7", "rec.mp4")
	writeSourceFile(t, input)
	transcoder.probes[input] = vo.MediaProbe{DurationSeconds: 60, BitrateBps: 500000}

	job := entity.NewRecordingJob(7, 3, 55, "t", "a", "al", 0, 0, "rec.mp4", "show55.mp4", false, "J000001")
	processor.Process(context.Background(), job)

	_, hasHD := transcoder.manifestByTag("HD")
	assert.False(t, hasHD)

	// SD低于自身上限：流拷贝，主清单标注源码率
	sd, ok := transcoder.manifestByTag("SD")
	require.True(t, ok)
	assert.Equal(t, 0, sd.ReencodeBitrate)

	pc, err := os.ReadFile(filepath.Join(cfg.Paths.Archive, "7", "show55", "pc.m3u8"))
	require.NoError(t, err)
	assert.Contains(t, string(pc), "BANDWIDTH=500000")
}

func TestProcessRecordingForceReencode(t *testing.T) {
	transcoder := &fakeTranscoder{probes: map[string]vo.MediaProbe{}}
	processor, _, _, cfg := processorFixture(t, transcoder)

	input := filepath.Join(cfg.Paths.Recording, "7", "rec.mp4")
	writeSourceFile(t, input)
	transcoder.probes[input] = vo.MediaProbe{DurationSeconds: 60, BitrateBps: 1000000}

	job := entity.NewRecordingJob(7, 3, 55, "t", "a", "al", 0, 0, "rec.mp4", "show55.mp4", true, "J000001")
	processor.Process(context.Background(), job)

	// 码率在上限以内但要求强制重编码：按源码率重编码而不是流拷贝
	hd, ok := transcoder.manifestByTag("HD")
	require.True(t, ok)
	assert.Equal(t, 1000000, hd.ReencodeBitrate)
}

func TestProcessRecordingUsesBackupWhenPrimaryMissing(t *testing.T) {
	transcoder := &fakeTranscoder{probes: map[string]vo.MediaProbe{}}
	processor, sink, _, cfg := processorFixture(t, transcoder)

	backup := filepath.Join(cfg.Paths.RecordingBackup, "rec.mp4")
	writeSourceFile(t, backup)

	job := entity.NewRecordingJob(7, 3, 55, "t", "a", "al", 0, 0, "rec.mp4", "show55.mp4", false, "J000001")
	processor.Process(context.Background(), job)

	require.Len(t, sink.archiveDone, 1)
	assert.Equal(t, 0, sink.missingSource)

	_, err := os.Stat(backup)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessRecordingMissingSource(t *testing.T) {
	transcoder := &fakeTranscoder{probes: map[string]vo.MediaProbe{}}
	processor, sink, _, _ := processorFixture(t, transcoder)

	job := entity.NewRecordingJob(7, 3, 55, "t", "a", "al", 0, 0, "rec.mp4", "show55.mp4", false, "J000001")
	processor.Process(context.Background(), job)

	assert.Equal(t, 1, sink.missingSource)
	assert.Empty(t, sink.archiveDone)
	assert.Empty(t, transcoder.manifests)
}

func TestProcessArchiveClipsExistingRenditions(t *testing.T) {
	transcoder := &fakeTranscoder{probes: map[string]vo.MediaProbe{}}
	processor, sink, _, cfg := processorFixture(t, transcoder)

	srcDir := filepath.Join(cfg.Paths.Archive, "7", "show55")
	for _, tier := range []string{"HD", "SD"} {
		writeSourceFile(t, filepath.Join(srcDir, tier, tier+".m3u8"))
	}
	writeSourceFile(t, srcDir+".mp3")
	transcoder.probes[filepath.Join(cfg.Paths.Archive, "7", "clip56")+".mp3"] = vo.MediaProbe{DurationSeconds: 60}

	job := entity.NewArchiveJob(7, 3, 56, "t", "a", "al", 30, 90, "show55.mp4", "clip56.mp4", false, "J000002")
	processor.Process(context.Background(), job)

	hd, ok := transcoder.manifestByTag("HD")
	require.True(t, ok)
	assert.Equal(t, 30, hd.ClipStartSeconds)
	assert.Equal(t, 60, hd.ClipDurationSeconds)
	assert.Equal(t, 0, hd.ReencodeBitrate)

	_, hasLOW := transcoder.manifestByTag("LOW")
	assert.False(t, hasLOW)

	// mp3从已有音频剪辑拷贝
	require.Len(t, transcoder.mp3Inputs, 1)
	assert.Equal(t, srcDir+".mp3", transcoder.mp3Inputs[0])

	require.Len(t, sink.archiveDone, 1)
	assert.Equal(t, 60, sink.archiveDone[0].videoDuration)
}

func TestProcessArchiveForceReencodeStillStreamCopies(t *testing.T) {
	transcoder := &fakeTranscoder{probes: map[string]vo.MediaProbe{}}
	processor, _, _, cfg := processorFixture(t, transcoder)

	srcDir := filepath.Join(cfg.Paths.Archive, "7", "show55")
	writeSourceFile(t, filepath.Join(srcDir, "HD", "HD.m3u8"))
	writeSourceFile(t, srcDir+".mp3")

	job := entity.NewArchiveJob(7, 3, 56, "t", "a", "al", 0, 0, "show55.mp4", "clip56.mp4", true, "J000002")
	processor.Process(context.Background(), job)

	// 归档剪辑的输入已经是编码过的档位，强制重编码标志不生效
	hd, ok := transcoder.manifestByTag("HD")
	require.True(t, ok)
	assert.Equal(t, 0, hd.ReencodeBitrate)
}

func TestProcessArchiveNoRenditions(t *testing.T) {
	transcoder := &fakeTranscoder{probes: map[string]vo.MediaProbe{}}
	processor, sink, _, _ := processorFixture(t, transcoder)

	job := entity.NewArchiveJob(7, 3, 56, "t", "a", "al", 0, 0, "missing.mp4", "clip56.mp4", false, "J000002")
	processor.Process(context.Background(), job)

	// 没有任何输入档位：不编码也不回调
	assert.Empty(t, transcoder.manifests)
	assert.Empty(t, sink.archiveDone)
	assert.Equal(t, 0, sink.missingSource)
}

func TestProcessInOutRefreshSkipsEncoding(t *testing.T) {
	transcoder := &fakeTranscoder{probes: map[string]vo.MediaProbe{}}
	processor, sink, _, _ := processorFixture(t, transcoder)

	job := entity.NewInJob(7, 3, 12, "intro.mp4", "Refresh", "J000003")
	processor.Process(context.Background(), job)

	assert.Empty(t, transcoder.manifests)
	assert.Equal(t, 1, sink.inOutDone)
}

func TestProcessInOutEncode(t *testing.T) {
	transcoder := &fakeTranscoder{probes: map[string]vo.MediaProbe{}}
	processor, sink, _, cfg := processorFixture(t, transcoder)

	input := filepath.Join(cfg.Paths.Recording, "7", "intro.mp4")
	writeSourceFile(t, input)
	transcoder.probes[input] = vo.MediaProbe{DurationSeconds: 15, BitrateBps: 2000000}

	job := entity.NewInJob(7, 3, 12, "intro.mp4", "Encode", "J000003")
	processor.Process(context.Background(), job)

	hd, ok := transcoder.manifestByTag("HD")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(cfg.Paths.Archive, "7", "inout", "3", "12", "HD", "HD.m3u8"), hd.OutputPlaylist)
	assert.Equal(t, 1, sink.inOutDone)
}

func TestProcessDownloadPicksHighestTier(t *testing.T) {
	transcoder := &fakeTranscoder{probes: map[string]vo.MediaProbe{}}
	processor, sink, _, cfg := processorFixture(t, transcoder)

	srcDir := filepath.Join(cfg.Paths.Archive, "7", "show55")
	writeSourceFile(t, filepath.Join(srcDir, "SD", "SD.m3u8"))
	writeSourceFile(t, filepath.Join(srcDir, "LOW", "LOW.m3u8"))

	job := entity.NewDownloadJob(7, 3, 99, "show55.mp4", "J000004")
	processor.Process(context.Background(), job)

	// HD不存在时取SD，不会掉到LOW
	require.Len(t, transcoder.mp4Inputs, 1)
	assert.Equal(t, filepath.Join(srcDir, "SD", "SD.m3u8"), transcoder.mp4Inputs[0])

	require.Len(t, sink.downloadDone, 1)
	assert.Equal(t, int64(len("mp4data!")), sink.downloadDone[0])

	_, err := os.Stat(filepath.Join(cfg.Paths.Download, "show55.mp4"))
	assert.NoError(t, err)
}

func TestProcessDownloadNoRendition(t *testing.T) {
	transcoder := &fakeTranscoder{probes: map[string]vo.MediaProbe{}}
	processor, sink, _, _ := processorFixture(t, transcoder)

	job := entity.NewDownloadJob(7, 3, 99, "missing.mp4", "J000004")
	processor.Process(context.Background(), job)

	assert.Empty(t, transcoder.mp4Inputs)
	assert.Empty(t, sink.downloadDone)
}
