package service

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"jencoder/ddd/domain/entity"
	"jencoder/ddd/domain/gateway"
	"jencoder/ddd/domain/vo"
	"jencoder/pkg/config"
	"jencoder/pkg/logger"
)

// ChannelRegistry 按 clientId -> channelNo 两级惰性缓存频道状态。
// 同一频道的清单刷新必须串行，不同频道互不影响。
type ChannelRegistry struct {
	mu      sync.Mutex
	clients map[int]*clientEntry

	paths    *config.PathsConfig
	resolver gateway.InOutResolver
}

type clientEntry struct {
	channels map[int]*channelEntry
}

// channelEntry 持有单个频道的刷新锁
type channelEntry struct {
	mu sync.Mutex
}

// NewChannelRegistry 创建频道注册表
func NewChannelRegistry(paths *config.PathsConfig, resolver gateway.InOutResolver) *ChannelRegistry {
	return &ChannelRegistry{
		clients:  make(map[int]*clientEntry),
		paths:    paths,
		resolver: resolver,
	}
}

// channel 取出或创建频道条目。条目一旦创建不会回收。
func (r *ChannelRegistry) channel(clientID, channelNo int) *channelEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[clientID]
	if !ok {
		client = &clientEntry{channels: make(map[int]*channelEntry)}
		r.clients[clientID] = client
	}
	ch, ok := client.channels[channelNo]
	if !ok {
		ch = &channelEntry{}
		client.channels[channelNo] = ch
	}
	return ch
}

// RefreshAll 重新生成频道下所有归档视频的合成清单
func (r *ChannelRegistry) RefreshAll(ctx context.Context, clientID, channelNo int, ticketID string) {
	ch := r.channel(clientID, channelNo)
	ch.mu.Lock()
	defer ch.mu.Unlock()

	logger.ChannelInfof(clientID, channelNo, "Job [%s] Refreshing all HLS inout", ticketID)

	intro, outro := r.loadInOutVideos(ctx, clientID, channelNo, ticketID)

	clientDir := r.paths.Archive + "/" + strconv.Itoa(clientID)
	matches, err := filepath.Glob(clientDir + "/*_*")
	if err != nil {
		logger.ChannelErrorf(clientID, channelNo, "Job [%s] Unable to list archive directories: %v", ticketID, err)
		return
	}
	for _, dir := range matches {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		r.refreshDir(clientID, channelNo, dir, intro, outro, ticketID)
	}

	logger.ChannelInfof(clientID, channelNo, "Job [%s] Refresh all done", ticketID)
}

// RefreshOne 重新生成单个归档视频的合成清单。
// filename形如 1_1_20150505145533.mp4，目录名是去掉扩展名的部分。
func (r *ChannelRegistry) RefreshOne(ctx context.Context, clientID, channelNo int, filename, ticketID string) {
	ch := r.channel(clientID, channelNo)
	ch.mu.Lock()
	defer ch.mu.Unlock()

	logger.ChannelInfof(clientID, channelNo, "Job [%s] Refreshing HLS inout for file:[%s]", ticketID, filename)

	intro, outro := r.loadInOutVideos(ctx, clientID, channelNo, ticketID)

	dirName := strings.SplitN(filename, ".", 2)[0]
	dir := r.paths.Archive + "/" + strconv.Itoa(clientID) + "/" + dirName
	r.refreshDir(clientID, channelNo, dir, intro, outro, ticketID)
}

// loadInOutVideos 根据频道当前的启用状态加载片头/片尾各档位的子清单。
// 某个档位的文件不存在就留空，由合成时向低档位回退。
func (r *ChannelRegistry) loadInOutVideos(ctx context.Context, clientID, channelNo int, ticketID string) (intro, outro []*entity.ChildPlaylist) {
	ladder := vo.Ladder()
	intro = make([]*entity.ChildPlaylist, len(ladder))
	outro = make([]*entity.ChildPlaylist, len(ladder))

	flags, err := r.resolver.ResolveInOut(ctx, clientID, channelNo, ticketID)
	if err != nil {
		logger.ChannelErrorf(clientID, channelNo, "Job [%s] Unable to resolve in/out flags: %v", ticketID, err)
		return intro, outro
	}

	logger.ChannelInfof(clientID, channelNo, "Job [%s] Loading in/out videos in:[%t] out:[%t]", ticketID, flags.InActive, flags.OutActive)

	if flags.InActive {
		for i, tier := range ladder {
			intro[i] = r.loadInOutTier(clientID, channelNo, flags.InVideoID, tier, ticketID)
		}
	}
	if flags.OutActive {
		for i, tier := range ladder {
			outro[i] = r.loadInOutTier(clientID, channelNo, flags.OutVideoID, tier, ticketID)
		}
	}
	return intro, outro
}

// loadInOutTier 加载单个档位的片头/片尾清单，并把分片路径改写成Web可访问的绝对路径。
func (r *ChannelRegistry) loadInOutTier(clientID, channelNo, videoID int, tier vo.BitrateTier, ticketID string) *entity.ChildPlaylist {
	base := r.paths.Archive + "/" + strconv.Itoa(clientID) + "/inout/" + strconv.Itoa(channelNo) + "/" + strconv.Itoa(videoID)
	path := base + "/" + tier.PlaylistName()
	if _, err := os.Stat(path); err != nil {
		logger.ChannelInfof(clientID, channelNo, "Job [%s] in/out tier:[%s] file %s does not exist", ticketID, tier, path)
		return nil
	}

	playlist := entity.NewChildPlaylist(clientID, channelNo)
	if err := playlist.Load(path); err != nil {
		logger.ChannelErrorf(clientID, channelNo, "Job [%s] Unable to read in/out playlist %s: %v", ticketID, path, err)
		return nil
	}

	prefix := r.paths.PublicVideoBase + "/" + strconv.Itoa(clientID) + "/inout/" + strconv.Itoa(channelNo) + "/" + strconv.Itoa(videoID) + "/" + tier.String() + "/"
	playlist.RewriteSegmentPaths(prefix)
	return playlist
}

// refreshDir 为一个归档目录生成各档位的inout.m3u8以及顶层合成主清单。
// 某档位缺少对应的片头/片尾时取更低档位的版本，绝不取更高档位。
func (r *ChannelRegistry) refreshDir(clientID, channelNo int, dir string, intro, outro []*entity.ChildPlaylist, ticketID string) {
	ladder := vo.Ladder()
	var composed []string

	for i, tier := range ladder {
		src := dir + "/" + tier.PlaylistName()
		if _, err := os.Stat(src); err != nil {
			continue
		}

		archive := entity.NewChildPlaylist(clientID, channelNo)
		if err := archive.Load(src); err != nil {
			logger.ChannelErrorf(clientID, channelNo, "Job [%s] Unable to read archive playlist %s: %v", ticketID, src, err)
			continue
		}

		for j := i; j < len(ladder); j++ {
			if intro[j] != nil {
				archive.AddIntroVideo(intro[j])
				break
			}
		}
		for j := i; j < len(ladder); j++ {
			if outro[j] != nil {
				archive.AddEndingVideo(outro[j])
				break
			}
		}

		out := dir + "/" + tier.String() + "/inout.m3u8"
		if err := archive.Write(out); err != nil {
			logger.ChannelErrorf(clientID, channelNo, "Job [%s] Unable to write %s: %v", ticketID, out, err)
			continue
		}
		composed = append(composed, tier.String())
	}

	// 顶层主清单的合成版本。iOS端还需要一个master.m3u8别名。
	var masters []string
	if r.composeMaster(clientID, channelNo, dir+"/pc.m3u8", ticketID, dir+"/pc_inout.m3u8") {
		masters = append(masters, "pc_inout.m3u8")
	}
	if r.composeMaster(clientID, channelNo, dir+"/ios.m3u8", ticketID, dir+"/ios_inout.m3u8", dir+"/master.m3u8") {
		masters = append(masters, "ios_inout.m3u8", "master.m3u8")
	}

	logger.ChannelInfof(clientID, channelNo, "Job [%s] Updated in/out HLS for dir:[%s] bitrates:%v masters:%v",
		ticketID, filepath.Base(dir), composed, masters)
}

// composeMaster 从源主清单生成一个或多个inout版本。源不存在时跳过。
func (r *ChannelRegistry) composeMaster(clientID, channelNo int, srcPath, ticketID string, outPaths ...string) bool {
	if _, err := os.Stat(srcPath); err != nil {
		return false
	}

	master := entity.NewMasterPlaylist(clientID, channelNo)
	if err := master.Load(srcPath); err != nil {
		logger.ChannelErrorf(clientID, channelNo, "Job [%s] Unable to read master playlist %s: %v", ticketID, srcPath, err)
		return false
	}

	for _, out := range outPaths {
		if err := master.WriteInout(out); err != nil {
			logger.ChannelErrorf(clientID, channelNo, "Job [%s] Unable to write master playlist %s: %v", ticketID, out, err)
			return false
		}
	}
	return true
}
