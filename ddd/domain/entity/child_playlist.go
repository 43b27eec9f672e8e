package entity

import (
	"math"
	"os"
	"strconv"
	"strings"
)

// 滑动窗口保留的最大分片数
const maxWindowMedia = 10

// ChildPlaylist HLS子清单（媒体清单）。持有有序的记录序列和头部字段，
// 负责解析、合并、窗口淘汰和原子写出。
type ChildPlaylist struct {
	ClientID  int
	ChannelNo int

	// TargetDuration 分片的目标时长，秒
	TargetDuration int
	// ProgramDateTime 节目时间戳，原样透传。空则不输出。
	ProgramDateTime string
	// MediaSequence 从窗口头部淘汰过的分片总数
	MediaSequence int
	// Version 协议版本。0则不输出。
	Version int
	// AllowCache YES/NO。空则不输出。
	AllowCache string

	Records []SegmentRecord
}

// NewChildPlaylist 创建一个空的子清单
func NewChildPlaylist(clientID, channelNo int) *ChildPlaylist {
	return &ChildPlaylist{ClientID: clientID, ChannelNo: channelNo}
}

// Load 从文件读入子清单，覆盖当前内容。解析是宽容的：无法识别的行直接跳过。
func (p *ChildPlaylist) Load(path string) error {
	p.TargetDuration = 0
	p.ProgramDateTime = ""
	p.MediaSequence = 0
	p.Records = nil

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	p.Parse(string(data))
	return nil
}

// Parse 解析清单文本，把识别出的记录和头部字段并入当前清单。
func (p *ChildPlaylist) Parse(content string) {
	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")

		value := ""
		if colon := strings.IndexByte(line, ':'); colon > -1 {
			value = line[colon+1:]
		}

		switch {
		case strings.HasPrefix(line, "#EXTINF"):
			comma := strings.IndexByte(line, ',')
			colon := strings.IndexByte(line, ':')
			if comma < 0 || colon < 0 || comma < colon {
				continue
			}
			duration, err := strconv.ParseFloat(line[colon+1:comma], 64)
			if err != nil {
				continue
			}
			if i+1 < len(lines) {
				i++
				p.Records = append(p.Records, NewMediaRecord(strings.TrimRight(lines[i], "\r"), duration))
			}

		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION"):
			if n, err := strconv.Atoi(value); err == nil {
				p.TargetDuration = n
			}

		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE"):
			if n, err := strconv.Atoi(value); err == nil {
				p.MediaSequence = n
			}

		case strings.HasPrefix(line, "#EXT-X-PROGRAM-DATE-TIME"):
			p.ProgramDateTime = value

		case strings.HasPrefix(line, "#EXT-X-ENDLIST"):
			p.Records = append(p.Records, NewEndListRecord())

		case strings.HasPrefix(line, "#EXT-X-DISCONTINUITY"):
			p.Records = append(p.Records, NewDiscontinuityRecord())

		case strings.HasPrefix(line, "#EXT-X-VERSION"):
			if n, err := strconv.Atoi(value); err == nil {
				p.Version = n
			}

		case strings.HasPrefix(line, "#EXT-X-ALLOW-CACHE"):
			p.AllowCache = value
		}
	}
}

// Render 输出清单文本。标签顺序是固定的，播放器依赖这个顺序。
func (p *ChildPlaylist) Render() string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")

	if p.Version > 0 {
		b.WriteString("#EXT-X-VERSION:" + strconv.Itoa(p.Version) + "\n")
	}

	b.WriteString("#EXT-X-MEDIA-SEQUENCE:" + strconv.Itoa(p.MediaSequence) + "\n")

	if p.AllowCache != "" {
		b.WriteString("#EXT-X-ALLOW-CACHE:" + p.AllowCache + "\n")
	}
	if p.ProgramDateTime != "" {
		b.WriteString("#EXT-X-PROGRAM-DATE-TIME:" + p.ProgramDateTime + "\n")
	}

	b.WriteString("#EXT-X-TARGETDURATION:" + strconv.Itoa(p.TargetDuration) + "\n")

	for _, rec := range p.Records {
		rec.render(&b)
	}
	return b.String()
}

// Write 原子写出清单文件：先写同目录临时文件再rename覆盖。
// 写出失败时旧文件保持不变。
func (p *ChildPlaylist) Write(path string) error {
	return writeFileAtomic(path, []byte(p.Render()))
}

// UpdateWith 把source里的新分片合并进来：
// 找到当前最后一条记录在source里的位置，其后的分片是新分片；
// 当前最后一个分片在source里不存在时，在第一个新分片前插入一条不连续记录；
// 然后采用source的节目时间戳，并做窗口淘汰。
func (p *ChildPlaylist) UpdateWith(source *ChildPlaylist) {
	needDiscontinuity := false
	if len(p.Records) > 0 {
		last := p.Records[len(p.Records)-1]
		if last.Type == RecordMedia && !source.Contains(last) {
			needDiscontinuity = true
		}
	}

	for _, rec := range p.compare(source) {
		if rec.Type != RecordMedia {
			continue
		}
		if needDiscontinuity {
			p.Records = append(p.Records, NewDiscontinuityRecord())
			needDiscontinuity = false
		}
		p.Records = append(p.Records, rec)
	}

	p.ProgramDateTime = source.ProgramDateTime

	p.evict()
}

// evict 窗口淘汰。每淘汰一个分片mediaSequence加一；
// 淘汰后头部若是非分片记录则一并去掉，不计数。
func (p *ChildPlaylist) evict() {
	for p.CountMedia() > maxWindowMedia {
		if p.Records[0].Type == RecordMedia {
			p.MediaSequence++
		}
		p.Records = p.Records[1:]
	}
	if len(p.Records) > 0 && p.Records[0].Type != RecordMedia {
		p.Records = p.Records[1:]
	}
}

// compare 在source中定位当前最后一条记录，返回其后的全部记录。
// 没有任何匹配时source的所有记录都算新记录。
func (p *ChildPlaylist) compare(source *ChildPlaylist) []SegmentRecord {
	if len(p.Records) == 0 {
		return nil
	}

	last := p.Records[len(p.Records)-1]
	found := false
	var newer []SegmentRecord
	for _, rec := range source.Records {
		if found {
			newer = append(newer, rec)
		} else if last.Equal(rec) {
			found = true
		}
	}

	if !found {
		return source.Records
	}
	return newer
}

// Contains 检查某条记录是否结构化地存在于清单中
func (p *ChildPlaylist) Contains(rec SegmentRecord) bool {
	for _, r := range p.Records {
		if r.Equal(rec) {
			return true
		}
	}
	return false
}

// CountMedia 返回清单里分片记录的数量
func (p *ChildPlaylist) CountMedia() int {
	count := 0
	for _, rec := range p.Records {
		if rec.Type == RecordMedia {
			count++
		}
	}
	return count
}

// Append 追加一条记录并保持窗口不超限。直播场景外的追加不动mediaSequence。
func (p *ChildPlaylist) Append(rec SegmentRecord) {
	p.Records = append(p.Records, rec)

	if p.CountMedia() > maxWindowMedia {
		if p.Records[0].Type != RecordMedia {
			p.Records = p.Records[1:]
		}
		p.Records = p.Records[1:]
	}
}

// AddIntroVideo 在清单最前面插入片头的分片，并在片头与正片之间放一条不连续记录。
func (p *ChildPlaylist) AddIntroVideo(intro *ChildPlaylist) {
	prefix := []SegmentRecord{}
	for _, rec := range intro.Records {
		if rec.Type == RecordMedia {
			prefix = append(prefix, rec)
		}
	}
	prefix = append(prefix, NewDiscontinuityRecord())
	p.Records = append(prefix, p.Records...)
}

// AddEndingVideo 在清单末尾追加一条不连续记录和片尾的分片。
func (p *ChildPlaylist) AddEndingVideo(ending *ChildPlaylist) {
	p.Records = append(p.Records, NewDiscontinuityRecord())
	for _, rec := range ending.Records {
		if rec.Type == RecordMedia {
			p.Records = append(p.Records, rec)
		}
	}
}

// RewriteSegmentPaths 给每个分片的路径加上前缀，其他记录不动。
func (p *ChildPlaylist) RewriteSegmentPaths(prefix string) {
	for i := range p.Records {
		if p.Records[i].Type != RecordMedia {
			continue
		}
		p.Records[i].Path = prefix + p.Records[i].Path
	}
}

// StripDirectories 把每个分片的路径缩减为纯文件名。
func (p *ChildPlaylist) StripDirectories() {
	for i := range p.Records {
		if p.Records[i].Type != RecordMedia {
			continue
		}
		p.Records[i].stripDirectory()
	}
}

// RecomputeTargetDuration 把目标时长更新为当前最长分片时长的向上取整。
func (p *ChildPlaylist) RecomputeTargetDuration() {
	p.TargetDuration = 0
	for _, rec := range p.Records {
		if rec.Type != RecordMedia {
			continue
		}
		if ceil := int(math.Ceil(rec.Duration)); ceil > p.TargetDuration {
			p.TargetDuration = ceil
		}
	}
}

// SetTargetDuration10 重编码产物的分片固定为10秒。
func (p *ChildPlaylist) SetTargetDuration10() {
	p.TargetDuration = 10
}

// LatestRecord 返回最后一条记录；清单为空时返回false。
func (p *ChildPlaylist) LatestRecord() (SegmentRecord, bool) {
	if len(p.Records) == 0 {
		return SegmentRecord{}, false
	}
	return p.Records[len(p.Records)-1], true
}
