package entity

import (
	"fmt"
	"os"
	"strings"
)

// VariantStream 主清单里的一个码率变体。
// Header是原始的#EXT-X-STREAM-INF行，StreamName是子清单引用路径的第一段目录名。
type VariantStream struct {
	Header string
	// StreamName 例如 livestreamHD、stream64
	StreamName string
	// ChildPlaylist 手工指定的子清单相对路径，例如 HD/HD.m3u8
	ChildPlaylist string
}

// NewVariantStream 按码率和展示名构造一个变体
func NewVariantStream(bandwidth int, name, childPlaylist string) VariantStream {
	return VariantStream{
		Header:        fmt.Sprintf("#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=%d,NAME=%q", bandwidth, name),
		ChildPlaylist: childPlaylist,
	}
}

// IsStream64 纯音频64k变体的流名约定以stream64开头
func (v VariantStream) IsStream64() bool {
	return strings.HasPrefix(v.StreamName, "stream64")
}

// MasterPlaylist HLS主清单，按插入顺序持有各码率变体。
type MasterPlaylist struct {
	ClientID  int
	ChannelNo int

	Variants []VariantStream
}

// NewMasterPlaylist 创建一个空的主清单
func NewMasterPlaylist(clientID, channelNo int) *MasterPlaylist {
	return &MasterPlaylist{ClientID: clientID, ChannelNo: channelNo}
}

// Add 追加一个变体，顺序保持插入顺序
func (m *MasterPlaylist) Add(v VariantStream) {
	m.Variants = append(m.Variants, v)
}

// Load 从文件读入主清单。只认#EXT-X-STREAM-INF加下一行引用的成对结构，
// 引用行里没有目录分隔符的条目会被跳过。
func (m *MasterPlaylist) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if !strings.HasPrefix(line, "#EXT-X-STREAM-INF") {
			continue
		}
		if i+1 >= len(lines) {
			break
		}
		i++
		ref := strings.TrimRight(lines[i], "\r")
		slash := strings.IndexByte(ref, '/')
		if slash < 0 {
			continue
		}
		m.Variants = append(m.Variants, VariantStream{
			Header:     line,
			StreamName: ref[:slash],
		})
	}
	return nil
}

// WriteManual 用每个变体手工指定的子清单路径写出主清单。
func (m *MasterPlaylist) WriteManual(path string) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, v := range m.Variants {
		b.WriteString(v.Header + "\n")
		b.WriteString(v.ChildPlaylist + "\n")
	}
	return writeFileAtomic(path, []byte(b.String()))
}

// WriteInout 写出合成版主清单，每个变体指向 <流名>/inout.m3u8。
func (m *MasterPlaylist) WriteInout(path string) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, v := range m.Variants {
		b.WriteString(v.Header + "\n")
		b.WriteString(v.StreamName + "/inout.m3u8\n")
	}
	return writeFileAtomic(path, []byte(b.String()))
}

// WriteUpdatedPC 写出PC版主清单，指向 <流名>/updated.m3u8，不含stream64音频变体。
func (m *MasterPlaylist) WriteUpdatedPC(path string) error {
	return m.writeUpdated(path, false)
}

// WriteUpdatedIOS 写出iOS版主清单，含stream64音频变体。
func (m *MasterPlaylist) WriteUpdatedIOS(path string) error {
	return m.writeUpdated(path, true)
}

func (m *MasterPlaylist) writeUpdated(path string, withStream64 bool) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, v := range m.Variants {
		if !withStream64 && v.IsStream64() {
			continue
		}
		b.WriteString(v.Header + "\n")
		b.WriteString(v.StreamName + "/updated.m3u8\n")
	}
	return writeFileAtomic(path, []byte(b.String()))
}
