package vo

// BitrateTier 码率档位，同时也是归档目录里各码率子目录的名字
type BitrateTier string

const (
	TierHD  BitrateTier = "HD"
	TierSD  BitrateTier = "SD"
	TierLOW BitrateTier = "LOW"
	Tier64k BitrateTier = "64k"
)

// 各档位的码率上限，超过则重新编码压到上限
const (
	BitrateHDMaxCap  = 1750000
	BitrateSDMaxCap  = 700000
	BitrateLOWMaxCap = 140000
	BitrateAudio64k  = 64000
)

// Ladder 返回完整的码率阶梯，从高到低
func Ladder() []BitrateTier {
	return []BitrateTier{TierHD, TierSD, TierLOW, Tier64k}
}

// String 返回档位目录名
func (t BitrateTier) String() string {
	return string(t)
}

// PlaylistName 档位清单的相对路径，例如 HD/HD.m3u8
func (t BitrateTier) PlaylistName() string {
	return string(t) + "/" + string(t) + ".m3u8"
}

// IsAudioOnly 64k档位是纯音频
func (t BitrateTier) IsAudioOnly() bool {
	return t == Tier64k
}
