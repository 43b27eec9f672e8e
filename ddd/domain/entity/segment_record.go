package entity

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RecordType 子清单里一条记录的类型
type RecordType int

const (
	// RecordMedia 一个ts分片，带时长和路径
	RecordMedia RecordType = iota
	// RecordDiscontinuity 不连续标记
	RecordDiscontinuity
	// RecordEndList 结束标记
	RecordEndList
)

// SegmentRecord 子清单里的一条记录。Media类型带路径和时长，其余两种为空。
type SegmentRecord struct {
	Path     string
	Duration float64
	Type     RecordType
}

// NewMediaRecord 创建一个分片记录
func NewMediaRecord(path string, duration float64) SegmentRecord {
	return SegmentRecord{Path: path, Duration: duration, Type: RecordMedia}
}

// NewDiscontinuityRecord 创建一个不连续记录
func NewDiscontinuityRecord() SegmentRecord {
	return SegmentRecord{Type: RecordDiscontinuity}
}

// NewEndListRecord 创建一个结束记录
func NewEndListRecord() SegmentRecord {
	return SegmentRecord{Type: RecordEndList}
}

// Equal 类型、时长、路径全部一致才算相等
func (r SegmentRecord) Equal(other SegmentRecord) bool {
	if r.Type != other.Type {
		return false
	}
	if r.Duration != other.Duration {
		return false
	}
	return r.Path == other.Path
}

// render 输出该记录的清单文本行
func (r SegmentRecord) render(b *strings.Builder) {
	switch r.Type {
	case RecordMedia:
		fmt.Fprintf(b, "#EXTINF:%.5f,\n", r.Duration)
		b.WriteString(r.Path + "\n")
	case RecordDiscontinuity:
		b.WriteString("#EXT-X-DISCONTINUITY\n")
	case RecordEndList:
		b.WriteString("#EXT-X-ENDLIST\n")
	}
}

// stripDirectory 把路径缩减为文件名
func (r *SegmentRecord) stripDirectory() {
	r.Path = filepath.Base(r.Path)
}
