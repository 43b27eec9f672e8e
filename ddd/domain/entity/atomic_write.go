package entity

import (
	"os"
	"path/filepath"
)

// writeFileAtomic 在目标目录创建临时文件写入内容，设置好读权限后rename到目标路径。
// rename在同一文件系统内是原子的，读方永远只能看到完整的新文件或完整的旧文件。
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "temp*.m3u8")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	// owner/group读写，其他用户只读，供相邻的Web服务器直接读取
	if err := os.Chmod(tmpName, 0o664); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
