package cache

import (
	"os"
	"path/filepath"
	"syscall"
)

func absPath(path string) (string, error) {
	return filepath.Abs(path)
}

func statIdentity(info os.FileInfo) (dev, ino uint64) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Dev), uint64(st.Ino)
	}
	return 0, 0
}
