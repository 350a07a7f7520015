package files

import (
	"os"
	"path/filepath"
)

// FindUpDir walks from dir toward the filesystem root looking for a directory
// named name, and returns its path or "" if none exists. Unreadable
// directories along the way are skipped rather than treated as errors.
func FindUpDir(name, dir string) string {
	curDir := dir
	for {
		candidate := filepath.Join(curDir, name)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		newDir := filepath.Dir(curDir)
		if newDir == curDir {
			return ""
		}
		curDir = newDir
	}
}
