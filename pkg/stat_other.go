//go:build !linux

package dupreclaim

import (
	"fmt"
	"os"
	"time"
)

// fileStat is the size and timestamps recorded for a duplicate file
type fileStat struct {
	Size      int64
	ModTime   time.Time
	CreatedAt time.Time
}

// statFile reads size and modification time; without statx the creation
// time is reported as the modification time
func statFile(path string) (fileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStat{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return fileStat{
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		CreatedAt: info.ModTime(),
	}, nil
}
