//go:build linux

package dupreclaim

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// fileStat is the size and timestamps recorded for a duplicate file
type fileStat struct {
	Size      int64
	ModTime   time.Time
	CreatedAt time.Time
}

// statFile reads size, modification and birth time with statx. Filesystems
// that do not report a birth time fall back to the modification time.
func statFile(path string) (fileStat, error) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_STATX_SYNC_AS_STAT,
		unix.STATX_SIZE|unix.STATX_MTIME|unix.STATX_BTIME, &stx)
	if err != nil {
		return fileStat{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	st := fileStat{
		Size:    int64(stx.Size),
		ModTime: time.Unix(stx.Mtime.Sec, int64(stx.Mtime.Nsec)),
	}
	if stx.Mask&unix.STATX_BTIME != 0 {
		st.CreatedAt = time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
	} else {
		st.CreatedAt = st.ModTime
	}
	return st, nil
}
