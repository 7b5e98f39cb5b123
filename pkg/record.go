package dupreclaim

import (
	"path/filepath"
	"time"
)

// DuplicateRecord describes one file whose full content hash is shared with
// at least one other file
type DuplicateRecord struct {
	Hash        string    `json:"hash"`
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	HumanSize   string    `json:"human_size"`
	PartialHash string    `json:"partial_hash"`
	ModTime     time.Time `json:"modified"`
	CreatedAt   time.Time `json:"created"`
}

// newDuplicateRecord builds a record from hashing and stat results
func newDuplicateRecord(path, fullHash, partialHash string, st fileStat) DuplicateRecord {
	return DuplicateRecord{
		Hash:        fullHash,
		Path:        path,
		Name:        filepath.Base(path),
		Size:        st.Size,
		HumanSize:   HumanSize(st.Size),
		PartialHash: partialHash,
		ModTime:     st.ModTime,
		CreatedAt:   st.CreatedAt,
	}
}
