package dupreclaim

import (
	"fmt"
	"strings"
)

// KeepPolicy decides which member of a duplicate group is retained
type KeepPolicy int

const (
	// KeepEarliest retains the earliest created file, then the earliest
	// modified, then the lexically smallest path
	KeepEarliest KeepPolicy = iota
	// KeepLargest retains the largest file, then the earliest created, then
	// the lexically smallest path
	KeepLargest
)

func (p KeepPolicy) String() string {
	switch p {
	case KeepEarliest:
		return "earliest"
	case KeepLargest:
		return "largest"
	default:
		return fmt.Sprintf("KeepPolicy(%d)", int(p))
	}
}

// ParseKeepPolicy converts a policy name to a KeepPolicy
func ParseKeepPolicy(name string) (KeepPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "earliest", "oldest":
		return KeepEarliest, nil
	case "largest":
		return KeepLargest, nil
	default:
		return 0, fmt.Errorf("%w: %q (valid: earliest, largest)", ErrInvalidPolicy, name)
	}
}

func (p KeepPolicy) valid() bool {
	return p == KeepEarliest || p == KeepLargest
}

// retains reports whether a should be kept in preference to b
func (p KeepPolicy) retains(a, b *DuplicateRecord) bool {
	switch p {
	case KeepLargest:
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	default:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.Before(b.ModTime)
		}
	}
	return a.Path < b.Path
}

// ExcessCopy is one redundant group member selected for cleanup
type ExcessCopy struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Kept string `json:"kept"` // Path of the retained member of the same group
}
