package dupreclaim

import "fmt"

// Stage identifies one of the three reporting points of the pipeline
type Stage int

const (
	StageScan        Stage = iota + 1 // Walking roots and bucketing by size
	StagePartialHash                  // Hashing prefixes of same-size files
	StageFullHash                     // Hashing full contents of prefix collisions
)

func (s Stage) String() string {
	switch s {
	case StageScan:
		return "scan"
	case StagePartialHash:
		return "partial-hash"
	case StageFullHash:
		return "full-hash"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// ProgressReporter receives (processed, total) counters. A total of 0 means
// the total is not yet known.
type ProgressReporter interface {
	Progress(stage Stage, processed, total int)
}

// ProgressFunc adapts a function to ProgressReporter
type ProgressFunc func(stage Stage, processed, total int)

// Progress calls f
func (f ProgressFunc) Progress(stage Stage, processed, total int) {
	f(stage, processed, total)
}

type nopProgress struct{}

func (nopProgress) Progress(Stage, int, int) {}

// orNop returns a reporter that is safe to call
func orNop(p ProgressReporter) ProgressReporter {
	if p == nil {
		return nopProgress{}
	}
	return p
}
