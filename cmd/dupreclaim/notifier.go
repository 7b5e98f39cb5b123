package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	dupreclaim "github.com/mattkeenan/dupreclaim/pkg"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
)

// Notifier reports scan progress and cleanup outcomes to a terminal
type Notifier struct {
	w     io.Writer
	stage dupreclaim.Stage
}

// NewNotifier returns a Notifier writing to w
func NewNotifier(w io.Writer) *Notifier {
	return &Notifier{w: w}
}

// ScanStarted prints the session ID and the roots being scanned
func (n *Notifier) ScanStarted(sessionID string, roots []string) {
	bold.Fprintf(n.w, "%s scan %s started on %d root(s)\n", nowStr(), sessionID, len(roots))
	for _, root := range roots {
		fmt.Fprintf(n.w, "%s   %s\n", nowStr(), root)
	}
}

// Progress prints the first and last report of each stage and every
// intermediate report of the directory walk
func (n *Notifier) Progress(stage dupreclaim.Stage, processed, total int) {
	if stage != n.stage {
		n.stage = stage
		bold.Fprintf(n.w, "%s %s\n", nowStr(), stage)
	}

	switch {
	case total == 0 && stage == dupreclaim.StageScan:
		fmt.Fprintf(n.w, "%s   %d files walked\n", nowStr(), processed)
	case total > 0 && processed == total:
		fmt.Fprintf(n.w, "%s   %d/%d files\n", nowStr(), processed, total)
	}
}

// ScanFinished prints the record count and elapsed time
func (n *Notifier) ScanFinished(records int, elapsed time.Duration) {
	green.Fprintf(n.w, "%s found %d duplicate files in %s\n", nowStr(), records, elapsed.Round(time.Millisecond))
}

// ScanFailed prints the error that ended a scan
func (n *Notifier) ScanFailed(err error) {
	red.Fprintf(n.w, "%s scan failed: %v\n", nowStr(), err)
}

// CleanupResult prints the outcome of one move or delete
func (n *Notifier) CleanupResult(op string, result dupreclaim.CleanupResult) {
	if result.OK() {
		target := result.Target
		if target == "" {
			target = "removed"
		}
		green.Fprintf(n.w, "%s   %s %s -> %s\n", nowStr(), op, result.Source, target)
		return
	}
	red.Fprintf(n.w, "%s   %s %s failed: %v\n", nowStr(), op, result.Source, result.Err)
}

func nowStr() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
