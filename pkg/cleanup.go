package dupreclaim

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxNameAttempts bounds the collision suffix search for one file
const maxNameAttempts = 10000

// Cleanup operation names used in results and the log
const (
	OpMove   = "move"
	OpDelete = "delete"
)

// CleanupOptions controls MoveFiles and DeleteFiles
type CleanupOptions struct {
	DryRun bool // Report the planned action without touching any file
}

// CleanupResult is the outcome for one source file
type CleanupResult struct {
	Source string `json:"source"`
	Target string `json:"target,omitempty"` // Final path for moves
	Err    error  `json:"-"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the operation succeeded
func (r CleanupResult) OK() bool {
	return r.Err == nil
}

// CleanupSummary totals one cleanup batch
type CleanupSummary struct {
	Operation   string          `json:"operation"`
	Destination string          `json:"destination,omitempty"`
	LogPath     string          `json:"log,omitempty"`
	DryRun      bool            `json:"dry_run"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	Results     []CleanupResult `json:"results"`
}

func (s *CleanupSummary) add(result CleanupResult) {
	if result.Err != nil {
		result.Error = result.Err.Error()
		s.Failed++
	} else {
		s.Succeeded++
	}
	s.Results = append(s.Results, result)
}

// Reject records results for files refused before any move or delete attempt
func (s *CleanupSummary) Reject(results []CleanupResult) {
	for _, result := range results {
		s.add(result)
	}
}

// VerifyRetained re-hashes the retained copy of every group in excess.
// Excess paths of groups whose retained copy still has the group hash are
// returned in order; every excess path of any other group gets a failed
// result wrapping ErrRetainedChanged, so none of them is touched.
func VerifyRetained(excess []ExcessCopy, hasher *Hasher) ([]string, []CleanupResult) {
	defer VerboseEnter()()

	checked := make(map[string]error)
	var verified []string
	var rejected []CleanupResult
	for _, e := range excess {
		key := e.Hash + "\x00" + e.Kept
		err, ok := checked[key]
		if !ok {
			err = verifyRetained(e, hasher)
			checked[key] = err
			if err != nil {
				VerboseLog(1, "%v", err)
			}
		}
		if err != nil {
			rejected = append(rejected, CleanupResult{Source: e.Path, Err: err})
			continue
		}
		verified = append(verified, e.Path)
	}
	return verified, rejected
}

func verifyRetained(e ExcessCopy, hasher *Hasher) error {
	sum, err := hasher.HashHex(e.Kept, HashFull)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRetainedChanged, e.Kept, err)
	}
	if sum != e.Hash {
		return fmt.Errorf("%w: %s no longer has hash %s", ErrRetainedChanged, e.Kept, e.Hash)
	}
	DebugLog("cleanup", "retained %s verified", e.Kept)
	return nil
}

// MoveFiles moves every path into destDir without overwriting anything.
// A name already taken gets "_N" inserted before the extension. Each attempt
// is logged to destDir/dupreclaim.log; a failure never stops the batch.
func MoveFiles(paths []string, destDir string, opts CleanupOptions) (*CleanupSummary, error) {
	defer VerboseEnter()()

	if strings.TrimSpace(destDir) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidDestination)
	}
	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDestination, destDir, err)
	}

	if info, err := os.Stat(absDest); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s: not a directory", ErrInvalidDestination, absDest)
		}
	} else if !opts.DryRun {
		if err := os.MkdirAll(absDest, 0755); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDestination, absDest, err)
		}
	}

	summary := &CleanupSummary{
		Operation:   OpMove,
		Destination: absDest,
		DryRun:      opts.DryRun,
	}

	if opts.DryRun {
		reserved := make(map[string]bool)
		for _, src := range paths {
			target, err := planMove(src, absDest, reserved)
			summary.add(CleanupResult{Source: src, Target: target, Err: err})
		}
		return summary, nil
	}

	summary.LogPath = filepath.Join(absDest, CleanupLogName)
	log, err := openOpLog(summary.LogPath)
	if err != nil {
		return nil, err
	}
	defer log.Close()

	for _, src := range paths {
		target, err := moveToDir(src, absDest)
		if err != nil {
			VerboseLog(1, "move %s failed: %v", src, err)
		} else {
			DebugLog("cleanup", "moved %s -> %s", src, target)
		}
		if logErr := log.record(OpMove, src, target, err); logErr != nil {
			VerboseLog(1, "%v", logErr)
		}
		summary.add(CleanupResult{Source: src, Target: target, Err: err})
	}

	VerboseLog(1, "Moved %d files to %s, %d failed", summary.Succeeded, absDest, summary.Failed)
	return summary, nil
}

// DeleteFiles removes every path, logging each attempt to logPath when it is
// not empty
func DeleteFiles(paths []string, logPath string, opts CleanupOptions) (*CleanupSummary, error) {
	defer VerboseEnter()()

	summary := &CleanupSummary{Operation: OpDelete, DryRun: opts.DryRun}

	var log *opLog
	if logPath != "" && !opts.DryRun {
		var err error
		if log, err = openOpLog(logPath); err != nil {
			return nil, err
		}
		defer log.Close()
		summary.LogPath = logPath
	}

	for _, src := range paths {
		var err error
		if opts.DryRun {
			err = checkRegular(src)
		} else {
			err = os.Remove(src)
		}
		if err != nil {
			VerboseLog(1, "delete %s failed: %v", src, err)
		}
		if log != nil {
			if logErr := log.record(OpDelete, src, "", err); logErr != nil {
				VerboseLog(1, "%v", logErr)
			}
		}
		summary.add(CleanupResult{Source: src, Err: err})
	}

	VerboseLog(1, "Deleted %d files, %d failed", summary.Succeeded, summary.Failed)
	return summary, nil
}

// candidateName returns name for n == 0, else name with "_n" before the extension
func candidateName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}
	return fmt.Sprintf("%s_%d%s", stem, n, ext)
}

// moveToDir moves src into dir under the first free candidate name
func moveToDir(src, dir string) (string, error) {
	if err := checkRegular(src); err != nil {
		return "", err
	}

	base := filepath.Base(src)
	for n := 0; n < maxNameAttempts; n++ {
		target := filepath.Join(dir, candidateName(base, n))
		err := moveFile(src, target)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return target, nil
	}
	return "", fmt.Errorf("no free name for %s in %s", base, dir)
}

// planMove picks the target moveToDir would use, tracking names already
// planned in this batch
func planMove(src, dir string, reserved map[string]bool) (string, error) {
	if err := checkRegular(src); err != nil {
		return "", err
	}

	base := filepath.Base(src)
	for n := 0; n < maxNameAttempts; n++ {
		target := filepath.Join(dir, candidateName(base, n))
		if reserved[target] {
			continue
		}
		if _, err := os.Lstat(target); err == nil {
			continue
		}
		reserved[target] = true
		return target, nil
	}
	return "", fmt.Errorf("no free name for %s in %s", base, dir)
}

func checkRegular(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return nil
}

// moveFile moves src to dst, failing with fs.ErrExist if dst exists. A hard
// link claims dst atomically; when linking is impossible (another filesystem,
// no link support) the content is copied into an exclusively created dst.
func moveFile(src, dst string) error {
	err := os.Link(src, dst)
	switch {
	case err == nil:
		if rmErr := os.Remove(src); rmErr != nil {
			os.Remove(dst)
			return fmt.Errorf("failed to remove source %s: %w", src, rmErr)
		}
		return nil
	case errors.Is(err, fs.ErrExist):
		return err
	case errors.Is(err, fs.ErrNotExist):
		return err
	}

	DebugLog("cleanup", "link %s failed (%v), copying", src, err)
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to remove source %s: %w", src, err)
	}
	return nil
}

// copyFile copies src to a newly created dst, preserving mode and mtime
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", dst, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
