package dupreclaim

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// scanProgressInterval is how many files are walked between StageScan reports
const scanProgressInterval = 256

// FileSizeBuckets maps an exact byte size to the canonical paths of that size
type FileSizeBuckets map[int64][]string

// Sizes returns the bucket sizes in ascending order
func (b FileSizeBuckets) Sizes() []int64 {
	sizes := make([]int64, 0, len(b))
	for size := range b {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
	return sizes
}

// Candidates returns the number of files in buckets with at least two members
func (b FileSizeBuckets) Candidates() int {
	total := 0
	for _, paths := range b {
		if len(paths) >= 2 {
			total += len(paths)
		}
	}
	return total
}

// Files returns the number of bucketed files
func (b FileSizeBuckets) Files() int {
	total := 0
	for _, paths := range b {
		total += len(paths)
	}
	return total
}

// ScanResult is the outcome of one tree scan
type ScanResult struct {
	Roots      []string        // Canonical, de-duplicated roots that were walked
	Buckets    FileSizeBuckets // Files at or above the minimum size, by size
	TotalFiles int             // Every file seen, before size filtering
}

// Scanner walks directory trees and buckets files by size
type Scanner struct {
	minFileSize int64
	symlinkMode string
	ignore      *IgnoreManager
}

// NewScanner creates a scanner from pipeline options
func NewScanner(opts Options) (*Scanner, error) {
	if err := ValidateSymlinkMode(opts.SymlinkMode); err != nil {
		return nil, err
	}
	ignore, err := NewIgnoreManager(opts.IgnorePatterns)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		minFileSize: opts.MinFileSize,
		symlinkMode: strings.ToLower(opts.SymlinkMode),
		ignore:      ignore,
	}, nil
}

// ValidateRoots resolves every root to a canonical directory path and drops
// roots nested inside another root. It fails before any walking on an
// empty list, an empty path or a path that is not an accessible directory.
func ValidateRoots(roots []string) ([]string, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}

	canonical := make([]string, 0, len(roots))
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			return nil, fmt.Errorf("%w: empty path", ErrInvalidRoot)
		}
		absPath, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
		}
		realPath, err := filepath.EvalSymlinks(absPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
		}
		info, err := os.Stat(realPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s: not a directory", ErrInvalidRoot, root)
		}
		canonical = append(canonical, filepath.Clean(realPath))
	}

	return deduplicatePaths(canonical), nil
}

// deduplicatePaths sorts paths and removes any that are under another path
// Example: ["/home/user/docs", "/home/user/docs/sub", "/home/user/photos"]
//
//	-> ["/home/user/docs", "/home/user/photos"]
func deduplicatePaths(paths []string) []string {
	sort.Strings(paths)

	var deduplicated []string
	for _, path := range paths {
		redundant := false
		for _, kept := range deduplicated {
			if path == kept || isPathUnder(path, kept) {
				redundant = true
				break
			}
		}
		if !redundant {
			deduplicated = append(deduplicated, path)
		}
	}
	return deduplicated
}

// isPathUnder checks if childPath is strictly under parentPath
func isPathUnder(childPath, parentPath string) bool {
	childPath = filepath.Clean(childPath)
	parentPath = filepath.Clean(parentPath)
	if childPath == parentPath {
		return false
	}
	return strings.HasPrefix(childPath, strings.TrimSuffix(parentPath, string(filepath.Separator))+string(filepath.Separator))
}

// isPathContained checks if targetPath is containerPath or below it
func isPathContained(targetPath, containerPath string) bool {
	return filepath.Clean(targetPath) == filepath.Clean(containerPath) || isPathUnder(targetPath, containerPath)
}

// scanState is owned by one Scan call
type scanState struct {
	result    *ScanResult
	seenDirs  map[string]bool
	seenFiles map[string]bool
	progress  ProgressReporter
}

// Scan walks every root and buckets regular files by size. Unreadable
// entries are skipped; only invalid roots or a shutdown abort the scan.
func (s *Scanner) Scan(shutdownChan <-chan struct{}, roots []string, progress ProgressReporter) (*ScanResult, error) {
	defer VerboseEnter()()

	validRoots, err := ValidateRoots(roots)
	if err != nil {
		return nil, err
	}

	state := &scanState{
		result: &ScanResult{
			Roots:   validRoots,
			Buckets: make(FileSizeBuckets),
		},
		seenDirs:  make(map[string]bool),
		seenFiles: make(map[string]bool),
		progress:  orNop(progress),
	}

	for _, root := range validRoots {
		DebugLog("scan", "scanning root %s", root)
		if err := s.scanRoot(shutdownChan, root, state); err != nil {
			return nil, err
		}
	}

	total := state.result.TotalFiles
	state.progress.Progress(StageScan, total, total)
	VerboseLog(1, "Scanned %d files, %d bucketed in %d sizes", total,
		state.result.Buckets.Files(), len(state.result.Buckets))

	return state.result, nil
}

// scanRoot walks one root in lexical order
func (s *Scanner) scanRoot(shutdownChan <-chan struct{}, root string, state *scanState) error {
	pathQueue := []string{root}

	for len(pathQueue) > 0 {
		select {
		case <-shutdownChan:
			DebugLog("scan", "filesystem scan interrupted by shutdown")
			return ErrInterrupted
		default:
		}

		currentPath := pathQueue[0]
		pathQueue = pathQueue[1:]

		info, err := os.Lstat(currentPath)
		if err != nil {
			VerboseLog(2, "skipping %s: %v", currentPath, err)
			continue
		}

		if currentPath != root {
			relPath, err := filepath.Rel(root, currentPath)
			if err != nil || s.ignore.ShouldIgnore(relPath) {
				continue
			}
		}

		if info.Mode()&os.ModeSymlink != 0 {
			targetInfo, err := os.Stat(currentPath)
			if err != nil {
				VerboseLog(2, "skipping broken symlink %s: %v", currentPath, err)
				continue
			}
			if targetInfo.IsDir() && !s.followDirSymlink(currentPath, root) {
				continue
			}
			info = targetInfo
		}

		switch {
		case info.IsDir():
			children, ok := s.readDir(currentPath, state)
			if ok {
				pathQueue = insertSorted(pathQueue, children)
			}
		case info.Mode().IsRegular():
			state.result.TotalFiles++
			s.addFile(currentPath, state)
			if state.result.TotalFiles%scanProgressInterval == 0 {
				state.progress.Progress(StageScan, state.result.TotalFiles, 0)
			}
		}
	}

	return nil
}

// followDirSymlink applies the symlink mode to a directory symlink
func (s *Scanner) followDirSymlink(linkPath, root string) bool {
	switch s.symlinkMode {
	case "all":
		return true
	case "contained":
		target, err := filepath.EvalSymlinks(linkPath)
		if err != nil {
			return false
		}
		return isPathContained(target, root)
	default:
		return false
	}
}

// readDir lists a directory once per canonical path
func (s *Scanner) readDir(dirPath string, state *scanState) ([]string, bool) {
	canonical, err := filepath.EvalSymlinks(dirPath)
	if err != nil {
		VerboseLog(2, "skipping directory %s: %v", dirPath, err)
		return nil, false
	}
	if state.seenDirs[canonical] {
		DebugLog("scan", "directory %s already visited as %s", dirPath, canonical)
		return nil, false
	}
	state.seenDirs[canonical] = true

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		VerboseLog(2, "skipping directory %s: %v", dirPath, err)
		return nil, false
	}

	children := make([]string, 0, len(entries))
	for _, entry := range entries {
		children = append(children, filepath.Join(dirPath, entry.Name()))
	}
	return children, true
}

// addFile canonicalizes and measures one file, bucketing it if large enough
func (s *Scanner) addFile(filePath string, state *scanState) {
	canonical, err := filepath.EvalSymlinks(filePath)
	if err != nil {
		VerboseLog(2, "skipping %s: %v", filePath, err)
		return
	}
	info, err := os.Stat(canonical)
	if err != nil {
		VerboseLog(2, "skipping %s: %v", canonical, err)
		return
	}

	size := info.Size()
	if size < s.minFileSize {
		return
	}
	if state.seenFiles[canonical] {
		DebugLog("scan", "%s resolves to already bucketed %s", filePath, canonical)
		return
	}
	state.seenFiles[canonical] = true

	DebugLog("scan", "bucketed %s (%d bytes)", canonical, size)
	state.result.Buckets[size] = append(state.result.Buckets[size], canonical)
}

// insertSorted merges newPaths into the sorted existing queue
func insertSorted(existing []string, newPaths []string) []string {
	if len(newPaths) == 0 {
		return existing
	}
	sort.Strings(newPaths)
	if len(existing) == 0 {
		return newPaths
	}

	result := make([]string, 0, len(existing)+len(newPaths))
	i, j := 0, 0
	for i < len(existing) && j < len(newPaths) {
		if existing[i] <= newPaths[j] {
			result = append(result, existing[i])
			i++
		} else {
			result = append(result, newPaths[j])
			j++
		}
	}
	result = append(result, existing[i:]...)
	result = append(result, newPaths[j:]...)
	return result
}
