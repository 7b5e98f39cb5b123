package dupreclaim

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestScanner(t *testing.T, opts Options) *Scanner {
	t.Helper()
	scanner, err := NewScanner(opts)
	if err != nil {
		t.Fatalf("NewScanner failed: %v", err)
	}
	return scanner
}

func TestScanDropsSmallFiles(t *testing.T) {
	root, b, c := scenarioTree(t)

	result, err := newTestScanner(t, DefaultOptions()).Scan(nil, []string{root}, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if result.TotalFiles != 4 {
		t.Errorf("expected 4 files seen, got %d", result.TotalFiles)
	}
	if len(result.Buckets) != 1 {
		t.Fatalf("expected one size bucket, got %v", result.Buckets)
	}

	want := []string{b, filepath.Join(root, "D.bin"), c}
	if got := result.Buckets[4096]; !reflect.DeepEqual(got, want) {
		t.Errorf("bucket 4096 = %v, want %v", got, want)
	}
	for _, paths := range result.Buckets {
		for _, p := range paths {
			if filepath.Base(p) == "A.txt" {
				t.Errorf("file below minimum size was bucketed: %s", p)
			}
		}
	}
}

func TestScanMinimumSizeBoundary(t *testing.T) {
	root := canonicalDir(t, t.TempDir())
	writeTestFile(t, root, "below.bin", patternBytes(1023, 1))
	exact := writeTestFile(t, root, "exact.bin", patternBytes(1024, 1))

	result, err := newTestScanner(t, DefaultOptions()).Scan(nil, []string{root}, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got := result.Buckets[1024]; !reflect.DeepEqual(got, []string{exact}) {
		t.Errorf("expected only the 1024-byte file, got %v", result.Buckets)
	}
	if _, ok := result.Buckets[1023]; ok {
		t.Error("1023-byte file should not be bucketed")
	}
}

func TestScanEmptyRoot(t *testing.T) {
	root := t.TempDir()
	result, err := newTestScanner(t, DefaultOptions()).Scan(nil, []string{root}, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.TotalFiles != 0 || len(result.Buckets) != 0 {
		t.Errorf("expected empty result, got %d files and %v", result.TotalFiles, result.Buckets)
	}
}

func TestValidateRoots(t *testing.T) {
	root := canonicalDir(t, t.TempDir())
	file := writeTestFile(t, root, "file.txt", []byte("x"))
	nested := filepath.Join(root, "nested")
	if err := os.Mkdir(nested, 0755); err != nil {
		t.Fatalf("Failed to create nested dir: %v", err)
	}

	testCases := []struct {
		name    string
		roots   []string
		wantErr error
	}{
		{"no roots", nil, ErrNoRoots},
		{"empty path", []string{""}, ErrInvalidRoot},
		{"missing path", []string{filepath.Join(root, "missing")}, ErrInvalidRoot},
		{"file root", []string{file}, ErrInvalidRoot},
		{"valid root", []string{root}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateRoots(tc.roots)
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	roots, err := ValidateRoots([]string{nested, root, root})
	if err != nil {
		t.Fatalf("ValidateRoots failed: %v", err)
	}
	if !reflect.DeepEqual(roots, []string{root}) {
		t.Errorf("expected nested and repeated roots collapsed to %s, got %v", root, roots)
	}
}

func TestScanInvalidRootDoesNoWork(t *testing.T) {
	progress := &progressLog{}
	_, err := newTestScanner(t, DefaultOptions()).Scan(nil, []string{filepath.Join(t.TempDir(), "missing")}, progress)
	if !errors.Is(err, ErrInvalidRoot) {
		t.Fatalf("expected ErrInvalidRoot, got %v", err)
	}
	if len(progress.calls) != 0 {
		t.Errorf("expected no progress reports, got %v", progress.calls)
	}
}

func TestScanIgnorePatterns(t *testing.T) {
	root := canonicalDir(t, t.TempDir())
	kept := writeTestFile(t, root, "keep/file.bin", patternBytes(2048, 1))
	writeTestFile(t, root, "cache/file.bin", patternBytes(2048, 1))
	writeTestFile(t, root, "keep/file.tmp", patternBytes(2048, 1))

	opts := DefaultOptions()
	opts.IgnorePatterns = []string{`^cache(/|$)`, `\.tmp$`}

	result, err := newTestScanner(t, opts).Scan(nil, []string{root}, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got := result.Buckets[2048]; !reflect.DeepEqual(got, []string{kept}) {
		t.Errorf("expected only %s, got %v", kept, got)
	}
}

func TestScanSymlinks(t *testing.T) {
	root := canonicalDir(t, t.TempDir())
	outside := canonicalDir(t, t.TempDir())

	target := writeTestFile(t, root, "data/file.bin", patternBytes(2048, 1))
	writeTestFile(t, outside, "other.bin", patternBytes(2048, 2))

	if err := os.Symlink(target, filepath.Join(root, "link.bin")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "data"), filepath.Join(root, "datalink")); err != nil {
		t.Fatalf("Failed to create dir symlink: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "outside")); err != nil {
		t.Fatalf("Failed to create dir symlink: %v", err)
	}

	testCases := []struct {
		mode      string
		wantFiles int
	}{
		{"none", 1},      // file symlink resolves to the already bucketed target
		{"contained", 1}, // datalink revisits data, outside is skipped
		{"all", 2},       // outside/other.bin is added
	}

	for _, tc := range testCases {
		t.Run(tc.mode, func(t *testing.T) {
			opts := DefaultOptions()
			opts.SymlinkMode = tc.mode
			result, err := newTestScanner(t, opts).Scan(nil, []string{root}, nil)
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if got := result.Buckets.Files(); got != tc.wantFiles {
				t.Errorf("expected %d bucketed files, got %d: %v", tc.wantFiles, got, result.Buckets)
			}
			for _, p := range result.Buckets[2048] {
				if p != target && p != filepath.Join(outside, "other.bin") {
					t.Errorf("bucketed path is not canonical: %s", p)
				}
			}
		})
	}
}

func TestScanSymlinksToSameFile(t *testing.T) {
	root := canonicalDir(t, t.TempDir())
	outside := canonicalDir(t, t.TempDir())
	target := writeTestFile(t, outside, "photo.jpg", patternBytes(4096, 5))

	for _, name := range []string{"first.jpg", "nested/second.jpg"} {
		link := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
	}

	// Both links name one file, so it is bucketed once under its real path
	result, err := newTestScanner(t, DefaultOptions()).Scan(nil, []string{root}, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.TotalFiles != 2 {
		t.Errorf("expected both links counted as seen, got %d", result.TotalFiles)
	}
	if got := result.Buckets[4096]; len(got) != 1 || got[0] != target {
		t.Errorf("expected a single bucket entry %s, got %v", target, got)
	}

	// A file is never reported as a duplicate of itself
	records, err := FindDuplicates(nil, []string{root}, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("FindDuplicates failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no duplicates for two links to one file, got %+v", records)
	}
}

func TestScanProgress(t *testing.T) {
	root, _, _ := scenarioTree(t)
	progress := &progressLog{}

	if _, err := newTestScanner(t, DefaultOptions()).Scan(nil, []string{root}, progress); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	last, ok := progress.last(StageScan)
	if !ok {
		t.Fatal("no scan progress reported")
	}
	if last.processed != 4 || last.total != 4 {
		t.Errorf("expected final scan progress (4, 4), got (%d, %d)", last.processed, last.total)
	}
}

func TestScanInterrupted(t *testing.T) {
	root, _, _ := scenarioTree(t)
	shutdown := make(chan struct{})
	close(shutdown)

	if _, err := newTestScanner(t, DefaultOptions()).Scan(shutdown, []string{root}, nil); !errors.Is(err, ErrInterrupted) {
		t.Errorf("expected ErrInterrupted, got %v", err)
	}
}

func TestInsertSorted(t *testing.T) {
	got := insertSorted([]string{"/a", "/c"}, []string{"/d", "/b"})
	want := []string{"/a", "/b", "/c", "/d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("insertSorted = %v, want %v", got, want)
	}
}

func TestFileSizeBuckets(t *testing.T) {
	buckets := FileSizeBuckets{
		4096: {"/a", "/b"},
		1024: {"/c"},
		2048: {"/d", "/e", "/f"},
	}
	if got := buckets.Sizes(); !reflect.DeepEqual(got, []int64{1024, 2048, 4096}) {
		t.Errorf("Sizes = %v", got)
	}
	if got := buckets.Candidates(); got != 5 {
		t.Errorf("Candidates = %d, want 5", got)
	}
	if got := buckets.Files(); got != 6 {
		t.Errorf("Files = %d, want 6", got)
	}
}
