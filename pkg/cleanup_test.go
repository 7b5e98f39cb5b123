package dupreclaim

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func readLogLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log %s: %v", path, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestMoveFilesCollision(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	existing := []byte("already here")
	writeTestFile(t, dest, "report.pdf", existing)

	first := writeTestFile(t, src, "one/report.pdf", patternBytes(2048, 1))
	second := writeTestFile(t, src, "two/report.pdf", patternBytes(2048, 2))

	summary, err := MoveFiles([]string{first, second}, dest, CleanupOptions{})
	if err != nil {
		t.Fatalf("MoveFiles failed: %v", err)
	}

	if summary.Succeeded != 2 || summary.Failed != 0 {
		t.Errorf("expected 2 successes and 0 failures, got %d and %d", summary.Succeeded, summary.Failed)
	}
	if summary.Destination != dest {
		t.Errorf("expected destination %s, got %s", dest, summary.Destination)
	}

	// The pre-existing file is untouched
	if data, err := os.ReadFile(filepath.Join(dest, "report.pdf")); err != nil || !bytes.Equal(data, existing) {
		t.Errorf("existing destination file was modified: %q, %v", data, err)
	}

	for i, name := range []string{"report_1.pdf", "report_2.pdf"} {
		want := patternBytes(2048, byte(i+1))
		data, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("expected %s in destination: %v", name, err)
		}
		if !bytes.Equal(data, want) {
			t.Errorf("%s has wrong content", name)
		}
		if summary.Results[i].Target != filepath.Join(dest, name) {
			t.Errorf("result %d target = %s, want %s", i, summary.Results[i].Target, name)
		}
	}

	for _, p := range []string{first, second} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("source %s still exists", p)
		}
	}

	lines := readLogLines(t, filepath.Join(dest, CleanupLogName))
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), lines)
	}
	for i, line := range lines {
		fields := strings.Split(line, "\t")
		if len(fields) != 5 || fields[1] != OpMove || fields[2] != "OK" {
			t.Errorf("unexpected log line %d: %q", i, line)
		}
	}
}

func TestMoveFilesFailureDoesNotAbort(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "new", "dest")

	good := writeTestFile(t, src, "good.bin", patternBytes(1024, 1))
	missing := filepath.Join(src, "missing.bin")

	summary, err := MoveFiles([]string{missing, good}, dest, CleanupOptions{})
	if err != nil {
		t.Fatalf("MoveFiles failed: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Errorf("expected 1 success and 1 failure, got %d and %d", summary.Succeeded, summary.Failed)
	}
	if summary.Results[0].OK() || summary.Results[0].Error == "" {
		t.Errorf("expected failure recorded for missing file, got %+v", summary.Results[0])
	}
	if _, err := os.Stat(filepath.Join(dest, "good.bin")); err != nil {
		t.Errorf("good file not moved: %v", err)
	}

	lines := readLogLines(t, filepath.Join(dest, CleanupLogName))
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %q", lines)
	}
	if !strings.Contains(lines[0], "\tFAILED\t") || len(strings.Split(lines[0], "\t")) != 6 {
		t.Errorf("expected failure line with reason, got %q", lines[0])
	}
}

func TestMoveFilesInvalidDestination(t *testing.T) {
	src := t.TempDir()
	file := writeTestFile(t, src, "file.bin", patternBytes(1024, 1))

	if _, err := MoveFiles([]string{file}, "", CleanupOptions{}); !errors.Is(err, ErrInvalidDestination) {
		t.Errorf("expected ErrInvalidDestination for empty path, got %v", err)
	}
	if _, err := MoveFiles([]string{file}, file, CleanupOptions{}); !errors.Is(err, ErrInvalidDestination) {
		t.Errorf("expected ErrInvalidDestination for file destination, got %v", err)
	}
	if _, err := os.Stat(file); err != nil {
		t.Errorf("source touched by rejected move: %v", err)
	}
}

func TestMoveFilesDryRun(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeTestFile(t, dest, "a.txt", []byte("x"))
	first := writeTestFile(t, src, "1/a.txt", patternBytes(1024, 1))
	second := writeTestFile(t, src, "2/a.txt", patternBytes(1024, 2))

	summary, err := MoveFiles([]string{first, second}, dest, CleanupOptions{DryRun: true})
	if err != nil {
		t.Fatalf("MoveFiles failed: %v", err)
	}
	if !summary.DryRun || summary.Succeeded != 2 {
		t.Errorf("unexpected dry run summary: %+v", summary)
	}
	if summary.Results[0].Target != filepath.Join(dest, "a_1.txt") || summary.Results[1].Target != filepath.Join(dest, "a_2.txt") {
		t.Errorf("unexpected planned targets: %+v", summary.Results)
	}
	for _, p := range []string{first, second} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("dry run moved %s", p)
		}
	}
	if _, err := os.Stat(filepath.Join(dest, CleanupLogName)); !os.IsNotExist(err) {
		t.Error("dry run wrote a log file")
	}
}

func TestDeleteFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.bin", patternBytes(1024, 1))
	b := writeTestFile(t, dir, "b.bin", patternBytes(1024, 2))
	logPath := filepath.Join(dir, "delete.log")

	summary, err := DeleteFiles([]string{a, filepath.Join(dir, "missing"), b}, logPath, CleanupOptions{})
	if err != nil {
		t.Fatalf("DeleteFiles failed: %v", err)
	}
	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Errorf("expected 2 successes and 1 failure, got %d and %d", summary.Succeeded, summary.Failed)
	}
	for _, p := range []string{a, b} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s not deleted", p)
		}
	}
	if lines := readLogLines(t, logPath); len(lines) != 3 {
		t.Errorf("expected 3 log lines, got %q", lines)
	}
}

func TestDeleteFilesDryRun(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.bin", patternBytes(1024, 1))

	summary, err := DeleteFiles([]string{a}, "", CleanupOptions{DryRun: true})
	if err != nil {
		t.Fatalf("DeleteFiles failed: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Errorf("expected dry run success, got %+v", summary)
	}
	if _, err := os.Stat(a); err != nil {
		t.Errorf("dry run deleted %s", a)
	}
}

func TestCandidateName(t *testing.T) {
	testCases := []struct {
		name string
		n    int
		want string
	}{
		{"photo.jpg", 0, "photo.jpg"},
		{"photo.jpg", 1, "photo_1.jpg"},
		{"photo.jpg", 12, "photo_12.jpg"},
		{"archive.tar.gz", 2, "archive.tar_2.gz"},
		{"README", 3, "README_3"},
		{".bashrc", 1, ".bashrc_1"},
	}
	for _, tc := range testCases {
		if got := candidateName(tc.name, tc.n); got != tc.want {
			t.Errorf("candidateName(%q, %d) = %q, want %q", tc.name, tc.n, got, tc.want)
		}
	}
}

func TestCopyFileRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	src := writeTestFile(t, dir, "src.bin", patternBytes(1024, 1))
	dst := writeTestFile(t, dir, "dst.bin", []byte("keep"))

	if err := copyFile(src, dst); !errors.Is(err, os.ErrExist) {
		t.Errorf("expected ErrExist, got %v", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "keep" {
		t.Errorf("existing file overwritten: %q", data)
	}
}

func TestVerifyRetained(t *testing.T) {
	dir := t.TempDir()
	hasher, err := NewHasher(DefaultOptions())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	intact := writeTestFile(t, dir, "intact/keep.bin", patternBytes(4096, 1))
	intactHash, err := hasher.HashHex(intact, HashFull)
	if err != nil {
		t.Fatalf("HashHex failed: %v", err)
	}
	changed := writeTestFile(t, dir, "changed/keep.bin", patternBytes(4096, 2))
	changedHash, err := hasher.HashHex(changed, HashFull)
	if err != nil {
		t.Fatalf("HashHex failed: %v", err)
	}
	missing := filepath.Join(dir, "missing/keep.bin")

	// Same size, different content
	writeTestFile(t, dir, "changed/keep.bin", patternBytes(4096, 9))

	excess := []ExcessCopy{
		{Path: "/x/intact-1", Hash: intactHash, Kept: intact},
		{Path: "/x/changed-1", Hash: changedHash, Kept: changed},
		{Path: "/x/intact-2", Hash: intactHash, Kept: intact},
		{Path: "/x/missing-1", Hash: "abcd", Kept: missing},
		{Path: "/x/missing-2", Hash: "abcd", Kept: missing},
	}

	verified, rejected := VerifyRetained(excess, hasher)
	if !reflect.DeepEqual(verified, []string{"/x/intact-1", "/x/intact-2"}) {
		t.Errorf("unexpected verified paths: %v", verified)
	}
	if len(rejected) != 3 {
		t.Fatalf("expected 3 rejected paths, got %+v", rejected)
	}
	for i, want := range []string{"/x/changed-1", "/x/missing-1", "/x/missing-2"} {
		if rejected[i].Source != want || !errors.Is(rejected[i].Err, ErrRetainedChanged) {
			t.Errorf("rejected[%d] = %+v, want %s with ErrRetainedChanged", i, rejected[i], want)
		}
	}

	summary := &CleanupSummary{Operation: OpDelete}
	summary.Reject(rejected)
	if summary.Failed != 3 || summary.Succeeded != 0 || summary.Results[0].Error == "" {
		t.Errorf("rejected results not counted as failures: %+v", summary)
	}
}
