package dupreclaim

import (
	"os"
	"path/filepath"
	"testing"
)

// patternBytes returns size bytes derived from seed
func patternBytes(size int, seed byte) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i%251) ^ seed
	}
	return data
}

// writeTestFile writes data to dir/name, creating parent directories
func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// canonicalDir resolves symlinks in a temp dir (macOS /var -> /private/var)
func canonicalDir(t *testing.T, dir string) string {
	t.Helper()
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("Failed to resolve %s: %v", dir, err)
	}
	return real
}

// scenarioTree builds the A/B/C/D layout: A is too small, B and C are
// identical, D has B's size but a different prefix
func scenarioTree(t *testing.T) (root, b, c string) {
	t.Helper()
	root = canonicalDir(t, t.TempDir())

	writeTestFile(t, root, "A.txt", patternBytes(500, 1))
	content := patternBytes(4096, 2)
	b = writeTestFile(t, root, "B.bin", content)
	c = writeTestFile(t, root, "sub/C.bin", content)
	writeTestFile(t, root, "D.bin", patternBytes(4096, 3))
	return root, b, c
}

// progressLog records every progress call
type progressLog struct {
	calls []progressCall
}

type progressCall struct {
	stage            Stage
	processed, total int
}

func (p *progressLog) Progress(stage Stage, processed, total int) {
	p.calls = append(p.calls, progressCall{stage, processed, total})
}

func (p *progressLog) last(stage Stage) (progressCall, bool) {
	for i := len(p.calls) - 1; i >= 0; i-- {
		if p.calls[i].stage == stage {
			return p.calls[i], true
		}
	}
	return progressCall{}, false
}
