package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dupreclaim "github.com/mattkeenan/dupreclaim/pkg"
)

func runApp(t *testing.T, configDir string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	argv := append([]string{"dupreclaim", "--config", configDir}, args...)
	err := app.Run(argv)
	dupreclaim.SetLogOutput(nil)
	return stdout.String(), stderr.String(), err
}

func fillBytes(size int, seed byte) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i%251) ^ seed
	}
	return data
}

// duplicateTree writes two identical files, one distinct file of the same
// size and one file below the minimum size
func duplicateTree(t *testing.T) (root, kept, extra string) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	write := func(name string, data []byte) string {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, data, 0644))
		return path
	}
	write("small.txt", fillBytes(100, 1))
	kept = write("B.bin", fillBytes(4096, 2))
	extra = write("sub/C.bin", fillBytes(4096, 2))
	write("D.bin", fillBytes(4096, 3))
	return root, kept, extra
}

type scanOutput struct {
	Session       string `json:"session"`
	Records       int    `json:"records"`
	UniqueGroups  int    `json:"unique_groups"`
	DuplicateSize int64  `json:"duplicate_size"`
	TotalSize     int64  `json:"total_size"`
	Export        string `json:"export"`
}

func TestScanJSONWithExport(t *testing.T) {
	root, _, _ := duplicateTree(t)
	configDir := t.TempDir()

	stdout, stderr, err := runApp(t, configDir, "--format", "json", "scan", "--export", root)
	require.NoError(t, err, stderr)

	var out scanOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 2, out.Records)
	assert.Equal(t, 1, out.UniqueGroups)
	assert.Equal(t, int64(8192), out.TotalSize)
	assert.Equal(t, int64(4096), out.DuplicateSize)
	assert.NotEmpty(t, out.Session)
	assert.Contains(t, stderr, "full-hash")

	require.NotEmpty(t, out.Export)
	assert.Equal(t, filepath.Join(configDir, exportsDirName), filepath.Dir(out.Export))
	assert.FileExists(t, out.Export)

	stdout, _, err = runApp(t, configDir, "--format", "json", "exports", "list")
	require.NoError(t, err)
	var entries []dupreclaim.ExportEntry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(out.Export), entries[0].File)
	assert.Equal(t, 2, entries[0].Records)
	assert.Equal(t, out.Session, entries[0].Session)
}

func TestScanNoDuplicates(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "one.bin"), fillBytes(2048, 1), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "two.bin"), fillBytes(2048, 2), 0644))

	stdout, _, err := runApp(t, t.TempDir(), "--quiet", "scan", root)
	require.NoError(t, err)
	assert.Equal(t, "No duplicate files found\n", stdout)
}

func TestScanRejectsMissingRoot(t *testing.T) {
	_, _, err := runApp(t, t.TempDir(), "-q", "scan", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, dupreclaim.ErrInvalidRoot)

	_, _, err = runApp(t, t.TempDir(), "-q", "scan")
	assert.ErrorIs(t, err, dupreclaim.ErrNoRoots)
}

func TestGroupsFromExport(t *testing.T) {
	root, kept, extra := duplicateTree(t)
	configDir := t.TempDir()

	stdout, _, err := runApp(t, configDir, "-q", "-f", "json", "scan", "--export", root)
	require.NoError(t, err)
	var out scanOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))

	stdout, _, err = runApp(t, configDir, "-f", "json", "groups", "--from", filepath.Base(out.Export))
	require.NoError(t, err)
	var rows []dupreclaim.GroupRow
	require.NoError(t, json.Unmarshal([]byte(stdout), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Count)
	assert.Equal(t, int64(4096), rows[0].Size)

	stdout, _, err = runApp(t, configDir, "-f", "json", "groups", "--from", out.Export, "--members", rows[0].Key)
	require.NoError(t, err)
	var views []dupreclaim.RecordView
	require.NoError(t, json.Unmarshal([]byte(stdout), &views))
	require.Len(t, views, 2)
	assert.Equal(t, kept, views[0].Path)
	assert.Equal(t, extra, views[1].Path)
	assert.Equal(t, 2, views[0].HashCount)

	_, _, err = runApp(t, configDir, "groups", "--from", out.Export, "--members", "0000")
	assert.ErrorIs(t, err, dupreclaim.ErrGroupNotFound)

	_, _, err = runApp(t, configDir, "groups", "--grouping", "exact", "--from", out.Export)
	assert.ErrorIs(t, err, dupreclaim.ErrInvalidGrouping)
}

func TestCleanMove(t *testing.T) {
	root, kept, extra := duplicateTree(t)
	dest := filepath.Join(t.TempDir(), "reclaimed")

	stdout, stderr, err := runApp(t, t.TempDir(), "clean", "--keep", "earliest", "--move-to", dest, root)
	require.NoError(t, err, stderr)

	assert.FileExists(t, kept)
	assert.NoFileExists(t, extra)
	assert.FileExists(t, filepath.Join(dest, "C.bin"))
	assert.FileExists(t, filepath.Join(dest, dupreclaim.CleanupLogName))
	assert.Contains(t, stdout, "1 succeeded, 0 failed")
}

func TestCleanDeleteDryRun(t *testing.T) {
	root, kept, extra := duplicateTree(t)
	configDir := t.TempDir()

	stdout, _, err := runApp(t, configDir, "-q", "clean", "--delete", "--dry-run", root)
	require.NoError(t, err)

	assert.FileExists(t, kept)
	assert.FileExists(t, extra)
	assert.Contains(t, stdout, "would delete  "+extra)
	assert.NoFileExists(t, filepath.Join(configDir, dupreclaim.CleanupLogName))
}

func TestCleanDeleteLogs(t *testing.T) {
	root, kept, extra := duplicateTree(t)
	configDir := t.TempDir()
	logPath := filepath.Join(t.TempDir(), "delete.log")

	_, _, err := runApp(t, configDir, "-q", "clean", "--delete", "--log", logPath, root)
	require.NoError(t, err)

	assert.FileExists(t, kept)
	assert.NoFileExists(t, extra)
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\tdelete\tOK\t"+extra)
}

func TestCleanRequiresOneAction(t *testing.T) {
	root, _, _ := duplicateTree(t)

	_, _, err := runApp(t, t.TempDir(), "-q", "clean", root)
	assert.Error(t, err)

	_, _, err = runApp(t, t.TempDir(), "-q", "clean", "--delete", "--move-to", t.TempDir(), root)
	assert.Error(t, err)

	_, _, err = runApp(t, t.TempDir(), "-q", "clean", "--delete", "--keep", "newest", root)
	assert.ErrorIs(t, err, dupreclaim.ErrInvalidPolicy)
}

func TestConfigSetAndShow(t *testing.T) {
	configDir := t.TempDir()

	stdout, _, err := runApp(t, configDir, "config", "set", "keep:largest", "default:sha256")
	require.NoError(t, err)
	assert.Contains(t, stdout, filepath.Join(configDir, dupreclaim.ConfigFileName))

	stdout, _, err = runApp(t, configDir, "--format", "json", "config", "show")
	require.NoError(t, err)
	var all dupreclaim.AllConfig
	require.NoError(t, json.Unmarshal([]byte(stdout), &all))
	assert.Equal(t, "largest", all.Cleanup.Keep)
	assert.Equal(t, "sha256", all.Hash.Default)

	_, _, err = runApp(t, configDir, "config", "set", "level:9")
	assert.Error(t, err)

	// A rejected value must not reach the file
	config, err := dupreclaim.LoadConfig(configDir)
	require.NoError(t, err)
	assert.Equal(t, 0, config.GetVerboseConfig().Level)
}

func TestGlobalFlagValidation(t *testing.T) {
	_, _, err := runApp(t, t.TempDir(), "--format", "xml", "config", "show")
	assert.Error(t, err)

	_, _, err = runApp(t, t.TempDir(), "-o", "nocolon", "config", "show")
	assert.Error(t, err)

	_, _, err = runApp(t, t.TempDir(), "--hash-workers", "0", "config", "show")
	assert.Error(t, err)
}

func TestCleanFromStaleExportKeepsLastCopy(t *testing.T) {
	testCases := []struct {
		name  string
		stale func(t *testing.T, kept string)
	}{
		{"retained copy removed", func(t *testing.T, kept string) {
			require.NoError(t, os.Remove(kept))
		}},
		{"retained copy rewritten", func(t *testing.T, kept string) {
			require.NoError(t, os.WriteFile(kept, fillBytes(4096, 7), 0644))
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root, kept, extra := duplicateTree(t)
			configDir := t.TempDir()

			stdout, _, err := runApp(t, configDir, "-q", "-f", "json", "scan", "--export", root)
			require.NoError(t, err)
			var out scanOutput
			require.NoError(t, json.Unmarshal([]byte(stdout), &out))

			tc.stale(t, kept)

			stdout, _, err = runApp(t, configDir, "-q", "clean", "--keep", "earliest", "--delete", "--from", out.Export)
			assert.Error(t, err)
			assert.FileExists(t, extra)
			assert.Contains(t, stdout, "0 succeeded, 1 failed")
			assert.Contains(t, stdout, "retained copy missing or changed")
		})
	}
}

func TestCleanFromExport(t *testing.T) {
	root, kept, extra := duplicateTree(t)
	configDir := t.TempDir()

	stdout, _, err := runApp(t, configDir, "-q", "-f", "json", "scan", "--export", root)
	require.NoError(t, err)
	var out scanOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))

	stdout, _, err = runApp(t, configDir, "-q", "clean", "--delete", "--from", out.Export)
	require.NoError(t, err)
	assert.FileExists(t, kept)
	assert.NoFileExists(t, extra)
	assert.Contains(t, stdout, "1 succeeded, 0 failed")
}
