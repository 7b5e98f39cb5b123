package dupreclaim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-ini/ini"
	"github.com/gosimple/slug"
)

// exportTimeLayout is used in export file names
const exportTimeLayout = "20060102-150405"

// ExportHeader is the header row of every export file
var ExportHeader = []string{"Hash", "Path", "FileName", "Size", "SizeInBytes", "PartialHash", "Modified", "Created"}

// ExportEntry describes one export in the index
type ExportEntry struct {
	File    string    `json:"file"`
	Root    string    `json:"root"`
	Saved   time.Time `json:"saved"`
	Records int       `json:"records"`
	Session string    `json:"session,omitempty"`
}

// Exporter writes record sets as CSV files into one directory and keeps
// an index of them in exports.ini
type Exporter struct {
	dir       string
	indexPath string
	now       func() time.Time
}

// NewExporter creates dir if needed and returns an exporter writing to it
func NewExporter(dir string) (*Exporter, error) {
	if dir == "" {
		return nil, fmt.Errorf("export directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	return &Exporter{
		dir:       dir,
		indexPath: filepath.Join(dir, ExportIndexName),
		now:       time.Now,
	}, nil
}

// Dir returns the export directory
func (e *Exporter) Dir() string {
	return e.dir
}

// Export writes records to a new CSV file named after sourceRoot and adds
// it to the index. It returns the path of the written file.
func (e *Exporter) Export(records []DuplicateRecord, sourceRoot string) (string, error) {
	return e.ExportSession(records, sourceRoot, "")
}

// ExportSession is Export with the scan session ID recorded in the index
func (e *Exporter) ExportSession(records []DuplicateRecord, sourceRoot, sessionID string) (string, error) {
	defer VerboseEnter()()

	saved := e.now()
	base := slug.Make(sourceRoot)
	if base == "" {
		base = "export"
	}
	name := base + "-" + saved.Format(exportTimeLayout) + ".csv"

	file, path, err := e.create(name)
	if err != nil {
		return "", err
	}

	if err := writeRecordsCSV(file, records); err != nil {
		file.Close()
		os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close export %s: %w", path, err)
	}

	entry := ExportEntry{
		File:    filepath.Base(path),
		Root:    sourceRoot,
		Saved:   saved,
		Records: len(records),
		Session: sessionID,
	}
	if err := e.addToIndex(entry); err != nil {
		return "", err
	}

	VerboseLog(1, "Exported %d records to %s", len(records), path)
	return path, nil
}

// create exclusively creates name in the export directory, adding a numeric
// suffix when it is taken
func (e *Exporter) create(name string) (*os.File, string, error) {
	for n := 0; n < maxNameAttempts; n++ {
		path := filepath.Join(e.dir, candidateName(name, n))
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to create export %s: %w", path, err)
		}
		return file, path, nil
	}
	return nil, "", fmt.Errorf("no free export name for %s", name)
}

func writeRecordsCSV(file *os.File, records []DuplicateRecord) error {
	w := csv.NewWriter(file)
	if err := w.Write(ExportHeader); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Hash,
			rec.Path,
			rec.Name,
			rec.HumanSize,
			strconv.FormatInt(rec.Size, 10),
			rec.PartialHash,
			rec.ModTime.Format(time.RFC3339Nano),
			rec.CreatedAt.Format(time.RFC3339Nano),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write export row for %s: %w", rec.Path, err)
		}
	}
	w.Flush()
	return w.Error()
}

// ReadExport loads the records of an export file
func ReadExport(path string) ([]DuplicateRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read export %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("export %s has no header", path)
	}

	records := make([]DuplicateRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(ExportHeader) {
			return nil, fmt.Errorf("export %s line %d: expected %d fields, got %d", path, i+2, len(ExportHeader), len(row))
		}
		size, err := strconv.ParseInt(row[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("export %s line %d: invalid size: %w", path, i+2, err)
		}
		modTime, err := time.Parse(time.RFC3339Nano, row[6])
		if err != nil {
			return nil, fmt.Errorf("export %s line %d: invalid modified time: %w", path, i+2, err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, row[7])
		if err != nil {
			return nil, fmt.Errorf("export %s line %d: invalid created time: %w", path, i+2, err)
		}
		records = append(records, DuplicateRecord{
			Hash:        row[0],
			Path:        row[1],
			Name:        row[2],
			Size:        size,
			HumanSize:   row[3],
			PartialHash: row[5],
			ModTime:     modTime,
			CreatedAt:   createdAt,
		})
	}
	return records, nil
}

// addToIndex appends entry as a new section of exports.ini
func (e *Exporter) addToIndex(entry ExportEntry) error {
	cfg, err := ini.LooseLoad(e.indexPath)
	if err != nil {
		return fmt.Errorf("failed to load export index %s: %w", e.indexPath, err)
	}

	section, err := cfg.NewSection(entry.File)
	if err != nil {
		return fmt.Errorf("failed to add export %s to index: %w", entry.File, err)
	}
	section.Key("root").SetValue(entry.Root)
	section.Key("saved").SetValue(entry.Saved.Format(time.RFC3339Nano))
	section.Key("records").SetValue(strconv.Itoa(entry.Records))
	section.Key("session").SetValue(entry.Session)

	if err := cfg.SaveTo(e.indexPath); err != nil {
		return fmt.Errorf("failed to save export index %s: %w", e.indexPath, err)
	}
	return nil
}

// Index lists the recorded exports in save order. A missing index is empty.
func (e *Exporter) Index() ([]ExportEntry, error) {
	cfg, err := ini.LooseLoad(e.indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load export index %s: %w", e.indexPath, err)
	}

	var entries []ExportEntry
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		saved, err := time.Parse(time.RFC3339Nano, section.Key("saved").String())
		if err != nil {
			VerboseLog(2, "export index entry %s has invalid time: %v", section.Name(), err)
		}
		entries = append(entries, ExportEntry{
			File:    section.Name(),
			Root:    section.Key("root").String(),
			Saved:   saved,
			Records: section.Key("records").MustInt(0),
			Session: section.Key("session").String(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Saved.Before(entries[j].Saved) })
	return entries, nil
}

// Lookup returns the index entry for an export file name
func (e *Exporter) Lookup(file string) (ExportEntry, bool, error) {
	entries, err := e.Index()
	if err != nil {
		return ExportEntry{}, false, err
	}
	base := filepath.Base(file)
	for _, entry := range entries {
		if entry.File == base {
			return entry, true, nil
		}
	}
	return ExportEntry{}, false, nil
}
