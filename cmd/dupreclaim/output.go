package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	dupreclaim "github.com/mattkeenan/dupreclaim/pkg"
)

const timeLayout = "2006-01-02 15:04:05"

// Printer renders results in the configured output format
type Printer struct {
	w      io.Writer
	format string // human, json or csv
}

// NewPrinter returns a Printer for format writing to w
func NewPrinter(w io.Writer, format string) *Printer {
	return &Printer{w: w, format: format}
}

func (p *Printer) printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling output: %w", err)
	}
	_, err = fmt.Fprintf(p.w, "%s\n", data)
	return err
}

func (p *Printer) printCSV(header []string, rows [][]string) error {
	cw := csv.NewWriter(p.w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

type summaryOutput struct {
	Session string `json:"session,omitempty"`
	dupreclaim.Summary
	HumanTotal     string `json:"human_total"`
	HumanDuplicate string `json:"human_duplicate"`
	Export         string `json:"export,omitempty"`
}

// Summary prints the scalar figures of a scan. An empty record set prints
// as zero duplicates.
func (p *Printer) Summary(sessionID string, agg *dupreclaim.Aggregation, exportPath string) error {
	summary, err := agg.Summary()
	if err != nil && agg.IsEmpty() {
		summary, err = dupreclaim.Summary{}, nil
	}
	if err != nil {
		return err
	}

	out := summaryOutput{
		Session:        sessionID,
		Summary:        summary,
		HumanTotal:     dupreclaim.HumanSize(summary.TotalSize),
		HumanDuplicate: dupreclaim.HumanSize(summary.DuplicateSize),
		Export:         exportPath,
	}

	switch p.format {
	case "json":
		return p.printJSON(out)
	case "csv":
		return p.printCSV(
			[]string{"session", "records", "unique_groups", "duplicate_groups", "total_size", "duplicate_size", "export"},
			[][]string{{
				out.Session,
				strconv.Itoa(out.Records),
				strconv.Itoa(out.UniqueGroups),
				strconv.Itoa(out.DuplicateGroups),
				strconv.FormatInt(out.TotalSize, 10),
				strconv.FormatInt(out.DuplicateSize, 10),
				out.Export,
			}},
		)
	}

	if out.Records == 0 {
		_, err := fmt.Fprintf(p.w, "No duplicate files found\n")
		return err
	}
	fmt.Fprintf(p.w, "Duplicate files:   %d\n", out.Records)
	fmt.Fprintf(p.w, "Content groups:    %d\n", out.UniqueGroups)
	fmt.Fprintf(p.w, "Total size:        %s\n", out.HumanTotal)
	fmt.Fprintf(p.w, "Reclaimable:       %s\n", out.HumanDuplicate)
	if out.Export != "" {
		fmt.Fprintf(p.w, "Exported to:       %s\n", out.Export)
	}
	return nil
}

// Groups prints one representative row per group
func (p *Printer) Groups(grouping dupreclaim.Grouping, rows []dupreclaim.GroupRow) error {
	switch p.format {
	case "json":
		return p.printJSON(rows)
	case "csv":
		records := make([][]string, 0, len(rows))
		for _, row := range rows {
			records = append(records, []string{
				row.Key,
				strconv.Itoa(row.Count),
				strconv.FormatInt(row.Size, 10),
				strconv.FormatInt(row.TotalSize, 10),
				strconv.FormatInt(row.DuplicateSize, 10),
				row.ModTime.Format(time.RFC3339),
				row.CreatedAt.Format(time.RFC3339),
			})
		}
		return p.printCSV([]string{grouping.String() + "_hash", "count", "size", "total_size", "duplicate_size", "modified", "created"}, records)
	}

	fmt.Fprintf(p.w, "%-40s %6s %12s %12s  %s\n", grouping.String()+" hash", "count", "size", "reclaimable", "created")
	for _, row := range rows {
		fmt.Fprintf(p.w, "%-40s %6d %12s %12s  %s\n",
			row.Key, row.Count, row.HumanSize, dupreclaim.HumanSize(row.DuplicateSize),
			row.CreatedAt.Local().Format(timeLayout))
	}
	return nil
}

// Records prints member rows with their group counters
func (p *Printer) Records(views []dupreclaim.RecordView) error {
	switch p.format {
	case "json":
		return p.printJSON(views)
	case "csv":
		records := make([][]string, 0, len(views))
		for _, v := range views {
			records = append(records, []string{
				v.Hash,
				v.Path,
				v.Name,
				strconv.FormatInt(v.Size, 10),
				v.PartialHash,
				v.ModTime.Format(time.RFC3339Nano),
				v.CreatedAt.Format(time.RFC3339Nano),
				strconv.Itoa(v.HashCount),
				strconv.Itoa(v.PartialHashCount),
			})
		}
		return p.printCSV([]string{"hash", "path", "name", "size", "partial_hash", "modified", "created", "hash_count", "partial_hash_count"}, records)
	}

	for _, v := range views {
		fmt.Fprintf(p.w, "%s  %10s  %s  %s\n",
			v.Hash, v.HumanSize, v.CreatedAt.Local().Format(timeLayout), v.Path)
	}
	return nil
}

// Cleanup prints the outcome of a move or delete batch
func (p *Printer) Cleanup(summary *dupreclaim.CleanupSummary) error {
	switch p.format {
	case "json":
		return p.printJSON(summary)
	case "csv":
		records := make([][]string, 0, len(summary.Results))
		for _, r := range summary.Results {
			status := "OK"
			if !r.OK() {
				status = "FAILED"
			}
			records = append(records, []string{summary.Operation, status, r.Source, r.Target, r.Error})
		}
		return p.printCSV([]string{"operation", "status", "source", "target", "error"}, records)
	}

	verb := summary.Operation
	if summary.DryRun {
		verb = "would " + verb
	}
	for _, r := range summary.Results {
		switch {
		case !r.OK():
			fmt.Fprintf(p.w, "FAILED  %s: %s\n", r.Source, r.Error)
		case r.Target != "":
			fmt.Fprintf(p.w, "%s  %s -> %s\n", verb, r.Source, r.Target)
		default:
			fmt.Fprintf(p.w, "%s  %s\n", verb, r.Source)
		}
	}
	fmt.Fprintf(p.w, "%d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
	if summary.LogPath != "" {
		fmt.Fprintf(p.w, "Log: %s\n", summary.LogPath)
	}
	return nil
}

// Exports prints the export index
func (p *Printer) Exports(entries []dupreclaim.ExportEntry) error {
	switch p.format {
	case "json":
		return p.printJSON(entries)
	case "csv":
		records := make([][]string, 0, len(entries))
		for _, e := range entries {
			records = append(records, []string{
				e.File, e.Root, e.Saved.Format(time.RFC3339Nano), strconv.Itoa(e.Records), e.Session,
			})
		}
		return p.printCSV([]string{"file", "root", "saved", "records", "session"}, records)
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintf(p.w, "No exports\n")
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(p.w, "%s  %7d  %-40s %s\n", e.Saved.Local().Format(timeLayout), e.Records, e.File, e.Root)
	}
	return nil
}

// Config prints the effective configuration
func (p *Printer) Config(all *dupreclaim.AllConfig) error {
	if p.format == "json" {
		return p.printJSON(all)
	}

	fmt.Fprintf(p.w, "[filehash]\n")
	fmt.Fprintf(p.w, "default = %s\n\n", all.Hash.Default)
	fmt.Fprintf(p.w, "[scan]\n")
	fmt.Fprintf(p.w, "min_size = %s\n", all.Scan.MinSize)
	fmt.Fprintf(p.w, "partial_size = %s\n", all.Scan.PartialSize)
	fmt.Fprintf(p.w, "chunk_size = %s\n", all.Scan.ChunkSize)
	fmt.Fprintf(p.w, "symlinks = %s\n\n", all.Scan.Symlinks)
	fmt.Fprintf(p.w, "[output]\n")
	fmt.Fprintf(p.w, "format = %s\n\n", all.Output.Format)
	fmt.Fprintf(p.w, "[verbose]\n")
	fmt.Fprintf(p.w, "level = %d\n", all.Verbose.Level)
	fmt.Fprintf(p.w, "debug = %s\n\n", all.Verbose.Debug)
	fmt.Fprintf(p.w, "[performance]\n")
	fmt.Fprintf(p.w, "hash_workers = %d\n\n", all.Performance.HashWorkers)
	fmt.Fprintf(p.w, "[cleanup]\n")
	fmt.Fprintf(p.w, "keep = %s\n", all.Cleanup.Keep)
	fmt.Fprintf(p.w, "dry_run = %t\n", all.Cleanup.DryRun)
	return nil
}
