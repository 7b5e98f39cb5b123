// Package dupreclaim finds duplicate files in directory trees and reports
// how much space removing the redundant copies would reclaim.
//
// # Core API
//
// Detection runs in two steps. A Scanner buckets files by size, then a
// Resolver hashes the first 2048 bytes of every same-size candidate and
// fully hashes only the prefix collisions:
//
//	records, err := dupreclaim.FindDuplicates(shutdownChan, []string{"/data"},
//		dupreclaim.DefaultOptions(), nil)
//
// The records feed an Aggregation, which answers the reclamation queries:
//
//	agg := dupreclaim.NewAggregation(records)
//	reclaim, err := agg.TotalDuplicateSize(dupreclaim.GroupByFullHash)
//	excess, err := agg.ExcessDuplicates(dupreclaim.KeepEarliest)
//
// # Background scans
//
// Session runs the same pipeline on its own goroutine and streams progress:
//
//	events, err := session.Start(roots)
//	for ev := range events {
//		...
//	}
//
// # Cleanup and export
//
// MoveFiles and DeleteFiles act on an excess list with per-file logging.
// Exporter writes the record set to CSV and tracks exports in an INI index.
//
// # Configuration
//
// Enable debug output:
//
//	dupreclaim.SetDebugFlags("scan,hash")
//	dupreclaim.SetVerboseLevel(2)
package dupreclaim
