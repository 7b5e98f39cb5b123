package dupreclaim

import (
	"fmt"
	"sort"
	"time"
)

// Grouping selects how records are grouped for aggregate queries
type Grouping int

const (
	GroupByFullHash    Grouping = 0 // Exact content identity
	GroupByPartialHash Grouping = 1 // Shared 2048-byte prefix digest
)

func (g Grouping) String() string {
	switch g {
	case GroupByFullHash:
		return FullHashContext
	case GroupByPartialHash:
		return PartialHashContext
	default:
		return fmt.Sprintf("Grouping(%d)", int(g))
	}
}

// ParseGrouping converts "full"/"partial" (or "0"/"1") to a Grouping
func ParseGrouping(name string) (Grouping, error) {
	switch name {
	case FullHashContext, "0":
		return GroupByFullHash, nil
	case PartialHashContext, "1":
		return GroupByPartialHash, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidGrouping, name)
	}
}

// RecordView is a record plus its display counters
type RecordView struct {
	DuplicateRecord
	HashCount        int `json:"hash_count"`         // Records sharing the full hash
	PartialHashCount int `json:"partial_hash_count"` // Records sharing the partial hash
}

// GroupSummary holds the reclamation figures for one group
type GroupSummary struct {
	TotalSize     int64 `json:"total_size"`
	Count         int   `json:"count"`
	DuplicateSize int64 `json:"duplicate_size"`
}

// GroupRow is the representative row of one group. Size and the two
// timestamps are medians over the members.
type GroupRow struct {
	Key           string    `json:"key"`
	Count         int       `json:"count"`
	Size          int64     `json:"size"`
	HumanSize     string    `json:"human_size"`
	TotalSize     int64     `json:"total_size"`
	DuplicateSize int64     `json:"duplicate_size"`
	ModTime       time.Time `json:"modified"`
	CreatedAt     time.Time `json:"created"`
}

// Summary collects the scalar figures of a completed scan
type Summary struct {
	TotalSize       int64 `json:"total_size"`
	DuplicateSize   int64 `json:"duplicate_size"`
	UniqueGroups    int   `json:"unique_groups"`
	DuplicateGroups int   `json:"duplicate_groups"`
	Records         int   `json:"records"`
}

// Aggregation owns one scan's duplicate records and the groupings derived
// from them. It is read-only once built.
type Aggregation struct {
	records      []DuplicateRecord
	hashCount    map[string]int
	partialCount map[string]int
	groupings    [2]*groupIndex
	totalSize    int64
}

// NewAggregation copies records and builds both groupings. An empty input
// gives an engine whose IsEmpty reports true.
func NewAggregation(records []DuplicateRecord) *Aggregation {
	a := &Aggregation{
		records:      append([]DuplicateRecord(nil), records...),
		hashCount:    make(map[string]int),
		partialCount: make(map[string]int),
	}

	for _, rec := range a.records {
		a.hashCount[rec.Hash]++
		a.partialCount[rec.PartialHash]++
		a.totalSize += rec.Size
	}

	a.groupings[GroupByFullHash] = a.buildIndex(FullHashContext, func(r *DuplicateRecord) string { return r.Hash })
	a.groupings[GroupByPartialHash] = a.buildIndex(PartialHashContext, func(r *DuplicateRecord) string { return r.PartialHash })

	DebugLog("aggregate", "%d records, %d full groups, %d partial groups",
		len(a.records), a.groupings[GroupByFullHash].length(), a.groupings[GroupByPartialHash].length())
	return a
}

func (a *Aggregation) buildIndex(context string, keyOf func(*DuplicateRecord) string) *groupIndex {
	members := make(map[string][]int)
	for i := range a.records {
		key := keyOf(&a.records[i])
		members[key] = append(members[key], i)
	}

	index := newGroupIndex(context)
	for key, idx := range members {
		index.insert(&groupEntry{key: key, members: idx, row: a.groupRow(key, idx)})
	}
	return index
}

// groupRow folds a group's members into its representative row
func (a *Aggregation) groupRow(key string, members []int) GroupRow {
	sizes := make([]int64, len(members))
	modTimes := make([]time.Time, len(members))
	createTimes := make([]time.Time, len(members))
	var total int64
	for i, idx := range members {
		rec := &a.records[idx]
		sizes[i] = rec.Size
		modTimes[i] = rec.ModTime
		createTimes[i] = rec.CreatedAt
		total += rec.Size
	}

	median := medianInt64(sizes)
	return GroupRow{
		Key:           key,
		Count:         len(members),
		Size:          median,
		HumanSize:     HumanSize(median),
		TotalSize:     total,
		DuplicateSize: total - median,
		ModTime:       medianTime(modTimes),
		CreatedAt:     medianTime(createTimes),
	}
}

// IsEmpty reports the no-duplicates state
func (a *Aggregation) IsEmpty() bool {
	return len(a.records) == 0
}

// RecordCount returns the number of records
func (a *Aggregation) RecordCount() int {
	return len(a.records)
}

// index returns the grouping's index after checking the engine state
func (a *Aggregation) index(grouping Grouping) (*groupIndex, error) {
	if a.IsEmpty() {
		return nil, ErrNoDuplicates
	}
	if grouping != GroupByFullHash && grouping != GroupByPartialHash {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGrouping, int(grouping))
	}
	return a.groupings[grouping], nil
}

// TotalFileSize is the sum of sizes over every record
func (a *Aggregation) TotalFileSize() (int64, error) {
	if a.IsEmpty() {
		return 0, ErrNoDuplicates
	}
	return a.totalSize, nil
}

// TotalDuplicateSize is the space reclaimed by collapsing every group of the
// grouping to a single copy
func (a *Aggregation) TotalDuplicateSize(grouping Grouping) (int64, error) {
	index, err := a.index(grouping)
	if err != nil {
		return 0, err
	}

	var representative int64
	index.forEach(func(entry *groupEntry) bool {
		representative += entry.row.Size
		return true
	})
	return a.totalSize - representative, nil
}

// UniqueGroupCount is the number of distinct keys in the grouping
func (a *Aggregation) UniqueGroupCount(grouping Grouping) (int, error) {
	index, err := a.index(grouping)
	if err != nil {
		return 0, err
	}
	return index.length(), nil
}

// DuplicateGroupCount is the number of groups with at least two members
func (a *Aggregation) DuplicateGroupCount(grouping Grouping) (int, error) {
	index, err := a.index(grouping)
	if err != nil {
		return 0, err
	}

	count := 0
	index.forEach(func(entry *groupEntry) bool {
		if len(entry.members) >= 2 {
			count++
		}
		return true
	})
	return count, nil
}

func (a *Aggregation) group(hash string, grouping Grouping) (*groupEntry, error) {
	index, err := a.index(grouping)
	if err != nil {
		return nil, err
	}
	entry := index.find(hash)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s group %q", ErrGroupNotFound, grouping, hash)
	}
	return entry, nil
}

// GroupSummary returns the figures for one group
func (a *Aggregation) GroupSummary(hash string, grouping Grouping) (GroupSummary, error) {
	entry, err := a.group(hash, grouping)
	if err != nil {
		return GroupSummary{}, err
	}
	return GroupSummary{
		TotalSize:     entry.row.TotalSize,
		Count:         entry.row.Count,
		DuplicateSize: entry.row.DuplicateSize,
	}, nil
}

// GroupMembers returns copies of a group's records ordered by path
func (a *Aggregation) GroupMembers(hash string, grouping Grouping) ([]RecordView, error) {
	entry, err := a.group(hash, grouping)
	if err != nil {
		return nil, err
	}

	views := make([]RecordView, 0, len(entry.members))
	for _, idx := range entry.members {
		views = append(views, a.view(idx))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Path < views[j].Path })
	return views, nil
}

// Groups returns one representative row per group in ascending key order
func (a *Aggregation) Groups(grouping Grouping) ([]GroupRow, error) {
	index, err := a.index(grouping)
	if err != nil {
		return nil, err
	}

	rows := make([]GroupRow, 0, index.length())
	index.forEach(func(entry *groupEntry) bool {
		rows = append(rows, entry.row)
		return true
	})
	return rows, nil
}

// SelectExcess retains one member per full-hash group according to policy
// and returns every other member, groups in key order, members by path
func (a *Aggregation) SelectExcess(policy KeepPolicy) ([]ExcessCopy, error) {
	if !policy.valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, policy)
	}
	index, err := a.index(GroupByFullHash)
	if err != nil {
		return nil, err
	}

	var excess []ExcessCopy
	index.forEach(func(entry *groupEntry) bool {
		keep := entry.members[0]
		for _, idx := range entry.members[1:] {
			if policy.retains(&a.records[idx], &a.records[keep]) {
				keep = idx
			}
		}

		var others []string
		for _, idx := range entry.members {
			if idx != keep {
				others = append(others, a.records[idx].Path)
			}
		}
		sort.Strings(others)

		kept := a.records[keep].Path
		for _, path := range others {
			excess = append(excess, ExcessCopy{Path: path, Hash: entry.key, Kept: kept})
		}
		return true
	})

	VerboseLog(2, "Selected %d excess copies keeping %s", len(excess), policy)
	return excess, nil
}

// ExcessDuplicates returns the paths chosen by SelectExcess
func (a *Aggregation) ExcessDuplicates(policy KeepPolicy) ([]string, error) {
	excess, err := a.SelectExcess(policy)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(excess))
	for i, e := range excess {
		paths[i] = e.Path
	}
	return paths, nil
}

// Summary returns the scalar figures for the full-hash grouping
func (a *Aggregation) Summary() (Summary, error) {
	duplicateSize, err := a.TotalDuplicateSize(GroupByFullHash)
	if err != nil {
		return Summary{}, err
	}
	unique, err := a.UniqueGroupCount(GroupByFullHash)
	if err != nil {
		return Summary{}, err
	}
	dupGroups, err := a.DuplicateGroupCount(GroupByFullHash)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		TotalSize:       a.totalSize,
		DuplicateSize:   duplicateSize,
		UniqueGroups:    unique,
		DuplicateGroups: dupGroups,
		Records:         len(a.records),
	}, nil
}

// Snapshot returns an independent copy of every record with its counters
func (a *Aggregation) Snapshot() []RecordView {
	views := make([]RecordView, len(a.records))
	for i := range a.records {
		views[i] = a.view(i)
	}
	return views
}

func (a *Aggregation) view(idx int) RecordView {
	rec := a.records[idx]
	return RecordView{
		DuplicateRecord:  rec,
		HashCount:        a.hashCount[rec.Hash],
		PartialHashCount: a.partialCount[rec.PartialHash],
	}
}
