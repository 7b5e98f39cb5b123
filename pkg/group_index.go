package dupreclaim

import (
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// groupEntry is one hash group: indexes into the engine's record slice plus
// the precomputed representative row
type groupEntry struct {
	key     string
	members []int
	row     GroupRow
}

// groupIndex keeps the groups of one grouping ordered by hash
type groupIndex struct {
	skiplist *zcsl.ZeroCopySkiplist[groupEntry, string, string]
	context  string
}

// newGroupIndex creates an empty index labelled with context
func newGroupIndex(context string) *groupIndex {
	getKeyFromItem := func(entry *groupEntry) string {
		return entry.key
	}

	getItemSize := func(entry *groupEntry) int {
		return len(entry.members)
	}

	cmpKey := func(a, b string) int {
		return strings.Compare(a, b)
	}

	return &groupIndex{
		skiplist: zcsl.MakeZeroCopySkiplist[groupEntry, string, string](16, getKeyFromItem, getItemSize, cmpKey),
		context:  context,
	}
}

// insert adds a group, returning false if the key is already present
func (gi *groupIndex) insert(entry *groupEntry) bool {
	return gi.skiplist.Insert(entry, gi.context)
}

// find looks up a group by hash
func (gi *groupIndex) find(key string) *groupEntry {
	node, _ := gi.skiplist.Find(key)
	if node == nil {
		return nil
	}
	return node.Item()
}

// forEach visits groups in ascending key order until callback returns false
func (gi *groupIndex) forEach(callback func(*groupEntry) bool) {
	for current := gi.skiplist.First(); current != nil; current = current.Next() {
		if !callback(current.Item()) {
			break
		}
	}
}

func (gi *groupIndex) length() int {
	return gi.skiplist.Length()
}
