// Package diff computes the delta between two bookmark tree snapshots.
//
// Equality is field-wise exact match; fuzzy matching is deferred to the
// conflict classifier downstream.
package diff

import (
	"sort"
	"strconv"
	"time"

	"github.com/marksync/marksync/internal/domain"
)

// ModifiedPair holds the two divergent versions of one node together with
// the per-field old/new values that differ.
type ModifiedPair struct {
	Source       *domain.BookmarkNode `json:"source"`
	Target       *domain.BookmarkNode `json:"target"`
	FieldChanges []domain.FieldChange `json:"fieldChanges"`
}

// Delta is the add/modify/delete/unchanged partition between two snapshots.
//
// The four partitions are disjoint and their id union equals the union of
// ids across both input snapshots. A delta is never mutated after Trees
// returns it.
type Delta struct {
	Added     []*domain.BookmarkNode `json:"added"`     // present only in source
	Deleted   []*domain.BookmarkNode `json:"deleted"`   // present only in target
	Modified  []ModifiedPair         `json:"modified"`  // present in both, differing
	Unchanged []*domain.BookmarkNode `json:"unchanged"` // identical in both

	Total   int `json:"total"`   // size of the id union
	Changes int `json:"changes"` // added + deleted + modified
}

// Trees diffs two tree snapshots keyed by node identity.
//
// Both trees are flattened (pre-order, folders and leaves alike) into
// id-keyed maps; one pass over source classifies added/modified/unchanged,
// and ids never visited from source are deleted. Runs in O(n).
//
// Output ordering is deterministic: each partition is sorted by node id.
func Trees(source, target []*domain.BookmarkNode) *Delta {
	src := domain.Flatten(source)
	tgt := domain.Flatten(target)

	delta := &Delta{}
	visited := make(map[string]bool, len(src))

	for id, sn := range src {
		visited[id] = true
		tn, ok := tgt[id]
		if !ok {
			delta.Added = append(delta.Added, sn)
			continue
		}
		changes := fieldChanges(sn, tn)
		if len(changes) > 0 {
			delta.Modified = append(delta.Modified, ModifiedPair{
				Source:       sn,
				Target:       tn,
				FieldChanges: changes,
			})
			continue
		}
		delta.Unchanged = append(delta.Unchanged, sn)
	}

	for id, tn := range tgt {
		if !visited[id] {
			delta.Deleted = append(delta.Deleted, tn)
		}
	}

	sortNodes(delta.Added)
	sortNodes(delta.Deleted)
	sortNodes(delta.Unchanged)
	sort.Slice(delta.Modified, func(i, j int) bool {
		return delta.Modified[i].Source.ID < delta.Modified[j].Source.ID
	})

	delta.Changes = len(delta.Added) + len(delta.Deleted) + len(delta.Modified)
	delta.Total = delta.Changes + len(delta.Unchanged)

	return delta
}

// fieldChanges compares the identity-relevant fields of two versions and
// records old/new values for every difference.
func fieldChanges(src, tgt *domain.BookmarkNode) []domain.FieldChange {
	var changes []domain.FieldChange

	add := func(field, oldV, newV string) {
		changes = append(changes, domain.FieldChange{Field: field, Old: oldV, New: newV})
	}

	if src.Title != tgt.Title {
		add("title", src.Title, tgt.Title)
	}
	if src.URL != tgt.URL {
		add("url", src.URL, tgt.URL)
	}
	if src.ParentID != tgt.ParentID {
		add("parentId", src.ParentID, tgt.ParentID)
	}
	if !src.DateAdded.Equal(tgt.DateAdded) {
		add("dateAdded", formatTime(src.DateAdded), formatTime(tgt.DateAdded))
	}
	if !src.DateGroupModified.Equal(tgt.DateGroupModified) {
		add("dateGroupModified", formatTime(src.DateGroupModified), formatTime(tgt.DateGroupModified))
	}
	if src.Index != tgt.Index {
		add("index", strconv.Itoa(src.Index), strconv.Itoa(tgt.Index))
	}

	return changes
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func sortNodes(nodes []*domain.BookmarkNode) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
}
