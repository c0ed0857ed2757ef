package index

import (
	"sort"
	"sync"
	"time"

	"github.com/marksync/marksync/internal/domain"
)

// Apply modes for merged trees.
const (
	ModeMerge   = "merge"   // upsert resolved nodes over the existing tree
	ModeReplace = "replace" // swap the whole tree
)

// TreeIndex holds the local bookmark tree as an id-keyed flat map.
// It is the tree source and sink for sync passes; snapshots handed out are
// deep copies, so a pass never observes concurrent mutation.
type TreeIndex struct {
	mu       sync.RWMutex
	nodes    map[string]*domain.BookmarkNode // ID -> node
	lastSync time.Time
}

// NewTreeIndex creates an empty tree index.
func NewTreeIndex() *TreeIndex {
	return &TreeIndex{
		nodes: make(map[string]*domain.BookmarkNode),
	}
}

// Snapshot returns a deep copy of every node, sorted by id.
func (idx *TreeIndex) Snapshot() []*domain.BookmarkNode {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	nodes := make([]*domain.BookmarkNode, 0, len(idx.nodes))
	for _, n := range idx.nodes {
		nodes = append(nodes, n.Clone())
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Get retrieves a node by id.
func (idx *TreeIndex) Get(id string) (*domain.BookmarkNode, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n, ok := idx.nodes[id]
	return n, ok
}

// Upsert adds or replaces a single node.
func (idx *TreeIndex) Upsert(n *domain.BookmarkNode) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.nodes[n.ID] = n
}

// Delete removes a node from the index.
func (idx *TreeIndex) Delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.nodes, id)
}

// Count returns the number of nodes in the index.
func (idx *TreeIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.nodes)
}

// Replace swaps the whole tree for the given nodes (flattened).
func (idx *TreeIndex) Replace(nodes []*domain.BookmarkNode) {
	flat := domain.Flatten(nodes)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.nodes = flat
}

// Merge upserts the given nodes (flattened) over the existing tree.
func (idx *TreeIndex) Merge(nodes []*domain.BookmarkNode) {
	flat := domain.Flatten(nodes)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for id, n := range flat {
		idx.nodes[id] = n
	}
}

// ApplyMergedTree writes a merged tree back in the requested mode.
func (idx *TreeIndex) ApplyMergedTree(nodes []*domain.BookmarkNode, mode string) {
	if mode == ModeReplace {
		idx.Replace(nodes)
		return
	}
	idx.Merge(nodes)
}

// MarkSynced records the completion time of a sync pass.
func (idx *TreeIndex) MarkSynced(t time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.lastSync = t
}

// LastSync returns the completion time of the last sync pass.
func (idx *TreeIndex) LastSync() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastSync
}
