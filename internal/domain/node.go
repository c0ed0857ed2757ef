package domain

import (
	"fmt"
	"time"
)

// BookmarkNode represents one bookmark or folder in a tree snapshot.
//
// A node is either a folder (Children may be present, no URL) or a leaf
// (URL present, no Children). Within one snapshot the ID is unique.
type BookmarkNode struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the stable identity of the node within a tree snapshot.
	ID string `json:"id"`

	// ParentID references the containing folder. Empty for roots.
	ParentID string `json:"parentId,omitempty"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// Title is the display name of the bookmark or folder.
	Title string `json:"title"`

	// URL is the bookmark target. Empty for folders.
	URL string `json:"url,omitempty"`

	// Index is the sibling position inside the parent folder.
	Index int `json:"index,omitempty"`

	// Children holds the ordered child nodes (folders only).
	Children []*BookmarkNode `json:"children,omitempty"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// DateAdded is the creation timestamp.
	DateAdded time.Time `json:"dateAdded,omitempty"`

	// DateModified is updated on any mutation of the node itself.
	DateModified time.Time `json:"dateModified,omitempty"`

	// DateGroupModified is updated when a folder's children change.
	DateGroupModified time.Time `json:"dateGroupModified,omitempty"`

	// Notes and Tags come from the side metadata store, keyed by node ID.
	// They travel with the node during a sync pass only.
	Notes string   `json:"notes,omitempty"`
	Tags  []string `json:"tags,omitempty"`

	// Resolution carries the audit annotation stamped by the resolution
	// engine. Nil for nodes that never went through conflict resolution.
	Resolution *ResolutionStamp `json:"resolution,omitempty"`
}

// ResolutionStamp is the audit annotation attached to a resolved node.
type ResolutionStamp struct {
	Strategy   string    `json:"strategy"`
	Reason     string    `json:"reason"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// FieldChange records one field-level difference between two node versions.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// IsFolder reports whether the node is a folder.
func (n *BookmarkNode) IsFolder() bool {
	return n != nil && n.URL == ""
}

// Clone returns a deep copy of the node and its subtree.
func (n *BookmarkNode) Clone() *BookmarkNode {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Tags != nil {
		cp.Tags = append([]string(nil), n.Tags...)
	}
	if n.Resolution != nil {
		stamp := *n.Resolution
		cp.Resolution = &stamp
	}
	if n.Children != nil {
		cp.Children = make([]*BookmarkNode, 0, len(n.Children))
		for _, child := range n.Children {
			cp.Children = append(cp.Children, child.Clone())
		}
	}
	return &cp
}

// Validate checks the structural invariants of a single node.
// Violations are reported to the caller and never retried.
func (n *BookmarkNode) Validate() error {
	if n == nil {
		return fmt.Errorf("bookmark node is nil")
	}
	if n.ID == "" {
		return fmt.Errorf("bookmark node has no id")
	}
	if n.URL != "" && len(n.Children) > 0 {
		return fmt.Errorf("bookmark node %s has both url and children", n.ID)
	}
	return nil
}

// Flatten walks the given roots in pre-order and returns an id-keyed map
// containing folders and leaves alike. Duplicate ids keep the first node seen.
func Flatten(roots []*BookmarkNode) map[string]*BookmarkNode {
	nodes := make(map[string]*BookmarkNode)
	var walk func(n *BookmarkNode)
	walk = func(n *BookmarkNode) {
		if n == nil {
			return
		}
		if _, seen := nodes[n.ID]; !seen {
			nodes[n.ID] = n
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return nodes
}
