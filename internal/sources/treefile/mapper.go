package treefile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/marksync/marksync/internal/domain"
)

// Mapper converts tree file config to domain bookmark nodes.
type Mapper struct{}

// NewMapper creates a new tree mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// MapTree converts a TreeConfig into domain root nodes with parent ids and
// sibling indexes assigned.
func (m *Mapper) MapTree(config *TreeConfig) ([]*domain.BookmarkNode, error) {
	if config == nil || len(config.Roots) == 0 {
		return nil, fmt.Errorf("no nodes found in tree config")
	}

	now := time.Now()
	roots := make([]*domain.BookmarkNode, 0, len(config.Roots))
	for i, entry := range config.Roots {
		node, err := m.mapEntry(entry, "", i, now)
		if err != nil {
			return nil, err
		}
		roots = append(roots, node)
	}

	return roots, nil
}

func (m *Mapper) mapEntry(entry NodeEntry, parentID string, index int, now time.Time) (*domain.BookmarkNode, error) {
	if entry.Title == "" && entry.URL == "" {
		return nil, fmt.Errorf("tree entry under %q has neither title nor url", parentID)
	}
	if entry.URL != "" && len(entry.Children) > 0 {
		return nil, fmt.Errorf("tree entry %q has both url and children", entry.Title)
	}

	id := entry.ID
	if id == "" {
		id = generateNodeID(entry.URL, entry.Title, parentID)
	}

	node := &domain.BookmarkNode{
		ID:        id,
		ParentID:  parentID,
		Title:     entry.Title,
		URL:       entry.URL,
		Index:     index,
		Notes:     entry.Notes,
		Tags:      entry.Tags,
		DateAdded: now,
	}

	for i, child := range entry.Children {
		childNode, err := m.mapEntry(child, id, i, now)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}
	if len(node.Children) > 0 {
		node.DateGroupModified = now
	}

	return node, nil
}

// generateNodeID creates a stable id from the node's url (or title and
// parent for folders), so re-importing the same file yields the same ids.
func generateNodeID(url, title, parentID string) string {
	seed := url
	if seed == "" {
		seed = parentID + "/" + title
	}
	hash := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(hash[:])[:16]
}
