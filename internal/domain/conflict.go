package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// ConflictType classifies what diverged between two versions of a node.
type ConflictType string

const (
	ConflictTitleOnly  ConflictType = "title_only"
	ConflictURLOnly    ConflictType = "url_only"
	ConflictFolderOnly ConflictType = "folder_only"
	ConflictMixed      ConflictType = "mixed"
	ConflictDeletion   ConflictType = "deletion_conflict"
	ConflictDuplicate  ConflictType = "duplicate"
	ConflictPermission ConflictType = "permission"
)

// Severity is the coarse urgency tier guiding auto-resolution eligibility.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for gating comparisons (low < medium < high < critical).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 1
	}
}

// ConflictRecord pairs two versions of logically-the-same node.
// It is produced per sync pass and discarded after resolution.
type ConflictRecord struct {
	ID     string        `json:"id"`
	Local  *BookmarkNode `json:"local"`
	Remote *BookmarkNode `json:"remote"`

	// Derived by Classify.
	Type       ConflictType `json:"type"`
	Severity   Severity     `json:"severity"`
	Similarity float64      `json:"similarity"`
}

// Analysis is the classifier output consumed by the resolution engine.
type Analysis struct {
	Type            ConflictType `json:"type"`
	Severity        Severity     `json:"severity"`
	Similarity      float64      `json:"similarity"`
	TitleSimilarity float64      `json:"titleSimilarity"`
	URLSimilarity   float64      `json:"urlSimilarity"`
	ChangeSummary   []string     `json:"changeSummary,omitempty"`
}

// ClassifierConfig carries the tunable duplicate-detection thresholds.
// The defaults mirror long-standing behavior; they are settings, not invariants.
type ClassifierConfig struct {
	DuplicateURLThreshold   float64 // url similarity floor for duplicate detection
	DuplicateTitleThreshold float64 // title similarity floor for duplicate detection
	CriticalTitleThreshold  float64 // below this title similarity, escalate to critical
}

// DefaultClassifierConfig returns the standard thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		DuplicateURLThreshold:   0.9,
		DuplicateTitleThreshold: 0.8,
		CriticalTitleThreshold:  0.3,
	}
}

// Classifier determines conflict type and severity for divergent node pairs.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Analyze determines the conflict type, severity and similarity for a pair of
// node versions. Either side may be nil (deletion conflict).
//
// Type rules apply in order; the duplicate check runs after the field rules
// and may override an already-assigned type. That precedence is observable
// for borderline cases and must not be reordered.
func (c *Classifier) Analyze(local, remote *BookmarkNode) Analysis {
	a := Analysis{
		TitleSimilarity: StringSimilarity(nodeTitle(local), nodeTitle(remote)),
		URLSimilarity:   StringSimilarity(nodeURL(local), nodeURL(remote)),
		Similarity:      NodeSimilarity(local, remote),
	}

	a.Type = c.classifyType(local, remote, &a)
	a.Severity = c.classifySeverity(local, remote, a)
	a.ChangeSummary = summarizeChanges(local, remote)

	return a
}

// Classify fills the derived fields of a conflict record in place and
// returns the full analysis.
func (c *Classifier) Classify(rec *ConflictRecord) Analysis {
	a := c.Analyze(rec.Local, rec.Remote)
	rec.Type = a.Type
	rec.Severity = a.Severity
	rec.Similarity = a.Similarity
	return a
}

func (c *Classifier) classifyType(local, remote *BookmarkNode, a *Analysis) ConflictType {
	if local == nil || remote == nil {
		return ConflictDeletion
	}

	ctype := ConflictMixed
	switch {
	case local.Title != remote.Title && local.URL == remote.URL && local.ParentID == remote.ParentID:
		ctype = ConflictTitleOnly
	case local.URL != remote.URL && local.Title == remote.Title && local.ParentID == remote.ParentID:
		ctype = ConflictURLOnly
	case local.ParentID != remote.ParentID && local.Title == remote.Title && local.URL == remote.URL:
		ctype = ConflictFolderOnly
	}

	// Duplicate detection runs last and overrides the assigned type.
	if a.URLSimilarity >= c.cfg.DuplicateURLThreshold &&
		a.TitleSimilarity >= c.cfg.DuplicateTitleThreshold {
		return ConflictDuplicate
	}

	return ctype
}

func (c *Classifier) classifySeverity(local, remote *BookmarkNode, a Analysis) Severity {
	severity := SeverityMedium

	switch a.Type {
	case ConflictTitleOnly, ConflictFolderOnly, ConflictDuplicate:
		severity = SeverityLow
	case ConflictURLOnly:
		severity = SeverityMedium
	case ConflictDeletion:
		severity = SeverityHigh
	}

	// Escalation pass: absence, cross-domain url change, or a title rewrite
	// push the conflict to critical regardless of its baseline.
	switch {
	case local == nil || remote == nil:
		severity = SeverityCritical
	case domainsDiffer(local.URL, remote.URL):
		severity = SeverityCritical
	case a.TitleSimilarity < c.cfg.CriticalTitleThreshold:
		severity = SeverityCritical
	}

	return severity
}

// domainsDiffer reports whether two urls resolve to different hosts.
// Unparseable or empty urls never escalate on their own.
func domainsDiffer(a, b string) bool {
	if a == "" || b == "" || a == b {
		return false
	}
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	ha := strings.ToLower(ua.Hostname())
	hb := strings.ToLower(ub.Hostname())
	return ha != "" && hb != "" && ha != hb
}

func summarizeChanges(local, remote *BookmarkNode) []string {
	if local == nil {
		return []string{"deleted locally"}
	}
	if remote == nil {
		return []string{"deleted remotely"}
	}

	var changes []string
	if local.Title != remote.Title {
		changes = append(changes, fmt.Sprintf("title: %q -> %q", local.Title, remote.Title))
	}
	if local.URL != remote.URL {
		changes = append(changes, fmt.Sprintf("url: %q -> %q", local.URL, remote.URL))
	}
	if local.ParentID != remote.ParentID {
		changes = append(changes, fmt.Sprintf("folder: %q -> %q", local.ParentID, remote.ParentID))
	}
	if local.Notes != remote.Notes {
		changes = append(changes, "notes differ")
	}
	return changes
}

func nodeTitle(n *BookmarkNode) string {
	if n == nil {
		return ""
	}
	return n.Title
}

func nodeURL(n *BookmarkNode) string {
	if n == nil {
		return ""
	}
	return n.URL
}
