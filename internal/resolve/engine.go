// Package resolve implements the pluggable conflict resolution strategies
// and the batch resolver that drives them.
package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marksync/marksync/internal/domain"
	"github.com/marksync/marksync/internal/logger"
)

// Outcome is the result of resolving one conflict.
//
// A resolved outcome with a nil Bookmark means the deletion side won.
// An unresolved outcome signals the conflict must be surfaced for manual
// resolution; it is data, not an error.
type Outcome struct {
	ConflictID string               `json:"conflictId"`
	Resolved   bool                 `json:"resolved"`
	Bookmark   *domain.BookmarkNode `json:"bookmark,omitempty"`
	Reason     string               `json:"reason"`
	Strategy   Strategy             `json:"strategy"`
}

// BatchStats aggregates a batch's outcomes.
type BatchStats struct {
	Total      int                     `json:"total"`
	Resolved   int                     `json:"resolved"`
	Unresolved int                     `json:"unresolved"`
	BySeverity map[domain.Severity]int `json:"bySeverity"`
}

// BatchResult is the output of ResolveAll.
type BatchResult struct {
	Resolved   []Outcome  `json:"resolved"`
	Unresolved []Outcome  `json:"unresolved"`
	Stats      BatchStats `json:"stats"`
}

// PassContext carries per-sync-pass state, threaded explicitly through the
// batch call instead of living in ambient storage. A fresh context per pass
// means no cross-pass leakage of the auto-resolve counter.
type PassContext struct {
	AutoResolved int
}

// NewPassContext returns a fresh per-pass context.
func NewPassContext() *PassContext {
	return &PassContext{}
}

// Engine resolves conflicts according to a configured strategy.
type Engine struct {
	classifier *domain.Classifier
	history    HistoryStore
	log        logger.Logger
	now        func() time.Time
}

// NewEngine creates a resolution engine. A nil history store discards
// audit records.
func NewEngine(classifier *domain.Classifier, history HistoryStore, log logger.Logger) *Engine {
	if history == nil {
		history = NopHistory{}
	}
	return &Engine{
		classifier: classifier,
		history:    history,
		log:        log,
		now:        time.Now,
	}
}

// Resolve applies one strategy to one conflict. The analysis must come from
// the classifier for the same pair. Strategy-internal failures are caught
// and reported as an unresolved outcome, never as a panic or error.
func (e *Engine) Resolve(conflict domain.ConflictRecord, strategy Strategy, opts Options, analysis domain.Analysis, pass *PassContext) Outcome {
	opts = opts.Normalize()
	if pass == nil {
		pass = NewPassContext()
	}

	outcome := e.dispatch(conflict, strategy, opts, analysis, pass)
	outcome.ConflictID = conflict.ID
	outcome.Strategy = strategy

	if outcome.Resolved && outcome.Bookmark != nil {
		outcome.Bookmark = e.stamp(outcome.Bookmark, strategy, outcome.Reason)
	}

	return outcome
}

func (e *Engine) dispatch(conflict domain.ConflictRecord, strategy Strategy, opts Options, analysis domain.Analysis, pass *PassContext) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("strategy panicked",
				logger.String("strategy", string(strategy)),
				logger.String("conflict", conflict.ID))
			out = Outcome{Resolved: false, Reason: fmt.Sprintf("strategy failed: %v", r)}
		}
	}()

	switch strategy {
	case StrategyLocalWins:
		return Outcome{Resolved: true, Bookmark: conflict.Local.Clone(), Reason: "local version selected"}
	case StrategyRemoteWins:
		return Outcome{Resolved: true, Bookmark: conflict.Remote.Clone(), Reason: "remote version selected"}
	case StrategyNaiveMerge:
		return e.naiveMerge(conflict)
	case StrategyIntelligentMerge:
		return e.intelligentMerge(conflict, opts.Intelligent)
	case StrategyTimestampBased:
		return e.timestampBased(conflict, opts.Timestamp)
	case StrategyContentAware:
		return e.contentAware(conflict, opts.Content, analysis)
	case StrategyUserPreference:
		return e.userPreference(conflict, opts.Preferences, analysis)
	case StrategyAutoResolve:
		return e.autoResolve(conflict, opts, analysis, pass)
	case StrategyManual:
		return Outcome{Resolved: false, Reason: "manual resolution required"}
	default:
		return Outcome{Resolved: false, Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}
}

// stamp sets the last-modified timestamp and audit annotation on a resolved
// node. The input is already a private copy.
func (e *Engine) stamp(node *domain.BookmarkNode, strategy Strategy, reason string) *domain.BookmarkNode {
	now := e.now()
	node.DateModified = now
	node.Resolution = &domain.ResolutionStamp{
		Strategy:   string(strategy),
		Reason:     reason,
		ResolvedAt: now,
	}
	return node
}

// ResolveAll processes conflicts independently: a failure in one never
// aborts the rest. The full batch's history entries are persisted
// atomically at the end.
func (e *Engine) ResolveAll(ctx context.Context, conflicts []domain.ConflictRecord, strategy Strategy, opts Options) (*BatchResult, error) {
	opts = opts.Normalize()
	pass := NewPassContext()

	result := &BatchResult{
		Stats: BatchStats{
			Total:      len(conflicts),
			BySeverity: make(map[domain.Severity]int),
		},
	}
	entries := make([]HistoryEntry, 0, len(conflicts))

	for _, conflict := range conflicts {
		analysis := e.classifier.Classify(&conflict)

		outcome := e.Resolve(conflict, strategy, opts, analysis, pass)
		if outcome.Resolved {
			result.Resolved = append(result.Resolved, outcome)
			result.Stats.Resolved++
		} else {
			result.Unresolved = append(result.Unresolved, outcome)
			result.Stats.Unresolved++
		}
		result.Stats.BySeverity[conflict.Severity]++

		entries = append(entries, HistoryEntry{
			ID:         uuid.NewString(),
			ConflictID: conflict.ID,
			Strategy:   strategy,
			Type:       conflict.Type,
			Severity:   conflict.Severity,
			Resolved:   outcome.Resolved,
			Reason:     outcome.Reason,
			Timestamp:  e.now(),
		})
	}

	if err := e.history.AppendMany(ctx, entries); err != nil {
		return result, fmt.Errorf("failed to persist resolution history: %w", err)
	}

	e.log.Info("conflict batch resolved",
		logger.String("strategy", string(strategy)),
		logger.Int("total", result.Stats.Total),
		logger.Int("resolved", result.Stats.Resolved),
		logger.Int("unresolved", result.Stats.Unresolved))

	return result, nil
}
