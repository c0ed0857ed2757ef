// Package syncer orchestrates a full sync pass: snapshot, diff, classify,
// resolve, and the ordered batched apply of the resulting delta.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/marksync/marksync/internal/codec"
	"github.com/marksync/marksync/internal/diff"
	"github.com/marksync/marksync/internal/domain"
	"github.com/marksync/marksync/internal/index"
	"github.com/marksync/marksync/internal/logger"
	"github.com/marksync/marksync/internal/optimizer"
	"github.com/marksync/marksync/internal/queue"
	"github.com/marksync/marksync/internal/resolve"
)

// OpPushSnapshot is the offline queue operation kind for a deferred
// snapshot upload.
const OpPushSnapshot = "push-snapshot"

// ErrSyncInProgress is returned when a pass is requested while another is
// still running. Sync passes are single-flight.
var ErrSyncInProgress = errors.New("sync pass already in progress")

// SnapshotStore is the remote/durable side of a sync pass.
type SnapshotStore interface {
	LoadRemoteSnapshot(ctx context.Context) ([]*domain.BookmarkNode, error)
	SaveRemoteSnapshot(ctx context.Context, nodes []*domain.BookmarkNode) error
	SaveLocalSnapshot(ctx context.Context, nodes []*domain.BookmarkNode) error
	SaveRawSnapshot(ctx context.Context, payload []byte) error
}

// MetadataStore supplies per-node notes and tags from the side store.
type MetadataStore interface {
	GetNotes(ctx context.Context, nodeID string) (string, error)
	GetTags(ctx context.Context, nodeID string) ([]string, error)
}

// PassResult is what a sync pass reports back to the caller. Unresolved
// conflicts are returned as data so the UI layer can surface them.
type PassResult struct {
	Added           int                     `json:"added"`
	Modified        int                     `json:"modified"`
	Deleted         int                     `json:"deleted"`
	Conflicts       []domain.ConflictRecord `json:"conflicts,omitempty"`
	ResolvedCount   int                     `json:"resolvedCount"`
	UnresolvedCount int                     `json:"unresolvedCount"`
	QueuedOps       int                     `json:"queuedOps"`
}

// Engine runs sync passes over the local tree index and the snapshot store.
type Engine struct {
	index      *index.TreeIndex
	snapshots  SnapshotStore
	metadata   MetadataStore
	classifier *domain.Classifier
	resolver   *resolve.Engine
	offline    *queue.Queue
	probe      optimizer.StateProbe
	codec      *codec.Codec
	baseOpts   optimizer.Options
	log        logger.Logger

	sleep    func(time.Duration) // throttle between batches, injectable for tests
	inFlight atomic.Bool
}

// Config wires an Engine.
type Config struct {
	Index      *index.TreeIndex
	Snapshots  SnapshotStore
	Metadata   MetadataStore // optional
	Classifier *domain.Classifier
	Resolver   *resolve.Engine
	Offline    *queue.Queue // optional
	Probe      optimizer.StateProbe
	Codec      *codec.Codec
	BaseOpts   optimizer.Options
	Logger     logger.Logger
}

// New creates a sync engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Index == nil {
		return nil, fmt.Errorf("syncer requires a tree index")
	}
	if cfg.Snapshots == nil {
		return nil, fmt.Errorf("syncer requires a snapshot store")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("syncer requires a resolution engine")
	}
	if cfg.Probe == nil {
		cfg.Probe = optimizer.StaticProbe{State: optimizer.SystemState{Tier: optimizer.TierNominal}}
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.New(codec.DefaultMaxEntries)
	}
	if cfg.BaseOpts.BatchSize == 0 {
		cfg.BaseOpts = optimizer.DefaultOptions()
	}

	return &Engine{
		index:      cfg.Index,
		snapshots:  cfg.Snapshots,
		metadata:   cfg.Metadata,
		classifier: cfg.Classifier,
		resolver:   cfg.Resolver,
		offline:    cfg.Offline,
		probe:      cfg.Probe,
		codec:      cfg.Codec,
		baseOpts:   cfg.BaseOpts,
		log:        cfg.Logger,
		sleep:      time.Sleep,
	}, nil
}

// RunSyncPass executes one full synchronization pass.
//
// Pass-level failures (cannot obtain either snapshot) abort with no partial
// apply. Per-conflict failures never abort the pass; they come back as
// unresolved conflicts in the result.
func (e *Engine) RunSyncPass(ctx context.Context, strategy resolve.Strategy, opts resolve.Options) (*PassResult, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer e.inFlight.Store(false)

	start := time.Now()
	tuned := optimizer.Optimize(e.baseOpts, e.probe.GetSystemState())

	local := e.index.Snapshot()
	e.enrichMetadata(ctx, local)

	remote, err := e.snapshots.LoadRemoteSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load remote snapshot: %w", err)
	}

	delta := diff.Trees(local, remote)
	e.log.Info("computed tree delta",
		logger.Int("total", delta.Total),
		logger.Int("changes", delta.Changes),
		logger.Int("conflict_candidates", len(delta.Modified)))

	result := &PassResult{
		Added:    len(delta.Added),
		Modified: len(delta.Modified),
		Deleted:  len(delta.Deleted),
	}

	batch, err := e.resolveConflicts(ctx, delta, strategy, opts)
	if err != nil {
		return nil, err
	}

	deletions, modifications := splitOutcomes(batch.Resolved)
	result.ResolvedCount = batch.Stats.Resolved
	result.UnresolvedCount = batch.Stats.Unresolved
	result.Conflicts = e.unresolvedRecords(delta, batch.Unresolved)

	// Apply order matters: deletions, then modifications, then additions.
	// This avoids transient duplicate-id states when a node is deleted in
	// one branch and recreated with the same id in another.
	e.applyChunked(ctx, deletions, tuned, func(n *domain.BookmarkNode) {
		e.index.Delete(n.ID)
	})
	e.applyChunked(ctx, modifications, tuned, e.index.Upsert)
	e.applyChunked(ctx, delta.Deleted, tuned, e.index.Upsert) // remote-only nodes join the local tree

	e.index.MarkSynced(time.Now())
	merged := e.index.Snapshot()

	if err := e.snapshots.SaveLocalSnapshot(ctx, merged); err != nil {
		e.log.Warn("failed to persist local snapshot", logger.Error(err))
	}

	if err := e.snapshots.SaveRemoteSnapshot(ctx, merged); err != nil {
		queued := e.deferUpload(ctx, merged, err)
		result.QueuedOps = queued
	}

	e.log.Info("sync pass complete",
		logger.Int("added", result.Added),
		logger.Int("modified", result.Modified),
		logger.Int("deleted", result.Deleted),
		logger.Int("unresolved", result.UnresolvedCount),
		logger.Duration("elapsed", time.Since(start)))

	return result, nil
}

// resolveConflicts routes the delta's modified pairs through the classifier
// and the resolution engine.
func (e *Engine) resolveConflicts(ctx context.Context, delta *diff.Delta, strategy resolve.Strategy, opts resolve.Options) (*resolve.BatchResult, error) {
	conflicts := make([]domain.ConflictRecord, 0, len(delta.Modified))
	for _, pair := range delta.Modified {
		conflicts = append(conflicts, domain.ConflictRecord{
			ID:     pair.Source.ID,
			Local:  pair.Source,
			Remote: pair.Target,
		})
	}

	batch, err := e.resolver.ResolveAll(ctx, conflicts, strategy, opts)
	if err != nil {
		return nil, fmt.Errorf("conflict resolution failed: %w", err)
	}
	return batch, nil
}

// applyChunked processes nodes in bounded chunks with a throttle point
// between chunks, honoring the optimizer's batch size and delay.
func (e *Engine) applyChunked(ctx context.Context, nodes []*domain.BookmarkNode, tuned optimizer.Options, apply func(*domain.BookmarkNode)) {
	size := tuned.BatchSize
	if size <= 0 {
		size = len(nodes)
	}
	for i := 0; i < len(nodes); i += size {
		if ctx.Err() != nil {
			return
		}
		end := i + size
		if end > len(nodes) {
			end = len(nodes)
		}
		for _, n := range nodes[i:end] {
			apply(n)
		}
		if end < len(nodes) && tuned.ThrottleDelay > 0 {
			e.sleep(tuned.ThrottleDelay)
		}
	}
}

// deferUpload intercepts a failed snapshot upload into the offline queue.
func (e *Engine) deferUpload(ctx context.Context, merged []*domain.BookmarkNode, cause error) int {
	e.log.Warn("remote snapshot upload failed", logger.Error(cause))
	if e.offline == nil {
		return 0
	}

	payload, err := e.codec.Compress(merged)
	if err != nil {
		e.log.Error("failed to compress snapshot for offline queue", logger.Error(err))
		return 0
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("failed to marshal deferred snapshot", logger.Error(err))
		return 0
	}

	if _, err := e.offline.Enqueue(ctx, OpPushSnapshot, data); err != nil {
		e.log.Error("failed to enqueue deferred upload", logger.Error(err))
		return 0
	}
	return 1
}

// ReplayOperation replays one deferred operation from the offline queue.
func (e *Engine) ReplayOperation(ctx context.Context, entry queue.Entry) error {
	switch entry.Kind {
	case OpPushSnapshot:
		return e.snapshots.SaveRawSnapshot(ctx, entry.Payload)
	default:
		return fmt.Errorf("unknown queued operation kind %q", entry.Kind)
	}
}

// DrainOffline replays the offline queue through the engine's handler.
func (e *Engine) DrainOffline(ctx context.Context) (*queue.DrainResult, error) {
	if e.offline == nil {
		return &queue.DrainResult{}, nil
	}
	tuned := optimizer.Optimize(e.baseOpts, e.probe.GetSystemState())
	return e.offline.Drain(ctx, e.ReplayOperation, tuned.BatchSize)
}

// enrichMetadata attaches notes and tags from the side store to each node.
// Metadata failures degrade silently; the pass proceeds without them.
func (e *Engine) enrichMetadata(ctx context.Context, nodes []*domain.BookmarkNode) {
	if e.metadata == nil {
		return
	}
	for _, n := range nodes {
		if notes, err := e.metadata.GetNotes(ctx, n.ID); err == nil && notes != "" {
			n.Notes = notes
		}
		if tags, err := e.metadata.GetTags(ctx, n.ID); err == nil && len(tags) > 0 {
			n.Tags = tags
		}
	}
}

// splitOutcomes separates resolved outcomes into deletions (nil bookmark)
// and modifications.
func splitOutcomes(resolved []resolve.Outcome) (deletions, modifications []*domain.BookmarkNode) {
	for _, o := range resolved {
		if o.Bookmark == nil {
			deletions = append(deletions, &domain.BookmarkNode{ID: o.ConflictID})
			continue
		}
		modifications = append(modifications, o.Bookmark)
	}
	return deletions, modifications
}

// unresolvedRecords rebuilds the conflict records for outcomes that need
// manual resolution, so the caller gets full context back.
func (e *Engine) unresolvedRecords(delta *diff.Delta, unresolved []resolve.Outcome) []domain.ConflictRecord {
	if len(unresolved) == 0 {
		return nil
	}
	byID := make(map[string]diff.ModifiedPair, len(delta.Modified))
	for _, pair := range delta.Modified {
		byID[pair.Source.ID] = pair
	}

	records := make([]domain.ConflictRecord, 0, len(unresolved))
	for _, o := range unresolved {
		pair, ok := byID[o.ConflictID]
		if !ok {
			continue
		}
		rec := domain.ConflictRecord{
			ID:     o.ConflictID,
			Local:  pair.Source,
			Remote: pair.Target,
		}
		if e.classifier != nil {
			e.classifier.Classify(&rec)
		}
		records = append(records, rec)
	}
	return records
}
