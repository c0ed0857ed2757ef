package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marksync/marksync/internal/domain"
	"github.com/marksync/marksync/internal/index"
	"github.com/marksync/marksync/internal/logger"
	"github.com/marksync/marksync/internal/optimizer"
	"github.com/marksync/marksync/internal/queue"
	"github.com/marksync/marksync/internal/resolve"
)

type fakeSnapshots struct {
	remote        []*domain.BookmarkNode
	loadErr       error
	saveRemoteErr error

	savedRemote []*domain.BookmarkNode
	savedLocal  []*domain.BookmarkNode
	raw         [][]byte
}

func (f *fakeSnapshots) LoadRemoteSnapshot(_ context.Context) ([]*domain.BookmarkNode, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.remote, nil
}

func (f *fakeSnapshots) SaveRemoteSnapshot(_ context.Context, nodes []*domain.BookmarkNode) error {
	if f.saveRemoteErr != nil {
		return f.saveRemoteErr
	}
	f.savedRemote = nodes
	return nil
}

func (f *fakeSnapshots) SaveLocalSnapshot(_ context.Context, nodes []*domain.BookmarkNode) error {
	f.savedLocal = nodes
	return nil
}

func (f *fakeSnapshots) SaveRawSnapshot(_ context.Context, payload []byte) error {
	f.raw = append(f.raw, payload)
	return nil
}

type fakeMetadata struct {
	notes map[string]string
	tags  map[string][]string
}

func (f *fakeMetadata) GetNotes(_ context.Context, id string) (string, error) {
	return f.notes[id], nil
}

func (f *fakeMetadata) GetTags(_ context.Context, id string) ([]string, error) {
	return f.tags[id], nil
}

func newTestEngine(t *testing.T, snaps *fakeSnapshots, cfg Config) *Engine {
	t.Helper()
	log := logger.New("error", false)
	classifier := domain.NewClassifier(domain.DefaultClassifierConfig())

	cfg.Snapshots = snaps
	if cfg.Index == nil {
		cfg.Index = index.NewTreeIndex()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classifier
	}
	if cfg.Resolver == nil {
		cfg.Resolver = resolve.NewEngine(classifier, nil, log)
	}
	cfg.Logger = log

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e.sleep = func(time.Duration) {}
	return e
}

func bm(id, title, url string) *domain.BookmarkNode {
	return &domain.BookmarkNode{
		ID:        id,
		Title:     title,
		URL:       url,
		DateAdded: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRunSyncPassFirstSync(t *testing.T) {
	snaps := &fakeSnapshots{}
	e := newTestEngine(t, snaps, Config{})
	e.index.Upsert(bm("a", "GitHub", "https://github.com"))
	e.index.Upsert(bm("b", "Docs", "https://docs.example.com"))

	result, err := e.RunSyncPass(context.Background(), resolve.StrategyLocalWins, resolve.DefaultOptions())
	if err != nil {
		t.Fatalf("RunSyncPass() error = %v", err)
	}

	if result.Added != 2 || result.Modified != 0 || result.Deleted != 0 {
		t.Errorf("delta counts = %d/%d/%d, want 2/0/0", result.Added, result.Modified, result.Deleted)
	}
	if len(snaps.savedRemote) != 2 {
		t.Errorf("uploaded %d nodes, want 2", len(snaps.savedRemote))
	}
	if len(snaps.savedLocal) != 2 {
		t.Errorf("persisted %d local nodes, want 2", len(snaps.savedLocal))
	}
	if e.index.LastSync().IsZero() {
		t.Error("LastSync should be set after a pass")
	}
}

func TestRunSyncPassRemoteOnlyNodesJoinLocal(t *testing.T) {
	snaps := &fakeSnapshots{remote: []*domain.BookmarkNode{bm("r1", "Blog", "https://blog.example.com")}}
	e := newTestEngine(t, snaps, Config{})

	result, err := e.RunSyncPass(context.Background(), resolve.StrategyLocalWins, resolve.DefaultOptions())
	if err != nil {
		t.Fatalf("RunSyncPass() error = %v", err)
	}

	if result.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", result.Deleted)
	}
	if _, ok := e.index.Get("r1"); !ok {
		t.Error("remote-only node should be merged into the local tree")
	}
}

func TestRunSyncPassResolvesConflict(t *testing.T) {
	snaps := &fakeSnapshots{remote: []*domain.BookmarkNode{bm("a", "GitHub Home", "https://github.com")}}
	e := newTestEngine(t, snaps, Config{})
	e.index.Upsert(bm("a", "GitHub", "https://github.com"))

	result, err := e.RunSyncPass(context.Background(), resolve.StrategyLocalWins, resolve.DefaultOptions())
	if err != nil {
		t.Fatalf("RunSyncPass() error = %v", err)
	}

	if result.Modified != 1 {
		t.Fatalf("Modified = %d, want 1", result.Modified)
	}
	if result.ResolvedCount != 1 || result.UnresolvedCount != 0 {
		t.Errorf("resolved/unresolved = %d/%d, want 1/0", result.ResolvedCount, result.UnresolvedCount)
	}

	got, ok := e.index.Get("a")
	if !ok {
		t.Fatal("resolved node missing from index")
	}
	if got.Title != "GitHub" {
		t.Errorf("Title = %q, want local title to win", got.Title)
	}
	if got.Resolution == nil || got.Resolution.Strategy != string(resolve.StrategyLocalWins) {
		t.Errorf("Resolution = %+v, want local-wins stamp", got.Resolution)
	}
}

func TestRunSyncPassReturnsUnresolvedConflicts(t *testing.T) {
	snaps := &fakeSnapshots{remote: []*domain.BookmarkNode{bm("a", "GitHub Home", "https://github.com")}}
	e := newTestEngine(t, snaps, Config{})
	e.index.Upsert(bm("a", "GitHub", "https://github.com"))

	result, err := e.RunSyncPass(context.Background(), resolve.StrategyManual, resolve.DefaultOptions())
	if err != nil {
		t.Fatalf("RunSyncPass() error = %v", err)
	}

	if result.UnresolvedCount != 1 {
		t.Fatalf("UnresolvedCount = %d, want 1", result.UnresolvedCount)
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("Conflicts = %d records, want 1", len(result.Conflicts))
	}
	rec := result.Conflicts[0]
	if rec.ID != "a" || rec.Local == nil || rec.Remote == nil {
		t.Errorf("conflict record incomplete: %+v", rec)
	}
	if rec.Type == "" {
		t.Error("unresolved record should carry a classification")
	}

	got, _ := e.index.Get("a")
	if got.Title != "GitHub" {
		t.Errorf("unresolved conflict must not mutate the node, Title = %q", got.Title)
	}
}

func TestRunSyncPassLoadFailureAborts(t *testing.T) {
	snaps := &fakeSnapshots{loadErr: errors.New("redis unreachable")}
	e := newTestEngine(t, snaps, Config{})
	e.index.Upsert(bm("a", "GitHub", "https://github.com"))

	if _, err := e.RunSyncPass(context.Background(), resolve.StrategyLocalWins, resolve.DefaultOptions()); err == nil {
		t.Fatal("RunSyncPass() should fail when the remote snapshot cannot be loaded")
	}
	if snaps.savedRemote != nil || snaps.savedLocal != nil {
		t.Error("nothing should be persisted on an aborted pass")
	}
	if !e.index.LastSync().IsZero() {
		t.Error("aborted pass must not mark the index synced")
	}
}

func TestRunSyncPassSingleFlight(t *testing.T) {
	e := newTestEngine(t, &fakeSnapshots{}, Config{})
	e.inFlight.Store(true)

	_, err := e.RunSyncPass(context.Background(), resolve.StrategyLocalWins, resolve.DefaultOptions())
	if !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("err = %v, want ErrSyncInProgress", err)
	}
}

func TestRunSyncPassThrottlesBetweenChunks(t *testing.T) {
	snaps := &fakeSnapshots{remote: []*domain.BookmarkNode{
		bm("r1", "One", "https://one.example.com"),
		bm("r2", "Two", "https://two.example.com"),
		bm("r3", "Three", "https://three.example.com"),
	}}
	e := newTestEngine(t, snaps, Config{
		BaseOpts: optimizer.Options{BatchSize: 1, ThrottleDelay: 10 * time.Millisecond, MaxRetries: 1, RetryDelay: time.Millisecond},
	})

	var sleeps int
	e.sleep = func(time.Duration) { sleeps++ }

	if _, err := e.RunSyncPass(context.Background(), resolve.StrategyLocalWins, resolve.DefaultOptions()); err != nil {
		t.Fatalf("RunSyncPass() error = %v", err)
	}
	if sleeps != 2 {
		t.Errorf("sleeps = %d, want 2 throttle points for 3 nodes in chunks of 1", sleeps)
	}
}

func TestRunSyncPassEnrichesMetadata(t *testing.T) {
	snaps := &fakeSnapshots{}
	e := newTestEngine(t, snaps, Config{
		Metadata: &fakeMetadata{
			notes: map[string]string{"a": "pinned"},
			tags:  map[string][]string{"a": {"dev"}},
		},
	})
	e.index.Upsert(bm("a", "GitHub", "https://github.com"))

	if _, err := e.RunSyncPass(context.Background(), resolve.StrategyLocalWins, resolve.DefaultOptions()); err != nil {
		t.Fatalf("RunSyncPass() error = %v", err)
	}

	if len(snaps.savedRemote) != 1 {
		t.Fatalf("uploaded %d nodes, want 1", len(snaps.savedRemote))
	}
	if snaps.savedRemote[0].Notes != "pinned" {
		t.Errorf("Notes = %q, want side-store notes attached", snaps.savedRemote[0].Notes)
	}
	if len(snaps.savedRemote[0].Tags) != 1 || snaps.savedRemote[0].Tags[0] != "dev" {
		t.Errorf("Tags = %v, want side-store tags attached", snaps.savedRemote[0].Tags)
	}
}

func TestRunSyncPassQueuesUploadWhenOffline(t *testing.T) {
	snaps := &fakeSnapshots{saveRemoteErr: errors.New("network down")}
	store := queue.NewMemoryStore()
	log := logger.New("error", false)
	offline := queue.New(store, 50, optimizer.RetryOptions{MaxAttempts: 1}, log)

	e := newTestEngine(t, snaps, Config{Offline: offline})
	e.index.Upsert(bm("a", "GitHub", "https://github.com"))

	result, err := e.RunSyncPass(context.Background(), resolve.StrategyLocalWins, resolve.DefaultOptions())
	if err != nil {
		t.Fatalf("RunSyncPass() error = %v", err)
	}
	if result.QueuedOps != 1 {
		t.Fatalf("QueuedOps = %d, want 1", result.QueuedOps)
	}

	entries, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != OpPushSnapshot {
		t.Fatalf("queued entries = %+v, want one %s op", entries, OpPushSnapshot)
	}

	// Connectivity returns; the drained entry replays the raw upload.
	snaps.saveRemoteErr = nil
	drained, err := e.DrainOffline(context.Background())
	if err != nil {
		t.Fatalf("DrainOffline() error = %v", err)
	}
	if drained.Processed != 1 || drained.Remaining != 0 {
		t.Errorf("drain = %d processed / %d remaining, want 1/0", drained.Processed, drained.Remaining)
	}
	if len(snaps.raw) != 1 {
		t.Errorf("raw uploads = %d, want the deferred snapshot replayed once", len(snaps.raw))
	}
}

func TestDrainOfflineWithoutQueue(t *testing.T) {
	e := newTestEngine(t, &fakeSnapshots{}, Config{})

	result, err := e.DrainOffline(context.Background())
	if err != nil {
		t.Fatalf("DrainOffline() error = %v", err)
	}
	if result.Processed != 0 || result.Remaining != 0 {
		t.Errorf("drain without a queue should be a no-op, got %+v", result)
	}
}

func TestReplayOperationUnknownKind(t *testing.T) {
	e := newTestEngine(t, &fakeSnapshots{}, Config{})

	err := e.ReplayOperation(context.Background(), queue.Entry{ID: "x", Kind: "reindex"})
	if err == nil {
		t.Error("ReplayOperation() should reject unknown operation kinds")
	}
}
