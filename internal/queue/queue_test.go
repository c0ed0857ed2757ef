package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/marksync/marksync/internal/logger"
	"github.com/marksync/marksync/internal/optimizer"
)

func testQueue(t *testing.T, cap int) (*Queue, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	q := New(store, cap, optimizer.RetryOptions{MaxAttempts: 1}, logger.New("error", false))
	return q, store
}

func TestEnqueueEvictsOldestBeyondCap(t *testing.T) {
	q, store := testQueue(t, 50)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if _, err := q.Enqueue(ctx, fmt.Sprintf("op-%d", i), json.RawMessage(`{}`)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	length, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	if length != 50 {
		t.Errorf("Len() = %v, want 50", length)
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if entries[0].Kind != "op-10" {
		t.Errorf("oldest surviving entry = %v, want op-10 (first 10 evicted)", entries[0].Kind)
	}
	if entries[len(entries)-1].Kind != "op-59" {
		t.Errorf("newest entry = %v, want op-59", entries[len(entries)-1].Kind)
	}
}

func TestEnqueueSetsEntryDefaults(t *testing.T) {
	q, store := testQueue(t, 10)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "push-snapshot", json.RawMessage(`{"a":1}`))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if id == "" {
		t.Fatal("Enqueue() returned empty id")
	}

	entries, _ := store.List(ctx, 0)
	if len(entries) != 1 {
		t.Fatalf("List() = %v entries, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != id {
		t.Errorf("entry ID = %v, want %v", e.ID, id)
	}
	if e.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %v, want %v", e.MaxAttempts, DefaultMaxAttempts)
	}
	if e.EnqueuedAt.IsZero() {
		t.Error("EnqueuedAt not set")
	}
	if e.Attempts != 0 {
		t.Errorf("Attempts = %v, want 0", e.Attempts)
	}
}

func TestDrainProcessesAllEntries(t *testing.T) {
	q, _ := testQueue(t, 50)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := q.Enqueue(ctx, fmt.Sprintf("op-%d", i), nil); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	var handled []string
	result, err := q.Drain(ctx, func(ctx context.Context, e Entry) error {
		handled = append(handled, e.Kind)
		return nil
	}, 3)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if result.Processed != 7 {
		t.Errorf("Processed = %v, want 7", result.Processed)
	}
	if result.Failed != 0 {
		t.Errorf("Failed = %v, want 0", result.Failed)
	}
	if result.Remaining != 0 {
		t.Errorf("Remaining = %v, want 0", result.Remaining)
	}
	// FIFO replay order.
	for i, kind := range handled {
		if want := fmt.Sprintf("op-%d", i); kind != want {
			t.Errorf("handled[%d] = %v, want %v", i, kind, want)
		}
	}
}

func TestDrainKeepsFailingEntries(t *testing.T) {
	q, store := testQueue(t, 50)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "always-fails", nil); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	result, err := q.Drain(ctx, func(ctx context.Context, e Entry) error {
		return errors.New("remote unreachable")
	}, 10)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if result.Processed != 0 {
		t.Errorf("Processed = %v, want 0", result.Processed)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %v, want 1", result.Failed)
	}
	if result.Remaining != 1 {
		t.Errorf("Remaining = %v, want 1 (entry stays queued)", result.Remaining)
	}

	entries, _ := store.List(ctx, 0)
	if entries[0].Attempts != 1 {
		t.Errorf("Attempts = %v, want 1 after a failed drain", entries[0].Attempts)
	}
}

func TestDrainDropsExhaustedEntries(t *testing.T) {
	q, _ := testQueue(t, 50)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "always-fails", nil); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	fail := func(ctx context.Context, e Entry) error { return errors.New("still down") }

	// Each drain consumes one attempt; the entry drops on the last one.
	for i := 1; i < DefaultMaxAttempts; i++ {
		result, err := q.Drain(ctx, fail, 10)
		if err != nil {
			t.Fatalf("Drain() #%d error = %v", i, err)
		}
		if result.Remaining != 1 {
			t.Fatalf("Drain() #%d Remaining = %v, want 1", i, result.Remaining)
		}
	}

	result, err := q.Drain(ctx, fail, 10)
	if err != nil {
		t.Fatalf("final Drain() error = %v", err)
	}
	if result.Remaining != 0 {
		t.Errorf("Remaining = %v, want 0 after exhausting attempts", result.Remaining)
	}
	if result.Processed != 0 {
		t.Errorf("Processed = %v, dropped entries are not successes", result.Processed)
	}
}

func TestDrainMixedOutcome(t *testing.T) {
	q, _ := testQueue(t, 50)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "succeeds", nil); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if _, err := q.Enqueue(ctx, "fails", nil); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	result, err := q.Drain(ctx, func(ctx context.Context, e Entry) error {
		if e.Kind == "fails" {
			return errors.New("nope")
		}
		return nil
	}, 10)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if result.Processed != 1 {
		t.Errorf("Processed = %v, want 1", result.Processed)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %v, want the failing entry counted once per drain", result.Failed)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want a single error for the failing entry", result.Errors)
	}
	if result.Remaining != 1 {
		t.Errorf("Remaining = %v, want 1", result.Remaining)
	}
}

func TestDrainCountsFailureOncePerPass(t *testing.T) {
	q, store := testQueue(t, 50)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "fails", nil); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ctx, fmt.Sprintf("ok-%d", i), nil); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	attempts := 0
	// Batch size 2 forces the failing head to be re-listed while the
	// later entries drain behind it.
	result, err := q.Drain(ctx, func(ctx context.Context, e Entry) error {
		if e.Kind == "fails" {
			attempts++
			return errors.New("nope")
		}
		return nil
	}, 2)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if attempts != 1 {
		t.Errorf("failing entry attempted %v times, want 1 per drain", attempts)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %v, want 1", result.Failed)
	}
	if result.Processed != 3 {
		t.Errorf("Processed = %v, want 3", result.Processed)
	}
	if result.Remaining != 1 {
		t.Errorf("Remaining = %v, want 1", result.Remaining)
	}

	entries, _ := store.List(ctx, 0)
	if len(entries) != 1 || entries[0].Attempts != 1 {
		t.Errorf("surviving entry = %+v, want the failing entry with one attempt", entries)
	}
}

func TestDrainEmptyQueue(t *testing.T) {
	q, _ := testQueue(t, 50)

	result, err := q.Drain(context.Background(), func(ctx context.Context, e Entry) error {
		t.Error("handler should never run on an empty queue")
		return nil
	}, 10)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if result.Processed != 0 || result.Failed != 0 || result.Remaining != 0 {
		t.Errorf("Drain() = %+v, want all zero", result)
	}
}
