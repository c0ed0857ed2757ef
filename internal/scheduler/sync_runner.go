package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/marksync/marksync/internal/logger"
	"github.com/marksync/marksync/internal/resolve"
	"github.com/marksync/marksync/internal/syncer"
)

// SyncRunner drives periodic sync passes and reacts to manual triggers.
// The engine itself enforces single-flight, so an overlapping trigger is
// rejected rather than queued.
type SyncRunner struct {
	engine        *syncer.Engine
	strategy      resolve.Strategy
	opts          resolve.Options
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
	reload        func() // optional tree-file re-import, runs before each pass
}

// NewSyncRunner creates a new sync runner.
func NewSyncRunner(
	engine *syncer.Engine,
	strategy resolve.Strategy,
	opts resolve.Options,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
	reload func(),
) *SyncRunner {
	return &SyncRunner{
		engine:        engine,
		strategy:      strategy,
		opts:          opts,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		reload:        reload,
	}
}

// Start begins the periodic sync process. The initial pass runs
// immediately and is best effort: a fresh deployment with no remote state
// must still come up.
func (sr *SyncRunner) Start(ctx context.Context) error {
	if err := sr.runOnce(ctx); err != nil {
		sr.logger.Warn("initial sync pass failed", logger.Error(err))
	}

	ticker := time.NewTicker(sr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sr.runOnce(ctx); err != nil {
					sr.logger.Error("scheduled sync pass failed", logger.Error(err))
				}
			case <-sr.manualTrigger:
				sr.logger.Info("manual sync pass triggered")
				if err := sr.runOnce(ctx); err != nil {
					sr.logger.Error("manual sync pass failed", logger.Error(err))
				}
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the runner.
func (sr *SyncRunner) Stop() {
	close(sr.stopCh)
}

func (sr *SyncRunner) runOnce(ctx context.Context) error {
	if sr.reload != nil {
		sr.reload()
	}

	result, err := sr.engine.RunSyncPass(ctx, sr.strategy, sr.opts)
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			sr.logger.Warn("sync pass already running, skipping")
			return nil
		}
		return err
	}

	sr.logger.Info("sync pass finished",
		logger.Int("added", result.Added),
		logger.Int("modified", result.Modified),
		logger.Int("deleted", result.Deleted),
		logger.Int("unresolved", result.UnresolvedCount))
	return nil
}
