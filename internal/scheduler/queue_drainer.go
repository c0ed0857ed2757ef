package scheduler

import (
	"context"
	"time"

	"github.com/marksync/marksync/internal/logger"
	"github.com/marksync/marksync/internal/syncer"
)

// QueueDrainer periodically replays the offline operation queue, so work
// deferred during degraded conditions catches up once connectivity returns.
type QueueDrainer struct {
	engine        *syncer.Engine
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewQueueDrainer creates a new offline queue drainer.
func NewQueueDrainer(
	engine *syncer.Engine,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *QueueDrainer {
	return &QueueDrainer{
		engine:        engine,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic drain process.
func (qd *QueueDrainer) Start(ctx context.Context) error {
	ticker := time.NewTicker(qd.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				qd.drain(ctx)
			case <-qd.manualTrigger:
				qd.logger.Info("manual queue drain triggered")
				qd.drain(ctx)
			case <-qd.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the drainer.
func (qd *QueueDrainer) Stop() {
	close(qd.stopCh)
}

func (qd *QueueDrainer) drain(ctx context.Context) {
	result, err := qd.engine.DrainOffline(ctx)
	if err != nil {
		qd.logger.Error("offline queue drain failed", logger.Error(err))
		return
	}
	if result.Processed == 0 && result.Failed == 0 {
		return
	}
	qd.logger.Info("offline queue drained",
		logger.Int("processed", result.Processed),
		logger.Int("failed", result.Failed),
		logger.Int("remaining", result.Remaining))
}
