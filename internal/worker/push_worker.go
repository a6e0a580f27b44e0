package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/outbox"
)

// Drainer pushes the outbox to the remote store.
type Drainer interface {
	Drain(ctx context.Context, tenantID string, progress outbox.ProgressFunc) (*outbox.Report, error)
}

// PushWorker drains the outbox of every tenant on a fixed interval. Failed
// entries stay dirty, so the interval is also the retry cadence.
type PushWorker struct {
	drainer  Drainer
	interval time.Duration
}

// NewPushWorker creates a push worker.
func NewPushWorker(d Drainer, interval time.Duration) *PushWorker {
	return &PushWorker{drainer: d, interval: interval}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
func (w *PushWorker) Run(ctx context.Context) {
	slog.Info("push worker started",
		"component", "worker",
		"worker", "push-worker",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Drain immediately on start, then on each tick
	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("push worker stopped",
				"component", "worker",
				"worker", "push-worker",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *PushWorker) drain(ctx context.Context) {
	report, err := w.drainer.Drain(ctx, "", nil)
	switch {
	case errors.Is(err, outbox.ErrDrainInProgress):
		slog.Debug("drain already running, skipping tick",
			"component", "worker",
			"worker", "push-worker",
		)
		return
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		slog.Error("outbox drain failed",
			"component", "worker",
			"worker", "push-worker",
			"error", err,
		)
		return
	}

	if report.Failed > 0 {
		slog.Warn("outbox drain left failed entries",
			"component", "worker",
			"worker", "push-worker",
			"run_id", report.RunID,
			"pushed", report.Pushed,
			"failed", report.Failed,
		)
	}
}
