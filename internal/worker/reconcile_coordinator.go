package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/reconcile"
)

// Reconciler audits one tenant.
type Reconciler interface {
	Run(ctx context.Context, tenantID string) (*reconcile.Summary, error)
}

// ReconcileCoordinator runs a periodic reconciliation health check across the
// configured tenants.
type ReconcileCoordinator struct {
	auditor  Reconciler
	tenants  []string
	interval time.Duration
}

// NewReconcileCoordinator creates a coordinator for the given tenants.
func NewReconcileCoordinator(a Reconciler, tenants []string, interval time.Duration) *ReconcileCoordinator {
	return &ReconcileCoordinator{auditor: a, tenants: tenants, interval: interval}
}

// Run starts the coordinator loop. It blocks until ctx is cancelled.
//
// The first check runs after one interval, not at startup: every collection
// of every tenant is counted remotely.
func (c *ReconcileCoordinator) Run(ctx context.Context) {
	slog.Info("reconcile coordinator started",
		"component", "worker",
		"worker", "reconcile-coordinator",
		"interval", c.interval.String(),
		"tenants", len(c.tenants),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconcile coordinator stopped",
				"component", "worker",
				"worker", "reconcile-coordinator",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.reconcileAll(ctx)
		}
	}
}

// reconcileAll audits each tenant, continuing on individual failures.
func (c *ReconcileCoordinator) reconcileAll(ctx context.Context) {
	var healthy, drifted, failed int
	for _, tenantID := range c.tenants {
		if ctx.Err() != nil {
			return // Graceful shutdown
		}

		summary, err := c.auditor.Run(ctx, tenantID)
		if err != nil {
			failed++
			slog.Error("reconciliation failed for tenant",
				"component", "worker",
				"worker", "reconcile-coordinator",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}

		if !summary.HasIssues {
			healthy++
			continue
		}
		drifted++
		for _, item := range summary.Items {
			if item.Status == reconcile.StatusOK {
				continue
			}
			level := slog.LevelWarn
			if item.Status == reconcile.StatusError {
				level = slog.LevelError
			}
			slog.Log(ctx, level, "collection out of sync",
				"component", "worker",
				"worker", "reconcile-coordinator",
				"tenant_id", tenantID,
				"collection", item.Key,
				"status", string(item.Status),
				"permission_denied", item.PermissionDenied,
				"message", item.Message,
			)
		}
		if summary.PermissionErrors > 0 {
			slog.Warn("remote access rules deny reads",
				"component", "worker",
				"worker", "reconcile-coordinator",
				"tenant_id", tenantID,
				"collections", summary.PermissionErrors,
			)
		}
	}

	if healthy > 0 || drifted > 0 || failed > 0 {
		slog.Info("reconcile cycle completed",
			"component", "worker",
			"worker", "reconcile-coordinator",
			"tenants_total", len(c.tenants),
			"tenants_healthy", healthy,
			"tenants_drifted", drifted,
			"tenants_failed", failed,
		)
	}
}
