// Package reconcile compares local and remote record counts per collection
// without modifying either side.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/metrics"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/tenant"
)

// LocalCounter counts local records of one kind.
type LocalCounter interface {
	CountRecords(ctx context.Context, tenantID string, kind entity.Kind) (int64, error)
}

// RemoteCounter counts remote documents of one collection.
type RemoteCounter interface {
	Count(ctx context.Context, tenantID, collection string) (int64, error)
}

// Summary is the reconciliation report for one tenant.
type Summary struct {
	TenantID         string    `json:"tenantId"`
	CheckedAt        time.Time `json:"checkedAt"`
	Items            []Item    `json:"items"`
	HasIssues        bool      `json:"hasIssues"`
	HasWarnings      bool      `json:"hasWarnings"`
	HasErrors        bool      `json:"hasErrors"`
	PermissionErrors int       `json:"permissionErrors"`
	TotalLocal       int64     `json:"totalLocal"`
	TotalCloud       int64     `json:"totalCloud"`
}

// Auditor runs reconciliations.
type Auditor struct {
	local       LocalCounter
	remote      RemoteCounter
	concurrency int
	kinds       []entity.Kind
}

// NewAuditor creates an auditor over every registered entity kind.
func NewAuditor(local LocalCounter, rc RemoteCounter, concurrency int) *Auditor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Auditor{local: local, remote: rc, concurrency: concurrency, kinds: entity.All()}
}

// Run reconciles every collection of tenantID. Count failures become ERROR
// items; only an invalid tenant is returned as an error.
func (a *Auditor) Run(ctx context.Context, tenantID string) (*Summary, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}
	start := time.Now()

	items := make([]Item, len(a.kinds))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, kind := range a.kinds {
		g.Go(func() error {
			items[i] = a.check(ctx, tenantID, kind)
			return nil
		})
	}
	_ = g.Wait()

	s := summarize(tenantID, items)
	s.CheckedAt = time.Now().UTC()

	for _, it := range items {
		metrics.ReconcileStatus.WithLabelValues(tenantID, it.Key).Set(statusValue(it.Status))
		if it.PermissionDenied {
			metrics.ReconcilePermissionErrors.WithLabelValues(it.Key).Inc()
		}
	}

	slog.Info("reconciliation completed",
		"component", "reconcile",
		"action", "reconcile",
		"tenant_id", tenantID,
		"has_issues", s.HasIssues,
		"total_local", s.TotalLocal,
		"total_cloud", s.TotalCloud,
		"permission_errors", s.PermissionErrors,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s, nil
}

func (a *Auditor) check(ctx context.Context, tenantID string, kind entity.Kind) Item {
	var local, cloud *int64

	n, localErr := a.local.CountRecords(ctx, tenantID, kind)
	if localErr == nil {
		local = &n
	}
	m, cloudErr := a.remote.Count(ctx, tenantID, kind.Name)
	if cloudErr == nil {
		cloud = &m
	}
	return Classify(kind.Name, kind.DisplayName, local, cloud, localErr, cloudErr)
}

func summarize(tenantID string, items []Item) *Summary {
	s := &Summary{TenantID: tenantID, Items: items}
	for _, it := range items {
		switch it.Status {
		case StatusWarning:
			s.HasWarnings = true
		case StatusError:
			s.HasErrors = true
		}
		if it.PermissionDenied {
			s.PermissionErrors++
		}
		if it.LocalCount != nil {
			s.TotalLocal += *it.LocalCount
		}
		if it.CloudCount != nil {
			s.TotalCloud += *it.CloudCount
		}
	}
	s.HasIssues = s.HasWarnings || s.HasErrors
	return s
}

func statusValue(s Status) float64 {
	switch s {
	case StatusOK:
		return metrics.StatusValueOK
	case StatusWarning:
		return metrics.StatusValueWarning
	default:
		return metrics.StatusValueError
	}
}
