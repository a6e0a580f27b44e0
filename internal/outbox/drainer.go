package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/metrics"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/store"
	rentsync "github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/sync"
)

// ErrDrainInProgress is returned when a drain is requested while another
// drain is still running.
var ErrDrainInProgress = errors.New("outbox drain already in progress")

// msgNotFoundLocally is recorded for entries whose record has been deleted.
const msgNotFoundLocally = "record not found locally"

// DrainStore is the local side of a drain: the outbox queue and the records
// it points at.
type DrainStore interface {
	GetDirtyEntityTypes(ctx context.Context, tenantID string) ([]string, error)
	GetDirtyCountByType(ctx context.Context, tenantID, entityType string) (int64, error)
	GetDirtyItemsByType(ctx context.Context, tenantID, entityType string) ([]rentsync.OutboxEntry, error)
	MarkSyncedIfUnchanged(ctx context.Context, id int64, dirtyAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, message string) error
	GetRecord(ctx context.Context, tenantID string, kind entity.Kind, key string) (entity.Record, error)
}

// Pusher writes one document to the remote store.
type Pusher interface {
	Upsert(ctx context.Context, tenantID, collection, id string, fields map[string]any) error
}

// ProgressFunc is called after each entry of entityType is handled. total is
// the number of entries this drain will handle for the type, which is below
// the backlog when drain_batch caps the run.
type ProgressFunc func(entityType string, done, total int64)

// TypeReport is the outcome of draining one entity type.
type TypeReport struct {
	EntityType string   `json:"entityType"`
	Total      int64    `json:"total"`
	Pushed     int      `json:"pushed"`
	Failed     int      `json:"failed"`
	Stale      int      `json:"stale"`
	Errors     []string `json:"errors"`
}

// Report is the outcome of one drain run.
type Report struct {
	RunID      string       `json:"runId"`
	TenantID   string       `json:"tenantId,omitempty"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Types      []TypeReport `json:"types"`
	Pushed     int          `json:"pushed"`
	Failed     int          `json:"failed"`
}

// Drainer pushes dirty records to the remote store one entity type at a time.
type Drainer struct {
	store  DrainStore
	remote Pusher
	batch  int

	running sync.Mutex
}

// NewDrainer creates a drainer. batch caps the entries pushed per entity type
// in one run; zero means no cap.
func NewDrainer(s DrainStore, remote Pusher, batch int) *Drainer {
	return &Drainer{store: s, remote: remote, batch: batch}
}

// Drain pushes every dirty entry of tenantID (all tenants when empty). Entity
// types are drained in alphabetical order, entries oldest mutation first.
// Per-entry failures are recorded on the entry and in the report; the error
// return is reserved for failures to read the queue at all and for
// cancellation.
func (d *Drainer) Drain(ctx context.Context, tenantID string, progress ProgressFunc) (*Report, error) {
	if !d.running.TryLock() {
		return nil, ErrDrainInProgress
	}
	defer d.running.Unlock()

	report := &Report{
		RunID:     ulid.Make().String(),
		TenantID:  tenantID,
		StartedAt: time.Now().UTC(),
		Types:     []TypeReport{},
	}

	types, err := d.store.GetDirtyEntityTypes(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list dirty entity types: %w", err)
	}

	for _, entityType := range types {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now().UTC()
			return report, err
		}
		tr := d.drainType(ctx, tenantID, entityType, progress)
		report.Types = append(report.Types, tr)
		report.Pushed += tr.Pushed
		report.Failed += tr.Failed
	}
	report.FinishedAt = time.Now().UTC()

	if report.Pushed > 0 || report.Failed > 0 {
		slog.Info("outbox drain completed",
			"component", "outbox",
			"action", "drain",
			"run_id", report.RunID,
			"tenant_id", tenantID,
			"types", len(report.Types),
			"pushed", report.Pushed,
			"failed", report.Failed,
			"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
		)
	}
	return report, ctx.Err()
}

func (d *Drainer) drainType(ctx context.Context, tenantID, entityType string, progress ProgressFunc) TypeReport {
	tr := TypeReport{EntityType: entityType, Errors: []string{}}

	total, err := d.store.GetDirtyCountByType(ctx, tenantID, entityType)
	if err != nil {
		tr.Errors = append(tr.Errors, fmt.Sprintf("count %s: %v", entityType, err))
		return tr
	}
	tr.Total = total
	metrics.OutboxBacklog.WithLabelValues(entityType).Set(float64(total))

	items, err := d.store.GetDirtyItemsByType(ctx, tenantID, entityType)
	if err != nil {
		tr.Errors = append(tr.Errors, fmt.Sprintf("read %s: %v", entityType, err))
		return tr
	}
	if d.batch > 0 && len(items) > d.batch {
		items = items[:d.batch]
	}

	kind, kindErr := entity.ByEntityType(entityType)

	planned := int64(len(items))
	var done int64
	for _, item := range items {
		if ctx.Err() != nil {
			return tr
		}

		var pushErr error
		if kindErr != nil {
			pushErr = kindErr
		} else {
			pushErr = d.push(ctx, kind, item)
		}

		switch {
		case pushErr != nil:
			tr.Failed++
			tr.Errors = append(tr.Errors, fmt.Sprintf("%s %s: %v", entityType, item.EntityID, pushErr))
			d.markFailed(ctx, item, pushErr)
			metrics.OutboxPushesTotal.WithLabelValues(entityType, "failed").Inc()
		default:
			cleared, err := d.store.MarkSyncedIfUnchanged(ctx, item.ID, item.LastDirtyAt)
			switch {
			case err != nil:
				tr.Failed++
				tr.Errors = append(tr.Errors, fmt.Sprintf("%s %s: mark synced: %v", entityType, item.EntityID, err))
				metrics.OutboxPushesTotal.WithLabelValues(entityType, "failed").Inc()
			case cleared:
				tr.Pushed++
				metrics.OutboxPushesTotal.WithLabelValues(entityType, "success").Inc()
			default:
				// Mutated during the push; the entry stays dirty for the next run.
				tr.Pushed++
				tr.Stale++
				metrics.OutboxPushesTotal.WithLabelValues(entityType, "stale").Inc()
			}
		}

		done++
		if progress != nil {
			progress(entityType, done, planned)
		}
	}
	return tr
}

func (d *Drainer) push(ctx context.Context, kind entity.Kind, item rentsync.OutboxEntry) error {
	rec, err := d.store.GetRecord(ctx, item.TenantID, kind, item.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		return errors.New(msgNotFoundLocally)
	}
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	return d.remote.Upsert(ctx, item.TenantID, kind.Name, item.EntityID, kind.Encode(rec))
}

func (d *Drainer) markFailed(ctx context.Context, item rentsync.OutboxEntry, cause error) {
	if err := d.store.MarkFailed(ctx, item.ID, cause.Error()); err != nil {
		slog.Error("failed to record push failure",
			"component", "outbox",
			"action", "drain",
			"tenant_id", item.TenantID,
			"entity_type", item.EntityType,
			"entity_id", item.EntityID,
			"error", err,
		)
	}
}
