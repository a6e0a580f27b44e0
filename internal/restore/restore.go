// Package restore pulls a tenant's remote collections into the local store
// with last-write-wins merging. Restore never deletes on either side.
package restore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/lock"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/metrics"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/remote"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/store"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/tenant"
)

// ErrRestoreInProgress is returned when the tenant already has a restore
// running.
var ErrRestoreInProgress = errors.New("restore already in progress for tenant")

// LocalStore is the local side of a restore.
type LocalStore interface {
	GetRecord(ctx context.Context, tenantID string, kind entity.Kind, key string) (entity.Record, error)
	InsertRecordIfAbsent(ctx context.Context, tenantID string, kind entity.Kind, rec entity.Record) (bool, error)
	OverwriteRecord(ctx context.Context, tenantID string, kind entity.Kind, rec entity.Record) error
}

// RemoteReader fetches whole collections from the remote store.
type RemoteReader interface {
	FetchAll(ctx context.Context, tenantID, collection string) ([]remote.Document, error)
}

// Engine runs restores. Collections are merged concurrently up to the
// configured limit; documents within a collection are merged one at a time.
type Engine struct {
	local       LocalStore
	remote      RemoteReader
	locker      lock.Locker
	concurrency int
	kinds       []entity.Kind
	now         func() time.Time
}

// NewEngine creates an engine over every registered entity kind. A nil
// locker uses an in-process one.
func NewEngine(local LocalStore, rr RemoteReader, locker lock.Locker, concurrency int) *Engine {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		local:       local,
		remote:      rr,
		locker:      locker,
		concurrency: concurrency,
		kinds:       entity.All(),
		now:         time.Now,
	}
}

// Run restores every collection of tenantID. Collection and document
// failures are reported in the result; the error return covers an invalid
// tenant, a held lock and cancellation.
func (e *Engine) Run(ctx context.Context, tenantID string) (*Result, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	release, err := e.locker.TryLock(ctx, "restore:"+tenantID)
	if errors.Is(err, lock.ErrNotObtained) {
		metrics.RestoreRunsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %s", ErrRestoreInProgress, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire restore lock: %w", err)
	}
	defer release()

	start := time.Now()
	runID := ulid.Make().String()
	slog.Info("restore started",
		"component", "restore",
		"action", "restore",
		"run_id", runID,
		"tenant_id", tenantID,
		"collections", len(e.kinds),
	)

	results := make([]CollectionResult, len(e.kinds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, kind := range e.kinds {
		g.Go(func() error {
			results[i] = e.restoreCollection(gctx, tenantID, kind)
			return nil
		})
	}
	_ = g.Wait()

	res := newResult(runID, tenantID, start.UTC(), results)
	res.FinishedAt = time.Now().UTC()

	outcome := "clean"
	if len(res.Errors) > 0 {
		outcome = "partial"
	}
	metrics.RestoreRunsTotal.WithLabelValues(outcome).Inc()
	metrics.RestoreDuration.Observe(time.Since(start).Seconds())

	slog.Info("restore completed",
		"component", "restore",
		"action", "restore",
		"run_id", runID,
		"tenant_id", tenantID,
		"inserted", res.Inserted,
		"updated", res.Updated,
		"errors", len(res.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (e *Engine) restoreCollection(ctx context.Context, tenantID string, kind entity.Kind) CollectionResult {
	cr := CollectionResult{
		Collection:  kind.Name,
		DisplayName: kind.DisplayName,
		Errors:      []string{},
	}

	docs, err := e.remote.FetchAll(ctx, tenantID, kind.Name)
	if err != nil {
		cr.Errors = append(cr.Errors, fmt.Sprintf("%s: fetch failed: %v", kind.Name, err))
		cr.PermissionDenied = remote.IsPermissionDenied(err)
		slog.Warn("restore fetch failed",
			"component", "restore",
			"tenant_id", tenantID,
			"collection", kind.Name,
			"permission_denied", cr.PermissionDenied,
			"error", err,
		)
		metrics.RestoreRecordsTotal.WithLabelValues(kind.Name, "fetch_error").Inc()
		return cr
	}
	cr.Fetched = len(docs)

	for _, doc := range docs {
		if ctx.Err() != nil {
			cr.Errors = append(cr.Errors, fmt.Sprintf("%s: cancelled: %v", kind.Name, ctx.Err()))
			return cr
		}
		out, key, err := e.mergeDocument(ctx, tenantID, kind, doc)
		if err != nil {
			id := key
			if id == "" {
				id = doc.ID
			}
			cr.Errors = append(cr.Errors, fmt.Sprintf("%s/%s: %v", kind.Name, id, err))
			metrics.RestoreRecordsTotal.WithLabelValues(kind.Name, "error").Inc()
			continue
		}
		cr.count(out)
		metrics.RestoreRecordsTotal.WithLabelValues(kind.Name, string(out)).Inc()
	}

	if len(cr.Errors) > 0 {
		slog.Warn("collection restored with errors",
			"component", "restore",
			"tenant_id", tenantID,
			"collection", kind.Name,
			"inserted", cr.Inserted,
			"updated", cr.Updated,
			"errors", len(cr.Errors),
		)
	} else {
		slog.Debug("collection restored",
			"component", "restore",
			"tenant_id", tenantID,
			"collection", kind.Name,
			"inserted", cr.Inserted,
			"updated", cr.Updated,
			"unchanged", cr.Unchanged,
		)
	}
	return cr
}

// mergeDocument applies one remote document. It returns the canonical key
// once known so errors can name the record.
func (e *Engine) mergeDocument(ctx context.Context, tenantID string, kind entity.Kind, doc remote.Document) (Outcome, string, error) {
	key, err := kind.DocumentKey(doc.Fields, doc.ID)
	if err != nil {
		return OutcomeSkipped, "", nil
	}
	now := e.now().UTC()

	existing, err := e.local.GetRecord(ctx, tenantID, kind, key)
	if errors.Is(err, store.ErrNotFound) {
		rec, err := kind.Decode(key, doc.Fields, nil, now)
		if err != nil {
			return "", key, err
		}
		inserted, err := e.local.InsertRecordIfAbsent(ctx, tenantID, kind, rec)
		if err != nil {
			return "", key, fmt.Errorf("insert: %w", err)
		}
		if !inserted {
			return OutcomeUnchanged, key, nil
		}
		return OutcomeInserted, key, nil
	}
	if err != nil {
		return "", key, fmt.Errorf("read local: %w", err)
	}

	if !kind.HasClock() {
		return OutcomeUnchanged, key, nil
	}
	remoteAt, err := kind.RemoteClock(doc.Fields)
	if err != nil {
		return "", key, err
	}
	if !newer(remoteAt, kind.Clock(existing)) {
		return OutcomeUnchanged, key, nil
	}

	rec, err := kind.Decode(key, doc.Fields, existing, now)
	if err != nil {
		return "", key, err
	}
	if err := e.local.OverwriteRecord(ctx, tenantID, kind, rec); err != nil {
		return "", key, fmt.Errorf("overwrite: %w", err)
	}
	return OutcomeUpdated, key, nil
}

// newer compares at the millisecond precision clocks are stored with locally.
func newer(remoteAt, localAt time.Time) bool {
	return remoteAt.UnixMilli() > localAt.UnixMilli()
}
