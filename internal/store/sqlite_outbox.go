package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	rentsync "github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/sync"
)

const outboxColumns = `id, tenant_id, entity_type, entity_id, is_dirty, last_dirty_at,
	last_sync_status, last_sync_error, last_attempt_at, attempts`

// tenantFilter matches every tenant when the bound tenant ID is empty.
const tenantFilter = `(? = '' OR tenant_id = ?)`

// InsertOrReplace upserts the entry keyed by (tenant, entity type, entity id).
// A repeated mutation refreshes the existing entry instead of adding one;
// last_dirty_at only moves forward so a late write of an older mark cannot
// hide a newer one.
func (s *SQLiteStore) InsertOrReplace(ctx context.Context, e rentsync.OutboxEntry) error {
	var attemptAt any
	if e.LastAttemptAt != nil {
		attemptAt = e.LastAttemptAt.UnixNano()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_outbox (tenant_id, entity_type, entity_id, is_dirty, last_dirty_at,
			last_sync_status, last_sync_error, last_attempt_at, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, entity_type, entity_id) DO UPDATE SET
			is_dirty = excluded.is_dirty,
			last_dirty_at = MAX(sync_outbox.last_dirty_at, excluded.last_dirty_at),
			last_sync_status = excluded.last_sync_status,
			last_sync_error = excluded.last_sync_error,
			last_attempt_at = excluded.last_attempt_at,
			attempts = excluded.attempts
	`, e.TenantID, e.EntityType, e.EntityID, boolToInt(e.IsDirty), e.LastDirtyAt.UnixNano(),
		nullString(e.LastSyncStatus), nullString(e.LastSyncError), attemptAt, e.Attempts)
	if err != nil {
		return fmt.Errorf("upsert outbox entry %s/%s: %w", e.EntityType, e.EntityID, err)
	}
	return nil
}

// GetDirtyItems returns up to limit dirty entries, oldest mutation first.
func (s *SQLiteStore) GetDirtyItems(ctx context.Context, tenantID string, limit int) ([]rentsync.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+outboxColumns+`
		FROM sync_outbox
		WHERE is_dirty = 1 AND `+tenantFilter+`
		ORDER BY last_dirty_at ASC, id ASC
		LIMIT ?
	`, tenantID, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query dirty items: %w", err)
	}
	return scanOutbox(rows)
}

// GetDirtyItemsByType returns every dirty entry of one entity type, oldest first.
func (s *SQLiteStore) GetDirtyItemsByType(ctx context.Context, tenantID, entityType string) ([]rentsync.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+outboxColumns+`
		FROM sync_outbox
		WHERE is_dirty = 1 AND entity_type = ? AND `+tenantFilter+`
		ORDER BY last_dirty_at ASC, id ASC
	`, entityType, tenantID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query dirty items for %s: %w", entityType, err)
	}
	return scanOutbox(rows)
}

// GetDirtyCountByType returns the pending count for one entity type.
func (s *SQLiteStore) GetDirtyCountByType(ctx context.Context, tenantID, entityType string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sync_outbox
		WHERE is_dirty = 1 AND entity_type = ? AND `+tenantFilter,
		entityType, tenantID, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count dirty %s: %w", entityType, err)
	}
	return count, nil
}

// GetDirtyCount returns the pending count across all entity types.
func (s *SQLiteStore) GetDirtyCount(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sync_outbox WHERE is_dirty = 1 AND `+tenantFilter,
		tenantID, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count dirty: %w", err)
	}
	return count, nil
}

// GetDirtyEntityTypes returns the distinct entity types with pending work,
// in alphabetical order.
func (s *SQLiteStore) GetDirtyEntityTypes(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT entity_type FROM sync_outbox
		WHERE is_dirty = 1 AND `+tenantFilter+`
		ORDER BY entity_type ASC
	`, tenantID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query dirty entity types: %w", err)
	}
	defer rows.Close()

	types := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan entity type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// GetDirtyCounts returns the pending count of every entity type with work.
func (s *SQLiteStore) GetDirtyCounts(ctx context.Context, tenantID string) ([]rentsync.TypeCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, COUNT(*) FROM sync_outbox
		WHERE is_dirty = 1 AND `+tenantFilter+`
		GROUP BY entity_type
		ORDER BY entity_type ASC
	`, tenantID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query dirty counts: %w", err)
	}
	defer rows.Close()

	counts := make([]rentsync.TypeCount, 0)
	for rows.Next() {
		var c rentsync.TypeCount
		if err := rows.Scan(&c.EntityType, &c.Count); err != nil {
			return nil, fmt.Errorf("scan dirty count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// MarkSynced clears the obligation after the remote write was acknowledged.
func (s *SQLiteStore) MarkSynced(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sync_outbox
		SET is_dirty = 0, last_sync_status = ?, last_sync_error = NULL,
			last_attempt_at = ?, attempts = attempts + 1
		WHERE id = ?
	`, rentsync.StatusSuccess, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("mark synced %d: %w", id, err)
	}
	return requireRow(result, id)
}

// MarkSyncedIfUnchanged clears the obligation only if no mutation refreshed
// the entry after dirtyAt. Reports whether the entry was cleared.
func (s *SQLiteStore) MarkSyncedIfUnchanged(ctx context.Context, id int64, dirtyAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sync_outbox
		SET is_dirty = 0, last_sync_status = ?, last_sync_error = NULL,
			last_attempt_at = ?, attempts = attempts + 1
		WHERE id = ? AND last_dirty_at = ?
	`, rentsync.StatusSuccess, time.Now().UnixNano(), id, dirtyAt.UnixNano())
	if err != nil {
		return false, fmt.Errorf("mark synced %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkFailed records a failed push. The entry stays dirty so the next drain
// retries it.
func (s *SQLiteStore) MarkFailed(ctx context.Context, id int64, message string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sync_outbox
		SET is_dirty = 1, last_sync_status = ?, last_sync_error = ?,
			last_attempt_at = ?, attempts = attempts + 1
		WHERE id = ?
	`, rentsync.StatusFailed, message, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("mark failed %d: %w", id, err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("outbox entry %d: %w", id, ErrNotFound)
	}
	return nil
}

func scanOutbox(rows *sql.Rows) ([]rentsync.OutboxEntry, error) {
	defer rows.Close()

	entries := make([]rentsync.OutboxEntry, 0)
	for rows.Next() {
		var (
			e         rentsync.OutboxEntry
			isDirty   int64
			dirtyAt   int64
			status    sql.NullString
			syncErr   sql.NullString
			attemptAt sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.EntityType, &e.EntityID, &isDirty, &dirtyAt,
			&status, &syncErr, &attemptAt, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.IsDirty = isDirty != 0
		e.LastDirtyAt = time.Unix(0, dirtyAt).UTC()
		e.LastSyncStatus = status.String
		e.LastSyncError = syncErr.String
		if attemptAt.Valid {
			t := time.Unix(0, attemptAt.Int64).UTC()
			e.LastAttemptAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
