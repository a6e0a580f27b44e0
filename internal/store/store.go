package store

import (
	"context"
	"time"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
	rentsync "github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/sync"
)

// RecordStore is the tenant-scoped local store of business records.
type RecordStore interface {
	GetRecord(ctx context.Context, tenantID string, kind entity.Kind, key string) (entity.Record, error)
	InsertRecordIfAbsent(ctx context.Context, tenantID string, kind entity.Kind, rec entity.Record) (bool, error)
	OverwriteRecord(ctx context.Context, tenantID string, kind entity.Kind, rec entity.Record) error
	SaveRecord(ctx context.Context, tenantID string, kind entity.Kind, rec entity.Record) error
	CountRecords(ctx context.Context, tenantID string, kind entity.Kind) (int64, error)
}

// OutboxStore is the durable queue of push obligations. An empty tenantID
// in a query means all tenants.
type OutboxStore interface {
	InsertOrReplace(ctx context.Context, entry rentsync.OutboxEntry) error
	GetDirtyItems(ctx context.Context, tenantID string, limit int) ([]rentsync.OutboxEntry, error)
	GetDirtyItemsByType(ctx context.Context, tenantID, entityType string) ([]rentsync.OutboxEntry, error)
	GetDirtyCountByType(ctx context.Context, tenantID, entityType string) (int64, error)
	GetDirtyEntityTypes(ctx context.Context, tenantID string) ([]string, error)
	GetDirtyCount(ctx context.Context, tenantID string) (int64, error)
	GetDirtyCounts(ctx context.Context, tenantID string) ([]rentsync.TypeCount, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncedIfUnchanged(ctx context.Context, id int64, dirtyAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, message string) error
}

// Store is the complete local store.
type Store interface {
	RecordStore
	OutboxStore
	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
