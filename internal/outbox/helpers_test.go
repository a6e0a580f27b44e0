package outbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/store"
	rentsync "github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/sync"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveRecord(t *testing.T, s *store.SQLiteStore, tenantID, kindName, key string, doc map[string]any) {
	t.Helper()
	k, err := entity.Lookup(kindName)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", kindName, err)
	}
	rec, err := k.Decode(key, doc, nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := s.SaveRecord(context.Background(), tenantID, k, rec); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
}

func markDirty(t *testing.T, s *store.SQLiteStore, tenantID, entityType, entityID string, at time.Time) {
	t.Helper()
	err := s.InsertOrReplace(context.Background(), rentsync.OutboxEntry{
		TenantID:    tenantID,
		EntityType:  entityType,
		EntityID:    entityID,
		IsDirty:     true,
		LastDirtyAt: at,
	})
	if err != nil {
		t.Fatalf("InsertOrReplace: %v", err)
	}
}

func dirtyItems(t *testing.T, s *store.SQLiteStore, tenantID, entityType string) []rentsync.OutboxEntry {
	t.Helper()
	items, err := s.GetDirtyItemsByType(context.Background(), tenantID, entityType)
	if err != nil {
		t.Fatalf("GetDirtyItemsByType: %v", err)
	}
	return items
}
