package outbox

import (
	"context"
	"fmt"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
	rentsync "github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/sync"
)

// BacklogStore is the read side of the outbox queue used for reporting.
type BacklogStore interface {
	GetDirtyCount(ctx context.Context, tenantID string) (int64, error)
	GetDirtyCounts(ctx context.Context, tenantID string) ([]rentsync.TypeCount, error)
	GetDirtyItemsByType(ctx context.Context, tenantID, entityType string) ([]rentsync.OutboxEntry, error)
}

// Backlog is the pending push work of a tenant. Without an entity type it
// holds per-type counts; with one it holds that type's count and entries.
type Backlog struct {
	TenantID   string                 `json:"tenantId,omitempty"`
	Total      int64                  `json:"total"`
	ByType     []rentsync.TypeCount   `json:"byType,omitempty"`
	EntityType string                 `json:"entityType,omitempty"`
	Items      []rentsync.OutboxEntry `json:"items,omitempty"`
}

// GetBacklog reports the dirty backlog of tenantID (all tenants when empty).
// entityType may be an outbox entity type or a collection name.
func GetBacklog(ctx context.Context, s BacklogStore, tenantID, entityType string) (*Backlog, error) {
	if entityType == "" {
		total, err := s.GetDirtyCount(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("backlog total: %w", err)
		}
		counts, err := s.GetDirtyCounts(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("backlog counts: %w", err)
		}
		return &Backlog{TenantID: tenantID, Total: total, ByType: counts}, nil
	}

	kind, err := entity.Resolve(entityType)
	if err != nil {
		return nil, err
	}
	items, err := s.GetDirtyItemsByType(ctx, tenantID, kind.EntityType)
	if err != nil {
		return nil, fmt.Errorf("backlog %s: %w", kind.EntityType, err)
	}
	if items == nil {
		items = []rentsync.OutboxEntry{}
	}
	return &Backlog{
		TenantID:   tenantID,
		Total:      int64(len(items)),
		EntityType: kind.EntityType,
		Items:      items,
	}, nil
}
