// Package repository is the write path for business records: every save
// goes to the local store first and then marks the record dirty for push.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/store"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/tenant"
)

// RecordStore is the local record storage used by the repository.
type RecordStore interface {
	GetRecord(ctx context.Context, tenantID string, kind entity.Kind, key string) (entity.Record, error)
	SaveRecord(ctx context.Context, tenantID string, kind entity.Kind, rec entity.Record) error
}

// DirtyMarker records push obligations. It must not fail the caller.
type DirtyMarker interface {
	MarkDirty(tenantID, entityType, entityID string)
}

// Repository saves records and marks them dirty.
type Repository struct {
	store  RecordStore
	marker DirtyMarker
	now    func() time.Time
}

// New creates a repository.
func New(s RecordStore, m DirtyMarker) *Repository {
	return &Repository{store: s, marker: m, now: time.Now}
}

// Get returns one record.
func (r *Repository) Get(ctx context.Context, tenantID, kindName, key string) (entity.Kind, entity.Record, error) {
	kind, canonical, err := r.resolve(tenantID, kindName, key)
	if err != nil {
		return entity.Kind{}, nil, err
	}
	rec, err := r.store.GetRecord(ctx, tenantID, kind, canonical)
	if err != nil {
		return entity.Kind{}, nil, err
	}
	return kind, rec, nil
}

// Save creates or updates a record from remote-shaped fields. Fields left
// out keep their stored value on update and take defaults on create. The
// updatedAt clock of the kind is stamped with the current time.
func (r *Repository) Save(ctx context.Context, tenantID, kindName, key string, fields map[string]any) (entity.Kind, entity.Record, error) {
	kind, canonical, err := r.resolve(tenantID, kindName, key)
	if err != nil {
		return entity.Kind{}, nil, err
	}

	existing, err := r.store.GetRecord(ctx, tenantID, kind, canonical)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return entity.Kind{}, nil, err
	}

	now := r.now().UTC()
	input := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		input[k] = v
	}
	delete(input, kind.KeyField)
	if f, ok := kind.ClockField(); ok {
		input[f.Remote] = now.UnixMilli()
	}

	rec, err := kind.Decode(canonical, input, existing, now)
	if err != nil {
		return entity.Kind{}, nil, err
	}
	if err := r.store.SaveRecord(ctx, tenantID, kind, rec); err != nil {
		return entity.Kind{}, nil, err
	}

	r.marker.MarkDirty(tenantID, kind.EntityType, canonical)
	return kind, rec, nil
}

func (r *Repository) resolve(tenantID, kindName, key string) (entity.Kind, string, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return entity.Kind{}, "", err
	}
	kind, err := entity.Resolve(kindName)
	if err != nil {
		return entity.Kind{}, "", err
	}
	canonical, err := kind.ParseKey(key)
	if err != nil {
		return entity.Kind{}, "", fmt.Errorf("%s key %q: %w", kind.Name, key, err)
	}
	return kind, canonical, nil
}
