// Package sync holds the outbox types shared by the local store, the dirty
// marker and the drainer.
package sync

import "time"

// OutboxEntry is one pending or completed push obligation for a record.
type OutboxEntry struct {
	ID             int64      `json:"id"`
	TenantID       string     `json:"tenantId"`
	EntityType     string     `json:"entityType"`
	EntityID       string     `json:"entityId"`
	IsDirty        bool       `json:"isDirty"`
	LastDirtyAt    time.Time  `json:"lastDirtyAt"`
	LastSyncStatus string     `json:"lastSyncStatus,omitempty"` // "", "success" or "failed"
	LastSyncError  string     `json:"lastSyncError,omitempty"`
	LastAttemptAt  *time.Time `json:"lastAttemptAt,omitempty"`
	Attempts       int        `json:"attempts"`
}

// Sync status constants
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// TypeCount is the dirty backlog of one entity type.
type TypeCount struct {
	EntityType string `json:"entityType"`
	Count      int64  `json:"count"`
}
