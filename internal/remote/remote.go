// Package remote defines the tenant-scoped remote document store contract and
// its adapters: an HTTP document API, a Postgres JSONB table, a read-only
// backup file (local or S3-compatible) and an in-memory store.
package remote

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrPermissionDenied indicates the remote store refused access. It points
	// at misconfigured access rules rather than data drift.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrReadOnly indicates a write against a read-only source.
	ErrReadOnly = errors.New("remote store is read-only")
	// ErrNotFound indicates a missing remote document or object.
	ErrNotFound = errors.New("remote document not found")
)

// Document is one remote record.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Store is the remote document store. Every call is scoped to a tenant.
type Store interface {
	FetchAll(ctx context.Context, tenantID, collection string) ([]Document, error)
	Count(ctx context.Context, tenantID, collection string) (int64, error)
	Upsert(ctx context.Context, tenantID, collection, id string, fields map[string]any) error
}

// HTTPError is a non-success response from the document API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Is maps 401/403 to ErrPermissionDenied and 404 to ErrNotFound.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrPermissionDenied:
		return e.StatusCode == 401 || e.StatusCode == 403
	case ErrNotFound:
		return e.StatusCode == 404
	}
	return false
}

// IsPermissionDenied reports whether err is an access denial from any adapter.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
