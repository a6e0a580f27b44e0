package api

import (
	"context"
	"errors"
)

// tenantIDContextKey is the context key for the validated tenant ID.
type tenantIDContextKey struct{}

// ErrNoTenantInContext indicates no tenant was found in the context.
var ErrNoTenantInContext = errors.New("no tenant in context")

// WithTenantID returns a new context with the tenant ID attached.
func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tenantIDContextKey{}, id)
}

// TenantIDFromContext extracts the tenant ID from the context.
// Returns ErrNoTenantInContext if not present or empty.
func TenantIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(tenantIDContextKey{}).(string)
	if !ok || id == "" {
		return "", ErrNoTenantInContext
	}
	return id, nil
}

// MustTenantIDFromContext extracts the tenant ID or panics.
// Use only when TenantMiddleware guarantees tenant presence.
func MustTenantIDFromContext(ctx context.Context) string {
	id, err := TenantIDFromContext(ctx)
	if err != nil {
		panic("tenant not in context: middleware misconfiguration")
	}
	return id
}
