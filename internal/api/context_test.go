package api

import (
	"context"
	"errors"
	"testing"
)

func TestWithTenantID_RoundTrip(t *testing.T) {
	ctx := WithTenantID(context.Background(), "tenant-a")

	got, err := TenantIDFromContext(ctx)
	if err != nil {
		t.Fatalf("TenantIDFromContext failed: %v", err)
	}
	if got != "tenant-a" {
		t.Errorf("tenant = %q, want tenant-a", got)
	}
}

func TestTenantIDFromContext_Missing(t *testing.T) {
	_, err := TenantIDFromContext(context.Background())
	if !errors.Is(err, ErrNoTenantInContext) {
		t.Errorf("expected ErrNoTenantInContext, got %v", err)
	}
}

func TestTenantIDFromContext_Empty(t *testing.T) {
	_, err := TenantIDFromContext(WithTenantID(context.Background(), ""))
	if !errors.Is(err, ErrNoTenantInContext) {
		t.Errorf("expected ErrNoTenantInContext, got %v", err)
	}
}

func TestMustTenantIDFromContext_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic without tenant")
		}
	}()
	MustTenantIDFromContext(context.Background())
}
