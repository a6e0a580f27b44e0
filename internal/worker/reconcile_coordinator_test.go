package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/reconcile"
)

// mockReconciler returns a per-tenant summary or error.
type mockReconciler struct {
	mu        sync.Mutex
	calls     []string
	summaries map[string]*reconcile.Summary
	errs      map[string]error
}

func newMockReconciler() *mockReconciler {
	return &mockReconciler{
		summaries: make(map[string]*reconcile.Summary),
		errs:      make(map[string]error),
	}
}

func (m *mockReconciler) Run(ctx context.Context, tenantID string) (*reconcile.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, tenantID)
	if err := m.errs[tenantID]; err != nil {
		return nil, err
	}
	if s, ok := m.summaries[tenantID]; ok {
		return s, nil
	}
	return &reconcile.Summary{TenantID: tenantID}, nil
}

func (m *mockReconciler) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(old) })
	return &buf
}

func TestReconcileCoordinator_IsolatesTenantFailures(t *testing.T) {
	// Given: Three tenants where the second fails
	r := newMockReconciler()
	r.errs["t2"] = errors.New("invalid tenant")
	c := NewReconcileCoordinator(r, []string{"t1", "t2", "t3"}, time.Hour)
	logs := captureLogs(t)

	// When: One cycle runs
	c.reconcileAll(context.Background())

	// Then: Every tenant is audited and the cycle is summarised
	if got := r.getCalls(); len(got) != 3 {
		t.Fatalf("calls = %v, want 3 tenants", got)
	}
	out := logs.String()
	if !strings.Contains(out, `"tenants_failed":1`) || !strings.Contains(out, `"tenants_healthy":2`) {
		t.Errorf("cycle summary missing from logs: %s", out)
	}
}

func TestReconcileCoordinator_LogsPermissionProblems(t *testing.T) {
	local, cloud := int64(3), int64(0)
	r := newMockReconciler()
	r.summaries["t1"] = &reconcile.Summary{
		TenantID:         "t1",
		HasIssues:        true,
		HasErrors:        true,
		PermissionErrors: 1,
		Items: []reconcile.Item{
			{Key: "customers", Status: reconcile.StatusOK, LocalCount: &local, CloudCount: &local},
			{Key: "payments", Status: reconcile.StatusError, PermissionDenied: true, LocalCount: &cloud, Message: "permission denied reading cloud count"},
		},
	}
	c := NewReconcileCoordinator(r, []string{"t1"}, time.Hour)
	logs := captureLogs(t)

	c.reconcileAll(context.Background())

	out := logs.String()
	if !strings.Contains(out, "remote access rules deny reads") {
		t.Errorf("permission warning missing: %s", out)
	}
	if !strings.Contains(out, `"collection":"payments"`) || strings.Contains(out, `"collection":"customers"`) {
		t.Errorf("expected only the failing collection to be logged: %s", out)
	}
}

func TestReconcileCoordinator_StopsOnCancel(t *testing.T) {
	r := newMockReconciler()
	c := NewReconcileCoordinator(r, []string{"t1"}, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(r.getCalls()) == 0 {
		select {
		case <-deadline:
			t.Fatal("coordinator never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("coordinator did not stop after cancel")
	}
}

func TestReconcileCoordinator_CancelledMidCycle(t *testing.T) {
	r := newMockReconciler()
	c := NewReconcileCoordinator(r, []string{"t1", "t2"}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c.reconcileAll(ctx)

	if got := r.getCalls(); len(got) != 0 {
		t.Errorf("calls after cancel = %v", got)
	}
}
