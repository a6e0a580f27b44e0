package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/outbox"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/restore"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/store"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/tenant"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/validation"
)

func TestProblem_JSONSerialization(t *testing.T) {
	p := Problem{
		Type:     "https://rentsync.dev/errors/unauthorized",
		Title:    "Unauthorized",
		Status:   401,
		Detail:   "Missing or invalid API key",
		Instance: "/api/v1/tenants/acme/restore",
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("failed to marshal Problem: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal Problem JSON: %v", err)
	}

	// Verify all RFC 7807 fields present
	if decoded["type"] != "https://rentsync.dev/errors/unauthorized" {
		t.Errorf("type = %v, want %v", decoded["type"], "https://rentsync.dev/errors/unauthorized")
	}
	if decoded["title"] != "Unauthorized" {
		t.Errorf("title = %v, want %v", decoded["title"], "Unauthorized")
	}
	if decoded["status"] != float64(401) {
		t.Errorf("status = %v, want %v", decoded["status"], 401)
	}
	if decoded["instance"] != "/api/v1/tenants/acme/restore" {
		t.Errorf("instance = %v, want %v", decoded["instance"], "/api/v1/tenants/acme/restore")
	}
}

func TestWriteProblem_ContentTypeAndInstance(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/reconcile", nil)

	WriteProblem(w, r, http.StatusUnauthorized, "Missing or invalid API key")

	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %v, want application/problem+json", ct)
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if p.Instance != "/api/v1/tenants/acme/reconcile" {
		t.Errorf("instance = %v, want /api/v1/tenants/acme/reconcile", p.Instance)
	}
	if p.Title != "Unauthorized" {
		t.Errorf("title = %v, want Unauthorized", p.Title)
	}
}

func TestWriteProblem_UnknownStatus(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)

	WriteProblem(w, r, http.StatusTeapot, "short and stout")

	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if p.Type != "https://rentsync.dev/errors/unknown" {
		t.Errorf("type = %v, want unknown type", p.Type)
	}
	if p.Title != http.StatusText(http.StatusTeapot) {
		t.Errorf("title = %v, want %v", p.Title, http.StatusText(http.StatusTeapot))
	}
}

func TestWriteProblemWithErrors(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPut, "/api/v1/tenants/acme/records/customers/7", nil)

	errs := []validation.ValidationError{
		{Field: "fields.email", Message: "contains null bytes"},
		{Field: "fields.isVip", Message: "type mismatch"},
	}
	WriteProblemWithErrors(w, r, "Record validation failed", errs)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}

	var p ProblemWithErrors
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if p.Type != "https://rentsync.dev/errors/validation-error" {
		t.Errorf("type = %v, want validation-error", p.Type)
	}
	if len(p.Errors) != 2 {
		t.Fatalf("len(errors) = %d, want 2", len(p.Errors))
	}
	if p.Errors[0].Field != "fields.email" {
		t.Errorf("errors[0].field = %v, want fields.email", p.Errors[0].Field)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound, "not-found"},
		{"wrapped not found", fmt.Errorf("get: %w", store.ErrNotFound), http.StatusNotFound, "not-found"},
		{"unknown kind", entity.ErrUnknownKind, http.StatusNotFound, "not-found"},
		{"unknown table", store.ErrUnknownTable, http.StatusNotFound, "not-found"},
		{"invalid tenant", tenant.ErrInvalidTenantID, http.StatusBadRequest, "bad-request"},
		{"missing key", entity.ErrMissingPrimaryKey, http.StatusBadRequest, "bad-request"},
		{"type mismatch", fmt.Errorf("dailyRate: %w", entity.ErrTypeMismatch), http.StatusUnprocessableEntity, "validation-error"},
		{"restore running", restore.ErrRestoreInProgress, http.StatusConflict, "conflict"},
		{"drain running", outbox.ErrDrainInProgress, http.StatusConflict, "conflict"},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, "service-unavailable"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal-error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/records/cars/1", nil)

			MapError(w, r, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var p Problem
			if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
				t.Fatalf("failed to unmarshal: %v", err)
			}
			if p.Type != "https://rentsync.dev/errors/"+tt.wantType {
				t.Errorf("type = %v, want suffix %v", p.Type, tt.wantType)
			}
		})
	}
}

func TestMapError_NoInternalLeak(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)

	MapError(w, r, errors.New("password=hunter2 rejected by db"))

	if strings.Contains(w.Body.String(), "hunter2") {
		t.Error("response leaks internal error detail")
	}
}
