package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/outbox"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/reconcile"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/restore"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/validation"
)

// maxRecordBodyBytes bounds a single record write request.
const maxRecordBodyBytes = 1 << 20

// Pinger reports local store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Restorer runs a tenant restore.
type Restorer interface {
	Run(ctx context.Context, tenantID string) (*restore.Result, error)
}

// Auditor compares local and remote counts for a tenant.
type Auditor interface {
	Run(ctx context.Context, tenantID string) (*reconcile.Summary, error)
}

// Drainer pushes dirty outbox entries to the remote store.
type Drainer interface {
	Drain(ctx context.Context, tenantID string, progress outbox.ProgressFunc) (*outbox.Report, error)
}

// Records reads and writes single business records.
type Records interface {
	Get(ctx context.Context, tenantID, kindName, key string) (entity.Kind, entity.Record, error)
	Save(ctx context.Context, tenantID, kindName, key string, fields map[string]any) (entity.Kind, entity.Record, error)
}

// Deps holds the collaborators of the HTTP handlers.
type Deps struct {
	Store          Pinger
	Backlog        outbox.BacklogStore
	Restorer       Restorer
	Auditor        Auditor
	Drainer        Drainer
	Records        Records
	APIKey         string
	Version        string
	RemoteDriver   string
	MetricsEnabled bool
}

// Handler handles HTTP requests for the operator API.
type Handler struct {
	store          Pinger
	backlog        outbox.BacklogStore
	restorer       Restorer
	auditor        Auditor
	drainer        Drainer
	records        Records
	apiKey         string
	version        string
	remoteDriver   string
	metricsEnabled bool
}

// NewHandler creates a new handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:          d.Store,
		backlog:        d.Backlog,
		restorer:       d.Restorer,
		auditor:        d.Auditor,
		drainer:        d.Drainer,
		records:        d.Records,
		apiKey:         d.APIKey,
		version:        d.Version,
		remoteDriver:   d.RemoteDriver,
		metricsEnabled: d.MetricsEnabled,
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Remote   string `json:"remote"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Database: "ok",
		Remote:   h.remoteDriver,
	}
	status := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "component", "api", "error", err)
		resp.Status = "unhealthy"
		resp.Database = "unavailable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

// Restore handles POST /api/v1/tenants/{tenant_id}/restore
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	tenantID := MustTenantIDFromContext(r.Context())

	// A client that disconnects must not abort the restore halfway.
	result, err := h.restorer.Run(context.WithoutCancel(r.Context()), tenantID)
	if err != nil && result == nil {
		slog.Warn("restore rejected",
			"component", "api",
			"action", "restore",
			"tenant_id", tenantID,
			"error", err,
		)
		MapError(w, r, err)
		return
	}

	slog.Info("restore served",
		"component", "api",
		"action", "restore",
		"tenant_id", tenantID,
		"run_id", result.RunID,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"errors", len(result.Errors),
		"interrupted", err != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	// Partial failures are reported in the body, never as an HTTP error.
	writeJSON(w, http.StatusOK, result)
}

// Reconcile handles GET /api/v1/tenants/{tenant_id}/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	tenantID := MustTenantIDFromContext(r.Context())

	summary, err := h.auditor.Run(r.Context(), tenantID)
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type backlogQuery struct {
	EntityType string `json:"entity_type" validate:"omitempty,entitykind"`
}

// Backlog handles GET /api/v1/tenants/{tenant_id}/outbox/backlog
func (h *Handler) Backlog(w http.ResponseWriter, r *http.Request) {
	tenantID := MustTenantIDFromContext(r.Context())

	q := backlogQuery{EntityType: r.URL.Query().Get("entity_type")}
	if errs := validation.Struct(q); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Invalid backlog query", errs)
		return
	}

	backlog, err := outbox.GetBacklog(r.Context(), h.backlog, tenantID, q.EntityType)
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, backlog)
}

// Drain handles POST /api/v1/tenants/{tenant_id}/outbox/drain
func (h *Handler) Drain(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	tenantID := MustTenantIDFromContext(r.Context())

	report, err := h.drainer.Drain(r.Context(), tenantID, nil)
	if err != nil {
		MapError(w, r, err)
		return
	}

	slog.Info("drain served",
		"component", "api",
		"action", "drain",
		"tenant_id", tenantID,
		"pushed", report.Pushed,
		"failed", report.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, report)
}

// RecordRequest is the body of PUT /records/{kind}/{id}. Fields use the
// remote (camelCase) field names of the kind.
type RecordRequest struct {
	Fields map[string]any `json:"fields" validate:"required"`
}

// RecordResponse carries one record in remote shape.
type RecordResponse struct {
	Kind   string         `json:"kind"`
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// PutRecord handles PUT /api/v1/tenants/{tenant_id}/records/{kind}/{id}
func (h *Handler) PutRecord(w http.ResponseWriter, r *http.Request) {
	tenantID := MustTenantIDFromContext(r.Context())
	kindName := chi.URLParam(r, "kind")
	id := chi.URLParam(r, "id")

	// 1. Resolve the kind before reading the body
	kind, err := entity.Resolve(kindName)
	if err != nil {
		MapError(w, r, err)
		return
	}

	// 2. Decode with numbers preserved
	var req RecordRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRecordBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			WriteProblem(w, r, http.StatusBadRequest, "Request body is required")
			return
		}
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	// 3. Validate request shape, then each field against the kind
	if errs := validation.Struct(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Invalid record request", errs)
		return
	}
	if errs := validation.ValidateRecordFields(kind, req.Fields); len(errs) > 0 {
		for i := range errs {
			errs[i].Field = "fields." + errs[i].Field
		}
		WriteProblemWithErrors(w, r, "Record validation failed", errs)
		return
	}

	// 4. Save locally and mark dirty
	kind, rec, err := h.records.Save(r.Context(), tenantID, kind.Name, id, req.Fields)
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recordResponse(kind, rec))
}

// GetRecord handles GET /api/v1/tenants/{tenant_id}/records/{kind}/{id}
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	tenantID := MustTenantIDFromContext(r.Context())

	kind, rec, err := h.records.Get(r.Context(), tenantID, chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recordResponse(kind, rec))
}

func recordResponse(kind entity.Kind, rec entity.Record) RecordResponse {
	id, _ := kind.ParseKey(rec[entity.ColumnID])
	return RecordResponse{
		Kind:   kind.Name,
		ID:     id,
		Fields: kind.Encode(rec),
	}
}
