package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/burrowlabs/burrow/internal/api"
	"github.com/burrowlabs/burrow/internal/api/middleware"
	"github.com/burrowlabs/burrow/internal/domain"
	"github.com/burrowlabs/burrow/internal/pagination"
	"github.com/burrowlabs/burrow/internal/service"
)

// auditWindow caps how far back cursor pages can reach in one admin
// view; the underlying tail read is bounded to the same window.
const auditWindow = 1000

type IndexInspector interface {
	Stats(ctx context.Context) (domain.IndexStats, error)
	Catalog(ctx context.Context) ([]domain.DocumentInfo, error)
}

type AuditReader interface {
	Tail(limit int) ([]domain.AuditEvent, error)
}

type AdminHandler struct {
	index   IndexInspector
	audit   AuditReader
	limits  service.RateLimitConfig
	started time.Time
}

func NewAdminHandler(index IndexInspector, audit AuditReader, limits service.RateLimitConfig) *AdminHandler {
	return &AdminHandler{
		index:   index,
		audit:   audit,
		limits:  limits,
		started: time.Now(),
	}
}

type IndexStatsResponse struct {
	Chunks        int64                 `json:"chunks"`
	Documents     int64                 `json:"documents"`
	LastIndexedAt string                `json:"last_indexed_at,omitempty"`
	Catalog       []domain.DocumentInfo `json:"catalog"`
}

func (h *AdminHandler) IndexStats(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.index.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	catalog, err := h.index.Catalog(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if catalog == nil {
		catalog = []domain.DocumentInfo{}
	}

	resp := IndexStatsResponse{
		Chunks:    stats.Chunks,
		Documents: stats.Documents,
		Catalog:   catalog,
	}
	if stats.LastIndexedAt != nil {
		resp.LastIndexedAt = stats.LastIndexedAt.UTC().Format(time.RFC3339)
	}

	api.Success(w, http.StatusOK, resp)
}

type MetricsResponse struct {
	UptimeSeconds   int64  `json:"uptime_seconds"`
	IndexChunks     int64  `json:"index_chunks"`
	IndexDocuments  int64  `json:"index_documents"`
	RateLimitMax    int    `json:"rate_limit_max"`
	RateLimitWindow string `json:"rate_limit_window"`
}

func (h *AdminHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.index.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, MetricsResponse{
		UptimeSeconds:   int64(time.Since(h.started).Seconds()),
		IndexChunks:     stats.Chunks,
		IndexDocuments:  stats.Documents,
		RateLimitMax:    h.limits.Max,
		RateLimitWindow: h.limits.Window.String(),
	})
}

type AuditTailResponse struct {
	Events  []domain.AuditEvent `json:"events"`
	Count   int                 `json:"count"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *AdminHandler) AuditTail(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > auditWindow {
		limit = auditWindow
	}

	offset := 0
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cur, err := pagination.DecodeCursor(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		if cur != nil {
			offset = cur.Offset
		}
	}
	if offset >= auditWindow {
		api.Success(w, http.StatusOK, AuditTailResponse{Events: []domain.AuditEvent{}})
		return
	}

	requested := offset + limit
	if requested > auditWindow {
		requested = auditWindow
	}

	events, err := h.audit.Tail(requested)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	// The sink returns oldest first; the admin view pages newest first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	if offset > len(events) {
		offset = len(events)
	}
	end := offset + limit
	if end > len(events) {
		end = len(events)
	}
	page := events[offset:end]
	if page == nil {
		page = []domain.AuditEvent{}
	}

	cursor := pagination.NextCursor(len(events), requested, end)
	api.Success(w, http.StatusOK, AuditTailResponse{
		Events:  page,
		Count:   len(page),
		Cursor:  cursor,
		HasMore: cursor != "",
	})
}
