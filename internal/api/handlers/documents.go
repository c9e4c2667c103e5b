package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/burrowlabs/burrow/internal/api"
	"github.com/burrowlabs/burrow/internal/api/middleware"
	"github.com/burrowlabs/burrow/internal/domain"
	"github.com/go-chi/chi/v5"
)

type DocumentIndexer interface {
	IngestDocument(ctx context.Context, doc *domain.Document) (*domain.IngestResult, error)
	PurgeDocument(ctx context.Context, documentHash string) (int64, error)
}

type Auditor interface {
	Record(ctx context.Context, event domain.AuditEvent)
}

type RateGate interface {
	Allow(sessionID string, action domain.ActionKind) domain.RateDecision
}

type DocumentsHandler struct {
	svc     DocumentIndexer
	limiter RateGate
	audit   Auditor
}

func NewDocumentsHandler(svc DocumentIndexer, limiter RateGate, audit Auditor) *DocumentsHandler {
	return &DocumentsHandler{svc: svc, limiter: limiter, audit: audit}
}

type IngestDocumentRequest struct {
	Name          string `json:"name"`
	MediaType     string `json:"media_type,omitempty"`
	Content       string `json:"content,omitempty"`
	ContentBase64 string `json:"content_base64,omitempty"`
}

type PurgeDocumentResponse struct {
	DocumentHash  string `json:"document_hash"`
	ChunksRemoved int64  `json:"chunks_removed"`
}

func (h *DocumentsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	sess := middleware.GetSession(r.Context())
	if sess == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	decision := h.limiter.Allow(sess.ID, domain.ActionIngest)
	if !decision.Allowed {
		h.audit.Record(r.Context(), domain.AuditEvent{
			SessionID: sess.ID,
			RequestID: middleware.GetRequestID(r.Context()),
			Kind:      domain.AuditRateLimited,
			Outcome:   domain.OutcomeDenied,
			Detail:    string(domain.ActionIngest),
		})
		api.HandleError(w, &domain.RateLimitError{RetryAfter: decision.RetryAfter})
		return
	}

	var req IngestDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Content == "" && req.ContentBase64 == "" {
		api.Error(w, http.StatusBadRequest, "content or content_base64 is required")
		return
	}
	if req.Content != "" && req.ContentBase64 != "" {
		api.Error(w, http.StatusBadRequest, "content and content_base64 are mutually exclusive")
		return
	}

	// content_base64 is the byte-faithful path: JSON strings cannot carry
	// arbitrary bytes, so clients with non-UTF-8 payloads must use it.
	raw := []byte(req.Content)
	if req.ContentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "content_base64 is not valid base64")
			return
		}
		raw = decoded
	}

	mediaType := domain.MediaType(req.MediaType)
	if req.MediaType == "" {
		derived, err := domain.MediaTypeForExtension(req.Name)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		mediaType = derived
	}

	doc, err := domain.NewDocument(req.Name, mediaType, raw, time.Now())
	if err != nil {
		h.audit.Record(r.Context(), domain.AuditEvent{
			SessionID: sess.ID,
			RequestID: middleware.GetRequestID(r.Context()),
			Kind:      domain.AuditInputRejected,
			Outcome:   domain.OutcomeRejected,
			Detail:    fmt.Sprintf("document rejected: %v", err),
		})
		api.HandleError(w, err)
		return
	}

	result, err := h.svc.IngestDocument(r.Context(), doc)
	if err != nil {
		h.audit.Record(r.Context(), domain.AuditEvent{
			SessionID: sess.ID,
			RequestID: middleware.GetRequestID(r.Context()),
			Kind:      domain.AuditIngest,
			Outcome:   domain.OutcomeFailure,
			Detail:    err.Error(),
			Duration:  time.Since(start).Milliseconds(),
		})
		api.HandleError(w, err)
		return
	}

	h.audit.Record(r.Context(), domain.AuditEvent{
		SessionID: sess.ID,
		RequestID: middleware.GetRequestID(r.Context()),
		Kind:      domain.AuditIngest,
		Outcome:   domain.OutcomeSuccess,
		Detail:    fmt.Sprintf("name=%s hash=%s chunks=%d", result.DocumentName, result.DocumentHash, result.ChunksIndexed),
		Duration:  time.Since(start).Milliseconds(),
	})

	api.Success(w, http.StatusCreated, result)
}

func (h *DocumentsHandler) Purge(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	hash := chi.URLParam(r, "hash")
	if hash == "" {
		api.Error(w, http.StatusBadRequest, "hash is required")
		return
	}

	removed, err := h.svc.PurgeDocument(r.Context(), hash)
	if err != nil {
		h.audit.Record(r.Context(), domain.AuditEvent{
			SessionID: sess.ID,
			RequestID: middleware.GetRequestID(r.Context()),
			Kind:      domain.AuditPurge,
			Outcome:   domain.OutcomeFailure,
			Detail:    err.Error(),
		})
		api.HandleError(w, err)
		return
	}

	h.audit.Record(r.Context(), domain.AuditEvent{
		SessionID: sess.ID,
		RequestID: middleware.GetRequestID(r.Context()),
		Kind:      domain.AuditPurge,
		Outcome:   domain.OutcomeSuccess,
		Detail:    fmt.Sprintf("hash=%s chunks=%d", hash, removed),
	})

	api.Success(w, http.StatusOK, PurgeDocumentResponse{
		DocumentHash:  hash,
		ChunksRemoved: removed,
	})
}
