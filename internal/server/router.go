package server

import (
	"context"
	"net/http"

	"github.com/burrowlabs/burrow/internal/api"
	"github.com/burrowlabs/burrow/internal/api/handlers"
	"github.com/burrowlabs/burrow/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

// Pinger reports whether the vector index backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Authenticator    middleware.SessionAuthenticator
	Audit            middleware.AuthAuditor
	Index            Pinger
	DocumentsHandler *handlers.DocumentsHandler
	QueryHandler     *handlers.QueryHandler
	AgentHandler     *handlers.AgentHandler
	AdminHandler     *handlers.AdminHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Documents are capped at 10 MiB raw; the JSON envelope and
	// escaping need headroom on top of that.
	const maxBodyBytes int64 = 12 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Index != nil {
			if err := cfg.Index.Ping(r.Context()); err != nil {
				api.Error(w, http.StatusServiceUnavailable, "vector index unavailable")
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(cfg.Authenticator, cfg.Audit))

		r.Route("/v1", func(r chi.Router) {
			r.Post("/documents", cfg.DocumentsHandler.Ingest)
			r.Delete("/documents/{hash}", cfg.DocumentsHandler.Purge)

			r.Post("/query", cfg.QueryHandler.Ask)
			r.Post("/agent", cfg.AgentHandler.Run)

			r.Get("/index/stats", cfg.AdminHandler.IndexStats)
			r.Get("/admin/audit", cfg.AdminHandler.AuditTail)
			r.Get("/admin/metrics", cfg.AdminHandler.Metrics)
		})
	})

	return r
}
