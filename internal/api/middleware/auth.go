package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/burrowlabs/burrow/internal/api"
	"github.com/burrowlabs/burrow/internal/domain"
)

type contextKey string

const SessionKey contextKey = "session"

type SessionAuthenticator interface {
	Authenticate(presented string) (*domain.Session, error)
}

type AuthAuditor interface {
	Record(ctx context.Context, event domain.AuditEvent)
}

// SessionAuth authenticates the bearer token against the configured
// operator token and binds the resulting session to the request
// context. Failed attempts are audited before the request is refused;
// a successful attempt is audited once, when the session is first
// established.
func SessionAuth(auth SessionAuthenticator, audit AuthAuditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				denyAuth(w, r, audit, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				denyAuth(w, r, audit, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			sess, err := auth.Authenticate(token)
			if err != nil {
				denyAuth(w, r, audit, "invalid session token")
				return
			}

			if sess.CreatedAt.Equal(sess.LastSeenAt) {
				audit.Record(r.Context(), domain.AuditEvent{
					SessionID: sess.ID,
					RequestID: GetRequestID(r.Context()),
					Kind:      domain.AuditAuthSuccess,
					Outcome:   domain.OutcomeSuccess,
					Detail:    "session established",
				})
			}

			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func denyAuth(w http.ResponseWriter, r *http.Request, audit AuthAuditor, reason string) {
	audit.Record(r.Context(), domain.AuditEvent{
		RequestID: GetRequestID(r.Context()),
		Kind:      domain.AuditAuthFailure,
		Outcome:   domain.OutcomeDenied,
		Detail:    reason,
	})
	api.Error(w, http.StatusUnauthorized, reason)
}

// GetSession returns the authenticated session from context, or nil
// when the request never passed through SessionAuth.
func GetSession(ctx context.Context) *domain.Session {
	sess, _ := ctx.Value(SessionKey).(*domain.Session)
	return sess
}
