package service

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/burrowlabs/burrow/internal/domain"
)

// SessionService verifies the operator token and tracks bounded
// conversation history per session. There is one configured token;
// sessions exist to scope rate limits, history, and audit records.
type SessionService struct {
	mu       sync.Mutex
	token    string
	ttl      time.Duration
	sessions *gocache.Cache
	now      func() time.Time
}

// NewSessionService creates a new SessionService instance
func NewSessionService(token string, ttl time.Duration) (*SessionService, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("session token must be configured")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionService{
		token:    token,
		ttl:      ttl,
		sessions: gocache.New(ttl, 2*ttl),
		now:      time.Now,
	}, nil
}

// Authenticate verifies the presented token in constant time and
// returns the session bound to it, creating a fresh one when none
// exists or the previous one expired. Activity slides the TTL.
func (s *SessionService) Authenticate(presented string) (*domain.Session, error) {
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) != 1 {
		return nil, domain.ErrInvalidSessionToken
	}

	id := domain.SessionIDFromToken(presented)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if v, ok := s.sessions.Get(id); ok {
		sess := v.(*domain.Session)
		sess.LastSeenAt = now
		s.sessions.Set(id, sess, s.ttl)
		return sess, nil
	}

	sess := &domain.Session{ID: id, CreatedAt: now, LastSeenAt: now}
	s.sessions.Set(id, sess, s.ttl)
	return sess, nil
}

// RememberTurn appends one conversation turn to the session history.
// Unknown sessions are ignored; history is best-effort state, not a
// correctness dependency.
func (s *SessionService) RememberTurn(sessionID string, role domain.TurnRole, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	sess := v.(*domain.Session)
	sess.AppendTurn(role, content, s.now())
	s.sessions.Set(sessionID, sess, s.ttl)
}

// History returns a copy of the session's conversation turns.
func (s *SessionService) History(sessionID string) []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil
	}
	sess := v.(*domain.Session)
	turns := make([]domain.Turn, len(sess.Turns))
	copy(turns, sess.Turns)
	return turns
}
