package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ActionKind partitions rate-limit counters per kind of request.
type ActionKind string

const (
	ActionQuery  ActionKind = "query"
	ActionAgent  ActionKind = "agent"
	ActionIngest ActionKind = "ingest"
)

// MaxConversationTurns bounds the per-session history fed back into
// prompts; oldest turns are dropped first.
const MaxConversationTurns = 20

// TurnRole identifies who produced a conversation turn.
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// Turn is one exchange element of a session's conversation.
type Turn struct {
	Role    TurnRole  `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session tracks one authenticated interaction context. The identity
// is derived from the presented token, never the token itself; the
// core trusts the external provider that issued it.
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastSeenAt time.Time
	Turns      []Turn
}

// SessionIDFromToken derives the opaque session identity from a
// bearer token: a truncated sha256 fingerprint, safe to log.
func SessionIDFromToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:16]
}

// AppendTurn adds a turn and enforces the history bound.
func (s *Session) AppendTurn(role TurnRole, content string, at time.Time) {
	s.Turns = append(s.Turns, Turn{Role: role, Content: content, At: at})
	if len(s.Turns) > MaxConversationTurns {
		s.Turns = s.Turns[len(s.Turns)-MaxConversationTurns:]
	}
}

// RateDecision is the rate limiter's verdict for one request.
type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}
