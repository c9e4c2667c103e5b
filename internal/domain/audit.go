package domain

import "time"

// AuditKind classifies security-relevant events.
type AuditKind string

const (
	AuditAuthSuccess   AuditKind = "auth_success"
	AuditAuthFailure   AuditKind = "auth_failure"
	AuditQuery         AuditKind = "query"
	AuditIngest        AuditKind = "ingest"
	AuditPurge         AuditKind = "purge"
	AuditReindex       AuditKind = "reindex"
	AuditAgentTurn     AuditKind = "agent_turn"
	AuditToolCall      AuditKind = "tool_call"
	AuditToolRejected  AuditKind = "tool_rejected"
	AuditRateLimited   AuditKind = "rate_limited"
	AuditInputRejected AuditKind = "input_rejected"
	AuditWriteFailure  AuditKind = "audit_write_failure"
)

// AuditOutcome records how the audited operation ended.
type AuditOutcome string

const (
	OutcomeSuccess  AuditOutcome = "success"
	OutcomeFailure  AuditOutcome = "failure"
	OutcomeDenied   AuditOutcome = "denied"
	OutcomeRejected AuditOutcome = "rejected"
)

// AnonymousSession marks audit records that predate authentication.
const AnonymousSession = "anonymous"

// AuditEvent is one append-only audit record. Detail must already be
// redacted by the producer: bounded length, no raw document content,
// no secrets.
type AuditEvent struct {
	Time      time.Time    `json:"ts"`
	SessionID string       `json:"session_id"`
	RequestID string       `json:"request_id,omitempty"`
	Kind      AuditKind    `json:"kind"`
	Outcome   AuditOutcome `json:"outcome"`
	Detail    string       `json:"detail,omitempty"`
	Duration  int64        `json:"duration_ms,omitempty"`
}
