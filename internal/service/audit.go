package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/burrowlabs/burrow/internal/domain"
	"github.com/burrowlabs/burrow/internal/telemetry"
)

// maxAuditDetailChars bounds the detail field of every audit record so
// raw document or query content cannot flood the log.
const maxAuditDetailChars = 200

// AuditSink persists audit events.
type AuditSink interface {
	Append(event domain.AuditEvent) error
	Tail(limit int) ([]domain.AuditEvent, error)
}

// AuditService records security-relevant events synchronously. A
// failing sink never fails the audited request; the write failure is
// escalated to the process log and telemetry instead of being dropped
// silently.
type AuditService struct {
	sink AuditSink
	now  func() time.Time
}

// NewAuditService creates a new AuditService instance
func NewAuditService(sink AuditSink) *AuditService {
	return &AuditService{
		sink: sink,
		now:  time.Now,
	}
}

// Record appends one event, filling in time and session defaults and
// redacting the detail field.
func (s *AuditService) Record(ctx context.Context, event domain.AuditEvent) {
	if event.Time.IsZero() {
		event.Time = s.now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = domain.AnonymousSession
	}
	event.Detail = redactDetail(event.Detail)

	if err := s.sink.Append(event); err != nil {
		escalated := fmt.Errorf("audit append failed for kind=%s: %w", event.Kind, err)
		log.Printf("audit: kind=%s session=%s request=%s %v",
			domain.AuditWriteFailure, event.SessionID, event.RequestID, escalated)
		telemetry.CaptureError(ctx, escalated)
	}
}

// Tail returns up to limit recent events for admin review, oldest
// first.
func (s *AuditService) Tail(limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	events, err := s.sink.Tail(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit tail: %w", err)
	}
	return events, nil
}

// redactDetail strips NUL bytes and bounds the excerpt length. The
// content itself stays verbatim so the record keeps forensic value.
func redactDetail(detail string) string {
	detail = strings.ReplaceAll(detail, "\x00", "")
	runes := []rune(detail)
	if len(runes) > maxAuditDetailChars {
		return string(runes[:maxAuditDetailChars]) + "..."
	}
	return detail
}
