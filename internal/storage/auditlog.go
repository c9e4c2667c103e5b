package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/burrowlabs/burrow/internal/domain"
)

const (
	auditDirMode  fs.FileMode = 0o700
	auditFileMode fs.FileMode = 0o600
)

// FileAuditLog appends audit events to a local JSONL file, one event
// per line. The directory is created owner-only and the file is opened
// append-only; writes are serialized and return only after the line
// reached the operating system.
type FileAuditLog struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileAuditLog opens (creating if needed) the audit log at path.
func NewFileAuditLog(path string) (*FileAuditLog, error) {
	if path == "" {
		return nil, fmt.Errorf("audit log path is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, auditDirMode); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, auditFileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}

	// The file may predate this process with looser permissions.
	if err := file.Chmod(auditFileMode); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to restrict audit log permissions: %w", err)
	}

	return &FileAuditLog{path: path, file: file}, nil
}

// Append writes one event as a single JSON line.
func (l *FileAuditLog) Append(event domain.AuditEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// Tail returns up to limit of the most recent events, oldest first.
// Lines that fail to decode are skipped so one corrupt record cannot
// hide the rest of the log.
func (l *FileAuditLog) Tail(limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log for reading: %w", err)
	}
	defer file.Close()

	// Ring of the last `limit` raw lines; the log is line-oriented and
	// local, so a single forward scan is fine.
	ring := make([]string, 0, limit)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == limit {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan audit log: %w", err)
	}

	events := make([]domain.AuditEvent, 0, len(ring))
	for _, line := range ring {
		var event domain.AuditEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// Path returns the location of the log file.
func (l *FileAuditLog) Path() string {
	return l.path
}

// Close releases the underlying file handle.
func (l *FileAuditLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
