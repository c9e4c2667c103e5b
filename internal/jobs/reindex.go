package jobs

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/burrowlabs/burrow/internal/domain"
)

// ReindexSession tags audit records produced by the background
// reindexer rather than by an authenticated caller.
const ReindexSession = "reindex-worker"

// DocumentIngester indexes one validated document.
type DocumentIngester interface {
	IngestDocument(ctx context.Context, doc *domain.Document) (*domain.IngestResult, error)
}

// Auditor records reindex outcomes.
type Auditor interface {
	Record(ctx context.Context, event domain.AuditEvent)
}

// Reindexer sweeps a data directory and ingests new or changed
// documents. Unchanged files are skipped by content hash; indexing
// itself is idempotent, so a missed skip costs work, not correctness.
type Reindexer struct {
	dir      string
	ingester DocumentIngester
	audit    Auditor
	seen     map[string]string // path -> content hash at last sweep
	now      func() time.Time
}

// NewReindexer creates a new Reindexer instance
func NewReindexer(dir string, ingester DocumentIngester, audit Auditor) *Reindexer {
	return &Reindexer{
		dir:      dir,
		ingester: ingester,
		audit:    audit,
		seen:     make(map[string]string),
		now:      time.Now,
	}
}

// Sweep implements the Sweeper interface. It walks the data directory
// and ingests every supported file whose content changed since the
// last sweep. Per-file failures are logged and retried on the next
// sweep; only a broken walk fails the sweep itself.
func (r *Reindexer) Sweep(ctx context.Context) error {
	var files []string
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != r.dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, err := domain.MediaTypeForExtension(d.Name()); err != nil {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk data directory: %w", err)
	}

	for _, path := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.sweepFile(ctx, path); err != nil {
			log.Printf("reindex: %s: %v", path, err)
		}
	}
	return nil
}

func (r *Reindexer) sweepFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	hash := domain.HashContent(raw)
	if r.seen[path] == hash {
		return nil
	}

	name := filepath.Base(path)
	mediaType, err := domain.MediaTypeForExtension(name)
	if err != nil {
		return err
	}

	start := r.now()
	doc, err := domain.NewDocument(name, mediaType, raw, start)
	if err != nil {
		// Remember the hash so a rejected file is reported once, not
		// on every sweep.
		r.seen[path] = hash
		r.audit.Record(ctx, domain.AuditEvent{
			SessionID: ReindexSession,
			Kind:      domain.AuditReindex,
			Outcome:   domain.OutcomeRejected,
			Detail:    fmt.Sprintf("name=%s rejected: %v", name, err),
		})
		return err
	}

	result, err := r.ingester.IngestDocument(ctx, doc)
	if err != nil {
		r.audit.Record(ctx, domain.AuditEvent{
			SessionID: ReindexSession,
			Kind:      domain.AuditReindex,
			Outcome:   domain.OutcomeFailure,
			Detail:    fmt.Sprintf("name=%s: %v", name, err),
			Duration:  time.Since(start).Milliseconds(),
		})
		return err
	}

	r.seen[path] = hash
	r.audit.Record(ctx, domain.AuditEvent{
		SessionID: ReindexSession,
		Kind:      domain.AuditReindex,
		Outcome:   domain.OutcomeSuccess,
		Detail: fmt.Sprintf("name=%s hash=%s chunks=%d",
			result.DocumentName, result.DocumentHash, result.ChunksIndexed),
		Duration: time.Since(start).Milliseconds(),
	})
	log.Printf("reindex: indexed %s (%d chunks)", name, result.ChunksIndexed)
	return nil
}
