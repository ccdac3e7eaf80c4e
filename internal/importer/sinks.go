package importer

import (
	"context"
	"errors"
	"time"
)

// ErrSinkUnavailable marks a record-sink failure that is not row-local:
// the backing store is unreachable and the remaining rows cannot be
// attempted. The committer aborts the batch when it sees this error.
// Implementations wrap it so errors.Is matches.
var ErrSinkUnavailable = errors.New("record sink unavailable")

// IsSinkUnavailable reports whether err indicates the sink went away.
func IsSinkUnavailable(err error) bool {
	return errors.Is(err, ErrSinkUnavailable)
}

// RecordSink writes mapped rows to the inventory store. CreateOrUpdate is
// expected to upsert by natural key (SKU) so a retried row does not
// silently duplicate. Row-local rejections (constraint violations) return
// ordinary errors; connectivity failures wrap ErrSinkUnavailable.
type RecordSink interface {
	CreateOrUpdate(ctx context.Context, row MappedRow) (ImportedRecord, error)
}

// ReferenceLookup resolves category and location names against the
// existing reference sets during row validation. found=false means the
// name does not exist; err reports lookup infrastructure failures.
type ReferenceLookup interface {
	ResolveCategory(ctx context.Context, name string) (id int64, found bool, err error)
	ResolveLocation(ctx context.Context, name string) (id int64, found bool, err error)
}

// BatchAuditEntry summarizes one completed import batch for the audit log.
type BatchAuditEntry struct {
	BatchID       string
	FileName      string
	Operation     string // "csv_import"
	TotalRows     int
	ImportedCount int
	FailedCount   int
	Cancelled     bool
	Duration      time.Duration
}

// AuditSink appends batch summaries to the audit log. Append failures are
// logged and ignored by the committer; they never fail the import.
type AuditSink interface {
	Append(ctx context.Context, entry BatchAuditEntry) error
}
