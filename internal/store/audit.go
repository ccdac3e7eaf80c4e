package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-app/stockroom/internal/importer"
)

// AuditStore persists one summary row per import batch and serves the
// audit-log viewer. Append failures are the caller's problem to ignore;
// this type just reports them.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Append writes one batch summary entry.
func (a *AuditStore) Append(ctx context.Context, entry importer.BatchAuditEntry) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO import_audit_log (
			batch_id, file_name, operation, total_rows, imported_count,
			failed_count, cancelled, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		entry.BatchID,
		entry.FileName,
		entry.Operation,
		entry.TotalRows,
		entry.ImportedCount,
		entry.FailedCount,
		entry.Cancelled,
		entry.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", classify(err))
	}
	return nil
}

// AuditEntry is one row of the audit-log viewer.
type AuditEntry struct {
	ID            int64     `json:"id"`
	BatchID       string    `json:"batchId"`
	FileName      string    `json:"fileName"`
	Operation     string    `json:"operation"`
	TotalRows     int       `json:"totalRows"`
	ImportedCount int       `json:"importedCount"`
	FailedCount   int       `json:"failedCount"`
	Cancelled     bool      `json:"cancelled"`
	DurationMS    int64     `json:"durationMs"`
	CreatedAt     time.Time `json:"createdAt"`
}

// List returns audit entries newest first.
func (a *AuditStore) List(ctx context.Context, limit, offset int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := a.pool.Query(ctx, `
		SELECT id, batch_id, file_name, operation, total_rows, imported_count,
		       failed_count, cancelled, duration_ms, created_at
		FROM import_audit_log
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", classify(err))
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0, limit)
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(
			&e.ID, &e.BatchID, &e.FileName, &e.Operation, &e.TotalRows,
			&e.ImportedCount, &e.FailedCount, &e.Cancelled, &e.DurationMS,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit rows: %w", err)
	}

	return entries, nil
}
