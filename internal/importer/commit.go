package importer

// commit.go writes the confirmed preview through the record sink, one row
// at a time in source order. Sequential per-row commits keep progress an
// exact, monotonic signal and guarantee the cancellation boundary always
// falls between two complete rows, never mid-row.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stockroom-app/stockroom/internal/csvio"
)

// ProgressFunc observes commit progress. It is invoked synchronously
// between rows with a snapshot, so implementations must not block for
// long.
type ProgressFunc func(ImportProgress)

// Committer performs the staged import against the external sinks.
type Committer struct {
	Records RecordSink
	Audit   AuditSink
}

// Run commits the preview's valid rows. Row-local sink failures land in
// FailedItems and the batch continues; a sink-unavailable error aborts the
// remaining rows with IsError set; context cancellation stops cleanly
// between rows with a partial result. Rows not attempted appear in neither
// ImportedItems nor FailedItems.
func (c *Committer) Run(ctx context.Context, batchID, fileName string, preview *ImportPreview, table *csvio.RawTable, onProgress ProgressFunc) *ImportResult {
	start := time.Now()
	rows := preview.MappedData

	result := &ImportResult{
		Warnings:     preview.Warnings,
		WarningCount: preview.Statistics.WarningRows,
	}

	progress := ImportProgress{TotalRows: len(rows), CurrentOperation: "starting import"}
	notify := func() {
		if onProgress != nil {
			onProgress(progress)
		}
	}
	notify()

	// Sink calls run on a non-cancellable context so a cancel or timeout
	// never tears an upsert mid-row. The loop-top check is the only place
	// the run stops, so a row either commits fully or is never attempted.
	rowCtx := context.WithoutCancel(ctx)

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				progress.IsError = true
				progress.Errors = append(progress.Errors, "import timed out")
				result.Errors = append(result.Errors, CellIssue{
					Message:  "import timed out before all rows were committed",
					Severity: SeverityError,
				})
				progress.CurrentOperation = "import timed out"
			} else {
				result.Cancelled = true
				progress.CurrentOperation = "import cancelled"
			}
			break
		}

		record, err := c.Records.CreateOrUpdate(rowCtx, row)
		if err != nil {
			if IsSinkUnavailable(err) {
				progress.IsError = true
				progress.Errors = append(progress.Errors, err.Error())
				result.FailedItems = append(result.FailedItems, FailedItem{
					Row:    row.Row,
					Data:   rowData(table, row.Row),
					Reason: err.Error(),
				})
				result.Errors = append(result.Errors, CellIssue{
					Row:      row.Row,
					Message:  fmt.Sprintf("import aborted: %v", err),
					Severity: SeverityError,
				})
				progress.CurrentOperation = "import aborted"
				break
			}

			result.FailedItems = append(result.FailedItems, FailedItem{
				Row:    row.Row,
				Data:   rowData(table, row.Row),
				Reason: err.Error(),
			})
			result.Errors = append(result.Errors, CellIssue{
				Row:      row.Row,
				Message:  err.Error(),
				Severity: SeverityError,
			})
			progress.Errors = append(progress.Errors, fmt.Sprintf("row %d: %v", row.Row, err))
			progress.advance(i+1, len(rows), fmt.Sprintf("row %d failed", row.Row))
			notify()
			continue
		}

		result.ImportedItems = append(result.ImportedItems, record)
		progress.advance(i+1, len(rows), fmt.Sprintf("imported %s", record.SKU))
		notify()
	}

	result.ImportedCount = len(result.ImportedItems)
	result.ErrorCount = len(result.FailedItems)
	result.Success = result.ErrorCount == 0 && !progress.IsError
	result.Duration = time.Since(start)

	progress.IsComplete = true
	if !result.Cancelled && !progress.IsError {
		progress.CurrentOperation = "import complete"
	}
	notify()

	c.appendAudit(ctx, batchID, fileName, result, len(rows))
	return result
}

// appendAudit records the batch summary. Audit failures are logged and
// swallowed; they never fail the import.
func (c *Committer) appendAudit(ctx context.Context, batchID, fileName string, result *ImportResult, totalRows int) {
	if c.Audit == nil {
		return
	}

	entry := BatchAuditEntry{
		BatchID:       batchID,
		FileName:      fileName,
		Operation:     "csv_import",
		TotalRows:     totalRows,
		ImportedCount: result.ImportedCount,
		FailedCount:   result.ErrorCount,
		Cancelled:     result.Cancelled,
		Duration:      result.Duration,
	}

	// Cancelled batches still need their summary recorded, so the append
	// runs on a fresh deadline detached from the commit context.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := c.Audit.Append(auditCtx, entry); err != nil {
		slog.Warn("audit append failed", "batch_id", batchID, "error", err)
	}
}

// rowData reconstructs the original source row as header->value pairs for
// failed-item export. rowNum is 1-based.
func rowData(table *csvio.RawTable, rowNum int) map[string]string {
	data := make(map[string]string, len(table.Headers))
	for col, header := range table.Headers {
		data[header] = table.Cell(rowNum-1, col)
	}
	return data
}
