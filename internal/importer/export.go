package importer

// export.go renders a finished import as downloadable artifacts: an issue
// report CSV, a failed-rows CSV that users can fix and re-upload, and a
// structured JSON document for programmatic consumers.

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"
)

// WriteIssuesCSV writes every error and warning from the result as CSV with
// columns row, column, severity, message, suggestion. Rows are ordered by
// row number, errors before warnings within a row.
func WriteIssuesCSV(w io.Writer, result *ImportResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"row", "field", "value", "severity", "message", "suggestion"}); err != nil {
		return fmt.Errorf("write issues header: %w", err)
	}

	issues := make([]CellIssue, 0, len(result.Errors)+len(result.Warnings))
	issues = append(issues, result.Errors...)
	issues = append(issues, result.Warnings...)
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Row != issues[j].Row {
			return issues[i].Row < issues[j].Row
		}
		return issues[i].Severity == SeverityError && issues[j].Severity != SeverityError
	})

	for _, issue := range issues {
		record := []string{
			fmt.Sprintf("%d", issue.Row),
			string(issue.Field),
			issue.Value,
			string(issue.Severity),
			issue.Message,
			issue.Suggestion,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write issue row %d: %w", issue.Row, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFailedItemsCSV writes the rows that failed during commit using the
// original source headers plus a trailing failure_reason column, so the
// file can be corrected and re-imported directly.
func WriteFailedItemsCSV(w io.Writer, headers []string, result *ImportResult) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(headers)+1)
	header = append(header, headers...)
	header = append(header, "failure_reason")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write failed-items header: %w", err)
	}

	items := make([]FailedItem, len(result.FailedItems))
	copy(items, result.FailedItems)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Row < items[j].Row })

	for _, item := range items {
		record := make([]string, 0, len(headers)+1)
		for _, h := range headers {
			record = append(record, item.Data[h])
		}
		record = append(record, item.Reason)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write failed row %d: %w", item.Row, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ResultDocument is the JSON-exportable summary of a finished import.
type ResultDocument struct {
	FileName      string           `json:"file_name"`
	CompletedAt   time.Time        `json:"completed_at"`
	Success       bool             `json:"success"`
	Cancelled     bool             `json:"cancelled"`
	ImportedCount int              `json:"imported_count"`
	ErrorCount    int              `json:"error_count"`
	WarningCount  int              `json:"warning_count"`
	DurationMS    int64            `json:"duration_ms"`
	ImportedItems []ImportedRecord `json:"imported_items"`
	Errors        []CellIssue      `json:"errors"`
	Warnings      []CellIssue      `json:"warnings"`
	FailedItems   []FailedItem     `json:"failed_items"`
}

// BuildResultDocument assembles the export document for a finished import.
func BuildResultDocument(fileName string, completedAt time.Time, result *ImportResult) ResultDocument {
	return ResultDocument{
		FileName:      fileName,
		CompletedAt:   completedAt,
		Success:       result.Success,
		Cancelled:     result.Cancelled,
		ImportedCount: result.ImportedCount,
		ErrorCount:    result.ErrorCount,
		WarningCount:  result.WarningCount,
		DurationMS:    result.Duration.Milliseconds(),
		ImportedItems: result.ImportedItems,
		Errors:        result.Errors,
		Warnings:      result.Warnings,
		FailedItems:   result.FailedItems,
	}
}
