// Package importer implements the CSV import pipeline: column profiling,
// mapping inference and validation, row transformation, preview statistics,
// and the staged commit against the inventory store. It has no HTTP
// dependencies and talks to persistence only through the collaborator
// interfaces in sinks.go.
package importer

import (
	"time"

	"github.com/stockroom-app/stockroom/internal/schema"
)

// DataType is the inferred type of a source CSV column.
type DataType string

const (
	TypeString  DataType = "string"
	TypeNumber  DataType = "number"
	TypeBoolean DataType = "boolean"
	TypeDate    DataType = "date"
	TypeUnknown DataType = "unknown"
)

// ColumnProfile describes one source column after profiling.
// Profiles are computed once per parse and not mutated afterwards.
type ColumnProfile struct {
	Header       string   `json:"header"`
	Index        int      `json:"index"`
	DataType     DataType `json:"dataType"`
	Confidence   float64  `json:"confidence"`
	SampleValues []string `json:"sampleValues"`
}

// ColumnMapping pairs a source column with a target inventory field.
// Unmapped columns point at the notes field with IsMapped=false.
type ColumnMapping struct {
	CSVColumn      string       `json:"csvColumn"`
	ColumnIndex    int          `json:"columnIndex"`
	InventoryField schema.Field `json:"inventoryField"`
	IsMapped       bool         `json:"isMapped"`
}

// Severity classifies a cell issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// CellIssue is a single per-row, per-field problem found during
// transformation, or a row-level problem found during commit.
type CellIssue struct {
	Row        int          `json:"row"` // 1-based data row number
	Field      schema.Field `json:"field,omitempty"`
	Value      string       `json:"value,omitempty"`
	Message    string       `json:"message"`
	Suggestion string       `json:"suggestion,omitempty"`
	Severity   Severity     `json:"severity"`
}

// MappedRow is one source row coerced to the target schema. Values holds
// only fields whose mapping has IsMapped=true; value types are string,
// float64, or time.Time depending on the field's declared type.
type MappedRow struct {
	Row    int                  `json:"row"`
	Values map[schema.Field]any `json:"values"`
}

// String returns the string value for a field, or "".
func (r MappedRow) String(f schema.Field) string {
	if v, ok := r.Values[f].(string); ok {
		return v
	}
	return ""
}

// Number returns the numeric value for a field and whether it was set.
func (r MappedRow) Number(f schema.Field) (float64, bool) {
	v, ok := r.Values[f].(float64)
	return v, ok
}

// Date returns the date value for a field and whether it was set.
func (r MappedRow) Date(f schema.Field) (time.Time, bool) {
	v, ok := r.Values[f].(time.Time)
	return v, ok
}

// ImportStatistics summarizes a preview for user confirmation.
// Warning-only rows count in both ValidRows and WarningRows.
type ImportStatistics struct {
	TotalRows           int           `json:"totalRows"`
	ValidRows           int           `json:"validRows"`
	ErrorRows           int           `json:"errorRows"`
	WarningRows         int           `json:"warningRows"`
	MappedFields        int           `json:"mappedFields"`
	UnmappedFields      int           `json:"unmappedFields"`
	EstimatedImportTime time.Duration `json:"estimatedImportTime"`
}

// ImportPreview is a read-only snapshot derived from the current mapping.
// It is regenerated whenever the mapping changes, never mutated in place.
type ImportPreview struct {
	MappedData []MappedRow      `json:"mappedData"`
	Errors     []CellIssue      `json:"errors"`
	Warnings   []CellIssue      `json:"warnings"`
	Statistics ImportStatistics `json:"statistics"`
}

// ImportProgress is the mutable commit-time progress state. Percentage is
// monotonic non-decreasing; IsComplete and IsError are terminal flags.
type ImportProgress struct {
	CurrentRow       int      `json:"currentRow"`
	TotalRows        int      `json:"totalRows"`
	Percentage       int      `json:"percentage"`
	CurrentOperation string   `json:"currentOperation"`
	Errors           []string `json:"errors,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	IsComplete       bool     `json:"isComplete"`
	IsError          bool     `json:"isError"`
}

// advance moves progress to row done-of-total, keeping Percentage monotonic.
func (p *ImportProgress) advance(done, total int, operation string) {
	p.CurrentRow = done
	p.TotalRows = total
	p.CurrentOperation = operation
	if total > 0 {
		if pct := (done * 100) / total; pct > p.Percentage {
			p.Percentage = pct
		}
	}
}

// ImportedRecord identifies a record written through the record sink.
type ImportedRecord struct {
	ID      string `json:"id"`
	SKU     string `json:"sku"`
	Name    string `json:"name"`
	Created bool   `json:"created"` // false when an existing record was updated
}

// FailedItem captures a row the sink rejected, with the original source
// data so the user can export and retry it.
type FailedItem struct {
	Row    int               `json:"row"`
	Data   map[string]string `json:"data"`
	Reason string            `json:"reason"`
}

// ImportResult is the immutable terminal report of a commit.
type ImportResult struct {
	Success       bool             `json:"success"`
	Cancelled     bool             `json:"cancelled,omitempty"`
	ImportedCount int              `json:"importedCount"`
	ErrorCount    int              `json:"errorCount"`
	WarningCount  int              `json:"warningCount"`
	Duration      time.Duration    `json:"duration"`
	ImportedItems []ImportedRecord `json:"importedItems"`
	Errors        []CellIssue      `json:"errors"`
	Warnings      []CellIssue      `json:"warnings"`
	FailedItems   []FailedItem     `json:"failedItems"`
}
