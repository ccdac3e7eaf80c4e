package importer

import (
	"testing"
	"time"

	"github.com/stockroom-app/stockroom/internal/schema"
)

func TestBuildPreview_Statistics(t *testing.T) {
	tr := &TransformResult{
		MappedData: []MappedRow{
			{Row: 1, Values: map[schema.Field]any{schema.FieldSKU: "A"}},
			{Row: 2, Values: map[schema.Field]any{schema.FieldSKU: "B"}},
			{Row: 3, Values: map[schema.Field]any{schema.FieldSKU: "C"}},
		},
		Errors: []CellIssue{
			{Row: 4, Field: schema.FieldSKU, Severity: SeverityError},
			{Row: 5, Field: schema.FieldQuantity, Severity: SeverityError},
		},
		Warnings: []CellIssue{
			{Row: 2, Field: schema.FieldCategory, Severity: SeverityWarning},
			{Row: 4, Field: schema.FieldCategory, Severity: SeverityWarning},
		},
	}
	mappings := []ColumnMapping{
		{InventoryField: schema.FieldSKU, IsMapped: true},
		{InventoryField: schema.FieldQuantity, IsMapped: true},
		{InventoryField: schema.FieldNotes, IsMapped: false},
	}

	preview := BuildPreview(tr, mappings, 5, 20*time.Millisecond)
	stats := preview.Statistics

	if stats.TotalRows != 5 {
		t.Errorf("TotalRows = %d, want 5", stats.TotalRows)
	}
	if stats.ValidRows != 3 {
		t.Errorf("ValidRows = %d, want 3", stats.ValidRows)
	}
	if stats.ErrorRows != 2 {
		t.Errorf("ErrorRows = %d, want 2", stats.ErrorRows)
	}
	// Row 2 is warning-only; row 4 has an error so it does not count again.
	if stats.WarningRows != 1 {
		t.Errorf("WarningRows = %d, want 1", stats.WarningRows)
	}
	if stats.MappedFields != 2 {
		t.Errorf("MappedFields = %d, want 2", stats.MappedFields)
	}
	if stats.UnmappedFields != 1 {
		t.Errorf("UnmappedFields = %d, want 1", stats.UnmappedFields)
	}
	if want := 60 * time.Millisecond; stats.EstimatedImportTime != want {
		t.Errorf("EstimatedImportTime = %v, want %v", stats.EstimatedImportTime, want)
	}
}

func TestBuildPreview_DefaultEstimate(t *testing.T) {
	tr := &TransformResult{
		MappedData: []MappedRow{{Row: 1}, {Row: 2}},
	}

	preview := BuildPreview(tr, nil, 2, 0)

	if want := 2 * DefaultPerRowEstimate; preview.Statistics.EstimatedImportTime != want {
		t.Errorf("EstimatedImportTime = %v, want %v", preview.Statistics.EstimatedImportTime, want)
	}
}

func TestBuildPreview_CarriesIssues(t *testing.T) {
	tr := &TransformResult{
		Errors:   []CellIssue{{Row: 1, Severity: SeverityError}},
		Warnings: []CellIssue{{Row: 2, Severity: SeverityWarning}},
	}

	preview := BuildPreview(tr, nil, 2, time.Millisecond)

	if len(preview.Errors) != 1 || len(preview.Warnings) != 1 {
		t.Errorf("preview issues = %d errors, %d warnings, want 1 and 1",
			len(preview.Errors), len(preview.Warnings))
	}
	if preview.Statistics.ValidRows != 0 || preview.Statistics.ErrorRows != 2 {
		t.Errorf("stats = %+v, want 0 valid, 2 error rows", preview.Statistics)
	}
}
