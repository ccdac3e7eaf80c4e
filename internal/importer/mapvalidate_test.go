package importer

import (
	"strings"
	"testing"

	"github.com/stockroom-app/stockroom/internal/schema"
)

func TestValidateMappings_Valid(t *testing.T) {
	mappings := []ColumnMapping{
		{CSVColumn: "Name", ColumnIndex: 0, InventoryField: schema.FieldName, IsMapped: true},
		{CSVColumn: "SKU", ColumnIndex: 1, InventoryField: schema.FieldSKU, IsMapped: true},
		{CSVColumn: "Extra", ColumnIndex: 2, InventoryField: schema.FieldNotes, IsMapped: false},
	}

	if issues := ValidateMappings(mappings); len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestValidateMappings_MissingRequired(t *testing.T) {
	mappings := []ColumnMapping{
		{CSVColumn: "Name", ColumnIndex: 0, InventoryField: schema.FieldName, IsMapped: true},
	}

	issues := ValidateMappings(mappings)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %v", len(issues), issues)
	}
	if !strings.Contains(issues[0], "sku") {
		t.Errorf("issue should name the missing field: %q", issues[0])
	}
	if !strings.Contains(issues[0], "not mapped") {
		t.Errorf("issue should say the field is not mapped: %q", issues[0])
	}
}

func TestValidateMappings_AllRequiredMissing(t *testing.T) {
	// Violations accumulate, they do not short-circuit on the first.
	mappings := []ColumnMapping{
		{CSVColumn: "Extra", ColumnIndex: 0, InventoryField: schema.FieldNotes, IsMapped: false},
	}

	issues := ValidateMappings(mappings)
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues (name, sku), got %d: %v", len(issues), issues)
	}
}

func TestValidateMappings_DuplicateTarget(t *testing.T) {
	mappings := []ColumnMapping{
		{CSVColumn: "Name", ColumnIndex: 0, InventoryField: schema.FieldName, IsMapped: true},
		{CSVColumn: "SKU A", ColumnIndex: 1, InventoryField: schema.FieldSKU, IsMapped: true},
		{CSVColumn: "SKU B", ColumnIndex: 2, InventoryField: schema.FieldSKU, IsMapped: true},
	}

	issues := ValidateMappings(mappings)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %v", len(issues), issues)
	}
	if !strings.Contains(issues[0], "multiple columns") {
		t.Errorf("issue should report the duplicate target: %q", issues[0])
	}
	if !strings.Contains(issues[0], "SKU A") || !strings.Contains(issues[0], "SKU B") {
		t.Errorf("issue should list the offending columns: %q", issues[0])
	}
}

func TestValidateMappings_UnmappedColumnsIgnored(t *testing.T) {
	// Two unmapped columns both park on notes; that is not a duplicate.
	mappings := []ColumnMapping{
		{CSVColumn: "Name", ColumnIndex: 0, InventoryField: schema.FieldName, IsMapped: true},
		{CSVColumn: "SKU", ColumnIndex: 1, InventoryField: schema.FieldSKU, IsMapped: true},
		{CSVColumn: "X", ColumnIndex: 2, InventoryField: schema.FieldNotes, IsMapped: false},
		{CSVColumn: "Y", ColumnIndex: 3, InventoryField: schema.FieldNotes, IsMapped: false},
	}

	if issues := ValidateMappings(mappings); len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}
