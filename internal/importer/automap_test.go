package importer

import (
	"testing"

	"github.com/stockroom-app/stockroom/internal/schema"
)

// ============================================================================
// BuildMappings Tests
// ============================================================================

func mappingFor(t *testing.T, mappings []ColumnMapping, column string) ColumnMapping {
	t.Helper()
	for _, m := range mappings {
		if m.CSVColumn == column {
			return m
		}
	}
	t.Fatalf("no mapping for column %q", column)
	return ColumnMapping{}
}

func TestBuildMappings_ExactHeaders(t *testing.T) {
	profiles := []ColumnProfile{
		{Header: "Name", Index: 0, DataType: TypeString},
		{Header: "SKU", Index: 1, DataType: TypeString},
		{Header: "Quantity", Index: 2, DataType: TypeNumber},
	}

	mappings := BuildMappings(profiles)
	if len(mappings) != 3 {
		t.Fatalf("len(mappings) = %d, want 3", len(mappings))
	}

	tests := []struct {
		column string
		field  schema.Field
	}{
		{"Name", schema.FieldName},
		{"SKU", schema.FieldSKU},
		{"Quantity", schema.FieldQuantity},
	}
	for _, tt := range tests {
		m := mappingFor(t, mappings, tt.column)
		if !m.IsMapped {
			t.Errorf("column %q should be mapped", tt.column)
		}
		if m.InventoryField != tt.field {
			t.Errorf("column %q mapped to %q, want %q", tt.column, m.InventoryField, tt.field)
		}
	}
}

func TestBuildMappings_Synonyms(t *testing.T) {
	profiles := []ColumnProfile{
		{Header: "Product Name", Index: 0, DataType: TypeString},
		{Header: "Item Code", Index: 1, DataType: TypeString},
		{Header: "Qty", Index: 2, DataType: TypeNumber},
		{Header: "Vendor", Index: 3, DataType: TypeString},
	}

	mappings := BuildMappings(profiles)

	tests := []struct {
		column string
		field  schema.Field
	}{
		{"Product Name", schema.FieldName},
		{"Item Code", schema.FieldSKU},
		{"Qty", schema.FieldQuantity},
		{"Vendor", schema.FieldSupplier},
	}
	for _, tt := range tests {
		m := mappingFor(t, mappings, tt.column)
		if !m.IsMapped || m.InventoryField != tt.field {
			t.Errorf("column %q = (%q, mapped=%v), want (%q, mapped=true)",
				tt.column, m.InventoryField, m.IsMapped, tt.field)
		}
	}
}

func TestBuildMappings_NormalizesSeparators(t *testing.T) {
	profiles := []ColumnProfile{
		{Header: "unit_price", Index: 0, DataType: TypeNumber},
		{Header: "Reorder-Level", Index: 1, DataType: TypeNumber},
	}

	mappings := BuildMappings(profiles)

	if m := mappingFor(t, mappings, "unit_price"); !m.IsMapped || m.InventoryField != schema.FieldUnitPrice {
		t.Errorf("unit_price mapped to %q (mapped=%v), want %q", m.InventoryField, m.IsMapped, schema.FieldUnitPrice)
	}
	if m := mappingFor(t, mappings, "Reorder-Level"); !m.IsMapped || m.InventoryField != schema.FieldReorderLevel {
		t.Errorf("Reorder-Level mapped to %q (mapped=%v), want %q", m.InventoryField, m.IsMapped, schema.FieldReorderLevel)
	}
}

func TestBuildMappings_NoDuplicateTargets(t *testing.T) {
	// Two columns that both look like SKU: only one may claim the field.
	profiles := []ColumnProfile{
		{Header: "SKU", Index: 0, DataType: TypeString},
		{Header: "SKU", Index: 1, DataType: TypeString},
	}

	mappings := BuildMappings(profiles)

	claimed := make(map[schema.Field]int)
	for _, m := range mappings {
		if m.IsMapped {
			claimed[m.InventoryField]++
		}
	}
	for field, count := range claimed {
		if count > 1 {
			t.Errorf("field %q claimed by %d columns", field, count)
		}
	}
}

func TestBuildMappings_EmptyHeaderUnmapped(t *testing.T) {
	profiles := []ColumnProfile{
		{Header: "", Index: 0, DataType: TypeString},
	}

	mappings := BuildMappings(profiles)
	if mappings[0].IsMapped {
		t.Errorf("empty header should not map, got %q", mappings[0].InventoryField)
	}
	if mappings[0].InventoryField != schema.FieldNotes {
		t.Errorf("unmapped column should default to notes, got %q", mappings[0].InventoryField)
	}
}

// ============================================================================
// Reassign Tests
// ============================================================================

func TestReassign_MapsColumn(t *testing.T) {
	mappings := []ColumnMapping{
		{CSVColumn: "A", ColumnIndex: 0, InventoryField: schema.FieldNotes, IsMapped: false},
		{CSVColumn: "B", ColumnIndex: 1, InventoryField: schema.FieldNotes, IsMapped: false},
	}

	mappings = Reassign(mappings, 0, schema.FieldSKU, true)

	if !mappings[0].IsMapped || mappings[0].InventoryField != schema.FieldSKU {
		t.Errorf("mapping[0] = %+v, want sku mapped", mappings[0])
	}
	if mappings[1].IsMapped {
		t.Errorf("mapping[1] should be untouched, got %+v", mappings[1])
	}
}

func TestReassign_StealsField(t *testing.T) {
	mappings := []ColumnMapping{
		{CSVColumn: "A", ColumnIndex: 0, InventoryField: schema.FieldSKU, IsMapped: true},
		{CSVColumn: "B", ColumnIndex: 1, InventoryField: schema.FieldNotes, IsMapped: false},
	}

	mappings = Reassign(mappings, 1, schema.FieldSKU, true)

	if mappings[0].IsMapped {
		t.Errorf("mapping[0] should lose sku, got %+v", mappings[0])
	}
	if !mappings[1].IsMapped || mappings[1].InventoryField != schema.FieldSKU {
		t.Errorf("mapping[1] = %+v, want sku mapped", mappings[1])
	}
}

func TestReassign_Unmap(t *testing.T) {
	mappings := []ColumnMapping{
		{CSVColumn: "A", ColumnIndex: 0, InventoryField: schema.FieldSKU, IsMapped: true},
	}

	mappings = Reassign(mappings, 0, "", false)

	if mappings[0].IsMapped {
		t.Errorf("mapping[0] should be unmapped, got %+v", mappings[0])
	}
	if mappings[0].InventoryField != schema.FieldNotes {
		t.Errorf("unmapped column should park on notes, got %q", mappings[0].InventoryField)
	}
}

func TestReassign_OutOfRange(t *testing.T) {
	mappings := []ColumnMapping{
		{CSVColumn: "A", ColumnIndex: 0, InventoryField: schema.FieldSKU, IsMapped: true},
	}

	got := Reassign(mappings, 5, schema.FieldName, true)
	if !got[0].IsMapped || got[0].InventoryField != schema.FieldSKU {
		t.Errorf("out-of-range reassign should be a no-op, got %+v", got[0])
	}
}
