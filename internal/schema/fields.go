// Package schema defines the fixed inventory field set that CSV imports map
// onto. The field list is a closed, compile-time set: adding a target field
// means adding an entry here, and every switch over Field keys is expected to
// be exhaustive.
package schema

import "strings"

// FieldType is the declared data type of a target field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumber
	FieldBool
	FieldDate
)

// Field identifies a target inventory field by its canonical key.
type Field string

const (
	FieldName         Field = "name"
	FieldSKU          Field = "sku"
	FieldDescription  Field = "description"
	FieldCategory     Field = "category"
	FieldLocation     Field = "location"
	FieldQuantity     Field = "quantity"
	FieldUnit         Field = "unit"
	FieldUnitPrice    Field = "unit_price"
	FieldCostPrice    Field = "cost_price"
	FieldReorderLevel Field = "reorder_level"
	FieldMaxStock     Field = "max_stock"
	FieldSupplier     Field = "supplier"
	FieldBarcode      Field = "barcode"
	FieldExpiryDate   Field = "expiry_date"
	FieldNotes        Field = "notes"
)

// FieldSpec carries the validation metadata for one target field.
type FieldSpec struct {
	Key      Field
	Label    string
	Type     FieldType
	Required bool

	// NonNegative rejects values below zero for number fields.
	NonNegative bool

	// Reference marks fields whose values must resolve against an external
	// reference set (categories, locations).
	Reference bool

	// Synonyms are lowercase header names commonly seen in supplier exports
	// that should map to this field.
	Synonyms []string
}

// InventoryFields is the complete target schema, in display order.
// sku and name are the only required fields; quantity and the price fields
// reject negative values rather than clamping them.
var InventoryFields = []FieldSpec{
	{Key: FieldName, Label: "Name", Type: FieldText, Required: true,
		Synonyms: []string{"item name", "product name", "item", "product", "title", "description of goods"}},
	{Key: FieldSKU, Label: "SKU", Type: FieldText, Required: true,
		Synonyms: []string{"sku code", "item code", "product code", "part number", "part no", "article number", "stock code"}},
	{Key: FieldDescription, Label: "Description", Type: FieldText,
		Synonyms: []string{"item description", "product description", "details", "long description"}},
	{Key: FieldCategory, Label: "Category", Type: FieldText, Reference: true,
		Synonyms: []string{"category name", "product category", "group", "item group", "department", "type"}},
	{Key: FieldLocation, Label: "Location", Type: FieldText, Reference: true,
		Synonyms: []string{"location name", "warehouse", "site", "bin", "bin location", "storage location", "store"}},
	{Key: FieldQuantity, Label: "Quantity", Type: FieldNumber, NonNegative: true,
		Synonyms: []string{"qty", "stock", "stock level", "on hand", "quantity on hand", "count", "units"}},
	{Key: FieldUnit, Label: "Unit", Type: FieldText,
		Synonyms: []string{"uom", "unit of measure", "unit of measurement", "measure"}},
	{Key: FieldUnitPrice, Label: "Unit Price", Type: FieldNumber, NonNegative: true,
		Synonyms: []string{"price", "sale price", "selling price", "retail price", "list price", "price per unit"}},
	{Key: FieldCostPrice, Label: "Cost Price", Type: FieldNumber, NonNegative: true,
		Synonyms: []string{"cost", "unit cost", "purchase price", "buy price", "wholesale price"}},
	{Key: FieldReorderLevel, Label: "Reorder Level", Type: FieldNumber, NonNegative: true,
		Synonyms: []string{"reorder point", "min stock", "minimum stock", "min qty", "minimum quantity"}},
	{Key: FieldMaxStock, Label: "Max Stock", Type: FieldNumber, NonNegative: true,
		Synonyms: []string{"maximum stock", "max qty", "maximum quantity", "max level"}},
	{Key: FieldSupplier, Label: "Supplier", Type: FieldText,
		Synonyms: []string{"vendor", "supplier name", "vendor name", "manufacturer", "brand"}},
	{Key: FieldBarcode, Label: "Barcode", Type: FieldText,
		Synonyms: []string{"upc", "ean", "gtin", "barcode number"}},
	{Key: FieldExpiryDate, Label: "Expiry Date", Type: FieldDate,
		Synonyms: []string{"expiry", "expiration date", "expires", "use by", "best before"}},
	{Key: FieldNotes, Label: "Notes", Type: FieldText,
		Synonyms: []string{"note", "comment", "comments", "remarks", "memo"}},
}

// fieldIndex is built once from InventoryFields for O(1) lookups.
var fieldIndex = func() map[Field]FieldSpec {
	m := make(map[Field]FieldSpec, len(InventoryFields))
	for _, f := range InventoryFields {
		m[f.Key] = f
	}
	return m
}()

// Lookup returns the spec for a field key.
func Lookup(key Field) (FieldSpec, bool) {
	spec, ok := fieldIndex[key]
	return spec, ok
}

// Required returns the required fields in display order.
func Required() []FieldSpec {
	var out []FieldSpec
	for _, f := range InventoryFields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// MatchesSynonym reports whether the normalized header is the field's
// canonical key, label, or a known synonym.
func (f FieldSpec) MatchesSynonym(header string) bool {
	h := Normalize(header)
	if h == string(f.Key) || h == Normalize(f.Label) {
		return true
	}
	for _, syn := range f.Synonyms {
		if h == syn {
			return true
		}
	}
	return false
}

// Normalize lowercases a header and collapses separator characters so that
// "Unit_Price", "unit-price" and "Unit Price" all compare equal.
func Normalize(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.ReplaceAll(h, "_", " ")
	h = strings.ReplaceAll(h, "-", " ")
	h = strings.Join(strings.Fields(h), " ")
	return h
}

// TypeName returns a human-readable name for a field type.
func TypeName(t FieldType) string {
	switch t {
	case FieldText:
		return "text"
	case FieldNumber:
		return "number"
	case FieldBool:
		return "boolean"
	case FieldDate:
		return "date"
	default:
		return "value"
	}
}
