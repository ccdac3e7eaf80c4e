package importer

// transform.go applies a confirmed mapping to every raw row, coercing
// values to target types and validating field-level constraints. Rows with
// at least one error are excluded from the mapped output; rows with only
// warnings are included and flagged.

import (
	"context"
	"fmt"
	"strings"

	"github.com/stockroom-app/stockroom/internal/csvio"
	"github.com/stockroom-app/stockroom/internal/schema"
)

// Fallback buckets substituted when a reference name does not resolve.
// Substitution downgrades the problem from an error to a warning.
var (
	DefaultCategory = "Uncategorized"
	DefaultLocation = "Unassigned"
)

// TransformResult is the raw output of the transformer, aggregated into an
// ImportPreview by the preview builder.
type TransformResult struct {
	MappedData []MappedRow
	Errors     []CellIssue
	Warnings   []CellIssue
}

// Transform runs every row of the table through the confirmed mapping.
// Only mappings with IsMapped=true contribute values. The reference lookup
// is consulted for category and location fields; unresolvable names fall
// back to the default buckets with a warning.
func Transform(ctx context.Context, table *csvio.RawTable, mappings []ColumnMapping, lookup ReferenceLookup) *TransformResult {
	result := &TransformResult{}

	for i := range table.Rows {
		rowNum := i + 1
		values := make(map[schema.Field]any)
		var rowErrors, rowWarnings []CellIssue

		for _, m := range mappings {
			if !m.IsMapped {
				continue
			}
			spec, ok := schema.Lookup(m.InventoryField)
			if !ok {
				continue
			}

			raw := csvio.CleanCell(table.Cell(i, m.ColumnIndex))

			if raw == "" {
				if spec.Required {
					rowErrors = append(rowErrors, CellIssue{
						Row:      rowNum,
						Field:    spec.Key,
						Message:  fmt.Sprintf("required field %q is empty", spec.Key),
						Severity: SeverityError,
					})
				}
				continue
			}

			value, issue := coerceCell(ctx, rowNum, raw, spec, lookup)
			if issue != nil {
				if issue.Severity == SeverityError {
					rowErrors = append(rowErrors, *issue)
					continue
				}
				rowWarnings = append(rowWarnings, *issue)
			}
			values[spec.Key] = value
		}

		result.Errors = append(result.Errors, rowErrors...)
		result.Warnings = append(result.Warnings, rowWarnings...)

		// A row with any error is excluded entirely; warning-only rows are
		// kept with their substituted values.
		if len(rowErrors) == 0 {
			result.MappedData = append(result.MappedData, MappedRow{Row: rowNum, Values: values})
		}
	}

	return result
}

// coerceCell converts one non-empty raw value to the field's declared type
// and checks its domain constraints. It returns the coerced value plus an
// optional issue; a warning issue still carries a usable value.
func coerceCell(ctx context.Context, rowNum int, raw string, spec schema.FieldSpec, lookup ReferenceLookup) (any, *CellIssue) {
	switch spec.Type {
	case schema.FieldNumber:
		v, ok := ParseNumber(raw)
		if !ok {
			return nil, &CellIssue{
				Row:        rowNum,
				Field:      spec.Key,
				Value:      raw,
				Message:    fmt.Sprintf("invalid number for %q: %q", spec.Key, raw),
				Suggestion: numberSuggestion(raw),
				Severity:   SeverityError,
			}
		}
		if spec.NonNegative && v < 0 {
			return nil, &CellIssue{
				Row:      rowNum,
				Field:    spec.Key,
				Value:    raw,
				Message:  fmt.Sprintf("%q must not be negative: %v", spec.Key, raw),
				Severity: SeverityError,
			}
		}
		return v, nil

	case schema.FieldDate:
		v, ok := ParseDate(raw)
		if !ok {
			return nil, &CellIssue{
				Row:      rowNum,
				Field:    spec.Key,
				Value:    raw,
				Message:  fmt.Sprintf("invalid date for %q: %q (use YYYY-MM-DD or similar)", spec.Key, raw),
				Severity: SeverityError,
			}
		}
		return v, nil

	case schema.FieldBool:
		v, ok := ParseBool(raw)
		if !ok {
			return nil, &CellIssue{
				Row:      rowNum,
				Field:    spec.Key,
				Value:    raw,
				Message:  fmt.Sprintf("invalid boolean for %q: %q (use yes/no, true/false, or 1/0)", spec.Key, raw),
				Severity: SeverityError,
			}
		}
		return v, nil

	default: // schema.FieldText
		if spec.Reference && lookup != nil {
			return resolveReference(ctx, rowNum, raw, spec, lookup)
		}
		return raw, nil
	}
}

// resolveReference checks a category/location name against the reference
// sets. Unknown names are substituted with the default bucket and reported
// as warnings; lookup infrastructure failures behave the same way so one
// flaky query never fails a whole preview.
func resolveReference(ctx context.Context, rowNum int, raw string, spec schema.FieldSpec, lookup ReferenceLookup) (any, *CellIssue) {
	var (
		found    bool
		err      error
		fallback string
	)

	switch spec.Key {
	case schema.FieldCategory:
		_, found, err = lookup.ResolveCategory(ctx, raw)
		fallback = DefaultCategory
	case schema.FieldLocation:
		_, found, err = lookup.ResolveLocation(ctx, raw)
		fallback = DefaultLocation
	default:
		return raw, nil
	}

	if err != nil {
		return fallback, &CellIssue{
			Row:        rowNum,
			Field:      spec.Key,
			Value:      raw,
			Message:    fmt.Sprintf("could not verify %q %q: %v", spec.Key, raw, err),
			Suggestion: fallback,
			Severity:   SeverityWarning,
		}
	}
	if !found {
		return fallback, &CellIssue{
			Row:        rowNum,
			Field:      spec.Key,
			Value:      raw,
			Message:    fmt.Sprintf("%s %q does not exist, will use %q", spec.Key, raw, fallback),
			Suggestion: fallback,
			Severity:   SeverityWarning,
		}
	}
	return raw, nil
}

// numberSuggestion proposes a corrected value for an unparseable numeric
// cell. ParseNumber already tolerates currency symbols and locale
// separators, so by the time a cell errors the stray characters are
// something else (currency codes, units); stripping everything that is not
// part of a number often recovers a usable value. Returns "" when nothing
// parseable remains.
func numberSuggestion(raw string) string {
	var b strings.Builder
	for _, r := range NormalizeNumber(raw) {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == raw {
		return ""
	}
	if _, ok := ParseNumber(cleaned); ok {
		return cleaned
	}
	return ""
}
