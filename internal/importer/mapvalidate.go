package importer

// mapvalidate.go gates the transition from mapping to preview. It is a
// pure check: all violations are accumulated and returned as user-facing
// strings, and an empty result means the mapping is valid.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stockroom-app/stockroom/internal/schema"
)

// ValidateMappings checks a confirmed mapping set against the target
// schema. Rules, in order:
//
//  1. Every required field must be the target of at least one mapped
//     column.
//  2. No field may be the target of more than one mapped column.
//
// Both rule families are checked fully; violations accumulate rather than
// short-circuiting.
func ValidateMappings(mappings []ColumnMapping) []string {
	var problems []string

	targets := make(map[schema.Field][]string)
	for _, m := range mappings {
		if m.IsMapped {
			targets[m.InventoryField] = append(targets[m.InventoryField], m.CSVColumn)
		}
	}

	for _, spec := range schema.InventoryFields {
		if spec.Required && len(targets[spec.Key]) == 0 {
			problems = append(problems, fmt.Sprintf("required field %q is not mapped to any column", spec.Key))
		}
	}

	var duplicated []schema.Field
	for field, columns := range targets {
		if len(columns) > 1 {
			duplicated = append(duplicated, field)
		}
	}
	sort.Slice(duplicated, func(i, j int) bool { return duplicated[i] < duplicated[j] })
	for _, field := range duplicated {
		problems = append(problems, fmt.Sprintf("field %q is mapped from multiple columns: %s",
			field, strings.Join(targets[field], ", ")))
	}

	return problems
}
