package importer

// automap.go proposes an initial column-to-field mapping from the column
// profiles. The proposal is best-effort and never errors; the user can
// override any assignment afterwards through Reassign, which preserves the
// invariant that no two mapped columns target the same field.

import (
	"sort"
	"strings"

	"github.com/stockroom-app/stockroom/internal/schema"
)

// MapThreshold is the minimum combined score a (column, field) pair needs
// before the auto-mapper will propose it. Columns whose best candidate
// falls below the threshold default to unmapped notes.
var MapThreshold = 0.5

// Score blend: header-name similarity dominates, type compatibility breaks
// near-ties between similarly named fields.
const (
	nameWeight = 0.7
	typeWeight = 0.3
)

// BuildMappings proposes one ColumnMapping per source column, greedily
// assigning the highest-scoring (column, field) pairs first. Ties break by
// source column order, then schema field order. Fields already claimed by
// a higher-scoring column are skipped.
func BuildMappings(profiles []ColumnProfile) []ColumnMapping {
	type candidate struct {
		column int
		field  int
		score  float64
	}

	var candidates []candidate
	for ci, p := range profiles {
		for fi, spec := range schema.InventoryFields {
			score := nameWeight*nameSimilarity(p.Header, spec) + typeWeight*typeCompatibility(p.DataType, spec.Type)
			if score >= MapThreshold {
				candidates = append(candidates, candidate{column: ci, field: fi, score: score})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.column != b.column {
			return a.column < b.column
		}
		return a.field < b.field
	})

	mappings := make([]ColumnMapping, len(profiles))
	for i, p := range profiles {
		mappings[i] = ColumnMapping{
			CSVColumn:      p.Header,
			ColumnIndex:    i,
			InventoryField: schema.FieldNotes,
			IsMapped:       false,
		}
	}

	claimedField := make(map[int]bool, len(schema.InventoryFields))
	claimedColumn := make(map[int]bool, len(profiles))

	for _, c := range candidates {
		if claimedField[c.field] || claimedColumn[c.column] {
			continue
		}
		claimedField[c.field] = true
		claimedColumn[c.column] = true
		mappings[c.column].InventoryField = schema.InventoryFields[c.field].Key
		mappings[c.column].IsMapped = true
	}

	return mappings
}

// Reassign points the column at columnIndex to the given field. Any other
// column currently mapped to that field is unmapped first, so the result
// never has two mapped columns targeting one field. mapped=false parks the
// column on unmapped notes.
func Reassign(mappings []ColumnMapping, columnIndex int, field schema.Field, mapped bool) []ColumnMapping {
	if columnIndex < 0 || columnIndex >= len(mappings) {
		return mappings
	}

	if !mapped {
		mappings[columnIndex].InventoryField = schema.FieldNotes
		mappings[columnIndex].IsMapped = false
		return mappings
	}

	for i := range mappings {
		if i != columnIndex && mappings[i].IsMapped && mappings[i].InventoryField == field {
			mappings[i].InventoryField = schema.FieldNotes
			mappings[i].IsMapped = false
		}
	}

	mappings[columnIndex].InventoryField = field
	mappings[columnIndex].IsMapped = true
	return mappings
}

// nameSimilarity scores how well a source header matches a target field
// name: exact canonical match 1.0, known synonym 0.95, otherwise the best
// of token overlap and normalized edit distance.
func nameSimilarity(header string, spec schema.FieldSpec) float64 {
	h := schema.Normalize(header)
	if h == "" {
		return 0
	}
	canonical := schema.Normalize(spec.Label)

	if h == canonical || h == string(spec.Key) {
		return 1.0
	}
	if spec.MatchesSynonym(header) {
		return 0.95
	}

	overlap := tokenOverlap(h, canonical)
	edit := editSimilarity(h, canonical)
	if overlap > edit {
		return overlap
	}
	return edit
}

// tokenOverlap is the Jaccard similarity of the whitespace token sets.
// "unit price usd" vs "unit price" scores 2/3.
func tokenOverlap(a, b string) float64 {
	at := tokenSet(a)
	bt := tokenSet(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}

	shared := 0
	for tok := range at {
		if bt[tok] {
			shared++
		}
	}
	union := len(at) + len(bt) - shared
	return float64(shared) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// editSimilarity is 1 - levenshtein(a,b)/max(len(a),len(b)).
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	dist := levenshtein(a, b)
	max := la
	if lb > max {
		max = lb
	}
	return 1.0 - float64(dist)/float64(max)
}

// levenshtein computes edit distance with a single-row dynamic program.
func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	row := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		row[j] = j
	}

	for i := 1; i <= la; i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= lb; j++ {
			cur := row[j]
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			best := prev + cost
			if row[j]+1 < best {
				best = row[j] + 1
			}
			if row[j-1]+1 < best {
				best = row[j-1] + 1
			}
			row[j] = best
			prev = cur
		}
	}
	return row[lb]
}

// typeCompatibility scores the column's inferred type against the field's
// declared type. String columns can hold anything after coercion, so they
// remain moderately compatible with every field.
func typeCompatibility(inferred DataType, declared schema.FieldType) float64 {
	switch inferred {
	case TypeNumber:
		if declared == schema.FieldNumber {
			return 1.0
		}
		if declared == schema.FieldText {
			return 0.6
		}
		return 0.2
	case TypeDate:
		if declared == schema.FieldDate {
			return 1.0
		}
		if declared == schema.FieldText {
			return 0.5
		}
		return 0.2
	case TypeBoolean:
		if declared == schema.FieldBool {
			return 1.0
		}
		if declared == schema.FieldText {
			return 0.5
		}
		return 0.2
	case TypeString:
		if declared == schema.FieldText {
			return 1.0
		}
		return 0.5
	default: // TypeUnknown: empty column, no evidence either way
		return 0.5
	}
}
