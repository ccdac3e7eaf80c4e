package importer

// preview.go aggregates transformer output into the snapshot the user
// confirms before committing. Pure and deterministic: the same transform
// result and mapping always produce the same preview.

import "time"

// DefaultPerRowEstimate is the per-row processing time used for the
// estimated import duration shown in the preview.
var DefaultPerRowEstimate = 25 * time.Millisecond

// BuildPreview derives an ImportPreview from a transform result and the
// mapping that produced it. perRow <= 0 uses DefaultPerRowEstimate.
func BuildPreview(tr *TransformResult, mappings []ColumnMapping, totalRows int, perRow time.Duration) *ImportPreview {
	if perRow <= 0 {
		perRow = DefaultPerRowEstimate
	}

	stats := ImportStatistics{
		TotalRows: totalRows,
		ValidRows: len(tr.MappedData),
		ErrorRows: totalRows - len(tr.MappedData),
	}

	// Warning-only rows are valid rows; count distinct rows, not issues.
	warningRows := make(map[int]bool)
	for _, w := range tr.Warnings {
		warningRows[w.Row] = true
	}
	errorRows := make(map[int]bool)
	for _, e := range tr.Errors {
		errorRows[e.Row] = true
	}
	for row := range warningRows {
		if !errorRows[row] {
			stats.WarningRows++
		}
	}

	for _, m := range mappings {
		if m.IsMapped {
			stats.MappedFields++
		} else {
			stats.UnmappedFields++
		}
	}

	stats.EstimatedImportTime = time.Duration(stats.ValidRows) * perRow

	return &ImportPreview{
		MappedData: tr.MappedData,
		Errors:     tr.Errors,
		Warnings:   tr.Warnings,
		Statistics: stats,
	}
}
