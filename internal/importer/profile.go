package importer

// profile.go infers a data type per source column from sample values.
//
// Profiling is a pure function of the column's values: the same input
// always yields the same type and confidence. It never fails; columns that
// resist classification come back as low-confidence strings.

import (
	"github.com/stockroom-app/stockroom/internal/csvio"
)

// MaxProfileSamples bounds how many non-empty values are examined per column.
var MaxProfileSamples = 25

// SampleValuesKept is how many sample values are retained on the profile
// for display in the mapping UI.
var SampleValuesKept = 5

// typeThreshold is the minimum fraction of samples that must parse as a
// specific type before the column is classified as that type instead of
// string.
const typeThreshold = 0.6

// ProfileTable profiles every column of a parsed table.
func ProfileTable(t *csvio.RawTable) []ColumnProfile {
	profiles := make([]ColumnProfile, len(t.Headers))
	for i, header := range t.Headers {
		profiles[i] = ProfileColumn(header, i, t.Column(i))
	}
	return profiles
}

// ProfileColumn classifies a single column from its raw values.
//
// Up to MaxProfileSamples non-empty values are tested against the number,
// date, and boolean parsers. The type with the highest parse fraction wins
// when that fraction reaches typeThreshold, with confidence equal to the
// fraction. Otherwise the column is a string; its confidence shrinks as
// more samples look like some other type. A column with no non-empty
// values is unknown with zero confidence.
func ProfileColumn(header string, index int, values []string) ColumnProfile {
	profile := ColumnProfile{
		Header:   header,
		Index:    index,
		DataType: TypeUnknown,
	}

	var samples []string
	for _, v := range values {
		v = csvio.CleanCell(v)
		if v == "" {
			continue
		}
		samples = append(samples, v)
		if len(samples) >= MaxProfileSamples {
			break
		}
	}

	for i := 0; i < len(samples) && i < SampleValuesKept; i++ {
		profile.SampleValues = append(profile.SampleValues, samples[i])
	}

	if len(samples) == 0 {
		return profile
	}

	var numbers, dates, bools int
	for _, v := range samples {
		if _, ok := ParseNumber(v); ok {
			numbers++
		}
		if _, ok := ParseDate(v); ok {
			dates++
		}
		if _, ok := ParseBool(v); ok {
			bools++
		}
	}

	total := float64(len(samples))
	best := TypeString
	bestFraction := 0.0

	// Check order matters for ties: 0/1 columns parse as both boolean and
	// number, and quantity columns legitimately contain 0s and 1s, so
	// number wins ties.
	for _, c := range []struct {
		dataType DataType
		count    int
	}{
		{TypeNumber, numbers},
		{TypeDate, dates},
		{TypeBoolean, bools},
	} {
		if f := float64(c.count) / total; f > bestFraction {
			best = c.dataType
			bestFraction = f
		}
	}

	if bestFraction >= typeThreshold {
		profile.DataType = best
		profile.Confidence = bestFraction
		return profile
	}

	profile.DataType = TypeString
	profile.Confidence = 1.0 - bestFraction
	return profile
}
