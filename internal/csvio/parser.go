// Package csvio parses uploaded CSV files into an in-memory table for the
// import pipeline. It handles the messy reality of user exports: invalid
// UTF-8, byte-order marks, semicolon/tab delimited files, and ragged rows.
package csvio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxFileSize is the accepted file size limit (25MB) when the
// caller does not supply one.
const DefaultMaxFileSize int64 = 25 * 1024 * 1024

// delimiterCandidates are tried during sniffing, in preference order.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// RawTable is the parsed representation of an uploaded file: an ordered
// header row plus data rows. Rows may be shorter than the header; missing
// cells read as empty strings through Cell.
type RawTable struct {
	FileName  string
	Size      int64
	Delimiter rune
	Headers   []string
	Rows      [][]string
}

// RowCount returns the number of data rows.
func (t *RawTable) RowCount() int {
	return len(t.Rows)
}

// Cell returns the value at (row, col), or "" when the row is ragged.
func (t *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// Column returns all values of one column in row order.
func (t *RawTable) Column(col int) []string {
	out := make([]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Cell(i, col)
	}
	return out
}

// ParseTable parses file bytes into a RawTable. The delimiter is detected by
// sniffing the first line; the first record is treated as the header row.
// Fully empty rows are dropped. maxSize <= 0 falls back to
// DefaultMaxFileSize.
func ParseTable(fileName string, data []byte, maxSize int64) (*RawTable, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("file too large: %d bytes (limit %d)", len(data), maxSize)
	}

	size := int64(len(data))
	data = sanitizeUTF8(stripBOM(data))
	delim := DetectDelimiter(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = CleanCell(h)
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isEmptyRow(rec) {
			continue
		}
		rows = append(rows, rec)
	}

	return &RawTable{
		FileName:  fileName,
		Size:      size,
		Delimiter: delim,
		Headers:   headers,
		Rows:      rows,
	}, nil
}

// DetectDelimiter sniffs the delimiter from the first line by counting
// candidate occurrences outside quoted sections. Falls back to comma.
func DetectDelimiter(data []byte) rune {
	line := firstLine(data)

	best := ','
	bestCount := 0
	for _, cand := range delimiterCandidates {
		count := 0
		inQuotes := false
		for _, r := range line {
			switch {
			case r == '"':
				inQuotes = !inQuotes
			case r == cand && !inQuotes:
				count++
			}
		}
		if count > bestCount {
			best = cand
			bestCount = count
		}
	}
	return best
}

// firstLine returns the first physical line as a string.
func firstLine(data []byte) string {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}
	return strings.TrimSuffix(string(data), "\r")
}

// stripBOM removes a UTF-8 byte-order mark if present.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// sanitizeUTF8 replaces invalid byte sequences with the Unicode replacement
// character so downstream string handling never sees broken encodings.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

// CleanCell removes common CSV artifacts from a cell value:
// leading Excel formula prefixes (="..."), surrounding quotes, whitespace.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
