package importer

// convert.go provides coercion from raw CSV cell values to target types.
//
// These functions handle the messy reality of supplier exports:
//   - Currency symbols and thousands separators in numbers
//   - European decimal commas ("1.234,56")
//   - Accounting-style negatives ("(12.50)")
//   - Multiple date formats (US, EU, ISO) with 2-digit year pivot
//   - Various boolean representations (yes/no, true/false, 1/0)

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericPattern validates a cleaned-up numeric string.
// Matches integers, decimals, and scientific notation.
var numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted. Years that
// would land more than this many years in the future are shifted back a
// century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// NormalizeNumber strips currency symbols and locale separators from a raw
// value, returning a plain decimal string. The result may still fail to
// parse; callers use ParseNumber to find out. Useful on its own as the
// "suggested corrected value" for unparseable numeric cells.
func NormalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// Accounting format "(123.45)" means negative.
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sym := range []string{"$", "€", "£", "¥"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)

	// Locale separators. When both '.' and ',' appear, the rightmost one is
	// the decimal separator and the other is a thousands separator. A lone
	// comma followed by anything but exactly three digits is treated as a
	// decimal comma ("12,5"); otherwise it is a thousands separator.
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-comma-1 != 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	if negative && s != "" {
		s = "-" + s
	}
	return s
}

// ParseNumber coerces a raw cell value to a float64.
func ParseNumber(s string) (float64, bool) {
	cleaned := NormalizeNumber(s)
	if cleaned == "" || !numericPattern.MatchString(cleaned) {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseDate coerces a raw cell value to a date. Four-digit-year layouts are
// tried first because they are unambiguous; two-digit years are adjusted
// with the pivot.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// ParseBool coerces a raw cell value to a boolean.
// Accepts true/false, yes/no, t/f, y/n, 1/0.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}
