// Package price turns raw price text from product pages into decimals.
package price

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var plainNumber = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

var dashReplacer = strings.NewReplacer("–", "-", "—", "-", "‒", "-", "−", "-")

// Normalize converts arbitrary price text into a decimal value.
// It never fails: 0 means the text could not be parsed and must not be
// read as "free".
func Normalize(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	if plainNumber.MatchString(s) {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}

	// integer and fraction rendered in separate elements
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", ".")
	s = dashReplacer.Replace(s)

	s = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			return r
		}
		return -1
	}, s)

	// "9,–" style whole-unit pricing
	if strings.HasSuffix(s, "-") {
		s = strings.TrimRight(s, "-")
		if strings.HasSuffix(s, ",") || strings.HasSuffix(s, ".") {
			s += "00"
		}
	}
	s = strings.Trim(s, ".,")

	s = resolveSeparators(s)

	// ranges like "10-20" are not a single price
	if strings.LastIndex(s, "-") > 0 {
		return 0
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// resolveSeparators rewrites s so that '.' is the only decimal separator
func resolveSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		return singleSeparator(s, ",")
	case lastDot >= 0:
		return singleSeparator(s, ".")
	}
	return s
}

// singleSeparator handles text that uses only one kind of separator.
// One occurrence is the decimal point. Repeated occurrences are thousands
// groups, unless the last group is not three digits wide.
func singleSeparator(s, sep string) string {
	if strings.Count(s, sep) == 1 {
		return strings.Replace(s, sep, ".", 1)
	}
	idx := strings.LastIndex(s, sep)
	if len(s)-idx-1 == 3 {
		return strings.ReplaceAll(s, sep, "")
	}
	return strings.ReplaceAll(s[:idx], sep, "") + "." + s[idx+1:]
}

// FromValue normalizes a price taken from decoded JSON state
func FromValue(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		return Normalize(n.String())
	case string:
		return Normalize(n)
	}
	return 0
}

// Format renders a normalized price in the canonical text form
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
