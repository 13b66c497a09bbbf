// Package sanitize turns raw spreadsheet cell text into typed values.
//
// Every function is total: malformed input yields nil (or the documented
// default), never an error.
package sanitize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/avielmenter/CritiQL/internal/domain/model"
)

var (
	timePattern   = regexp.MustCompile(`(\d+):(\d+):(\d+)`)
	leadingInt    = regexp.MustCompile(`^[+-]?\d+`)
	naturalPrefix = regexp.MustCompile(`(?i)natural`)
	natPrefix     = regexp.MustCompile(`(?i)nat`)
)

// ParseTime extracts an H:MM:SS timestamp. Field widths and ranges are not
// checked, so "1:99:99" is returned as-is.
func ParseTime(s string) *model.RollTime {
	m := timePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil
	}
	parts := make([]int, 3)
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return nil
		}
		parts[i] = n
	}
	return &model.RollTime{Hours: parts[0], Minutes: parts[1], Seconds: parts[2]}
}

// Int parses the leading integer of s. Blank, non-numeric and zero values
// all come back nil: an empty total in the sheet is never a real zero.
func Int(s string) *int {
	digits := leadingInt.FindString(strings.TrimSpace(s))
	if digits == "" {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n == 0 {
		return nil
	}
	return &n
}

// Natural strips "natural"/"nat" annotations (e.g. "Nat 20") before parsing.
func Natural(s string) *int {
	s = naturalPrefix.ReplaceAllString(s, "")
	s = natPrefix.ReplaceAllString(s, "")
	return Int(s)
}

// Crit reports whether the cell reads as a yes.
func Crit(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "y")
}

// Kills is Int with a zero default.
func Kills(s string) int {
	if n := Int(s); n != nil {
		return *n
	}
	return 0
}

// Text returns the trimmed cell, or nil when it is blank.
func Text(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
