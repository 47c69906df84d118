// Package util provides shared utilities: lenient numeric parsing of form
// input, whitespace normalisation, and error aggregation.
package util

import (
	"regexp"
	"strconv"
	"strings"
)

// ─── Lenient Number Parsing ───────────────────────────────────────────────────

var (
	floatPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
)

// LeadingFloat parses the longest numeric prefix of s as a float64.
// Leading whitespace is ignored and trailing garbage is dropped, so
// "150hp" yields 150. ok is false when s has no numeric prefix.
func LeadingFloat(s string) (float64, bool) {
	m := floatPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// exponent overflow and friends
		return 0, false
	}
	return v, true
}

// LeadingInt parses the longest integer prefix of s, so "2019.5" yields 2019.
func LeadingInt(s string) (int, bool) {
	m := intPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatNumber renders a float without trailing zeros ("1600", "0.5").
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ─── Text Helpers ─────────────────────────────────────────────────────────────

// SingleLine collapses all runs of whitespace, including newlines, into a
// single space and trims the result.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
