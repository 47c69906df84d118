// Package chart renders horizontal ASCII bar charts for terminal output.
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Bar is one labelled value.
type Bar struct {
	Label string
	Value float64
}

// Options controls bar chart rendering.
type Options struct {
	// Title is printed above the bars when non-empty.
	Title string
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Format renders the value column. Defaults to a compact K/M notation.
	Format func(float64) string
}

// Render draws one bar per entry, scaled from zero to the largest value.
//
// Output example:
//
//	Ortalama fiyat
//	BMW     1.2M  ████████████████████
//	Toyota  600K  ██████████
func Render(w io.Writer, bars []Bar, opts Options) error {
	if len(bars) == 0 {
		return fmt.Errorf("chart: nothing to render")
	}
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}
	format := opts.Format
	if format == nil {
		format = formatCompact
	}

	labelWidth, valWidth := 0, 0
	maxVal := 0.0
	for _, b := range bars {
		if math.IsNaN(b.Value) || b.Value < 0 {
			return fmt.Errorf("chart: %s: value must be a non-negative number", b.Label)
		}
		if l := utf8.RuneCountInString(b.Label); l > labelWidth {
			labelWidth = l
		}
		if l := utf8.RuneCountInString(format(b.Value)); l > valWidth {
			valWidth = l
		}
		if b.Value > maxVal {
			maxVal = b.Value
		}
	}

	// Bar area = total - label - value - two 2-space separators
	barArea := totalWidth - labelWidth - valWidth - 4
	if barArea < 4 {
		barArea = 4
	}

	if opts.Title != "" {
		fmt.Fprintln(w, opts.Title)
	}
	for _, b := range bars {
		n := 0
		if maxVal > 0 {
			n = int(math.Round(b.Value / maxVal * float64(barArea)))
		}
		if n < 1 && b.Value > 0 {
			n = 1 // every non-zero bar stays visible
		}
		fmt.Fprintf(w, "%s  %s  %s\n",
			padRight(b.Label, labelWidth),
			padLeft(format(b.Value), valWidth),
			strings.Repeat("█", n),
		)
	}
	return nil
}

// ─── Utilities ────────────────────────────────────────────────────────────────

func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func padLeft(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}

// formatCompact formats large numbers with K/M suffixes.
func formatCompact(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs == 0:
		return "0"
	case abs >= 1e6:
		return trimZero(strconv.FormatFloat(v/1e6, 'f', 1, 64)) + "M"
	case abs >= 1e3:
		return trimZero(strconv.FormatFloat(v/1e3, 'f', 1, 64)) + "K"
	default:
		return trimZero(strconv.FormatFloat(v, 'f', 1, 64))
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}
