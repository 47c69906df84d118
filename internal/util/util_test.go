package util_test

import (
	"errors"
	"testing"

	"github.com/derickschaefer/carprice/internal/util"
)

func TestLeadingFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"150", 150, true},
		{" 150hp", 150, true},
		{"1.6", 1.6, true},
		{".5", 0.5, true},
		{"-12.5km", -12.5, true},
		{"1e3", 1000, true},
		{"abc", 0, false},
		{"", 0, false},
		{"1e999", 0, false},
	}
	for _, tt := range tests {
		got, ok := util.LeadingFloat(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("LeadingFloat(%q) = %g, %v; want %g, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLeadingInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"2020", 2020, true},
		{"2019.7", 2019, true},
		{" 14 parça", 14, true},
		{"-3", -3, true},
		{"x", 0, false},
	}
	for _, tt := range tests {
		got, ok := util.LeadingInt(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("LeadingInt(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	if got := util.FormatNumber(1600); got != "1600" {
		t.Errorf("got %q", got)
	}
	if got := util.FormatNumber(0.5); got != "0.5" {
		t.Errorf("got %q", got)
	}
}

func TestSingleLine(t *testing.T) {
	if got := util.SingleLine("  a\n\tb   c \n"); got != "a b c" {
		t.Errorf("got %q", got)
	}
}

func TestMultiError(t *testing.T) {
	var m util.MultiError
	m.Add(nil)
	if m.Err() != nil {
		t.Fatal("empty MultiError should be nil")
	}

	sentinel := errors.New("second")
	m.Add(errors.New("first"))
	m.Add(sentinel)
	err := m.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "first; second" {
		t.Errorf("message: %q", err.Error())
	}
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should see collected errors")
	}
}
