package form

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AlecAivazis/survey/v2/terminal"
)

func TestTranslateSurveyErr(t *testing.T) {
	if err := translateSurveyErr(terminal.InterruptErr); !errors.Is(err, ErrAborted) {
		t.Errorf("interrupt should map to ErrAborted, got %v", err)
	}
	other := errors.New("tty gone")
	if err := translateSurveyErr(other); err != other {
		t.Errorf("other errors pass through, got %v", err)
	}
}

func TestIndexOf(t *testing.T) {
	opts := []string{"a", "b"}
	if indexOf(opts, "b") != 1 || indexOf(opts, "z") != -1 {
		t.Error("indexOf mismatch")
	}
}

func TestSurveyDriverInfo(t *testing.T) {
	var buf strings.Builder
	d := NewSurveyDriver(&buf)
	if err := d.Info(context.Background(), "merhaba"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "merhaba\n" {
		t.Errorf("unexpected output %q", buf.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Input(ctx, InputConfig{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context should short-circuit, got %v", err)
	}
}
