// Package pipeline reads vehicle records from and writes predictions to JSONL
// streams, the batch format used with stdin/stdout.
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/submission"
)

// Record is one input line: the raw form values and its 1-based line number.
// Err is set when the line could not be decoded; Values is nil then.
type Record struct {
	Line   int
	Values submission.Values
	Err    error
}

// ReadRecords reads JSONL objects keyed by form field names. Values may be
// JSON strings, numbers or null; they are kept as raw form text so the usual
// lenient parsing applies. Fields a line omits keep the form's initial value.
// Blank lines and lines starting with // are skipped. A line that is not a
// usable object yields a Record with Err set so the rest of the batch still
// runs; only read failures and empty input fail the whole call.
func ReadRecords(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var recs []Record
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		v, err := decodeRecord(line)
		recs = append(recs, Record{Line: lineNum, Values: v, Err: err})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no records read from input (is stdin empty?)")
	}
	return recs, nil
}

func decodeRecord(line string) (submission.Values, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	// A record is a complete form, so fields are assigned directly
	// instead of through the brand/model cascade.
	v := submission.NewValues()
	for key, val := range raw {
		if _, ok := submission.Lookup(key); !ok {
			continue
		}
		switch x := val.(type) {
		case nil:
			v[key] = ""
		case string:
			v[key] = x
		case float64:
			v[key] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("%s: unexpected value type %T", key, val)
		}
	}
	return v, nil
}

// WritePredictions writes one JSON object per prediction to w.
func WritePredictions(w io.Writer, preds []model.Prediction) error {
	enc := json.NewEncoder(w)
	for _, p := range preds {
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

// IsTTY reports whether f is a terminal rather than a pipe or file.
func IsTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
