package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/carprice/internal/app"
	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/pipeline"
	"github.com/derickschaefer/carprice/internal/submission"
)

var batchFlags struct {
	Input       string
	Concurrency int
	Save        bool
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Predict prices for JSONL records from stdin or a file",
	Long: `Read one vehicle per line as a JSON object keyed by the form field names
(marka, model, seri, yil_temiz, km_temiz, ...) and request a prediction for
each. Invalid lines and failed predictions are reported as warnings; the
rest are printed in input order.

When stdout is a pipe and --format is not given, output is JSONL.`,
	Example: `  carprice batch --input cars.jsonl
  cat cars.jsonl | carprice batch --concurrency 8 --save
  carprice batch -i cars.jsonl | jq .result.predicted_price`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		switch {
		case batchFlags.Input != "" && batchFlags.Input != "-":
			f, err := os.Open(batchFlags.Input)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		case batchFlags.Input == "" && pipeline.IsTTY(os.Stdin):
			return fmt.Errorf("no input: pass --input <file> or pipe JSONL on stdin")
		}

		recs, err := pipeline.ReadRecords(in)
		if err != nil {
			return err
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		started := time.Now()
		preds, warnings := batchPredict(cmd.Context(), deps, recs, batchFlags.Concurrency, time.Now())
		if batchFlags.Save {
			for i := range preds {
				saved, err := savePrediction(deps, preds[i])
				if err != nil {
					return err
				}
				preds[i] = saved
			}
		}

		if globalFlags.Format == "" && !pipeline.IsTTY(os.Stdout) {
			out, closeFn, err := outputWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := pipeline.WritePredictions(out, preds); err != nil {
				_ = closeFn()
				return err
			}
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠  %s\n", w)
			}
			return closeFn()
		}

		result := newResult(model.KindHistory, "batch", preds, len(preds), started)
		result.Warnings = warnings
		return emit(cmd.OutOrStdout(), deps, result)
	},
}

// batchPredict validates and predicts every record with at most concurrency
// requests in flight. Predictions keep input order; failures become warnings.
func batchPredict(ctx context.Context, deps *app.Deps, recs []pipeline.Record, concurrency int, now time.Time) ([]model.Prediction, []string) {
	type result struct {
		pred *model.Prediction
		err  error
	}

	if concurrency <= 0 {
		concurrency = 4
	}

	sem := make(chan struct{}, concurrency)
	results := make([]result, len(recs))
	var wg sync.WaitGroup

	for i, rec := range recs {
		if rec.Err != nil {
			results[i] = result{err: rec.Err}
			continue
		}
		if err := submission.Validate(rec.Values, now); err != nil {
			results[i] = result{err: err}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pred, err := runPrediction(ctx, deps, submission.Parse(rec.Values), "batch")
			results[i] = result{pred: pred, err: err}
		}()
	}
	wg.Wait()

	var preds []model.Prediction
	var warnings []string
	for i, r := range results {
		if r.err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: %v", recs[i].Line, r.err))
			continue
		}
		preds = append(preds, *r.pred)
	}
	return preds, warnings
}

func init() {
	rootCmd.AddCommand(batchCmd)

	f := batchCmd.Flags()
	f.StringVarP(&batchFlags.Input, "input", "i", "", "JSONL input file (default: stdin)")
	f.IntVar(&batchFlags.Concurrency, "concurrency", 4, "max parallel prediction requests")
	f.BoolVar(&batchFlags.Save, "save", false, "store every prediction in the local history")
}
