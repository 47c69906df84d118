package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/carprice/internal/form"
	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/options"
	"github.com/derickschaefer/carprice/internal/submission"
)

var formSave bool

var formCmd = &cobra.Command{
	Use:   "form",
	Short: "Fill in the prediction form interactively",
	Long: `Walk through the prediction form in the terminal.

The option catalog is loaded first. Choosing a brand loads its models and
choosing a model loads its series; the remaining fields follow in page
order. Press Ctrl+C at any prompt to abort.`,
	Example: `  carprice form
  carprice form --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		if deps.Config.Debug {
			log = slog.Default()
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		started := time.Now()
		f := form.New(
			form.NewSurveyDriver(cmd.OutOrStdout()),
			options.New(deps.Client, log),
			submission.NewLifecycle(deps.Client, log),
			nil,
		)
		pred, err := f.Run(ctx)
		if errors.Is(err, form.ErrAborted) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
			return nil
		}
		if err != nil {
			return err
		}
		if formSave {
			saved, err := savePrediction(deps, *pred)
			if err != nil {
				return err
			}
			pred = &saved
		}
		return emit(cmd.OutOrStdout(), deps, newResult(model.KindPrediction, "form", pred, 1, started))
	},
}

func init() {
	rootCmd.AddCommand(formCmd)
	formCmd.Flags().BoolVar(&formSave, "save", false, "store the prediction in the local history")
}
