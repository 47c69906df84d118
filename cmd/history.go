package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/carprice/internal/analyze"
	"github.com/derickschaefer/carprice/internal/chart"
	"github.com/derickschaefer/carprice/internal/form"
	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect saved predictions",
	Long: `Commands for the local prediction history.

Predictions are saved with 'carprice predict --save', 'carprice form --save'
or by running 'carprice serve --record'. The history lives in a bbolt
database (default ~/.carprice/history.db, override with CARPRICE_DB_PATH).`,
}

// ─── history list ─────────────────────────────────────────────────────────────

var historyListLimit int

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved predictions, newest first",
	Example: `  carprice history list
  carprice history list --limit 5 --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		started := time.Now()
		preds, err := st.ListPredictions(historyListLimit)
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}
		if len(preds) == 0 && resolveFormat(deps.Config.Format) == render.FormatTable {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved predictions.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Use: carprice predict ... --save")
			return nil
		}
		return emit(cmd.OutOrStdout(), deps, newResult(model.KindHistory, "history list", preds, len(preds), started))
	},
}

// ─── history show ─────────────────────────────────────────────────────────────

var historyShowCmd = &cobra.Command{
	Use:   "show <ID>",
	Short: "Show one saved prediction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		started := time.Now()
		p, ok, err := st.GetPrediction(args[0])
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}
		if !ok {
			return fmt.Errorf("no saved prediction with ID %s", args[0])
		}
		return emit(cmd.OutOrStdout(), deps, newResult(model.KindPrediction, "history show "+args[0], &p, 1, started))
	},
}

// ─── history delete ───────────────────────────────────────────────────────────

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <ID>",
	Short: "Delete one saved prediction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		ok, err := st.DeletePrediction(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no saved prediction with ID %s", args[0])
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", args[0])
		}
		return nil
	},
}

// ─── history clear ────────────────────────────────────────────────────────────

var historyClearYes bool

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved prediction",
	Long: `Delete every saved prediction.

You are asked to confirm unless --yes is given. bbolt does not shrink the
database file; free pages are reused on the next write.`,
	Example: `  carprice history clear
  carprice history clear --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		if !historyClearYes {
			ok, err := form.NewSurveyDriver(os.Stdout).Confirm(cmd.Context(), form.ConfirmConfig{
				Message: fmt.Sprintf("Delete all saved predictions in %s?", st.Path()),
			})
			if err != nil && !errors.Is(err, form.ErrAborted) {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
				return nil
			}
		}
		if err := st.ClearAll(); err != nil {
			return err
		}
		if !deps.Config.Quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "✓ History cleared")
		}
		return nil
	},
}

// ─── history stats ────────────────────────────────────────────────────────────

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts and sizes of the history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		stats, err := st.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}
		version, err := st.SchemaVersion()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s (schema v%s)\n\n", st.Path(), version)
		printSimpleTable(cmd.OutOrStdout(), []string{"BUCKET", "ROWS", "SIZE"}, func(add func(...string)) {
			for _, s := range stats {
				add(s.Name, fmt.Sprintf("%d", s.Count), humanBytes(s.Bytes))
			}
		})
		return nil
	},
}

// ─── history summary ──────────────────────────────────────────────────────────

var historySummaryFlags struct {
	By    string
	Chart bool
}

var historySummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarise saved predicted prices",
	Long: `Compute price statistics over the saved predictions: count, mean,
standard deviation, min, quartiles, max and the average width of the
confidence range. Group with --by and draw mean prices with --chart.`,
	Example: `  carprice history summary
  carprice history summary --by brand --chart
  carprice history summary --by year --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		by, err := analyze.ParseGroupBy(historySummaryFlags.By)
		if err != nil {
			return err
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		started := time.Now()
		preds, err := st.ListPredictions(0)
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}
		if len(preds) == 0 {
			return fmt.Errorf("no saved predictions to summarise")
		}

		sums := analyze.Summarize(preds, by)
		if err := emit(cmd.OutOrStdout(), deps, newResult(model.KindTable, "history summary", summaryTable(sums), len(sums), started)); err != nil {
			return err
		}
		if !historySummaryFlags.Chart || deps.Config.Quiet {
			return nil
		}
		bars := make([]chart.Bar, len(sums))
		for i, s := range sums {
			bars[i] = chart.Bar{Label: s.Group, Value: s.Mean}
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return chart.Render(cmd.OutOrStdout(), bars, chart.Options{
			Title:  "Ortalama tahmini fiyat",
			Format: render.FormatPrice,
		})
	},
}

// summaryTable lays out summaries with formatted prices.
func summaryTable(sums []analyze.Summary) *model.Table {
	t := &model.Table{
		Headers: []string{"GROUP", "COUNT", "MEAN", "STD", "MIN", "P25", "MEDIAN", "P75", "MAX", "RANGE"},
	}
	for _, s := range sums {
		t.Rows = append(t.Rows, []string{
			s.Group,
			strconv.Itoa(s.Count),
			render.FormatPrice(s.Mean),
			render.FormatPrice(s.Std),
			render.FormatPrice(s.Min),
			render.FormatPrice(s.P25),
			render.FormatPrice(s.Median),
			render.FormatPrice(s.P75),
			render.FormatPrice(s.Max),
			render.FormatPrice(s.MeanSpread),
		})
	}
	return t
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historySummaryCmd)

	historyListCmd.Flags().IntVar(&historyListLimit, "limit", 20, "maximum rows to show (0 for all)")
	historySummaryCmd.Flags().StringVar(&historySummaryFlags.By, "by", "", "group by: brand|model|year|fuel")
	historySummaryCmd.Flags().BoolVar(&historySummaryFlags.Chart, "chart", false, "draw mean prices as a bar chart")
	historyClearCmd.Flags().BoolVarP(&historyClearYes, "yes", "y", false, "skip the confirmation prompt")
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// humanBytes formats a byte count as a human-readable string.
func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
