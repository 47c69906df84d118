package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/submission"
)

// ─── health ───────────────────────────────────────────────────────────────────

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the prediction service is reachable",
	Example: `  carprice health
  carprice health --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		started := time.Now()
		h, err := deps.Client.CheckHealth(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), deps, newResult(model.KindHealth, "health", h, 1, started))
	},
}

// ─── options ──────────────────────────────────────────────────────────────────

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Show the vehicle option catalog",
	Long: `Fetch the option catalog: brands, fuel types, transmissions, body types,
drivetrains, colors and provinces.`,
	Example: `  carprice options
  carprice options --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		started := time.Now()
		c, err := deps.Client.GetOptions(cmd.Context())
		if err != nil {
			return err
		}
		items := len(c.Brands) + len(c.FuelTypes) + len(c.Transmissions) + len(c.BodyTypes) +
			len(c.Drivetrains) + len(c.Colors) + len(c.Provinces)
		return emit(cmd.OutOrStdout(), deps, newResult(model.KindCatalog, "options", c, items, started))
	},
}

// ─── models / series ──────────────────────────────────────────────────────────

var modelsCmd = &cobra.Command{
	Use:   "models <BRAND>",
	Short: "List the models of a brand",
	Example: `  carprice models Toyota
  carprice models "Mercedes-Benz" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		started := time.Now()
		models, err := deps.Client.GetModelsByBrand(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		list := &model.NamedList{Title: args[0], Key: submission.FieldModel, Items: models}
		return emit(cmd.OutOrStdout(), deps, newResult(model.KindList, "models "+args[0], list, len(models), started))
	},
}

var seriesCmd = &cobra.Command{
	Use:     "series <MODEL>",
	Short:   "List the series of a model",
	Example: `  carprice series Corolla`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		started := time.Now()
		series, err := deps.Client.GetSeriesByModel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		list := &model.NamedList{Title: args[0], Key: submission.FieldSeries, Items: series}
		return emit(cmd.OutOrStdout(), deps, newResult(model.KindList, "series "+args[0], list, len(series), started))
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(optionsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(seriesCmd)
}
