package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/derickschaefer/carprice/internal/app"
	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/submission"
)

// predictFlags maps each flag to the form field it fills, in field order.
var predictFlags = []struct {
	flag, field string
}{
	{"brand", submission.FieldBrand},
	{"model", submission.FieldModel},
	{"series", submission.FieldSeries},
	{"year", submission.FieldYear},
	{"fuel", submission.FieldFuelType},
	{"transmission", submission.FieldTransmission},
	{"body", submission.FieldBodyType},
	{"drivetrain", submission.FieldDrivetrain},
	{"power", submission.FieldEnginePower},
	{"displacement", submission.FieldDisplacement},
	{"km", submission.FieldKilometers},
	{"color", submission.FieldColor},
	{"province", submission.FieldProvince},
	{"damage", submission.FieldDamageScore},
	{"original-parts", submission.FieldOriginalParts},
	{"local-painted-parts", submission.FieldLocallyPaintedParts},
	{"painted-parts", submission.FieldPaintedParts},
	{"replaced-parts", submission.FieldReplacedParts},
}

var (
	predictSave bool
	predictFrom string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Request a price prediction from flags",
	Long: `Request a price prediction for a vehicle described entirely by flags.

Flags that are not given keep the form's initial values: empty selections,
a damage score of 0, 14 original parts and no painted or replaced parts.
With --from, a saved prediction's vehicle is the starting point instead and
flags override individual fields. A new --brand clears a saved model and
series; a new --model clears a saved series.

The input is validated before the service is called.`,
	Example: `  carprice predict --brand Toyota --model Corolla --series "1.6 Dream" \
      --year 2020 --fuel Benzin --transmission Otomatik --body Sedan \
      --power 132 --displacement 1600 --km 45000
  carprice predict ... --save --format json
  carprice predict --from 0192f1c2-... --km 60000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		var base submission.Values
		if predictFrom != "" {
			if base, err = savedValues(deps, predictFrom); err != nil {
				return err
			}
		}
		values := valuesFromFlags(cmd.Flags(), base)
		if err := submission.Validate(values, time.Now()); err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}

		started := time.Now()
		pred, err := runPrediction(cmd.Context(), deps, submission.Parse(values), "cli")
		if err != nil {
			return err
		}
		if predictSave {
			saved, err := savePrediction(deps, *pred)
			if err != nil {
				return err
			}
			pred = &saved
		}
		return emit(cmd.OutOrStdout(), deps, newResult(model.KindPrediction, "predict", pred, 1, started))
	},
}

// valuesFromFlags applies every flag the user set on top of base, or on top
// of the initial form state when base is nil. base is not modified.
func valuesFromFlags(fs *pflag.FlagSet, base submission.Values) submission.Values {
	v := submission.NewValues()
	if base != nil {
		v = base.Clone()
	}
	for _, pf := range predictFlags {
		if !fs.Changed(pf.flag) {
			continue
		}
		raw, _ := fs.GetString(pf.flag)
		v.Set(pf.field, raw)
	}
	return v
}

// runPrediction submits sub through a prediction lifecycle and wraps the
// outcome for history.
func runPrediction(ctx context.Context, deps *app.Deps, sub model.VehicleSubmission, source string) (*model.Prediction, error) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if deps.Config.Debug {
		log = slog.Default()
	}
	life := submission.NewLifecycle(deps.Client, log)
	result, err := life.Submit(ctx, sub)
	if err != nil {
		return nil, err
	}
	return &model.Prediction{
		CreatedAt:  time.Now().UTC(),
		Source:     source,
		Submission: sub,
		Result:     *result,
	}, nil
}

// savedValues loads a stored prediction and returns its vehicle as form values.
func savedValues(deps *app.Deps, id string) (submission.Values, error) {
	st, err := deps.RequireStore()
	if err != nil {
		return nil, err
	}
	p, ok, err := st.GetPrediction(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no saved prediction with id %q (see: carprice history list)", id)
	}
	return submission.FromSubmission(p.Submission), nil
}

func savePrediction(deps *app.Deps, p model.Prediction) (model.Prediction, error) {
	st, err := deps.RequireStore()
	if err != nil {
		return p, err
	}
	saved, err := st.PutPrediction(p)
	if err != nil {
		return p, fmt.Errorf("saving prediction: %w", err)
	}
	return saved, nil
}

func init() {
	rootCmd.AddCommand(predictCmd)

	f := predictCmd.Flags()
	for _, pf := range predictFlags {
		field, _ := submission.Lookup(pf.field)
		usage := field.Label
		if field.Required {
			usage += " (required)"
		}
		f.String(pf.flag, "", usage)
	}
	f.BoolVar(&predictSave, "save", false, "store the prediction in the local history")
	f.StringVar(&predictFrom, "from", "", "start from the vehicle of a saved prediction (history id)")
}
