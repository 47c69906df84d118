// Package form is the interactive terminal front end. It walks the user
// through the same cascade as the web page: brand, then model, then series,
// then the remaining fields, and finally requests a prediction.
package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/options"
	"github.com/derickschaefer/carprice/internal/render"
	"github.com/derickschaefer/carprice/internal/submission"
)

// Unset is the choice offered for optional selects.
const Unset = "(boş bırak)"

// ErrNoBrands is returned when the catalog loaded but lists no brands.
var ErrNoBrands = errors.New("katalogda marka bulunamadı")

const pageSize = 12

// Form drives one prediction through a Driver.
type Form struct {
	driver  Driver
	options *options.Controller
	life    *submission.Lifecycle
	now     func() time.Time
}

// New returns a Form. now defaults to time.Now.
func New(d Driver, opts *options.Controller, life *submission.Lifecycle, now func() time.Time) *Form {
	if now == nil {
		now = time.Now
	}
	return &Form{driver: d, options: opts, life: life, now: now}
}

// Fill loads the catalog and prompts for every field. The returned values
// have passed per-field validation but not the cross-field Validate.
func (f *Form) Fill(ctx context.Context) (submission.Values, error) {
	if err := f.options.Activate(ctx); err != nil {
		return nil, err
	}
	v := submission.NewValues()
	if err := f.pickVehicle(ctx, v); err != nil {
		return nil, err
	}

	choices := submission.CatalogChoices(f.options.Snapshot().Catalog)
	for _, fld := range submission.Fields {
		var (
			val string
			err error
		)
		switch fld.Name {
		case submission.FieldBrand, submission.FieldModel, submission.FieldSeries:
			continue
		case submission.FieldYear:
			val, err = f.pickYear(ctx, fld)
		default:
			if list, ok := choices[fld.Name]; ok {
				val, err = f.choose(ctx, fld, list)
			} else {
				val, err = f.input(ctx, fld, v[fld.Name])
			}
		}
		if err != nil {
			return nil, err
		}
		v.Set(fld.Name, val)
	}
	return v, nil
}

// Run fills the form, asks for confirmation and submits the prediction.
func (f *Form) Run(ctx context.Context) (*model.Prediction, error) {
	v, err := f.Fill(ctx)
	if err != nil {
		return nil, err
	}
	if err := submission.Validate(v, f.now()); err != nil {
		return nil, err
	}
	sub := submission.Parse(v)

	ok, err := f.driver.Confirm(ctx, ConfirmConfig{
		Message: fmt.Sprintf("%s için fiyat tahmini alınsın mı?", render.Vehicle(sub)),
		Default: true,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAborted
	}

	if err := f.driver.Info(ctx, "Tahmin hesaplanıyor..."); err != nil {
		return nil, err
	}
	result, err := f.life.Submit(ctx, sub)
	if err != nil {
		return nil, err
	}
	return &model.Prediction{
		CreatedAt:  f.now().UTC(),
		Source:     "form",
		Submission: sub,
		Result:     *result,
	}, nil
}

// pickVehicle runs the brand → model → series cascade, starting over when a
// selection has nothing below it.
func (f *Form) pickVehicle(ctx context.Context, v submission.Values) error {
	brandField, _ := submission.Lookup(submission.FieldBrand)
	modelField, _ := submission.Lookup(submission.FieldModel)
	seriesField, _ := submission.Lookup(submission.FieldSeries)

	for {
		brands := f.options.Snapshot().Catalog.Brands
		if len(brands) == 0 {
			return ErrNoBrands
		}
		brand, err := f.choose(ctx, brandField, brands)
		if err != nil {
			return err
		}
		v.Set(submission.FieldBrand, brand)
		f.options.SelectBrand(ctx, brand)

		models := f.options.Snapshot().Models
		if len(models) == 0 {
			if err := f.driver.Info(ctx, fmt.Sprintf("%s için model bulunamadı.", brand)); err != nil {
				return err
			}
			continue
		}
		m, err := f.choose(ctx, modelField, models)
		if err != nil {
			return err
		}
		v.Set(submission.FieldModel, m)
		f.options.SelectModel(ctx, m)

		series := f.options.Snapshot().Series
		if len(series) == 0 {
			if err := f.driver.Info(ctx, fmt.Sprintf("%s için seri bulunamadı.", m)); err != nil {
				return err
			}
			continue
		}
		s, err := f.choose(ctx, seriesField, series)
		if err != nil {
			return err
		}
		v.Set(submission.FieldSeries, s)
		return nil
	}
}

func (f *Form) pickYear(ctx context.Context, fld submission.Field) (string, error) {
	years := submission.Years(f.now())
	opts := make([]string, len(years))
	def := 0
	for i, y := range years {
		opts[i] = strconv.Itoa(y)
		if y == submission.DefaultYear {
			def = i
		}
	}
	idx, err := f.driver.Select(ctx, SelectConfig{
		Message:      fld.Label,
		Options:      opts,
		DefaultIndex: def,
		PageSize:     pageSize,
	})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(opts) {
		return "", fmt.Errorf("%s: geçersiz seçim", fld.Label)
	}
	return opts[idx], nil
}

// choose prompts for one of list. Optional fields get an Unset entry that
// maps to the empty string.
func (f *Form) choose(ctx context.Context, fld submission.Field, list []string) (string, error) {
	opts := list
	if !fld.Required {
		opts = append([]string{Unset}, list...)
	}
	idx, err := f.driver.Select(ctx, SelectConfig{
		Message:  fld.Label,
		Options:  opts,
		PageSize: pageSize,
	})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(opts) {
		return "", fmt.Errorf("%s: geçersiz seçim", fld.Label)
	}
	if !fld.Required && idx == 0 {
		return "", nil
	}
	return opts[idx], nil
}

func (f *Form) input(ctx context.Context, fld submission.Field, def string) (string, error) {
	now := f.now()
	return f.driver.Input(ctx, InputConfig{
		Message: fld.Label,
		Default: def,
		Validator: func(s string) error {
			return submission.ValidateField(fld.Name, s, now)
		},
	})
}
