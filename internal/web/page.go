package web

import (
	"strconv"
	"time"

	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/options"
	"github.com/derickschaefer/carprice/internal/render"
	"github.com/derickschaefer/carprice/internal/submission"
)

// page is the view model handed to the template.
type page struct {
	Banner         string
	LoadingCatalog bool
	Sections       []section
	CanSubmit      bool
	Submitting     bool
	Result         *resultView
	Disclaimer     string
}

type section struct {
	Title  string
	Icon   string
	Fields []fieldView
}

type fieldView struct {
	Name        string
	Label       string
	Placeholder string
	Select      bool
	Options     []string
	Value       string
	Required    bool
	Disabled    bool
	AutoSubmit  bool
	Min         string
	Max         string
	Step        string
}

type resultView struct {
	Price     string
	Low       string
	High      string
	Accuracy  string
	ErrorRate string
}

// layout groups the fields into the three form sections.
var layout = []struct {
	title, icon string
	fields      []string
}{
	{"Araç Bilgileri", "🚗", []string{
		submission.FieldBrand, submission.FieldModel, submission.FieldSeries, submission.FieldYear,
	}},
	{"Teknik Özellikler", "⚙️", []string{
		submission.FieldFuelType, submission.FieldTransmission, submission.FieldBodyType,
		submission.FieldDrivetrain, submission.FieldEnginePower, submission.FieldDisplacement,
	}},
	{"Diğer Bilgiler", "📍", []string{
		submission.FieldKilometers, submission.FieldColor, submission.FieldProvince,
		submission.FieldDamageScore, submission.FieldOriginalParts, submission.FieldLocallyPaintedParts,
		submission.FieldPaintedParts, submission.FieldReplacedParts,
	}},
}

var inputPlaceholders = map[string]string{
	submission.FieldEnginePower:  "Örn: 150",
	submission.FieldDisplacement: "Örn: 1600",
	submission.FieldKilometers:   "Örn: 50000",
	submission.FieldDamageScore:  "0",
}

// buildPage assembles the view model from a session's state. notice is a
// one-shot message (validation) shown when no catalog error is pending.
func buildPage(opts options.Snapshot, life submission.Snapshot, values submission.Values, notice string, now time.Time) page {
	p := page{
		LoadingCatalog: opts.State == options.LoadingCatalog,
		Submitting:     life.State == submission.Submitting,
		Disclaimer:     render.Disclaimer,
	}

	switch {
	case opts.Error != "":
		p.Banner = render.Banner(opts.Error)
	case notice != "":
		p.Banner = render.Banner(notice)
	case life.Error != "":
		p.Banner = render.Banner(life.Error)
	}

	p.CanSubmit = opts.State == options.CatalogReady && !p.Submitting

	if life.State == submission.Succeeded && life.Result != nil {
		p.Result = newResultView(life.Result)
	}

	years := submission.Years(now)
	yearOpts := make([]string, len(years))
	for i, y := range years {
		yearOpts[i] = strconv.Itoa(y)
	}

	// Dependent lists are shown only for the parent the form holds.
	selects := submission.CatalogChoices(opts.Catalog)
	selects[submission.FieldModel] = nil
	selects[submission.FieldSeries] = nil
	if opts.Brand == values.Get(submission.FieldBrand) {
		selects[submission.FieldModel] = opts.Models
		if opts.Model == values.Get(submission.FieldModel) {
			selects[submission.FieldSeries] = opts.Series
		}
	}
	selects[submission.FieldYear] = yearOpts

	for _, sec := range layout {
		s := section{Title: sec.title, Icon: sec.icon}
		for _, name := range sec.fields {
			f, _ := submission.Lookup(name)
			fv := fieldView{
				Name:     f.Name,
				Label:    f.Label,
				Value:    values[f.Name],
				Required: f.Required,
			}
			if optList, ok := selects[name]; ok {
				fv.Select = true
				fv.Options = optList
				fv.Placeholder = f.Label + " Seçin"
				if name == submission.FieldYear {
					fv.Placeholder = "Yıl Seçin"
				}
			} else {
				fv.Placeholder = inputPlaceholders[name]
				fv.Min = "0"
			}
			switch name {
			case submission.FieldBrand:
				fv.AutoSubmit = true
			case submission.FieldModel:
				fv.AutoSubmit = true
				fv.Disabled = values[submission.FieldBrand] == ""
			case submission.FieldSeries:
				fv.Disabled = values[submission.FieldModel] == ""
			case submission.FieldDamageScore:
				fv.Step = "0.1"
			case submission.FieldOriginalParts, submission.FieldLocallyPaintedParts,
				submission.FieldPaintedParts, submission.FieldReplacedParts:
				fv.Max = strconv.Itoa(submission.TotalParts)
			}
			s.Fields = append(s.Fields, fv)
		}
		p.Sections = append(p.Sections, s)
	}
	return p
}

func newResultView(r *model.PredictionResult) *resultView {
	return &resultView{
		Price:     render.FormatPrice(r.PredictedPrice),
		Low:       render.FormatPrice(r.ConfidenceLow),
		High:      render.FormatPrice(r.ConfidenceHigh),
		Accuracy:  render.FormatPercent(r.ModelInfo.R2Score),
		ErrorRate: render.FormatErrorRate(r.ModelInfo.MAPE),
	}
}
