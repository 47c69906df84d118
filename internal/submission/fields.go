// Package submission turns raw form values into a VehicleSubmission and runs
// the prediction lifecycle for it.
//
// Form values are loosely typed strings keyed by the service's field names.
// The Fields table is the single description of every field: its primitive
// kind, whether the form requires it, and the value used when parsing fails.
package submission

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/util"
)

// Kind is the primitive type of a form field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Form field names. They double as the JSON keys of the predict request.
const (
	FieldBrand        = "marka"
	FieldModel        = "model"
	FieldSeries       = "seri"
	FieldFuelType     = "yakitTuru"
	FieldTransmission = "vitesTipi"
	FieldBodyType     = "kasaTipi"
	FieldColor        = "renk"
	FieldDrivetrain   = "cekisTipi"
	FieldProvince     = "il"

	FieldKilometers   = "km_temiz"
	FieldYear         = "yil_temiz"
	FieldEnginePower  = "motor_gucu_temiz"
	FieldDisplacement = "motor_hacmi_temiz"
	FieldDamageScore  = "hasar_skoru"

	FieldOriginalParts       = "orjinal_parça_sayısı"
	FieldLocallyPaintedParts = "lokal_boyalı_parça_sayısı"
	FieldPaintedParts        = "boyalı_parça_sayısı"
	FieldReplacedParts       = "değişen_parça_sayısı"
)

// Bounds enforced by Validate.
const (
	MinYear     = 1990
	DefaultYear = 2020
	TotalParts  = 14
)

// Field describes one form field.
type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
	Default  float64
	// ZeroIsUnset makes a parsed zero fall back to Default, matching the
	// form's "value || default" coercion. Part counts keep an explicit zero.
	ZeroIsUnset bool
}

// Fields lists every form field in display order.
var Fields = []Field{
	{Name: FieldBrand, Label: "Marka", Kind: KindString, Required: true},
	{Name: FieldModel, Label: "Model", Kind: KindString, Required: true},
	{Name: FieldSeries, Label: "Seri", Kind: KindString, Required: true},
	{Name: FieldYear, Label: "Model Yılı", Kind: KindInt, Required: true, Default: DefaultYear, ZeroIsUnset: true},
	{Name: FieldFuelType, Label: "Yakıt Türü", Kind: KindString, Required: true},
	{Name: FieldTransmission, Label: "Vites Tipi", Kind: KindString, Required: true},
	{Name: FieldBodyType, Label: "Kasa Tipi", Kind: KindString, Required: true},
	{Name: FieldDrivetrain, Label: "Çekiş Tipi", Kind: KindString},
	{Name: FieldEnginePower, Label: "Motor Gücü (HP)", Kind: KindFloat, Required: true, ZeroIsUnset: true},
	{Name: FieldDisplacement, Label: "Motor Hacmi (cc)", Kind: KindFloat, Required: true, ZeroIsUnset: true},
	{Name: FieldKilometers, Label: "Kilometre", Kind: KindFloat, Required: true, ZeroIsUnset: true},
	{Name: FieldColor, Label: "Renk", Kind: KindString},
	{Name: FieldProvince, Label: "İl", Kind: KindString},
	{Name: FieldDamageScore, Label: "Hasar Skoru", Kind: KindFloat, ZeroIsUnset: true},
	{Name: FieldOriginalParts, Label: "Orijinal Parça Sayısı", Kind: KindInt, Default: TotalParts},
	{Name: FieldLocallyPaintedParts, Label: "Lokal Boyalı Parça Sayısı", Kind: KindInt},
	{Name: FieldPaintedParts, Label: "Boyalı Parça Sayısı", Kind: KindInt},
	{Name: FieldReplacedParts, Label: "Değişen Parça Sayısı", Kind: KindInt},
}

// Lookup returns the field named name.
func Lookup(name string) (Field, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// CatalogChoices maps every catalog-backed select to its allowed values.
// Model and series come from the dependent lists, not the catalog.
func CatalogChoices(c model.OptionCatalog) map[string][]string {
	return map[string][]string{
		FieldBrand:        c.Brands,
		FieldFuelType:     c.FuelTypes,
		FieldTransmission: c.Transmissions,
		FieldBodyType:     c.BodyTypes,
		FieldDrivetrain:   c.Drivetrains,
		FieldColor:        c.Colors,
		FieldProvince:     c.Provinces,
	}
}

// ─── Form Values ──────────────────────────────────────────────────────────────

// Values holds raw form input keyed by field name.
type Values map[string]string

// NewValues returns the initial form state: empty selections and the
// pre-filled damage score and part counts.
func NewValues() Values {
	v := Values{}
	for _, f := range Fields {
		switch {
		case f.Kind == KindString:
			v[f.Name] = ""
		case f.Required:
			v[f.Name] = ""
		default:
			v[f.Name] = util.FormatNumber(f.Default)
		}
	}
	return v
}

// Get returns the trimmed value of name, or "" when absent.
func (v Values) Get(name string) string {
	return strings.TrimSpace(v[name])
}

// Set stores value under name and applies the cascading reset rule: a new
// brand clears model and series, a new model clears series. It reports
// whether the value changed.
func (v Values) Set(name, value string) bool {
	if v[name] == value {
		return false
	}
	v[name] = value
	switch name {
	case FieldBrand:
		v[FieldModel] = ""
		v[FieldSeries] = ""
	case FieldModel:
		v[FieldSeries] = ""
	}
	return true
}

// Clone returns an independent copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// ─── Parsing ──────────────────────────────────────────────────────────────────

// Parse builds a VehicleSubmission from v. Categorical values are passed
// through as typed; numeric values are coerced leniently and fall back to
// the field default when empty or unparseable.
func Parse(v Values) model.VehicleSubmission {
	return model.VehicleSubmission{
		Brand:        v.Get(FieldBrand),
		Model:        v.Get(FieldModel),
		Series:       v.Get(FieldSeries),
		FuelType:     v.Get(FieldFuelType),
		Transmission: v.Get(FieldTransmission),
		BodyType:     v.Get(FieldBodyType),
		Color:        v.Get(FieldColor),
		Drivetrain:   v.Get(FieldDrivetrain),
		Province:     v.Get(FieldProvince),

		Kilometers:   v.number(FieldKilometers),
		Year:         v.integer(FieldYear),
		EnginePower:  v.number(FieldEnginePower),
		Displacement: v.number(FieldDisplacement),
		DamageScore:  v.number(FieldDamageScore),

		OriginalParts:       v.integer(FieldOriginalParts),
		LocallyPaintedParts: v.integer(FieldLocallyPaintedParts),
		PaintedParts:        v.integer(FieldPaintedParts),
		ReplacedParts:       v.integer(FieldReplacedParts),
	}
}

func (v Values) number(name string) float64 {
	f := mustLookup(name)
	n, ok := util.LeadingFloat(v[name])
	if !ok || (n == 0 && f.ZeroIsUnset) {
		return f.Default
	}
	return n
}

func (v Values) integer(name string) int {
	f := mustLookup(name)
	n, ok := util.LeadingInt(v[name])
	if !ok || (n == 0 && f.ZeroIsUnset) {
		return int(f.Default)
	}
	return n
}

func mustLookup(name string) Field {
	f, ok := Lookup(name)
	if !ok {
		panic("submission: unknown field " + name)
	}
	return f
}

// FromSubmission renders s back into form values, e.g. to pre-fill a form
// from a saved prediction.
func FromSubmission(s model.VehicleSubmission) Values {
	return Values{
		FieldBrand:        s.Brand,
		FieldModel:        s.Model,
		FieldSeries:       s.Series,
		FieldFuelType:     s.FuelType,
		FieldTransmission: s.Transmission,
		FieldBodyType:     s.BodyType,
		FieldColor:        s.Color,
		FieldDrivetrain:   s.Drivetrain,
		FieldProvince:     s.Province,

		FieldKilometers:   util.FormatNumber(s.Kilometers),
		FieldYear:         strconv.Itoa(s.Year),
		FieldEnginePower:  util.FormatNumber(s.EnginePower),
		FieldDisplacement: util.FormatNumber(s.Displacement),
		FieldDamageScore:  util.FormatNumber(s.DamageScore),

		FieldOriginalParts:       strconv.Itoa(s.OriginalParts),
		FieldLocallyPaintedParts: strconv.Itoa(s.LocallyPaintedParts),
		FieldPaintedParts:        strconv.Itoa(s.PaintedParts),
		FieldReplacedParts:       strconv.Itoa(s.ReplacedParts),
	}
}

// ─── Validation ───────────────────────────────────────────────────────────────

// FieldError reports one invalid field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	name := e.Field
	if f, ok := Lookup(e.Field); ok {
		name = f.Label
	}
	return fmt.Sprintf("%s: %s", name, e.Message)
}

// Validate checks v the way the form's native constraints would before
// enabling submit. All problems are collected into a *util.MultiError of
// *FieldError values; nil means the form may be submitted.
func Validate(v Values, now time.Time) error {
	var errs util.MultiError
	for _, f := range Fields {
		errs.Add(check(f, v.Get(f.Name), now))
	}
	return errs.Err()
}

// ValidateField checks a single raw value against the constraints of the
// named field. Unknown fields are accepted.
func ValidateField(name, raw string, now time.Time) error {
	f, ok := Lookup(name)
	if !ok {
		return nil
	}
	return check(f, strings.TrimSpace(raw), now)
}

func check(f Field, raw string, now time.Time) error {
	if raw == "" {
		if f.Required {
			return &FieldError{Field: f.Name, Message: "zorunlu alan"}
		}
		return nil
	}
	if f.Kind == KindString {
		return nil
	}
	n, ok := util.LeadingFloat(raw)
	if !ok {
		return &FieldError{Field: f.Name, Message: "sayı olmalı"}
	}
	return checkRange(f, n, now)
}

func checkRange(f Field, n float64, now time.Time) error {
	switch f.Name {
	case FieldYear:
		if y := int(n); y < MinYear || y > now.Year() {
			return &FieldError{Field: f.Name, Message: fmt.Sprintf("%d ile %d arasında olmalı", MinYear, now.Year())}
		}
	case FieldOriginalParts, FieldLocallyPaintedParts, FieldPaintedParts, FieldReplacedParts:
		if n < 0 || n > TotalParts {
			return &FieldError{Field: f.Name, Message: fmt.Sprintf("0 ile %d arasında olmalı", TotalParts)}
		}
	default:
		if n < 0 {
			return &FieldError{Field: f.Name, Message: "negatif olamaz"}
		}
	}
	return nil
}

// Years lists the selectable model years, newest first: the calendar year of
// now down through MinYear inclusive.
func Years(now time.Time) []int {
	cur := now.Year()
	if cur < MinYear {
		return nil
	}
	years := make([]int, 0, cur-MinYear+1)
	for y := cur; y >= MinYear; y-- {
		years = append(years, y)
	}
	return years
}
