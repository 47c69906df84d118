// Package model defines the canonical data types used throughout carprice.
// These types mirror the wire contract of the price prediction service and
// the result envelope that every command returns.
package model

import (
	"time"
)

// ─── Prediction Service Types ─────────────────────────────────────────────────

// Health is the liveness payload returned by GET /health.
type Health struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Version     string `json:"version"`
}

// OptionCatalog is the static reference data offered by the form.
// It is fetched once per page mount and never mutated afterwards.
type OptionCatalog struct {
	Brands        []string `json:"markalar"`
	FuelTypes     []string `json:"yakit_turleri"`
	Transmissions []string `json:"vites_tipleri"`
	BodyTypes     []string `json:"kasa_tipleri"`
	Drivetrains   []string `json:"cekis_tipleri"`
	Colors        []string `json:"renkler"`
	Provinces     []string `json:"iller"`
}

// Empty reports whether the catalog holds no options at all.
func (c OptionCatalog) Empty() bool {
	return len(c.Brands) == 0 &&
		len(c.FuelTypes) == 0 &&
		len(c.Transmissions) == 0 &&
		len(c.BodyTypes) == 0 &&
		len(c.Drivetrains) == 0 &&
		len(c.Colors) == 0 &&
		len(c.Provinces) == 0
}

// VehicleSubmission is the complete, parsed set of form values sent to
// POST /api/v1/predict. JSON keys follow the service contract verbatim,
// including the Turkish part-count keys.
type VehicleSubmission struct {
	Brand        string `json:"marka"`
	Model        string `json:"model"`
	Series       string `json:"seri"`
	FuelType     string `json:"yakitTuru"`
	Transmission string `json:"vitesTipi"`
	BodyType     string `json:"kasaTipi"`
	Color        string `json:"renk"`
	Drivetrain   string `json:"cekisTipi"`
	Province     string `json:"il"`

	Kilometers   float64 `json:"km_temiz"`
	Year         int     `json:"yil_temiz"`
	EnginePower  float64 `json:"motor_gucu_temiz"`
	Displacement float64 `json:"motor_hacmi_temiz"`
	DamageScore  float64 `json:"hasar_skoru"`

	OriginalParts       int `json:"orjinal_parça_sayısı"`
	LocallyPaintedParts int `json:"lokal_boyalı_parça_sayısı"`
	PaintedParts        int `json:"boyalı_parça_sayısı"`
	ReplacedParts       int `json:"değişen_parça_sayısı"`
}

// ModelInfo carries the accuracy metrics of the model that produced a prediction.
type ModelInfo struct {
	R2Score float64 `json:"r2_score"`
	MAPE    float64 `json:"mape"`
}

// PredictionResult is the response of POST /api/v1/predict.
// It is immutable once received and replaced wholesale by the next prediction.
type PredictionResult struct {
	PredictedPrice float64   `json:"predicted_price"`
	Formatted      string    `json:"predicted_price_formatted,omitempty"`
	ConfidenceLow  float64   `json:"confidence_low"`
	ConfidenceHigh float64   `json:"confidence_high"`
	ModelInfo      ModelInfo `json:"model_info"`
}

// Prediction pairs a submission with the result it produced.
// It is the unit persisted by the history store.
type Prediction struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	Source     string            `json:"source"` // cli|form|web
	Submission VehicleSubmission `json:"submission"`
	Result     PredictionResult  `json:"result"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries timing metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindHealth     = "health"
	KindCatalog    = "catalog"
	KindList       = "list"
	KindPrediction = "prediction"
	KindHistory    = "history"
	KindTable      = "table"
)

// NamedList is a titled list of strings, used for model and series lists.
type NamedList struct {
	Title string   `json:"title"`
	Key   string   `json:"key"`
	Items []string `json:"items"`
}

// Table is a generic header-plus-rows payload for ad-hoc command output.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}
