// Package analyze computes price statistics over saved predictions.
// All functions are pure; no I/O.
package analyze

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/derickschaefer/carprice/internal/model"
)

// GroupBy selects how predictions are grouped before summarising.
type GroupBy string

const (
	GroupNone  GroupBy = ""
	GroupBrand GroupBy = "brand"
	GroupModel GroupBy = "model"
	GroupYear  GroupBy = "year"
	GroupFuel  GroupBy = "fuel"
)

// ParseGroupBy validates a --by flag value.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(s); g {
	case GroupNone, GroupBrand, GroupModel, GroupYear, GroupFuel:
		return g, nil
	}
	return "", fmt.Errorf("unknown grouping %q: expected brand|model|year|fuel", s)
}

// key returns the group label of p.
func (g GroupBy) key(p model.Prediction) string {
	s := p.Submission
	switch g {
	case GroupBrand:
		return s.Brand
	case GroupModel:
		return s.Brand + " " + s.Model
	case GroupYear:
		return strconv.Itoa(s.Year)
	case GroupFuel:
		return s.FuelType
	default:
		return "all"
	}
}

// Summary holds descriptive statistics of predicted prices for one group.
type Summary struct {
	Group  string  `json:"group"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	Max    float64 `json:"max"`
	// MeanSpread is the average width of the confidence range.
	MeanSpread float64 `json:"mean_spread"`
}

// Summarize groups preds and computes price statistics per group, ordered by
// group label. An empty input yields no summaries.
func Summarize(preds []model.Prediction, by GroupBy) []Summary {
	groups := make(map[string][]model.Prediction)
	for _, p := range preds {
		k := by.key(p)
		groups[k] = append(groups[k], p)
	}

	out := make([]Summary, 0, len(groups))
	for k, ps := range groups {
		out = append(out, summarize(k, ps))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}

func summarize(group string, preds []model.Prediction) Summary {
	s := Summary{Group: group, Count: len(preds)}

	prices := make([]float64, len(preds))
	var spread float64
	for i, p := range preds {
		prices[i] = p.Result.PredictedPrice
		spread += p.Result.ConfidenceHigh - p.Result.ConfidenceLow
	}
	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Mean = sumF(prices) / float64(len(prices))
	s.Std = stddevF(prices, s.Mean)
	s.P25 = percentile(sorted, 25)
	s.Median = percentile(sorted, 50)
	s.P75 = percentile(sorted, 75)
	s.MeanSpread = spread / float64(len(preds))
	return s
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func sumF(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func stddevF(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)-1))
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	idx := p / 100 * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
