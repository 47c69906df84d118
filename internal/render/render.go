// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/util"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Formats lists every accepted --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD}

// ValidFormat reports whether f is one of Formats.
func ValidFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// catalogRow is one JSONL record of the option catalog.
type catalogRow struct {
	Category string   `json:"category"`
	Values   []string `json:"values"`
}

func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch data := result.Data.(type) {
	case *model.OptionCatalog:
		for _, c := range catalogCategories(data) {
			if err := enc.Encode(catalogRow{Category: c.key, Values: c.values}); err != nil {
				return err
			}
		}
		return nil
	case *model.NamedList:
		for _, item := range data.Items {
			if err := enc.Encode(map[string]string{data.Key: item}); err != nil {
				return err
			}
		}
		return nil
	case []model.Prediction:
		for _, p := range data {
			if err := enc.Encode(p); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.Encode(result.Data)
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	switch data := result.Data.(type) {
	case *model.Health:
		return renderFieldTable(w, healthRows(data))
	case *model.OptionCatalog:
		return renderCatalogTable(w, data)
	case *model.NamedList:
		return renderListTable(w, data)
	case *model.Prediction:
		if err := renderFieldTable(w, predictionRows(data, true)); err != nil {
			return err
		}
		fmt.Fprintf(w, "ⓘ  %s\n", Disclaimer)
		return nil
	case []model.Prediction:
		return renderHistoryTable(w, data)
	case *model.Table:
		return renderGenericTable(w, data)
	default:
		// Fallback: JSON
		return renderJSON(w, result)
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	return tw
}

func renderFieldTable(w io.Writer, rows [][]string) error {
	tw := newTable(w, []string{"FIELD", "VALUE"})
	tw.AppendBulk(rows)
	tw.Render()
	return nil
}

func renderCatalogTable(w io.Writer, c *model.OptionCatalog) error {
	tw := newTable(w, []string{"CATEGORY", "COUNT", "VALUES"})
	tw.SetAutoWrapText(true)
	tw.SetColWidth(60)
	for _, cat := range catalogCategories(c) {
		tw.Append([]string{cat.label, strconv.Itoa(len(cat.values)), strings.Join(cat.values, ", ")})
	}
	tw.Render()
	return nil
}

func renderListTable(w io.Writer, l *model.NamedList) error {
	if l.Title != "" {
		fmt.Fprintf(w, "%s\n\n", l.Title)
	}
	tw := newTable(w, []string{"#", strings.ToUpper(l.Key)})
	for i, item := range l.Items {
		tw.Append([]string{strconv.Itoa(i + 1), item})
	}
	tw.Render()
	return nil
}

func renderHistoryTable(w io.Writer, preds []model.Prediction) error {
	tw := newTable(w, historyHeader)
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, p := range preds {
		tw.Append(historyRow(p, true))
	}
	tw.Render()
	return nil
}

func renderGenericTable(w io.Writer, t *model.Table) error {
	tw := newTable(w, t.Headers)
	tw.AppendBulk(t.Rows)
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	switch data := result.Data.(type) {
	case *model.Health:
		_ = cw.Write([]string{"field", "value"})
		_ = cw.WriteAll(healthRows(data))
	case *model.OptionCatalog:
		_ = cw.Write([]string{"category", "value"})
		for _, cat := range catalogCategories(data) {
			for _, v := range cat.values {
				_ = cw.Write([]string{cat.key, v})
			}
		}
	case *model.NamedList:
		_ = cw.Write([]string{data.Key})
		for _, item := range data.Items {
			_ = cw.Write([]string{item})
		}
	case *model.Prediction:
		_ = cw.Write([]string{"field", "value"})
		_ = cw.WriteAll(predictionRows(data, false))
	case []model.Prediction:
		_ = cw.Write(historyHeaderCSV)
		for _, p := range data {
			_ = cw.Write(historyRow(p, false))
		}
	case *model.Table:
		_ = cw.Write(data.Headers)
		_ = cw.WriteAll(data.Rows)
	default:
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	switch data := result.Data.(type) {
	case *model.Health:
		writeMDTable(w, []string{"FIELD", "VALUE"}, healthRows(data))
	case *model.OptionCatalog:
		var rows [][]string
		for _, cat := range catalogCategories(data) {
			rows = append(rows, []string{cat.label, strconv.Itoa(len(cat.values)), strings.Join(cat.values, ", ")})
		}
		writeMDTable(w, []string{"CATEGORY", "COUNT", "VALUES"}, rows)
	case *model.NamedList:
		rows := make([][]string, len(data.Items))
		for i, item := range data.Items {
			rows[i] = []string{strconv.Itoa(i + 1), item}
		}
		writeMDTable(w, []string{"#", strings.ToUpper(data.Key)}, rows)
	case *model.Prediction:
		writeMDTable(w, []string{"FIELD", "VALUE"}, predictionRows(data, true))
		fmt.Fprintf(w, "\n_%s_\n", Disclaimer)
	case []model.Prediction:
		rows := make([][]string, len(data))
		for i, p := range data {
			rows[i] = historyRow(p, true)
		}
		writeMDTable(w, historyHeader, rows)
	case *model.Table:
		writeMDTable(w, data.Headers, data.Rows)
	default:
		return renderJSON(w, result)
	}
	return nil
}

func writeMDTable(w io.Writer, header []string, rows [][]string) {
	fmt.Fprintf(w, "| %s |\n", strings.Join(header, " | "))
	seps := make([]string, len(header))
	for i := range seps {
		seps[i] = "----"
	}
	fmt.Fprintf(w, "|%s|\n", strings.Join(seps, "|"))
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = mdEscape(c)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

// ─── Row Builders ─────────────────────────────────────────────────────────────

type category struct {
	key    string
	label  string
	values []string
}

func catalogCategories(c *model.OptionCatalog) []category {
	return []category{
		{"markalar", "Marka", c.Brands},
		{"yakit_turleri", "Yakıt Türü", c.FuelTypes},
		{"vites_tipleri", "Vites Tipi", c.Transmissions},
		{"kasa_tipleri", "Kasa Tipi", c.BodyTypes},
		{"cekis_tipleri", "Çekiş Tipi", c.Drivetrains},
		{"renkler", "Renk", c.Colors},
		{"iller", "İl", c.Provinces},
	}
}

func healthRows(h *model.Health) [][]string {
	return [][]string{
		{"Status", h.Status},
		{"Model Loaded", strconv.FormatBool(h.ModelLoaded)},
		{"Version", h.Version},
	}
}

// predictionRows lists a prediction field by field. Human rows use the
// display formats; machine rows keep raw numbers.
func predictionRows(p *model.Prediction, human bool) [][]string {
	s, r := p.Submission, p.Result
	rows := [][]string{}
	if p.ID != "" {
		rows = append(rows, []string{"ID", p.ID})
	}
	rows = append(rows,
		[]string{"Araç", Vehicle(s)},
		[]string{"Model Yılı", strconv.Itoa(s.Year)},
		[]string{"Kilometre", util.FormatNumber(s.Kilometers)},
	)
	if human {
		rows = append(rows,
			[]string{"Tahmini Fiyat", FormatPrice(r.PredictedPrice)},
			[]string{"Güven Aralığı", FormatRange(r.ConfidenceLow, r.ConfidenceHigh)},
			[]string{"Model Doğruluğu", FormatPercent(r.ModelInfo.R2Score)},
			[]string{"Hata Oranı", FormatErrorRate(r.ModelInfo.MAPE)},
		)
		return rows
	}
	return append(rows,
		[]string{"predicted_price", util.FormatNumber(r.PredictedPrice)},
		[]string{"confidence_low", util.FormatNumber(r.ConfidenceLow)},
		[]string{"confidence_high", util.FormatNumber(r.ConfidenceHigh)},
		[]string{"r2_score", util.FormatNumber(r.ModelInfo.R2Score)},
		[]string{"mape", util.FormatNumber(r.ModelInfo.MAPE)},
	)
}

var (
	historyHeader    = []string{"ID", "CREATED", "SOURCE", "VEHICLE", "YEAR", "KM", "PRICE"}
	historyHeaderCSV = []string{"id", "created_at", "source", "vehicle", "year", "km", "predicted_price"}
)

func historyRow(p model.Prediction, human bool) []string {
	price := util.FormatNumber(p.Result.PredictedPrice)
	created := p.CreatedAt.UTC().Format(time.RFC3339)
	if human {
		price = FormatPrice(p.Result.PredictedPrice)
		created = p.CreatedAt.Local().Format("2006-01-02 15:04")
	}
	return []string{
		p.ID,
		created,
		p.Source,
		Vehicle(p.Submission),
		strconv.Itoa(p.Submission.Year),
		util.FormatNumber(p.Submission.Kilometers),
		price,
	}
}

// Vehicle is the one-line description of a submission: "Toyota Corolla 1.6 Dream".
func Vehicle(s model.VehicleSubmission) string {
	return util.SingleLine(strings.Join([]string{s.Brand, s.Model, s.Series}, " "))
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
