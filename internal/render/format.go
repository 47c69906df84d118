package render

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/derickschaefer/carprice/internal/util"
)

// CurrencySymbol is the Turkish lira sign used by FormatPrice.
const CurrencySymbol = "₺"

// Disclaimer is printed under every prediction.
const Disclaimer = "Bu tahmin piyasa koşullarına göre değişiklik gösterebilir."

var hundred = decimal.NewFromInt(100)

// FormatPrice renders v as Turkish lira with no decimals and '.' thousands
// separators: 450000 → "₺450.000". Halves round away from zero.
func FormatPrice(v float64) string {
	d := decimal.NewFromFloat(v).Round(0)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + CurrencySymbol + groupThousands(d.String(), '.')
}

// FormatPercent renders a 0..1 score as a percentage with one decimal:
// 0.92 → "92.0%".
func FormatPercent(score float64) string {
	return decimal.NewFromFloat(score).Mul(hundred).StringFixed(1) + "%"
}

// FormatErrorRate renders a mean absolute percentage error, already in
// percent, with one decimal: 8.5 → "±8.5%".
func FormatErrorRate(mape float64) string {
	return "±" + decimal.NewFromFloat(mape).StringFixed(1) + "%"
}

// FormatRange renders a confidence interval as "low – high".
func FormatRange(low, high float64) string {
	return FormatPrice(low) + " – " + FormatPrice(high)
}

func groupThousands(digits string, sep byte) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// ─── Banner Text ──────────────────────────────────────────────────────────────

var strict = bluemonday.StrictPolicy()

// Banner turns an arbitrary message into the single-line plain text shown in
// the page banner. Markup is stripped and whitespace collapsed.
func Banner(msg string) string {
	return util.SingleLine(html.UnescapeString(strict.Sanitize(msg)))
}

// BannerText is Banner applied to err's message. A nil error yields "".
func BannerText(err error) string {
	if err == nil {
		return ""
	}
	return Banner(err.Error())
}
