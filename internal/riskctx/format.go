package riskctx

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.NewFromInt(1000)
	hundred  = decimal.NewFromInt(100)
)

// FormatBillions renders an amount held in millions as "$124.0B"
func FormatBillions(millions float64) string {
	return "$" + decimal.NewFromFloat(millions).Div(thousand).StringFixed(1) + "B"
}

// FormatMillions renders an amount held in millions as "$13,200M"
func FormatMillions(millions float64) string {
	d := decimal.NewFromFloat(millions).Round(0)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + "$" + groupThousands(d.String()) + "M"
}

// FormatPct renders a ratio as a percentage with the given precision
func FormatPct(ratio float64, places int32) string {
	return decimal.NewFromFloat(ratio).Mul(hundred).StringFixed(places) + "%"
}

// FormatRatio renders a ratio as the shortest exact percentage up to two
// decimals: 0.76 → "76%", 0.7599 → "75.99%"
func FormatRatio(ratio float64) string {
	return decimal.NewFromFloat(ratio).Mul(hundred).Round(2).String() + "%"
}

// FormatSignedPct is FormatPct with an explicit sign, for deltas
func FormatSignedPct(ratio float64, places int32) string {
	s := FormatPct(ratio, places)
	if !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s
}

func groupThousands(digits string) string {
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
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
