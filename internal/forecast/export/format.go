// Package export renders statements and forecast templates for download.
package export

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatYen renders v rounded half away from zero to whole yen with
// thousands separators. Negative amounts carry the △ marker: △¥1,234.
func FormatYen(v float64) string {
	d := decimal.NewFromFloat(v).Round(0)
	if d.IsNegative() {
		return "△¥" + printer.Sprintf("%d", d.Neg().IntPart())
	}
	return "¥" + printer.Sprintf("%d", d.IntPart())
}

func formatAmount(v float64) string {
	return decimal.NewFromFloat(v).Round(0).String()
}
