// Package pl computes the projected profit and loss statement.
package pl

import "github.com/odyssey-erp/plforecast/internal/catalog"

// RowType groups statement rows for display.
type RowType string

const (
	Summary RowType = "summary"
	Detail  RowType = "detail"
)

// TypeOf classifies an account.
func TypeOf(a catalog.Account) RowType {
	if a.IsSummary() {
		return Summary
	}
	return Detail
}

// Row is one account line of the statement.
type Row struct {
	Account          catalog.Account    `json:"-"`
	Item             string             `json:"item_name"`
	Type             RowType            `json:"type"`
	Values           []float64          `json:"-"`
	Amounts          map[string]float64 `json:"amounts"`
	ActualSubtotal   float64            `json:"actual_subtotal"`
	ForecastSubtotal float64            `json:"forecast_subtotal"`
	Total            float64            `json:"total"`
}

// Statement is the computed P&L table. Rows are in catalog order.
type Statement struct {
	Months  []string `json:"months"`
	Cutover int      `json:"cutover_index"`
	Rows    []Row    `json:"rows"`
}

// Row returns the line of a. A statement without rows yields an empty line.
func (s Statement) Row(a catalog.Account) Row {
	if int(a) < len(s.Rows) && s.Rows[a].Account == a {
		return s.Rows[a]
	}
	return Row{Account: a, Item: a.Name(), Type: TypeOf(a), Values: make([]float64, len(s.Months)), Amounts: map[string]float64{}}
}

// Value returns the amount of a at month index i.
func (s Statement) Value(a catalog.Account, i int) float64 {
	row := s.Row(a)
	if i < 0 || i >= len(row.Values) {
		return 0
	}
	return row.Values[i]
}

// ActualMonths returns the months sourced from actuals.
func (s Statement) ActualMonths() []string {
	return append([]string{}, s.Months[:s.Cutover]...)
}

// ForecastMonths returns the months sourced from forecasts.
func (s Statement) ForecastMonths() []string {
	return append([]string{}, s.Months[s.Cutover:]...)
}

// SummaryRows filters the statement down to summary lines.
func (s Statement) SummaryRows() []Row {
	out := make([]Row, 0, 8)
	for _, r := range s.Rows {
		if r.Type == Summary {
			out = append(out, r)
		}
	}
	return out
}
