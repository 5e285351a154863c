package analysis

import (
	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/pl"
)

// Indicator holds the margin ratios of one month, in percent.
type Indicator struct {
	Month           string  `json:"month"`
	Sales           float64 `json:"sales"`
	GrossMargin     float64 `json:"gross_margin"`
	OperatingMargin float64 `json:"operating_margin"`
	OrdinaryMargin  float64 `json:"ordinary_margin"`
	NetMargin       float64 `json:"net_margin"`
}

// Indicators computes per-month margins. Months without sales report zeros.
func Indicators(st pl.Statement) []Indicator {
	out := make([]Indicator, 0, len(st.Months))
	for i, m := range st.Months {
		sales := st.Value(catalog.Sales, i)
		out = append(out, Indicator{
			Month:           m,
			Sales:           sales,
			GrossMargin:     percent(st.Value(catalog.GrossProfit, i), sales),
			OperatingMargin: percent(st.Value(catalog.OperatingIncome, i), sales),
			OrdinaryMargin:  percent(st.Value(catalog.OrdinaryIncome, i), sales),
			NetMargin:       percent(st.Value(catalog.NetIncome, i), sales),
		})
	}
	return out
}

// Summary is the headline view of a statement.
type Summary struct {
	Sales           float64 `json:"sales"`
	GrossProfit     float64 `json:"gross_profit"`
	OperatingIncome float64 `json:"operating_income"`
	OrdinaryIncome  float64 `json:"ordinary_income"`
	NetIncome       float64 `json:"net_income"`
	GrossMargin     float64 `json:"gross_margin"`
	OperatingMargin float64 `json:"operating_margin"`
	NetMargin       float64 `json:"net_margin"`
	ActualMonths    int     `json:"actual_months"`
	ForecastMonths  int     `json:"forecast_months"`
	Progress        float64 `json:"progress"`
}

// Summarize reads the totals of the headline accounts.
func Summarize(st pl.Statement) Summary {
	sales := st.Row(catalog.Sales).Total
	s := Summary{
		Sales:           sales,
		GrossProfit:     st.Row(catalog.GrossProfit).Total,
		OperatingIncome: st.Row(catalog.OperatingIncome).Total,
		OrdinaryIncome:  st.Row(catalog.OrdinaryIncome).Total,
		NetIncome:       st.Row(catalog.NetIncome).Total,
		ActualMonths:    st.Cutover,
		ForecastMonths:  len(st.Months) - st.Cutover,
	}
	s.GrossMargin = percent(s.GrossProfit, sales)
	s.OperatingMargin = percent(s.OperatingIncome, sales)
	s.NetMargin = percent(s.NetIncome, sales)
	s.Progress = percent(float64(st.Cutover), float64(len(st.Months)))
	return s
}
