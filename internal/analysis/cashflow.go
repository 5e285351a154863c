package analysis

import (
	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/pl"
)

// CashflowOptions parameterises the simplified cash-flow projection.
type CashflowOptions struct {
	CollectionRatio  float64 `json:"collection_ratio"`
	InvestingMonthly float64 `json:"investing_monthly"`
	FinancingMonthly float64 `json:"financing_monthly"`
}

// DefaultCashflowOptions collects 90% of sales with fixed monthly outflows.
func DefaultCashflowOptions() CashflowOptions {
	return CashflowOptions{CollectionRatio: 0.9, InvestingMonthly: -5000000, FinancingMonthly: -2000000}
}

// CashflowPoint is one month of the projection.
type CashflowPoint struct {
	Month     string  `json:"month"`
	Operating float64 `json:"operating"`
	Investing float64 `json:"investing"`
	Financing float64 `json:"financing"`
	Net       float64 `json:"net"`
	Balance   float64 `json:"balance"`
}

// Cashflow projects monthly cash movement from sales. It is a pass-through
// estimate, not a derived cash-flow statement.
func Cashflow(st pl.Statement, opts CashflowOptions) []CashflowPoint {
	out := make([]CashflowPoint, 0, len(st.Months))
	var balance float64
	for i, m := range st.Months {
		p := CashflowPoint{
			Month:     m,
			Operating: st.Value(catalog.Sales, i) * opts.CollectionRatio,
			Investing: opts.InvestingMonthly,
			Financing: opts.FinancingMonthly,
		}
		p.Net = p.Operating + p.Investing + p.Financing
		balance += p.Net
		p.Balance = balance
		out = append(out, p)
	}
	return out
}
