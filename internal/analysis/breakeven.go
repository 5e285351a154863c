// Package analysis derives ratios and secondary views from a computed statement.
package analysis

import (
	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/pl"
)

// Breakeven captures the contribution margin analysis of a period.
type Breakeven struct {
	Sales                   float64 `json:"sales"`
	VariableCost            float64 `json:"variable_cost"`
	FixedCost               float64 `json:"fixed_cost"`
	ContributionMargin      float64 `json:"contribution_margin"`
	ContributionMarginRatio float64 `json:"contribution_margin_ratio"`
	BreakevenSales          float64 `json:"breakeven_sales"`
	SafetyMarginRatio       float64 `json:"safety_margin_ratio"`
	BreakevenRatio          float64 `json:"breakeven_ratio"`
}

// ComputeBreakeven treats cost of sales as variable and SG&A as fixed. A
// non-positive contribution margin ratio yields a zero breakeven point, and
// non-positive sales leave every ratio at zero.
func ComputeBreakeven(sales, variableCost, fixedCost float64) Breakeven {
	out := Breakeven{Sales: sales, VariableCost: variableCost, FixedCost: fixedCost}
	out.ContributionMargin = sales - variableCost
	if sales <= 0 {
		return out
	}
	out.ContributionMarginRatio = out.ContributionMargin / sales
	if out.ContributionMarginRatio > 0 {
		out.BreakevenSales = fixedCost / out.ContributionMarginRatio
	}
	out.SafetyMarginRatio = percent(sales-out.BreakevenSales, sales)
	out.BreakevenRatio = percent(out.BreakevenSales, sales)
	return out
}

// BreakevenOf runs the analysis over the statement totals.
func BreakevenOf(st pl.Statement) Breakeven {
	return ComputeBreakeven(
		st.Row(catalog.Sales).Total,
		st.Row(catalog.CostOfSales).Total,
		st.Row(catalog.TotalSGA).Total,
	)
}

// percent returns num/den as a percentage, 0 when den is 0.
func percent(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den * 100
}
