package pl

import (
	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
)

// Compute derives every computed account of merged through the formula chain
// and adds the actual, forecast and total columns. merged is not modified.
func Compute(merged *timeseries.Table, cutover int) Statement {
	months := merged.Months()
	n := len(months)
	if cutover < 0 {
		cutover = 0
	}
	if cutover > n {
		cutover = n
	}

	// columns: months..., actual subtotal, forecast subtotal, total
	width := n + 3
	grid := make([][]float64, catalog.Count)
	for _, a := range catalog.All() {
		v := make([]float64, width)
		if !a.IsComputed() {
			for i := 0; i < n; i++ {
				v[i] = merged.At(a, i)
			}
			for i := 0; i < n; i++ {
				if i < cutover {
					v[n] += v[i]
				} else {
					v[n+1] += v[i]
				}
			}
			v[n+2] = v[n] + v[n+1]
		}
		grid[a] = v
	}

	derive(grid)

	rows := make([]Row, 0, catalog.Count)
	for _, a := range catalog.All() {
		v := grid[a]
		amounts := make(map[string]float64, n)
		for i, m := range months {
			amounts[m] = v[i]
		}
		rows = append(rows, Row{
			Account:          a,
			Item:             a.Name(),
			Type:             TypeOf(a),
			Values:           v[:n:n],
			Amounts:          amounts,
			ActualSubtotal:   v[n],
			ForecastSubtotal: v[n+1],
			Total:            v[n+2],
		})
	}
	return Statement{Months: months, Cutover: cutover, Rows: rows}
}

// derive runs the chain column by column; each step only reads rows that are
// already final.
func derive(g [][]float64) {
	components := catalog.SGAComponents()
	for i := range g[catalog.Sales] {
		g[catalog.GrossProfit][i] = g[catalog.Sales][i] - g[catalog.CostOfSales][i]

		var sga float64
		for _, a := range components {
			sga += g[a][i]
		}
		g[catalog.TotalSGA][i] = sga

		g[catalog.OperatingIncome][i] = g[catalog.GrossProfit][i] - g[catalog.TotalSGA][i]
		g[catalog.OrdinaryIncome][i] = g[catalog.OperatingIncome][i] + g[catalog.NonOperatingIncome][i] - g[catalog.NonOperatingExpenses][i]
		g[catalog.PretaxIncome][i] = g[catalog.OrdinaryIncome][i] + g[catalog.ExtraordinaryGains][i] - g[catalog.ExtraordinaryLosses][i]
		g[catalog.NetIncome][i] = g[catalog.PretaxIncome][i] - g[catalog.IncomeTaxes][i]
	}
}
