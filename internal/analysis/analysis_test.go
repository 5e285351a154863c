package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/pl"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
)

func statement(t *testing.T, cutover int, facts ...timeseries.Fact) pl.Statement {
	t.Helper()
	table, err := timeseries.Load(facts, []string{"2024-04", "2024-05"})
	require.NoError(t, err)
	return pl.Compute(table, cutover)
}

func TestComputeBreakeven(t *testing.T) {
	b := ComputeBreakeven(1000, 400, 300)
	assert.Equal(t, 600.0, b.ContributionMargin)
	assert.InDelta(t, 0.6, b.ContributionMarginRatio, 1e-12)
	assert.InDelta(t, 500, b.BreakevenSales, 1e-9)
	assert.InDelta(t, 50, b.SafetyMarginRatio, 1e-9)
	assert.InDelta(t, 50, b.BreakevenRatio, 1e-9)
}

func TestComputeBreakevenGuards(t *testing.T) {
	negative := ComputeBreakeven(1000, 1200, 300)
	assert.Equal(t, 0.0, negative.BreakevenSales)

	empty := ComputeBreakeven(0, 0, 300)
	assert.Equal(t, 0.0, empty.ContributionMarginRatio)
	assert.Equal(t, 0.0, empty.BreakevenSales)
	assert.Equal(t, 0.0, empty.SafetyMarginRatio)

	loss := ComputeBreakeven(-100, 0, 50)
	assert.Equal(t, -100.0, loss.ContributionMargin)
	assert.Equal(t, 0.0, loss.ContributionMarginRatio)
	assert.Equal(t, 0.0, loss.BreakevenSales)
	assert.Equal(t, 0.0, loss.SafetyMarginRatio)
	assert.Equal(t, 0.0, loss.BreakevenRatio)
}

func TestBreakevenOfStatement(t *testing.T) {
	st := statement(t, 0,
		timeseries.Fact{Item: "Sales", Month: "2024-04", Amount: 600},
		timeseries.Fact{Item: "Sales", Month: "2024-05", Amount: 400},
		timeseries.Fact{Item: "Cost of Sales", Month: "2024-04", Amount: 400},
		timeseries.Fact{Item: "Rent", Month: "2024-05", Amount: 300},
	)
	b := BreakevenOf(st)
	assert.Equal(t, 1000.0, b.Sales)
	assert.Equal(t, 300.0, b.FixedCost)
	assert.InDelta(t, 500, b.BreakevenSales, 1e-9)
}

func TestIndicatorsZeroSales(t *testing.T) {
	st := statement(t, 0,
		timeseries.Fact{Item: "Sales", Month: "2024-04", Amount: 1000},
		timeseries.Fact{Item: "Cost of Sales", Month: "2024-04", Amount: 250},
		timeseries.Fact{Item: "Cost of Sales", Month: "2024-05", Amount: 100},
	)
	ind := Indicators(st)
	require.Len(t, ind, 2)
	assert.InDelta(t, 75, ind[0].GrossMargin, 1e-9)
	assert.InDelta(t, 75, ind[0].NetMargin, 1e-9)
	assert.Equal(t, Indicator{Month: "2024-05"}, ind[1])
}

func TestSummarize(t *testing.T) {
	st := statement(t, 1,
		timeseries.Fact{Item: "Sales", Month: "2024-04", Amount: 500},
		timeseries.Fact{Item: "Sales", Month: "2024-05", Amount: 500},
		timeseries.Fact{Item: "Income Taxes", Month: "2024-05", Amount: 100},
	)
	s := Summarize(st)
	assert.Equal(t, 1000.0, s.Sales)
	assert.Equal(t, 900.0, s.NetIncome)
	assert.InDelta(t, 90, s.NetMargin, 1e-9)
	assert.Equal(t, 1, s.ActualMonths)
	assert.Equal(t, 1, s.ForecastMonths)
	assert.InDelta(t, 50, s.Progress, 1e-9)

	assert.Equal(t, 0.0, Summarize(pl.Statement{}).Progress)
}

func TestCompare(t *testing.T) {
	actual := statement(t, 2, timeseries.Fact{Item: "Sales", Month: "2024-04", Amount: 800})
	forecast := statement(t, 0,
		timeseries.Fact{Item: "Sales", Month: "2024-04", Amount: 1000},
		timeseries.Fact{Item: "Rent", Month: "2024-04", Amount: 50},
	)
	threshold := 10.0
	rows := Compare(actual, forecast, &threshold)
	require.Len(t, rows, catalog.Count)

	sales := rows[catalog.Sales]
	assert.Equal(t, -200.0, sales.Diff)
	assert.InDelta(t, 80, sales.AchievementRate, 1e-9)
	assert.True(t, sales.Flagged)

	rent := rows[catalog.Rent]
	assert.Equal(t, 0.0, rent.AchievementRate)

	travel := rows[catalog.Travel]
	assert.Equal(t, 0.0, travel.AchievementRate)
	assert.False(t, travel.Flagged)

	unflagged := Compare(actual, forecast, nil)
	assert.False(t, unflagged[catalog.Sales].Flagged)
}

func TestCashflow(t *testing.T) {
	st := statement(t, 0,
		timeseries.Fact{Item: "Sales", Month: "2024-04", Amount: 10000000},
	)
	points := Cashflow(st, DefaultCashflowOptions())
	require.Len(t, points, 2)
	assert.InDelta(t, 9000000, points[0].Operating, 1e-6)
	assert.InDelta(t, 2000000, points[0].Net, 1e-6)
	assert.InDelta(t, -7000000, points[1].Net, 1e-6)
	assert.InDelta(t, -5000000, points[1].Balance, 1e-6)
}
