package scenario

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
)

func baseline(t *testing.T) *timeseries.Table {
	t.Helper()
	table, err := timeseries.Load([]timeseries.Fact{
		{Item: "Sales", Month: "2024-01", Amount: 1000},
		{Item: "Sales", Month: "2024-02", Amount: 1000},
		{Item: "Cost of Sales", Month: "2024-02", Amount: 500},
		{Item: "Advertising", Month: "2024-02", Amount: 200},
		{Item: "Non-operating Income", Month: "2024-02", Amount: 50},
		{Item: "Income Taxes", Month: "2024-02", Amount: 70},
	}, []string{"2024-01", "2024-02"})
	require.NoError(t, err)
	return table
}

func TestAdjustOptimistic(t *testing.T) {
	base := baseline(t)
	out := Adjust(base, 0.10, []string{"2024-02"})

	assert.InDelta(t, 1100, out.Get(catalog.Sales, "2024-02"), 1e-9)
	assert.InDelta(t, 475, out.Get(catalog.CostOfSales, "2024-02"), 1e-9)
	assert.InDelta(t, 194, out.Get(catalog.Advertising, "2024-02"), 1e-9)

	// actual-side month and non-operating accounts are untouched
	assert.Equal(t, 1000.0, out.Get(catalog.Sales, "2024-01"))
	assert.Equal(t, 50.0, out.Get(catalog.NonOperatingIncome, "2024-02"))
	assert.Equal(t, 70.0, out.Get(catalog.IncomeTaxes, "2024-02"))

	// input is not mutated
	assert.Equal(t, 1000.0, base.Get(catalog.Sales, "2024-02"))
}

func TestAdjustPessimistic(t *testing.T) {
	out := Adjust(baseline(t), -0.10, []string{"2024-02", "2024-02"})
	assert.InDelta(t, 900, out.Get(catalog.Sales, "2024-02"), 1e-9)
	assert.InDelta(t, 525, out.Get(catalog.CostOfSales, "2024-02"), 1e-9)
	assert.InDelta(t, 206, out.Get(catalog.Advertising, "2024-02"), 1e-9)
}

func TestAdjustZeroRateIsCopy(t *testing.T) {
	base := baseline(t)
	out := Adjust(base, 0, []string{"2024-01", "2024-02"})
	assert.Equal(t, base.Facts(), out.Facts())
}

func TestParseAndRates(t *testing.T) {
	s, err := Parse(" Optimistic ")
	require.NoError(t, err)
	assert.Equal(t, Optimistic, s)

	_, err = Parse("bullish")
	assert.True(t, errors.Is(err, ErrUnknownScenario))

	rates := DefaultRates()
	assert.Equal(t, 0.0, rates.For(Realistic))
	assert.Equal(t, 0.10, rates.For(Optimistic))
	assert.Equal(t, -0.10, rates.For(Pessimistic))
	assert.Len(t, All(), 3)
}
