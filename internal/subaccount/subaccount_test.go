package subaccount

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/scenario"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
)

var months = []string{"2024-04", "2024-05"}

func TestApplyOverridesParent(t *testing.T) {
	forecast, err := timeseries.Load([]timeseries.Fact{
		{Item: "Advertising", Month: "2024-04", Amount: 50000},
		{Item: "Advertising", Month: "2024-05", Amount: 50000},
		{Item: "Rent", Month: "2024-04", Amount: 80000},
	}, months)
	require.NoError(t, err)

	out, err := Apply(forecast, []Row{
		{Parent: "Advertising", Name: "Web", Month: "2024-04", Amount: 30000},
		{Parent: "Advertising", Name: "Print", Month: "2024-04", Amount: 40000},
	})
	require.NoError(t, err)

	assert.Equal(t, 70000.0, out.Get(catalog.Advertising, "2024-04"))
	assert.Equal(t, 50000.0, out.Get(catalog.Advertising, "2024-05"))
	assert.Equal(t, 80000.0, out.Get(catalog.Rent, "2024-04"))
	assert.Equal(t, 50000.0, forecast.Get(catalog.Advertising, "2024-04"))
}

func TestApplyWinsOverScenarioAdjustment(t *testing.T) {
	forecast, err := timeseries.Load([]timeseries.Fact{{Item: "Sales", Month: "2024-05", Amount: 1000}}, months)
	require.NoError(t, err)
	adjusted := scenario.Adjust(forecast, 0.10, months)

	out, err := Apply(adjusted, []Row{{Parent: "Sales", Name: "Online", Month: "2024-05", Amount: 600}})
	require.NoError(t, err)
	assert.Equal(t, 600.0, out.Get(catalog.Sales, "2024-05"))
}

func TestApplyRejectsInvalidParent(t *testing.T) {
	forecast := timeseries.NewTable(months)

	_, err := Apply(forecast, []Row{{Parent: "Bonuses", Name: "Summer", Month: "2024-04", Amount: 1}})
	assert.True(t, errors.Is(err, ErrNotAllowed))

	_, err = Apply(forecast, []Row{{Parent: "Goodwill", Name: "x", Month: "2024-04", Amount: 1}})
	assert.True(t, errors.Is(err, catalog.ErrUnknownAccount))
}

func TestApplyIgnoresMonthsOffAxis(t *testing.T) {
	out, err := Apply(timeseries.NewTable(months), []Row{{Parent: "Travel", Name: "Trains", Month: "2023-01", Amount: 10}})
	require.NoError(t, err)
	assert.Empty(t, out.Facts())
}

func TestGroup(t *testing.T) {
	entries := Group([]Row{
		{Parent: "Rent", Name: "Office", Month: "2024-04", Amount: 100},
		{Parent: "Sales", Name: "Wholesale", Month: "2024-05", Amount: 20},
		{Parent: "Sales", Name: "Online", Month: "2024-04", Amount: 5},
		{Parent: "Sales", Name: "Online", Month: "2024-05", Amount: 7},
	})
	require.Len(t, entries, 3)
	assert.Equal(t, "Online", entries[0].Name)
	assert.Equal(t, 12.0, entries[0].Total)
	assert.Equal(t, "Wholesale", entries[1].Name)
	assert.Equal(t, "Rent", entries[2].Parent)

	assert.Equal(t, []Row{
		{Parent: "Sales", Name: "Online", Month: "2024-04", Amount: 5},
		{Parent: "Sales", Name: "Online", Month: "2024-05", Amount: 7},
	}, entries[0].Rows())
}
