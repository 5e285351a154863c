package forecast

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/fiscal"
	"github.com/odyssey-erp/plforecast/internal/scenario"
	"github.com/odyssey-erp/plforecast/internal/subaccount"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
	_ "github.com/odyssey-erp/plforecast/testing"
)

type countingStore struct {
	*MemoryStore
	actualCalls atomic.Int32
}

func (c *countingStore) ActualFacts(ctx context.Context, periodID int64) ([]timeseries.Fact, error) {
	c.actualCalls.Add(1)
	return c.MemoryStore.ActualFacts(ctx, periodID)
}

func newTestService(t *testing.T, store Store, cfg Config) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(store, NewCache(client, time.Minute), cfg, nil)
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := fiscal.ParseDate(value)
	require.NoError(t, err)
	return d
}

// seedQuarter registers a three month period with April actuals and a
// realistic forecast for May and June.
func seedQuarter(t *testing.T, svc *Service) PeriodView {
	t.Helper()
	ctx := context.Background()
	company, err := svc.CreateCompany(ctx, "Acme")
	require.NoError(t, err)
	period, err := svc.CreatePeriod(ctx, CreatePeriodInput{
		CompanyID: company.ID,
		Number:    1,
		StartDate: mustDate(t, "2024-04-01"),
		EndDate:   mustDate(t, "2024-06-30"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"2024-04", "2024-05", "2024-06"}, period.Months)

	require.NoError(t, svc.PutActuals(ctx, ValuesInput{PeriodID: period.ID, Item: "Sales", Values: map[string]float64{"2024-04": 1000}}))
	require.NoError(t, svc.PutActuals(ctx, ValuesInput{PeriodID: period.ID, Item: "Cost of Sales", Values: map[string]float64{"2024-04": 400}}))
	for item, v := range map[string]float64{"Sales": 2000, "Cost of Sales": 1000, "Rent": 100} {
		require.NoError(t, svc.PutForecasts(ctx, ValuesInput{
			PeriodID: period.ID,
			Scenario: scenario.Realistic,
			Item:     item,
			Values:   map[string]float64{"2024-05": v, "2024-06": v},
		}))
	}
	return period
}

func TestStatementRealistic(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	period := seedQuarter(t, svc)

	st, err := svc.Statement(context.Background(), Request{PeriodID: period.ID, Scenario: scenario.Realistic})
	require.NoError(t, err)
	require.Equal(t, 1, st.Cutover)

	sales := st.Row(catalog.Sales)
	assert.Equal(t, []float64{1000, 2000, 2000}, sales.Values)
	assert.Equal(t, 1000.0, sales.ActualSubtotal)
	assert.Equal(t, 4000.0, sales.ForecastSubtotal)
	assert.Equal(t, 5000.0, sales.Total)

	assert.Equal(t, []float64{600, 900, 900}, st.Row(catalog.OperatingIncome).Values)
	assert.Equal(t, 2400.0, st.Row(catalog.NetIncome).Total)
}

func TestStatementOptimisticAdjustsForecastOnly(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	period := seedQuarter(t, svc)

	st, err := svc.Statement(context.Background(), Request{PeriodID: period.ID, Scenario: scenario.Optimistic})
	require.NoError(t, err)

	assert.InDelta(t, 1000, st.Value(catalog.Sales, 0), 1e-9)
	assert.InDelta(t, 2200, st.Value(catalog.Sales, 1), 1e-9)
	assert.InDelta(t, 950, st.Value(catalog.CostOfSales, 1), 1e-9)
	assert.InDelta(t, 97, st.Value(catalog.Rent, 2), 1e-9)

	rate := -0.2
	st, err = svc.Statement(context.Background(), Request{PeriodID: period.ID, Scenario: scenario.Pessimistic, Rate: &rate})
	require.NoError(t, err)
	assert.InDelta(t, 1600, st.Value(catalog.Sales, 1), 1e-9)
	assert.InDelta(t, 1100, st.Value(catalog.CostOfSales, 1), 1e-9)
}

func TestStatementSubAccountsOverrideAdjustedParent(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	period := seedQuarter(t, svc)
	ctx := context.Background()

	for name, v := range map[string]float64{"Head office": 300, "Warehouse": 200} {
		require.NoError(t, svc.PutSubAccount(ctx, SubAccountInput{
			SubAccountKey: SubAccountKey{PeriodID: period.ID, Scenario: scenario.Optimistic, Parent: "Rent", Name: name},
			Values:        map[string]float64{"2024-05": v},
		}))
	}

	st, err := svc.Statement(ctx, Request{PeriodID: period.ID, Scenario: scenario.Optimistic})
	require.NoError(t, err)
	assert.InDelta(t, 500, st.Value(catalog.Rent, 1), 1e-9)
	assert.InDelta(t, 97, st.Value(catalog.Rent, 2), 1e-9)

	st, err = svc.Statement(ctx, Request{PeriodID: period.ID, Scenario: scenario.Realistic})
	require.NoError(t, err)
	assert.InDelta(t, 100, st.Value(catalog.Rent, 1), 1e-9)

	entries, err := svc.SubAccounts(ctx, period.ID, scenario.Optimistic, "Rent")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Head office", entries[0].Name)
	assert.Equal(t, 300.0, entries[0].Total)
}

func TestStatementMissingPeriodIsEmpty(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())

	st, err := svc.Statement(context.Background(), Request{PeriodID: 99, Scenario: scenario.Realistic})
	require.NoError(t, err)
	assert.Empty(t, st.Months)
	require.Len(t, st.Rows, catalog.Count)
	assert.Zero(t, st.Row(catalog.NetIncome).Total)
}

func TestStatementExplicitCutover(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy = fiscal.PolicyExplicit
	svc := newTestService(t, NewMemoryStore(), cfg)
	period := seedQuarter(t, svc)
	ctx := context.Background()

	st, err := svc.Statement(ctx, Request{PeriodID: period.ID, Scenario: scenario.Realistic, CutoverMonth: "2024-05"})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Cutover)
	// May is sourced from actuals, which hold nothing for that month.
	assert.Equal(t, []float64{1000, 0, 2000}, st.Row(catalog.Sales).Values)

	st, err = svc.Statement(ctx, Request{PeriodID: period.ID, Scenario: scenario.Realistic})
	require.NoError(t, err)
	assert.Equal(t, 0, st.Cutover)
}

func TestStatementRejectsUnknownScenario(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	_, err := svc.Statement(context.Background(), Request{PeriodID: 1, Scenario: "bullish"})
	require.ErrorIs(t, err, scenario.ErrUnknownScenario)
}

func TestInputsAreCachedUntilWrite(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	svc := newTestService(t, store, DefaultConfig())
	period := seedQuarter(t, svc)
	ctx := context.Background()
	req := Request{PeriodID: period.ID, Scenario: scenario.Realistic}

	_, err := svc.Statement(ctx, req)
	require.NoError(t, err)
	_, err = svc.Statement(ctx, req)
	require.NoError(t, err)
	require.EqualValues(t, 1, store.actualCalls.Load())

	require.NoError(t, svc.PutActuals(ctx, ValuesInput{PeriodID: period.ID, Item: "Sales", Values: map[string]float64{"2024-04": 1500}}))
	st, err := svc.Statement(ctx, req)
	require.NoError(t, err)
	require.EqualValues(t, 2, store.actualCalls.Load())
	assert.Equal(t, 1500.0, st.Value(catalog.Sales, 0))
}

func TestServiceWithoutCache(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, DefaultConfig(), nil)
	period := seedQuarter(t, svc)

	summary, err := svc.Summary(context.Background(), Request{PeriodID: period.ID, Scenario: scenario.Realistic})
	require.NoError(t, err)
	assert.Equal(t, 5000.0, summary.Sales)
	assert.Equal(t, 1, summary.ActualMonths)
	assert.Equal(t, 2, summary.ForecastMonths)
}

func TestPutValidation(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	period := seedQuarter(t, svc)
	ctx := context.Background()

	err := svc.PutActuals(ctx, ValuesInput{PeriodID: period.ID, Item: "Gross Profit", Values: map[string]float64{"2024-04": 1}})
	require.ErrorIs(t, err, ErrComputedAccount)

	err = svc.PutActuals(ctx, ValuesInput{PeriodID: period.ID, Item: "Snacks", Values: map[string]float64{"2024-04": 1}})
	require.ErrorIs(t, err, catalog.ErrUnknownAccount)

	err = svc.PutForecasts(ctx, ValuesInput{PeriodID: period.ID, Scenario: scenario.Realistic, Item: "Sales", Values: map[string]float64{"2025-01": 1}})
	require.ErrorIs(t, err, ErrValidation)

	err = svc.PutActuals(ctx, ValuesInput{PeriodID: 42, Item: "Sales", Values: map[string]float64{"2024-04": 1}})
	require.ErrorIs(t, err, ErrPeriodNotFound)

	err = svc.PutSubAccount(ctx, SubAccountInput{
		SubAccountKey: SubAccountKey{PeriodID: period.ID, Scenario: scenario.Realistic, Parent: "Utilities", Name: "Power"},
		Values:        map[string]float64{"2024-05": 10},
	})
	require.ErrorIs(t, err, subaccount.ErrNotAllowed)
}

func TestRegistryConflicts(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	ctx := context.Background()

	company, err := svc.CreateCompany(ctx, "Acme")
	require.NoError(t, err)
	_, err = svc.CreateCompany(ctx, "acme")
	require.ErrorIs(t, err, ErrDuplicate)
	_, err = svc.CreateCompany(ctx, "  ")
	require.ErrorIs(t, err, ErrValidation)

	in := CreatePeriodInput{CompanyID: company.ID, Number: 1, StartDate: mustDate(t, "2024-04-01"), EndDate: mustDate(t, "2025-03-31")}
	_, err = svc.CreatePeriod(ctx, in)
	require.NoError(t, err)
	_, err = svc.CreatePeriod(ctx, in)
	require.ErrorIs(t, err, ErrDuplicate)

	in.Number = 2
	in.EndDate = in.StartDate
	_, err = svc.CreatePeriod(ctx, in)
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, fiscal.ErrInvalidRange)

	_, err = svc.ListPeriods(ctx, 77)
	require.ErrorIs(t, err, ErrCompanyNotFound)
}

func twoYears(t *testing.T, svc *Service) (int64, PeriodView, PeriodView) {
	t.Helper()
	ctx := context.Background()
	company, err := svc.CreateCompany(ctx, "Acme")
	require.NoError(t, err)
	first, err := svc.CreatePeriod(ctx, CreatePeriodInput{CompanyID: company.ID, Number: 1, StartDate: mustDate(t, "2024-04-01"), EndDate: mustDate(t, "2025-03-31")})
	require.NoError(t, err)
	second, err := svc.CreatePeriod(ctx, CreatePeriodInput{CompanyID: company.ID, Number: 2, StartDate: mustDate(t, "2025-04-01"), EndDate: mustDate(t, "2026-03-31")})
	require.NoError(t, err)
	return company.ID, first, second
}

func TestCopySubAccountRemapsMonthsByPosition(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	_, first, second := twoYears(t, svc)
	ctx := context.Background()
	key := SubAccountKey{PeriodID: first.ID, Scenario: scenario.Realistic, Parent: "Advertising", Name: "Web"}

	require.NoError(t, svc.PutSubAccount(ctx, SubAccountInput{SubAccountKey: key, Values: map[string]float64{"2024-04": 10, "2024-05": 20}}))

	copied, err := svc.CopySubAccountToAllPeriods(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 1, copied)

	entries, err := svc.SubAccounts(ctx, second.ID, scenario.Realistic, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]float64{"2025-04": 10, "2025-05": 20}, entries[0].Amounts)

	missing := key
	missing.Name = "Print"
	_, err = svc.CopySubAccountToAllPeriods(ctx, missing)
	require.ErrorIs(t, err, ErrSubAccountNotFound)
}

func TestDeleteSubAccountFromAllPeriods(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	companyID, first, second := twoYears(t, svc)
	ctx := context.Background()

	for _, p := range []PeriodView{first, second} {
		require.NoError(t, svc.PutSubAccount(ctx, SubAccountInput{
			SubAccountKey: SubAccountKey{PeriodID: p.ID, Scenario: scenario.Realistic, Parent: "Travel", Name: "Flights"},
			Values:        map[string]float64{p.Months[0]: 50},
		}))
	}

	touched, err := svc.DeleteSubAccountFromAllPeriods(ctx, companyID, scenario.Realistic, "Travel", "Flights")
	require.NoError(t, err)
	assert.Equal(t, 2, touched)

	err = svc.DeleteSubAccount(ctx, SubAccountKey{PeriodID: first.ID, Scenario: scenario.Realistic, Parent: "Travel", Name: "Flights"})
	require.ErrorIs(t, err, ErrSubAccountNotFound)
}

func TestMaterializeScenario(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	period := seedQuarter(t, svc)
	ctx := context.Background()

	n, err := svc.MaterializeScenario(ctx, period.ID, scenario.Optimistic, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	table, err := svc.ForecastTable(ctx, period.ID, scenario.Optimistic)
	require.NoError(t, err)
	assert.InDelta(t, 2200, table.Get(catalog.Sales, "2024-05"), 1e-9)
	assert.InDelta(t, 97, table.Get(catalog.Rent, "2024-06"), 1e-9)

	_, err = svc.MaterializeScenario(ctx, period.ID, scenario.Realistic, nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestImportActualsReplacesSet(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	period := seedQuarter(t, svc)
	ctx := context.Background()

	n, err := svc.ImportActuals(ctx, period.ID, []timeseries.Fact{
		{Item: "Sales", Month: "2024-04", Amount: 900},
		{Item: "Sales", Month: "2024-05", Amount: 1800},
		{Item: "Rent", Month: "2024-04", Amount: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, err := svc.Statement(ctx, Request{PeriodID: period.ID, Scenario: scenario.Realistic})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Cutover)
	assert.Equal(t, []float64{900, 1800, 2000}, st.Row(catalog.Sales).Values)
	assert.Equal(t, []float64{0, 0, 1000}, st.Row(catalog.CostOfSales).Values)
}

func TestImportLaterFactWins(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	period := seedQuarter(t, svc)
	ctx := context.Background()

	n, err := svc.ImportActuals(ctx, period.ID, []timeseries.Fact{
		{Item: "Sales", Month: "2024-04", Amount: 1000},
		{Item: "Sales", Month: "2024-04", Amount: 0},
		{Item: "Sales", Month: "2024-05", Amount: 7},
		{Item: "Sales", Month: "2024-05", Amount: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	actuals, err := svc.store.ActualFacts(ctx, period.ID)
	require.NoError(t, err)
	assert.Equal(t, []timeseries.Fact{{Item: "Sales", Month: "2024-05", Amount: 8}}, actuals)

	n, err = svc.ImportForecasts(ctx, period.ID, scenario.Realistic, []timeseries.Fact{
		{Item: "Rent", Month: "2024-06", Amount: 100},
		{Item: "Rent", Month: "2024-06", Amount: 0},
		{Item: "Sales", Month: "2024-06", Amount: 3000},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err := svc.Statement(ctx, Request{PeriodID: period.ID, Scenario: scenario.Realistic})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Cutover)
	assert.Equal(t, []float64{0, 8, 3000}, st.Row(catalog.Sales).Values)
	assert.Equal(t, []float64{0, 0, 0}, st.Row(catalog.Rent).Values)
}

func TestForecastVsActualFlagsThreshold(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	period := seedQuarter(t, svc)
	threshold := 50.0

	rows, err := svc.ForecastVsActual(context.Background(), Request{PeriodID: period.ID, Scenario: scenario.Realistic}, &threshold)
	require.NoError(t, err)
	require.Len(t, rows, catalog.Count)

	sales := rows[catalog.Sales]
	assert.Equal(t, 1000.0, sales.Actual)
	assert.Equal(t, 4000.0, sales.Forecast)
	assert.Equal(t, 25.0, sales.AchievementRate)
	assert.True(t, sales.Flagged)
}

func TestWarmComputesEveryScenario(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), DefaultConfig())
	_, _, _ = twoYears(t, svc)

	n, err := svc.Warm(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}
