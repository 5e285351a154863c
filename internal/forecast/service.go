package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/plforecast/internal/analysis"
	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/fiscal"
	"github.com/odyssey-erp/plforecast/internal/pl"
	"github.com/odyssey-erp/plforecast/internal/scenario"
	"github.com/odyssey-erp/plforecast/internal/subaccount"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
)

const warmupConcurrency = 4

// Config tunes projection behaviour per deployment.
type Config struct {
	Rates    scenario.Rates
	Policy   fiscal.CutoverPolicy
	Cashflow analysis.CashflowOptions
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		Rates:    scenario.DefaultRates(),
		Policy:   fiscal.PolicyLastActual,
		Cashflow: analysis.DefaultCashflowOptions(),
	}
}

// Service coordinates the store, the cache layer and the projection pipeline.
type Service struct {
	store  Store
	cache  *Cache
	cfg    Config
	logger *slog.Logger
}

// NewService wires a Store with an optional Cache helper.
func NewService(store Store, cache *Cache, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Policy == "" {
		cfg.Policy = fiscal.PolicyLastActual
	}
	return &Service{store: store, cache: cache, cfg: cfg, logger: logger.With("component", "forecast")}
}

// CreateCompany registers a company.
func (s *Service) CreateCompany(ctx context.Context, name string) (Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Company{}, fmt.Errorf("%w: company name required", ErrValidation)
	}
	return s.store.CreateCompany(ctx, name)
}

// ListCompanies returns every company.
func (s *Service) ListCompanies(ctx context.Context) ([]Company, error) {
	return s.store.ListCompanies(ctx)
}

// CreatePeriod registers a fiscal period for a company.
func (s *Service) CreatePeriod(ctx context.Context, in CreatePeriodInput) (PeriodView, error) {
	if err := in.Validate(); err != nil {
		return PeriodView{}, err
	}
	p, err := s.store.CreatePeriod(ctx, in)
	if err != nil {
		return PeriodView{}, err
	}
	return viewOf(p), nil
}

// ListPeriods returns the periods of a company, newest first.
func (s *Service) ListPeriods(ctx context.Context, companyID int64) ([]PeriodView, error) {
	if _, err := s.store.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	periods, err := s.store.ListPeriods(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make([]PeriodView, 0, len(periods))
	for _, p := range periods {
		out = append(out, viewOf(p))
	}
	return out, nil
}

// Period returns one period with its month axis.
func (s *Service) Period(ctx context.Context, periodID int64) (PeriodView, error) {
	p, err := s.period(ctx, periodID)
	if err != nil {
		return PeriodView{}, err
	}
	return viewOf(p), nil
}

// Statement computes the P&L of a period for the requested scenario. A
// missing period yields an empty statement.
func (s *Service) Statement(ctx context.Context, req Request) (pl.Statement, error) {
	in, err := s.prepare(ctx, req)
	if err != nil {
		return pl.Statement{}, err
	}
	merged := timeseries.Merge(in.actuals, in.forecast, in.cutover, in.months)
	return pl.Compute(merged, in.cutover), nil
}

// Summary returns the headline KPIs of a statement.
func (s *Service) Summary(ctx context.Context, req Request) (analysis.Summary, error) {
	st, err := s.Statement(ctx, req)
	if err != nil {
		return analysis.Summary{}, err
	}
	return analysis.Summarize(st), nil
}

// Indicators returns monthly margins.
func (s *Service) Indicators(ctx context.Context, req Request) ([]analysis.Indicator, error) {
	st, err := s.Statement(ctx, req)
	if err != nil {
		return nil, err
	}
	return analysis.Indicators(st), nil
}

// Breakeven runs the breakeven analysis on statement totals.
func (s *Service) Breakeven(ctx context.Context, req Request) (analysis.Breakeven, error) {
	st, err := s.Statement(ctx, req)
	if err != nil {
		return analysis.Breakeven{}, err
	}
	return analysis.BreakevenOf(st), nil
}

// Cashflow projects the simplified monthly cash flow.
func (s *Service) Cashflow(ctx context.Context, req Request) ([]analysis.CashflowPoint, error) {
	st, err := s.Statement(ctx, req)
	if err != nil {
		return nil, err
	}
	return analysis.Cashflow(st, s.cfg.Cashflow), nil
}

// ForecastVsActual compares the stored actuals of every month with the
// scenario forecast of every month.
func (s *Service) ForecastVsActual(ctx context.Context, req Request, threshold *float64) ([]analysis.ComparisonRow, error) {
	in, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	actual := pl.Compute(in.actuals, len(in.months))
	forecast := pl.Compute(in.forecast, 0)
	return analysis.Compare(actual, forecast, threshold), nil
}

// PeriodVsPeriod compares the statement of req against the same scenario of
// another period.
func (s *Service) PeriodVsPeriod(ctx context.Context, req Request, otherPeriodID int64, threshold *float64) ([]analysis.ComparisonRow, error) {
	current, err := s.Statement(ctx, req)
	if err != nil {
		return nil, err
	}
	other := req
	other.PeriodID = otherPeriodID
	previous, err := s.Statement(ctx, other)
	if err != nil {
		return nil, err
	}
	return analysis.Compare(current, previous, threshold), nil
}

// PutActuals stores one item's actual months.
func (s *Service) PutActuals(ctx context.Context, in ValuesInput) error {
	months, err := s.months(ctx, in.PeriodID)
	if err != nil {
		return err
	}
	if err := in.Validate(months); err != nil {
		return err
	}
	if err := s.store.PutActuals(ctx, in.PeriodID, in.Facts()); err != nil {
		return fmt.Errorf("forecast: put actuals: %w", err)
	}
	s.bump(ctx)
	return nil
}

// ImportActuals replaces the whole actual set of a period.
func (s *Service) ImportActuals(ctx context.Context, periodID int64, facts []timeseries.Fact) (int, error) {
	months, err := s.months(ctx, periodID)
	if err != nil {
		return 0, err
	}
	if err := validateFacts(facts, months); err != nil {
		return 0, err
	}
	facts, err = collapseFacts(facts, months)
	if err != nil {
		return 0, err
	}
	if err := s.store.ReplaceActuals(ctx, periodID, facts); err != nil {
		return 0, fmt.Errorf("forecast: replace actuals: %w", err)
	}
	s.bump(ctx)
	return len(facts), nil
}

// ImportForecasts replaces the stored forecast of a scenario, typically from
// an uploaded template.
func (s *Service) ImportForecasts(ctx context.Context, periodID int64, sc scenario.Scenario, facts []timeseries.Fact) (int, error) {
	if !sc.Valid() {
		return 0, fmt.Errorf("%w: %q", scenario.ErrUnknownScenario, sc)
	}
	months, err := s.months(ctx, periodID)
	if err != nil {
		return 0, err
	}
	if err := validateFacts(facts, months); err != nil {
		return 0, err
	}
	facts, err = collapseFacts(facts, months)
	if err != nil {
		return 0, err
	}
	if err := s.store.ReplaceForecasts(ctx, periodID, sc, facts); err != nil {
		return 0, fmt.Errorf("forecast: replace forecasts: %w", err)
	}
	s.bump(ctx)
	return len(facts), nil
}

// PutForecasts stores one item's forecast months for a scenario.
func (s *Service) PutForecasts(ctx context.Context, in ValuesInput) error {
	if !in.Scenario.Valid() {
		return fmt.Errorf("%w: %q", scenario.ErrUnknownScenario, in.Scenario)
	}
	months, err := s.months(ctx, in.PeriodID)
	if err != nil {
		return err
	}
	if err := in.Validate(months); err != nil {
		return err
	}
	if err := s.store.PutForecasts(ctx, in.PeriodID, in.Scenario, in.Facts()); err != nil {
		return fmt.Errorf("forecast: put forecasts: %w", err)
	}
	s.bump(ctx)
	return nil
}

// ForecastTable returns the stored forecast of a scenario over the period's
// axis. It doubles as the entry template: unset cells are zero.
func (s *Service) ForecastTable(ctx context.Context, periodID int64, sc scenario.Scenario) (*timeseries.Table, error) {
	if !sc.Valid() {
		return nil, fmt.Errorf("%w: %q", scenario.ErrUnknownScenario, sc)
	}
	months, err := s.months(ctx, periodID)
	if err != nil {
		return nil, err
	}
	facts, err := s.forecastFacts(ctx, periodID, sc)
	if err != nil {
		return nil, err
	}
	return timeseries.Load(facts, months)
}

// SubAccounts lists the sub-accounts of a period and scenario, optionally
// narrowed to one parent.
func (s *Service) SubAccounts(ctx context.Context, periodID int64, sc scenario.Scenario, parent string) ([]subaccount.Entry, error) {
	if !sc.Valid() {
		return nil, fmt.Errorf("%w: %q", scenario.ErrUnknownScenario, sc)
	}
	if _, err := s.period(ctx, periodID); err != nil {
		return nil, err
	}
	if parent != "" {
		if _, err := subaccount.ParseParent(parent); err != nil {
			return nil, err
		}
	}
	rows, err := s.subAccountRows(ctx, periodID, sc)
	if err != nil {
		return nil, err
	}
	if parent != "" {
		rows = filterRows(rows, func(r subaccount.Row) bool { return r.Parent == parent })
	}
	return subaccount.Group(rows), nil
}

// PutSubAccount stores one sub-account's months.
func (s *Service) PutSubAccount(ctx context.Context, in SubAccountInput) error {
	if err := in.SubAccountKey.Validate(); err != nil {
		return err
	}
	months, err := s.months(ctx, in.PeriodID)
	if err != nil {
		return err
	}
	if err := validateMonths(in.Values, months); err != nil {
		return err
	}
	if err := s.store.PutSubAccountRows(ctx, in.PeriodID, in.Scenario, in.Rows()); err != nil {
		return fmt.Errorf("forecast: put sub-account: %w", err)
	}
	s.bump(ctx)
	return nil
}

// DeleteSubAccount removes one sub-account from a period.
func (s *Service) DeleteSubAccount(ctx context.Context, key SubAccountKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	n, err := s.store.DeleteSubAccount(ctx, key)
	if err != nil {
		return fmt.Errorf("forecast: delete sub-account: %w", err)
	}
	if n == 0 {
		return ErrSubAccountNotFound
	}
	s.bump(ctx)
	return nil
}

// CopySubAccountToAllPeriods copies a sub-account of one period to every other
// period of the same company. Months are matched by their position on each
// axis and the target's previous values are replaced. It returns the number
// of periods written.
func (s *Service) CopySubAccountToAllPeriods(ctx context.Context, key SubAccountKey) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	source, err := s.store.GetPeriod(ctx, key.PeriodID)
	if err != nil {
		return 0, err
	}
	rows, err := s.store.SubAccountRows(ctx, key.PeriodID, key.Scenario)
	if err != nil {
		return 0, err
	}
	rows = filterRows(rows, func(r subaccount.Row) bool { return r.Parent == key.Parent && r.Name == key.Name })
	if len(rows) == 0 {
		return 0, ErrSubAccountNotFound
	}
	byPosition := make(map[int]float64, len(rows))
	sourceMonths := fiscal.Months(&source)
	for _, r := range rows {
		if i := fiscal.CutoverIndex(sourceMonths, r.Month); i > 0 {
			byPosition[i-1] = r.Amount
		}
	}

	periods, err := s.store.ListPeriods(ctx, source.CompanyID)
	if err != nil {
		return 0, err
	}
	copied := 0
	for _, target := range periods {
		if target.ID == source.ID {
			continue
		}
		targetKey := key
		targetKey.PeriodID = target.ID
		if _, err := s.store.DeleteSubAccount(ctx, targetKey); err != nil {
			return copied, fmt.Errorf("forecast: clear period %d: %w", target.ID, err)
		}
		var out []subaccount.Row
		for i, m := range fiscal.Months(&target) {
			if v, ok := byPosition[i]; ok {
				out = append(out, subaccount.Row{Parent: key.Parent, Name: key.Name, Month: m, Amount: v})
			}
		}
		if err := s.store.PutSubAccountRows(ctx, target.ID, key.Scenario, out); err != nil {
			return copied, fmt.Errorf("forecast: copy to period %d: %w", target.ID, err)
		}
		copied++
	}
	if copied > 0 {
		s.bump(ctx)
	}
	s.logger.InfoContext(ctx, "sub-account copied", slog.String("parent", key.Parent), slog.String("name", key.Name), slog.Int("periods", copied))
	return copied, nil
}

// DeleteSubAccountFromAllPeriods removes a sub-account from every period of a
// company and returns the number of periods that held it.
func (s *Service) DeleteSubAccountFromAllPeriods(ctx context.Context, companyID int64, sc scenario.Scenario, parent, name string) (int, error) {
	probe := SubAccountKey{Scenario: sc, Parent: parent, Name: name}
	if err := probe.validateIdentity(); err != nil {
		return 0, err
	}
	if _, err := s.store.GetCompany(ctx, companyID); err != nil {
		return 0, err
	}
	periods, err := s.store.ListPeriods(ctx, companyID)
	if err != nil {
		return 0, err
	}
	touched := 0
	for _, p := range periods {
		key := probe
		key.PeriodID = p.ID
		n, err := s.store.DeleteSubAccount(ctx, key)
		if err != nil {
			return touched, fmt.Errorf("forecast: delete from period %d: %w", p.ID, err)
		}
		if n > 0 {
			touched++
		}
	}
	if touched > 0 {
		s.bump(ctx)
	}
	return touched, nil
}

// MaterializeScenario persists the adjusted forecast of a non-baseline
// scenario as that scenario's stored forecast. It returns the number of facts
// written.
func (s *Service) MaterializeScenario(ctx context.Context, periodID int64, sc scenario.Scenario, rate *float64) (int, error) {
	if !sc.Valid() {
		return 0, fmt.Errorf("%w: %q", scenario.ErrUnknownScenario, sc)
	}
	if sc == scenario.Realistic {
		return 0, fmt.Errorf("%w: the realistic scenario is the baseline", ErrValidation)
	}
	p, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return 0, err
	}
	months := fiscal.Months(&p)
	actualFacts, err := s.store.ActualFacts(ctx, periodID)
	if err != nil {
		return 0, err
	}
	baseFacts, err := s.store.ForecastFacts(ctx, periodID, scenario.Realistic)
	if err != nil {
		return 0, err
	}
	actuals, err := timeseries.Load(actualFacts, months)
	if err != nil {
		return 0, err
	}
	base, err := timeseries.Load(baseFacts, months)
	if err != nil {
		return 0, err
	}
	cutover := s.cfg.Policy.Resolve(months, "", actuals.HasData)
	adjusted := scenario.Adjust(base, s.rate(sc, rate), months[cutover:])
	facts := adjusted.Facts()
	if err := s.store.ReplaceForecasts(ctx, periodID, sc, facts); err != nil {
		return 0, fmt.Errorf("forecast: materialize: %w", err)
	}
	s.bump(ctx)
	s.logger.InfoContext(ctx, "scenario materialized", slog.Int64("period_id", periodID), slog.String("scenario", string(sc)), slog.Int("facts", len(facts)))
	return len(facts), nil
}

// Warm computes every scenario's statement for the periods of one company, or
// of all companies when companyID is zero, filling the input cache. It returns
// the number of statements computed.
func (s *Service) Warm(ctx context.Context, companyID int64) (int, error) {
	var companies []int64
	if companyID != 0 {
		companies = []int64{companyID}
	} else {
		all, err := s.store.ListCompanies(ctx)
		if err != nil {
			return 0, err
		}
		for _, c := range all {
			companies = append(companies, c.ID)
		}
	}

	var requests []Request
	for _, id := range companies {
		periods, err := s.store.ListPeriods(ctx, id)
		if err != nil {
			return 0, err
		}
		for _, p := range periods {
			for _, sc := range scenario.All() {
				requests = append(requests, Request{PeriodID: p.ID, Scenario: sc})
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmupConcurrency)
	for _, req := range requests {
		g.Go(func() error {
			_, err := s.Statement(gctx, req)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(requests), nil
}

type pipelineInputs struct {
	months   []string
	actuals  *timeseries.Table
	forecast *timeseries.Table
	cutover  int
}

// prepare loads and shapes the inputs of one projection: the actual table and
// the scenario forecast with sub-accounts applied.
func (s *Service) prepare(ctx context.Context, req Request) (pipelineInputs, error) {
	if err := req.Validate(); err != nil {
		return pipelineInputs{}, err
	}
	p, err := s.period(ctx, req.PeriodID)
	if errors.Is(err, ErrPeriodNotFound) {
		empty := timeseries.NewTable(nil)
		return pipelineInputs{months: []string{}, actuals: empty, forecast: empty}, nil
	}
	if err != nil {
		return pipelineInputs{}, err
	}
	months := fiscal.Months(&p)

	var (
		actualFacts   []timeseries.Fact
		forecastFacts []timeseries.Fact
		rows          []subaccount.Row
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		actualFacts, err = s.actualFacts(gctx, req.PeriodID)
		return err
	})
	g.Go(func() error {
		var err error
		forecastFacts, err = s.forecastFacts(gctx, req.PeriodID, scenario.Realistic)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = s.subAccountRows(gctx, req.PeriodID, req.Scenario)
		return err
	})
	if err := g.Wait(); err != nil {
		return pipelineInputs{}, fmt.Errorf("forecast: load inputs: %w", err)
	}

	actuals, err := timeseries.Load(actualFacts, months)
	if err != nil {
		return pipelineInputs{}, err
	}
	forecast, err := timeseries.Load(forecastFacts, months)
	if err != nil {
		return pipelineInputs{}, err
	}
	cutover := s.cfg.Policy.Resolve(months, req.CutoverMonth, actuals.HasData)
	if req.Scenario != scenario.Realistic {
		forecast = scenario.Adjust(forecast, s.rate(req.Scenario, req.Rate), months[cutover:])
	}
	forecast, err = subaccount.Apply(forecast, rows)
	if err != nil {
		return pipelineInputs{}, err
	}
	return pipelineInputs{months: months, actuals: actuals, forecast: forecast, cutover: cutover}, nil
}

func (s *Service) rate(sc scenario.Scenario, override *float64) float64 {
	if override != nil {
		return *override
	}
	return s.cfg.Rates.For(sc)
}

func (s *Service) months(ctx context.Context, periodID int64) ([]string, error) {
	p, err := s.period(ctx, periodID)
	if err != nil {
		return nil, err
	}
	return fiscal.Months(&p), nil
}

func (s *Service) period(ctx context.Context, periodID int64) (fiscal.Period, error) {
	key, err := s.cache.BuildKey(ctx, keyPeriod(periodID)...)
	if err != nil {
		return fiscal.Period{}, err
	}
	var p fiscal.Period
	err = s.cache.FetchJSON(ctx, key, &p, func(ctx context.Context) (any, error) {
		return s.store.GetPeriod(ctx, periodID)
	})
	return p, err
}

func (s *Service) actualFacts(ctx context.Context, periodID int64) ([]timeseries.Fact, error) {
	key, err := s.cache.BuildKey(ctx, keyActuals(periodID)...)
	if err != nil {
		return nil, err
	}
	var facts []timeseries.Fact
	err = s.cache.FetchJSON(ctx, key, &facts, func(ctx context.Context) (any, error) {
		return s.store.ActualFacts(ctx, periodID)
	})
	return facts, err
}

func (s *Service) forecastFacts(ctx context.Context, periodID int64, sc scenario.Scenario) ([]timeseries.Fact, error) {
	key, err := s.cache.BuildKey(ctx, keyForecasts(periodID, sc)...)
	if err != nil {
		return nil, err
	}
	var facts []timeseries.Fact
	err = s.cache.FetchJSON(ctx, key, &facts, func(ctx context.Context) (any, error) {
		return s.store.ForecastFacts(ctx, periodID, sc)
	})
	return facts, err
}

func (s *Service) subAccountRows(ctx context.Context, periodID int64, sc scenario.Scenario) ([]subaccount.Row, error) {
	key, err := s.cache.BuildKey(ctx, keySubAccounts(periodID, sc)...)
	if err != nil {
		return nil, err
	}
	var rows []subaccount.Row
	err = s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (any, error) {
		return s.store.SubAccountRows(ctx, periodID, sc)
	})
	return rows, err
}

func (s *Service) bump(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "cache bump failed", slog.Any("error", err))
	}
}

func viewOf(p fiscal.Period) PeriodView {
	return PeriodView{Period: p, Months: fiscal.Months(&p)}
}

func filterRows(rows []subaccount.Row, keep func(subaccount.Row) bool) []subaccount.Row {
	out := rows[:0:0]
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// collapseFacts keeps the last value per (item, month) and drops zeros.
func collapseFacts(facts []timeseries.Fact, months []string) ([]timeseries.Fact, error) {
	table, err := timeseries.Load(facts, months)
	if err != nil {
		return nil, err
	}
	return table.Facts(), nil
}

func validateFacts(facts []timeseries.Fact, months []string) error {
	axis := make(map[string]struct{}, len(months))
	for _, m := range months {
		axis[m] = struct{}{}
	}
	for _, f := range facts {
		a, err := catalog.Parse(f.Item)
		if err != nil {
			return err
		}
		if a.IsComputed() {
			return fmt.Errorf("%w: %q", ErrComputedAccount, f.Item)
		}
		if _, ok := axis[f.Month]; !ok {
			return fmt.Errorf("%w: month %q outside fiscal period", ErrValidation, f.Month)
		}
	}
	return nil
}
