package forecast

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/plforecast/internal/fiscal"
	"github.com/odyssey-erp/plforecast/internal/scenario"
	"github.com/odyssey-erp/plforecast/internal/subaccount"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
)

type cellKey struct {
	periodID int64
	scenario scenario.Scenario
	item     string
	month    string
}

type subKey struct {
	periodID int64
	scenario scenario.Scenario
	parent   string
	name     string
	month    string
}

// MemoryStore implements Store in process memory. It backs development runs
// without PG_DSN and the service tests.
type MemoryStore struct {
	mu sync.RWMutex

	nextCompanyID int64
	nextPeriodID  int64
	companies     map[int64]Company
	periods       map[int64]fiscal.Period
	actuals       map[cellKey]float64
	forecasts     map[cellKey]float64
	subAccounts   map[subKey]float64
	now           func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies:   make(map[int64]Company),
		periods:     make(map[int64]fiscal.Period),
		actuals:     make(map[cellKey]float64),
		forecasts:   make(map[cellKey]float64),
		subAccounts: make(map[subKey]float64),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateCompany registers a company with a unique name.
func (s *MemoryStore) CreateCompany(ctx context.Context, name string) (Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if strings.EqualFold(c.Name, name) {
			return Company{}, ErrDuplicate
		}
	}
	s.nextCompanyID++
	c := Company{ID: s.nextCompanyID, Name: name, CreatedAt: s.now()}
	s.companies[c.ID] = c
	return c, nil
}

// GetCompany fetches a company by id.
func (s *MemoryStore) GetCompany(ctx context.Context, id int64) (Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[id]
	if !ok {
		return Company{}, ErrCompanyNotFound
	}
	return c, nil
}

// ListCompanies returns companies ordered by name.
func (s *MemoryStore) ListCompanies(ctx context.Context) ([]Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Company, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreatePeriod registers a period with a unique number per company.
func (s *MemoryStore) CreatePeriod(ctx context.Context, in CreatePeriodInput) (fiscal.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[in.CompanyID]; !ok {
		return fiscal.Period{}, ErrCompanyNotFound
	}
	for _, p := range s.periods {
		if p.CompanyID == in.CompanyID && p.Number == in.Number {
			return fiscal.Period{}, ErrDuplicate
		}
	}
	s.nextPeriodID++
	p := fiscal.Period{ID: s.nextPeriodID, CompanyID: in.CompanyID, Number: in.Number, StartDate: in.StartDate, EndDate: in.EndDate}
	s.periods[p.ID] = p
	return p, nil
}

// GetPeriod fetches a period by id.
func (s *MemoryStore) GetPeriod(ctx context.Context, id int64) (fiscal.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.periods[id]
	if !ok {
		return fiscal.Period{}, ErrPeriodNotFound
	}
	return p, nil
}

// ListPeriods returns the periods of a company, newest first.
func (s *MemoryStore) ListPeriods(ctx context.Context, companyID int64) ([]fiscal.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []fiscal.Period
	for _, p := range s.periods {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

// ActualFacts returns the actual facts of a period.
func (s *MemoryStore) ActualFacts(ctx context.Context, periodID int64) ([]timeseries.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memoryFacts(s.actuals, periodID, ""), nil
}

// PutActuals upserts actual facts.
func (s *MemoryStore) PutActuals(ctx context.Context, periodID int64, facts []timeseries.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	putFacts(s.actuals, periodID, "", facts)
	return nil
}

// ReplaceActuals swaps the whole actual set of a period, keeping non-zero facts.
func (s *MemoryStore) ReplaceActuals(ctx context.Context, periodID int64, facts []timeseries.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropFacts(s.actuals, periodID, "")
	putFacts(s.actuals, periodID, "", nonZero(facts))
	return nil
}

// ForecastFacts returns the forecast facts of a period and scenario.
func (s *MemoryStore) ForecastFacts(ctx context.Context, periodID int64, sc scenario.Scenario) ([]timeseries.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memoryFacts(s.forecasts, periodID, sc), nil
}

// PutForecasts upserts forecast facts.
func (s *MemoryStore) PutForecasts(ctx context.Context, periodID int64, sc scenario.Scenario, facts []timeseries.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	putFacts(s.forecasts, periodID, sc, facts)
	return nil
}

// ReplaceForecasts swaps the forecast set of a period and scenario.
func (s *MemoryStore) ReplaceForecasts(ctx context.Context, periodID int64, sc scenario.Scenario, facts []timeseries.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropFacts(s.forecasts, periodID, sc)
	putFacts(s.forecasts, periodID, sc, nonZero(facts))
	return nil
}

// SubAccountRows returns the sub-account rows of a period and scenario.
func (s *MemoryStore) SubAccountRows(ctx context.Context, periodID int64, sc scenario.Scenario) ([]subaccount.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []subaccount.Row
	for k, v := range s.subAccounts {
		if k.periodID == periodID && k.scenario == sc {
			rows = append(rows, subaccount.Row{Parent: k.parent, Name: k.name, Month: k.month, Amount: v})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Parent != rows[j].Parent {
			return rows[i].Parent < rows[j].Parent
		}
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Month < rows[j].Month
	})
	return rows, nil
}

// PutSubAccountRows upserts sub-account rows.
func (s *MemoryStore) PutSubAccountRows(ctx context.Context, periodID int64, sc scenario.Scenario, rows []subaccount.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.subAccounts[subKey{periodID: periodID, scenario: sc, parent: r.Parent, name: r.Name, month: r.Month}] = r.Amount
	}
	return nil
}

// DeleteSubAccount removes every month of one sub-account and returns the
// number of rows removed.
func (s *MemoryStore) DeleteSubAccount(ctx context.Context, key SubAccountKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.subAccounts {
		if k.periodID == key.PeriodID && k.scenario == key.Scenario && k.parent == key.Parent && k.name == key.Name {
			delete(s.subAccounts, k)
			n++
		}
	}
	return n, nil
}

func memoryFacts(cells map[cellKey]float64, periodID int64, sc scenario.Scenario) []timeseries.Fact {
	var facts []timeseries.Fact
	for k, v := range cells {
		if k.periodID == periodID && k.scenario == sc {
			facts = append(facts, timeseries.Fact{Item: k.item, Month: k.month, Amount: v})
		}
	}
	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Item != facts[j].Item {
			return facts[i].Item < facts[j].Item
		}
		return facts[i].Month < facts[j].Month
	})
	return facts
}

func putFacts(cells map[cellKey]float64, periodID int64, sc scenario.Scenario, facts []timeseries.Fact) {
	for _, f := range facts {
		cells[cellKey{periodID: periodID, scenario: sc, item: f.Item, month: f.Month}] = f.Amount
	}
}

func dropFacts(cells map[cellKey]float64, periodID int64, sc scenario.Scenario) {
	for k := range cells {
		if k.periodID == periodID && k.scenario == sc {
			delete(cells, k)
		}
	}
}

func nonZero(facts []timeseries.Fact) []timeseries.Fact {
	out := make([]timeseries.Fact, 0, len(facts))
	for _, f := range facts {
		if f.Amount != 0 {
			out = append(out, f)
		}
	}
	return out
}
