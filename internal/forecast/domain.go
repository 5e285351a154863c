// Package forecast orchestrates storage, caching and the projection pipeline
// behind the P&L forecast API.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/fiscal"
	"github.com/odyssey-erp/plforecast/internal/scenario"
	"github.com/odyssey-erp/plforecast/internal/subaccount"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
)

var (
	// ErrCompanyNotFound occurs when a company is missing.
	ErrCompanyNotFound = errors.New("forecast: company not found")
	// ErrPeriodNotFound occurs when a fiscal period is missing.
	ErrPeriodNotFound = errors.New("forecast: fiscal period not found")
	// ErrSubAccountNotFound occurs when a sub-account has no rows.
	ErrSubAccountNotFound = errors.New("forecast: sub-account not found")
	// ErrDuplicate occurs on a unique constraint clash.
	ErrDuplicate = errors.New("forecast: duplicate entry")
	// ErrValidation wraps rejected input.
	ErrValidation = errors.New("forecast: validation failed")
	// ErrComputedAccount occurs when input targets a derived account.
	ErrComputedAccount = errors.New("forecast: computed accounts cannot be entered")
)

// Company owns fiscal periods.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// PeriodView is a period with its derived month axis.
type PeriodView struct {
	fiscal.Period
	Months []string `json:"months"`
}

// CreatePeriodInput registers a fiscal period.
type CreatePeriodInput struct {
	CompanyID int64
	Number    int
	StartDate time.Time
	EndDate   time.Time
}

// Validate ensures correctness.
func (in CreatePeriodInput) Validate() error {
	if in.CompanyID == 0 {
		return fmt.Errorf("%w: company required", ErrValidation)
	}
	p := fiscal.Period{CompanyID: in.CompanyID, Number: in.Number, StartDate: in.StartDate, EndDate: in.EndDate}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// ValuesInput puts one item's month amounts. Scenario is ignored for actuals.
type ValuesInput struct {
	PeriodID int64
	Scenario scenario.Scenario
	Item     string
	Values   map[string]float64
}

// Validate checks the item is enterable and the months lie on the axis.
func (in ValuesInput) Validate(months []string) error {
	a, err := catalog.Parse(in.Item)
	if err != nil {
		return err
	}
	if a.IsComputed() {
		return fmt.Errorf("%w: %q", ErrComputedAccount, in.Item)
	}
	return validateMonths(in.Values, months)
}

// Facts flattens the input.
func (in ValuesInput) Facts() []timeseries.Fact {
	facts := make([]timeseries.Fact, 0, len(in.Values))
	for m, v := range in.Values {
		facts = append(facts, timeseries.Fact{Item: in.Item, Month: m, Amount: v})
	}
	return facts
}

// SubAccountKey identifies one sub-account within a period and scenario.
type SubAccountKey struct {
	PeriodID int64
	Scenario scenario.Scenario
	Parent   string
	Name     string
}

// Validate ensures the key names an allowed parent and a sub-account.
func (k SubAccountKey) Validate() error {
	if k.PeriodID == 0 {
		return fmt.Errorf("%w: period required", ErrValidation)
	}
	return k.validateIdentity()
}

func (k SubAccountKey) validateIdentity() error {
	if !k.Scenario.Valid() {
		return fmt.Errorf("%w: %q", scenario.ErrUnknownScenario, k.Scenario)
	}
	if strings.TrimSpace(k.Name) == "" {
		return fmt.Errorf("%w: sub-account name required", ErrValidation)
	}
	_, err := subaccount.ParseParent(k.Parent)
	return err
}

// SubAccountInput puts one sub-account's month amounts.
type SubAccountInput struct {
	SubAccountKey
	Values map[string]float64
}

// Rows flattens the input.
func (in SubAccountInput) Rows() []subaccount.Row {
	rows := make([]subaccount.Row, 0, len(in.Values))
	for m, v := range in.Values {
		rows = append(rows, subaccount.Row{Parent: in.Parent, Name: in.Name, Month: m, Amount: v})
	}
	return rows
}

// Request scopes one projection. Rate overrides the configured scenario rate
// and CutoverMonth is only read under the explicit cutover policy.
type Request struct {
	PeriodID     int64
	Scenario     scenario.Scenario
	Rate         *float64
	CutoverMonth string
}

// Validate checks the request.
func (r Request) Validate() error {
	if r.PeriodID == 0 {
		return fmt.Errorf("%w: period required", ErrValidation)
	}
	if !r.Scenario.Valid() {
		return fmt.Errorf("%w: %q", scenario.ErrUnknownScenario, r.Scenario)
	}
	return nil
}

// Store persists companies, periods and the three raw time-series tables.
// Every put is idempotent on its natural key.
type Store interface {
	CreateCompany(ctx context.Context, name string) (Company, error)
	GetCompany(ctx context.Context, id int64) (Company, error)
	ListCompanies(ctx context.Context) ([]Company, error)

	CreatePeriod(ctx context.Context, in CreatePeriodInput) (fiscal.Period, error)
	GetPeriod(ctx context.Context, id int64) (fiscal.Period, error)
	ListPeriods(ctx context.Context, companyID int64) ([]fiscal.Period, error)

	ActualFacts(ctx context.Context, periodID int64) ([]timeseries.Fact, error)
	PutActuals(ctx context.Context, periodID int64, facts []timeseries.Fact) error
	ReplaceActuals(ctx context.Context, periodID int64, facts []timeseries.Fact) error

	ForecastFacts(ctx context.Context, periodID int64, sc scenario.Scenario) ([]timeseries.Fact, error)
	PutForecasts(ctx context.Context, periodID int64, sc scenario.Scenario, facts []timeseries.Fact) error
	ReplaceForecasts(ctx context.Context, periodID int64, sc scenario.Scenario, facts []timeseries.Fact) error

	SubAccountRows(ctx context.Context, periodID int64, sc scenario.Scenario) ([]subaccount.Row, error)
	PutSubAccountRows(ctx context.Context, periodID int64, sc scenario.Scenario, rows []subaccount.Row) error
	DeleteSubAccount(ctx context.Context, key SubAccountKey) (int64, error)
}

func validateMonths(values map[string]float64, months []string) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: values required", ErrValidation)
	}
	axis := make(map[string]struct{}, len(months))
	for _, m := range months {
		axis[m] = struct{}{}
	}
	for m := range values {
		if _, ok := axis[m]; !ok {
			return fmt.Errorf("%w: month %q outside fiscal period", ErrValidation, m)
		}
	}
	return nil
}
