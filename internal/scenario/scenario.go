// Package scenario derives optimistic and pessimistic forecasts from the
// realistic baseline.
package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
)

// Scenario names a forecast variant.
type Scenario string

const (
	Realistic   Scenario = "realistic"
	Optimistic  Scenario = "optimistic"
	Pessimistic Scenario = "pessimistic"
)

// ErrUnknownScenario is returned for names outside the enumeration.
var ErrUnknownScenario = errors.New("scenario: unknown scenario")

// Strength of the rate applied to each account group. Costs move against the
// rate at reduced strength.
const (
	SalesFactor       = 1.0
	CostOfSalesFactor = 0.5
	SGAFactor         = 0.3
)

// All lists the scenarios in display order.
func All() []Scenario {
	return []Scenario{Realistic, Optimistic, Pessimistic}
}

// Valid reports whether s is one of the enumerated scenarios.
func (s Scenario) Valid() bool {
	switch s {
	case Realistic, Optimistic, Pessimistic:
		return true
	}
	return false
}

func (s Scenario) String() string { return string(s) }

// Parse validates a scenario name case-insensitively.
func Parse(value string) (Scenario, error) {
	s := Scenario(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownScenario, value)
	}
	return s, nil
}

// Rates holds the signed adjustment rate of each non-baseline scenario.
type Rates struct {
	Optimistic  float64 `json:"optimistic"`
	Pessimistic float64 `json:"pessimistic"`
}

// DefaultRates returns +10% and -10%.
func DefaultRates() Rates {
	return Rates{Optimistic: 0.10, Pessimistic: -0.10}
}

// For returns the rate of s. The baseline always uses 0.
func (r Rates) For(s Scenario) float64 {
	switch s {
	case Optimistic:
		return r.Optimistic
	case Pessimistic:
		return r.Pessimistic
	default:
		return 0
	}
}

// Adjust returns a copy of base with rate applied to the forecast months:
// Sales by (1+r), Cost of Sales by (1-0.5r) and every SG&A component by
// (1-0.3r). Other accounts and months are left untouched.
func Adjust(base *timeseries.Table, rate float64, forecastMonths []string) *timeseries.Table {
	out := base.Clone()
	if rate == 0 {
		return out
	}
	salesScale := 1 + rate*SalesFactor
	costScale := 1 - rate*CostOfSalesFactor
	sgaScale := 1 - rate*SGAFactor
	components := catalog.SGAComponents()

	seen := make(map[string]struct{}, len(forecastMonths))
	for _, m := range forecastMonths {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		scale(out, catalog.Sales, m, salesScale)
		scale(out, catalog.CostOfSales, m, costScale)
		for _, a := range components {
			scale(out, a, m, sgaScale)
		}
	}
	return out
}

func scale(t *timeseries.Table, a catalog.Account, month string, factor float64) {
	t.Set(a, month, t.Get(a, month)*factor)
}
