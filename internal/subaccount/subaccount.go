// Package subaccount folds sub-ledger detail into parent forecast rows.
package subaccount

import (
	"errors"
	"fmt"
	"sort"

	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
)

// ErrNotAllowed is returned when the parent account does not accept sub-accounts.
var ErrNotAllowed = errors.New("subaccount: parent does not accept sub-accounts")

// Row is one sub-account amount for a month.
type Row struct {
	Parent string  `json:"parent_item"`
	Name   string  `json:"sub_account_name"`
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// Key groups sub-account rows.
type Key struct {
	Parent catalog.Account
	Month  string
}

// ParseParent resolves a parent item name and checks it accepts sub-accounts.
func ParseParent(name string) (catalog.Account, error) {
	a, err := catalog.Parse(name)
	if err != nil {
		return 0, err
	}
	if !a.AllowsSubAccounts() {
		return 0, fmt.Errorf("%w: %q", ErrNotAllowed, name)
	}
	return a, nil
}

// Aggregate sums rows per (parent, month).
func Aggregate(rows []Row) (map[Key]float64, error) {
	sums := make(map[Key]float64)
	for _, r := range rows {
		parent, err := ParseParent(r.Parent)
		if err != nil {
			return nil, err
		}
		sums[Key{Parent: parent, Month: r.Month}] += r.Amount
	}
	return sums, nil
}

// Apply returns a copy of forecast where every (parent, month) holding
// sub-accounts is overwritten with their sum. Parents without sub-accounts
// keep their own value.
func Apply(forecast *timeseries.Table, rows []Row) (*timeseries.Table, error) {
	sums, err := Aggregate(rows)
	if err != nil {
		return nil, err
	}
	out := forecast.Clone()
	for key, total := range sums {
		out.Set(key.Parent, key.Month, total)
	}
	return out, nil
}

// Entry is one sub-account with its month amounts.
type Entry struct {
	Parent  string             `json:"parent_item"`
	Name    string             `json:"sub_account_name"`
	Amounts map[string]float64 `json:"amounts"`
	Total   float64            `json:"total"`
}

// Group collects rows per (parent, name), ordered by parent catalog position
// then name. Rows with an unknown parent sort last.
func Group(rows []Row) []Entry {
	type groupKey struct{ parent, name string }
	index := make(map[groupKey]int)
	var entries []Entry
	for _, r := range rows {
		k := groupKey{r.Parent, r.Name}
		i, ok := index[k]
		if !ok {
			i = len(entries)
			index[k] = i
			entries = append(entries, Entry{Parent: r.Parent, Name: r.Name, Amounts: map[string]float64{}})
		}
		entries[i].Amounts[r.Month] += r.Amount
		entries[i].Total += r.Amount
	}
	sort.SliceStable(entries, func(i, j int) bool {
		pi, pj := position(entries[i].Parent), position(entries[j].Parent)
		if pi != pj {
			return pi < pj
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Rows flattens an entry back into rows in month order.
func (e Entry) Rows() []Row {
	months := make([]string, 0, len(e.Amounts))
	for m := range e.Amounts {
		months = append(months, m)
	}
	sort.Strings(months)
	rows := make([]Row, 0, len(months))
	for _, m := range months {
		rows = append(rows, Row{Parent: e.Parent, Name: e.Name, Month: m, Amount: e.Amounts[m]})
	}
	return rows
}

func position(name string) int {
	if a, ok := catalog.Lookup(name); ok {
		return int(a)
	}
	return catalog.Count
}
