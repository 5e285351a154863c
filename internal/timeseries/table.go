// Package timeseries holds the account by month tables that flow through the
// projection pipeline.
package timeseries

import (
	"fmt"

	"github.com/odyssey-erp/plforecast/internal/catalog"
)

// Fact is one raw (item, month) amount.
type Fact struct {
	Item   string  `json:"item_name"`
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// Table is a dense account by month grid. Every catalog account has a row and
// every axis month has a column; absent facts read as zero.
type Table struct {
	months []string
	index  map[string]int
	cells  [catalog.Count][]float64
}

// NewTable returns a zero-filled table over months.
func NewTable(months []string) *Table {
	t := &Table{
		months: append([]string(nil), months...),
		index:  make(map[string]int, len(months)),
	}
	for i, m := range t.months {
		t.index[m] = i
	}
	for i := range t.cells {
		t.cells[i] = make([]float64, len(t.months))
	}
	return t
}

// Months returns a copy of the month axis.
func (t *Table) Months() []string {
	if t == nil {
		return []string{}
	}
	return append([]string{}, t.months...)
}

// Len returns the number of months on the axis.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.months)
}

// Get returns the amount at (a, month); unknown months read as zero.
func (t *Table) Get(a catalog.Account, month string) float64 {
	if t == nil {
		return 0
	}
	i, ok := t.index[month]
	if !ok {
		return 0
	}
	return t.cells[a][i]
}

// Set stores v at (a, month) and reports whether month is on the axis.
func (t *Table) Set(a catalog.Account, month string, v float64) bool {
	i, ok := t.index[month]
	if !ok {
		return false
	}
	t.cells[a][i] = v
	return true
}

// At returns the amount at column i.
func (t *Table) At(a catalog.Account, i int) float64 {
	return t.cells[a][i]
}

// SetAt stores v at column i.
func (t *Table) SetAt(a catalog.Account, i int, v float64) {
	t.cells[a][i] = v
}

// Row returns a copy of the values of a in axis order.
func (t *Table) Row(a catalog.Account) []float64 {
	if t == nil {
		return nil
	}
	return append([]float64(nil), t.cells[a]...)
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out := NewTable(t.Months())
	if t == nil {
		return out
	}
	for i := range t.cells {
		copy(out.cells[i], t.cells[i])
	}
	return out
}

// HasData reports whether any account holds a non-zero amount in month.
func (t *Table) HasData(month string) bool {
	if t == nil {
		return false
	}
	i, ok := t.index[month]
	if !ok {
		return false
	}
	for a := range t.cells {
		if t.cells[a][i] != 0 {
			return true
		}
	}
	return false
}

// Facts flattens the non-zero cells in catalog then axis order.
func (t *Table) Facts() []Fact {
	if t == nil {
		return nil
	}
	var facts []Fact
	for _, a := range catalog.All() {
		for i, m := range t.months {
			if v := t.cells[a][i]; v != 0 {
				facts = append(facts, Fact{Item: a.Name(), Month: m, Amount: v})
			}
		}
	}
	return facts
}

// RowView is the JSON shape of one table row.
type RowView struct {
	Item    string             `json:"item_name"`
	Amounts map[string]float64 `json:"amounts"`
}

// Rows renders the table in catalog order.
func (t *Table) Rows() []RowView {
	rows := make([]RowView, 0, catalog.Count)
	for _, a := range catalog.All() {
		amounts := make(map[string]float64, t.Len())
		for _, m := range t.Months() {
			amounts[m] = t.Get(a, m)
		}
		rows = append(rows, RowView{Item: a.Name(), Amounts: amounts})
	}
	return rows
}

// Load completes raw facts into a table over months. Later facts for the same
// (item, month) win and months outside the axis are dropped. An item outside
// the catalog is rejected.
func Load(facts []Fact, months []string) (*Table, error) {
	t := NewTable(months)
	for _, f := range facts {
		a, ok := catalog.Lookup(f.Item)
		if !ok {
			return nil, fmt.Errorf("timeseries: load %q: %w", f.Item, catalog.ErrUnknownAccount)
		}
		t.Set(a, f.Month, f.Amount)
	}
	return t, nil
}

// Merge splices actuals and forecasts per cell: month index i takes the actual
// value when i < cutover and the forecast value otherwise.
func Merge(actuals, forecasts *Table, cutover int, months []string) *Table {
	out := NewTable(months)
	for _, a := range catalog.All() {
		for i, m := range months {
			src := forecasts
			if i < cutover {
				src = actuals
			}
			out.cells[a][i] = src.Get(a, m)
		}
	}
	return out
}
