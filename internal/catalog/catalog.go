// Package catalog defines the fixed, ordered chart of P&L accounts.
//
// The order of the constants is the display and report order. Every table in
// the module carries exactly one row per account in this order.
package catalog

import (
	"errors"
	"fmt"
)

// Account identifies one line of the P&L statement.
type Account int

const (
	Sales Account = iota
	CostOfSales
	GrossProfit
	OfficersCompensation
	SalariesAndWages
	Bonuses
	StatutoryWelfare
	EmployeeBenefits
	RecruitingAndTraining
	Outsourcing
	PackingAndFreight
	Advertising
	SalesCommissions
	SalesPromotion
	Entertainment
	MeetingExpenses
	Travel
	Communication
	Consumables
	Repairs
	OfficeSupplies
	Utilities
	BooksAndSubscriptions
	MembershipDues
	PaymentFees
	VehicleExpenses
	Rent
	Leases
	Insurance
	TaxesAndDues
	ProfessionalFees
	ResearchAndDevelopment
	TrainingExpenses
	Depreciation
	BadDebtLoss
	Miscellaneous
	MinorEntertainment
	TotalSGA
	OperatingIncome
	NonOperatingIncome
	NonOperatingExpenses
	OrdinaryIncome
	ExtraordinaryGains
	ExtraordinaryLosses
	PretaxIncome
	IncomeTaxes
	NetIncome
)

// Count is the number of accounts in the catalog.
const Count = int(NetIncome) + 1

// ErrUnknownAccount is returned when a name does not belong to the catalog.
var ErrUnknownAccount = errors.New("catalog: unknown account")

type flag uint8

const (
	computed flag = 1 << iota
	sgaComponent
	subAccounts
)

type descriptor struct {
	name  string
	flags flag
}

var accounts = [Count]descriptor{
	Sales:                  {"Sales", subAccounts},
	CostOfSales:            {"Cost of Sales", subAccounts},
	GrossProfit:            {"Gross Profit", computed},
	OfficersCompensation:   {"Officers' Compensation", sgaComponent},
	SalariesAndWages:       {"Salaries and Wages", sgaComponent},
	Bonuses:                {"Bonuses", sgaComponent},
	StatutoryWelfare:       {"Statutory Welfare", sgaComponent},
	EmployeeBenefits:       {"Employee Benefits", sgaComponent},
	RecruitingAndTraining:  {"Recruiting and Training", sgaComponent},
	Outsourcing:            {"Outsourcing", sgaComponent | subAccounts},
	PackingAndFreight:      {"Packing and Freight", sgaComponent},
	Advertising:            {"Advertising", sgaComponent | subAccounts},
	SalesCommissions:       {"Sales Commissions", sgaComponent},
	SalesPromotion:         {"Sales Promotion", sgaComponent},
	Entertainment:          {"Entertainment", sgaComponent},
	MeetingExpenses:        {"Meeting Expenses", sgaComponent},
	Travel:                 {"Travel", sgaComponent | subAccounts},
	Communication:          {"Communication", sgaComponent},
	Consumables:            {"Consumables", sgaComponent},
	Repairs:                {"Repairs", sgaComponent},
	OfficeSupplies:         {"Office Supplies", sgaComponent},
	Utilities:              {"Utilities", sgaComponent},
	BooksAndSubscriptions:  {"Books and Subscriptions", sgaComponent},
	MembershipDues:         {"Membership Dues", sgaComponent},
	PaymentFees:            {"Payment Fees", sgaComponent},
	VehicleExpenses:        {"Vehicle Expenses", sgaComponent},
	Rent:                   {"Rent", sgaComponent | subAccounts},
	Leases:                 {"Leases", sgaComponent},
	Insurance:              {"Insurance", sgaComponent},
	TaxesAndDues:           {"Taxes and Dues", sgaComponent},
	ProfessionalFees:       {"Professional Fees", sgaComponent},
	ResearchAndDevelopment: {"Research and Development", sgaComponent},
	TrainingExpenses:       {"Training Expenses", sgaComponent},
	Depreciation:           {"Depreciation", sgaComponent},
	BadDebtLoss:            {"Bad Debt Loss", sgaComponent},
	Miscellaneous:          {"Miscellaneous", sgaComponent},
	MinorEntertainment:     {"Minor Entertainment", sgaComponent},
	TotalSGA:               {"Total SG&A", computed},
	OperatingIncome:        {"Operating Income", computed},
	NonOperatingIncome:     {"Non-operating Income", 0},
	NonOperatingExpenses:   {"Non-operating Expenses", 0},
	OrdinaryIncome:         {"Ordinary Income", computed},
	ExtraordinaryGains:     {"Extraordinary Gains", 0},
	ExtraordinaryLosses:    {"Extraordinary Losses", 0},
	PretaxIncome:           {"Pre-tax Income", computed},
	IncomeTaxes:            {"Income Taxes", 0},
	NetIncome:              {"Net Income", computed},
}

var (
	byName    = make(map[string]Account, Count)
	sga       []Account
	subParent []Account
)

func init() {
	for i := range accounts {
		a := Account(i)
		byName[accounts[i].name] = a
		if accounts[i].flags&sgaComponent != 0 {
			sga = append(sga, a)
		}
		if accounts[i].flags&subAccounts != 0 {
			subParent = append(subParent, a)
		}
	}
}

// Valid reports whether a belongs to the catalog.
func (a Account) Valid() bool {
	return a >= 0 && int(a) < Count
}

func (a Account) descriptor() descriptor {
	if !a.Valid() {
		panic(fmt.Sprintf("catalog: account %d outside catalog", int(a)))
	}
	return accounts[a]
}

// Name returns the canonical item name used on every data contract.
func (a Account) Name() string {
	return a.descriptor().name
}

func (a Account) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Account(%d)", int(a))
	}
	return accounts[a].name
}

// IsComputed reports whether the account is always derived by the formula chain.
func (a Account) IsComputed() bool {
	return a.descriptor().flags&computed != 0
}

// IsSGAComponent reports whether the account rolls up into Total SG&A.
func (a Account) IsSGAComponent() bool {
	return a.descriptor().flags&sgaComponent != 0
}

// AllowsSubAccounts reports whether sub-ledger detail may exist beneath the account.
func (a Account) AllowsSubAccounts() bool {
	return a.descriptor().flags&subAccounts != 0
}

// IsSummary reports whether the account belongs to the summary view of a report.
func (a Account) IsSummary() bool {
	return a.IsComputed() || a == Sales || a == CostOfSales
}

// MarshalText encodes the account as its item name.
func (a Account) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAccount, int(a))
	}
	return []byte(accounts[a].name), nil
}

// UnmarshalText decodes an item name.
func (a *Account) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// All returns every account in catalog order.
func All() []Account {
	out := make([]Account, Count)
	for i := range out {
		out[i] = Account(i)
	}
	return out
}

// SGAComponents returns the accounts summed into Total SG&A, in catalog order.
func SGAComponents() []Account {
	return append([]Account(nil), sga...)
}

// SubAccountParents returns the accounts that accept sub-accounts.
func SubAccountParents() []Account {
	return append([]Account(nil), subParent...)
}

// Names returns every item name in catalog order.
func Names() []string {
	out := make([]string, Count)
	for i := range accounts {
		out[i] = accounts[i].name
	}
	return out
}

// Lookup resolves an item name.
func Lookup(name string) (Account, bool) {
	a, ok := byName[name]
	return a, ok
}

// Parse resolves an item name or returns ErrUnknownAccount.
func Parse(name string) (Account, error) {
	a, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAccount, name)
	}
	return a, nil
}

// MustLookup resolves an item name and panics when it is not in the catalog.
func MustLookup(name string) Account {
	a, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return a
}

// Info describes an account for API consumers.
type Info struct {
	Name              string `json:"item_name"`
	IsComputed        bool   `json:"is_computed"`
	IsSGAComponent    bool   `json:"is_sga_component"`
	AllowsSubAccounts bool   `json:"allows_sub_accounts"`
	IsSummary         bool   `json:"is_summary"`
}

// Describe lists every account with its flags in catalog order.
func Describe() []Info {
	out := make([]Info, 0, Count)
	for _, a := range All() {
		out = append(out, Info{
			Name:              a.Name(),
			IsComputed:        a.IsComputed(),
			IsSGAComponent:    a.IsSGAComponent(),
			AllowsSubAccounts: a.AllowsSubAccounts(),
			IsSummary:         a.IsSummary(),
		})
	}
	return out
}
