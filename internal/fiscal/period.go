// Package fiscal models fiscal periods and their month axis.
package fiscal

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MonthLayout formats a month label on the axis.
	MonthLayout = "2006-01"
	// DateLayout formats period boundaries.
	DateLayout = "2006-01-02"
)

var (
	// ErrInvalidRange indicates a period whose start is not before its end.
	ErrInvalidRange = errors.New("fiscal: start date must be before end date")
	// ErrInvalidNumber indicates a non-positive period number.
	ErrInvalidNumber = errors.New("fiscal: period number must be positive")
)

// Period is one fiscal year instance of a company. Periods are immutable once registered.
type Period struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	Number    int       `json:"period_num"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Validate checks the period invariants.
func (p Period) Validate() error {
	if p.Number <= 0 {
		return ErrInvalidNumber
	}
	if !p.StartDate.Before(p.EndDate) {
		return ErrInvalidRange
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD boundary in UTC.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("fiscal: parse date %q: %w", value, err)
	}
	return t, nil
}

// Months returns the month axis of p. A nil period yields an empty axis.
func Months(p *Period) []string {
	if p == nil {
		return []string{}
	}
	return MonthsBetween(p.StartDate, p.EndDate)
}

// MonthsBetween lists every calendar month from start to end inclusive.
func MonthsBetween(start, end time.Time) []string {
	months := []string{}
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return months
	}
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(last) {
		months = append(months, cur.Format(MonthLayout))
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

// ValidMonth reports whether value is a YYYY-MM label.
func ValidMonth(value string) bool {
	if len(value) != len(MonthLayout) {
		return false
	}
	_, err := time.Parse(MonthLayout, value)
	return err == nil
}
