package core

import (
	"fmt"
	"time"
)

// =============================================================================
// BILLING PERIOD - One calendar month, the unit every invoice is issued for
// =============================================================================

// BillingPeriod identifies the calendar month an invoice covers.
// An invoice is unique per (customer, period) while it is not paid or
// in-flight.
type BillingPeriod struct {
	Month time.Month
	Year  int
}

func NewBillingPeriod(month time.Month, year int) BillingPeriod {
	return BillingPeriod{Month: month, Year: year}
}

// PeriodOf returns the billing period containing the given time.
func PeriodOf(t time.Time) BillingPeriod {
	return BillingPeriod{Month: t.Month(), Year: t.Year()}
}

// CurrentPeriod returns the billing period for today.
func CurrentPeriod() BillingPeriod {
	return PeriodOf(time.Now().UTC())
}

func (p BillingPeriod) Valid() bool {
	return p.Month >= time.January && p.Month <= time.December && p.Year > 0
}

// Previous returns the preceding month, rolling the year on January.
func (p BillingPeriod) Previous() BillingPeriod {
	if p.Month == time.January {
		return BillingPeriod{Month: time.December, Year: p.Year - 1}
	}
	return BillingPeriod{Month: p.Month - 1, Year: p.Year}
}

// Next returns the following month, rolling the year on December.
func (p BillingPeriod) Next() BillingPeriod {
	if p.Month == time.December {
		return BillingPeriod{Month: time.January, Year: p.Year + 1}
	}
	return BillingPeriod{Month: p.Month + 1, Year: p.Year}
}

func (p BillingPeriod) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (p BillingPeriod) End() time.Time {
	return p.Next().Start().AddDate(0, 0, -1)
}

// DueDate is the 10th of the month following the billing period.
// A December period is due January 10 of the next year.
func (p BillingPeriod) DueDate() time.Time {
	next := p.Next()
	return time.Date(next.Year, next.Month, 10, 0, 0, 0, 0, time.UTC)
}

func (p BillingPeriod) Contains(t time.Time) bool {
	return t.Month() == p.Month && t.Year() == p.Year
}

func (p BillingPeriod) Equal(o BillingPeriod) bool {
	return p.Month == o.Month && p.Year == o.Year
}

func (p BillingPeriod) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
