package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hidrosur/billing-engine/core"
)

func TestBillingPeriod_DueDate(t *testing.T) {
	// GIVEN: A March 2025 billing period
	// WHEN: Computing the due date
	// THEN: April 10, 2025

	p := core.NewBillingPeriod(time.March, 2025)
	assert.Equal(t, time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC), p.DueDate())
}

func TestBillingPeriod_DueDate_DecemberRollsYear(t *testing.T) {
	// GIVEN: A December 2025 billing period
	// WHEN: Computing the due date
	// THEN: January 10, 2026

	p := core.NewBillingPeriod(time.December, 2025)
	assert.Equal(t, time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC), p.DueDate())
}

func TestBillingPeriod_PreviousNext_YearRollover(t *testing.T) {
	jan := core.NewBillingPeriod(time.January, 2026)
	assert.Equal(t, core.NewBillingPeriod(time.December, 2025), jan.Previous())

	dec := core.NewBillingPeriod(time.December, 2025)
	assert.Equal(t, jan, dec.Next())
}

func TestBillingPeriod_String(t *testing.T) {
	assert.Equal(t, "2025-03", core.NewBillingPeriod(time.March, 2025).String())
	assert.Equal(t, "2025-12", core.NewBillingPeriod(time.December, 2025).String())
}

func TestBillingPeriod_Contains(t *testing.T) {
	p := core.NewBillingPeriod(time.March, 2025)
	assert.True(t, p.Contains(time.Date(2025, time.March, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)))
}

func TestInvoice_RecomputeTotal(t *testing.T) {
	// GIVEN: An invoice with subtotal, extra charges and an installment
	// WHEN: Recomputing the total
	// THEN: total = subtotal + extra charges + installment, mirrored to AmountDue

	inv := core.Invoice{
		Subtotal:          core.NewMoneyFromInt(12000),
		ExtraChargesTotal: core.NewMoneyFromInt(2000),
		InstallmentAmount: core.NewMoneyFromInt(14800),
	}
	inv.RecomputeTotal()

	assert.True(t, inv.Total.Equal(core.NewMoneyFromInt(28800)))
	assert.True(t, inv.AmountDue.Equal(inv.Total))
}

func TestInvoiceStatus_Unpaid(t *testing.T) {
	assert.True(t, core.InvoicePending.Unpaid())
	assert.True(t, core.InvoiceProcessing.Unpaid())
	assert.True(t, core.InvoiceOverdue.Unpaid())
	assert.False(t, core.InvoicePaid.Unpaid())
	assert.False(t, core.InvoiceVoided.Unpaid())
}
