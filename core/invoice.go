package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INVOICE (BOLETA) - One customer's bill for one calendar month
// =============================================================================

type InvoiceStatus string

const (
	InvoicePending    InvoiceStatus = "PENDING"
	InvoiceProcessing InvoiceStatus = "PROCESSING"
	InvoicePaid       InvoiceStatus = "PAID"
	InvoiceOverdue    InvoiceStatus = "OVERDUE"
	InvoiceVoided     InvoiceStatus = "VOIDED"
)

// Unpaid reports whether the invoice still counts toward customer debt.
func (s InvoiceStatus) Unpaid() bool {
	return s == InvoicePending || s == InvoiceProcessing || s == InvoiceOverdue
}

// Invoice carries a frozen monetary breakdown captured at generation time.
// The breakdown and Total are the only amounts a client should display as
// "what is owed"; the underlying tariff may change without affecting issued
// invoices.
type Invoice struct {
	ID         string
	CustomerID string
	ScheduleID string
	ReadingID  *string // nil when the customer has no meter or no reading

	Period      BillingPeriod
	Consumption decimal.Decimal
	HasMeter    bool

	// Monetary breakdown. Total is recomputed exclusively by RecomputeTotal.
	BaseFee           Money
	ConsumptionAmount Money
	Subtotal          Money
	ExtraChargesTotal Money
	InstallmentAmount Money
	Total             Money
	// AmountDue mirrors Total for legacy consumers; both are written
	// together by RecomputeTotal.
	AmountDue Money

	// InstallmentNumber is set when a reconnection installment is scheduled
	// onto this invoice.
	InstallmentNumber *int

	// Breakdown is the frozen per-tier consumption audit trail.
	Breakdown []TierLine

	DueDate time.Time
	Status  InvoiceStatus

	// ServiceStateAtIssue snapshots the customer's state at generation time.
	ServiceStateAtIssue ServiceState

	PaidAt    *time.Time
	CreatedAt time.Time
}

// RecomputeTotal is the single authoritative routine for the invoice total:
//
//	total = subtotal + extra charges + reconnection installment
//
// Every additive mutation (extra charge, installment, mora surcharge) must
// be followed by this call; the total is never computed ad hoc elsewhere.
func (inv *Invoice) RecomputeTotal() {
	inv.Total = inv.Subtotal.Add(inv.ExtraChargesTotal).Add(inv.InstallmentAmount)
	inv.AmountDue = inv.Total
}

// PastDue reports whether the invoice's due date has elapsed at the given
// time while the invoice is still unpaid.
func (inv *Invoice) PastDue(at time.Time) bool {
	return inv.Status.Unpaid() && at.After(inv.DueDate)
}

// InvoiceExtraCharge links an invoice to one extra-charge occurrence with
// its materialized amount.
type InvoiceExtraCharge struct {
	ID         string
	InvoiceID  string
	ChargeCode string
	Name       string
	Amount     Money
	Automatic  bool
	AppliedAt  time.Time
}
