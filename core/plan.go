package core

import "time"

// =============================================================================
// RECONNECTION PLAN - Installment agreement for the reconnection fee
// =============================================================================

type PlanStatus string

const (
	PlanActive    PlanStatus = "ACTIVE"
	PlanCompleted PlanStatus = "COMPLETED"
	PlanCancelled PlanStatus = "CANCELLED"
)

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPaid    InstallmentStatus = "PAID"
	InstallmentOverdue InstallmentStatus = "OVERDUE"
)

// ReconnectionPlan spreads the reconnection fee over future invoices.
// Service is restored the moment the plan is created; the plan only governs
// how the fee is paid.
type ReconnectionPlan struct {
	ID         string
	CustomerID string

	Fee Money
	// PriorDebt snapshots the outstanding debt at plan creation (always
	// zero under current preconditions, kept for audit).
	PriorDebt Money

	InstallmentCount  int
	InstallmentAmount Money

	StartDate time.Time
	Status    PlanStatus
	CreatedAt time.Time

	Installments []Installment
}

// NextPending returns the lowest-numbered PENDING installment, nil if none.
func (p *ReconnectionPlan) NextPending() *Installment {
	var next *Installment
	for i := range p.Installments {
		inst := &p.Installments[i]
		if inst.Status != InstallmentPending {
			continue
		}
		if next == nil || inst.Number < next.Number {
			next = inst
		}
	}
	return next
}

// PendingCount returns how many installments remain PENDING.
func (p *ReconnectionPlan) PendingCount() int {
	n := 0
	for _, inst := range p.Installments {
		if inst.Status == InstallmentPending {
			n++
		}
	}
	return n
}

// Installment is one scheduled share of the reconnection fee. The due date
// is provisional until the installment is bound to a real invoice, at which
// point it mirrors the invoice's due date.
type Installment struct {
	ID     string
	PlanID string
	Number int
	Amount Money

	// InvoiceID is nil until the installment is scheduled onto an invoice.
	InvoiceID *string

	DueDate time.Time
	PaidAt  *time.Time
	Status  InstallmentStatus
}
