/*
Package reconnection restores CUTOFF customers and manages fee plans.

PURPOSE:
  After a service cutoff, the customer pays the reconnection fee either in
  full or in installments. Service is restored the moment reconnection is
  processed; the plan only governs how the fee is paid. Installments are
  scheduled onto future invoices by the invoice generator and marked paid
  by payment settlement.

PRECONDITIONS:
  - Customer must be in CUTOFF state.
  - Outstanding debt (sum of OVERDUE invoice totals) must be zero. The
    customer clears prior debt before reconnection, independent of the
    reconnection fee itself.

CALL GRAPH:
  This package calls the collections machine's ChangeState primitive; the
  machine never calls back into this package. That one-directional graph is
  what breaks the state-machine/reconnection dependency cycle.

SEE ALSO:
  - invoicing/generator.go: Calls AttachNextInstallment
  - payments/settler.go: Calls MarkInstallmentPaid
*/
package reconnection

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hidrosur/billing-engine/collections"
	"github.com/hidrosur/billing-engine/core"
)

// Manager creates reconnection plans and tracks installment completion.
type Manager struct {
	store   core.Store
	machine *collections.Machine
	audit   core.AuditLog
}

func NewManager(store core.Store, machine *collections.Machine, audit core.AuditLog) *Manager {
	if audit == nil {
		audit = core.NopAuditLog{}
	}
	return &Manager{store: store, machine: machine, audit: audit}
}

// Result reports what Process did.
type Result struct {
	CustomerID  string
	Reconnected bool
	PlanCreated bool
	// AmountDue is the reconnection fee owed now on the pay-in-full path.
	AmountDue core.Money
	Plan      *core.ReconnectionPlan
}

// =============================================================================
// PROCESS RECONNECTION
// =============================================================================

// Process restores a CUTOFF customer to ACTIVE. With payInFull the fee is
// owed immediately and recorded through the normal invoice/payment flow by
// the caller; otherwise a plan with the requested installment count is
// created. Both paths restore service immediately.
func (mg *Manager) Process(ctx context.Context, customerID string, payInFull bool, installmentCount int, actor string) (Result, error) {
	var result Result
	now := time.Now().UTC()

	err := mg.store.WithTx(ctx, func(tx core.Store) error {
		cust, err := tx.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if cust == nil {
			return &core.NotFoundError{Entity: "customer", ID: customerID}
		}
		if cust.ServiceState != core.StateCutoff {
			return &core.InvalidStateError{
				Entity:    "customer",
				ID:        customerID,
				State:     string(cust.ServiceState),
				Operation: "reconnect",
			}
		}

		// Prior debt blocks reconnection, independent of the fee.
		debt, err := mg.machine.DebtWithin(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if debt.IsPositive() {
			return &core.OutstandingDebtError{CustomerID: customerID, Owed: debt}
		}

		cfg, err := tx.ActiveConfig(ctx)
		if err != nil {
			return err
		}
		if cfg == nil {
			return &core.ValidationError{Field: "config", Message: "no active service-state configuration"}
		}

		result.CustomerID = customerID

		if payInFull {
			result.AmountDue = cfg.ReconnectionFee
		} else {
			plan, err := mg.createPlan(ctx, tx, customerID, *cfg, installmentCount, now)
			if err != nil {
				return err
			}
			result.PlanCreated = true
			result.Plan = plan
		}

		// Service is physically restored immediately on both paths.
		t := now
		cust.LastReconnectionAt = &t
		if err := mg.machine.ChangeState(ctx, tx, cust, core.StateActive, now, "service reconnected", false, actor); err != nil {
			return err
		}
		result.Reconnected = true
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if aerr := mg.audit.Record(ctx, core.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: now,
		Actor:     actor,
		Module:    "reconnection",
		Entity:    "customer",
		RecordID:  customerID,
		Action:    "reconnect",
		Detail:    map[string]any{"pay_in_full": payInFull, "installments": installmentCount},
	}); aerr != nil {
		log.Printf("[Reconnection] audit record failed for %s: %v", customerID, aerr)
	}

	return result, nil
}

func (mg *Manager) createPlan(ctx context.Context, tx core.Store, customerID string, cfg core.ServiceStateConfig, count int, now time.Time) (*core.ReconnectionPlan, error) {
	if count < 1 || count > cfg.MaxInstallments {
		return nil, &core.ValidationError{
			Field:   "installments",
			Message: "installment count must be between 1 and " + strconv.Itoa(cfg.MaxInstallments),
		}
	}

	amount := cfg.ReconnectionFee.Div(decimal.NewFromInt(int64(count))).Round2()
	plan := &core.ReconnectionPlan{
		ID:                uuid.NewString(),
		CustomerID:        customerID,
		Fee:               cfg.ReconnectionFee,
		PriorDebt:         core.ZeroMoney(),
		InstallmentCount:  count,
		InstallmentAmount: amount,
		StartDate:         now,
		Status:            core.PlanActive,
		CreatedAt:         now,
	}

	for i := 1; i <= count; i++ {
		plan.Installments = append(plan.Installments, core.Installment{
			ID:     uuid.NewString(),
			PlanID: plan.ID,
			Number: i,
			Amount: amount,
			// Provisional, overwritten when scheduled onto a real invoice.
			DueDate: now.AddDate(0, i, 0),
			Status:  core.InstallmentPending,
		})
	}

	if err := tx.SavePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// =============================================================================
// INVOICE INTEGRATION
// =============================================================================

// AttachNextInstallment binds the customer's lowest-numbered PENDING
// installment to the invoice: the installment's due date mirrors the
// invoice's, and the installment number and amount are copied onto the
// invoice. No-op without an ACTIVE plan or a pending installment. The
// caller recomputes the invoice total.
func (mg *Manager) AttachNextInstallment(ctx context.Context, tx core.Store, inv *core.Invoice) error {
	plan, err := tx.ActivePlan(ctx, inv.CustomerID)
	if err != nil {
		return err
	}
	if plan == nil {
		return nil
	}

	inst := plan.NextPending()
	if inst == nil {
		return nil
	}

	invoiceID := inv.ID
	inst.InvoiceID = &invoiceID
	inst.DueDate = inv.DueDate
	if err := tx.SaveInstallment(ctx, *inst); err != nil {
		return err
	}

	number := inst.Number
	inv.InstallmentNumber = &number
	inv.InstallmentAmount = inst.Amount
	return nil
}

// MarkInstallmentPaid marks the installment carried by a paid invoice as
// PAID and completes the plan when no PENDING installments remain.
func (mg *Manager) MarkInstallmentPaid(ctx context.Context, tx core.Store, inv *core.Invoice, paidAt time.Time) error {
	if inv.InstallmentNumber == nil {
		return nil
	}

	plan, err := tx.ActivePlan(ctx, inv.CustomerID)
	if err != nil {
		return err
	}
	if plan == nil {
		return nil
	}

	for i := range plan.Installments {
		inst := &plan.Installments[i]
		if inst.Number != *inv.InstallmentNumber {
			continue
		}
		t := paidAt
		inst.PaidAt = &t
		inst.Status = core.InstallmentPaid
		if err := tx.SaveInstallment(ctx, *inst); err != nil {
			return err
		}
		break
	}

	// Reload to count remaining pendings after the update.
	plan, err = tx.ActivePlan(ctx, inv.CustomerID)
	if err != nil {
		return err
	}
	if plan != nil && plan.PendingCount() == 0 {
		plan.Status = core.PlanCompleted
		if err := tx.SavePlan(ctx, plan); err != nil {
			return err
		}
	}
	return nil
}
