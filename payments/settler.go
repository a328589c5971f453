/*
Package payments settles invoices and records payments.

PURPOSE:
  Applies a payment to an invoice. When the payment postdates the due date
  and the mora surcharge is enabled, the surcharge is appended to the
  invoice BEFORE the sufficiency check, so the customer is always validated
  against the real amount owed. No partial payments are accepted.

ATOMICITY:
  The surcharge-then-validate-then-mark-paid sequence runs in one
  transaction: an insufficient payment rolls back the surcharge row, and a
  double settlement is impossible because the already-PAID check and the
  PAID write share the transaction.

PROCESSING LIFECYCLE:
  Transfer-style payments that need manual approval go through Begin
  (invoice -> PROCESSING, payment row PENDING), then Approve (settles) or
  Reject. A rejected payment ALWAYS reverts its invoice PROCESSING ->
  PENDING, so no invoice can get stuck in PROCESSING.

SEE ALSO:
  - reconnection/manager.go: MarkInstallmentPaid on settled invoices
  - collections/machine.go: Regularization after full repayment
*/
package payments

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hidrosur/billing-engine/collections"
	"github.com/hidrosur/billing-engine/core"
	"github.com/hidrosur/billing-engine/reconnection"
)

// Settler applies payments to invoices.
type Settler struct {
	store   core.Store
	plans   *reconnection.Manager
	machine *collections.Machine
	audit   core.AuditLog
}

func NewSettler(store core.Store, plans *reconnection.Manager, machine *collections.Machine, audit core.AuditLog) *Settler {
	if audit == nil {
		audit = core.NopAuditLog{}
	}
	return &Settler{store: store, plans: plans, machine: machine, audit: audit}
}

// SettlementResult reports the settlement outcome for receipts and audit.
type SettlementResult struct {
	InvoiceID        string
	PaymentID        string
	SurchargeApplied bool
	Surcharge        core.Money
	RequiredTotal    core.Money
	PaidAt           time.Time
	Regularized      bool
}

// =============================================================================
// SETTLEMENT
// =============================================================================

// Settle applies a payment to the invoice at the given date.
func (st *Settler) Settle(ctx context.Context, invoiceID string, amount core.Money, paidAt time.Time, method core.PaymentMethod, actor string) (SettlementResult, error) {
	var result SettlementResult
	if !method.Valid() {
		return result, &core.ValidationError{Field: "method", Message: "unknown payment method " + string(method)}
	}
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	err := st.store.WithTx(ctx, func(tx core.Store) error {
		r, err := st.settleWithin(ctx, tx, invoiceID, amount, paidAt, method, actor, "")
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return SettlementResult{}, err
	}

	st.recordAudit(ctx, "settle", result, actor)
	return result, nil
}

func (st *Settler) settleWithin(ctx context.Context, tx core.Store, invoiceID string, amount core.Money, paidAt time.Time, method core.PaymentMethod, actor, paymentID string) (SettlementResult, error) {
	var result SettlementResult

	inv, err := tx.GetInvoice(ctx, invoiceID)
	if err != nil {
		return result, err
	}
	if inv == nil {
		return result, &core.NotFoundError{Entity: "invoice", ID: invoiceID}
	}
	if inv.Status == core.InvoicePaid {
		return result, &core.InvalidStateError{
			Entity:    "invoice",
			ID:        invoiceID,
			State:     string(inv.Status),
			Operation: "settle",
		}
	}

	cfg, err := tx.ActiveConfig(ctx)
	if err != nil {
		return result, err
	}
	if cfg == nil {
		return result, &core.ValidationError{Field: "config", Message: "no active service-state configuration"}
	}

	// Late payment: append the mora surcharge before validating the amount.
	if cfg.MoraEnabled && paidAt.After(inv.DueDate) {
		surcharge, err := st.applyMora(ctx, tx, inv, *cfg, paidAt)
		if err != nil {
			return result, err
		}
		result.SurchargeApplied = true
		result.Surcharge = surcharge
	}

	required := inv.Total
	result.RequiredTotal = required
	if amount.LessThan(required) {
		return result, &core.InsufficientPaymentError{
			InvoiceID: invoiceID,
			Required:  required,
			Paid:      amount,
		}
	}

	t := paidAt
	inv.Status = core.InvoicePaid
	inv.PaidAt = &t
	if err := tx.SaveInvoice(ctx, inv); err != nil {
		return result, err
	}

	if paymentID == "" {
		paymentID = uuid.NewString()
	}
	payment := core.Payment{
		ID:         paymentID,
		InvoiceID:  invoiceID,
		Amount:     amount,
		Date:       paidAt,
		Method:     method,
		Status:     core.PaymentApproved,
		ApprovedBy: actor,
		CreatedAt:  time.Now().UTC(),
	}
	if err := tx.SavePayment(ctx, payment); err != nil {
		return result, err
	}
	result.PaymentID = paymentID
	result.InvoiceID = invoiceID
	result.PaidAt = paidAt

	// A paid invoice may carry a reconnection installment.
	if err := st.plans.MarkInstallmentPaid(ctx, tx, inv, paidAt); err != nil {
		return result, err
	}

	// Regularization check: back to ACTIVE once nothing is overdue.
	regularized, err := st.checkRegularization(ctx, tx, inv.CustomerID, paidAt)
	if err != nil {
		return result, err
	}
	result.Regularized = regularized

	return result, nil
}

// applyMora resolves the RECARGO_MORA charge from the active schedule's
// catalog, falling back to the configured surcharge amount when the catalog
// carries no such entry, and folds it into the invoice total.
func (st *Settler) applyMora(ctx context.Context, tx core.Store, inv *core.Invoice, cfg core.ServiceStateConfig, paidAt time.Time) (core.Money, error) {
	amount := cfg.MoraSurcharge
	name := "Recargo por mora"

	sched, err := tx.ActiveSchedule(ctx)
	if err != nil {
		return core.ZeroMoney(), err
	}
	if sched != nil {
		if charge := sched.ChargeByCode(core.ChargeCodeMora); charge != nil && !charge.FreeOfCharge {
			amount = charge.Amount
			name = charge.Name
		}
	}

	if err := tx.AddInvoiceCharge(ctx, core.InvoiceExtraCharge{
		ID:         uuid.NewString(),
		InvoiceID:  inv.ID,
		ChargeCode: core.ChargeCodeMora,
		Name:       name,
		Amount:     amount,
		Automatic:  true,
		AppliedAt:  paidAt,
	}); err != nil {
		return core.ZeroMoney(), err
	}

	inv.ExtraChargesTotal = inv.ExtraChargesTotal.Add(amount)
	inv.RecomputeTotal()
	if err := tx.SaveInvoice(ctx, inv); err != nil {
		return core.ZeroMoney(), err
	}
	return amount, nil
}

func (st *Settler) checkRegularization(ctx context.Context, tx core.Store, customerID string, at time.Time) (bool, error) {
	count, err := tx.CountOverdue(ctx, customerID)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	cust, err := tx.GetCustomer(ctx, customerID)
	if err != nil {
		return false, err
	}
	if cust == nil || cust.ServiceState == core.StateActive {
		return false, nil
	}

	if err := st.machine.RegularizeWithin(ctx, tx, customerID, at, "regularized by payment", ""); err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// PROCESSING LIFECYCLE - transfers awaiting manual approval
// =============================================================================

// Begin records a PENDING payment and moves the invoice to PROCESSING
// until an operator approves or rejects it.
func (st *Settler) Begin(ctx context.Context, invoiceID string, amount core.Money, method core.PaymentMethod, notes string) (*core.Payment, error) {
	if !method.Valid() {
		return nil, &core.ValidationError{Field: "method", Message: "unknown payment method " + string(method)}
	}

	var payment core.Payment
	err := st.store.WithTx(ctx, func(tx core.Store) error {
		inv, err := tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return &core.NotFoundError{Entity: "invoice", ID: invoiceID}
		}
		if inv.Status != core.InvoicePending && inv.Status != core.InvoiceOverdue {
			return &core.InvalidStateError{
				Entity:    "invoice",
				ID:        invoiceID,
				State:     string(inv.Status),
				Operation: "begin payment",
			}
		}

		inv.Status = core.InvoiceProcessing
		if err := tx.SaveInvoice(ctx, inv); err != nil {
			return err
		}

		payment = core.Payment{
			ID:        uuid.NewString(),
			InvoiceID: invoiceID,
			Amount:    amount,
			Date:      time.Now().UTC(),
			Method:    method,
			Status:    core.PaymentPending,
			Notes:     notes,
			CreatedAt: time.Now().UTC(),
		}
		return tx.SavePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Approve settles a PENDING payment through the normal settlement path.
func (st *Settler) Approve(ctx context.Context, paymentID, approver string) (SettlementResult, error) {
	var result SettlementResult
	err := st.store.WithTx(ctx, func(tx core.Store) error {
		payment, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return &core.NotFoundError{Entity: "payment", ID: paymentID}
		}
		if payment.Status != core.PaymentPending {
			return &core.InvalidStateError{
				Entity:    "payment",
				ID:        paymentID,
				State:     string(payment.Status),
				Operation: "approve",
			}
		}

		r, err := st.settleWithin(ctx, tx, payment.InvoiceID, payment.Amount, payment.Date, payment.Method, approver, payment.ID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return SettlementResult{}, err
	}

	st.recordAudit(ctx, "approve", result, approver)
	return result, nil
}

// Reject marks a PENDING payment REJECTED and reverts its invoice from
// PROCESSING back to PENDING. The reversal is unconditional: a rejected
// payment can never leave an invoice stuck in PROCESSING.
func (st *Settler) Reject(ctx context.Context, paymentID, reason, actor string) error {
	err := st.store.WithTx(ctx, func(tx core.Store) error {
		payment, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return &core.NotFoundError{Entity: "payment", ID: paymentID}
		}
		if payment.Status != core.PaymentPending {
			return &core.InvalidStateError{
				Entity:    "payment",
				ID:        paymentID,
				State:     string(payment.Status),
				Operation: "reject",
			}
		}

		payment.Status = core.PaymentRejected
		payment.Notes = reason
		payment.ApprovedBy = actor
		if err := tx.SavePayment(ctx, *payment); err != nil {
			return err
		}

		inv, err := tx.GetInvoice(ctx, payment.InvoiceID)
		if err != nil {
			return err
		}
		if inv != nil && inv.Status == core.InvoiceProcessing {
			inv.Status = core.InvoicePending
			if err := tx.SaveInvoice(ctx, inv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if aerr := st.audit.Record(ctx, core.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Module:    "payments",
		Entity:    "payment",
		RecordID:  paymentID,
		Action:    "reject",
		Detail:    map[string]any{"reason": reason},
	}); aerr != nil {
		log.Printf("[Payments] audit record failed for %s: %v", paymentID, aerr)
	}
	return nil
}

func (st *Settler) recordAudit(ctx context.Context, action string, r SettlementResult, actor string) {
	if err := st.audit.Record(ctx, core.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Module:    "payments",
		Entity:    "invoice",
		RecordID:  r.InvoiceID,
		Action:    action,
		Detail: map[string]any{
			"payment":   r.PaymentID,
			"required":  r.RequiredTotal.String(),
			"surcharge": r.SurchargeApplied,
		},
	}); err != nil {
		log.Printf("[Payments] audit record failed for %s: %v", r.InvoiceID, err)
	}
}
