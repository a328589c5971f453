/*
Package collections advances customers through the delinquency lifecycle.

PURPOSE:
  Tracks each customer's collections status through
  ACTIVE -> DEBT_NOTICE -> CUTOFF_NOTICE -> CUTOFF based on overdue
  invoices and elapsed time, and restores ACTIVE on full repayment.

DESIGN:
  - NextState is a pure transition function (state, facts) -> state. The
    sweep applies at most one forward transition per customer per
    invocation; CUTOFF is terminal for the sweep.
  - Regularize is the external escape hatch back to ACTIVE. It is a
    separate operation, never part of the sweep's transition table, which
    keeps automatic and manual transitions auditable and distinct.
  - Customer service-state fields are mutated only here (the reconnection
    manager goes through ChangeState as well).
  - Every transition appends an immutable history record.

SWEEP:
  Invoked daily by the scheduler and on demand. Each customer is processed
  in its own transaction; a single customer's failure is logged and never
  aborts the batch. Before evaluating, the sweep flips the customer's
  past-due PENDING invoices to OVERDUE so the overdue count is current.

SEE ALSO:
  - reconnection/manager.go: Calls ChangeState when restoring service
  - payments/settler.go: Triggers Regularize after full repayment
*/
package collections

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hidrosur/billing-engine/core"
)

// =============================================================================
// PURE TRANSITION FUNCTION
// =============================================================================

// Facts is everything the transition function may look at.
type Facts struct {
	OverdueCount   int
	DebtNoticeAt   *time.Time
	CutoffNoticeAt *time.Time
	Now            time.Time
}

// NextState returns the state the customer should advance to, if any.
// Forward-only: regression to ACTIVE is handled by Regularize, never here.
func NextState(state core.ServiceState, f Facts, cfg core.ServiceStateConfig) (core.ServiceState, bool) {
	switch state {
	case core.StateActive:
		if f.OverdueCount >= cfg.MonthsBeforeDebtNotice {
			return core.StateDebtNotice, true
		}
	case core.StateDebtNotice:
		if f.DebtNoticeAt != nil && daysBetween(*f.DebtNoticeAt, f.Now) >= cfg.DaysBeforeCutoffNotice {
			return core.StateCutoffNotice, true
		}
	case core.StateCutoffNotice:
		if f.CutoffNoticeAt != nil && daysBetween(*f.CutoffNoticeAt, f.Now) >= cfg.DaysBeforeCutoff {
			return core.StateCutoff, true
		}
	case core.StateCutoff:
		// Terminal until a reconnection restores service.
	}
	return state, false
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// =============================================================================
// MACHINE
// =============================================================================

// Machine runs the collections sweep and owns every service-state write.
type Machine struct {
	store core.Store
	audit core.AuditLog
}

func NewMachine(store core.Store, audit core.AuditLog) *Machine {
	if audit == nil {
		audit = core.NopAuditLog{}
	}
	return &Machine{store: store, audit: audit}
}

// SweepResult aggregates one sweep invocation.
type SweepResult struct {
	Evaluated     int
	Advanced      int
	MarkedOverdue int
	Failed        int
	Errors        []SweepError
}

type SweepError struct {
	CustomerID string
	Err        error
}

// Sweep evaluates every active customer once, applying at most one forward
// transition each. Per-customer failures are recorded and never abort the
// batch.
func (m *Machine) Sweep(ctx context.Context, asOf time.Time) (SweepResult, error) {
	var result SweepResult

	cfg, err := m.store.ActiveConfig(ctx)
	if err != nil {
		return result, err
	}
	if cfg == nil {
		return result, fmt.Errorf("%w: no active service-state configuration", core.ErrConfiguration)
	}

	customers, err := m.store.ListActiveCustomers(ctx)
	if err != nil {
		return result, err
	}

	for _, cust := range customers {
		result.Evaluated++
		custID := cust.ID

		err := m.store.WithTx(ctx, func(tx core.Store) error {
			advanced, marked, err := m.sweepOne(ctx, tx, custID, asOf, *cfg)
			if err != nil {
				return err
			}
			result.MarkedOverdue += marked
			if advanced {
				result.Advanced++
			}
			return nil
		})
		if err != nil {
			log.Printf("[Sweep] customer %s: %v", custID, err)
			result.Failed++
			result.Errors = append(result.Errors, SweepError{CustomerID: custID, Err: err})
		}
	}

	return result, nil
}

func (m *Machine) sweepOne(ctx context.Context, tx core.Store, customerID string, asOf time.Time, cfg core.ServiceStateConfig) (bool, int, error) {
	cust, err := tx.GetCustomer(ctx, customerID)
	if err != nil {
		return false, 0, err
	}
	if cust == nil {
		return false, 0, &core.NotFoundError{Entity: "customer", ID: customerID}
	}

	marked, err := tx.MarkOverdue(ctx, customerID, asOf)
	if err != nil {
		return false, marked, err
	}

	count, err := tx.CountOverdue(ctx, customerID)
	if err != nil {
		return false, marked, err
	}

	facts := Facts{
		OverdueCount:   count,
		DebtNoticeAt:   cust.DebtNoticeAt,
		CutoffNoticeAt: cust.CutoffNoticeAt,
		Now:            asOf,
	}

	next, advance := NextState(cust.ServiceState, facts, cfg)
	if !advance {
		return false, marked, nil
	}

	reason := transitionReason(next, facts)
	if err := m.ChangeState(ctx, tx, cust, next, asOf, reason, true, ""); err != nil {
		return false, marked, err
	}
	return true, marked, nil
}

func transitionReason(next core.ServiceState, f Facts) string {
	switch next {
	case core.StateDebtNotice:
		return fmt.Sprintf("%d invoices overdue", f.OverdueCount)
	case core.StateCutoffNotice:
		return fmt.Sprintf("%d days elapsed since debt notice", daysBetween(*f.DebtNoticeAt, f.Now))
	case core.StateCutoff:
		return fmt.Sprintf("%d days elapsed since cutoff notice", daysBetween(*f.CutoffNoticeAt, f.Now))
	}
	return "state transition"
}

// =============================================================================
// STATE CHANGE PRIMITIVE
// =============================================================================

// ChangeState applies a transition to the customer, persists the
// service-state fields and appends the history record. It is the only
// writer of customer service state. The store passed in is expected to be
// transactional when the caller composes multiple writes.
func (m *Machine) ChangeState(ctx context.Context, s core.Store, cust *core.Customer, newState core.ServiceState, at time.Time, reason string, automatic bool, actor string) error {
	from := cust.ServiceState

	switch newState {
	case core.StateDebtNotice:
		t := at
		cust.DebtNoticeAt = &t
		cust.HasActiveDebtNotice = true
	case core.StateCutoffNotice:
		t := at
		cust.CutoffNoticeAt = &t
		cust.HasActiveCutoffNotice = true
	case core.StateCutoff:
		t := at
		cust.CutoffAt = &t
		cust.ServiceCut = true
		// Notice flags persist until reconnection.
	case core.StateActive:
		cust.HasActiveDebtNotice = false
		cust.HasActiveCutoffNotice = false
		cust.ServiceCut = false
		cust.DebtNoticeAt = nil
		cust.CutoffNoticeAt = nil
		cust.CutoffAt = nil
	default:
		return &core.ValidationError{Field: "state", Message: "unknown service state " + string(newState)}
	}
	cust.ServiceState = newState

	if err := s.UpdateServiceState(ctx, *cust); err != nil {
		return err
	}

	change := core.StateChange{
		ID:         uuid.NewString(),
		CustomerID: cust.ID,
		FromState:  from,
		NewState:   newState,
		At:         at,
		Reason:     reason,
		Automatic:  automatic,
		Actor:      actor,
	}
	if err := s.AppendStateChange(ctx, change); err != nil {
		return err
	}

	if err := m.audit.Record(ctx, core.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: at,
		Actor:     actor,
		Module:    "collections",
		Entity:    "customer",
		RecordID:  cust.ID,
		Action:    "state_change",
		Detail:    map[string]any{"from": string(from), "to": string(newState), "reason": reason},
	}); err != nil {
		log.Printf("[Collections] audit record failed for %s: %v", cust.ID, err)
	}

	return nil
}

// =============================================================================
// REGULARIZATION - external escape hatch back to ACTIVE
// =============================================================================

// Regularize returns a customer to ACTIVE once no OVERDUE invoices remain.
// Invoked by payment settlement or manually, never by the sweep.
func (m *Machine) Regularize(ctx context.Context, customerID, reason, actor string) error {
	return m.store.WithTx(ctx, func(tx core.Store) error {
		return m.RegularizeWithin(ctx, tx, customerID, time.Now().UTC(), reason, actor)
	})
}

// RegularizeWithin is Regularize composed into an existing transaction
// (payment settlement runs it in the same transaction as the PAID write).
func (m *Machine) RegularizeWithin(ctx context.Context, tx core.Store, customerID string, at time.Time, reason, actor string) error {
	cust, err := tx.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if cust == nil {
		return &core.NotFoundError{Entity: "customer", ID: customerID}
	}
	if cust.ServiceState == core.StateActive {
		return nil
	}

	debt, err := m.debtWithin(ctx, tx, customerID)
	if err != nil {
		return err
	}
	if debt.IsPositive() {
		return &core.OutstandingDebtError{CustomerID: customerID, Owed: debt}
	}

	return m.ChangeState(ctx, tx, cust, core.StateActive, at, reason, actor == "", actor)
}

// =============================================================================
// DEBT
// =============================================================================

// TotalDebt sums the total over the customer's OVERDUE invoices.
func (m *Machine) TotalDebt(ctx context.Context, customerID string) (core.Money, error) {
	return m.debtWithin(ctx, m.store, customerID)
}

// DebtWithin computes TotalDebt against a transactional store.
func (m *Machine) DebtWithin(ctx context.Context, tx core.Store, customerID string) (core.Money, error) {
	return m.debtWithin(ctx, tx, customerID)
}

func (m *Machine) debtWithin(ctx context.Context, s core.Store, customerID string) (core.Money, error) {
	invoices, err := s.OverdueInvoices(ctx, customerID)
	if err != nil {
		return core.ZeroMoney(), err
	}
	debt := core.ZeroMoney()
	for _, inv := range invoices {
		debt = debt.Add(inv.Total)
	}
	return debt, nil
}

// History returns the customer's immutable state-change log.
func (m *Machine) History(ctx context.Context, customerID string) ([]core.StateChange, error) {
	return m.store.StateHistory(ctx, customerID)
}
