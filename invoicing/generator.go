/*
Package invoicing generates monthly invoices (boletas).

PURPOSE:
  Orchestrates one billing cycle for one customer: resolves consumption
  from meter readings, prices it against the active tariff schedule,
  applies automatic extra charges, attaches the next reconnection
  installment, and persists the invoice with a frozen breakdown.

IDEMPOTENCY:
  Generating twice for the same (customer, period) with no new reading
  returns the same invoice. A PAID or PROCESSING invoice is never touched.
  A PENDING/OVERDUE invoice whose linked reading is stale (a newer reading
  exists for the period) is deleted and regenerated.

ATOMICITY:
  Each generation runs in one transaction using one tariff-schedule
  snapshot, so a concurrent tariff edit cannot produce an invoice with
  mixed old/new rates, and a failed step leaves no partial invoice behind.

SEE ALSO:
  - tariff/resolver.go: Base fee and tier pricing
  - reconnection/manager.go: Installment attachment
*/
package invoicing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hidrosur/billing-engine/core"
	"github.com/hidrosur/billing-engine/reconnection"
	"github.com/hidrosur/billing-engine/tariff"
)

// Generator produces invoices for billing periods.
type Generator struct {
	store core.Store
	plans *reconnection.Manager
	audit core.AuditLog
}

func NewGenerator(store core.Store, plans *reconnection.Manager, audit core.AuditLog) *Generator {
	if audit == nil {
		audit = core.NopAuditLog{}
	}
	return &Generator{store: store, plans: plans, audit: audit}
}

// =============================================================================
// SINGLE INVOICE
// =============================================================================

// GenerateMonthly generates (or returns) the customer's invoice for the
// billing period.
func (g *Generator) GenerateMonthly(ctx context.Context, customerID string, month time.Month, year int) (*core.Invoice, error) {
	period := core.NewBillingPeriod(month, year)
	if !period.Valid() {
		return nil, &core.ValidationError{Field: "period", Message: "invalid billing period " + period.String()}
	}

	var invoice *core.Invoice
	err := g.store.WithTx(ctx, func(tx core.Store) error {
		inv, err := g.generateWithin(ctx, tx, customerID, period)
		if err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.recordAudit(ctx, "generate", invoice)
	return invoice, nil
}

func (g *Generator) generateWithin(ctx context.Context, tx core.Store, customerID string, period core.BillingPeriod) (*core.Invoice, error) {
	cust, err := tx.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cust == nil {
		return nil, &core.NotFoundError{Entity: "customer", ID: customerID}
	}

	sched, err := tx.ActiveSchedule(ctx)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, core.ErrNoActiveTariff
	}

	// Idempotency: an existing invoice for the period is returned unless a
	// newer reading makes it stale.
	existing, err := tx.InvoiceForPeriod(ctx, customerID, period)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == core.InvoicePaid || existing.Status == core.InvoiceProcessing {
			return existing, nil
		}
		stale, err := g.invoiceStale(ctx, tx, cust, existing, period)
		if err != nil {
			return nil, err
		}
		if !stale {
			return existing, nil
		}
		if err := tx.DeleteInvoice(ctx, existing.ID); err != nil {
			return nil, err
		}
	}

	return g.buildInvoice(ctx, tx, cust, sched, period)
}

// invoiceStale reports whether a newer reading exists for the invoice's
// period than the one it was generated from.
func (g *Generator) invoiceStale(ctx context.Context, tx core.Store, cust *core.Customer, inv *core.Invoice, period core.BillingPeriod) (bool, error) {
	if !cust.HasMeter() {
		return false, nil
	}
	latest, err := tx.LatestReading(ctx, cust.Meter.ID, period)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return false, nil
	}
	if inv.ReadingID == nil || *inv.ReadingID != latest.ID {
		return true, nil
	}
	return false, nil
}

func (g *Generator) buildInvoice(ctx context.Context, tx core.Store, cust *core.Customer, sched *core.TariffSchedule, period core.BillingPeriod) (*core.Invoice, error) {
	consumption, readingID, err := g.resolveConsumption(ctx, tx, cust, period)
	if err != nil {
		return nil, err
	}
	hasMeter := cust.HasMeter()

	baseFee, err := tariff.BaseFee(sched, cust.Class, consumption, hasMeter)
	if err != nil {
		return nil, err
	}
	breakdown, consumptionAmount, err := tariff.ConsumptionBreakdown(sched, cust.Class, consumption, hasMeter)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inv := &core.Invoice{
		ID:                  uuid.NewString(),
		CustomerID:          cust.ID,
		ScheduleID:          sched.ID,
		ReadingID:           readingID,
		Period:              period,
		Consumption:         consumption,
		HasMeter:            hasMeter,
		BaseFee:             baseFee,
		ConsumptionAmount:   consumptionAmount,
		Subtotal:            baseFee.Add(consumptionAmount),
		ExtraChargesTotal:   core.ZeroMoney(),
		InstallmentAmount:   core.ZeroMoney(),
		Breakdown:           breakdown,
		DueDate:             period.DueDate(),
		Status:              core.InvoicePending,
		ServiceStateAtIssue: cust.ServiceState,
		CreatedAt:           now,
	}
	inv.RecomputeTotal()

	if err := tx.SaveInvoice(ctx, inv); err != nil {
		return nil, err
	}

	if err := g.applyAutomaticCharges(ctx, tx, cust, sched, inv, now); err != nil {
		return nil, err
	}

	if err := g.plans.AttachNextInstallment(ctx, tx, inv); err != nil {
		return nil, err
	}

	inv.RecomputeTotal()
	if err := tx.SaveInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// resolveConsumption computes the billed volume:
// latest reading of the billing month minus the latest reading of the prior
// month (or the meter's initial reading if none). Without a meter, or
// without a reading for the month, consumption is zero.
func (g *Generator) resolveConsumption(ctx context.Context, tx core.Store, cust *core.Customer, period core.BillingPeriod) (decimal.Decimal, *string, error) {
	if !cust.HasMeter() {
		return decimal.Zero, nil, nil
	}

	current, err := tx.LatestReading(ctx, cust.Meter.ID, period)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if current == nil {
		return decimal.Zero, nil, nil
	}

	previousValue := cust.Meter.InitialReading
	previous, err := tx.LatestReading(ctx, cust.Meter.ID, period.Previous())
	if err != nil {
		return decimal.Zero, nil, err
	}
	if previous != nil {
		previousValue = previous.Value
	}

	consumption := current.Value.Sub(previousValue)
	if consumption.IsNegative() {
		// Meter rollover or correction: bill zero rather than negative.
		consumption = decimal.Zero
	}
	readingID := current.ID
	return consumption, &readingID, nil
}

// applyAutomaticCharges applies the debt-notice charge at generation time,
// gated on the customer's active-debt-notice flag (not on the service-state
// value, which may have moved on across a period boundary).
func (g *Generator) applyAutomaticCharges(ctx context.Context, tx core.Store, cust *core.Customer, sched *core.TariffSchedule, inv *core.Invoice, now time.Time) error {
	if !cust.HasActiveDebtNotice {
		return nil
	}

	charge := sched.ChargeByCode(core.ChargeCodeDebtNotice)
	if charge == nil || charge.FreeOfCharge {
		return nil
	}

	if err := tx.AddInvoiceCharge(ctx, core.InvoiceExtraCharge{
		ID:         uuid.NewString(),
		InvoiceID:  inv.ID,
		ChargeCode: charge.Code,
		Name:       charge.Name,
		Amount:     charge.Amount,
		Automatic:  true,
		AppliedAt:  now,
	}); err != nil {
		return err
	}
	inv.ExtraChargesTotal = inv.ExtraChargesTotal.Add(charge.Amount)
	return nil
}

// =============================================================================
// BULK GENERATION
// =============================================================================

// BulkResult aggregates one mass-generation run.
type BulkResult struct {
	Generated int
	Skipped   int
	Failed    int
	Errors    []BulkError
}

type BulkError struct {
	CustomerID string
	Err        error
}

// GenerateForAllActive generates the period's invoices for every active
// customer. Customers that already have an invoice for the period are
// skipped; a single customer's failure never aborts the batch.
func (g *Generator) GenerateForAllActive(ctx context.Context, month time.Month, year int) (BulkResult, error) {
	var result BulkResult
	period := core.NewBillingPeriod(month, year)
	if !period.Valid() {
		return result, &core.ValidationError{Field: "period", Message: "invalid billing period " + period.String()}
	}

	customers, err := g.store.ListActiveCustomers(ctx)
	if err != nil {
		return result, err
	}

	for _, cust := range customers {
		existing, err := g.store.InvoiceForPeriod(ctx, cust.ID, period)
		if err == nil && existing != nil {
			result.Skipped++
			continue
		}

		if _, err := g.GenerateMonthly(ctx, cust.ID, month, year); err != nil {
			log.Printf("[Invoicing] generate %s for %s: %v", period, cust.ID, err)
			result.Failed++
			result.Errors = append(result.Errors, BulkError{CustomerID: cust.ID, Err: err})
			continue
		}
		result.Generated++
	}

	return result, nil
}

// =============================================================================
// FORCE REGENERATION
// =============================================================================

// ForceRegenerate deletes and regenerates an invoice for its original
// customer and period. PAID invoices are never regenerated.
func (g *Generator) ForceRegenerate(ctx context.Context, invoiceID string) (*core.Invoice, error) {
	var invoice *core.Invoice
	err := g.store.WithTx(ctx, func(tx core.Store) error {
		existing, err := tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if existing == nil {
			return &core.NotFoundError{Entity: "invoice", ID: invoiceID}
		}
		if existing.Status == core.InvoicePaid {
			return &core.InvalidStateError{
				Entity:    "invoice",
				ID:        invoiceID,
				State:     string(existing.Status),
				Operation: "regenerate",
			}
		}

		if err := tx.DeleteInvoice(ctx, existing.ID); err != nil {
			return err
		}

		cust, err := tx.GetCustomer(ctx, existing.CustomerID)
		if err != nil {
			return err
		}
		if cust == nil {
			return &core.NotFoundError{Entity: "customer", ID: existing.CustomerID}
		}
		sched, err := tx.ActiveSchedule(ctx)
		if err != nil {
			return err
		}
		if sched == nil {
			return core.ErrNoActiveTariff
		}

		inv, err := g.buildInvoice(ctx, tx, cust, sched, existing.Period)
		if err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.recordAudit(ctx, "force_regenerate", invoice)
	return invoice, nil
}

func (g *Generator) recordAudit(ctx context.Context, action string, inv *core.Invoice) {
	if inv == nil {
		return
	}
	if err := g.audit.Record(ctx, core.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Module:    "invoicing",
		Entity:    "invoice",
		RecordID:  inv.ID,
		Action:    action,
		Detail: map[string]any{
			"customer": inv.CustomerID,
			"period":   inv.Period.String(),
			"total":    inv.Total.String(),
		},
	}); err != nil {
		log.Printf("[Invoicing] audit record failed for %s: %v", inv.ID, err)
	}
}

// String implements fmt.Stringer for bulk results (used by logs).
func (r BulkResult) String() string {
	return fmt.Sprintf("generated=%d skipped=%d failed=%d", r.Generated, r.Skipped, r.Failed)
}
