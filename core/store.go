/*
store.go - Persistence contracts for the billing engine

PURPOSE:
  Defines the interface between the billing services and the database.
  Services depend only on these interfaces; the SQLite implementation lives
  in store/sqlite and an in-memory implementation in core/store for tests.

CONVENTIONS:
  - Single-record getters return (nil, nil) when the record doesn't exist;
    services wrap that into a NotFoundError with domain context.
  - Save* methods are upserts.
  - WithTx executes fn atomically: everything a billing operation writes
    (invoice + charges + installment binding + state change) commits or
    rolls back together. A store passed to fn is already transactional;
    nested WithTx calls run in the same transaction.

MUTATION OWNERSHIP:
  - Customer service-state fields are written only via UpdateServiceState,
    and only the collections machine (directly or through the reconnection
    manager) calls it.
  - Invoice rows are deleted only by the generator's stale-invoice
    replacement and force-regenerate; paid invoices are never deleted.
*/
package core

import (
	"context"
	"time"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// CustomerStore is the customer directory consumed by the engine.
type CustomerStore interface {
	// GetCustomer returns the customer with its active meter attached.
	GetCustomer(ctx context.Context, id string) (*Customer, error)

	// ListActiveCustomers returns all active residential and public-entity
	// customers, meters attached.
	ListActiveCustomers(ctx context.Context) ([]Customer, error)

	SaveCustomer(ctx context.Context, c Customer) error
	SaveMeter(ctx context.Context, m Meter) error

	// UpdateServiceState persists only the service-state fields (state,
	// notice/cutoff flags, transition timestamps).
	UpdateServiceState(ctx context.Context, c Customer) error
}

// ReadingStore is the meter/reading collaborator.
type ReadingStore interface {
	// LatestReading returns the most recent reading recorded for the meter
	// in the given billing period, nil if none exists.
	LatestReading(ctx context.Context, meterID string, period BillingPeriod) (*Reading, error)

	SaveReading(ctx context.Context, r Reading) error
}

// TariffStore resolves tariff schedules.
type TariffStore interface {
	// ActiveSchedule returns the currently active schedule fully loaded
	// (concepts, tiers ordered ascending, charge catalog), nil if none.
	ActiveSchedule(ctx context.Context) (*TariffSchedule, error)

	SaveSchedule(ctx context.Context, s TariffSchedule) error
}

// InvoiceStore persists invoices with their frozen breakdowns and charges.
type InvoiceStore interface {
	// GetInvoice returns the invoice fully loaded with its tier breakdown.
	GetInvoice(ctx context.Context, id string) (*Invoice, error)

	// InvoiceForPeriod returns the customer's invoice for the period,
	// excluding VOIDED ones, nil if none.
	InvoiceForPeriod(ctx context.Context, customerID string, period BillingPeriod) (*Invoice, error)

	// SaveInvoice upserts the invoice and replaces its tier breakdown.
	SaveInvoice(ctx context.Context, inv *Invoice) error

	// DeleteInvoice removes the invoice with its breakdown and charges.
	DeleteInvoice(ctx context.Context, id string) error

	AddInvoiceCharge(ctx context.Context, c InvoiceExtraCharge) error
	InvoiceCharges(ctx context.Context, invoiceID string) ([]InvoiceExtraCharge, error)

	InvoicesByCustomer(ctx context.Context, customerID string) ([]Invoice, error)

	// OverdueInvoices returns the customer's OVERDUE invoices.
	OverdueInvoices(ctx context.Context, customerID string) ([]Invoice, error)

	// CountOverdue counts the customer's OVERDUE invoices.
	CountOverdue(ctx context.Context, customerID string) (int, error)

	// MarkOverdue flips the customer's past-due PENDING invoices to
	// OVERDUE and returns how many changed.
	MarkOverdue(ctx context.Context, customerID string, asOf time.Time) (int, error)
}

// PlanStore persists reconnection plans and their installments.
type PlanStore interface {
	// SavePlan upserts the plan and its installments.
	SavePlan(ctx context.Context, p *ReconnectionPlan) error

	// ActivePlan returns the customer's ACTIVE plan with installments
	// ordered by number, nil if none.
	ActivePlan(ctx context.Context, customerID string) (*ReconnectionPlan, error)

	GetPlan(ctx context.Context, id string) (*ReconnectionPlan, error)
	SaveInstallment(ctx context.Context, inst Installment) error
}

// PaymentStore persists payment records.
type PaymentStore interface {
	SavePayment(ctx context.Context, p Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)
	PaymentsByInvoice(ctx context.Context, invoiceID string) ([]Payment, error)
}

// HistoryStore is the append-only service-state transition log.
type HistoryStore interface {
	AppendStateChange(ctx context.Context, sc StateChange) error
	StateHistory(ctx context.Context, customerID string) ([]StateChange, error)
}

// ConfigStore resolves the singleton service-state configuration.
type ConfigStore interface {
	// ActiveConfig returns the active configuration, nil if none.
	ActiveConfig(ctx context.Context) (*ServiceStateConfig, error)

	SaveConfig(ctx context.Context, cfg ServiceStateConfig) error
}

// Store aggregates every persistence concern plus transactional execution.
type Store interface {
	CustomerStore
	ReadingStore
	TariffStore
	InvoiceStore
	PlanStore
	PaymentStore
	HistoryStore
	ConfigStore

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUDIT LOG - Best-effort, never blocks a billing operation
// =============================================================================

type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Actor     string
	Module    string // "invoicing", "collections", "reconnection", "payments"
	Entity    string
	RecordID  string
	Action    string
	Detail    map[string]any
}

// AuditLog records who did what. Failures are logged by callers and never
// propagated: auditing must not block billing.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// NopAuditLog discards entries. Used in tests and when auditing is disabled.
type NopAuditLog struct{}

func (NopAuditLog) Record(ctx context.Context, entry AuditEntry) error { return nil }
