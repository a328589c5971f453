// Package store provides an in-memory core.Store implementation.
//
// Memory is a test double: it honors the store contracts including WithTx
// rollback (via snapshot/restore), but it is not safe for concurrent use
// inside a transaction and keeps everything in process memory. Production
// uses store/sqlite.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hidrosur/billing-engine/core"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	customers map[string]core.Customer // stored without meter attached
	meters    map[string]core.Meter
	readings  []core.Reading
	schedules map[string]core.TariffSchedule
	invoices  map[string]core.Invoice
	charges   map[string][]core.InvoiceExtraCharge
	plans     map[string]core.ReconnectionPlan
	payments  map[string]core.Payment
	history   []core.StateChange
	configs   map[string]core.ServiceStateConfig
	audit     []core.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		customers: make(map[string]core.Customer),
		meters:    make(map[string]core.Meter),
		schedules: make(map[string]core.TariffSchedule),
		invoices:  make(map[string]core.Invoice),
		charges:   make(map[string][]core.InvoiceExtraCharge),
		plans:     make(map[string]core.ReconnectionPlan),
		payments:  make(map[string]core.Payment),
		configs:   make(map[string]core.ServiceStateConfig),
	}
}

// =============================================================================
// TRANSACTIONS - snapshot/restore, same pattern as the prior memory ledger
// =============================================================================

// WithTx simulates a transaction with a full snapshot and restore-on-error.
// Nested calls run in the same "transaction" (they snapshot again, which is
// harmless). Not atomic with respect to concurrent readers.
func (m *Memory) WithTx(ctx context.Context, fn func(core.Store) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	customers map[string]core.Customer
	meters    map[string]core.Meter
	readings  []core.Reading
	schedules map[string]core.TariffSchedule
	invoices  map[string]core.Invoice
	charges   map[string][]core.InvoiceExtraCharge
	plans     map[string]core.ReconnectionPlan
	payments  map[string]core.Payment
	history   []core.StateChange
	configs   map[string]core.ServiceStateConfig
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := memorySnapshot{
		customers: make(map[string]core.Customer, len(m.customers)),
		meters:    make(map[string]core.Meter, len(m.meters)),
		readings:  append([]core.Reading(nil), m.readings...),
		schedules: make(map[string]core.TariffSchedule, len(m.schedules)),
		invoices:  make(map[string]core.Invoice, len(m.invoices)),
		charges:   make(map[string][]core.InvoiceExtraCharge, len(m.charges)),
		plans:     make(map[string]core.ReconnectionPlan, len(m.plans)),
		payments:  make(map[string]core.Payment, len(m.payments)),
		history:   append([]core.StateChange(nil), m.history...),
		configs:   make(map[string]core.ServiceStateConfig, len(m.configs)),
	}
	for k, v := range m.customers {
		s.customers[k] = v
	}
	for k, v := range m.meters {
		s.meters[k] = v
	}
	for k, v := range m.schedules {
		s.schedules[k] = copySchedule(v)
	}
	for k, v := range m.invoices {
		s.invoices[k] = copyInvoice(v)
	}
	for k, v := range m.charges {
		s.charges[k] = append([]core.InvoiceExtraCharge(nil), v...)
	}
	for k, v := range m.plans {
		s.plans[k] = copyPlan(v)
	}
	for k, v := range m.payments {
		s.payments[k] = v
	}
	for k, v := range m.configs {
		s.configs[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.customers = s.customers
	m.meters = s.meters
	m.readings = s.readings
	m.schedules = s.schedules
	m.invoices = s.invoices
	m.charges = s.charges
	m.plans = s.plans
	m.payments = s.payments
	m.history = s.history
	m.configs = s.configs
}

func copySchedule(s core.TariffSchedule) core.TariffSchedule {
	s.Concepts = append([]core.FixedConcept(nil), s.Concepts...)
	s.Tiers = append([]core.ConsumptionTier(nil), s.Tiers...)
	s.Charges = append([]core.ExtraCharge(nil), s.Charges...)
	return s
}

func copyInvoice(inv core.Invoice) core.Invoice {
	inv.Breakdown = append([]core.TierLine(nil), inv.Breakdown...)
	return inv
}

func copyPlan(p core.ReconnectionPlan) core.ReconnectionPlan {
	p.Installments = append([]core.Installment(nil), p.Installments...)
	return p
}

// =============================================================================
// CUSTOMER STORE
// =============================================================================

func (m *Memory) GetCustomer(_ context.Context, id string) (*core.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	cust := c
	cust.Meter = m.activeMeterLocked(id)
	return &cust, nil
}

func (m *Memory) ListActiveCustomers(_ context.Context) ([]core.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Customer
	for _, c := range m.customers {
		if !c.Active {
			continue
		}
		cust := c
		cust.Meter = m.activeMeterLocked(c.ID)
		out = append(out, cust)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) activeMeterLocked(customerID string) *core.Meter {
	for _, mt := range m.meters {
		if mt.CustomerID == customerID && mt.Active {
			meter := mt
			return &meter
		}
	}
	return nil
}

func (m *Memory) SaveCustomer(_ context.Context, c core.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.Meter != nil {
		m.meters[c.Meter.ID] = *c.Meter
	}
	c.Meter = nil
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) SaveMeter(_ context.Context, mt core.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meters[mt.ID] = mt
	return nil
}

func (m *Memory) UpdateServiceState(_ context.Context, c core.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.customers[c.ID]
	if !ok {
		return &core.NotFoundError{Entity: "customer", ID: c.ID}
	}
	stored.ServiceState = c.ServiceState
	stored.HasActiveDebtNotice = c.HasActiveDebtNotice
	stored.HasActiveCutoffNotice = c.HasActiveCutoffNotice
	stored.ServiceCut = c.ServiceCut
	stored.DebtNoticeAt = c.DebtNoticeAt
	stored.CutoffNoticeAt = c.CutoffNoticeAt
	stored.CutoffAt = c.CutoffAt
	stored.LastReconnectionAt = c.LastReconnectionAt
	m.customers[c.ID] = stored
	return nil
}

// =============================================================================
// READING STORE
// =============================================================================

func (m *Memory) LatestReading(_ context.Context, meterID string, period core.BillingPeriod) (*core.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *core.Reading
	for i := range m.readings {
		r := m.readings[i]
		if r.MeterID != meterID || !r.Period().Equal(period) {
			continue
		}
		if latest == nil || r.TakenAt.After(latest.TakenAt) {
			reading := r
			latest = &reading
		}
	}
	return latest, nil
}

func (m *Memory) SaveReading(_ context.Context, r core.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.readings {
		if m.readings[i].ID == r.ID {
			m.readings[i] = r
			return nil
		}
	}
	m.readings = append(m.readings, r)
	return nil
}

// =============================================================================
// TARIFF STORE
// =============================================================================

func (m *Memory) ActiveSchedule(_ context.Context) (*core.TariffSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.schedules {
		if s.Active {
			sched := copySchedule(s)
			sortTiers(&sched)
			return &sched, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveSchedule(_ context.Context, s core.TariffSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = copySchedule(s)
	return nil
}

func sortTiers(s *core.TariffSchedule) {
	sort.Slice(s.Tiers, func(i, j int) bool {
		if s.Tiers[i].Class != s.Tiers[j].Class {
			return s.Tiers[i].Class < s.Tiers[j].Class
		}
		return s.Tiers[i].FromVol.LessThan(s.Tiers[j].FromVol)
	})
}

// =============================================================================
// INVOICE STORE
// =============================================================================

func (m *Memory) GetInvoice(_ context.Context, id string) (*core.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invoices[id]
	if !ok {
		return nil, nil
	}
	out := copyInvoice(inv)
	return &out, nil
}

func (m *Memory) InvoiceForPeriod(_ context.Context, customerID string, period core.BillingPeriod) (*core.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, inv := range m.invoices {
		if inv.CustomerID == customerID && inv.Period.Equal(period) && inv.Status != core.InvoiceVoided {
			out := copyInvoice(inv)
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveInvoice(_ context.Context, inv *core.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = copyInvoice(*inv)
	return nil
}

func (m *Memory) DeleteInvoice(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.invoices, id)
	delete(m.charges, id)
	return nil
}

func (m *Memory) AddInvoiceCharge(_ context.Context, c core.InvoiceExtraCharge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges[c.InvoiceID] = append(m.charges[c.InvoiceID], c)
	return nil
}

func (m *Memory) InvoiceCharges(_ context.Context, invoiceID string) ([]core.InvoiceExtraCharge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.InvoiceExtraCharge(nil), m.charges[invoiceID]...), nil
}

func (m *Memory) InvoicesByCustomer(_ context.Context, customerID string) ([]core.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Invoice
	for _, inv := range m.invoices {
		if inv.CustomerID == customerID {
			out = append(out, copyInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) OverdueInvoices(_ context.Context, customerID string) ([]core.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Invoice
	for _, inv := range m.invoices {
		if inv.CustomerID == customerID && inv.Status == core.InvoiceOverdue {
			out = append(out, copyInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CountOverdue(_ context.Context, customerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, inv := range m.invoices {
		if inv.CustomerID == customerID && inv.Status == core.InvoiceOverdue {
			n++
		}
	}
	return n, nil
}

func (m *Memory) MarkOverdue(_ context.Context, customerID string, asOf time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, inv := range m.invoices {
		if inv.CustomerID == customerID && inv.Status == core.InvoicePending && asOf.After(inv.DueDate) {
			inv.Status = core.InvoiceOverdue
			m.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

// =============================================================================
// PLAN STORE
// =============================================================================

func (m *Memory) SavePlan(_ context.Context, p *core.ReconnectionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = copyPlan(*p)
	return nil
}

func (m *Memory) ActivePlan(_ context.Context, customerID string) (*core.ReconnectionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.plans {
		if p.CustomerID == customerID && p.Status == core.PlanActive {
			plan := copyPlan(p)
			sort.Slice(plan.Installments, func(i, j int) bool {
				return plan.Installments[i].Number < plan.Installments[j].Number
			})
			return &plan, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetPlan(_ context.Context, id string) (*core.ReconnectionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plans[id]
	if !ok {
		return nil, nil
	}
	plan := copyPlan(p)
	return &plan, nil
}

func (m *Memory) SaveInstallment(_ context.Context, inst core.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plans[inst.PlanID]
	if !ok {
		return &core.NotFoundError{Entity: "reconnection plan", ID: inst.PlanID}
	}
	for i := range p.Installments {
		if p.Installments[i].ID == inst.ID {
			p.Installments[i] = inst
			m.plans[p.ID] = p
			return nil
		}
	}
	p.Installments = append(p.Installments, inst)
	m.plans[p.ID] = p
	return nil
}

// =============================================================================
// PAYMENT STORE
// =============================================================================

func (m *Memory) SavePayment(_ context.Context, p core.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id string) (*core.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) PaymentsByInvoice(_ context.Context, invoiceID string) ([]core.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// HISTORY STORE
// =============================================================================

func (m *Memory) AppendStateChange(_ context.Context, sc core.StateChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, sc)
	return nil
}

func (m *Memory) StateHistory(_ context.Context, customerID string) ([]core.StateChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.StateChange
	for _, sc := range m.history {
		if sc.CustomerID == customerID {
			out = append(out, sc)
		}
	}
	return out, nil
}

// =============================================================================
// CONFIG STORE
// =============================================================================

func (m *Memory) ActiveConfig(_ context.Context) (*core.ServiceStateConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, cfg := range m.configs {
		if cfg.Active {
			c := cfg
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveConfig(_ context.Context, cfg core.ServiceStateConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.ID] = cfg
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) Record(_ context.Context, entry core.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// AuditEntries returns recorded audit entries (test inspection).
func (m *Memory) AuditEntries() []core.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.AuditEntry(nil), m.audit...)
}
