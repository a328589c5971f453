package payments_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hidrosur/billing-engine/collections"
	"github.com/hidrosur/billing-engine/core"
	memstore "github.com/hidrosur/billing-engine/core/store"
	"github.com/hidrosur/billing-engine/payments"
	"github.com/hidrosur/billing-engine/reconnection"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var dueDate = time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memstore.Memory
	settler *payments.Settler
	manager *reconnection.Manager
}

func newFixture(t *testing.T) fixture {
	st := memstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.SaveConfig(ctx, core.DefaultServiceStateConfig()))
	require.NoError(t, st.SaveSchedule(ctx, core.TariffSchedule{
		ID:        "sched-1",
		Name:      "Tarifa general",
		ValidFrom: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		Active:    true,
		Charges: []core.ExtraCharge{
			{ID: "x-mora", ScheduleID: "sched-1", Code: core.ChargeCodeMora, Name: "Recargo por mora", Amount: core.NewMoneyFromInt(400), Mode: core.ChargeAutomatic},
		},
	}))

	machine := collections.NewMachine(st, st)
	manager := reconnection.NewManager(st, machine, st)
	settler := payments.NewSettler(st, manager, machine, st)
	return fixture{store: st, settler: settler, manager: manager}
}

func (f fixture) saveCustomer(t *testing.T, id string, state core.ServiceState) {
	cust := core.Customer{
		ID:           id,
		Name:         "Cliente " + id,
		Class:        core.ClassResidential,
		Active:       true,
		ServiceState: state,
		CreatedAt:    time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
	if state != core.StateActive {
		noticeAt := dueDate.AddDate(0, -1, 0)
		cust.HasActiveDebtNotice = true
		cust.DebtNoticeAt = &noticeAt
	}
	require.NoError(t, f.store.SaveCustomer(context.Background(), cust))
}

func (f fixture) saveInvoice(t *testing.T, id, customerID string, total int64, status core.InvoiceStatus) *core.Invoice {
	inv := &core.Invoice{
		ID:                  id,
		CustomerID:          customerID,
		ScheduleID:          "sched-1",
		Period:              core.NewBillingPeriod(time.March, 2026),
		Subtotal:            core.NewMoneyFromInt(total),
		DueDate:             dueDate,
		Status:              status,
		ServiceStateAtIssue: core.StateActive,
		CreatedAt:           dueDate.AddDate(0, -1, 0),
	}
	inv.RecomputeTotal()
	require.NoError(t, f.store.SaveInvoice(context.Background(), inv))
	return inv
}

// =============================================================================
// SETTLEMENT TESTS
// =============================================================================

func TestSettle_OnTime(t *testing.T) {
	// GIVEN: A 10000 invoice paid on its due date
	// WHEN: Settling with the exact amount
	// THEN: No surcharge, invoice PAID, payment APPROVED

	f := newFixture(t)
	ctx := context.Background()
	f.saveCustomer(t, "cust-1", core.StateActive)
	f.saveInvoice(t, "inv-1", "cust-1", 10000, core.InvoicePending)

	result, err := f.settler.Settle(ctx, "inv-1", core.NewMoneyFromInt(10000), dueDate, core.PayCash, "cashier")
	require.NoError(t, err)
	assert.False(t, result.SurchargeApplied)
	assert.True(t, result.RequiredTotal.Equal(core.NewMoneyFromInt(10000)))

	inv, _ := f.store.GetInvoice(ctx, "inv-1")
	assert.Equal(t, core.InvoicePaid, inv.Status)
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, dueDate, *inv.PaidAt)

	payment, err := f.store.GetPayment(ctx, result.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, core.PaymentApproved, payment.Status)
	assert.Equal(t, "cashier", payment.ApprovedBy)
}

func TestSettle_LateAddsMora(t *testing.T) {
	// GIVEN: A 10000 invoice paid one day after its due date
	// WHEN: Paying 10400
	// THEN: The 400 mora surcharge is appended and the payment settles

	f := newFixture(t)
	ctx := context.Background()
	f.saveCustomer(t, "cust-1", core.StateActive)
	f.saveInvoice(t, "inv-1", "cust-1", 10000, core.InvoicePending)

	paidAt := dueDate.AddDate(0, 0, 1)
	result, err := f.settler.Settle(ctx, "inv-1", core.NewMoneyFromInt(10400), paidAt, core.PayCash, "cashier")
	require.NoError(t, err)
	assert.True(t, result.SurchargeApplied)
	assert.True(t, result.Surcharge.Equal(core.NewMoneyFromInt(400)))
	assert.True(t, result.RequiredTotal.Equal(core.NewMoneyFromInt(10400)))

	inv, _ := f.store.GetInvoice(ctx, "inv-1")
	assert.Equal(t, core.InvoicePaid, inv.Status)
	assert.True(t, inv.Total.Equal(core.NewMoneyFromInt(10400)))

	charges, err := f.store.InvoiceCharges(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, charges, 1)
	assert.Equal(t, core.ChargeCodeMora, charges[0].ChargeCode)
}

func TestSettle_InsufficientLatePaymentRollsBack(t *testing.T) {
	// GIVEN: A 10000 invoice paid late, making 10400 the real amount owed
	// WHEN: Paying only the face value 10000
	// THEN: Refused with the surcharged total, and no surcharge row persists

	f := newFixture(t)
	ctx := context.Background()
	f.saveCustomer(t, "cust-1", core.StateActive)
	f.saveInvoice(t, "inv-1", "cust-1", 10000, core.InvoicePending)

	paidAt := dueDate.AddDate(0, 0, 1)
	_, err := f.settler.Settle(ctx, "inv-1", core.NewMoneyFromInt(10000), paidAt, core.PayCash, "cashier")
	require.Error(t, err)

	var ipe *core.InsufficientPaymentError
	require.ErrorAs(t, err, &ipe)
	assert.True(t, ipe.Required.Equal(core.NewMoneyFromInt(10400)))
	assert.True(t, ipe.Paid.Equal(core.NewMoneyFromInt(10000)))

	// The rejected attempt leaves the invoice exactly as it was.
	inv, _ := f.store.GetInvoice(ctx, "inv-1")
	assert.Equal(t, core.InvoicePending, inv.Status)
	assert.True(t, inv.Total.Equal(core.NewMoneyFromInt(10000)))

	charges, _ := f.store.InvoiceCharges(ctx, "inv-1")
	assert.Empty(t, charges)
}

func TestSettle_MoraDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := core.DefaultServiceStateConfig()
	cfg.MoraEnabled = false
	require.NoError(t, f.store.SaveConfig(ctx, cfg))

	f.saveCustomer(t, "cust-1", core.StateActive)
	f.saveInvoice(t, "inv-1", "cust-1", 10000, core.InvoicePending)

	result, err := f.settler.Settle(ctx, "inv-1", core.NewMoneyFromInt(10000), dueDate.AddDate(0, 0, 30), core.PayCash, "cashier")
	require.NoError(t, err)
	assert.False(t, result.SurchargeApplied)
}

func TestSettle_AlreadyPaid(t *testing.T) {
	f := newFixture(t)
	f.saveCustomer(t, "cust-1", core.StateActive)
	f.saveInvoice(t, "inv-1", "cust-1", 10000, core.InvoicePaid)

	_, err := f.settler.Settle(context.Background(), "inv-1", core.NewMoneyFromInt(10000), dueDate, core.PayCash, "cashier")
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestSettle_UnknownMethod(t *testing.T) {
	f := newFixture(t)

	_, err := f.settler.Settle(context.Background(), "inv-1", core.NewMoneyFromInt(10000), dueDate, core.PaymentMethod("BARTER"), "cashier")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSettle_RegularizesOnceDebtCleared(t *testing.T) {
	// GIVEN: A DEBT_NOTICE customer whose single OVERDUE invoice is settled
	// WHEN: The payment covers the surcharged total
	// THEN: The customer returns to ACTIVE in the same transaction

	f := newFixture(t)
	ctx := context.Background()
	f.saveCustomer(t, "cust-1", core.StateDebtNotice)
	f.saveInvoice(t, "inv-1", "cust-1", 10000, core.InvoiceOverdue)

	paidAt := dueDate.AddDate(0, 0, 5)
	result, err := f.settler.Settle(ctx, "inv-1", core.NewMoneyFromInt(10400), paidAt, core.PayTransfer, "cashier")
	require.NoError(t, err)
	assert.True(t, result.Regularized)

	cust, _ := f.store.GetCustomer(ctx, "cust-1")
	assert.Equal(t, core.StateActive, cust.ServiceState)
	assert.False(t, cust.HasActiveDebtNotice)
	assert.Nil(t, cust.DebtNoticeAt)
}

func TestSettle_NoRegularizationWhileDebtRemains(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveCustomer(t, "cust-1", core.StateDebtNotice)
	f.saveInvoice(t, "inv-1", "cust-1", 10000, core.InvoiceOverdue)
	f.saveInvoice(t, "inv-2", "cust-1", 12000, core.InvoiceOverdue)

	result, err := f.settler.Settle(ctx, "inv-1", core.NewMoneyFromInt(10400), dueDate.AddDate(0, 0, 5), core.PayCash, "cashier")
	require.NoError(t, err)
	assert.False(t, result.Regularized)

	cust, _ := f.store.GetCustomer(ctx, "cust-1")
	assert.Equal(t, core.StateDebtNotice, cust.ServiceState)
}

func TestSettle_MarksCarriedInstallment(t *testing.T) {
	// GIVEN: An invoice carrying installment 1 of a 2-part plan
	// WHEN: The invoice settles
	// THEN: The installment is PAID and the plan stays active

	f := newFixture(t)
	ctx := context.Background()
	f.saveCustomer(t, "cust-1", core.StateActive)

	cust, _ := f.store.GetCustomer(ctx, "cust-1")
	cust.ServiceState = core.StateCutoff
	cust.ServiceCut = true
	require.NoError(t, f.store.UpdateServiceState(ctx, *cust))
	_, err := f.manager.Process(ctx, "cust-1", false, 2, "admin")
	require.NoError(t, err)

	inv := f.saveInvoice(t, "inv-1", "cust-1", 10000, core.InvoicePending)
	require.NoError(t, f.manager.AttachNextInstallment(ctx, f.store, inv))
	inv.RecomputeTotal()
	require.NoError(t, f.store.SaveInvoice(ctx, inv))

	// 10000 subtotal + 37000 installment.
	_, err = f.settler.Settle(ctx, "inv-1", core.NewMoneyFromInt(47000), dueDate, core.PayCash, "cashier")
	require.NoError(t, err)

	plan, err := f.store.ActivePlan(ctx, "cust-1")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, core.InstallmentPaid, plan.Installments[0].Status)
	assert.Equal(t, 1, plan.PendingCount())
}

// =============================================================================
// PROCESSING LIFECYCLE TESTS
// =============================================================================

func TestBegin_MovesInvoiceToProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveCustomer(t, "cust-1", core.StateActive)
	f.saveInvoice(t, "inv-1", "cust-1", 10000, core.InvoicePending)

	payment, err := f.settler.Begin(ctx, "inv-1", core.NewMoneyFromInt(10000), core.PayTransfer, "bank ref 4451")
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPending, payment.Status)
	assert.Equal(t, "bank ref 4451", payment.Notes)

	inv, _ := f.store.GetInvoice(ctx, "inv-1")
	assert.Equal(t, core.InvoiceProcessing, inv.Status)

	// A second attempt while processing is refused.
	_, err = f.settler.Begin(ctx, "inv-1", core.NewMoneyFromInt(10000), core.PayTransfer, "")
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestApprove_SettlesThroughNormalPath(t *testing.T) {
	// GIVEN: A pending transfer recorded before the due date
	// WHEN: An operator approves it
	// THEN: The invoice settles using the payment's original date and amount

	f := newFixture(t)
	ctx := context.Background()
	f.saveCustomer(t, "cust-1", core.StateActive)
	f.saveInvoice(t, "inv-1", "cust-1", 10000, core.InvoicePending)

	payment, err := f.settler.Begin(ctx, "inv-1", core.NewMoneyFromInt(10000), core.PayTransfer, "")
	require.NoError(t, err)

	result, err := f.settler.Approve(ctx, payment.ID, "supervisor")
	require.NoError(t, err)
	assert.Equal(t, payment.ID, result.PaymentID)

	inv, _ := f.store.GetInvoice(ctx, "inv-1")
	assert.Equal(t, core.InvoicePaid, inv.Status)

	settled, _ := f.store.GetPayment(ctx, payment.ID)
	assert.Equal(t, core.PaymentApproved, settled.Status)
	assert.Equal(t, "supervisor", settled.ApprovedBy)
}

func TestApprove_InsufficientLeavesProcessing(t *testing.T) {
	// An approval that fails the sufficiency check rolls back whole, leaving
	// the payment PENDING and the invoice PROCESSING for the operator.
	f := newFixture(t)
	ctx := context.Background()
	f.saveCustomer(t, "cust-1", core.StateActive)

	inv := f.saveInvoice(t, "inv-1", "cust-1", 10000, core.InvoicePending)
	inv.DueDate = dueDate.AddDate(0, -2, 0)
	require.NoError(t, f.store.SaveInvoice(ctx, inv))

	payment, err := f.settler.Begin(ctx, "inv-1", core.NewMoneyFromInt(10000), core.PayTransfer, "")
	require.NoError(t, err)

	_, err = f.settler.Approve(ctx, payment.ID, "supervisor")
	var ipe *core.InsufficientPaymentError
	require.ErrorAs(t, err, &ipe)

	got, _ := f.store.GetPayment(ctx, payment.ID)
	assert.Equal(t, core.PaymentPending, got.Status)
	invAfter, _ := f.store.GetInvoice(ctx, "inv-1")
	assert.Equal(t, core.InvoiceProcessing, invAfter.Status)
}

func TestReject_RevertsInvoiceToPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveCustomer(t, "cust-1", core.StateActive)
	f.saveInvoice(t, "inv-1", "cust-1", 10000, core.InvoicePending)

	payment, err := f.settler.Begin(ctx, "inv-1", core.NewMoneyFromInt(10000), core.PayTransfer, "")
	require.NoError(t, err)

	require.NoError(t, f.settler.Reject(ctx, payment.ID, "transfer never arrived", "supervisor"))

	got, _ := f.store.GetPayment(ctx, payment.ID)
	assert.Equal(t, core.PaymentRejected, got.Status)
	assert.Equal(t, "transfer never arrived", got.Notes)

	inv, _ := f.store.GetInvoice(ctx, "inv-1")
	assert.Equal(t, core.InvoicePending, inv.Status)

	// Rejecting twice is refused.
	err = f.settler.Reject(ctx, payment.ID, "", "supervisor")
	assert.ErrorIs(t, err, core.ErrInvalidState)
}
