package collections_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hidrosur/billing-engine/collections"
	"github.com/hidrosur/billing-engine/core"
	memstore "github.com/hidrosur/billing-engine/core/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var sweepTime = time.Date(2026, time.March, 15, 8, 0, 0, 0, time.UTC)

func newTestMachine(t *testing.T) (*collections.Machine, *memstore.Memory) {
	st := memstore.NewMemory()
	require.NoError(t, st.SaveConfig(context.Background(), core.DefaultServiceStateConfig()))
	return collections.NewMachine(st, st), st
}

func saveCustomer(t *testing.T, st *memstore.Memory, id string, state core.ServiceState) {
	require.NoError(t, st.SaveCustomer(context.Background(), core.Customer{
		ID:           id,
		Name:         "Cliente " + id,
		Class:        core.ClassResidential,
		Active:       true,
		ServiceState: state,
		CreatedAt:    sweepTime.AddDate(-1, 0, 0),
	}))
}

// savePastDueInvoice stores a PENDING invoice whose due date has elapsed.
func savePastDueInvoice(t *testing.T, st *memstore.Memory, id, customerID string, total int64) {
	inv := &core.Invoice{
		ID:                  id,
		CustomerID:          customerID,
		ScheduleID:          "sched-1",
		Period:              core.NewBillingPeriod(time.January, 2026),
		Subtotal:            core.NewMoneyFromInt(total),
		DueDate:             sweepTime.AddDate(0, -1, 0),
		Status:              core.InvoicePending,
		ServiceStateAtIssue: core.StateActive,
		CreatedAt:           sweepTime.AddDate(0, -1, -5),
	}
	inv.RecomputeTotal()
	require.NoError(t, st.SaveInvoice(context.Background(), inv))
}

func timePtr(t time.Time) *time.Time { return &t }

// =============================================================================
// TRANSITION RULE TESTS
// =============================================================================

func TestNextState_ActiveToDebtNotice(t *testing.T) {
	cfg := core.DefaultServiceStateConfig()

	// One overdue invoice is not enough.
	_, advance := collections.NextState(core.StateActive, collections.Facts{OverdueCount: 1, Now: sweepTime}, cfg)
	assert.False(t, advance)

	// Two overdue invoices trigger the notice.
	next, advance := collections.NextState(core.StateActive, collections.Facts{OverdueCount: 2, Now: sweepTime}, cfg)
	assert.True(t, advance)
	assert.Equal(t, core.StateDebtNotice, next)
}

func TestNextState_DebtNoticeToCutoffNotice(t *testing.T) {
	cfg := core.DefaultServiceStateConfig()
	noticeAt := sweepTime.AddDate(0, 0, -15)

	next, advance := collections.NextState(core.StateDebtNotice,
		collections.Facts{OverdueCount: 2, DebtNoticeAt: timePtr(noticeAt), Now: sweepTime}, cfg)
	assert.True(t, advance)
	assert.Equal(t, core.StateCutoffNotice, next)

	// 14 days is not enough.
	_, advance = collections.NextState(core.StateDebtNotice,
		collections.Facts{OverdueCount: 2, DebtNoticeAt: timePtr(sweepTime.AddDate(0, 0, -14)), Now: sweepTime}, cfg)
	assert.False(t, advance)
}

func TestNextState_CutoffNoticeToCutoff(t *testing.T) {
	cfg := core.DefaultServiceStateConfig()

	next, advance := collections.NextState(core.StateCutoffNotice,
		collections.Facts{OverdueCount: 2, CutoffNoticeAt: timePtr(sweepTime.AddDate(0, 0, -2)), Now: sweepTime}, cfg)
	assert.True(t, advance)
	assert.Equal(t, core.StateCutoff, next)
}

func TestNextState_CutoffIsTerminal(t *testing.T) {
	// GIVEN: A customer already in CUTOFF with mounting debt
	// WHEN: Evaluating transitions far in the future
	// THEN: No automatic transition ever leaves CUTOFF

	cfg := core.DefaultServiceStateConfig()
	_, advance := collections.NextState(core.StateCutoff,
		collections.Facts{OverdueCount: 10, CutoffNoticeAt: timePtr(sweepTime.AddDate(0, -6, 0)), Now: sweepTime}, cfg)
	assert.False(t, advance)
}

// =============================================================================
// SWEEP TESTS
// =============================================================================

func TestSweep_MarksOverdueAndAdvances(t *testing.T) {
	// GIVEN: An ACTIVE customer with two past-due PENDING invoices
	// WHEN: Running the sweep
	// THEN: Both invoices flip to OVERDUE and the customer advances to DEBT_NOTICE

	machine, st := newTestMachine(t)
	ctx := context.Background()

	saveCustomer(t, st, "cust-1", core.StateActive)
	savePastDueInvoice(t, st, "inv-1", "cust-1", 10000)
	savePastDueInvoice(t, st, "inv-2", "cust-1", 12000)

	result, err := machine.Sweep(ctx, sweepTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Evaluated)
	assert.Equal(t, 1, result.Advanced)
	assert.Equal(t, 2, result.MarkedOverdue)
	assert.Equal(t, 0, result.Failed)

	cust, err := st.GetCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, core.StateDebtNotice, cust.ServiceState)
	assert.True(t, cust.HasActiveDebtNotice)
	require.NotNil(t, cust.DebtNoticeAt)
	assert.Equal(t, sweepTime, *cust.DebtNoticeAt)

	history, err := machine.History(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, core.StateActive, history[0].FromState)
	assert.Equal(t, core.StateDebtNotice, history[0].NewState)
	assert.True(t, history[0].Automatic)
}

func TestSweep_OneTransitionPerRun(t *testing.T) {
	// GIVEN: A customer whose facts would satisfy several transitions at once
	// WHEN: Running a single sweep
	// THEN: Only one forward step is taken

	machine, st := newTestMachine(t)
	ctx := context.Background()

	saveCustomer(t, st, "cust-1", core.StateActive)
	savePastDueInvoice(t, st, "inv-1", "cust-1", 10000)
	savePastDueInvoice(t, st, "inv-2", "cust-1", 12000)

	_, err := machine.Sweep(ctx, sweepTime)
	require.NoError(t, err)

	cust, _ := st.GetCustomer(ctx, "cust-1")
	assert.Equal(t, core.StateDebtNotice, cust.ServiceState, "single sweep advances exactly one step")
}

func TestSweep_FullProgressionToCutoff(t *testing.T) {
	// GIVEN: A delinquent customer swept repeatedly over time
	// WHEN: 15 days pass after the debt notice, then 2 more
	// THEN: DEBT_NOTICE -> CUTOFF_NOTICE -> CUTOFF, then the state holds

	machine, st := newTestMachine(t)
	ctx := context.Background()

	saveCustomer(t, st, "cust-1", core.StateActive)
	savePastDueInvoice(t, st, "inv-1", "cust-1", 10000)
	savePastDueInvoice(t, st, "inv-2", "cust-1", 12000)

	_, err := machine.Sweep(ctx, sweepTime)
	require.NoError(t, err)

	_, err = machine.Sweep(ctx, sweepTime.AddDate(0, 0, 15))
	require.NoError(t, err)
	cust, _ := st.GetCustomer(ctx, "cust-1")
	assert.Equal(t, core.StateCutoffNotice, cust.ServiceState)

	_, err = machine.Sweep(ctx, sweepTime.AddDate(0, 0, 17))
	require.NoError(t, err)
	cust, _ = st.GetCustomer(ctx, "cust-1")
	assert.Equal(t, core.StateCutoff, cust.ServiceState)
	assert.True(t, cust.ServiceCut)
	assert.True(t, cust.HasActiveDebtNotice, "notice flags persist through cutoff")

	// Months later, still CUTOFF.
	_, err = machine.Sweep(ctx, sweepTime.AddDate(0, 6, 0))
	require.NoError(t, err)
	cust, _ = st.GetCustomer(ctx, "cust-1")
	assert.Equal(t, core.StateCutoff, cust.ServiceState)

	history, _ := machine.History(ctx, "cust-1")
	assert.Len(t, history, 3)
}

func TestSweep_CurrentInvoicesStayPending(t *testing.T) {
	// GIVEN: A customer whose only invoice is not yet due
	// WHEN: Running the sweep
	// THEN: Nothing is marked and no transition happens

	machine, st := newTestMachine(t)
	ctx := context.Background()

	saveCustomer(t, st, "cust-1", core.StateActive)
	inv := &core.Invoice{
		ID:         "inv-1",
		CustomerID: "cust-1",
		Period:     core.NewBillingPeriod(time.March, 2026),
		Subtotal:   core.NewMoneyFromInt(10000),
		DueDate:    sweepTime.AddDate(0, 0, 10),
		Status:     core.InvoicePending,
		CreatedAt:  sweepTime,
	}
	inv.RecomputeTotal()
	require.NoError(t, st.SaveInvoice(ctx, inv))

	result, err := machine.Sweep(ctx, sweepTime)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Advanced)
	assert.Equal(t, 0, result.MarkedOverdue)

	got, _ := st.GetInvoice(ctx, "inv-1")
	assert.Equal(t, core.InvoicePending, got.Status)
}

func TestSweep_NoConfig(t *testing.T) {
	st := memstore.NewMemory()
	machine := collections.NewMachine(st, nil)

	_, err := machine.Sweep(context.Background(), sweepTime)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

// =============================================================================
// REGULARIZATION TESTS
// =============================================================================

func TestRegularize_RefusedWithDebt(t *testing.T) {
	// GIVEN: A DEBT_NOTICE customer with overdue debt of 22000
	// WHEN: Attempting manual regularization
	// THEN: Refused with the exact outstanding amount

	machine, st := newTestMachine(t)
	ctx := context.Background()

	saveCustomer(t, st, "cust-1", core.StateActive)
	savePastDueInvoice(t, st, "inv-1", "cust-1", 10000)
	savePastDueInvoice(t, st, "inv-2", "cust-1", 12000)
	_, err := machine.Sweep(ctx, sweepTime)
	require.NoError(t, err)

	err = machine.Regularize(ctx, "cust-1", "manual request", "admin")
	require.Error(t, err)

	var ode *core.OutstandingDebtError
	require.ErrorAs(t, err, &ode)
	assert.True(t, ode.Owed.Equal(core.NewMoneyFromInt(22000)), "owed should be 22000, got %v", ode.Owed)

	cust, _ := st.GetCustomer(ctx, "cust-1")
	assert.Equal(t, core.StateDebtNotice, cust.ServiceState, "state unchanged on refusal")
}

func TestRegularize_ClearsFlagsOnceDebtSettled(t *testing.T) {
	// GIVEN: A DEBT_NOTICE customer whose overdue invoices have been paid
	// WHEN: Regularizing
	// THEN: Customer returns to ACTIVE with all flags and timestamps cleared

	machine, st := newTestMachine(t)
	ctx := context.Background()

	saveCustomer(t, st, "cust-1", core.StateActive)
	savePastDueInvoice(t, st, "inv-1", "cust-1", 10000)
	savePastDueInvoice(t, st, "inv-2", "cust-1", 12000)
	_, err := machine.Sweep(ctx, sweepTime)
	require.NoError(t, err)

	for _, id := range []string{"inv-1", "inv-2"} {
		inv, _ := st.GetInvoice(ctx, id)
		inv.Status = core.InvoicePaid
		inv.PaidAt = timePtr(sweepTime)
		require.NoError(t, st.SaveInvoice(ctx, inv))
	}

	require.NoError(t, machine.Regularize(ctx, "cust-1", "debt settled", "admin"))

	cust, _ := st.GetCustomer(ctx, "cust-1")
	assert.Equal(t, core.StateActive, cust.ServiceState)
	assert.False(t, cust.HasActiveDebtNotice)
	assert.False(t, cust.ServiceCut)
	assert.Nil(t, cust.DebtNoticeAt)
}

func TestRegularize_NoopWhenActive(t *testing.T) {
	machine, st := newTestMachine(t)
	ctx := context.Background()

	saveCustomer(t, st, "cust-1", core.StateActive)
	require.NoError(t, machine.Regularize(ctx, "cust-1", "", ""))

	history, _ := machine.History(ctx, "cust-1")
	assert.Empty(t, history, "no transition recorded for a no-op")
}
