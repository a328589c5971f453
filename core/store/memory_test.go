package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hidrosur/billing-engine/core"
	"github.com/hidrosur/billing-engine/core/store"
)

func pendingInvoice(id, customerID string, due time.Time) *core.Invoice {
	inv := &core.Invoice{
		ID:         id,
		CustomerID: customerID,
		Period:     core.NewBillingPeriod(due.Month(), due.Year()).Previous(),
		Subtotal:   core.NewMoneyFromInt(10000),
		DueDate:    due,
		Status:     core.InvoicePending,
		CreatedAt:  due.AddDate(0, -1, 0),
	}
	inv.RecomputeTotal()
	return inv
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A store with one customer
	// WHEN: A transaction writes an invoice and then fails
	// THEN: None of its writes survive

	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.SaveCustomer(ctx, core.Customer{
		ID: "cust-1", Name: "X", Class: core.ClassResidential,
		Active: true, ServiceState: core.StateActive, CreatedAt: time.Now().UTC(),
	}))

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx core.Store) error {
		if err := tx.SaveInvoice(ctx, pendingInvoice("inv-1", "cust-1", time.Now().UTC())); err != nil {
			return err
		}
		cust, _ := tx.GetCustomer(ctx, "cust-1")
		cust.ServiceState = core.StateCutoff
		if err := tx.UpdateServiceState(ctx, *cust); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	inv, _ := st.GetInvoice(ctx, "inv-1")
	assert.Nil(t, inv)
	cust, _ := st.GetCustomer(ctx, "cust-1")
	assert.Equal(t, core.StateActive, cust.ServiceState)
}

func TestMarkOverdue_OnlyPastDuePending(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.SaveInvoice(ctx, pendingInvoice("inv-past", "cust-1", now.AddDate(0, 0, -5))))
	require.NoError(t, st.SaveInvoice(ctx, pendingInvoice("inv-future", "cust-1", now.AddDate(0, 0, 5))))
	paid := pendingInvoice("inv-paid", "cust-1", now.AddDate(0, 0, -5))
	paid.Status = core.InvoicePaid
	require.NoError(t, st.SaveInvoice(ctx, paid))

	n, err := st.MarkOverdue(ctx, "cust-1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := st.CountOverdue(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	future, _ := st.GetInvoice(ctx, "inv-future")
	assert.Equal(t, core.InvoicePending, future.Status)
}

func TestInvoiceForPeriod_IgnoresVoided(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	due := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	voided := pendingInvoice("inv-1", "cust-1", due)
	voided.Status = core.InvoiceVoided
	require.NoError(t, st.SaveInvoice(ctx, voided))

	got, err := st.InvoiceForPeriod(ctx, "cust-1", voided.Period)
	require.NoError(t, err)
	assert.Nil(t, got, "a voided invoice does not block regeneration")
}

func TestSaveInvoice_CopiesBreakdown(t *testing.T) {
	// The store must not alias caller-owned slices.
	st := store.NewMemory()
	ctx := context.Background()

	inv := pendingInvoice("inv-1", "cust-1", time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC))
	inv.Breakdown = []core.TierLine{{Volume: core.NewMoneyFromInt(10).Value, Subtotal: core.NewMoneyFromInt(12000)}}
	require.NoError(t, st.SaveInvoice(ctx, inv))

	inv.Breakdown[0].Subtotal = core.NewMoneyFromInt(999)

	got, err := st.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.True(t, got.Breakdown[0].Subtotal.Equal(core.NewMoneyFromInt(12000)))
}
