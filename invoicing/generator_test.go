package invoicing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hidrosur/billing-engine/collections"
	"github.com/hidrosur/billing-engine/core"
	memstore "github.com/hidrosur/billing-engine/core/store"
	"github.com/hidrosur/billing-engine/invoicing"
	"github.com/hidrosur/billing-engine/reconnection"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func decPtr(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}

type fixture struct {
	store     *memstore.Memory
	generator *invoicing.Generator
	manager   *reconnection.Manager
}

func newFixture(t *testing.T) fixture {
	st := memstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.SaveConfig(ctx, core.DefaultServiceStateConfig()))
	require.NoError(t, st.SaveSchedule(ctx, testSchedule()))

	machine := collections.NewMachine(st, st)
	manager := reconnection.NewManager(st, machine, st)
	generator := invoicing.NewGenerator(st, manager, st)
	return fixture{store: st, generator: generator, manager: manager}
}

func testSchedule() core.TariffSchedule {
	return core.TariffSchedule{
		ID:        "sched-1",
		Name:      "Tarifa general",
		ValidFrom: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		Active:    true,
		Concepts: []core.FixedConcept{
			{ID: "c-base", ScheduleID: "sched-1", Code: "CARGO_FIJO_RESIDENCIAL", Class: core.ClassResidential, Amount: core.NewMoneyFromInt(1500)},
			{ID: "c-high", ScheduleID: "sched-1", Code: "CARGO_FIJO_CONSUMO_ALTO", Class: core.ClassResidential, Amount: core.NewMoneyFromInt(2500), Threshold: decPtr(20)},
			{ID: "c-pub", ScheduleID: "sched-1", Code: "CARGO_FIJO_ENTIDAD_PUBLICA", Class: core.ClassPublicEntity, Amount: core.NewMoneyFromInt(10000)},
		},
		Tiers: []core.ConsumptionTier{
			{ID: "t-1", ScheduleID: "sched-1", Class: core.ClassResidential, FromVol: dec(0), ToVol: decPtr(30), Price: core.ZeroMoney(), Position: 0},
			{ID: "t-2", ScheduleID: "sched-1", Class: core.ClassResidential, FromVol: dec(30), ToVol: decPtr(44), Price: core.NewMoneyFromInt(1200), Position: 1},
			{ID: "t-3", ScheduleID: "sched-1", Class: core.ClassResidential, FromVol: dec(44), Price: core.NewMoneyFromInt(2300), Position: 2},
		},
		Charges: []core.ExtraCharge{
			{ID: "x-1", ScheduleID: "sched-1", Code: core.ChargeCodeDebtNotice, Name: "Notificación de deuda", Amount: core.NewMoneyFromInt(2000), Mode: core.ChargeAutomatic, MonthsOverdue: 2},
			{ID: "x-2", ScheduleID: "sched-1", Code: core.ChargeCodeMora, Name: "Recargo por mora", Amount: core.NewMoneyFromInt(400), Mode: core.ChargeAutomatic},
		},
	}
}

func (f fixture) saveMeteredCustomer(t *testing.T, id string, initial int64) {
	ctx := context.Background()
	require.NoError(t, f.store.SaveCustomer(ctx, core.Customer{
		ID:           id,
		Name:         "Cliente " + id,
		Class:        core.ClassResidential,
		Active:       true,
		ServiceState: core.StateActive,
		CreatedAt:    time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, f.store.SaveMeter(ctx, core.Meter{
		ID:             "meter-" + id,
		CustomerID:     id,
		Serial:         "HS-" + id,
		InitialReading: dec(initial),
		InstalledAt:    time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		Active:         true,
	}))
}

func (f fixture) saveReading(t *testing.T, id, customerID string, value int64, month time.Month, year int, takenAt time.Time) {
	require.NoError(t, f.store.SaveReading(context.Background(), core.Reading{
		ID:      id,
		MeterID: "meter-" + customerID,
		Value:   dec(value),
		Month:   month,
		Year:    year,
		TakenAt: takenAt,
	}))
}

// =============================================================================
// GENERATION TESTS
// =============================================================================

func TestGenerateMonthly_MeteredCustomer(t *testing.T) {
	// GIVEN: A metered customer whose March reading implies 40 m3 consumed
	// WHEN: Generating the March invoice
	// THEN: The above-threshold flat fee 2500 plus one 12000 tier line,
	// due April 10

	f := newFixture(t)
	ctx := context.Background()
	f.saveMeteredCustomer(t, "cust-1", 100)
	f.saveReading(t, "read-1", "cust-1", 140, time.March, 2026, time.Date(2026, time.March, 28, 10, 0, 0, 0, time.UTC))

	inv, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)

	assert.True(t, inv.Consumption.Equal(dec(40)))
	assert.True(t, inv.HasMeter)
	assert.True(t, inv.BaseFee.Equal(core.NewMoneyFromInt(2500)), "40 m3 exceeds the 20-unit flat-fee threshold")
	assert.True(t, inv.ConsumptionAmount.Equal(core.NewMoneyFromInt(12000)))
	assert.True(t, inv.Subtotal.Equal(core.NewMoneyFromInt(14500)))
	assert.True(t, inv.Total.Equal(core.NewMoneyFromInt(14500)))
	assert.Equal(t, core.InvoicePending, inv.Status)
	assert.Equal(t, time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC), inv.DueDate)

	require.Len(t, inv.Breakdown, 1, "free tier line is omitted")
	line := inv.Breakdown[0]
	assert.True(t, line.TierFrom.Equal(dec(30)))
	assert.True(t, line.Volume.Equal(dec(10)))
	assert.True(t, line.Subtotal.Equal(core.NewMoneyFromInt(12000)))

	require.NotNil(t, inv.ReadingID)
	assert.Equal(t, "read-1", *inv.ReadingID)
}

func TestGenerateMonthly_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveMeteredCustomer(t, "cust-1", 100)
	f.saveReading(t, "read-1", "cust-1", 140, time.March, 2026, time.Date(2026, time.March, 28, 10, 0, 0, 0, time.UTC))

	first, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)
	second, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "no new reading, same invoice back")
	assert.True(t, first.Total.Equal(second.Total))
}

func TestGenerateMonthly_StaleReadingRegenerates(t *testing.T) {
	// GIVEN: A March invoice generated from an early reading
	// WHEN: A corrected reading arrives and generation runs again
	// THEN: The old invoice is replaced by one priced from the new reading

	f := newFixture(t)
	ctx := context.Background()
	f.saveMeteredCustomer(t, "cust-1", 100)
	f.saveReading(t, "read-1", "cust-1", 140, time.March, 2026, time.Date(2026, time.March, 20, 10, 0, 0, 0, time.UTC))

	first, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)

	f.saveReading(t, "read-2", "cust-1", 150, time.March, 2026, time.Date(2026, time.March, 29, 10, 0, 0, 0, time.UTC))

	second, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.Consumption.Equal(dec(50)))
	// 50 m3 crosses into the top volume tier.
	assert.True(t, second.BaseFee.Equal(core.NewMoneyFromInt(2500)))
	assert.True(t, second.ConsumptionAmount.Equal(core.NewMoneyFromInt(30600)))
	require.Len(t, second.Breakdown, 2)
	assert.Nil(t, second.Breakdown[1].TierTo)

	old, err := f.store.GetInvoice(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, old, "stale invoice is deleted")
}

func TestGenerateMonthly_PaidInvoiceNeverReplaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveMeteredCustomer(t, "cust-1", 100)
	f.saveReading(t, "read-1", "cust-1", 140, time.March, 2026, time.Date(2026, time.March, 20, 10, 0, 0, 0, time.UTC))

	inv, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)

	paidAt := time.Date(2026, time.April, 5, 0, 0, 0, 0, time.UTC)
	inv.Status = core.InvoicePaid
	inv.PaidAt = &paidAt
	require.NoError(t, f.store.SaveInvoice(ctx, inv))

	// A newer reading would normally force regeneration.
	f.saveReading(t, "read-2", "cust-1", 150, time.March, 2026, time.Date(2026, time.March, 29, 10, 0, 0, 0, time.UTC))

	again, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, again.ID)
	assert.Equal(t, core.InvoicePaid, again.Status)
}

func TestGenerateMonthly_UnmeteredCustomer(t *testing.T) {
	// Unmetered customers pay the base fee only.
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveCustomer(ctx, core.Customer{
		ID:           "cust-1",
		Name:         "Sin medidor",
		Class:        core.ClassResidential,
		Active:       true,
		ServiceState: core.StateActive,
		CreatedAt:    time.Now().UTC(),
	}))

	inv, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)
	assert.False(t, inv.HasMeter)
	assert.True(t, inv.Consumption.IsZero())
	assert.True(t, inv.BaseFee.Equal(core.NewMoneyFromInt(1500)))
	assert.Empty(t, inv.Breakdown)
	assert.True(t, inv.Total.Equal(core.NewMoneyFromInt(1500)))
	assert.Nil(t, inv.ReadingID)
}

func TestGenerateMonthly_DebtNoticeCharge(t *testing.T) {
	// GIVEN: A customer under an active debt notice
	// WHEN: Generating the next invoice
	// THEN: The debt-notice fee rides on it as an automatic extra charge

	f := newFixture(t)
	ctx := context.Background()
	noticeAt := time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.SaveCustomer(ctx, core.Customer{
		ID:                  "cust-1",
		Name:                "Moroso",
		Class:               core.ClassResidential,
		Active:              true,
		ServiceState:        core.StateDebtNotice,
		HasActiveDebtNotice: true,
		DebtNoticeAt:        &noticeAt,
		CreatedAt:           time.Now().UTC(),
	}))

	inv, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)

	assert.True(t, inv.ExtraChargesTotal.Equal(core.NewMoneyFromInt(2000)))
	assert.True(t, inv.Total.Equal(core.NewMoneyFromInt(3500)), "1500 base + 2000 notice fee")
	assert.Equal(t, core.StateDebtNotice, inv.ServiceStateAtIssue)

	charges, err := f.store.InvoiceCharges(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, charges, 1)
	assert.Equal(t, core.ChargeCodeDebtNotice, charges[0].ChargeCode)
	assert.True(t, charges[0].Automatic)
}

func TestGenerateMonthly_CarriesInstallment(t *testing.T) {
	// GIVEN: A reconnected customer with an active 5-installment plan
	// WHEN: Generating the next invoice
	// THEN: Installment 1 of 14800 rides on the invoice total

	f := newFixture(t)
	ctx := context.Background()
	f.saveMeteredCustomer(t, "cust-1", 100)

	cust, _ := f.store.GetCustomer(ctx, "cust-1")
	cust.ServiceState = core.StateCutoff
	cust.ServiceCut = true
	require.NoError(t, f.store.UpdateServiceState(ctx, *cust))

	_, err := f.manager.Process(ctx, "cust-1", false, 5, "admin")
	require.NoError(t, err)

	f.saveReading(t, "read-1", "cust-1", 140, time.March, 2026, time.Date(2026, time.March, 28, 10, 0, 0, 0, time.UTC))
	inv, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)

	require.NotNil(t, inv.InstallmentNumber)
	assert.Equal(t, 1, *inv.InstallmentNumber)
	assert.True(t, inv.InstallmentAmount.Equal(core.NewMoneyFromInt(14800)))
	assert.True(t, inv.Total.Equal(core.NewMoneyFromInt(29300)), "14500 subtotal + 14800 installment")
}

func TestGenerateMonthly_NoActiveSchedule(t *testing.T) {
	st := memstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.SaveConfig(ctx, core.DefaultServiceStateConfig()))
	require.NoError(t, st.SaveCustomer(ctx, core.Customer{
		ID: "cust-1", Name: "X", Class: core.ClassResidential,
		Active: true, ServiceState: core.StateActive, CreatedAt: time.Now().UTC(),
	}))

	machine := collections.NewMachine(st, st)
	manager := reconnection.NewManager(st, machine, st)
	generator := invoicing.NewGenerator(st, manager, st)

	_, err := generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	assert.ErrorIs(t, err, core.ErrNoActiveTariff)
}

func TestGenerateMonthly_UnknownCustomer(t *testing.T) {
	f := newFixture(t)

	_, err := f.generator.GenerateMonthly(context.Background(), "nobody", time.March, 2026)
	var nfe *core.NotFoundError
	assert.ErrorAs(t, err, &nfe)
}

// =============================================================================
// BULK GENERATION TESTS
// =============================================================================

func TestGenerateForAllActive(t *testing.T) {
	// GIVEN: Two active customers, one already billed for March
	// WHEN: Running bulk generation for March
	// THEN: One generated, one skipped

	f := newFixture(t)
	ctx := context.Background()
	f.saveMeteredCustomer(t, "cust-1", 100)
	f.saveMeteredCustomer(t, "cust-2", 200)

	_, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)

	result, err := f.generator.GenerateForAllActive(ctx, time.March, 2026)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	inv, err := f.store.InvoiceForPeriod(ctx, "cust-2", core.NewBillingPeriod(time.March, 2026))
	require.NoError(t, err)
	require.NotNil(t, inv)
}

func TestGenerateForAllActive_SkipsInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveCustomer(ctx, core.Customer{
		ID: "cust-off", Name: "Baja", Class: core.ClassResidential,
		Active: false, ServiceState: core.StateActive, CreatedAt: time.Now().UTC(),
	}))

	result, err := f.generator.GenerateForAllActive(ctx, time.March, 2026)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Generated)

	inv, _ := f.store.InvoiceForPeriod(ctx, "cust-off", core.NewBillingPeriod(time.March, 2026))
	assert.Nil(t, inv)
}

// =============================================================================
// FORCED REGENERATION TESTS
// =============================================================================

func TestForceRegenerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveMeteredCustomer(t, "cust-1", 100)
	f.saveReading(t, "read-1", "cust-1", 140, time.March, 2026, time.Date(2026, time.March, 28, 10, 0, 0, 0, time.UTC))

	first, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)

	second, err := f.generator.ForceRegenerate(ctx, first.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.Total.Equal(second.Total), "same inputs, same total")
	assert.True(t, second.Period.Equal(first.Period))

	old, _ := f.store.GetInvoice(ctx, first.ID)
	assert.Nil(t, old)
}

func TestForceRegenerate_PaidRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveMeteredCustomer(t, "cust-1", 100)
	f.saveReading(t, "read-1", "cust-1", 140, time.March, 2026, time.Date(2026, time.March, 28, 10, 0, 0, 0, time.UTC))

	inv, err := f.generator.GenerateMonthly(ctx, "cust-1", time.March, 2026)
	require.NoError(t, err)

	paidAt := time.Now().UTC()
	inv.Status = core.InvoicePaid
	inv.PaidAt = &paidAt
	require.NoError(t, f.store.SaveInvoice(ctx, inv))

	_, err = f.generator.ForceRegenerate(ctx, inv.ID)
	assert.ErrorIs(t, err, core.ErrInvalidState)
}
