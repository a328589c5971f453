package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CUSTOMER CLASSES
// =============================================================================

type CustomerClass string

const (
	ClassResidential  CustomerClass = "RESIDENTIAL"
	ClassPublicEntity CustomerClass = "PUBLIC_ENTITY"
)

func (c CustomerClass) Valid() bool {
	return c == ClassResidential || c == ClassPublicEntity
}

// =============================================================================
// SERVICE STATE - Position in the delinquency lifecycle
// =============================================================================

type ServiceState string

const (
	StateActive       ServiceState = "ACTIVE"
	StateDebtNotice   ServiceState = "DEBT_NOTICE"
	StateCutoffNotice ServiceState = "CUTOFF_NOTICE"
	StateCutoff       ServiceState = "CUTOFF"
)

func (s ServiceState) Valid() bool {
	switch s {
	case StateActive, StateDebtNotice, StateCutoffNotice, StateCutoff:
		return true
	}
	return false
}

// =============================================================================
// CUSTOMER - Read by the engine; service_state mutated only by collections
// =============================================================================

// Customer is a water service account. The engine reads customer records and
// mutates only the service-state fields (state, flags, transition
// timestamps), exclusively through the collections state machine.
type Customer struct {
	ID     string
	Name   string
	Class  CustomerClass
	Zone   string
	Active bool

	ServiceState          ServiceState
	HasActiveDebtNotice   bool
	HasActiveCutoffNotice bool
	ServiceCut            bool

	DebtNoticeAt       *time.Time
	CutoffNoticeAt     *time.Time
	CutoffAt           *time.Time
	LastReconnectionAt *time.Time

	// Meter is the active meter, nil if the customer is unmetered.
	Meter *Meter

	CreatedAt time.Time
}

func (c *Customer) HasMeter() bool { return c.Meter != nil }

// Meter is a customer's active water meter. InitialReading anchors
// consumption for the first billed month.
type Meter struct {
	ID             string
	CustomerID     string
	Serial         string
	InitialReading decimal.Decimal
	InstalledAt    time.Time
	Active         bool
}

// Reading is one recorded meter value for a billing month.
type Reading struct {
	ID      string
	MeterID string
	Value   decimal.Decimal
	Month   time.Month
	Year    int
	TakenAt time.Time
}

func (r Reading) Period() BillingPeriod {
	return BillingPeriod{Month: r.Month, Year: r.Year}
}

// =============================================================================
// SERVICE STATE CONFIG - Singleton operational parameters
// =============================================================================

// ServiceStateConfig is the active singleton configuration driving the
// collections state machine, reconnection fees and the mora surcharge.
type ServiceStateConfig struct {
	ID string

	// ACTIVE -> DEBT_NOTICE once this many invoices are overdue.
	MonthsBeforeDebtNotice int
	DebtNoticeFee          Money

	// DEBT_NOTICE -> CUTOFF_NOTICE after this many days.
	DaysBeforeCutoffNotice int
	CutoffNoticeFee        Money

	// CUTOFF_NOTICE -> CUTOFF after this many days.
	DaysBeforeCutoff int

	ReconnectionFee Money
	MaxInstallments int

	MoraSurcharge Money
	MoraEnabled   bool

	Active bool
}

// DefaultServiceStateConfig returns the standard operational parameters.
func DefaultServiceStateConfig() ServiceStateConfig {
	return ServiceStateConfig{
		ID:                     "default",
		MonthsBeforeDebtNotice: 2,
		DebtNoticeFee:          NewMoneyFromInt(2000),
		DaysBeforeCutoffNotice: 15,
		CutoffNoticeFee:        ZeroMoney(),
		DaysBeforeCutoff:       2,
		ReconnectionFee:        NewMoneyFromInt(74000),
		MaxInstallments:        5,
		MoraSurcharge:          NewMoneyFromInt(400),
		MoraEnabled:            true,
		Active:                 true,
	}
}
