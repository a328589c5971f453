package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TARIFF SCHEDULE - The set of fees, tiers and charges in force
// =============================================================================

// TariffSchedule owns the fixed concepts, consumption tiers and extra-charge
// catalog billed while the schedule is active. Exactly one schedule is active
// at any time; issued invoices keep their frozen amounts when schedules
// change.
type TariffSchedule struct {
	ID         string
	Name       string
	ValidFrom  time.Time
	ValidUntil *time.Time // nil = open-ended
	Active     bool

	Concepts []FixedConcept
	Tiers    []ConsumptionTier
	Charges  []ExtraCharge
}

// FixedConcept is a flat fee scoped to a customer class. For residential
// customers an optional threshold selects between the base and upper flat
// fee by consumption.
type FixedConcept struct {
	ID         string
	ScheduleID string
	Code       string
	Class      CustomerClass
	Amount     Money

	// Threshold: the concept applies when a metered customer's consumption
	// exceeds this volume. Nil marks the class's base concept.
	Threshold *decimal.Decimal
}

// ConsumptionTier is a half-open volume range [From, To) with its own
// per-unit price. To == nil means unbounded. Tiers for a class are
// contiguous, non-overlapping and ordered ascending by From.
type ConsumptionTier struct {
	ID         string
	ScheduleID string
	Class      CustomerClass
	FromVol    decimal.Decimal
	ToVol      *decimal.Decimal
	Price      Money
	Position   int
}

// =============================================================================
// EXTRA CHARGES - Named fees applied on top of the consumption subtotal
// =============================================================================

type ChargeMode string

const (
	ChargeOneTime   ChargeMode = "ONE_TIME"
	ChargePerEvent  ChargeMode = "PER_EVENT"
	ChargeAutomatic ChargeMode = "AUTOMATIC"
	ChargeManual    ChargeMode = "MANUAL"
)

// Well-known charge codes the engine resolves by name.
const (
	ChargeCodeDebtNotice = "NOTIFICACION_DEUDA"
	ChargeCodeMora       = "RECARGO_MORA"
)

// ExtraCharge is a catalog entry for a named fee. Codes are unique across
// schedules.
type ExtraCharge struct {
	ID         string
	ScheduleID string
	Code       string
	Name       string
	Amount     Money
	Mode       ChargeMode

	// Trigger parameters for automatic application.
	MonthsOverdue   int
	DaysAfterNotice int
	ThresholdDays   int

	FreeOfCharge bool
}

// ChargeByCode finds a charge in the schedule's catalog. Returns nil when
// the code is not present.
func (s *TariffSchedule) ChargeByCode(code string) *ExtraCharge {
	for i := range s.Charges {
		if s.Charges[i].Code == code {
			return &s.Charges[i]
		}
	}
	return nil
}

// TiersForClass returns the class's tiers ordered ascending by FromVol.
// Ordering relies on Position being assigned ascending with FromVol, which
// the store guarantees on load.
func (s *TariffSchedule) TiersForClass(class CustomerClass) []ConsumptionTier {
	var tiers []ConsumptionTier
	for _, t := range s.Tiers {
		if t.Class == class {
			tiers = append(tiers, t)
		}
	}
	return tiers
}

// ConceptsForClass returns the class's fixed concepts.
func (s *TariffSchedule) ConceptsForClass(class CustomerClass) []FixedConcept {
	var concepts []FixedConcept
	for _, c := range s.Concepts {
		if c.Class == class {
			concepts = append(concepts, c)
		}
	}
	return concepts
}

// =============================================================================
// TIER LINE - One row of an invoice's frozen consumption breakdown
// =============================================================================

// TierLine is captured at invoice generation and never recomputed: the
// audit trail survives later tariff edits.
type TierLine struct {
	TierFrom decimal.Decimal
	TierTo   *decimal.Decimal // nil = unbounded
	Volume   decimal.Decimal
	Price    Money
	Subtotal Money
}
