/*
Package tariff resolves charges from the active tariff schedule.

PURPOSE:
  Given a customer class and a consumption volume, resolve the flat base fee
  and the tiered per-unit consumption charges from one tariff schedule
  snapshot. The resolution functions are pure over a loaded schedule so that
  invoice generation uses a single consistent snapshot: a concurrent tariff
  edit can never produce an invoice with mixed old/new rates.

BASE-FEE RULE:
  PUBLIC_ENTITY always pays the class's single flat concept. RESIDENTIAL
  pays the base (nil-threshold) concept unless the customer is metered AND
  consumption exceeds a concept's threshold, in which case the upper flat
  fee applies. Without a meter consumption is meaningless, so the base
  concept applies regardless.

TIER RULE:
  Tiers are walked ascending by lower bound. Each tier contributes
  min(consumption, upper) - lower units when positive, priced per unit and
  rounded to 2 decimals. Zero-amount lines are omitted from the breakdown.
  The resulting lines are frozen onto the invoice as an audit trail.

SEE ALSO:
  - core/tariff.go: Schedule, concept, tier and charge types
  - invoicing/generator.go: The only production caller
*/
package tariff

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hidrosur/billing-engine/core"
)

// Resolver loads the active schedule and resolves charges from it.
type Resolver struct {
	tariffs core.TariffStore
}

func NewResolver(tariffs core.TariffStore) *Resolver {
	return &Resolver{tariffs: tariffs}
}

// Active returns the currently active tariff schedule.
// Returns core.ErrNoActiveTariff when none is configured.
func (r *Resolver) Active(ctx context.Context) (*core.TariffSchedule, error) {
	sched, err := r.tariffs.ActiveSchedule(ctx)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, core.ErrNoActiveTariff
	}
	return sched, nil
}

// =============================================================================
// BASE FEE
// =============================================================================

// BaseFee resolves the flat fee for the class and consumption from one
// schedule snapshot.
func BaseFee(s *core.TariffSchedule, class core.CustomerClass, consumption decimal.Decimal, hasMeter bool) (core.Money, error) {
	if !class.Valid() {
		return core.ZeroMoney(), &core.ValidationError{Field: "class", Message: "unrecognized customer class: " + string(class)}
	}

	concepts := s.ConceptsForClass(class)
	if len(concepts) == 0 {
		return core.ZeroMoney(), &core.ValidationError{Field: "class", Message: "no fixed concept configured for class " + string(class)}
	}

	// Without a meter the consumption value is meaningless: the base
	// concept applies unconditionally. Same for public entities, which
	// carry a single flat concept.
	if !hasMeter || class == core.ClassPublicEntity {
		return baseConcept(concepts).Amount, nil
	}

	// Metered residential: pick the concept with the highest threshold the
	// consumption exceeds; fall back to the base concept. The schedule
	// invariant (at most one matching concept per consumption value)
	// guarantees this is deterministic.
	chosen := baseConcept(concepts)
	var best *decimal.Decimal
	for i := range concepts {
		c := &concepts[i]
		if c.Threshold == nil {
			continue
		}
		if consumption.GreaterThan(*c.Threshold) {
			if best == nil || c.Threshold.GreaterThan(*best) {
				chosen = *c
				best = c.Threshold
			}
		}
	}
	return chosen.Amount, nil
}

func baseConcept(concepts []core.FixedConcept) core.FixedConcept {
	for _, c := range concepts {
		if c.Threshold == nil {
			return c
		}
	}
	return concepts[0]
}

// =============================================================================
// TIERED CONSUMPTION
// =============================================================================

// ConsumptionBreakdown walks the class's tiers and prices the consumed
// volume. Returns the frozen tier lines and their total.
func ConsumptionBreakdown(s *core.TariffSchedule, class core.CustomerClass, consumption decimal.Decimal, hasMeter bool) ([]core.TierLine, core.Money, error) {
	if !class.Valid() {
		return nil, core.ZeroMoney(), &core.ValidationError{Field: "class", Message: "unrecognized customer class: " + string(class)}
	}

	total := core.ZeroMoney()
	if !hasMeter || !consumption.IsPositive() {
		return nil, total, nil
	}

	var lines []core.TierLine
	for _, tier := range s.TiersForClass(class) {
		// Volume billed in this tier: min(consumption, upper) - lower.
		upper := consumption
		if tier.ToVol != nil && tier.ToVol.LessThan(consumption) {
			upper = *tier.ToVol
		}
		volume := upper.Sub(tier.FromVol)
		if volume.IsPositive() {
			subtotal := tier.Price.Mul(volume).Round2()
			// Zero-amount lines (free tiers) carry no information.
			if !subtotal.IsZero() {
				lines = append(lines, core.TierLine{
					TierFrom: tier.FromVol,
					TierTo:   tier.ToVol,
					Volume:   volume,
					Price:    tier.Price,
					Subtotal: subtotal,
				})
				total = total.Add(subtotal)
			}
		}

		// Consumption exhausted inside this tier.
		if tier.ToVol == nil || consumption.LessThanOrEqual(*tier.ToVol) {
			break
		}
	}

	return lines, total, nil
}

// ResolveCharge looks up a catalog charge by code on the schedule.
// Returns core.ErrConfiguration-wrapped NotFound semantics when absent.
func ResolveCharge(s *core.TariffSchedule, code string) (*core.ExtraCharge, error) {
	if c := s.ChargeByCode(code); c != nil {
		return c, nil
	}
	return nil, &core.NotFoundError{Entity: "extra charge", ID: code}
}
