/*
seed.go - Development seed data

Installs the default tariff schedule, the service-state configuration and
a pair of demo customers so a fresh database is immediately billable.
Idempotent: Save* methods upsert, so running the seed twice is safe.
*/
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hidrosur/billing-engine/core"
)

// Seed installs the default tariff, configuration and demo customers.
func (s *Store) Seed(ctx context.Context) error {
	now := time.Now()

	t20 := decimal.NewFromInt(20)
	t30 := decimal.NewFromInt(30)
	t44 := decimal.NewFromInt(44)

	schedule := core.TariffSchedule{
		ID:        "tariff-2026",
		Name:      "Tarifa general 2026",
		ValidFrom: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		Active:    true,
		Concepts: []core.FixedConcept{
			{
				ID:         "concept-res-base",
				ScheduleID: "tariff-2026",
				Code:       "CARGO_FIJO_RESIDENCIAL",
				Class:      core.ClassResidential,
				Amount:     core.NewMoneyFromInt(1500),
			},
			{
				ID:         "concept-res-alto",
				ScheduleID: "tariff-2026",
				Code:       "CARGO_FIJO_CONSUMO_ALTO",
				Class:      core.ClassResidential,
				Amount:     core.NewMoneyFromInt(2500),
				// Upper flat fee applies once metered consumption exceeds
				// 20 units; the volume tiers start pricing at 30.
				Threshold: &t20,
			},
			{
				ID:         "concept-pub-base",
				ScheduleID: "tariff-2026",
				Code:       "CARGO_FIJO_ENTIDAD_PUBLICA",
				Class:      core.ClassPublicEntity,
				Amount:     core.NewMoneyFromInt(10000),
			},
		},
		Tiers: []core.ConsumptionTier{
			{
				ID:         "tier-res-0",
				ScheduleID: "tariff-2026",
				Class:      core.ClassResidential,
				FromVol:    decimal.Zero,
				ToVol:      &t30,
				Price:      core.ZeroMoney(),
				Position:   0,
			},
			{
				ID:         "tier-res-1",
				ScheduleID: "tariff-2026",
				Class:      core.ClassResidential,
				FromVol:    t30,
				ToVol:      &t44,
				Price:      core.NewMoneyFromInt(1200),
				Position:   1,
			},
			{
				ID:         "tier-res-2",
				ScheduleID: "tariff-2026",
				Class:      core.ClassResidential,
				FromVol:    t44,
				Price:      core.NewMoneyFromInt(2300),
				Position:   2,
			},
		},
		Charges: []core.ExtraCharge{
			{
				ID:            "charge-notificacion",
				ScheduleID:    "tariff-2026",
				Code:          core.ChargeCodeDebtNotice,
				Name:          "Notificación de deuda",
				Amount:        core.NewMoneyFromInt(2000),
				Mode:          core.ChargeAutomatic,
				MonthsOverdue: 2,
			},
			{
				ID:         "charge-mora",
				ScheduleID: "tariff-2026",
				Code:       core.ChargeCodeMora,
				Name:       "Recargo por mora",
				Amount:     core.NewMoneyFromInt(400),
				Mode:       core.ChargeAutomatic,
			},
		},
	}
	if err := s.SaveSchedule(ctx, schedule); err != nil {
		return fmt.Errorf("failed to seed tariff: %w", err)
	}

	if err := s.SaveConfig(ctx, core.DefaultServiceStateConfig()); err != nil {
		return fmt.Errorf("failed to seed config: %w", err)
	}

	customers := []core.Customer{
		{
			ID:           "cust-001",
			Name:         "María Fuentes",
			Class:        core.ClassResidential,
			Zone:         "Centro",
			Active:       true,
			ServiceState: core.StateActive,
			CreatedAt:    now,
		},
		{
			ID:           "cust-002",
			Name:         "Escuela Municipal Nº12",
			Class:        core.ClassPublicEntity,
			Zone:         "Norte",
			Active:       true,
			ServiceState: core.StateActive,
			CreatedAt:    now,
		},
	}
	for _, c := range customers {
		if err := s.SaveCustomer(ctx, c); err != nil {
			return fmt.Errorf("failed to seed customer: %w", err)
		}
	}

	meter := core.Meter{
		ID:             "meter-001",
		CustomerID:     "cust-001",
		Serial:         "HS-000451",
		InitialReading: decimal.Zero,
		InstalledAt:    now,
		Active:         true,
	}
	if err := s.SaveMeter(ctx, meter); err != nil {
		return fmt.Errorf("failed to seed meter: %w", err)
	}
	return nil
}
