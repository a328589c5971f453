/*
tariffs.go - Tariff catalog and operational configuration

Implements core.TariffStore and core.ConfigStore. A schedule is always
loaded fully: fixed concepts, consumption tiers ordered by position, and
the extra-charge catalog. Saving a schedule replaces its child rows.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hidrosur/billing-engine/core"
)

// =============================================================================
// TARIFF SCHEDULES
// =============================================================================

func (q *queries) ActiveSchedule(ctx context.Context) (*core.TariffSchedule, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, valid_from, valid_until, active
		FROM tariff_schedules WHERE active = TRUE
		ORDER BY valid_from DESC LIMIT 1`)

	var s core.TariffSchedule
	var validFrom string
	var validUntil sql.NullString
	err := row.Scan(&s.ID, &s.Name, &validFrom, &validUntil, &s.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active schedule: %w", err)
	}
	s.ValidFrom = parseTime(validFrom)
	s.ValidUntil = parseNullTime(validUntil)

	if err := q.loadScheduleChildren(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (q *queries) loadScheduleChildren(ctx context.Context, s *core.TariffSchedule) error {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, schedule_id, code, class, amount, threshold
		FROM fixed_concepts WHERE schedule_id = ?`, s.ID)
	if err != nil {
		return fmt.Errorf("failed to load concepts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fc core.FixedConcept
		var class, amount string
		var threshold sql.NullString
		if err := rows.Scan(&fc.ID, &fc.ScheduleID, &fc.Code, &class, &amount, &threshold); err != nil {
			return fmt.Errorf("failed to scan concept: %w", err)
		}
		fc.Class = core.CustomerClass(class)
		fc.Amount = parseMoney(amount)
		fc.Threshold = parseNullDecimal(threshold)
		s.Concepts = append(s.Concepts, fc)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	tierRows, err := q.db.QueryContext(ctx, `
		SELECT id, schedule_id, class, from_vol, to_vol, price, position
		FROM consumption_tiers WHERE schedule_id = ?
		ORDER BY class, position`, s.ID)
	if err != nil {
		return fmt.Errorf("failed to load tiers: %w", err)
	}
	defer tierRows.Close()
	for tierRows.Next() {
		var t core.ConsumptionTier
		var class, fromVol, price string
		var toVol sql.NullString
		if err := tierRows.Scan(&t.ID, &t.ScheduleID, &class, &fromVol, &toVol, &price, &t.Position); err != nil {
			return fmt.Errorf("failed to scan tier: %w", err)
		}
		t.Class = core.CustomerClass(class)
		t.FromVol = parseDecimal(fromVol)
		t.ToVol = parseNullDecimal(toVol)
		t.Price = parseMoney(price)
		s.Tiers = append(s.Tiers, t)
	}
	if err := tierRows.Err(); err != nil {
		return err
	}

	chargeRows, err := q.db.QueryContext(ctx, `
		SELECT id, schedule_id, code, name, amount, mode,
			months_overdue, days_after_notice, threshold_days, free_of_charge
		FROM extra_charges WHERE schedule_id = ?`, s.ID)
	if err != nil {
		return fmt.Errorf("failed to load charges: %w", err)
	}
	defer chargeRows.Close()
	for chargeRows.Next() {
		var ec core.ExtraCharge
		var amount, mode string
		if err := chargeRows.Scan(&ec.ID, &ec.ScheduleID, &ec.Code, &ec.Name, &amount, &mode,
			&ec.MonthsOverdue, &ec.DaysAfterNotice, &ec.ThresholdDays, &ec.FreeOfCharge); err != nil {
			return fmt.Errorf("failed to scan charge: %w", err)
		}
		ec.Amount = parseMoney(amount)
		ec.Mode = core.ChargeMode(mode)
		s.Charges = append(s.Charges, ec)
	}
	return chargeRows.Err()
}

// SaveSchedule upserts the schedule and replaces its concepts, tiers and
// charge catalog.
func (q *queries) SaveSchedule(ctx context.Context, s core.TariffSchedule) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO tariff_schedules (id, name, valid_from, valid_until, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			valid_from = excluded.valid_from,
			valid_until = excluded.valid_until,
			active = excluded.active`,
		s.ID, s.Name, fmtTime(s.ValidFrom), nullTime(s.ValidUntil), s.Active)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	for _, table := range []string{"fixed_concepts", "consumption_tiers", "extra_charges"} {
		if _, err := q.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE schedule_id = ?`, s.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, fc := range s.Concepts {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO fixed_concepts (id, schedule_id, code, class, amount, threshold)
			VALUES (?, ?, ?, ?, ?, ?)`,
			fc.ID, s.ID, fc.Code, string(fc.Class), fc.Amount.String(),
			nullDecimal(fc.Threshold)); err != nil {
			return fmt.Errorf("failed to save concept: %w", err)
		}
	}
	for _, t := range s.Tiers {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO consumption_tiers (id, schedule_id, class, from_vol, to_vol, price, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, s.ID, string(t.Class), t.FromVol.String(), nullDecimal(t.ToVol),
			t.Price.String(), t.Position); err != nil {
			return fmt.Errorf("failed to save tier: %w", err)
		}
	}
	for _, ec := range s.Charges {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO extra_charges (id, schedule_id, code, name, amount, mode,
				months_overdue, days_after_notice, threshold_days, free_of_charge)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ec.ID, s.ID, ec.Code, ec.Name, ec.Amount.String(), string(ec.Mode),
			ec.MonthsOverdue, ec.DaysAfterNotice, ec.ThresholdDays, ec.FreeOfCharge); err != nil {
			return fmt.Errorf("failed to save charge: %w", err)
		}
	}
	return nil
}

// =============================================================================
// SERVICE STATE CONFIG
// =============================================================================

func (q *queries) ActiveConfig(ctx context.Context) (*core.ServiceStateConfig, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, months_before_debt_notice, debt_notice_fee,
			days_before_cutoff_notice, cutoff_notice_fee, days_before_cutoff,
			reconnection_fee, max_installments, mora_surcharge, mora_enabled, active
		FROM service_state_config WHERE active = TRUE LIMIT 1`)

	var cfg core.ServiceStateConfig
	var debtFee, cutFee, reconFee, mora string
	err := row.Scan(&cfg.ID, &cfg.MonthsBeforeDebtNotice, &debtFee,
		&cfg.DaysBeforeCutoffNotice, &cutFee, &cfg.DaysBeforeCutoff,
		&reconFee, &cfg.MaxInstallments, &mora, &cfg.MoraEnabled, &cfg.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	cfg.DebtNoticeFee = parseMoney(debtFee)
	cfg.CutoffNoticeFee = parseMoney(cutFee)
	cfg.ReconnectionFee = parseMoney(reconFee)
	cfg.MoraSurcharge = parseMoney(mora)
	return &cfg, nil
}

func (q *queries) SaveConfig(ctx context.Context, cfg core.ServiceStateConfig) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO service_state_config (id, months_before_debt_notice, debt_notice_fee,
			days_before_cutoff_notice, cutoff_notice_fee, days_before_cutoff,
			reconnection_fee, max_installments, mora_surcharge, mora_enabled, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			months_before_debt_notice = excluded.months_before_debt_notice,
			debt_notice_fee = excluded.debt_notice_fee,
			days_before_cutoff_notice = excluded.days_before_cutoff_notice,
			cutoff_notice_fee = excluded.cutoff_notice_fee,
			days_before_cutoff = excluded.days_before_cutoff,
			reconnection_fee = excluded.reconnection_fee,
			max_installments = excluded.max_installments,
			mora_surcharge = excluded.mora_surcharge,
			mora_enabled = excluded.mora_enabled,
			active = excluded.active`,
		cfg.ID, cfg.MonthsBeforeDebtNotice, cfg.DebtNoticeFee.String(),
		cfg.DaysBeforeCutoffNotice, cfg.CutoffNoticeFee.String(), cfg.DaysBeforeCutoff,
		cfg.ReconnectionFee.String(), cfg.MaxInstallments, cfg.MoraSurcharge.String(),
		cfg.MoraEnabled, cfg.Active)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
