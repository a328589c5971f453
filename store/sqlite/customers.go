/*
customers.go - Customer directory, meters and readings

Implements core.CustomerStore and core.ReadingStore. Customers are loaded
with their active meter attached; service-state fields are written only
through UpdateServiceState.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hidrosur/billing-engine/core"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

const customerColumns = `id, name, class, zone, active, service_state,
	has_active_debt_notice, has_active_cutoff_notice, service_cut,
	debt_notice_at, cutoff_notice_at, cutoff_at, last_reconnection_at, created_at`

func (q *queries) GetCustomer(ctx context.Context, id string) (*core.Customer, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)

	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	if err := q.attachMeter(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (q *queries) ListActiveCustomers(ctx context.Context) ([]core.Customer, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []core.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		if err := q.attachMeter(ctx, c); err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (q *queries) SaveCustomer(ctx context.Context, c core.Customer) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, class, zone, active, service_state,
			has_active_debt_notice, has_active_cutoff_notice, service_cut,
			debt_notice_at, cutoff_notice_at, cutoff_at, last_reconnection_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			class = excluded.class,
			zone = excluded.zone,
			active = excluded.active,
			service_state = excluded.service_state,
			has_active_debt_notice = excluded.has_active_debt_notice,
			has_active_cutoff_notice = excluded.has_active_cutoff_notice,
			service_cut = excluded.service_cut,
			debt_notice_at = excluded.debt_notice_at,
			cutoff_notice_at = excluded.cutoff_notice_at,
			cutoff_at = excluded.cutoff_at,
			last_reconnection_at = excluded.last_reconnection_at`,
		c.ID, c.Name, string(c.Class), c.Zone, c.Active, string(c.ServiceState),
		c.HasActiveDebtNotice, c.HasActiveCutoffNotice, c.ServiceCut,
		nullTime(c.DebtNoticeAt), nullTime(c.CutoffNoticeAt), nullTime(c.CutoffAt),
		nullTime(c.LastReconnectionAt), fmtTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

// UpdateServiceState persists only the delinquency lifecycle fields.
func (q *queries) UpdateServiceState(ctx context.Context, c core.Customer) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE customers SET
			service_state = ?,
			has_active_debt_notice = ?,
			has_active_cutoff_notice = ?,
			service_cut = ?,
			debt_notice_at = ?,
			cutoff_notice_at = ?,
			cutoff_at = ?,
			last_reconnection_at = ?
		WHERE id = ?`,
		string(c.ServiceState), c.HasActiveDebtNotice, c.HasActiveCutoffNotice,
		c.ServiceCut, nullTime(c.DebtNoticeAt), nullTime(c.CutoffNoticeAt),
		nullTime(c.CutoffAt), nullTime(c.LastReconnectionAt), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update service state: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCustomer(s scanner) (*core.Customer, error) {
	var c core.Customer
	var class, state, createdAt string
	var debtAt, cutNoticeAt, cutAt, reconAt sql.NullString

	err := s.Scan(&c.ID, &c.Name, &class, &c.Zone, &c.Active, &state,
		&c.HasActiveDebtNotice, &c.HasActiveCutoffNotice, &c.ServiceCut,
		&debtAt, &cutNoticeAt, &cutAt, &reconAt, &createdAt)
	if err != nil {
		return nil, err
	}
	c.Class = core.CustomerClass(class)
	c.ServiceState = core.ServiceState(state)
	c.DebtNoticeAt = parseNullTime(debtAt)
	c.CutoffNoticeAt = parseNullTime(cutNoticeAt)
	c.CutoffAt = parseNullTime(cutAt)
	c.LastReconnectionAt = parseNullTime(reconAt)
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// =============================================================================
// METERS
// =============================================================================

func (q *queries) SaveMeter(ctx context.Context, m core.Meter) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO meters (id, customer_id, serial, initial_reading, installed_at, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			serial = excluded.serial,
			initial_reading = excluded.initial_reading,
			active = excluded.active`,
		m.ID, m.CustomerID, m.Serial, m.InitialReading.String(),
		fmtTime(m.InstalledAt), m.Active)
	if err != nil {
		return fmt.Errorf("failed to save meter: %w", err)
	}
	return nil
}

func (q *queries) attachMeter(ctx context.Context, c *core.Customer) error {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, customer_id, serial, initial_reading, installed_at, active
		FROM meters WHERE customer_id = ? AND active = TRUE
		ORDER BY installed_at DESC LIMIT 1`, c.ID)

	var m core.Meter
	var initial, installedAt string
	err := row.Scan(&m.ID, &m.CustomerID, &m.Serial, &initial, &installedAt, &m.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load meter: %w", err)
	}
	m.InitialReading = parseDecimal(initial)
	m.InstalledAt = parseTime(installedAt)
	c.Meter = &m
	return nil
}

// =============================================================================
// READINGS
// =============================================================================

func (q *queries) SaveReading(ctx context.Context, r core.Reading) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO readings (id, meter_id, value, month, year, taken_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			value = excluded.value,
			taken_at = excluded.taken_at`,
		r.ID, r.MeterID, r.Value.String(), int(r.Month), r.Year, fmtTime(r.TakenAt))
	if err != nil {
		return fmt.Errorf("failed to save reading: %w", err)
	}
	return nil
}

func (q *queries) LatestReading(ctx context.Context, meterID string, period core.BillingPeriod) (*core.Reading, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, meter_id, value, month, year, taken_at
		FROM readings WHERE meter_id = ? AND month = ? AND year = ?
		ORDER BY taken_at DESC LIMIT 1`,
		meterID, int(period.Month), period.Year)

	var r core.Reading
	var value, takenAt string
	var month int
	err := row.Scan(&r.ID, &r.MeterID, &value, &month, &r.Year, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}
	r.Value = parseDecimal(value)
	r.Month = time.Month(month)
	r.TakenAt = parseTime(takenAt)
	return &r, nil
}
