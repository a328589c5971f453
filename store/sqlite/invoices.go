/*
invoices.go - Invoice persistence with frozen breakdowns

Implements core.InvoiceStore. SaveInvoice replaces the invoice's tier
lines so the stored breakdown always mirrors the struct. DeleteInvoice
cascades to tier lines and extra charges.
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

const invoiceColumns = `id, customer_id, schedule_id, reading_id, month, year,
	consumption, has_meter, base_fee, consumption_amount, subtotal,
	extra_charges_total, installment_amount, installment_number, total,
	amount_due, due_date, status, service_state_at_issue, paid_at, created_at`

func (q *queries) GetInvoice(ctx context.Context, id string) (*core.Invoice, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if err := q.loadBreakdown(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (q *queries) InvoiceForPeriod(ctx context.Context, customerID string, period core.BillingPeriod) (*core.Invoice, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		WHERE customer_id = ? AND month = ? AND year = ? AND status != 'VOIDED'
		ORDER BY created_at DESC LIMIT 1`,
		customerID, int(period.Month), period.Year)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get invoice for period: %w", err)
	}
	if err := q.loadBreakdown(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (q *queries) SaveInvoice(ctx context.Context, inv *core.Invoice) error {
	var readingID, installmentNumber any
	if inv.ReadingID != nil {
		readingID = *inv.ReadingID
	}
	if inv.InstallmentNumber != nil {
		installmentNumber = *inv.InstallmentNumber
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reading_id = excluded.reading_id,
			consumption = excluded.consumption,
			has_meter = excluded.has_meter,
			base_fee = excluded.base_fee,
			consumption_amount = excluded.consumption_amount,
			subtotal = excluded.subtotal,
			extra_charges_total = excluded.extra_charges_total,
			installment_amount = excluded.installment_amount,
			installment_number = excluded.installment_number,
			total = excluded.total,
			amount_due = excluded.amount_due,
			due_date = excluded.due_date,
			status = excluded.status,
			service_state_at_issue = excluded.service_state_at_issue,
			paid_at = excluded.paid_at`,
		inv.ID, inv.CustomerID, inv.ScheduleID, readingID,
		int(inv.Period.Month), inv.Period.Year,
		inv.Consumption.String(), inv.HasMeter, inv.BaseFee.String(),
		inv.ConsumptionAmount.String(), inv.Subtotal.String(),
		inv.ExtraChargesTotal.String(), inv.InstallmentAmount.String(),
		installmentNumber, inv.Total.String(), inv.AmountDue.String(),
		fmtTime(inv.DueDate), string(inv.Status), string(inv.ServiceStateAtIssue),
		nullTime(inv.PaidAt), fmtTime(inv.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}

	// Replace the frozen breakdown.
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM invoice_tier_lines WHERE invoice_id = ?`, inv.ID); err != nil {
		return fmt.Errorf("failed to clear tier lines: %w", err)
	}
	for i, line := range inv.Breakdown {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO invoice_tier_lines (invoice_id, position, tier_from, tier_to, volume, price, subtotal)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			inv.ID, i, line.TierFrom.String(), nullDecimal(line.TierTo),
			line.Volume.String(), line.Price.String(), line.Subtotal.String()); err != nil {
			return fmt.Errorf("failed to save tier line: %w", err)
		}
	}
	return nil
}

func (q *queries) DeleteInvoice(ctx context.Context, id string) error {
	// Tier lines and extra charges cascade.
	if _, err := q.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return nil
}

func (q *queries) InvoicesByCustomer(ctx context.Context, customerID string) ([]core.Invoice, error) {
	return q.listInvoices(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		WHERE customer_id = ? ORDER BY year, month`, customerID)
}

func (q *queries) OverdueInvoices(ctx context.Context, customerID string) ([]core.Invoice, error) {
	return q.listInvoices(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		WHERE customer_id = ? AND status = 'OVERDUE' ORDER BY year, month`, customerID)
}

func (q *queries) listInvoices(ctx context.Context, query string, args ...any) ([]core.Invoice, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range invoices {
		if err := q.loadBreakdown(ctx, &invoices[i]); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

func (q *queries) CountOverdue(ctx context.Context, customerID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices WHERE customer_id = ? AND status = 'OVERDUE'`,
		customerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue: %w", err)
	}
	return n, nil
}

func (q *queries) MarkOverdue(ctx context.Context, customerID string, asOf time.Time) (int, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE invoices SET status = 'OVERDUE'
		WHERE customer_id = ? AND status = 'PENDING' AND due_date < ?`,
		customerID, fmtTime(asOf))
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// EXTRA CHARGES
// =============================================================================

func (q *queries) AddInvoiceCharge(ctx context.Context, c core.InvoiceExtraCharge) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO invoice_extra_charges (id, invoice_id, charge_code, name, amount, automatic, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.InvoiceID, c.ChargeCode, c.Name, c.Amount.String(), c.Automatic,
		fmtTime(c.AppliedAt))
	if err != nil {
		return fmt.Errorf("failed to add invoice charge: %w", err)
	}
	return nil
}

func (q *queries) InvoiceCharges(ctx context.Context, invoiceID string) ([]core.InvoiceExtraCharge, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, invoice_id, charge_code, name, amount, automatic, applied_at
		FROM invoice_extra_charges WHERE invoice_id = ? ORDER BY applied_at`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice charges: %w", err)
	}
	defer rows.Close()

	var charges []core.InvoiceExtraCharge
	for rows.Next() {
		var c core.InvoiceExtraCharge
		var amount, appliedAt string
		if err := rows.Scan(&c.ID, &c.InvoiceID, &c.ChargeCode, &c.Name, &amount,
			&c.Automatic, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice charge: %w", err)
		}
		c.Amount = parseMoney(amount)
		c.AppliedAt = parseTime(appliedAt)
		charges = append(charges, c)
	}
	return charges, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func scanInvoice(s scanner) (*core.Invoice, error) {
	var inv core.Invoice
	var readingID, paidAt sql.NullString
	var installmentNumber sql.NullInt64
	var month int
	var consumption, baseFee, consAmount, subtotal, extraTotal string
	var instAmount, total, amountDue, dueDate, status, stateAtIssue, createdAt string

	err := s.Scan(&inv.ID, &inv.CustomerID, &inv.ScheduleID, &readingID,
		&month, &inv.Period.Year, &consumption, &inv.HasMeter, &baseFee,
		&consAmount, &subtotal, &extraTotal, &instAmount, &installmentNumber,
		&total, &amountDue, &dueDate, &status, &stateAtIssue, &paidAt, &createdAt)
	if err != nil {
		return nil, err
	}
	inv.Period.Month = time.Month(month)
	if readingID.Valid {
		id := readingID.String
		inv.ReadingID = &id
	}
	if installmentNumber.Valid {
		n := int(installmentNumber.Int64)
		inv.InstallmentNumber = &n
	}
	inv.Consumption = parseDecimal(consumption)
	inv.BaseFee = parseMoney(baseFee)
	inv.ConsumptionAmount = parseMoney(consAmount)
	inv.Subtotal = parseMoney(subtotal)
	inv.ExtraChargesTotal = parseMoney(extraTotal)
	inv.InstallmentAmount = parseMoney(instAmount)
	inv.Total = parseMoney(total)
	inv.AmountDue = parseMoney(amountDue)
	inv.DueDate = parseTime(dueDate)
	inv.Status = core.InvoiceStatus(status)
	inv.ServiceStateAtIssue = core.ServiceState(stateAtIssue)
	inv.PaidAt = parseNullTime(paidAt)
	inv.CreatedAt = parseTime(createdAt)
	return &inv, nil
}

func (q *queries) loadBreakdown(ctx context.Context, inv *core.Invoice) error {
	rows, err := q.db.QueryContext(ctx, `
		SELECT tier_from, tier_to, volume, price, subtotal
		FROM invoice_tier_lines WHERE invoice_id = ? ORDER BY position`, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to load breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line core.TierLine
		var from, volume, price, subtotal string
		var to sql.NullString
		if err := rows.Scan(&from, &to, &volume, &price, &subtotal); err != nil {
			return fmt.Errorf("failed to scan tier line: %w", err)
		}
		line.TierFrom = parseDecimal(from)
		line.TierTo = parseNullDecimal(to)
		line.Volume = parseDecimal(volume)
		line.Price = parseMoney(price)
		line.Subtotal = parseMoney(subtotal)
		inv.Breakdown = append(inv.Breakdown, line)
	}
	return rows.Err()
}
