/*
plans.go - Reconnection plans, installments and payments

Implements core.PlanStore and core.PaymentStore. Plans are loaded with
their installments ordered by number.
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
// RECONNECTION PLANS
// =============================================================================

func (q *queries) SavePlan(ctx context.Context, p *core.ReconnectionPlan) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO reconnection_plans (id, customer_id, fee, prior_debt,
			installment_count, installment_amount, start_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status`,
		p.ID, p.CustomerID, p.Fee.String(), p.PriorDebt.String(),
		p.InstallmentCount, p.InstallmentAmount.String(),
		fmtTime(p.StartDate), string(p.Status), fmtTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	for _, inst := range p.Installments {
		if err := q.SaveInstallment(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}

func (q *queries) SaveInstallment(ctx context.Context, inst core.Installment) error {
	var invoiceID any
	if inst.InvoiceID != nil {
		invoiceID = *inst.InvoiceID
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO installments (id, plan_id, number, amount, invoice_id, due_date, paid_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			invoice_id = excluded.invoice_id,
			due_date = excluded.due_date,
			paid_at = excluded.paid_at,
			status = excluded.status`,
		inst.ID, inst.PlanID, inst.Number, inst.Amount.String(), invoiceID,
		fmtTime(inst.DueDate), nullTime(inst.PaidAt), string(inst.Status))
	if err != nil {
		return fmt.Errorf("failed to save installment: %w", err)
	}
	return nil
}

func (q *queries) ActivePlan(ctx context.Context, customerID string) (*core.ReconnectionPlan, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, customer_id, fee, prior_debt, installment_count,
			installment_amount, start_date, status, created_at
		FROM reconnection_plans
		WHERE customer_id = ? AND status = 'ACTIVE'
		ORDER BY created_at DESC LIMIT 1`, customerID)
	return q.scanPlanRow(ctx, row)
}

func (q *queries) GetPlan(ctx context.Context, id string) (*core.ReconnectionPlan, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, customer_id, fee, prior_debt, installment_count,
			installment_amount, start_date, status, created_at
		FROM reconnection_plans WHERE id = ?`, id)
	return q.scanPlanRow(ctx, row)
}

func (q *queries) scanPlanRow(ctx context.Context, row *sql.Row) (*core.ReconnectionPlan, error) {
	var p core.ReconnectionPlan
	var fee, priorDebt, instAmount, startDate, status, createdAt string
	err := row.Scan(&p.ID, &p.CustomerID, &fee, &priorDebt, &p.InstallmentCount,
		&instAmount, &startDate, &status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	p.Fee = parseMoney(fee)
	p.PriorDebt = parseMoney(priorDebt)
	p.InstallmentAmount = parseMoney(instAmount)
	p.StartDate = parseTime(startDate)
	p.Status = core.PlanStatus(status)
	p.CreatedAt = parseTime(createdAt)

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, plan_id, number, amount, invoice_id, due_date, paid_at, status
		FROM installments WHERE plan_id = ? ORDER BY number`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load installments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var inst core.Installment
		var amount, dueDate, instStatus string
		var invoiceID, paidAt sql.NullString
		if err := rows.Scan(&inst.ID, &inst.PlanID, &inst.Number, &amount,
			&invoiceID, &dueDate, &paidAt, &instStatus); err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		inst.Amount = parseMoney(amount)
		if invoiceID.Valid {
			id := invoiceID.String
			inst.InvoiceID = &id
		}
		inst.DueDate = parseTime(dueDate)
		inst.PaidAt = parseNullTime(paidAt)
		inst.Status = core.InstallmentStatus(instStatus)
		p.Installments = append(p.Installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (q *queries) SavePayment(ctx context.Context, p core.Payment) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, amount, date, method, status, approved_by, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			date = excluded.date,
			method = excluded.method,
			status = excluded.status,
			approved_by = excluded.approved_by,
			notes = excluded.notes`,
		p.ID, p.InvoiceID, p.Amount.String(), fmtTime(p.Date), string(p.Method),
		string(p.Status), p.ApprovedBy, p.Notes, fmtTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

func (q *queries) GetPayment(ctx context.Context, id string) (*core.Payment, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, invoice_id, amount, date, method, status, approved_by, notes, created_at
		FROM payments WHERE id = ?`, id)

	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (q *queries) PaymentsByInvoice(ctx context.Context, invoiceID string) ([]core.Payment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, invoice_id, amount, date, method, status, approved_by, notes, created_at
		FROM payments WHERE invoice_id = ? ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []core.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func scanPayment(s scanner) (*core.Payment, error) {
	var p core.Payment
	var amount, date, method, status, createdAt string
	err := s.Scan(&p.ID, &p.InvoiceID, &amount, &date, &method, &status,
		&p.ApprovedBy, &p.Notes, &createdAt)
	if err != nil {
		return nil, err
	}
	p.Amount = parseMoney(amount)
	p.Date = parseTime(date)
	p.Method = core.PaymentMethod(method)
	p.Status = core.PaymentStatus(status)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}
