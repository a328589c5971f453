/*
history.go - Service-state history and the audit log

Implements core.HistoryStore and core.AuditLog. History rows are append
only: no UPDATE or DELETE statements touch state_history or audit_log.
*/
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hidrosur/billing-engine/core"
)

// =============================================================================
// STATE HISTORY
// =============================================================================

func (q *queries) AppendStateChange(ctx context.Context, sc core.StateChange) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO state_history (id, customer_id, from_state, new_state, at, reason, automatic, actor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.CustomerID, string(sc.FromState), string(sc.NewState),
		fmtTime(sc.At), sc.Reason, sc.Automatic, sc.Actor)
	if err != nil {
		return fmt.Errorf("failed to append state change: %w", err)
	}
	return nil
}

func (q *queries) StateHistory(ctx context.Context, customerID string) ([]core.StateChange, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, customer_id, from_state, new_state, at, reason, automatic, actor
		FROM state_history WHERE customer_id = ? ORDER BY at`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list state history: %w", err)
	}
	defer rows.Close()

	var history []core.StateChange
	for rows.Next() {
		var sc core.StateChange
		var fromState, newState, at string
		if err := rows.Scan(&sc.ID, &sc.CustomerID, &fromState, &newState, &at,
			&sc.Reason, &sc.Automatic, &sc.Actor); err != nil {
			return nil, fmt.Errorf("failed to scan state change: %w", err)
		}
		sc.FromState = core.ServiceState(fromState)
		sc.NewState = core.ServiceState(newState)
		sc.At = parseTime(at)
		history = append(history, sc)
	}
	return history, rows.Err()
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// Record inserts one audit entry. Callers treat failures as non-fatal.
func (q *queries) Record(ctx context.Context, entry core.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	detail := "{}"
	if entry.Detail != nil {
		b, err := json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode audit detail: %w", err)
		}
		detail = string(b)
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, ts, actor, module, entity, record_id, action, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, fmtTime(entry.Timestamp), entry.Actor, entry.Module,
		entry.Entity, entry.RecordID, entry.Action, detail)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}
