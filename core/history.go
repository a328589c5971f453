package core

import "time"

// =============================================================================
// STATE HISTORY - Immutable record of every service-state transition
// =============================================================================

// StateChange is appended for every transition, automatic (sweep) or manual
// (regularization, reconnection). History rows are never updated or deleted.
type StateChange struct {
	ID         string
	CustomerID string
	FromState  ServiceState
	NewState   ServiceState
	At         time.Time
	Reason     string
	Automatic  bool
	Actor      string // optional admin actor for manual transitions
}
