/*
errors.go - Centralized error taxonomy for the billing engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Service packages wrap these sentinels with structured context so the
  API boundary can map them to precise user messages and HTTP statuses.

ERROR CATEGORIES:
  1. Validation errors  - Malformed input (bad installment count, bad month)
  2. Configuration      - No active tariff schedule / no service-state config
  3. Invalid state      - Operation not permitted for the entity's state
  4. Payment required   - Outstanding debt blocks reconnection (carries amount)
  5. Insufficient pay   - Payment below required total (carries amount)
  6. Not found          - Missing customer/invoice/meter/reading

USAGE:
  if errors.Is(err, core.ErrInsufficientPayment) {
      var ipe *core.InsufficientPaymentError
      errors.As(err, &ipe)
      // render ipe.Required to the user
  }
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrConfiguration is returned when required operational configuration
	// (active tariff schedule, service-state config) is missing.
	ErrConfiguration = errors.New("configuration missing")

	// ErrNoActiveTariff is returned when no tariff schedule is active.
	ErrNoActiveTariff = errors.New("no active tariff schedule")

	// ErrInvalidState is returned when an operation is not permitted for the
	// entity's current state (settling a paid invoice, reconnecting a
	// non-cutoff customer).
	ErrInvalidState = errors.New("operation not permitted in current state")

	// ErrPaymentRequired is returned when outstanding debt blocks an
	// operation. The structured OutstandingDebtError carries the amount.
	ErrPaymentRequired = errors.New("outstanding debt must be paid first")

	// ErrInsufficientPayment is returned when a payment does not cover the
	// invoice total. No partial payments are accepted.
	ErrInsufficientPayment = errors.New("payment below required total")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("record not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a specific malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Entity string // "customer", "invoice", "meter", ...
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidStateError explains which operation was refused and why.
type InvalidStateError struct {
	Entity    string
	ID        string
	State     string
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in state %s", e.Operation, e.Entity, e.ID, e.State)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// OutstandingDebtError carries the exact amount the customer still owes.
type OutstandingDebtError struct {
	CustomerID string
	Owed       Money
}

func (e *OutstandingDebtError) Error() string {
	return fmt.Sprintf("customer %s owes %v, debt must be cleared first", e.CustomerID, e.Owed)
}

func (e *OutstandingDebtError) Unwrap() error { return ErrPaymentRequired }

// InsufficientPaymentError carries the exact required total so the caller
// can report the shortfall.
type InsufficientPaymentError struct {
	InvoiceID string
	Required  Money
	Paid      Money
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("payment of %v on invoice %s below required total %v",
		e.Paid, e.InvoiceID, e.Required)
}

func (e *InsufficientPaymentError) Unwrap() error { return ErrInsufficientPayment }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input or
// a state the client can act on.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrPaymentRequired) ||
		errors.Is(err, ErrInsufficientPayment)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfiguration returns true for missing-configuration failures.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrNoActiveTariff)
}
