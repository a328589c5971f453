/*
Package core provides the shared domain model for the billing engine.

PURPOSE:
  This package contains the types and contracts every other package builds on:
  monetary amounts, billing periods, the customer/tariff/invoice data model,
  the error taxonomy, and the persistence interfaces.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: A monetary amount backed by decimal.Decimal

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Immutability: Money values are never mutated, operations return new values
  3. Rounding happens exactly once, at tier-line computation (2 decimals)

SEE ALSO:
  - period.go: Billing period calendar math
  - errors.go: Error taxonomy
  - store.go: Persistence interfaces
*/
package core

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Monetary amount (CLP, but currency-agnostic in the math)
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

func ZeroMoney() Money {
	return Money{Value: decimal.Zero}
}

// MustParseMoney parses a decimal string, panicking on malformed input.
// Meant for fixed literals; parse untrusted input with decimal directly.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("money: invalid amount " + strconv.Quote(s))
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money               { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money               { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(s decimal.Decimal) Money     { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money     { return Money{Value: m.Value.Div(s)} }
func (m Money) Neg() Money                      { return Money{Value: m.Value.Neg()} }
func (m Money) Round2() Money                   { return Money{Value: m.Value.Round(2)} }
func (m Money) IsZero() bool                    { return m.Value.IsZero() }
func (m Money) IsNegative() bool                { return m.Value.IsNegative() }
func (m Money) IsPositive() bool                { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool              { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool        { return m.Value.GreaterThan(o.Value) }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.Value.GreaterThanOrEqual(o.Value) }
func (m Money) LessThan(o Money) bool           { return m.Value.LessThan(o.Value) }

func (m Money) Float64() float64 {
	f, _ := m.Value.Float64()
	return f
}

func (m Money) String() string { return m.Value.String() }
