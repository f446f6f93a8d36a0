// Package rounding implements cash rounding of payment amounts.
package rounding

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Method of rounding the remaining due to the cash increment.
type Method string

func (m Method) Match(in Method) bool {
	return m == in
}

const (
	HALF_UP Method = "HALF-UP"
	UP      Method = "UP"
	DOWN    Method = "DOWN"
)

// Config of the cash rounding.
type Config struct {
	Enabled bool
	// Increment is the cash rounding precision (e.g. 0.05).
	Increment decimal.Decimal
	// DefaultPrecision is the currency rounding (e.g. 0.01).
	DefaultPrecision    decimal.Decimal
	OnlyRoundCashMethod bool
	Method              Method
}

// Line is a payment line as seen by the rounding policy.
type Line interface {
	PaymentAmount() decimal.Decimal
	CashCounted() bool
}

// Violation describes the first payment line whose amount does not respect the cash increment.
type Violation struct {
	Index     int
	Amount    decimal.Decimal
	Lower     decimal.Decimal
	Upper     decimal.Decimal
	Increment decimal.Decimal
}

// Message returns the cashier message for the violation.
func (v *Violation) Message(places int32) string {
	return fmt.Sprintf(
		"The amount of your payment lines must be rounded to validate the transaction.\n"+
			"The rounding precision is %s so you should set %s or %s as payment amount instead of %s.",
		v.Increment.StringFixed(places),
		v.Lower.StringFixed(places),
		v.Upper.StringFixed(places),
		v.Amount.StringFixed(places),
	)
}

// Round rounds amount to the nearest multiple of precision, half away from zero.
// A non positive precision returns amount as is.
func Round(amount, precision decimal.Decimal) decimal.Decimal {
	return RoundWith(amount, precision, HALF_UP)
}

// RoundWith rounds amount to a multiple of precision with the given method.
// UP rounds away from zero, DOWN towards zero.
func RoundWith(amount, precision decimal.Decimal, m Method) decimal.Decimal {
	if precision.Sign() <= 0 {
		return amount
	}
	q := amount.Div(precision)
	switch m {
	case UP:
		if q.Sign() >= 0 {
			q = q.Ceil()
		} else {
			q = q.Floor()
		}
	case DOWN:
		q = q.Truncate(0)
	default:
		q = q.Round(0)
	}
	return q.Mul(precision)
}

// RoundForCash rounds amount to the cash increment.
func (c Config) RoundForCash(amount decimal.Decimal) decimal.Decimal {
	return Round(amount, c.Increment)
}

// RoundForDefault rounds amount to the currency precision.
func (c Config) RoundForDefault(amount decimal.Decimal) decimal.Decimal {
	return Round(amount, c.DefaultPrecision)
}

// Applicable reports whether cash rounding applies to the line.
func (c Config) Applicable(l Line) bool {
	return !c.OnlyRoundCashMethod || l.CashCounted()
}

// DetectViolation returns the first line (in insertion order) whose amount
// differs from its rounding to the cash increment. Nil when all lines comply
// or rounding is disabled.
func DetectViolation(lines []Line, c Config) *Violation {
	if !c.Enabled || c.Increment.Sign() <= 0 {
		return nil
	}
	for i, l := range lines {
		a := l.PaymentAmount()
		diff := c.RoundForDefault(c.RoundForCash(a).Sub(c.RoundForDefault(a)))
		if diff.IsZero() || !c.Applicable(l) {
			continue
		}
		half := c.Increment.Div(decimal.NewFromInt(2))
		base := c.RoundForDefault(a)
		return &Violation{
			Index:     i,
			Amount:    a,
			Lower:     c.RoundForCash(base.Sub(half)),
			Upper:     c.RoundForCash(base.Add(half)),
			Increment: c.Increment,
		}
	}
	return nil
}

var sixDecimals = decimal.New(1, -6)

// FirstNotRounded returns the index of the first applicable line whose amount
// is not a multiple of the increment at 6 decimals, or -1.
func FirstNotRounded(lines []Line, c Config) int {
	if !c.Enabled || c.Increment.Sign() <= 0 {
		return -1
	}
	for i, l := range lines {
		if !c.Applicable(l) {
			continue
		}
		a := l.PaymentAmount()
		if !Round(a.Sub(c.RoundForCash(a)), sixDecimals).IsZero() {
			return i
		}
	}
	return -1
}

// Applied returns the rounding applied to the remaining due (total - paid).
// lastLineCash tells whether the last payment line is cash counted.
func Applied(total, paid decimal.Decimal, lastLineCash bool, c Config) decimal.Decimal {
	if !c.Enabled || c.Increment.Sign() <= 0 {
		return decimal.Zero
	}
	if c.OnlyRoundCashMethod && !lastLineCash {
		return decimal.Zero
	}
	if total.Abs().LessThan(c.Increment) {
		return decimal.Zero
	}

	remaining := total.Sub(paid)
	sign := decimal.NewFromInt(1)
	if total.IsNegative() {
		sign = decimal.NewFromInt(-1)
	}

	m := c.Method
	if m == "" {
		m = HALF_UP
	}
	// overpaid orders never round the change up
	if (total.IsNegative() && remaining.IsPositive()) || (total.IsPositive() && remaining.IsNegative()) {
		if m.Match(UP) || m.Match(HALF_UP) {
			m = DOWN
		}
	}

	remaining = remaining.Mul(sign)
	applied := RoundWith(remaining, c.Increment, m).Sub(remaining)
	if c.RoundForDefault(applied).IsZero() {
		return decimal.Zero
	}
	return c.RoundForDefault(applied.Mul(sign))
}
