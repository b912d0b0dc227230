// Package policy evaluates class cancellation policies. Everything here is a
// pure function of its inputs so the ledger can be tested against exact
// boundary timestamps.
package policy

import (
	"time"

	"gym-booking-service/internal/model"

	"github.com/shopspring/decimal"
)

type Decision struct {
	WithinWindow     bool `json:"within_window"`
	RefundPercentage int  `json:"refund_percentage"`
}

// Evaluate decides refund eligibility for a cancellation made at now for a
// class starting at classStart. Cancelling exactly HoursBeforeClass hours
// ahead is still inside the window.
func Evaluate(now, classStart time.Time, p model.CancellationPolicy) Decision {
	window := time.Duration(p.HoursBeforeClass) * time.Hour
	if classStart.Sub(now) >= window {
		return Decision{WithinWindow: true, RefundPercentage: p.RefundPercentage}
	}
	return Decision{WithinWindow: false, RefundPercentage: 0}
}

var hundred = decimal.NewFromInt(100)

// RefundAmount returns price * percentage / 100 rounded to cents.
func RefundAmount(price decimal.Decimal, percentage int) decimal.Decimal {
	if percentage <= 0 || price.IsZero() {
		return decimal.Zero
	}
	if percentage > 100 {
		percentage = 100
	}
	return price.Mul(decimal.NewFromInt(int64(percentage))).Div(hundred).Round(2)
}

// WithinCutoff reports whether now falls inside the hard cutoff before
// classStart. A non-positive cutoff disables the check.
func WithinCutoff(now, classStart time.Time, cutoff time.Duration) bool {
	if cutoff <= 0 {
		return false
	}
	return classStart.Sub(now) < cutoff
}
