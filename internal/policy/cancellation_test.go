package policy_test

import (
	"testing"
	"time"

	"gym-booking-service/internal/model"
	"gym-booking-service/internal/policy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_Boundary(t *testing.T) {
	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	p := model.CancellationPolicy{HoursBeforeClass: 24, RefundPercentage: 80}

	atBoundary := policy.Evaluate(start.Add(-24*time.Hour), start, p)
	assert.True(t, atBoundary.WithinWindow)
	assert.Equal(t, 80, atBoundary.RefundPercentage)

	oneSecondLater := policy.Evaluate(start.Add(-24*time.Hour+time.Second), start, p)
	assert.False(t, oneSecondLater.WithinWindow)
	assert.Equal(t, 0, oneSecondLater.RefundPercentage)
}

func TestEvaluate_Scenarios(t *testing.T) {
	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	p := model.CancellationPolicy{HoursBeforeClass: 24, RefundPercentage: 100}

	tests := []struct {
		name       string
		now        time.Time
		wantWithin bool
		wantPct    int
	}{
		{"well ahead", start.Add(-25 * time.Hour), true, 100},
		{"inside window", start.Add(-23 * time.Hour), false, 0},
		{"after start", start.Add(time.Minute), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := policy.Evaluate(tt.now, start, p)
			assert.Equal(t, tt.wantWithin, d.WithinWindow)
			assert.Equal(t, tt.wantPct, d.RefundPercentage)
		})
	}
}

func TestEvaluate_ZeroHourPolicy(t *testing.T) {
	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	p := model.CancellationPolicy{HoursBeforeClass: 0, RefundPercentage: 50}

	assert.True(t, policy.Evaluate(start, start, p).WithinWindow)
	assert.False(t, policy.Evaluate(start.Add(time.Nanosecond), start, p).WithinWindow)
}

func TestRefundAmount(t *testing.T) {
	price := decimal.RequireFromString("25.00")

	require.True(t, policy.RefundAmount(price, 100).Equal(price))
	require.True(t, policy.RefundAmount(price, 50).Equal(decimal.RequireFromString("12.50")))
	require.True(t, policy.RefundAmount(price, 0).IsZero())
	require.True(t, policy.RefundAmount(decimal.RequireFromString("9.99"), 33).Equal(decimal.RequireFromString("3.30")))
	require.True(t, policy.RefundAmount(decimal.Zero, 100).IsZero())
}

func TestWithinCutoff(t *testing.T) {
	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	assert.True(t, policy.WithinCutoff(start.Add(-23*time.Hour), start, 24*time.Hour))
	assert.False(t, policy.WithinCutoff(start.Add(-24*time.Hour), start, 24*time.Hour))
	assert.False(t, policy.WithinCutoff(start.Add(-time.Minute), start, 0))
}
