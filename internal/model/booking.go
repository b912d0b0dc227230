package model

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no_show"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Booking struct {
	ID                 uuid.UUID           `db:"id" json:"id"`
	UserID             uuid.UUID           `db:"user_id" json:"user_id"`
	ClassID            uuid.UUID           `db:"class_id" json:"class_id"`
	ClassInstanceID    uuid.UUID           `db:"class_instance_id" json:"class_instance_id"`
	BookingDate        time.Time           `db:"booking_date" json:"booking_date"`
	Status             BookingStatus       `db:"status" json:"status"`
	PaymentStatus      PaymentStatus       `db:"payment_status" json:"payment_status"`
	PaymentID          *string             `db:"payment_id" json:"payment_id,omitempty"`
	CheckInTime        *time.Time          `db:"check_in_time" json:"check_in_time,omitempty"`
	CheckOutTime       *time.Time          `db:"check_out_time" json:"check_out_time,omitempty"`
	Notes              *string             `db:"notes" json:"notes,omitempty"`
	CancellationReason *string             `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time          `db:"cancelled_at" json:"cancelled_at,omitempty"`
	RefundAmount       decimal.NullDecimal `db:"refund_amount" json:"refund_amount"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

type BookingStats struct {
	TotalBookings     int     `db:"total_bookings" json:"total_bookings"`
	ConfirmedBookings int     `db:"confirmed_bookings" json:"confirmed_bookings"`
	CancelledBookings int     `db:"cancelled_bookings" json:"cancelled_bookings"`
	CompletedBookings int     `db:"completed_bookings" json:"completed_bookings"`
	NoShowBookings    int     `db:"no_show_bookings" json:"no_show_bookings"`
	CancellationRate  float64 `db:"-" json:"cancellation_rate"`
}

// SetCancellationRate derives CancellationRate as a percentage of all
// bookings, rounded to two decimals.
func (s *BookingStats) SetCancellationRate() {
	if s.TotalBookings == 0 {
		s.CancellationRate = 0
		return
	}
	rate := float64(s.CancelledBookings) / float64(s.TotalBookings) * 100
	s.CancellationRate = math.Round(rate*100) / 100
}
