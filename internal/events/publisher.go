package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"gym-booking-service/internal/model"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

const (
	SubjectBookingCreated         = "booking.created"
	SubjectBookingCancelled       = "booking.cancelled"
	SubjectBookingCompleted       = "booking.completed"
	SubjectBookingNoShow          = "booking.no_show"
	SubjectClassInstanceCancelled = "class_instance.cancelled"
	SubjectPaymentStatusUpdated   = "payment.status.updated"
	SubjectPaymentStatusFailed    = "payment.status.failed"
)

// EventPublisher fans booking lifecycle events out to notification consumers.
// Delivery is fire-and-forget; callers never block on or retry it.
type EventPublisher interface {
	PublishBookingCreated(booking *model.Booking, instance *model.ClassInstance) error
	PublishBookingCancelled(booking *model.Booking, refundPercentage int) error
	PublishBookingStatusChanged(booking *model.Booking) error
	PublishClassInstanceCancelled(instance *model.ClassInstance, reason string, affected []model.Booking) error
}

type BookingCreatedEvent struct {
	EventType       string    `json:"event_type"`
	BookingID       uuid.UUID `json:"booking_id"`
	UserID          uuid.UUID `json:"user_id"`
	ClassID         uuid.UUID `json:"class_id"`
	ClassInstanceID uuid.UUID `json:"class_instance_id"`
	StartTime       time.Time `json:"start_time"`
	CreatedAt       time.Time `json:"created_at"`
}

type BookingCancelledEvent struct {
	EventType        string          `json:"event_type"`
	BookingID        uuid.UUID       `json:"booking_id"`
	UserID           uuid.UUID       `json:"user_id"`
	ClassInstanceID  uuid.UUID       `json:"class_instance_id"`
	Reason           *string         `json:"reason,omitempty"`
	RefundPercentage int             `json:"refund_percentage"`
	RefundAmount     decimal.Decimal `json:"refund_amount"`
	CancelledAt      time.Time       `json:"cancelled_at"`
}

type BookingStatusChangedEvent struct {
	EventType       string              `json:"event_type"`
	BookingID       uuid.UUID           `json:"booking_id"`
	UserID          uuid.UUID           `json:"user_id"`
	ClassInstanceID uuid.UUID           `json:"class_instance_id"`
	Status          model.BookingStatus `json:"status"`
	ChangedAt       time.Time           `json:"changed_at"`
}

type ClassInstanceCancelledEvent struct {
	EventType       string      `json:"event_type"`
	ClassInstanceID uuid.UUID   `json:"class_instance_id"`
	ClassID         uuid.UUID   `json:"class_id"`
	StartTime       time.Time   `json:"start_time"`
	Reason          string      `json:"reason"`
	AffectedUserIDs []uuid.UUID `json:"affected_user_ids"`
	CancelledAt     time.Time   `json:"cancelled_at"`
}

type conn interface {
	Publish(subj string, data []byte) error
}

type NatsPublisher struct {
	conn conn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{conn: nc}
}

func (p *NatsPublisher) PublishBookingCreated(booking *model.Booking, instance *model.ClassInstance) error {
	event := BookingCreatedEvent{
		EventType:       SubjectBookingCreated,
		BookingID:       booking.ID,
		UserID:          booking.UserID,
		ClassID:         booking.ClassID,
		ClassInstanceID: booking.ClassInstanceID,
		CreatedAt:       booking.CreatedAt,
	}
	if instance != nil {
		event.StartTime = instance.StartTime
	}
	return p.publish(SubjectBookingCreated, event)
}

func (p *NatsPublisher) PublishBookingCancelled(booking *model.Booking, refundPercentage int) error {
	event := BookingCancelledEvent{
		EventType:        SubjectBookingCancelled,
		BookingID:        booking.ID,
		UserID:           booking.UserID,
		ClassInstanceID:  booking.ClassInstanceID,
		Reason:           booking.CancellationReason,
		RefundPercentage: refundPercentage,
		RefundAmount:     booking.RefundAmount.Decimal,
	}
	if booking.CancelledAt != nil {
		event.CancelledAt = *booking.CancelledAt
	}
	return p.publish(SubjectBookingCancelled, event)
}

func (p *NatsPublisher) PublishBookingStatusChanged(booking *model.Booking) error {
	subject := SubjectBookingCompleted
	if booking.Status == model.BookingStatusNoShow {
		subject = SubjectBookingNoShow
	}

	event := BookingStatusChangedEvent{
		EventType:       subject,
		BookingID:       booking.ID,
		UserID:          booking.UserID,
		ClassInstanceID: booking.ClassInstanceID,
		Status:          booking.Status,
		ChangedAt:       booking.UpdatedAt,
	}
	return p.publish(subject, event)
}

func (p *NatsPublisher) PublishClassInstanceCancelled(instance *model.ClassInstance, reason string, affected []model.Booking) error {
	userIDs := make([]uuid.UUID, 0, len(affected))
	for _, b := range affected {
		userIDs = append(userIDs, b.UserID)
	}

	event := ClassInstanceCancelledEvent{
		EventType:       SubjectClassInstanceCancelled,
		ClassInstanceID: instance.ID,
		ClassID:         instance.ClassID,
		StartTime:       instance.StartTime,
		Reason:          reason,
		AffectedUserIDs: userIDs,
		CancelledAt:     instance.UpdatedAt,
	}
	return p.publish(SubjectClassInstanceCancelled, event)
}

func (p *NatsPublisher) publish(subject string, event any) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal event", "subject", subject, "error", err)
		return err
	}

	if err := p.conn.Publish(subject, eventJSON); err != nil {
		slog.Error("failed to publish to NATS", "subject", subject, "error", err)
		return err
	}

	slog.Debug("published event", "subject", subject)
	return nil
}

// LogPublisher only logs events. It stands in for NATS when no broker is
// configured.
type LogPublisher struct{}

func (LogPublisher) PublishBookingCreated(booking *model.Booking, _ *model.ClassInstance) error {
	slog.InfoContext(context.Background(), "booking created", "booking_id", booking.ID, "user_id", booking.UserID)
	return nil
}

func (LogPublisher) PublishBookingCancelled(booking *model.Booking, refundPercentage int) error {
	slog.InfoContext(context.Background(), "booking cancelled",
		"booking_id", booking.ID, "user_id", booking.UserID, "refund_percentage", refundPercentage)
	return nil
}

func (LogPublisher) PublishBookingStatusChanged(booking *model.Booking) error {
	slog.InfoContext(context.Background(), "booking status changed", "booking_id", booking.ID, "status", booking.Status)
	return nil
}

func (LogPublisher) PublishClassInstanceCancelled(instance *model.ClassInstance, reason string, affected []model.Booking) error {
	slog.InfoContext(context.Background(), "class instance cancelled",
		"class_instance_id", instance.ID, "reason", reason, "affected_bookings", len(affected))
	return nil
}
