package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gym-booking-service/internal/model"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

type PaymentStatusUpdatedEvent struct {
	EventType     string              `json:"event_type"`
	BookingID     uuid.UUID           `json:"booking_id"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	PaymentID     *string             `json:"payment_id,omitempty"`
}

// PaymentStatusUpdater applies a gateway confirmation to a booking.
type PaymentStatusUpdater interface {
	UpdatePaymentStatus(ctx context.Context, bookingID uuid.UUID, status model.PaymentStatus, paymentID *string) (*model.Booking, error)
}

type subscriberConn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type PaymentSubscriberConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	// Permanent reports errors that retrying cannot fix. Such messages go
	// straight to the dead-letter subject.
	Permanent func(error) bool
}

type PaymentSubscriber struct {
	conn    subscriberConn
	updater PaymentStatusUpdater
	cfg     PaymentSubscriberConfig
}

func NewPaymentSubscriber(nc *nats.Conn, updater PaymentStatusUpdater, cfg PaymentSubscriberConfig) *PaymentSubscriber {
	return newPaymentSubscriber(nc, updater, cfg)
}

func newPaymentSubscriber(c subscriberConn, updater PaymentStatusUpdater, cfg PaymentSubscriberConfig) *PaymentSubscriber {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Permanent == nil {
		cfg.Permanent = func(error) bool { return false }
	}
	return &PaymentSubscriber{conn: c, updater: updater, cfg: cfg}
}

func (s *PaymentSubscriber) Start() error {
	if _, err := s.conn.Subscribe(SubjectPaymentStatusUpdated, s.handle); err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectPaymentStatusUpdated, err)
	}
	slog.Info("payment subscriber listening", "subject", SubjectPaymentStatusUpdated)
	return nil
}

func (s *PaymentSubscriber) handle(msg *nats.Msg) {
	ctx := context.Background()

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		lastErr = s.process(ctx, msg.Data)
		if lastErr == nil {
			return
		}
		var malformed *malformedEventError
		if errors.As(lastErr, &malformed) || s.cfg.Permanent(lastErr) {
			break
		}

		slog.WarnContext(ctx, "payment status update failed, retrying",
			"attempt", attempt, "retry_in", s.cfg.RetryDelay, "error", lastErr)
		if attempt < s.cfg.MaxRetries {
			time.Sleep(s.cfg.RetryDelay)
		}
	}

	slog.ErrorContext(ctx, "payment status update abandoned", "error", lastErr)

	if err := s.conn.Publish(SubjectPaymentStatusFailed, msg.Data); err != nil {
		slog.ErrorContext(ctx, "failed to publish to DLQ", "subject", SubjectPaymentStatusFailed, "error", err)
		return
	}
	slog.InfoContext(ctx, "published failed payment update to DLQ", "subject", SubjectPaymentStatusFailed)
}

type malformedEventError struct {
	err error
}

func (e *malformedEventError) Error() string { return "malformed payment event: " + e.err.Error() }

func (e *malformedEventError) Unwrap() error { return e.err }

func (s *PaymentSubscriber) process(ctx context.Context, data []byte) error {
	var event PaymentStatusUpdatedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return &malformedEventError{err: err}
	}

	booking, err := s.updater.UpdatePaymentStatus(ctx, event.BookingID, event.PaymentStatus, event.PaymentID)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "payment status applied",
		"booking_id", booking.ID, "payment_status", booking.PaymentStatus)
	return nil
}
