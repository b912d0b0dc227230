// Package notify turns booking lifecycle events into push notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gym-booking-service/internal/events"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sideshow/apns2/payload"
)

type TokenLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type subscriber interface {
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type message struct {
	title     string
	body      string
	eventType string
	refID     uuid.UUID
}

type Worker struct {
	conn   subscriber
	tokens TokenLister
	pusher Pusher
}

func NewWorker(nc *nats.Conn, tokens TokenLister, pusher Pusher) *Worker {
	return &Worker{conn: nc, tokens: tokens, pusher: pusher}
}

func (w *Worker) Start() error {
	handlers := map[string]nats.MsgHandler{
		events.SubjectBookingCreated:         w.handleBookingCreated,
		events.SubjectBookingCancelled:       w.handleBookingCancelled,
		events.SubjectBookingCompleted:       w.handleBookingStatusChanged,
		events.SubjectBookingNoShow:          w.handleBookingStatusChanged,
		events.SubjectClassInstanceCancelled: w.handleClassInstanceCancelled,
	}
	for subject, handler := range handlers {
		if _, err := w.conn.Subscribe(subject, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		slog.Info("notification worker subscribed", "subject", subject)
	}
	return nil
}

func (w *Worker) handleBookingCreated(msg *nats.Msg) {
	var event events.BookingCreatedEvent
	if !decode(msg, &event) {
		return
	}
	w.notify(context.Background(), event.UserID, message{
		title:     "Booking confirmed",
		body:      fmt.Sprintf("You're booked for the class on %s.", event.StartTime.Format("Mon 2 Jan 15:04")),
		eventType: event.EventType,
		refID:     event.BookingID,
	})
}

func (w *Worker) handleBookingCancelled(msg *nats.Msg) {
	var event events.BookingCancelledEvent
	if !decode(msg, &event) {
		return
	}

	body := "Your booking was cancelled."
	if event.RefundAmount.IsPositive() {
		body = fmt.Sprintf("Your booking was cancelled. A refund of %s (%d%%) is on its way.",
			event.RefundAmount.StringFixed(2), event.RefundPercentage)
	}
	w.notify(context.Background(), event.UserID, message{
		title:     "Booking cancelled",
		body:      body,
		eventType: event.EventType,
		refID:     event.BookingID,
	})
}

func (w *Worker) handleBookingStatusChanged(msg *nats.Msg) {
	var event events.BookingStatusChangedEvent
	if !decode(msg, &event) {
		return
	}

	m := message{title: "Thanks for training with us", body: "Your class attendance has been recorded.", eventType: event.EventType, refID: event.BookingID}
	if event.EventType == events.SubjectBookingNoShow {
		m.title = "We missed you"
		m.body = "You were marked as a no-show for your last class."
	}
	w.notify(context.Background(), event.UserID, m)
}

func (w *Worker) handleClassInstanceCancelled(msg *nats.Msg) {
	var event events.ClassInstanceCancelledEvent
	if !decode(msg, &event) {
		return
	}

	m := message{
		title:     "Class cancelled",
		body:      fmt.Sprintf("The class on %s was cancelled: %s. You'll receive a full refund.", event.StartTime.Format("Mon 2 Jan 15:04"), event.Reason),
		eventType: event.EventType,
		refID:     event.ClassInstanceID,
	}
	for _, userID := range event.AffectedUserIDs {
		w.notify(context.Background(), userID, m)
	}
}

func decode(msg *nats.Msg, v any) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		slog.Error("failed to unmarshal event", "subject", msg.Subject, "error", err)
		return false
	}
	return true
}

func (w *Worker) notify(ctx context.Context, userID uuid.UUID, m message) {
	tokens, err := w.tokens.ListByUser(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to retrieve device tokens", "user_id", userID, "error", err)
		return
	}
	if len(tokens) == 0 {
		slog.InfoContext(ctx, "no device tokens for user, skipping notification", "user_id", userID, "event_type", m.eventType)
		return
	}

	body, err := json.Marshal(payload.NewPayload().
		AlertTitle(m.title).
		AlertBody(m.body).
		Sound("default").
		Custom("event_type", m.eventType).
		Custom("ref_id", m.refID.String()))
	if err != nil {
		slog.ErrorContext(ctx, "failed to build push payload", "error", err)
		return
	}

	sent := 0
	for _, t := range tokens {
		if err := w.pusher.Push(ctx, t, body); err != nil {
			slog.WarnContext(ctx, "failed to send push notification", "user_id", userID, "error", err)
			continue
		}
		sent++
	}
	slog.InfoContext(ctx, "notifications dispatched", "user_id", userID, "event_type", m.eventType, "sent", sent, "devices", len(tokens))
}
