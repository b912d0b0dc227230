package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gym-booking-service/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []published
	err  error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subj, data: data})
	return nil
}

func TestNatsPublisher_BookingCreated(t *testing.T) {
	fc := &fakeConn{}
	p := &NatsPublisher{conn: fc}

	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	b := &model.Booking{ID: uuid.New(), UserID: uuid.New(), ClassInstanceID: uuid.New()}
	require.NoError(t, p.PublishBookingCreated(b, &model.ClassInstance{StartTime: start}))

	require.Len(t, fc.msgs, 1)
	require.Equal(t, SubjectBookingCreated, fc.msgs[0].subject)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(fc.msgs[0].data, &decoded))
	require.Equal(t, "booking.created", decoded["event_type"])
	require.Equal(t, b.UserID.String(), decoded["user_id"])
	require.Equal(t, "2026-03-10T18:00:00Z", decoded["start_time"])
}

func TestNatsPublisher_BookingCancelled(t *testing.T) {
	fc := &fakeConn{}
	p := &NatsPublisher{conn: fc}

	at := time.Now()
	b := &model.Booking{ID: uuid.New(), UserID: uuid.New(), CancelledAt: &at}
	b.RefundAmount = decimal.NewNullDecimal(decimal.RequireFromString("12.5"))
	require.NoError(t, p.PublishBookingCancelled(b, 50))

	var decoded BookingCancelledEvent
	require.NoError(t, json.Unmarshal(fc.msgs[0].data, &decoded))
	require.Equal(t, SubjectBookingCancelled, decoded.EventType)
	require.Equal(t, 50, decoded.RefundPercentage)
	require.True(t, decoded.RefundAmount.Equal(decimal.RequireFromString("12.5")))
}

func TestNatsPublisher_StatusChangedPicksSubject(t *testing.T) {
	fc := &fakeConn{}
	p := &NatsPublisher{conn: fc}

	require.NoError(t, p.PublishBookingStatusChanged(&model.Booking{Status: model.BookingStatusCompleted}))
	require.NoError(t, p.PublishBookingStatusChanged(&model.Booking{Status: model.BookingStatusNoShow}))

	require.Equal(t, SubjectBookingCompleted, fc.msgs[0].subject)
	require.Equal(t, SubjectBookingNoShow, fc.msgs[1].subject)
}

func TestNatsPublisher_InstanceCancelledListsUsers(t *testing.T) {
	fc := &fakeConn{}
	p := &NatsPublisher{conn: fc}

	u1, u2 := uuid.New(), uuid.New()
	err := p.PublishClassInstanceCancelled(&model.ClassInstance{ID: uuid.New()}, "pool maintenance",
		[]model.Booking{{UserID: u1}, {UserID: u2}})
	require.NoError(t, err)

	var decoded ClassInstanceCancelledEvent
	require.NoError(t, json.Unmarshal(fc.msgs[0].data, &decoded))
	require.ElementsMatch(t, []uuid.UUID{u1, u2}, decoded.AffectedUserIDs)
	require.Equal(t, "pool maintenance", decoded.Reason)
}

func TestNatsPublisher_PropagatesPublishError(t *testing.T) {
	p := &NatsPublisher{conn: &fakeConn{err: errors.New("nats: connection closed")}}
	require.Error(t, p.PublishBookingCreated(&model.Booking{}, nil))
}
