package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gym-booking-service/internal/model"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubConn struct {
	fakeConn
	subjects []string
}

func (f *fakeSubConn) Subscribe(subj string, _ nats.MsgHandler) (*nats.Subscription, error) {
	f.subjects = append(f.subjects, subj)
	return nil, nil
}

type fakeUpdater struct {
	calls int
	errs  []error
}

func (f *fakeUpdater) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status model.PaymentStatus, paymentID *string) (*model.Booking, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &model.Booking{ID: id, PaymentStatus: status, PaymentID: paymentID}, nil
}

func paymentMsg(t *testing.T) *nats.Msg {
	t.Helper()
	pid := "pay_123"
	data, err := json.Marshal(PaymentStatusUpdatedEvent{
		EventType: SubjectPaymentStatusUpdated, BookingID: uuid.New(),
		PaymentStatus: model.PaymentStatusPaid, PaymentID: &pid,
	})
	require.NoError(t, err)
	return &nats.Msg{Subject: SubjectPaymentStatusUpdated, Data: data}
}

func TestPaymentSubscriber_Start(t *testing.T) {
	conn := &fakeSubConn{}
	s := newPaymentSubscriber(conn, &fakeUpdater{}, PaymentSubscriberConfig{})
	require.NoError(t, s.Start())
	assert.Equal(t, []string{SubjectPaymentStatusUpdated}, conn.subjects)
}

func TestPaymentSubscriber_RetriesTransientFailures(t *testing.T) {
	conn := &fakeSubConn{}
	updater := &fakeUpdater{errs: []error{errors.New("db down"), nil}}
	s := newPaymentSubscriber(conn, updater, PaymentSubscriberConfig{MaxRetries: 3, RetryDelay: time.Millisecond})

	s.handle(paymentMsg(t))

	assert.Equal(t, 2, updater.calls)
	assert.Empty(t, conn.msgs)
}

func TestPaymentSubscriber_DeadLettersAfterRetries(t *testing.T) {
	conn := &fakeSubConn{}
	boom := errors.New("db down")
	updater := &fakeUpdater{errs: []error{boom, boom, boom}}
	s := newPaymentSubscriber(conn, updater, PaymentSubscriberConfig{MaxRetries: 3, RetryDelay: time.Millisecond})

	msg := paymentMsg(t)
	s.handle(msg)

	assert.Equal(t, 3, updater.calls)
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, SubjectPaymentStatusFailed, conn.msgs[0].subject)
	assert.Equal(t, msg.Data, conn.msgs[0].data)
}

func TestPaymentSubscriber_PermanentErrorSkipsRetries(t *testing.T) {
	conn := &fakeSubConn{}
	notFound := errors.New("booking not found")
	updater := &fakeUpdater{errs: []error{notFound}}
	s := newPaymentSubscriber(conn, updater, PaymentSubscriberConfig{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		Permanent:  func(err error) bool { return errors.Is(err, notFound) },
	})

	s.handle(paymentMsg(t))

	assert.Equal(t, 1, updater.calls)
	require.Len(t, conn.msgs, 1)
}

func TestPaymentSubscriber_MalformedPayload(t *testing.T) {
	conn := &fakeSubConn{}
	updater := &fakeUpdater{}
	s := newPaymentSubscriber(conn, updater, PaymentSubscriberConfig{MaxRetries: 3, RetryDelay: time.Millisecond})

	s.handle(&nats.Msg{Data: []byte("{not json")})

	assert.Equal(t, 0, updater.calls)
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, SubjectPaymentStatusFailed, conn.msgs[0].subject)
}
