package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"gym-booking-service/internal/model"
	"gym-booking-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	subject          string
	bookingID        uuid.UUID
	refundPercentage int
	affected         int
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) record(e publishedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) PublishBookingCreated(booking *model.Booking, _ *model.ClassInstance) error {
	return p.record(publishedEvent{subject: "booking.created", bookingID: booking.ID})
}

func (p *fakePublisher) PublishBookingCancelled(booking *model.Booking, refundPercentage int) error {
	return p.record(publishedEvent{subject: "booking.cancelled", bookingID: booking.ID, refundPercentage: refundPercentage})
}

func (p *fakePublisher) PublishBookingStatusChanged(booking *model.Booking) error {
	return p.record(publishedEvent{subject: "booking." + string(booking.Status), bookingID: booking.ID})
}

func (p *fakePublisher) PublishClassInstanceCancelled(_ *model.ClassInstance, _ string, affected []model.Booking) error {
	return p.record(publishedEvent{subject: "class_instance.cancelled", affected: len(affected)})
}

func (p *fakePublisher) find(subject string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.subject == subject {
			out = append(out, e)
		}
	}
	return out
}

var (
	classStart = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	admin      = Actor{UserID: uuid.New(), Role: model.RoleAdmin}
)

func member() Actor {
	return Actor{UserID: uuid.New(), Role: model.RoleMember}
}

type ledgerFixture struct {
	store     *repository.MemoryStore
	publisher *fakePublisher
	ledger    BookingService
	instances ClassInstanceService
	class     *model.ClassTemplate
	instance  *model.ClassInstance
	now       time.Time
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	capacity int
	policy   model.CancellationPolicy
	cutoff   time.Duration
	now      time.Time
}

func withCapacity(n int) fixtureOption { return func(c *fixtureConfig) { c.capacity = n } }

func withCutoff(d time.Duration) fixtureOption { return func(c *fixtureConfig) { c.cutoff = d } }

func withNow(t time.Time) fixtureOption { return func(c *fixtureConfig) { c.now = t } }

func newLedgerFixture(t *testing.T, opts ...fixtureOption) *ledgerFixture {
	t.Helper()

	cfg := fixtureConfig{
		capacity: 10,
		policy:   model.DefaultCancellationPolicy,
		now:      classStart.Add(-48 * time.Hour),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()
	store := repository.NewMemoryStore()
	class, err := store.Classes.Create(ctx, &model.ClassTemplate{
		Name:               "Evening Spin",
		Type:               model.ClassTypeSpinning,
		TrainerID:          uuid.New(),
		MaxCapacity:        cfg.capacity,
		DurationMinutes:    60,
		Price:              decimal.RequireFromString("25.00"),
		Status:             model.ClassStatusActive,
		CancellationPolicy: cfg.policy,
		Difficulty:         model.DifficultyIntermediate,
		Location:           model.Location{Room: "Studio 2"},
		IsBookable:         true,
	})
	require.NoError(t, err)

	instance, err := store.Instances.Create(ctx, &model.ClassInstance{
		ClassID:       class.ID,
		TrainerID:     class.TrainerID,
		ScheduledDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:     classStart,
		EndTime:       classStart.Add(time.Hour),
		MaxCapacity:   cfg.capacity,
		Status:        model.InstanceStatusScheduled,
	})
	require.NoError(t, err)

	f := &ledgerFixture{
		store:     store,
		publisher: &fakePublisher{},
		class:     class,
		instance:  instance,
		now:       cfg.now,
	}
	f.ledger = NewBookingService(store.Bookings, store.Instances, store.Classes, f.publisher, LedgerConfig{
		MemberCancelCutoff: cfg.cutoff,
		Now:                func() time.Time { return f.now },
	})
	f.instances = NewClassInstanceService(store.Classes, store.Instances, store.Bookings, f.publisher, time.UTC)
	return f
}

func (f *ledgerFixture) book(t *testing.T, actor Actor) *model.Booking {
	t.Helper()
	booking, err := f.ledger.CreateBooking(context.Background(), actor, CreateBookingInput{ClassInstanceID: f.instance.ID})
	require.NoError(t, err)
	return booking
}

func (f *ledgerFixture) roster(t *testing.T) int {
	t.Helper()
	instance, err := f.store.Instances.FindByID(context.Background(), f.instance.ID)
	require.NoError(t, err)
	require.NotNil(t, instance)
	return instance.CurrentBookings
}
