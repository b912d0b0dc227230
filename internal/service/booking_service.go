package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gym-booking-service/internal/events"
	"gym-booking-service/internal/model"
	"gym-booking-service/internal/policy"
	"gym-booking-service/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("gym-booking-service/internal/service")

type CreateBookingInput struct {
	UserID          uuid.UUID  `json:"user_id"`
	ClassID         *uuid.UUID `json:"class_id"`
	ClassInstanceID uuid.UUID  `json:"class_instance_id" validate:"required"`
	BookingDate     *time.Time `json:"booking_date"`
	Notes           *string    `json:"notes" validate:"omitempty,max=500"`
}

type LedgerConfig struct {
	// MemberCancelCutoff blocks member-initiated cancellation this close to
	// class start. Zero disables it.
	MemberCancelCutoff time.Duration
	Now                func() time.Time
}

type BookingService interface {
	CreateBooking(ctx context.Context, actor Actor, input CreateBookingInput) (*model.Booking, error)
	CancelBooking(ctx context.Context, actor Actor, bookingID uuid.UUID, reason *string) (*model.Booking, error)
	MarkCompleted(ctx context.Context, actor Actor, bookingID uuid.UUID) (*model.Booking, error)
	MarkNoShow(ctx context.Context, actor Actor, bookingID uuid.UUID) (*model.Booking, error)
	Get(ctx context.Context, actor Actor, bookingID uuid.UUID) (*model.Booking, error)
	List(ctx context.Context, actor Actor, filter repository.BookingFilter) (*repository.PaginatedBookings, error)
	Stats(ctx context.Context, actor Actor, filter repository.StatsFilter) (*model.BookingStats, error)
	CheckIn(ctx context.Context, actor Actor, bookingID uuid.UUID) (*model.Booking, error)
	CheckOut(ctx context.Context, actor Actor, bookingID uuid.UUID) (*model.Booking, error)
	UpdatePaymentStatus(ctx context.Context, bookingID uuid.UUID, status model.PaymentStatus, paymentID *string) (*model.Booking, error)
}

type bookingService struct {
	bookingRepo  repository.BookingRepository
	instanceRepo repository.ClassInstanceRepository
	classRepo    repository.ClassRepository
	publisher    events.EventPublisher
	cutoff       time.Duration
	now          func() time.Time
}

func NewBookingService(
	bookingRepo repository.BookingRepository,
	instanceRepo repository.ClassInstanceRepository,
	classRepo repository.ClassRepository,
	publisher events.EventPublisher,
	cfg LedgerConfig,
) BookingService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &bookingService{
		bookingRepo:  bookingRepo,
		instanceRepo: instanceRepo,
		classRepo:    classRepo,
		publisher:    publisher,
		cutoff:       cfg.MemberCancelCutoff,
		now:          now,
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *bookingService) CreateBooking(ctx context.Context, actor Actor, input CreateBookingInput) (booking *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "BookingLedger.CreateBooking",
		trace.WithAttributes(attribute.String("class_instance.id", input.ClassInstanceID.String())))
	defer func() { endSpan(span, err) }()

	userID := input.UserID
	if userID == uuid.Nil {
		userID = actor.UserID
	}
	if !actor.canActFor(userID) {
		return nil, ErrForbidden
	}

	instance, err := s.instanceRepo.FindByID(ctx, input.ClassInstanceID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, s.reject("not_found", ErrClassInstanceNotFound)
	}
	if instance.Status != model.InstanceStatusScheduled {
		return nil, s.reject("not_scheduled", fmt.Errorf("%w: instance is %s", ErrClassInstanceNotFound, instance.Status))
	}
	if input.ClassID != nil && *input.ClassID != instance.ClassID {
		return nil, s.reject("invalid", newValidationError("class_id", "mismatch"))
	}

	class, err := s.classRepo.FindByID(ctx, instance.ClassID)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, s.reject("not_found", ErrClassNotFound)
	}
	if !class.IsBookable {
		return nil, s.reject("invalid", newValidationError("class_id", "bookable"))
	}

	bookingDate := instance.ScheduledDate
	if input.BookingDate != nil {
		bookingDate = *input.BookingDate
	}

	created, updated, err := s.bookingRepo.CreateConfirmed(ctx, &model.Booking{
		UserID:          userID,
		ClassID:         instance.ClassID,
		ClassInstanceID: instance.ID,
		BookingDate:     bookingDate,
		Notes:           input.Notes,
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, s.reject("not_found", ErrClassInstanceNotFound)
	case errors.Is(err, repository.ErrInstanceNotScheduled):
		return nil, s.reject("not_scheduled", fmt.Errorf("%w: instance is no longer scheduled", ErrClassInstanceNotFound))
	case errors.Is(err, repository.ErrCapacityExceeded):
		return nil, s.reject("full", ErrClassFull)
	case errors.Is(err, repository.ErrDuplicateBooking):
		return nil, s.reject("duplicate", ErrDuplicateBooking)
	case err != nil:
		return nil, err
	}

	bookingsCreatedTotal.Inc()
	span.SetAttributes(attribute.String("booking.id", created.ID.String()))
	slog.InfoContext(ctx, "booking created",
		"booking_id", created.ID, "user_id", userID, "class_instance_id", instance.ID,
		"current_bookings", updated.CurrentBookings, "max_capacity", updated.MaxCapacity)

	go s.publisher.PublishBookingCreated(created, updated)

	return created, nil
}

func (s *bookingService) reject(reason string, err error) error {
	bookingsRejectedTotal.WithLabelValues(reason).Inc()
	return err
}

func (s *bookingService) CancelBooking(ctx context.Context, actor Actor, bookingID uuid.UUID, reason *string) (cancelled *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "BookingLedger.CancelBooking",
		trace.WithAttributes(attribute.String("booking.id", bookingID.String())))
	defer func() { endSpan(span, err) }()

	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.canActFor(booking.UserID) {
		return nil, ErrForbidden
	}
	if booking.Status != model.BookingStatusConfirmed {
		return nil, ErrAlreadyCancelled
	}

	instance, err := s.instanceRepo.FindByID(ctx, booking.ClassInstanceID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, ErrClassInstanceNotFound
	}
	class, err := s.classRepo.FindByID(ctx, booking.ClassID)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, ErrClassNotFound
	}

	now := s.now()
	if instance.Status != model.InstanceStatusScheduled {
		return nil, fmt.Errorf("%w: class instance is %s", ErrInvalidStateTransition, instance.Status)
	}
	if !now.Before(instance.StartTime) {
		return nil, fmt.Errorf("%w: class instance has already started", ErrInvalidStateTransition)
	}
	if !actor.Role.IsPrivileged() && policy.WithinCutoff(now, instance.StartTime, s.cutoff) {
		return nil, ErrCancellationCutoff
	}

	decision := policy.Evaluate(now, instance.StartTime, class.CancellationPolicy)
	refund := policy.RefundAmount(class.Price, decision.RefundPercentage)
	span.SetAttributes(
		attribute.Bool("cancellation.within_window", decision.WithinWindow),
		attribute.Int("cancellation.refund_percentage", decision.RefundPercentage),
	)

	result, err := s.bookingRepo.Cancel(ctx, repository.CancelParams{
		BookingID:    bookingID,
		Reason:       reason,
		CancelledAt:  now,
		RefundAmount: refund,
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrBookingNotFound
	case errors.Is(err, repository.ErrStateConflict):
		return nil, ErrAlreadyCancelled
	case errors.Is(err, repository.ErrInstanceNotScheduled):
		return nil, fmt.Errorf("%w: class instance is no longer scheduled", ErrInvalidStateTransition)
	case err != nil:
		return nil, err
	}

	if result.RosterDrift {
		rosterDriftAnomaliesTotal.Inc()
		slog.WarnContext(ctx, "roster counter already at zero on cancellation",
			"booking_id", bookingID, "class_instance_id", booking.ClassInstanceID)
	}

	bookingsCancelledTotal.WithLabelValues(fmt.Sprintf("%t", refund.IsPositive())).Inc()
	slog.InfoContext(ctx, "booking cancelled",
		"booking_id", bookingID, "actor_id", actor.UserID, "refund_percentage", decision.RefundPercentage,
		"refund_amount", refund.StringFixed(2))

	go s.publisher.PublishBookingCancelled(result.Booking, decision.RefundPercentage)

	return result.Booking, nil
}

func (s *bookingService) MarkCompleted(ctx context.Context, actor Actor, bookingID uuid.UUID) (*model.Booking, error) {
	return s.finish(ctx, actor, bookingID, model.BookingStatusCompleted)
}

func (s *bookingService) MarkNoShow(ctx context.Context, actor Actor, bookingID uuid.UUID) (*model.Booking, error) {
	return s.finish(ctx, actor, bookingID, model.BookingStatusNoShow)
}

// finish closes out a confirmed booking once its class is over. The seat it
// held is not released.
func (s *bookingService) finish(ctx context.Context, actor Actor, bookingID uuid.UUID, to model.BookingStatus) (*model.Booking, error) {
	if !actor.Role.IsPrivileged() {
		return nil, ErrForbidden
	}

	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.BookingStatusConfirmed {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidStateTransition, booking.Status)
	}

	instance, err := s.instanceRepo.FindByID(ctx, booking.ClassInstanceID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, ErrClassInstanceNotFound
	}
	if instance.Status != model.InstanceStatusCompleted {
		return nil, fmt.Errorf("%w: class instance is %s", ErrInvalidStateTransition, instance.Status)
	}

	updated, err := s.bookingRepo.UpdateStatus(ctx, bookingID, model.BookingStatusConfirmed, to)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrBookingNotFound
	case errors.Is(err, repository.ErrStateConflict):
		return nil, ErrInvalidStateTransition
	case err != nil:
		return nil, err
	}

	go s.publisher.PublishBookingStatusChanged(updated)

	return updated, nil
}

func (s *bookingService) Get(ctx context.Context, actor Actor, bookingID uuid.UUID) (*model.Booking, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role == model.RoleMember && booking.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, actor Actor, filter repository.BookingFilter) (*repository.PaginatedBookings, error) {
	if actor.Role == model.RoleMember {
		filter.UserID = &actor.UserID
	}
	return s.bookingRepo.List(ctx, filter)
}

func (s *bookingService) Stats(ctx context.Context, actor Actor, filter repository.StatsFilter) (*model.BookingStats, error) {
	if actor.Role == model.RoleMember {
		return nil, ErrForbidden
	}
	return s.bookingRepo.Stats(ctx, filter)
}

func (s *bookingService) CheckIn(ctx context.Context, actor Actor, bookingID uuid.UUID) (*model.Booking, error) {
	booking, err := s.loadForAttendance(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.BookingStatusConfirmed || booking.CheckInTime != nil {
		return nil, fmt.Errorf("%w: booking cannot be checked in", ErrInvalidStateTransition)
	}

	updated, err := s.bookingRepo.RecordCheckIn(ctx, bookingID, s.now())
	return updated, mapAttendanceErr(err)
}

func (s *bookingService) CheckOut(ctx context.Context, actor Actor, bookingID uuid.UUID) (*model.Booking, error) {
	booking, err := s.loadForAttendance(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.CheckInTime == nil || booking.CheckOutTime != nil {
		return nil, fmt.Errorf("%w: booking cannot be checked out", ErrInvalidStateTransition)
	}

	updated, err := s.bookingRepo.RecordCheckOut(ctx, bookingID, s.now())
	return updated, mapAttendanceErr(err)
}

func (s *bookingService) loadForAttendance(ctx context.Context, actor Actor, bookingID uuid.UUID) (*model.Booking, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.canActFor(booking.UserID) && actor.Role != model.RoleStaff {
		return nil, ErrForbidden
	}

	instance, err := s.instanceRepo.FindByID(ctx, booking.ClassInstanceID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, ErrClassInstanceNotFound
	}
	if instance.Status != model.InstanceStatusScheduled && instance.Status != model.InstanceStatusOngoing {
		return nil, fmt.Errorf("%w: class instance is %s", ErrInvalidStateTransition, instance.Status)
	}
	return booking, nil
}

func mapAttendanceErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrBookingNotFound
	case errors.Is(err, repository.ErrStateConflict):
		return ErrInvalidStateTransition
	}
	return err
}

var paymentTransitions = map[model.PaymentStatus][]model.PaymentStatus{
	model.PaymentStatusPending: {model.PaymentStatusPaid, model.PaymentStatusRefunded},
	model.PaymentStatusPaid:    {model.PaymentStatusRefunded},
}

// UpdatePaymentStatus applies an asynchronous gateway confirmation. Repeating
// the current status is a no-op.
func (s *bookingService) UpdatePaymentStatus(ctx context.Context, bookingID uuid.UUID, status model.PaymentStatus, paymentID *string) (*model.Booking, error) {
	switch status {
	case model.PaymentStatusPending, model.PaymentStatusPaid, model.PaymentStatusRefunded:
	default:
		return nil, newValidationError("payment_status", "oneof")
	}

	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PaymentStatus == status {
		return booking, nil
	}

	allowed := false
	for _, next := range paymentTransitions[booking.PaymentStatus] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: payment %s to %s", ErrInvalidStateTransition, booking.PaymentStatus, status)
	}

	updated, err := s.bookingRepo.UpdatePaymentStatus(ctx, bookingID, booking.PaymentStatus, status, paymentID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrBookingNotFound
	case errors.Is(err, repository.ErrStateConflict):
		return nil, ErrInvalidStateTransition
	case err != nil:
		return nil, err
	}

	slog.InfoContext(ctx, "payment status updated", "booking_id", bookingID, "payment_status", status)
	return updated, nil
}

func (s *bookingService) load(ctx context.Context, bookingID uuid.UUID) (*model.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}
