package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gym-booking-service/internal/events"
	"gym-booking-service/internal/model"
	"gym-booking-service/internal/repository"

	"github.com/google/uuid"
)

type CreateInstanceInput struct {
	ClassID       uuid.UUID `json:"class_id" validate:"required"`
	ScheduledDate time.Time `json:"scheduled_date"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	EndTime       time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Notes         *string   `json:"notes" validate:"omitempty,max=500"`
}

type AdvanceResult struct {
	Started   int `json:"started"`
	Completed int `json:"completed"`
}

type ClassInstanceService interface {
	Create(ctx context.Context, actor Actor, input CreateInstanceInput) (*model.ClassInstance, error)
	Get(ctx context.Context, id uuid.UUID) (*model.ClassInstance, error)
	List(ctx context.Context, filter repository.InstanceFilter) ([]model.ClassInstance, error)
	SetStatus(ctx context.Context, actor Actor, id uuid.UUID, status model.InstanceStatus, reason string) (*model.ClassInstance, error)
	Materialize(ctx context.Context, classID uuid.UUID, from, to time.Time) ([]model.ClassInstance, error)
	MaterializeAll(ctx context.Context, from, to time.Time) (int, error)
	AdvanceStatuses(ctx context.Context, now time.Time) (*AdvanceResult, error)
}

type classInstanceService struct {
	classRepo    repository.ClassRepository
	instanceRepo repository.ClassInstanceRepository
	bookingRepo  repository.BookingRepository
	publisher    events.EventPublisher
	location     *time.Location
	now          func() time.Time
}

func NewClassInstanceService(
	classRepo repository.ClassRepository,
	instanceRepo repository.ClassInstanceRepository,
	bookingRepo repository.BookingRepository,
	publisher events.EventPublisher,
	location *time.Location,
) ClassInstanceService {
	if location == nil {
		location = time.UTC
	}
	return &classInstanceService{
		classRepo:    classRepo,
		instanceRepo: instanceRepo,
		bookingRepo:  bookingRepo,
		publisher:    publisher,
		location:     location,
		now:          time.Now,
	}
}

func (s *classInstanceService) Create(ctx context.Context, actor Actor, input CreateInstanceInput) (*model.ClassInstance, error) {
	if !actor.Role.IsPrivileged() {
		return nil, ErrForbidden
	}
	if !input.EndTime.After(input.StartTime) {
		return nil, newValidationError("end_time", "gtfield")
	}

	class, err := s.classRepo.FindByID(ctx, input.ClassID)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, ErrClassNotFound
	}
	if class.Status != model.ClassStatusActive {
		return nil, newValidationError("class_id", "active")
	}

	scheduled := input.ScheduledDate
	if scheduled.IsZero() {
		scheduled = input.StartTime
	}

	return s.create(ctx, class, scheduled, input.StartTime, input.EndTime, input.Notes)
}

func (s *classInstanceService) create(ctx context.Context, class *model.ClassTemplate, scheduled, start, end time.Time, notes *string) (*model.ClassInstance, error) {
	y, m, d := scheduled.In(s.location).Date()
	instance := &model.ClassInstance{
		ClassID:       class.ID,
		TrainerID:     class.TrainerID,
		ScheduledDate: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		StartTime:     start,
		EndTime:       end,
		MaxCapacity:   class.MaxCapacity,
		Status:        model.InstanceStatusScheduled,
		Notes:         notes,
	}

	created, err := s.instanceRepo.Create(ctx, instance)
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrInstanceConflict
	}
	return created, err
}

func (s *classInstanceService) Get(ctx context.Context, id uuid.UUID) (*model.ClassInstance, error) {
	instance, err := s.instanceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, ErrClassInstanceNotFound
	}
	return instance, nil
}

func (s *classInstanceService) List(ctx context.Context, filter repository.InstanceFilter) ([]model.ClassInstance, error) {
	return s.instanceRepo.List(ctx, filter)
}

func (s *classInstanceService) SetStatus(ctx context.Context, actor Actor, id uuid.UUID, status model.InstanceStatus, reason string) (*model.ClassInstance, error) {
	if !actor.Role.IsPrivileged() {
		return nil, ErrForbidden
	}

	instance, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !instance.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStateTransition, instance.Status, status)
	}

	if status == model.InstanceStatusCancelled {
		return s.cancel(ctx, instance, reason)
	}

	updated, err := s.instanceRepo.UpdateStatus(ctx, id, instance.Status, status, s.now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrClassInstanceNotFound
	case errors.Is(err, repository.ErrStateConflict):
		return nil, ErrInvalidStateTransition
	case err != nil:
		return nil, err
	}
	return updated, nil
}

// cancel closes the instance and cancels every confirmed booking on it with a
// full refund, in one store transaction.
func (s *classInstanceService) cancel(ctx context.Context, instance *model.ClassInstance, reason string) (*model.ClassInstance, error) {
	class, err := s.classRepo.FindByID(ctx, instance.ClassID)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, ErrClassNotFound
	}
	if reason == "" {
		reason = "class cancelled"
	}

	result, err := s.bookingRepo.CancelInstance(ctx, repository.InstanceCancelParams{
		InstanceID:   instance.ID,
		Reason:       reason,
		CancelledAt:  s.now(),
		RefundAmount: class.Price,
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrClassInstanceNotFound
	case errors.Is(err, repository.ErrStateConflict):
		return nil, ErrInvalidStateTransition
	case err != nil:
		return nil, err
	}

	slog.InfoContext(ctx, "class instance cancelled",
		"class_instance_id", instance.ID, "cancelled_bookings", len(result.Bookings))

	go s.publisher.PublishClassInstanceCancelled(result.Instance, reason, result.Bookings)
	for i := range result.Bookings {
		go s.publisher.PublishBookingCancelled(&result.Bookings[i], 100)
	}

	return result.Instance, nil
}

// Materialize generates instances for every schedule slot of the class that
// starts in [from, to). Slots that already exist are skipped. Non-recurring
// entries yield only their first occurrence in the window.
func (s *classInstanceService) Materialize(ctx context.Context, classID uuid.UUID, from, to time.Time) ([]model.ClassInstance, error) {
	if !to.After(from) {
		return nil, newValidationError("to", "gtfield")
	}

	class, err := s.classRepo.FindByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, ErrClassNotFound
	}
	if class.Status != model.ClassStatusActive {
		return nil, newValidationError("class_id", "active")
	}

	return s.materialize(ctx, class, from, to)
}

func (s *classInstanceService) MaterializeAll(ctx context.Context, from, to time.Time) (int, error) {
	classes, err := s.classRepo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for i := range classes {
		created, err := s.materialize(ctx, &classes[i], from, to)
		if err != nil {
			slog.ErrorContext(ctx, "failed to materialize class", "class_id", classes[i].ID, "error", err)
			continue
		}
		total += len(created)
	}
	return total, nil
}

func (s *classInstanceService) materialize(ctx context.Context, class *model.ClassTemplate, from, to time.Time) ([]model.ClassInstance, error) {
	created := []model.ClassInstance{}

	for idx, entry := range class.Schedule {
		for _, slot := range s.slots(entry, from, to) {
			instance, err := s.create(ctx, class, slot.start, slot.start, slot.end, nil)
			if errors.Is(err, ErrInstanceConflict) {
				if !entry.IsRecurring {
					break
				}
				continue
			}
			if err != nil {
				return created, fmt.Errorf("schedule entry %d: %w", idx, err)
			}
			created = append(created, *instance)
			instancesMaterializedTotal.Inc()

			if !entry.IsRecurring {
				break
			}
		}
	}

	return created, nil
}

type slot struct {
	start time.Time
	end   time.Time
}

// slots expands one weekly entry into concrete start/end pairs in the
// service's local time zone.
func (s *classInstanceService) slots(entry model.ScheduleEntry, from, to time.Time) []slot {
	startH, startM, err := parseHHMM(entry.StartTime)
	if err != nil {
		return nil
	}
	endH, endM, err := parseHHMM(entry.EndTime)
	if err != nil {
		return nil
	}

	var out []slot
	local := from.In(s.location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	for ; day.Before(to); day = day.AddDate(0, 0, 1) {
		if int(day.Weekday()) != entry.DayOfWeek {
			continue
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), startH, startM, 0, 0, s.location)
		end := time.Date(day.Year(), day.Month(), day.Day(), endH, endM, 0, 0, s.location)
		if start.Before(from) || !start.Before(to) {
			continue
		}
		out = append(out, slot{start: start, end: end})
	}
	return out
}

func parseHHMM(v string) (int, int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

// AdvanceStatuses starts instances whose start time has passed and completes
// those whose end time has passed.
func (s *classInstanceService) AdvanceStatuses(ctx context.Context, now time.Time) (*AdvanceResult, error) {
	result := &AdvanceResult{}

	due, err := s.instanceRepo.List(ctx, repository.InstanceFilter{Status: model.InstanceStatusScheduled, StartBefore: &now})
	if err != nil {
		return nil, err
	}
	for _, instance := range due {
		_, err := s.instanceRepo.UpdateStatus(ctx, instance.ID, model.InstanceStatusScheduled, model.InstanceStatusOngoing, now)
		if errors.Is(err, repository.ErrStateConflict) {
			continue
		}
		if err != nil {
			return result, err
		}
		result.Started++
	}

	finished, err := s.instanceRepo.List(ctx, repository.InstanceFilter{Status: model.InstanceStatusOngoing, EndBefore: &now})
	if err != nil {
		return result, err
	}
	for _, instance := range finished {
		_, err := s.instanceRepo.UpdateStatus(ctx, instance.ID, model.InstanceStatusOngoing, model.InstanceStatusCompleted, now)
		if errors.Is(err, repository.ErrStateConflict) {
			continue
		}
		if err != nil {
			return result, err
		}
		result.Completed++
	}

	if result.Started > 0 || result.Completed > 0 {
		slog.InfoContext(ctx, "advanced class instance statuses", "started", result.Started, "completed", result.Completed)
	}
	return result, nil
}
