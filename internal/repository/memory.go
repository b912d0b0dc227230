package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gym-booking-service/internal/model"

	"github.com/google/uuid"
)

// MemoryStore keeps every record in process memory behind a single mutex.
// Each repository method holds the lock for its whole read-modify-write, so
// the same capacity and uniqueness guarantees hold as with Postgres.
type MemoryStore struct {
	Classes      ClassRepository
	Instances    ClassInstanceRepository
	Bookings     BookingRepository
	DeviceTokens DeviceTokenRepository
}

type instanceKey struct {
	classID uuid.UUID
	start   int64
}

type memoryDB struct {
	mu           sync.RWMutex
	classes      map[uuid.UUID]model.ClassTemplate
	instances    map[uuid.UUID]model.ClassInstance
	instanceKeys map[instanceKey]uuid.UUID
	bookings     map[uuid.UUID]model.Booking
	deviceTokens map[uuid.UUID][]model.DeviceToken
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	db := &memoryDB{
		classes:      make(map[uuid.UUID]model.ClassTemplate),
		instances:    make(map[uuid.UUID]model.ClassInstance),
		instanceKeys: make(map[instanceKey]uuid.UUID),
		bookings:     make(map[uuid.UUID]model.Booking),
		deviceTokens: make(map[uuid.UUID][]model.DeviceToken),
		now:          func() time.Time { return time.Now().UTC() },
	}
	return &MemoryStore{
		Classes:      &memoryClassRepository{db: db},
		Instances:    &memoryClassInstanceRepository{db: db},
		Bookings:     &memoryBookingRepository{db: db},
		DeviceTokens: &memoryDeviceTokenRepository{db: db},
	}
}

func paginate[T any](items []T, page, limit int) ([]T, PaginationMeta) {
	page, limit = normalizePage(page, limit)
	total := len(items)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, newPaginationMeta(page, limit, total)
}

// Classes

type memoryClassRepository struct {
	db *memoryDB
}

func (r *memoryClassRepository) Create(_ context.Context, class *model.ClassTemplate) (*model.ClassTemplate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := r.db.now()
	class.ID = uuid.New()
	class.CreatedAt = now
	class.UpdatedAt = now
	r.db.classes[class.ID] = *class

	out := *class
	return &out, nil
}

func (r *memoryClassRepository) Update(_ context.Context, class *model.ClassTemplate) (*model.ClassTemplate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, ok := r.db.classes[class.ID]
	if !ok {
		return nil, ErrNotFound
	}
	class.CreatedAt = existing.CreatedAt
	class.UpdatedAt = r.db.now()
	r.db.classes[class.ID] = *class

	out := *class
	return &out, nil
}

func (r *memoryClassRepository) FindByID(_ context.Context, id uuid.UUID) (*model.ClassTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	class, ok := r.db.classes[id]
	if !ok {
		return nil, nil
	}
	return &class, nil
}

func (r *memoryClassRepository) List(_ context.Context, filter ClassFilter) (*PaginatedClasses, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	matched := []model.ClassTemplate{}
	for _, c := range r.db.classes {
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		if filter.Status != "" {
			if c.Status != filter.Status {
				continue
			}
		} else if filter.ExcludeCancelled && c.Status == model.ClassStatusCancelled {
			continue
		}
		if filter.TrainerID != nil && c.TrainerID != *filter.TrainerID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(c.Description), search) {
			continue
		}
		matched = append(matched, c)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	data, meta := paginate(matched, filter.Page, filter.Limit)
	return &PaginatedClasses{Data: data, Meta: meta}, nil
}

func (r *memoryClassRepository) ListActive(_ context.Context) ([]model.ClassTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var classes []model.ClassTemplate
	for _, c := range r.db.classes {
		if c.Status == model.ClassStatusActive {
			classes = append(classes, c)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].CreatedAt.Before(classes[j].CreatedAt) })
	return classes, nil
}

func (r *memoryClassRepository) UpdateStatus(_ context.Context, id uuid.UUID, status model.ClassStatus) (*model.ClassTemplate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	class, ok := r.db.classes[id]
	if !ok {
		return nil, ErrNotFound
	}
	class.Status = status
	class.UpdatedAt = r.db.now()
	r.db.classes[id] = class
	return &class, nil
}

// Class instances

type memoryClassInstanceRepository struct {
	db *memoryDB
}

func (r *memoryClassInstanceRepository) Create(_ context.Context, instance *model.ClassInstance) (*model.ClassInstance, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := instanceKey{classID: instance.ClassID, start: instance.StartTime.UnixNano()}
	if _, exists := r.db.instanceKeys[key]; exists {
		return nil, ErrConflict
	}

	now := r.db.now()
	instance.ID = uuid.New()
	instance.CurrentBookings = 0
	instance.Attendance = []model.Attendance{}
	instance.CreatedAt = now
	instance.UpdatedAt = now
	r.db.instances[instance.ID] = *instance
	r.db.instanceKeys[key] = instance.ID

	out := *instance
	return &out, nil
}

func (r *memoryClassInstanceRepository) FindByID(_ context.Context, id uuid.UUID) (*model.ClassInstance, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	instance, ok := r.db.instances[id]
	if !ok {
		return nil, nil
	}
	return r.db.snapshot(instance), nil
}

func (r *memoryClassInstanceRepository) List(_ context.Context, filter InstanceFilter) ([]model.ClassInstance, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	instances := []model.ClassInstance{}
	for _, i := range r.db.instances {
		if filter.ClassID != nil && i.ClassID != *filter.ClassID {
			continue
		}
		if filter.Status != "" && i.Status != filter.Status {
			continue
		}
		if filter.From != nil && i.StartTime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !i.StartTime.Before(*filter.To) {
			continue
		}
		if filter.StartBefore != nil && i.StartTime.After(*filter.StartBefore) {
			continue
		}
		if filter.EndBefore != nil && i.EndTime.After(*filter.EndBefore) {
			continue
		}
		instances = append(instances, i)
	}

	sort.Slice(instances, func(a, b int) bool { return instances[a].StartTime.Before(instances[b].StartTime) })

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	if len(instances) > limit {
		instances = instances[:limit]
	}
	return instances, nil
}

func (r *memoryClassInstanceRepository) IncrementRoster(_ context.Context, id uuid.UUID) (*model.ClassInstance, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	return r.db.incrementRoster(id)
}

func (r *memoryClassInstanceRepository) DecrementRoster(_ context.Context, id uuid.UUID) (*model.ClassInstance, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	return r.db.decrementRoster(id)
}

func (r *memoryClassInstanceRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.InstanceStatus, at time.Time) (*model.ClassInstance, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	instance, ok := r.db.instances[id]
	if !ok {
		return nil, ErrNotFound
	}
	if instance.Status != from {
		return nil, ErrStateConflict
	}

	instance.Status = to
	switch to {
	case model.InstanceStatusOngoing:
		instance.ActualStartTime = &at
	case model.InstanceStatusCompleted:
		instance.ActualEndTime = &at
	}
	instance.UpdatedAt = r.db.now()
	r.db.instances[id] = instance

	return r.db.snapshot(instance), nil
}

// Bookings

type memoryBookingRepository struct {
	db *memoryDB
}

func (r *memoryBookingRepository) CreateConfirmed(_ context.Context, booking *model.Booking) (*model.Booking, *model.ClassInstance, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	instance, ok := r.db.instances[booking.ClassInstanceID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	if instance.Status != model.InstanceStatusScheduled {
		return nil, nil, ErrInstanceNotScheduled
	}

	for _, b := range r.db.bookings {
		if b.UserID == booking.UserID && b.ClassInstanceID == booking.ClassInstanceID && b.Status == model.BookingStatusConfirmed {
			return nil, nil, ErrDuplicateBooking
		}
	}

	updated, err := r.db.incrementRoster(booking.ClassInstanceID)
	if err != nil {
		return nil, nil, err
	}

	now := r.db.now()
	booking.ID = uuid.New()
	booking.Status = model.BookingStatusConfirmed
	booking.PaymentStatus = model.PaymentStatusPending
	booking.CreatedAt = now
	booking.UpdatedAt = now
	r.db.bookings[booking.ID] = *booking

	out := *booking
	return &out, updated, nil
}

func (r *memoryBookingRepository) FindByID(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	booking, ok := r.db.bookings[id]
	if !ok {
		return nil, nil
	}
	return &booking, nil
}

func (r *memoryBookingRepository) List(_ context.Context, filter BookingFilter) (*PaginatedBookings, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	matched := []model.Booking{}
	for _, b := range r.db.bookings {
		if filter.UserID != nil && b.UserID != *filter.UserID {
			continue
		}
		if filter.ClassID != nil && b.ClassID != *filter.ClassID {
			continue
		}
		if filter.ClassInstanceID != nil && b.ClassInstanceID != *filter.ClassInstanceID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.From != nil && b.BookingDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && b.BookingDate.After(*filter.To) {
			continue
		}
		matched = append(matched, b)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	data, meta := paginate(matched, filter.Page, filter.Limit)
	return &PaginatedBookings{Data: data, Meta: meta}, nil
}

func (r *memoryBookingRepository) Cancel(_ context.Context, params CancelParams) (*CancelResult, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	booking, ok := r.db.bookings[params.BookingID]
	if !ok {
		return nil, ErrNotFound
	}
	if booking.Status != model.BookingStatusConfirmed {
		return nil, ErrStateConflict
	}
	inst, ok := r.db.instances[booking.ClassInstanceID]
	if !ok {
		return nil, ErrNotFound
	}
	if inst.Status != model.InstanceStatusScheduled {
		return nil, ErrInstanceNotScheduled
	}

	cancelledAt := params.CancelledAt
	booking.Status = model.BookingStatusCancelled
	booking.CancellationReason = params.Reason
	booking.CancelledAt = &cancelledAt
	booking.RefundAmount.Decimal = params.RefundAmount
	booking.RefundAmount.Valid = true
	booking.UpdatedAt = r.db.now()
	r.db.bookings[booking.ID] = booking

	instance, decremented, err := r.db.decrementRoster(booking.ClassInstanceID)
	if err != nil {
		return nil, err
	}

	return &CancelResult{Booking: &booking, Instance: instance, RosterDrift: !decremented}, nil
}

func (r *memoryBookingRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.BookingStatus) (*model.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	booking, ok := r.db.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if booking.Status != from {
		return nil, ErrStateConflict
	}
	booking.Status = to
	booking.UpdatedAt = r.db.now()
	r.db.bookings[id] = booking
	return &booking, nil
}

func (r *memoryBookingRepository) UpdatePaymentStatus(_ context.Context, id uuid.UUID, from, to model.PaymentStatus, paymentID *string) (*model.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	booking, ok := r.db.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if booking.PaymentStatus != from {
		return nil, ErrStateConflict
	}
	booking.PaymentStatus = to
	if paymentID != nil {
		booking.PaymentID = paymentID
	}
	booking.UpdatedAt = r.db.now()
	r.db.bookings[id] = booking
	return &booking, nil
}

func (r *memoryBookingRepository) RecordCheckIn(_ context.Context, id uuid.UUID, at time.Time) (*model.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	booking, ok := r.db.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if booking.Status != model.BookingStatusConfirmed || booking.CheckInTime != nil {
		return nil, ErrStateConflict
	}
	instance, ok := r.db.instances[booking.ClassInstanceID]
	if !ok {
		return nil, ErrNotFound
	}

	checkIn := at
	booking.CheckInTime = &checkIn
	booking.UpdatedAt = r.db.now()
	r.db.bookings[id] = booking

	attendance := make([]model.Attendance, 0, len(instance.Attendance)+1)
	for _, a := range instance.Attendance {
		if a.UserID != booking.UserID {
			attendance = append(attendance, a)
		}
	}
	instance.Attendance = append(attendance, model.Attendance{UserID: booking.UserID, CheckInTime: at})
	r.db.instances[instance.ID] = instance

	return &booking, nil
}

func (r *memoryBookingRepository) RecordCheckOut(_ context.Context, id uuid.UUID, at time.Time) (*model.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	booking, ok := r.db.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if booking.CheckInTime == nil || booking.CheckOutTime != nil {
		return nil, ErrStateConflict
	}
	instance, ok := r.db.instances[booking.ClassInstanceID]
	if !ok {
		return nil, ErrNotFound
	}

	checkOut := at
	booking.CheckOutTime = &checkOut
	booking.UpdatedAt = r.db.now()
	r.db.bookings[id] = booking

	attendance := make([]model.Attendance, len(instance.Attendance))
	copy(attendance, instance.Attendance)
	for i := range attendance {
		if attendance[i].UserID == booking.UserID {
			attendance[i].CheckOutTime = &checkOut
		}
	}
	instance.Attendance = attendance
	r.db.instances[instance.ID] = instance

	return &booking, nil
}

func (r *memoryBookingRepository) CancelInstance(_ context.Context, params InstanceCancelParams) (*InstanceCancellation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	instance, ok := r.db.instances[params.InstanceID]
	if !ok {
		return nil, ErrNotFound
	}
	if !instance.Status.CanTransitionTo(model.InstanceStatusCancelled) {
		return nil, ErrStateConflict
	}

	now := r.db.now()
	reason := params.Reason
	cancelledAt := params.CancelledAt
	cancelled := []model.Booking{}
	for id, b := range r.db.bookings {
		if b.ClassInstanceID != params.InstanceID || b.Status != model.BookingStatusConfirmed {
			continue
		}
		b.Status = model.BookingStatusCancelled
		b.CancellationReason = &reason
		b.CancelledAt = &cancelledAt
		b.RefundAmount.Decimal = params.RefundAmount
		b.RefundAmount.Valid = true
		b.UpdatedAt = now
		r.db.bookings[id] = b
		cancelled = append(cancelled, b)
	}

	instance.Status = model.InstanceStatusCancelled
	instance.CurrentBookings = 0
	instance.UpdatedAt = now
	r.db.instances[instance.ID] = instance

	return &InstanceCancellation{Instance: r.db.snapshot(instance), Bookings: cancelled}, nil
}

func (r *memoryBookingRepository) Stats(_ context.Context, filter StatsFilter) (*model.BookingStats, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var stats model.BookingStats
	for _, b := range r.db.bookings {
		if filter.ClassID != nil && b.ClassID != *filter.ClassID {
			continue
		}
		if filter.From != nil && b.BookingDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && b.BookingDate.After(*filter.To) {
			continue
		}
		stats.TotalBookings++
		switch b.Status {
		case model.BookingStatusConfirmed:
			stats.ConfirmedBookings++
		case model.BookingStatusCancelled:
			stats.CancelledBookings++
		case model.BookingStatusCompleted:
			stats.CompletedBookings++
		case model.BookingStatusNoShow:
			stats.NoShowBookings++
		}
	}
	stats.SetCancellationRate()
	return &stats, nil
}

// Device tokens

type memoryDeviceTokenRepository struct {
	db *memoryDB
}

func (r *memoryDeviceTokenRepository) Register(_ context.Context, userID uuid.UUID, token string) (*model.DeviceToken, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, dt := range r.db.deviceTokens[userID] {
		if dt.DeviceToken == token {
			out := dt
			return &out, nil
		}
	}
	dt := model.DeviceToken{ID: uuid.New(), UserID: userID, DeviceToken: token, CreatedAt: r.db.now()}
	r.db.deviceTokens[userID] = append(r.db.deviceTokens[userID], dt)
	return &dt, nil
}

func (r *memoryDeviceTokenRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var tokens []string
	for _, dt := range r.db.deviceTokens[userID] {
		tokens = append(tokens, dt.DeviceToken)
	}
	return tokens, nil
}

func (r *memoryDeviceTokenRepository) Delete(_ context.Context, userID uuid.UUID, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	kept := r.db.deviceTokens[userID][:0]
	for _, dt := range r.db.deviceTokens[userID] {
		if dt.DeviceToken != token {
			kept = append(kept, dt)
		}
	}
	r.db.deviceTokens[userID] = kept
	return nil
}

// Callers of the helpers below must hold db.mu for writing.

func (db *memoryDB) incrementRoster(id uuid.UUID) (*model.ClassInstance, error) {
	instance, ok := db.instances[id]
	if !ok {
		return nil, ErrNotFound
	}
	if instance.CurrentBookings >= instance.MaxCapacity {
		return nil, ErrCapacityExceeded
	}
	instance.CurrentBookings++
	instance.UpdatedAt = db.now()
	db.instances[id] = instance
	return db.snapshot(instance), nil
}

func (db *memoryDB) decrementRoster(id uuid.UUID) (*model.ClassInstance, bool, error) {
	instance, ok := db.instances[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if instance.CurrentBookings <= 0 {
		return db.snapshot(instance), false, nil
	}
	instance.CurrentBookings--
	instance.UpdatedAt = db.now()
	db.instances[id] = instance
	return db.snapshot(instance), true, nil
}

func (db *memoryDB) snapshot(instance model.ClassInstance) *model.ClassInstance {
	attendance := make([]model.Attendance, len(instance.Attendance))
	copy(attendance, instance.Attendance)
	instance.Attendance = attendance
	return &instance
}
