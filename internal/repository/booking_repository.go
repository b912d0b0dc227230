package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gym-booking-service/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type BookingFilter struct {
	UserID          *uuid.UUID
	ClassID         *uuid.UUID
	ClassInstanceID *uuid.UUID
	Status          model.BookingStatus
	From            *time.Time
	To              *time.Time
	Page            int
	Limit           int
}

type PaginatedBookings struct {
	Data []model.Booking `json:"data"`
	Meta PaginationMeta  `json:"meta"`
}

type StatsFilter struct {
	ClassID *uuid.UUID
	From    *time.Time
	To      *time.Time
}

type CancelParams struct {
	BookingID    uuid.UUID
	Reason       *string
	CancelledAt  time.Time
	RefundAmount decimal.Decimal
}

type CancelResult struct {
	Booking  *model.Booking
	Instance *model.ClassInstance
	// RosterDrift is set when the instance counter was already zero.
	RosterDrift bool
}

type InstanceCancelParams struct {
	InstanceID   uuid.UUID
	Reason       string
	CancelledAt  time.Time
	RefundAmount decimal.Decimal
}

type InstanceCancellation struct {
	Instance *model.ClassInstance
	Bookings []model.Booking
}

type BookingRepository interface {
	// CreateConfirmed checks for a duplicate, takes a seat and inserts the
	// booking in one transaction holding the instance row lock.
	CreateConfirmed(ctx context.Context, booking *model.Booking) (*model.Booking, *model.ClassInstance, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	List(ctx context.Context, filter BookingFilter) (*PaginatedBookings, error)
	Cancel(ctx context.Context, params CancelParams) (*CancelResult, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.BookingStatus) (*model.Booking, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus, paymentID *string) (*model.Booking, error)
	RecordCheckIn(ctx context.Context, id uuid.UUID, at time.Time) (*model.Booking, error)
	RecordCheckOut(ctx context.Context, id uuid.UUID, at time.Time) (*model.Booking, error)
	CancelInstance(ctx context.Context, params InstanceCancelParams) (*InstanceCancellation, error)
	Stats(ctx context.Context, filter StatsFilter) (*model.BookingStats, error)
}

const bookingColumns = `id, user_id, class_id, class_instance_id, booking_date, status, payment_status, payment_id,
	check_in_time, check_out_time, notes, cancellation_reason, cancelled_at, refund_amount, created_at, updated_at`

const (
	lockInstanceQuery = `SELECT status FROM class_instances WHERE id = $1 FOR UPDATE`

	confirmedBookingExistsQuery = `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE user_id = $1 AND class_instance_id = $2 AND status = 'confirmed'
		)`

	insertBookingQuery = `
		INSERT INTO bookings (user_id, class_id, class_instance_id, booking_date, status, payment_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	cancelBookingQuery = `
		UPDATE bookings
		SET status = 'cancelled', cancellation_reason = $2, cancelled_at = $3, refund_amount = $4, updated_at = now()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING ` + bookingColumns

	bookingInstanceQuery = `SELECT class_instance_id FROM bookings WHERE id = $1`

	bookingExistsQuery = `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`
)

type postgresBookingRepository struct {
	db *sqlx.DB
}

func NewPostgresBookingRepository(db *sqlx.DB) BookingRepository {
	return &postgresBookingRepository{db: db}
}

func (r *postgresBookingRepository) CreateConfirmed(ctx context.Context, booking *model.Booking) (*model.Booking, *model.ClassInstance, error) {
	var instance *model.ClassInstance

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var status model.InstanceStatus
		if err := tx.GetContext(ctx, &status, lockInstanceQuery, booking.ClassInstanceID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if status != model.InstanceStatusScheduled {
			return ErrInstanceNotScheduled
		}

		var duplicate bool
		if err := tx.GetContext(ctx, &duplicate, confirmedBookingExistsQuery, booking.UserID, booking.ClassInstanceID); err != nil {
			return err
		}
		if duplicate {
			return ErrDuplicateBooking
		}

		updated, err := incrementRoster(ctx, tx, booking.ClassInstanceID)
		if err != nil {
			return err
		}
		instance = updated

		booking.Status = model.BookingStatusConfirmed
		booking.PaymentStatus = model.PaymentStatusPending
		row := tx.QueryRowxContext(ctx, insertBookingQuery,
			booking.UserID, booking.ClassID, booking.ClassInstanceID, booking.BookingDate,
			booking.Status, booking.PaymentStatus, booking.Notes,
		)
		if err := row.Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateBooking
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return booking, instance, nil
}

func (r *postgresBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var booking model.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	err := r.db.GetContext(ctx, &booking, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &booking, nil
}

func (r *postgresBookingRepository) List(ctx context.Context, filter BookingFilter) (*PaginatedBookings, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	offset := (page - 1) * limit

	where := []string{"1=1"}
	args := []interface{}{}
	argID := 1

	add := func(clause string, value interface{}) {
		where = append(where, fmt.Sprintf(clause, argID))
		args = append(args, value)
		argID++
	}

	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.ClassID != nil {
		add("class_id = $%d", *filter.ClassID)
	}
	if filter.ClassInstanceID != nil {
		add("class_instance_id = $%d", *filter.ClassInstanceID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.From != nil {
		add("booking_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("booking_date <= $%d", *filter.To)
	}

	whereClause := strings.Join(where, " AND ")

	var totalItems int
	countQuery := "SELECT COUNT(*) FROM bookings WHERE " + whereClause
	if err := r.db.GetContext(ctx, &totalItems, countQuery, args...); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM bookings WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		bookingColumns, whereClause, argID, argID+1)
	args = append(args, limit, offset)

	var bookings []model.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}

	return &PaginatedBookings{Data: bookings, Meta: newPaginationMeta(page, limit, totalItems)}, nil
}

// Cancel locks the instance before the booking, the same order CreateConfirmed
// and CancelInstance use. Bookings on an instance that has left scheduled
// stay as they are.
func (r *postgresBookingRepository) Cancel(ctx context.Context, params CancelParams) (*CancelResult, error) {
	result := &CancelResult{}

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var instanceID uuid.UUID
		if err := tx.GetContext(ctx, &instanceID, bookingInstanceQuery, params.BookingID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		var status model.InstanceStatus
		if err := tx.GetContext(ctx, &status, lockInstanceQuery, instanceID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if status != model.InstanceStatusScheduled {
			return ErrInstanceNotScheduled
		}

		var booking model.Booking
		err := tx.GetContext(ctx, &booking, cancelBookingQuery,
			params.BookingID, params.Reason, params.CancelledAt, params.RefundAmount)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrStateConflict
			}
			return err
		}
		result.Booking = &booking

		instance, decremented, err := decrementRoster(ctx, tx, instanceID)
		if err != nil {
			return err
		}
		result.Instance = instance
		result.RosterDrift = !decremented
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *postgresBookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.BookingStatus) (*model.Booking, error) {
	query := `
		UPDATE bookings SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + bookingColumns

	return r.compareAndSet(ctx, id, query, id, from, to)
}

func (r *postgresBookingRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus, paymentID *string) (*model.Booking, error) {
	query := `
		UPDATE bookings SET payment_status = $3, payment_id = COALESCE($4, payment_id), updated_at = now()
		WHERE id = $1 AND payment_status = $2
		RETURNING ` + bookingColumns

	return r.compareAndSet(ctx, id, query, id, from, to, paymentID)
}

func (r *postgresBookingRepository) RecordCheckIn(ctx context.Context, id uuid.UUID, at time.Time) (*model.Booking, error) {
	var booking model.Booking

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE bookings SET check_in_time = $2, updated_at = now()
			WHERE id = $1 AND status = 'confirmed' AND check_in_time IS NULL
			RETURNING ` + bookingColumns
		if err := tx.GetContext(ctx, &booking, query, id, at); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return r.missingOrConflict(ctx, tx, id)
			}
			return err
		}

		attendance := `
			INSERT INTO class_attendance (class_instance_id, user_id, check_in_time)
			VALUES ($1, $2, $3)
			ON CONFLICT (class_instance_id, user_id)
			DO UPDATE SET check_in_time = EXCLUDED.check_in_time, check_out_time = NULL`
		_, err := tx.ExecContext(ctx, attendance, booking.ClassInstanceID, booking.UserID, at)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &booking, nil
}

func (r *postgresBookingRepository) RecordCheckOut(ctx context.Context, id uuid.UUID, at time.Time) (*model.Booking, error) {
	var booking model.Booking

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE bookings SET check_out_time = $2, updated_at = now()
			WHERE id = $1 AND check_in_time IS NOT NULL AND check_out_time IS NULL
			RETURNING ` + bookingColumns
		if err := tx.GetContext(ctx, &booking, query, id, at); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return r.missingOrConflict(ctx, tx, id)
			}
			return err
		}

		attendance := `
			UPDATE class_attendance SET check_out_time = $3
			WHERE class_instance_id = $1 AND user_id = $2`
		_, err := tx.ExecContext(ctx, attendance, booking.ClassInstanceID, booking.UserID, at)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &booking, nil
}

func (r *postgresBookingRepository) CancelInstance(ctx context.Context, params InstanceCancelParams) (*InstanceCancellation, error) {
	result := &InstanceCancellation{}

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var status model.InstanceStatus
		if err := tx.GetContext(ctx, &status, lockInstanceQuery, params.InstanceID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if !status.CanTransitionTo(model.InstanceStatusCancelled) {
			return ErrStateConflict
		}

		bookingsQuery := `
			UPDATE bookings
			SET status = 'cancelled', cancellation_reason = $2, cancelled_at = $3, refund_amount = $4, updated_at = now()
			WHERE class_instance_id = $1 AND status = 'confirmed'
			RETURNING ` + bookingColumns
		var bookings []model.Booking
		if err := tx.SelectContext(ctx, &bookings, bookingsQuery,
			params.InstanceID, params.Reason, params.CancelledAt, params.RefundAmount); err != nil {
			return err
		}
		if bookings == nil {
			bookings = []model.Booking{}
		}
		result.Bookings = bookings

		instanceQuery := `
			UPDATE class_instances
			SET status = 'cancelled', current_bookings = 0, updated_at = now()
			WHERE id = $1
			RETURNING ` + instanceColumns
		var instance model.ClassInstance
		if err := tx.GetContext(ctx, &instance, instanceQuery, params.InstanceID); err != nil {
			return err
		}
		result.Instance = &instance
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *postgresBookingRepository) Stats(ctx context.Context, filter StatsFilter) (*model.BookingStats, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argID := 1

	if filter.ClassID != nil {
		where = append(where, fmt.Sprintf("class_id = $%d", argID))
		args = append(args, *filter.ClassID)
		argID++
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("booking_date >= $%d", argID))
		args = append(args, *filter.From)
		argID++
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("booking_date <= $%d", argID))
		args = append(args, *filter.To)
	}

	query := `
		SELECT
			COUNT(*) AS total_bookings,
			COUNT(*) FILTER (WHERE status = 'confirmed') AS confirmed_bookings,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled_bookings,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed_bookings,
			COUNT(*) FILTER (WHERE status = 'no_show') AS no_show_bookings
		FROM bookings
		WHERE ` + strings.Join(where, " AND ")

	var stats model.BookingStats
	if err := r.db.GetContext(ctx, &stats, query, args...); err != nil {
		return nil, err
	}
	stats.SetCancellationRate()

	return &stats, nil
}

func (r *postgresBookingRepository) compareAndSet(ctx context.Context, id uuid.UUID, query string, args ...interface{}) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, query, args...)
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return nil, r.missingOrConflict(ctx, r.db, id)
}

func (r *postgresBookingRepository) missingOrConflict(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) error {
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, bookingExistsQuery, id); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStateConflict
}
