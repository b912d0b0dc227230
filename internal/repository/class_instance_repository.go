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
)

type InstanceFilter struct {
	ClassID     *uuid.UUID
	Status      model.InstanceStatus
	From        *time.Time
	To          *time.Time
	StartBefore *time.Time
	EndBefore   *time.Time
	Limit       int
}

type ClassInstanceRepository interface {
	Create(ctx context.Context, instance *model.ClassInstance) (*model.ClassInstance, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.ClassInstance, error)
	List(ctx context.Context, filter InstanceFilter) ([]model.ClassInstance, error)
	// IncrementRoster takes a seat in a single conditional write; it never
	// reads the counter first.
	IncrementRoster(ctx context.Context, id uuid.UUID) (*model.ClassInstance, error)
	// DecrementRoster frees a seat. The bool is false when the counter was
	// already zero and nothing changed.
	DecrementRoster(ctx context.Context, id uuid.UUID) (*model.ClassInstance, bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.InstanceStatus, at time.Time) (*model.ClassInstance, error)
}

const instanceColumns = `id, class_id, trainer_id, scheduled_date, start_time, end_time, max_capacity,
	current_bookings, status, actual_start_time, actual_end_time, notes, created_at, updated_at`

const (
	incrementRosterQuery = `
		UPDATE class_instances
		SET current_bookings = current_bookings + 1, updated_at = now()
		WHERE id = $1 AND current_bookings < max_capacity
		RETURNING ` + instanceColumns

	decrementRosterQuery = `
		UPDATE class_instances
		SET current_bookings = current_bookings - 1, updated_at = now()
		WHERE id = $1 AND current_bookings > 0
		RETURNING ` + instanceColumns

	instanceExistsQuery = `SELECT EXISTS(SELECT 1 FROM class_instances WHERE id = $1)`

	selectInstanceQuery = `SELECT ` + instanceColumns + ` FROM class_instances WHERE id = $1`
)

type postgresClassInstanceRepository struct {
	db *sqlx.DB
}

func NewPostgresClassInstanceRepository(db *sqlx.DB) ClassInstanceRepository {
	return &postgresClassInstanceRepository{db: db}
}

func (r *postgresClassInstanceRepository) Create(ctx context.Context, instance *model.ClassInstance) (*model.ClassInstance, error) {
	query := `
		INSERT INTO class_instances (class_id, trainer_id, scheduled_date, start_time, end_time, max_capacity, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, current_bookings, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		instance.ClassID, instance.TrainerID, instance.ScheduledDate, instance.StartTime, instance.EndTime,
		instance.MaxCapacity, instance.Status, instance.Notes,
	)
	if err := row.Scan(&instance.ID, &instance.CurrentBookings, &instance.CreatedAt, &instance.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	instance.Attendance = []model.Attendance{}
	return instance, nil
}

func (r *postgresClassInstanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ClassInstance, error) {
	var instance model.ClassInstance
	if err := r.db.GetContext(ctx, &instance, selectInstanceQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	attendance := []model.Attendance{}
	query := `
		SELECT user_id, check_in_time, check_out_time
		FROM class_attendance
		WHERE class_instance_id = $1
		ORDER BY check_in_time
	`
	if err := r.db.SelectContext(ctx, &attendance, query, id); err != nil {
		return nil, err
	}
	instance.Attendance = attendance

	return &instance, nil
}

func (r *postgresClassInstanceRepository) List(ctx context.Context, filter InstanceFilter) ([]model.ClassInstance, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argID := 1

	add := func(clause string, value interface{}) {
		where = append(where, fmt.Sprintf(clause, argID))
		args = append(args, value)
		argID++
	}

	if filter.ClassID != nil {
		add("class_id = $%d", *filter.ClassID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.From != nil {
		add("start_time >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("start_time < $%d", *filter.To)
	}
	if filter.StartBefore != nil {
		add("start_time <= $%d", *filter.StartBefore)
	}
	if filter.EndBefore != nil {
		add("end_time <= $%d", *filter.EndBefore)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	query := fmt.Sprintf("SELECT %s FROM class_instances WHERE %s ORDER BY start_time ASC LIMIT $%d",
		instanceColumns, strings.Join(where, " AND "), argID)
	args = append(args, limit)

	var instances []model.ClassInstance
	if err := r.db.SelectContext(ctx, &instances, query, args...); err != nil {
		return nil, err
	}
	if instances == nil {
		instances = []model.ClassInstance{}
	}
	return instances, nil
}

func (r *postgresClassInstanceRepository) IncrementRoster(ctx context.Context, id uuid.UUID) (*model.ClassInstance, error) {
	return incrementRoster(ctx, r.db, id)
}

func (r *postgresClassInstanceRepository) DecrementRoster(ctx context.Context, id uuid.UUID) (*model.ClassInstance, bool, error) {
	return decrementRoster(ctx, r.db, id)
}

func (r *postgresClassInstanceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.InstanceStatus, at time.Time) (*model.ClassInstance, error) {
	return updateInstanceStatus(ctx, r.db, id, from, to, at)
}

func incrementRoster(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*model.ClassInstance, error) {
	var instance model.ClassInstance
	err := sqlx.GetContext(ctx, q, &instance, incrementRosterQuery, id)
	if err == nil {
		return &instance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	exists, err := instanceExists(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrCapacityExceeded
}

func decrementRoster(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*model.ClassInstance, bool, error) {
	var instance model.ClassInstance
	err := sqlx.GetContext(ctx, q, &instance, decrementRosterQuery, id)
	if err == nil {
		return &instance, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	err = sqlx.GetContext(ctx, q, &instance, selectInstanceQuery, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}
	return &instance, false, nil
}

func updateInstanceStatus(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, from, to model.InstanceStatus, at time.Time) (*model.ClassInstance, error) {
	query := `
		UPDATE class_instances
		SET status = $3::text,
			actual_start_time = CASE WHEN $3::text = 'ongoing' THEN $4::timestamptz ELSE actual_start_time END,
			actual_end_time = CASE WHEN $3::text = 'completed' THEN $4::timestamptz ELSE actual_end_time END,
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + instanceColumns

	var instance model.ClassInstance
	err := sqlx.GetContext(ctx, q, &instance, query, id, from, to, at)
	if err == nil {
		return &instance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	exists, err := instanceExists(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrStateConflict
}

func instanceExists(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, instanceExistsQuery, id); err != nil {
		return false, err
	}
	return exists, nil
}
