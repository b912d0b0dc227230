package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gym-booking-service/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ClassFilter struct {
	Type      model.ClassType
	Status    model.ClassStatus
	TrainerID *uuid.UUID
	Search    string
	// ExcludeCancelled hides cancelled templates unless Status asks for them explicitly.
	ExcludeCancelled bool
	Page             int
	Limit            int
}

type PaginatedClasses struct {
	Data []model.ClassTemplate `json:"data"`
	Meta PaginationMeta        `json:"meta"`
}

type ClassRepository interface {
	Create(ctx context.Context, class *model.ClassTemplate) (*model.ClassTemplate, error)
	Update(ctx context.Context, class *model.ClassTemplate) (*model.ClassTemplate, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.ClassTemplate, error)
	List(ctx context.Context, filter ClassFilter) (*PaginatedClasses, error)
	ListActive(ctx context.Context) ([]model.ClassTemplate, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ClassStatus) (*model.ClassTemplate, error)
}

const classColumns = `id, name, description, type, trainer_id, max_capacity, duration_minutes, price, status,
	schedule, cancellation_policy, difficulty, location, requirements, equipment, tags, image_key,
	is_bookable, created_at, updated_at`

type postgresClassRepository struct {
	db *sqlx.DB
}

func NewPostgresClassRepository(db *sqlx.DB) ClassRepository {
	return &postgresClassRepository{db: db}
}

func (r *postgresClassRepository) Create(ctx context.Context, class *model.ClassTemplate) (*model.ClassTemplate, error) {
	query := `
		INSERT INTO classes (name, description, type, trainer_id, max_capacity, duration_minutes, price, status,
			schedule, cancellation_policy, difficulty, location, requirements, equipment, tags, image_key, is_bookable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		class.Name, class.Description, class.Type, class.TrainerID, class.MaxCapacity, class.DurationMinutes,
		class.Price, class.Status, class.Schedule, class.CancellationPolicy, class.Difficulty, class.Location,
		class.Requirements, class.Equipment, class.Tags, class.ImageKey, class.IsBookable,
	)
	if err := row.Scan(&class.ID, &class.CreatedAt, &class.UpdatedAt); err != nil {
		return nil, err
	}

	return class, nil
}

func (r *postgresClassRepository) Update(ctx context.Context, class *model.ClassTemplate) (*model.ClassTemplate, error) {
	query := `
		UPDATE classes
		SET name = $2, description = $3, type = $4, trainer_id = $5, max_capacity = $6, duration_minutes = $7,
			price = $8, status = $9, schedule = $10, cancellation_policy = $11, difficulty = $12, location = $13,
			requirements = $14, equipment = $15, tags = $16, image_key = $17, is_bookable = $18, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		class.ID, class.Name, class.Description, class.Type, class.TrainerID, class.MaxCapacity, class.DurationMinutes,
		class.Price, class.Status, class.Schedule, class.CancellationPolicy, class.Difficulty, class.Location,
		class.Requirements, class.Equipment, class.Tags, class.ImageKey, class.IsBookable,
	)
	if err := row.Scan(&class.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return class, nil
}

func (r *postgresClassRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ClassTemplate, error) {
	var class model.ClassTemplate
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`
	err := r.db.GetContext(ctx, &class, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &class, nil
}

func (r *postgresClassRepository) List(ctx context.Context, filter ClassFilter) (*PaginatedClasses, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	offset := (page - 1) * limit

	where := []string{"1=1"}
	args := []interface{}{}
	argID := 1

	if filter.Type != "" {
		where = append(where, fmt.Sprintf("type = $%d", argID))
		args = append(args, filter.Type)
		argID++
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argID))
		args = append(args, filter.Status)
		argID++
	} else if filter.ExcludeCancelled {
		where = append(where, "status <> 'cancelled'")
	}
	if filter.TrainerID != nil {
		where = append(where, fmt.Sprintf("trainer_id = $%d", argID))
		args = append(args, *filter.TrainerID)
		argID++
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argID, argID))
		args = append(args, "%"+filter.Search+"%")
		argID++
	}

	whereClause := strings.Join(where, " AND ")

	var totalItems int
	countQuery := "SELECT COUNT(*) FROM classes WHERE " + whereClause
	if err := r.db.GetContext(ctx, &totalItems, countQuery, args...); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM classes WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		classColumns, whereClause, argID, argID+1)
	args = append(args, limit, offset)

	var classes []model.ClassTemplate
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, err
	}
	if classes == nil {
		classes = []model.ClassTemplate{}
	}

	return &PaginatedClasses{Data: classes, Meta: newPaginationMeta(page, limit, totalItems)}, nil
}

func (r *postgresClassRepository) ListActive(ctx context.Context) ([]model.ClassTemplate, error) {
	var classes []model.ClassTemplate
	query := `SELECT ` + classColumns + ` FROM classes WHERE status = 'active' ORDER BY created_at`
	err := r.db.SelectContext(ctx, &classes, query)
	return classes, err
}

func (r *postgresClassRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ClassStatus) (*model.ClassTemplate, error) {
	var class model.ClassTemplate
	query := `UPDATE classes SET status = $2, updated_at = now() WHERE id = $1 RETURNING ` + classColumns
	err := r.db.GetContext(ctx, &class, query, id, status)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &class, nil
}
