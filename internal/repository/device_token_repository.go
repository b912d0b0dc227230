package repository

import (
	"context"

	"gym-booking-service/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type DeviceTokenRepository interface {
	Register(ctx context.Context, userID uuid.UUID, token string) (*model.DeviceToken, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	Delete(ctx context.Context, userID uuid.UUID, token string) error
}

type postgresDeviceTokenRepository struct {
	db *sqlx.DB
}

func NewPostgresDeviceTokenRepository(db *sqlx.DB) DeviceTokenRepository {
	return &postgresDeviceTokenRepository{db: db}
}

func (r *postgresDeviceTokenRepository) Register(ctx context.Context, userID uuid.UUID, token string) (*model.DeviceToken, error) {
	query := `
		INSERT INTO user_device_tokens (user_id, device_token)
		VALUES ($1, $2)
		ON CONFLICT (user_id, device_token) DO UPDATE SET device_token = EXCLUDED.device_token
		RETURNING id, user_id, device_token, created_at
	`

	var dt model.DeviceToken
	if err := r.db.GetContext(ctx, &dt, query, userID, token); err != nil {
		return nil, err
	}
	return &dt, nil
}

func (r *postgresDeviceTokenRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var tokens []string
	query := `SELECT device_token FROM user_device_tokens WHERE user_id = $1`
	err := r.db.SelectContext(ctx, &tokens, query, userID)
	return tokens, err
}

func (r *postgresDeviceTokenRepository) Delete(ctx context.Context, userID uuid.UUID, token string) error {
	query := `DELETE FROM user_device_tokens WHERE user_id = $1 AND device_token = $2`
	_, err := r.db.ExecContext(ctx, query, userID, token)
	return err
}
