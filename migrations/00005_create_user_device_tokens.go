package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateUserDeviceTokens, downCreateUserDeviceTokens)
}

func upCreateUserDeviceTokens(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE user_device_tokens (
	  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	  user_id UUID NOT NULL,
	  device_token TEXT NOT NULL,
	  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	  UNIQUE (user_id, device_token)
	);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateUserDeviceTokens(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS user_device_tokens;`
	_, err := tx.ExecContext(ctx, query)
	return err
}
