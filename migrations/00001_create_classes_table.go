package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateClassesTable, downCreateClassesTable)
}

func upCreateClassesTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE classes (
	  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	  name TEXT NOT NULL,
	  description TEXT NOT NULL DEFAULT '',
	  type TEXT NOT NULL,
	  trainer_id UUID NOT NULL,
	  max_capacity INT NOT NULL CHECK (max_capacity BETWEEN 1 AND 100),
	  duration_minutes INT NOT NULL CHECK (duration_minutes BETWEEN 15 AND 180),
	  price NUMERIC(10, 2) NOT NULL CHECK (price >= 0),
	  status TEXT NOT NULL DEFAULT 'active',
	  schedule JSONB NOT NULL DEFAULT '[]',
	  cancellation_policy JSONB NOT NULL DEFAULT '{"hours_before_class": 24, "refund_percentage": 100}',
	  difficulty TEXT NOT NULL,
	  location JSONB NOT NULL,
	  requirements JSONB NOT NULL DEFAULT '[]',
	  equipment JSONB NOT NULL DEFAULT '[]',
	  tags JSONB NOT NULL DEFAULT '[]',
	  image_key TEXT,
	  is_bookable BOOLEAN NOT NULL DEFAULT true,
	  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);
	CREATE INDEX idx_classes_type_status ON classes (type, status);
	CREATE INDEX idx_classes_trainer ON classes (trainer_id);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateClassesTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS classes;`
	_, err := tx.ExecContext(ctx, query)
	return err
}
