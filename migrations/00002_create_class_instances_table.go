package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateClassInstancesTable, downCreateClassInstancesTable)
}

func upCreateClassInstancesTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE class_instances (
	  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	  class_id UUID NOT NULL REFERENCES classes(id),
	  trainer_id UUID NOT NULL,
	  scheduled_date DATE NOT NULL,
	  start_time TIMESTAMP WITH TIME ZONE NOT NULL,
	  end_time TIMESTAMP WITH TIME ZONE NOT NULL,
	  max_capacity INT NOT NULL CHECK (max_capacity >= 1),
	  current_bookings INT NOT NULL DEFAULT 0,
	  status TEXT NOT NULL DEFAULT 'scheduled',
	  actual_start_time TIMESTAMP WITH TIME ZONE,
	  actual_end_time TIMESTAMP WITH TIME ZONE,
	  notes TEXT,
	  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	  CONSTRAINT uq_class_instances_class_start UNIQUE (class_id, start_time),
	  CONSTRAINT chk_class_instances_roster CHECK (current_bookings >= 0 AND current_bookings <= max_capacity),
	  CONSTRAINT chk_class_instances_window CHECK (end_time > start_time)
	);
	CREATE INDEX idx_class_instances_status_start ON class_instances (status, start_time);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateClassInstancesTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS class_instances;`
	_, err := tx.ExecContext(ctx, query)
	return err
}
