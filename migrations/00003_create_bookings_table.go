package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateBookingsTable, downCreateBookingsTable)
}

func upCreateBookingsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE bookings (
	  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	  user_id UUID NOT NULL,
	  class_id UUID NOT NULL REFERENCES classes(id),
	  class_instance_id UUID NOT NULL REFERENCES class_instances(id),
	  booking_date TIMESTAMP WITH TIME ZONE NOT NULL,
	  status TEXT NOT NULL DEFAULT 'confirmed',
	  payment_status TEXT NOT NULL DEFAULT 'pending',
	  payment_id TEXT,
	  check_in_time TIMESTAMP WITH TIME ZONE,
	  check_out_time TIMESTAMP WITH TIME ZONE,
	  notes TEXT,
	  cancellation_reason TEXT,
	  cancelled_at TIMESTAMP WITH TIME ZONE,
	  refund_amount NUMERIC(10, 2),
	  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);
	CREATE UNIQUE INDEX uq_bookings_user_instance_confirmed
	  ON bookings (user_id, class_instance_id) WHERE status = 'confirmed';
	CREATE INDEX idx_bookings_instance_status ON bookings (class_instance_id, status);
	CREATE INDEX idx_bookings_user ON bookings (user_id, created_at DESC);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateBookingsTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS bookings;`
	_, err := tx.ExecContext(ctx, query)
	return err
}
