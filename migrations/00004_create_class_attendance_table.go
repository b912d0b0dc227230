package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateClassAttendanceTable, downCreateClassAttendanceTable)
}

func upCreateClassAttendanceTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE class_attendance (
	  class_instance_id UUID NOT NULL REFERENCES class_instances(id),
	  user_id UUID NOT NULL,
	  check_in_time TIMESTAMP WITH TIME ZONE NOT NULL,
	  check_out_time TIMESTAMP WITH TIME ZONE,
	  PRIMARY KEY (class_instance_id, user_id)
	);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateClassAttendanceTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS class_attendance;`
	_, err := tx.ExecContext(ctx, query)
	return err
}
