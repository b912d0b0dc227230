package repository_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"gym-booking-service/internal/model"
	repo "gym-booking-service/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	lockSQL      = regexp.QuoteMeta(`SELECT status FROM class_instances WHERE id = $1 FOR UPDATE`)
	duplicateSQL = regexp.QuoteMeta(`WHERE user_id = $1 AND class_instance_id = $2 AND status = 'confirmed'`)
	incrementSQL = regexp.QuoteMeta(`WHERE id = $1 AND current_bookings < max_capacity`)
	insertSQL    = regexp.QuoteMeta(`INSERT INTO bookings (user_id, class_id, class_instance_id, booking_date, status, payment_status, notes)`)
)

func newBooking() *model.Booking {
	return &model.Booking{
		UserID:          uuid.New(),
		ClassID:         uuid.New(),
		ClassInstanceID: uuid.New(),
		BookingDate:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestPostgresBookingRepository_CreateConfirmed(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	r := repo.NewPostgresBookingRepository(sqlxDB)

	b := newBooking()
	bookingID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs(b.ClassInstanceID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("scheduled"))
	mock.ExpectQuery(duplicateSQL).WithArgs(b.UserID, b.ClassInstanceID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(incrementSQL).WithArgs(b.ClassInstanceID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "max_capacity", "current_bookings"}).
			AddRow(b.ClassInstanceID.String(), 10, 10))
	mock.ExpectQuery(insertSQL).
		WithArgs(b.UserID, b.ClassID, b.ClassInstanceID, b.BookingDate, "confirmed", "pending", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(bookingID.String(), now, now))
	mock.ExpectCommit()

	created, instance, err := r.CreateConfirmed(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, bookingID, created.ID)
	require.Equal(t, model.BookingStatusConfirmed, created.Status)
	require.Equal(t, model.PaymentStatusPending, created.PaymentStatus)
	require.Equal(t, 10, instance.CurrentBookings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookingRepository_CreateConfirmed_DuplicateBeforeCapacity(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	r := repo.NewPostgresBookingRepository(sqlxDB)

	b := newBooking()

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("scheduled"))
	mock.ExpectQuery(duplicateSQL).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, _, err := r.CreateConfirmed(context.Background(), b)
	require.ErrorIs(t, err, repo.ErrDuplicateBooking)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookingRepository_CreateConfirmed_Full(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	r := repo.NewPostgresBookingRepository(sqlxDB)

	b := newBooking()

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("scheduled"))
	mock.ExpectQuery(duplicateSQL).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(incrementSQL).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM class_instances WHERE id = $1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, _, err := r.CreateConfirmed(context.Background(), b)
	require.ErrorIs(t, err, repo.ErrCapacityExceeded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookingRepository_CreateConfirmed_NotScheduled(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	r := repo.NewPostgresBookingRepository(sqlxDB)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("cancelled"))
	mock.ExpectRollback()

	_, _, err := r.CreateConfirmed(context.Background(), newBooking())
	require.ErrorIs(t, err, repo.ErrInstanceNotScheduled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookingRepository_CreateConfirmed_UniqueIndexBackstop(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	r := repo.NewPostgresBookingRepository(sqlxDB)

	b := newBooking()

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("scheduled"))
	mock.ExpectQuery(duplicateSQL).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(incrementSQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "current_bookings"}).AddRow(b.ClassInstanceID.String(), 1))
	mock.ExpectQuery(insertSQL).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, _, err := r.CreateConfirmed(context.Background(), b)
	require.ErrorIs(t, err, repo.ErrDuplicateBooking)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookingRepository_Cancel(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	r := repo.NewPostgresBookingRepository(sqlxDB)

	bookingID := uuid.New()
	instanceID := uuid.New()
	reason := "sick"
	refund := decimal.RequireFromString("12.50")
	at := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT class_instance_id FROM bookings WHERE id = $1`)).WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows([]string{"class_instance_id"}).AddRow(instanceID.String()))
	mock.ExpectQuery(lockSQL).WithArgs(instanceID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("scheduled"))
	mock.ExpectQuery(regexp.QuoteMeta(`SET status = 'cancelled', cancellation_reason = $2, cancelled_at = $3, refund_amount = $4`)).
		WithArgs(bookingID, reason, at, refund).
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_instance_id", "status", "refund_amount"}).
			AddRow(bookingID.String(), instanceID.String(), "cancelled", "12.50"))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1 AND current_bookings > 0`)).WithArgs(instanceID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "current_bookings"}).AddRow(instanceID.String(), 4))
	mock.ExpectCommit()

	result, err := r.Cancel(context.Background(), repo.CancelParams{
		BookingID: bookingID, Reason: &reason, CancelledAt: at, RefundAmount: refund,
	})
	require.NoError(t, err)
	require.Equal(t, model.BookingStatusCancelled, result.Booking.Status)
	require.True(t, result.Booking.RefundAmount.Valid)
	require.True(t, result.Booking.RefundAmount.Decimal.Equal(refund))
	require.Equal(t, 4, result.Instance.CurrentBookings)
	require.False(t, result.RosterDrift)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookingRepository_Cancel_InstanceNotScheduled(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	r := repo.NewPostgresBookingRepository(sqlxDB)

	bookingID := uuid.New()
	instanceID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT class_instance_id FROM bookings WHERE id = $1`)).WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows([]string{"class_instance_id"}).AddRow(instanceID.String()))
	mock.ExpectQuery(lockSQL).WithArgs(instanceID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))
	mock.ExpectRollback()

	_, err := r.Cancel(context.Background(), repo.CancelParams{BookingID: bookingID, CancelledAt: time.Now()})
	require.ErrorIs(t, err, repo.ErrInstanceNotScheduled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookingRepository_Cancel_NotConfirmed(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	r := repo.NewPostgresBookingRepository(sqlxDB)

	instanceID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT class_instance_id FROM bookings WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"class_instance_id"}).AddRow(instanceID.String()))
	mock.ExpectQuery(lockSQL).WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("scheduled"))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1 AND status = 'confirmed'`)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.Cancel(context.Background(), repo.CancelParams{BookingID: uuid.New(), CancelledAt: time.Now()})
	require.ErrorIs(t, err, repo.ErrStateConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookingRepository_Stats(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	r := repo.NewPostgresBookingRepository(sqlxDB)

	mock.ExpectQuery(regexp.QuoteMeta(`COUNT(*) FILTER (WHERE status = 'no_show') AS no_show_bookings`)).
		WillReturnRows(sqlmock.NewRows([]string{
			"total_bookings", "confirmed_bookings", "cancelled_bookings", "completed_bookings", "no_show_bookings",
		}).AddRow(8, 3, 2, 2, 1))

	stats, err := r.Stats(context.Background(), repo.StatsFilter{})
	require.NoError(t, err)
	require.Equal(t, 8, stats.TotalBookings)
	require.Equal(t, 2, stats.CancelledBookings)
	require.InDelta(t, 25.0, stats.CancellationRate, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookingRepository_UpdatePaymentStatus_Missing(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	r := repo.NewPostgresBookingRepository(sqlxDB)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1 AND payment_status = $2`)).
		WithArgs(id, "pending", "paid", nil).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`)).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := r.UpdatePaymentStatus(context.Background(), id, model.PaymentStatusPending, model.PaymentStatusPaid, nil)
	require.ErrorIs(t, err, repo.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
