package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	repo "gym-booking-service/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDeviceTokenRepository_RegisterUpserts(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	r := repo.NewPostgresDeviceTokenRepository(sqlxDB)
	userID := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "user_id", "device_token", "created_at"}).
		AddRow(uuid.NewString(), userID.String(), "abc123", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (user_id, device_token) DO UPDATE`)).
		WithArgs(userID, "abc123").WillReturnRows(rows)

	dt, err := r.Register(context.Background(), userID, "abc123")
	require.NoError(t, err)
	assert.Equal(t, userID, dt.UserID)
	assert.Equal(t, "abc123", dt.DeviceToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeviceTokenRepository_ListAndDelete(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	r := repo.NewPostgresDeviceTokenRepository(sqlxDB)
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT device_token FROM user_device_tokens WHERE user_id = $1`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"device_token"}).AddRow("phone").AddRow("tablet"))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM user_device_tokens WHERE user_id = $1 AND device_token = $2`)).
		WithArgs(userID, "phone").WillReturnResult(sqlmock.NewResult(0, 1))

	tokens, err := r.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"phone", "tablet"}, tokens)

	require.NoError(t, r.Delete(context.Background(), userID, "phone"))
	require.NoError(t, mock.ExpectationsWereMet())
}
