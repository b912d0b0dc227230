package jwt

import (
	"testing"
	"time"

	"gym-booking-service/internal/model"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Minute)
	userID := uuid.New()

	token, err := m.GenerateToken(userID, model.RoleTrainer)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, model.RoleTrainer, claims.Role)
}

func TestManager_RejectsForeignSignature(t *testing.T) {
	token, err := NewManager("other-secret", time.Minute).GenerateToken(uuid.New(), model.RoleAdmin)
	require.NoError(t, err)

	_, err = NewManager("test-secret", time.Minute).ValidateToken(token)
	assert.ErrorIs(t, err, jwtv5.ErrTokenSignatureInvalid)
}

func TestManager_RejectsExpired(t *testing.T) {
	m := NewManager("test-secret", time.Minute)
	expired := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	token, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, jwtv5.ErrTokenExpired)
}

func TestManager_RoleClaim(t *testing.T) {
	m := NewManager("test-secret", time.Minute)
	sign := func(claims jwtv5.MapClaims) string {
		token, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return token
	}

	claims, err := m.ValidateToken(sign(jwtv5.MapClaims{"sub": uuid.NewString()}))
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, claims.Role)

	_, err = m.ValidateToken(sign(jwtv5.MapClaims{"sub": uuid.NewString(), "role": "coach"}))
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = m.ValidateToken(sign(jwtv5.MapClaims{"role": "admin"}))
	assert.ErrorIs(t, err, ErrInvalidClaims)
}
