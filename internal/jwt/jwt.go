package jwt

import (
	"errors"
	"time"

	"gym-booking-service/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidClaims = errors.New("token claims are missing or invalid")

// Claims is the identity carried by an access token.
type Claims struct {
	UserID uuid.UUID
	Role   model.Role
}

type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Manager{secret: []byte(secret), ttl: ttl}
}

func (m *Manager) GenerateToken(userID uuid.UUID, role model.Role) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": string(role),
		"exp":  time.Now().Add(m.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrInvalidKey
	}

	sub, ok := mapClaims["sub"].(string)
	if !ok {
		return nil, ErrInvalidClaims
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, err
	}

	role, _ := mapClaims["role"].(string)
	switch model.Role(role) {
	case model.RoleMember, model.RoleTrainer, model.RoleAdmin, model.RoleStaff:
	case "":
		role = string(model.RoleMember)
	default:
		return nil, ErrInvalidClaims
	}

	return &Claims{UserID: userID, Role: model.Role(role)}, nil
}
