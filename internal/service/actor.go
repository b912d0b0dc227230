package service

import (
	"gym-booking-service/internal/model"

	"github.com/google/uuid"
)

// Actor is the authenticated caller. Its identity is trusted as given.
type Actor struct {
	UserID uuid.UUID
	Role   model.Role
}

func (a Actor) canActFor(userID uuid.UUID) bool {
	return a.UserID == userID || a.Role.IsPrivileged()
}
