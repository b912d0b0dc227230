package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleMember  Role = "member"
	RoleTrainer Role = "trainer"
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
)

// IsPrivileged reports whether the role may act on other users' bookings.
func (r Role) IsPrivileged() bool {
	return r == RoleTrainer || r == RoleAdmin
}

type DeviceToken struct {
	ID          uuid.UUID `db:"id"`
	UserID      uuid.UUID `db:"user_id"`
	DeviceToken string    `db:"device_token"`
	CreatedAt   time.Time `db:"created_at"`
}
