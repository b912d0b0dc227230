package model

import (
	"time"

	"github.com/google/uuid"
)

type InstanceStatus string

const (
	InstanceStatusScheduled InstanceStatus = "scheduled"
	InstanceStatusOngoing   InstanceStatus = "ongoing"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusCancelled InstanceStatus = "cancelled"
)

var instanceTransitions = map[InstanceStatus][]InstanceStatus{
	InstanceStatusScheduled: {InstanceStatusOngoing, InstanceStatusCancelled},
	InstanceStatusOngoing:   {InstanceStatusCompleted, InstanceStatusCancelled},
}

// CanTransitionTo reports whether the instance lifecycle allows moving from s to next.
func (s InstanceStatus) CanTransitionTo(next InstanceStatus) bool {
	for _, allowed := range instanceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Attendance struct {
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	CheckInTime  time.Time  `db:"check_in_time" json:"check_in_time"`
	CheckOutTime *time.Time `db:"check_out_time" json:"check_out_time,omitempty"`
}

type ClassInstance struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	ClassID         uuid.UUID      `db:"class_id" json:"class_id"`
	TrainerID       uuid.UUID      `db:"trainer_id" json:"trainer_id"`
	ScheduledDate   time.Time      `db:"scheduled_date" json:"scheduled_date"`
	StartTime       time.Time      `db:"start_time" json:"start_time"`
	EndTime         time.Time      `db:"end_time" json:"end_time"`
	MaxCapacity     int            `db:"max_capacity" json:"max_capacity"`
	CurrentBookings int            `db:"current_bookings" json:"current_bookings"`
	Status          InstanceStatus `db:"status" json:"status"`
	ActualStartTime *time.Time     `db:"actual_start_time" json:"actual_start_time,omitempty"`
	ActualEndTime   *time.Time     `db:"actual_end_time" json:"actual_end_time,omitempty"`
	Notes           *string        `db:"notes" json:"notes,omitempty"`
	Attendance      []Attendance   `db:"-" json:"attendance"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

func (i *ClassInstance) AvailableSpots() int {
	if i.CurrentBookings >= i.MaxCapacity {
		return 0
	}
	return i.MaxCapacity - i.CurrentBookings
}
