package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ClassType string

const (
	ClassTypeYoga             ClassType = "yoga"
	ClassTypeCardio           ClassType = "cardio"
	ClassTypeStrength         ClassType = "strength"
	ClassTypePilates          ClassType = "pilates"
	ClassTypeCrossfit         ClassType = "crossfit"
	ClassTypeSpinning         ClassType = "spinning"
	ClassTypeDance            ClassType = "dance"
	ClassTypeMartialArts      ClassType = "martial_arts"
	ClassTypeAqua             ClassType = "aqua"
	ClassTypePersonalTraining ClassType = "personal_training"
	ClassTypeGroupFitness     ClassType = "group_fitness"
)

type ClassStatus string

const (
	ClassStatusActive    ClassStatus = "active"
	ClassStatusInactive  ClassStatus = "inactive"
	ClassStatusCancelled ClassStatus = "cancelled"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ScheduleEntry is one weekly slot. Times are zero-padded 24h "HH:MM",
// so lexical comparison orders them correctly.
type ScheduleEntry struct {
	DayOfWeek   int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime   string `json:"start_time" validate:"required,hhmm"`
	EndTime     string `json:"end_time" validate:"required,hhmm"`
	IsRecurring bool   `json:"is_recurring"`
}

type Schedule []ScheduleEntry

func (s Schedule) Value() (driver.Value, error) {
	if s == nil {
		s = Schedule{}
	}
	return jsonValue(s)
}

func (s *Schedule) Scan(src any) error { return jsonScan(src, s) }

type CancellationPolicy struct {
	HoursBeforeClass int `json:"hours_before_class" validate:"min=0"`
	RefundPercentage int `json:"refund_percentage" validate:"min=0,max=100"`
}

// DefaultCancellationPolicy is applied when a template is created without one.
var DefaultCancellationPolicy = CancellationPolicy{HoursBeforeClass: 24, RefundPercentage: 100}

func (p CancellationPolicy) Value() (driver.Value, error) { return jsonValue(p) }

func (p *CancellationPolicy) Scan(src any) error { return jsonScan(src, p) }

type Location struct {
	Room     string  `json:"room" validate:"required"`
	Floor    *int    `json:"floor,omitempty"`
	Building *string `json:"building,omitempty"`
}

func (l Location) Value() (driver.Value, error) { return jsonValue(l) }

func (l *Location) Scan(src any) error { return jsonScan(src, l) }

type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		s = StringList{}
	}
	return jsonValue(s)
}

func (s *StringList) Scan(src any) error { return jsonScan(src, s) }

type ClassTemplate struct {
	ID                 uuid.UUID          `db:"id" json:"id"`
	Name               string             `db:"name" json:"name" validate:"required,max=100"`
	Description        string             `db:"description" json:"description" validate:"max=1000"`
	Type               ClassType          `db:"type" json:"type" validate:"required,oneof=yoga cardio strength pilates crossfit spinning dance martial_arts aqua personal_training group_fitness"`
	TrainerID          uuid.UUID          `db:"trainer_id" json:"trainer_id" validate:"required"`
	MaxCapacity        int                `db:"max_capacity" json:"max_capacity" validate:"min=1,max=100"`
	DurationMinutes    int                `db:"duration_minutes" json:"duration_minutes" validate:"min=15,max=180"`
	Price              decimal.Decimal    `db:"price" json:"price"`
	Status             ClassStatus        `db:"status" json:"status" validate:"oneof=active inactive cancelled"`
	Schedule           Schedule           `db:"schedule" json:"schedule" validate:"dive"`
	CancellationPolicy CancellationPolicy `db:"cancellation_policy" json:"cancellation_policy"`
	Difficulty         Difficulty         `db:"difficulty" json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	Location           Location           `db:"location" json:"location"`
	Requirements       StringList         `db:"requirements" json:"requirements"`
	Equipment          StringList         `db:"equipment" json:"equipment"`
	Tags               StringList         `db:"tags" json:"tags"`
	ImageKey           *string            `db:"image_key" json:"image_key,omitempty"`
	IsBookable         bool               `db:"is_bookable" json:"is_bookable"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// UnmarshalJSON treats a missing is_bookable as true, matching the column default.
func (c *ClassTemplate) UnmarshalJSON(data []byte) error {
	type template ClassTemplate
	t := template{IsBookable: true}
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	*c = ClassTemplate(t)
	return nil
}
