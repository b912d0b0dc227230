package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrClassNotFound          = errors.New("class not found")
	ErrClassInstanceNotFound  = errors.New("class instance not found")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrClassFull              = errors.New("class is full")
	ErrDuplicateBooking       = errors.New("user already has a confirmed booking for this class")
	ErrForbidden              = errors.New("not allowed to perform this action")
	ErrAlreadyCancelled       = errors.New("booking is not active")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInstanceConflict       = errors.New("class instance already exists for this start time")
	ErrCancellationCutoff     = errors.New("bookings cannot be cancelled this close to class start")
	ErrStorageUnavailable     = errors.New("image storage is not configured")
)

// ValidationError maps offending fields to the rule they broke.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func newValidationError(field, rule string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: rule}}
}

// IsPermanent reports whether err is a business outcome that retrying the
// same request cannot change.
func IsPermanent(err error) bool {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrClassInstanceNotFound),
		errors.Is(err, ErrClassNotFound),
		errors.Is(err, ErrInvalidStateTransition),
		errors.Is(err, ErrForbidden):
		return true
	}
	return false
}
