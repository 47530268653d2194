package entity

import (
	"errors"
	"fmt"
)

var (
	// Booking errors
	ErrBookingNotFound      = errors.New("booking not found")
	ErrInvalidBookingStatus = errors.New("invalid booking status")
	ErrConcurrentUpdate     = errors.New("concurrent update detected")

	// Assignment errors
	ErrAssignmentNotFound = errors.New("assignment not found")

	// User errors
	ErrUserNotFound        = errors.New("user not found")
	ErrCustomerNotFound    = errors.New("customer profile not found")
	ErrInterpreterNotFound = errors.New("interpreter profile not found")
	ErrLanguageNotFound    = errors.New("language not found")

	// Rejection kinds
	ErrValidation = errors.New("validation rejected")
	ErrConflict   = errors.New("conflict rejected")
	ErrForbidden  = errors.New("forbidden operation")
	ErrLockBusy   = errors.New("booking is locked by another operation")
)

// ValidationError reports a missing or malformed field on a request.
type ValidationError struct {
	Field   string `json:"field_name"`
	Message string `json:"message"`
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type ConflictReason string

const (
	ConflictAlreadyTaken   ConflictReason = "already_taken"
	ConflictAlreadyBooked  ConflictReason = "already_booked"
	ConflictCancelTooLate  ConflictReason = "cancel_too_late"
	ConflictNotAssigned    ConflictReason = "not_assigned"
	ConflictNotCancellable ConflictReason = "not_cancellable"
)

// ConflictError reports that the booking is not in a state that allows the operation.
type ConflictError struct {
	Reason  ConflictReason `json:"reason"`
	Message string         `json:"message"`
}

func NewConflictError(reason ConflictReason, message string) *ConflictError {
	return &ConflictError{Reason: reason, Message: message}
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// IsNotFound groups the sentinel errors that mean an id did not resolve.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrInterpreterNotFound) ||
		errors.Is(err, ErrLanguageNotFound)
}
