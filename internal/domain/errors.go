package domain

import "errors"

// Domain errors
var (
	// Booking errors
	ErrBookingNotFound    = errors.New("booking not found")
	ErrAlreadyConfirmed   = errors.New("booking already confirmed")
	ErrAlreadyFinal       = errors.New("booking already in a terminal status")
	ErrNotCancellable     = errors.New("booking cannot be cancelled in its current status")
	ErrInvalidTransition  = errors.New("invalid booking status transition")
	ErrRefundNotDue       = errors.New("booking has no captured payment to refund")

	// Event errors
	ErrEventNotFound = errors.New("event not found")
	ErrSeatNotFound  = errors.New("seat does not exist in event seat map")
	ErrSlugTaken     = errors.New("an event with this slug already exists")

	// Availability errors
	ErrSeatUnavailable = errors.New("seat is held or booked")
	ErrSoldOut         = errors.New("event is sold out")
	ErrHoldConflict    = errors.New("an active hold or confirmed booking exists for this seat")

	// Validation errors
	ErrInvalidEventID       = errors.New("invalid event id")
	ErrInvalidBookingID     = errors.New("invalid booking id")
	ErrInvalidCustomerName  = errors.New("customer name is required")
	ErrInvalidCustomerEmail = errors.New("valid customer email is required")
	ErrInvalidTitle         = errors.New("title is required")
	ErrInvalidSlug          = errors.New("slug must be lowercase with hyphens")
	ErrInvalidPrice         = errors.New("price cannot be negative")
	ErrInvalidTotalSeats    = errors.New("total seats must be greater than zero")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrEventNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidEventID) ||
		errors.Is(err, ErrInvalidBookingID) ||
		errors.Is(err, ErrInvalidCustomerName) ||
		errors.Is(err, ErrInvalidCustomerEmail) ||
		errors.Is(err, ErrInvalidTitle) ||
		errors.Is(err, ErrInvalidSlug) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrInvalidTotalSeats) ||
		errors.Is(err, ErrSeatNotFound)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSeatUnavailable) ||
		errors.Is(err, ErrSoldOut) ||
		errors.Is(err, ErrHoldConflict) ||
		errors.Is(err, ErrNotCancellable) ||
		errors.Is(err, ErrSlugTaken)
}
