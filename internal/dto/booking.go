package dto

import (
	"time"

	"ticketd/internal/domain"
	"ticketd/internal/service"
)

// InitiateBookingRequest is the payload for POST /bookings/init. An empty
// seat_id requests general admission.
type InitiateBookingRequest struct {
	EventID       string `json:"event_id" binding:"required"`
	SeatID        string `json:"seat_id"`
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
}

// InitiateBookingResponse acknowledges a started booking saga. The caller
// polls GET /bookings/:id for the outcome.
type InitiateBookingResponse struct {
	BookingID     string     `json:"booking_id"`
	Status        string     `json:"status"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

// CancelBookingResponse acknowledges a cancellation request
type CancelBookingResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

// BookingListResponse wraps a booking listing
type BookingListResponse struct {
	Bookings []domain.Booking `json:"bookings"`
	Total    int              `json:"total"`
}

// CustomerListResponse wraps the admin customer listing
type CustomerListResponse struct {
	Customers []service.CustomerSummary `json:"customers"`
	Total     int                       `json:"total"`
}
