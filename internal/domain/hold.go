package domain

import "time"

// SeatHold is an exclusive, time-bound claim on a seat while a booking saga
// runs. Expiry is lazy: an expired hold is inert but may remain in storage
// until something overwrites or deletes it.
type SeatHold struct {
	EventID   string    `json:"event_id"`
	SeatID    string    `json:"seat_id"`
	BookingID string    `json:"booking_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Active reports whether the hold is still blocking at the given instant
func (h *SeatHold) Active(now time.Time) bool {
	return h.ExpiresAt.After(now)
}

// BelongsTo reports whether the hold was created for the given booking
func (h *SeatHold) BelongsTo(bookingID string) bool {
	return h.BookingID == bookingID
}
