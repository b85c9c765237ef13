package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SeatCategory is the pricing category of a seat
type SeatCategory string

const (
	SeatCategoryVIP     SeatCategory = "vip"
	SeatCategoryRegular SeatCategory = "regular"
)

// SeatStatus is the live availability of a seat. It is never stored on the
// seat itself; it is derived at read time from active holds and confirmed
// bookings.
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusHeld      SeatStatus = "held"
	SeatStatusBooked    SeatStatus = "booked"
)

// Seat is a single entry in an event's seat map
type Seat struct {
	ID       string       `json:"id"`
	Row      string       `json:"row"`
	Number   int          `json:"number"`
	Category SeatCategory `json:"category"`
}

// EventListing represents a bookable event. Immutable after creation.
type EventListing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Price       int64     `json:"price"` // minor currency units
	TotalSeats  int       `json:"total_seats"`
	SeatMap     []Seat    `json:"seat_map"`
	CreatedAt   time.Time `json:"created_at"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Validate validates all event fields
func (e *EventListing) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrInvalidTitle
	}
	if !slugPattern.MatchString(e.Slug) {
		return ErrInvalidSlug
	}
	if e.Price < 0 {
		return ErrInvalidPrice
	}
	if e.TotalSeats <= 0 {
		return ErrInvalidTotalSeats
	}
	return nil
}

// HasSeat reports whether seatID exists in the event's seat map
func (e *EventListing) HasSeat(seatID string) bool {
	for _, s := range e.SeatMap {
		if s.ID == seatID {
			return true
		}
	}
	return false
}

// seatsPerRow is the width used when generating a default seat map
const seatsPerRow = 10

// DefaultSeatMap generates a seat map for events created without one.
// Rows are lettered from A, ten seats per row, first row vip.
func DefaultSeatMap(totalSeats int) []Seat {
	seats := make([]Seat, 0, totalSeats)
	for i := 0; i < totalSeats; i++ {
		row := string(rune('A' + i/seatsPerRow))
		number := i%seatsPerRow + 1
		category := SeatCategoryRegular
		if i < seatsPerRow {
			category = SeatCategoryVIP
		}
		seats = append(seats, Seat{
			ID:       fmt.Sprintf("%s%d", row, number),
			Row:      row,
			Number:   number,
			Category: category,
		})
	}
	return seats
}
