// Package dto defines the HTTP request and response payloads
package dto

import "ticketd/internal/domain"

// CreateEventRequest is the payload for POST /events
type CreateEventRequest struct {
	Title       string        `json:"title" binding:"required"`
	Slug        string        `json:"slug"`
	Description string        `json:"description"`
	Thumbnail   string        `json:"thumbnail"`
	Price       int64         `json:"price"`
	TotalSeats  int           `json:"total_seats" binding:"required,gt=0"`
	SeatMap     []domain.Seat `json:"seat_map"`
}

// EventListResponse wraps the event listing
type EventListResponse struct {
	Events []domain.EventListing `json:"events"`
	Total  int                   `json:"total"`
}
