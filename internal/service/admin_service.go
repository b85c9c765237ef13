package service

import (
	"context"
	"sort"
	"time"

	"ticketd/internal/domain"
	"ticketd/internal/repository"
)

// ListBookingsFilter narrows the admin booking listing
type ListBookingsFilter struct {
	Status  domain.BookingStatus
	EventID string
}

// CustomerSummary aggregates a customer's booking history. Name follows
// the customer's most recent booking.
type CustomerSummary struct {
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	TotalBookings     int       `json:"total_bookings"`
	ConfirmedBookings int       `json:"confirmed_bookings"`
	TotalSpent        int64     `json:"total_spent"`
	LastBookingAt     time.Time `json:"last_booking_at"`
}

// AdminService serves the operator-facing listings
type AdminService struct {
	bookings *repository.BookingRepository
}

// NewAdminService creates an admin service
func NewAdminService(bookings *repository.BookingRepository) *AdminService {
	return &AdminService{bookings: bookings}
}

// ListBookings returns bookings matching the filter, newest first
func (s *AdminService) ListBookings(ctx context.Context, filter ListBookingsFilter) ([]domain.Booking, error) {
	var (
		bookings []domain.Booking
		err      error
	)
	if filter.EventID != "" {
		bookings, err = s.bookings.ListByEvent(ctx, filter.EventID)
	} else {
		bookings, err = s.bookings.ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := bookings[:0]
	for _, b := range bookings {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListCustomers aggregates every booking by customer email, ordered by
// total spend descending
func (s *AdminService) ListCustomers(ctx context.Context) ([]CustomerSummary, error) {
	bookings, err := s.bookings.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	byEmail := make(map[string]*CustomerSummary)
	for _, b := range bookings {
		summary, ok := byEmail[b.CustomerEmail]
		if !ok {
			summary = &CustomerSummary{Email: b.CustomerEmail}
			byEmail[b.CustomerEmail] = summary
		}
		summary.TotalBookings++
		// A refunded booking was confirmed once and its charge captured, so
		// it counts toward both tallies alongside currently confirmed ones.
		if b.Status == domain.BookingStatusConfirmed || b.Status == domain.BookingStatusRefunded {
			summary.ConfirmedBookings++
			summary.TotalSpent += b.Amount
		}
		if b.CreatedAt.After(summary.LastBookingAt) {
			summary.LastBookingAt = b.CreatedAt
			summary.Name = b.CustomerName
		}
	}

	customers := make([]CustomerSummary, 0, len(byEmail))
	for _, summary := range byEmail {
		customers = append(customers, *summary)
	}
	sort.Slice(customers, func(i, j int) bool {
		if customers[i].TotalSpent != customers[j].TotalSpent {
			return customers[i].TotalSpent > customers[j].TotalSpent
		}
		return customers[i].Email < customers[j].Email
	})
	return customers, nil
}
