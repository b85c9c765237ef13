// Package service implements the application operations behind the HTTP
// handlers: booking initiation and cancellation, event catalog reads and
// writes, and the admin listings.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ticketd/internal/bus"
	"ticketd/internal/domain"
	"ticketd/internal/inventory"
	"ticketd/internal/repository"
	"ticketd/pkg/logger"
	"ticketd/pkg/telemetry"
)

// DefaultHoldTTL is how long a seat hold blocks other bookings
const DefaultHoldTTL = 60 * time.Second

// InitiateBookingInput is the input for starting a booking saga
type InitiateBookingInput struct {
	EventID       string
	SeatID        string // empty = general admission
	CustomerName  string
	CustomerEmail string
}

// BookingService drives the client-facing side of the booking saga:
// initiation, cancellation, and booking reads.
type BookingService struct {
	bookings  *repository.BookingRepository
	events    *repository.EventRepository
	inventory *inventory.Manager
	bus       bus.Bus
	holdTTL   time.Duration
	now       func() time.Time
}

// NewBookingService creates a booking service. Zero holdTTL uses
// DefaultHoldTTL; a nil clock uses time.Now.
func NewBookingService(
	bookings *repository.BookingRepository,
	events *repository.EventRepository,
	inv *inventory.Manager,
	b bus.Bus,
	holdTTL time.Duration,
	now func() time.Time,
) *BookingService {
	if holdTTL <= 0 {
		holdTTL = DefaultHoldTTL
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:  bookings,
		events:    events,
		inventory: inv,
		bus:       b,
		holdTTL:   holdTTL,
		now:       now,
	}
}

// Initiate creates a booking in pending, places a seat hold when a seat was
// requested, and kicks off the validation step. Not idempotent: every call
// creates a new booking id, so callers must not retry blindly.
func (s *BookingService) Initiate(ctx context.Context, in InitiateBookingInput) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.initiate")
	defer span.End()

	event, err := s.events.Get(ctx, in.EventID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	booking := &domain.Booking{
		ID:            domain.NewID("bk"),
		EventID:       event.ID,
		EventTitle:    event.Title,
		SeatID:        in.SeatID,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		Status:        domain.BookingStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := booking.Validate(); err != nil {
		return nil, err
	}

	if in.SeatID != "" {
		if !event.HasSeat(in.SeatID) {
			return nil, domain.ErrSeatNotFound
		}
		hold, err := s.inventory.CreateHold(ctx, event.ID, in.SeatID, booking.ID, s.holdTTL)
		if err != nil {
			return nil, err
		}
		booking.HoldExpiresAt = &hold.ExpiresAt
	} else {
		remaining, err := s.inventory.CheckCapacity(ctx, event)
		if err != nil {
			return nil, err
		}
		if remaining <= 0 {
			return nil, domain.ErrSoldOut
		}
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		// The booking record never existed, so the hold must not outlive it.
		if relErr := s.inventory.ReleaseHold(ctx, event.ID, in.SeatID); relErr != nil {
			logger.Get().Warn("failed to release hold after create failure",
				zap.String("booking_id", booking.ID),
				zap.Error(relErr))
		}
		return nil, err
	}

	logger.Get().Info("booking initiated",
		zap.String("booking_id", booking.ID),
		zap.String("event_id", event.ID),
		zap.String("seat_id", in.SeatID))

	if err := s.bus.Publish(ctx, bus.TopicValidateBooking, booking.ID, &bus.ValidateBookingMessage{
		BookingID:     booking.ID,
		EventID:       event.ID,
		SeatID:        in.SeatID,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
	}); err != nil {
		return nil, err
	}
	return booking, nil
}

// Get returns one booking by id
func (s *BookingService) Get(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.Get(ctx, id)
}

// ListByCustomer returns every booking made with the given email
func (s *BookingService) ListByCustomer(ctx context.Context, email string) ([]domain.Booking, error) {
	if email == "" {
		return nil, domain.ErrInvalidCustomerEmail
	}
	return s.bookings.ListByCustomer(ctx, email)
}

// Cancel acknowledges a cancellation synchronously by moving the booking to
// cancelling, then hands the rest of the work to the cancellation step.
// Only bookings in pending, validating, processing, or confirmed can be
// cancelled.
func (s *BookingService) Cancel(ctx context.Context, id string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.cancel")
	defer span.End()

	booking, err := s.bookings.Mutate(ctx, id, func(b *domain.Booking) error {
		return b.BeginCancellation(s.now())
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Info("booking cancellation requested", zap.String("booking_id", id))

	if err := s.bus.Publish(ctx, bus.TopicProcessCancellation, id, &bus.ProcessCancellationMessage{
		BookingID:     booking.ID,
		EventID:       booking.EventID,
		SeatID:        booking.SeatID,
		CustomerEmail: booking.CustomerEmail,
		HadPayment:    booking.HadPayment(),
		Amount:        booking.Amount,
	}); err != nil {
		return nil, err
	}
	return booking, nil
}
