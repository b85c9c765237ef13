// Package saga drives bookings through their lifecycle. Each step is a bus
// handler: it transitions the booking, performs its side effect, and emits
// the next topic. Delivery is at-least-once, so every handler tolerates
// duplicates by treating an already-applied transition as a no-op.
package saga

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ticketd/internal/bus"
	"ticketd/internal/domain"
	"ticketd/internal/inventory"
	"ticketd/internal/payment"
	"ticketd/internal/repository"
	"ticketd/pkg/logger"
	"ticketd/pkg/telemetry"
)

// Coordinator subscribes the saga step handlers to the bus and carries
// their shared dependencies.
type Coordinator struct {
	bookings  *repository.BookingRepository
	events    *repository.EventRepository
	inventory *inventory.Manager
	gateway   payment.Gateway
	bus       bus.Bus
	now       func() time.Time
}

// NewCoordinator creates a saga coordinator. A nil clock uses time.Now.
func NewCoordinator(
	bookings *repository.BookingRepository,
	events *repository.EventRepository,
	inv *inventory.Manager,
	gateway payment.Gateway,
	b bus.Bus,
	now func() time.Time,
) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		bookings:  bookings,
		events:    events,
		inventory: inv,
		gateway:   gateway,
		bus:       b,
		now:       now,
	}
}

// Register subscribes every saga step handler. Must be called before the
// bus starts.
func (c *Coordinator) Register() {
	c.bus.Subscribe(bus.TopicValidateBooking, c.handleValidateBooking)
	c.bus.Subscribe(bus.TopicProcessPayment, c.handleProcessPayment)
	c.bus.Subscribe(bus.TopicBookingConfirmed, c.handleBookingConfirmed)
	c.bus.Subscribe(bus.TopicBookingFailed, c.handleBookingFailed)
	c.bus.Subscribe(bus.TopicProcessCancellation, c.handleProcessCancellation)
	c.bus.Subscribe(bus.TopicRefundInitiated, c.handleRefundInitiated)
}

// handleValidateBooking moves the booking to validating and re-checks the
// prerequisites that may have changed since initiation: the event must
// still exist, a seat booking must still own an unexpired hold, and a
// general-admission booking must still fit the remaining capacity. A
// failed check routes to booking-failed; success routes to payment.
func (c *Coordinator) handleValidateBooking(ctx context.Context, payload []byte) error {
	ctx, span := telemetry.StartSpan(ctx, "saga.validate_booking")
	defer span.End()

	msg, err := bus.Decode[bus.ValidateBookingMessage](payload)
	if err != nil {
		return err
	}
	log := logger.Get().With(zap.String("booking_id", msg.BookingID))

	if _, err := c.bookings.Mutate(ctx, msg.BookingID, func(b *domain.Booking) error {
		return b.BeginValidation(c.now())
	}); err != nil {
		return c.dropOrRetry(log, "validate", err)
	}

	event, err := c.events.Get(ctx, msg.EventID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return c.emitFailed(ctx, msg.BookingID, msg.EventID, msg.SeatID, "Event no longer exists")
		}
		return err
	}

	if msg.SeatID != "" {
		hold, err := c.inventory.GetHold(ctx, msg.EventID, msg.SeatID)
		if err != nil {
			return err
		}
		if hold == nil || !hold.BelongsTo(msg.BookingID) {
			return c.emitFailed(ctx, msg.BookingID, msg.EventID, msg.SeatID, "Seat hold was lost")
		}
		if !hold.Active(c.now()) {
			return c.emitFailed(ctx, msg.BookingID, msg.EventID, msg.SeatID, "Seat hold expired")
		}
	} else {
		remaining, err := c.inventory.CheckCapacity(ctx, event)
		if err != nil {
			return err
		}
		if remaining <= 0 {
			return c.emitFailed(ctx, msg.BookingID, msg.EventID, "", "Event sold out")
		}
	}

	log.Info("booking validated", zap.String("event_id", msg.EventID))
	return c.bus.Publish(ctx, bus.TopicProcessPayment, msg.BookingID, &bus.ProcessPaymentMessage{
		BookingID:     msg.BookingID,
		EventID:       msg.EventID,
		SeatID:        msg.SeatID,
		CustomerName:  msg.CustomerName,
		CustomerEmail: msg.CustomerEmail,
		Amount:        event.Price,
	})
}

// handleProcessPayment moves the booking to processing and charges the
// gateway. A decline releases the hold and routes to booking-failed; a
// capture routes to booking-confirmed with the payment id.
func (c *Coordinator) handleProcessPayment(ctx context.Context, payload []byte) error {
	ctx, span := telemetry.StartSpan(ctx, "saga.process_payment")
	defer span.End()

	msg, err := bus.Decode[bus.ProcessPaymentMessage](payload)
	if err != nil {
		return err
	}
	log := logger.Get().With(zap.String("booking_id", msg.BookingID))

	if _, err := c.bookings.Mutate(ctx, msg.BookingID, func(b *domain.Booking) error {
		return b.BeginProcessing(c.now())
	}); err != nil {
		return c.dropOrRetry(log, "process payment", err)
	}

	result, err := c.gateway.Charge(ctx, msg.BookingID, msg.Amount)
	if err != nil {
		return err
	}

	if !result.Success {
		log.Info("payment declined", zap.String("reason", result.Reason))
		if err := c.inventory.ReleaseHold(ctx, msg.EventID, msg.SeatID); err != nil {
			log.Warn("failed to release hold after declined payment", zap.Error(err))
		}
		return c.emitFailed(ctx, msg.BookingID, msg.EventID, msg.SeatID, result.Reason)
	}

	log.Info("payment captured",
		zap.String("payment_id", result.PaymentID),
		zap.Int64("amount", msg.Amount))
	return c.bus.Publish(ctx, bus.TopicBookingConfirmed, msg.BookingID, &bus.BookingConfirmedMessage{
		BookingID:     msg.BookingID,
		EventID:       msg.EventID,
		SeatID:        msg.SeatID,
		CustomerEmail: msg.CustomerEmail,
		PaymentID:     result.PaymentID,
		Amount:        msg.Amount,
	})
}

// handleBookingConfirmed records the confirmation and releases the seat
// hold; the confirmed booking itself now blocks the seat
func (c *Coordinator) handleBookingConfirmed(ctx context.Context, payload []byte) error {
	ctx, span := telemetry.StartSpan(ctx, "saga.confirm_booking")
	defer span.End()

	msg, err := bus.Decode[bus.BookingConfirmedMessage](payload)
	if err != nil {
		return err
	}
	log := logger.Get().With(zap.String("booking_id", msg.BookingID))

	if _, err := c.bookings.Mutate(ctx, msg.BookingID, func(b *domain.Booking) error {
		return b.Confirm(msg.PaymentID, msg.Amount, c.now())
	}); err != nil {
		return c.dropOrRetry(log, "confirm", err)
	}

	if err := c.inventory.ReleaseHold(ctx, msg.EventID, msg.SeatID); err != nil {
		log.Warn("failed to release hold after confirmation", zap.Error(err))
	}

	log.Info("booking confirmed", zap.String("payment_id", msg.PaymentID))
	return nil
}

// handleBookingFailed records the terminal failure and releases the hold
// so the seat immediately becomes available again
func (c *Coordinator) handleBookingFailed(ctx context.Context, payload []byte) error {
	ctx, span := telemetry.StartSpan(ctx, "saga.fail_booking")
	defer span.End()

	msg, err := bus.Decode[bus.BookingFailedMessage](payload)
	if err != nil {
		return err
	}
	log := logger.Get().With(zap.String("booking_id", msg.BookingID))

	if _, err := c.bookings.Mutate(ctx, msg.BookingID, func(b *domain.Booking) error {
		return b.Fail(msg.Reason, c.now())
	}); err != nil {
		return c.dropOrRetry(log, "fail", err)
	}

	if err := c.inventory.ReleaseHold(ctx, msg.EventID, msg.SeatID); err != nil {
		log.Warn("failed to release hold after failure", zap.Error(err))
	}

	log.Info("booking failed", zap.String("reason", msg.Reason))
	return nil
}

// handleProcessCancellation releases the hold, completes the cancellation,
// and starts a refund when a payment had been captured
func (c *Coordinator) handleProcessCancellation(ctx context.Context, payload []byte) error {
	ctx, span := telemetry.StartSpan(ctx, "saga.process_cancellation")
	defer span.End()

	msg, err := bus.Decode[bus.ProcessCancellationMessage](payload)
	if err != nil {
		return err
	}
	log := logger.Get().With(zap.String("booking_id", msg.BookingID))

	if err := c.inventory.ReleaseHold(ctx, msg.EventID, msg.SeatID); err != nil {
		log.Warn("failed to release hold during cancellation", zap.Error(err))
	}

	booking, err := c.bookings.Mutate(ctx, msg.BookingID, func(b *domain.Booking) error {
		return b.CompleteCancellation(c.now())
	})
	if err != nil {
		return c.dropOrRetry(log, "cancel", err)
	}

	if !booking.HadPayment() {
		log.Info("booking cancelled, no refund due")
		return nil
	}

	log.Info("booking cancelled, initiating refund", zap.Int64("amount", booking.Amount))
	return c.bus.Publish(ctx, bus.TopicRefundInitiated, msg.BookingID, &bus.RefundInitiatedMessage{
		BookingID:     msg.BookingID,
		EventID:       msg.EventID,
		CustomerEmail: msg.CustomerEmail,
		Amount:        booking.Amount,
	})
}

// handleRefundInitiated runs the refund through the gateway and records
// the refunded terminal status
func (c *Coordinator) handleRefundInitiated(ctx context.Context, payload []byte) error {
	ctx, span := telemetry.StartSpan(ctx, "saga.process_refund")
	defer span.End()

	msg, err := bus.Decode[bus.RefundInitiatedMessage](payload)
	if err != nil {
		return err
	}
	log := logger.Get().With(zap.String("booking_id", msg.BookingID))

	result, err := c.gateway.Refund(ctx, msg.BookingID, msg.Amount)
	if err != nil {
		return err
	}

	if _, err := c.bookings.Mutate(ctx, msg.BookingID, func(b *domain.Booking) error {
		return b.MarkRefunded(result.RefundID, result.Amount, c.now())
	}); err != nil {
		return c.dropOrRetry(log, "refund", err)
	}

	log.Info("booking refunded",
		zap.String("refund_id", result.RefundID),
		zap.Int64("amount", result.Amount))
	return nil
}

// emitFailed publishes booking-failed with the given reason
func (c *Coordinator) emitFailed(ctx context.Context, bookingID, eventID, seatID, reason string) error {
	return c.bus.Publish(ctx, bus.TopicBookingFailed, bookingID, &bus.BookingFailedMessage{
		BookingID: bookingID,
		EventID:   eventID,
		SeatID:    seatID,
		Reason:    reason,
	})
}

// dropOrRetry decides what a failed transition means for redelivery. An
// invalid transition or a vanished booking is a duplicate or stale message
// and is dropped; anything else is an infrastructure error worth retrying.
func (c *Coordinator) dropOrRetry(log *zap.Logger, step string, err error) error {
	if errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrAlreadyConfirmed) ||
		errors.Is(err, domain.ErrAlreadyFinal) ||
		errors.Is(err, domain.ErrRefundNotDue) ||
		errors.Is(err, domain.ErrBookingNotFound) {
		log.Debug("dropping stale saga message",
			zap.String("step", step),
			zap.Error(err))
		return nil
	}
	return err
}
