package saga

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketd/internal/bus"
	"ticketd/internal/domain"
	"ticketd/internal/inventory"
	"ticketd/internal/payment"
	"ticketd/internal/repository"
	"ticketd/internal/service"
	"ticketd/internal/store"
	"ticketd/pkg/retry"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv wires the whole saga over in-memory backends with a
// deterministic gateway and clock.
type testEnv struct {
	store    *store.MemoryStore
	bus      *bus.MemoryBus
	bookings *repository.BookingRepository
	events   *repository.EventRepository
	inv      *inventory.Manager
	gateway  *payment.MockGateway
	booking  *service.BookingService
	event    *service.EventService
	clock    *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newTestClock()
	st := store.NewMemoryStore()
	b := bus.NewMemoryBus(&retry.Config{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	})
	t.Cleanup(func() { _ = b.Close() })

	bookings := repository.NewBookingRepository(st)
	events := repository.NewEventRepository(st)
	inv := inventory.NewManager(st, clock.Now)

	gateway := payment.NewMockGateway()
	gateway.ChargeDelay = 0
	gateway.RefundDelay = 0
	gateway.Rand = func() float64 { return 0.0 } // succeed unless a test overrides

	NewCoordinator(bookings, events, inv, gateway, b, clock.Now).Register()

	return &testEnv{
		store:    st,
		bus:      b,
		bookings: bookings,
		events:   events,
		inv:      inv,
		gateway:  gateway,
		booking:  service.NewBookingService(bookings, events, inv, b, 60*time.Second, clock.Now),
		event:    service.NewEventService(events, inv, clock.Now),
		clock:    clock,
	}
}

func (e *testEnv) createEvent(t *testing.T, totalSeats int) *domain.EventListing {
	t.Helper()
	event, err := e.event.Create(context.Background(), service.CreateEventInput{
		Title:      "Test Concert",
		Price:      5000,
		TotalSeats: totalSeats,
	})
	require.NoError(t, err)
	return event
}

func TestSagaConfirmsBooking(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.createEvent(t, 10)

	booking, err := env.booking.Initiate(ctx, service.InitiateBookingInput{
		EventID:       event.ID,
		SeatID:        "A1",
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, booking.Status)
	require.NotNil(t, booking.HoldExpiresAt)

	env.bus.Wait()

	final, err := env.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, final.Status)
	assert.Equal(t, int64(5000), final.Amount)
	assert.NotEmpty(t, final.PaymentID)
	require.NotNil(t, final.ConfirmedAt)

	// The seat is now blocked by the confirmed booking, not a hold.
	status, err := env.inv.SeatAvailability(ctx, event.ID, "A1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatStatusBooked, status)

	hold, err := env.inv.GetHold(ctx, event.ID, "A1")
	require.NoError(t, err)
	assert.Nil(t, hold, "hold must be released on confirmation")
}

func TestSagaFailsBookingOnDeclinedPayment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.gateway.Rand = func() float64 { return 0.99 } // always decline
	event := env.createEvent(t, 10)

	booking, err := env.booking.Initiate(ctx, service.InitiateBookingInput{
		EventID:       event.ID,
		SeatID:        "A1",
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
	})
	require.NoError(t, err)

	env.bus.Wait()

	final, err := env.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, final.Status)
	assert.Contains(t, payment.DefaultFailureReasons, final.FailureReason)
	assert.Empty(t, final.PaymentID)

	// The seat is sellable again.
	status, err := env.inv.SeatAvailability(ctx, event.ID, "A1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatStatusAvailable, status)
}

func TestSagaCancelAfterConfirmationRefunds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.createEvent(t, 10)

	booking, err := env.booking.Initiate(ctx, service.InitiateBookingInput{
		EventID:       event.ID,
		SeatID:        "A1",
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
	})
	require.NoError(t, err)
	env.bus.Wait()

	confirmed, err := env.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BookingStatusConfirmed, confirmed.Status)

	cancelling, err := env.booking.Cancel(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelling, cancelling.Status)

	env.bus.Wait()

	final, err := env.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusRefunded, final.Status)
	assert.NotEmpty(t, final.RefundID)
	assert.Equal(t, confirmed.Amount, final.RefundAmount, "refund must equal the paid amount")
	require.NotNil(t, final.CancelledAt)
	require.NotNil(t, final.RefundedAt)
}

func TestSagaCancelBeforePaymentDoesNotRefund(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.createEvent(t, 10)

	// Create a pending booking directly so no saga steps run before cancel.
	now := env.clock.Now()
	booking := &domain.Booking{
		ID:            domain.NewID("bk"),
		EventID:       event.ID,
		SeatID:        "A1",
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
		Status:        domain.BookingStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, env.bookings.Create(ctx, booking))

	_, err := env.booking.Cancel(ctx, booking.ID)
	require.NoError(t, err)
	env.bus.Wait()

	final, err := env.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, final.Status, "no payment captured means no refund step")
	assert.Empty(t, final.RefundID)
}

func TestSagaValidateFailsWhenHoldLost(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.createEvent(t, 10)

	now := env.clock.Now()
	booking := &domain.Booking{
		ID:            domain.NewID("bk"),
		EventID:       event.ID,
		SeatID:        "A1",
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
		Status:        domain.BookingStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, env.bookings.Create(ctx, booking))

	// No hold exists for this booking, so validation must fail it.
	require.NoError(t, env.bus.Publish(ctx, bus.TopicValidateBooking, booking.ID, &bus.ValidateBookingMessage{
		BookingID:     booking.ID,
		EventID:       event.ID,
		SeatID:        "A1",
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
	}))
	env.bus.Wait()

	final, err := env.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, final.Status)
	assert.Equal(t, "Seat hold was lost", final.FailureReason)
}

func TestSagaValidateFailsWhenHoldExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.createEvent(t, 10)

	now := env.clock.Now()
	booking := &domain.Booking{
		ID:            domain.NewID("bk"),
		EventID:       event.ID,
		SeatID:        "A1",
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
		Status:        domain.BookingStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, env.bookings.Create(ctx, booking))
	_, err := env.inv.CreateHold(ctx, event.ID, "A1", booking.ID, 60*time.Second)
	require.NoError(t, err)

	env.clock.Advance(61 * time.Second)

	require.NoError(t, env.bus.Publish(ctx, bus.TopicValidateBooking, booking.ID, &bus.ValidateBookingMessage{
		BookingID:     booking.ID,
		EventID:       event.ID,
		SeatID:        "A1",
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
	}))
	env.bus.Wait()

	final, err := env.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, final.Status)
	assert.Equal(t, "Seat hold expired", final.FailureReason)
}

func TestSagaValidateFailsGeneralAdmissionWhenSoldOut(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.createEvent(t, 1)

	// Occupy the only slot with a confirmed booking.
	occupant := &domain.Booking{
		ID:            domain.NewID("bk"),
		EventID:       event.ID,
		SeatID:        "A1",
		CustomerName:  "Bob",
		CustomerEmail: "bob@example.com",
		Status:        domain.BookingStatusConfirmed,
		PaymentID:     "pay_x",
		Amount:        5000,
		CreatedAt:     env.clock.Now(),
		UpdatedAt:     env.clock.Now(),
	}
	require.NoError(t, env.bookings.Create(ctx, occupant))

	now := env.clock.Now()
	booking := &domain.Booking{
		ID:            domain.NewID("bk"),
		EventID:       event.ID,
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
		Status:        domain.BookingStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, env.bookings.Create(ctx, booking))

	require.NoError(t, env.bus.Publish(ctx, bus.TopicValidateBooking, booking.ID, &bus.ValidateBookingMessage{
		BookingID:     booking.ID,
		EventID:       event.ID,
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
	}))
	env.bus.Wait()

	final, err := env.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, final.Status)
	assert.Equal(t, "Event sold out", final.FailureReason)
}

func TestSagaToleratesDuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.createEvent(t, 10)

	booking, err := env.booking.Initiate(ctx, service.InitiateBookingInput{
		EventID:       event.ID,
		SeatID:        "A1",
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
	})
	require.NoError(t, err)
	env.bus.Wait()

	confirmed, err := env.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BookingStatusConfirmed, confirmed.Status)

	// Redeliver the confirmation; nothing may change and nothing may
	// double-charge.
	require.NoError(t, env.bus.Publish(ctx, bus.TopicBookingConfirmed, booking.ID, &bus.BookingConfirmedMessage{
		BookingID:     booking.ID,
		EventID:       event.ID,
		SeatID:        "A1",
		CustomerEmail: "alice@example.com",
		PaymentID:     confirmed.PaymentID,
		Amount:        confirmed.Amount,
	}))
	env.bus.Wait()

	again, err := env.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, confirmed.Status, again.Status)
	assert.Equal(t, confirmed.Amount, again.Amount)
	assert.Equal(t, confirmed.PaymentID, again.PaymentID)
}

func TestSagaSeatExclusivityUnderConcurrentInitiation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.createEvent(t, 10)

	const contenders = 10
	results := make(chan error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.booking.Initiate(ctx, service.InitiateBookingInput{
				EventID:       event.ID,
				SeatID:        "A1",
				CustomerName:  "Alice",
				CustomerEmail: "alice@example.com",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domain.ErrHoldConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, wins, "exactly one initiation may claim the seat")
	assert.Equal(t, contenders-1, conflicts)
}
