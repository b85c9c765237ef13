// Package repository persists domain records in the grouped state store
// and maintains the denormalized booking views.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"ticketd/internal/domain"
	"ticketd/internal/store"
)

// casAttempts bounds the re-read/retry cycle when a concurrent writer wins
// the version race. Contention on one booking is a handful of saga steps,
// never unbounded.
const casAttempts = 5

// BookingRepository stores bookings in three views that must always agree:
// the global index, a per-event index, and a per-customer index. Writes for
// one booking id are serialized in-process by a lock table and across
// processes by a version compare-and-swap on the global index, so
// concurrent saga steps can never drop a status transition with a lost
// update even when the API server and a saga worker share one store.
type BookingRepository struct {
	store store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewBookingRepository creates a booking repository
func NewBookingRepository(st store.Store) *BookingRepository {
	return &BookingRepository{
		store: st,
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *BookingRepository) bookingLock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}

// Create writes a new booking to all three views
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	lock := r.bookingLock(booking.ID)
	lock.Lock()
	defer lock.Unlock()
	return r.writeViews(ctx, booking)
}

// Get returns the booking from the global index
func (r *BookingRepository) Get(ctx context.Context, id string) (*domain.Booking, error) {
	var booking domain.Booking
	err := r.store.Get(ctx, store.GroupBookings, id, &booking)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// Mutate applies fn to the latest stored booking and writes the result to
// all three views. The global-index write is a compare-and-swap on the
// record the mutation started from; when another process wins the race the
// booking is re-read and fn re-applied, so fn always sees the freshest
// record and transitions are linearized. fn returning an error aborts the
// write and the error is returned unchanged.
func (r *BookingRepository) Mutate(ctx context.Context, id string, fn func(*domain.Booking) error) (*domain.Booking, error) {
	lock := r.bookingLock(id)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; attempt < casAttempts; attempt++ {
		var raw json.RawMessage
		if err := r.store.Get(ctx, store.GroupBookings, id, &raw); err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return nil, domain.ErrBookingNotFound
			}
			return nil, fmt.Errorf("failed to get booking: %w", err)
		}
		var booking domain.Booking
		if err := json.Unmarshal(raw, &booking); err != nil {
			return nil, fmt.Errorf("failed to decode booking %s: %w", id, err)
		}

		if err := fn(&booking); err != nil {
			return nil, err
		}
		booking.Version++

		err := r.store.CompareAndSwap(ctx, store.GroupBookings, id, raw, &booking)
		if errors.Is(err, store.ErrCASMismatch) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to write booking: %w", err)
		}

		if err := r.writeDerivedViews(ctx, &booking); err != nil {
			return nil, err
		}
		return &booking, nil
	}
	return nil, fmt.Errorf("booking %s: gave up after %d contended updates", id, casAttempts)
}

// writeViews writes the booking to the global, per-event, and per-customer
// views in that fixed order. A crash partway leaves the global index most
// authoritative; readers of the derived views may briefly lag but never
// see a record the global index lacks.
func (r *BookingRepository) writeViews(ctx context.Context, booking *domain.Booking) error {
	if err := r.store.Set(ctx, store.GroupBookings, booking.ID, booking); err != nil {
		return fmt.Errorf("failed to write booking: %w", err)
	}
	return r.writeDerivedViews(ctx, booking)
}

// writeDerivedViews refreshes the per-event and per-customer copies from
// the record just written to the global index
func (r *BookingRepository) writeDerivedViews(ctx context.Context, booking *domain.Booking) error {
	if err := r.store.Set(ctx, store.GroupEventBookings(booking.EventID), booking.ID, booking); err != nil {
		return fmt.Errorf("failed to write event booking view: %w", err)
	}
	if err := r.store.Set(ctx, store.GroupCustomerBookings(booking.CustomerEmail), booking.ID, booking); err != nil {
		return fmt.Errorf("failed to write customer booking view: %w", err)
	}
	return nil
}

// ListByEvent returns all bookings for one event
func (r *BookingRepository) ListByEvent(ctx context.Context, eventID string) ([]domain.Booking, error) {
	raw, err := r.store.GetGroup(ctx, store.GroupEventBookings(eventID))
	if err != nil {
		return nil, fmt.Errorf("failed to list event bookings: %w", err)
	}
	return store.DecodeGroup[domain.Booking](raw), nil
}

// ListByCustomer returns all bookings for one customer email
func (r *BookingRepository) ListByCustomer(ctx context.Context, email string) ([]domain.Booking, error) {
	raw, err := r.store.GetGroup(ctx, store.GroupCustomerBookings(email))
	if err != nil {
		return nil, fmt.Errorf("failed to list customer bookings: %w", err)
	}
	return store.DecodeGroup[domain.Booking](raw), nil
}

// ListAll returns every booking from the global index, deduplicated by id
func (r *BookingRepository) ListAll(ctx context.Context) ([]domain.Booking, error) {
	raw, err := r.store.GetGroup(ctx, store.GroupBookings)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := store.DecodeGroup[domain.Booking](raw)
	seen := make(map[string]struct{}, len(bookings))
	out := bookings[:0]
	for _, b := range bookings {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out, nil
}
