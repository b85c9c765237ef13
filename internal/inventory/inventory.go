// Package inventory answers seat availability queries and mediates
// exclusive, time-bound holds on seats and general-admission capacity.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ticketd/internal/domain"
	"ticketd/internal/store"
	"ticketd/pkg/logger"
)

// Manager coordinates seat holds over the state store. The check-then-create
// inside CreateHold is serialized per (event, seat) key, so two concurrent
// requests for the same seat can never both observe it as available.
type Manager struct {
	store store.Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates an inventory manager. A nil clock uses time.Now.
func NewManager(st store.Store, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store: st,
		now:   now,
		locks: make(map[string]*sync.Mutex),
	}
}

// seatLock returns the mutex serializing writes for one (event, seat) pair.
// The map grows with the number of distinct seats touched, which is bounded
// by event sizes.
func (m *Manager) seatLock(eventID, seatID string) *sync.Mutex {
	key := eventID + "/" + seatID
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// SeatAvailability reports the computed status of one seat: booked if a
// confirmed booking occupies it, held if an active hold exists, otherwise
// available.
func (m *Manager) SeatAvailability(ctx context.Context, eventID, seatID string) (domain.SeatStatus, error) {
	booked, err := m.seatBooked(ctx, eventID, seatID)
	if err != nil {
		return "", err
	}
	if booked {
		return domain.SeatStatusBooked, nil
	}

	hold, err := m.GetHold(ctx, eventID, seatID)
	if err != nil {
		return "", err
	}
	if hold != nil && hold.Active(m.now()) {
		return domain.SeatStatusHeld, nil
	}
	return domain.SeatStatusAvailable, nil
}

// SeatStatuses returns the computed status of every seat in the event's
// seat map in one pass over holds and bookings
func (m *Manager) SeatStatuses(ctx context.Context, event *domain.EventListing) (map[string]domain.SeatStatus, error) {
	holds, err := m.activeHolds(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	held := make(map[string]struct{}, len(holds))
	for _, hold := range holds {
		held[hold.SeatID] = struct{}{}
	}

	raw, err := m.store.GetGroup(ctx, store.GroupEventBookings(event.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to list event bookings: %w", err)
	}
	booked := make(map[string]struct{})
	for _, booking := range store.DecodeGroup[domain.Booking](raw) {
		if booking.SeatID != "" && booking.Status == domain.BookingStatusConfirmed {
			booked[booking.SeatID] = struct{}{}
		}
	}

	statuses := make(map[string]domain.SeatStatus, len(event.SeatMap))
	for _, seat := range event.SeatMap {
		switch {
		case isMember(booked, seat.ID):
			statuses[seat.ID] = domain.SeatStatusBooked
		case isMember(held, seat.ID):
			statuses[seat.ID] = domain.SeatStatusHeld
		default:
			statuses[seat.ID] = domain.SeatStatusAvailable
		}
	}
	return statuses, nil
}

func isMember(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// CheckCapacity returns the remaining general-admission capacity:
// totalSeats minus active holds and confirmed bookings, evaluated across
// the whole event.
func (m *Manager) CheckCapacity(ctx context.Context, event *domain.EventListing) (int, error) {
	holds, err := m.activeHolds(ctx, event.ID)
	if err != nil {
		return 0, err
	}

	confirmed, err := m.confirmedCount(ctx, event.ID)
	if err != nil {
		return 0, err
	}

	remaining := event.TotalSeats - len(holds) - confirmed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// CreateHold places an exclusive time-bound hold on a seat for a booking.
// Returns domain.ErrHoldConflict if the seat is currently held or booked.
// Expired holds are treated as absent and overwritten in place.
func (m *Manager) CreateHold(ctx context.Context, eventID, seatID, bookingID string, ttl time.Duration) (*domain.SeatHold, error) {
	lock := m.seatLock(eventID, seatID)
	lock.Lock()
	defer lock.Unlock()

	booked, err := m.seatBooked(ctx, eventID, seatID)
	if err != nil {
		return nil, err
	}
	if booked {
		return nil, domain.ErrHoldConflict
	}

	hold := &domain.SeatHold{
		EventID:   eventID,
		SeatID:    seatID,
		BookingID: bookingID,
		ExpiresAt: m.now().Add(ttl),
	}

	var existingRaw json.RawMessage
	err = m.store.Get(ctx, store.GroupSeatHolds(eventID), seatID, &existingRaw)
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}

	if errors.Is(err, store.ErrKeyNotFound) {
		// No record at all: conditional write, so a racing writer on
		// another instance loses cleanly.
		ok, err := m.store.SetIfAbsent(ctx, store.GroupSeatHolds(eventID), seatID, hold)
		if err != nil {
			return nil, fmt.Errorf("failed to create hold: %w", err)
		}
		if !ok {
			return nil, domain.ErrHoldConflict
		}
		return hold, nil
	}

	var existing domain.SeatHold
	if err := json.Unmarshal(existingRaw, &existing); err != nil {
		return nil, fmt.Errorf("failed to decode hold: %w", err)
	}
	if existing.Active(m.now()) {
		return nil, domain.ErrHoldConflict
	}

	// Expired hold left in place by lazy expiry: swap it out conditionally,
	// so a writer on another instance racing for the same expired record
	// cannot also win.
	err = m.store.CompareAndSwap(ctx, store.GroupSeatHolds(eventID), seatID, existingRaw, hold)
	if errors.Is(err, store.ErrCASMismatch) {
		return nil, domain.ErrHoldConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create hold: %w", err)
	}
	return hold, nil
}

// ReleaseHold removes the hold on a seat. Releasing an absent or expired
// hold is a no-op, never an error.
func (m *Manager) ReleaseHold(ctx context.Context, eventID, seatID string) error {
	if seatID == "" {
		return nil
	}
	if err := m.store.Delete(ctx, store.GroupSeatHolds(eventID), seatID); err != nil {
		return fmt.Errorf("failed to release hold: %w", err)
	}
	return nil
}

// GetHold returns the stored hold for a seat, or nil if none exists. The
// caller decides whether an expired hold still matters (validation checks
// ownership and expiry separately).
func (m *Manager) GetHold(ctx context.Context, eventID, seatID string) (*domain.SeatHold, error) {
	var hold domain.SeatHold
	err := m.store.Get(ctx, store.GroupSeatHolds(eventID), seatID, &hold)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}
	return &hold, nil
}

// SweepExpired deletes inert expired holds for an event and returns how
// many were removed. Purely a storage-hygiene operation: correctness never
// depends on it because expiry is checked lazily on every read.
func (m *Manager) SweepExpired(ctx context.Context, eventID string) (int, error) {
	raw, err := m.store.GetGroup(ctx, store.GroupSeatHolds(eventID))
	if err != nil {
		return 0, fmt.Errorf("failed to list holds: %w", err)
	}

	holds := store.DecodeGroup[domain.SeatHold](raw)
	now := m.now()
	removed := 0
	for _, hold := range holds {
		if hold.Active(now) {
			continue
		}
		if err := m.store.Delete(ctx, store.GroupSeatHolds(eventID), hold.SeatID); err != nil {
			logger.Get().Warn("failed to sweep expired hold",
				zap.String("event_id", eventID),
				zap.String("seat_id", hold.SeatID),
				zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func (m *Manager) activeHolds(ctx context.Context, eventID string) ([]domain.SeatHold, error) {
	raw, err := m.store.GetGroup(ctx, store.GroupSeatHolds(eventID))
	if err != nil {
		return nil, fmt.Errorf("failed to list holds: %w", err)
	}

	all := store.DecodeGroup[domain.SeatHold](raw)
	now := m.now()
	active := all[:0]
	for _, hold := range all {
		if hold.Active(now) {
			active = append(active, hold)
		}
	}
	return active, nil
}

func (m *Manager) seatBooked(ctx context.Context, eventID, seatID string) (bool, error) {
	raw, err := m.store.GetGroup(ctx, store.GroupEventBookings(eventID))
	if err != nil {
		return false, fmt.Errorf("failed to list event bookings: %w", err)
	}

	for _, booking := range store.DecodeGroup[domain.Booking](raw) {
		if booking.SeatID == seatID && booking.Status == domain.BookingStatusConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) confirmedCount(ctx context.Context, eventID string) (int, error) {
	raw, err := m.store.GetGroup(ctx, store.GroupEventBookings(eventID))
	if err != nil {
		return 0, fmt.Errorf("failed to list event bookings: %w", err)
	}

	count := 0
	for _, booking := range store.DecodeGroup[domain.Booking](raw) {
		if booking.Status == domain.BookingStatusConfirmed {
			count++
		}
	}
	return count, nil
}
