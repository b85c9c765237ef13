package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketd/internal/domain"
	"ticketd/internal/repository"
	"ticketd/internal/store"
)

var adminSeedBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seedBookings(t *testing.T, repo *repository.BookingRepository) {
	t.Helper()
	ctx := context.Background()

	seed := []*domain.Booking{
		{ID: "bk_1", EventID: "evt_1", SeatID: "A1", CustomerName: "Alice", CustomerEmail: "alice@example.com",
			Status: domain.BookingStatusConfirmed, PaymentID: "pay_1", Amount: 5000, CreatedAt: adminSeedBase},
		{ID: "bk_2", EventID: "evt_1", CustomerName: "Alice", CustomerEmail: "alice@example.com",
			Status: domain.BookingStatusFailed, FailureReason: "Card declined", CreatedAt: adminSeedBase.Add(time.Minute)},
		{ID: "bk_3", EventID: "evt_2", SeatID: "B2", CustomerName: "Bob", CustomerEmail: "bob@example.com",
			Status: domain.BookingStatusConfirmed, PaymentID: "pay_3", Amount: 2000, CreatedAt: adminSeedBase.Add(2 * time.Minute)},
		{ID: "bk_4", EventID: "evt_2", SeatID: "B3", CustomerName: "Bob", CustomerEmail: "bob@example.com",
			Status: domain.BookingStatusRefunded, PaymentID: "pay_4", Amount: 2000, RefundID: "ref_4",
			RefundAmount: 2000, CreatedAt: adminSeedBase.Add(3 * time.Minute)},
		// Mid-refund cancellation: payment captured but not kept, so it
		// must not count as confirmed or spent.
		{ID: "bk_5", EventID: "evt_1", SeatID: "A2", CustomerName: "Alice Smith", CustomerEmail: "alice@example.com",
			Status: domain.BookingStatusCancelling, PaymentID: "pay_5", Amount: 3000, CreatedAt: adminSeedBase.Add(4 * time.Minute)},
	}
	for _, b := range seed {
		require.NoError(t, repo.Create(ctx, b))
	}
}

func TestAdminListBookings(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewBookingRepository(store.NewMemoryStore())
	svc := NewAdminService(repo)
	seedBookings(t, repo)

	all, err := svc.ListBookings(ctx, ListBookingsFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "bk_5", all[0].ID, "newest booking first")
	assert.Equal(t, "bk_1", all[4].ID)

	confirmed, err := svc.ListBookings(ctx, ListBookingsFilter{Status: domain.BookingStatusConfirmed})
	require.NoError(t, err)
	assert.Len(t, confirmed, 2)

	byEvent, err := svc.ListBookings(ctx, ListBookingsFilter{EventID: "evt_2"})
	require.NoError(t, err)
	assert.Len(t, byEvent, 2)

	both, err := svc.ListBookings(ctx, ListBookingsFilter{
		EventID: "evt_1", Status: domain.BookingStatusFailed,
	})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "bk_2", both[0].ID)
}

func TestAdminListCustomers(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewBookingRepository(store.NewMemoryStore())
	svc := NewAdminService(repo)
	seedBookings(t, repo)

	customers, err := svc.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)

	// Alice kept 5000 (the cancelling booking's charge does not count),
	// Bob kept 4000 across a confirmed and a refunded booking.
	alice := customers[0]
	assert.Equal(t, "alice@example.com", alice.Email)
	assert.Equal(t, int64(5000), alice.TotalSpent)
	assert.Equal(t, 3, alice.TotalBookings)
	assert.Equal(t, 1, alice.ConfirmedBookings)
	assert.Equal(t, "Alice Smith", alice.Name, "name follows the most recent booking")
	assert.True(t, alice.LastBookingAt.Equal(adminSeedBase.Add(4*time.Minute)))

	bob := customers[1]
	assert.Equal(t, "bob@example.com", bob.Email)
	assert.Equal(t, int64(4000), bob.TotalSpent)
	assert.Equal(t, 2, bob.TotalBookings)
	assert.Equal(t, 2, bob.ConfirmedBookings, "refunded bookings were confirmed once")
	assert.True(t, bob.LastBookingAt.Equal(adminSeedBase.Add(3*time.Minute)))
}
