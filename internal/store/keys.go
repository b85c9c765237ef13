package store

// Group names used across the system. Each group is an independent
// keyspace inside the store; the booking groups together form the three
// views that must stay consistent on every write.
const (
	// GroupEvents holds event listings keyed by event id
	GroupEvents = "events"

	// GroupEventSlugs maps slug -> event id for uniqueness checks
	GroupEventSlugs = "event-slugs"

	// GroupBookings is the global booking index keyed by booking id
	GroupBookings = "bookings"
)

// GroupEventBookings returns the per-event booking view group
func GroupEventBookings(eventID string) string {
	return "bookings:" + eventID
}

// GroupCustomerBookings returns the per-customer booking view group
func GroupCustomerBookings(email string) string {
	return "customer-bookings:" + email
}

// GroupSeatHolds returns the seat hold group for an event, keyed by seat id
func GroupSeatHolds(eventID string) string {
	return "seat-holds:" + eventID
}
