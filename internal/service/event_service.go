package service

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"ticketd/internal/domain"
	"ticketd/internal/inventory"
	"ticketd/internal/repository"
	"ticketd/pkg/logger"
)

// CreateEventInput is the input for creating an event listing
type CreateEventInput struct {
	Title       string
	Slug        string // derived from the title when empty
	Description string
	Thumbnail   string
	Price       int64
	TotalSeats  int
	SeatMap     []domain.Seat // generated when empty
}

// ListEventsFilter narrows the event listing. All fields are optional;
// title matches as a case-insensitive substring.
type ListEventsFilter struct {
	ID    string
	Slug  string
	Title string
}

// SeatView is a seat together with its live computed status
type SeatView struct {
	domain.Seat
	Status domain.SeatStatus `json:"status"`
}

// EventDetail is an event with its live seat statuses and remaining
// general-admission capacity
type EventDetail struct {
	Event          *domain.EventListing `json:"event"`
	SeatMap        []SeatView           `json:"seat_map"`
	AvailableSeats int                  `json:"available_seats"`
}

// EventService manages the event catalog
type EventService struct {
	events    *repository.EventRepository
	inventory *inventory.Manager
	now       func() time.Time
}

// NewEventService creates an event service. A nil clock uses time.Now.
func NewEventService(events *repository.EventRepository, inv *inventory.Manager, now func() time.Time) *EventService {
	if now == nil {
		now = time.Now
	}
	return &EventService{events: events, inventory: inv, now: now}
}

var slugifyPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from a title
func Slugify(title string) string {
	slug := slugifyPattern.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// Create stores a new event listing. A missing seat map is generated from
// the total seat count; a missing slug is derived from the title.
func (s *EventService) Create(ctx context.Context, in CreateEventInput) (*domain.EventListing, error) {
	slug := in.Slug
	if slug == "" {
		slug = Slugify(in.Title)
	}

	event := &domain.EventListing{
		ID:          domain.NewID("evt"),
		Title:       in.Title,
		Slug:        slug,
		Description: in.Description,
		Thumbnail:   in.Thumbnail,
		Price:       in.Price,
		TotalSeats:  in.TotalSeats,
		SeatMap:     in.SeatMap,
		CreatedAt:   s.now(),
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if len(event.SeatMap) == 0 {
		event.SeatMap = domain.DefaultSeatMap(event.TotalSeats)
	}

	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}

	logger.Get().Info("event created",
		zap.String("event_id", event.ID),
		zap.String("slug", event.Slug),
		zap.Int("total_seats", event.TotalSeats))
	return event, nil
}

// Get returns one event with live seat statuses and remaining capacity
func (s *EventService) Get(ctx context.Context, id string) (*EventDetail, error) {
	event, err := s.events.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	statuses, err := s.inventory.SeatStatuses(ctx, event)
	if err != nil {
		return nil, err
	}
	seats := make([]SeatView, 0, len(event.SeatMap))
	for _, seat := range event.SeatMap {
		seats = append(seats, SeatView{Seat: seat, Status: statuses[seat.ID]})
	}

	remaining, err := s.inventory.CheckCapacity(ctx, event)
	if err != nil {
		return nil, err
	}

	return &EventDetail{
		Event:          event,
		SeatMap:        seats,
		AvailableSeats: remaining,
	}, nil
}

// List returns events matching the filter, newest first
func (s *EventService) List(ctx context.Context, filter ListEventsFilter) ([]domain.EventListing, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, err
	}

	out := events[:0]
	for _, event := range events {
		if filter.ID != "" && event.ID != filter.ID {
			continue
		}
		if filter.Slug != "" && event.Slug != filter.Slug {
			continue
		}
		if filter.Title != "" && !strings.Contains(
			strings.ToLower(event.Title), strings.ToLower(filter.Title)) {
			continue
		}
		out = append(out, event)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
