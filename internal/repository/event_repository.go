package repository

import (
	"context"
	"errors"
	"fmt"

	"ticketd/internal/domain"
	"ticketd/internal/store"
)

// EventRepository stores event listings and a slug uniqueness index
type EventRepository struct {
	store store.Store
}

// NewEventRepository creates an event repository
func NewEventRepository(st store.Store) *EventRepository {
	return &EventRepository{store: st}
}

// Create stores a new event. The slug index write is conditional, so two
// concurrent creates with the same slug cannot both succeed.
func (r *EventRepository) Create(ctx context.Context, event *domain.EventListing) error {
	ok, err := r.store.SetIfAbsent(ctx, store.GroupEventSlugs, event.Slug, event.ID)
	if err != nil {
		return fmt.Errorf("failed to reserve slug: %w", err)
	}
	if !ok {
		return domain.ErrSlugTaken
	}
	if err := r.store.Set(ctx, store.GroupEvents, event.ID, event); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Get returns the event with the given id
func (r *EventRepository) Get(ctx context.Context, id string) (*domain.EventListing, error) {
	var event domain.EventListing
	err := r.store.Get(ctx, store.GroupEvents, id, &event)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &event, nil
}

// GetBySlug resolves a slug through the index and returns the event
func (r *EventRepository) GetBySlug(ctx context.Context, slug string) (*domain.EventListing, error) {
	var id string
	err := r.store.Get(ctx, store.GroupEventSlugs, slug, &id)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to resolve slug: %w", err)
	}
	return r.Get(ctx, id)
}

// List returns all events
func (r *EventRepository) List(ctx context.Context) ([]domain.EventListing, error) {
	raw, err := r.store.GetGroup(ctx, store.GroupEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return store.DecodeGroup[domain.EventListing](raw), nil
}
