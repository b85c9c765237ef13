// Package handler exposes the HTTP API over gin
package handler

import (
	"github.com/gin-gonic/gin"

	"ticketd/internal/dto"
	"ticketd/internal/service"
	"ticketd/pkg/response"
	"ticketd/pkg/telemetry"
)

// EventHandler handles event catalog HTTP requests
type EventHandler struct {
	events *service.EventService
}

// NewEventHandler creates an event handler
func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// List handles GET /events
func (h *EventHandler) List(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.list")
	defer span.End()

	events, err := h.events.List(ctx, service.ListEventsFilter{
		ID:    c.Query("id"),
		Slug:  c.Query("slug"),
		Title: c.Query("title"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, dto.EventListResponse{Events: events, Total: len(events)})
}

// Get handles GET /events/:id, returning the event with live seat statuses
func (h *EventHandler) Get(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.get")
	defer span.End()

	detail, err := h.events.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, detail)
}

// Create handles POST /events
func (h *EventHandler) Create(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.create")
	defer span.End()

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	event, err := h.events.Create(ctx, service.CreateEventInput{
		Title:       req.Title,
		Slug:        req.Slug,
		Description: req.Description,
		Thumbnail:   req.Thumbnail,
		Price:       req.Price,
		TotalSeats:  req.TotalSeats,
		SeatMap:     req.SeatMap,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, event)
}
