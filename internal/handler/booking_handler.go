package handler

import (
	"github.com/gin-gonic/gin"

	"ticketd/internal/dto"
	"ticketd/internal/service"
	"ticketd/pkg/response"
	"ticketd/pkg/telemetry"
)

// BookingHandler handles booking HTTP requests
type BookingHandler struct {
	bookings *service.BookingService
}

// NewBookingHandler creates a booking handler
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// Initiate handles POST /bookings/init. Responds 201 with the pending
// booking; the outcome arrives asynchronously and is read via Get.
func (h *BookingHandler) Initiate(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.initiate")
	defer span.End()

	var req dto.InitiateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	booking, err := h.bookings.Initiate(ctx, service.InitiateBookingInput{
		EventID:       req.EventID,
		SeatID:        req.SeatID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, dto.InitiateBookingResponse{
		BookingID:     booking.ID,
		Status:        booking.Status.String(),
		HoldExpiresAt: booking.HoldExpiresAt,
	})
}

// Get handles GET /bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.get")
	defer span.End()

	booking, err := h.bookings.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, booking)
}

// ListByEmail handles GET /bookings?email=
func (h *BookingHandler) ListByEmail(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.list_by_email")
	defer span.End()

	email := c.Query("email")
	if email == "" {
		response.BadRequest(c, "email query parameter is required")
		return
	}

	bookings, err := h.bookings.ListByCustomer(ctx, email)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, dto.BookingListResponse{Bookings: bookings, Total: len(bookings)})
}

// Cancel handles POST /bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.cancel")
	defer span.End()

	booking, err := h.bookings.Cancel(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, dto.CancelBookingResponse{
		BookingID: booking.ID,
		Status:    booking.Status.String(),
	})
}
