package handler

import (
	"github.com/gin-gonic/gin"

	"ticketd/internal/domain"
	"ticketd/internal/dto"
	"ticketd/internal/service"
	"ticketd/pkg/response"
	"ticketd/pkg/telemetry"
)

// AdminHandler serves the operator listings
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler creates an admin handler
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// ListBookings handles GET /admin/bookings?status,event_id
func (h *AdminHandler) ListBookings(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.list_bookings")
	defer span.End()

	status := domain.BookingStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		response.BadRequest(c, "invalid status filter")
		return
	}

	bookings, err := h.admin.ListBookings(ctx, service.ListBookingsFilter{
		Status:  status,
		EventID: c.Query("event_id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, dto.BookingListResponse{Bookings: bookings, Total: len(bookings)})
}

// ListCustomers handles GET /admin/customers
func (h *AdminHandler) ListCustomers(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.list_customers")
	defer span.End()

	customers, err := h.admin.ListCustomers(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, dto.CustomerListResponse{Customers: customers, Total: len(customers)})
}
