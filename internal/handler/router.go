package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterConfig carries the handlers mounted on the API
type RouterConfig struct {
	Events   *EventHandler
	Bookings *BookingHandler
	Admin    *AdminHandler
}

// RegisterRoutes mounts the API routes on the gin engine
func RegisterRoutes(r *gin.Engine, cfg *RouterConfig) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/events", cfg.Events.List)
	r.POST("/events", cfg.Events.Create)
	r.GET("/events/:id", cfg.Events.Get)

	r.POST("/bookings/init", cfg.Bookings.Initiate)
	r.GET("/bookings", cfg.Bookings.ListByEmail)
	r.GET("/bookings/:id", cfg.Bookings.Get)
	r.POST("/bookings/:id/cancel", cfg.Bookings.Cancel)

	admin := r.Group("/admin")
	{
		admin.GET("/bookings", cfg.Admin.ListBookings)
		admin.GET("/customers", cfg.Admin.ListCustomers)
	}
}
