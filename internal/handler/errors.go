package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ticketd/internal/domain"
	"ticketd/pkg/logger"
	"ticketd/pkg/response"
)

// respondError maps a service error to the HTTP status the API promises:
// validation 400, not-found 404, conflict 409, anything else 500.
func respondError(c *gin.Context, err error) {
	switch {
	case domain.IsValidationError(err):
		response.BadRequest(c, err.Error())
	case domain.IsNotFoundError(err):
		response.NotFound(c, err.Error())
	case domain.IsConflictError(err):
		response.Conflict(c, err.Error())
	default:
		logger.Get().Error("unhandled request error",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		response.InternalError(c, err)
	}
}
