package handlers

import (
	"net/http"

	apperrors "queuedesk/internal/errors"
	"queuedesk/internal/logger"
	"queuedesk/internal/middleware"
	"queuedesk/internal/models"
	"queuedesk/internal/service"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

// respondError maps domain errors to their status and message. Anything
// else is logged and reported as a generic 500.
func respondError(c *gin.Context, err error, action string) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("Failed to "+action, "error", err)
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": apperrors.Message(err, "Internal server error")})
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}

// identity is only called behind middleware.Authenticate.
func identity(c *gin.Context) models.Identity {
	id, ok := middleware.IdentityFromContext(c)
	if !ok {
		return models.Identity{}
	}
	return *id
}
