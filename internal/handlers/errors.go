package handlers

import (
	"errors"
	"net/http"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/services"

	"github.com/gin-gonic/gin"
)

// statusFor maps a service error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrSessionInvalid),
		errors.Is(err, services.ErrRefreshTokenMissing):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrOAuthProvider),
		errors.Is(err, services.ErrTokenExchange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the JSON error body used by every API endpoint
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{
		"error":             services.CodeOf(err),
		"error_description": services.MessageOf(err),
	})
}

func badRequest(c *gin.Context, description string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":             "invalid_request",
		"error_description": description,
	})
}
