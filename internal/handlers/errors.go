package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cookbook/internal/logging"
	"cookbook/internal/repositories"
	"cookbook/internal/services"
	"cookbook/internal/validation"
)

// statusFor maps domain errors to HTTP statuses. 0 means unexpected.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrPendingNotFound),
		errors.Is(err, services.ErrRecipeNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrCategoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrCodeExpired):
		return http.StatusGone
	case errors.Is(err, services.ErrCodeInvalid),
		errors.Is(err, services.ErrResetTokenInvalid):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrCodeDelivery):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidRefresh):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotAuthor),
		errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrResetTokenUsed),
		errors.Is(err, repositories.ErrEmailTaken),
		errors.Is(err, repositories.ErrNicknameTaken),
		errors.Is(err, repositories.ErrDuplicate):
		return http.StatusConflict
	}
	return 0
}

func writeError(c *gin.Context, log logging.Logger, err error) {
	if ve, ok := validation.AsErrors(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve})
		return
	}
	if status := statusFor(err); status != 0 {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	log.Error(c.Request.Context(), "[http][error] unexpected", "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
