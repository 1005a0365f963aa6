package handlers

import (
	"errors"
	"net/http"

	"serving-optimizer/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrBenchmarkNotFound),
		errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrVersionNotFound),
		errors.Is(err, domain.ErrDeploymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	// Conflict errors
	case errors.Is(err, domain.ErrRunInProgress),
		errors.Is(err, domain.ErrDeploymentNameExists),
		errors.Is(err, domain.ErrServerRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	// Bad request / validation errors
	case errors.Is(err, domain.ErrInvalidModelName),
		errors.Is(err, domain.ErrInvalidVersion),
		errors.Is(err, domain.ErrInvalidRunStatus),
		errors.Is(err, domain.ErrNoInstances),
		errors.Is(err, domain.ErrInvalidRequestCount),
		errors.Is(err, domain.ErrInvalidRate),
		errors.Is(err, domain.ErrLabelMismatch),
		errors.Is(err, domain.ErrInvalidStorageURI):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	// Upstream failures
	case errors.Is(err, domain.ErrPredictFailed),
		errors.Is(err, domain.ErrToolFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

	// Service unavailable errors
	case errors.Is(err, domain.ErrKServeNotAvailable),
		errors.Is(err, domain.ErrServerUnreachable),
		errors.Is(err, domain.ErrPublisherNotAvailable),
		errors.Is(err, domain.ErrToolNotConfigured),
		errors.Is(err, domain.ErrServerNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
