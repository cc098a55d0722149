package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/juanmaabanto/ms-identity/internal/domain"
)

// respondError maps a domain failure onto the HTTP error contract. Unknown
// errors become an opaque 500.
func respondError(c *gin.Context, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		zap.L().Error("unclassified handler failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "An unexpected error occurred.",
		})
		return
	}

	payload := gin.H{
		"error":             string(de.Kind),
		"error_description": de.Message,
	}
	if de.CorrelationID != "" {
		payload["correlation_id"] = de.CorrelationID
	}
	if de.Kind == domain.KindWrongPassword {
		payload["attemptsRemaining"] = de.AttemptsRemaining
	}
	if de.Kind == domain.KindLockedOut {
		payload["remaining"] = domain.FormatRemaining(de.Remaining)
	}

	c.JSON(statusForKind(de.Kind), payload)
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
