package handlers

import (
	"errors"
	"net/http"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/repository"
	"github.com/andresuchdata/autopo-replenish/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusFor maps engine error codes to HTTP statuses
func statusFor(err error) int {
	if errors.Is(err, repository.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, service.ErrReadOnly) {
		return http.StatusNotImplemented
	}
	switch domain.ErrorCode(err) {
	case domain.CodeInvalidConfiguration:
		return http.StatusBadRequest
	case domain.CodeInsufficientData:
		return http.StatusUnprocessableEntity
	case domain.CodeNoProductsFound:
		return http.StatusNotFound
	case domain.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

const codeNotFound = "NOT_FOUND"

func errorResponse(c *gin.Context, err error) {
	status := statusFor(err)
	code := domain.ErrorCode(err)
	if code == domain.CodeInternal && status == http.StatusNotFound {
		code = codeNotFound
	}
	body := gin.H{"error": err.Error(), "code": code}

	var engineErr *domain.EngineError
	if errors.As(err, &engineErr) {
		body["error"] = engineErr.Message
		if len(engineErr.Details) > 0 {
			body["details"] = engineErr.Details
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message, "code": domain.CodeInvalidConfiguration})
}
