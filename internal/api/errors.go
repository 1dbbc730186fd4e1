package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yazinsai/cal-ai/internal/errvalues"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// statusFor maps an engine error onto an HTTP status. Anything that is not
// a known sentinel came from input validation.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errvalues.ErrStorage):
		return http.StatusInternalServerError
	case errors.Is(err, errvalues.ErrEntryNotFound),
		errors.Is(err, errvalues.ErrQuickLogItemNotFound),
		errors.Is(err, errvalues.ErrNothingToUndo),
		errors.Is(err, errvalues.ErrUndoExpired):
		return http.StatusNotFound
	case errors.Is(err, errvalues.ErrTargetNotConfigured),
		errors.Is(err, errvalues.ErrProfileIncomplete),
		errors.Is(err, errvalues.ErrMissingCredential):
		return http.StatusConflict
	case errors.Is(err, errvalues.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, errvalues.ErrEstimateFailed),
		errors.Is(err, errvalues.ErrInvalidEstimate):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func writeError(c *gin.Context, err error) {
	code := statusFor(err)
	logger := loggerFrom(c)
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(code, ErrorResponse{
		Code:    code,
		Message: http.StatusText(code),
		Details: err.Error(),
	})
}

func badRequest(c *gin.Context, msg string, details error) {
	resp := ErrorResponse{Code: http.StatusBadRequest, Message: msg}
	if details != nil {
		resp.Details = details.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}
