// Package handlers implements the HTTP endpoints of the API server.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// StatusForError maps a pipeline error to its HTTP status. Only invalid input
// is the caller's fault; unknown profiles and every other failure are 500.
func StatusForError(err error) int {
	if errors.IsInvalidInput(err) {
		return http.StatusBadRequest
	}
	if errors.IsCode(err, errors.CodeRateLimit) {
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// errorResponse builds the body for err. AppError messages are safe to show;
// anything else is masked.
func errorResponse(c *gin.Context, err error) ErrorResponse {
	resp := ErrorResponse{
		Error:     "internal server error",
		Code:      string(errors.ErrCodeInternal),
		RequestID: logging.RequestIDFromContext(c.Request.Context()),
	}
	var ae *errors.AppError
	if errors.As(err, &ae) {
		resp.Error = ae.Message
		resp.Code = string(ae.Code)
	}
	return resp
}

// abortWithError logs err and writes the error body.
func abortWithError(c *gin.Context, logger logging.Logger, err error) {
	status := StatusForError(err)
	log := logger.WithContext(c.Request.Context()).WithError(err)
	fields := []logging.Field{
		logging.String("path", c.FullPath()),
		logging.String("code", string(errors.GetCode(err))),
		logging.Int("status", status),
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Debug("request rejected", fields...)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse(c, err))
}
