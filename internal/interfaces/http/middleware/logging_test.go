package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/FakeProfile-Intelligence/internal/testutil"
)

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = w.Write([]byte("body"))
	})
}

func TestRequestLogging_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
		msg    string
	}{
		{http.StatusOK, "info", "HTTP request completed"},
		{http.StatusBadRequest, "warn", "HTTP request completed with client error"},
		{http.StatusInternalServerError, "error", "HTTP request completed with server error"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			logger := testutil.NewMockLogger()
			h := RequestID(RequestLogging(logger, DefaultLoggingConfig())(statusHandler(tt.status)))

			r := httptest.NewRequest(http.MethodPost, "/predict", nil)
			r.Header.Set(HeaderRequestID, "req-1")
			h.ServeHTTP(httptest.NewRecorder(), r)

			assert.True(t, logger.HasMessage(tt.level, tt.msg))
			status, _ := logger.FieldValue(tt.msg, "status")
			assert.EqualValues(t, tt.status, status)
			id, _ := logger.FieldValue(tt.msg, "request_id")
			assert.Equal(t, "req-1", id)
			bytes, _ := logger.FieldValue(tt.msg, "bytes")
			assert.EqualValues(t, 4, bytes)
		})
	}
}

func TestRequestLogging_SkipPaths(t *testing.T) {
	logger := testutil.NewMockLogger()
	h := RequestLogging(logger, DefaultLoggingConfig())(statusHandler(http.StatusOK))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Empty(t, logger.GetMessages())
}

func TestRequestLogging_Slow(t *testing.T) {
	logger := testutil.NewMockLogger()
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
	})
	RequestLogging(logger, LoggingConfig{SlowThreshold: time.Millisecond})(slow).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/predict", nil))

	assert.True(t, logger.HasMessage("warn", "HTTP request completed (slow)"))
}

func TestWrappedResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	w := newWrappedResponseWriter(rec)
	w.WriteHeader(http.StatusTeapot)
	w.WriteHeader(http.StatusOK)
	assert.Equal(t, http.StatusTeapot, w.statusCode)
}
