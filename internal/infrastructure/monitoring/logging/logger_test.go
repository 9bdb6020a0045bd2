package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), buf, zapcore.DebugLevel)
	return &zapLogger{z: zap.New(core)}, buf
}

func TestNewLogger_JSONFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "chatty"})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	l.Debug("msg")
	l.Info("msg")
	l.Warn("msg")
	l.Error("msg")
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("x"))
	assert.Equal(t, l, l.WithContext(context.Background()))
	assert.Equal(t, l, l.WithError(errors.New("err")))
	assert.NoError(t, l.Sync())
}

func TestZapLogger_Levels(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	out := buf.String()
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		assert.Contains(t, out, `"level":"`+lvl+`"`)
		assert.Contains(t, out, lvl+" msg")
	}
}

func TestZapLogger_With_AddsFields(t *testing.T) {
	l, buf := newTestLogger(t)
	l.With(String("foo", "bar"), Int("n", 3), Bool("ok", true)).Info("msg")
	assert.Contains(t, buf.String(), `"foo":"bar"`)
	assert.Contains(t, buf.String(), `"n":3`)
	assert.Contains(t, buf.String(), `"ok":true`)
}

func TestZapLogger_WithContext_ExtractsRequestID(t *testing.T) {
	l, buf := newTestLogger(t)
	ctx := WithRequestID(context.Background(), "req-123")
	l.WithContext(ctx).Info("msg")
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
}

func TestZapLogger_WithContext_NoRequestID(t *testing.T) {
	l, buf := newTestLogger(t)
	l.WithContext(context.Background()).Info("msg")
	assert.NotContains(t, buf.String(), "request_id")
}

func TestZapLogger_WithError_AppError(t *testing.T) {
	l, buf := newTestLogger(t)
	appErr := apperrors.New(apperrors.ErrCodeScoringFailed, "bad width")
	l.WithError(appErr).Error("msg")
	assert.Contains(t, buf.String(), `"error_code":"PRF_004"`)
	assert.Contains(t, buf.String(), `"error":"[PRF_004] bad width"`)
}

func TestZapLogger_WithError_StandardError(t *testing.T) {
	l, buf := newTestLogger(t)
	l.WithError(errors.New("std error")).Error("msg")
	assert.Contains(t, buf.String(), `"error":"std error"`)
	assert.NotContains(t, buf.String(), "error_code")
}

func TestZapLogger_WithError_NilError(t *testing.T) {
	l, buf := newTestLogger(t)
	l.WithError(nil).Info("msg")
	assert.NotContains(t, buf.String(), `"error"`)
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, _ := newTestLogger(t)
	SetDefault(l)
	assert.Equal(t, l, Default())

	SetDefault(nil)
	assert.Equal(t, l, Default())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("invalid")
	assert.Error(t, err)
}

func TestLogOperationDuration_FastOperation(t *testing.T) {
	l, buf := newTestLogger(t)
	LogOperationDuration(l, "classify", time.Now())
	assert.Contains(t, buf.String(), "operation completed")
	assert.Contains(t, buf.String(), `"operation":"classify"`)
	assert.Contains(t, buf.String(), "duration_ms")
}

func TestLogOperationDuration_SlowOperation(t *testing.T) {
	l, buf := newTestLogger(t)
	LogOperationDuration(l, "fetch", time.Now().Add(-2*time.Second))
	assert.Contains(t, buf.String(), "operation completed slowly")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
