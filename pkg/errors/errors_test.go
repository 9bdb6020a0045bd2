package errors_test

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"invalid input", errors.ErrCodeInvalidInput, "Username is required"},
		{"profile not found", errors.ErrCodeProfileNotFound, "profile missing"},
		{"rate limit", errors.CodeRateLimit, "too many requests"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.Contains(t, ae.Stack, "errors_test.go")
		})
	}
}

func TestAppError_ErrorFormat(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeScoringFailed, "scaler rejected vector")
	assert.Equal(t, "[PRF_004] scaler rejected vector", ae.Error())

	withDetail := ae.WithDetail("len=10")
	assert.Equal(t, "[PRF_004] scaler rejected vector: len=10", withDetail.Error())

	wrapped := errors.Wrap(stderrors.New("boom"), errors.ErrCodeExtractionFailed, "fetch failed")
	assert.Equal(t, "[PRF_003] fetch failed: boom", wrapped.Error())
}

func TestWrap_NilReturnsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "ignored"))
}

func TestWrap_UnknownPreservesOriginalCode(t *testing.T) {
	t.Parallel()

	inner := errors.ProfileNotFound("ghost")
	outer := errors.Wrap(inner, errors.CodeUnknown, "lookup")

	assert.Equal(t, errors.ErrCodeProfileNotFound, outer.Code)
	assert.True(t, stderrors.Is(outer, inner))
}

func TestIsCode_TraversesChain(t *testing.T) {
	t.Parallel()

	dim := errors.DimensionMismatch(11, 10)
	invalid := errors.Wrap(dim, errors.ErrCodeInvalidInput, "Features must contain exactly 11 values")
	viaFmt := fmt.Errorf("handler: %w", invalid)

	assert.True(t, errors.IsCode(viaFmt, errors.ErrCodeInvalidInput))
	assert.True(t, errors.IsCode(viaFmt, errors.ErrCodeDimensionMismatch))
	assert.False(t, errors.IsCode(viaFmt, errors.ErrCodeScoringFailed))
	assert.True(t, errors.IsInvalidInput(viaFmt))
	assert.False(t, errors.IsCode(stderrors.New("plain"), errors.ErrCodeInvalidInput))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeInvalidInput))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.NotFound("x")))
	assert.True(t, errors.IsNotFound(errors.ProfileNotFound("x")))
	assert.True(t, errors.IsProfileNotFound(fmt.Errorf("wrap: %w", errors.ProfileNotFound("x"))))
	assert.False(t, errors.IsNotFound(errors.Internal("x")))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeInvalidProfile, errors.GetCode(errors.New(errors.ErrCodeInvalidProfile, "empty username")))
}

func TestWithDetail_NilSafe(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
}

func TestWithCause_DoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	base := errors.Internal("base")
	cause := stderrors.New("root")
	withCause := base.WithCause(cause)

	assert.Nil(t, base.Cause)
	assert.Equal(t, cause, withCause.Cause)
	assert.True(t, strings.HasSuffix(withCause.Error(), "root"))
}

func TestDimensionMismatch_Message(t *testing.T) {
	t.Parallel()

	ae := errors.DimensionMismatch(11, 10)
	assert.Equal(t, errors.ErrCodeDimensionMismatch, ae.Code)
	assert.Equal(t, "expected 11 features, got 10", ae.Message)
}
