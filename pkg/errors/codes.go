package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Profile classification error codes.
const (
	// ErrCodeInvalidInput marks a malformed or missing request payload.
	ErrCodeInvalidInput ErrorCode = "PRF_001"
	// ErrCodeProfileNotFound marks an identifier the profile source could not resolve.
	ErrCodeProfileNotFound ErrorCode = "PRF_002"
	// ErrCodeExtractionFailed covers any other failure while deriving features.
	ErrCodeExtractionFailed ErrorCode = "PRF_003"
	// ErrCodeScoringFailed covers normalization and classification failures.
	ErrCodeScoringFailed ErrorCode = "PRF_004"
	// ErrCodeInvalidProfile marks attributes the extractor refuses (empty username).
	ErrCodeInvalidProfile ErrorCode = "PRF_005"
	// ErrCodeDimensionMismatch marks a vector whose length differs from the model width.
	ErrCodeDimensionMismatch ErrorCode = "PRF_006"
	// ErrCodeArtifactLoadFailed marks a scaler or network artifact that could not be loaded.
	ErrCodeArtifactLoadFailed ErrorCode = "PRF_007"
)

// Data Source Error Codes
const (
	ErrCodeDataSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeDataSourceRateLimited ErrorCode = "SRC_002"
	ErrCodeDataSourceAuthFailed  ErrorCode = "SRC_003"
	ErrCodeDataSourceParseError  ErrorCode = "SRC_004"
)

// Aliases
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
	CodeCacheError     = ErrCodeCacheError
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrorCode("UNKNOWN")
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
//
// Profile lookup failures are reported as 500 whether the profile is missing or
// the lookup itself failed; only malformed requests are client errors.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeInvalidInput:       http.StatusBadRequest,
	ErrCodeProfileNotFound:    http.StatusInternalServerError,
	ErrCodeExtractionFailed:   http.StatusInternalServerError,
	ErrCodeScoringFailed:      http.StatusInternalServerError,
	ErrCodeInvalidProfile:     http.StatusInternalServerError,
	ErrCodeDimensionMismatch:  http.StatusInternalServerError,
	ErrCodeArtifactLoadFailed: http.StatusInternalServerError,

	ErrCodeDataSourceUnavailable: http.StatusInternalServerError,
	ErrCodeDataSourceRateLimited: http.StatusInternalServerError,
	ErrCodeDataSourceAuthFailed:  http.StatusInternalServerError,
	ErrCodeDataSourceParseError:  http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeInvalidInput:       "invalid input",
	ErrCodeProfileNotFound:    "profile not found",
	ErrCodeExtractionFailed:   "failed to extract features",
	ErrCodeScoringFailed:      "failed to score features",
	ErrCodeInvalidProfile:     "invalid profile attributes",
	ErrCodeDimensionMismatch:  "feature dimension mismatch",
	ErrCodeArtifactLoadFailed: "failed to load model artifact",

	ErrCodeDataSourceUnavailable: "profile source unavailable",
	ErrCodeDataSourceRateLimited: "profile source rate limited",
	ErrCodeDataSourceAuthFailed:  "profile source authentication failed",
	ErrCodeDataSourceParseError:  "profile source returned an unreadable response",
}

// HTTPStatusForCode returns the HTTP status for code, defaulting to 500.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message registered for code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// Module returns the module prefix of a code, e.g. "PRF" for "PRF_002".
func (c ErrorCode) Module() string {
	s := string(c)
	if i := strings.IndexByte(s, '_'); i > 0 {
		return s[:i]
	}
	return ""
}

// IsClientError reports whether the code maps to a 4xx status.
func (c ErrorCode) IsClientError() bool {
	status := HTTPStatusForCode(c)
	return status >= 400 && status < 500
}
