package core

import "errors"

// Error codes for domain errors. They are sent verbatim in the "code" field
// of error records.
const (
	ErrCodeBadRequest           = "bad_request"
	ErrCodeUnknownType          = "unknown_type"
	ErrCodeNotFound             = "not_found"
	ErrCodeInvalidFilename      = "invalid_filename"
	ErrCodeAuthRejected         = "auth_rejected"
	ErrCodeAlreadyAuthenticated = "already_authenticated"
	ErrCodeRateLimited          = "rate_limited"
	ErrCodeInternal             = "internal"
)

var (
	// ErrEmptySender is returned when a message cannot be attributed to anyone.
	ErrEmptySender = errors.New("message has no sender")
	// ErrNotBroadcastable is returned for kinds that never enter history.
	ErrNotBroadcastable = errors.New("message kind cannot be broadcast")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// NewError builds a CoreError.
func NewError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
