package core

import (
	"errors"

	"github.com/vovakirdan/wirethread/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeNotFound           = "not_found"
	ErrCodePermissionDenied   = "permission_denied"
	ErrCodeInvariantViolation = "invariant_violation"
	ErrCodeInvalidArgument    = "invalid_argument"
	ErrCodeTransientStore     = "store_unavailable"
	ErrCodeUnauthorized       = "unauthorized"
)

// Sentinels for errors.Is. Every *CoreError with the same code matches its sentinel.
var (
	// ErrNotFound covers both absent entities and entities outside the caller's visibility.
	ErrNotFound = coreError(ErrCodeNotFound, "not found")
	// ErrPermissionDenied means the entity is visible but the action is not allowed.
	ErrPermissionDenied = coreError(ErrCodePermissionDenied, "permission denied")
	// ErrInvariantViolation rejects a message whose parent does not exist or is itself.
	ErrInvariantViolation = coreError(ErrCodeInvariantViolation, "invariant violation")
	// ErrInvalidArgument rejects malformed input.
	ErrInvalidArgument = coreError(ErrCodeInvalidArgument, "invalid argument")
	// ErrTransientStore wraps retryable faults reported by the store.
	ErrTransientStore = coreError(ErrCodeTransientStore, "store unavailable")
)

// CoreError wraps a code, a human-readable message and an optional cause.
type CoreError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *CoreError) Unwrap() error { return e.Cause }

// Is reports whether target is a CoreError with the same code.
func (e *CoreError) Is(target error) bool {
	var other *CoreError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// NotFound returns an ErrNotFound with a specific message.
func NotFound(msg string) error { return coreError(ErrCodeNotFound, msg) }

// PermissionDenied returns an ErrPermissionDenied with a specific message.
func PermissionDenied(msg string) error { return coreError(ErrCodePermissionDenied, msg) }

// InvariantViolation returns an ErrInvariantViolation with a specific message.
func InvariantViolation(msg string) error { return coreError(ErrCodeInvariantViolation, msg) }

// InvalidArgument returns an ErrInvalidArgument with a specific message.
func InvalidArgument(msg string) error { return coreError(ErrCodeInvalidArgument, msg) }

// StoreFailure translates an error returned by the store for operation op.
// store.ErrNotFound becomes ErrNotFound; anything else is reported as transient.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return &CoreError{Code: ErrCodeNotFound, Message: op + ": not found", Cause: err}
	}
	return &CoreError{Code: ErrCodeTransientStore, Message: op, Cause: err}
}

// Code extracts the domain code from err, or "" when err is not a CoreError.
func Code(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
