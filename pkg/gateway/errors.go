package gateway

import (
	"errors"
	"fmt"
)

// ErrKind classifies an upstream request failure.
type ErrKind string

const (
	// ErrKindNetwork means no response was received. Always retryable.
	ErrKindNetwork ErrKind = "NETWORK"
	// ErrKindServer means the upstream answered with a 5xx. Retryable.
	ErrKindServer ErrKind = "SERVER"
	// ErrKindThrottled means the upstream answered 429. Retryable.
	ErrKindThrottled ErrKind = "THROTTLED"
	// ErrKindClient means a 4xx other than 429. Terminal.
	ErrKindClient ErrKind = "CLIENT"
	// ErrKindDecode means the response body could not be parsed. Terminal.
	ErrKindDecode ErrKind = "DECODE"
)

// Error is the typed failure surfaced by the gateway.
type Error struct {
	Kind   ErrKind
	Status int
	cause  error
}

func newError(kind ErrKind, status int, cause error) *Error {
	return &Error{Kind: kind, Status: status, cause: cause}
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream %s (status %d)", e.Kind, e.Status)
	}
	if e.cause != nil {
		return fmt.Sprintf("upstream %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("upstream %s", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the failure is worth retrying.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrKindNetwork, ErrKindServer, ErrKindThrottled:
		return true
	}
	return false
}

// KindOf extracts the gateway error kind, or "" for foreign errors.
func KindOf(err error) ErrKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ""
}

// IsRetryable reports whether err is a retryable gateway failure.
func IsRetryable(err error) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Retryable()
	}
	return false
}
