package moderation

import (
	"errors"
	"fmt"
)

var (
	// ErrClient is a 4xx reply from the provider. It is never retried.
	ErrClient = errors.New("moderation client error")

	// ErrServer is a 5xx reply that persisted through every retry.
	ErrServer = errors.New("moderation server error")

	// ErrTransport is a network level failure (refused, timeout, DNS) that
	// persisted through every retry.
	ErrTransport = errors.New("moderation transport error")

	// ErrSchema is a 2xx reply whose body does not match the expected shape.
	ErrSchema = errors.New("moderation response schema error")
)

// APIError carries the provider's status and message for ErrClient and
// ErrServer failures. The message is for logs only and must not be shown to
// the submitting user.
type APIError struct {
	Kind    error
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d, message %q", e.Kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}
