package backend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies gateway failures.
type ErrorKind string

const (
	// NetworkError covers transport failures, timeouts and unreadable responses.
	NetworkError ErrorKind = "network_error"
	// ServerError covers non-2xx statuses and success:false envelopes.
	ServerError ErrorKind = "server_error"
)

// APIError is returned by every gateway call that does not yield a usable response.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("backend %s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is a gateway transport failure.
func IsNetwork(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == NetworkError
}

// IsServer reports whether err is a backend-reported failure.
func IsServer(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == ServerError
}

// Message extracts the operator-facing message from err, or fallback when err
// carries none.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
