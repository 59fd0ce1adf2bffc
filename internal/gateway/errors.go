package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks calls that never produced a usable envelope.
	ErrTransport = errors.New("transport failure")
	// ErrApplication marks calls whose envelope status was not "success".
	ErrApplication = errors.New("application failure")
)

// TransportError describes a request that never reached the server
// or came back without a readable envelope.
type TransportError struct {
	// StatusCode is the HTTP status (or gRPC code); zero when no response arrived.
	StatusCode int
	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport failure with status %d", e.StatusCode)
	}

	return fmt.Sprintf("transport failure with status %d: %v", e.StatusCode, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ApplicationError carries the server-chosen failure message.
type ApplicationError struct {
	// Path is the endpoint that refused the call.
	Path string
	// Status is the envelope status.
	Status string
	// Message is the human-readable reason sent by the server.
	Message string
}

// Error implements error.
func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: %s (status %q)", e.Path, e.Message, e.Status)
}

// Is matches ErrApplication.
func (e *ApplicationError) Is(target error) bool {
	return target == ErrApplication
}
