// Package gatewaytest provides an in-memory Transport for testing code that
// talks to the remote API through a gateway.
package gatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/oshokin/secpi-console/internal/gateway"
)

// HandlerFunc answers one request.
type HandlerFunc func(payload map[string]any) (*gateway.Envelope, error)

// Call is one request seen by the transport.
type Call struct {
	Path    string
	Payload map[string]any
}

// Transport routes requests to per-path handlers and records every call.
// Unrouted paths fail with HTTP 404.
type Transport struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	calls    []Call
}

// NewTransport creates an empty transport.
func NewTransport() *Transport {
	return &Transport{
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle routes path to fn.
func (t *Transport) Handle(path string, fn HandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handlers[path] = fn
}

// Succeed routes path to a fixed successful envelope.
func (t *Transport) Succeed(path string, data any, message string) {
	t.Handle(path, func(map[string]any) (*gateway.Envelope, error) {
		return Success(data, message), nil
	})
}

// Refuse routes path to a fixed application failure.
func (t *Transport) Refuse(path, message string) {
	t.Handle(path, func(map[string]any) (*gateway.Envelope, error) {
		return Failure(message), nil
	})
}

// Do implements gateway.Transport.
func (t *Transport) Do(_ context.Context, req gateway.Request) (*gateway.Envelope, error) {
	payload, err := toMap(req.Payload)
	if err != nil {
		return nil, &gateway.TransportError{Err: err}
	}

	t.mu.Lock()
	t.calls = append(t.calls, Call{Path: req.Path, Payload: payload})
	fn, ok := t.handlers[req.Path]
	t.mu.Unlock()

	if !ok {
		return nil, &gateway.TransportError{StatusCode: http.StatusNotFound}
	}

	return fn(payload)
}

// Calls returns every call seen so far.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]Call(nil), t.calls...)
}

// CallsTo returns the calls made to one path.
func (t *Transport) CallsTo(path string) []Call {
	var result []Call

	for _, c := range t.Calls() {
		if c.Path == path {
			result = append(result, c)
		}
	}

	return result
}

// Success builds a successful envelope around data.
func Success(data any, message string) *gateway.Envelope {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(fmt.Sprintf("gatewaytest: marshal data: %v", err))
	}

	return &gateway.Envelope{
		Status:  gateway.StatusSuccess,
		Data:    raw,
		Message: message,
	}
}

// Failure builds an application failure envelope.
func Failure(message string) *gateway.Envelope {
	return &gateway.Envelope{
		Status:  "error",
		Message: message,
	}
}

// toMap converts a payload into its JSON object form.
func toMap(payload any) (map[string]any, error) {
	if payload == nil {
		return map[string]any{}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var m map[string]any
	if err = json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}

	return m, nil
}
