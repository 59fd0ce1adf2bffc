package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/grpc/status"

	console "github.com/oshokin/secpi-console/internal/api/grpc/console"
)

// StatusSuccess is the envelope status of a successful call.
const StatusSuccess = "success"

// RequestIDHeader is the HTTP header carrying the request id.
const RequestIDHeader = "X-Request-ID"

// maxResponseBytes bounds the size of a single envelope.
const maxResponseBytes = 16 << 20

// Envelope is the uniform response wrapper of the remote API.
type Envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Request is one call handed to a Transport.
type Request struct {
	// ID correlates the call across logs on both sides.
	ID string
	// Path is the endpoint path, e.g. "/zones/list".
	Path string
	// Payload is any JSON-shaped value.
	Payload any
}

// Transport carries one request and returns the decoded envelope.
// Failures to obtain an envelope are returned as *TransportError.
type Transport interface {
	Do(ctx context.Context, req Request) (*Envelope, error)
}

// HTTPTransport posts JSON payloads to the remote API's HTTP endpoints.
type HTTPTransport struct {
	// baseURL is prepended to every path.
	baseURL string
	// client performs the requests.
	client *http.Client
}

// NewHTTPTransport creates a transport for the given base URL.
// A nil client means http.DefaultClient.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (*Envelope, error) {
	body, err := json.Marshal(payloadOrEmpty(req.Payload))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("encode payload: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+req.Path, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("build request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	if req.ID != "" {
		httpReq.Header.Set(RequestIDHeader, req.ID)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, &TransportError{StatusCode: resp.StatusCode}
	}

	var env Envelope
	if err = json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode envelope: %w", err)}
	}

	return &env, nil
}

// GRPCTransport carries envelopes over the Console gRPC service.
type GRPCTransport struct {
	// client is the Console service client.
	client *console.Client
}

// NewGRPCTransport wraps a Console client.
func NewGRPCTransport(client *console.Client) *GRPCTransport {
	return &GRPCTransport{client: client}
}

// Do implements Transport.
func (t *GRPCTransport) Do(ctx context.Context, req Request) (*Envelope, error) {
	env, err := t.client.Call(ctx, req.ID, req.Path, payloadOrEmpty(req.Payload))
	if err != nil {
		code := 0
		if st, ok := status.FromError(err); ok {
			code = int(st.Code())
		}

		return nil, &TransportError{StatusCode: code, Err: err}
	}

	return &Envelope{
		Status:  env.Status,
		Data:    env.Data,
		Message: env.Message,
	}, nil
}

// Close releases the underlying connection.
func (t *GRPCTransport) Close() error {
	return t.client.Close()
}

// payloadOrEmpty replaces a nil payload with an empty object.
func payloadOrEmpty(payload any) any {
	if payload == nil {
		return map[string]any{}
	}

	return payload
}

// transportStatus extracts the status code of a transport failure.
func transportStatus(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}

	return 0
}
