package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/oshokin/secpi-console/internal/flash"
	"github.com/oshokin/secpi-console/internal/logger"
)

// Notifier is the part of the flash center the gateway reports failures to.
type Notifier interface {
	Post(text string, severity flash.Severity, d time.Duration) flash.ID
	ReportTransportFailure(statusCode int) flash.ID
}

// Caller is what orchestrators need from a gateway.
type Caller interface {
	Call(ctx context.Context, path string, payload any) (Result, error)
}

// Result is the successful outcome of a call.
type Result struct {
	// Data is the raw envelope payload; its shape depends on the endpoint.
	Data json.RawMessage
	// Message is the server's human-readable message.
	Message string
}

// Decode unmarshals the data into v. Empty or null data leaves v untouched.
func (r Result) Decode(v any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}

	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}

	return nil
}

var (
	// errTransportRequired is returned when no transport is provided.
	errTransportRequired = errors.New("transport must be provided")
	// errNotifierRequired is returned when no notifier is provided.
	errNotifierRequired = errors.New("notifier must be provided")
)

// Gateway performs remote calls and reports their failures.
type Gateway struct {
	// transport carries the requests.
	transport Transport
	// notifier receives exactly one flash per failed call.
	notifier Notifier
	// metrics is optional.
	metrics *Metrics
	// callTimeout bounds each call when positive.
	callTimeout time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCallTimeout sets a default timeout for each call.
func WithCallTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		if timeout > 0 {
			g.callTimeout = timeout
		}
	}
}

// WithMetrics records call counts and latencies.
func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// New creates a gateway over the given transport.
func New(transport Transport, notifier Notifier, opts ...Option) (*Gateway, error) {
	if transport == nil {
		return nil, errTransportRequired
	}

	if notifier == nil {
		return nil, errNotifierRequired
	}

	g := &Gateway{
		transport: transport,
		notifier:  notifier,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Call sends payload to path and unwraps the envelope.
// On failure the notifier has already been told; the returned error matches
// ErrTransport or ErrApplication so callers can run their local cleanup.
func (g *Gateway) Call(ctx context.Context, path string, payload any) (Result, error) {
	requestID := uuid.NewString()
	ctx = logger.WithKV(logger.WithKV(ctx, "path", path), "request_id", requestID)

	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	started := time.Now()
	env, err := g.transport.Do(callCtx, Request{ID: requestID, Path: path, Payload: payload})
	elapsed := time.Since(started)

	if err != nil {
		code := transportStatus(err)

		g.observe(path, OutcomeTransportFailure, elapsed)
		g.notifier.ReportTransportFailure(code)
		logger.ErrorKV(ctx, "Remote call failed", "status_code", code, "error", err, "elapsed", elapsed)

		return Result{}, goerr.Wrap(err, "remote call failed",
			goerr.V("path", path), goerr.V("request_id", requestID), goerr.V("status_code", code))
	}

	if env.Status != StatusSuccess {
		g.observe(path, OutcomeApplicationFailure, elapsed)
		g.notifier.Post(env.Message, flash.SeverityError, 0)
		logger.WarnKV(ctx, "Remote call refused", "status", env.Status, "message", env.Message, "elapsed", elapsed)

		return Result{}, goerr.Wrap(&ApplicationError{Path: path, Status: env.Status, Message: env.Message},
			"remote call refused", goerr.V("path", path), goerr.V("request_id", requestID))
	}

	g.observe(path, OutcomeSuccess, elapsed)
	logger.DebugKV(ctx, "Remote call succeeded", "elapsed", elapsed)

	return Result{Data: env.Data, Message: env.Message}, nil
}

// observe records metrics when they are configured.
func (g *Gateway) observe(path, outcome string, elapsed time.Duration) {
	if g.metrics == nil {
		return
	}

	g.metrics.Calls.WithLabelValues(path, outcome).Inc()
	g.metrics.Duration.WithLabelValues(path).Observe(elapsed.Seconds())
}

// callContext returns a context with the gateway's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (g *Gateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, g.callTimeout)
}
