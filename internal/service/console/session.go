package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zapcore"

	grpcconsole "github.com/oshokin/secpi-console/internal/api/grpc/console"
	"github.com/oshokin/secpi-console/internal/config"
	"github.com/oshokin/secpi-console/internal/flash"
	"github.com/oshokin/secpi-console/internal/gateway"
	"github.com/oshokin/secpi-console/internal/logger"
)

// Options configures a console session.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// LogLevel overrides the level from the settings file when specified.
	LogLevel string
	// APIURL overrides the remote API address from the settings file when specified.
	APIURL string
	// Out receives command output; nil means stdout.
	Out io.Writer
	// Color enables colored flash output.
	Color bool
}

// Session is one console run: settings, notification center and gateway.
type Session struct {
	// settings are the validated settings of this run.
	settings *config.Config
	// center collects flash messages; the printer renders them as they arrive.
	center *flash.Center
	// gateway performs remote calls.
	gateway *gateway.Gateway
	// registry holds the call metrics summarized on Close.
	registry *prometheus.Registry
	// printer renders entities and flash messages.
	printer *Printer
	// httpClient downloads alarm files.
	httpClient *http.Client
	// closers release transport resources.
	closers []func() error
	// unsubscribe detaches the printer from the center.
	unsubscribe func()
}

var errUnknownLogLevel = errors.New("unknown log level")

// Open loads settings, configures logging and connects the configured transport.
func Open(ctx context.Context, opts *Options) (*Session, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.APIURL != "" {
		settings.APIURL = opts.APIURL
	}

	level := settings.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownLogLevel, level)
	}

	logger.SetLevel(parsed)

	var (
		transport gateway.Transport
		closers   []func() error
	)

	switch settings.Transport {
	case config.TransportGRPC:
		client, err := grpcconsole.Dial(settings.GRPCAddress)
		if err != nil {
			return nil, err
		}

		grpcTransport := gateway.NewGRPCTransport(client)
		transport = grpcTransport
		closers = append(closers, grpcTransport.Close)
	default:
		transport = gateway.NewHTTPTransport(settings.APIURL, &http.Client{})
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	s, err := NewSession(settings, transport, NewPrinter(out, opts.Color))
	if err != nil {
		for _, c := range closers {
			_ = c()
		}

		return nil, err
	}

	s.closers = closers

	logger.DebugKV(ctx, "Console session opened", "transport", settings.Transport, "api_url", settings.APIURL)

	return s, nil
}

// NewSession wires a session over an already built transport.
func NewSession(settings *config.Config, transport gateway.Transport, printer *Printer) (*Session, error) {
	if settings == nil {
		settings = config.Default()
	}

	// Info flashes are printed; only warnings and errors are mirrored to the log.
	flashLog := logger.Leveled("flash", zapcore.WarnLevel)

	center := flash.NewCenter(
		flash.WithDefaultDuration(settings.FlashDuration),
		flash.WithLogger(flashLog),
	)

	registry := prometheus.NewRegistry()

	gw, err := gateway.New(transport, center,
		gateway.WithCallTimeout(settings.Timeout),
		gateway.WithMetrics(gateway.NewMetrics(registry)),
	)
	if err != nil {
		return nil, err
	}

	s := &Session{
		settings:   settings,
		center:     center,
		gateway:    gw,
		registry:   registry,
		printer:    printer,
		httpClient: &http.Client{},
	}

	s.unsubscribe = center.Subscribe(func(evt flash.Event) {
		if evt.Kind == flash.EventPosted {
			printer.Flash(evt.Message)
		}
	})

	return s, nil
}

// Settings returns the settings of the session.
func (s *Session) Settings() *config.Config {
	return s.settings
}

// Center returns the notification center of the session.
func (s *Session) Center() *flash.Center {
	return s.center
}

// Gateway returns the gateway of the session.
func (s *Session) Gateway() *gateway.Gateway {
	return s.gateway
}

// Close logs a summary of the calls made and releases the transport.
func (s *Session) Close(ctx context.Context) error {
	s.unsubscribe()
	s.logCallSummary(ctx)

	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}

	return errors.Join(errs...)
}

// logCallSummary writes one debug entry per endpoint and outcome.
func (s *Session) logCallSummary(ctx context.Context) {
	families, err := s.registry.Gather()
	if err != nil {
		logger.WarnKV(ctx, "Failed to gather call metrics", "error", err)

		return
	}

	for _, family := range families {
		if family.GetName() != gateway.CallsMetricName {
			continue
		}

		for _, m := range family.GetMetric() {
			kvs := make([]any, 0, 2*len(m.GetLabel())+2)
			for _, label := range m.GetLabel() {
				kvs = append(kvs, label.GetName(), label.GetValue())
			}

			kvs = append(kvs, "calls", m.GetCounter().GetValue())
			logger.DebugKV(ctx, "Remote calls", kvs...)
		}
	}
}
