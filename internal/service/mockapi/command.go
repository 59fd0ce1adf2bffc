package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	console "github.com/oshokin/secpi-console/internal/api/grpc/console"
	"github.com/oshokin/secpi-console/internal/config"
	"github.com/oshokin/secpi-console/internal/logger"
	"github.com/oshokin/secpi-console/internal/repository/records"
	"github.com/oshokin/secpi-console/internal/version"
)

// Options controls the secpi-mockapi process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the HTTP server.
	ListenAddress string
	// GRPCAddress provides an optional listen address override for the gRPC server.
	GRPCAddress string
	// RecordsFile specifies the path to persist records JSON.
	RecordsFile string
	// AlarmDataDir overrides the folder of alarm data served.
	AlarmDataDir string
	// LogLevel overrides the level from the settings file when specified.
	LogLevel string
}

const (
	// readHeaderTimeout bounds how long a client may take to send headers.
	readHeaderTimeout = 5 * time.Second
	// shutdownTimeout bounds the graceful HTTP shutdown.
	shutdownTimeout = 5 * time.Second
)

var (
	// ErrNoServerAddress indicates missing server configuration.
	ErrNoServerAddress = errors.New("no server address configured")
	// ErrUnknownLogLevel is returned for log levels zap does not know.
	ErrUnknownLogLevel = errors.New("unknown log level")
)

// Run starts the HTTP server, and the gRPC server when an address is known,
// and blocks until ctx is canceled or a server stops.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "secpi-mockapi")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	level := settings.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLogLevel, level)
	}

	logger.SetLevel(parsed)

	recordsFile := settings.RecordsFile
	if opts.RecordsFile != "" {
		recordsFile = opts.RecordsFile
	}

	alarmDataDir := settings.AlarmDataDir
	if opts.AlarmDataDir != "" {
		alarmDataDir = opts.AlarmDataDir
	}

	httpAddress := opts.ListenAddress
	if httpAddress == "" {
		httpAddress = settings.ListenAddress
	}

	httpAddress, err = resolveListenAddress(settings.APIURL, httpAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	grpcAddress := opts.GRPCAddress
	if grpcAddress == "" && settings.GRPCAddress != "" {
		if grpcAddress, err = portOnly(settings.GRPCAddress); err != nil {
			return fmt.Errorf("resolve grpc address: %w", err)
		}
	}

	svc, err := newService(ctx, records.NewFileRepository(recordsFile), WithAlarmDataDir(alarmDataDir))
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		version.NewCollector("secpi_mockapi"),
	)

	lc := net.ListenConfig{}

	httpListener, err := lc.Listen(ctx, "tcp", httpAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", httpAddress, err)
	}

	var grpcListener net.Listener

	if grpcAddress != "" {
		if grpcListener, err = lc.Listen(ctx, "tcp", grpcAddress); err != nil {
			_ = httpListener.Close()

			return fmt.Errorf("listen on %s: %w", grpcAddress, err)
		}
	}

	httpServer := &http.Server{
		Handler:           newRouter(svc, reg),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	group, groupCtx := errgroup.WithContext(ctx)

	logger.InfoKV(ctx, "Mock API listening",
		"http_address", httpAddress, "records_file", recordsFile, "alarm_data_dir", alarmDataDir)

	group.Go(func() error {
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	if grpcListener != nil {
		serveGRPC(ctx, groupCtx, group, grpcListener, svc)
	}

	if err := group.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Mock API stopped")

	return nil
}

// serveGRPC runs the Console gRPC service within group until groupCtx is done.
func serveGRPC(ctx, groupCtx context.Context, group *errgroup.Group, lis net.Listener, svc *service) {
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(requestIDInterceptor(ctx)))
	console.Register(grpcServer, console.NewServer(svc))

	logger.InfoKV(ctx, "Mock API gRPC listening", "grpc_address", lis.Addr().String())

	group.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()

		return nil
	})
}

// requestIDInterceptor carries the caller's request id and the process
// logger into every handler context.
func requestIDInterceptor(base context.Context) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = logger.ToContext(ctx, logger.FromContext(base))

		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(console.RequestIDHeader); len(ids) > 0 {
				ctx = logger.WithKV(ctx, "request_id", ids[0])
			}
		}

		return handler(ctx, req)
	}
}

// resolveListenAddress determines the HTTP listen address.
// If override is provided, uses it directly. Otherwise binds the port of apiURL on all interfaces.
func resolveListenAddress(apiURL, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if apiURL == "" {
		return "", ErrNoServerAddress
	}

	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid api url %q: %w", apiURL, err)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		default:
			return "", fmt.Errorf("%w: %q has no port", ErrNoServerAddress, apiURL)
		}
	}

	return ":" + port, nil
}

// portOnly turns "host:port" into ":port".
func portOnly(address string) (string, error) {
	_, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", address, err)
	}

	return ":" + port, nil
}
