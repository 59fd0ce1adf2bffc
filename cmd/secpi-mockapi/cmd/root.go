package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/secpi-console/internal/config"
	"github.com/oshokin/secpi-console/internal/service/mockapi"
	"github.com/oshokin/secpi-console/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// recordsFile path where records are persisted.
	recordsFile string
	// alarmDataDir overrides the folder of alarm data served.
	alarmDataDir string
	// grpcAddress overrides the gRPC listen address.
	grpcAddress string
	// logLevel of the process logger.
	logLevel string

	// rootCmd represents the base command for running the mock API.
	rootCmd = &cobra.Command{
		Use:   "secpi-mockapi [listen-address]",
		Short: "Run a stand-in for the SecPi appliance API.",
		Long: `Starts an HTTP server answering the SecPi remote API, and a gRPC server when an address is configured.

Only the port of api_url is used for listening unless listen_addr is set or an address is given
as argument (e.g., :9090, 0.0.0.0:8080). Records are persisted to a JSON file and survive restarts.
Alarm data is read from one subfolder per alarm of alarm_data_dir.
Prometheus metrics are served at /metrics.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return mockapi.Run(ctx, &mockapi.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				GRPCAddress:   grpcAddress,
				RecordsFile:   recordsFile,
				AlarmDataDir:  alarmDataDir,
				LogLevel:      logLevel,
			})
		},
	}
)

// Execute runs the secpi-mockapi CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to configuration file (default secpi-console.yaml)")
	flags.StringVarP(&recordsFile, "records-file", "r", "",
		"path to persist records (default "+config.DefaultRecordsFilename+")")
	flags.StringVarP(&alarmDataDir, "alarm-data-dir", "d", "",
		"folder of alarm data (default "+config.DefaultAlarmDataDir+")")
	flags.StringVarP(&grpcAddress, "grpc-addr", "g", "", "gRPC listen address, overrides grpc_addr of the configuration")
	flags.StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error")
}
