package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oshokin/secpi-console/internal/logger"
	"github.com/oshokin/secpi-console/internal/service/console"
	"github.com/oshokin/secpi-console/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the level from the configuration file.
	logLevel string
	// apiURL overrides the remote API address from the configuration file.
	apiURL string
	// noColor disables colored flash output.
	noColor bool

	// rootCmd represents the base command of the admin console.
	rootCmd = &cobra.Command{
		Use:   "secpi-console",
		Short: "Administer a SecPi home-security appliance.",
		Long: `Command-line admin console for a SecPi appliance.

Lists and edits sensors, zones, setups, workers, actions, notifiers and their parameters,
exports and imports them as JSON, acknowledges alarms and log entries, arms and disarms
setups, and manages the setups-zones and workers-actions associations.

Every change goes through the remote API configured in the settings file.
While a setup is active, editing is refused.`,
		SilenceUsage: true,
	}
)

// Execute runs the secpi-console CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run opens a session, hands it to fn and closes it, cancelling on SIGINT or SIGTERM.
func run(fn func(ctx context.Context, s *console.Session) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ctx = logger.WithName(ctx, "secpi-console")

	if operator, err := console.DetectOperator(); err == nil {
		ctx = logger.WithKV(ctx, "operator", operator.String())
	}

	session, err := console.Open(ctx, &console.Options{
		ConfigPath: configPath,
		LogLevel:   logLevel,
		APIURL:     apiURL,
		Out:        os.Stdout,
		Color:      !noColor && !color.NoColor,
	})
	if err != nil {
		return err
	}

	defer func() {
		_ = session.Close(ctx)
	}()

	return fn(ctx, session)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path to configuration file (default secpi-console.yaml)")
	flags.StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error")
	flags.StringVar(&apiURL, "api-url", "", "remote API base URL, overrides the configuration file")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newListCommand(),
		newFieldsCommand(),
		newAddCommand(),
		newUpdateCommand(),
		newCopyCommand(),
		newDeleteCommand(),
		newExportCommand(),
		newImportCommand(),
		newAckCommand(),
		newWatchCommand(),
		newSetupsCommand(),
		newActivateCommand(),
		newDeactivateCommand(),
		newRelateCommand(),
		newBadgeCommand(),
		newAlarmDataCommand(),
	)
}
