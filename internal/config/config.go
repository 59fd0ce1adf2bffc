package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names accepted in the transport field.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Config holds the settings shared by the console and the mock API binaries.
type Config struct {
	// APIURL is the base URL of the remote API's HTTP endpoints.
	APIURL string `yaml:"api_url"`
	// Transport selects how remote calls are carried: "http" or "grpc".
	Transport string `yaml:"transport"`
	// GRPCAddress is the host:port of the remote API's gRPC endpoint.
	GRPCAddress string `yaml:"grpc_addr,omitempty"`
	// Timeout bounds every single remote call.
	Timeout time.Duration `yaml:"timeout"`
	// FlashDuration is how long a flash message lives before it expires.
	FlashDuration time.Duration `yaml:"flash_duration"`
	// PollInterval is the refresh interval of acknowledgment pollers.
	PollInterval time.Duration `yaml:"poll_interval"`
	// BadgeSchedule is the cron schedule of the unread counter refresh.
	BadgeSchedule string `yaml:"badge_schedule"`
	// LogLevel is the minimum level of log entries.
	LogLevel string `yaml:"log_level"`
	// ListenAddress is where the mock API serves HTTP.
	ListenAddress string `yaml:"listen_addr,omitempty"`
	// RecordsFile is where the mock API persists its records.
	RecordsFile string `yaml:"records_file,omitempty"`
	// AlarmDataDir holds one folder of captured files per alarm, served by the mock API.
	AlarmDataDir string `yaml:"alarm_data_dir,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for console settings.
	DefaultConfigFilename = "secpi-console.yaml"

	// DefaultRecordsFilename is the default filename of the mock API store.
	DefaultRecordsFilename = "secpi-mockapi-records.json"

	// DefaultAlarmDataDir is the default folder of alarm data served by the mock API.
	DefaultAlarmDataDir = "secpi-alarmdata"

	// DefaultAPIURL points at a mock API running on the same host.
	DefaultAPIURL = "http://127.0.0.1:8080"

	// DefaultTimeout is the default duration for a remote call.
	DefaultTimeout = 5 * time.Second

	// DefaultFlashDuration is the default lifetime of a flash message.
	DefaultFlashDuration = 5 * time.Second

	// DefaultPollInterval is the default refresh interval of ack pollers.
	DefaultPollInterval = 5 * time.Second

	// DefaultBadgeSchedule refreshes the unread counter twice a minute.
	DefaultBadgeSchedule = "@every 30s"

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownTransport is returned for transports other than http and grpc.
	errUnknownTransport = errors.New("unknown transport")
	// errGRPCAddressRequired is returned when grpc transport has no address.
	errGRPCAddressRequired = errors.New("grpc address must be provided for grpc transport")
)

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := new(Config)

	// Validation of defaults cannot fail.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// A missing file at the default path yields the default configuration.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks formatting of the provided settings.
//
//nolint:cyclop // One branch per field keeps the defaults readable.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.APIURL == "" {
		settings.APIURL = DefaultAPIURL
	}

	if _, err := url.ParseRequestURI(settings.APIURL); err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}

	switch settings.Transport {
	case "":
		settings.Transport = TransportHTTP
	case TransportHTTP:
	case TransportGRPC:
		if settings.GRPCAddress == "" {
			return errGRPCAddressRequired
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownTransport, settings.Transport)
	}

	if settings.GRPCAddress != "" {
		if _, _, err := net.SplitHostPort(settings.GRPCAddress); err != nil {
			return fmt.Errorf("invalid grpc address: %w", err)
		}
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.FlashDuration <= 0 {
		settings.FlashDuration = DefaultFlashDuration
	}

	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}

	if settings.BadgeSchedule == "" {
		settings.BadgeSchedule = DefaultBadgeSchedule
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if settings.RecordsFile == "" {
		settings.RecordsFile = DefaultRecordsFilename
	}

	if settings.AlarmDataDir == "" {
		settings.AlarmDataDir = DefaultAlarmDataDir
	}

	return nil
}
