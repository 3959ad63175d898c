package config

import (
	"errors"
	"time"
)

// Defaults for the stats service configuration.
const (
	DefaultServerAddr            = ":8000"
	DefaultServerWait            = 5 * time.Second
	DefaultServerShutdownTimeout = 15 * time.Second

	DefaultDatabasePath = "apertium-stats.db"

	DefaultWorkerCount   = 4
	DefaultWorkerTimeout = 5 * time.Minute

	DefaultSourceTimeout = 30 * time.Second

	DefaultPackagesRefreshInterval = 2 * time.Minute

	DefaultSampleRatio = 1.0
	DefaultLogLevel    = "info"
)

// MinPackagesRefreshInterval is the floor for the package list refresh
// period; smaller configured values are clamped to it.
const MinPackagesRefreshInterval = 10 * time.Second

// Config is the top-level configuration struct for the stats service.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Source        SourceConfig        `mapstructure:"source"`
	Packages      PackagesConfig      `mapstructure:"packages"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Wait            time.Duration `mapstructure:"wait"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds the entry store settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// WorkerConfig holds the computation pool settings.
type WorkerConfig struct {
	Count   int           `mapstructure:"count"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SourceConfig holds the upstream host settings.
type SourceConfig struct {
	Organization string        `mapstructure:"organization"`
	APIRoot      string        `mapstructure:"api_root"`
	RawRoot      string        `mapstructure:"raw_root"`
	Token        string        `mapstructure:"token"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// PackagesConfig holds the package list tracker settings.
type PackagesConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// ObservabilityConfig holds tracing, metrics, and logging settings.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	LogLevel     string  `mapstructure:"log_level"`
	LogJSON      bool    `mapstructure:"log_json"`
}

// sampleRatioMax is the upper bound for the trace sample ratio.
const sampleRatioMax = 1.0

// Sentinel errors for configuration validation.
var (
	// ErrInvalidServerAddr indicates the listen address is empty.
	ErrInvalidServerAddr = errors.New("server.addr must not be empty")
	// ErrInvalidServerWait indicates the bounded wait is negative.
	ErrInvalidServerWait = errors.New("server.wait must be non-negative")
	// ErrInvalidDatabasePath indicates the database path is empty.
	ErrInvalidDatabasePath = errors.New("database.path must not be empty")
	// ErrInvalidWorkerCount indicates the worker count is not positive.
	ErrInvalidWorkerCount = errors.New("worker.count must be positive")
	// ErrInvalidWorkerTimeout indicates the computation timeout is negative.
	ErrInvalidWorkerTimeout = errors.New("worker.timeout must be non-negative")
	// ErrInvalidSourceOrganization indicates the upstream organization is empty.
	ErrInvalidSourceOrganization = errors.New("source.organization must not be empty")
	// ErrInvalidRefreshInterval indicates the package refresh interval is negative.
	ErrInvalidRefreshInterval = errors.New("packages.refresh_interval must be non-negative")
	// ErrInvalidSampleRatio indicates the trace sample ratio is out of range.
	ErrInvalidSampleRatio = errors.New("observability.sample_ratio must be between 0 and 1")
	// ErrInvalidLogLevel indicates an unknown log level name.
	ErrInvalidLogLevel = errors.New("observability.log_level must be one of debug, info, warn, error")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	serverErr := c.validateServer()
	if serverErr != nil {
		return serverErr
	}

	workerErr := c.validateWorker()
	if workerErr != nil {
		return workerErr
	}

	return c.validateObservability()
}

func (c *Config) validateServer() error {
	if c.Server.Addr == "" {
		return ErrInvalidServerAddr
	}

	if c.Server.Wait < 0 {
		return ErrInvalidServerWait
	}

	if c.Database.Path == "" {
		return ErrInvalidDatabasePath
	}

	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.Count <= 0 {
		return ErrInvalidWorkerCount
	}

	if c.Worker.Timeout < 0 {
		return ErrInvalidWorkerTimeout
	}

	if c.Source.Organization == "" {
		return ErrInvalidSourceOrganization
	}

	if c.Packages.RefreshInterval < 0 {
		return ErrInvalidRefreshInterval
	}

	return nil
}

func (c *Config) validateObservability() error {
	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > sampleRatioMax {
		return ErrInvalidSampleRatio
	}

	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return ErrInvalidLogLevel
	}
}
