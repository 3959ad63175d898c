package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".apertium-stats"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for stats service settings.
const envPrefix = "APERTIUM_STATS"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// DefaultOrganization is the upstream organization hosting the packages.
const DefaultOrganization = "apertium"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("server.addr", DefaultServerAddr)
	viperCfg.SetDefault("server.wait", DefaultServerWait)
	viperCfg.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)

	viperCfg.SetDefault("database.path", DefaultDatabasePath)

	viperCfg.SetDefault("worker.count", DefaultWorkerCount)
	viperCfg.SetDefault("worker.timeout", DefaultWorkerTimeout)

	viperCfg.SetDefault("source.organization", DefaultOrganization)
	viperCfg.SetDefault("source.api_root", "")
	viperCfg.SetDefault("source.raw_root", "")
	viperCfg.SetDefault("source.token", "")
	viperCfg.SetDefault("source.timeout", DefaultSourceTimeout)

	viperCfg.SetDefault("packages.enabled", false)
	viperCfg.SetDefault("packages.refresh_interval", DefaultPackagesRefreshInterval)

	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("observability.log_level", DefaultLogLevel)
	viperCfg.SetDefault("observability.log_json", true)
}
