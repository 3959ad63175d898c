package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))

	// An explicitly named but missing file is an error.
	require.Error(t, err)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultServerWait, cfg.Server.Wait)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, DefaultWorkerCount, cfg.Worker.Count)
	assert.Equal(t, DefaultWorkerTimeout, cfg.Worker.Timeout)
	assert.Equal(t, DefaultOrganization, cfg.Source.Organization)
	assert.False(t, cfg.Packages.Enabled)
	assert.Equal(t, DefaultSampleRatio, cfg.Observability.SampleRatio)
	assert.Equal(t, DefaultLogLevel, cfg.Observability.LogLevel)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.yaml")
	content := []byte(`
server:
  addr: ":9090"
  wait: 250ms
database:
  path: /var/lib/apertium-stats.db
worker:
  count: 8
  timeout: 90s
source:
  organization: apertium-incubator
  token: hunter2
packages:
  enabled: true
  refresh_interval: 45s
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.Wait)
	assert.Equal(t, "/var/lib/apertium-stats.db", cfg.Database.Path)
	assert.Equal(t, 8, cfg.Worker.Count)
	assert.Equal(t, 90*time.Second, cfg.Worker.Timeout)
	assert.Equal(t, "apertium-incubator", cfg.Source.Organization)
	assert.Equal(t, "hunter2", cfg.Source.Token)
	assert.True(t, cfg.Packages.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Packages.RefreshInterval)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("APERTIUM_STATS_SERVER_ADDR", ":7777")
	t.Setenv("APERTIUM_STATS_WORKER_COUNT", "2")
	t.Setenv("APERTIUM_STATS_SOURCE_TOKEN", "from-env")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Worker.Count)
	assert.Equal(t, "from-env", cfg.Source.Token)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Server:        ServerConfig{Addr: ":8000"},
			Database:      DatabaseConfig{Path: "stats.db"},
			Worker:        WorkerConfig{Count: 4},
			Source:        SourceConfig{Organization: "apertium"},
			Observability: ObservabilityConfig{SampleRatio: 1, LogLevel: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}, wantErr: nil},
		{name: "empty addr", mutate: func(c *Config) { c.Server.Addr = "" }, wantErr: ErrInvalidServerAddr},
		{name: "negative wait", mutate: func(c *Config) { c.Server.Wait = -time.Second }, wantErr: ErrInvalidServerWait},
		{name: "empty db path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: ErrInvalidDatabasePath},
		{name: "zero workers", mutate: func(c *Config) { c.Worker.Count = 0 }, wantErr: ErrInvalidWorkerCount},
		{
			name:    "negative worker timeout",
			mutate:  func(c *Config) { c.Worker.Timeout = -time.Minute },
			wantErr: ErrInvalidWorkerTimeout,
		},
		{
			name:    "empty organization",
			mutate:  func(c *Config) { c.Source.Organization = "" },
			wantErr: ErrInvalidSourceOrganization,
		},
		{
			name:    "negative refresh interval",
			mutate:  func(c *Config) { c.Packages.RefreshInterval = -time.Second },
			wantErr: ErrInvalidRefreshInterval,
		},
		{
			name:    "sample ratio above one",
			mutate:  func(c *Config) { c.Observability.SampleRatio = 1.5 },
			wantErr: ErrInvalidSampleRatio,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "loud" },
			wantErr: ErrInvalidLogLevel,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}
