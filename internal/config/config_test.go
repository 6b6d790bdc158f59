package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "s3cret", cfg.Database.Password)
			assert.Equal(t, "lectures", cfg.Database.Database)
			assert.Equal(t, "analysis.events", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, "/var/lib/lecture-analysis/uploads", cfg.Storage.UploadDir)
			assert.Equal(t, 20*time.Minute, cfg.FFmpeg.Timeout)
			assert.Equal(t, "http://analyzer:5000", cfg.Analyzer.BaseURL)
			assert.Equal(t, 4, cfg.Worker.Concurrency)
			assert.Equal(t, 32, cfg.Worker.QueueSize)
			assert.Equal(t, int64(1<<30), cfg.Upload.MaxBytes)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load("testdata/minimal_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "uploads", cfg.Storage.UploadDir)
	assert.Equal(t, "ffmpeg", cfg.FFmpeg.Path)
	assert.Equal(t, time.Hour, cfg.Registry.Retention)
	assert.Equal(t, 10*time.Minute, cfg.Registry.SweepInterval)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.NoError(t, cfg.Validate())
}

func validConfig() *Config {
	cfg := &Config{Analyzer: AnalyzerConfig{BaseURL: "http://analyzer:5000"}}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "invalid server port",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			errString: "invalid server port: 70000",
		},
		{
			name:      "negative worker concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = -1 },
			errString: "worker concurrency must be greater than 0",
		},
		{
			name:      "database enabled without host",
			mutate:    func(c *Config) { c.Database.Enabled = true; c.Database.Database = "lectures" },
			errString: "database host is required",
		},
		{
			name:      "rabbitmq enabled without host",
			mutate:    func(c *Config) { c.RabbitMQ.Enabled = true },
			errString: "rabbitmq host is required",
		},
		{
			name:      "object store enabled without bucket",
			mutate:    func(c *Config) { c.ObjectStore.Enabled = true; c.ObjectStore.Endpoint = "minio:9000" },
			errString: "object_store bucket is required",
		},
		{
			name:      "negative rate",
			mutate:    func(c *Config) { c.Upload.RatePerSecond = -1 },
			errString: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateReportsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Worker.QueueSize = -5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
	assert.Contains(t, err.Error(), "worker queue_size")
}
