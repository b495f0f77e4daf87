package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Recommendation.Neighbors)
	assert.Equal(t, 10, cfg.Recommendation.DefaultCount)
	assert.Equal(t, 4, cfg.Recommendation.FallbackCount)
	assert.False(t, cfg.Recommendation.ExcludeSeen)
	assert.Equal(t, DegradedNone, cfg.Recommendation.DegradedMode)
	assert.Equal(t, "file", cfg.Artifact.Backend)
	assert.Equal(t, "model-updates", cfg.Kafka.Topics.ModelUpdates)
	assert.Equal(t, 15*time.Minute, cfg.Redis.CacheTTL)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
recommendation:
  neighbors: 5
  degraded_mode: popular
artifact:
  backend: redis
redis:
  url: redis://localhost:6379/0
logging:
  format: json
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Recommendation.Neighbors)
	assert.Equal(t, DegradedPopular, cfg.Recommendation.DegradedMode)
	assert.Equal(t, "redis", cfg.Artifact.Backend)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RECOMMENDATION_NEIGHBORS", "3")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Recommendation.Neighbors)
	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero default count", func(c *Config) { c.Recommendation.DefaultCount = 0 }},
		{"max below default", func(c *Config) { c.Recommendation.MaxCount = 1 }},
		{"unknown degraded mode", func(c *Config) { c.Recommendation.DegradedMode = "random" }},
		{"unknown backend", func(c *Config) { c.Artifact.Backend = "s3" }},
		{"redis backend without url", func(c *Config) { c.Artifact.Backend = "redis" }},
		{"postgres without url", func(c *Config) { c.Catalog.Source = "postgres" }},
		{"unknown format", func(c *Config) { c.Training.Format = "parquet" }},
		{"graph export without neo4j", func(c *Config) { c.Training.ExportGraph = true }},
		{"events without brokers", func(c *Config) { c.Training.PublishEvents = true }},
		{"rate limit without redis", func(c *Config) { c.Security.RateLimit.Enabled = true }},
		{"rate limit without window", func(c *Config) {
			c.Redis.URL = "redis://localhost:6379"
			c.Security.RateLimit.Enabled = true
			c.Security.RateLimit.Window = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
