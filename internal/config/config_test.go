package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 30*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 10, cfg.Probe.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Probe.SlowThreshold)
	assert.Equal(t, 100, cfg.Reference.SampleSize)
	assert.Equal(t, 10, cfg.Reference.MaxOrphanSamples)
	assert.Equal(t, "./reports", cfg.ReportsDir)
	assert.Equal(t, "./function_endpoint_mapping.json", cfg.Mapping)
	assert.Equal(t, IdentityConfig{UserID: 1, TeamID: 1}, cfg.Identity)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auditor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog: ./prod-catalog.yaml
probe:
  timeout: 10s
  concurrency: 15
records:
  source: mysql
  dsn: audit:secret@tcp(db:3306)/app
test_identity:
  user_id: 42
`), 0o644))

	t.Setenv("AUDITOR_CONCURRENCY", "4")
	t.Setenv("AUDITOR_SLOW_THRESHOLD", "1500")
	t.Setenv("AUDITOR_LOG_PRETTY", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./prod-catalog.yaml", cfg.Catalog)
	assert.Equal(t, 10*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 4, cfg.Probe.Concurrency)
	assert.Equal(t, 1500*time.Millisecond, cfg.Probe.SlowThreshold)
	assert.Equal(t, RecordSourceMySQL, cfg.Records.Source)
	assert.Equal(t, 42, cfg.Identity.UserID)
	assert.Equal(t, 1, cfg.Identity.TeamID)
	assert.False(t, cfg.Log.Pretty)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnv_InvalidValue(t *testing.T) {
	t.Setenv("AUDITOR_TIMEOUT", "soon")

	err := LoadFromEnv(Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUDITOR_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero timeout", func(c *Config) { c.Probe.Timeout = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Probe.Concurrency = 0 }, true},
		{"unknown source", func(c *Config) { c.Records.Source = "postgres" }, true},
		{"sql without dsn", func(c *Config) { c.Records.Source = RecordSourceSQLServer }, true},
		{"sql with dsn", func(c *Config) {
			c.Records.Source = RecordSourceSQLServer
			c.Records.DSN = "sqlserver://audit@db?database=app"
		}, false},
		{"negative rate", func(c *Config) { c.Probe.RateLimit = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_ClampsConcurrency(t *testing.T) {
	cfg := Default()
	cfg.Probe.Concurrency = 64

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Probe.Concurrency)
}
