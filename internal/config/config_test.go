package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
data_source:
  preference: remote
  remote:
    api_base_url: http://gateway:3001/api/db
worker:
  interval: 30m
smtp:
  host: smtp.example.jo
  to: [ops@example.jo]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":9090", cfg.Server.Addr())
	assert.Equal(t, "remote", cfg.DataSource.Preference)
	assert.Equal(t, "http://gateway:3001/api/db", cfg.DataSource.Remote.APIBaseURL)
	assert.Equal(t, 30*time.Minute, cfg.Worker.Interval)
	assert.Equal(t, []string{"ops@example.jo"}, cfg.SMTP.To)

	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.DataSource.RetryAttempts)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.NotEmpty(t, cfg.CORS.AllowMethods)
	assert.False(t, cfg.RedisEnabled())
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "data_source:\n  preference: local\n")
	t.Setenv("DENTAL_DATA_SOURCE", "hosted")
	t.Setenv("DENTAL_HOSTED_URL", "https://project.example.co")
	t.Setenv("DENTAL_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DENTAL_PORT", "8181")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hosted", cfg.DataSource.Preference)
	assert.Equal(t, "https://project.example.co", cfg.DataSource.Hosted.ProjectURL)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.True(t, cfg.RedisEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "data_source:\n  preference: oracle\n"))
	assert.ErrorContains(t, err, "data_source.preference")

	_, err = Load(writeConfig(t, "server:\n  port: 70000\n"))
	assert.ErrorContains(t, err, "server.port")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
