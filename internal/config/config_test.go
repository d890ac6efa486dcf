package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ADINSIGHTS_ACCESS_TOKEN", "token-123")
	t.Setenv("ADINSIGHTS_API_KEY", "secret")
	t.Setenv("ADINSIGHTS_DEFAULT_ACCOUNT_ID", "act_42")
	t.Setenv("ADINSIGHTS_ASYNC_POLL_INTERVAL", "2s")
	t.Setenv("ADINSIGHTS_CLICKHOUSE_ADDRS", "ch1:9000, ch2:9000")
	t.Setenv("ADINSIGHTS_GRAPH_MAX_PAGES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "token-123", cfg.GraphAPI.AccessToken)
	assert.Equal(t, "act_42", cfg.GraphAPI.DefaultAccountID)
	assert.Equal(t, 2*time.Second, cfg.Async.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Async.Timeout)
	assert.Equal(t, []string{"ch1:9000", "ch2:9000"}, cfg.Archive.Addrs)
	assert.Equal(t, 50, cfg.GraphAPI.MaxPages, "invalid int falls back to default")
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "console", cfg.LogFormat())
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adinsights.yaml")
	content := `
server:
  env: production
graph_api:
  access_token: from-file
  version: v20.0
  default_account_id: "111"
async:
  poll_interval: 10s
cache:
  enabled: true
  ttl: 1h
auth:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("ADINSIGHTS_CONFIG_FILE", path)
	t.Setenv("ADINSIGHTS_GRAPH_VERSION", "v21.0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "json", cfg.LogFormat())
	assert.Equal(t, "from-file", cfg.GraphAPI.AccessToken)
	assert.Equal(t, "v21.0", cfg.GraphAPI.Version)
	assert.Equal(t, "111", cfg.GraphAPI.DefaultAccountID)
	assert.Equal(t, 10*time.Second, cfg.Async.PollInterval)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, 500, cfg.GraphAPI.PageSize, "unset keys keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("ADINSIGHTS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing token", func(c *Config) { c.GraphAPI.AccessToken = "" }, true},
		{"auth without key", func(c *Config) { c.Auth.APIKey = "" }, true},
		{"auth disabled without key", func(c *Config) { c.Auth.Enabled = false; c.Auth.APIKey = "" }, false},
		{"export without bucket", func(c *Config) { c.Export.Enabled = true }, true},
		{"zero poll interval", func(c *Config) { c.Async.PollInterval = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.GraphAPI.AccessToken = "t"
			cfg.Auth.APIKey = "k"
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

func TestLogFormat(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Env = "staging"
	assert.Equal(t, "json", cfg.LogFormat())

	cfg.Log.Format = "console"
	assert.Equal(t, "console", cfg.LogFormat())
}

func TestAuditDSN(t *testing.T) {
	a := AuditConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "audit", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/audit?sslmode=disable", a.DSN())
}
