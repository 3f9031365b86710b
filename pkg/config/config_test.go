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

	assert.Equal(t, "guardian-agent", cfg.Agent.Name)
	assert.Equal(t, "127.0.0.1:7410", cfg.Agent.Address)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "memory", cfg.Vault.Mode)
	assert.Equal(t, time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Monitor.WarningThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.RefreshThreshold)
	assert.Equal(t, 2*time.Minute, cfg.Monitor.WarningEvery)
	assert.False(t, cfg.Database.Enabled)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
agent:
  name: kiosk-3
  address: 127.0.0.1:7500
backend:
  base_url: https://api.guardian.example
  timeout: 10s
vault:
  mode: file
  path: /var/lib/guardian/vault
  secret: machine-secret
monitor:
  interval: 30s
  auto_logout_on_expiry: true
`))

	require.NoError(t, err)
	assert.Equal(t, "kiosk-3", cfg.Agent.Name)
	assert.Equal(t, "https://api.guardian.example", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "file", cfg.Vault.Mode)
	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval)
	assert.True(t, cfg.Monitor.AutoLogoutOnExpiry)
	// Unset values still get defaults.
	assert.Equal(t, 10*time.Minute, cfg.Monitor.WarningThreshold)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_GUARDIAN_SECRET", "from-env")
	t.Setenv("TEST_GUARDIAN_URL", "https://api.guardian.example")

	cfg, err := Parse([]byte(`
backend:
  base_url: ${TEST_GUARDIAN_URL}
vault:
  mode: file
  path: /tmp/vault
  secret: ${TEST_GUARDIAN_SECRET}
`))

	require.NoError(t, err)
	assert.Equal(t, "https://api.guardian.example", cfg.Backend.BaseURL)
	assert.Equal(t, "from-env", cfg.Vault.Secret)
}

func TestParse_UnsetEnvExpandsEmpty(t *testing.T) {
	_, err := Parse([]byte(`
vault:
  mode: file
  path: /tmp/vault
  secret: ${DEFINITELY_NOT_SET_GUARDIAN_VAR}
`))

	require.Error(t, err, "an unset secret variable must fail validation, not pass silently")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name: "file mode requires path",
			mutate: func(c *Config) {
				c.Vault.Mode = "file"
				c.Vault.Secret = "s"
			},
			wantErr: "vault.path",
		},
		{
			name: "file mode requires secret",
			mutate: func(c *Config) {
				c.Vault.Mode = "file"
				c.Vault.Path = "/tmp/vault"
			},
			wantErr: "vault.secret",
		},
		{
			name: "unknown vault mode",
			mutate: func(c *Config) {
				c.Vault.Mode = "keychain"
			},
			wantErr: "vault.mode",
		},
		{
			name: "enabled database requires dsn",
			mutate: func(c *Config) {
				c.Database.Enabled = true
			},
			wantErr: "database.dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  name: loaded\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "loaded", cfg.Agent.Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("agent: [unclosed"))
	require.Error(t, err)
}
