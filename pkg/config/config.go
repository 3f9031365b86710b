// Package config loads the agent configuration from YAML with environment
// variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete agent configuration.
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	Backend  BackendConfig  `yaml:"backend"`
	Vault    VaultConfig    `yaml:"vault"`
	Database DatabaseConfig `yaml:"database"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// AgentConfig configures the agent process and its local API.
type AgentConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// BackendConfig configures the auth backend client.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// VaultConfig configures the persisted local state.
type VaultConfig struct {
	// Mode selects the vault implementation: "memory" or "file".
	Mode string `yaml:"mode"`

	// Path is the vault file location for file mode.
	Path string `yaml:"path"`

	// Secret is the machine secret the file vault derives its encryption
	// key from. Usually supplied as ${GUARDIAN_VAULT_SECRET}.
	Secret string `yaml:"secret"`
}

// DatabaseConfig configures the optional shared-deployment session record
// store.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// MonitorConfig configures the session timeout monitor.
type MonitorConfig struct {
	Interval           time.Duration `yaml:"interval"`
	WarningThreshold   time.Duration `yaml:"warning_threshold"`
	RefreshThreshold   time.Duration `yaml:"refresh_threshold"`
	WarningEvery       time.Duration `yaml:"warning_every"`
	AutoLogoutOnExpiry bool          `yaml:"auto_logout_on_expiry"`
}

// Load loads configuration from a file.
// The path comes from command line arguments, controlled by the operator.
func Load(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse loads configuration from raw YAML.
func Parse(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Vault.Mode {
	case "memory":
	case "file":
		if c.Vault.Path == "" {
			return fmt.Errorf("vault.path is required in file mode")
		}
		if c.Vault.Secret == "" {
			return fmt.Errorf("vault.secret is required in file mode")
		}
	default:
		return fmt.Errorf("unknown vault.mode %q", c.Vault.Mode)
	}

	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database.enabled is true")
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "guardian-agent"
	}
	if cfg.Agent.Address == "" {
		cfg.Agent.Address = "127.0.0.1:7410"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Vault.Mode == "" {
		cfg.Vault.Mode = "memory"
	}
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = time.Minute
	}
	if cfg.Monitor.WarningThreshold == 0 {
		cfg.Monitor.WarningThreshold = 10 * time.Minute
	}
	if cfg.Monitor.RefreshThreshold == 0 {
		cfg.Monitor.RefreshThreshold = 5 * time.Minute
	}
	if cfg.Monitor.WarningEvery == 0 {
		cfg.Monitor.WarningEvery = 2 * time.Minute
	}
}
