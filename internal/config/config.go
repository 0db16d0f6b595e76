package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all GitSmart configuration.
type Config struct {
	// Generation service settings
	API APIConfig `yaml:"api"`

	// Retry policy for generation calls
	Retry RetryConfig `yaml:"retry"`

	// Tool server settings
	Server ServerConfig `yaml:"server"`

	// Taxonomy table override
	Taxonomy TaxonomyConfig `yaml:"taxonomy"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Persistent storage
	Storage StorageConfig `yaml:"storage"`
}

// APIConfig configures the external generation service.
type APIConfig struct {
	Provider    string  `yaml:"provider"` // openai (OpenAI-compatible), gemini
	BaseURL     string  `yaml:"base_url"`
	AuthToken   string  `yaml:"auth_token"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"` // per-chunk token budget
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// RetryConfig configures the retry policy wrapping generation calls.
type RetryConfig struct {
	MaxAttempts    int    `yaml:"max_attempts"`
	InitialBackoff string `yaml:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff"`
}

// ServerConfig configures the tool server.
type ServerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	LockTimeout string `yaml:"lock_timeout"`
}

// TaxonomyConfig points at an optional external tag table.
type TaxonomyConfig struct {
	TablePath string `yaml:"table_path"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	Level string `yaml:"level"` // debug, info, warn, error
}

// StorageConfig configures the repository registry database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Provider:    "openai",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   8192,
			Temperature: 0.4,
			Timeout:     "60s",
		},
		Retry: RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: "2s",
			MaxBackoff:     "30s",
		},
		Server: ServerConfig{
			Enabled:     false,
			Host:        "127.0.0.1",
			Port:        8177,
			LockTimeout: "30s",
		},
		Logging: LoggingConfig{
			Debug: false,
			Level: "info",
		},
		Storage: StorageConfig{
			DatabasePath: defaultDatabasePath(),
		},
	}
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gitsmart", "gitsmart.db")
	}
	return filepath.Join(home, ".gitsmart", "gitsmart.db")
}

// DefaultPath returns the default config file location (~/.gitsmart/config.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gitsmart", "config.yaml")
	}
	return filepath.Join(home, ".gitsmart", "config.yaml")
}

// Load loads configuration from a YAML file, merging over defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if tok := os.Getenv("GITSMART_AUTH_TOKEN"); tok != "" {
		c.API.AuthToken = tok
	}
	if tok := os.Getenv("OPENAI_API_KEY"); tok != "" && c.API.AuthToken == "" {
		c.API.AuthToken = tok
		if c.API.Provider == "" {
			c.API.Provider = "openai"
		}
	}
	if tok := os.Getenv("GEMINI_API_KEY"); tok != "" && c.API.AuthToken == "" {
		c.API.AuthToken = tok
		c.API.Provider = "gemini"
	}
	if url := os.Getenv("GITSMART_API_URL"); url != "" {
		c.API.BaseURL = url
	}
	if model := os.Getenv("GITSMART_MODEL"); model != "" {
		c.API.Model = model
	}
	if path := os.Getenv("GITSMART_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
}

// GetAPITimeout returns the generation call timeout as a duration.
func (c *Config) GetAPITimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetLockTimeout returns the repository lock acquisition timeout.
func (c *Config) GetLockTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.LockTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetInitialBackoff returns the first retry delay.
func (c *Config) GetInitialBackoff() time.Duration {
	d, err := time.ParseDuration(c.Retry.InitialBackoff)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetMaxBackoff returns the retry delay ceiling.
func (c *Config) GetMaxBackoff() time.Duration {
	d, err := time.ParseDuration(c.Retry.MaxBackoff)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ValidProviders lists all supported generation providers.
var ValidProviders = []string{"openai", "gemini"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.API.AuthToken == "" {
		return fmt.Errorf("generation auth token not configured (set GITSMART_AUTH_TOKEN, OPENAI_API_KEY, or GEMINI_API_KEY)")
	}

	valid := false
	for _, p := range ValidProviders {
		if c.API.Provider == p {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid provider: %s (valid: %v)", c.API.Provider, ValidProviders)
	}

	if c.API.MaxTokens <= 0 {
		return fmt.Errorf("api.max_tokens must be positive, got %d", c.API.MaxTokens)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	return nil
}
