package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.Provider != "openai" {
		t.Errorf("provider = %q", cfg.API.Provider)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("max attempts = %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Server.Port != 8177 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  model: custom-model
retry:
  max_attempts: 2
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.Model != "custom-model" {
		t.Errorf("model = %q", cfg.API.Model)
	}
	if cfg.Retry.MaxAttempts != 2 {
		t.Errorf("max attempts = %d", cfg.Retry.MaxAttempts)
	}
	// Untouched fields keep defaults.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q", cfg.Server.Host)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GITSMART_AUTH_TOKEN", "tok-123")
	t.Setenv("GITSMART_MODEL", "env-model")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.AuthToken != "tok-123" {
		t.Errorf("auth token = %q", cfg.API.AuthToken)
	}
	if cfg.API.Model != "env-model" {
		t.Errorf("model = %q", cfg.API.Model)
	}
}

func TestGeminiKeySelectsProvider(t *testing.T) {
	t.Setenv("GITSMART_AUTH_TOKEN", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.Provider != "gemini" {
		t.Errorf("provider = %q", cfg.API.Provider)
	}
	if cfg.API.AuthToken != "gem-key" {
		t.Errorf("auth token = %q", cfg.API.AuthToken)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.GetAPITimeout(); got != 60*time.Second {
		t.Errorf("api timeout = %v", got)
	}
	if got := cfg.GetLockTimeout(); got != 30*time.Second {
		t.Errorf("lock timeout = %v", got)
	}
	if got := cfg.GetInitialBackoff(); got != 2*time.Second {
		t.Errorf("initial backoff = %v", got)
	}

	cfg.API.Timeout = "garbage"
	if got := cfg.GetAPITimeout(); got != 60*time.Second {
		t.Errorf("bad duration should fall back, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.AuthToken = "tok"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg.API.Provider = "martian"
	if err := cfg.Validate(); err == nil {
		t.Error("invalid provider accepted")
	}

	cfg = DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("missing token accepted")
	}

	cfg = DefaultConfig()
	cfg.API.AuthToken = "tok"
	cfg.Server.Port = 99999
	if err := cfg.Validate(); err == nil {
		t.Error("out-of-range port accepted")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.API.Model = "saved-model"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.API.Model != "saved-model" {
		t.Errorf("model = %q", loaded.API.Model)
	}
}
