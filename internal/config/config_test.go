package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snehjoshi/encodex/internal/config"
)

func TestDefault_HasSensibleValues(t *testing.T) {
	cfg := config.Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Ledger.Backend != config.LedgerBolt {
		t.Errorf("expected default ledger backend bolt, got %s", cfg.Ledger.Backend)
	}
	if cfg.Ledger.DataDir != "./data" {
		t.Errorf("expected default data_dir ./data, got %s", cfg.Ledger.DataDir)
	}
	if cfg.SelfDestruct.Countdown() != 3*time.Second {
		t.Errorf("expected 3s countdown, got %v", cfg.SelfDestruct.Countdown())
	}
	if cfg.SelfDestruct.Strict {
		t.Error("strict self-destruct must be off by default")
	}
	if cfg.Auth.Enabled {
		t.Error("auth must be disabled by default")
	}
}

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port for missing file, got %d", cfg.Server.Port)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	yaml := `
server:
  port: 9999
  host: "127.0.0.1"
ledger:
  backend: memory
  retention: "12h"
self_destruct:
  countdown_ms: 5000
  strict: true
`
	path := writeTempYAML(t, yaml)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Ledger.Backend != config.LedgerMemory {
		t.Errorf("expected memory backend, got %s", cfg.Ledger.Backend)
	}
	if d, _ := cfg.Ledger.RetentionDuration(); d != 12*time.Hour {
		t.Errorf("expected 12h retention, got %v", d)
	}
	if cfg.SelfDestruct.CountdownMs != 5000 || !cfg.SelfDestruct.Strict {
		t.Errorf("self_destruct not loaded: %+v", cfg.SelfDestruct)
	}
	// Unset fields keep their defaults.
	if cfg.Share.QRSize != 256 {
		t.Errorf("expected default qr_size 256 (unchanged), got %d", cfg.Share.QRSize)
	}
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	path := writeTempYAML(t, "server: [invalid: yaml: {{{}}")
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENCODEX_PORT", "7070")
	t.Setenv("ENCODEX_AUTH_API_KEY", "sekret")
	t.Setenv("ENCODEX_DATA_DIR", "/var/lib/encodex")
	t.Setenv("ENCODEX_REDIS_ADDR", "redis:6379")
	t.Setenv("ENCODEX_BASE_URL", "https://encodex.example/")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port: got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "sekret" {
		t.Errorf("auth: got %+v", cfg.Auth)
	}
	if cfg.Ledger.DataDir != "/var/lib/encodex" {
		t.Errorf("data_dir: got %s", cfg.Ledger.DataDir)
	}
	if cfg.Ledger.Backend != config.LedgerRedis || cfg.Ledger.RedisAddr != "redis:6379" {
		t.Errorf("ledger: got %+v", cfg.Ledger)
	}
	if cfg.Share.BaseURL != "https://encodex.example/" {
		t.Errorf("base_url: got %s", cfg.Share.BaseURL)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := config.Default().Validate(); err != nil {
		t.Errorf("Default config should be valid, got: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*config.Config){
		"port 0":              func(c *config.Config) { c.Server.Port = 0 },
		"port 99999":          func(c *config.Config) { c.Server.Port = 99999 },
		"auth without key":    func(c *config.Config) { c.Auth.Enabled = true },
		"negative rps":        func(c *config.Config) { c.RateLimit.RPS = -1 },
		"zero burst":          func(c *config.Config) { c.RateLimit.Burst = 0 },
		"unknown backend":     func(c *config.Config) { c.Ledger.Backend = "etcd" },
		"bolt without dir":    func(c *config.Config) { c.Ledger.DataDir = "" },
		"redis without addr":  func(c *config.Config) { c.Ledger.Backend = config.LedgerRedis; c.Ledger.RedisAddr = "" },
		"bad retention":       func(c *config.Config) { c.Ledger.Retention = "forever" },
		"zero prune interval": func(c *config.Config) { c.Ledger.PruneInterval = "0s" },
		"negative countdown":  func(c *config.Config) { c.SelfDestruct.CountdownMs = -1 },
		"tiny qr":             func(c *config.Config) { c.Share.QRSize = 10 },
		"bad log level":       func(c *config.Config) { c.Log.Level = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30d": 30 * 24 * time.Hour,
		"1h":  time.Hour,
		"90s": 90 * time.Second,
	}
	for in, want := range cases {
		got, err := config.ParseDuration(in)
		if err != nil || got != want {
			t.Errorf("ParseDuration(%q): want %v, got %v (%v)", in, want, got, err)
		}
	}
	for _, in := range []string{"", "xd", "3 weeks"} {
		if _, err := config.ParseDuration(in); err == nil {
			t.Errorf("ParseDuration(%q): expected error", in)
		}
	}
}

// writeTempYAML writes content to a temp file and returns its path.
func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writeTempYAML: %v", err)
	}
	return path
}
