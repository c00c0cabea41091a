// Package config holds all configuration types and loading logic for the
// encodex server and CLI.
// Config structure never shrinks: fields are only added, never renamed or removed.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for an encodex server instance.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Auth         AuthConfig         `yaml:"auth"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Ledger       LedgerConfig       `yaml:"ledger"`
	SelfDestruct SelfDestructConfig `yaml:"self_destruct"`
	Share        ShareConfig        `yaml:"share"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig holds network settings for the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// MaxBodyKB caps request bodies on the JSON endpoints.
	MaxBodyKB int `yaml:"max_body_kb"`
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
}

// RateLimitConfig sets the per-client-IP token bucket.
type RateLimitConfig struct {
	// RPS is requests per second per IP. Zero disables limiting.
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// LedgerBackend selects where self-destruct records live.
type LedgerBackend string

const (
	LedgerMemory LedgerBackend = "memory" // lost on restart
	LedgerBolt   LedgerBackend = "bolt"   // single file under data_dir, the default
	LedgerRedis  LedgerBackend = "redis"  // shared between server replicas
)

// LedgerConfig controls the self-destruct ledger.
type LedgerConfig struct {
	Backend   LedgerBackend `yaml:"backend"`
	DataDir   string        `yaml:"data_dir"`
	RedisAddr string        `yaml:"redis_addr"`
	// Retention is how long a record is kept after registration ("30d", "12h").
	Retention string `yaml:"retention"`
	// PruneInterval is how often expired records are swept.
	PruneInterval string `yaml:"prune_interval"`
}

// RetentionDuration parses Retention.
func (l LedgerConfig) RetentionDuration() (time.Duration, error) {
	return ParseDuration(l.Retention)
}

// PruneEvery parses PruneInterval.
func (l LedgerConfig) PruneEvery() (time.Duration, error) {
	return ParseDuration(l.PruneInterval)
}

// SelfDestructConfig controls how a viewed message disappears.
type SelfDestructConfig struct {
	// CountdownMs is the delay between display and destruction.
	CountdownMs int `yaml:"countdown_ms"`
	// Strict refuses any second view, even from a different session.
	Strict bool `yaml:"strict"`
}

// Countdown returns CountdownMs as a duration.
func (s SelfDestructConfig) Countdown() time.Duration {
	return time.Duration(s.CountdownMs) * time.Millisecond
}

// ShareConfig controls share links and QR codes.
type ShareConfig struct {
	// BaseURL is the decoder page that share links point to.
	BaseURL string `yaml:"base_url"`
	// QRSize is the side of generated QR PNGs in pixels.
	QRSize int `yaml:"qr_size"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns a Config populated with safe, sensible defaults.
// It is the canonical source of truth for default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8080,
			MaxBodyKB: 64,
		},
		Auth: AuthConfig{
			Enabled: false,
			APIKey:  "",
		},
		RateLimit: RateLimitConfig{
			RPS:   50,
			Burst: 100,
		},
		Ledger: LedgerConfig{
			Backend:       LedgerBolt,
			DataDir:       "./data",
			RedisAddr:     "localhost:6379",
			Retention:     "30d",
			PruneInterval: "1h",
		},
		SelfDestruct: SelfDestructConfig{
			CountdownMs: 3_000,
			Strict:      false,
		},
		Share: ShareConfig{
			BaseURL: "http://localhost:8080/",
			QRSize:  256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file at path and overlays it on top of Default().
// If the file does not exist the default config is returned without error,
// making it easy to run encodex with no config file at all.
//
// After loading the file, environment variables are applied as overrides:
//
//	ENCODEX_AUTH_API_KEY   sets auth.api_key and enables auth (auth.enabled = true)
//	ENCODEX_DATA_DIR       sets ledger.data_dir
//	ENCODEX_PORT           sets server.port
//	ENCODEX_REDIS_ADDR     sets ledger.redis_addr and selects the redis backend
//	ENCODEX_BASE_URL       sets share.base_url
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays environment variable overrides onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ENCODEX_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
		cfg.Auth.Enabled = true
	}
	if v := os.Getenv("ENCODEX_DATA_DIR"); v != "" {
		cfg.Ledger.DataDir = v
	}
	if v := os.Getenv("ENCODEX_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("ENCODEX_REDIS_ADDR"); v != "" {
		cfg.Ledger.RedisAddr = v
		cfg.Ledger.Backend = LedgerRedis
	}
	if v := os.Getenv("ENCODEX_BASE_URL"); v != "" {
		cfg.Share.BaseURL = v
	}
}

// Validate checks that the config values are consistent and within acceptable
// ranges. It returns the first error found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Server.MaxBodyKB < 1 {
		return errors.New("server.max_body_kb must be at least 1")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.RateLimit.RPS < 0 {
		return errors.New("rate_limit.rps must be >= 0")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return errors.New("rate_limit.burst must be at least 1 when rate limiting is on")
	}
	switch c.Ledger.Backend {
	case LedgerMemory:
	case LedgerBolt:
		if c.Ledger.DataDir == "" {
			return errors.New("ledger.data_dir must not be empty for the bolt backend")
		}
	case LedgerRedis:
		if c.Ledger.RedisAddr == "" {
			return errors.New("ledger.redis_addr must not be empty for the redis backend")
		}
	default:
		return errors.New(`ledger.backend must be one of "memory", "bolt", "redis"`)
	}
	if d, err := c.Ledger.RetentionDuration(); err != nil || d <= 0 {
		return fmt.Errorf("ledger.retention %q must be a positive duration", c.Ledger.Retention)
	}
	if d, err := c.Ledger.PruneEvery(); err != nil || d <= 0 {
		return fmt.Errorf("ledger.prune_interval %q must be a positive duration", c.Ledger.PruneInterval)
	}
	if c.SelfDestruct.CountdownMs < 0 {
		return errors.New("self_destruct.countdown_ms must be >= 0")
	}
	if c.Share.QRSize < 64 || c.Share.QRSize > 2048 {
		return errors.New("share.qr_size must be between 64 and 2048")
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return errors.New("metrics.port must be between 1 and 65535")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New(`log.level must be one of "debug", "info", "warn", "error"`)
	}
	return nil
}

// ParseDuration is time.ParseDuration plus a "d" suffix for whole days.
func ParseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("config: invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration %q", s)
	}
	return d, nil
}
