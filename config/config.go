// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/ritan/domain/engine"
	"github.com/artpar/ritan/domain/quota"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Database  DatabaseConfig          `yaml:"database"`
	Auth      AuthConfig              `yaml:"auth"`
	Admission AdmissionConfig         `yaml:"admission"`
	Billing   BillingConfig           `yaml:"billing"`
	Engines   map[string]EngineConfig `yaml:"engines"`
	Usage     UsageConfig             `yaml:"usage"`
	RateLimit RateLimitConfig         `yaml:"rate_limit"`
	Logging   LoggingConfig           `yaml:"logging"`
	Metrics   MetricsConfig           `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // per-request deadline, engine calls included
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path
}

// AuthConfig configures key digests and dashboard sessions.
type AuthConfig struct {
	DigestAlgorithm string        `yaml:"digest_algorithm"` // "sha256" or "blake2b"
	DigestPepper    string        `yaml:"digest_pepper,omitempty"`
	SessionSecret   string        `yaml:"session_secret,omitempty"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
}

// AdmissionConfig configures tier ceilings and the counter backend.
type AdmissionConfig struct {
	Store string      `yaml:"store"` // "sqlite", "redis" or "memory"
	Free  int64       `yaml:"free"`
	Pro   int64       `yaml:"pro"`
	Redis RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig configures the Redis counter store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// BillingConfig configures payment verification.
type BillingConfig struct {
	PaymentSecret string `yaml:"payment_secret,omitempty"` // empty disables upgrades
}

// EngineConfig configures one engine.
// Use "echo" for the built-in development engine or "http" to forward calls.
// The mail engine also accepts "smtp" to deliver through a relay.
type EngineConfig struct {
	Mode             string        `yaml:"mode"`
	URL              string        `yaml:"url,omitempty"`
	Token            string        `yaml:"token,omitempty"`
	Timeout          time.Duration `yaml:"timeout,omitempty"`
	Cost             *int          `yaml:"cost,omitempty"`
	Admission        *bool         `yaml:"admission,omitempty"`
	FailureThreshold uint32        `yaml:"failure_threshold,omitempty"`
	OpenTimeout      time.Duration `yaml:"open_timeout,omitempty"`
	SMTP             SMTPConfig    `yaml:"smtp,omitempty"`
}

// SMTPConfig configures the mail engine's relay.
type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	From        string `yaml:"from"`
	UseTLS      bool   `yaml:"use_tls"`
	UseImplicit bool   `yaml:"use_implicit"`
}

// UsageConfig configures the usage recorder.
type UsageConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxBuffered   int           `yaml:"max_buffered"`
}

// RateLimitConfig configures the per-IP request guard.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	RITAN_SERVER_HOST          - Server host (default: 0.0.0.0)
//	RITAN_SERVER_PORT          - Server port (default: 8080)
//	RITAN_DATABASE_DSN         - Database path (default: ritan.db)
//	RITAN_DIGEST_ALGORITHM     - sha256 or blake2b (default: sha256)
//	RITAN_DIGEST_PEPPER        - Key for blake2b digests
//	RITAN_SESSION_SECRET       - HS256 secret for dashboard session tokens
//	RITAN_PAYMENT_SECRET       - HMAC secret for payment proofs
//	RITAN_ADMISSION_STORE      - sqlite, redis or memory (default: sqlite)
//	RITAN_TIER_FREE_LIMIT      - Free tier monthly ceiling (default: 100)
//	RITAN_TIER_PRO_LIMIT       - Pro tier monthly ceiling (default: 10000)
//	RITAN_REDIS_ADDR           - Redis address for the counter store
//	RITAN_REDIS_PASSWORD       - Redis password
//	RITAN_RATELIMIT_ENABLED    - Enable the per-IP guard (default: false)
//	RITAN_RATELIMIT_RPM        - Requests per minute per IP
//	RITAN_LOG_LEVEL            - debug, info, warn, error (default: info)
//	RITAN_LOG_FORMAT           - json or console (default: json)
//	RITAN_METRICS_ENABLED      - Enable /metrics endpoint
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads from path when the file exists, otherwise from the
// environment alone.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies RITAN_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("RITAN_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("RITAN_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RITAN_SERVER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}

	if v := os.Getenv("RITAN_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Auth configuration
	if v := os.Getenv("RITAN_DIGEST_ALGORITHM"); v != "" {
		cfg.Auth.DigestAlgorithm = v
	}
	if v := os.Getenv("RITAN_DIGEST_PEPPER"); v != "" {
		cfg.Auth.DigestPepper = v
	}
	if v := os.Getenv("RITAN_SESSION_SECRET"); v != "" {
		cfg.Auth.SessionSecret = v
	}
	if v := os.Getenv("RITAN_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.SessionTTL = d
		}
	}

	if v := os.Getenv("RITAN_PAYMENT_SECRET"); v != "" {
		cfg.Billing.PaymentSecret = v
	}

	// Admission configuration
	if v := os.Getenv("RITAN_ADMISSION_STORE"); v != "" {
		cfg.Admission.Store = v
	}
	if v := os.Getenv("RITAN_TIER_FREE_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Admission.Free = n
		}
	}
	if v := os.Getenv("RITAN_TIER_PRO_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Admission.Pro = n
		}
	}
	if v := os.Getenv("RITAN_REDIS_ADDR"); v != "" {
		cfg.Admission.Redis.Addr = v
	}
	if v := os.Getenv("RITAN_REDIS_PASSWORD"); v != "" {
		cfg.Admission.Redis.Password = v
	}

	// Rate limit configuration
	if v := os.Getenv("RITAN_RATELIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("RITAN_RATELIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.RequestsPerMinute = n
		}
	}

	// Logging configuration
	if v := os.Getenv("RITAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RITAN_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("RITAN_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 45 * time.Second
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "ritan.db"
	}

	if cfg.Auth.DigestAlgorithm == "" {
		cfg.Auth.DigestAlgorithm = "sha256"
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 24 * time.Hour
	}

	if cfg.Admission.Store == "" {
		cfg.Admission.Store = "sqlite"
	}
	if cfg.Admission.Free == 0 {
		cfg.Admission.Free = quota.DefaultFreeCeiling
	}
	if cfg.Admission.Pro == 0 {
		cfg.Admission.Pro = quota.DefaultProCeiling
	}
	if cfg.Admission.Redis.KeyPrefix == "" {
		cfg.Admission.Redis.KeyPrefix = "ritan:admission"
	}

	if cfg.Engines == nil {
		cfg.Engines = make(map[string]EngineConfig)
	}
	for _, k := range engine.Kinds() {
		ec := cfg.Engines[string(k)]
		if ec.Mode == "" {
			ec.Mode = "echo"
		}
		cfg.Engines[string(k)] = ec
	}

	if cfg.Usage.BatchSize == 0 {
		cfg.Usage.BatchSize = 100
	}
	if cfg.Usage.FlushInterval == 0 {
		cfg.Usage.FlushInterval = 5 * time.Second
	}
	if cfg.Usage.MaxBuffered == 0 {
		cfg.Usage.MaxBuffered = 10000
	}

	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	switch cfg.Auth.DigestAlgorithm {
	case "sha256":
	case "blake2b":
		if cfg.Auth.DigestPepper == "" {
			return fmt.Errorf("auth.digest_pepper is required when auth.digest_algorithm is 'blake2b'")
		}
	default:
		return fmt.Errorf("auth.digest_algorithm must be 'sha256' or 'blake2b', got %q", cfg.Auth.DigestAlgorithm)
	}
	if cfg.Auth.SessionSecret != "" && len(cfg.Auth.SessionSecret) < 32 {
		return fmt.Errorf("auth.session_secret must be at least 32 characters")
	}

	validStores := map[string]bool{"sqlite": true, "redis": true, "memory": true}
	if !validStores[cfg.Admission.Store] {
		return fmt.Errorf("admission.store must be one of: sqlite, redis, memory")
	}
	if cfg.Admission.Store == "redis" && cfg.Admission.Redis.Addr == "" {
		return fmt.Errorf("admission.redis.addr is required when admission.store is 'redis'")
	}
	if cfg.Admission.Free < 0 || cfg.Admission.Pro < 0 {
		return fmt.Errorf("admission ceilings must not be negative")
	}

	names := make([]string, 0, len(cfg.Engines))
	for name := range cfg.Engines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ec := cfg.Engines[name]
		if _, err := engine.ParseKind(name); err != nil {
			return fmt.Errorf("engines.%s: %w", name, err)
		}
		switch ec.Mode {
		case "echo":
		case "http":
			if ec.URL == "" {
				return fmt.Errorf("engines.%s.url is required when mode is 'http'", name)
			}
		case "smtp":
			if name != string(engine.KindMail) {
				return fmt.Errorf("engines.%s.mode 'smtp' is only valid for the mail engine", name)
			}
			if ec.SMTP.Host == "" || ec.SMTP.From == "" {
				return fmt.Errorf("engines.%s.smtp.host and engines.%s.smtp.from are required", name, name)
			}
		default:
			return fmt.Errorf("engines.%s.mode must be 'echo', 'http' or 'smtp', got %q", name, ec.Mode)
		}
		if ec.Cost != nil && *ec.Cost < 0 {
			return fmt.Errorf("engines.%s.cost must not be negative", name)
		}
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must not be negative")
	}

	return nil
}

// Ceilings returns the tier ceilings.
func (c *Config) Ceilings() quota.Ceilings {
	return quota.Ceilings{
		quota.TierFree: c.Admission.Free,
		quota.TierPro:  c.Admission.Pro,
	}
}

// EngineSpecs returns the metering table with configured overrides applied.
func (c *Config) EngineSpecs() map[engine.Kind]engine.Spec {
	specs := engine.DefaultSpecs()
	for name, ec := range c.Engines {
		k := engine.Kind(name)
		spec, ok := specs[k]
		if !ok {
			continue
		}
		if ec.Cost != nil {
			spec.Cost = *ec.Cost
		}
		if ec.Admission != nil {
			spec.RequiresAdmission = *ec.Admission
		}
		specs[k] = spec
	}
	return specs
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
