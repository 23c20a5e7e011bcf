package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds all runtime settings for the adminkit API.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type AuthConfig struct {
	Secret    string        `yaml:"secret"`
	Issuer    string        `yaml:"issuer"`
	AccessTTL time.Duration `yaml:"access_ttl"`
}

type SessionConfig struct {
	// SweepSchedule is a cron expression controlling expired-session cleanup.
	SweepSchedule string `yaml:"sweep_schedule"`
	// ConcurrentThreshold is the number of active sessions above which a
	// concurrent-session event is emitted on login. Zero disables detection.
	ConcurrentThreshold int `yaml:"concurrent_threshold"`
}

type RateLimitConfig struct {
	Burst     int `yaml:"burst"`
	PerSecond int `yaml:"per_second"`
}

// Load builds the configuration: defaults, then the optional YAML file, then
// environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:    "adminkit",
			AccessTTL: 24 * time.Hour,
		},
		Session: SessionConfig{
			SweepSchedule:       "@every 15m",
			ConcurrentThreshold: 5,
		},
		RateLimit: RateLimitConfig{
			Burst:     20,
			PerSecond: 10,
		},
	}

	if path != "" {
		data, err := os.ReadFile(os.ExpandEnv(path))
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("ADMINKIT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("ADMINKIT_PG_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("ADMINKIT_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("ADMINKIT_AUTH_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv("ADMINKIT_ACCESS_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ADMINKIT_ACCESS_TTL: %s", v)
		}
		cfg.Auth.AccessTTL = ttl
	}
	if v := os.Getenv("ADMINKIT_SESSION_SWEEP"); v != "" {
		cfg.Session.SweepSchedule = v
	}
	if v := os.Getenv("ADMINKIT_SESSION_CONCURRENT_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid ADMINKIT_SESSION_CONCURRENT_THRESHOLD: %s", v)
		}
		cfg.Session.ConcurrentThreshold = n
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Auth.AccessTTL <= 0 {
		return fmt.Errorf("auth.access_ttl must be positive")
	}
	if c.Session.SweepSchedule == "" {
		return fmt.Errorf("session.sweep_schedule is required")
	}
	if c.RateLimit.Burst <= 0 || c.RateLimit.PerSecond <= 0 {
		return fmt.Errorf("rate_limit.burst and rate_limit.per_second must be positive")
	}
	return nil
}
