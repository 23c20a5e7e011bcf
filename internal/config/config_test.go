package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ADMINKIT_AUTH_SECRET", "test-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Auth.Issuer != "adminkit" || cfg.Auth.AccessTTL != 24*time.Hour {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if cfg.Session.SweepSchedule != "@every 15m" || cfg.Session.ConcurrentThreshold != 5 {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.RateLimit.Burst != 20 || cfg.RateLimit.PerSecond != 10 {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("ADMINKIT_AUTH_SECRET", "test-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9090"
  read_timeout: 5s
auth:
  issuer: "custom"
session:
  sweep_schedule: "@every 1h"
  concurrent_threshold: 3
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("file values not applied: %+v", cfg.Server)
	}
	if cfg.Auth.Issuer != "custom" {
		t.Fatalf("unexpected issuer: %s", cfg.Auth.Issuer)
	}
	if cfg.Session.ConcurrentThreshold != 3 {
		t.Fatalf("unexpected threshold: %d", cfg.Session.ConcurrentThreshold)
	}
	// Untouched values keep their defaults.
	if cfg.Server.WriteTimeout != 15*time.Second {
		t.Fatalf("default write timeout lost: %v", cfg.Server.WriteTimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
auth:
  secret: "file-secret"
  access_ttl: 1h
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ADMINKIT_AUTH_SECRET", "env-secret")
	t.Setenv("ADMINKIT_ADDR", ":7070")
	t.Setenv("ADMINKIT_ACCESS_TTL", "30m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Secret != "env-secret" {
		t.Fatalf("env did not win: %s", cfg.Auth.Secret)
	}
	if cfg.Server.Addr != ":7070" || cfg.Auth.AccessTTL != 30*time.Minute {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("ADMINKIT_AUTH_SECRET", "")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "auth.secret") {
		t.Fatalf("expected secret validation error, got %v", err)
	}
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("ADMINKIT_AUTH_SECRET", "test-secret")
	t.Setenv("ADMINKIT_ACCESS_TTL", "not-a-duration")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "ADMINKIT_ACCESS_TTL") {
		t.Fatalf("expected TTL error, got %v", err)
	}
}

func TestLoadRejectsNegativeThreshold(t *testing.T) {
	t.Setenv("ADMINKIT_AUTH_SECRET", "test-secret")
	t.Setenv("ADMINKIT_SESSION_CONCURRENT_THRESHOLD", "-1")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "CONCURRENT_THRESHOLD") {
		t.Fatalf("expected threshold error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Fatalf("expected read error, got %v", err)
	}
}
