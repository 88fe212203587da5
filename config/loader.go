package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the NETCONSOLE_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

const envPrefix = "NETCONSOLE_"

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty,
// well-formed env vars override the existing value.  Call it BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	// Console server
	if v := env("BIND"); v != "" {
		cfg.BindAddress = v
	}
	if v, ok := envInt("PORT"); ok && v >= 0 {
		cfg.Port = v
	}
	if v, ok := envInt("MAX_SESSIONS"); ok && v > 0 {
		cfg.MaxSessions = v
	}
	if v, ok := envInt("MAX_IDLE"); ok {
		cfg.MaxIdleSeconds = v
	}
	if v, ok := envInt("REAP_INTERVAL"); ok && v >= 0 {
		cfg.ReapInterval = secondsDuration(v)
	}
	if v := env("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	// Attach client
	if v := env("ATTACH"); v != "" {
		cfg.AttachAddr = v
	}
	if v, ok := envInt("TIMEOUT"); ok && v > 0 {
		cfg.Timeout = secondsDuration(v)
	}

	// Output
	if v, ok := envInt("VERBOSE"); ok && v > 0 {
		cfg.Verbose = v
	}
	if envBool("DRY_RUN") {
		cfg.DryRun = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func env(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func envInt(key string) (int, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(env(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
