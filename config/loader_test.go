package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv_Server(t *testing.T) {
	t.Setenv("NETCONSOLE_BIND", "0.0.0.0")
	t.Setenv("NETCONSOLE_PORT", "8080")
	t.Setenv("NETCONSOLE_MAX_SESSIONS", "3")
	t.Setenv("NETCONSOLE_MAX_IDLE", "60")
	t.Setenv("NETCONSOLE_REAP_INTERVAL", "15")
	t.Setenv("NETCONSOLE_METRICS_ADDR", "127.0.0.1:9100")

	cfg := New()
	LoadFromEnv(cfg)

	if cfg.BindAddress != "0.0.0.0" {
		t.Errorf("BindAddress = %q", cfg.BindAddress)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.MaxSessions != 3 {
		t.Errorf("MaxSessions = %d, want 3", cfg.MaxSessions)
	}
	if cfg.MaxIdleSeconds != 60 {
		t.Errorf("MaxIdleSeconds = %d, want 60", cfg.MaxIdleSeconds)
	}
	if cfg.ReapInterval != 15*time.Second {
		t.Errorf("ReapInterval = %v, want 15s", cfg.ReapInterval)
	}
	if cfg.MetricsAddr != "127.0.0.1:9100" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
}

func TestLoadFromEnv_Attach(t *testing.T) {
	t.Setenv("NETCONSOLE_ATTACH", "db-1:7070")
	t.Setenv("NETCONSOLE_TIMEOUT", "3")

	cfg := New()
	LoadFromEnv(cfg)

	if !cfg.Attach() || cfg.AttachAddr != "db-1:7070" {
		t.Errorf("AttachAddr = %q", cfg.AttachAddr)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", cfg.Timeout)
	}
}

func TestLoadFromEnv_IdleCanBeDisabled(t *testing.T) {
	t.Setenv("NETCONSOLE_MAX_IDLE", "0")
	cfg := New()
	LoadFromEnv(cfg)
	if cfg.MaxIdleSeconds != 0 {
		t.Errorf("MaxIdleSeconds = %d, want 0", cfg.MaxIdleSeconds)
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	for _, v := range []string{"1", "true", "yes", "TRUE", "Yes"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("NETCONSOLE_DRY_RUN", v)
			cfg := New()
			LoadFromEnv(cfg)
			if !cfg.DryRun {
				t.Error("DryRun should be true")
			}
		})
	}
	for _, v := range []string{"0", "false", "no", "maybe"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("NETCONSOLE_DRY_RUN", v)
			cfg := New()
			LoadFromEnv(cfg)
			if cfg.DryRun {
				t.Error("DryRun should be false")
			}
		})
	}
}

func TestLoadFromEnv_Verbose(t *testing.T) {
	t.Setenv("NETCONSOLE_VERBOSE", "2")
	cfg := New()
	LoadFromEnv(cfg)
	if cfg.Verbose != 2 {
		t.Errorf("Verbose = %d, want 2", cfg.Verbose)
	}
}

// Malformed values leave the defaults in place.
func TestLoadFromEnv_Malformed(t *testing.T) {
	t.Setenv("NETCONSOLE_PORT", "http")
	t.Setenv("NETCONSOLE_MAX_SESSIONS", "-4")
	t.Setenv("NETCONSOLE_TIMEOUT", "soon")
	t.Setenv("NETCONSOLE_REAP_INTERVAL", "-1")

	cfg := New()
	LoadFromEnv(cfg)

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want default %d", cfg.Port, DefaultPort)
	}
	if cfg.MaxSessions != DefaultMaxSessions {
		t.Errorf("MaxSessions = %d, want default %d", cfg.MaxSessions, DefaultMaxSessions)
	}
	if cfg.Timeout != DefaultConnTimeout {
		t.Errorf("Timeout = %v, want default %v", cfg.Timeout, DefaultConnTimeout)
	}
	if cfg.ReapInterval != 0 {
		t.Errorf("ReapInterval = %v, want 0", cfg.ReapInterval)
	}
}

func TestLoadFromEnv_Empty(t *testing.T) {
	t.Setenv("NETCONSOLE_BIND", "")
	cfg := New()
	LoadFromEnv(cfg)
	if cfg.BindAddress != DefaultBindAddress {
		t.Errorf("empty env should not override: BindAddress = %q", cfg.BindAddress)
	}
}
