// Package config defines the runtime configuration for the netconsole
// binary: serve mode embeds a console server, attach mode talks to one.
package config

import (
	"fmt"
	"time"

	"netconsole/internal/errors"
	"netconsole/util"
)

// Config holds every tuneable for one netconsole run.
type Config struct {
	// ── Console server ───────────────────────────────────────────────
	BindAddress    string
	Port           int
	MaxSessions    int
	MaxIdleSeconds int           // ≤0 disables idle eviction
	ReapInterval   time.Duration // 0: evict lazily on accept only
	MetricsAddr    string        // host:port for /metrics, "" disables

	// ── Attach client ────────────────────────────────────────────────
	AttachAddr string // host:port of a running console
	Command    string // -c: one-shot command line
	Timeout    time.Duration

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	DryRun  bool
}

// New returns a Config populated with the defaults.
func New() *Config {
	return &Config{
		BindAddress:    DefaultBindAddress,
		Port:           DefaultPort,
		MaxSessions:    DefaultMaxSessions,
		MaxIdleSeconds: DefaultMaxIdleSeconds,
		Timeout:        DefaultConnTimeout,
	}
}

// Attach reports whether the configuration selects attach mode.
func (c *Config) Attach() bool { return c.AttachAddr != "" }

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Failures are *errors.ConfigError values carrying a hint for the user.
func (c *Config) Validate() error {
	if c.Attach() {
		return c.validateAttach()
	}
	return c.validateServe()
}

func (c *Config) validateServe() error {
	if c.Port < 0 || c.Port > 65535 {
		return &errors.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "port out of range 0-65535",
			Hint:    "use 0 to let the kernel pick a free port",
		}
	}
	if c.MaxSessions < 1 {
		return &errors.ConfigError{
			Field:   "max-sessions",
			Value:   c.MaxSessions,
			Message: "at least one session must be allowed",
			Hint:    fmt.Sprintf("the default is %d", DefaultMaxSessions),
		}
	}
	if c.ReapInterval < 0 {
		return &errors.ConfigError{
			Field:   "reap-interval",
			Value:   c.ReapInterval,
			Message: "interval cannot be negative",
			Hint:    "use 0 to evict only when a connection arrives",
		}
	}
	if c.ReapInterval > 0 && c.MaxIdleSeconds <= 0 {
		return &errors.ConfigError{
			Field:   "reap-interval",
			Value:   c.ReapInterval,
			Message: "periodic eviction needs an idle limit",
			Hint:    "set --max-idle to a positive number of seconds",
		}
	}
	if c.MetricsAddr != "" {
		if _, _, err := util.SplitAddr(c.MetricsAddr); err != nil {
			return &errors.ConfigError{
				Field:   "metrics-addr",
				Value:   c.MetricsAddr,
				Message: err.Error(),
				Hint:    "expected host:port, e.g. 127.0.0.1:9100",
			}
		}
	}
	if c.Command != "" {
		return &errors.ConfigError{
			Field:   "command",
			Value:   c.Command,
			Message: "a one-shot command needs a console to attach to",
			Hint:    "add -a host:port",
		}
	}
	return nil
}

func (c *Config) validateAttach() error {
	if _, _, err := util.SplitAddr(c.AttachAddr); err != nil {
		return &errors.ConfigError{
			Field:   "attach",
			Value:   c.AttachAddr,
			Message: err.Error(),
			Hint:    "expected host:port, e.g. 127.0.0.1:7070",
		}
	}
	if c.Timeout < 0 {
		return &errors.ConfigError{
			Field:   "timeout",
			Value:   c.Timeout,
			Message: "timeout cannot be negative",
		}
	}
	if c.MetricsAddr != "" {
		return &errors.ConfigError{
			Field:   "metrics-addr",
			Value:   c.MetricsAddr,
			Message: "metrics are only served by a console server",
			Hint:    "drop -a to run a server",
		}
	}
	return nil
}
