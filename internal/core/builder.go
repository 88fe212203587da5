package core

import (
	"os"

	"golang.org/x/term"

	"netconsole/config"
	"netconsole/console"
	"netconsole/internal/metrics"
	"netconsole/internal/retry"
	"netconsole/internal/transport"
	"netconsole/util"
)

// Build constructs the appropriate Mode from the given configuration.
// The configuration is expected to have passed Validate.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.Attach() {
		return buildAttach(cfg, logger), nil
	}
	return buildServe(cfg, logger), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, logger *util.Logger) *ServeMode {
	collector := metrics.New()
	return &ServeMode{
		Options: console.Options{
			Address:        cfg.BindAddress,
			Port:           cfg.Port,
			MaxSessions:    cfg.MaxSessions,
			MaxIdleSeconds: cfg.MaxIdleSeconds,
			Logger:         logger,
			Metrics:        collector,
		},
		ReapInterval: cfg.ReapInterval,
		MetricsAddr:  cfg.MetricsAddr,
		Logger:       logger,
	}
}

func buildAttach(cfg *config.Config, logger *util.Logger) *AttachMode {
	return &AttachMode{
		Dialer:      buildDialer(cfg, logger),
		Address:     cfg.AttachAddr,
		Command:     cfg.Command,
		Timeout:     cfg.Timeout,
		Interactive: cfg.Command == "" && term.IsTerminal(int(os.Stdin.Fd())),
		Logger:      logger,
	}
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer dials over TCP and keeps retrying while the console
// refuses connections.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	return &transport.RetryDialer{
		Dialer: &transport.TCPDialer{Timeout: cfg.Timeout},
		Backoff: &retry.Backoff{
			InitialDelay: config.DefaultDialBackoff,
			MaxDelay:     config.DefaultMaxDialBackoff,
			Multiplier:   2,
			MaxAttempts:  config.DefaultDialAttempts,
			Jitter:       true,
		},
		Logger: logger,
	}
}
