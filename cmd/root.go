// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"netconsole/config"
	"netconsole/internal/core"
	"netconsole/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X netconsole/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the selected netconsole mode.
func Execute(ctx context.Context, args []string) error {
	// Environment first, so flags parsed below take precedence.
	cfg := config.New()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("netconsole", flag.ContinueOnError)

	// ── console server ───────────────────────────────────────────
	fs.StringVarP(&cfg.BindAddress, "bind", "b", cfg.BindAddress, "Address to bind the console to")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Console TCP port (0 picks a free port)")
	fs.IntVarP(&cfg.MaxSessions, "max-sessions", "m", cfg.MaxSessions, "Maximum concurrent sessions")
	fs.IntVarP(&cfg.MaxIdleSeconds, "max-idle", "i", cfg.MaxIdleSeconds, "Evict sessions idle longer than this many seconds (0 disables)")

	reapSec := int(cfg.ReapInterval / time.Second)
	fs.IntVar(&reapSec, "reap-interval", reapSec, "Also evict inactive sessions every N seconds (0: only on connect)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on host:port")

	// ── attach client ────────────────────────────────────────────
	fs.StringVarP(&cfg.AttachAddr, "attach", "a", cfg.AttachAddr, "Attach to the console at host:port")
	fs.StringVarP(&cfg.Command, "command", "c", cfg.Command, "Run one command line and exit (with -a)")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Dial and reply timeout in seconds (with -a)")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Validate the configuration, print the plan and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("netconsole %s\n", version)
		return nil
	}
	if rest := fs.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", rest[0])
	}

	cfg.ReapInterval = time.Duration(reapSec) * time.Second
	cfg.Timeout = time.Duration(timeoutSec) * time.Second

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		fmt.Println(mode.Describe())
		return nil
	}
	return mode.Run(ctx)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `netconsole – embeddable TCP command console v%s

Serves a line-oriented command console, or attaches to one.

Usage:
  netconsole [options]                        Serve a console
  netconsole -a <host:port> [options]         Attach interactively
  netconsole -a <host:port> -c <command>      Run one command

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  NETCONSOLE_BIND, NETCONSOLE_PORT, NETCONSOLE_MAX_SESSIONS,
  NETCONSOLE_MAX_IDLE, NETCONSOLE_REAP_INTERVAL, NETCONSOLE_METRICS_ADDR,
  NETCONSOLE_ATTACH, NETCONSOLE_TIMEOUT, NETCONSOLE_VERBOSE,
  NETCONSOLE_DRY_RUN                          Flags take precedence

Examples:
  netconsole -p 7070 -m 4 -i 600              Console on 127.0.0.1:7070
  netconsole --metrics-addr 127.0.0.1:9100    With Prometheus metrics
  netconsole -a 127.0.0.1:7070                Interactive session
  netconsole -a 127.0.0.1:7070 -c sessions    One-shot command
  printf 'ping\nquit\n' | netconsole -a db:7070
`)
}
