package core

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"netconsole/config"
	"netconsole/console"
	"netconsole/internal/errors"
	"netconsole/internal/metrics"
	"netconsole/util"
)

// ServeMode embeds a console server in the netconsole process and runs
// it until the context is cancelled.  The host command set is the one
// built-in host commands followed by Commands.
type ServeMode struct {
	Options console.Options

	// ReapInterval, when positive, evicts inactive sessions on a timer
	// as well as on every accepted connection.
	ReapInterval time.Duration

	// MetricsAddr, when set, serves Prometheus metrics at /metrics.
	MetricsAddr string

	// Commands are registered after the host commands.
	Commands []console.Command

	Logger *util.Logger

	// Ready, if set, is called once the console is listening.
	Ready func(console net.Addr, metrics net.Addr)
}

// Describe summarises the server configuration.
func (m *ServeMode) Describe() string {
	idle := "off"
	if m.Options.MaxIdleSeconds > 0 {
		idle = fmt.Sprintf("%ds", m.Options.MaxIdleSeconds)
	}
	s := fmt.Sprintf("serve console on %s (max sessions %d, idle eviction %s",
		util.FormatAddr(m.Options.Address, m.Options.Port), m.Options.MaxSessions, idle)
	if m.ReapInterval > 0 {
		s += fmt.Sprintf(", reaper every %s", m.ReapInterval)
	}
	s += ")"
	if m.MetricsAddr != "" {
		s += "; metrics on http://" + m.MetricsAddr + "/metrics"
	}
	return s
}

// Run starts the console, the optional reaper and the optional metrics
// endpoint, then blocks until ctx is done and tears everything down.
func (m *ServeMode) Run(ctx context.Context) error {
	logger := util.OrDiscard(m.Logger)
	opts := m.Options
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}

	h := &host{started: time.Now(), metrics: opts.Metrics}
	commands := append(hostCommands(h), m.Commands...)
	srv := console.New(opts, commands)
	h.server = srv

	if err := srv.Init(); err != nil {
		return err
	}
	defer srv.Close() //nolint:errcheck

	var metricsAddr net.Addr
	if m.MetricsAddr != "" {
		stop, addr, err := serveMetrics(m.MetricsAddr, opts.Metrics, logger)
		if err != nil {
			return err
		}
		defer stop()
		metricsAddr = addr
	}

	if m.ReapInterval > 0 {
		go reap(ctx, srv, m.ReapInterval, logger)
	}

	if m.Ready != nil {
		m.Ready(srv.Addr(), metricsAddr)
	}

	<-ctx.Done()
	logger.Verbose("shutting down: %v", context.Cause(ctx))
	return srv.Close()
}

// reap evicts inactive sessions every interval until ctx is done.
func reap(ctx context.Context, srv *console.Server, interval time.Duration, logger *util.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := srv.RemoveInactiveSessions(); n > 0 {
				logger.Verbose("reaper evicted %d sessions", n)
			}
		}
	}
}

// serveMetrics exposes the collector, plus Go runtime and process
// metrics, on addr.  The returned stop function shuts the endpoint
// down gracefully.
func serveMetrics(addr string, collector *metrics.Collector, logger *util.Logger) (func(), net.Addr, error) {
	reg := prometheus.NewRegistry()
	if err := collector.Register(reg); err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, errors.Wrap("bind", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint: %v", err)
		}
	}()
	logger.Info("metrics on http://%s/metrics", ln.Addr())

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultGracePeriod)
		defer cancel()
		if err := hs.Shutdown(ctx); err != nil {
			logger.Error("metrics shutdown: %v", err)
		}
	}
	return stop, ln.Addr(), nil
}
