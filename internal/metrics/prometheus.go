package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "netconsole"

// Register exposes the collector's counters to Prometheus.  The
// metrics are function-backed, so they always report the live atomic
// values and cost nothing until scraped.
func (c *Collector) Register(reg prometheus.Registerer) error {
	if c == nil || reg == nil {
		return nil
	}

	counter := func(subsystem, name, help string, load func() int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(load()) })
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of currently open console sessions",
		}, func() float64 { return float64(c.ActiveSessions()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the console server started",
		}, func() float64 { return c.Uptime().Seconds() }),

		counter("sessions", "opened_total", "Total number of admitted console sessions", c.TotalSessions),
		counter("sessions", "refused_total", "Connections refused because the session limit was reached", c.RefusedSessions),
		counter("sessions", "evicted_total", "Sessions dropped from tracking after closing or idling", c.EvictedSessions),
		counter("commands", "executed_total", "Command lines dispatched to the registry", c.TotalCommands),
		counter("commands", "failed_total", "Command handlers that returned an error or panicked", c.FailedCommands),
		counter("commands", "unsupported_total", "Command lines naming no registered command", c.UnsupportedCommands),
		counter("accept", "errors_total", "Transient accept failures", c.AcceptErrors),
	}

	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}
