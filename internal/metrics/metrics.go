// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of a console server.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a console server.
// A nil Collector is safe to use: all methods become no-ops.
type Collector struct {
	sessionsActive  atomic.Int64
	sessionsTotal   atomic.Int64
	sessionsRefused atomic.Int64
	sessionsEvicted atomic.Int64
	commandsTotal   atomic.Int64
	commandsFailed  atomic.Int64
	unsupported     atomic.Int64
	acceptErrors    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session gauge.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// SessionRefused records a connection turned away by admission control.
func (c *Collector) SessionRefused() {
	if c == nil {
		return
	}
	c.sessionsRefused.Add(1)
}

// SessionEvicted records a session dropped from tracking because it
// was closed or idle for too long.
func (c *Collector) SessionEvicted() {
	if c == nil {
		return
	}
	c.sessionsEvicted.Add(1)
}

// ActiveSessions returns the current number of open sessions.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// RefusedSessions returns how many connections were refused.
func (c *Collector) RefusedSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsRefused.Load()
}

// EvictedSessions returns how many sessions were evicted.
func (c *Collector) EvictedSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsEvicted.Load()
}

// ── Command metrics ──────────────────────────────────────────────────

// CommandExecuted records one dispatched command line.
func (c *Collector) CommandExecuted() {
	if c == nil {
		return
	}
	c.commandsTotal.Add(1)
}

// CommandFailed records a handler that returned an error or panicked.
func (c *Collector) CommandFailed(msg string) {
	if c == nil {
		return
	}
	c.commandsFailed.Add(1)
	c.recordError(msg)
}

// CommandUnsupported records a line naming no registered command.
func (c *Collector) CommandUnsupported() {
	if c == nil {
		return
	}
	c.unsupported.Add(1)
}

// TotalCommands returns the number of dispatched command lines.
func (c *Collector) TotalCommands() int64 {
	if c == nil {
		return 0
	}
	return c.commandsTotal.Load()
}

// FailedCommands returns the number of failed handler invocations.
func (c *Collector) FailedCommands() int64 {
	if c == nil {
		return 0
	}
	return c.commandsFailed.Load()
}

// UnsupportedCommands returns the number of unmatched command names.
func (c *Collector) UnsupportedCommands() int64 {
	if c == nil {
		return 0
	}
	return c.unsupported.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// AcceptFailed records an accept-loop error that did not stop the server.
func (c *Collector) AcceptFailed(msg string) {
	if c == nil {
		return
	}
	c.acceptErrors.Add(1)
	c.recordError(msg)
}

// AcceptErrors returns the number of transient accept failures.
func (c *Collector) AcceptErrors() int64 {
	if c == nil {
		return 0
	}
	return c.acceptErrors.Load()
}

func (c *Collector) recordError(msg string) {
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// Uptime returns the time elapsed since the collector was created.
func (c *Collector) Uptime() time.Duration {
	if c == nil {
		return 0
	}
	return time.Since(c.startTime)
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime              string `json:"uptime"`
	SessionsActive      int64  `json:"sessions_active"`
	SessionsTotal       int64  `json:"sessions_total"`
	SessionsRefused     int64  `json:"sessions_refused"`
	SessionsEvicted     int64  `json:"sessions_evicted"`
	CommandsTotal       int64  `json:"commands_total"`
	CommandsFailed      int64  `json:"commands_failed"`
	CommandsUnsupported int64  `json:"commands_unsupported"`
	AcceptErrors        int64  `json:"accept_errors"`
	LastError           string `json:"last_error,omitempty"`
	LastErrorMessage    string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:              time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive:      c.sessionsActive.Load(),
		SessionsTotal:       c.sessionsTotal.Load(),
		SessionsRefused:     c.sessionsRefused.Load(),
		SessionsEvicted:     c.sessionsEvicted.Load(),
		CommandsTotal:       c.commandsTotal.Load(),
		CommandsFailed:      c.commandsFailed.Load(),
		CommandsUnsupported: c.unsupported.Load(),
		AcceptErrors:        c.acceptErrors.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
