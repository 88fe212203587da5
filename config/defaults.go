package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultBindAddress keeps the console on loopback.  The console has
	// no authentication, so exposing it is an explicit choice.
	DefaultBindAddress = "127.0.0.1"

	// DefaultPort is the console's TCP port.
	DefaultPort = 7070

	// DefaultMaxSessions caps concurrently tracked sessions.
	DefaultMaxSessions = 10

	// DefaultMaxIdleSeconds evicts sessions idle for five minutes.
	DefaultMaxIdleSeconds = 300

	// DefaultConnTimeout bounds dialing and one-shot replies in attach
	// mode.
	DefaultConnTimeout = 10 * time.Second

	// DefaultDialAttempts is how many times attach mode dials a console
	// that refuses the connection.
	DefaultDialAttempts = 5

	// DefaultDialBackoff is the first delay between dial attempts.
	DefaultDialBackoff = 200 * time.Millisecond

	// DefaultMaxDialBackoff caps the exponential backoff between dial
	// attempts.
	DefaultMaxDialBackoff = 2 * time.Second

	// DefaultGracePeriod is how long the metrics endpoint gets to drain
	// on shutdown.
	DefaultGracePeriod = 5 * time.Second
)
