// Package session represents a single console connection: one
// goroutine reading command lines from the peer, answering the
// built-in quit and ping commands itself and handing everything else
// to a Dispatcher.
//
// A session owns its connection and its goroutine exclusively.  The
// server only keeps a reference for enumeration and eviction.
package session

import (
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"netconsole/internal/errors"
	"netconsole/internal/metrics"
	"netconsole/util"
)

// Built-in command names and their replies.  Both are matched before
// dispatch, so a registered command under either name is unreachable.
const (
	CommandQuit = "quit"
	CommandPing = "ping"

	Farewell = "bye bye~"
	Pong     = "pong"
)

// Dispatcher executes one command line and returns the response lines.
// It must not panic and must be safe for concurrent use by sessions.
type Dispatcher interface {
	Execute(line string) []string
}

// Options carries the optional collaborators of a Session.
type Options struct {
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Info is a point-in-time description of a session.
type Info struct {
	ID         string
	RemoteAddr string
	State      State
	Opened     time.Time
	Idle       time.Duration
}

// Session serves one console connection.
type Session struct {
	id         string
	conn       net.Conn
	dispatcher Dispatcher
	logger     *util.Logger
	metrics    *metrics.Collector

	mu      sync.Mutex // serialises Init and Close
	state   atomic.Int32
	stop    atomic.Bool
	channel *LineChannel
	done    chan struct{}

	created    time.Time    // carries the monotonic clock reading
	lastActive atomic.Int64 // nanoseconds since created
}

// New creates a Session for conn.  The session does nothing until
// Init is called.
func New(conn net.Conn, dispatcher Dispatcher, opts Options) *Session {
	id := uuid.NewString()
	return &Session{
		id:         id,
		conn:       conn,
		dispatcher: dispatcher,
		logger:     util.OrDiscard(opts.Logger).Named("session " + id[:8]),
		metrics:    opts.Metrics,
		done:       make(chan struct{}),
		created:    time.Now(),
	}
}

// Init checks that the connection is usable, marks the session active
// and starts its worker goroutine.  If the connection cannot be used
// the session goes straight to StateClosed and the cause is returned.
// Calling Init on a session that is not uninitialized does nothing.
func (s *Session) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateActive:
		return nil
	case StateClosed:
		return errors.ErrSessionClosed
	}

	if err := usable(s.conn); err != nil {
		s.logger.Error("init failed: %v", err)
		s.closeLocked()
		return err
	}

	s.channel = NewLineChannel(s.conn)
	s.touch()
	s.state.Store(int32(StateActive))
	s.metrics.SessionOpened()
	go s.serve()

	s.logger.Info("session opened, remote %s", s.conn.RemoteAddr())
	return nil
}

// usable reports why conn cannot carry a session, or nil.  Clearing
// the read deadline fails on a connection that is already closed.
func usable(conn net.Conn) error {
	if conn == nil {
		return fmt.Errorf("%w: nil connection", errors.ErrConnNotUsable)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrConnNotUsable, err)
	}
	return nil
}

// Close closes the connection and stops the worker.  It is safe to
// call from any goroutine, any number of times; only the first call
// has an effect.  Closing the connection also unblocks a worker that
// is waiting for input.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	prev := State(s.state.Swap(int32(StateClosed)))
	if prev == StateClosed {
		return
	}

	start := time.Now()
	s.stop.Store(true)
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !errors.IsClosed(err) {
			s.logger.Error("close connection: %v", err)
		}
	}

	switch prev {
	case StateActive:
		s.metrics.SessionClosed()
	case StateUninitialized:
		close(s.done) // no worker was ever started
	}

	s.logger.Info("session closed in %s", time.Since(start))
}

// serve is the worker loop.  Requests are handled strictly in arrival
// order and all output for one request is written before the next
// line is read.
func (s *Session) serve() {
	defer close(s.done)

	for !s.stop.Load() {
		line, err := s.channel.ReadLine()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.logger.Verbose("end of input stream")
			case s.stop.Load():
				// closed underneath us by Close
			default:
				s.logger.Verbose("read: %v", err)
			}
			s.Close()
			return
		}

		if !s.handle(line) {
			s.Close()
			return
		}
	}
}

// handle answers one request line and reports whether the session
// should keep going.
func (s *Session) handle(line string) bool {
	input := strings.ToLower(line)

	switch strings.TrimSpace(input) {
	case CommandQuit:
		if err := s.channel.WriteLine(Farewell); err != nil {
			s.logger.Verbose("write farewell: %v", err)
		}
		return false

	case CommandPing:
		if err := s.channel.WriteLine(Pong); err != nil {
			s.logger.Verbose("write: %v", err)
			return false
		}
		s.touch()
		return true
	}

	// Marked active before dispatch so a long-running command does not
	// count as idle time.
	s.touch()
	s.logger.Debug("execute %q", input)
	for _, out := range s.dispatcher.Execute(input) {
		if err := s.channel.WriteLine(out); err != nil {
			s.logger.Verbose("write: %v", err)
			return false
		}
	}
	s.touch()
	return true
}

func (s *Session) touch() {
	s.lastActive.Store(int64(time.Since(s.created)))
}

// ID returns the session's generated identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// IsActive reports whether the session is serving its connection.
func (s *Session) IsActive() bool { return s.State() == StateActive }

// Opened returns when the session was created.
func (s *Session) Opened() time.Time { return s.created }

// Idle returns the time since the last processed line or ping.  It is
// meaningful in every state, including after Close.
func (s *Session) Idle() time.Duration {
	idle := time.Since(s.created) - time.Duration(s.lastActive.Load())
	if idle < 0 {
		return 0
	}
	return idle
}

// IdleSeconds returns Idle truncated to whole seconds.
func (s *Session) IdleSeconds() int {
	return int(s.Idle() / time.Second)
}

// Done is closed once the worker has exited, or immediately after a
// failed Init.
func (s *Session) Done() <-chan struct{} { return s.done }

// RemoteAddr returns the peer address, or "" if unknown.
func (s *Session) RemoteAddr() string {
	if s.conn == nil || s.conn.RemoteAddr() == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	return Info{
		ID:         s.id,
		RemoteAddr: s.RemoteAddr(),
		State:      s.State(),
		Opened:     s.created,
		Idle:       s.Idle(),
	}
}

func (s *Session) String() string {
	return fmt.Sprintf("Session{id=%s, state=%s, idle=%s, remote=%s}",
		s.id, s.State(), s.Idle().Truncate(time.Millisecond), s.RemoteAddr())
}
