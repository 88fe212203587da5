// Package console embeds a text command console in a running process.
//
// A Server listens on a TCP port.  Every accepted connection becomes a
// session served by its own goroutine: the operator sends one command
// per line and receives zero or more response lines.  "quit" and
// "ping" are built in; every other name is looked up in the Registry
// built from the host's commands.
//
// Admission control caps the number of tracked sessions.  Closed and
// idle sessions are evicted each time a connection is accepted, or
// whenever the host calls RemoveInactiveSessions.  There is no
// background timer.
package console

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"netconsole/internal/errors"
	"netconsole/internal/metrics"
	"netconsole/internal/retry"
	"netconsole/internal/session"
	"netconsole/util"
)

// State is the lifecycle state shared by servers and sessions.
type State = session.State

// SessionInfo describes one tracked session.
type SessionInfo = session.Info

// Replies to the built-in commands.
const (
	Farewell = session.Farewell
	Pong     = session.Pong
)

const (
	// refuseWriteTimeout bounds the best-effort refusal message so a
	// peer that never reads cannot stall the accept loop.
	refuseWriteTimeout = time.Second
)

// acceptBackoff paces the accept loop while Accept keeps failing, so a
// persistent failure (EMFILE) does not spin.
var acceptBackoff = retry.Backoff{
	InitialDelay: 5 * time.Millisecond,
	MaxDelay:     time.Second,
	Multiplier:   2,
}

// Options configures a Server.
type Options struct {
	// Address is the host to bind; "" listens on every interface.
	Address string
	// Port is the TCP port; 0 picks an ephemeral port (see Addr).
	Port int
	// MaxSessions caps concurrently tracked sessions.  Values below 1
	// are raised to 1.
	MaxSessions int
	// MaxIdleSeconds evicts sessions idle for longer than this many
	// seconds.  Zero or negative disables idle eviction.
	MaxIdleSeconds int

	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Server accepts console connections and tracks their sessions.
type Server struct {
	opts     Options
	registry *Registry
	logger   *util.Logger
	metrics  *metrics.Collector

	mu         sync.Mutex // serialises Init and Close
	state      atomic.Int32
	stop       atomic.Bool
	stopCh     chan struct{} // closed by Close; wakes a backing-off accept loop
	listener   net.Listener
	acceptDone chan struct{}

	listen func(network, address string) (net.Listener, error)

	sessions sync.Map // session ID → *session.Session
}

// New creates a Server serving commands.  Nothing listens until Init.
func New(opts Options, commands []Command) *Server {
	logger := util.OrDiscard(opts.Logger).Named("console")
	if opts.MaxSessions < 1 {
		logger.Warn("max sessions %d raised to 1", opts.MaxSessions)
		opts.MaxSessions = 1
	}
	return &Server{
		opts:     opts,
		registry: NewRegistry(commands, logger, opts.Metrics),
		logger:   logger,
		metrics:  opts.Metrics,
		stopCh:   make(chan struct{}),
		listen:   net.Listen,
	}
}

// Init binds the listener and starts accepting connections.  A bind
// failure closes the server for good and is returned; it is not
// retried.  Init on an active server does nothing.
func (s *Server) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case session.StateActive:
		return nil
	case session.StateClosed:
		return errors.ErrServerClosed
	}

	addr := util.FormatAddr(s.opts.Address, s.opts.Port)
	ln, err := s.listen("tcp", addr)
	if err != nil {
		werr := errors.Wrap("bind", addr, err)
		s.logger.Error("init failed: %v", werr)
		s.state.Store(int32(session.StateClosed))
		s.stop.Store(true)
		return werr
	}

	s.listener = ln
	s.acceptDone = make(chan struct{})
	s.state.Store(int32(session.StateActive))
	go s.acceptLoop(ln)

	s.logger.Info("listening on %s, %d commands, max sessions %d, max idle %ds",
		ln.Addr(), s.registry.Len(), s.opts.MaxSessions, s.opts.MaxIdleSeconds)
	return nil
}

// Close stops accepting, releases the listener and closes every
// tracked session.  It is idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := session.State(s.state.Swap(int32(session.StateClosed)))
	if prev == session.StateClosed {
		return nil
	}

	start := time.Now()
	s.stop.Store(true)
	close(s.stopCh)

	var err error
	if s.listener != nil {
		if cerr := s.listener.Close(); cerr != nil && !errors.IsClosed(cerr) {
			err = errors.Wrap("close", s.listener.Addr().String(), cerr)
		}
		<-s.acceptDone
	}

	closed := 0
	s.sessions.Range(func(key, value any) bool {
		value.(*session.Session).Close()
		s.sessions.Delete(key)
		closed++
		return true
	})

	s.logger.Info("closed %d sessions in %s", closed, time.Since(start))
	return err
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer close(s.acceptDone)

	failures := 0
	for !s.stop.Load() {
		conn, err := ln.Accept()
		if err != nil {
			if s.stop.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept on %s: %v", ln.Addr(), err)
			s.metrics.AcceptFailed(err.Error())

			failures++
			timer := time.NewTimer(acceptBackoff.Delay(failures))
			select {
			case <-s.stopCh:
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}
		failures = 0
		s.admit(conn)
	}
}

// admit evicts stale sessions, then either refuses conn or starts a
// session for it.
func (s *Server) admit(conn net.Conn) {
	s.logger.Verbose("connection from %s", conn.RemoteAddr())
	s.RemoveInactiveSessions()

	if n := s.SessionCount(); n >= s.opts.MaxSessions {
		s.refuse(conn)
		return
	}

	sess := session.New(conn, s.registry, session.Options{
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	if err := sess.Init(); err != nil {
		s.logger.Error("session for %s not started: %v", conn.RemoteAddr(), err)
		return
	}
	s.sessions.Store(sess.ID(), sess)

	// Close may have swept the set between Init and Store.
	if s.stop.Load() {
		sess.Close()
		s.sessions.Delete(sess.ID())
	}
}

func (s *Server) refuse(conn net.Conn) {
	s.logger.Error("refusing %s: too many sessions, max %d",
		conn.RemoteAddr(), s.opts.MaxSessions)
	s.metrics.SessionRefused()

	// Best effort: the peer may already be gone.
	_ = conn.SetWriteDeadline(time.Now().Add(refuseWriteTimeout))
	_ = session.NewLineChannel(conn).WriteLine(RefusalMessage(s.opts.MaxSessions))
	_ = conn.Close()
}

// RefusalMessage is the line sent to a connection refused by
// admission control.
func RefusalMessage(maxSessions int) string {
	return fmt.Sprintf("Too many sessions. Max sessions: %d.", maxSessions)
}

// RemoveInactiveSessions closes and stops tracking every session that
// is no longer active or has been idle longer than MaxIdleSeconds.  It
// returns the number removed.  The accept loop runs it before every
// admission; hosts may also call it on a timer.
func (s *Server) RemoveInactiveSessions() int {
	removed := 0
	s.sessions.Range(func(key, value any) bool {
		sess := value.(*session.Session)

		reason := ""
		switch {
		case !sess.IsActive():
			reason = "closed"
		case s.opts.MaxIdleSeconds > 0 && sess.IdleSeconds() > s.opts.MaxIdleSeconds:
			reason = fmt.Sprintf("idle %ds", sess.IdleSeconds())
		default:
			return true
		}

		sess.Close()
		if _, loaded := s.sessions.LoadAndDelete(key); loaded {
			removed++
			s.metrics.SessionEvicted()
			s.logger.Info("removed inactive session (%s): %v", reason, sess)
		}
		return true
	})
	return removed
}

// SessionCount returns the number of tracked sessions.
func (s *Server) SessionCount() int {
	n := 0
	s.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Sessions returns a snapshot of the tracked sessions, oldest first.
func (s *Server) Sessions() []SessionInfo {
	var out []SessionInfo
	s.sessions.Range(func(_, value any) bool {
		out = append(out, value.(*session.Session).Info())
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Opened.Equal(out[j].Opened) {
			return out[i].Opened.Before(out[j].Opened)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Registry returns the server's command registry.
func (s *Server) Registry() *Registry { return s.registry }

// State returns the server's lifecycle state.
func (s *Server) State() State { return session.State(s.state.Load()) }

// Addr returns the bound listener address, or nil before Init.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
