package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"netconsole/console"
	"netconsole/internal/errors"
	"netconsole/internal/session"
	"netconsole/internal/transport"
	"netconsole/util"
)

// refusalPrefix starts the line a full console sends before hanging up.
const refusalPrefix = "Too many sessions."

// AttachMode connects to a running console.  With Command set it sends
// that one line, prints the reply and leaves; otherwise it relays
// stdin and stdout until either side hangs up.
type AttachMode struct {
	Dialer  transport.Dialer
	Address string
	Command string
	Timeout time.Duration // bounds a one-shot exchange; 0 waits forever

	// Interactive prints connection banners on Stderr.
	Interactive bool
	Logger      *util.Logger

	// Stdin/Stdout/Stderr default to the process streams when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (m *AttachMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *AttachMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

func (m *AttachMode) stderr() io.Writer {
	if m.Stderr != nil {
		return m.Stderr
	}
	return os.Stderr
}

// Describe summarises the attach target.
func (m *AttachMode) Describe() string {
	if m.Command != "" {
		return fmt.Sprintf("attach to %s and run %q", m.Address, m.Command)
	}
	return fmt.Sprintf("attach to %s interactively", m.Address)
}

// Run dials the console and runs the one-shot or interactive exchange.
// The dialer is closed when Run returns.
func (m *AttachMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()
	logger := util.OrDiscard(m.Logger)

	logger.Verbose("connecting to %s", m.Address)
	conn, err := m.Dialer.Dial(ctx, "tcp", m.Address)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Verbose("connected to %s", conn.RemoteAddr())

	if m.Command != "" {
		return m.oneShot(conn)
	}

	if m.Interactive {
		color.New(color.FgGreen, color.Bold).Fprintf(m.stderr(),
			"connected to %s, type %s to leave\n", conn.RemoteAddr(), session.CommandQuit)
	}

	stats, err := util.Relay(ctx, conn, m.stdin(), m.stdout())
	logger.Verbose("sent %d bytes, received %d bytes", stats.Sent, stats.Received)

	if m.Interactive {
		color.New(color.FgYellow).Fprintf(m.stderr(), "connection to %s closed\n", m.Address)
	}
	return err
}

// oneShot sends Command followed by quit and copies the reply to
// Stdout, without the farewell.
func (m *AttachMode) oneShot(conn net.Conn) error {
	if m.Timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(m.Timeout)); err != nil {
			return errors.Wrap("deadline", m.Address, err)
		}
	}

	req := strings.TrimSpace(m.Command) + "\n" + session.CommandQuit + "\n"
	if _, err := io.WriteString(conn, req); err != nil {
		return errors.Wrap("write", m.Address, err)
	}

	lines, err := readReply(session.NewLineChannel(conn))
	if err != nil {
		return errors.Wrap("read", m.Address, err)
	}

	n := len(lines)
	if n == 0 || lines[n-1] != console.Farewell {
		if n > 0 && strings.HasPrefix(lines[0], refusalPrefix) {
			return fmt.Errorf("%w: %s", errors.ErrTooManySessions, lines[0])
		}
		return fmt.Errorf("%w before the reply was complete", errors.ErrChannelClosed)
	}

	w := m.stdout()
	for _, line := range lines[:n-1] {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// readReply collects lines until the console closes the connection.
// A reset counts as a close: a refusing console may hang up before
// reading the request.
func readReply(ch *session.LineChannel) ([]string, error) {
	var lines []string
	for {
		line, err := ch.ReadLine()
		switch {
		case err == nil:
			lines = append(lines, line)
		case errors.Is(err, io.EOF), errors.Is(err, syscall.ECONNRESET):
			return lines, nil
		default:
			return lines, err
		}
	}
}
