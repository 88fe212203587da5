package core

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"netconsole/console"
	"netconsole/util"
)

type started struct {
	console net.Addr
	metrics net.Addr
}

// runServe starts m in the background and waits until it listens.  The
// returned function cancels it and returns Run's error.
func runServe(t *testing.T, m *ServeMode) (started, func() error) {
	t.Helper()
	ready := make(chan started, 1)
	m.Ready = func(c, mt net.Addr) { ready <- started{c, mt} }
	if m.Options.Address == "" {
		m.Options.Address = "127.0.0.1"
	}
	if m.Options.MaxSessions == 0 {
		m.Options.MaxSessions = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()

	var once sync.Once
	var runErr error
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case runErr = <-errc:
			case <-time.After(5 * time.Second):
				runErr = fmt.Errorf("Run did not return after cancel")
			}
		})
		return runErr
	}

	select {
	case s := <-ready:
		t.Cleanup(func() { stop() }) //nolint:errcheck
		return s, stop
	case err := <-errc:
		cancel()
		t.Fatalf("Run: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("console never became ready")
	}
	return started{}, nil
}

// exchange sends line and reads n response lines.
func exchange(t *testing.T, conn net.Conn, r *bufio.Reader, line string, n int) []string {
	t.Helper()
	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		got, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading reply %d to %q: %v", i+1, line, err)
		}
		out = append(out, strings.TrimSuffix(got, "\n"))
	}
	return out
}

func dialConsole(t *testing.T, addr net.Addr) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	conn.SetDeadline(time.Now().Add(10 * time.Second)) //nolint:errcheck
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func TestServeMode_HostCommands(t *testing.T) {
	extra := console.NewCommand("status", "", func([]string) ([]string, error) {
		return []string{"state: running"}, nil
	})
	s, _ := runServe(t, &ServeMode{Commands: []console.Command{extra}})
	conn, r := dialConsole(t, s.console)

	if got := exchange(t, conn, r, "echo a b", 2); got[0] != "a" || got[1] != "b" {
		t.Errorf("echo = %q", got)
	}
	if got := exchange(t, conn, r, "status", 1); got[0] != "state: running" {
		t.Errorf("status = %q", got)
	}
	if got := exchange(t, conn, r, "uptime", 1); !strings.HasPrefix(got[0], "up ") {
		t.Errorf("uptime = %q", got)
	}
	if got := exchange(t, conn, r, "uptime now", 1); got[0] != "Execute command failed: `uptime takes no arguments`." {
		t.Errorf("uptime with args = %q", got)
	}
	if got := exchange(t, conn, r, "runtime", 4); !strings.HasPrefix(got[0], "go: ") {
		t.Errorf("runtime = %q", got)
	}
	if got := exchange(t, conn, r, "sessions", 2); got[0] != "1 session(s)" || !strings.Contains(got[1], "active") {
		t.Errorf("sessions = %q", got)
	}

	help := exchange(t, conn, r, "help", 9)
	for i, want := range []string{"  quit", "  ping", "  echo <words...>", "  uptime", "  runtime", "  metrics", "  sessions", "  help", "  status"} {
		if !strings.HasPrefix(help[i], want) {
			t.Errorf("help[%d] = %q, want prefix %q", i, help[i], want)
		}
	}

	metrics := exchange(t, conn, r, "metrics", 1)
	if metrics[0] != "{" {
		t.Errorf("metrics should start a JSON object, got %q", metrics[0])
	}
}

func TestServeMode_StopsOnCancel(t *testing.T) {
	s, stop := runServe(t, &ServeMode{})
	conn, r := dialConsole(t, s.console)
	exchange(t, conn, r, "ping", 1)

	if err := stop(); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if _, err := r.ReadString('\n'); err != io.EOF {
		t.Errorf("read after shutdown: err = %v, want EOF", err)
	}
}

func TestServeMode_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	m := &ServeMode{Options: console.Options{
		Address:     "127.0.0.1",
		Port:        ln.Addr().(*net.TCPAddr).Port,
		MaxSessions: 1,
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Run(ctx); err == nil {
		t.Fatal("expected bind failure")
	}
}

func TestServeMode_Reaper(t *testing.T) {
	s, _ := runServe(t, &ServeMode{
		Options:      console.Options{MaxIdleSeconds: 1},
		ReapInterval: 100 * time.Millisecond,
		Logger:       util.Discard(),
	})
	conn, r := dialConsole(t, s.console)
	exchange(t, conn, r, "ping", 1)

	// No new connection arrives; the reaper alone closes the idle session.
	start := time.Now()
	if _, err := r.ReadString('\n'); err != io.EOF {
		t.Fatalf("err = %v, want EOF from eviction", err)
	}
	if waited := time.Since(start); waited < time.Second {
		t.Errorf("evicted after %v, before the idle limit", waited)
	}
}

func TestServeMode_MetricsEndpoint(t *testing.T) {
	s, _ := runServe(t, &ServeMode{MetricsAddr: "127.0.0.1:0"})
	conn, r := dialConsole(t, s.console)
	exchange(t, conn, r, "ping", 1)
	exchange(t, conn, r, "nope", 8)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + s.metrics.String() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"netconsole_sessions_active 1",
		"netconsole_sessions_opened_total 1",
		"netconsole_commands_unsupported_total 1",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestServeMode_MetricsBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	m := &ServeMode{
		Options:     console.Options{Address: "127.0.0.1", MaxSessions: 1},
		MetricsAddr: ln.Addr().String(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Run(ctx); err == nil {
		t.Fatal("expected metrics bind failure")
	}
}
