package util

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

// lineServer answers every line with "<line>!" and closes when the
// client half-closes.
func lineServer(t *testing.T) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			io.WriteString(conn, sc.Text()+"!\n") //nolint:errcheck
		}
	}()
	return ln.Addr()
}

func TestRelay_HalfClose(t *testing.T) {
	addr := lineServer(t)
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := Relay(ctx, conn, strings.NewReader("a\nbc\n"), &out)
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if got := out.String(); got != "a!\nbc!\n" {
		t.Errorf("output = %q", got)
	}
	if stats.Sent != 5 || stats.Received != 7 {
		t.Errorf("stats = %+v, want Sent=5 Received=7", stats)
	}
}

// A blocked local reader does not keep Relay alive once the context
// is cancelled.
func TestRelay_ContextCancel(t *testing.T) {
	addr := lineServer(t)
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Relay(ctx, conn, pr, io.Discard)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Relay after cancel: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Relay did not return after cancel")
	}
}

// The remote side closing ends the relay even though stdin is still
// open.
func TestRelay_RemoteClose(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		io.WriteString(server, "bye bye~\n") //nolint:errcheck
		server.Close()
	}()

	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	stats, err := Relay(context.Background(), client, pr, &out)
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if out.String() != "bye bye~\n" || stats.Received != 9 {
		t.Errorf("output = %q, stats = %+v", out.String(), stats)
	}
}
