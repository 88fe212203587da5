package cmd

import (
	"context"
	"strings"
	"testing"
	"time"

	"netconsole/console"
	"netconsole/internal/errors"
)

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	if err := Execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"-h"}} {
		t.Run(args[0], func(t *testing.T) {
			if err := Execute(context.Background(), args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRun verifies --dry-run validates and exits cleanly.
func TestExecute_DryRun(t *testing.T) {
	tests := [][]string{
		{"--dry-run"},
		{"-p", "0", "-m", "2", "-i", "0", "--dry-run"},
		{"-i", "30", "--reap-interval", "5", "--metrics-addr", "127.0.0.1:9100", "--dry-run"},
		{"-a", "127.0.0.1:7070", "--dry-run"},
		{"-a", "127.0.0.1:7070", "-c", "status", "-w", "3", "--dry-run"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			if err := Execute(context.Background(), args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	tests := []struct {
		args  []string
		field string
	}{
		{[]string{"-m", "0", "--dry-run"}, "max-sessions"},
		{[]string{"-p", "70000", "--dry-run"}, "port"},
		{[]string{"-c", "status", "--dry-run"}, "command"},
		{[]string{"-i", "0", "--reap-interval", "5", "--dry-run"}, "reap-interval"},
		{[]string{"-a", "nowhere", "--dry-run"}, "attach"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			err := Execute(context.Background(), tt.args)
			var ce *errors.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

// Flags override the environment.
func TestExecute_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("NETCONSOLE_MAX_SESSIONS", "0")
	t.Setenv("NETCONSOLE_PORT", "70000")

	// The env values are ignored (invalid) or overridden by flags.
	if err := Execute(context.Background(), []string{"-p", "0", "--dry-run"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecute_InvalidFlags(t *testing.T) {
	if err := Execute(context.Background(), []string{"--nonexistent-flag"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestExecute_UnexpectedArgument(t *testing.T) {
	if err := Execute(context.Background(), []string{"127.0.0.1:7070"}); err == nil {
		t.Fatal("expected error for positional argument")
	}
}

// TestExecute_ServeAndAttach runs a console until the context ends and
// attaches to it with a one-shot command.
func TestExecute_ServeAndAttach(t *testing.T) {
	srv := console.New(console.Options{Address: "127.0.0.1", MaxSessions: 2},
		[]console.Command{console.NewCommand("status", "", func([]string) ([]string, error) {
			return []string{"ok"}, nil
		})})
	if err := srv.Init(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := Execute(ctx, []string{"-a", srv.Addr().String(), "-c", "status", "-w", "5"})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	serveCtx, stop := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer stop()
	if err := Execute(serveCtx, []string{"-p", "0"}); err != nil {
		t.Fatalf("serve: %v", err)
	}
}
