package core

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"netconsole/console"
	"netconsole/internal/metrics"
	"netconsole/internal/session"
)

// host is what the host commands may inspect.  server is set once the
// console exists; commands only run after that.
type host struct {
	started time.Time
	server  *console.Server
	metrics *metrics.Collector
}

// hostCommands returns the commands the netconsole binary registers on
// its own console.
func hostCommands(h *host) []console.Command {
	return []console.Command{
		console.NewCommand("echo", "<words...>", echo),
		console.NewCommand("uptime", "", h.uptime),
		console.NewCommand("runtime", "", goRuntime),
		console.NewCommand("metrics", "", h.metricsReport),
		console.NewCommand("sessions", "", h.sessions),
		console.NewCommand("help", "", h.help),
	}
}

// echo answers each argument on its own line.
func echo(args []string) ([]string, error) {
	return args, nil
}

func (h *host) uptime(args []string) ([]string, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("uptime takes no arguments")
	}
	up := time.Since(h.started).Truncate(time.Second)
	return []string{fmt.Sprintf("up %s since %s", up, h.started.Format(time.RFC3339))}, nil
}

func goRuntime([]string) ([]string, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return []string{
		fmt.Sprintf("go: %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		fmt.Sprintf("goroutines: %d", runtime.NumGoroutine()),
		fmt.Sprintf("gomaxprocs: %d", runtime.GOMAXPROCS(0)),
		fmt.Sprintf("heap: %d KiB in use, %d GC cycles", ms.HeapAlloc/1024, ms.NumGC),
	}, nil
}

func (h *host) metricsReport([]string) ([]string, error) {
	return strings.Split(h.metrics.JSON(), "\n"), nil
}

// sessions lists the tracked sessions in the order they were admitted.
func (h *host) sessions([]string) ([]string, error) {
	infos := h.server.Sessions()
	out := make([]string, 0, len(infos)+1)
	out = append(out, fmt.Sprintf("%d session(s)", len(infos)))
	for _, info := range infos {
		out = append(out, fmt.Sprintf("  %s  %-21s  %-6s  opened %s  idle %s",
			info.ID, info.RemoteAddr, info.State, info.Opened.Format(time.TimeOnly),
			info.Idle.Truncate(time.Second)))
	}
	return out, nil
}

// help lists every command with its argument description, built-ins
// first.
func (h *host) help([]string) ([]string, error) {
	reg := h.server.Registry()
	out := []string{
		"  " + session.CommandQuit + "  close this session",
		"  " + session.CommandPing + "  check the console is alive",
	}
	for _, name := range reg.Names() {
		cmd, _ := reg.Lookup(name)
		line := "  " + name
		if desc := cmd.ArgumentDescription(); desc != "" {
			line += " " + desc
		}
		out = append(out, line)
	}
	return out, nil
}
