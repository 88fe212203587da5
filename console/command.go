package console

import (
	"fmt"
	"strings"

	"netconsole/internal/errors"
	"netconsole/internal/metrics"
	"netconsole/internal/session"
	"netconsole/util"
)

// Command is a console command supplied by the host application.
type Command interface {
	// Name is matched case-insensitively and must not contain
	// whitespace.  "quit" and "ping" are reserved by the console.
	Name() string

	// ArgumentDescription documents the arguments, or returns "".
	ArgumentDescription() string

	// Execute runs the command with the whitespace-separated arguments
	// that followed its name and returns the response lines in order.
	// The slice may be empty.  A returned error, or a panic, is reported
	// to the operator as a single line and the session carries on.
	Execute(args []string) ([]string, error)
}

// CommandFunc is the signature of a command body.
type CommandFunc func(args []string) ([]string, error)

type funcCommand struct {
	name string
	desc string
	fn   CommandFunc
}

// NewCommand adapts a function into a Command.
func NewCommand(name, argumentDescription string, fn CommandFunc) Command {
	return &funcCommand{name: name, desc: argumentDescription, fn: fn}
}

func (c *funcCommand) Name() string                            { return c.name }
func (c *funcCommand) ArgumentDescription() string             { return c.desc }
func (c *funcCommand) Execute(args []string) ([]string, error) { return c.fn(args) }
func (c *funcCommand) String() string                          { return "Command{" + c.name + "}" }

// Registry maps lower-cased command names to commands and dispatches
// command lines to them.  It is built once and never modified, so
// sessions share it without locking.
type Registry struct {
	names    []string // insertion order, used for the "supported" listing
	commands map[string]Command
	logger   *util.Logger
	metrics  *metrics.Collector
}

var _ session.Dispatcher = (*Registry)(nil)

// NewRegistry builds a Registry from commands.
//
// Names are folded to lower case.  When two commands share a name the
// later one replaces the earlier one, keeping the earlier position in
// the listing, and the conflict is logged.  Commands named "quit" or
// "ping" would be shadowed by the built-in commands; they are dropped
// with a warning.
func NewRegistry(commands []Command, logger *util.Logger, collector *metrics.Collector) *Registry {
	logger = util.OrDiscard(logger)
	r := &Registry{
		commands: make(map[string]Command, len(commands)),
		logger:   logger,
		metrics:  collector,
	}

	for _, cmd := range commands {
		if cmd == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(cmd.Name()))
		if err := validateName(name); err != nil {
			logger.Warn("command %q ignored: %v", cmd.Name(), err)
			continue
		}
		if existing, ok := r.commands[name]; ok {
			logger.Error("duplicate command %q: %v replaced by %v", name, existing, cmd)
		} else {
			r.names = append(r.names, name)
		}
		r.commands[name] = cmd
	}
	return r
}

func validateName(name string) error {
	switch {
	case name == "":
		return errors.New("empty name")
	case strings.ContainsAny(name, " \t\r\n"):
		return errors.New("name contains whitespace")
	case name == session.CommandQuit || name == session.CommandPing:
		return fmt.Errorf("%w: %s", errors.ErrReservedName, name)
	}
	return nil
}

// Names returns the registered command names in insertion order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Lookup returns the command registered under name, ignoring case.
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

// Len returns the number of registered commands.
func (r *Registry) Len() int { return len(r.names) }

// Execute runs one command line.  The first whitespace-separated token
// names the command, the rest are its arguments.  Unknown names get an
// "is not supported" response listing every registered command, and a
// failing command gets a single line describing the failure.  Execute
// never panics.
func (r *Registry) Execute(line string) []string {
	tokens := strings.Fields(line)
	name := ""
	var args []string
	if len(tokens) > 0 {
		name = strings.ToLower(tokens[0])
		args = tokens[1:]
	}
	if args == nil {
		args = []string{}
	}

	cmd, ok := r.commands[name]
	if !ok {
		r.metrics.CommandUnsupported()
		return r.unsupported(name)
	}

	r.metrics.CommandExecuted()
	out, err := r.invoke(name, cmd, args)
	if err != nil {
		r.logger.Error("execute %q failed: %v", line, err)
		r.metrics.CommandFailed(err.Error())
		return []string{fmt.Sprintf("Execute command failed: `%v`.", errors.Unwrap(err))}
	}
	return out
}

// invoke calls cmd, turning a panic into a CommandError.
func (r *Registry) invoke(name string, cmd Command, args []string) (out []string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.WrapCommand(name, fmt.Errorf("panic: %v", p))
		}
	}()

	out, err = cmd.Execute(args)
	if err != nil {
		return nil, errors.WrapCommand(name, err)
	}
	return out, nil
}

func (r *Registry) unsupported(name string) []string {
	out := make([]string, 0, len(r.names)+2)
	out = append(out, fmt.Sprintf("`%s` is not supported.", name))
	out = append(out, "Supported command:")
	for i, n := range r.names {
		out = append(out, fmt.Sprintf("    %d. %s", i+1, n))
	}
	return out
}
