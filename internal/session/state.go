package session

// State is the lifecycle of a session or server.  Transitions only
// move forward: Uninitialized → Active → Closed, or straight from
// Uninitialized to Closed when initialisation fails.
type State int32

const (
	// StateUninitialized is the state before Init succeeds.
	StateUninitialized State = iota
	// StateActive means the worker is serving the connection.
	StateActive
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
