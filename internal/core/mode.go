// Package core is the orchestration layer.  It turns a Config into a
// complete operational mode: serving a console (ServeMode) or talking
// to one (AttachMode).
//
// Architecture layers (bottom → top):
//
//	transport, session  →  console  →  core  →  cmd (CLI)
//
// Build is the single dispatch point; cmd never inspects the
// configuration to choose behaviour itself.
package core

import "context"

// Mode is a complete operational mode of netconsole.  Each mode owns
// its full lifecycle from setup to teardown and returns when the
// context is cancelled or its work is done.
type Mode interface {
	Run(ctx context.Context) error

	// Describe summarises what Run would do, for --dry-run.
	Describe() string
}
