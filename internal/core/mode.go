// Package core is the orchestration layer.  It composes the relay, its
// dialer and the control API into complete operational modes and
// provides a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  registry/session  →  relay  →  api  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of vtrelay (serve or
// one-shot command).  Each mode owns its full lifecycle from startup
// to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
