// Package vmguard enforces spec.md §5's single-mutator-goroutine rule:
// the interpreter, the collector's trace/sweep, and every opcode handler
// that touches the heap must run on the one goroutine that owns a given
// VM. The check is a no-op unless a host opts in via
// config.Config.StrictThreading, since it costs a goroutine-id lookup
// per call.
package vmguard

import (
	"fmt"

	"github.com/petermattis/goid"
)

// Guard remembers which goroutine first touched it and panics if a
// later call arrives from a different one.
type Guard struct {
	enabled bool
	owner   int64
	bound   bool
}

// New creates a Guard. enabled mirrors config.Config.StrictThreading;
// when false, Check is a no-op so disabled builds pay nothing beyond
// one branch.
func New(enabled bool) *Guard {
	return &Guard{enabled: enabled}
}

// Check binds the guard to the calling goroutine on first use and
// panics on any later call from a different goroutine.
func (g *Guard) Check() {
	if !g.enabled {
		return
	}
	id := goid.Get()
	if !g.bound {
		g.owner = id
		g.bound = true
		return
	}
	if id != g.owner {
		panic(fmt.Sprintf("vmguard: mutator accessed from goroutine %d, owned by %d", id, g.owner))
	}
}

// Release un-binds the guard so a finished VM's Guard can be reused by
// a fresh goroutine (e.g. a pooled interpreter instance).
func (g *Guard) Release() {
	g.bound = false
}
