// Package registry implements the rule registry: the map from target
// path to the unique rule that produces it.
package registry

import (
	"context"

	"github.com/quill-build/quill/src/action"
	"github.com/quill-build/quill/src/arrow"
	"github.com/quill-build/quill/src/quillerr"
	"github.com/quill-build/quill/src/quillpath"
)

// ExecState is the two-phase execution state machine a Rule's
// execution status moves through.
type ExecState int

const (
	// NotStarted: the rule's thunk has not yet been invoked.
	NotStarted ExecState = iota
	// Running: the thunk has a Future registered, in flight or resolved.
	Running
)

// Future is the result of a rule thunk still in flight, or already
// resolved. Any number of goroutines may Wait on the same Future; each
// observes the same error once it is resolved.
type Future struct {
	done chan struct{}
	err  error
}

// NewFuture returns an unresolved Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve records err and wakes every waiter. Resolve must be called
// exactly once.
func (f *Future) Resolve(err error) {
	f.err = err
	close(f.done)
}

// Wait blocks until the future resolves or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exec is the mutable per-rule execution status.
type Exec struct {
	State  ExecState
	Future *Future // non-nil once State == Running
}

// Rule is a compiled pre-rule: a set of targets, the build arrow that
// produces an Action, whether it should be sandboxed, and its mutable
// execution state. A Rule with N targets is registered once and shared
// (the same *Rule pointer) under every one of its targets, so mutating
// Exec is observed through every alias.
type Rule struct {
	Targets []quillpath.Path
	Build   arrow.Node[action.Action]
	Sandbox bool
	Exec    Exec
}

// Registry maps target paths to the rule that produces them.
type Registry struct {
	files map[quillpath.Path]*Rule
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{files: map[quillpath.Path]*Rule{}}
}

// AddRule registers rule under every path in targets. If allowOverride
// is false and any target is already registered, AddRule fails with a
// MultipleRulesError. If allowOverride is true, targets that already
// exist are replaced in place; see DESIGN.md for the partial-override
// decision this implements (override is evaluated per target, not per
// rule set).
func (r *Registry) AddRule(targets []quillpath.Path, rule *Rule, allowOverride bool) error {
	if !allowOverride {
		for _, t := range targets {
			if _, exists := r.files[t]; exists {
				return quillerr.MultipleRulesError(t)
			}
		}
	}
	for _, t := range targets {
		r.files[t] = rule
	}
	return nil
}

// IsTarget reports whether p is a registered target.
func (r *Registry) IsTarget(p quillpath.Path) bool {
	_, ok := r.files[p]
	return ok
}

// Find returns the rule producing p, if any.
func (r *Registry) Find(p quillpath.Path) (*Rule, bool) {
	rule, ok := r.files[p]
	return rule, ok
}

// AllTargets enumerates every registered target path.
func (r *Registry) AllTargets() []quillpath.Path {
	out := make([]quillpath.Path, 0, len(r.files))
	for p := range r.files {
		out = append(out, p)
	}
	quillpath.Sort(out)
	return out
}
