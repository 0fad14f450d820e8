// Package exec implements the scheduler and rule executor: the
// component that turns a rule registry plus a requested target set
// into running actions, realising dependencies on demand, detecting
// cycles, and deciding per rule whether a rebuild is needed.
package exec

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quill-build/quill/src/action"
	"github.com/quill-build/quill/src/arrow"
	"github.com/quill-build/quill/src/logging"
	"github.com/quill-build/quill/src/quillfs"
	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/registry"
	"github.com/quill-build/quill/src/trace"
)

var log = logging.MustGetLogger("quill/exec")

// Engine ties the registry, trace store and filesystem caches together
// and drives realisation of requested targets for one build Context. A
// Context's Name is purely a diagnostic label; its BuildDir is what
// actually roots the engine's targets, trace and timestamp cache.
type Engine struct {
	Name       string
	BuildDir   string
	Registry   *registry.Registry
	Trace      *trace.Trace
	Timestamps *quillfs.TimestampCache
	Index      *quillfs.TargetIndex

	pending *pendingTargets

	mu           sync.Mutex
	warnedNoDeps map[quillpath.Path]bool
}

// New constructs an Engine for ctx, loading any existing trace from
// ctx.BuildDir/.db and starting it off with its own, unshared registry.
// Multiple contexts that must resolve rules against one shared registry
// (e.g. debug and release flavours of the same targets) should use
// NewShared instead.
func New(ctx Context) (*Engine, error) {
	return NewShared(ctx, registry.New())
}

// NewShared constructs an Engine for ctx against a pre-existing
// registry, so several contexts - each with its own BuildDir, trace and
// timestamp cache - can realise rules drawn from the one registry they
// share.
func NewShared(ctx Context, reg *registry.Registry) (*Engine, error) {
	tr, err := trace.Load(ctx.BuildDir)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		Name:         ctx.Name,
		BuildDir:     ctx.BuildDir,
		Registry:     reg,
		Trace:        tr,
		Timestamps:   quillfs.NewTimestampCache(ctx.BuildDir),
		pending:      newPendingTargets(ctx.BuildDir),
		warnedNoDeps: map[quillpath.Path]bool{},
	}
	e.Index = quillfs.NewTargetIndex(func() []quillpath.Path { return reg.AllTargets() })
	return e, nil
}

// AddRule registers a pre-rule producing targets via build, optionally
// sandboxed, optionally replacing an existing registration per target
// (see DESIGN.md's partial-override decision).
func (e *Engine) AddRule(targets []quillpath.Path, build arrow.Node[action.Action], sandboxed, allowOverride bool) error {
	rule := &registry.Rule{Targets: targets, Build: build, Sandbox: sandboxed}
	return e.Registry.AddRule(targets, rule, allowOverride)
}

// DoBuild realises every target in targets concurrently, returning the
// first error encountered - any action failure is terminal for the
// whole build. Each target is its own top-level request, so it starts
// with an empty demander chain.
func (e *Engine) DoBuild(ctx context.Context, targets []quillpath.Path) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		t := t
		g.Go(func() error { return e.Realize(gctx, t, nil) })
	}
	return g.Wait()
}

// Realize blocks until fn is up to date. chain is the ordered list of
// targets whose rule bodies are currently realising fn as a dependency;
// pass nil for a top-level request.
func (e *Engine) Realize(ctx context.Context, fn quillpath.Path, chain []quillpath.Path) error {
	future, err := e.WaitForFile(ctx, fn, chain)
	if err != nil {
		return err
	}
	return future.Wait(ctx)
}

// Close flushes any targets still registered as pending - an abnormal-
// exit cleanup hook - and should be called once no further builds will
// run against this Engine.
func (e *Engine) Close() error {
	return e.pending.flush()
}

// DumpTrace persists the engine's trace store, a no-op if BuildDir does
// not exist.
func (e *Engine) DumpTrace() error {
	return trace.Dump(e.BuildDir, e.Trace)
}
