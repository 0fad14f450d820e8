package exec

import (
	"context"
	"os"

	"github.com/quill-build/quill/src/action"
	"github.com/quill-build/quill/src/arrow"
	"github.com/quill-build/quill/src/quillerr"
	"github.com/quill-build/quill/src/quillfs"
	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/registry"
	"github.com/quill-build/quill/src/sandbox"
	"github.com/quill-build/quill/src/trace"
)

// runRuleBody is the rule thunk: realise dependencies while evaluating
// the build arrow, decide whether the rule is stale, and if so run its
// action. chain is the path from the top-level request down to fn
// (inclusive), used both to detect cycles among fn's own dependencies
// and, on failure, to report the chain of demanders that led here.
func (e *Engine) runRuleBody(ctx context.Context, fn quillpath.Path, rule *registry.Rule, chain []quillpath.Path) (err error) {
	defer func() {
		if err != nil {
			if _, ok := err.(*quillerr.BuildError); !ok {
				err = quillerr.NewBuildError(chain, err)
			}
		}
	}()

	// Step 1: parent directories of every local target must exist before
	// the action (or a sandbox staging it) can write to them.
	for _, t := range rule.Targets {
		if t.Local() {
			if mkErr := quillfs.EnsureDir(t.UnderBuildRoot(e.BuildDir)); mkErr != nil {
				return mkErr
			}
		}
	}

	// Step 2: evaluate the build arrow concretely, realising every
	// dependency it discovers along the way before returning.
	realize := func(ctx context.Context, p quillpath.Path) error {
		return e.Realize(ctx, p, chain)
	}
	ev := arrow.NewConcreteEval(ctx, e.BuildDir, e.Index, realize)
	act, err := arrow.Eval(ev, rule.Build)
	if err != nil {
		return err
	}
	deps := ev.Deps()

	// Step 3: hash (deps, targets, action).
	digest := ruleDigest(deps, rule.Targets, act)

	// Step 4: has the rule's shape changed since it last ran?
	ruleChanged := false
	for _, t := range rule.Targets {
		prev, ok := e.Trace.Get(t)
		if !ok || prev != digest {
			ruleChanged = true
			break
		}
	}

	// Step 5: timestamp comparison between deps and targets.
	depsMaxTs := e.Timestamps.MaxTimestamp(deps)
	targetsMinTs := e.Timestamps.MinTimestamp(rule.Targets)
	if depsMaxTs.MissingFiles {
		return &quillerr.InternalError{Message: "a dependency is still missing after being realized: " + fn.String()}
	}

	// Step 6: the four-way "should run" disjunction, including the
	// no-deps degenerate case preserved verbatim (see DESIGN.md).
	noDeps := depsMaxTs.Limit == nil
	shouldRun := ruleChanged ||
		targetsMinTs.MissingFiles ||
		noDeps ||
		(depsMaxTs.Limit != nil && targetsMinTs.Limit != nil && *targetsMinTs.Limit < *depsMaxTs.Limit)

	if noDeps && shouldRun {
		e.warnNoDeps(fn)
	}

	if !shouldRun {
		return nil
	}
	return e.runAction(ctx, fn, rule, act, deps, digest)
}

func (e *Engine) warnNoDeps(fn quillpath.Path) {
	e.mu.Lock()
	already := e.warnedNoDeps[fn]
	e.warnedNoDeps[fn] = true
	e.mu.Unlock()
	if !already {
		log.Warning("rule has no declared dependencies and will always rebuild: %s", fn)
	}
}

// runAction unlinks stale targets, optionally stages a sandbox, runs
// the action, and on success refreshes the trace and timestamps. Fatal
// if a target is still missing once the action reports success.
func (e *Engine) runAction(ctx context.Context, fn quillpath.Path, rule *registry.Rule, act action.Action, deps []quillpath.Path, digest trace.Digest) error {
	updated := act.UpdatedFiles()
	var toRemove []quillpath.Path
	for _, t := range rule.Targets {
		if _, keep := updated[t]; keep {
			continue
		}
		toRemove = append(toRemove, t)
	}

	e.pending.add(toRemove)
	for _, t := range toRemove {
		if !t.Local() {
			continue
		}
		if rmErr := os.Remove(t.UnderBuildRoot(e.BuildDir)); rmErr != nil && !os.IsNotExist(rmErr) {
			e.pending.remove(toRemove)
			return rmErr
		}
	}

	runAct := act
	var sandboxDir string
	if rule.Sandbox {
		sandboxDir = sandbox.Dir(e.BuildDir, string(digest))
		if err := sandbox.Stage(sandboxDir, e.BuildDir, deps, rule.Targets); err != nil {
			e.pending.remove(toRemove)
			return err
		}
		runAct = act.Sandbox(sandboxDir, sandbox.Mapping(deps, rule.Targets))
	}

	if dir := runAct.Dir(); dir.Local() {
		if mkErr := os.MkdirAll(dir.UnderBuildRoot(dirRoot(sandboxDir, e.BuildDir)), quillfs.DirPermissions); mkErr != nil {
			e.pending.remove(toRemove)
			return mkErr
		}
	}

	execErr := runAct.Exec(ctx, rule.Targets)
	if execErr != nil {
		return execErr // leave pending targets and sandbox in place for inspection
	}

	if rule.Sandbox {
		_ = sandbox.Remove(sandboxDir)
	}

	for _, t := range rule.Targets {
		e.Trace.Set(t, digest)
		e.Timestamps.Invalidate(t)
	}
	e.pending.remove(toRemove)

	var missing []quillpath.Path
	for _, t := range rule.Targets {
		if !t.Local() {
			continue
		}
		if !quillfs.PathExists(t.UnderBuildRoot(e.BuildDir)) {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return quillerr.TargetsNotGeneratedError(missing)
	}
	return nil
}

// dirRoot picks the root a just-staged sandbox action's working
// directory should resolve against: the sandbox directory if one was
// staged for this run, the engine's build directory otherwise.
func dirRoot(sandboxDir, buildDir string) string {
	if sandboxDir == "" {
		return buildDir
	}
	return sandboxDir
}
