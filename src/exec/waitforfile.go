package exec

import (
	"context"

	"github.com/quill-build/quill/src/quillerr"
	"github.com/quill-build/quill/src/quillfs"
	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/registry"
)

// WaitForFile drives a target through its two-phase execution state:
// NotStarted -> Running{future}. chain is the ordered list of targets
// whose rule bodies are currently realising fn as a dependency, from
// the top-level request down to (but not including) fn itself - the
// same per-call-chain idea arrow.Memo's activeSet uses to tell a real
// self-referential cycle apart from two unrelated callers legitimately
// sharing a dependency. Because the cycle check is a plain lookup in a
// value the caller already owns, rather than a read of mutable state
// shared with other goroutines, it cannot be fooled by a concurrent,
// unrelated request for the same fn (the "diamond" case) - and because
// the NotStarted->Running transition below never releases e.mu between
// checking the state and installing the Future, no caller can ever
// observe a half-registered rule either. It returns a Future the caller
// awaits, or a fatal error if fn has no rule, is a missing source, or
// fn is already in chain (a cycle).
func (e *Engine) WaitForFile(ctx context.Context, fn quillpath.Path, chain []quillpath.Path) (*registry.Future, error) {
	if idx := indexOf(chain, fn); idx >= 0 {
		return nil, &quillerr.CycleError{Path: append(append([]quillpath.Path{}, chain[idx:]...), fn)}
	}

	if !e.Registry.IsTarget(fn) {
		if fn.Local() {
			return nil, quillerr.NoRuleError(fn)
		}
		if quillfs.PathExists(fn.String()) {
			f := registry.NewFuture()
			f.Resolve(nil)
			return f, nil
		}
		return nil, quillerr.MissingSourceError(fn)
	}

	rule, _ := e.Registry.Find(fn)

	e.mu.Lock()
	if rule.Exec.State == registry.Running {
		f := rule.Exec.Future
		e.mu.Unlock()
		return f, nil
	}

	// registry.NotStarted: install the Future before releasing the lock,
	// so no other goroutine can ever observe fn claimed without one.
	future := registry.NewFuture()
	rule.Exec.State = registry.Running
	rule.Exec.Future = future
	e.mu.Unlock()

	childChain := append(append([]quillpath.Path{}, chain...), fn)
	go func() {
		future.Resolve(e.runRuleBody(ctx, fn, rule, childChain))
	}()

	return future, nil
}

func indexOf(chain []quillpath.Path, p quillpath.Path) int {
	for i, v := range chain {
		if v == p {
			return i
		}
	}
	return -1
}
