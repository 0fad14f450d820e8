// Package closure implements cycle and closure analysis: a static,
// read-only pass over the rule graph that computes the full set of
// files a requested target's build would touch, without running any
// action, and reports dependency cycles in that static graph.
package closure

import (
	"strings"

	"github.com/quill-build/quill/src/arrow"
	"github.com/quill-build/quill/src/quillerr"
	"github.com/quill-build/quill/src/quillfs"
	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/registry"
)

// Result is the outcome of a closure computation: every file reachable
// from the requested targets, and every Record_lib_deps observation
// made along the way, keyed by the directory that recorded it.
type Result struct {
	Files   map[quillpath.Path]struct{}
	LibDeps map[quillpath.Path][]quillpath.Path
}

// Closure walks reg from requested, using arrow.ApproxEval to discover
// each reachable rule's dependencies without executing anything.
// Returns a *quillerr.CycleError if the static graph contains a cycle.
func Closure(reg *registry.Registry, requested []quillpath.Path) (*Result, error) {
	index := quillfs.NewTargetIndex(func() []quillpath.Path { return reg.AllTargets() })
	result := &Result{
		Files:   map[quillpath.Path]struct{}{},
		LibDeps: map[quillpath.Path][]quillpath.Path{},
	}
	visiting := map[quillpath.Path]bool{}
	done := map[quillpath.Path]bool{}

	var visit func(p quillpath.Path, path []quillpath.Path) error
	visit = func(p quillpath.Path, path []quillpath.Path) error {
		if done[p] {
			return nil
		}
		if visiting[p] {
			start := indexOf(path, p)
			cycle := append(append([]quillpath.Path{}, path[start:]...), p)
			return &quillerr.CycleError{Path: cycle}
		}
		result.Files[p] = struct{}{}

		rule, ok := reg.Find(p)
		if !ok {
			done[p] = true
			return nil // a source leaf: not a registered target, nothing further to walk
		}

		visiting[p] = true
		ev := arrow.NewApproxEval(index)
		if _, err := arrow.EvalApprox(ev, rule.Build); err != nil {
			return err
		}
		for dir, deps := range ev.LibDepsByDir() {
			result.LibDeps[dir] = append(result.LibDeps[dir], deps...)
		}

		next := append(append([]quillpath.Path{}, path...), p)
		for _, dep := range ev.Deps() {
			if err := visit(dep, next); err != nil {
				return err
			}
		}
		visiting[p] = false
		done[p] = true
		return nil
	}

	for _, r := range requested {
		if err := visit(r, nil); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func indexOf(path []quillpath.Path, p quillpath.Path) int {
	for i, v := range path {
		if v == p {
			return i
		}
	}
	return 0
}

// AggregateLibDeps groups the Record_lib_deps observations collected by
// Closure. With groupByContext false, every observation is merged under
// a single "*" bucket; with it true, observations are grouped by the
// first path segment of the recording directory, which for quill's
// layout corresponds to the per-context build subdirectory.
func AggregateLibDeps(r *Result, groupByContext bool) map[string][]quillpath.Path {
	out := map[string][]quillpath.Path{}
	for dir, deps := range r.LibDeps {
		key := "*"
		if groupByContext {
			key = firstSegment(dir.String())
		}
		out[key] = append(out[key], deps...)
	}
	for k := range out {
		quillpath.Sort(out[k])
	}
	return out
}

func firstSegment(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}
