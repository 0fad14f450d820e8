package arrow

import (
	"sync"

	"github.com/quill-build/quill/src/quillfs"
	"github.com/quill-build/quill/src/quillpath"
)

// ApproxEval is the evaluator closure analysis runs a rule's build
// arrow against: it walks the same tree as ConcreteEval but never
// touches the filesystem or realises anything, so it can be run on
// rules that have not (and may never) actually build.
type ApproxEval struct {
	index *quillfs.TargetIndex

	mu        sync.Mutex
	deps      map[quillpath.Path]struct{}
	libDepsBy map[quillpath.Path]map[quillpath.Path]struct{}
}

// NewApproxEval constructs an approximate evaluator resolving
// Glob/FileExists against index.
func NewApproxEval(index *quillfs.TargetIndex) *ApproxEval {
	return &ApproxEval{
		index:     index,
		deps:      map[quillpath.Path]struct{}{},
		libDepsBy: map[quillpath.Path]map[quillpath.Path]struct{}{},
	}
}

func (ev *ApproxEval) addDep(p quillpath.Path) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.deps[p] = struct{}{}
}

func (ev *ApproxEval) recordLibDeps(dir quillpath.Path, deps []quillpath.Path) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	set := ev.libDepsBy[dir]
	if set == nil {
		set = map[quillpath.Path]struct{}{}
		ev.libDepsBy[dir] = set
	}
	for _, d := range deps {
		set[d] = struct{}{}
	}
}

// EvalApprox walks n without executing anything, collecting deps as a
// side effect.
func EvalApprox[A any](ev *ApproxEval, n Node[A]) (A, error) {
	return n.evalApprox(ev, activeSet{})
}

// Deps returns the dependencies discovered so far, sorted.
func (ev *ApproxEval) Deps() []quillpath.Path {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return quillpath.SetToSortedSlice(ev.deps)
}

// LibDepsByDir returns the Record_lib_deps observations, keyed by the
// directory they were recorded under.
func (ev *ApproxEval) LibDepsByDir() map[quillpath.Path][]quillpath.Path {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	out := make(map[quillpath.Path][]quillpath.Path, len(ev.libDepsBy))
	for dir, set := range ev.libDepsBy {
		out[dir] = quillpath.SetToSortedSlice(set)
	}
	return out
}
