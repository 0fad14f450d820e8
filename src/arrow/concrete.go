package arrow

import (
	"context"
	"sync"

	"github.com/quill-build/quill/src/quillfs"
	"github.com/quill-build/quill/src/quillpath"
)

// Realizer is implemented by the scheduler: given a path newly
// discovered as a dependency, it blocks until that path is up to date
// (building it if it is a target), or returns an error (missing source
// file, cycle, build failure). It is the engine's wait_for_file, seen
// from the arrow package's side.
type Realizer func(ctx context.Context, p quillpath.Path) error

// ConcreteEval is the evaluator the scheduler runs a rule's build arrow
// against: it discovers dependencies by calling Realizer as it walks
// the tree, and performs the actual file reads Contents/LinesOf need.
type ConcreteEval struct {
	ctx     context.Context
	root    string
	index   *quillfs.TargetIndex
	realize Realizer
	mu      sync.Mutex
	deps    map[quillpath.Path]struct{}
}

// NewConcreteEval constructs an evaluator rooted at root, resolving
// Glob/FileExists against index and realising newly-discovered
// dependencies via realize.
func NewConcreteEval(ctx context.Context, root string, index *quillfs.TargetIndex, realize Realizer) *ConcreteEval {
	return &ConcreteEval{
		ctx:     ctx,
		root:    root,
		index:   index,
		realize: realize,
		deps:    map[quillpath.Path]struct{}{},
	}
}

func (ev *ConcreteEval) diskPath(p quillpath.Path) string {
	if p.Local() {
		return p.UnderBuildRoot(ev.root)
	}
	return p.String()
}

// require records p as a dependency (if not already seen) and blocks
// until it is realized.
func (ev *ConcreteEval) require(p quillpath.Path) error {
	ev.mu.Lock()
	ev.deps[p] = struct{}{}
	ev.mu.Unlock()
	return ev.realize(ev.ctx, p)
}

// Eval walks n, returning its concrete value once every dependency it
// discovered along the way has been realized.
func Eval[A any](ev *ConcreteEval, n Node[A]) (A, error) {
	return n.evalConcrete(ev, activeSet{})
}

// Deps returns the dependencies discovered so far, sorted.
func (ev *ConcreteEval) Deps() []quillpath.Path {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return quillpath.SetToSortedSlice(ev.deps)
}
