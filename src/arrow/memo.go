package arrow

import (
	"sync"

	"github.com/quill-build/quill/src/quillerr"
)

type memoState int

const (
	memoUnevaluated memoState = iota
	memoEvaluating
	memoEvaluated
)

type memoCell[A any] struct {
	id    uint64
	name  string
	mu    sync.Mutex
	state memoState
	done  chan struct{}
	value A
	err   error
}

// Memo wraps t in a once-evaluated cell. The returned Node shares its
// cell with every copy of the value it produces, so constructing it
// once and reusing the result across multiple places in a tree gives
// genuine memoisation; constructing a fresh Memo per use gives no
// sharing, by design.
func Memo[A any](name string, t Node[A]) Node[A] {
	return memoNode[A]{
		name: name,
		t:    t,
		cell: &memoCell[A]{id: nextMemoID(), name: name, state: memoUnevaluated},
	}
}

type memoNode[A any] struct {
	name string
	t    Node[A]
	cell *memoCell[A]
}

func (n memoNode[A]) evalConcrete(ev *ConcreteEval, active activeSet) (A, error) {
	n.cell.mu.Lock()
	switch n.cell.state {
	case memoEvaluated:
		v, err := n.cell.value, n.cell.err
		n.cell.mu.Unlock()
		return v, err
	case memoEvaluating:
		done := n.cell.done
		n.cell.mu.Unlock()
		if active.has(n.cell.id) {
			var zero A
			return zero, &quillerr.MemoCycleError{Name: n.name}
		}
		<-done
		n.cell.mu.Lock()
		v, err := n.cell.value, n.cell.err
		n.cell.mu.Unlock()
		return v, err
	default: // memoUnevaluated
		n.cell.state = memoEvaluating
		n.cell.done = make(chan struct{})
		n.cell.mu.Unlock()

		v, err := n.t.evalConcrete(ev, active.with(n.cell.id))

		n.cell.mu.Lock()
		n.cell.value, n.cell.err = v, err
		n.cell.state = memoEvaluated
		close(n.cell.done)
		n.cell.mu.Unlock()
		return v, err
	}
}

func (n memoNode[A]) evalApprox(ev *ApproxEval, active activeSet) (A, error) {
	// Approximate evaluation never executes actions and is only used
	// for a single-pass closure computation, so memoised sub-arrows are
	// simply re-walked rather than cached. A memo re-entered along its
	// own call chain is still reported as a MemoCycleError.
	if active.has(n.cell.id) {
		var zero A
		return zero, &quillerr.MemoCycleError{Name: n.name}
	}
	return n.t.evalApprox(ev, active.with(n.cell.id))
}
