// Package arrow implements the build arrow DSL: a free monadic
// description of how to produce a value of some result type while
// dynamically discovering the dependencies that value needs. Values of
// Node[A] are descriptions, never executions; two evaluators
// (ConcreteEval, ApproxEval) walk the same tree for different purposes.
package arrow

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/quill-build/quill/src/quillpath"
)

// Node is a build arrow node producing a value of type A once
// evaluated. Implementations are unexported; construct nodes with the
// package-level functions below.
type Node[A any] interface {
	evalConcrete(ev *ConcreteEval, active activeSet) (A, error)
	evalApprox(ev *ApproxEval, active activeSet) (A, error)
}

// activeSet tracks memo ids currently being evaluated along the current
// call chain, to distinguish a real self-referential memo cycle from
// two independent branches (e.g. the two sides of a Both) legitimately
// sharing and waiting on the same memoised sub-arrow.
type activeSet map[uint64]struct{}

func (s activeSet) with(id uint64) activeSet {
	out := make(activeSet, len(s)+1)
	for k := range s {
		out[k] = struct{}{}
	}
	out[id] = struct{}{}
	return out
}

func (s activeSet) has(id uint64) bool {
	_, ok := s[id]
	return ok
}

// Return lifts a pure value into a Build arrow.
func Return[A any](v A) Node[A] { return returnNode[A]{val: v} }

type returnNode[A any] struct{ val A }

func (n returnNode[A]) evalConcrete(ev *ConcreteEval, active activeSet) (A, error) {
	return n.val, nil
}
func (n returnNode[A]) evalApprox(ev *ApproxEval, active activeSet) (A, error) {
	return n.val, nil
}

// Bind sequences t then f(result of t); f may build a different arrow
// depending on the dynamically-discovered value of t.
func Bind[A, B any](t Node[A], f func(A) Node[B]) Node[B] {
	return bindNode[A, B]{t: t, f: f}
}

type bindNode[A, B any] struct {
	t Node[A]
	f func(A) Node[B]
}

func (n bindNode[A, B]) evalConcrete(ev *ConcreteEval, active activeSet) (B, error) {
	a, err := n.t.evalConcrete(ev, active)
	if err != nil {
		var zero B
		return zero, err
	}
	return n.f(a).evalConcrete(ev, active)
}
func (n bindNode[A, B]) evalApprox(ev *ApproxEval, active activeSet) (B, error) {
	a, err := n.t.evalApprox(ev, active)
	if err != nil {
		var zero B
		return zero, err
	}
	return n.f(a).evalApprox(ev, active)
}

// Map transforms the result of t with a pure function.
func Map[A, B any](t Node[A], f func(A) B) Node[B] {
	return mapNode[A, B]{t: t, f: f}
}

type mapNode[A, B any] struct {
	t Node[A]
	f func(A) B
}

func (n mapNode[A, B]) evalConcrete(ev *ConcreteEval, active activeSet) (B, error) {
	a, err := n.t.evalConcrete(ev, active)
	if err != nil {
		var zero B
		return zero, err
	}
	return n.f(a), nil
}
func (n mapNode[A, B]) evalApprox(ev *ApproxEval, active activeSet) (B, error) {
	a, err := n.t.evalApprox(ev, active)
	if err != nil {
		var zero B
		return zero, err
	}
	return n.f(a), nil
}

// Pair is the result type of Both.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Both realises t1 and t2 in parallel.
func Both[A, B any](t1 Node[A], t2 Node[B]) Node[Pair[A, B]] {
	return bothNode[A, B]{t1: t1, t2: t2}
}

type bothNode[A, B any] struct {
	t1 Node[A]
	t2 Node[B]
}

func (n bothNode[A, B]) evalConcrete(ev *ConcreteEval, active activeSet) (Pair[A, B], error) {
	// An errgroup.Group gives us the composite wait future: Wait returns
	// the first error. The group's derived context is not passed to the
	// branches, so a failing branch does not cancel the other one.
	var a A
	var b B
	g, _ := errgroup.WithContext(ev.ctx)
	g.Go(func() error {
		var err error
		a, err = n.t1.evalConcrete(ev, active)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = n.t2.evalConcrete(ev, active)
		return err
	})
	if err := g.Wait(); err != nil {
		return Pair[A, B]{}, err
	}
	return Pair[A, B]{First: a, Second: b}, nil
}
func (n bothNode[A, B]) evalApprox(ev *ApproxEval, active activeSet) (Pair[A, B], error) {
	a, err := n.t1.evalApprox(ev, active)
	if err != nil {
		return Pair[A, B]{}, err
	}
	b, err := n.t2.evalApprox(ev, active)
	if err != nil {
		return Pair[A, B]{}, err
	}
	return Pair[A, B]{First: a, Second: b}, nil
}

// Paths declares ps as dependencies without producing a value.
func Paths(ps []quillpath.Path) Node[struct{}] { return pathsNode{ps: ps} }

type pathsNode struct{ ps []quillpath.Path }

func (n pathsNode) evalConcrete(ev *ConcreteEval, active activeSet) (struct{}, error) {
	for _, p := range n.ps {
		if err := ev.require(p); err != nil {
			return struct{}{}, err
		}
	}
	return struct{}{}, nil
}
func (n pathsNode) evalApprox(ev *ApproxEval, active activeSet) (struct{}, error) {
	for _, p := range n.ps {
		ev.addDep(p)
	}
	return struct{}{}, nil
}

// Contents consumes the content of p as a string, declaring p as a dependency.
func Contents(p quillpath.Path) Node[string] { return contentsNode{p: p} }

type contentsNode struct{ p quillpath.Path }

func (n contentsNode) evalConcrete(ev *ConcreteEval, active activeSet) (string, error) {
	if err := ev.require(n.p); err != nil {
		return "", err
	}
	data, err := os.ReadFile(ev.diskPath(n.p))
	if err != nil {
		return "", fmt.Errorf("arrow: reading contents of %s: %w", n.p, err)
	}
	return string(data), nil
}
func (n contentsNode) evalApprox(ev *ApproxEval, active activeSet) (string, error) {
	ev.addDep(n.p)
	return "", nil // conservative placeholder; no filesystem access
}

// LinesOf consumes the content of p split into lines, declaring p as a dependency.
func LinesOf(p quillpath.Path) Node[[]string] { return linesOfNode{p: p} }

type linesOfNode struct{ p quillpath.Path }

func (n linesOfNode) evalConcrete(ev *ConcreteEval, active activeSet) ([]string, error) {
	if err := ev.require(n.p); err != nil {
		return nil, err
	}
	f, err := os.Open(ev.diskPath(n.p))
	if err != nil {
		return nil, fmt.Errorf("arrow: reading lines of %s: %w", n.p, err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
func (n linesOfNode) evalApprox(ev *ApproxEval, active activeSet) ([]string, error) {
	ev.addDep(n.p)
	return nil, nil
}

// Glob matches registered targets in dir against re, without declaring
// dir itself as a dependency - globs observe only already-known
// targets, not filesystem scans.
func Glob(dir quillpath.Path, re *regexp.Regexp) Node[[]quillpath.Path] {
	return globNode{dir: dir, re: re}
}

type globNode struct {
	dir quillpath.Path
	re  *regexp.Regexp
}

func (n globNode) evalConcrete(ev *ConcreteEval, active activeSet) ([]quillpath.Path, error) {
	return ev.index.Glob(n.dir, n.re), nil
}
func (n globNode) evalApprox(ev *ApproxEval, active activeSet) ([]quillpath.Path, error) {
	return ev.index.Glob(n.dir, n.re), nil
}

// FileExists is true iff p is a registered target, not iff it exists on
// disk.
func FileExists(p quillpath.Path) Node[bool] { return fileExistsNode{p: p} }

type fileExistsNode struct{ p quillpath.Path }

func (n fileExistsNode) evalConcrete(ev *ConcreteEval, active activeSet) (bool, error) {
	return ev.index.IsTarget(n.p), nil
}
func (n fileExistsNode) evalApprox(ev *ApproxEval, active activeSet) (bool, error) {
	return ev.index.IsTarget(n.p), nil
}

// Fail is an unconditional failure.
func Fail[A any](reason string) Node[A] { return failNode[A]{reason: reason} }

type failNode[A any] struct{ reason string }

func (n failNode[A]) evalConcrete(ev *ConcreteEval, active activeSet) (A, error) {
	var zero A
	return zero, fmt.Errorf("arrow: Fail: %s", n.reason)
}
func (n failNode[A]) evalApprox(ev *ApproxEval, active activeSet) (A, error) {
	var zero A
	return zero, fmt.Errorf("arrow: Fail: %s", n.reason)
}

// RecordLibDeps is a side-channel observation: ignored by the concrete
// (execution) evaluator, collected by closure analysis under
// ApproxEval.
func RecordLibDeps(dir quillpath.Path, deps []quillpath.Path) Node[struct{}] {
	return recordLibDepsNode{dir: dir, deps: deps}
}

type recordLibDepsNode struct {
	dir  quillpath.Path
	deps []quillpath.Path
}

func (n recordLibDepsNode) evalConcrete(ev *ConcreteEval, active activeSet) (struct{}, error) {
	return struct{}{}, nil
}
func (n recordLibDepsNode) evalApprox(ev *ApproxEval, active activeSet) (struct{}, error) {
	ev.recordLibDeps(n.dir, n.deps)
	return struct{}{}, nil
}

var memoIDs uint64

func nextMemoID() uint64 { return atomic.AddUint64(&memoIDs, 1) }

// joinNames renders ps as their path strings joined by " -> ".
func joinNames(ps []quillpath.Path) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.String()
	}
	return strings.Join(names, " -> ")
}
