// Package quillpath defines the abstract filesystem path type shared by
// every other quill package. A Path is a value: it does no I/O on its
// own, it only knows how to join, render and classify itself.
package quillpath

import (
	"path"
	"sort"
	"strings"
)

// Kind distinguishes paths that live under the managed build tree from
// paths that point somewhere else on disk (source files outside the
// tree, absolute system paths, etc). Only Local paths may be created or
// mkdir'd by the engine.
type Kind int

const (
	// Local paths are rooted under the build tree and may be created.
	Local Kind = iota
	// External paths are read-only as far as the engine is concerned.
	External
)

func (k Kind) String() string {
	if k == External {
		return "external"
	}
	return "local"
}

// Path is an abstract, slash-separated path with a Kind.
type Path struct {
	kind Kind
	rel  string // slash-separated, cleaned; never has a leading "/"
}

// New constructs a Local path from a slash-separated relative string.
func New(rel string) Path {
	return Path{kind: Local, rel: clean(rel)}
}

// NewExternal constructs an External path from an arbitrary string
// (may be absolute; not rewritten or cleaned beyond path.Clean).
func NewExternal(p string) Path {
	return Path{kind: External, rel: path.Clean(p)}
}

func clean(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return "."
	}
	return path.Clean(rel)
}

// Kind reports whether p is Local or External.
func (p Path) Kind() Kind { return p.kind }

// Local reports whether p may be created/mkdir'd by the engine.
func (p Path) Local() bool { return p.kind == Local }

// String renders p in its canonical form, used both for display and as
// a map key (Path is comparable and safe to use as one directly, but
// String is used wherever a stable serialised form is needed, e.g. the
// trace file and digests).
func (p Path) String() string {
	if p.kind == External {
		return p.rel
	}
	return p.rel
}

// Dir returns the parent directory of p, as a Local path if p is Local.
func (p Path) Dir() Path {
	d := path.Dir(p.rel)
	return Path{kind: p.kind, rel: d}
}

// Join appends the given slash-separated components to p.
func (p Path) Join(elem ...string) Path {
	parts := append([]string{p.rel}, elem...)
	return Path{kind: p.kind, rel: clean(path.Join(parts...))}
}

// UnderBuildRoot renders the absolute on-disk location of a Local path
// given the build root; it panics if called on an External path, since
// those are never under the engine's control.
func (p Path) UnderBuildRoot(root string) string {
	if p.kind != Local {
		panic("quillpath: UnderBuildRoot called on an external path: " + p.rel)
	}
	return path.Join(root, p.rel)
}

// Less provides a total order over paths, used to produce the sorted
// (deps, targets) sequences the rule hash is computed over.
func Less(a, b Path) bool {
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	return a.rel < b.rel
}

// Sort sorts a slice of paths in place using Less.
func Sort(ps []Path) {
	sort.Slice(ps, func(i, j int) bool { return Less(ps[i], ps[j]) })
}

// SetToSortedSlice converts a path set into a deterministically ordered slice.
func SetToSortedSlice(set map[Path]struct{}) []Path {
	out := make([]Path, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	Sort(out)
	return out
}
