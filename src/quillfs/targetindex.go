package quillfs

import (
	"path"
	"regexp"
	"sync"

	"github.com/quill-build/quill/src/quillpath"
)

// TargetIndex is the lazily-built map from directory to the set of
// registered targets within it. It is built once, on first use, from a
// snapshot of all registered targets handed to it by the engine - kept
// lazy so a build with no Glob/File_exists usage never pays for it.
type TargetIndex struct {
	once    sync.Once
	snapshot func() []quillpath.Path
	byDir   map[quillpath.Path]map[quillpath.Path]struct{}
	all     map[quillpath.Path]struct{}
}

// NewTargetIndex returns an index that will call snapshot exactly once,
// the first time it's queried.
func NewTargetIndex(snapshot func() []quillpath.Path) *TargetIndex {
	return &TargetIndex{snapshot: snapshot}
}

func (idx *TargetIndex) ensure() {
	idx.once.Do(func() {
		idx.byDir = map[quillpath.Path]map[quillpath.Path]struct{}{}
		idx.all = map[quillpath.Path]struct{}{}
		for _, t := range idx.snapshot() {
			idx.all[t] = struct{}{}
			dir := t.Dir()
			if idx.byDir[dir] == nil {
				idx.byDir[dir] = map[quillpath.Path]struct{}{}
			}
			idx.byDir[dir][t] = struct{}{}
		}
	})
}

// IsTarget reports whether p is a registered target - File_exists's
// semantics: true iff the path is a registered target, not iff it
// exists on disk.
func (idx *TargetIndex) IsTarget(p quillpath.Path) bool {
	idx.ensure()
	_, ok := idx.all[p]
	return ok
}

// Glob returns the registered targets in dir whose base name matches re.
// A directory with no registered targets returns an empty slice without
// error.
func (idx *TargetIndex) Glob(dir quillpath.Path, re *regexp.Regexp) []quillpath.Path {
	idx.ensure()
	targets := idx.byDir[dir]
	if len(targets) == 0 {
		return nil
	}
	matches := make([]quillpath.Path, 0)
	for t := range targets {
		if re.MatchString(path.Base(t.String())) {
			matches = append(matches, t)
		}
	}
	quillpath.Sort(matches)
	return matches
}
