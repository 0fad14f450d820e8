// Package trace implements the trace store: a flat, persistent
// association from target path to the hex-encoded digest of (deps,
// targets, action) last used to build it, serialised under the build
// root as an S-expression: "(list (pair path hex-digest))".
package trace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quill-build/quill/src/logging"
	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/sexp"
)

var log = logging.MustGetLogger("quill/trace")

// Digest is a hex-encoded rule hash.
type Digest string

// Trace is the durable target -> digest association: durable across
// runs, unlike timestamps or execution state.
type Trace struct {
	entries map[quillpath.Path]Digest
}

// FileName is the trace file's path relative to the build root.
const FileName = ".db"

// Load reads the trace file buildDir/.db. A missing file is
// equivalent to an empty trace.
func Load(buildDir string) (*Trace, error) {
	path := filepath.Join(buildDir, FileName)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Trace{entries: map[quillpath.Path]Digest{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trace: opening %s: %w", path, err)
	}
	defer f.Close()

	v, err := sexp.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("trace: parsing %s: %w", path, err)
	}
	list, ok := v.(sexp.List)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("trace: %s is not a well-formed (list ...) form", path)
	}
	if tag, ok := list[0].(sexp.Atom); !ok || tag != "list" {
		return nil, fmt.Errorf("trace: %s does not start with the 'list' tag", path)
	}
	entries := map[quillpath.Path]Digest{}
	for _, item := range list[1:] {
		pair, ok := item.(sexp.List)
		if !ok || len(pair) != 3 {
			return nil, fmt.Errorf("trace: %s contains a malformed pair entry", path)
		}
		tag, ok := pair[0].(sexp.Atom)
		if !ok || tag != "pair" {
			return nil, fmt.Errorf("trace: %s contains an entry not tagged 'pair'", path)
		}
		key, ok := pair[1].(sexp.Atom)
		if !ok {
			return nil, fmt.Errorf("trace: %s contains a non-atom path", path)
		}
		val, ok := pair[2].(sexp.Atom)
		if !ok {
			return nil, fmt.Errorf("trace: %s contains a non-atom digest", path)
		}
		entries[quillpath.New(string(key))] = Digest(val)
	}
	return &Trace{entries: entries}, nil
}

// Get returns the previously recorded digest for p, if any.
func (t *Trace) Get(p quillpath.Path) (Digest, bool) {
	d, ok := t.entries[p]
	return d, ok
}

// Set records the digest for p, overwriting any previous entry.
func (t *Trace) Set(p quillpath.Path, d Digest) {
	t.entries[p] = d
}

// Dump writes the trace back to buildDir/.db, but only if buildDir
// exists.
func Dump(buildDir string, t *Trace) error {
	if _, err := os.Stat(buildDir); os.IsNotExist(err) {
		return nil
	}
	paths := make([]quillpath.Path, 0, len(t.entries))
	for p := range t.entries {
		paths = append(paths, p)
	}
	quillpath.Sort(paths)

	items := make([]sexp.Value, 0, len(paths))
	for _, p := range paths {
		items = append(items, sexp.Pair(sexp.Atom(p.String()), sexp.Atom(t.entries[p])))
	}
	doc := sexp.Of("list", items...)

	path := filepath.Join(buildDir, FileName)
	if err := os.WriteFile(path, []byte(doc.String()), 0o644); err != nil {
		return fmt.Errorf("trace: writing %s: %w", path, err)
	}
	log.Debug("wrote trace with %d entries to %s", len(paths), path)
	return nil
}
