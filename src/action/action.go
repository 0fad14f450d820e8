// Package action defines the Action interface the engine consumes but
// never interprets: an action is opaque except for a handful of
// operations the engine needs to run and hash it. The concrete
// implementations in this package (Copy, Shell) exist so the engine is
// exercisable end to end in tests; a real embedder supplies its own
// action language (process invocation, generator output, etc).
package action

import (
	"context"

	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/sexp"
)

// Action is the opaque unit of work a rule's build arrow evaluates to.
type Action interface {
	// Sexp returns a canonical hashable form of the action.
	Sexp() sexp.Value
	// Dir is the action's declared working directory.
	Dir() quillpath.Path
	// UpdatedFiles are targets the action updates in place rather than
	// rewriting from scratch; these must not be pre-deleted before exec.
	UpdatedFiles() map[quillpath.Path]struct{}
	// Sandbox returns a copy of the action rooted at sandboxRoot, with
	// every local path rewritten through mapping; external paths are
	// left untouched. sandboxRoot replaces the build root the returned
	// action resolves Local paths against.
	Sandbox(sandboxRoot string, mapping map[quillpath.Path]quillpath.Path) Action
	// Exec runs the action to completion, returning nil on success or an
	// error.
	Exec(ctx context.Context, targets []quillpath.Path) error
}

func remapLocal(p quillpath.Path, mapping map[quillpath.Path]quillpath.Path) quillpath.Path {
	if !p.Local() {
		return p
	}
	if mapped, ok := mapping[p]; ok {
		return mapped
	}
	return p
}
