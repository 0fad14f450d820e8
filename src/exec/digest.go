package exec

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/quill-build/quill/src/action"
	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/sexp"
	"github.com/quill-build/quill/src/trace"
)

// ruleDigest hashes the canonical (deps, targets, action) triple a rule
// was last built with. SHA-256 rather than SHA-1, see DESIGN.md.
func ruleDigest(deps, targets []quillpath.Path, act action.Action) trace.Digest {
	depsCopy := append([]quillpath.Path{}, deps...)
	targetsCopy := append([]quillpath.Path{}, targets...)
	quillpath.Sort(depsCopy)
	quillpath.Sort(targetsCopy)

	doc := sexp.Of("rule",
		sexp.Of("deps", pathsToAtoms(depsCopy)...),
		sexp.Of("targets", pathsToAtoms(targetsCopy)...),
		sexp.Of("action", act.Sexp()),
	)
	sum := sha256.Sum256([]byte(doc.String()))
	return trace.Digest(hex.EncodeToString(sum[:]))
}

func pathsToAtoms(paths []quillpath.Path) []sexp.Value {
	out := make([]sexp.Value, len(paths))
	for i, p := range paths {
		out[i] = sexp.Atom(p.String())
	}
	return out
}
