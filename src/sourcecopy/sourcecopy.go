// Package sourcecopy implements the source-copy bridge: it exposes a
// tree of External source files into a context's build directory as
// Local copy targets, so rules elsewhere in the graph can depend on
// them the same way they depend on any other target.
package sourcecopy

import (
	"github.com/quill-build/quill/src/action"
	"github.com/quill-build/quill/src/arrow"
	"github.com/quill-build/quill/src/exec"
	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/registry"
)

// Synthesize registers, with allowOverride = true, one copy pre-rule
// per source not already a target of another rule: a Local path under
// ctx.BuildDir mirroring the source's own relative path, produced by
// copying the (External) source in. Existing rules win - sourcecopy
// never overrides a target some other rule already produces. Because
// reg may be shared across several contexts, each synthesized rule's
// copy action is rooted at this particular ctx's build directory, so
// the same External source mirrors independently into every context
// that depends on it.
func Synthesize(ctx exec.Context, sources []quillpath.Path, reg *registry.Registry) error {
	for _, src := range sources {
		local := localMirror(src)
		if reg.IsTarget(local) {
			continue // some other rule already produces this target
		}
		copyAction := action.Copy{From: src, To: local, WorkDir: quillpath.New("."), Root: ctx.BuildDir}
		build := arrow.Return[action.Action](copyAction)
		rule := &registry.Rule{Targets: []quillpath.Path{local}, Build: build}
		if err := reg.AddRule([]quillpath.Path{local}, rule, true); err != nil {
			return err
		}
	}
	return nil
}

// localMirror maps an External source path onto the Local path its
// copy target occupies: the same relative structure, rooted under the
// build tree instead of wherever the source lives on disk.
func localMirror(src quillpath.Path) quillpath.Path {
	if src.Local() {
		return src
	}
	return quillpath.New(trimLeadingSlash(src.String()))
}

func trimLeadingSlash(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	return s
}
