package action

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/quill-build/quill/src/logging"
	"github.com/quill-build/quill/src/quillfs"
	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/sexp"
)

var log = logging.MustGetLogger("quill/action")

// Copy copies From to To, creating To's parent directory if needed. A
// plain byte copy rather than a symlink, so the copy survives the
// source being sandboxed or garbage-collected independently.
type Copy struct {
	From, To quillpath.Path
	WorkDir  quillpath.Path
	// Root is the build root used to resolve Local paths on disk; it is
	// supplied by the engine at action-construction time since the
	// Action interface itself carries no notion of a filesystem root.
	Root string
}

func (c Copy) Sexp() sexp.Value {
	return sexp.Of("copy", sexp.Atom(c.From.String()), sexp.Atom(c.To.String()))
}

func (c Copy) Dir() quillpath.Path { return c.WorkDir }

func (c Copy) UpdatedFiles() map[quillpath.Path]struct{} { return nil }

func (c Copy) Sandbox(sandboxRoot string, mapping map[quillpath.Path]quillpath.Path) Action {
	return Copy{
		From:    remapLocal(c.From, mapping),
		To:      remapLocal(c.To, mapping),
		WorkDir: remapLocal(c.WorkDir, mapping),
		Root:    sandboxRoot,
	}
}

func (c Copy) Exec(ctx context.Context, targets []quillpath.Path) error {
	from := c.From.UnderBuildRoot(c.Root)
	if !c.From.Local() {
		from = c.From.String()
	}
	to := c.To.UnderBuildRoot(c.Root)
	if err := quillfs.EnsureDir(to); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	src, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("copy: opening source: %w", err)
	}
	defer src.Close()
	dst, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("copy: creating destination: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	log.Debug("copied %s -> %s", from, to)
	return nil
}
