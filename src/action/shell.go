package action

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/sexp"
)

// Shell runs Command via the shell, in WorkDir: a plain
// exec.CommandContext with captured combined output surfaced on
// failure for diagnostics.
type Shell struct {
	Command string
	WorkDir quillpath.Path
	Root    string
	// Updated lists targets the command is expected to modify in place
	// rather than fully regenerate.
	Updated []quillpath.Path
}

func (s Shell) Sexp() sexp.Value {
	return sexp.Of("shell", sexp.Atom(s.Command), sexp.Atom(s.WorkDir.String()))
}

func (s Shell) Dir() quillpath.Path { return s.WorkDir }

func (s Shell) UpdatedFiles() map[quillpath.Path]struct{} {
	if len(s.Updated) == 0 {
		return nil
	}
	out := make(map[quillpath.Path]struct{}, len(s.Updated))
	for _, p := range s.Updated {
		out[p] = struct{}{}
	}
	return out
}

func (s Shell) Sandbox(sandboxRoot string, mapping map[quillpath.Path]quillpath.Path) Action {
	updated := make([]quillpath.Path, len(s.Updated))
	for i, p := range s.Updated {
		updated[i] = remapLocal(p, mapping)
	}
	return Shell{
		Command: s.Command,
		WorkDir: remapLocal(s.WorkDir, mapping),
		Root:    sandboxRoot,
		Updated: updated,
	}
}

func (s Shell) Exec(ctx context.Context, targets []quillpath.Path) error {
	dir := s.WorkDir.UnderBuildRoot(s.Root)
	cmd := exec.CommandContext(ctx, "sh", "-c", s.Command)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("shell action failed in %s: %w\n%s", dir, err, out.String())
	}
	log.Debug("ran %q in %s", s.Command, dir)
	return nil
}
