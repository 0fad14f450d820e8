// Package gc implements target garbage collection: removing stale
// artifacts from a context's build directory that no longer correspond
// to any registered target, so a build directory does not accumulate
// output from rules that have since been removed or renamed.
package gc

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/quill-build/quill/src/exec"
	"github.com/quill-build/quill/src/logging"
	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/registry"
)

var log = logging.MustGetLogger("quill/gc")

// RemoveOldArtifacts walks each context's build directory, unlinking
// any file that is not a registered target of reg, then removing
// directories left empty by that unlinking (bottom-up). reg is shared
// across ctxs, so a target produced in one context's build directory
// never counts as stale when sweeping another. Multiple independent
// failures are aggregated via go-multierror rather than stopping at
// the first one.
func RemoveOldArtifacts(ctxs []exec.Context, reg *registry.Registry) error {
	isTarget := targetSet(reg)
	var result error
	for _, ctx := range ctxs {
		if err := sweepDir(ctx.BuildDir, isTarget); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func targetSet(reg *registry.Registry) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range reg.AllTargets() {
		if t.Local() {
			set[t.String()] = struct{}{}
		}
	}
	return set
}

func sweepDir(dir string, isTarget map[string]struct{}) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	var result error
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path == dir {
			return nil
		}
		if path == filepath.Join(dir, ".db") || isUnderSandbox(dir, path) {
			return nil // the trace file and sandbox staging area are not targets
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		if _, ok := isTarget[quillpath.New(rel).String()]; ok {
			return nil
		}
		log.Info("removing stale artifact %s", path)
		if rmErr := os.Remove(path); rmErr != nil {
			result = multierror.Append(result, rmErr)
		}
		return nil
	})
	if err != nil {
		result = multierror.Append(result, err)
	}
	pruneEmptyDirs(dir)
	return result
}

func isUnderSandbox(buildDir, path string) bool {
	rel, err := filepath.Rel(filepath.Join(buildDir, ".sandbox"), path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// pruneEmptyDirs removes directories under root left empty by sweepDir,
// working from the deepest paths upward.
func pruneEmptyDirs(root string) {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err == nil && len(entries) == 0 {
			os.Remove(dirs[i])
		}
	}
}
