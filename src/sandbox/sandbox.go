// Package sandbox stages a per-rule private directory containing only
// the declared dependencies and target parent directories of a rule,
// so that an action reading or writing an undeclared path fails. A
// portable directory-staging mechanism (wipe-before-use, remove-after-
// success, retain on failure for inspection), deliberately not relying
// on any OS-level namespace isolation.
package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quill-build/quill/src/logging"
	"github.com/quill-build/quill/src/quillfs"
	"github.com/quill-build/quill/src/quillpath"
)

var log = logging.MustGetLogger("quill/sandbox")

// Dir computes the sandbox directory for a given rule hash, rooted
// under buildDir/.sandbox.
func Dir(buildDir, hexHash string) string {
	return filepath.Join(buildDir, ".sandbox", hexHash)
}

// Stage wipes dir and re-creates it, then materialises deps (copied in
// from root) and mkdir's the parent directories of both deps and
// targets within it, so an action executing with dir as its remapped
// root sees exactly the declared inputs and nowhere to write but its
// declared outputs.
func Stage(dir, root string, deps, targets []quillpath.Path) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("sandbox: wiping %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, quillfs.DirPermissions); err != nil {
		return fmt.Errorf("sandbox: creating %s: %w", dir, err)
	}
	for _, d := range deps {
		if !d.Local() {
			continue // external paths are untouched by sandboxing
		}
		if err := stageOne(root, dir, d); err != nil {
			return err
		}
	}
	for _, t := range targets {
		if !t.Local() {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, t.String())), quillfs.DirPermissions); err != nil {
			return fmt.Errorf("sandbox: creating target parent dir for %s: %w", t, err)
		}
	}
	return nil
}

func stageOne(root, dir string, dep quillpath.Path) error {
	src := dep.UnderBuildRoot(root)
	info, err := os.Lstat(src)
	if err != nil {
		// A declared dependency that doesn't yet exist on disk (e.g. it
		// is itself a directory-producing rule not yet populated) is not
		// this function's concern; the scheduler only calls Stage after
		// every dependency has been realized.
		return fmt.Errorf("sandbox: staging %s: %w", dep, err)
	}
	dst := filepath.Join(dir, dep.String())
	if err := os.MkdirAll(filepath.Dir(dst), quillfs.DirPermissions); err != nil {
		return fmt.Errorf("sandbox: creating parent dir for %s: %w", dep, err)
	}
	if info.IsDir() {
		return fmt.Errorf("sandbox: staging directories is not supported: %s", dep)
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// Remove deletes the sandbox directory after a successful build. On
// failure the caller leaves it behind for inspection (see DESIGN.md).
func Remove(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		log.Warning("failed to remove sandbox dir %s: %v", dir, err)
		return err
	}
	return nil
}

// Mapping builds the local-path rewrite map an Action's Sandbox method
// consumes: every declared dep and target maps to its staged location
// under dir, expressed as a quillpath so it composes with
// quillpath.UnderBuildRoot when the action later resolves it against
// dir-as-root.
func Mapping(deps, targets []quillpath.Path) map[quillpath.Path]quillpath.Path {
	mapping := make(map[quillpath.Path]quillpath.Path, len(deps)+len(targets))
	for _, p := range append(append([]quillpath.Path{}, deps...), targets...) {
		if p.Local() {
			mapping[p] = p // path is unchanged; only the resolved root differs
		}
	}
	return mapping
}
