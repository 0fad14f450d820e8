// Package quillfs provides the filesystem helpers and the timestamp
// cache the scheduler needs: mtime memoisation, directory creation, and
// the lazily-built target index that backs the Glob and File_exists
// build-arrow primitives.
package quillfs

import (
	"os"
	"path/filepath"

	"github.com/quill-build/quill/src/logging"
)

var log = logging.MustGetLogger("quill/fs")

// DirPermissions are the default permission bits applied to directories.
const DirPermissions = os.ModeDir | 0775

// EnsureDir ensures the parent directory of filename exists.
func EnsureDir(filename string) error {
	dir := filepath.Dir(filename)
	err := os.MkdirAll(dir, DirPermissions)
	if err != nil && FileExists(dir) {
		// A stale file sits where a directory must now exist - this
		// happens if a rule's target kind changes from file to directory
		// between runs. Remove it and retry rather than failing outright.
		log.Warning("removing file %s; a directory is required there", dir)
		if err2 := os.Remove(dir); err2 == nil {
			err = os.MkdirAll(dir, DirPermissions)
		} else {
			log.Error("%s", err2)
		}
	}
	return err
}

// PathExists returns true if filename exists as a file or directory.
func PathExists(filename string) bool {
	_, err := os.Lstat(filename)
	return err == nil
}

// FileExists returns true if filename exists and is not a directory.
func FileExists(filename string) bool {
	info, err := os.Lstat(filename)
	return err == nil && !info.IsDir()
}
