// Package state owns the on-disk runtime layout under the data path:
//
//	<db>/store      pebble database
//	<db>/state      runtime artifacts (crash dumps, abort records,
//	                retention bookkeeping, scratch space)
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved runtime directories.
type Paths struct {
	Root      string
	Store     string
	State     string
	Crash     string
	Abort     string
	Retention string
	Tmp       string
}

// PathsVar is set once during startup and read by the packages that
// write runtime artifacts.
var PathsVar Paths

// Init resolves the layout under dbPath and stores it in PathsVar.
func Init(dbPath string) Paths {
	statePath := filepath.Join(dbPath, "state")
	PathsVar = Paths{
		Root:      dbPath,
		Store:     filepath.Join(dbPath, "store"),
		State:     statePath,
		Crash:     filepath.Join(statePath, "crash"),
		Abort:     filepath.Join(statePath, "abort"),
		Retention: filepath.Join(statePath, "retention"),
		Tmp:       filepath.Join(statePath, "tmp"),
	}
	return PathsVar
}

// EnsureStateDirs ensures the canonical runtime folder layout exists
// under the provided DB path. It rejects symlinks and permissive modes,
// and verifies each directory is writable.
func EnsureStateDirs(dbPath string) error {
	p := Init(dbPath)
	paths := []string{p.Store, p.Crash, p.Abort, p.Retention, p.Tmp}

	for _, dir := range paths {
		if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
			return fmt.Errorf("cannot create parent for %s: %w", dir, err)
		}

		// if path exists, reject symlinks and non-directories
		if fi, err := os.Lstat(dir); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("path is a symlink: %s", dir)
			}
			if !fi.IsDir() {
				return fmt.Errorf("path exists and is not a directory: %s", dir)
			}
			if fi.Mode().Perm()&0o022 != 0 {
				return fmt.Errorf("path has permissive mode (group/other write): %s", dir)
			}
		}

		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("cannot create path %s: %w", dir, err)
		}

		// writability check: create and remove a temp file
		tmp, err := os.CreateTemp(dir, ".validate-*")
		if err != nil {
			return fmt.Errorf("path not writable: %s: %w", dir, err)
		}
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	return nil
}
