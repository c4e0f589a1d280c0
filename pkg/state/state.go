// Package state manages the on-disk runtime layout under the data path.
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved runtime directories under the data path.
type Paths struct {
	Store string // pebble data
	Crash string // fatal-exit dumps
	Tmp   string // scratch space
}

// Resolve maps a data path to its runtime layout without touching disk.
func Resolve(dbPath string) Paths {
	return Paths{
		Store: filepath.Join(dbPath, "store"),
		Crash: filepath.Join(dbPath, "crash"),
		Tmp:   filepath.Join(dbPath, "tmp"),
	}
}

// EnsureDirs creates the runtime layout, rejecting symlinks and permissive
// modes, and verifies each directory is writable.
func EnsureDirs(dbPath string) (Paths, error) {
	p := Resolve(dbPath)
	for _, dir := range []string{p.Store, p.Crash, p.Tmp} {
		if err := ensureDir(dir); err != nil {
			return Paths{}, err
		}
	}
	return p, nil
}

func ensureDir(p string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("cannot create parent for %s: %w", p, err)
	}
	if fi, err := os.Lstat(p); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("path is a symlink: %s", p)
		}
		if !fi.IsDir() {
			return fmt.Errorf("path exists and is not a directory: %s", p)
		}
		if fi.Mode().Perm()&0o022 != 0 {
			return fmt.Errorf("path has permissive mode (group/other write): %s", p)
		}
	}
	if err := os.MkdirAll(p, 0o700); err != nil {
		return fmt.Errorf("cannot create path %s: %w", p, err)
	}

	// writability check
	tmp, err := os.CreateTemp(p, ".validate-*")
	if err != nil {
		return fmt.Errorf("path not writable: %s: %w", p, err)
	}
	tmp.Close()
	_ = os.Remove(tmp.Name())
	return nil
}
