// Package atomicfile publishes files via temp-file-plus-rename so readers
// never observe a partially written destination.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Write streams content into a temporary file in the destination's
// directory, then atomically renames it onto path. On any failure the
// temporary file is discarded and the prior destination, if any, survives
// untouched.
func Write(path string, write func(f *os.File) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}

	// The temp file is removed on every exit path that does not end in a
	// successful rename.
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	committed = true
	return nil
}
