// Package initflag implements the "initialized" marker file convention of
// spec §3.4: presence of an empty `initialized` file in a directory is the
// sole criterion for "this directory's on-disk structure is fully
// written and consistent."
package initflag

import (
	"os"
	"path/filepath"

	"github.com/siodb/iomgr/internal/ioerr"
)

const fileName = "initialized"

// Path returns the initialized-flag path for dir.
func Path(dir string) string { return filepath.Join(dir, fileName) }

// IsSet reports whether dir has been fully initialized.
func IsSet(dir string) bool {
	_, err := os.Stat(Path(dir))
	return err == nil
}

// Mark writes the initialized flag as the last step of construction
// (spec §3.4). It must only be called once dir's entire initial
// structure has already been durably written.
func Mark(dir string) error {
	f, err := os.OpenFile(Path(dir), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return ioerr.IO("MarkInitializedFailed", err)
	}
	defer f.Close()
	return nil
}

// RequireAbsent fails with AlreadyExists if dir is already initialized —
// the create-path check of spec §3.4.
func RequireAbsent(dir string) error {
	if IsSet(dir) {
		return ioerr.Userf("AlreadyExists", "directory %s is already initialized", dir)
	}
	return nil
}

// RequirePresent fails if dir is not initialized — the open-path check
// of spec §3.4.
func RequirePresent(dir string) error {
	if !IsSet(dir) {
		return ioerr.Userf("DoesNotExist", "directory %s is not initialized", dir)
	}
	return nil
}
