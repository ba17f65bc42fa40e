//go:build linux

package vfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateExact grows f to at least newSize bytes using an exact
// (non-sparse) allocation, per spec §4.2 "extend uses fallocate-style
// exact allocation at the current end."
func fallocateExact(f *os.File, oldSize, newSize int64) error {
	if newSize <= oldSize {
		return nil
	}
	return unix.Fallocate(int(f.Fd()), 0, oldSize, newSize-oldSize)
}
