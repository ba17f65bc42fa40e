//go:build !linux

package vfile

import "os"

// fallocateExact falls back to a plain truncate on platforms without
// fallocate(2); the resulting region still reads as zeros.
func fallocateExact(f *os.File, oldSize, newSize int64) error {
	if newSize <= oldSize {
		return nil
	}
	return f.Truncate(newSize)
}
