//go:build !linux && !freebsd && !darwin && !windows

package iotrack

import "os"

// flushSync falls back to a plain fsync on platforms without a dedicated
// fdatasync/F_FULLFSYNC/FlushFileBuffers primitive.
func flushSync(f *os.File) error {
	return f.Sync()
}
