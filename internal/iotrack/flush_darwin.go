//go:build darwin

package iotrack

import (
	"os"

	"golang.org/x/sys/unix"
)

// flushSync performs a durable sync of f. macOS has no fdatasync(); plain
// fsync() leaves data in the drive's write cache, so we ask for
// F_FULLFSYNC, which forces data to the physical medium.
func flushSync(f *os.File) error {
	_, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0)
	if err != nil {
		// not every filesystem (e.g. some network mounts) supports
		// F_FULLFSYNC; fall back to a regular fsync rather than failing
		// durability checks outright.
		return f.Sync()
	}
	return nil
}
