//go:build linux || freebsd

package iotrack

import (
	"os"

	"golang.org/x/sys/unix"
)

// flushSync performs a durable sync of f. On Linux/FreeBSD, fdatasync()
// is sufficient: it forces file data (but not redundant metadata such as
// mtime) to stable storage.
func flushSync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
