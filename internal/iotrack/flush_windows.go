//go:build windows

package iotrack

import (
	"os"

	"golang.org/x/sys/windows"
)

// flushSync performs a durable sync of f using FlushFileBuffers, which
// forces all file data and metadata to disk.
func flushSync(f *os.File) error {
	return windows.FlushFileBuffers(windows.Handle(f.Fd()))
}
