// Package iotrack implements a tracked sequential writer/reader pair: a
// buffered writer and reader, each maintaining a running CRC-64 checksum
// and a byte cursor alongside the underlying file.
//
// Grounded on the teacher's hive/dirty dirty-range-tracking discipline and
// hive/dirty/flush_{unix,darwin,windows}.go for the platform-specific
// flush/fsync split (see DESIGN.md).
package iotrack

import (
	"bufio"
	"hash/crc64"
	"os"
)

var crcTable = crc64.MakeTable(crc64.ISO)

// Writer wraps a sequential *os.File with an internal buffer, a byte
// cursor, and a running CRC-64 checksum. Checksums reflect logical bytes
// written, not what has physically reached disk — flushing is checksum
// neutral.
type Writer struct {
	f      *os.File
	buf    *bufio.Writer
	cursor uint64
	crc    uint64
}

// NewWriter wraps f, starting the cursor and checksum at the given seed
// values (nonzero when reopening an existing file after the header and any
// prior events).
func NewWriter(f *os.File, cursor uint64, crc uint64) *Writer {
	return &Writer{
		f:      f,
		buf:    bufio.NewWriterSize(f, 32*1024),
		cursor: cursor,
		crc:    crc,
	}
}

// Write buffers p, updating the checksum and cursor immediately
// (tracked_write).
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	w.advance(p[:n])
	if err != nil {
		return n, err
	}
	return n, nil
}

// WriteThroughBuffer flushes the buffer first, then writes p directly to
// the file, bypassing buffering for this call. The cursor and checksum are
// still updated (tracked_write_through_buffer). Used for large payloads
// where double-buffering would waste memory.
func (w *Writer) WriteThroughBuffer(p []byte) (int, error) {
	if err := w.buf.Flush(); err != nil {
		return 0, err
	}
	n, err := w.f.Write(p)
	w.advance(p[:n])
	if err != nil {
		return n, err
	}
	return n, nil
}

func (w *Writer) advance(written []byte) {
	w.cursor += uint64(len(written))
	w.crc = crc64.Update(w.crc, crcTable, written)
}

// FlushSync flushes the buffer to the OS and then fsyncs. It never changes
// the checksum: checksums track logical bytes written, independent of
// durability.
func (w *Writer) FlushSync() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return flushSync(w.f)
}

// Checksum returns the current running CRC-64.
func (w *Writer) Checksum() uint64 { return w.crc }

// Cursor returns the current logical byte cursor.
func (w *Writer) Cursor() uint64 { return w.cursor }

// VerifyCursor reconciles the in-memory cursor with the physical file
// length, without flushing first — a journal's heartbeat check relies on
// this to tell whether a failed write's buffered bytes ever reached disk.
// A mismatch means the on-disk file has diverged from what this writer
// believes it wrote.
func (w *Writer) VerifyCursor() error {
	fi, err := w.f.Stat()
	if err != nil {
		return err
	}
	if uint64(fi.Size()) != w.cursor {
		return &CursorMismatchError{Expected: w.cursor, Actual: uint64(fi.Size())}
	}
	return nil
}

// DiscardBuffered drops any buffered-but-unflushed bytes without writing
// them, and rewinds the cursor and checksum to the given last-known-good
// values. Used to recover from a failed mid-event write once a heartbeat
// confirms nothing partial reached disk.
func (w *Writer) DiscardBuffered(cursor, crc uint64) {
	w.buf.Reset(w.f)
	w.cursor = cursor
	w.crc = crc
}

// CursorMismatchError is returned by VerifyCursor when the physical file
// length disagrees with the tracked cursor.
type CursorMismatchError struct {
	Expected uint64
	Actual   uint64
}

func (e *CursorMismatchError) Error() string {
	return "iotrack: cursor diverged from file length"
}
