package iotrack

import (
	"bufio"
	"hash/crc64"
	"io"
	"os"
)

// Reader wraps a sequential *os.File with a byte cursor and a running
// CRC-64 checksum. Any read that returns bytes has updated the checksum by
// exactly those bytes.
type Reader struct {
	f      *os.File
	buf    *bufio.Reader
	cursor uint64
	crc    uint64
	size   int64
}

// NewReader wraps f, seeding the cursor/checksum (nonzero when resuming a
// read partway through a file, e.g. restore after the header).
func NewReader(f *os.File, cursor uint64, crc uint64) (*Reader, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &Reader{
		f:      f,
		buf:    bufio.NewReaderSize(f, 32*1024),
		cursor: cursor,
		crc:    crc,
		size:   fi.Size(),
	}, nil
}

// Read fills p entirely or returns an error (io.ReadFull semantics),
// advancing the cursor and checksum by exactly the bytes consumed.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := io.ReadFull(r.buf, p)
	if n > 0 {
		r.cursor += uint64(n)
		r.crc = crc64.Update(r.crc, crcTable, p[:n])
	}
	return n, err
}

// ReadBlock reads exactly n bytes as a convenience for fixed-width decodes.
func (r *Reader) ReadBlock(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// IsEOF reports whether the cursor has reached the physical end of file.
func (r *Reader) IsEOF() bool {
	return int64(r.cursor) >= r.size
}

// Remaining returns the number of bytes between the cursor and EOF.
func (r *Reader) Remaining() int64 {
	rem := r.size - int64(r.cursor)
	if rem < 0 {
		return 0
	}
	return rem
}

// Checksum returns the current running CRC-64.
func (r *Reader) Checksum() uint64 { return r.crc }

// Cursor returns the current byte cursor.
func (r *Reader) Cursor() uint64 { return r.cursor }
