package iotrack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.dat")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriterTrackedChecksumAndCursor(t *testing.T) {
	f := openTemp(t)
	w := NewWriter(f, 0, 0)

	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.EqualValues(t, 5, w.Cursor())

	crcAfterWrite := w.Checksum()
	require.NoError(t, w.FlushSync())
	// flushing never changes the checksum: it is checksum-neutral.
	require.Equal(t, crcAfterWrite, w.Checksum())
	require.NoError(t, w.VerifyCursor())
}

func TestWriterThroughBuffer(t *testing.T) {
	f := openTemp(t)
	w := NewWriter(f, 0, 0)

	_, err := w.Write([]byte("ab"))
	require.NoError(t, err)
	_, err = w.WriteThroughBuffer([]byte("cd"))
	require.NoError(t, err)
	require.EqualValues(t, 4, w.Cursor())
	require.NoError(t, w.VerifyCursor())
}

func TestReaderTracksChecksumAcrossReads(t *testing.T) {
	f := openTemp(t)
	w := NewWriter(f, 0, 0)
	_, err := w.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, w.FlushSync())
	wantCRC := w.Checksum()

	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	r, err := NewReader(f, 0, 0)
	require.NoError(t, err)

	first, err := r.ReadBlock(4)
	require.NoError(t, err)
	require.Equal(t, []byte("0123"), first)
	rest, err := r.ReadBlock(6)
	require.NoError(t, err)
	require.Equal(t, []byte("456789"), rest)

	require.Equal(t, wantCRC, r.Checksum())
	require.True(t, r.IsEOF())
	require.EqualValues(t, 0, r.Remaining())
}

func TestVerifyCursorDetectsDivergence(t *testing.T) {
	f := openTemp(t)
	w := NewWriter(f, 0, 0)
	_, err := w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.FlushSync())

	// simulate external truncation behind the writer's back.
	require.NoError(t, f.Truncate(0))

	err = w.VerifyCursor()
	require.Error(t, err)
	var mismatch *CursorMismatchError
	require.ErrorAs(t, err, &mismatch)
}
