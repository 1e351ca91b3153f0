package sdss

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftdb/driftdb/internal/errs"
)

func TestHeaderRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 123).UTC()
	h := New(ClassJournal, SpecifierModelData, now)
	enc := h.Encode()
	require.Len(t, enc, HeaderSize)

	got, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, ClassJournal, got.Class)
	require.Equal(t, SpecifierModelData, got.Specifier)
	require.Equal(t, FormatVersion, got.Version)
	require.Equal(t, now.UnixNano(), got.CreatedAt.UnixNano())
}

func TestHeaderDecodeCorrupted(t *testing.T) {
	_, err := Decode(make([]byte, HeaderSize-1))
	require.Error(t, err)
	var decErr *errs.Error
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, errs.FileDecodeHeaderCorrupted, decErr.Kind)

	bad := New(ClassJournal, SpecifierCatalog, time.Now()).Encode()
	bad[0] ^= 0xFF
	_, err = Decode(bad)
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, errs.FileDecodeHeaderCorrupted, decErr.Kind)
}

func TestHeaderDecodeVersionMismatch(t *testing.T) {
	enc := New(ClassJournal, SpecifierModelData, time.Now()).Encode()
	enc[magicLen+2] = 0xFF // corrupt the version word
	_, err := Decode(enc)
	var decErr *errs.Error
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, errs.FileDecodeHeaderVersionMismatch, decErr.Kind)
}
