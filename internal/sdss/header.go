// Package sdss implements the self-describing-storage-spec file header:
// the fixed-size preamble every tracked file (journal or catalog) begins
// with, gating open/create.
//
// The name and header shape are grounded on Skytable's SDSS v1 file spec
// (original_source/.../raw/journal/raw/mod.rs references
// storage::common::sdss::sdss_r1::FileSpecV1) — a fixed magic + file class/
// specifier + format version + creation timestamp, validated on open.
package sdss

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/driftdb/driftdb/internal/buf"
	"github.com/driftdb/driftdb/internal/errs"
)

// HeaderSize is the fixed, compile-time-constant size of the header. The
// cursor sits immediately after it for all subsequent event I/O.
const HeaderSize = 64

const magicLen = 16

// Magic is the fixed 16-byte identifier every driftdb tracked file begins
// with.
var Magic = [magicLen]byte{'d', 'r', 'i', 'f', 't', 'd', 'b', 0, 's', 'd', 's', 's', 'v', '1', 0, 0}

// FileClass identifies the broad category of tracked file.
type FileClass uint8

const (
	// ClassJournal is a raw journal: a model data journal or a catalog.
	ClassJournal FileClass = 1
)

// FileSpecifier narrows a FileClass to its exact adapter.
type FileSpecifier uint8

const (
	// SpecifierModelData is a model's batch-of-row-deltas journal.
	SpecifierModelData FileSpecifier = 1
	// SpecifierCatalog is the system catalog's DDL-event journal.
	SpecifierCatalog FileSpecifier = 2
)

// FormatVersion is the on-disk encoding version this package reads/writes.
const FormatVersion uint32 = 1

// Header is the decoded fixed-size file preamble.
type Header struct {
	Class       FileClass
	Specifier   FileSpecifier
	Version     uint32
	CreatedAt   time.Time
	createdLoHi [2]uint64 // raw 128-bit epoch-nanos words, lo then hi
}

// New builds a header for file creation, stamping the current time.
func New(class FileClass, specifier FileSpecifier, now time.Time) Header {
	ns := now.UnixNano()
	return Header{
		Class:       class,
		Specifier:   specifier,
		Version:     FormatVersion,
		CreatedAt:   now,
		createdLoHi: [2]uint64{uint64(ns), 0},
	}
}

// Encode writes the fixed-size header into a fresh HeaderSize-byte buffer.
func (h Header) Encode() []byte {
	out := make([]byte, HeaderSize)
	copy(out[0:magicLen], Magic[:])
	out[magicLen] = byte(h.Class)
	out[magicLen+1] = byte(h.Specifier)
	binary.LittleEndian.PutUint32(out[magicLen+2:magicLen+6], h.Version)
	lo, hi := h.createdLoHi[0], h.createdLoHi[1]
	if lo == 0 && hi == 0 {
		lo = uint64(h.CreatedAt.UnixNano())
	}
	buf.PutU64LE(out[magicLen+6:magicLen+14], lo)
	buf.PutU64LE(out[magicLen+14:magicLen+22], hi)
	// remaining bytes are zero padding out to HeaderSize.
	return out
}

// Decode validates and parses a HeaderSize-byte buffer. A magic mismatch or
// a buffer shorter than HeaderSize reports errs.FileDecodeHeaderCorrupted;
// a correct magic with a format version this package doesn't understand
// reports errs.FileDecodeHeaderVersionMismatch.
func Decode(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errs.New(errs.FileDecodeHeaderCorrupted, "buffer shorter than header size")
	}
	for i := 0; i < magicLen; i++ {
		if b[i] != Magic[i] {
			return Header{}, errs.New(errs.FileDecodeHeaderCorrupted, "magic mismatch")
		}
	}
	version := binary.LittleEndian.Uint32(b[magicLen+2 : magicLen+6])
	if version != FormatVersion {
		return Header{}, errs.New(errs.FileDecodeHeaderVersionMismatch,
			fmt.Sprintf("got %d, want %d", version, FormatVersion))
	}
	lo := buf.U64LE(b[magicLen+6 : magicLen+14])
	hi := buf.U64LE(b[magicLen+14 : magicLen+22])
	h := Header{
		Class:       FileClass(b[magicLen]),
		Specifier:   FileSpecifier(b[magicLen+1]),
		Version:     version,
		createdLoHi: [2]uint64{lo, hi},
	}
	h.CreatedAt = time.Unix(0, int64(lo)).UTC()
	return h, nil
}
