// Package row implements the in-memory row handle, its per-row lock and
// revision tracking, and the per-model delta queue that feeds the batch
// writer.
//
// Grounded on the teacher's NK/VK cell handles (hive/hbin.go): a small,
// lock-protected in-memory record identified by a stable key, generalized
// from registry cells to model rows with a revision counter for
// read-your-writes and staleness resolution.
package row

import (
	"unicode/utf8"

	"github.com/driftdb/driftdb/internal/buf"
	"github.com/driftdb/driftdb/internal/errs"
)

// PKTag distinguishes a primary key's storage representation. It is fixed
// per model: every row in a model shares the same tag.
type PKTag uint8

const (
	PKUint PKTag = iota
	PKSint
	PKStr
	PKBin
)

// PK is a row's primary key value, tag-dispatched between a fixed-width
// integer and a length-prefixed byte/string payload.
type PK struct {
	Tag   PKTag
	Num   uint64 // valid for PKUint (as uint64) and PKSint (bit pattern of int64)
	Bytes []byte // valid for PKStr and PKBin
}

func PKFromUint(v uint64) PK { return PK{Tag: PKUint, Num: v} }
func PKFromSint(v int64) PK  { return PK{Tag: PKSint, Num: uint64(v)} }
func PKFromStr(v string) PK  { return PK{Tag: PKStr, Bytes: []byte(v)} }
func PKFromBin(v []byte) PK  { return PK{Tag: PKBin, Bytes: v} }

func (k PK) Sint() int64 { return int64(k.Num) }
func (k PK) Str() string { return string(k.Bytes) }

// Key returns a value usable as a Go map key for this primary key.
func (k PK) Key() any {
	switch k.Tag {
	case PKUint, PKSint:
		return k.Num
	case PKStr, PKBin:
		return string(k.Bytes)
	default:
		return nil
	}
}

// Encode appends the pk's wire form (no tag byte — the tag is fixed per
// model and stored once in the batch's global metadata) to dst.
func Encode(dst []byte, k PK) []byte {
	switch k.Tag {
	case PKUint, PKSint:
		return buf.AppendU64LE(dst, k.Num)
	case PKStr, PKBin:
		dst = buf.AppendU64LE(dst, uint64(len(k.Bytes)))
		return append(dst, k.Bytes...)
	default:
		panic("row: encode of illegal pk tag")
	}
}

type blockReader interface {
	ReadBlock(n int) ([]byte, error)
}

// Decode reads a pk of the given tag from r.
func Decode(r blockReader, tag PKTag) (PK, error) {
	switch tag {
	case PKUint, PKSint:
		b, err := r.ReadBlock(8)
		if err != nil {
			return PK{}, err
		}
		return PK{Tag: tag, Num: buf.U64LE(b)}, nil
	case PKStr, PKBin:
		lenB, err := r.ReadBlock(8)
		if err != nil {
			return PK{}, err
		}
		n := buf.U64LE(lenB)
		data, err := r.ReadBlock(int(n))
		if err != nil {
			return PK{}, err
		}
		if tag == PKStr && !utf8.Valid(data) {
			return PK{}, errs.New(errs.InternalDecodeStructureIllegalData, "string pk is not valid UTF-8")
		}
		return PK{Tag: tag, Bytes: data}, nil
	default:
		return PK{}, errs.New(errs.InternalDecodeStructureIllegalData, "illegal pk tag")
	}
}
