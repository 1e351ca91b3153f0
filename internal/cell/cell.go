// Package cell implements the tagged-union value type stored in every row
// field, and its on-disk wire encoding.
//
// Grounded on the teacher's ValueSpec/ValueType pairing in
// hive/edit/types.go (a value is a type tag plus raw data), generalized
// from registry value types to a full set of scalar, string, bytes, list
// and null variants.
package cell

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/driftdb/driftdb/internal/buf"
	"github.com/driftdb/driftdb/internal/errs"
)

// Kind is the wire discriminator byte for a Cell's type.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindSint8
	KindSint16
	KindSint32
	KindSint64
	KindFloat32
	KindFloat64
	KindBytes
	KindString
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return "uint"
	case KindSint8, KindSint16, KindSint32, KindSint64:
		return "sint"
	case KindFloat32, KindFloat64:
		return "float"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Cell is a single row field's tagged value. The zero Cell is null.
type Cell struct {
	kind  Kind
	b     bool
	u     uint64
	s     int64
	f     float64
	bytes []byte
	str   string
	list  []Cell
}

// Null returns a null cell.
func Null() Cell { return Cell{kind: KindNull} }

// IsNull reports whether the cell holds no value.
func (c Cell) IsNull() bool { return c.kind == KindNull }

// Kind returns the cell's type discriminator.
func (c Cell) Kind() Kind { return c.kind }

func FromBool(v bool) Cell { return Cell{kind: KindBool, b: v} }

func FromUint(kind Kind, v uint64) Cell {
	switch kind {
	case KindUint8, KindUint16, KindUint32, KindUint64:
	default:
		panic("cell: FromUint requires a uint kind")
	}
	return Cell{kind: kind, u: v}
}

func FromSint(kind Kind, v int64) Cell {
	switch kind {
	case KindSint8, KindSint16, KindSint32, KindSint64:
	default:
		panic("cell: FromSint requires a sint kind")
	}
	return Cell{kind: kind, s: v}
}

func FromFloat32(v float32) Cell { return Cell{kind: KindFloat32, f: float64(v)} }
func FromFloat64(v float64) Cell { return Cell{kind: KindFloat64, f: v} }
func FromBytes(v []byte) Cell    { return Cell{kind: KindBytes, bytes: v} }
func FromString(v string) Cell   { return Cell{kind: KindString, str: v} }
func FromList(v []Cell) Cell     { return Cell{kind: KindList, list: v} }

func (c Cell) Bool() bool       { return c.b }
func (c Cell) Uint() uint64     { return c.u }
func (c Cell) Sint() int64      { return c.s }
func (c Cell) Float32() float32 { return float32(c.f) }
func (c Cell) Float64() float64 { return c.f }
func (c Cell) Bytes() []byte    { return c.bytes }
func (c Cell) Str() string      { return c.str }
func (c Cell) List() []Cell     { return c.list }

// Equal reports deep equality between two cells, including list elements.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindNull:
		return true
	case KindBool:
		return c.b == o.b
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return c.u == o.u
	case KindSint8, KindSint16, KindSint32, KindSint64:
		return c.s == o.s
	case KindFloat32, KindFloat64:
		return c.f == o.f
	case KindBytes:
		return string(c.bytes) == string(o.bytes)
	case KindString:
		return c.str == o.str
	case KindList:
		if len(c.list) != len(o.list) {
			return false
		}
		for i := range c.list {
			if !c.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Encode appends the cell's wire form ([type_dscr: u8][payload]) to dst.
func Encode(dst []byte, c Cell) ([]byte, error) {
	dst = append(dst, byte(c.kind))
	switch c.kind {
	case KindNull:
		return dst, nil
	case KindBool:
		if c.b {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case KindUint8:
		return append(dst, byte(c.u)), nil
	case KindUint16:
		return buf.AppendU16LE(dst, uint16(c.u)), nil
	case KindUint32:
		return buf.AppendU32LE(dst, uint32(c.u)), nil
	case KindUint64:
		return buf.AppendU64LE(dst, c.u), nil
	case KindSint8:
		return append(dst, byte(int8(c.s))), nil
	case KindSint16:
		return buf.AppendU16LE(dst, uint16(int16(c.s))), nil
	case KindSint32:
		return buf.AppendU32LE(dst, uint32(int32(c.s))), nil
	case KindSint64:
		return buf.AppendU64LE(dst, uint64(c.s)), nil
	case KindFloat32:
		return buf.AppendU32LE(dst, math.Float32bits(float32(c.f))), nil
	case KindFloat64:
		return buf.AppendU64LE(dst, math.Float64bits(c.f)), nil
	case KindBytes:
		dst = buf.AppendU64LE(dst, uint64(len(c.bytes)))
		return append(dst, c.bytes...), nil
	case KindString:
		dst = buf.AppendU64LE(dst, uint64(len(c.str)))
		return append(dst, c.str...), nil
	case KindList:
		dst = buf.AppendU64LE(dst, uint64(len(c.list)))
		var err error
		for _, el := range c.list {
			dst, err = Encode(dst, el)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil
	default:
		return nil, errs.New(errs.InternalDecodeStructureIllegalData, fmt.Sprintf("unknown cell kind %d", c.kind))
	}
}

// reader is the minimal interface Decode needs: a fixed-width block reader
// such as *iotrack.Reader.
type reader interface {
	ReadBlock(n int) ([]byte, error)
}

// Decode reads one cell (its discriminator byte plus payload) from r.
func Decode(r reader) (Cell, error) {
	dscrB, err := r.ReadBlock(1)
	if err != nil {
		return Cell{}, err
	}
	kind := Kind(dscrB[0])
	switch kind {
	case KindNull:
		return Null(), nil
	case KindBool:
		b, err := r.ReadBlock(1)
		if err != nil {
			return Cell{}, err
		}
		if b[0] > 1 {
			return Cell{}, errs.New(errs.InternalDecodeStructureIllegalData, "bool cell not 0/1")
		}
		return FromBool(b[0] == 1), nil
	case KindUint8:
		b, err := r.ReadBlock(1)
		if err != nil {
			return Cell{}, err
		}
		return FromUint(kind, uint64(b[0])), nil
	case KindUint16:
		b, err := r.ReadBlock(2)
		if err != nil {
			return Cell{}, err
		}
		return FromUint(kind, uint64(buf.U16LE(b))), nil
	case KindUint32:
		b, err := r.ReadBlock(4)
		if err != nil {
			return Cell{}, err
		}
		return FromUint(kind, uint64(buf.U32LE(b))), nil
	case KindUint64:
		b, err := r.ReadBlock(8)
		if err != nil {
			return Cell{}, err
		}
		return FromUint(kind, buf.U64LE(b)), nil
	case KindSint8:
		b, err := r.ReadBlock(1)
		if err != nil {
			return Cell{}, err
		}
		return FromSint(kind, int64(int8(b[0]))), nil
	case KindSint16:
		b, err := r.ReadBlock(2)
		if err != nil {
			return Cell{}, err
		}
		return FromSint(kind, int64(int16(buf.U16LE(b)))), nil
	case KindSint32:
		b, err := r.ReadBlock(4)
		if err != nil {
			return Cell{}, err
		}
		return FromSint(kind, int64(int32(buf.U32LE(b)))), nil
	case KindSint64:
		b, err := r.ReadBlock(8)
		if err != nil {
			return Cell{}, err
		}
		return FromSint(kind, int64(buf.U64LE(b))), nil
	case KindFloat32:
		b, err := r.ReadBlock(4)
		if err != nil {
			return Cell{}, err
		}
		return FromFloat32(math.Float32frombits(buf.U32LE(b))), nil
	case KindFloat64:
		b, err := r.ReadBlock(8)
		if err != nil {
			return Cell{}, err
		}
		return FromFloat64(math.Float64frombits(buf.U64LE(b))), nil
	case KindBytes:
		lenB, err := r.ReadBlock(8)
		if err != nil {
			return Cell{}, err
		}
		n := buf.U64LE(lenB)
		data, err := r.ReadBlock(int(n))
		if err != nil {
			return Cell{}, err
		}
		return FromBytes(data), nil
	case KindString:
		lenB, err := r.ReadBlock(8)
		if err != nil {
			return Cell{}, err
		}
		n := buf.U64LE(lenB)
		data, err := r.ReadBlock(int(n))
		if err != nil {
			return Cell{}, err
		}
		if !utf8.Valid(data) {
			return Cell{}, errs.New(errs.InternalDecodeStructureIllegalData, "string cell is not valid UTF-8")
		}
		return FromString(string(data)), nil
	case KindList:
		countB, err := r.ReadBlock(8)
		if err != nil {
			return Cell{}, err
		}
		n := buf.U64LE(countB)
		els := make([]Cell, 0, n)
		for i := uint64(0); i < n; i++ {
			el, err := Decode(r)
			if err != nil {
				return Cell{}, err
			}
			els = append(els, el)
		}
		return FromList(els), nil
	default:
		return Cell{}, errs.New(errs.InternalDecodeStructureIllegalData, fmt.Sprintf("unknown cell discriminator %d", kind))
	}
}
