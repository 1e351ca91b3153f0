// Package model implements the model (table) and space (namespace)
// abstractions sitting on top of the primary index, the row handle, and
// the batch adapter: field definitions, schema versioning, and the
// delta-state plumbing a model needs to satisfy batch.Model.
//
// Grounded on the teacher's hive.Hive struct (hive/hive.go, deleted —
// see DESIGN.md): one struct owning the file, the in-memory index, and
// metadata together. Model plays that role here, generalized from a
// single registry file to a named, versioned row collection backed by
// the concurrent trie.
package model

import (
	"github.com/driftdb/driftdb/internal/cell"
	"github.com/driftdb/driftdb/internal/errs"
)

// Layer is one entry in a field's type-layer stack (e.g. a list wrapping
// a scalar). The innermost layer is always the scalar cell.Kind a field
// ultimately stores.
type Layer struct {
	Tag string
}

// LayerList is the only layer tag understood today: the field stores a
// cell.KindList whose elements each conform to the next layer down (or,
// if Layers has only one entry, to the field's scalar kind).
const LayerList = "list"

// Field is a model column: a name, an ordered layer stack, and whether
// null cells are accepted.
type Field struct {
	Name     string
	Layers   []Layer
	Nullable bool
	kind     cell.Kind
}

// NewField constructs a field whose innermost (scalar) layer has kind
// kind. layers describes any wrapping layers outermost-first (e.g. a
// list-of-kind); it may be empty for a plain scalar field.
func NewField(name string, kind cell.Kind, nullable bool, layers ...Layer) Field {
	return Field{Name: name, Layers: layers, Nullable: nullable, kind: kind}
}

// Kind returns the field's innermost scalar cell.Kind, which determines
// the wire discriminator for cells stored under this field.
func (f Field) Kind() cell.Kind { return f.kind }

// Accepts reports whether c may be stored in this field: a null cell is
// accepted only if the field is nullable; any other cell must match the
// field's layer stack outermost-first, down to the innermost scalar
// cell.Kind.
func (f Field) Accepts(c cell.Cell) error {
	if c.IsNull() {
		if !f.Nullable {
			return errs.New(errs.InternalDecodeStructureIllegalData, "field "+f.Name+" is not nullable")
		}
		return nil
	}
	return f.acceptsAtLayer(c, f.Layers)
}

// acceptsAtLayer checks c against the outermost entry of layers, then
// recurses one layer in for list elements. layers empty means c must
// match the field's innermost scalar kind directly.
func (f Field) acceptsAtLayer(c cell.Cell, layers []Layer) error {
	if len(layers) == 0 {
		if c.Kind() != f.kind {
			return errs.New(errs.InternalDecodeStructureIllegalData, "field "+f.Name+" cell kind mismatch")
		}
		return nil
	}
	switch layers[0].Tag {
	case LayerList:
		if c.Kind() != cell.KindList {
			return errs.New(errs.InternalDecodeStructureIllegalData, "field "+f.Name+" expects a list cell")
		}
		for _, el := range c.List() {
			if el.IsNull() {
				continue
			}
			if err := f.acceptsAtLayer(el, layers[1:]); err != nil {
				return err
			}
		}
		return nil
	default:
		return errs.New(errs.InternalDecodeStructureIllegalData, "field "+f.Name+" has unknown layer "+layers[0].Tag)
	}
}
