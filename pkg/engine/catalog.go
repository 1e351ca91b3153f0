package engine

import (
	"github.com/google/uuid"

	"github.com/driftdb/driftdb/internal/buf"
	"github.com/driftdb/driftdb/internal/cell"
	"github.com/driftdb/driftdb/internal/errs"
	"github.com/driftdb/driftdb/internal/iotrack"
	"github.com/driftdb/driftdb/internal/journal"
	"github.com/driftdb/driftdb/internal/model"
)

// catalogEventKind discriminates the system catalog's DDL event types.
// The catalog is itself a raw journal (internal/journal) using a
// different adapter than a model's data journal, per SPEC_FULL.md §6.
type catalogEventKind uint8

const (
	ddlCreateSpace catalogEventKind = iota
	ddlDropSpace
	ddlCreateModel
	ddlDropModel
	ddlAlterAddFields
	ddlAlterRemoveFields
	ddlAlterUpdateFields
)

// catalogEvent implements journal.Event over a precomputed payload; the
// various new*Event constructors below build the payload eagerly so
// Encode never fails.
type catalogEvent struct {
	kind    catalogEventKind
	payload []byte
}

func (e *catalogEvent) Meta() uint64          { return uint64(e.kind) }
func (e *catalogEvent) Encode() ([]byte, error) { return e.payload, nil }

func appendUUID(dst []byte, id uuid.UUID) []byte { return append(dst, id[:]...) }

func appendString(dst []byte, s string) []byte {
	dst = buf.AppendU64LE(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendField(dst []byte, f model.Field) []byte {
	dst = appendString(dst, f.Name)
	dst = append(dst, byte(f.Kind()))
	if f.Nullable {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}
	dst = buf.AppendU64LE(dst, uint64(len(f.Layers)))
	for _, l := range f.Layers {
		dst = appendString(dst, l.Tag)
	}
	return dst
}

func appendFields(dst []byte, fields []model.Field) []byte {
	dst = buf.AppendU64LE(dst, uint64(len(fields)))
	for _, f := range fields {
		dst = appendField(dst, f)
	}
	return dst
}

func newCreateSpaceEvent(id uuid.UUID, name string) *catalogEvent {
	p := appendUUID(nil, id)
	p = appendString(p, name)
	return &catalogEvent{kind: ddlCreateSpace, payload: p}
}

func newDropSpaceEvent(name string) *catalogEvent {
	return &catalogEvent{kind: ddlDropSpace, payload: appendString(nil, name)}
}

func newCreateModelEvent(spaceName string, id uuid.UUID, modelName, pkField string, fields []model.Field) *catalogEvent {
	p := appendString(nil, spaceName)
	p = appendUUID(p, id)
	p = appendString(p, modelName)
	p = appendString(p, pkField)
	p = appendFields(p, fields)
	return &catalogEvent{kind: ddlCreateModel, payload: p}
}

func newDropModelEvent(spaceName, modelName string) *catalogEvent {
	p := appendString(nil, spaceName)
	p = appendString(p, modelName)
	return &catalogEvent{kind: ddlDropModel, payload: p}
}

func newAlterAddFieldsEvent(spaceName, modelName string, fields []model.Field) *catalogEvent {
	p := appendString(nil, spaceName)
	p = appendString(p, modelName)
	p = appendFields(p, fields)
	return &catalogEvent{kind: ddlAlterAddFields, payload: p}
}

func newAlterRemoveFieldsEvent(spaceName, modelName string, names []string) *catalogEvent {
	p := appendString(nil, spaceName)
	p = appendString(p, modelName)
	p = buf.AppendU64LE(p, uint64(len(names)))
	for _, n := range names {
		p = appendString(p, n)
	}
	return &catalogEvent{kind: ddlAlterRemoveFields, payload: p}
}

func newAlterUpdateFieldsEvent(spaceName, modelName string, fields []model.Field) *catalogEvent {
	p := appendString(nil, spaceName)
	p = appendString(p, modelName)
	p = appendFields(p, fields)
	return &catalogEvent{kind: ddlAlterUpdateFields, payload: p}
}

func readUUID(r *iotrack.Reader) (uuid.UUID, error) {
	b, err := r.ReadBlock(16)
	if err != nil {
		return uuid.UUID{}, err
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, nil
}

func readString(r *iotrack.Reader) (string, error) {
	lenB, err := r.ReadBlock(8)
	if err != nil {
		return "", err
	}
	n := buf.U64LE(lenB)
	data, err := r.ReadBlock(int(n))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readField(r *iotrack.Reader) (model.Field, error) {
	name, err := readString(r)
	if err != nil {
		return model.Field{}, err
	}
	kindB, err := r.ReadBlock(1)
	if err != nil {
		return model.Field{}, err
	}
	nullB, err := r.ReadBlock(1)
	if err != nil {
		return model.Field{}, err
	}
	layerCountB, err := r.ReadBlock(8)
	if err != nil {
		return model.Field{}, err
	}
	n := buf.U64LE(layerCountB)
	layers := make([]model.Layer, 0, n)
	for i := uint64(0); i < n; i++ {
		tag, err := readString(r)
		if err != nil {
			return model.Field{}, err
		}
		layers = append(layers, model.Layer{Tag: tag})
	}
	return model.NewField(name, cell.Kind(kindB[0]), nullB[0] == 1, layers...), nil
}

func readFields(r *iotrack.Reader) ([]model.Field, error) {
	countB, err := r.ReadBlock(8)
	if err != nil {
		return nil, err
	}
	n := buf.U64LE(countB)
	fields := make([]model.Field, 0, n)
	for i := uint64(0); i < n; i++ {
		f, err := readField(r)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// catalogAdapter implements journal.Adapter, replaying DDL events into a
// space registry during Open (or, via NewCatalogAdapter, a bare restore
// check). It runs single-threaded during replay, before any request
// traffic is possible, so it mutates spaces directly without locking.
type catalogAdapter struct {
	spaces map[string]*model.Space
}

// NewCatalogAdapter builds the journal.Adapter that replays the system
// catalog's DDL events into spaces, for callers (internal/restore, a
// restore-check CLI) that want catalog replay without a live Engine.
func NewCatalogAdapter(spaces map[string]*model.Space) journal.Adapter {
	return catalogAdapter{spaces: spaces}
}

func (a catalogAdapter) DecodeApply(meta uint64, r *iotrack.Reader) error {
	switch catalogEventKind(meta) {
	case ddlCreateSpace:
		id, err := readUUID(r)
		if err != nil {
			return err
		}
		name, err := readString(r)
		if err != nil {
			return err
		}
		a.spaces[name] = model.NewSpace(id, name)
		return nil

	case ddlDropSpace:
		name, err := readString(r)
		if err != nil {
			return err
		}
		delete(a.spaces, name)
		return nil

	case ddlCreateModel:
		spaceName, err := readString(r)
		if err != nil {
			return err
		}
		id, err := readUUID(r)
		if err != nil {
			return err
		}
		modelName, err := readString(r)
		if err != nil {
			return err
		}
		pkField, err := readString(r)
		if err != nil {
			return err
		}
		fields, err := readFields(r)
		if err != nil {
			return err
		}
		sp, ok := a.spaces[spaceName]
		if !ok {
			return errs.New(errs.RestoreDataMissing, "create_model: space not found: "+spaceName)
		}
		m, err := model.New(id, modelName, fields, pkField)
		if err != nil {
			return err
		}
		return sp.AddModel(m)

	case ddlDropModel:
		spaceName, err := readString(r)
		if err != nil {
			return err
		}
		modelName, err := readString(r)
		if err != nil {
			return err
		}
		sp, ok := a.spaces[spaceName]
		if !ok {
			return errs.New(errs.RestoreDataMissing, "drop_model: space not found: "+spaceName)
		}
		sp.RemoveModel(modelName)
		return nil

	case ddlAlterAddFields:
		sp, m, err := a.resolveModelForAlter(r)
		if err != nil {
			return err
		}
		fields, err := readFields(r)
		if err != nil {
			return err
		}
		_ = sp
		return m.AlterAddFields(fields)

	case ddlAlterRemoveFields:
		_, m, err := a.resolveModelForAlter(r)
		if err != nil {
			return err
		}
		countB, err := r.ReadBlock(8)
		if err != nil {
			return err
		}
		n := buf.U64LE(countB)
		names := make([]string, 0, n)
		for i := uint64(0); i < n; i++ {
			name, err := readString(r)
			if err != nil {
				return err
			}
			names = append(names, name)
		}
		return m.AlterRemoveFields(names)

	case ddlAlterUpdateFields:
		_, m, err := a.resolveModelForAlter(r)
		if err != nil {
			return err
		}
		fields, err := readFields(r)
		if err != nil {
			return err
		}
		return m.AlterUpdateFields(fields)

	default:
		return errs.New(errs.RawJournalDecodeInvalidEvent, "unknown catalog event kind")
	}
}

// resolveModelForAlter reads the common spaceName/modelName prefix every
// alter-kind event starts with and looks up the target model.
func (a catalogAdapter) resolveModelForAlter(r *iotrack.Reader) (*model.Space, *model.Model, error) {
	spaceName, err := readString(r)
	if err != nil {
		return nil, nil, err
	}
	modelName, err := readString(r)
	if err != nil {
		return nil, nil, err
	}
	sp, ok := a.spaces[spaceName]
	if !ok {
		return nil, nil, errs.New(errs.RestoreDataMissing, "alter: space not found: "+spaceName)
	}
	m, ok := sp.Model(modelName)
	if !ok {
		return nil, nil, errs.New(errs.RestoreDataMissing, "alter: model not found: "+modelName)
	}
	return sp, m, nil
}
