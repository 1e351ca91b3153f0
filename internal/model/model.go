package model

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/driftdb/driftdb/internal/cell"
	"github.com/driftdb/driftdb/internal/cht"
	"github.com/driftdb/driftdb/internal/errs"
	"github.com/driftdb/driftdb/internal/row"
)

// Model is a named, typed row collection: an immutable identity, an
// ordered field set with exactly one primary-key field, a versioned
// schema, a concurrent primary index, and the delta-state queue that
// feeds the batch writer (internal/batch.Model is implemented by *Model).
type Model struct {
	id   uuid.UUID
	name string

	mu            sync.RWMutex
	fields        []Field
	pkFieldIdx    int
	pkTag         row.PKTag // fixed for the model's lifetime; the pk field may not be retyped
	schemaVersion uint64    // accessed only under mu

	index    *cht.Tree[row.PK, *row.Row]
	queue    *row.DeltaQueue
	deltaCtr atomic.Uint64
}

func hashPK(pk row.PK) uint64 {
	return cht.HashBytes(row.Encode(nil, pk))
}

func eqPK(a, b row.PK) bool {
	if a.Tag != b.Tag {
		return false
	}
	return a.Key() == b.Key()
}

// New constructs an empty model. fields must contain exactly one
// primary-key field (pkFieldName) which must not be nullable.
func New(id uuid.UUID, name string, fields []Field, pkFieldName string) (*Model, error) {
	idx := -1
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if _, dup := seen[f.Name]; dup {
			return nil, errs.New(errs.InternalDecodeStructureIllegalData, "duplicate field name "+f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Name == pkFieldName {
			idx = i
		}
	}
	if idx < 0 {
		return nil, errs.New(errs.InternalDecodeStructureIllegalData, "primary key field not found: "+pkFieldName)
	}
	if fields[idx].Nullable {
		return nil, errs.New(errs.InternalDecodeStructureIllegalData, "primary key field must not be nullable")
	}
	tag, err := pkTagFromCellKind(fields[idx].Kind())
	if err != nil {
		return nil, err
	}
	return &Model{
		id:         id,
		name:       name,
		fields:     fields,
		pkFieldIdx: idx,
		pkTag:      tag,
		index:      cht.New[row.PK, *row.Row](hashPK, eqPK),
		queue:      row.NewDeltaQueue(256),
	}, nil
}

func (m *Model) ID() uuid.UUID { return m.id }
func (m *Model) Name() string  { return m.name }

// pkTagFromCellKind maps a primary-key-eligible cell.Kind to its
// row.PKTag. Only unsigned/signed integers, bytes, and strings are
// eligible — matching the original's TagUnique enum (see DESIGN.md).
func pkTagFromCellKind(k cell.Kind) (row.PKTag, error) {
	switch k {
	case cell.KindUint8, cell.KindUint16, cell.KindUint32, cell.KindUint64:
		return row.PKUint, nil
	case cell.KindSint8, cell.KindSint16, cell.KindSint32, cell.KindSint64:
		return row.PKSint, nil
	case cell.KindString:
		return row.PKStr, nil
	case cell.KindBytes:
		return row.PKBin, nil
	default:
		return 0, errs.New(errs.InternalDecodeStructureIllegalData, "cell kind is not primary-key-eligible")
	}
}

// RowCount reports the number of rows currently in the primary index.
// Intended for restore/diagnostic reporting, not the hot path.
func (m *Model) RowCount() int { return m.index.Len() }

func (m *Model) PKTag() row.PKTag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pkTag
}

func (m *Model) SchemaVersion() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schemaVersion
}

// OrderedNonPKFields returns field names in definition order, excluding
// the primary-key field — both the batch's column count and the
// per-row cell order on the wire.
func (m *Model) OrderedNonPKFields() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.fields)-1)
	for i, f := range m.fields {
		if i == m.pkFieldIdx {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

func (m *Model) Fields() []Field {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Field, len(m.fields))
	copy(out, m.fields)
	return out
}

func (m *Model) Field(name string) (Field, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (m *Model) Queue() *row.DeltaQueue { return m.queue }

func (m *Model) GetRow(pk row.PK) (*row.Row, bool)    { return m.index.Get(pk) }
func (m *Model) RemoveRow(pk row.PK) (*row.Row, bool) { return m.index.Delete(pk) }
func (m *Model) InsertRow(r *row.Row)                 { m.index.Put(r.PK(), r) }

// TryInsertRow inserts r only if its primary key is absent, using the
// trie's own compare-and-swap (cht.Tree.Patch) instead of a separate
// GetRow-then-InsertRow pair. That separation leaves a window where two
// concurrent inserts of the same never-before-seen key both pass the
// existence check and one clobbers the other; Patch's fn is applied at
// the same CAS point the trie already commits the slot at, so only one
// of two racing inserts for the same pk can ever win.
func (m *Model) TryInsertRow(r *row.Row) bool {
	inserted := false
	m.index.Patch(r.PK(), func(existing *row.Row, found bool) (*row.Row, bool) {
		if found {
			inserted = false
			return existing, true
		}
		inserted = true
		return r, true
	})
	return inserted
}

// MergeRow atomically folds merge over the current data of the row at pk
// and installs the result at dataVersion (see row.Row.MergeWrite).
// Reports false if pk is absent, or if the row has already been revised
// at or past dataVersion (MergeWrite rejects the stale write).
func (m *Model) MergeRow(pk row.PK, dataVersion uint64, merge func(current map[string]cell.Cell) map[string]cell.Cell) bool {
	r, ok := m.index.Get(pk)
	if !ok {
		return false
	}
	return r.MergeWrite(merge, m.SchemaVersion(), dataVersion)
}

// AdvanceDeltaCounter bumps the model's delta-version counter to at
// least next. Restore calls it (batch drain after replaying a batch);
// live writes draw from the same counter through NextDataVersion.
func (m *Model) AdvanceDeltaCounter(next uint64) {
	for {
		cur := m.deltaCtr.Load()
		if next <= cur {
			return
		}
		if m.deltaCtr.CompareAndSwap(cur, next) {
			return
		}
	}
}

// NextDataVersion draws the next value from the model's monotonic
// delta-version counter, stamped onto a newly enqueued delta.
func (m *Model) NextDataVersion() uint64 {
	return m.deltaCtr.Add(1) - 1
}

// AlterAddFields appends fields to the model's field set and advances
// schema_version. Field names must not collide with existing fields.
func (m *Model) AlterAddFields(fields []Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := make(map[string]struct{}, len(m.fields))
	for _, f := range m.fields {
		existing[f.Name] = struct{}{}
	}
	for _, f := range fields {
		if _, dup := existing[f.Name]; dup {
			return errs.New(errs.InternalDecodeStructureIllegalData, "duplicate field name "+f.Name)
		}
		existing[f.Name] = struct{}{}
	}
	m.fields = append(m.fields, fields...)
	m.schemaVersion++
	return nil
}

// AlterRemoveFields drops the named fields and advances schema_version.
// The primary-key field may never be removed.
func (m *Model) AlterRemoveFields(names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == m.fields[m.pkFieldIdx].Name {
			return errs.New(errs.InternalDecodeStructureIllegalData, "cannot remove primary key field")
		}
		drop[n] = struct{}{}
	}
	kept := m.fields[:0:0]
	for i, f := range m.fields {
		if _, dead := drop[f.Name]; dead {
			continue
		}
		if i == m.pkFieldIdx {
			// index recomputed below once kept is final
		}
		kept = append(kept, f)
	}
	for i, f := range kept {
		if f.Name == m.fields[m.pkFieldIdx].Name {
			m.pkFieldIdx = i
		}
	}
	m.fields = kept
	m.schemaVersion++
	return nil
}

// AlterUpdateFields replaces the named fields' nullability/layers in
// place (retype), and advances schema_version. The primary-key field's
// kind may never change.
func (m *Model) AlterUpdateFields(updates []Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		found := false
		for i, f := range m.fields {
			if f.Name != u.Name {
				continue
			}
			found = true
			if i == m.pkFieldIdx && u.Kind() != f.Kind() {
				return errs.New(errs.InternalDecodeStructureIllegalData, "cannot retype primary key field")
			}
			m.fields[i] = u
			break
		}
		if !found {
			return errs.New(errs.InternalDecodeStructureIllegalData, "unknown field "+u.Name)
		}
	}
	m.schemaVersion++
	return nil
}
