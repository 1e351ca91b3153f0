// Package batch implements the batch server event: a model's unit of
// durable persistence, carrying up to N row changes dequeued from the
// model's delta queue, and the restore-side decode/stage/drain that
// replays a batch back into a model's primary index.
//
// Grounded on the teacher's hive/merge package (collects many pending
// key/value changes, applies them against a destination hive file in one
// pass, tracks how many were actually applied vs skipped), reshaped into
// the write-path's expected/actual accounting and the restore-path's
// stage-then-drain conflict resolution.
package batch

import (
	"github.com/driftdb/driftdb/internal/buf"
	"github.com/driftdb/driftdb/internal/cell"
	"github.com/driftdb/driftdb/internal/errs"
	"github.com/driftdb/driftdb/internal/iotrack"
	"github.com/driftdb/driftdb/internal/row"
)

// EventType is the per-row change-kind discriminator inside a batch,
// distinct from row.DeltaKind in that it adds the wire-only EarlyExit
// marker.
type EventType uint8

const (
	EventDelete    EventType = 0
	EventInsert    EventType = 1
	EventUpdate    EventType = 2
	EventEarlyExit EventType = 3
)

// BatchType is the kind of batch this event carries. Standard is the only
// kind today; the discriminant is still written explicitly so a future
// batch kind doesn't require a wire format break.
type BatchType uint8

const BatchTypeStandard BatchType = 0

// Model is everything the batch writer and restore-side drain need from
// a single model: its fixed primary-key tag and field order, its delta
// queue, and its primary index.
type Model interface {
	PKTag() row.PKTag
	SchemaVersion() uint64
	// OrderedNonPKFields returns the model's fields in their defined
	// order, excluding the primary key field. This is both the column
	// count and the per-row cell order on the wire.
	OrderedNonPKFields() []string
	Queue() *row.DeltaQueue

	GetRow(pk row.PK) (*row.Row, bool)
	RemoveRow(pk row.PK) (*row.Row, bool)
	InsertRow(r *row.Row)
	// AdvanceDeltaCounter bumps the model's global delta-version counter
	// to at least next.
	AdvanceDeltaCounter(next uint64)
}

// Event implements journal.Event for a batch of up to Expected row
// changes dequeued from model's delta queue. Meta reports BatchType, the
// journal-level event-kind word.
type Event struct {
	model    Model
	expected uint64

	// Actual is filled in by Encode and read back by the caller after a
	// successful CommitEvent to know how many rows were truly written.
	Actual uint64
}

// NewEvent prepares a batch event that will dequeue up to expected
// deltas from model's queue when committed.
func NewEvent(model Model, expected uint64) *Event {
	return &Event{model: model, expected: expected}
}

func (e *Event) Meta() uint64 { return uint64(BatchTypeStandard) }

// Encode runs the write-path algorithm: dequeue up to Expected deltas,
// resolve each against its row's current state, and produce the batch's
// on-disk payload. It records how many rows were actually written in
// e.Actual.
func (e *Event) Encode() ([]byte, error) {
	fields := e.model.OrderedNonPKFields()

	out := buf.AppendU64LE(nil, e.expected)
	out = append(out, byte(e.model.PKTag()))
	out = buf.AppendU64LE(out, e.model.SchemaVersion())
	out = buf.AppendU64LE(out, uint64(len(fields)))

	queue := e.model.Queue()
	var actual uint64
	for i := uint64(0); i < e.expected; i++ {
		delta := queue.Dequeue()
		written, rowErr := writeDelta(&out, delta, fields)
		if rowErr != nil {
			queue.Requeue(delta)
			out = append(out, byte(EventEarlyExit))
			out = buf.AppendU64LE(out, actual)
			e.Actual = actual
			return out, rowErr
		}
		if written {
			actual++
		}
	}

	if actual < e.expected {
		out = append(out, byte(EventEarlyExit))
	}
	out = buf.AppendU64LE(out, actual)
	e.Actual = actual
	return out, nil
}

// writeDelta appends one row block for delta to out, reporting whether a
// row was actually written (false for a stale delta, which is consumed
// but doesn't count toward actual).
func writeDelta(out *[]byte, delta row.Delta, fields []string) (bool, error) {
	switch delta.Kind {
	case row.DeltaDelete:
		*out = append(*out, byte(EventDelete))
		*out = buf.AppendU64LE(*out, delta.DataVersion)
		*out = row.Encode(*out, delta.PK)
		return true, nil
	case row.DeltaInsert, row.DeltaUpdate:
		snap, stale := delta.Row.ResolveForBatch(delta.DataVersion)
		if stale {
			return false, nil
		}
		kind := EventUpdate
		if delta.Kind == row.DeltaInsert {
			kind = EventInsert
		}
		*out = append(*out, byte(kind))
		*out = buf.AppendU64LE(*out, snap.DataVersion)
		*out = row.Encode(*out, snap.PK)
		for _, field := range fields {
			c, ok := snap.Data[field]
			if !ok {
				c = cell.Null()
			}
			enc, err := cell.Encode(*out, c)
			if err != nil {
				return false, err
			}
			*out = enc
		}
		return true, nil
	default:
		return false, errs.New(errs.InternalDecodeStructureIllegalData, "unknown delta kind")
	}
}

// Adapter implements journal.Adapter, replaying batches read back from a
// journal into model's primary index.
type Adapter struct {
	Model Model
}

func (a Adapter) DecodeApply(meta uint64, r *iotrack.Reader) error {
	if BatchType(meta) != BatchTypeStandard {
		return errs.New(errs.BatchDecodeIllegalDiscriminator, "unknown batch type")
	}
	return decodeAndDrain(a.Model, r)
}

type stagedRow struct {
	kind        EventType
	dataVersion uint64
	pk          row.PK
	data        map[string]cell.Cell
	schemaVersion uint64
}

func decodeAndDrain(model Model, r *iotrack.Reader) error {
	expectedB, err := r.ReadBlock(8)
	if err != nil {
		return err
	}
	expected := buf.U64LE(expectedB)

	pkTagB, err := r.ReadBlock(1)
	if err != nil {
		return err
	}
	pkTag := row.PKTag(pkTagB[0])

	schemaVB, err := r.ReadBlock(8)
	if err != nil {
		return err
	}
	schemaVersion := buf.U64LE(schemaVB)

	colCountB, err := r.ReadBlock(8)
	if err != nil {
		return err
	}
	fields := model.OrderedNonPKFields()
	if uint64(len(fields)) != buf.U64LE(colCountB) {
		return errs.New(errs.RawJournalDecodeBatchContentsMismatch, "column count mismatch")
	}

	staged := make([]stagedRow, 0, expected)
	for i := uint64(0); i < expected; i++ {
		kindB, err := r.ReadBlock(1)
		if err != nil {
			return err
		}
		kind := EventType(kindB[0])
		if kind == EventEarlyExit {
			break
		}

		dvB, err := r.ReadBlock(8)
		if err != nil {
			return err
		}
		dataVersion := buf.U64LE(dvB)

		pk, err := row.Decode(r, pkTag)
		if err != nil {
			return err
		}

		sr := stagedRow{kind: kind, dataVersion: dataVersion, pk: pk, schemaVersion: schemaVersion}
		if kind == EventInsert || kind == EventUpdate {
			data := make(map[string]cell.Cell, len(fields))
			for _, field := range fields {
				c, err := cell.Decode(r)
				if err != nil {
					return err
				}
				if !c.IsNull() {
					data[field] = c
				}
			}
			sr.data = data
		} else if kind != EventDelete {
			return errs.New(errs.BatchDecodeIllegalDiscriminator, "unknown row change kind")
		}
		staged = append(staged, sr)
	}

	actualB, err := r.ReadBlock(8)
	if err != nil {
		return err
	}
	actual := buf.U64LE(actualB)
	if uint64(len(staged)) != actual {
		return errs.New(errs.RawJournalDecodeBatchIntegrityFailure, "actual commit count mismatch")
	}

	return drain(model, staged)
}

type pendingDelete struct {
	pk  row.PK
	ver uint64
}

func drain(model Model, staged []stagedRow) error {
	var maxSeen uint64
	var sawAny bool
	deletes := make(map[any]pendingDelete)

	for _, sr := range staged {
		if sr.dataVersion > maxSeen || !sawAny {
			maxSeen = sr.dataVersion
			sawAny = true
		}
		if sr.kind == EventDelete {
			key := sr.pk.Key()
			if cur, ok := deletes[key]; !ok || sr.dataVersion > cur.ver {
				deletes[key] = pendingDelete{pk: sr.pk, ver: sr.dataVersion}
			}
			continue
		}

		old, existed := model.RemoveRow(sr.pk)
		if existed && old.TxnRevised() > sr.dataVersion {
			// Obsolete: a later in-batch revision already materialized.
			model.InsertRow(old)
			continue
		}
		model.InsertRow(row.New(sr.pk, sr.data, sr.schemaVersion, sr.dataVersion))
	}

	for _, pd := range deletes {
		if cur, ok := model.GetRow(pd.pk); ok && cur.TxnRevised() <= pd.ver {
			model.RemoveRow(pd.pk)
		}
	}

	if sawAny {
		model.AdvanceDeltaCounter(maxSeen + 1)
	}
	return nil
}
