package row

import (
	"sync"

	"github.com/driftdb/driftdb/internal/cell"
)

// Row is a model's in-memory record: a primary key, its field data, and
// the schema version the data was last written under. A per-row mutex
// gives callers immediate read-your-writes independent of when the batch
// writer later durably persists the change.
type Row struct {
	mu            sync.Mutex
	pk            PK
	data          map[string]cell.Cell
	schemaVersion uint64
	txnRevised    uint64
}

// New constructs a row already holding data as of dataVersion.
func New(pk PK, data map[string]cell.Cell, schemaVersion, dataVersion uint64) *Row {
	return &Row{pk: pk, data: data, schemaVersion: schemaVersion, txnRevised: dataVersion}
}

// PK returns the row's primary key. Immutable for the row's lifetime.
func (r *Row) PK() PK { return r.pk }

// ApplyWrite mutates the row in place under its lock, giving the writing
// request immediate read-your-writes ahead of the batch writer durably
// persisting the same change. txn_revised only ever moves forward: a
// dataVersion at or below the row's current txn_revised is stale (a
// racing writer already applied a later version) and is rejected rather
// than overwriting newer data, reported via the bool return.
func (r *Row) ApplyWrite(data map[string]cell.Cell, schemaVersion, dataVersion uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dataVersion <= r.txnRevised {
		return false
	}
	r.data = data
	r.schemaVersion = schemaVersion
	r.txnRevised = dataVersion
	return true
}

// MergeWrite atomically folds merge over the row's current data and
// installs the result at dataVersion, all inside the row's own lock so a
// concurrent writer can't observe the data between read and write. Read
// and write must share one critical section here: allocating dataVersion
// and reading the row in two separate locked calls (as a naive
// read-then-ApplyWrite would) leaves a window where a racing writer's
// merge can be computed against data that's already stale by the time it
// is applied, silently losing the other writer's update. Returns false
// under the same staleness rule as ApplyWrite.
func (r *Row) MergeWrite(merge func(current map[string]cell.Cell) map[string]cell.Cell, schemaVersion, dataVersion uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dataVersion <= r.txnRevised {
		return false
	}
	r.data = merge(r.data)
	r.schemaVersion = schemaVersion
	r.txnRevised = dataVersion
	return true
}

// TxnRevised returns the data version the row was last mutated at.
func (r *Row) TxnRevised() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txnRevised
}

// Snapshot is a frozen, lock-free copy of a row's state as observed at a
// point in time, valid for persisting to the journal.
type Snapshot struct {
	PK            PK
	Data          map[string]cell.Cell
	SchemaVersion uint64
	DataVersion   uint64
}

// Snapshot reads the row's current state under its lock, with no
// staleness check — used for plain reads (the engine's Get) as opposed
// to the batch writer's persistence decision.
func (r *Row) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		PK:            r.pk,
		Data:          r.data,
		SchemaVersion: r.schemaVersion,
		DataVersion:   r.txnRevised,
	}
}

// ResolveForBatch reads the row under its lock and decides whether the
// delta stamped at dataVersion is still the freshest write for this row.
// If a later write has already revised the row past dataVersion, the
// delta is stale and must be skipped without persisting anything.
func (r *Row) ResolveForBatch(dataVersion uint64) (snap Snapshot, stale bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.txnRevised > dataVersion {
		return Snapshot{}, true
	}
	return Snapshot{
		PK:            r.pk,
		Data:          r.data,
		SchemaVersion: r.schemaVersion,
		DataVersion:   r.txnRevised,
	}, false
}
