package row

// DeltaKind is the kind of change a Delta records. It mirrors the wire
// event-kind discriminator used inside a batch, minus the EarlyExit
// marker (which only ever appears on disk, never in the in-memory queue).
type DeltaKind uint8

const (
	DeltaDelete DeltaKind = iota
	DeltaInsert
	DeltaUpdate
)

// Delta is one pending change to a model, queued when a write gives the
// caller read-your-writes and dequeued later by the model's single flush
// task for durable persistence.
type Delta struct {
	Kind        DeltaKind
	DataVersion uint64
	PK          PK
	// Row is nil for deletes; the row handle cloned at enqueue time for
	// inserts/updates, so the flush task can resolve the row's current
	// state against DataVersion even if further writes race ahead of it.
	Row *Row
}
