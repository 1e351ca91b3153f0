package batch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftdb/driftdb/internal/cell"
	"github.com/driftdb/driftdb/internal/iotrack"
	"github.com/driftdb/driftdb/internal/row"
)

func fakeFile(t *testing.T, b []byte) (*os.File, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.bin")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	t.Cleanup(func() {
		if f != nil {
			_ = f.Close()
		}
	})
	return f, err
}

// mapModel is a minimal in-memory Model for exercising the batch writer
// and restore drain without the full model/index package.
type mapModel struct {
	mu       sync.Mutex
	rows     map[any]*row.Row
	fields   []string
	schemaV  uint64
	pkTag    row.PKTag
	queue    *row.DeltaQueue
	deltaCtr uint64
}

func newMapModel(fields []string) *mapModel {
	return &mapModel{
		rows:   make(map[any]*row.Row),
		fields: fields,
		pkTag:  row.PKUint,
		queue:  row.NewDeltaQueue(16),
	}
}

func (m *mapModel) PKTag() row.PKTag             { return m.pkTag }
func (m *mapModel) SchemaVersion() uint64        { return m.schemaV }
func (m *mapModel) OrderedNonPKFields() []string { return m.fields }
func (m *mapModel) Queue() *row.DeltaQueue       { return m.queue }

func (m *mapModel) GetRow(pk row.PK) (*row.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[pk.Key()]
	return r, ok
}

func (m *mapModel) RemoveRow(pk row.PK) (*row.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[pk.Key()]
	if ok {
		delete(m.rows, pk.Key())
	}
	return r, ok
}

func (m *mapModel) InsertRow(r *row.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.PK().Key()] = r
}

func (m *mapModel) AdvanceDeltaCounter(next uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if next > m.deltaCtr {
		m.deltaCtr = next
	}
}

// fakeReader wraps a byte slice as an *iotrack.Reader for decode tests.
func fakeReader(t *testing.T, b []byte) *iotrack.Reader {
	t.Helper()
	f, err := fakeFile(t, b)
	require.NoError(t, err)
	r, err := iotrack.NewReader(f, 0, 0)
	require.NoError(t, err)
	return r
}

func TestBatchWriteAndRestoreRoundTrip(t *testing.T) {
	model := newMapModel([]string{"name", "age"})

	r1 := row.New(row.PKFromUint(1), map[string]cell.Cell{
		"name": cell.FromString("alice"),
		"age":  cell.FromUint(cell.KindUint64, 30),
	}, 0, 1)
	model.InsertRow(r1)
	model.Queue().Push(row.Delta{Kind: row.DeltaInsert, DataVersion: 1, PK: r1.PK(), Row: r1})

	r2 := row.New(row.PKFromUint(2), map[string]cell.Cell{
		"name": cell.FromString("bob"),
		"age":  cell.FromUint(cell.KindUint64, 40),
	}, 0, 2)
	model.InsertRow(r2)
	model.Queue().Push(row.Delta{Kind: row.DeltaInsert, DataVersion: 2, PK: r2.PK(), Row: r2})

	ev := NewEvent(model, 2)
	payload, err := ev.Encode()
	require.NoError(t, err)
	require.EqualValues(t, 2, ev.Actual)

	restored := newMapModel([]string{"name", "age"})
	reader := fakeReader(t, payload)
	adapter := Adapter{Model: restored}
	require.NoError(t, adapter.DecodeApply(uint64(BatchTypeStandard), reader))

	got, ok := restored.GetRow(row.PKFromUint(1))
	require.True(t, ok)
	require.Equal(t, "alice", got.Snapshot().Data["name"].Str())

	got2, ok := restored.GetRow(row.PKFromUint(2))
	require.True(t, ok)
	require.Equal(t, "bob", got2.Snapshot().Data["name"].Str())
}

func TestBatchSkipsStaleDeltaWithoutCountingTowardActual(t *testing.T) {
	model := newMapModel([]string{"v"})

	r1 := row.New(row.PKFromUint(1), map[string]cell.Cell{"v": cell.FromUint(cell.KindUint64, 1)}, 0, 1)
	model.InsertRow(r1)
	// enqueue a delta stamped at version 1, then revise the row to version 2
	// out of band (simulating a newer write racing ahead).
	model.Queue().Push(row.Delta{Kind: row.DeltaInsert, DataVersion: 1, PK: r1.PK(), Row: r1})
	r1.ApplyWrite(map[string]cell.Cell{"v": cell.FromUint(cell.KindUint64, 2)}, 0, 2)

	ev := NewEvent(model, 1)
	_, err := ev.Encode()
	require.NoError(t, err)
	require.EqualValues(t, 0, ev.Actual)
}

func TestBatchRestoreDeleteHighestVersionWins(t *testing.T) {
	model := newMapModel([]string{"v"})

	// Hand-build a batch payload: insert pk=1 at v1, then delete pk=1 at v2.
	r1 := row.New(row.PKFromUint(1), map[string]cell.Cell{"v": cell.FromUint(cell.KindUint64, 9)}, 0, 1)
	model.Queue().Push(row.Delta{Kind: row.DeltaInsert, DataVersion: 1, PK: r1.PK(), Row: r1})
	model.Queue().Push(row.Delta{Kind: row.DeltaDelete, DataVersion: 2, PK: row.PKFromUint(1)})

	writeEv := NewEvent(model, 2)
	payload, err := writeEv.Encode()
	require.NoError(t, err)
	require.EqualValues(t, 2, writeEv.Actual)

	restored := newMapModel([]string{"v"})
	require.NoError(t, Adapter{Model: restored}.DecodeApply(uint64(BatchTypeStandard), fakeReader(t, payload)))

	_, ok := restored.GetRow(row.PKFromUint(1))
	require.False(t, ok, "delete at higher version must win over insert")
}
