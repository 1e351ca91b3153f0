package row

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftdb/driftdb/internal/cell"
)

func TestResolveForBatchStaleness(t *testing.T) {
	r := New(PKFromUint(1), map[string]cell.Cell{"a": cell.FromUint(cell.KindUint64, 1)}, 0, 5)

	// delta.data_version == row.txn_revised: persist.
	snap, stale := r.ResolveForBatch(5)
	require.False(t, stale)
	require.EqualValues(t, 5, snap.DataVersion)

	// delta.data_version > row.txn_revised never happens in practice (a
	// row is only ever revised forward); after a revision to 7, the delta
	// stamped 7 is again the equal case and persists.
	r.ApplyWrite(map[string]cell.Cell{"a": cell.FromUint(cell.KindUint64, 2)}, 0, 7)
	snap, stale = r.ResolveForBatch(7)
	require.False(t, stale)
	require.EqualValues(t, 7, snap.DataVersion)

	// an older delta (data_version 5) visiting a row already revised to 7
	// is stale and must be skipped.
	_, stale = r.ResolveForBatch(5)
	require.True(t, stale)
}

func TestApplyWriteRejectsStaleDataVersion(t *testing.T) {
	r := New(PKFromUint(1), map[string]cell.Cell{"a": cell.FromUint(cell.KindUint64, 1)}, 0, 5)

	// a dataVersion at or below txn_revised never overwrites: txn_revised
	// is monotonically non-decreasing under the row's lock.
	require.False(t, r.ApplyWrite(map[string]cell.Cell{"a": cell.FromUint(cell.KindUint64, 99)}, 0, 5))
	require.False(t, r.ApplyWrite(map[string]cell.Cell{"a": cell.FromUint(cell.KindUint64, 99)}, 0, 3))
	require.EqualValues(t, 1, r.Snapshot().Data["a"].Uint())

	require.True(t, r.ApplyWrite(map[string]cell.Cell{"a": cell.FromUint(cell.KindUint64, 2)}, 0, 6))
	require.EqualValues(t, 2, r.Snapshot().Data["a"].Uint())
}

func TestMergeWriteFoldsUnderLockAndRejectsStale(t *testing.T) {
	r := New(PKFromUint(1), map[string]cell.Cell{"a": cell.FromUint(cell.KindUint64, 1)}, 0, 0)

	ok := r.MergeWrite(func(current map[string]cell.Cell) map[string]cell.Cell {
		merged := make(map[string]cell.Cell, len(current)+1)
		for k, v := range current {
			merged[k] = v
		}
		merged["b"] = cell.FromUint(cell.KindUint64, 2)
		return merged
	}, 0, 1)
	require.True(t, ok)
	require.EqualValues(t, 1, r.Snapshot().Data["a"].Uint())
	require.EqualValues(t, 2, r.Snapshot().Data["b"].Uint())

	ok = r.MergeWrite(func(current map[string]cell.Cell) map[string]cell.Cell {
		t.Fatal("merge must not run for a stale dataVersion")
		return current
	}, 0, 1)
	require.False(t, ok)
}

func TestDeltaQueueFIFOAndRequeue(t *testing.T) {
	q := NewDeltaQueue(4)
	q.Push(Delta{Kind: DeltaInsert, DataVersion: 1, PK: PKFromUint(1)})
	q.Push(Delta{Kind: DeltaInsert, DataVersion: 2, PK: PKFromUint(2)})

	first := q.Dequeue()
	require.EqualValues(t, 1, first.DataVersion)

	// simulate a failed write: requeue the failing delta at the front.
	q.Requeue(first)
	again := q.Dequeue()
	require.EqualValues(t, 1, again.DataVersion)

	second := q.Dequeue()
	require.EqualValues(t, 2, second.DataVersion)
}

func TestPKRoundTrip(t *testing.T) {
	cases := []PK{
		PKFromUint(42),
		PKFromSint(-7),
		PKFromStr("hello"),
		PKFromBin([]byte{1, 2, 3}),
	}
	for _, pk := range cases {
		enc := Encode(nil, pk)
		got, err := Decode(&sliceReader{b: enc}, pk.Tag)
		require.NoError(t, err)
		require.Equal(t, pk.Tag, got.Tag)
		if pk.Tag == PKStr || pk.Tag == PKBin {
			require.Equal(t, pk.Bytes, got.Bytes)
		} else {
			require.Equal(t, pk.Num, got.Num)
		}
	}
}

type sliceReader struct{ b []byte }

func (r *sliceReader) ReadBlock(n int) ([]byte, error) {
	out := r.b[:n]
	r.b = r.b[n:]
	return out, nil
}
