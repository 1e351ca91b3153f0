package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/driftdb/driftdb/internal/cell"
	"github.com/driftdb/driftdb/internal/row"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	fields := []Field{
		NewField("id", cell.KindUint64, false),
		NewField("name", cell.KindString, false),
		NewField("nickname", cell.KindString, true),
	}
	m, err := New(uuid.New(), "users", fields, "id")
	require.NoError(t, err)
	return m
}

func TestNewRejectsMissingOrNullablePK(t *testing.T) {
	fields := []Field{NewField("id", cell.KindUint64, false)}
	_, err := New(uuid.New(), "bad", fields, "missing")
	require.Error(t, err)

	fields2 := []Field{NewField("id", cell.KindUint64, true)}
	_, err = New(uuid.New(), "bad2", fields2, "id")
	require.Error(t, err)
}

func TestOrderedNonPKFieldsExcludesPK(t *testing.T) {
	m := newTestModel(t)
	require.Equal(t, []string{"name", "nickname"}, m.OrderedNonPKFields())
	require.Equal(t, row.PKUint, m.PKTag())
}

func TestIndexRoundTrip(t *testing.T) {
	m := newTestModel(t)
	pk := row.PKFromUint(1)
	r := row.New(pk, map[string]cell.Cell{"name": cell.FromString("a")}, 0, 0)
	m.InsertRow(r)

	got, ok := m.GetRow(pk)
	require.True(t, ok)
	require.Equal(t, "a", got.Snapshot().Data["name"].Str())

	removed, ok := m.RemoveRow(pk)
	require.True(t, ok)
	require.Equal(t, r, removed)
	_, ok = m.GetRow(pk)
	require.False(t, ok)
}

func TestAlterAddRemoveUpdateFieldsAdvanceSchemaVersion(t *testing.T) {
	m := newTestModel(t)
	require.EqualValues(t, 0, m.SchemaVersion())

	require.NoError(t, m.AlterAddFields([]Field{NewField("age", cell.KindUint32, true)}))
	require.EqualValues(t, 1, m.SchemaVersion())
	_, ok := m.Field("age")
	require.True(t, ok)

	require.NoError(t, m.AlterRemoveFields([]string{"nickname"}))
	require.EqualValues(t, 2, m.SchemaVersion())
	_, ok = m.Field("nickname")
	require.False(t, ok)

	require.Error(t, m.AlterRemoveFields([]string{"id"}))

	require.NoError(t, m.AlterUpdateFields([]Field{NewField("age", cell.KindUint32, false)}))
	require.EqualValues(t, 3, m.SchemaVersion())
	f, _ := m.Field("age")
	require.False(t, f.Nullable)

	require.Error(t, m.AlterUpdateFields([]Field{NewField("id", cell.KindString, false)}))
}

func TestDeltaCounterAdvancesMonotonically(t *testing.T) {
	m := newTestModel(t)
	require.EqualValues(t, 0, m.NextDataVersion())
	require.EqualValues(t, 1, m.NextDataVersion())
	m.AdvanceDeltaCounter(10)
	require.EqualValues(t, 10, m.NextDataVersion())
	m.AdvanceDeltaCounter(3) // must not move counter backward
	require.EqualValues(t, 11, m.NextDataVersion())
}

func TestTryInsertRowRejectsDuplicatePK(t *testing.T) {
	m := newTestModel(t)
	pk := row.PKFromUint(1)
	r1 := row.New(pk, map[string]cell.Cell{"name": cell.FromString("a")}, 0, 0)
	r2 := row.New(pk, map[string]cell.Cell{"name": cell.FromString("b")}, 0, 1)

	require.True(t, m.TryInsertRow(r1))
	require.False(t, m.TryInsertRow(r2))

	got, ok := m.GetRow(pk)
	require.True(t, ok)
	require.Equal(t, "a", got.Snapshot().Data["name"].Str())
}

func TestMergeRowFoldsOverCurrentData(t *testing.T) {
	m := newTestModel(t)
	pk := row.PKFromUint(1)
	r := row.New(pk, map[string]cell.Cell{"name": cell.FromString("a")}, 0, 0)
	m.InsertRow(r)

	ok := m.MergeRow(pk, 1, func(current map[string]cell.Cell) map[string]cell.Cell {
		merged := make(map[string]cell.Cell, len(current)+1)
		for k, v := range current {
			merged[k] = v
		}
		merged["nickname"] = cell.FromString("ay")
		return merged
	})
	require.True(t, ok)

	got, _ := m.GetRow(pk)
	snap := got.Snapshot()
	require.Equal(t, "a", snap.Data["name"].Str())
	require.Equal(t, "ay", snap.Data["nickname"].Str())

	require.False(t, m.MergeRow(row.PKFromUint(99), 2, func(c map[string]cell.Cell) map[string]cell.Cell { return c }))
}

func TestSpaceAddRemoveModel(t *testing.T) {
	sp := NewSpace(uuid.New(), "default")
	m := newTestModel(t)
	require.NoError(t, sp.AddModel(m))
	require.Error(t, sp.AddModel(m))

	got, ok := sp.Model("users")
	require.True(t, ok)
	require.Same(t, m, got)

	require.Len(t, sp.Models(), 1)

	removed, ok := sp.RemoveModel("users")
	require.True(t, ok)
	require.Same(t, m, removed)
	require.Len(t, sp.Models(), 0)
}
