package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftdb/driftdb/internal/cell"
	"github.com/driftdb/driftdb/internal/model"
	"github.com/driftdb/driftdb/internal/obs"
	"github.com/driftdb/driftdb/internal/row"
)

func testLogger() *obs.Logger {
	return obs.New(obs.Config{Level: obs.LevelError, Quiet: true})
}

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultConfig(t.TempDir())
	eng, err := Open(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func userFields() []model.Field {
	return []model.Field{
		model.NewField("id", cell.KindUint64, false),
		model.NewField("name", cell.KindString, false),
		model.NewField("nickname", cell.KindString, true),
	}
}

func TestCreateSpaceAndModel(t *testing.T) {
	eng := openTestEngine(t)
	require.NoError(t, eng.CreateSpace("default"))
	require.Error(t, eng.CreateSpace("default"))
	require.NoError(t, eng.CreateModel("default", "users", "id", userFields()))
	require.Error(t, eng.CreateModel("default", "users", "id", userFields()))
}

func TestInsertGetUpdateDeleteRoundTrip(t *testing.T) {
	eng := openTestEngine(t)
	require.NoError(t, eng.CreateSpace("default"))
	require.NoError(t, eng.CreateModel("default", "users", "id", userFields()))

	pk := row.PKFromUint(1)
	require.NoError(t, eng.Insert("default", "users", pk, map[string]cell.Cell{
		"name": cell.FromString("ada"),
	}))
	require.Error(t, eng.Insert("default", "users", pk, map[string]cell.Cell{
		"name": cell.FromString("dup"),
	}))

	snap, ok := eng.Get("default", "users", pk)
	require.True(t, ok)
	require.Equal(t, "ada", snap.Data["name"].Str())

	require.NoError(t, eng.Update("default", "users", pk, map[string]cell.Cell{
		"nickname": cell.FromString("lovelace"),
	}))
	snap, ok = eng.Get("default", "users", pk)
	require.True(t, ok)
	require.Equal(t, "ada", snap.Data["name"].Str())
	require.Equal(t, "lovelace", snap.Data["nickname"].Str())

	require.NoError(t, eng.Delete("default", "users", pk))
	_, ok = eng.Get("default", "users", pk)
	require.False(t, ok)
	require.Error(t, eng.Delete("default", "users", pk))
}

func TestAlterModelFieldsThroughEngine(t *testing.T) {
	eng := openTestEngine(t)
	require.NoError(t, eng.CreateSpace("default"))
	require.NoError(t, eng.CreateModel("default", "users", "id", userFields()))

	require.NoError(t, eng.AlterModelAddFields("default", "users", []model.Field{
		model.NewField("age", cell.KindUint32, true),
	}))
	require.NoError(t, eng.AlterModelRemoveFields("default", "users", []string{"nickname"}))
	require.Error(t, eng.AlterModelRemoveFields("default", "users", []string{"id"}))
}

func TestCatalogSurvivesRestart(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig(root)

	eng, err := Open(cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, eng.CreateSpace("default"))
	require.NoError(t, eng.CreateModel("default", "users", "id", userFields()))
	require.NoError(t, eng.Insert("default", "users", row.PKFromUint(1), map[string]cell.Cell{
		"name": cell.FromString("ada"),
	}))
	// Give the flush task a moment to durably persist the insert before
	// restart; read-your-writes already made it visible above.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, eng.Close())

	eng2, err := Open(cfg, testLogger())
	require.NoError(t, err)
	defer eng2.Close()

	snap, ok := eng2.Get("default", "users", row.PKFromUint(1))
	require.True(t, ok)
	require.Equal(t, "ada", snap.Data["name"].Str())
}

func TestModelDataDirLaysOutBySpaceAndModelUUID(t *testing.T) {
	eng := openTestEngine(t)
	require.NoError(t, eng.CreateSpace("default"))
	require.NoError(t, eng.CreateModel("default", "users", "id", userFields()))

	sp, ok := eng.spaces["default"]
	require.True(t, ok)
	m, ok := sp.Model("users")
	require.True(t, ok)

	dir := modelDataDir(eng.cfg.RootDir, sp.ID(), m.ID())
	require.Equal(t, filepath.Join(eng.cfg.RootDir, "data", sp.ID().String(), m.ID().String()), dir)
}
