package engine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/driftdb/driftdb/internal/batch"
	"github.com/driftdb/driftdb/internal/cell"
	"github.com/driftdb/driftdb/internal/errs"
	"github.com/driftdb/driftdb/internal/journal"
	"github.com/driftdb/driftdb/internal/model"
	"github.com/driftdb/driftdb/internal/obs"
	"github.com/driftdb/driftdb/internal/row"
	"github.com/driftdb/driftdb/internal/sdss"
)

// Engine is the storage engine's single entry point: the row-level API
// (spec §4.7) and the DDL hooks (spec §6), backed by a system catalog
// journal and one data journal + background flush task per model.
//
// Grounded on the teacher's hive.Hive (hive/hive.go, deleted — see
// DESIGN.md), which held a single file, its in-memory index, and its
// metadata behind one struct; Engine generalizes that shape to many
// models across many spaces, split into a catalog journal (DDL) and
// per-model data journals (row deltas).
type Engine struct {
	cfg Config
	log *obs.Logger

	catalogFile   *os.File
	catalogWriter *journal.Writer

	mu       sync.RWMutex
	spaces   map[string]*model.Space
	runtimes map[string]*modelRuntime // keyed by space name + "/" + model name
}

// Open lays out rootDir (sys/ for the catalog, data/<space>/<model>/ for
// model journals), replays the catalog, and starts every restored
// model's flush task.
func Open(cfg Config, log *obs.Logger) (*Engine, error) {
	if log == nil {
		log = obs.Default()
	}
	if err := os.MkdirAll(filepath.Join(cfg.RootDir, "sys"), 0o750); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(cfg.RootDir, "data"), 0o750); err != nil {
		return nil, err
	}

	eng := &Engine{
		cfg:      cfg,
		log:      log,
		spaces:   make(map[string]*model.Space),
		runtimes: make(map[string]*modelRuntime),
	}

	catalogPath := filepath.Join(cfg.RootDir, "sys", "catalog.log")
	w, f, err := openOrCreateJournal(catalogPath, sdss.ClassJournal, sdss.SpecifierCatalog, catalogAdapter{spaces: eng.spaces}, cfg.AutoSyncOnEventCommit)
	if err != nil {
		return nil, err
	}
	eng.catalogFile = f
	eng.catalogWriter = w

	for spaceName, sp := range eng.spaces {
		for _, m := range sp.Models() {
			if err := eng.startModelRuntime(spaceName, sp, m); err != nil {
				eng.Close()
				return nil, err
			}
		}
	}

	log.Info("engine opened", "root_dir", cfg.RootDir, "spaces", len(eng.spaces))
	return eng, nil
}

func modelDataDir(rootDir string, spaceID, modelID uuid.UUID) string {
	return filepath.Join(rootDir, "data", spaceID.String(), modelID.String())
}

// startModelRuntime opens (or creates) m's data journal and launches its
// background flush task.
func (e *Engine) startModelRuntime(spaceName string, sp *model.Space, m *model.Model) error {
	dir := modelDataDir(e.cfg.RootDir, sp.ID(), m.ID())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	path := filepath.Join(dir, "model.log")
	w, f, err := openOrCreateJournal(path, sdss.ClassJournal, sdss.SpecifierModelData, batch.Adapter{Model: m}, e.cfg.AutoSyncOnEventCommit)
	if err != nil {
		return err
	}
	rt := newModelRuntime(m, f, w, e.cfg.MaxBatchSize, e.log.With("space", spaceName, "model", m.Name()))
	e.runtimes[runtimeKey(spaceName, m.Name())] = rt
	rt.start()
	return nil
}

func runtimeKey(spaceName, modelName string) string { return spaceName + "/" + modelName }

// Close stops every model's flush task and closes the catalog journal.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for _, rt := range e.runtimes {
		if err := rt.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.catalogWriter != nil {
		if err := e.catalogWriter.CloseDriver(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.catalogFile != nil {
		if err := e.catalogFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// --- DDL hooks (spec §6): every change is committed to the catalog
// journal before it becomes visible in eng.spaces.

func (e *Engine) CreateSpace(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.spaces[name]; dup {
		return errs.New(errs.RestoreDataConflictAlreadyExists, "space already exists: "+name)
	}
	id := uuid.New()
	if err := e.catalogWriter.CommitEvent(newCreateSpaceEvent(id, name)); err != nil {
		return err
	}
	e.spaces[name] = model.NewSpace(id, name)
	e.log.Info("space created", "space", name)
	return nil
}

func (e *Engine) DropSpace(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	sp, ok := e.spaces[name]
	if !ok {
		return errs.New(errs.RestoreDataMissing, "space not found: "+name)
	}
	if err := e.catalogWriter.CommitEvent(newDropSpaceEvent(name)); err != nil {
		return err
	}
	for _, m := range sp.Models() {
		if rt, ok := e.runtimes[runtimeKey(name, m.Name())]; ok {
			_ = rt.close()
			delete(e.runtimes, runtimeKey(name, m.Name()))
		}
	}
	delete(e.spaces, name)
	e.log.Info("space dropped", "space", name)
	return nil
}

func (e *Engine) CreateModel(spaceName, modelName, pkField string, fields []model.Field) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	sp, ok := e.spaces[spaceName]
	if !ok {
		return errs.New(errs.RestoreDataMissing, "space not found: "+spaceName)
	}
	if _, dup := sp.Model(modelName); dup {
		return errs.New(errs.RestoreDataConflictAlreadyExists, "model already exists: "+modelName)
	}
	id := uuid.New()
	m, err := model.New(id, modelName, fields, pkField)
	if err != nil {
		return err
	}
	if err := e.catalogWriter.CommitEvent(newCreateModelEvent(spaceName, id, modelName, pkField, fields)); err != nil {
		return err
	}
	if err := sp.AddModel(m); err != nil {
		return err
	}
	if err := e.startModelRuntime(spaceName, sp, m); err != nil {
		return err
	}
	e.log.Info("model created", "space", spaceName, "model", modelName)
	return nil
}

func (e *Engine) DropModel(spaceName, modelName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	sp, ok := e.spaces[spaceName]
	if !ok {
		return errs.New(errs.RestoreDataMissing, "space not found: "+spaceName)
	}
	if _, ok := sp.Model(modelName); !ok {
		return errs.New(errs.RestoreDataMissing, "model not found: "+modelName)
	}
	if err := e.catalogWriter.CommitEvent(newDropModelEvent(spaceName, modelName)); err != nil {
		return err
	}
	sp.RemoveModel(modelName)
	key := runtimeKey(spaceName, modelName)
	if rt, ok := e.runtimes[key]; ok {
		_ = rt.close()
		delete(e.runtimes, key)
	}
	e.log.Info("model dropped", "space", spaceName, "model", modelName)
	return nil
}

func (e *Engine) AlterModelAddFields(spaceName, modelName string, fields []model.Field) error {
	m, err := e.lookupModel(spaceName, modelName)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.catalogWriter.CommitEvent(newAlterAddFieldsEvent(spaceName, modelName, fields)); err != nil {
		return err
	}
	return m.AlterAddFields(fields)
}

func (e *Engine) AlterModelRemoveFields(spaceName, modelName string, names []string) error {
	m, err := e.lookupModel(spaceName, modelName)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.catalogWriter.CommitEvent(newAlterRemoveFieldsEvent(spaceName, modelName, names)); err != nil {
		return err
	}
	return m.AlterRemoveFields(names)
}

func (e *Engine) AlterModelUpdateFields(spaceName, modelName string, fields []model.Field) error {
	m, err := e.lookupModel(spaceName, modelName)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.catalogWriter.CommitEvent(newAlterUpdateFieldsEvent(spaceName, modelName, fields)); err != nil {
		return err
	}
	return m.AlterUpdateFields(fields)
}

func (e *Engine) lookupModel(spaceName, modelName string) (*model.Model, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sp, ok := e.spaces[spaceName]
	if !ok {
		return nil, errs.New(errs.RestoreDataMissing, "space not found: "+spaceName)
	}
	m, ok := sp.Model(modelName)
	if !ok {
		return nil, errs.New(errs.RestoreDataMissing, "model not found: "+modelName)
	}
	return m, nil
}

// --- Row-level API (spec §4.7). Every write applies to the in-memory
// index immediately (read-your-writes) and is additionally queued for
// the model's flush task to persist durably.

func (e *Engine) Get(spaceName, modelName string, pk row.PK) (row.Snapshot, bool) {
	m, err := e.lookupModel(spaceName, modelName)
	if err != nil {
		return row.Snapshot{}, false
	}
	r, ok := m.GetRow(pk)
	if !ok {
		return row.Snapshot{}, false
	}
	return r.Snapshot(), true
}

// Insert creates a new row with the given non-pk field data. Fails with
// RestoreDataConflictAlreadyExists if pk is already present — checked
// and set atomically via Model.TryInsertRow, closing the TOCTOU window a
// separate exists-check-then-insert would leave between two concurrent
// Inserts racing on the same never-before-seen key.
func (e *Engine) Insert(spaceName, modelName string, pk row.PK, data map[string]cell.Cell) error {
	m, err := e.lookupModel(spaceName, modelName)
	if err != nil {
		return err
	}
	if err := validateFields(m, data); err != nil {
		return err
	}
	dv := m.NextDataVersion()
	sv := m.SchemaVersion()
	newRow := row.New(pk, data, sv, dv)
	if !m.TryInsertRow(newRow) {
		return errs.New(errs.RestoreDataConflictAlreadyExists, "row already exists")
	}
	m.Queue().Push(row.Delta{Kind: row.DeltaInsert, DataVersion: dv, PK: pk, Row: newRow})
	return nil
}

// Update applies data over an existing row's fields. The merge is
// computed inside Model.MergeRow, under the target row's own lock, so
// two concurrent Updates to the same key can never compute their merges
// against the same stale snapshot and lose one write under the other.
func (e *Engine) Update(spaceName, modelName string, pk row.PK, data map[string]cell.Cell) error {
	m, err := e.lookupModel(spaceName, modelName)
	if err != nil {
		return err
	}
	if err := validateFields(m, data); err != nil {
		return err
	}
	merge := func(current map[string]cell.Cell) map[string]cell.Cell {
		merged := make(map[string]cell.Cell, len(current)+len(data))
		for k, v := range current {
			merged[k] = v
		}
		for k, v := range data {
			merged[k] = v
		}
		return merged
	}
	for {
		dv := m.NextDataVersion()
		if m.MergeRow(pk, dv, merge) {
			updated, ok := m.GetRow(pk)
			if !ok {
				// a concurrent Delete, with a later version, removed it.
				return nil
			}
			m.Queue().Push(row.Delta{Kind: row.DeltaUpdate, DataVersion: dv, PK: pk, Row: updated})
			return nil
		}
		if _, ok := m.GetRow(pk); !ok {
			return errs.New(errs.RestoreDataMissing, "row not found")
		}
		// a concurrent Update revised the row past dv: retry on top of it.
	}
}

// Delete removes a row. Read-your-writes for deletes means later Gets
// for pk miss immediately, even though the tombstone isn't durable until
// the flush task persists it.
func (e *Engine) Delete(spaceName, modelName string, pk row.PK) error {
	m, err := e.lookupModel(spaceName, modelName)
	if err != nil {
		return err
	}
	if _, ok := m.RemoveRow(pk); !ok {
		return errs.New(errs.RestoreDataMissing, "row not found")
	}
	dv := m.NextDataVersion()
	m.Queue().Push(row.Delta{Kind: row.DeltaDelete, DataVersion: dv, PK: pk})
	return nil
}

func validateFields(m *model.Model, data map[string]cell.Cell) error {
	for name, c := range data {
		f, ok := m.Field(name)
		if !ok {
			return errs.New(errs.InternalDecodeStructureIllegalData, "unknown field "+name)
		}
		if err := f.Accepts(c); err != nil {
			return err
		}
	}
	return nil
}
