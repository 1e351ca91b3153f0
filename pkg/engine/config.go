// Package engine implements the storage engine's row-level API
// (get/insert/update/delete) and DDL hooks (spec §6), wiring together the
// primary index (internal/cht), row/delta state (internal/row), the
// batch adapter (internal/batch), and the raw journal (internal/journal)
// behind a per-model background flush task, plus a system catalog
// journal recording space/model DDL events.
//
// Grounded on the teacher's internal/repair.EngineConfig (internal/repair/
// engine.go, deleted — see DESIGN.md) for the plain-struct-with-defaults
// configuration shape, generalized from registry-repair options to this
// engine's root directory, sync policy, and batch size.
package engine

// Config is the engine's local configuration: nothing here is the
// external query-layer config/CLI, which remains out of scope (spec §1).
type Config struct {
	// RootDir is the on-disk directory laid out per SPEC_FULL.md §6:
	// sys/ for the catalog, data/<space-uuid>/<model-uuid>/ for model
	// journals.
	RootDir string
	// AutoSyncOnEventCommit, if true, fsyncs after every journal commit
	// (catalog and model data alike) instead of relying on the OS's
	// write-back cache.
	AutoSyncOnEventCommit bool
	// MaxBatchSize caps how many deltas a single flush cycle dequeues
	// into one batch event.
	MaxBatchSize int
}

// DefaultConfig returns a Config with reasonable defaults for rootDir.
func DefaultConfig(rootDir string) Config {
	return Config{
		RootDir:               rootDir,
		AutoSyncOnEventCommit: true,
		MaxBatchSize:          256,
	}
}
