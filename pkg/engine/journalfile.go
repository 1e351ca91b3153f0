package engine

import (
	"os"

	"github.com/driftdb/driftdb/internal/journal"
	"github.com/driftdb/driftdb/internal/sdss"
)

// openOrCreateJournal opens path for read/write, creating it if absent,
// and either initializes a fresh journal header (empty file) or replays
// an existing one through adapter — mirroring the teacher's
// Create-vs-Open split now exercised through a single call site shared by
// the catalog and every model's data journal.
func openOrCreateJournal(
	path string, class sdss.FileClass, specifier sdss.FileSpecifier,
	adapter journal.Adapter, autoSync bool,
) (*journal.Writer, *os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if fi.Size() == 0 {
		w, err := journal.Create(f, class, specifier, autoSync)
		if err != nil {
			_ = f.Close()
			return nil, nil, err
		}
		return w, f, nil
	}
	w, err := journal.Open(f, class, specifier, adapter, autoSync)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return w, f, nil
}
