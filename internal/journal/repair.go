package journal

import (
	"errors"
	"io"
	"os"

	"github.com/driftdb/driftdb/internal/errs"
	"github.com/driftdb/driftdb/internal/sdss"
)

// RepairResult reports what a Repair call found and fixed.
type RepairResult struct {
	// Lost is the number of trailing bytes that were discarded. Zero
	// means the journal replayed cleanly and nothing was touched.
	Lost uint64
}

// NoLoss reports whether repair found nothing to truncate.
func (r RepairResult) NoLoss() bool { return r.Lost == 0 }

// RepairMode selects a repair strategy. Simple is the only mode currently
// implemented: truncate to the last good event and append a synthetic
// close if needed.
type RepairMode int

const (
	RepairSimple RepairMode = iota
)

// Repair opens the journal at path read-write, determines the last
// successfully-replayable event, truncates everything after it, and if the
// log wasn't already cleanly closed there, appends a synthetic close event
// whose prev_* fields match the last good event. Callers must back up the
// file first: repair is destructive.
func Repair(path string, class sdss.FileClass, specifier sdss.FileSpecifier, adapter Adapter, mode RepairMode) (RepairResult, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return RepairResult{}, err
	}
	defer f.Close()

	hdr, rd, _, scrollErr := scrollInternal(f, adapter)
	if scrollErr == nil {
		return RepairResult{}, nil
	}
	if hdr.Class != class || hdr.Specifier != specifier {
		return RepairResult{}, errs.New(errs.FileDecodeHeaderCorrupted, "file class/specifier mismatch")
	}
	if !isRepairable(scrollErr) {
		return RepairResult{}, scrollErr
	}

	fi, err := f.Stat()
	if err != nil {
		return RepairResult{}, err
	}
	fileLen := uint64(fi.Size())

	lastGoodOffset := rd.lastOffset
	if lastGoodOffset == 0 {
		lastGoodOffset = sdss.HeaderSize
	}
	loss := fileLen - lastGoodOffset

	if err := f.Truncate(int64(lastGoodOffset)); err != nil {
		return RepairResult{}, err
	}

	if rd.state != awaitingReopen {
		// The log wasn't already cleanly closed before the tear: append a
		// synthetic close whose prev_* fields match the last good event.
		if _, err := f.Seek(int64(lastGoodOffset), io.SeekStart); err != nil {
			return RepairResult{}, err
		}
		closeTxnID := TxnID(0)
		if rd.lastOffset != 0 {
			closeTxnID = rd.lastTxnID + 1
		}
		block := encodeDriverEvent(closeTxnID, DriverClosed, rd.lastChecksum, rd.lastOffset, uint64(rd.lastTxnID))
		if _, err := f.Write(block[:]); err != nil {
			return RepairResult{}, err
		}
		if err := f.Sync(); err != nil {
			return RepairResult{}, err
		}
	}

	return RepairResult{Lost: loss}, nil
}

func isRepairable(err error) bool {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Kind.Repairable()
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
