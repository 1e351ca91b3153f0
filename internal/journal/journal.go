// Package journal implements the raw, adapter-driven event log that every
// on-disk artifact (a model's data log or the system catalog) is built
// from: a checksummed sequence of server events (caller
// payloads) interleaved with driver events (the journal's own open/close
// bookkeeping).
//
// Grounded on the teacher's hive/tx.Manager begin/commit ordered-flush
// protocol (bump a sequence number, flush data, mark complete, flush
// header), reshaped into commit_event's allocate-id/write/sync/advance
// sequence, and on the original Skytable engine's raw journal writer/reader
// for the exact driver event fields, contiguity checking, and repair
// behavior (see DESIGN.md).
package journal

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/driftdb/driftdb/internal/buf"
	"github.com/driftdb/driftdb/internal/errs"
	"github.com/driftdb/driftdb/internal/iotrack"
	"github.com/driftdb/driftdb/internal/sdss"
)

const serverEventMask uint64 = 1 << 63

// Event is a caller-defined server event committed to a journal.
type Event interface {
	// Meta returns the event-kind metadata word. The journal sets the
	// high bit itself; Meta must not set it.
	Meta() uint64
	// Encode returns the event's on-disk payload, written immediately
	// after the transaction id and metadata word.
	Encode() ([]byte, error)
}

// Adapter decodes and applies server events read back from a journal
// during replay or restore. It closes over whatever global state the
// events mutate.
type Adapter interface {
	DecodeApply(meta uint64, r *iotrack.Reader) error
}

// InitState is the bookkeeping a Writer needs to resume appending to a
// journal: the logical cursor and checksum immediately after the last
// accepted event, the next transaction id to assign, and the byte offset
// at which the last accepted event ended (zero for a brand-new journal).
type InitState struct {
	Cursor     uint64
	Checksum   uint64
	NextTxnID  TxnID
	LastOffset uint64
}

// IsNew reports whether the journal has no prior events (a fresh file).
func (s InitState) IsNew() bool { return s.LastOffset == 0 }

// Writer appends events to a single journal file.
type Writer struct {
	f        *os.File
	tw       *iotrack.Writer
	autoSync bool

	nextTxnID     TxnID
	knownTxnID    TxnID
	knownOffset   uint64
	knownChecksum uint64
}

// Create initializes a brand-new journal file: writes the fixed header
// and positions the writer's cursor immediately after it.
func Create(f *os.File, class sdss.FileClass, specifier sdss.FileSpecifier, autoSync bool) (*Writer, error) {
	hdr := sdss.New(class, specifier, time.Now())
	if _, err := f.Write(hdr.Encode()); err != nil {
		return nil, err
	}
	w := &Writer{
		f:        f,
		tw:       iotrack.NewWriter(f, sdss.HeaderSize, 0),
		autoSync: autoSync,
	}
	return w, nil
}

// Open validates the header of an existing journal, replays every event in
// it through adapter, and returns a Writer ready to append further events.
// Scroll only accepts a journal whose last event is a Closed driver event;
// unless the journal has no events at all, a Reopened driver event is then
// appended immediately (matching the teacher's reopen-on-construction
// behavior).
func Open(f *os.File, class sdss.FileClass, specifier sdss.FileSpecifier, adapter Adapter, autoSync bool) (*Writer, error) {
	hdr, init, err := Scroll(f, adapter)
	if err != nil {
		return nil, err
	}
	if hdr.Class != class || hdr.Specifier != specifier {
		return nil, errs.New(errs.FileDecodeHeaderCorrupted, "file class/specifier mismatch")
	}
	knownTxnID := TxnID(0)
	if init.NextTxnID > 0 {
		knownTxnID = init.NextTxnID - 1
	}
	w := &Writer{
		f:             f,
		tw:            iotrack.NewWriter(f, init.Cursor, init.Checksum),
		autoSync:      autoSync,
		nextTxnID:     init.NextTxnID,
		knownTxnID:    knownTxnID,
		knownOffset:   init.LastOffset,
		knownChecksum: init.Checksum,
	}
	if !init.IsNew() {
		if err := w.ReopenDriver(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// CommitEvent writes a server event: tx id, metadata (with the server bit
// set), then the adapter-encoded payload, optionally syncing afterward.
func (w *Writer) CommitEvent(event Event) error {
	txnID := w.nextTxnID
	md := event.Meta() | serverEventMask

	payload, err := event.Encode()
	if err != nil {
		return err
	}

	block := make([]byte, 0, txnIDWireSize+8+len(payload))
	var idBytes [txnIDWireSize]byte
	txnID.putBytes(idBytes[:])
	block = append(block, idBytes[:]...)
	block = buf.AppendU64LE(block, md)
	block = append(block, payload...)

	if _, err := w.tw.WriteThroughBuffer(block); err != nil {
		return err
	}
	if w.autoSync {
		if err := w.tw.FlushSync(); err != nil {
			return err
		}
	}
	w.nextTxnID++
	w.knownTxnID = txnID
	w.knownOffset = w.tw.Cursor()
	w.knownChecksum = w.tw.Checksum()
	return nil
}

// CloseDriver appends a Closed driver event.
func (w *Writer) CloseDriver() error {
	return w.commitDriverEvent(DriverClosed)
}

// ReopenDriver appends a Reopened driver event.
func (w *Writer) ReopenDriver() error {
	return w.commitDriverEvent(DriverReopened)
}

func (w *Writer) commitDriverEvent(kind DriverEventKind) error {
	txnID := w.nextTxnID
	block := encodeDriverEvent(txnID, kind, w.knownChecksum, w.knownOffset, uint64(w.knownTxnID))
	if _, err := w.tw.WriteThroughBuffer(block[:]); err != nil {
		return err
	}
	if err := w.tw.FlushSync(); err != nil {
		return err
	}
	w.nextTxnID++
	w.knownTxnID = txnID
	w.knownOffset = w.tw.Cursor()
	w.knownChecksum = w.tw.Checksum()
	return nil
}

// LWTHeartbeat recovers from a failed commit. It must be called before the
// next commit after any commit error. If the on-disk file's length still
// matches the last known-good offset, nothing of the failed write reached
// disk and the unflushed buffer is safely discarded; otherwise the on-disk
// file has diverged and the journal is unusable until repaired.
func (w *Writer) LWTHeartbeat() error {
	goodEnd := w.knownOffset
	if goodEnd == 0 {
		goodEnd = sdss.HeaderSize
	}
	err := w.tw.VerifyCursor()
	if err == nil {
		if w.tw.Cursor() == goodEnd {
			return nil
		}
		return errs.New(errs.RawJournalRuntimeHeartbeatFail, "on-disk journal diverged from last known-good offset")
	}
	var mismatch *iotrack.CursorMismatchError
	if !errors.As(err, &mismatch) {
		return err
	}
	if mismatch.Actual == goodEnd {
		w.tw.DiscardBuffered(goodEnd, w.knownChecksum)
		return nil
	}
	return errs.New(errs.RawJournalRuntimeHeartbeatFail, "on-disk journal diverged from last known-good offset")
}

// Cursor returns the writer's current logical byte cursor.
func (w *Writer) Cursor() uint64 { return w.tw.Cursor() }

// NextTxnID returns the id that will be assigned to the next committed event.
func (w *Writer) NextTxnID() TxnID { return w.nextTxnID }

// Scroll validates f's header and replays every event in it through
// adapter, returning the decoded header and the bookkeeping needed to
// resume appending. f is left positioned at EOF.
func Scroll(f *os.File, adapter Adapter) (sdss.Header, InitState, error) {
	hdr, _, init, err := scrollInternal(f, adapter)
	return hdr, init, err
}

// scrollInternal is Scroll plus access to the underlying reader, so repair
// can inspect exactly how far replay got without running the adapter a
// second time.
func scrollInternal(f *os.File, adapter Adapter) (sdss.Header, *reader, InitState, error) {
	hdrBytes := make([]byte, sdss.HeaderSize)
	if _, err := f.ReadAt(hdrBytes, 0); err != nil {
		return sdss.Header{}, nil, InitState{}, errs.Wrap(errs.FileDecodeHeaderCorrupted, "short header read", err)
	}
	hdr, err := sdss.Decode(hdrBytes)
	if err != nil {
		return sdss.Header{}, nil, InitState{}, err
	}
	if _, err := f.Seek(sdss.HeaderSize, io.SeekStart); err != nil {
		return hdr, nil, InitState{}, err
	}
	tr, err := iotrack.NewReader(f, sdss.HeaderSize, 0)
	if err != nil {
		return hdr, nil, InitState{}, err
	}
	rd := newReader(tr)
	init, err := rd.scroll(adapter)
	return hdr, rd, init, err
}

// readerState tracks what kind of event the reader expects next, used only
// to classify repair scenarios (see repair.go).
type readerState int

const (
	awaitingEvent readerState = iota
	awaitingServerEvent
	awaitingClose
	awaitingReopen
)

type reader struct {
	tr           *iotrack.Reader
	nextTxnID    TxnID
	lastTxnID    TxnID
	lastOffset   uint64
	lastChecksum uint64
	state        readerState
}

func newReader(tr *iotrack.Reader) *reader {
	return &reader{tr: tr, state: awaitingEvent}
}

func (r *reader) scroll(adapter Adapter) (InitState, error) {
	for {
		done, err := r.applyNextEventAndStop(adapter)
		if err != nil {
			return InitState{}, err
		}
		if done {
			return InitState{
				Cursor:     r.tr.Cursor(),
				Checksum:   r.tr.Checksum(),
				NextTxnID:  r.nextTxnID,
				LastOffset: r.lastOffset,
			}, nil
		}
		r.state = awaitingEvent
	}
}

func (r *reader) refreshKnownTxn() {
	r.lastTxnID = r.nextTxnID
	r.lastChecksum = r.tr.Checksum()
	r.lastOffset = r.tr.Cursor()
	r.nextTxnID++
}

func (r *reader) applyNextEventAndStop(adapter Adapter) (bool, error) {
	idBytes, err := r.tr.ReadBlock(txnIDWireSize)
	if err != nil {
		return false, classifyIOErr(err)
	}
	metaBytes, err := r.tr.ReadBlock(8)
	if err != nil {
		return false, classifyIOErr(err)
	}
	txnID, ok := txnIDFromBytes(idBytes)
	meta := buf.U64LE(metaBytes)
	if !ok || txnID != r.nextTxnID {
		return false, errs.New(errs.RawJournalDecodeEventCorruptedMetadata, "transaction id out of sequence")
	}

	if meta&serverEventMask != 0 {
		r.state = awaitingServerEvent
		meta &^= serverEventMask
		if err := adapter.DecodeApply(meta, r.tr); err != nil {
			return false, err
		}
		r.refreshKnownTxn()
		return false, nil
	}

	r.state = awaitingClose
	var block [driverEventSize]byte
	copy(block[0:txnIDWireSize], idBytes)
	copy(block[txnIDWireSize:txnIDWireSize+8], metaBytes)
	rest, err := r.tr.ReadBlock(driverEventSize - txnIDWireSize - 8)
	if err != nil {
		return false, classifyIOErr(err)
	}
	copy(block[txnIDWireSize+8:], rest)
	return r.handleClose(block)
}

func (r *reader) handleClose(block [driverEventSize]byte) (bool, error) {
	ev, ok := decodeDriverEvent(block)
	if !ok {
		return false, errs.New(errs.RawJournalDecodeEventCorruptedPayload, "driver event self-checksum mismatch")
	}
	if ev.kind != DriverClosed {
		return false, errs.New(errs.RawJournalDecodeInvalidEvent, "expected a close event")
	}
	if ev.prevChecksum != r.lastChecksum || ev.prevTxnID != uint64(r.lastTxnID) || ev.prevOffset != r.lastOffset {
		return false, errs.New(errs.RawJournalDecodeEventCorruptedMetadata, "close event prev-fields mismatch")
	}
	r.refreshKnownTxn()
	if r.tr.IsEOF() {
		return true, nil
	}
	r.state = awaitingReopen
	return r.handleReopen()
}

func (r *reader) handleReopen() (bool, error) {
	raw, err := r.tr.ReadBlock(driverEventSize)
	if err != nil {
		return false, classifyIOErr(err)
	}
	var block [driverEventSize]byte
	copy(block[:], raw)
	ev, ok := decodeDriverEvent(block)
	if !ok {
		return false, errs.New(errs.RawJournalDecodeEventCorruptedPayload, "reopen event self-checksum mismatch")
	}
	if ev.kind != DriverReopened {
		return false, errs.New(errs.RawJournalDecodeInvalidEvent, "expected a reopen event")
	}
	if ev.prevChecksum != r.lastChecksum || ev.prevTxnID != uint64(r.lastTxnID) ||
		ev.prevOffset != r.lastOffset || ev.txnID != r.nextTxnID {
		return false, errs.New(errs.RawJournalDecodeEventCorruptedMetadata, "reopen event prev-fields mismatch")
	}
	r.refreshKnownTxn()
	return false, nil
}

func classifyIOErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errs.Wrap(errs.RawJournalDecodeEventCorruptedPayload, "truncated event", err)
	}
	return err
}
