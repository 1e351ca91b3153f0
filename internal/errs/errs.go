// Package errs defines the storage engine's flat error taxonomy: a typed
// Kind discriminator plus a detail struct, propagated by value rather than
// as opaque strings.
package errs

import "fmt"

// Kind classifies a storage engine failure into one of the taxonomy buckets
// used to decide whether an error is repairable, fatal, or a local runtime
// condition the caller can heartbeat past.
type Kind int

const (
	// Header / format errors. Always fatal on open.
	FileDecodeHeaderCorrupted Kind = iota
	FileDecodeHeaderVersionMismatch

	// Journal decode errors. Repairable by truncation.
	RawJournalDecodeEventCorruptedMetadata
	RawJournalDecodeEventCorruptedPayload
	RawJournalDecodeBatchContentsMismatch
	RawJournalDecodeBatchIntegrityFailure
	RawJournalDecodeInvalidEvent
	RawJournalDecodeCorruptionInBatchMetadata

	// Batch decode errors. Repairable.
	BatchDecodeIllegalDiscriminator
	BatchDecodeCorruptedEntry

	// Restore-time conflicts. Fatal; indicate catalog/data divergence.
	RestoreDataMissing
	RestoreDataConflictAlreadyExists
	RestoreDataConflictMismatch

	// Runtime I/O. Local recovery via lwt_heartbeat is possible only for
	// RawJournalRuntimeDirty, and only if the heartbeat itself succeeds.
	RawJournalRuntimeDirty
	RawJournalRuntimeHeartbeatFail

	// Generic structural decode failures shared by header/journal/batch
	// decoders that don't fit a more specific bucket above.
	InternalDecodeStructureCorrupted
	InternalDecodeStructureCorruptedPayload
	InternalDecodeStructureIllegalData
)

var kindNames = map[Kind]string{
	FileDecodeHeaderCorrupted:               "header corrupted",
	FileDecodeHeaderVersionMismatch:         "header version mismatch",
	RawJournalDecodeEventCorruptedMetadata:  "journal event metadata corrupted",
	RawJournalDecodeEventCorruptedPayload:   "journal event payload corrupted",
	RawJournalDecodeBatchContentsMismatch:   "batch contents/metadata mismatch",
	RawJournalDecodeBatchIntegrityFailure:   "batch integrity check failed",
	RawJournalDecodeInvalidEvent:            "invalid journal event",
	RawJournalDecodeCorruptionInBatchMetadata: "batch metadata corrupted",
	BatchDecodeIllegalDiscriminator:         "illegal batch discriminator",
	BatchDecodeCorruptedEntry:               "batch entry corrupted",
	RestoreDataMissing:                      "restore: referenced model missing",
	RestoreDataConflictAlreadyExists:        "restore: duplicate create",
	RestoreDataConflictMismatch:             "restore: uuid/version disagreement",
	RawJournalRuntimeDirty:                  "journal dirty after failed write",
	RawJournalRuntimeHeartbeatFail:          "journal heartbeat: on-disk state diverged",
	InternalDecodeStructureCorrupted:        "internal structure corrupted",
	InternalDecodeStructureCorruptedPayload: "internal structure payload corrupted",
	InternalDecodeStructureIllegalData:      "internal structure has illegal data",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("errs.Kind(%d)", int(k))
}

// Error is the engine's single error type: a Kind plus an optional
// free-form detail and wrapped cause.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// Repairable reports whether a journal decode error of this kind can be
// resolved by the repair tool (truncate-and-close), as opposed to an
// unrelated I/O error or a header/restore-time fatal error.
func (k Kind) Repairable() bool {
	switch k {
	case RawJournalDecodeEventCorruptedMetadata,
		RawJournalDecodeEventCorruptedPayload,
		RawJournalDecodeBatchContentsMismatch,
		RawJournalDecodeBatchIntegrityFailure,
		RawJournalDecodeInvalidEvent,
		RawJournalDecodeCorruptionInBatchMetadata,
		BatchDecodeIllegalDiscriminator,
		BatchDecodeCorruptedEntry,
		InternalDecodeStructureCorrupted,
		InternalDecodeStructureCorruptedPayload,
		InternalDecodeStructureIllegalData:
		return true
	default:
		return false
	}
}
