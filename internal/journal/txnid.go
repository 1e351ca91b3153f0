package journal

import "github.com/driftdb/driftdb/internal/buf"

// TxnID is a journal-local, monotonically increasing transaction id. The
// wire format reserves a full 16 bytes (matching the on-disk u128) but this
// implementation only ever assigns ids that fit in 64 bits — no journal
// will commit 2^64 events in one file's lifetime.
type TxnID uint64

const txnIDWireSize = 16

func (id TxnID) putBytes(b []byte) {
	buf.PutU64LE(b[0:8], uint64(id))
	buf.PutU64LE(b[8:16], 0)
}

// txnIDFromBytes decodes a 16-byte LE u128 tx id, rejecting values whose
// upper 64 bits are nonzero.
func txnIDFromBytes(b []byte) (TxnID, bool) {
	if buf.U64LE(b[8:16]) != 0 {
		return 0, false
	}
	return TxnID(buf.U64LE(b[0:8])), true
}
