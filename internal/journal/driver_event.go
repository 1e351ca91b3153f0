package journal

import (
	"hash/crc64"

	"github.com/driftdb/driftdb/internal/buf"
)

// DriverEventKind distinguishes the journal's own open/close bookkeeping
// events from server events carrying caller payloads.
type DriverEventKind uint8

const (
	DriverReopened DriverEventKind = 0
	DriverClosed   DriverEventKind = 1
)

func (k DriverEventKind) String() string {
	switch k {
	case DriverReopened:
		return "reopened"
	case DriverClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// driverEventSize is the fixed on-disk size of a driver event record.
const driverEventSize = 64

// driverEvent is the decoded form of a fixed 64-byte driver-owned record:
//
//	off 0  : tx_id          u128 LE
//	off 16 : event_kind     u64  LE   (low bits: 0=Reopened, 1=Closed)
//	off 24 : checksum       u64  LE   (CRC-64 of bytes [32..64))
//	off 32 : payload_len    u64  LE   (= 3)
//	off 40 : prev_checksum  u64  LE
//	off 48 : prev_offset    u64  LE
//	off 56 : prev_tx_id     u64  LE
type driverEvent struct {
	txnID        TxnID
	kind         DriverEventKind
	checksum     uint64
	prevChecksum uint64
	prevOffset   uint64
	prevTxnID    uint64
}

const driverEventPayloadLen uint64 = 3

var driverCrcTable = crc64.MakeTable(crc64.ISO)

func encodeDriverEvent(txnID TxnID, kind DriverEventKind, prevChecksum, prevOffset, prevTxnID uint64) [driverEventSize]byte {
	var block [driverEventSize]byte
	txnID.putBytes(block[0:16])
	buf.PutU64LE(block[16:24], uint64(kind))
	buf.PutU64LE(block[32:40], driverEventPayloadLen)
	buf.PutU64LE(block[40:48], prevChecksum)
	buf.PutU64LE(block[48:56], prevOffset)
	buf.PutU64LE(block[56:64], prevTxnID)
	checksum := crc64.Checksum(block[32:64], driverCrcTable)
	buf.PutU64LE(block[24:32], checksum)
	return block
}

// decodeDriverEvent validates the self-checksum and payload length of a
// 64-byte driver event block and returns its fields.
func decodeDriverEvent(block [driverEventSize]byte) (driverEvent, bool) {
	txnID, ok := txnIDFromBytes(block[0:16])
	if !ok {
		return driverEvent{}, false
	}
	kindRaw := buf.U64LE(block[16:24])
	if kindRaw > uint64(DriverClosed) {
		return driverEvent{}, false
	}
	checksum := buf.U64LE(block[24:32])
	payloadLen := buf.U64LE(block[32:40])
	prevChecksum := buf.U64LE(block[40:48])
	prevOffset := buf.U64LE(block[48:56])
	prevTxnID := buf.U64LE(block[56:64])

	want := crc64.Checksum(block[32:64], driverCrcTable)
	if checksum != want || payloadLen != driverEventPayloadLen {
		return driverEvent{}, false
	}
	return driverEvent{
		txnID:        txnID,
		kind:         DriverEventKind(kindRaw),
		checksum:     checksum,
		prevChecksum: prevChecksum,
		prevOffset:   prevOffset,
		prevTxnID:    prevTxnID,
	}, true
}
