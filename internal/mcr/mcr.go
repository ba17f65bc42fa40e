// Package mcr implements the Master Column Record protocol of spec §3.2,
// §4.7: a versioned row header written into the master column, tagging
// every logical row operation with ordering identifiers and linking to
// the row's prior version.
package mcr

import (
	"encoding/binary"

	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/types"
)

// Op is the logical row operation an MCR records (spec §3.2).
type Op uint8

const (
	Insert Op = iota
	Update
	Delete
)

// MaxSize bounds a serialized MCR (spec §3.2 "size <= MAX_MCR_SIZE").
// Chosen generously: a row with a few hundred fixed-width/LOB-address
// columns still fits comfortably, while a corrupt/garbage length prefix
// is rejected long before an attempted huge allocation.
const MaxSize = 1 << 20

// ColumnRecord is one non-master column's value address and timestamps,
// carried inside an MCR (spec §3.2).
type ColumnRecord struct {
	Addr     types.ColumnDataAddress
	CreateTS int64
	UpdateTS int64
}

// MCR is the Master Column Record (spec §3.2).
type MCR struct {
	TRID            uint64
	TransactionID   uint64
	CreateTS        int64
	UpdateTS        int64
	Version         uint32
	AtomicOpID      uint64
	Op              Op
	UserID          uint32
	ColumnSetID     uint64
	PrevMCRAddress  types.ColumnDataAddress
	ColumnRecords   []ColumnRecord
}

// Encode serializes m with a leading unsigned varint byte length, per
// spec §3.2.
func Encode(m MCR) ([]byte, error) {
	body := encodeBody(m)
	if len(body) > MaxSize {
		return nil, ioerr.Internal("MasterColumnRecordTooLarge", errTooLarge)
	}
	prefix := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(prefix, uint64(len(body)))
	out := make([]byte, n+len(body))
	copy(out, prefix[:n])
	copy(out[n:], body)
	return out, nil
}

func encodeBody(m MCR) []byte {
	size := 8 + 8 + 8 + 8 + 4 + 8 + 1 + 4 + 8 + 12 + 4 + len(m.ColumnRecords)*(12+8+8)
	buf := make([]byte, size)
	off := 0
	putU64 := func(v uint64) { binary.LittleEndian.PutUint64(buf[off:], v); off += 8 }
	putI64 := func(v int64) { binary.LittleEndian.PutUint64(buf[off:], uint64(v)); off += 8 }
	putU32 := func(v uint32) { binary.LittleEndian.PutUint32(buf[off:], v); off += 4 }
	putAddr := func(a types.ColumnDataAddress) {
		putU64(a.BlockID)
		putU32(a.Offset)
	}

	putU64(m.TRID)
	putU64(m.TransactionID)
	putI64(m.CreateTS)
	putI64(m.UpdateTS)
	putU32(m.Version)
	putU64(m.AtomicOpID)
	buf[off] = byte(m.Op)
	off++
	putU32(m.UserID)
	putU64(m.ColumnSetID)
	putAddr(m.PrevMCRAddress)
	putU32(uint32(len(m.ColumnRecords)))
	for _, cr := range m.ColumnRecords {
		putAddr(cr.Addr)
		putI64(cr.CreateTS)
		putI64(cr.UpdateTS)
	}
	return buf[:off]
}

// Decode parses one size-prefixed MCR from buf, returning the MCR and the
// number of bytes consumed.
func Decode(buf []byte) (MCR, int, error) {
	size, n := binary.Uvarint(buf)
	if n <= 0 {
		return MCR{}, 0, ioerr.Internal("MasterColumnRecordIndexCorrupted", errBadVarint)
	}
	if size > MaxSize {
		return MCR{}, 0, ioerr.Internal("MasterColumnRecordTooLarge", errTooLarge)
	}
	if uint64(len(buf)-n) < size {
		return MCR{}, 0, ioerr.Internal("MasterColumnRecordIndexCorrupted", errShortBody)
	}
	body := buf[n : n+int(size)]
	m, err := decodeBody(body)
	if err != nil {
		return MCR{}, 0, err
	}
	return m, n + int(size), nil
}

func decodeBody(buf []byte) (MCR, error) {
	const minFixed = 8 + 8 + 8 + 8 + 4 + 8 + 1 + 4 + 8 + 12 + 4
	if len(buf) < minFixed {
		return MCR{}, ioerr.Internal("MasterColumnRecordIndexCorrupted", errShortBody)
	}
	off := 0
	getU64 := func() uint64 { v := binary.LittleEndian.Uint64(buf[off:]); off += 8; return v }
	getI64 := func() int64 { return int64(getU64()) }
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(buf[off:]); off += 4; return v }
	getAddr := func() types.ColumnDataAddress {
		b := getU64()
		o := getU32()
		return types.ColumnDataAddress{BlockID: b, Offset: o}
	}

	var m MCR
	m.TRID = getU64()
	m.TransactionID = getU64()
	m.CreateTS = getI64()
	m.UpdateTS = getI64()
	m.Version = getU32()
	m.AtomicOpID = getU64()
	m.Op = Op(buf[off])
	off++
	m.UserID = getU32()
	m.ColumnSetID = getU64()
	m.PrevMCRAddress = getAddr()
	count := getU32()
	if int(count) < 0 || off+int(count)*(12+8+8) > len(buf) {
		return MCR{}, ioerr.Internal("InvalidMasterColumnRecordColumnCount", errBadColumnCount)
	}
	m.ColumnRecords = make([]ColumnRecord, count)
	for i := range m.ColumnRecords {
		m.ColumnRecords[i] = ColumnRecord{Addr: getAddr(), CreateTS: getI64(), UpdateTS: getI64()}
	}
	return m, nil
}

var (
	errTooLarge       = ioerr.Userf("MasterColumnRecordTooLarge", "serialized MCR exceeds MaxSize").Err
	errBadVarint      = ioerr.Userf("MasterColumnRecordIndexCorrupted", "invalid varint size prefix").Err
	errShortBody      = ioerr.Userf("MasterColumnRecordIndexCorrupted", "truncated MCR body").Err
	errBadColumnCount = ioerr.Userf("InvalidMasterColumnRecordColumnCount", "column record count inconsistent with body length").Err
)
