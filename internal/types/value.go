package types

import (
	"fmt"
	"io"
	"time"
)

// Value is the tagged union over the 14 scalar/LOB kinds plus NULL (spec
// §9 "Duck-typed Variant maps directly to a tagged union"). Exactly one of
// the typed fields is meaningful, selected by Type; IsNull overrides all.
type Value struct {
	Type   DataType
	IsNull bool

	Bool    bool
	Int     int64  // backs Int8/16/32/64
	UInt    uint64 // backs UInt8/16/32/64
	Float32 float32
	Float64 float64
	Time    RawDateTime

	// Str/Bin hold small (< SMALL_LOB_LIMIT) LOB values fully materialized.
	Str string
	Bin []byte

	// Stream holds a LOB value too large to materialize; non-nil only
	// when Type.IsLOB() and the value was not small enough to inline.
	// See spec §4.6 step 5.
	Stream LobReader
}

// LobReader is satisfied by ColumnClobStream/ColumnBlobStream (spec §4.5):
// a lazy forward-only byte sequence with a known total length.
type LobReader interface {
	io.Reader
	io.Closer
	Len() uint64 // remaining_lob_length at construction time
}

// NullValue returns the NULL value of type t.
func NullValue(t DataType) Value { return Value{Type: t, IsNull: true} }

func (v Value) String() string {
	if v.IsNull {
		return "NULL"
	}
	switch v.Type {
	case Bool:
		return fmt.Sprintf("%v", v.Bool)
	case Int8, Int16, Int32, Int64:
		return fmt.Sprintf("%d", v.Int)
	case UInt8, UInt16, UInt32, UInt64:
		return fmt.Sprintf("%d", v.UInt)
	case Float:
		return fmt.Sprintf("%v", v.Float32)
	case Double:
		return fmt.Sprintf("%v", v.Float64)
	case Text:
		return v.Str
	case Binary:
		return fmt.Sprintf("%x", v.Bin)
	case Timestamp:
		return v.Time.String()
	default:
		return "?"
	}
}

// RawDateTime is a packed date (+ optional time) value (spec §3.2): a
// 4-byte date part and an optional 8-byte time-of-day part.
type RawDateTime struct {
	Year     int32 // signed, proleptic Gregorian
	Month    uint8 // 1-12
	Day      uint8 // 1-31
	HasTime  bool
	Hour     uint8
	Minute   uint8
	Second   uint8
	Nanos    uint32
}

// RawDateTimeDateOnlySize is the minimum on-disk footprint of a TIMESTAMP
// value: the 4-byte date part with no time part present.
const RawDateTimeDateOnlySize = 4

// RawDateTimeFullSize is the footprint when the time part is present too
// (date part + 8-byte time part, spec §3.2).
const RawDateTimeFullSize = 4 + 8

func (d RawDateTime) String() string {
	if !d.HasTime {
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%09d",
		d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second, d.Nanos)
}

// FromTime converts a time.Time into a RawDateTime, always including the
// time-of-day part.
func FromTime(t time.Time) RawDateTime {
	return RawDateTime{
		Year: int32(t.Year()), Month: uint8(t.Month()), Day: uint8(t.Day()),
		HasTime: true,
		Hour:    uint8(t.Hour()), Minute: uint8(t.Minute()), Second: uint8(t.Second()),
		Nanos: uint32(t.Nanosecond()),
	}
}

// LobChunkHeaderSize is the on-disk size of a LobChunkHeader (spec §3.2):
// remaining_lob_length(4) + chunk_length(4) + next_chunk_block_id(8) +
// next_chunk_offset(4).
const LobChunkHeaderSize = 4 + 4 + 8 + 4

// LobChunkHeader precedes every LOB chunk written into a column block
// (spec §3.2, §4.5).
type LobChunkHeader struct {
	RemainingLobLength uint32
	ChunkLength        uint32
	NextChunkBlockID   uint64
	NextChunkOffset    uint32
}
