package types

import "fmt"

// DataType enumerates the column value kinds the codec understands
// (spec §4.6).
type DataType int

const (
	Bool DataType = iota
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Float
	Double
	Text
	Binary
	Timestamp
)

func (t DataType) String() string {
	switch t {
	case Bool:
		return "BOOL"
	case Int8:
		return "INT8"
	case Int16:
		return "INT16"
	case Int32:
		return "INT32"
	case Int64:
		return "INT64"
	case UInt8:
		return "UINT8"
	case UInt16:
		return "UINT16"
	case UInt32:
		return "UINT32"
	case UInt64:
		return "UINT64"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	case Text:
		return "TEXT"
	case Binary:
		return "BINARY"
	case Timestamp:
		return "TIMESTAMP"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// IsLOB reports whether values of t are stored as a LOB chunk chain
// rather than inline (spec §4.6 step 5).
func (t DataType) IsLOB() bool { return t == Text || t == Binary }

// FixedWidth returns the encoded byte width of fixed-width types, per the
// widths table in spec §4.6 (1,1,1,2,2,4,4,8,8,4,8 for
// Bool,Int8,UInt8,Int16,UInt16,Int32,UInt32,Int64,UInt64,Float,Double).
// ok is false for TEXT/BINARY/TIMESTAMP, which are variable width.
func (t DataType) FixedWidth() (width int, ok bool) {
	switch t {
	case Bool, Int8, UInt8:
		return 1, true
	case Int16, UInt16:
		return 2, true
	case Int32, UInt32, Float:
		return 4, true
	case Int64, UInt64, Double:
		return 8, true
	default:
		return 0, false
	}
}

// MinWidth is the minimum on-disk footprint of a value of type t: the
// fixed width for scalar types, the LobChunkHeader size for LOB types
// (the smallest thing ever written at a LOB address), and the minimum
// RawDateTime encoding (date-only) for TIMESTAMP. Used by invariant 4 in
// spec §3.3 to validate that addr.offset + min_width <= block area size.
func (t DataType) MinWidth() int {
	if w, ok := t.FixedWidth(); ok {
		return w
	}
	switch t {
	case Text, Binary:
		return LobChunkHeaderSize
	case Timestamp:
		return RawDateTimeDateOnlySize
	default:
		return 0
	}
}

// DefaultBlockDataAreaSize returns the per-type-family default block data
// area size a Column is created with when none is specified explicitly.
// Recovered from original_source (iomgr/lib/dbengine/Column*.cpp): LOB
// columns get a larger default block so a typical CLOB/BLOB fits in one
// or two chunks, fixed-width scalar columns get a smaller default block
// since many rows pack per block (see SPEC_FULL.md §C.4).
func (t DataType) DefaultBlockDataAreaSize() uint32 {
	switch {
	case t.IsLOB():
		return 4 << 20 // 4 MiB
	default:
		return 256 << 10 // 256 KiB
	}
}
