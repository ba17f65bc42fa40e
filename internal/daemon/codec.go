package daemon

import (
	"encoding/binary"
	"math"

	"github.com/siodb/iomgr/internal/engine"
	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/protocol"
	"github.com/siodb/iomgr/internal/table"
	"github.com/siodb/iomgr/internal/types"
)

// Wire encoding of a Command payload: this is the storage core's own
// framing of an engine.Request for test/CLI clients that talk to iomgrd
// directly; a real SQL front end would instead serialize its parsed
// DBEngineRequest here (spec §4.10: "consumes a parsed DBEngineRequest,
// product of the external parser" — that parser is out of scope, spec §1
// Non-goal "SQL grammar/parser").
//
// Layout: database_id(varint) table_id(varint) user_id(varint) op(byte)
// trid(varint) row_count(varint) { name(string) value }...

func decodeCommandRequest(buf []byte) (engine.Request, error) {
	var req engine.Request
	var err error
	var v uint64

	if v, buf, err = getUvarint(buf); err != nil {
		return req, err
	}
	req.DatabaseID = uint32(v)
	if v, buf, err = getUvarint(buf); err != nil {
		return req, err
	}
	req.TableID = v
	if v, buf, err = getUvarint(buf); err != nil {
		return req, err
	}
	req.UserID = uint32(v)
	if len(buf) == 0 {
		return req, ioerr.Internalf("MalformedCommand", "missing op byte")
	}
	req.Op = engine.Op(buf[0])
	buf = buf[1:]
	if v, buf, err = getUvarint(buf); err != nil {
		return req, err
	}
	req.TRID = v

	var rowCount uint64
	if rowCount, buf, err = getUvarint(buf); err != nil {
		return req, err
	}
	if rowCount > 0 {
		req.Row = make(table.Row, rowCount)
		for i := uint64(0); i < rowCount; i++ {
			var name string
			if name, buf, err = getString(buf); err != nil {
				return req, err
			}
			var val types.Value
			if val, buf, err = decodeValue(buf); err != nil {
				return req, err
			}
			req.Row[name] = val
		}
	}
	return req, nil
}

// EncodeCommandRequest is the client-side counterpart of
// decodeCommandRequest, exported for use by cmd/iomgrd and tests.
func EncodeCommandRequest(req engine.Request) []byte {
	buf := putUvarint(nil, uint64(req.DatabaseID))
	buf = putUvarint(buf, req.TableID)
	buf = putUvarint(buf, uint64(req.UserID))
	buf = append(buf, byte(req.Op))
	buf = putUvarint(buf, req.TRID)
	buf = putUvarint(buf, uint64(len(req.Row)))
	for name, val := range req.Row {
		buf = putString(buf, name)
		buf = encodeValue(buf, val)
	}
	return buf
}

func encodeRow(row table.Row, cols []table.ColumnDescriptor) (data []byte, mask []byte) {
	nullable := 0
	for _, c := range cols {
		if c.Nullable {
			nullable++
		}
	}
	if nullable > 0 {
		mask = make([]byte, protocol.NullBitmaskSize(len(cols)))
	}
	for i, c := range cols {
		v := row[c.Name]
		if v.IsNull {
			if mask != nil {
				protocol.SetNullBit(mask, i)
			}
			continue
		}
		data = encodeValue(data, v)
	}
	return data, mask
}

// encodeValue writes a 1-byte DataType tag (or 0xFF for NULL) followed by
// the value's encoding, so decodeValue can reconstruct a typed
// types.Value without consulting a column schema — the command wire
// format is schema-free, unlike the on-disk column codec in
// internal/column.
func encodeValue(buf []byte, v types.Value) []byte {
	if v.IsNull {
		return append(buf, 0xFF)
	}
	buf = append(buf, byte(v.Type))
	switch v.Type {
	case types.Bool:
		if v.Bool {
			return append(buf, 1)
		}
		return append(buf, 0)
	case types.Int8, types.Int16, types.Int32, types.Int64:
		return putVarint(buf, v.Int)
	case types.UInt8, types.UInt16, types.UInt32, types.UInt64:
		return putUvarint(buf, v.UInt)
	case types.Float:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], math.Float32bits(v.Float32))
		return append(buf, tmp[:]...)
	case types.Double:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v.Float64))
		return append(buf, tmp[:]...)
	case types.Text:
		return putString(buf, v.Str)
	case types.Binary:
		buf = putUvarint(buf, uint64(len(v.Bin)))
		return append(buf, v.Bin...)
	default:
		return buf
	}
}

func decodeValue(buf []byte) (types.Value, []byte, error) {
	if len(buf) == 0 {
		return types.Value{}, nil, ioerr.Internalf("MalformedCommand", "truncated value")
	}
	tag, rest := buf[0], buf[1:]
	if tag == 0xFF {
		return types.Value{IsNull: true}, rest, nil
	}
	t := types.DataType(tag)
	switch t {
	case types.Bool:
		if len(rest) == 0 {
			return types.Value{}, nil, ioerr.Internalf("MalformedCommand", "truncated bool")
		}
		return types.Value{Type: t, Bool: rest[0] != 0}, rest[1:], nil
	case types.Int8, types.Int16, types.Int32, types.Int64:
		n, sz := binary.Varint(rest)
		if sz <= 0 {
			return types.Value{}, nil, ioerr.Internalf("MalformedCommand", "bad int varint")
		}
		return types.Value{Type: t, Int: n}, rest[sz:], nil
	case types.UInt8, types.UInt16, types.UInt32, types.UInt64:
		n, sz := binary.Uvarint(rest)
		if sz <= 0 {
			return types.Value{}, nil, ioerr.Internalf("MalformedCommand", "bad uint varint")
		}
		return types.Value{Type: t, UInt: n}, rest[sz:], nil
	case types.Float:
		if len(rest) < 4 {
			return types.Value{}, nil, ioerr.Internalf("MalformedCommand", "truncated float")
		}
		return types.Value{Type: t, Float32: math.Float32frombits(binary.BigEndian.Uint32(rest[:4]))}, rest[4:], nil
	case types.Double:
		if len(rest) < 8 {
			return types.Value{}, nil, ioerr.Internalf("MalformedCommand", "truncated double")
		}
		return types.Value{Type: t, Float64: math.Float64frombits(binary.BigEndian.Uint64(rest[:8]))}, rest[8:], nil
	case types.Text:
		s, r, err := getString(rest)
		if err != nil {
			return types.Value{}, nil, err
		}
		return types.Value{Type: t, Str: s}, r, nil
	case types.Binary:
		n, r, err := getUvarint(rest)
		if err != nil {
			return types.Value{}, nil, err
		}
		if uint64(len(r)) < n {
			return types.Value{}, nil, ioerr.Internalf("MalformedCommand", "truncated binary")
		}
		return types.Value{Type: t, Bin: append([]byte(nil), r[:n]...)}, r[n:], nil
	default:
		return types.Value{}, nil, ioerr.Internalf("MalformedCommand", "unsupported value type %d", tag)
	}
}

func putUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func putVarint(buf []byte, v int64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func putString(buf []byte, s string) []byte {
	buf = putUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func getUvarint(buf []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, nil, ioerr.Internalf("MalformedCommand", "bad varint")
	}
	return v, buf[n:], nil
}

func getString(buf []byte) (string, []byte, error) {
	n, rest, err := getUvarint(buf)
	if err != nil {
		return "", nil, err
	}
	if uint64(len(rest)) < n {
		return "", nil, ioerr.Internalf("MalformedCommand", "truncated string")
	}
	return string(rest[:n]), rest[n:], nil
}
