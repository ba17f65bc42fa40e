package column

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/lob"
	"github.com/siodb/iomgr/internal/types"
)

// timestampSize is the fixed on-disk footprint this implementation uses
// for TIMESTAMP values: a has-time flag byte, the 6-byte date part (year
// 4, month 1, day 1), and (always present, zeroed when absent) the 7-byte
// time-of-day part (hour, minute, second 1 each, nanoseconds 4). Spec
// §4.6 leaves the exact encoding to the implementation as long as
// MinWidth's lower bound holds; a fixed width keeps scalar decode
// branchless and symmetric with the other fixed-width types.
const timestampSize = 1 + 6 + 7

func encodeTimestamp(t types.RawDateTime) []byte {
	buf := make([]byte, timestampSize)
	if t.HasTime {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:5], uint32(t.Year))
	buf[5] = t.Month
	buf[6] = t.Day
	if t.HasTime {
		buf[7] = t.Hour
		buf[8] = t.Minute
		buf[9] = t.Second
		binary.LittleEndian.PutUint32(buf[10:14], t.Nanos)
	}
	return buf
}

func decodeTimestamp(buf []byte) types.RawDateTime {
	var t types.RawDateTime
	t.HasTime = buf[0] == 1
	t.Year = int32(binary.LittleEndian.Uint32(buf[1:5]))
	t.Month = buf[5]
	t.Day = buf[6]
	if t.HasTime {
		t.Hour = buf[7]
		t.Minute = buf[8]
		t.Second = buf[9]
		t.Nanos = binary.LittleEndian.Uint32(buf[10:14])
	}
	return t
}

// encodeScalar serializes a non-NULL, non-LOB value into its fixed-width
// on-disk form (spec §4.6).
func encodeScalar(v types.Value) ([]byte, error) {
	switch v.Type {
	case types.Bool:
		if v.Bool {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case types.Int8:
		return []byte{byte(int8(v.Int))}, nil
	case types.Int16:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(int16(v.Int)))
		return buf, nil
	case types.Int32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(int32(v.Int)))
		return buf, nil
	case types.Int64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v.Int))
		return buf, nil
	case types.UInt8:
		return []byte{byte(v.UInt)}, nil
	case types.UInt16:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(v.UInt))
		return buf, nil
	case types.UInt32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v.UInt))
		return buf, nil
	case types.UInt64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, v.UInt)
		return buf, nil
	case types.Float:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v.Float32))
		return buf, nil
	case types.Double:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.Float64))
		return buf, nil
	case types.Timestamp:
		return encodeTimestamp(v.Time), nil
	default:
		return nil, ioerr.Internalf("UnsupportedDataType", "cannot encode scalar of type %s", v.Type)
	}
}

func decodeScalar(t types.DataType, buf []byte) types.Value {
	switch t {
	case types.Bool:
		return types.Value{Type: t, Bool: buf[0] != 0}
	case types.Int8:
		return types.Value{Type: t, Int: int64(int8(buf[0]))}
	case types.Int16:
		return types.Value{Type: t, Int: int64(int16(binary.LittleEndian.Uint16(buf)))}
	case types.Int32:
		return types.Value{Type: t, Int: int64(int32(binary.LittleEndian.Uint32(buf)))}
	case types.Int64:
		return types.Value{Type: t, Int: int64(binary.LittleEndian.Uint64(buf))}
	case types.UInt8:
		return types.Value{Type: t, UInt: uint64(buf[0])}
	case types.UInt16:
		return types.Value{Type: t, UInt: uint64(binary.LittleEndian.Uint16(buf))}
	case types.UInt32:
		return types.Value{Type: t, UInt: uint64(binary.LittleEndian.Uint32(buf))}
	case types.UInt64:
		return types.Value{Type: t, UInt: binary.LittleEndian.Uint64(buf)}
	case types.Float:
		return types.Value{Type: t, Float32: math.Float32frombits(binary.LittleEndian.Uint32(buf))}
	case types.Double:
		return types.Value{Type: t, Float64: math.Float64frombits(binary.LittleEndian.Uint64(buf))}
	case types.Timestamp:
		return types.Value{Type: t, Time: decodeTimestamp(buf)}
	default:
		return types.Value{Type: t}
	}
}

// WriteRecord persists v (already coerced to the column's data type via
// types.Coerce by the caller) and returns its column data address along
// with the block id the write frontier ended on (spec §4.6 write_record
// returns `(written_addr, next_free_addr)`; the second value is what a
// caller rolling back a failed Insert/Update must pass to
// RollbackToAddress so it knows which blocks, if any, were created past
// the value's own starting block). NULL values write nothing and return
// the null address.
func (c *Column) WriteRecord(v types.Value) (types.ColumnDataAddress, uint64, error) {
	if v.IsNull {
		return types.NullAddress, 0, nil
	}
	if c.DataType.IsLOB() {
		return c.writeLOBRecord(v)
	}
	payload, err := encodeScalar(v)
	if err != nil {
		return types.NullAddress, 0, err
	}
	c.mu.Lock()
	b, err := c.selectBlockForWrite(uint32(len(payload)))
	if err != nil {
		c.mu.Unlock()
		return types.NullAddress, 0, err
	}
	addr := types.ColumnDataAddress{BlockID: b.BlockID(), Offset: b.NextDataPos()}
	if _, err := b.WriteData(payload, addr.Offset); err != nil {
		c.mu.Unlock()
		return types.NullAddress, 0, err
	}
	if err := b.IncNextDataPos(uint32(len(payload))); err != nil {
		c.mu.Unlock()
		return types.NullAddress, 0, err
	}
	c.noteBlockUsage(b)
	c.mu.Unlock()
	return addr, addr.BlockID, nil
}

// writeLOBRecord streams a TEXT/BINARY value into a chunk chain (spec
// §4.6 step 5, §4.5). It must not hold c.mu across the call: lob.WriteLob
// reaches back into Column's Store methods, each of which takes the lock
// itself.
func (c *Column) writeLOBRecord(v types.Value) (types.ColumnDataAddress, uint64, error) {
	var src interface {
		Read(p []byte) (int, error)
	}
	var length uint64
	switch {
	case v.Stream != nil:
		src = v.Stream
		length = v.Stream.Len()
	case v.Type == types.Text:
		data := []byte(v.Str)
		src = bytes.NewReader(data)
		length = uint64(len(data))
	default:
		src = bytes.NewReader(v.Bin)
		length = uint64(len(v.Bin))
	}
	return lob.WriteLob(c, src, length)
}

// ReadRecord reads the value stored at addr (spec §4.6 read_record).
// Small LOB values (<= lob.SmallLobLimit) are materialized inline; larger
// ones are returned with Stream set, which the caller must Close.
func (c *Column) ReadRecord(addr types.ColumnDataAddress) (types.Value, error) {
	if addr.IsNull() {
		return types.NullValue(c.DataType), nil
	}
	if c.DataType.IsLOB() {
		return c.readLOBRecord(addr)
	}
	width, ok := c.DataType.FixedWidth()
	if !ok {
		width = timestampSize
	}
	c.mu.Lock()
	b, err := c.loadBlock(addr.BlockID)
	if err != nil {
		c.mu.Unlock()
		return types.Value{}, err
	}
	buf := make([]byte, width)
	_, err = b.ReadData(buf, addr.Offset)
	c.mu.Unlock()
	if err != nil {
		return types.Value{}, err
	}
	return decodeScalar(c.DataType, buf), nil
}

func (c *Column) readLOBRecord(addr types.ColumnDataAddress) (types.Value, error) {
	stream, err := lob.NewStream(c, addr, true)
	if err != nil {
		return types.Value{}, err
	}
	if stream.Len() > lob.SmallLobLimit {
		return types.Value{Type: c.DataType, Stream: stream}, nil
	}
	data := make([]byte, stream.Len())
	if _, err := readFull(stream, data); err != nil {
		stream.Close()
		return types.Value{}, err
	}
	stream.Close()
	if c.DataType == types.Text {
		return types.Value{Type: types.Text, Str: string(data)}, nil
	}
	return types.Value{Type: types.Binary, Bin: data}, nil
}

func readFull(stream *lob.Stream, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := stream.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				return total, nil
			}
			return total, ioerr.IO("LobStreamReadFailed", err)
		}
	}
	return total, nil
}
