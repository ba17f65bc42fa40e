// Package block implements the column data block container of spec §4.3:
// a fixed-size file holding a header plus a contiguous, append-only
// record area.
package block

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/vfile"
)

// Magic identifies a column data block header.
const Magic uint32 = 0x53424C4B // "SBLK"

// State is a column data block's lifecycle stage (spec §4.3).
type State uint8

const (
	Creating State = iota
	Current
	Closed
	Deleted
)

// HeaderSize is the on-disk header footprint: magic(4) + block_id(8) +
// prev_block_id(8) + state(1) + next_data_pos(4) + digest(4), padded to
// an 8-byte boundary.
const HeaderSize = 4 + 8 + 8 + 1 + 4 + 4 + 3 // = 32

// Block is the runtime handle for one column data block (spec §3.2
// ColumnDataBlock). Block.Size() of the backing file equals
// HeaderSize + dataAreaSize.
type Block struct {
	file         vfile.File
	blockID      uint64
	prevBlockID  uint64
	state        State
	nextDataPos  uint32
	dataAreaSize uint32
}

// Create initializes a brand-new block of dataAreaSize bytes atop file,
// in state Creating, with no prior version.
func Create(file vfile.File, blockID, prevBlockID uint64, dataAreaSize uint32) (*Block, error) {
	b := &Block{
		file: file, blockID: blockID, prevBlockID: prevBlockID,
		state: Creating, nextDataPos: 0, dataAreaSize: dataAreaSize,
	}
	if err := file.Extend(int64(HeaderSize) + int64(dataAreaSize)); err != nil {
		return nil, err
	}
	if err := b.writeHeader(); err != nil {
		return nil, err
	}
	return b, nil
}

// Open reads an existing block's header back from file.
func Open(file vfile.File, dataAreaSize uint32) (*Block, error) {
	hdr := make([]byte, HeaderSize)
	n, err := file.Read(hdr, 0)
	if err != nil {
		return nil, err
	}
	if n != HeaderSize {
		return nil, ioerr.Internal("InvalidDataBlockHeader", errShortHeader)
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	if magic != Magic {
		return nil, ioerr.Internal("InvalidDataBlockHeader", errBadMagic)
	}
	b := &Block{
		file:         file,
		blockID:      binary.LittleEndian.Uint64(hdr[4:12]),
		prevBlockID:  binary.LittleEndian.Uint64(hdr[12:20]),
		state:        State(hdr[20]),
		nextDataPos:  binary.LittleEndian.Uint32(hdr[21:25]),
		dataAreaSize: dataAreaSize,
	}
	stored := binary.LittleEndian.Uint32(hdr[25:29])
	if crc := b.headerCRC(hdr[:25]); crc != stored {
		return nil, ioerr.Internal("InvalidDataBlockHeader", errBadDigest)
	}
	return b, nil
}

func (b *Block) headerCRC(partial []byte) uint32 { return crc32.ChecksumIEEE(partial) }

func (b *Block) writeHeader() error {
	hdr := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:4], Magic)
	binary.LittleEndian.PutUint64(hdr[4:12], b.blockID)
	binary.LittleEndian.PutUint64(hdr[12:20], b.prevBlockID)
	hdr[20] = byte(b.state)
	binary.LittleEndian.PutUint32(hdr[21:25], b.nextDataPos)
	binary.LittleEndian.PutUint32(hdr[25:29], b.headerCRC(hdr[:25]))
	_, err := b.file.Write(hdr, 0)
	return err
}

func (b *Block) BlockID() uint64     { return b.blockID }
func (b *Block) PrevBlockID() uint64 { return b.prevBlockID }
func (b *Block) State() State        { return b.state }
func (b *Block) NextDataPos() uint32 { return b.nextDataPos }

// FreeDataSpace is block_data_area_size - next_data_pos (spec §4.3).
func (b *Block) FreeDataSpace() uint32 { return b.dataAreaSize - b.nextDataPos }

// SetState transitions the block and persists the header. Spec §4.3:
// Creating -> Current -> Closed (Deleted reachable from rollback, §4.7.3).
func (b *Block) SetState(s State) error {
	b.state = s
	return b.writeHeader()
}

// ReadData reads size bytes from offsetWithinBlock in the block's data
// area (spec §4.3 read_data).
func (b *Block) ReadData(buf []byte, offsetWithinBlock uint32) (int, error) {
	if uint64(offsetWithinBlock)+uint64(len(buf)) > uint64(b.dataAreaSize) {
		return 0, ioerr.Internal("InvalidDataBlockPosition", errOutOfRange)
	}
	return b.file.Read(buf, int64(HeaderSize)+int64(offsetWithinBlock))
}

// WriteData writes buf at offsetWithinBlock, which must lie at or after
// the current append cursor (spec §4.3: data area is append-only within a
// block). Only the Current block accepts appends.
func (b *Block) WriteData(buf []byte, offsetWithinBlock uint32) (int, error) {
	if b.state != Current && b.state != Creating {
		return 0, ioerr.Internal("BlockNotAppendable", errNotAppendable)
	}
	if uint64(offsetWithinBlock)+uint64(len(buf)) > uint64(b.dataAreaSize) {
		return 0, ioerr.Internal("InvalidDataBlockPosition", errOutOfRange)
	}
	return b.file.Write(buf, int64(HeaderSize)+int64(offsetWithinBlock))
}

// IncNextDataPos advances the append cursor by n bytes and persists the
// header. next_data_pos is monotonically non-decreasing until the block
// closes (spec §4.3).
func (b *Block) IncNextDataPos(n uint32) error {
	if uint64(b.nextDataPos)+uint64(n) > uint64(b.dataAreaSize) {
		return ioerr.Internal("InvalidDataBlockPosition", errOutOfRange)
	}
	b.nextDataPos += n
	return b.writeHeader()
}

// TruncateNextDataPos forces the append cursor backwards, used only by
// rollback (spec §4.7.3); callers must ensure no other writer observed
// the discarded range.
func (b *Block) TruncateNextDataPos(pos uint32) error {
	if pos > b.nextDataPos {
		return ioerr.Internal("InvalidRollback", errTruncateForward)
	}
	b.nextDataPos = pos
	return b.writeHeader()
}

func (b *Block) Flush() error { return b.file.Flush() }
func (b *Block) Close() error { return b.file.Close() }

var (
	errShortHeader     = ioerr.Userf("InvalidData", "block header is truncated").Err
	errBadMagic        = ioerr.Userf("InvalidData", "block header magic mismatch").Err
	errBadDigest       = ioerr.Userf("InvalidData", "block header digest mismatch").Err
	errOutOfRange      = ioerr.Userf("InvalidData", "block data offset out of range").Err
	errNotAppendable   = ioerr.Userf("InvalidData", "block is not in an appendable state").Err
	errTruncateForward = ioerr.Userf("InvalidData", "rollback position is ahead of current cursor").Err
)
