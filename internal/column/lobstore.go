package column

import (
	"github.com/siodb/iomgr/internal/lob"
	"github.com/siodb/iomgr/internal/types"
)

// The three methods below satisfy lob.Store (and its ReaderStore subset),
// letting Column hand block selection off to the lob package without lob
// ever touching block selection policy itself (spec §4.6.2).

// ReadAt reads n bytes at addr from whichever block it names.
func (c *Column) ReadAt(addr types.ColumnDataAddress, n uint32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := c.loadBlock(addr.BlockID)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := b.ReadData(buf, addr.Offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// AllocateChunk reserves space for a LOB chunk of at least
// LobChunkHeaderSize+minPayload contiguous bytes (spec §4.6.2).
func (c *Column) AllocateChunk(minPayload uint32) (types.ColumnDataAddress, uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	required := uint32(types.LobChunkHeaderSize) + minPayload
	b, err := c.selectBlockForWrite(required)
	if err != nil {
		return types.NullAddress, 0, err
	}
	addr := types.ColumnDataAddress{BlockID: b.BlockID(), Offset: b.NextDataPos()}
	capacity := b.FreeDataSpace() - uint32(types.LobChunkHeaderSize)
	return addr, capacity, nil
}

// WriteChunk writes header followed by payload at addr and advances the
// block's append cursor past both.
func (c *Column) WriteChunk(addr types.ColumnDataAddress, header types.LobChunkHeader, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := c.loadBlock(addr.BlockID)
	if err != nil {
		return err
	}
	buf := make([]byte, types.LobChunkHeaderSize+len(payload))
	copy(buf, lob.EncodeHeader(header))
	copy(buf[types.LobChunkHeaderSize:], payload)
	if _, err := b.WriteData(buf, addr.Offset); err != nil {
		return err
	}
	if err := b.IncNextDataPos(uint32(len(buf))); err != nil {
		return err
	}
	c.noteBlockUsage(b)
	return nil
}

// PatchHeader rewrites only the header bytes at addr, back-patching a
// previously written chunk's next_chunk_* fields (spec §4.5 step 4). It
// must not move the append cursor: the space was already accounted for
// when the chunk was first written.
func (c *Column) PatchHeader(addr types.ColumnDataAddress, header types.LobChunkHeader) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := c.loadBlock(addr.BlockID)
	if err != nil {
		return err
	}
	_, err = b.WriteData(lob.EncodeHeader(header), addr.Offset)
	return err
}
