// Package lob implements the forward-only LOB chunk streams of spec §4.5:
// TEXT/BINARY values larger than SMALL_LOB_LIMIT are stored as a chain of
// chunks, each prefixed by a LobChunkHeader, and read back lazily.
package lob

import (
	"io"

	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/types"
)

// SmallLobLimit is the inline-materialization threshold of spec §4.6 step 5.
const SmallLobLimit = 1 << 20 // 1 MiB

// MinChunkSpace is the minimum usable payload a chunk must have to be
// worth allocating (spec §4.5 step 2: "at least
// LOB_CHUNK_HEADER_SIZE + MIN_CHUNK_SPACE free").
const MinChunkSpace = 64

// Store is the block-level capability LOB streams need, implemented by
// the owning Column (spec §4.6.2 create_or_get_next_block). It is
// intentionally narrow: lob never picks blocks itself except through
// this interface, keeping available-block selection policy (§4.6.1) in
// one place.
type Store interface {
	// ReadAt reads n bytes at addr from the column's block chain.
	ReadAt(addr types.ColumnDataAddress, n uint32) ([]byte, error)
	// AllocateChunk reserves a block able to hold at least
	// LobChunkHeaderSize + minPayload contiguous bytes, returning the
	// chunk's start address and the payload capacity available after the
	// header at that address (spec §4.6.2).
	AllocateChunk(minPayload uint32) (addr types.ColumnDataAddress, payloadCapacity uint32, err error)
	// WriteChunk writes header followed by payload at addr.
	WriteChunk(addr types.ColumnDataAddress, header types.LobChunkHeader, payload []byte) error
	// PatchHeader rewrites only the header at addr (back-patching the
	// previous chunk's next_chunk_* fields, spec §4.5 step 4).
	PatchHeader(addr types.ColumnDataAddress, header types.LobChunkHeader) error
}

// WriteLob streams `remaining` bytes of src into store as a chunk chain,
// returning the address of the first chunk and the block id of the last
// chunk written (spec §4.5 write_lob returns `(written_addr, next_free_addr)`;
// callers needing to roll back a failed multi-block write must know how
// far the chain actually grew, not just where it started).
func WriteLob(store Store, src io.Reader, remaining uint64) (types.ColumnDataAddress, uint64, error) {
	if remaining == 0 {
		return types.NullAddress, 0, nil
	}
	var firstAddr types.ColumnDataAddress
	var prevAddr types.ColumnDataAddress
	havePrev := false

	for remaining > 0 {
		want := remaining
		if want > uint64(^uint32(0)) {
			want = uint64(^uint32(0))
		}
		minPayload := uint32(MinChunkSpace)
		if want < uint64(minPayload) {
			minPayload = uint32(want)
		}
		addr, capacity, err := store.AllocateChunk(minPayload)
		if err != nil {
			return types.NullAddress, 0, err
		}
		chunkLen := uint64(capacity)
		if chunkLen > want {
			chunkLen = want
		}
		payload := make([]byte, chunkLen)
		if _, err := io.ReadFull(src, payload); err != nil {
			return types.NullAddress, 0, ioerr.IO("LobSourceReadFailed", err)
		}
		remaining -= chunkLen
		header := types.LobChunkHeader{
			RemainingLobLength: uint32(remaining),
			ChunkLength:        uint32(chunkLen),
			NextChunkBlockID:   0,
			NextChunkOffset:    0,
		}
		if err := store.WriteChunk(addr, header, payload); err != nil {
			return types.NullAddress, 0, err
		}
		if !havePrev {
			firstAddr = addr
			havePrev = true
		} else {
			prevHeaderAddr := prevAddr
			// Back-patch the previous chunk's next_chunk_* fields
			// (spec §4.5 step 4). We must re-read it since we only
			// have the address, not the header, at this point.
			prevPayloadLen, err := readChunkLength(store, prevHeaderAddr)
			if err != nil {
				return types.NullAddress, 0, err
			}
			patched := types.LobChunkHeader{
				RemainingLobLength: prevPayloadLen.RemainingLobLength,
				ChunkLength:        prevPayloadLen.ChunkLength,
				NextChunkBlockID:   addr.BlockID,
				NextChunkOffset:    addr.Offset,
			}
			if err := store.PatchHeader(prevHeaderAddr, patched); err != nil {
				return types.NullAddress, 0, err
			}
		}
		prevAddr = addr
	}
	return firstAddr, prevAddr.BlockID, nil
}

func readChunkLength(store Store, addr types.ColumnDataAddress) (types.LobChunkHeader, error) {
	raw, err := store.ReadAt(addr, types.LobChunkHeaderSize)
	if err != nil {
		return types.LobChunkHeader{}, err
	}
	return DecodeHeader(raw), nil
}
