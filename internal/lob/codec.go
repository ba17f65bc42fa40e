package lob

import (
	"encoding/binary"

	"github.com/siodb/iomgr/internal/types"
)

// EncodeHeader serializes a LobChunkHeader in the fixed layout of spec
// §3.2: remaining_lob_length(4) + chunk_length(4) + next_chunk_block_id(8)
// + next_chunk_offset(4), little-endian.
func EncodeHeader(h types.LobChunkHeader) []byte {
	buf := make([]byte, types.LobChunkHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.RemainingLobLength)
	binary.LittleEndian.PutUint32(buf[4:8], h.ChunkLength)
	binary.LittleEndian.PutUint64(buf[8:16], h.NextChunkBlockID)
	binary.LittleEndian.PutUint32(buf[16:20], h.NextChunkOffset)
	return buf
}

// DecodeHeader parses a LobChunkHeader from its fixed-layout encoding.
func DecodeHeader(buf []byte) types.LobChunkHeader {
	return types.LobChunkHeader{
		RemainingLobLength: binary.LittleEndian.Uint32(buf[0:4]),
		ChunkLength:        binary.LittleEndian.Uint32(buf[4:8]),
		NextChunkBlockID:   binary.LittleEndian.Uint64(buf[8:16]),
		NextChunkOffset:    binary.LittleEndian.Uint32(buf[16:20]),
	}
}
