// Package blockreg implements the per-column block registry of spec §4.4:
// a persistent, 1-based vector of (prev_block_id, state) entries, the
// source of truth for traversing a column's block history.
package blockreg

import (
	"encoding/binary"
	"sync"

	"github.com/siodb/iomgr/internal/block"
	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/vfile"
)

// entrySize is prev_block_id(8) + state(1), padded to 16 bytes so entries
// are cheap to locate by index without a separate offset index.
const entrySize = 16

type entry struct {
	prevBlockID uint64
	state       block.State
}

// Registry is the write-through, persistent record of every data block a
// column has ever created.
type Registry struct {
	mu      sync.RWMutex
	file    vfile.File
	entries []entry // index 0 unused; block ids are 1-based
}

// Open loads the block registry from an already opened file; an empty
// file yields an empty registry.
func Open(file vfile.File) (*Registry, error) {
	r := &Registry{file: file, entries: []entry{{}}}
	size := file.Size()
	if size == 0 {
		return r, nil
	}
	n := int(size / entrySize)
	buf := make([]byte, int64(n)*entrySize)
	if _, err := file.Read(buf, 0); err != nil {
		return nil, err
	}
	r.entries = make([]entry, n+1)
	for i := 0; i < n; i++ {
		off := i * entrySize
		r.entries[i+1] = entry{
			prevBlockID: binary.LittleEndian.Uint64(buf[off : off+8]),
			state:       block.State(buf[off+8]),
		}
	}
	return r, nil
}

// LastBlockID returns the highest registered block id, or 0 if none.
func (r *Registry) LastBlockID() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.entries) - 1)
}

// Register appends a new block entry, returning its assigned block id.
func (r *Registry) Register(prevBlockID uint64, state block.State) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uint64(len(r.entries))
	r.entries = append(r.entries, entry{prevBlockID: prevBlockID, state: state})
	if err := r.writeEntry(id); err != nil {
		return 0, err
	}
	return id, nil
}

// FindPrevBlockID returns the prior block id in id's chain (spec §4.4).
func (r *Registry) FindPrevBlockID(id uint64) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) >= len(r.entries) {
		return 0, ioerr.Internal("InvalidBlockId", errUnknownBlock)
	}
	return r.entries[id].prevBlockID, nil
}

// UpdateBlockState persists a new state for id.
func (r *Registry) UpdateBlockState(id uint64, state block.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 || int(id) >= len(r.entries) {
		return ioerr.Internal("InvalidBlockId", errUnknownBlock)
	}
	r.entries[id].state = state
	return r.writeEntry(id)
}

// State returns the currently registered state of id.
func (r *Registry) State(id uint64) (block.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) >= len(r.entries) {
		return 0, ioerr.Internal("InvalidBlockId", errUnknownBlock)
	}
	return r.entries[id].state, nil
}

func (r *Registry) writeEntry(id uint64) error {
	buf := make([]byte, entrySize)
	binary.LittleEndian.PutUint64(buf[0:8], r.entries[id].prevBlockID)
	buf[8] = byte(r.entries[id].state)
	off := int64(id-1) * entrySize
	need := off + entrySize
	if cur := r.file.Size(); need > cur {
		if err := r.file.Extend(need - cur); err != nil {
			return err
		}
	}
	_, err := r.file.Write(buf, off)
	return err
}

func (r *Registry) Flush() error { return r.file.Flush() }
func (r *Registry) Close() error { return r.file.Close() }

var errUnknownBlock = ioerr.Userf("InvalidBlockId", "block id not present in registry").Err
