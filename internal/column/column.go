// Package column implements the typed value codec, LOB writer, block
// selection, and (for master columns) TRID counters described in spec
// §4.6: the component through which every row value is actually read
// from and written to disk.
package column

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/btree"

	"github.com/siodb/iomgr/internal/block"
	"github.com/siodb/iomgr/internal/blockreg"
	"github.com/siodb/iomgr/internal/initflag"
	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/types"
	"github.com/siodb/iomgr/internal/vfile"
)

// FileOpener opens (or creates) the file at path, already bound to the
// owning database's cipher and key (spec §4.1, §4.2). Supplied by the
// Instance/Database layer (C11/C10) so Column never deals with
// encryption directly.
type FileOpener func(path string, create bool) (vfile.File, error)

// availEntry is one slot in the available-block map of spec §4.6.1.
type availEntry struct {
	blockID   uint64
	freeSpace uint32
}

func lessAvail(a, b availEntry) bool { return a.blockID < b.blockID }

// minFreeSpaceThreshold is the minimum free space, the same for every data
// type, below which a block is dropped from the available-block map (spec
// §4.6.1).
const minFreeSpaceThreshold = 32

// Column is the runtime handle for one table column (spec §3.2).
type Column struct {
	mu sync.Mutex // per-column recursive-equivalent lock guarding block cache/available map (spec §5)

	ID          uint64
	Name        string
	DataType    types.DataType
	TableID     uint32
	DataAreaSize uint32
	NotNull     bool
	Default     *types.Value

	dir        string
	open       FileOpener
	registry   *blockreg.Registry
	blocks     map[uint64]*block.Block
	available  *btree.BTreeG[availEntry]
	lastBlockID uint64

	// master is non-nil only for the special TRID/UINT64 master column
	// (spec §4.6.3).
	master *masterExtra
}

// Spec describes the persistent configuration needed to create or open a
// Column.
type Spec struct {
	ID           uint64
	Name         string
	DataType     types.DataType
	TableID      uint32
	DataAreaSize uint32
	NotNull      bool
	Default      *types.Value
	IsMaster     bool
}

func columnDirName(isMaster bool, id uint64) string {
	if isMaster {
		return fmt.Sprintf("mc%d", id)
	}
	return fmt.Sprintf("c%d", id)
}

// Create initializes a brand-new column directory under tableDir.
func Create(tableDir string, spec Spec, open FileOpener, firstUserTrid uint64) (*Column, error) {
	dir := filepath.Join(tableDir, columnDirName(spec.IsMaster, spec.ID))
	if err := initflag.RequireAbsent(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, ioerr.IO("MkdirFailed", err)
	}
	c, err := newColumn(dir, spec, open)
	if err != nil {
		return nil, err
	}
	regFile, err := open(filepath.Join(dir, "block_registry"), true)
	if err != nil {
		return nil, err
	}
	reg, err := blockreg.Open(regFile)
	if err != nil {
		return nil, err
	}
	c.registry = reg
	if spec.IsMaster {
		m, err := createMasterExtra(dir, open, firstUserTrid)
		if err != nil {
			return nil, err
		}
		c.master = m
	}
	if err := initflag.Mark(dir); err != nil {
		return nil, err
	}
	return c, nil
}

// Open reopens an existing column directory.
func Open(tableDir string, spec Spec, open FileOpener) (*Column, error) {
	dir := filepath.Join(tableDir, columnDirName(spec.IsMaster, spec.ID))
	if err := initflag.RequirePresent(dir); err != nil {
		return nil, err
	}
	c, err := newColumn(dir, spec, open)
	if err != nil {
		return nil, err
	}
	regFile, err := open(filepath.Join(dir, "block_registry"), false)
	if err != nil {
		return nil, err
	}
	reg, err := blockreg.Open(regFile)
	if err != nil {
		return nil, err
	}
	c.registry = reg
	c.lastBlockID = reg.LastBlockID()
	if spec.IsMaster {
		m, err := openMasterExtra(dir, open)
		if err != nil {
			return nil, err
		}
		c.master = m
	}
	if err := c.rebuildAvailableMap(); err != nil {
		return nil, err
	}
	return c, nil
}

func newColumn(dir string, spec Spec, open FileOpener) (*Column, error) {
	areaSize := spec.DataAreaSize
	if areaSize == 0 {
		areaSize = spec.DataType.DefaultBlockDataAreaSize()
	}
	return &Column{
		ID: spec.ID, Name: spec.Name, DataType: spec.DataType, TableID: spec.TableID,
		DataAreaSize: areaSize, NotNull: spec.NotNull, Default: spec.Default,
		dir: dir, open: open,
		blocks:    make(map[uint64]*block.Block),
		available: btree.NewG(32, lessAvail),
	}, nil
}

// IsMaster reports whether this is the table's master (TRID) column.
func (c *Column) IsMaster() bool { return c.master != nil }

func (c *Column) blockPath(id uint64) string {
	return filepath.Join(c.dir, fmt.Sprintf("b%d.dat", id))
}

// rebuildAvailableMap scans every registered block's on-disk free space
// after Open, populating the in-memory available-block map (spec
// §4.6.1). Blocks with no remaining usable space are skipped.
func (c *Column) rebuildAvailableMap() error {
	for id := uint64(1); id <= c.lastBlockID; id++ {
		state, err := c.registry.State(id)
		if err != nil {
			return err
		}
		if state == block.Deleted || state == block.Closed {
			continue
		}
		b, err := c.loadBlock(id)
		if err != nil {
			return err
		}
		if free := b.FreeDataSpace(); free >= minFreeSpaceThreshold {
			c.available.ReplaceOrInsert(availEntry{blockID: id, freeSpace: free})
		}
	}
	return nil
}

func (c *Column) loadBlock(id uint64) (*block.Block, error) {
	if b, ok := c.blocks[id]; ok {
		return b, nil
	}
	f, err := c.open(c.blockPath(id), false)
	if err != nil {
		return nil, err
	}
	b, err := block.Open(f, c.DataAreaSize)
	if err != nil {
		return nil, err
	}
	c.blocks[id] = b
	return b, nil
}

func (c *Column) createBlock(prevBlockID uint64) (*block.Block, error) {
	id, err := c.registry.Register(prevBlockID, block.Creating)
	if err != nil {
		return nil, err
	}
	f, err := c.open(c.blockPath(id), true)
	if err != nil {
		return nil, err
	}
	b, err := block.Create(f, id, prevBlockID, c.DataAreaSize)
	if err != nil {
		return nil, err
	}
	if err := b.SetState(block.Current); err != nil {
		return nil, err
	}
	if err := c.registry.UpdateBlockState(id, block.Current); err != nil {
		return nil, err
	}
	c.blocks[id] = b
	c.lastBlockID = id
	return b, nil
}

// selectBlockForWrite implements spec §4.6.1: the smallest block_id whose
// free_space >= required, or a freshly created block if none qualifies.
func (c *Column) selectBlockForWrite(required uint32) (*block.Block, error) {
	var chosenID uint64
	c.available.Ascend(func(e availEntry) bool {
		if e.freeSpace >= required {
			chosenID = e.blockID
			return false
		}
		return true
	})
	if chosenID != 0 {
		return c.loadBlock(chosenID)
	}
	return c.createBlock(c.lastBlockID)
}

// noteBlockUsage updates (or evicts) a block's available-map entry from
// the block's current free data space (spec §4.6.1).
func (c *Column) noteBlockUsage(b *block.Block) {
	free := b.FreeDataSpace()
	id := b.BlockID()
	if free < minFreeSpaceThreshold {
		c.available.Delete(availEntry{blockID: id})
		return
	}
	c.available.ReplaceOrInsert(availEntry{blockID: id, freeSpace: free})
}

// CreateOrGetNextBlock returns a block usable for the next LOB chunk,
// guaranteeing at least requiredFreeSpace contiguous bytes (spec §4.6.2).
func (c *Column) CreateOrGetNextBlock(requiredFreeSpace uint32) (*block.Block, error) {
	return c.selectBlockForWrite(requiredFreeSpace)
}

func (c *Column) Flush() error {
	for _, b := range c.blocks {
		if err := b.Flush(); err != nil {
			return err
		}
	}
	if err := c.registry.Flush(); err != nil {
		return err
	}
	if c.master != nil {
		return c.master.flush()
	}
	return nil
}

func (c *Column) Close() error {
	for _, b := range c.blocks {
		_ = b.Close()
	}
	if err := c.registry.Close(); err != nil {
		return err
	}
	if c.master != nil {
		return c.master.close()
	}
	return nil
}

// RollbackToAddress discards any data written strictly after addr within
// the column's block chain (spec §4.7.3). Best-effort: logs but does not
// propagate secondary failures, matching the original's rollback policy.
func (c *Column) RollbackToAddress(addr types.ColumnDataAddress, firstAvailableBlockID uint64) {
	if addr.IsNull() {
		return
	}
	b, err := c.loadBlock(addr.BlockID)
	if err != nil {
		return
	}
	if addr.BlockID == firstAvailableBlockID {
		_ = b.TruncateNextDataPos(addr.Offset)
		c.noteBlockUsage(b)
		return
	}
	// Blocks created strictly after addr's block in this operation are
	// rolled back entirely.
	for id := addr.BlockID + 1; id <= c.lastBlockID; id++ {
		bl, err := c.loadBlock(id)
		if err != nil {
			continue
		}
		if bl.State() == block.Creating {
			_ = c.registry.UpdateBlockState(id, block.Deleted)
			_ = bl.SetState(block.Deleted)
			c.available.Delete(availEntry{blockID: id})
		}
	}
}
