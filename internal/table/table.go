// Package table implements row-level operations on top of a set of
// columns (spec §4.7): turning an Insert/Update/Delete into MCR
// construction and chaining, column value writes, default-value filling,
// TRID assignment, and the main index that maps TRID -> current MCR
// address.
package table

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/siodb/iomgr/internal/column"
	"github.com/siodb/iomgr/internal/index"
	"github.com/siodb/iomgr/internal/initflag"
	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/mcr"
	"github.com/siodb/iomgr/internal/types"
)

// ColumnSpec describes one non-master column to create alongside a table.
type ColumnSpec struct {
	ID           uint64
	Name         string
	DataType     types.DataType
	DataAreaSize uint32
	NotNull      bool
	Default      *types.Value
}

// Spec describes a table's shape at creation time.
type Spec struct {
	ID      uint64
	Name    string
	Columns []ColumnSpec
}

// indexValueSize is the main index's fixed value width: block_id(8) +
// offset(4), the encoded form of a types.ColumnDataAddress.
const indexValueSize = 12

// indexDataFileSize is the per-file rollover threshold for the table's
// main index redo log (spec §4.8).
const indexDataFileSize = 64 << 20 // 64 MiB

// Table is the runtime handle for one user or system table.
type Table struct {
	mu sync.Mutex // table-level lock, held for the duration of row operations (spec §5 lock order)

	ID   uint64
	Name string

	dir        string
	master     *column.Column
	columns    []*column.Column
	colByName  map[string]*column.Column
	idx        *index.Index
	nextAtomic uint64
}

func tableDirName(id uint64) string { return fmt.Sprintf("t%d", id) }

// Create initializes a brand-new table directory under dbDir: the master
// (TRID) column, every data column, and the main TRID index (spec §4.7,
// §4.9).
func Create(dbDir string, spec Spec, open column.FileOpener, firstUserTrid uint64) (*Table, error) {
	dir := filepath.Join(dbDir, tableDirName(spec.ID))
	if err := initflag.RequireAbsent(dir); err != nil {
		return nil, err
	}

	master, err := column.Create(dir, column.Spec{ID: 0, Name: "TRID", DataType: types.UInt64, TableID: uint32(spec.ID), IsMaster: true}, open, firstUserTrid)
	if err != nil {
		return nil, err
	}
	tbl := &Table{ID: spec.ID, Name: spec.Name, dir: dir, master: master, colByName: make(map[string]*column.Column)}
	for _, cs := range spec.Columns {
		col, err := column.Create(dir, column.Spec{
			ID: cs.ID, Name: cs.Name, DataType: cs.DataType, TableID: uint32(spec.ID),
			DataAreaSize: cs.DataAreaSize, NotNull: cs.NotNull, Default: cs.Default,
		}, open, 0)
		if err != nil {
			return nil, err
		}
		tbl.columns = append(tbl.columns, col)
		tbl.colByName[cs.Name] = col
	}
	idx, err := index.Open(filepath.Join(dir, "main_index"), 8, indexValueSize, true, indexDataFileSize)
	if err != nil {
		return nil, err
	}
	tbl.idx = idx
	if err := initflag.Mark(dir); err != nil {
		return nil, err
	}
	return tbl, nil
}

// Open reopens an existing table directory.
func Open(dbDir string, spec Spec, open column.FileOpener) (*Table, error) {
	dir := filepath.Join(dbDir, tableDirName(spec.ID))
	if err := initflag.RequirePresent(dir); err != nil {
		return nil, err
	}
	master, err := column.Open(dir, column.Spec{ID: 0, Name: "TRID", DataType: types.UInt64, TableID: uint32(spec.ID), IsMaster: true}, open)
	if err != nil {
		return nil, err
	}
	tbl := &Table{ID: spec.ID, Name: spec.Name, dir: dir, master: master, colByName: make(map[string]*column.Column)}
	for _, cs := range spec.Columns {
		col, err := column.Open(dir, column.Spec{
			ID: cs.ID, Name: cs.Name, DataType: cs.DataType, TableID: uint32(spec.ID),
			DataAreaSize: cs.DataAreaSize, NotNull: cs.NotNull, Default: cs.Default,
		}, open)
		if err != nil {
			return nil, err
		}
		tbl.columns = append(tbl.columns, col)
		tbl.colByName[cs.Name] = col
	}
	idx, err := index.Open(filepath.Join(dir, "main_index"), 8, indexValueSize, true, indexDataFileSize)
	if err != nil {
		return nil, err
	}
	tbl.idx = idx
	return tbl, nil
}

func encodeAddr(a types.ColumnDataAddress) []byte {
	buf := make([]byte, indexValueSize)
	binary.BigEndian.PutUint64(buf[0:8], a.BlockID)
	binary.BigEndian.PutUint32(buf[8:12], a.Offset)
	return buf
}

func decodeAddr(buf []byte) types.ColumnDataAddress {
	return types.ColumnDataAddress{BlockID: binary.BigEndian.Uint64(buf[0:8]), Offset: binary.BigEndian.Uint32(buf[8:12])}
}

// readMCR reads and decodes the MCR stored at addr in the master column.
// Because WriteBytes always places a whole MCR inside one block (spec
// §4.7: a master column record never spans blocks), a short varint probe
// followed by a full read is sufficient rather than a blind oversized read.
func readMCR(master *column.Column, addr types.ColumnDataAddress) (mcr.MCR, error) {
	probeLen := 10
	if avail := int(master.DataAreaSize) - int(addr.Offset); avail < probeLen {
		probeLen = avail
	}
	probe, err := master.ReadBytes(addr, probeLen)
	if err != nil {
		return mcr.MCR{}, err
	}
	size, n := binary.Uvarint(probe)
	if n <= 0 {
		return mcr.MCR{}, ioerr.Internal("MasterColumnRecordIndexCorrupted", errBadVarintProbe)
	}
	total := n + int(size)
	full := probe
	if total > len(probe) {
		full, err = master.ReadBytes(addr, total)
		if err != nil {
			return mcr.MCR{}, err
		}
	}
	m, _, err := mcr.Decode(full)
	return m, err
}

// SetLastUserTrid implements the recovered ALTER TABLE ... SET NEXT_TRID
// admin operation for the user TRID counter (SPEC_FULL.md §C.1),
// delegating to the master column's TRID counter file.
func (t *Table) SetLastUserTrid(v uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.master.SetLastUserTrid(v)
}

// SetLastSystemTrid is SetLastUserTrid's system-range counterpart.
func (t *Table) SetLastSystemTrid(v uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.master.SetLastSystemTrid(v)
}

func (t *Table) columnByName(name string) (*column.Column, error) {
	c, ok := t.colByName[name]
	if !ok {
		return nil, ioerr.Userf("ColumnDoesNotExist", "column %q does not exist in table %q", name, t.Name)
	}
	return c, nil
}

var errBadVarintProbe = ioerr.Userf("MasterColumnRecordIndexCorrupted", "invalid MCR size varint").Err
