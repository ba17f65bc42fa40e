package table

import (
	"time"

	"github.com/siodb/iomgr/internal/column"
	"github.com/siodb/iomgr/internal/index"
	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/mcr"
	"github.com/siodb/iomgr/internal/types"
)

// Row is a caller-supplied set of column values keyed by column name.
type Row map[string]types.Value

// nowTS is the engine's single clock read for timestamping MCRs and
// ColumnRecords (spec §4.7): one read per operation so CreateTS/UpdateTS
// within one MCR agree exactly.
func nowTS() int64 { return time.Now().UnixNano() }

// Insert assigns a fresh TRID, writes every column value (an omitted
// column takes its default, or NULL if it has none and is nullable; an
// omitted NOT NULL column without a default is an error), and records an
// Insert MCR in the main index (spec §4.7).
func (t *Table) Insert(row Row, userID uint32) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	trid, err := t.master.GenerateNextUserTrid()
	if err != nil {
		return 0, err
	}

	ts := nowTS()
	records := make([]mcr.ColumnRecord, len(t.columns))
	var written []*writtenColumn
	for i, col := range t.columns {
		v, ok := row[col.Name]
		if !ok {
			if col.Default != nil {
				v = *col.Default
			} else if col.NotNull {
				t.rollbackWritten(written)
				return 0, ioerr.Userf("NotNullConstraintViolation", "column %q requires a value", col.Name)
			} else {
				v = types.NullValue(col.DataType)
			}
		}
		coerced, err := types.Coerce(v, col.DataType)
		if err != nil {
			t.rollbackWritten(written)
			return 0, err
		}
		addr, frontier, err := col.WriteRecord(coerced)
		if err != nil {
			t.rollbackWritten(written)
			return 0, err
		}
		written = append(written, &writtenColumn{col: col, addr: addr, frontier: frontier})
		records[i] = mcr.ColumnRecord{Addr: addr, CreateTS: ts, UpdateTS: ts}
	}

	m := mcr.MCR{
		TRID: trid, CreateTS: ts, UpdateTS: ts, Version: 1,
		AtomicOpID: t.nextAtomicOpID(), Op: mcr.Insert, UserID: userID,
		PrevMCRAddress: types.NullAddress, ColumnRecords: records,
	}
	encoded, err := mcr.Encode(m)
	if err != nil {
		t.rollbackWritten(written)
		return 0, err
	}
	mcrAddr, err := t.master.WriteBytes(encoded)
	if err != nil {
		t.rollbackWritten(written)
		return 0, err
	}
	if _, err := t.idx.Insert(index.EncodeUint64BE(trid), encodeAddr(mcrAddr)); err != nil {
		t.rollbackWritten(written)
		return 0, err
	}
	return trid, nil
}

// Update applies changes to the row identified by trid, chaining a new
// MCR version onto the previous one (spec §4.7). Columns not present in
// changes keep their previous address unchanged.
func (t *Table) Update(trid uint64, changes Row, userID uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prevAddr, err := t.lookupMCRAddress(trid)
	if err != nil {
		return err
	}
	prev, err := readMCR(t.master, prevAddr)
	if err != nil {
		return err
	}
	if prev.Op == mcr.Delete {
		return ioerr.Userf("RowNotFound", "row with TRID %d has been deleted", trid)
	}

	ts := nowTS()
	records := make([]mcr.ColumnRecord, len(t.columns))
	var written []*writtenColumn
	for i, col := range t.columns {
		if v, ok := changes[col.Name]; ok {
			coerced, err := types.Coerce(v, col.DataType)
			if err != nil {
				t.rollbackWritten(written)
				return err
			}
			addr, frontier, err := col.WriteRecord(coerced)
			if err != nil {
				t.rollbackWritten(written)
				return err
			}
			written = append(written, &writtenColumn{col: col, addr: addr, frontier: frontier})
			records[i] = mcr.ColumnRecord{Addr: addr, CreateTS: prev.ColumnRecords[i].CreateTS, UpdateTS: ts}
		} else {
			records[i] = prev.ColumnRecords[i]
		}
	}

	m := mcr.MCR{
		TRID: trid, CreateTS: prev.CreateTS, UpdateTS: ts, Version: prev.Version + 1,
		AtomicOpID: t.nextAtomicOpID(), Op: mcr.Update, UserID: userID,
		PrevMCRAddress: prevAddr, ColumnRecords: records,
	}
	encoded, err := mcr.Encode(m)
	if err != nil {
		t.rollbackWritten(written)
		return err
	}
	mcrAddr, err := t.master.WriteBytes(encoded)
	if err != nil {
		t.rollbackWritten(written)
		return err
	}
	if _, err := t.idx.Update(index.EncodeUint64BE(trid), encodeAddr(mcrAddr)); err != nil {
		t.rollbackWritten(written)
		return err
	}
	return nil
}

// Delete records a tombstone MCR for trid and removes it from the main
// index so subsequent lookups report RowNotFound (spec §4.7).
func (t *Table) Delete(trid uint64, userID uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prevAddr, err := t.lookupMCRAddress(trid)
	if err != nil {
		return err
	}
	prev, err := readMCR(t.master, prevAddr)
	if err != nil {
		return err
	}
	if prev.Op == mcr.Delete {
		return ioerr.Userf("RowNotFound", "row with TRID %d has already been deleted", trid)
	}

	ts := nowTS()
	m := mcr.MCR{
		TRID: trid, CreateTS: prev.CreateTS, UpdateTS: ts, Version: prev.Version + 1,
		AtomicOpID: t.nextAtomicOpID(), Op: mcr.Delete, UserID: userID,
		PrevMCRAddress: prevAddr, ColumnRecords: prev.ColumnRecords,
	}
	encoded, err := mcr.Encode(m)
	if err != nil {
		return err
	}
	if _, err := t.master.WriteBytes(encoded); err != nil {
		return err
	}
	_, err = t.idx.Erase(index.EncodeUint64BE(trid))
	return err
}

// Select reads the current row for trid, returning RowNotFound if it was
// never inserted or has been deleted.
func (t *Table) Select(trid uint64) (Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	addr, err := t.lookupMCRAddress(trid)
	if err != nil {
		return nil, err
	}
	m, err := readMCR(t.master, addr)
	if err != nil {
		return nil, err
	}
	row := make(Row, len(t.columns))
	for i, col := range t.columns {
		v, err := col.ReadRecord(m.ColumnRecords[i].Addr)
		if err != nil {
			return nil, err
		}
		row[col.Name] = v
	}
	return row, nil
}

func (t *Table) lookupMCRAddress(trid uint64) (types.ColumnDataAddress, error) {
	out := make([][]byte, 1)
	n, err := t.idx.Find(index.EncodeUint64BE(trid), out, 1)
	if err != nil {
		return types.NullAddress, err
	}
	if n == 0 {
		return types.NullAddress, ioerr.Userf("RowNotFound", "row with TRID %d does not exist", trid)
	}
	return decodeAddr(out[0]), nil
}

func (t *Table) nextAtomicOpID() uint64 {
	t.nextAtomic++
	return t.nextAtomic
}

type writtenColumn struct {
	col      *column.Column
	addr     types.ColumnDataAddress
	frontier uint64
}

func (t *Table) rollbackWritten(written []*writtenColumn) {
	for _, w := range written {
		w.col.RollbackToAddress(w.addr, w.frontier)
	}
}
