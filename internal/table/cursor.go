package table

import (
	"github.com/siodb/iomgr/internal/index"
	"github.com/siodb/iomgr/internal/types"
)

// Cursor walks a table's rows in TRID order by repeatedly calling
// find_next_key against the main index (spec §4.10 SELECT: "Initialize a
// cursor by reading min_key/max_key from the main index; position at the
// smallest key. On each advance, call find_next_key").
type Cursor struct {
	t       *Table
	started bool
	done    bool
	trid    uint64
}

// NewCursor returns a cursor positioned before the table's smallest TRID.
func (t *Table) NewCursor() *Cursor { return &Cursor{t: t} }

// Advance moves the cursor to the next TRID in order, returning false once
// the index is exhausted.
func (c *Cursor) Advance() bool {
	if c.done {
		return false
	}
	c.t.mu.Lock()
	defer c.t.mu.Unlock()

	if !c.started {
		c.started = true
		key, ok := c.t.idx.MinKey()
		if !ok {
			c.done = true
			return false
		}
		c.trid = index.DecodeUint64BE(key)
		return true
	}
	next, ok := c.t.idx.FindNextKey(index.EncodeUint64BE(c.trid))
	if !ok {
		c.done = true
		return false
	}
	c.trid = index.DecodeUint64BE(next)
	return true
}

// TRID returns the row TRID the cursor currently sits at.
func (c *Cursor) TRID() uint64 { return c.trid }

// Row reads the cursor's current row.
func (c *Cursor) Row() (Row, error) { return c.t.Select(c.trid) }

// Columns returns the table's column names in declaration order, for
// building a SELECT response's column descriptions.
func (t *Table) Columns() []ColumnDescriptor {
	out := make([]ColumnDescriptor, len(t.columns))
	for i, col := range t.columns {
		out[i] = ColumnDescriptor{Name: col.Name, DataType: col.DataType, Nullable: !col.NotNull}
	}
	return out
}

// ColumnDescriptor exposes a column's name/type/nullability without
// leaking the column package's internal handle.
type ColumnDescriptor struct {
	Name     string
	DataType types.DataType
	Nullable bool
}
