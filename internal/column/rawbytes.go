package column

import "github.com/siodb/iomgr/internal/types"

// WriteBytes appends an arbitrary byte slice into the column's block
// chain, used by the master column to store serialized MCRs (spec §3.2,
// §4.7) rather than a typed scalar/LOB value.
func (c *Column) WriteBytes(buf []byte) (types.ColumnDataAddress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := c.selectBlockForWrite(uint32(len(buf)))
	if err != nil {
		return types.NullAddress, err
	}
	addr := types.ColumnDataAddress{BlockID: b.BlockID(), Offset: b.NextDataPos()}
	if _, err := b.WriteData(buf, addr.Offset); err != nil {
		return types.NullAddress, err
	}
	if err := b.IncNextDataPos(uint32(len(buf))); err != nil {
		return types.NullAddress, err
	}
	c.noteBlockUsage(b)
	return addr, nil
}

// ReadBytes reads n raw bytes at addr, the counterpart to WriteBytes.
func (c *Column) ReadBytes(addr types.ColumnDataAddress, n int) ([]byte, error) {
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
