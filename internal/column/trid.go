package column

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/types"
)

// tridCountersMarker is the well-known sentinel stored first in the
// mapped TridCounters file (spec §3.2, §3.3 invariant 9).
const tridCountersMarker = 0x1234567890ABCDEF

// tridCountersSize is marker(8) + last_user_trid(8) + last_system_trid(8).
const tridCountersSize = 24

// masterExtra holds the additional state only the master (TRID) column
// carries: the memory-mapped counter file and the first-user-trid upper
// bound used to detect exhaustion (spec §4.6.3).
type masterExtra struct {
	mu             sync.Mutex
	file           *os.File
	mapping        mmap.MMap
	firstUserTrid  uint64 // upper bound the user range must stay below when it's the *next* table's system boundary; here used as the lower starting point
	userUpperBound uint64
}

func tridFilePath(columnDir string) string { return filepath.Join(columnDir, "trid") }

func createMasterExtra(columnDir string, open FileOpener, firstUserTrid uint64) (*masterExtra, error) {
	_ = open // the counter file is always a plain OS file: mmap requires a real fd, not our File abstraction.
	path := tridFilePath(columnDir)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, ioerr.IO("FileOpenFailed", err)
	}
	if err := f.Truncate(tridCountersSize); err != nil {
		f.Close()
		return nil, ioerr.IO("TruncateFailed", err)
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, ioerr.IO("MmapFailed", err)
	}
	me := &masterExtra{file: f, mapping: m, firstUserTrid: firstUserTrid, userUpperBound: ^uint64(0)}
	binary.LittleEndian.PutUint64(m[0:8], tridCountersMarker)
	binary.LittleEndian.PutUint64(m[8:16], firstUserTrid)
	binary.LittleEndian.PutUint64(m[16:24], types.FirstUserID(types.KindTable)-1) // placeholder system start; callers override via SetLastSystemTrid during bootstrap
	return me, nil
}

func openMasterExtra(columnDir string, open FileOpener) (*masterExtra, error) {
	_ = open
	path := tridFilePath(columnDir)
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, ioerr.IO("FileOpenFailed", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioerr.IO("FileStatFailed", err)
	}
	if info.Size() != tridCountersSize {
		f.Close()
		return nil, ioerr.Internal("InvalidData", errBadCounterFileSize)
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, ioerr.IO("MmapFailed", err)
	}
	me := &masterExtra{file: f, mapping: m, userUpperBound: ^uint64(0)}
	if err := me.verifyMarker(); err != nil {
		f.Close()
		return nil, err
	}
	return me, nil
}

// verifyMarker checks the marker and byte-swaps the mapping in place if
// it was written on a machine of the opposite endianness (spec §3.3
// invariant 9, §8.2 "byte-order flip is an involution").
func (m *masterExtra) verifyMarker() error {
	marker := binary.LittleEndian.Uint64(m.mapping[0:8])
	if marker == tridCountersMarker {
		return nil
	}
	if swapUint64(marker) == tridCountersMarker {
		swapCounters(m.mapping)
		return nil
	}
	return ioerr.Internal("InvalidData", errBadMarker)
}

func swapUint64(v uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return binary.BigEndian.Uint64(b[:])
}

func swapCounters(m mmap.MMap) {
	for off := 0; off < tridCountersSize; off += 8 {
		v := binary.LittleEndian.Uint64(m[off : off+8])
		binary.LittleEndian.PutUint64(m[off:off+8], swapUint64(v))
	}
}

func (m *masterExtra) lastUserTrid() uint64   { return binary.LittleEndian.Uint64(m.mapping[8:16]) }
func (m *masterExtra) lastSystemTrid() uint64 { return binary.LittleEndian.Uint64(m.mapping[16:24]) }

func (m *masterExtra) setLastUserTrid(v uint64) {
	binary.LittleEndian.PutUint64(m.mapping[8:16], v)
}
func (m *masterExtra) setLastSystemTrid(v uint64) {
	binary.LittleEndian.PutUint64(m.mapping[16:24], v)
}

// GenerateNextUserTrid atomically increments last_user_trid, failing with
// TridRangeExhausted if the result would reach userUpperBound (spec
// §4.6.3, §8.3).
func (c *Column) GenerateNextUserTrid() (uint64, error) {
	if c.master == nil {
		return 0, ioerr.Internal("NotMasterColumn", errNotMaster)
	}
	m := c.master
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.lastUserTrid() + 1
	if next >= m.userUpperBound {
		return 0, ioerr.Userf("TridRangeExhausted", "user TRID range exhausted")
	}
	m.setLastUserTrid(next)
	return next, nil
}

// GenerateNextSystemTrid atomically decrements last_system_trid (the
// system range is allocated top-down so it never collides with the
// bottom-up user range, spec §3.3 invariant 6).
func (c *Column) GenerateNextSystemTrid() (uint64, error) {
	if c.master == nil {
		return 0, ioerr.Internal("NotMasterColumn", errNotMaster)
	}
	m := c.master
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.lastSystemTrid()
	if cur <= 1 {
		return 0, ioerr.Userf("TridRangeExhausted", "system TRID range exhausted")
	}
	next := cur - 1
	m.setLastSystemTrid(next)
	return next, nil
}

// SetLastUserTrid is the idempotent setter used during bootstrap / ALTER
// TABLE SET NEXT_TRID; it refuses decreases (spec §4.6.3, §8.2, §9 open
// question iii).
func (c *Column) SetLastUserTrid(v uint64) error {
	if c.master == nil {
		return ioerr.Internal("NotMasterColumn", errNotMaster)
	}
	m := c.master
	m.mu.Lock()
	defer m.mu.Unlock()
	if v < m.lastUserTrid() {
		return ioerr.Userf("InvalidArgument", "next user TRID %d would decrease the counter below %d", v, m.lastUserTrid())
	}
	m.setLastUserTrid(v)
	return nil
}

// SetLastSystemTrid is the system-range counterpart of SetLastUserTrid.
// System TRIDs are generated downward, so it refuses the opposite
// direction: a value above the current counter, which would hand out
// again ids already generated, is rejected; a lower value is accepted.
func (c *Column) SetLastSystemTrid(v uint64) error {
	if c.master == nil {
		return ioerr.Internal("NotMasterColumn", errNotMaster)
	}
	m := c.master
	m.mu.Lock()
	defer m.mu.Unlock()
	if v > m.lastSystemTrid() {
		return ioerr.Userf("InvalidArgument", "next system TRID %d would increase the counter above %d", v, m.lastSystemTrid())
	}
	m.setLastSystemTrid(v)
	return nil
}

// SetUserTridUpperBound configures the exclusive upper bound user TRID
// generation refuses to reach (used in tests to exercise exhaustion near
// 2^64, spec §8.4 scenario S5).
func (c *Column) SetUserTridUpperBound(v uint64) {
	if c.master != nil {
		c.master.userUpperBound = v
	}
}

func (m *masterExtra) flush() error {
	if err := m.mapping.Flush(); err != nil {
		return ioerr.IO("MsyncFailed", err)
	}
	return nil
}

func (m *masterExtra) close() error {
	if err := m.mapping.Unmap(); err != nil {
		return ioerr.IO("MunmapFailed", err)
	}
	return m.file.Close()
}

var (
	errNotMaster          = ioerr.Userf("NotMasterColumn", "operation requires the master column").Err
	errBadMarker          = ioerr.Userf("InvalidData", "TRID counter file marker mismatch").Err
	errBadCounterFileSize = ioerr.Userf("InvalidData", "TRID counter file has unexpected size").Err
)
