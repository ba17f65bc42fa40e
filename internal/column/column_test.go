package column

import (
	"testing"

	"github.com/siodb/iomgr/internal/block"
	"github.com/siodb/iomgr/internal/types"
	"github.com/siodb/iomgr/internal/vfile"
)

func plainOpener(path string, create bool) (vfile.File, error) {
	return vfile.OpenPlain(path, create)
}

func TestColumnScalarWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	spec := Spec{ID: 10, Name: "age", DataType: types.Int32, TableID: 1}
	col, err := Create(dir, spec, plainOpener, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer col.Close()

	v := types.Value{Type: types.Int32, Int: -12345}
	addr, _, err := col.WriteRecord(v)
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if addr.IsNull() {
		t.Fatalf("expected non-null address")
	}
	got, err := col.ReadRecord(addr)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got.Int != -12345 {
		t.Fatalf("got %d, want -12345", got.Int)
	}
}

func TestColumnNullValueRoundTrip(t *testing.T) {
	dir := t.TempDir()
	spec := Spec{ID: 11, Name: "nickname", DataType: types.Text, TableID: 1}
	col, err := Create(dir, spec, plainOpener, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer col.Close()

	addr, _, err := col.WriteRecord(types.NullValue(types.Text))
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if !addr.IsNull() {
		t.Fatalf("expected null address for NULL value")
	}
	got, err := col.ReadRecord(addr)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if !got.IsNull {
		t.Fatalf("expected NULL value back")
	}
}

func TestColumnSmallLOBRoundTrip(t *testing.T) {
	dir := t.TempDir()
	spec := Spec{ID: 12, Name: "bio", DataType: types.Text, TableID: 1, DataAreaSize: 4096}
	col, err := Create(dir, spec, plainOpener, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer col.Close()

	want := "a short biography that fits in a single chunk"
	addr, _, err := col.WriteRecord(types.Value{Type: types.Text, Str: want})
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	got, err := col.ReadRecord(addr)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got.Str != want {
		t.Fatalf("got %q, want %q", got.Str, want)
	}
}

func TestColumnLargeLOBSpansMultipleChunks(t *testing.T) {
	dir := t.TempDir()
	// A tiny data area forces many chunks for a payload well under
	// SmallLobLimit but over one block's usable capacity.
	spec := Spec{ID: 13, Name: "blob", DataType: types.Binary, TableID: 1, DataAreaSize: 128}
	col, err := Create(dir, spec, plainOpener, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer col.Close()

	want := make([]byte, 1000)
	for i := range want {
		want[i] = byte(i)
	}
	addr, _, err := col.WriteRecord(types.Value{Type: types.Binary, Bin: want})
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	got, err := col.ReadRecord(addr)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if len(got.Bin) != len(want) {
		t.Fatalf("got %d bytes, want %d", len(got.Bin), len(want))
	}
	for i := range want {
		if got.Bin[i] != want[i] {
			t.Fatalf("byte %d mismatch: got %x want %x", i, got.Bin[i], want[i])
		}
	}
}

// TestColumnRollbackFreesLOBContinuationBlocks checks that rolling back a
// multi-block LOB write marks every continuation block Deleted, not just
// the block the value started in (spec §4.7.3).
func TestColumnRollbackFreesLOBContinuationBlocks(t *testing.T) {
	dir := t.TempDir()
	spec := Spec{ID: 14, Name: "blob", DataType: types.Binary, TableID: 1, DataAreaSize: 128}
	col, err := Create(dir, spec, plainOpener, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer col.Close()

	want := make([]byte, 1000)
	addr, frontier, err := col.WriteRecord(types.Value{Type: types.Binary, Bin: want})
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if frontier == addr.BlockID {
		t.Fatalf("expected the write to span more than one block, got frontier %d == start block %d", frontier, addr.BlockID)
	}
	lastBlockBeforeRollback := col.lastBlockID
	if lastBlockBeforeRollback <= addr.BlockID {
		t.Fatalf("expected continuation blocks past %d, last block is %d", addr.BlockID, lastBlockBeforeRollback)
	}

	col.RollbackToAddress(addr, frontier)

	for id := addr.BlockID + 1; id <= lastBlockBeforeRollback; id++ {
		b, err := col.loadBlock(id)
		if err != nil {
			t.Fatalf("loadBlock(%d): %v", id, err)
		}
		if b.State() != block.Deleted {
			t.Fatalf("block %d: got state %v, want Deleted after rollback", id, b.State())
		}
	}
}

func TestMasterColumnTridGeneration(t *testing.T) {
	dir := t.TempDir()
	spec := Spec{ID: 0, Name: "trid", DataType: types.UInt64, TableID: 1, IsMaster: true}
	col, err := Create(dir, spec, plainOpener, types.FirstUserID(types.KindTable))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer col.Close()

	if !col.IsMaster() {
		t.Fatalf("expected master column")
	}
	if err := col.SetLastSystemTrid(100); err != nil {
		t.Fatalf("SetLastSystemTrid: %v", err)
	}

	first, err := col.GenerateNextUserTrid()
	if err != nil {
		t.Fatalf("GenerateNextUserTrid: %v", err)
	}
	second, err := col.GenerateNextUserTrid()
	if err != nil {
		t.Fatalf("GenerateNextUserTrid: %v", err)
	}
	if second != first+1 {
		t.Fatalf("expected monotonically increasing user TRIDs, got %d then %d", first, second)
	}

	sysFirst, err := col.GenerateNextSystemTrid()
	if err != nil {
		t.Fatalf("GenerateNextSystemTrid: %v", err)
	}
	sysSecond, err := col.GenerateNextSystemTrid()
	if err != nil {
		t.Fatalf("GenerateNextSystemTrid: %v", err)
	}
	if sysSecond != sysFirst-1 {
		t.Fatalf("expected monotonically decreasing system TRIDs, got %d then %d", sysFirst, sysSecond)
	}
}

func TestMasterColumnTridRangeExhausted(t *testing.T) {
	dir := t.TempDir()
	spec := Spec{ID: 0, Name: "trid", DataType: types.UInt64, TableID: 1, IsMaster: true}
	col, err := Create(dir, spec, plainOpener, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer col.Close()

	col.SetUserTridUpperBound(3)
	if _, err := col.GenerateNextUserTrid(); err != nil {
		t.Fatalf("first GenerateNextUserTrid: %v", err)
	}
	if _, err := col.GenerateNextUserTrid(); err == nil {
		t.Fatalf("expected TridRangeExhausted once the upper bound is reached")
	}
}

func TestColumnReopenPreservesBlocks(t *testing.T) {
	dir := t.TempDir()
	spec := Spec{ID: 20, Name: "count", DataType: types.UInt32, TableID: 2}
	col, err := Create(dir, spec, plainOpener, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	addr, _, err := col.WriteRecord(types.Value{Type: types.UInt32, UInt: 77})
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := col.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := col.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir, spec, plainOpener)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.ReadRecord(addr)
	if err != nil {
		t.Fatalf("ReadRecord after reopen: %v", err)
	}
	if got.UInt != 77 {
		t.Fatalf("got %d, want 77", got.UInt)
	}
}

func TestColumnDirName(t *testing.T) {
	if got := columnDirName(true, 3); got != "mc3" {
		t.Fatalf("got %q, want mc3", got)
	}
	if got := columnDirName(false, 3); got != "c3" {
		t.Fatalf("got %q, want c3", got)
	}
}
