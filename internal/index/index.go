// Package index implements the ordered key -> value map of spec §4.8: a
// per-index directory of fixed-size data files holding an unsigned
// big-endian lexicographically ordered map, used by every table's main
// index (TRID -> MCR address) and any secondary indices.
//
// Open question (i) in spec §9 leaves exact on-disk page layout and split
// policy unspecified ("implementations must pick one and document it").
// This implementation keeps the authoritative ordered structure in memory
// (github.com/google/btree, a real dependency of the pack's other
// storage-engine-shaped repo, erigon) and treats each data file as an
// append-only redo log of operations; Open replays the files in id order
// to rebuild the in-memory tree, and a new file is started once the
// current one reaches data_file_size. See DESIGN.md.
package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/siodb/iomgr/internal/ioerr"
)

type opcode uint8

const (
	opInsert opcode = iota + 1
	opUpdate
	opErase
)

type entry struct {
	key    []byte
	values [][]byte // len 1 for unique indices; insertion order for non-unique
}

func lessEntry(a, b entry) bool { return bytes.Compare(a.key, b.key) < 0 }

// Index is one ordered key->value map persisted under dir.
type Index struct {
	mu           sync.RWMutex
	dir          string
	keySize      int
	valueSize    int
	unique       bool
	dataFileSize int64

	tree       *btree.BTreeG[entry]
	curFile    *os.File
	curFileID  uint64
	curFileLen int64
}

// Open opens (creating if absent) the index directory at dir, replaying
// every i<file-id>.dat file in ascending id order to rebuild the
// in-memory ordered map.
func Open(dir string, keySize, valueSize int, unique bool, dataFileSize int64) (*Index, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, ioerr.IO("MkdirFailed", err)
	}
	idx := &Index{
		dir: dir, keySize: keySize, valueSize: valueSize, unique: unique,
		dataFileSize: dataFileSize,
		tree:         btree.NewG(32, lessEntry),
	}
	ids, err := listDataFileIDs(dir)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := idx.replay(id); err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		if err := idx.openFileForAppend(1, true); err != nil {
			return nil, err
		}
	} else {
		last := ids[len(ids)-1]
		if err := idx.openFileForAppend(last, false); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func listDataFileIDs(dir string) ([]uint64, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, ioerr.IO("ReadDirFailed", err)
	}
	var ids []uint64
	for _, e := range ents {
		var id uint64
		if _, err := fmt.Sscanf(e.Name(), "i%d.dat", &id); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (idx *Index) dataFilePath(id uint64) string {
	return filepath.Join(idx.dir, fmt.Sprintf("i%d.dat", id))
}

func (idx *Index) recordSize() int64 {
	return 1 + int64(idx.keySize) + int64(idx.valueSize)
}

func (idx *Index) replay(id uint64) error {
	f, err := os.Open(idx.dataFilePath(id))
	if err != nil {
		return ioerr.IO("FileOpenFailed", err)
	}
	defer f.Close()
	rs := idx.recordSize()
	buf := make([]byte, rs)
	for {
		n, err := f.Read(buf)
		if n < int(rs) {
			break
		}
		if err != nil {
			break
		}
		op := opcode(buf[0])
		key := append([]byte(nil), buf[1:1+idx.keySize]...)
		val := append([]byte(nil), buf[1+idx.keySize:]...)
		switch op {
		case opInsert:
			idx.applyInsert(key, val)
		case opUpdate:
			idx.applyUpdate(key, val)
		case opErase:
			idx.applyErase(key)
		}
	}
	return nil
}

func (idx *Index) openFileForAppend(id uint64, fresh bool) error {
	flags := os.O_RDWR | os.O_CREATE
	f, err := os.OpenFile(idx.dataFilePath(id), flags, 0o600)
	if err != nil {
		return ioerr.IO("FileOpenFailed", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return ioerr.IO("FileStatFailed", err)
	}
	idx.curFile = f
	idx.curFileID = id
	idx.curFileLen = info.Size()
	_ = fresh
	return nil
}

func (idx *Index) appendRecord(op opcode, key, val []byte) error {
	rs := idx.recordSize()
	if idx.curFileLen+rs > idx.dataFileSize && idx.dataFileSize > 0 {
		idx.curFile.Close()
		if err := idx.openFileForAppend(idx.curFileID+1, true); err != nil {
			return err
		}
	}
	buf := make([]byte, rs)
	buf[0] = byte(op)
	copy(buf[1:1+idx.keySize], key)
	copy(buf[1+idx.keySize:], val)
	n, err := idx.curFile.WriteAt(buf, idx.curFileLen)
	if err != nil {
		return ioerr.IO("ShortWrite", err)
	}
	idx.curFileLen += int64(n)
	return nil
}

func padKey(key []byte, size int) []byte {
	if len(key) >= size {
		return key[:size]
	}
	out := make([]byte, size)
	copy(out, key)
	return out
}

func padVal(val []byte, size int) []byte { return padKey(val, size) }

// EncodeUint64BE encodes an unsigned key in the big-endian order the main
// index uses (spec §4.8: "unsigned big-endian lexicographic, matching
// plain-binary-encoded integer order").
func EncodeUint64BE(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func DecodeUint64BE(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
