package index

import (
	"github.com/siodb/iomgr/internal/ioerr"
)

func (idx *Index) applyInsert(key, val []byte) {
	e, ok := idx.tree.Get(entry{key: key})
	if !ok {
		idx.tree.ReplaceOrInsert(entry{key: key, values: [][]byte{val}})
		return
	}
	if idx.unique {
		e.values = [][]byte{val}
	} else {
		e.values = append(e.values, val)
	}
	idx.tree.ReplaceOrInsert(e)
}

func (idx *Index) applyUpdate(key, val []byte) {
	e, ok := idx.tree.Get(entry{key: key})
	if !ok {
		idx.applyInsert(key, val)
		return
	}
	e.values = [][]byte{val}
	idx.tree.ReplaceOrInsert(e)
}

func (idx *Index) applyErase(key []byte) {
	idx.tree.Delete(entry{key: key})
}

// Preallocate ensures a key-slot exists (inserting a zero-valued slot if
// absent) and reports whether it was newly created (spec §4.8).
func (idx *Index) Preallocate(key []byte) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key = padKey(key, idx.keySize)
	if _, ok := idx.tree.Get(entry{key: key}); ok {
		return false, nil
	}
	zero := make([]byte, idx.valueSize)
	if err := idx.appendRecord(opInsert, key, zero); err != nil {
		return false, err
	}
	idx.applyInsert(key, zero)
	return true, nil
}

// Insert adds key->value, returning false without modification if key is
// already present in a unique index (spec §4.8).
func (idx *Index) Insert(key, value []byte) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key = padKey(key, idx.keySize)
	value = padVal(value, idx.valueSize)
	if idx.unique {
		if _, ok := idx.tree.Get(entry{key: key}); ok {
			return false, nil
		}
	}
	if err := idx.appendRecord(opInsert, key, value); err != nil {
		return false, err
	}
	idx.applyInsert(key, value)
	return true, nil
}

// Update replaces the value(s) for key, returning the number of entries
// affected (spec §4.8).
func (idx *Index) Update(key, value []byte) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key = padKey(key, idx.keySize)
	value = padVal(value, idx.valueSize)
	if _, ok := idx.tree.Get(entry{key: key}); !ok {
		return 0, nil
	}
	if err := idx.appendRecord(opUpdate, key, value); err != nil {
		return 0, err
	}
	idx.applyUpdate(key, value)
	return 1, nil
}

// Erase removes key, returning the number of entries removed (spec §4.8).
func (idx *Index) Erase(key []byte) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key = padKey(key, idx.keySize)
	e, ok := idx.tree.Get(entry{key: key})
	if !ok {
		return 0, nil
	}
	if err := idx.appendRecord(opErase, key, make([]byte, idx.valueSize)); err != nil {
		return 0, err
	}
	idx.applyErase(key)
	return len(e.values), nil
}

// Find copies up to max matching values for key into out, returning the
// count found (spec §4.8; max is 1 for unique indices by construction of
// the caller).
func (idx *Index) Find(key []byte, out [][]byte, max int) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	key = padKey(key, idx.keySize)
	e, ok := idx.tree.Get(entry{key: key})
	if !ok {
		return 0, nil
	}
	n := len(e.values)
	if n > max {
		n = max
	}
	for i := 0; i < n && i < len(out); i++ {
		out[i] = e.values[i]
	}
	return n, nil
}

// Count returns the number of values stored for key (spec §4.8).
func (idx *Index) Count(key []byte) (uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	key = padKey(key, idx.keySize)
	e, ok := idx.tree.Get(entry{key: key})
	if !ok {
		return 0, nil
	}
	return uint64(len(e.values)), nil
}

// MinKey/MaxKey may use the in-memory cache (spec §4.8); here the cache
// *is* the authoritative structure, so these always reflect disk state.
func (idx *Index) MinKey() ([]byte, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var found []byte
	idx.tree.Ascend(func(e entry) bool {
		found = e.key
		return false
	})
	return found, found != nil
}

func (idx *Index) MaxKey() ([]byte, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var found []byte
	idx.tree.Descend(func(e entry) bool {
		found = e.key
		return false
	})
	return found, found != nil
}

// FirstKey/LastKey force a disk-backed view in the general design; this
// implementation's in-memory tree is always fully replayed from disk, so
// they are equivalent to MinKey/MaxKey here (spec §4.8 allows this: "the
// last two force disk").
func (idx *Index) FirstKey() ([]byte, bool) { return idx.MinKey() }
func (idx *Index) LastKey() ([]byte, bool)  { return idx.MaxKey() }

// FindNextKey returns the smallest key strictly greater than key (spec
// §4.8, §8.1 invariant 5).
func (idx *Index) FindNextKey(key []byte) ([]byte, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	key = padKey(key, idx.keySize)
	var found []byte
	idx.tree.AscendGreaterOrEqual(entry{key: key}, func(e entry) bool {
		if !bytesEqual(e.key, key) {
			found = e.key
			return false
		}
		return true
	})
	return found, found != nil
}

// FindPreviousKey returns the largest key strictly less than key.
func (idx *Index) FindPreviousKey(key []byte) ([]byte, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	key = padKey(key, idx.keySize)
	var found []byte
	idx.tree.DescendLessOrEqual(entry{key: key}, func(e entry) bool {
		if !bytesEqual(e.key, key) {
			found = e.key
			return false
		}
		return true
	})
	return found, found != nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Flush durably persists the current data file (spec §4.8).
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.curFile.Sync(); err != nil {
		return ioerr.IO("FsyncFailed", err)
	}
	return nil
}

func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.curFile.Close()
}
