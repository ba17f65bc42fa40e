// Package instance implements the top two layers of spec §5's lock
// order: Instance (the whole data directory, one per running iomgrd) and
// Database (one encrypted namespace of tables within it). It owns the
// file factory that binds a database's cipher and key to every vfile.Open
// call beneath it (spec §3.2 "Database ... cipher_id, cipher_key").
package instance

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/siodb/iomgr/internal/cache"
	"github.com/siodb/iomgr/internal/column"
	"github.com/siodb/iomgr/internal/initflag"
	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/table"
	"github.com/siodb/iomgr/internal/types"
	"github.com/siodb/iomgr/internal/vfile"
)

// DatabaseSpec describes a database at creation time (spec §3.2).
type DatabaseSpec struct {
	ID          uint32
	Name        string
	CipherID    string
	CipherKey   []byte
	Description string
}

// Database is the runtime handle for one database directory.
type Database struct {
	mu sync.Mutex // per-database (non-recursive) lock guarding caches/registries (spec §5)

	ID          uint32
	UUID        uuid.UUID
	Name        string
	Description string

	dir       string
	cipherID  string
	cipherKey []byte

	tableIDs   types.IDGenerator
	tables     *cache.LRU[uint64, *table.Table]
	tableSpecs map[uint64]table.Spec
}

func databaseDirName(id uint32) string { return fmt.Sprintf("db%d", id) }

// firstNonCatalogSystemTableID is the first system table id not reserved
// by the catalog package's eleven fixed SYS_* tables (ids 1-11), so the
// table id generator's system counter never collides with them.
const firstNonCatalogSystemTableID = 12

// opener returns a column.FileOpener bound to this database's cipher and
// key, so every column/block/MCR file beneath it is transparently
// encrypted with the database's own key (spec §4.1, §4.2).
func (d *Database) opener(path string, create bool) (vfile.File, error) {
	return vfile.Open(path, create, d.cipherID, d.cipherKey)
}

// CreateDatabase initializes a brand-new database directory under
// instanceDir (spec §3.2, §4.9 bootstrap step 1).
func CreateDatabase(instanceDir string, spec DatabaseSpec, tableCacheCapacity int) (*Database, error) {
	dir := filepath.Join(instanceDir, databaseDirName(spec.ID))
	if err := initflag.RequireAbsent(dir); err != nil {
		return nil, err
	}
	d := &Database{
		ID: spec.ID, UUID: uuid.New(), Name: spec.Name, Description: spec.Description,
		dir: dir, cipherID: spec.CipherID, cipherKey: spec.CipherKey,
		tableIDs:   *types.NewIDGenerator(types.KindTable, firstNonCatalogSystemTableID, types.FirstUserID(types.KindTable)),
		tables:     cache.New[uint64, *table.Table](tableCacheCapacity),
		tableSpecs: make(map[uint64]table.Spec),
	}
	if err := initflag.Mark(dir); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenDatabase reopens an existing database directory.
func OpenDatabase(instanceDir string, spec DatabaseSpec, tableCacheCapacity int) (*Database, error) {
	dir := filepath.Join(instanceDir, databaseDirName(spec.ID))
	if err := initflag.RequirePresent(dir); err != nil {
		return nil, err
	}
	d := &Database{
		ID: spec.ID, Name: spec.Name, Description: spec.Description,
		dir: dir, cipherID: spec.CipherID, cipherKey: spec.CipherKey,
		tableIDs:   *types.NewIDGenerator(types.KindTable, firstNonCatalogSystemTableID, types.FirstUserID(types.KindTable)),
		tables:     cache.New[uint64, *table.Table](tableCacheCapacity),
		tableSpecs: make(map[uint64]table.Spec),
	}
	return d, nil
}

// CreateTable creates a new table within the database, assigning it a
// fresh id from the appropriate range (spec §3.1, §4.7).
func (d *Database) CreateTable(name string, columns []table.ColumnSpec, system bool) (*table.Table, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.tableIDs.Next(system)
	spec := table.Spec{ID: id, Name: name, Columns: columns}
	tbl, err := table.Create(d.dir, spec, d.opener, types.FirstUserID(types.KindTable))
	if err != nil {
		return nil, err
	}
	d.tableSpecs[id] = spec
	if err := d.tables.Put(id, tbl, system); err != nil {
		return nil, err
	}
	return tbl, nil
}

// CreateSystemTable creates a table at a caller-specified id (the fixed
// ids the catalog package assigns its eleven system tables, spec §4.9)
// rather than allocating one from the table id generator, and pins it in
// the table cache so it is never evicted (spec §4.9 TableCache: "forbidden
// ... if the table is a system table").
func (d *Database) CreateSystemTable(spec table.Spec) (*table.Table, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tbl, err := table.Create(d.dir, spec, d.opener, types.FirstUserID(types.KindTable))
	if err != nil {
		return nil, err
	}
	d.tableSpecs[spec.ID] = spec
	if err := d.tables.Put(spec.ID, tbl, true); err != nil {
		return nil, err
	}
	return tbl, nil
}

// Table returns the table with the given id, opening it from disk if it
// is not already cached (spec §4.9 TableCache).
func (d *Database) Table(id uint64) (*table.Table, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if tbl, ok := d.tables.Get(id); ok {
		return tbl, nil
	}
	spec, ok := d.tableSpecs[id]
	if !ok {
		return nil, ioerr.Userf("TableDoesNotExist", "table id %d is not registered", id)
	}
	tbl, err := table.Open(d.dir, spec, d.opener)
	if err != nil {
		return nil, err
	}
	if err := d.tables.Put(id, tbl, types.IsSystemID(types.KindTable, id)); err != nil {
		return nil, err
	}
	return tbl, nil
}

// RegisterTableSpec records spec's shape so a later Table(id) call after
// a cache eviction can reopen it (used by catalog bootstrap/read-back,
// spec §4.9).
func (d *Database) RegisterTableSpec(spec table.Spec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tableSpecs[spec.ID] = spec
}

// FileOpener exposes the database's bound file factory to the catalog
// package, which creates system tables directly rather than through
// CreateTable's id-generation path.
func (d *Database) FileOpener() column.FileOpener { return d.opener }

// Dir returns the database's on-disk directory.
func (d *Database) Dir() string { return d.dir }
