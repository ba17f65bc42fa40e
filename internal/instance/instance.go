package instance

import (
	"os"
	"sync"

	"github.com/siodb/iomgr/internal/cache"
	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/lockfile"
	"github.com/siodb/iomgr/internal/types"
)

// Instance is the top-level lock-order entity (spec §5): the whole data
// directory a single iomgrd process owns, holding the cross-process lock
// and the registry of open databases.
type Instance struct {
	mu sync.Mutex

	dir  string
	lock *lockfile.Lock

	databaseIDs types.IDGenerator
	databases   *cache.LRU[uint32, *Database]
	dbSpecs     map[uint32]DatabaseSpec

	defaultCipherID    string
	tableCacheCapacity int
}

// Options configures a new or reopened Instance (spec SPEC_FULL.md §A.3).
type Options struct {
	DataDirectory         string
	DefaultCipherID       string
	DatabaseCacheCapacity int
	TableCacheCapacity    int
}

// Open acquires the instance lock on dir and prepares the database
// registry, creating dir if it does not already exist.
func Open(opts Options) (*Instance, error) {
	if err := os.MkdirAll(opts.DataDirectory, 0o700); err != nil {
		return nil, ioerr.IO("MkdirFailed", err)
	}
	lock := lockfile.New(opts.DataDirectory)
	if err := lock.TryAcquire(); err != nil {
		return nil, err
	}
	return &Instance{
		dir: opts.DataDirectory, lock: lock,
		databaseIDs:        *types.NewIDGenerator(types.KindDatabase, 1, types.FirstUserID(types.KindDatabase)),
		databases:          cache.New[uint32, *Database](firstNonZero(opts.DatabaseCacheCapacity, 20)),
		dbSpecs:            make(map[uint32]DatabaseSpec),
		defaultCipherID:    firstNonZeroStr(opts.DefaultCipherID, "aes128"),
		tableCacheCapacity: firstNonZero(opts.TableCacheCapacity, 100),
	}, nil
}

func firstNonZero(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func firstNonZeroStr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// Close releases the instance lock. Callers must Close every open
// Database first.
func (inst *Instance) Close() error {
	return inst.lock.Release()
}

// systemDatabaseID is the id of the instance-wide system database that
// hosts the catalog's SYS_DATABASES table (spec §4.9): it is the one
// database allocated from the database id generator's system range, so
// CreateDatabase (user-facing CREATE DATABASE) must never hand it out.
const systemDatabaseID = 1

// CreateDatabase creates a new database under the instance, assigning it
// a fresh id and registering it in the database cache (spec §3.1, §3.2).
func (inst *Instance) CreateDatabase(name, cipherID string, cipherKey []byte, description string) (*Database, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if cipherID == "" {
		cipherID = inst.defaultCipherID
	}
	id := uint32(inst.databaseIDs.Next(false))
	spec := DatabaseSpec{ID: id, Name: name, CipherID: cipherID, CipherKey: cipherKey, Description: description}
	db, err := CreateDatabase(inst.dir, spec, inst.tableCacheCapacity)
	if err != nil {
		return nil, err
	}
	inst.dbSpecs[id] = spec
	if err := inst.databases.Put(id, db, false); err != nil {
		return nil, err
	}
	return db, nil
}

// Database returns the database with the given id, opening it from disk
// if it is not already cached (spec §4.9 DatabaseCache).
func (inst *Instance) Database(id uint32) (*Database, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if db, ok := inst.databases.Get(id); ok {
		return db, nil
	}
	spec, ok := inst.dbSpecs[id]
	if !ok {
		return nil, ioerr.Userf("DatabaseDoesNotExist", "database id %d is not registered", id)
	}
	db, err := OpenDatabase(inst.dir, spec, inst.tableCacheCapacity)
	if err != nil {
		return nil, err
	}
	if err := inst.databases.Put(id, db, false); err != nil {
		return nil, err
	}
	return db, nil
}

// DatabaseByName linearly scans registered databases by name; the
// catalog layer keeps a proper SYS_DATABASES index, this is the fallback
// used before that catalog is consulted (spec §4.9).
func (inst *Instance) DatabaseByName(name string) (*Database, error) {
	inst.mu.Lock()
	for id, spec := range inst.dbSpecs {
		if spec.Name == name {
			inst.mu.Unlock()
			return inst.Database(id)
		}
	}
	inst.mu.Unlock()
	return nil, ioerr.Userf("DatabaseDoesNotExist", "database %q does not exist", name)
}

// SystemDatabase returns the instance's reserved catalog-hosting database
// (id 1), creating it on first use. Every iomgrd process has exactly one
// of these; it is never visible to CREATE/DROP DATABASE (spec §4.9).
func (inst *Instance) SystemDatabase() (*Database, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if db, ok := inst.databases.Get(systemDatabaseID); ok {
		return db, nil
	}
	spec := DatabaseSpec{ID: systemDatabaseID, Name: "sys", CipherID: inst.defaultCipherID, Description: "instance system catalog"}
	db, err := OpenDatabase(inst.dir, spec, inst.tableCacheCapacity)
	if err != nil {
		db, err = CreateDatabase(inst.dir, spec, inst.tableCacheCapacity)
		if err != nil {
			return nil, err
		}
	}
	inst.dbSpecs[systemDatabaseID] = spec
	if err := inst.databases.Put(systemDatabaseID, db, true); err != nil {
		return nil, err
	}
	return db, nil
}

// Databases returns every database spec registered in this instance's
// in-memory registry (populated lazily as databases are created/opened;
// SHOW DATABASES prefers the catalog's SYS_DATABASES rows when available).
func (inst *Instance) Databases() []DatabaseSpec {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	specs := make([]DatabaseSpec, 0, len(inst.dbSpecs))
	for id, spec := range inst.dbSpecs {
		if id == systemDatabaseID {
			continue
		}
		specs = append(specs, spec)
	}
	return specs
}
