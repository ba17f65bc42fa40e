package catalog

import (
	"github.com/siodb/iomgr/internal/instance"
	"github.com/siodb/iomgr/internal/table"
	"github.com/siodb/iomgr/internal/types"
)

func text(s string) types.Value   { return types.Value{Type: types.Text, Str: s} }
func u64(v uint64) types.Value    { return types.Value{Type: types.UInt64, UInt: v} }
func u32(v uint32) types.Value    { return types.Value{Type: types.UInt32, UInt: uint64(v)} }
func u8(v uint8) types.Value      { return types.Value{Type: types.UInt8, UInt: uint64(v)} }
func boolean(v bool) types.Value  { return types.Value{Type: types.Bool, Bool: v} }
func binary(b []byte) types.Value { return types.Value{Type: types.Binary, Bin: b} }
func i64(v int64) types.Value     { return types.Value{Type: types.Int64, Int: v} }
func nullText() types.Value       { return types.NullValue(types.Text) }
func nullU64() types.Value        { return types.NullValue(types.UInt64) }

// object kinds recorded in SYS_TABLES.type (spec §3.1: every object has a
// kind tag alongside its id).
const (
	tableKindSystem uint8 = 0
	tableKindUser   uint8 = 1
)

// Catalog is the opened handle to a database's eleven system tables,
// kept separately from user tables so bootstrap/read-back code can
// address them by name without going through Database's id registry.
type Catalog struct {
	db *instance.Database

	Tables           *table.Table
	Columns          *table.Table
	ColumnSets       *table.Table
	ColumnDefs       *table.Table
	ColumnSetColumns *table.Table
	Constraints      *table.Table
	ConstraintDefs   *table.Table
	ColumnDefConstrs *table.Table
	Indices          *table.Table
	IndexColumns     *table.Table
	Databases        *table.Table
}

// Bootstrap creates the eleven system tables in dependency order inside a
// freshly created database and has the catalog describe itself: every
// system table's own row is written into SYS_TABLES, and its columns'
// rows into SYS_COLUMNS (spec §4.9 "Create database").
func Bootstrap(db *instance.Database) (*Catalog, error) {
	c := &Catalog{db: db}
	tables := make([]*table.Table, 0, len(schemas()))
	for _, spec := range schemas() {
		tbl, err := db.CreateSystemTable(spec)
		if err != nil {
			return nil, err
		}
		tables = append(tables, tbl)
		c.assign(spec.ID, tbl)
	}
	for _, tbl := range tables {
		if err := c.describe(tbl); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Open reopens the eleven system tables of an already-bootstrapped
// database (spec §4.9 "Startup read-back" step 2: "load each catalog
// table by known id").
func Open(db *instance.Database) (*Catalog, error) {
	c := &Catalog{db: db}
	for _, spec := range schemas() {
		db.RegisterTableSpec(spec)
		tbl, err := db.Table(spec.ID)
		if err != nil {
			return nil, err
		}
		c.assign(spec.ID, tbl)
	}
	return c, nil
}

func (c *Catalog) assign(id uint64, tbl *table.Table) {
	switch id {
	case TablesID:
		c.Tables = tbl
	case ColumnsID:
		c.Columns = tbl
	case ColumnSetsID:
		c.ColumnSets = tbl
	case ColumnDefsID:
		c.ColumnDefs = tbl
	case ColumnSetColumnsID:
		c.ColumnSetColumns = tbl
	case ConstraintsID:
		c.Constraints = tbl
	case ConstraintDefsID:
		c.ConstraintDefs = tbl
	case ColumnDefConstrsID:
		c.ColumnDefConstrs = tbl
	case IndicesID:
		c.Indices = tbl
	case IndexColumnsID:
		c.IndexColumns = tbl
	case DatabasesID:
		c.Databases = tbl
	}
}

// describe writes tbl's own self-description into SYS_TABLES and
// SYS_COLUMNS (spec §4.9: "the catalog describes itself"). Every row is
// inserted with TRID == the object's own id, which is safe for system
// objects because the system TRID range and the system object-id range
// are the same namespace (spec §3.1).
func (c *Catalog) describe(tbl *table.Table) error {
	if _, err := c.Tables.Insert(table.Row{
		"id":                    u64(tbl.ID),
		"name":                  text(tbl.Name),
		"type":                  u8(tableKindSystem),
		"first_user_trid":       u64(tbl.ID),
		"current_column_set_id": nullU64(),
		"description":           nullText(),
	}, 0); err != nil {
		return err
	}
	for _, cs := range columnsOf(tbl.ID) {
		if err := c.RecordColumn(tbl.ID, cs); err != nil {
			return err
		}
	}
	return nil
}

// columnsOf returns the ColumnSpecs of the system table with the given
// id, used only by describe to record each table's columns into
// SYS_COLUMNS (spec §4.9).
func columnsOf(id uint64) []table.ColumnSpec {
	for _, spec := range schemas() {
		if spec.ID == id {
			return spec.Columns
		}
	}
	return nil
}

// RecordDatabase inserts a row into SYS_DATABASES describing a newly
// created database, run once per CreateDatabase as part of the instance-
// wide (not per-database) catalog; callers keep a single Catalog open
// against the instance's bookkeeping database for this purpose.
func (c *Catalog) RecordDatabase(id uint32, dbUUID [16]byte, name, cipherID, description string) error {
	row := table.Row{
		"id":        u32(id),
		"uuid":      binary(dbUUID[:]),
		"name":      text(name),
		"cipher_id": text(cipherID),
	}
	if description == "" {
		row["description"] = nullText()
	} else {
		row["description"] = text(description)
	}
	_, err := c.Databases.Insert(row, 0)
	return err
}

// RecordTable inserts a user table's own description into SYS_TABLES and
// SYS_COLUMNS, mirroring what describe does for system tables (spec
// §4.9). Called once by the engine's CREATE TABLE handler right after
// instance.Database.CreateTable succeeds.
func (c *Catalog) RecordTable(tbl *table.Table, columns []table.ColumnSpec, firstUserTrid uint64, description string) error {
	descVal := nullText()
	if description != "" {
		descVal = text(description)
	}
	if _, err := c.Tables.Insert(table.Row{
		"id":                    u64(tbl.ID),
		"name":                  text(tbl.Name),
		"type":                  u8(tableKindUser),
		"first_user_trid":       u64(firstUserTrid),
		"current_column_set_id": nullU64(),
		"description":           descVal,
	}, 0); err != nil {
		return err
	}
	for _, cs := range columns {
		if err := c.RecordColumn(tbl.ID, cs); err != nil {
			return err
		}
	}
	return nil
}

// RecordColumn inserts one column's description into SYS_COLUMNS.
func (c *Catalog) RecordColumn(tableID uint64, cs table.ColumnSpec) error {
	_, err := c.Columns.Insert(table.Row{
		"id":                   u64(cs.ID),
		"table_id":             u64(tableID),
		"name":                 text(cs.Name),
		"data_type":            u8(uint8(cs.DataType)),
		"state":                u8(0),
		"block_data_area_size": u32(cs.DataAreaSize),
		"description":          nullText(),
	}, 0)
	return err
}

// RecordIndex inserts an index's own description into SYS_INDICES.
func (c *Catalog) RecordIndex(id, tableID uint64, name string, kind uint8, unique bool, dataFileSize int64, description string) error {
	descVal := nullText()
	if description != "" {
		descVal = text(description)
	}
	_, err := c.Indices.Insert(table.Row{
		"id":             u64(id),
		"table_id":       u64(tableID),
		"name":           text(name),
		"type":           u8(kind),
		"is_unique":      boolean(unique),
		"data_file_size": i64(dataFileSize),
		"description":    descVal,
	}, 0)
	return err
}
