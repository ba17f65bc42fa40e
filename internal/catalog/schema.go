// Package catalog implements the system-catalog bootstrap and read-back
// of spec §4.9: eleven self-describing system tables, created in
// dependency order, that record every other object (table, column,
// column set, constraint, index) a database holds.
package catalog

import (
	"github.com/siodb/iomgr/internal/table"
	"github.com/siodb/iomgr/internal/types"
)

// System table ids (spec §3.1: system objects carry ids from the system
// range; these are simply the first eleven).
const (
	TablesID            uint64 = 1
	ColumnsID           uint64 = 2
	ColumnSetsID        uint64 = 3
	ColumnDefsID        uint64 = 4
	ColumnSetColumnsID  uint64 = 5
	ConstraintsID       uint64 = 6
	ConstraintDefsID    uint64 = 7
	ColumnDefConstrsID  uint64 = 8
	IndicesID           uint64 = 9
	IndexColumnsID      uint64 = 10
	DatabasesID         uint64 = 11
)

// Names, in bootstrap order: each table after the first only references
// ids of tables already created (spec §4.9 "ordered because of forward
// references in the catalog itself").
var (
	TablesName           = "SYS_TABLES"
	ColumnsName          = "SYS_COLUMNS"
	ColumnSetsName       = "SYS_COLUMN_SETS"
	ColumnDefsName       = "SYS_COLUMN_DEFS"
	ColumnSetColumnsName = "SYS_COLUMN_SET_COLUMNS"
	ConstraintsName      = "SYS_CONSTRAINTS"
	ConstraintDefsName   = "SYS_CONSTRAINT_DEFS"
	ColumnDefConstrName  = "SYS_COLUMN_DEF_CONSTRAINTS"
	IndicesName          = "SYS_INDICES"
	IndexColumnsName     = "SYS_INDEX_COLUMNS"
	DatabasesName        = "SYS_DATABASES"
)

func col(id uint64, name string, dt types.DataType, notNull bool) table.ColumnSpec {
	return table.ColumnSpec{ID: id, Name: name, DataType: dt, NotNull: notNull}
}

// schemas returns the eleven system tables' specs in creation order.
func schemas() []table.Spec {
	return []table.Spec{
		{ID: TablesID, Name: TablesName, Columns: []table.ColumnSpec{
			col(1, "id", types.UInt64, true),
			col(2, "name", types.Text, true),
			col(3, "type", types.UInt8, true),
			col(4, "first_user_trid", types.UInt64, true),
			col(5, "current_column_set_id", types.UInt64, false),
			col(6, "description", types.Text, false),
		}},
		{ID: ColumnsID, Name: ColumnsName, Columns: []table.ColumnSpec{
			col(1, "id", types.UInt64, true),
			col(2, "table_id", types.UInt64, true),
			col(3, "name", types.Text, true),
			col(4, "data_type", types.UInt8, true),
			col(5, "state", types.UInt8, true),
			col(6, "block_data_area_size", types.UInt32, true),
			col(7, "description", types.Text, false),
		}},
		{ID: ColumnSetsID, Name: ColumnSetsName, Columns: []table.ColumnSpec{
			col(1, "id", types.UInt64, true),
			col(2, "table_id", types.UInt64, true),
		}},
		{ID: ColumnDefsID, Name: ColumnDefsName, Columns: []table.ColumnSpec{
			col(1, "id", types.UInt64, true),
			col(2, "column_id", types.UInt64, true),
		}},
		{ID: ColumnSetColumnsID, Name: ColumnSetColumnsName, Columns: []table.ColumnSpec{
			col(1, "id", types.UInt64, true),
			col(2, "column_set_id", types.UInt64, true),
			col(3, "column_definition_id", types.UInt64, true),
			col(4, "column_id", types.UInt64, true),
		}},
		{ID: ConstraintDefsID, Name: ConstraintDefsName, Columns: []table.ColumnSpec{
			col(1, "id", types.UInt64, true),
			col(2, "type", types.UInt8, true),
			col(3, "expression", types.Binary, false),
		}},
		{ID: ConstraintsID, Name: ConstraintsName, Columns: []table.ColumnSpec{
			col(1, "id", types.UInt64, true),
			col(2, "name", types.Text, true),
			col(3, "state", types.UInt8, true),
			col(4, "table_id", types.UInt64, true),
			col(5, "column_id", types.UInt64, false),
			col(6, "definition_id", types.UInt64, true),
			col(7, "description", types.Text, false),
		}},
		{ID: ColumnDefConstrsID, Name: ColumnDefConstrName, Columns: []table.ColumnSpec{
			col(1, "id", types.UInt64, true),
			col(2, "column_definition_id", types.UInt64, true),
			col(3, "constraint_id", types.UInt64, true),
		}},
		{ID: IndicesID, Name: IndicesName, Columns: []table.ColumnSpec{
			col(1, "id", types.UInt64, true),
			col(2, "table_id", types.UInt64, true),
			col(3, "name", types.Text, true),
			col(4, "type", types.UInt8, true),
			col(5, "is_unique", types.Bool, true),
			col(6, "data_file_size", types.Int64, true),
			col(7, "description", types.Text, false),
		}},
		{ID: IndexColumnsID, Name: IndexColumnsName, Columns: []table.ColumnSpec{
			col(1, "id", types.UInt64, true),
			col(2, "index_id", types.UInt64, true),
			col(3, "column_definition_id", types.UInt64, true),
			col(4, "sort_descending", types.Bool, true),
		}},
		{ID: DatabasesID, Name: DatabasesName, Columns: []table.ColumnSpec{
			col(1, "id", types.UInt32, true),
			col(2, "uuid", types.Binary, true),
			col(3, "name", types.Text, true),
			col(4, "cipher_id", types.Text, true),
			col(5, "description", types.Text, false),
		}},
	}
}
