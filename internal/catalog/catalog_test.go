package catalog

import (
	"testing"

	"github.com/siodb/iomgr/internal/instance"
)

func newTestInstance(t *testing.T) *instance.Instance {
	t.Helper()
	inst, err := instance.Open(instance.Options{DataDirectory: t.TempDir(), DefaultCipherID: "none"})
	if err != nil {
		t.Fatalf("instance.Open: %v", err)
	}
	return inst
}

func TestBootstrapCreatesAllSystemTables(t *testing.T) {
	inst := newTestInstance(t)
	db, err := inst.CreateDatabase("app", "none", nil, "")
	if err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	c, err := Bootstrap(db)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if c.Tables == nil || c.Columns == nil || c.ColumnSets == nil || c.ColumnDefs == nil ||
		c.ColumnSetColumns == nil || c.Constraints == nil || c.ConstraintDefs == nil ||
		c.ColumnDefConstrs == nil || c.Indices == nil || c.IndexColumns == nil || c.Databases == nil {
		t.Fatalf("expected all eleven system tables to be assigned")
	}
}

func TestBootstrapSelfDescribesSystemTables(t *testing.T) {
	inst := newTestInstance(t)
	db, err := inst.CreateDatabase("app", "none", nil, "")
	if err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	c, err := Bootstrap(db)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	row, err := c.Tables.Select(TablesID)
	if err != nil {
		t.Fatalf("Select SYS_TABLES row for itself: %v", err)
	}
	if row["name"].Str != TablesName {
		t.Fatalf("got name %q, want %q", row["name"].Str, TablesName)
	}

	row, err = c.Tables.Select(DatabasesID)
	if err != nil {
		t.Fatalf("Select SYS_TABLES row for SYS_DATABASES: %v", err)
	}
	if row["name"].Str != DatabasesName {
		t.Fatalf("got name %q, want %q", row["name"].Str, DatabasesName)
	}
}

func TestRecordDatabaseInsertsRow(t *testing.T) {
	inst := newTestInstance(t)
	db, err := inst.CreateDatabase("bookkeeping", "none", nil, "")
	if err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	c, err := Bootstrap(db)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	var uuid [16]byte
	uuid[0] = 0xAB
	if err := c.RecordDatabase(42, uuid, "app", "aes128", "the app database"); err != nil {
		t.Fatalf("RecordDatabase: %v", err)
	}
}

func TestCatalogOpenReopensExistingSystemTables(t *testing.T) {
	inst := newTestInstance(t)
	db, err := inst.CreateDatabase("app", "none", nil, "")
	if err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	if _, err := Bootstrap(db); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	reopened, err := inst.Database(db.ID)
	if err != nil {
		t.Fatalf("Database: %v", err)
	}
	c, err := Open(reopened)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	row, err := c.Tables.Select(TablesID)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if row["name"].Str != TablesName {
		t.Fatalf("got %q", row["name"].Str)
	}
}
