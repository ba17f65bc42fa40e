package table

import (
	"testing"

	"github.com/siodb/iomgr/internal/types"
	"github.com/siodb/iomgr/internal/vfile"
)

func plainOpener(path string, create bool) (vfile.File, error) {
	return vfile.OpenPlain(path, create)
}

func testSpec() Spec {
	return Spec{
		ID:   1,
		Name: "employees",
		Columns: []ColumnSpec{
			{ID: 1, Name: "name", DataType: types.Text, NotNull: true},
			{ID: 2, Name: "age", DataType: types.Int32},
			{ID: 3, Name: "active", DataType: types.Bool, Default: boolDefault(true)},
		},
	}
}

func boolDefault(b bool) *types.Value {
	v := types.Value{Type: types.Bool, Bool: b}
	return &v
}

func TestTableInsertAndSelect(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create(dir, testSpec(), plainOpener, 1000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	trid, err := tbl.Insert(Row{
		"name": {Type: types.Text, Str: "Ada Lovelace"},
		"age":  {Type: types.Int32, Int: 28},
	}, 7)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	row, err := tbl.Select(trid)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if row["name"].Str != "Ada Lovelace" {
		t.Fatalf("got name %q", row["name"].Str)
	}
	if row["age"].Int != 28 {
		t.Fatalf("got age %d", row["age"].Int)
	}
	if !row["active"].Bool {
		t.Fatalf("expected default active=true")
	}
}

func TestTableInsertMissingNotNullFails(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create(dir, testSpec(), plainOpener, 1000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tbl.Insert(Row{"age": {Type: types.Int32, Int: 1}}, 1); err == nil {
		t.Fatalf("expected NotNullConstraintViolation for missing name")
	}
}

func TestTableUpdateChainsVersions(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create(dir, testSpec(), plainOpener, 1000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	trid, err := tbl.Insert(Row{"name": {Type: types.Text, Str: "Grace Hopper"}, "age": {Type: types.Int32, Int: 40}}, 1)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tbl.Update(trid, Row{"age": {Type: types.Int32, Int: 41}}, 1); err != nil {
		t.Fatalf("Update: %v", err)
	}
	row, err := tbl.Select(trid)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if row["age"].Int != 41 {
		t.Fatalf("got age %d, want 41", row["age"].Int)
	}
	if row["name"].Str != "Grace Hopper" {
		t.Fatalf("update of one column should not disturb another: got %q", row["name"].Str)
	}
}

func TestTableDeleteThenSelectFails(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create(dir, testSpec(), plainOpener, 1000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	trid, err := tbl.Insert(Row{"name": {Type: types.Text, Str: "Margaret Hamilton"}}, 1)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tbl.Delete(trid, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := tbl.Select(trid); err == nil {
		t.Fatalf("expected RowNotFound after delete")
	}
	if err := tbl.Delete(trid, 1); err == nil {
		t.Fatalf("expected error deleting an already-deleted row")
	}
}

func TestTableReopenPreservesRows(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create(dir, testSpec(), plainOpener, 1000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	trid, err := tbl.Insert(Row{"name": {Type: types.Text, Str: "Katherine Johnson"}, "age": {Type: types.Int32, Int: 50}}, 1)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reopened, err := Open(dir, testSpec(), plainOpener)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	row, err := reopened.Select(trid)
	if err != nil {
		t.Fatalf("Select after reopen: %v", err)
	}
	if row["name"].Str != "Katherine Johnson" {
		t.Fatalf("got %q", row["name"].Str)
	}
}
