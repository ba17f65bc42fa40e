package engine

import (
	"testing"

	"github.com/siodb/iomgr/internal/instance"
	"github.com/siodb/iomgr/internal/table"
	"github.com/siodb/iomgr/internal/types"
)

func newTestHandler(t *testing.T) (*Handler, uint32, uint64) {
	t.Helper()
	inst, err := instance.Open(instance.Options{DataDirectory: t.TempDir(), DefaultCipherID: "none"})
	if err != nil {
		t.Fatalf("instance.Open: %v", err)
	}
	db, err := inst.CreateDatabase("app", "none", nil, "")
	if err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	tbl, err := db.CreateTable("widgets", []table.ColumnSpec{
		{ID: 1, Name: "label", DataType: types.Text, NotNull: true},
	}, false)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return NewHandler(inst, nil), db.ID, tbl.ID
}

func TestHandlerInsertAndSelect(t *testing.T) {
	h, dbID, tableID := newTestHandler(t)

	resp := h.Handle(Request{
		RequestID: 1, DatabaseID: dbID, TableID: tableID, Op: OpInsert,
		Row: table.Row{"label": {Type: types.Text, Str: "gizmo"}},
	})
	if len(resp.Header.StatusMessages) != 0 {
		t.Fatalf("unexpected status messages: %+v", resp.Header.StatusMessages)
	}
	if resp.Header.AffectedRowCount != 1 {
		t.Fatalf("got affected count %d, want 1", resp.Header.AffectedRowCount)
	}

	resp = h.Handle(Request{RequestID: 2, DatabaseID: dbID, TableID: tableID, Op: OpSelect})
	if len(resp.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(resp.Rows))
	}
	if resp.Rows[0]["label"].Str != "gizmo" {
		t.Fatalf("got label %q", resp.Rows[0]["label"].Str)
	}
}

func TestHandlerTranslatesUserError(t *testing.T) {
	h, dbID, tableID := newTestHandler(t)

	resp := h.Handle(Request{
		RequestID: 1, DatabaseID: dbID, TableID: tableID, Op: OpInsert,
		Row: table.Row{},
	})
	if len(resp.Header.StatusMessages) != 1 {
		t.Fatalf("expected one status message, got %+v", resp.Header.StatusMessages)
	}
	if resp.Header.StatusMessages[0].Code != "NotNullConstraintViolation" {
		t.Fatalf("got code %q", resp.Header.StatusMessages[0].Code)
	}
}

func TestHandlerSetNextTrid(t *testing.T) {
	h, dbID, tableID := newTestHandler(t)

	resp := h.Handle(Request{
		RequestID: 1, DatabaseID: dbID, TableID: tableID, Op: OpSetNextTrid,
		SetUser: true, NextTridVal: types.FirstUserID(types.KindTable) + 100,
	})
	if len(resp.Header.StatusMessages) != 0 {
		t.Fatalf("unexpected status messages: %+v", resp.Header.StatusMessages)
	}

	resp = h.Handle(Request{
		RequestID: 2, DatabaseID: dbID, TableID: tableID, Op: OpSetNextTrid,
		SetUser: true, NextTridVal: 1,
	})
	if len(resp.Header.StatusMessages) != 1 || resp.Header.StatusMessages[0].Code != "InvalidArgument" {
		t.Fatalf("expected a decrease to be refused, got %+v", resp.Header.StatusMessages)
	}
}

func TestHandlerUnknownDatabaseIsUserError(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := h.Handle(Request{RequestID: 1, DatabaseID: 999, TableID: 1, Op: OpSelect})
	if len(resp.Header.StatusMessages) != 1 {
		t.Fatalf("expected one status message, got %+v", resp.Header.StatusMessages)
	}
	if resp.Header.StatusMessages[0].Code != "DatabaseDoesNotExist" {
		t.Fatalf("got code %q", resp.Header.StatusMessages[0].Code)
	}
}
