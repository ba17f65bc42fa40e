// Package engine implements the request handler of spec §4.10: it
// consumes a parsed request, dispatches it to the matching Table/Database
// operation, and translates the three-way error classification
// (User/IO/Internal) of internal/ioerr into a ServerResponse.
package engine

import (
	"log/slog"

	"github.com/siodb/iomgr/internal/instance"
	"github.com/siodb/iomgr/internal/ioerr"
	"github.com/siodb/iomgr/internal/protocol"
	"github.com/siodb/iomgr/internal/table"
)

// Op names the operation a Request carries (spec §4.10 step 2: "dispatch
// to the matching operation on Table/Database").
type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpDelete
	OpSelect
	OpSetNextTrid
)

// Request is the storage core's view of a parsed DBEngineRequest: the
// external SQL parser (out of scope, spec §1 Non-goals) is assumed to
// have already resolved table/column names and produced typed values.
type Request struct {
	RequestID   uint64
	DatabaseID  uint32
	TableID     uint64
	UserID      uint32
	Op          Op
	TRID        uint64    // Update/Delete/SetNextTrid
	Row         table.Row // Insert/Update
	SetUser     bool      // SetNextTrid: which counter to set
	NextTridVal uint64
}

// Handler dispatches Requests against an open Instance, producing
// ServerResponses with errors already translated per spec §4.10 step 3.
type Handler struct {
	inst *instance.Instance
	log  *slog.Logger
}

// NewHandler builds a request handler bound to inst, logging internal/IO
// failures (with their correlation UUID) through log.
func NewHandler(inst *instance.Instance, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{inst: inst, log: log}
}

// Handle resolves req's target table, performs its operation, and always
// returns a ServerResponse — never a raw error — since spec §4.10 step 3
// requires every domain error to be translated into one of the three
// response flavors before reaching the client.
func (h *Handler) Handle(req Request) ServerResponse {
	db, err := h.inst.Database(req.DatabaseID)
	if err != nil {
		return h.translate(req, err)
	}
	tbl, err := db.Table(req.TableID)
	if err != nil {
		return h.translate(req, err)
	}

	switch req.Op {
	case OpInsert:
		if _, err := tbl.Insert(req.Row, req.UserID); err != nil {
			return h.translate(req, err)
		}
		return h.ok(req, 1, nil)
	case OpUpdate:
		if err := tbl.Update(req.TRID, req.Row, req.UserID); err != nil {
			return h.translate(req, err)
		}
		return h.ok(req, 1, nil)
	case OpDelete:
		if err := tbl.Delete(req.TRID, req.UserID); err != nil {
			return h.translate(req, err)
		}
		return h.ok(req, 1, nil)
	case OpSelect:
		return h.selectAll(req, tbl)
	case OpSetNextTrid:
		if err := h.setNextTrid(tbl, !req.SetUser, req.NextTridVal); err != nil {
			return h.translate(req, err)
		}
		return h.ok(req, 0, nil)
	default:
		return h.translate(req, ioerr.Userf("UnknownOperation", "unrecognized request operation %d", req.Op))
	}
}

// ServerResponse pairs the wire header with the already-materialized rows
// a SELECT produced (the daemon layer streams these out via
// protocol.WriteRow once the header is written).
type ServerResponse struct {
	Header protocol.ServerResponse
	Rows   []table.Row
	Cols   []table.ColumnDescriptor
}

func (h *Handler) ok(req Request, affected uint64, cols []table.ColumnDescriptor) ServerResponse {
	return ServerResponse{
		Header: protocol.ServerResponse{
			RequestID: req.RequestID, ResponseID: 1, ResponseCount: 1,
			HasAffectedCount: true, AffectedRowCount: affected,
		},
		Cols: cols,
	}
}

// selectAll builds a TableDataSet-equivalent response: every row in TRID
// order (spec §4.10 SELECT). Column/predicate projection belongs to the
// SQL layer (out of scope, spec §1 Non-goal "SELECT expression
// evaluator"); the core iterates the whole table via Cursor.
func (h *Handler) selectAll(req Request, tbl *table.Table) ServerResponse {
	cols := tbl.Columns()
	var rows []table.Row
	cur := tbl.NewCursor()
	for cur.Advance() {
		row, err := cur.Row()
		if err != nil {
			return h.translate(req, err)
		}
		rows = append(rows, row)
	}
	return ServerResponse{
		Header: protocol.ServerResponse{
			RequestID: req.RequestID, ResponseID: 1, ResponseCount: 1,
			Columns: columnDescriptions(cols),
		},
		Rows: rows,
		Cols: cols,
	}
}

func columnDescriptions(cols []table.ColumnDescriptor) []protocol.ColumnDescription {
	out := make([]protocol.ColumnDescription, len(cols))
	for i, c := range cols {
		out[i] = protocol.ColumnDescription{Name: c.Name, DataType: uint8(c.DataType)}
	}
	return out
}

// setNextTrid implements the recovered ALTER TABLE ... SET NEXT_TRID
// operation (SPEC_FULL.md §C.1), per spec §9 open question (ii): refuses
// only moves that would re-issue already generated TRIDs, i.e. lowering
// the user counter or raising the (downward-counting) system counter.
func (h *Handler) setNextTrid(tbl *table.Table, system bool, value uint64) error {
	if system {
		return tbl.SetLastSystemTrid(value)
	}
	return tbl.SetLastUserTrid(value)
}

// translate implements spec §4.10 step 3: classify err and build the
// matching response shape, logging Internal/IO failures with their
// correlation UUID.
func (h *Handler) translate(req Request, err error) ServerResponse {
	e, _ := ioerr.As(err)
	if e == nil {
		e = ioerr.Internal("Unclassified", err)
	}
	header := protocol.ServerResponse{RequestID: req.RequestID, ResponseID: 1, ResponseCount: 1}
	switch e.Kind {
	case ioerr.KindUser:
		header.StatusMessages = []protocol.StatusMessage{{Code: e.Code, Message: e.Error()}}
	case ioerr.KindIO:
		h.log.Error("io error", "uuid", e.UUID.String(), "code", e.Code, "err", e.Err)
		header.StatusMessages = []protocol.StatusMessage{{Code: "IOError", Message: "IO error, see log, UUID " + e.UUID.String()}}
	default:
		h.log.Error("internal error", "uuid", e.UUID.String(), "code", e.Code, "err", e.Err)
		header.StatusMessages = []protocol.StatusMessage{{Code: "InternalError", Message: "internal error, see log, UUID " + e.UUID.String()}}
	}
	return ServerResponse{Header: header}
}
