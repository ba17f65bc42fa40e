package daemon

import (
	"net"
	"testing"
	"time"

	"github.com/siodb/iomgr/internal/engine"
	"github.com/siodb/iomgr/internal/table"
	"github.com/siodb/iomgr/internal/types"
)

func TestCommandRequestRoundTrip(t *testing.T) {
	req := engine.Request{
		DatabaseID: 3, TableID: 7, UserID: 1, Op: engine.OpInsert,
		Row: table.Row{"name": {Type: types.Text, Str: "widget"}, "age": {Type: types.Int32, Int: 5}},
	}
	buf := EncodeCommandRequest(req)
	got, err := decodeCommandRequest(buf)
	if err != nil {
		t.Fatalf("decodeCommandRequest: %v", err)
	}
	if got.DatabaseID != 3 || got.TableID != 7 || got.UserID != 1 || got.Op != engine.OpInsert {
		t.Fatalf("got %+v", got)
	}
	if got.Row["name"].Str != "widget" {
		t.Fatalf("got name %q", got.Row["name"].Str)
	}
	if got.Row["age"].Int != 5 {
		t.Fatalf("got age %d", got.Row["age"].Int)
	}
}

func TestValueRoundTripNull(t *testing.T) {
	buf := encodeValue(nil, types.NullValue(types.Text))
	v, rest, err := decodeValue(buf)
	if err != nil {
		t.Fatalf("decodeValue: %v", err)
	}
	if !v.IsNull {
		t.Fatalf("expected NULL value")
	}
	if len(rest) != 0 {
		t.Fatalf("expected no trailing bytes, got %d", len(rest))
	}
}

func TestReapOnceClosesIdleConnections(t *testing.T) {
	s := &Server{reapInterval: 10 * time.Millisecond, conns: make(map[*conn]struct{})}
	a1, _ := net.Pipe()
	a2, _ := net.Pipe()
	c1, c2 := &conn{c: a1, lastSeen: time.Now().Add(-time.Hour)}, &conn{c: a2, lastSeen: time.Now()}
	s.conns[c1] = struct{}{}
	s.conns[c2] = struct{}{}

	s.reapOnce()

	if _, ok := s.conns[c1]; ok {
		t.Fatalf("expected idle connection to be reaped")
	}
	if _, ok := s.conns[c2]; !ok {
		t.Fatalf("expected recently-active connection to survive")
	}
}
