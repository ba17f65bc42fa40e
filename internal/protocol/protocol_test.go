package protocol

import (
	"bufio"
	"bytes"
	"io"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, MessageCommand, []byte("hello")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	typ, payload, err := ReadMessage(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if typ != MessageCommand {
		t.Fatalf("got type %v, want MessageCommand", typ)
	}
	if string(payload) != "hello" {
		t.Fatalf("got payload %q", payload)
	}
}

func TestMessageRoundTripEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, MessageBeginSessionRequest, nil); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	typ, payload, err := ReadMessage(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if typ != MessageBeginSessionRequest || len(payload) != 0 {
		t.Fatalf("got type %v payload %q", typ, payload)
	}
}

func TestRowFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	mask := make([]byte, NullBitmaskSize(3))
	SetNullBit(mask, 1)
	if err := WriteRow(&buf, mask, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := WriteRowTerminator(&buf); err != nil {
		t.Fatalf("WriteRowTerminator: %v", err)
	}

	r := bufio.NewReader(&buf)
	n, err := ReadRowLength(r)
	if err != nil {
		t.Fatalf("ReadRowLength: %v", err)
	}
	if int(n) != len(mask)+2 {
		t.Fatalf("got row length %d, want %d", n, len(mask)+2)
	}
	rest := make([]byte, n)
	if _, err := io.ReadFull(r, rest); err != nil {
		t.Fatalf("read row body: %v", err)
	}
	gotMask, gotCols := rest[:len(mask)], rest[len(mask):]
	if !IsNullBit(gotMask, 1) || IsNullBit(gotMask, 0) || IsNullBit(gotMask, 2) {
		t.Fatalf("got mask %v, want only bit 1 set", gotMask)
	}
	if !bytes.Equal(gotCols, []byte{0xAA, 0xBB}) {
		t.Fatalf("got column bytes %v", gotCols)
	}

	terminator, err := ReadRowLength(r)
	if err != nil {
		t.Fatalf("ReadRowLength terminator: %v", err)
	}
	if terminator != 0 {
		t.Fatalf("expected terminator 0, got %d", terminator)
	}
}

func TestCompatibleVersion(t *testing.T) {
	if !Compatible(ProtocolVersion) {
		t.Fatalf("expected exact version match to be compatible")
	}
	if Compatible("v2.0.0") {
		t.Fatalf("expected major version mismatch to be incompatible")
	}
	if Compatible("not-a-version") {
		t.Fatalf("expected invalid version string to be incompatible")
	}
}

func TestServerResponseEncodeDecodeRoundTrip(t *testing.T) {
	orig := ServerResponse{
		RequestID: 7, ResponseID: 1, ResponseCount: 1,
		HasAffectedCount: true, AffectedRowCount: 2,
		Columns:        []ColumnDescription{{Name: "a", DataType: 3}, {Name: "b", DataType: 11}},
		StatusMessages: []StatusMessage{{Code: "OK", Message: "done"}},
	}
	buf := EncodeServerResponse(orig)
	got, err := DecodeServerResponse(buf)
	if err != nil {
		t.Fatalf("DecodeServerResponse: %v", err)
	}
	if got.RequestID != orig.RequestID || got.AffectedRowCount != orig.AffectedRowCount {
		t.Fatalf("got %+v, want %+v", got, orig)
	}
	if len(got.Columns) != 2 || got.Columns[1].Name != "b" {
		t.Fatalf("column round-trip failed: %+v", got.Columns)
	}
	if len(got.StatusMessages) != 1 || got.StatusMessages[0].Message != "done" {
		t.Fatalf("status message round-trip failed: %+v", got.StatusMessages)
	}
}
