package protocol

import (
	"encoding/binary"

	"github.com/siodb/iomgr/internal/ioerr"
)

// BeginSessionRequest opens a new client session and negotiates protocol
// version (spec §6.4).
type BeginSessionRequest struct {
	ClientProtocolVersion string
}

// BeginSessionResponse answers BeginSessionRequest with a session id and
// the server's protocol version.
type BeginSessionResponse struct {
	SessionID             uint64
	ServerProtocolVersion string
	Compatible            bool
}

// ClientAuthenticationRequest carries the username for the session (spec
// leaves credential verification out of scope for the storage core).
type ClientAuthenticationRequest struct {
	UserName string
}

// ClientAuthenticationResponse reports whether authentication succeeded.
type ClientAuthenticationResponse struct {
	Authenticated bool
	Message       string
}

// Command wraps one parsed DBEngineRequest's already-serialized body; the
// storage core treats the body opaquely and hands it to the engine
// package's dispatcher, which knows the request schema (spec §4.10: "a
// parsed DBEngineRequest, product of the external parser").
type Command struct {
	RequestID uint64
	Body      []byte
}

// StatusMessage is one entry in a ServerResponse's status list (spec
// §4.10 "zero or more status messages").
type StatusMessage struct {
	Code    string
	Message string
}

// ColumnDescription describes one selected column's name and type, sent
// once at the head of a SELECT's rowset (spec §4.10).
type ColumnDescription struct {
	Name     string
	DataType uint8
}

// ServerResponse is the header that precedes a rowset (spec §4.10,
// §6.4): request_id/response_id/response_count identify which of a
// (possibly multi-response) request this is; affected_row_count applies
// to INSERT/UPDATE/DELETE; columns is non-empty only for SELECT.
type ServerResponse struct {
	RequestID        uint64
	ResponseID       uint32
	ResponseCount    uint32
	AffectedRowCount uint64
	HasAffectedCount bool
	Columns          []ColumnDescription
	StatusMessages   []StatusMessage
}

func putUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func putString(buf []byte, s string) []byte {
	buf = putUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func getUvarint(buf []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, nil, ioerr.Internalf("MalformedMessage", "bad varint")
	}
	return v, buf[n:], nil
}

func getString(buf []byte) (string, []byte, error) {
	n, rest, err := getUvarint(buf)
	if err != nil {
		return "", nil, err
	}
	if uint64(len(rest)) < n {
		return "", nil, ioerr.Internalf("MalformedMessage", "truncated string")
	}
	return string(rest[:n]), rest[n:], nil
}

// EncodeServerResponse serializes r's header (not its rowset, which is
// streamed separately via WriteRow/WriteRowTerminator).
func EncodeServerResponse(r ServerResponse) []byte {
	buf := putUvarint(nil, r.RequestID)
	buf = putUvarint(buf, uint64(r.ResponseID))
	buf = putUvarint(buf, uint64(r.ResponseCount))
	if r.HasAffectedCount {
		buf = append(buf, 1)
		buf = putUvarint(buf, r.AffectedRowCount)
	} else {
		buf = append(buf, 0)
	}
	buf = putUvarint(buf, uint64(len(r.Columns)))
	for _, c := range r.Columns {
		buf = putString(buf, c.Name)
		buf = append(buf, c.DataType)
	}
	buf = putUvarint(buf, uint64(len(r.StatusMessages)))
	for _, m := range r.StatusMessages {
		buf = putString(buf, m.Code)
		buf = putString(buf, m.Message)
	}
	return buf
}

// DecodeServerResponse parses a ServerResponse header previously produced
// by EncodeServerResponse.
func DecodeServerResponse(buf []byte) (ServerResponse, error) {
	var r ServerResponse
	var err error
	var v uint64

	if v, buf, err = getUvarint(buf); err != nil {
		return r, err
	}
	r.RequestID = v
	if v, buf, err = getUvarint(buf); err != nil {
		return r, err
	}
	r.ResponseID = uint32(v)
	if v, buf, err = getUvarint(buf); err != nil {
		return r, err
	}
	r.ResponseCount = uint32(v)

	if len(buf) == 0 {
		return r, ioerr.Internalf("MalformedMessage", "truncated response header")
	}
	r.HasAffectedCount = buf[0] == 1
	buf = buf[1:]
	if r.HasAffectedCount {
		if v, buf, err = getUvarint(buf); err != nil {
			return r, err
		}
		r.AffectedRowCount = v
	}

	var colCount uint64
	if colCount, buf, err = getUvarint(buf); err != nil {
		return r, err
	}
	r.Columns = make([]ColumnDescription, colCount)
	for i := range r.Columns {
		var name string
		if name, buf, err = getString(buf); err != nil {
			return r, err
		}
		if len(buf) == 0 {
			return r, ioerr.Internalf("MalformedMessage", "truncated column description")
		}
		r.Columns[i] = ColumnDescription{Name: name, DataType: buf[0]}
		buf = buf[1:]
	}

	var msgCount uint64
	if msgCount, buf, err = getUvarint(buf); err != nil {
		return r, err
	}
	r.StatusMessages = make([]StatusMessage, msgCount)
	for i := range r.StatusMessages {
		var code, msg string
		if code, buf, err = getString(buf); err != nil {
			return r, err
		}
		if msg, buf, err = getString(buf); err != nil {
			return r, err
		}
		r.StatusMessages[i] = StatusMessage{Code: code, Message: msg}
	}
	return r, nil
}
