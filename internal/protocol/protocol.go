// Package protocol implements the wire framing of spec §6.4: a stream of
// length-prefixed messages, each tagged with a 1-byte message type, plus
// the rowset framing (varint row_length, optional null_bitmask, then
// per-column binary values) that follows a ServerResponse.
package protocol

import (
	"bufio"
	"encoding/binary"
	"io"

	"golang.org/x/mod/semver"

	"github.com/siodb/iomgr/internal/ioerr"
)

// MessageType is the 1-byte tag preceding every framed message (spec
// §6.4).
type MessageType byte

const (
	MessageCommand MessageType = iota + 1
	MessageServerResponse
	MessageBeginSessionRequest
	MessageBeginSessionResponse
	MessageClientAuthenticationRequest
	MessageClientAuthenticationResponse
)

// ProtocolVersion is negotiated once per session in BeginSessionRequest/
// Response, compared with golang.org/x/mod/semver so the server can
// refuse to speak to an incompatible client (repurposing the teacher's
// semver dependency, originally used for release-tooling version
// comparisons, for wire version negotiation — see DESIGN.md).
const ProtocolVersion = "v1.0.0"

// Compatible reports whether clientVersion can speak to a server running
// ProtocolVersion: same major version, client no newer than server (spec
// is silent on version negotiation; this policy is this implementation's
// choice, exercised at BeginSessionRequest time).
func Compatible(clientVersion string) bool {
	if !semver.IsValid(clientVersion) {
		return false
	}
	if semver.Major(clientVersion) != semver.Major(ProtocolVersion) {
		return false
	}
	return semver.Compare(clientVersion, ProtocolVersion) <= 0
}

// WriteMessage frames payload behind a 1-byte type tag and a varint
// length (spec §6.4).
func WriteMessage(w io.Writer, typ MessageType, payload []byte) error {
	var hdr [1 + binary.MaxVarintLen64]byte
	hdr[0] = byte(typ)
	n := binary.PutUvarint(hdr[1:], uint64(len(payload)))
	if _, err := w.Write(hdr[:1+n]); err != nil {
		return ioerr.IO("ShortWrite", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return ioerr.IO("ShortWrite", err)
	}
	return nil
}

// ReadMessage reads one framed message's type tag and payload.
func ReadMessage(r *bufio.Reader) (MessageType, []byte, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return 0, nil, ioerr.IO("ShortRead", err)
	}
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, nil, ioerr.IO("ShortRead", err)
	}
	payload := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, ioerr.IO("ShortRead", err)
		}
	}
	return MessageType(tag), payload, nil
}

// WriteRowTerminator writes the varint 0 that marks end-of-rows in a
// ServerResponse's rowset (spec §6.4).
func WriteRowTerminator(w io.Writer) error {
	var buf [1]byte // binary.PutUvarint(0) is always a single zero byte
	_, err := w.Write(buf[:])
	if err != nil {
		return ioerr.IO("ShortWrite", err)
	}
	return nil
}

// ReadRowLength reads one row's leading varint row_length; 0 means
// end-of-rows (spec §6.4).
func ReadRowLength(r *bufio.Reader) (uint64, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, ioerr.IO("ShortRead", err)
	}
	return n, nil
}

// WriteRow writes one row's varint row_length, its null_bitmask (only if
// nullableColumnCount > 0), and its pre-encoded column values (spec
// §6.4).
func WriteRow(w io.Writer, nullBitmask []byte, columnData []byte) error {
	total := len(columnData)
	if nullBitmask != nil {
		total += len(nullBitmask)
	}
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(total))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return ioerr.IO("ShortWrite", err)
	}
	if nullBitmask != nil {
		if _, err := w.Write(nullBitmask); err != nil {
			return ioerr.IO("ShortWrite", err)
		}
	}
	if _, err := w.Write(columnData); err != nil {
		return ioerr.IO("ShortWrite", err)
	}
	return nil
}

// NullBitmaskSize returns ceil(columnCount/8), the byte width of a row's
// null bitmask (spec §6.4).
func NullBitmaskSize(columnCount int) int {
	return (columnCount + 7) / 8
}

// SetNullBit sets bit i (LSB first, spec §6.4) in mask to indicate
// column i's value is NULL.
func SetNullBit(mask []byte, i int) {
	mask[i/8] |= 1 << uint(i%8)
}

// IsNullBit reports whether bit i is set in mask.
func IsNullBit(mask []byte, i int) bool {
	return mask[i/8]&(1<<uint(i%8)) != 0
}
