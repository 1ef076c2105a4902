package protocol

import (
	"encoding/binary"
	"io"

	"github.com/sutra-memory/engine/internal/errorsx"
)

// MaxMessageSize is the hard cap on a single framed message's payload, per
// spec §4.8: 16 MiB. A length prefix beyond this is refused outright rather
// than attempting to allocate and read it.
const MaxMessageSize = 16 * 1024 * 1024

// ReadMessage reads one length-prefixed frame from r: a 4-byte big-endian
// length N followed by exactly N payload bytes. Unlike the WAL's header
// (little-endian, fixed 24 bytes), the wire framing uses a single
// big-endian length field, matching spec §6's wire description verbatim.
func ReadMessage(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxMessageSize {
		return nil, errorsx.Newf(errorsx.InvalidRequest, "message length %d exceeds %d byte cap", n, MaxMessageSize)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteMessage writes payload as one length-prefixed frame to w.
func WriteMessage(w io.Writer, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return errorsx.Newf(errorsx.InvalidRequest, "message length %d exceeds %d byte cap", len(payload), MaxMessageSize)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
