// Package wal implements the write-ahead log (C1): a durable, sequential
// record of every mutation, with transaction framing and replay. The
// 24-byte header layout, CRC32 Castagnoli checksum, and buffered-writer
// shape are adapted directly from the teacher's pkg/wal package; the entry
// types are generalized from the teacher's row Insert/Update/Delete to the
// WriteEntry variants of spec.md §3.
package wal

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/google/uuid"
)

// HeaderSize is the fixed on-disk header size, unchanged from the teacher.
const HeaderSize = 24

// Magic and version, same role as the teacher's WALMagic/WALVersion.
const (
	Magic   uint32 = 0xDEADBEEF
	Version uint8  = 1
)

// EntryType tags the payload that follows the header, generalized from the
// teacher's row-mutation EntryInsert/EntryUpdate/EntryDelete to the
// WriteEntry variants of spec.md §3.
type EntryType uint8

const (
	EntryLearnConcept EntryType = iota + 1 // 1
	EntryLearnAssociation                  // 2
	EntryStrengthen                        // 3
	EntryBeginTxn                          // 4
	EntryCommitTxn                         // 5
	EntryRollbackTxn                       // 6
)

// Header is the fixed 24-byte record header, byte-identical in shape to
// the teacher's WALHeader.
type Header struct {
	Magic      uint32
	Version    uint8
	EntryType  EntryType
	Reserved   uint16
	LSN        uint64
	PayloadLen uint32
	CRC32      uint32
}

func (h *Header) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = uint8(h.EntryType)
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved)
	binary.LittleEndian.PutUint64(buf[8:16], h.LSN)
	binary.LittleEndian.PutUint32(buf[16:20], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[20:24], h.CRC32)
}

func (h *Header) Decode(buf []byte) {
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = buf[4]
	h.EntryType = EntryType(buf[5])
	h.Reserved = binary.LittleEndian.Uint16(buf[6:8])
	h.LSN = binary.LittleEndian.Uint64(buf[8:16])
	h.PayloadLen = binary.LittleEndian.Uint32(buf[16:20])
	h.CRC32 = binary.LittleEndian.Uint32(buf[20:24])
}

// Entry is a complete on-disk record: header plus payload bytes.
type Entry struct {
	Header  Header
	Payload []byte
}

// WriteTo writes header then payload to w, same shape as the teacher's
// WALEntry.WriteTo.
func (e *Entry) WriteTo(w io.Writer) (int64, error) {
	var headerBuf [HeaderSize]byte
	e.Header.Encode(headerBuf[:])

	n, err := w.Write(headerBuf[:])
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(e.Payload)
	return int64(n + m), err
}

// --- Payload encodings for each WriteEntry variant (manual little-endian
// binary, matching the style of the persistent store format in §4.10,
// rather than protobuf: see DESIGN.md for why protobuf was dropped). ---

// LearnConceptPayload is the decoded body of an EntryLearnConcept record.
type LearnConceptPayload struct {
	Id             [8]byte
	Content        string
	Vector         []float32 // nil if not embedded
	Strength       float64
	Confidence     float64
	TimestampMicro int64
	SemanticType   string
}

func EncodeLearnConcept(p *LearnConceptPayload) []byte {
	contentBytes := []byte(p.Content)
	semBytes := []byte(p.SemanticType)

	size := 8 + 4 + len(contentBytes) + 1 + 8 + 8 + 8 + 2 + len(semBytes)
	hasVector := p.Vector != nil
	if hasVector {
		size += 4 + 4*len(p.Vector)
	}

	buf := make([]byte, size)
	off := 0
	copy(buf[off:off+8], p.Id[:])
	off += 8
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(contentBytes)))
	off += 4
	copy(buf[off:off+len(contentBytes)], contentBytes)
	off += len(contentBytes)

	if hasVector {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
	off++

	if hasVector {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(p.Vector)))
		off += 4
		for _, f := range p.Vector {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(f))
			off += 4
		}
	}

	binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(p.Strength))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(p.Confidence))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], uint64(p.TimestampMicro))
	off += 8
	binary.LittleEndian.PutUint16(buf[off:off+2], uint16(len(semBytes)))
	off += 2
	copy(buf[off:off+len(semBytes)], semBytes)

	return buf
}

func DecodeLearnConcept(data []byte) (*LearnConceptPayload, error) {
	if len(data) < 8+4+1+8+8+8+2 {
		return nil, errTruncatedPayload
	}
	p := &LearnConceptPayload{}
	off := 0
	copy(p.Id[:], data[off:off+8])
	off += 8

	contentLen := int(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	if off+contentLen > len(data) {
		return nil, errTruncatedPayload
	}
	p.Content = string(data[off : off+contentLen])
	off += contentLen

	if off >= len(data) {
		return nil, errTruncatedPayload
	}
	hasVector := data[off] == 1
	off++

	if hasVector {
		if off+4 > len(data) {
			return nil, errTruncatedPayload
		}
		dim := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		if off+4*dim > len(data) {
			return nil, errTruncatedPayload
		}
		p.Vector = make([]float32, dim)
		for i := 0; i < dim; i++ {
			p.Vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
	}

	if off+8+8+8+2 > len(data) {
		return nil, errTruncatedPayload
	}
	p.Strength = math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8]))
	off += 8
	p.Confidence = math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8]))
	off += 8
	p.TimestampMicro = int64(binary.LittleEndian.Uint64(data[off : off+8]))
	off += 8
	semLen := int(binary.LittleEndian.Uint16(data[off : off+2]))
	off += 2
	if off+semLen > len(data) {
		return nil, errTruncatedPayload
	}
	p.SemanticType = string(data[off : off+semLen])

	return p, nil
}

// LearnAssociationPayload is the decoded body of an EntryLearnAssociation
// record.
type LearnAssociationPayload struct {
	Source     [8]byte
	Target     [8]byte
	Type       uint8
	Confidence float64
}

const learnAssociationPayloadSize = 8 + 8 + 1 + 8

func EncodeLearnAssociation(p *LearnAssociationPayload) []byte {
	buf := make([]byte, learnAssociationPayloadSize)
	copy(buf[0:8], p.Source[:])
	copy(buf[8:16], p.Target[:])
	buf[16] = p.Type
	binary.LittleEndian.PutUint64(buf[17:25], math.Float64bits(p.Confidence))
	return buf
}

func DecodeLearnAssociation(data []byte) (*LearnAssociationPayload, error) {
	if len(data) < learnAssociationPayloadSize {
		return nil, errTruncatedPayload
	}
	p := &LearnAssociationPayload{}
	copy(p.Source[:], data[0:8])
	copy(p.Target[:], data[8:16])
	p.Type = data[16]
	p.Confidence = math.Float64frombits(binary.LittleEndian.Uint64(data[17:25]))
	return p, nil
}

// StrengthenPayload is the decoded body of an EntryStrengthen record.
type StrengthenPayload struct {
	Id [8]byte
}

func EncodeStrengthen(p *StrengthenPayload) []byte {
	buf := make([]byte, 8)
	copy(buf, p.Id[:])
	return buf
}

func DecodeStrengthen(data []byte) (*StrengthenPayload, error) {
	if len(data) < 8 {
		return nil, errTruncatedPayload
	}
	p := &StrengthenPayload{}
	copy(p.Id[:], data[0:8])
	return p, nil
}

// EncodeTxnId / DecodeTxnId: Begin/Commit/Rollback payload is just the
// 16-byte transaction id (google/uuid, reused from the teacher's
// GenerateKey helper rather than a fresh random-id scheme).
func EncodeTxnId(id uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}

func DecodeTxnId(data []byte) (uuid.UUID, error) {
	var id uuid.UUID
	if len(data) < 16 {
		return id, errTruncatedPayload
	}
	copy(id[:], data[0:16])
	return id, nil
}

var errTruncatedPayload = &truncatedPayloadError{}

type truncatedPayloadError struct{}

func (e *truncatedPayloadError) Error() string { return "wal: truncated payload" }
