package wal

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sutra-memory/engine/internal/errorsx"
)

// maxPayloadLen guards against an absurd allocation if garbage bytes are
// misread as a length (same 1GB ceiling the teacher's reader used).
const maxPayloadLen = 1024 * 1024 * 1024

// Reader reads entries sequentially from one WAL file. Shape adapted from
// the teacher's WALReader.
type Reader struct {
	file   *os.File
	offset int64
}

// NewReader opens an existing WAL file for sequential reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errorsx.Wrap(errorsx.DurabilityError, err, "open wal file for read")
	}
	return &Reader{file: f}, nil
}

// ReadEntry reads the next entry from the log. Returns io.EOF when no more
// complete records remain. A header or payload that is truncated mid-record
// (a torn write from a crash) is reported as io.ErrUnexpectedEOF rather than
// a hard error — spec §4.1 requires tolerating this by discarding the
// partial trailing record, not rejecting the whole file.
func (r *Reader) ReadEntry() (*Entry, error) {
	headerBuf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r.file, headerBuf)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	if n != HeaderSize {
		return nil, io.ErrUnexpectedEOF
	}

	var header Header
	header.Decode(headerBuf)

	if header.Magic != Magic {
		return nil, errorsx.New(errorsx.Corruption, "wal: bad magic number")
	}

	if header.PayloadLen > maxPayloadLen {
		return nil, errorsx.New(errorsx.Corruption, "wal: payload length too large")
	}

	entry := AcquireEntry()
	entry.Header = header

	if uint32(cap(entry.Payload)) < header.PayloadLen {
		entry.Payload = make([]byte, header.PayloadLen)
	} else {
		entry.Payload = entry.Payload[:header.PayloadLen]
	}

	if header.PayloadLen > 0 {
		if _, err := io.ReadFull(r.file, entry.Payload); err != nil {
			ReleaseEntry(entry)
			return nil, io.ErrUnexpectedEOF
		}
	}

	if !VerifyPayload(entry.Payload, header.CRC32) {
		ReleaseEntry(entry)
		return nil, errorsx.New(errorsx.Corruption, "wal: checksum mismatch")
	}

	r.offset += int64(HeaderSize) + int64(header.PayloadLen)
	return entry, nil
}

// Offset returns the byte offset of the next record to be read. After a
// truncating ReadEntry failure, this marks the valid prefix of the file.
func (r *Reader) Offset() int64 { return r.offset }

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// DecodedEntry is one committed mutation recovered by Replay, tagged by
// EntryType with exactly one of the typed payload fields populated.
type DecodedEntry struct {
	LSN     uint64
	Type    EntryType
	Concept *LearnConceptPayload
	Assoc   *LearnAssociationPayload
	Strengthen *StrengthenPayload
}

// Replay reads every record in the WAL file at path and returns the
// committed mutations in original order (spec §4.1: "Replay discards
// incomplete transactions"). Records written between a BeginTxn and its
// matching CommitTxn are buffered and only appended to the result once the
// CommitTxn for that transaction is seen; a RollbackTxn, or reaching EOF
// before a CommitTxn arrives (the writer crashed mid-transaction), discards
// the buffered records instead. A torn trailing record — the last write was
// interrupted by a crash — stops replay at the last valid offset rather
// than failing the whole recovery; ValidByteOffset on the returned result
// tells the caller where to truncate the file before appending again.
func Replay(path string) (*ReplayResult, error) {
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return &ReplayResult{}, nil
	}

	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	result := &ReplayResult{}
	pending := map[uuid.UUID][]*DecodedEntry{}
	var pendingOrder []uuid.UUID

	for {
		validOffset := r.Offset()
		entry, err := r.ReadEntry()
		if err == io.EOF {
			result.ValidByteOffset = validOffset
			break
		}
		if err != nil {
			// Torn or corrupt trailing record: stop here, keep everything
			// decoded up to (but not including) this record.
			result.ValidByteOffset = validOffset
			result.Truncated = true
			break
		}

		switch entry.Header.EntryType {
		case EntryBeginTxn:
			txnID, derr := DecodeTxnId(entry.Payload)
			ReleaseEntry(entry)
			if derr != nil {
				result.ValidByteOffset = validOffset
				result.Truncated = true
				goto done
			}
			if _, exists := pending[txnID]; !exists {
				pendingOrder = append(pendingOrder, txnID)
			}
			pending[txnID] = nil

		case EntryCommitTxn:
			txnID, derr := DecodeTxnId(entry.Payload)
			ReleaseEntry(entry)
			if derr != nil {
				result.ValidByteOffset = validOffset
				result.Truncated = true
				goto done
			}
			result.Entries = append(result.Entries, pending[txnID]...)
			delete(pending, txnID)

		case EntryRollbackTxn:
			txnID, derr := DecodeTxnId(entry.Payload)
			ReleaseEntry(entry)
			if derr != nil {
				result.ValidByteOffset = validOffset
				result.Truncated = true
				goto done
			}
			delete(pending, txnID)

		case EntryLearnConcept, EntryLearnAssociation, EntryStrengthen:
			decoded, derr := decodeMutation(entry)
			ReleaseEntry(entry)
			if derr != nil {
				result.ValidByteOffset = validOffset
				result.Truncated = true
				goto done
			}
			if txnID, ok := activeTxn(pendingOrder, pending); ok {
				pending[txnID] = append(pending[txnID], decoded)
			} else {
				result.Entries = append(result.Entries, decoded)
			}

		default:
			ReleaseEntry(entry)
			result.ValidByteOffset = validOffset
			result.Truncated = true
			goto done
		}
	}

done:
	// Any transactions still pending at EOF never committed; discard them
	// (spec §4.1: replay must not surface uncommitted writes).
	return result, nil
}

// activeTxn is a placeholder hook for nested/implicit transaction tracking.
// In the current single-writer model only one transaction is open at a
// time, so this simply reports the most recently begun, not-yet-resolved
// transaction, if any.
func activeTxn(order []uuid.UUID, pending map[uuid.UUID][]*DecodedEntry) (uuid.UUID, bool) {
	for i := len(order) - 1; i >= 0; i-- {
		if _, ok := pending[order[i]]; ok {
			return order[i], true
		}
	}
	var zero uuid.UUID
	return zero, false
}

func decodeMutation(entry *Entry) (*DecodedEntry, error) {
	d := &DecodedEntry{LSN: entry.Header.LSN, Type: entry.Header.EntryType}
	var err error
	switch entry.Header.EntryType {
	case EntryLearnConcept:
		d.Concept, err = DecodeLearnConcept(entry.Payload)
	case EntryLearnAssociation:
		d.Assoc, err = DecodeLearnAssociation(entry.Payload)
	case EntryStrengthen:
		d.Strengthen, err = DecodeStrengthen(entry.Payload)
	}
	return d, err
}

// ReplayResult is the outcome of a full WAL replay.
type ReplayResult struct {
	Entries []*DecodedEntry
	// ValidByteOffset is the length of the verified-good prefix of the
	// file; bytes beyond it (if Truncated) are a torn trailing record.
	ValidByteOffset int64
	Truncated       bool
}
