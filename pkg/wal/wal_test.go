package wal

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestHeaderEncoding(t *testing.T) {
	original := Header{
		Magic:      Magic,
		Version:    Version,
		EntryType:  EntryLearnConcept,
		LSN:        1024,
		PayloadLen: 50,
		CRC32:      0x12345678,
	}

	var buf [HeaderSize]byte
	original.Encode(buf[:])

	var decoded Header
	decoded.Decode(buf[:])

	if decoded != original {
		t.Errorf("header decoding mismatch.\nexpected: %+v\ngot: %+v", original, decoded)
	}
}

func TestChecksum(t *testing.T) {
	data := []byte("hello sutra world")
	crc := ChecksumPayload(data)

	if !VerifyPayload(data, crc) {
		t.Error("checksum verification failed for valid data")
	}
	if VerifyPayload([]byte("corrupted"), crc) {
		t.Error("checksum verification passed for corrupted data")
	}
}

func TestEntryPool(t *testing.T) {
	entry := AcquireEntry()
	if entry == nil {
		t.Fatal("failed to acquire entry")
	}
	if cap(entry.Payload) < 4096 {
		t.Errorf("expected payload cap >= 4096, got %d", cap(entry.Payload))
	}

	entry.Header.LSN = 999
	entry.Payload = append(entry.Payload, []byte("test")...)
	ReleaseEntry(entry)

	entry2 := AcquireEntry()
	if len(entry2.Payload) != 0 {
		t.Error("released entry payload length should be 0")
	}
	if entry2.Header.LSN != 0 {
		t.Error("released entry header should be zeroed")
	}
	ReleaseEntry(entry2)
}

func TestEntryWriteTo(t *testing.T) {
	entry := AcquireEntry()
	defer ReleaseEntry(entry)

	payload := []byte("logging data")
	entry.Header = Header{
		Magic:      Magic,
		Version:    Version,
		EntryType:  EntryLearnConcept,
		LSN:        1,
		PayloadLen: uint32(len(payload)),
		CRC32:      ChecksumPayload(payload),
	}
	entry.Payload = append(entry.Payload, payload...)

	var buf bytes.Buffer
	n, err := entry.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	expectedSize := int64(HeaderSize + len(payload))
	if n != expectedSize {
		t.Errorf("expected to write %d bytes, wrote %d", expectedSize, n)
	}
	if buf.Len() != int(expectedSize) {
		t.Errorf("buffer length mismatch: got %d, want %d", buf.Len(), expectedSize)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.BufferSize <= 0 {
		t.Error("expected positive BufferSize")
	}
	if opts.SyncPolicy != SyncEveryWrite {
		t.Error("expected SyncEveryWrite as default (durability-first)")
	}
	if opts.SyncIntervalDuration <= 0 {
		t.Error("expected positive SyncIntervalDuration")
	}
}

func TestFromFsyncFlag(t *testing.T) {
	if FromFsyncFlag(true).SyncPolicy != SyncEveryWrite {
		t.Error("wal_fsync=true should select SyncEveryWrite")
	}
	if FromFsyncFlag(false).SyncPolicy != SyncBatch {
		t.Error("wal_fsync=false should select SyncBatch")
	}
}

func TestLearnConceptPayloadRoundTrip(t *testing.T) {
	p := &LearnConceptPayload{
		Content:        "neural networks",
		Vector:         []float32{0.1, 0.2, 0.3},
		Strength:       1.0,
		Confidence:     0.8,
		TimestampMicro: 1234567,
		SemanticType:   "entity",
	}
	p.Id[0] = 0xAB

	encoded := EncodeLearnConcept(p)
	decoded, err := DecodeLearnConcept(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.Content != p.Content {
		t.Errorf("content mismatch: got %q want %q", decoded.Content, p.Content)
	}
	if len(decoded.Vector) != len(p.Vector) {
		t.Fatalf("vector length mismatch: got %d want %d", len(decoded.Vector), len(p.Vector))
	}
	for i := range p.Vector {
		if decoded.Vector[i] != p.Vector[i] {
			t.Errorf("vector[%d] mismatch: got %v want %v", i, decoded.Vector[i], p.Vector[i])
		}
	}
	if decoded.Strength != p.Strength || decoded.Confidence != p.Confidence {
		t.Error("strength/confidence mismatch")
	}
	if decoded.SemanticType != p.SemanticType {
		t.Errorf("semantic type mismatch: got %q want %q", decoded.SemanticType, p.SemanticType)
	}
	if decoded.Id != p.Id {
		t.Error("id mismatch")
	}
}

func TestLearnConceptPayloadNoVector(t *testing.T) {
	p := &LearnConceptPayload{Content: "unembedded concept"}
	encoded := EncodeLearnConcept(p)
	decoded, err := DecodeLearnConcept(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Vector != nil {
		t.Errorf("expected nil vector, got %v", decoded.Vector)
	}
}

func TestLearnConceptPayloadTruncated(t *testing.T) {
	p := &LearnConceptPayload{Content: "truncate me", Vector: []float32{1, 2}}
	encoded := EncodeLearnConcept(p)
	if _, err := DecodeLearnConcept(encoded[:len(encoded)-4]); err == nil {
		t.Error("expected error decoding truncated payload")
	}
}

func TestLearnAssociationPayloadRoundTrip(t *testing.T) {
	p := &LearnAssociationPayload{Type: 2, Confidence: 0.55}
	p.Source[0] = 1
	p.Target[0] = 2

	encoded := EncodeLearnAssociation(p)
	decoded, err := DecodeLearnAssociation(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Source != p.Source || decoded.Target != p.Target {
		t.Error("source/target mismatch")
	}
	if decoded.Type != p.Type || decoded.Confidence != p.Confidence {
		t.Error("type/confidence mismatch")
	}
}

func TestStrengthenPayloadRoundTrip(t *testing.T) {
	p := &StrengthenPayload{}
	p.Id[3] = 0x99

	encoded := EncodeStrengthen(p)
	decoded, err := DecodeStrengthen(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Id != p.Id {
		t.Error("id mismatch")
	}
}

func TestTxnIdRoundTrip(t *testing.T) {
	id := uuid.New()
	encoded := EncodeTxnId(id)
	decoded, err := DecodeTxnId(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != id {
		t.Error("txn id mismatch")
	}
}
