package store

import (
	"testing"

	"github.com/sutra-memory/engine/pkg/types"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	h := Header{Version: Version, ConceptCount: 3, EdgeCount: 5, VectorCount: 2}
	buf := encodeHeader(h)
	if len(buf) != HeaderSize {
		t.Fatalf("expected header size %d, got %d", HeaderSize, len(buf))
	}
	got, err := decodeHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Errorf("expected %+v, got %+v", h, got)
	}
}

func TestDecodeHeaderRejectsTruncated(t *testing.T) {
	if _, err := decodeHeader(make([]byte, 10)); err == nil {
		t.Fatal("expected an error for a truncated header")
	}
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	buf := encodeHeader(Header{Version: Version})
	buf[0] = 'X'
	if _, err := decodeHeader(buf); err == nil {
		t.Fatal("expected an error for a bad magic")
	}
}

func TestDecodeHeaderRejectsVersionMismatch(t *testing.T) {
	buf := encodeHeader(Header{Version: Version + 1})
	if _, err := decodeHeader(buf); err == nil {
		t.Fatal("expected an error for a version mismatch")
	}
}

func TestEncodeDecodeConceptRoundTrip(t *testing.T) {
	c := &types.Concept{
		Id:          types.DeriveConceptId("dog"),
		Strength:    4.5,
		Confidence:  0.82,
		AccessCount: 7,
		CreatedAt:   1_700_000_000 * 1_000_000,
	}
	content := []byte("a loyal companion")
	buf := encodeConcept(c, content)

	dc, err := decodeConcept(buf)
	if err != nil {
		t.Fatal(err)
	}
	if dc.id != c.Id {
		t.Errorf("id mismatch: got %v want %v", dc.id, c.Id)
	}
	if dc.content != string(content) {
		t.Errorf("content mismatch: got %q want %q", dc.content, string(content))
	}
	if dc.accessCount != c.AccessCount {
		t.Errorf("access count mismatch: got %d want %d", dc.accessCount, c.AccessCount)
	}
	if dc.createdAt != c.CreatedAt {
		t.Errorf("created_at mismatch: got %d want %d", dc.createdAt, c.CreatedAt)
	}
	if dc.consumed != len(buf) {
		t.Errorf("expected consumed to equal record length, got %d want %d", dc.consumed, len(buf))
	}
}

func TestDecodeConceptRejectsTruncatedContent(t *testing.T) {
	c := &types.Concept{Id: types.DeriveConceptId("dog")}
	buf := encodeConcept(c, []byte("hello world"))
	if _, err := decodeConcept(buf[:len(buf)-3]); err == nil {
		t.Fatal("expected an error for truncated content")
	}
}

func TestEncodeDecodeEdgeRoundTrip(t *testing.T) {
	source := types.DeriveConceptId("dog")
	e := types.Edge{Target: types.DeriveConceptId("mammal"), Type: types.Hierarchical, Confidence: 0.93}
	buf := encodeEdge(source, e)
	if len(buf) != edgeRecordSize {
		t.Fatalf("expected %d bytes, got %d", edgeRecordSize, len(buf))
	}
	de, err := decodeEdge(buf)
	if err != nil {
		t.Fatal(err)
	}
	if de.source != source || de.target != e.Target {
		t.Errorf("endpoint mismatch: got source=%v target=%v", de.source, de.target)
	}
	if de.assocType != e.Type {
		t.Errorf("expected association type to survive the round trip, got %v want %v", de.assocType, e.Type)
	}
	if de.confidence < 0.92 || de.confidence > 0.94 {
		t.Errorf("confidence drifted too far in a float32 round trip: got %v", de.confidence)
	}
}

func TestEncodeDecodeVectorRoundTrip(t *testing.T) {
	id := types.DeriveConceptId("dog")
	vec := []float32{0.1, 0.2, 0.3, -0.4}
	buf := encodeVector(id, vec)
	dv, err := decodeVector(buf)
	if err != nil {
		t.Fatal(err)
	}
	if dv.id != id {
		t.Errorf("id mismatch")
	}
	if len(dv.vector) != len(vec) {
		t.Fatalf("expected %d dims, got %d", len(vec), len(dv.vector))
	}
	for i := range vec {
		if dv.vector[i] != vec[i] {
			t.Errorf("dim %d mismatch: got %v want %v", i, dv.vector[i], vec[i])
		}
	}
	if dv.consumed != len(buf) {
		t.Errorf("expected consumed to equal record length, got %d want %d", dv.consumed, len(buf))
	}
}

func TestDecodeVectorRejectsTruncatedData(t *testing.T) {
	buf := encodeVector(types.DeriveConceptId("dog"), []float32{1, 2, 3})
	if _, err := decodeVector(buf[:len(buf)-2]); err == nil {
		t.Fatal("expected an error for truncated vector data")
	}
}
