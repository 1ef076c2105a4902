package writelog

import (
	"github.com/sutra-memory/engine/pkg/types"
	"github.com/sutra-memory/engine/pkg/wal"
)

// Kind tags which variant of WriteEntry is populated. Reuses wal.EntryType
// directly rather than declaring a parallel enum, since every WriteLog
// entry eventually becomes (or mirrors) one WAL record of the same type.
type Kind = wal.EntryType

// ConceptWrite is the WriteLog's LearnConcept variant (spec.md §3:
// "LearnConcept{ seq, id, content, vector?, strength, confidence,
// timestamp }").
type ConceptWrite struct {
	Id             types.ConceptId
	Content        string
	Vector         []float32
	Strength       float64
	Confidence     float64
	TimestampMicro int64
	SemanticType   types.SemanticType
}

// AssociationWrite is the WriteLog's LearnAssociation variant.
type AssociationWrite struct {
	Source     types.ConceptId
	Target     types.ConceptId
	Type       types.AssociationType
	Confidence float64
}

// StrengthenWrite is the WriteLog's Strengthen variant.
type StrengthenWrite struct {
	Id types.ConceptId
}

// WriteEntry is the tagged variant pushed through the WriteLog, exactly one
// of Concept/Association/Strengthen populated depending on Kind. Begin/
// Commit/Rollback framing never reaches the WriteLog: per spec.md §4.9 the
// 2PC coordinator only admits a transaction's buffered ops here once its
// CommitTxn has already been written to the WAL.
type WriteEntry struct {
	Seq         uint64
	Kind        Kind
	Concept     *ConceptWrite
	Association *AssociationWrite
	Strengthen  *StrengthenWrite
}

// NewLearnConcept builds a LearnConcept WriteEntry. seq must come from the
// same SequenceAllocator used for the matching WAL append.
func NewLearnConcept(seq uint64, c *ConceptWrite) *WriteEntry {
	return &WriteEntry{Seq: seq, Kind: wal.EntryLearnConcept, Concept: c}
}

// NewLearnAssociation builds a LearnAssociation WriteEntry.
func NewLearnAssociation(seq uint64, a *AssociationWrite) *WriteEntry {
	return &WriteEntry{Seq: seq, Kind: wal.EntryLearnAssociation, Association: a}
}

// NewStrengthen builds a Strengthen WriteEntry.
func NewStrengthen(seq uint64, s *StrengthenWrite) *WriteEntry {
	return &WriteEntry{Seq: seq, Kind: wal.EntryStrengthen, Strengthen: s}
}
