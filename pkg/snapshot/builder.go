package snapshot

import (
	"github.com/launix-de/NonLockingReadMap"
	"github.com/sutra-memory/engine/pkg/types"
)

// Builder assembles the next GraphSnapshot during one reconciliation cycle.
// Per the Open Question decision recorded in SPEC_FULL.md §4.3/§9 ("O(n)
// rebuild instead of a persistent trie"), a Builder starts from a plain Go
// map seeded with the previous snapshot's GetAll() contents, applies the
// drained batch's deltas to that map, then writes the whole thing into
// fresh NonLockingReadMap instances — trading a per-cycle O(n) pass for
// never having to hand-roll structural sharing on top of a dependency that
// doesn't offer it.
type Builder struct {
	concepts  map[string]*types.Concept
	edges     map[string]*types.EdgeList
	wordIndex map[string]*WordIndexEntry
}

// NewBuilder seeds a Builder from prev (nil for the very first cycle).
func NewBuilder(prev *GraphSnapshot) *Builder {
	b := &Builder{
		concepts:  make(map[string]*types.Concept),
		edges:     make(map[string]*types.EdgeList),
		wordIndex: make(map[string]*WordIndexEntry),
	}
	if prev == nil {
		return b
	}
	for _, c := range prev.Concepts.GetAll() {
		b.concepts[(*c).GetKey()] = *c
	}
	for _, e := range prev.Edges.GetAll() {
		b.edges[(*e).GetKey()] = *e
	}
	for _, w := range prev.WordIndex.GetAll() {
		b.wordIndex[(*w).GetKey()] = *w
	}
	return b
}

// ApplyLearnConcept upserts a concept (spec.md §4.4 step 4: "LearnConcept:
// upsert; update strength, vector, timestamps"). A fresh concept is
// inserted as given; an existing one is reinforced via the soft-cap growth
// functions rather than overwritten outright, and re-vectored only if a new
// embedding accompanies this learn.
func (b *Builder) ApplyLearnConcept(id types.ConceptId, content string, vector []float32, strength, confidence float64, timestampMicro int64, semanticType types.SemanticType) {
	key := id.String()
	existing := b.concepts[key]

	var c *types.Concept
	if existing != nil {
		c = existing.Clone()
		if vector != nil {
			c.Vector = append([]float32(nil), vector...)
		}
		c.Strength = types.StrengthGrowth(c.Strength, types.DefaultStrengthEta)
		c.Confidence = types.ConfidenceGrowth(c.Confidence, types.DefaultConfidenceEta)
		c.LastAccessedAt = timestampMicro
		c.AccessCount++
		if semanticType != types.SemanticUnknown {
			c.SemanticType = semanticType
		}
	} else {
		var cloned []float32
		if vector != nil {
			cloned = append([]float32(nil), vector...)
		}
		c = &types.Concept{
			Id:             id,
			Content:        content,
			Vector:         cloned,
			Strength:       types.ClampStrength(strength),
			Confidence:     types.ClampConfidence(confidence),
			AccessCount:    1,
			CreatedAt:      timestampMicro,
			LastAccessedAt: timestampMicro,
			SemanticType:   semanticType,
		}
	}
	b.concepts[key] = c

	for _, word := range Tokenize(content) {
		entry := b.wordIndex[word]
		if entry == nil {
			entry = &WordIndexEntry{Word: word}
		} else {
			entry = entry.Clone()
		}
		entry.ConceptIds = addConceptId(entry.ConceptIds, key)
		b.wordIndex[word] = entry
	}
}

// ApplyLearnAssociation appends or reinforces an edge in source's outgoing
// adjacency list (spec.md §4.4 step 4, dedup by (source,target,type)).
func (b *Builder) ApplyLearnAssociation(source, target types.ConceptId, assocType types.AssociationType, confidence float64, now int64) {
	key := source.String()
	list := b.edges[key]
	if list == nil {
		list = &types.EdgeList{SourceKey: key}
	} else {
		list = list.Clone()
	}
	list.UpsertEdge(target, assocType, confidence, now, types.DefaultConfidenceEta)
	b.edges[key] = list
}

// ApplyStrengthen bumps a concept's strength as a side effect of successful
// reasoning traversal (spec.md §4.4 step 4 and §4.6: "every concept visited
// ... is scheduled for a Strengthen entry").
func (b *Builder) ApplyStrengthen(id types.ConceptId, now int64) {
	key := id.String()
	existing := b.concepts[key]
	if existing == nil {
		return // concept since deleted by maintenance; nothing to strengthen
	}
	c := existing.Clone()
	c.Strength = types.StrengthGrowth(c.Strength, types.DefaultStrengthEta)
	c.LastAccessedAt = now
	c.AccessCount++
	b.concepts[key] = c
}

// RemoveConcept drops a concept and its outgoing edges. Nothing in the
// engine calls it: the reconciler applies no decay or pruning.
func (b *Builder) RemoveConcept(id types.ConceptId) {
	key := id.String()
	delete(b.concepts, key)
	delete(b.edges, key)
}

// Finish materializes the accumulated deltas into a new immutable
// GraphSnapshot tagged with sequence and timestamp.
func (b *Builder) Finish(sequence uint64, timestamp int64) *GraphSnapshot {
	snap := &GraphSnapshot{
		Concepts:  NonLockingReadMap.New[*types.Concept, string](),
		Edges:     NonLockingReadMap.New[*types.EdgeList, string](),
		WordIndex: NonLockingReadMap.New[*WordIndexEntry, string](),
		Sequence:  sequence,
		Timestamp: timestamp,
	}
	for _, c := range b.concepts {
		snap.Concepts.Set(&c)
	}
	for _, e := range b.edges {
		snap.Edges.Set(&e)
	}
	for _, w := range b.wordIndex {
		snap.WordIndex.Set(&w)
	}
	return snap
}
