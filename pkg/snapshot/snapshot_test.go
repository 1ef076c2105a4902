package snapshot

import (
	"testing"

	"github.com/sutra-memory/engine/pkg/types"
)

func TestEmptySnapshot(t *testing.T) {
	snap := Empty()
	if snap.ConceptCount() != 0 {
		t.Errorf("expected empty snapshot, got %d concepts", snap.ConceptCount())
	}
}

func TestBuilderInsertsNewConcept(t *testing.T) {
	id := types.DeriveConceptId("neural networks")
	b := NewBuilder(nil)
	b.ApplyLearnConcept(id, "neural networks", []float32{0.1, 0.2}, 1.0, 0.5, 1000, types.SemanticEntity)

	snap := b.Finish(1, 1000)
	c := snap.Concept(id)
	if c == nil {
		t.Fatal("expected concept to be present")
	}
	if c.Content != "neural networks" {
		t.Errorf("unexpected content: %q", c.Content)
	}
	if c.AccessCount != 1 {
		t.Errorf("expected AccessCount 1 on first insert, got %d", c.AccessCount)
	}
}

func TestBuilderReinforcesExistingConcept(t *testing.T) {
	id := types.DeriveConceptId("neural networks")
	base := Empty()
	seed := &types.Concept{Id: id, Content: "neural networks", Strength: 1.0, Confidence: 0.5, AccessCount: 1}
	base.Concepts.Set(&seed)

	b := NewBuilder(base)
	b.ApplyLearnConcept(id, "neural networks", nil, 1.0, 0.5, 2000, types.SemanticUnknown)
	snap := b.Finish(2, 2000)

	c := snap.Concept(id)
	if c.AccessCount != 2 {
		t.Errorf("expected AccessCount bumped to 2, got %d", c.AccessCount)
	}
	if c.Strength <= 1.0 {
		t.Errorf("expected strength to grow past 1.0, got %v", c.Strength)
	}
}

func TestBuilderWordIndex(t *testing.T) {
	id := types.DeriveConceptId("deep learning models")
	b := NewBuilder(nil)
	b.ApplyLearnConcept(id, "deep learning models", nil, 1.0, 0.5, 1000, types.SemanticUnknown)
	snap := b.Finish(1, 1000)

	ids := snap.ConceptIdsForWord("learning")
	if len(ids) != 1 || ids[0] != id.String() {
		t.Errorf("expected word index to map 'learning' to %s, got %v", id.String(), ids)
	}
}

func TestBuilderAssociationDedup(t *testing.T) {
	source := types.DeriveConceptId("source")
	target := types.DeriveConceptId("target")

	b := NewBuilder(nil)
	b.ApplyLearnAssociation(source, target, types.Semantic, 0.5, 1000)
	b.ApplyLearnAssociation(source, target, types.Semantic, 0.5, 2000)
	snap := b.Finish(1, 2000)

	edges := snap.OutgoingEdges(source)
	if edges == nil || len(edges.Edges) != 1 {
		t.Fatalf("expected exactly 1 deduplicated edge, got %+v", edges)
	}
	if edges.Edges[0].ReinforcementCount != 2 {
		t.Errorf("expected reinforcement count 2, got %d", edges.Edges[0].ReinforcementCount)
	}
}

func TestBuilderDanglingEdgeTargetAllowed(t *testing.T) {
	source := types.DeriveConceptId("source-only")
	target := types.DeriveConceptId("never-learned")

	b := NewBuilder(nil)
	b.ApplyLearnConcept(source, "source-only", nil, 1.0, 0.5, 1000, types.SemanticUnknown)
	b.ApplyLearnAssociation(source, target, types.Causal, 0.5, 1000)
	snap := b.Finish(1, 1000)

	if snap.Concept(source) == nil {
		t.Fatal("source concept must exist (invariant I5)")
	}
	if snap.Concept(target) != nil {
		t.Fatal("target was never learned and must be absent")
	}
	edges := snap.OutgoingEdges(source)
	if edges == nil || len(edges.Edges) != 1 || edges.Edges[0].Target != target {
		t.Fatalf("expected one dangling edge to %s, got %+v", target, edges)
	}
}

func TestBuilderStrengthenMissingConceptIsNoop(t *testing.T) {
	id := types.DeriveConceptId("gone")
	b := NewBuilder(nil)
	b.ApplyStrengthen(id, 1000) // no panic, no insertion
	snap := b.Finish(1, 1000)
	if snap.ConceptCount() != 0 {
		t.Errorf("expected strengthen of a missing concept to be a no-op")
	}
}

func TestReadViewPublishSwap(t *testing.T) {
	rv := NewReadView(Empty())
	first := rv.Load()

	second := Empty()
	second.Sequence = 1
	old := rv.Publish(second)

	if old != first {
		t.Error("Publish should return the previously published snapshot")
	}
	if rv.Load() != second {
		t.Error("Load should return the newly published snapshot")
	}
	if first.Sequence != 0 {
		t.Error("the old snapshot reference must remain valid and untouched for in-flight readers")
	}
}
