package reasoning

import (
	"github.com/sutra-memory/engine/pkg/snapshot"
	"github.com/sutra-memory/engine/pkg/types"
)

// concept derives the deterministic id for a piece of content, matching
// what LearningPipeline would have stored it under.
func concept(content string) types.ConceptId {
	return types.DeriveConceptId(content)
}

// buildGraph assembles a GraphSnapshot from a list of (content) concepts
// and (from, to, type, confidence) edges, for deterministic traversal
// tests that don't need the WAL/WriteLog/Builder plumbing.
func buildGraph(contents []string, edges []testEdge) *snapshot.GraphSnapshot {
	b := snapshot.NewBuilder(nil)
	for _, c := range contents {
		b.ApplyLearnConcept(concept(c), c, nil, 5.0, 0.8, 1000, types.SemanticEntity)
	}
	for _, e := range edges {
		b.ApplyLearnAssociation(concept(e.from), concept(e.to), e.assocType, e.confidence, 1000)
	}
	return b.Finish(1, 1000)
}

type testEdge struct {
	from, to   string
	assocType  types.AssociationType
	confidence float64
}
