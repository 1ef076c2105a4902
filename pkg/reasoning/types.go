// Package reasoning implements the ReasoningEngine (C7): the read-only
// query pipeline that turns a natural-language question into one or more
// explainable graph paths and a consensus answer (spec.md §4.7). There is
// no teacher analogue for multi-path graph search with consensus
// aggregation — the pipeline below is a new algorithm, built from the
// spec's formulas directly, but it is wired through the same ReadView/
// VectorIndex/Strengthen seams the rest of the engine already exposes so it
// never touches storage directly.
package reasoning

import "github.com/sutra-memory/engine/pkg/types"

// Step is one hop in a discovered path: the edge walked and the concept it
// arrived at.
type Step struct {
	Concept    types.ConceptId
	EdgeType   types.AssociationType
	Confidence float64 // the edge's own confidence, not the running path confidence
	Running    float64 // cumulative path confidence immediately after this hop
}

// Path is one complete route from a seed concept to a target concept,
// together with the running confidence accumulated by the per-hop formula
// of spec.md §4.7, with the edge type's weight folded in
// ("new = current * edge_confidence * type_weight * alpha", see propagate).
type Path struct {
	Seed       types.ConceptId
	Steps      []Step
	Confidence float64
	Strategy   string // "best_first", "breadth_first", or "bidirectional"
}

// Target returns the concept the path terminates at, or the seed itself if
// the path has no steps (a seed that already satisfied the query).
func (p *Path) Target() types.ConceptId {
	if len(p.Steps) == 0 {
		return p.Seed
	}
	return p.Steps[len(p.Steps)-1].Concept
}

// Visited returns every concept id on the path, including the seed, in
// traversal order. Used for the post-answer Strengthen side effect.
func (p *Path) Visited() []types.ConceptId {
	ids := make([]types.ConceptId, 0, len(p.Steps)+1)
	ids = append(ids, p.Seed)
	for _, s := range p.Steps {
		ids = append(ids, s.Concept)
	}
	return ids
}

// Score is the confidence value reported to consensus aggregation. Short
// paths use the plain running product; for paths of two hops or more a
// harmonic-mean variant is used instead (spec.md §4.7: "for longer paths a
// harmonic-mean variant is used when computing the score reported to
// aggregation"), since the harmonic mean punishes a single weak hop more
// than the plain product does at longer lengths.
func (p *Path) Score() float64 {
	if len(p.Steps) < 2 {
		return p.Confidence
	}
	var reciprocalSum float64
	for _, s := range p.Steps {
		if s.Running <= 0 {
			return 0
		}
		reciprocalSum += 1 / s.Running
	}
	return float64(len(p.Steps)) / reciprocalSum
}

// TypeFingerprint returns a stable, order-sensitive summary of the edge
// types walked, used to diversify and cluster paths (SPEC_FULL.md §9.3
// Open Question decision: FNV-1a over the type byte sequence).
func (p *Path) TypeFingerprint() uint64 {
	h := fnvOffset
	for _, s := range p.Steps {
		h ^= uint64(s.EdgeType)
		h *= fnvPrime
	}
	return h
}

const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

// SeedCandidate is one concept admitted as a starting point for path
// search, with the score used to rank and cap the seed set (spec.md §4.7
// step 1).
type SeedCandidate struct {
	Concept types.ConceptId
	Score   float64
}

// Options configures one Reason call. Zero value is invalid; use
// DefaultOptions.
type Options struct {
	SeedCount          int     // k_seed, default 10
	MaxDepth           int     // default 6
	PathsPerSeedTarget int     // k, default 3
	Alpha              float64 // per-hop confidence decay, default 0.9
	MinAnswerScore     float64 // quality gate threshold, default 0.35
	MaxAlternatives    int     // default 4
}

// DefaultOptions mirrors spec.md §4.7's stated defaults.
func DefaultOptions() Options {
	return Options{
		SeedCount:          10,
		MaxDepth:           6,
		PathsPerSeedTarget: 3,
		Alpha:              0.9,
		MinAnswerScore:     0.35,
		MaxAlternatives:    4,
	}
}

// Answer is one clustered, scored candidate response (spec.md §4.7's
// Multi-Path Plan Aggregation output).
type Answer struct {
	Concept    types.ConceptId
	Score      float64
	Support    []*Path // the paths whose target clustered into this answer
}

// Result is the full outcome of a Reason call.
type Result struct {
	Confident   bool
	Primary     *Answer
	Alternatives []*Answer
	Paths       []*Path // every path discovered, regardless of cluster
}
