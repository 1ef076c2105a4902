package types

// AssociationType is the wire-contract edge type. The integer encoding is
// part of the binary protocol (spec §3/§6) and must never change.
type AssociationType uint8

const (
	Semantic      AssociationType = 0
	Causal        AssociationType = 1
	Temporal      AssociationType = 2
	Hierarchical  AssociationType = 3
	Compositional AssociationType = 4
)

func (t AssociationType) String() string {
	switch t {
	case Semantic:
		return "semantic"
	case Causal:
		return "causal"
	case Temporal:
		return "temporal"
	case Hierarchical:
		return "hierarchical"
	case Compositional:
		return "compositional"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the five fixed wire codes.
func (t AssociationType) Valid() bool {
	return t <= Compositional
}

// TypeWeight is the fixed per-hop weight contributed by an association's
// type during confidence propagation (§4.7, "fixed constants, part of the
// algorithmic contract").
func (t AssociationType) TypeWeight() float64 {
	switch t {
	case Semantic:
		return 1.0
	case Hierarchical:
		return 0.9
	case Temporal:
		return 0.7
	case Causal:
		return 1.1
	case Compositional:
		return 0.8
	default:
		return 1.0
	}
}

// Association is a directed, typed edge between two concepts (§3).
type Association struct {
	Source              ConceptId
	Target              ConceptId
	Type                AssociationType
	Confidence          float64
	Weight              float64
	LastUsedAt          int64 // microseconds since epoch
	ReinforcementCount  uint64
}

// Edge is the per-source adjacency record stored in the snapshot's outgoing
// edge table: (target, confidence, type) tuples for one source concept,
// keyed by the source's textual ConceptId (§3 GraphSnapshot).
type Edge struct {
	Target             ConceptId
	Type               AssociationType
	Confidence         float64
	Weight             float64
	LastUsedAt         int64
	ReinforcementCount uint64
}

// EdgeList is the mutable-at-reconcile, immutable-once-published adjacency
// list for one source concept.
type EdgeList struct {
	SourceKey string
	Edges     []Edge
}

func (e *EdgeList) GetKey() string { return e.SourceKey }

func (e *EdgeList) ComputeSize() uint {
	return uint(len(e.SourceKey) + len(e.Edges)*48)
}

// Clone returns a copy of the edge list with its own backing array, safe to
// append/mutate without affecting the published version.
func (e *EdgeList) Clone() *EdgeList {
	cp := &EdgeList{SourceKey: e.SourceKey}
	cp.Edges = append([]Edge(nil), e.Edges...)
	return cp
}

// UpsertEdge implements the dedup-by-(source,target,type) rule of §4.4 step
// 4: if an edge to the same (target,type) exists, its weight/confidence are
// reinforced in place; otherwise a new edge is appended. weightEta controls
// how fast weight approaches its ceiling (SPEC_FULL.md §9.1).
func (e *EdgeList) UpsertEdge(target ConceptId, assocType AssociationType, confidence float64, now int64, weightEta float64) {
	for i := range e.Edges {
		if e.Edges[i].Target == target && e.Edges[i].Type == assocType {
			e.Edges[i].Weight = weightSoftCap(e.Edges[i].Weight, weightEta)
			e.Edges[i].Confidence = ConfidenceGrowth(e.Edges[i].Confidence, DefaultConfidenceEta)
			e.Edges[i].LastUsedAt = now
			e.Edges[i].ReinforcementCount++
			return
		}
	}
	e.Edges = append(e.Edges, Edge{
		Target:             target,
		Type:               assocType,
		Confidence:         ClampConfidence(confidence),
		Weight:             1.0,
		LastUsedAt:         now,
		ReinforcementCount: 1,
	})
}

// WeightCeiling bounds association weight growth (no hard spec value given;
// a generous soft ceiling keeps repeatedly-reinforced edges from growing
// without bound while still reflecting reuse).
const WeightCeiling = 100.0

func weightSoftCap(old, eta float64) float64 {
	grown := old + (1-old/WeightCeiling)*eta
	if grown > WeightCeiling {
		return WeightCeiling
	}
	if grown < 0 {
		return 0
	}
	return grown
}
