package types

// Clamp bounds, per invariant I6.
const (
	MinStrength   = 1.0
	MaxStrength   = 10.0
	MinConfidence = 0.0
	MaxConfidence = 1.0
)

// ClampStrength enforces I6 for the concept strength axis.
func ClampStrength(v float64) float64 {
	if v < MinStrength {
		return MinStrength
	}
	if v > MaxStrength {
		return MaxStrength
	}
	return v
}

// ClampConfidence enforces I6 for any confidence-shaped value (concept
// confidence, association confidence).
func ClampConfidence(v float64) float64 {
	if v < MinConfidence {
		return MinConfidence
	}
	if v > MaxConfidence {
		return MaxConfidence
	}
	return v
}

// Default growth rates for the soft-cap functions below, per the Open
// Question decision recorded in SPEC_FULL.md §9.1.
const (
	DefaultStrengthEta   = 0.5
	DefaultConfidenceEta = 0.3
)

// StrengthGrowth applies the soft-cap growth function chosen for Open
// Question "exact soft-cap function for strength" (SPEC_FULL.md §9.1):
// new = old + (1 - old/Max) * eta — monotone, concave, converges to Max.
func StrengthGrowth(old, eta float64) float64 {
	grown := old + (1-old/MaxStrength)*eta
	return ClampStrength(grown)
}

// ConfidenceGrowth applies the same shaped growth to confidence/weight-like
// values bounded in [0,1]: new = old + (1 - old) * eta.
func ConfidenceGrowth(old, eta float64) float64 {
	grown := old + (1-old)*eta
	return ClampConfidence(grown)
}

// SemanticType is an opaque classifier tag, per spec §3 ("opaque to storage").
type SemanticType string

// Well-known semantic types the bundled classifier (pkg/classifier) produces.
// Storage treats any non-empty string as valid; these are just the values
// the shipped classifier happens to emit.
const (
	SemanticUnknown    SemanticType = ""
	SemanticEntity     SemanticType = "entity"
	SemanticEvent      SemanticType = "event"
	SemanticProperty   SemanticType = "property"
	SemanticRelation   SemanticType = "relation"
	SemanticDefinition SemanticType = "definition"
)

// Concept is a node in the graph, derived from a piece of text (§3).
type Concept struct {
	Id              ConceptId
	Content         string
	Vector          []float32 // nil if not embedded
	Strength        float64
	Confidence      float64
	AccessCount     uint64
	CreatedAt       int64 // microseconds since epoch
	LastAccessedAt  int64 // microseconds since epoch
	SemanticType    SemanticType
}

// GetKey satisfies NonLockingReadMap's KeyGetter[string] interface: the
// concept table is keyed by the textual ConceptId so the ordering key type
// satisfies constraints.Ordered.
func (c *Concept) GetKey() string { return c.Id.String() }

// ComputeSize satisfies NonLockingReadMap's Sizable interface (approximate;
// used only for the map's own bookkeeping, not for allocation).
func (c *Concept) ComputeSize() uint {
	return uint(IdSize + len(c.Content) + 4*len(c.Vector) + 64)
}

// Clone returns a shallow copy safe to mutate without affecting the
// original (the Vector slice is copied too, since it's replaced wholesale
// on re-embedding, never mutated in place).
func (c *Concept) Clone() *Concept {
	cp := *c
	if c.Vector != nil {
		cp.Vector = append([]float32(nil), c.Vector...)
	}
	return &cp
}
