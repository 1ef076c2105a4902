package learning

// Options is the closed set of per-call knobs spec.md §4.6 names for
// learn_concept.
type Options struct {
	GenerateEmbedding         bool
	ExtractAssociations       bool
	AnalyzeSemantics          bool
	MinAssociationConfidence  float64
	MaxAssociationsPerConcept int
	InitialStrength           float64
	InitialConfidence         float64
	// StrictEmbedding, if true, makes a failed embedding call fail the
	// whole learn_concept call instead of the default non-fatal
	// store-without-a-vector behavior (spec.md §4.6: "the learn call
	// itself succeeds unless the caller requested strict embedding").
	StrictEmbedding bool
}

// DefaultOptions mirrors spec.md §4.6's stated per-field defaults.
func DefaultOptions() Options {
	return Options{
		GenerateEmbedding:         true,
		ExtractAssociations:       true,
		AnalyzeSemantics:          true,
		MinAssociationConfidence:  0.5,
		MaxAssociationsPerConcept: 10,
		InitialStrength:           1.0,
		InitialConfidence:         0.5,
		StrictEmbedding:           false,
	}
}
