// Package classifier implements the heuristic semantic-type tagger
// referenced by spec.md §4.6 step 3 ("run the classifier to tag the
// concept with a semantic type"). Semantic type is explicitly opaque to
// storage (spec.md §3), so any heuristic that produces one of
// pkg/types's well-known tags is a conformant classifier; this one is
// regexp-based since no classification/NLP library appears anywhere in the
// retrieved reference pack (launix-de/go-packrat, the one candidate
// parser-combinator dependency, has no source present to ground its call
// pattern — documented in DESIGN.md as dropped-by-absence).
package classifier

import (
	"regexp"
	"strings"

	"github.com/sutra-memory/engine/pkg/types"
)

var (
	definitionPattern = regexp.MustCompile(`(?i)\b(is|are|was|were)\s+(a|an|the)\b`)
	eventPattern      = regexp.MustCompile(`(?i)\b(happened|occurred|took place|began|ended|started|launched)\b`)
	relationPattern   = regexp.MustCompile(`(?i)\b(causes|leads to|results in|depends on|related to|part of|belongs to)\b`)
	propertyPattern   = regexp.MustCompile(`(?i)\b(has|have|contains|measures|weighs|costs)\b`)
)

// Classify returns the best-matching semantic type for content, checked in
// a fixed priority order (most specific pattern family first) so that a
// sentence matching more than one heuristic still gets one deterministic
// tag. Falls back to SemanticEntity, never SemanticUnknown, since
// "unclassified" is reserved for callers who skip classification entirely
// (spec.md §4.6's analyze_semantics=false path).
func Classify(content string) types.SemanticType {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return types.SemanticEntity
	}

	switch {
	case eventPattern.MatchString(trimmed):
		return types.SemanticEvent
	case definitionPattern.MatchString(trimmed):
		return types.SemanticDefinition
	case relationPattern.MatchString(trimmed):
		return types.SemanticRelation
	case propertyPattern.MatchString(trimmed):
		return types.SemanticProperty
	default:
		return types.SemanticEntity
	}
}
