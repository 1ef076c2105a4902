// Package extraction implements the pattern-based association extraction
// of spec.md §4.6 step 4: turning content into zero or more
// (subject, relation type, object, confidence) tuples. Regexp (stdlib) is
// used rather than a parser-combinator library: launix-de/go-packrat is
// the only such library referenced anywhere in the retrieved reference
// pack's go.mod files, but no source for it is present in the pack to
// ground its call pattern, so it is not used here (documented in
// DESIGN.md as dropped-by-absence, distinct from a dropped teacher dep).
package extraction

import (
	"regexp"
	"strings"

	"github.com/sutra-memory/engine/pkg/types"
)

// Tuple is one extracted (subject, relation, object) candidate with the
// extractor's own confidence in the match.
type Tuple struct {
	Subject    string
	Relation   types.AssociationType
	Object     string
	Confidence float64
}

type pattern struct {
	re         *regexp.Regexp
	relation   types.AssociationType
	confidence float64
}

// Patterns are ordered most-specific first; content may match more than
// one and every match is returned (spec.md's cap is applied by the
// caller, not here).
var patterns = []pattern{
	{regexp.MustCompile(`(?i)^(.+?)\s+causes\s+(.+?)\.?$`), types.Causal, 0.8},
	{regexp.MustCompile(`(?i)^(.+?)\s+leads to\s+(.+?)\.?$`), types.Causal, 0.75},
	{regexp.MustCompile(`(?i)^(.+?)\s+results in\s+(.+?)\.?$`), types.Causal, 0.75},
	{regexp.MustCompile(`(?i)^(.+?)\s+happened before\s+(.+?)\.?$`), types.Temporal, 0.7},
	{regexp.MustCompile(`(?i)^(.+?)\s+is a\s+(.+?)\.?$`), types.Hierarchical, 0.85},
	{regexp.MustCompile(`(?i)^(.+?)\s+is an\s+(.+?)\.?$`), types.Hierarchical, 0.85},
	{regexp.MustCompile(`(?i)^(.+?)\s+is part of\s+(.+?)\.?$`), types.Compositional, 0.8},
	{regexp.MustCompile(`(?i)^(.+?)\s+belongs to\s+(.+?)\.?$`), types.Compositional, 0.75},
	{regexp.MustCompile(`(?i)^(.+?)\s+is related to\s+(.+?)\.?$`), types.Semantic, 0.6},
}

// Extract scans content for every known relation pattern, trimming
// whitespace from the captured subject/object spans. Sentences are split
// on '.', each scanned independently, since a pattern's greedy subject
// capture would otherwise swallow an entire multi-sentence paragraph.
func Extract(content string) []Tuple {
	var tuples []Tuple
	for _, sentence := range splitSentences(content) {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			subject := strings.TrimSpace(m[1])
			object := strings.TrimSpace(m[2])
			if subject == "" || object == "" {
				continue
			}
			tuples = append(tuples, Tuple{
				Subject:    subject,
				Relation:   p.relation,
				Object:     object,
				Confidence: p.confidence,
			})
		}
	}
	return tuples
}

func splitSentences(content string) []string {
	return strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '\n'
	})
}
