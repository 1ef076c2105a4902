package reasoning

import (
	"context"
	"sort"

	"github.com/sutra-memory/engine/pkg/snapshot"
	"github.com/sutra-memory/engine/pkg/types"
	"github.com/sutra-memory/engine/pkg/vectorindex"
)

// Embedder abstracts pkg/embedding.Client, mirroring pkg/learning.Embedder
// so the reasoning engine doesn't force a build-order dependency on the
// HTTP client.
type Embedder interface {
	Embed(ctx context.Context, content string) ([]float32, error)
}

// VectorSearcher abstracts pkg/vectorindex.Index's read path.
type VectorSearcher interface {
	Search(query []float32, k int) ([]vectorindex.Scored, error)
}

// tokenize lowercases and splits query into the same word units
// snapshot.Tokenize uses to build the inverted word index, so a query
// lookup can only hit words the index actually stored under (spec.md §4.7
// step 1).
func tokenize(query string) []string {
	return snapshot.Tokenize(query)
}

// selectSeeds implements spec.md §4.7 step 1: union the vector index's
// nearest neighbors with the word index's exact-token hits, score each
// candidate by similarity (or content-overlap for word hits) weighted by
// the concept's own strength, and keep the top seedCount.
func selectSeeds(ctx context.Context, snap *snapshot.GraphSnapshot, index VectorSearcher, embedder Embedder, query string, seedCount int) ([]SeedCandidate, error) {
	scores := make(map[types.ConceptId]float64)

	if index != nil && embedder != nil {
		if vec, err := embedder.Embed(ctx, query); err == nil && vec != nil {
			if neighbors, err := index.Search(vec, seedCount); err == nil {
				for _, n := range neighbors {
					scores[n.Id] = addCandidateScore(scores[n.Id], n.Similarity, snap.Concept(n.Id))
				}
			}
		}
	}

	for _, word := range tokenize(query) {
		for _, idStr := range snap.ConceptIdsForWord(word) {
			id, err := types.ParseConceptId(idStr)
			if err != nil {
				continue
			}
			c := snap.Concept(id)
			if c == nil {
				continue
			}
			overlap := wordOverlap(query, c.Content)
			if _, exists := scores[id]; !exists {
				scores[id] = addCandidateScore(0, overlap, c)
			}
		}
	}

	candidates := make([]SeedCandidate, 0, len(scores))
	for id, score := range scores {
		candidates = append(candidates, SeedCandidate{Concept: id, Score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Concept.String() < candidates[j].Concept.String()
	})
	if len(candidates) > seedCount {
		candidates = candidates[:seedCount]
	}
	return candidates, nil
}

// addCandidateScore folds a concept's strength into its raw similarity or
// overlap score, so well-reinforced concepts are preferred among otherwise
// equally relevant seeds.
func addCandidateScore(existing, raw float64, c *types.Concept) float64 {
	strengthFactor := 1.0
	if c != nil {
		strengthFactor = c.Strength / types.MaxStrength
		if strengthFactor < 0.1 {
			strengthFactor = 0.1
		}
	}
	weighted := raw * strengthFactor
	if weighted > existing {
		return weighted
	}
	return existing
}

// wordOverlap is a coarse Jaccard-style overlap between query tokens and
// content tokens, used to score word-index hits the vector index didn't
// already surface.
func wordOverlap(query, content string) float64 {
	q := tokenize(query)
	c := tokenize(content)
	if len(q) == 0 || len(c) == 0 {
		return 0
	}
	set := make(map[string]bool, len(c))
	for _, w := range c {
		set[w] = true
	}
	hits := 0
	for _, w := range q {
		if set[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(q))
}
