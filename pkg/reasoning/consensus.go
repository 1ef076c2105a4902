package reasoning

import (
	"sort"

	"github.com/sutra-memory/engine/pkg/snapshot"
)

// similarityThreshold is the default clustering threshold of spec.md §4.7
// step 4 ("above a threshold, default 0.8").
const similarityThreshold = 0.8

// diversityCap bounds how many unique type-sequences count toward a
// cluster's diversity bonus (spec.md §4.7: "up to a cap of 4").
const diversityCap = 4

// cluster is one group of paths whose targets were judged similar enough
// to represent the same answer.
type cluster struct {
	paths []*Path
}

// representative is the highest-confidence member of the cluster, whose
// target becomes the cluster's reported answer concept.
func (c *cluster) representative() *Path {
	best := c.paths[0]
	for _, p := range c.paths[1:] {
		if p.Score() > best.Score() {
			best = p
		}
	}
	return best
}

func (c *cluster) averageConfidence() float64 {
	var sum float64
	for _, p := range c.paths {
		sum += p.Score()
	}
	return sum / float64(len(c.paths))
}

func (c *cluster) uniqueTypeSequences() int {
	seen := make(map[uint64]bool, len(c.paths))
	for _, p := range c.paths {
		seen[p.TypeFingerprint()] = true
	}
	return len(seen)
}

// aggregate implements spec.md §4.7 step 4, Multi-Path Plan Aggregation:
// cluster paths by answer-concept similarity, score each cluster, and
// return the scored clusters sorted best-first.
func aggregate(snap *snapshot.GraphSnapshot, paths []*Path) []*Answer {
	if len(paths) == 0 {
		return nil
	}
	clusters := clusterBySimilarAnswer(snap, paths)
	total := float64(len(paths))

	answers := make([]*Answer, 0, len(clusters))
	for _, c := range clusters {
		n := float64(len(c.paths))
		pathSupport := n / total
		consensusBonus := 1.0
		if pathSupport >= 0.5 && n >= 2 {
			consensusBonus = 1 + (pathSupport - 0.5)
		}
		outlierPenalty := 1.0
		if n == 1 && len(clusters) > 1 {
			outlierPenalty = 0.7
		}
		unique := c.uniqueTypeSequences()
		if unique > diversityCap {
			unique = diversityCap
		}
		diversityBonus := 1 + 0.2*(float64(unique)/diversityCap)

		score := c.averageConfidence() * pathSupport * consensusBonus * outlierPenalty * diversityBonus
		answers = append(answers, &Answer{
			Concept: c.representative().Target(),
			Score:   score,
			Support: c.paths,
		})
	}

	sort.Slice(answers, func(i, j int) bool { return answers[i].Score > answers[j].Score })
	return answers
}

// clusterBySimilarAnswer implements the clustering half of spec.md §4.7
// step 4: group paths whose target concepts' content is similar above
// similarityThreshold. Clustering is a simple greedy single-pass: each path
// joins the first existing cluster whose representative content clears the
// threshold, else starts a new cluster. Paths to the exact same target
// concept always cluster together, since identical content has similarity
// 1.0.
func clusterBySimilarAnswer(snap *snapshot.GraphSnapshot, paths []*Path) []*cluster {
	var clusters []*cluster
	content := func(p *Path) string {
		if c := snap.Concept(p.Target()); c != nil {
			return c.Content
		}
		return p.Target().String()
	}

	for _, p := range paths {
		text := content(p)
		placed := false
		for _, c := range clusters {
			repText := content(c.representative())
			if normalizedSimilarity(text, repText) >= similarityThreshold {
				c.paths = append(c.paths, p)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{paths: []*Path{p}})
		}
	}
	return clusters
}

// normalizedSimilarity is a Jaccard overlap over lowercased word tokens,
// the "normalized string similarity" spec.md §4.7 names without pinning an
// exact algorithm.
func normalizedSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	wa := tokenize(a)
	wb := tokenize(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(wa))
	for _, w := range wa {
		set[w] = true
	}
	union := make(map[string]bool, len(wa)+len(wb))
	for _, w := range wa {
		union[w] = true
	}
	intersection := 0
	for _, w := range wb {
		union[w] = true
		if set[w] {
			intersection++
		}
	}
	return float64(intersection) / float64(len(union))
}
