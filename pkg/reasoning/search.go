package reasoning

import (
	"container/heap"
	"strings"

	"github.com/sutra-memory/engine/pkg/snapshot"
	"github.com/sutra-memory/engine/pkg/types"
)

// visitedKey implements spec.md §4.7's "visited set keyed on (concept_id,
// last_three_ids_in_path)": the same concept reached through a different
// local context is a legitimate diamond path, not a revisit.
func visitedKey(current types.ConceptId, path []types.ConceptId) string {
	var b strings.Builder
	b.WriteString(current.String())
	start := 0
	if len(path) > 3 {
		start = len(path) - 3
	}
	for _, id := range path[start:] {
		b.WriteByte('|')
		b.WriteString(id.String())
	}
	return b.String()
}

// propagate applies the per-hop confidence formula of spec.md §4.7:
// new = current * edge_confidence * type_weight * alpha.
func propagate(current float64, edge types.Edge, alpha float64) float64 {
	return current * edge.Confidence * edge.Type.TypeWeight() * alpha
}

// commonNeighborCount counts targets reachable in one hop from both a and
// b, used by the best-first heuristic.
func commonNeighborCount(snap *snapshot.GraphSnapshot, a, b types.ConceptId) int {
	edgesA := snap.OutgoingEdges(a)
	edgesB := snap.OutgoingEdges(b)
	if edgesA == nil || edgesB == nil {
		return 0
	}
	seen := make(map[types.ConceptId]bool, len(edgesA.Edges))
	for _, e := range edgesA.Edges {
		seen[e.Target] = true
	}
	count := 0
	for _, e := range edgesB.Edges {
		if seen[e.Target] {
			count++
		}
	}
	return count
}

// heuristic implements spec.md §4.7's best-first heuristic. target is nil
// for the open-ended (no explicit target) case, in which case the
// heuristic is 0 for every neighbor.
func heuristic(snap *snapshot.GraphSnapshot, neighbor types.ConceptId, target *types.ConceptId) float64 {
	if target == nil {
		return 0
	}
	if neighbor == *target {
		return 1.0
	}
	if edges := snap.OutgoingEdges(neighbor); edges != nil {
		for _, e := range edges.Edges {
			if e.Target == *target {
				return 0.5
			}
		}
	}
	common := commonNeighborCount(snap, neighbor, *target)
	return 0.2 * minFloat(1.0, float64(common)/3.0)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// frontierItem is one partially built path carried through a search
// strategy's queue.
type frontierItem struct {
	seed       types.ConceptId
	steps      []Step
	confidence float64
	visited    []types.ConceptId
}

func (f *frontierItem) current() types.ConceptId {
	if len(f.steps) == 0 {
		return f.seed
	}
	return f.steps[len(f.steps)-1].Concept
}

func (f *frontierItem) toPath(strategy string) *Path {
	return &Path{Seed: f.seed, Steps: append([]Step(nil), f.steps...), Confidence: f.confidence, Strategy: strategy}
}

func (f *frontierItem) extend(edge types.Edge, alpha float64) *frontierItem {
	next := propagate(f.confidence, edge, alpha)
	steps := make([]Step, len(f.steps)+1)
	copy(steps, f.steps)
	steps[len(steps)-1] = Step{Concept: edge.Target, EdgeType: edge.Type, Confidence: edge.Confidence, Running: next}
	return &frontierItem{
		seed:       f.seed,
		steps:      steps,
		confidence: next,
		visited:    append(append([]types.ConceptId(nil), f.visited...), f.current()),
	}
}

// bestFirstPQ is a container/heap.Interface over frontier items, ordered by
// spec.md §4.7's score = path_confidence * (1 + heuristic(neighbor, target)).
type bestFirstPQ struct {
	items []*frontierItem
	scores []float64
}

func (pq *bestFirstPQ) Len() int { return len(pq.items) }
func (pq *bestFirstPQ) Less(i, j int) bool { return pq.scores[i] > pq.scores[j] }
func (pq *bestFirstPQ) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.scores[i], pq.scores[j] = pq.scores[j], pq.scores[i]
}
func (pq *bestFirstPQ) Push(x interface{}) {
	entry := x.(pqEntry)
	pq.items = append(pq.items, entry.item)
	pq.scores = append(pq.scores, entry.score)
}
func (pq *bestFirstPQ) Pop() interface{} {
	n := len(pq.items)
	item := pq.items[n-1]
	score := pq.scores[n-1]
	pq.items = pq.items[:n-1]
	pq.scores = pq.scores[:n-1]
	return pqEntry{item: item, score: score}
}

type pqEntry struct {
	item  *frontierItem
	score float64
}

// bestFirstSearch implements spec.md §4.7's best-first strategy. target is
// nil for open-ended search from a seed with no fixed destination, which is
// the normal case for a natural-language query with no explicit answer
// concept named up front.
func bestFirstSearch(snap *snapshot.GraphSnapshot, seed types.ConceptId, target *types.ConceptId, maxDepth, k int, alpha float64) []*Path {
	pq := &bestFirstPQ{}
	heap.Init(pq)
	heap.Push(pq, pqEntry{item: &frontierItem{seed: seed, confidence: 1.0}, score: 1.0})

	seen := map[string]float64{}
	var found []*Path

	for pq.Len() > 0 && len(found) < k {
		entry := heap.Pop(pq).(pqEntry)
		cur := entry.item

		if len(cur.steps) > 0 {
			found = append(found, cur.toPath("best_first"))
		}
		if len(cur.steps) >= maxDepth {
			continue
		}

		edges := snap.OutgoingEdges(cur.current())
		if edges == nil {
			continue
		}
		for _, e := range edges.Edges {
			key := visitedKey(e.Target, cur.visited)
			next := cur.extend(e, alpha)
			if best, ok := seen[key]; ok && best >= next.confidence {
				continue
			}
			seen[key] = next.confidence
			h := heuristic(snap, e.Target, target)
			score := next.confidence * (1 + h)
			heap.Push(pq, pqEntry{item: next, score: score})
		}
	}

	if len(found) > k {
		found = found[:k]
	}
	return found
}

// breadthFirstSearch implements spec.md §4.7's breadth-first strategy:
// level by level, admitting a neighbor only if its new confidence beats the
// best confidence previously seen there.
func breadthFirstSearch(snap *snapshot.GraphSnapshot, seed types.ConceptId, maxDepth, k int, alpha float64) []*Path {
	best := map[types.ConceptId]float64{}
	frontier := []*frontierItem{{seed: seed, confidence: 1.0}}
	var found []*Path

	for depth := 0; depth < maxDepth && len(frontier) > 0 && len(found) < k; depth++ {
		var next []*frontierItem
		for _, cur := range frontier {
			edges := snap.OutgoingEdges(cur.current())
			if edges == nil {
				continue
			}
			for _, e := range edges.Edges {
				candidate := cur.extend(e, alpha)
				if prior, ok := best[e.Target]; ok && prior >= candidate.confidence {
					continue
				}
				best[e.Target] = candidate.confidence
				next = append(next, candidate)
				found = append(found, candidate.toPath("breadth_first"))
				if len(found) >= k {
					break
				}
			}
			if len(found) >= k {
				break
			}
		}
		frontier = next
	}
	return found
}

// bidirectionalSearch implements spec.md §4.7's bidirectional strategy. It
// requires an explicit target and is only invoked when one is supplied (the
// graph-lookup style query, not the open-ended natural-language case).
func bidirectionalSearch(snap *snapshot.GraphSnapshot, seed, target types.ConceptId, maxDepth int, alpha float64) *Path {
	if seed == target {
		return &Path{Seed: seed, Confidence: 1.0, Strategy: "bidirectional"}
	}

	forward := map[types.ConceptId]*frontierItem{seed: {seed: seed, confidence: 1.0}}
	backward := map[types.ConceptId]*frontierItem{target: {seed: target, confidence: 1.0}}

	for depth := 0; depth < maxDepth; depth++ {
		if meet := intersect(forward, backward); meet != nil {
			return mergeBidirectional(seed, target, forward, backward, *meet, alpha)
		}
		forward = expandFrontier(snap, forward, alpha, false)
		if meet := intersect(forward, backward); meet != nil {
			return mergeBidirectional(seed, target, forward, backward, *meet, alpha)
		}
		backward = expandFrontier(snap, backward, alpha, true)
	}
	if meet := intersect(forward, backward); meet != nil {
		return mergeBidirectional(seed, target, forward, backward, *meet, alpha)
	}
	return nil
}

// expandFrontier grows every item in frontier by one hop, keeping only the
// best path to each reached concept. reverse is not consulted: both
// frontiers walk outgoing edges, since the snapshot only indexes outgoing
// adjacency, so the backward frontier grows along outgoing edges from the
// target side rather than against edge direction.
func expandFrontier(snap *snapshot.GraphSnapshot, frontier map[types.ConceptId]*frontierItem, alpha float64, reverse bool) map[types.ConceptId]*frontierItem {
	next := make(map[types.ConceptId]*frontierItem)
	for _, cur := range frontier {
		next[cur.current()] = cur
		edges := snap.OutgoingEdges(cur.current())
		if edges == nil {
			continue
		}
		for _, e := range edges.Edges {
			candidate := cur.extend(e, alpha)
			if existing, ok := next[e.Target]; !ok || existing.confidence < candidate.confidence {
				next[e.Target] = candidate
			}
		}
	}
	return next
}

func intersect(forward, backward map[types.ConceptId]*frontierItem) *types.ConceptId {
	for id := range forward {
		if _, ok := backward[id]; ok {
			m := id
			return &m
		}
	}
	return nil
}

// mergeBidirectional stitches the forward path to the meet node with the
// backward-walked path reversed into a meet-to-target orientation, per
// spec.md §4.7: combined confidence is the product of both path
// confidences. GraphSnapshot only indexes outgoing adjacency, so the
// "backward" frontier is actually walked forward from target; reversing its
// step order to report a seed-to-target path is an approximation that
// assumes the edges discovered are meaningful in either direction for
// explanation purposes.
func mergeBidirectional(seed, target types.ConceptId, forward, backward map[types.ConceptId]*frontierItem, meet types.ConceptId, alpha float64) *Path {
	fwd := forward[meet]
	bwd := backward[meet]
	if fwd == nil || bwd == nil {
		return nil
	}

	steps := append([]Step(nil), fwd.steps...)
	steps = append(steps, reverseSteps(fwd.confidence, bwd.steps, target, alpha)...)

	return &Path{
		Seed:       seed,
		Steps:      steps,
		Confidence: fwd.confidence * bwd.confidence,
		Strategy:   "bidirectional",
	}
}

// reverseSteps turns the target-to-meet step sequence walked by the
// backward frontier into a meet-to-target step sequence, recomputing each
// hop's running confidence starting from the forward half's confidence.
func reverseSteps(fwdConfidence float64, backwardSteps []Step, target types.ConceptId, alpha float64) []Step {
	n := len(backwardSteps)
	if n == 0 {
		return nil
	}
	out := make([]Step, n)
	running := fwdConfidence
	for k := 0; k < n; k++ {
		edge := backwardSteps[n-1-k]
		concept := target
		if n-2-k >= 0 {
			concept = backwardSteps[n-2-k].Concept
		}
		running *= edge.Confidence * edge.EdgeType.TypeWeight() * alpha
		out[k] = Step{Concept: concept, EdgeType: edge.EdgeType, Confidence: edge.Confidence, Running: running}
	}
	return out
}
