// Package vectorindex implements the VectorIndex contract (C5): an
// approximate-nearest-neighbor index over fixed-dimension vectors, keyed
// by ConceptId. No ANN library exists anywhere in the retrieved reference
// pack, so the graph structure itself — a compact single-layer
// navigable-small-world graph, greedy-searched — is hand-built from first
// principles per the GLOSSARY's "any HNSW-style index satisfying the
// VectorIndex contract". Persistence (persist.go) reuses
// golang.org/x/exp/mmap, promoted from the teacher's indirect requirement.
package vectorindex

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/sutra-memory/engine/internal/errorsx"
	"github.com/sutra-memory/engine/pkg/types"
)

// DefaultM is the number of bidirectional neighbor edges maintained per
// node, the classic NSW/HNSW trade-off knob between recall and memory.
const DefaultM = 16

// DefaultEfConstruction bounds how many candidates the insert-time greedy
// search explores before selecting the M best neighbors.
const DefaultEfConstruction = 64

// Scored pairs a ConceptId with its cosine similarity to a query vector.
type Scored struct {
	Id         types.ConceptId
	Similarity float64
}

type node struct {
	id        types.ConceptId
	vector    []float32
	neighbors []types.ConceptId
}

// Index is a single-layer NSW graph over fixed-dimension D vectors.
// Safe for concurrent use: spec.md §5 describes a single writer thread
// with readers observing bounded staleness, so Index serializes writes
// under a mutex and lets Search take a read lock.
type Index struct {
	mu             sync.RWMutex
	dimension      int
	m              int
	efConstruction int
	rng            *rand.Rand

	nodes       map[types.ConceptId]*node
	entryPoints []types.ConceptId
}

// New creates an empty Index for vectors of the given dimension.
func New(dimension int) *Index {
	return &Index{
		dimension:      dimension,
		m:              DefaultM,
		efConstruction: DefaultEfConstruction,
		rng:            rand.New(rand.NewSource(1)),
		nodes:          make(map[types.ConceptId]*node),
	}
}

// Len returns the number of vectors currently indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes)
}

// Insert adds or replaces the vector for id (spec.md §4.5 contract).
func (idx *Index) Insert(id types.ConceptId, vector []float32) error {
	if len(vector) != idx.dimension {
		return errorsx.Newf(errorsx.DimensionMismatch, "vector has %d dimensions, index requires %d", len(vector), idx.dimension)
	}
	stored := append([]float32(nil), vector...)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.nodes[id]; ok {
		idx.disconnectLocked(existing)
		existing.vector = stored
		idx.connectLocked(existing)
		return nil
	}

	n := &node{id: id, vector: stored}
	idx.nodes[id] = n
	idx.connectLocked(n)
	if len(idx.entryPoints) < 4 {
		idx.entryPoints = append(idx.entryPoints, id)
	}
	return nil
}

// Remove deletes id from the index, if present, unlinking it from every
// neighbor's adjacency list.
func (idx *Index) Remove(id types.ConceptId) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n, ok := idx.nodes[id]
	if !ok {
		return
	}
	idx.disconnectLocked(n)
	delete(idx.nodes, id)

	for i, ep := range idx.entryPoints {
		if ep == id {
			idx.entryPoints = append(idx.entryPoints[:i], idx.entryPoints[i+1:]...)
			break
		}
	}
	if len(idx.entryPoints) == 0 {
		for other := range idx.nodes {
			idx.entryPoints = append(idx.entryPoints, other)
			break
		}
	}
}

// Search returns up to k nearest neighbors of query by cosine similarity,
// ordered by decreasing similarity (spec.md §4.5 contract).
func (idx *Index) Search(query []float32, k int) ([]Scored, error) {
	if len(query) != idx.dimension {
		return nil, errorsx.Newf(errorsx.DimensionMismatch, "query has %d dimensions, index requires %d", len(query), idx.dimension)
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.nodes) == 0 {
		return nil, nil
	}

	ef := idx.efConstruction
	if ef < k {
		ef = k
	}
	visited := idx.greedySearchLocked(query, ef)

	results := make([]Scored, 0, len(visited))
	for _, id := range visited {
		n := idx.nodes[id]
		results = append(results, Scored{Id: id, Similarity: cosineSimilarity(query, n.vector)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// greedySearchLocked walks the graph from the current entry points,
// repeatedly moving to the best unvisited neighbor until no improvement is
// found, and returns up to ef candidates visited along the way. Caller
// must hold at least a read lock.
func (idx *Index) greedySearchLocked(query []float32, ef int) []types.ConceptId {
	visited := make(map[types.ConceptId]bool)
	var candidates []types.ConceptId

	for _, entry := range idx.entryPoints {
		if visited[entry] {
			continue
		}
		idx.walkFromLocked(entry, query, ef, visited, &candidates)
	}
	return candidates
}

func (idx *Index) walkFromLocked(start types.ConceptId, query []float32, ef int, visited map[types.ConceptId]bool, candidates *[]types.ConceptId) {
	current := start
	for {
		if visited[current] {
			return
		}
		visited[current] = true
		*candidates = append(*candidates, current)
		if len(*candidates) >= ef {
			return
		}

		n := idx.nodes[current]
		bestSim := cosineSimilarity(query, n.vector)
		best := current
		improved := false
		for _, neighbor := range n.neighbors {
			if visited[neighbor] {
				continue
			}
			nn := idx.nodes[neighbor]
			if nn == nil {
				continue
			}
			sim := cosineSimilarity(query, nn.vector)
			if sim > bestSim {
				bestSim = sim
				best = neighbor
				improved = true
			}
		}
		if !improved {
			return
		}
		current = best
	}
}

// connectLocked wires n into the graph: greedy-search for efConstruction
// candidates from the existing entry points, then keep the m most similar
// as bidirectional neighbors, pruning the weakest edge on the far side
// when a neighbor is already at capacity.
func (idx *Index) connectLocked(n *node) {
	if len(idx.nodes) <= 1 {
		return
	}

	visited := make(map[types.ConceptId]bool)
	visited[n.id] = true
	var candidates []types.ConceptId
	for _, entry := range idx.entryPoints {
		if entry == n.id || visited[entry] {
			continue
		}
		idx.walkFromLocked(entry, n.vector, idx.efConstruction, visited, &candidates)
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, Scored{Id: c, Similarity: cosineSimilarity(n.vector, idx.nodes[c].vector)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > idx.m {
		scored = scored[:idx.m]
	}

	for _, s := range scored {
		neighbor := idx.nodes[s.Id]
		n.neighbors = appendNeighbor(n.neighbors, s.Id)
		neighbor.neighbors = appendNeighbor(neighbor.neighbors, n.id)
		idx.pruneLocked(neighbor)
	}
}

// pruneLocked trims n's neighbor list back down to m edges, dropping the
// least-similar-to-n neighbors first.
func (idx *Index) pruneLocked(n *node) {
	if len(n.neighbors) <= idx.m {
		return
	}
	scored := make([]Scored, 0, len(n.neighbors))
	for _, id := range n.neighbors {
		other := idx.nodes[id]
		if other == nil {
			continue
		}
		scored = append(scored, Scored{Id: id, Similarity: cosineSimilarity(n.vector, other.vector)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > idx.m {
		scored = scored[:idx.m]
	}
	kept := make([]types.ConceptId, 0, len(scored))
	for _, s := range scored {
		kept = append(kept, s.Id)
	}
	n.neighbors = kept
}

// disconnectLocked removes n from every neighbor's adjacency list.
func (idx *Index) disconnectLocked(n *node) {
	for _, neighborId := range n.neighbors {
		neighbor := idx.nodes[neighborId]
		if neighbor == nil {
			continue
		}
		neighbor.neighbors = removeNeighbor(neighbor.neighbors, n.id)
	}
	n.neighbors = nil
}

func appendNeighbor(list []types.ConceptId, id types.ConceptId) []types.ConceptId {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}

func removeNeighbor(list []types.ConceptId, id types.ConceptId) []types.ConceptId {
	for i, existing := range list {
		if existing == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
