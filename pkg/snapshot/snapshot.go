// Package snapshot implements GraphSnapshot and ReadView (C3): the
// immutable, readers-never-block view of the concept graph. Concept and
// edge tables are backed by github.com/launix-de/NonLockingReadMap (vendored
// source read from launix-de-memcp/third_party/NonLockingReadMap), whose
// binary-search read path and CAS-based write path are exactly the "no
// locking on the read path" mechanism spec.md §4.3 asks for.
//
// NonLockingReadMap's KeyGetter constraint requires GetKey/ComputeSize,
// which types.Concept, types.EdgeList and WordIndexEntry only implement on
// their pointer receivers, so the map's own type parameter T has to be
// instantiated as the pointer type itself (*types.Concept, ...). Its Set
// and Get therefore take and return *T, i.e. **types.Concept — every call
// site in this package unwraps that extra layer back to a single pointer.
package snapshot

import (
	"sync/atomic"

	"github.com/launix-de/NonLockingReadMap"
	"github.com/sutra-memory/engine/pkg/types"
)

// GraphSnapshot is one immutable, versioned view of the whole concept
// graph: concepts, outgoing edge lists keyed by source, and the inverted
// word index, plus the monotonic sequence/timestamp pair from spec.md §3.
type GraphSnapshot struct {
	Concepts  NonLockingReadMap.NonLockingReadMap[*types.Concept, string]
	Edges     NonLockingReadMap.NonLockingReadMap[*types.EdgeList, string]
	WordIndex NonLockingReadMap.NonLockingReadMap[*WordIndexEntry, string]

	Sequence  uint64
	Timestamp int64
}

// Empty returns a freshly initialized, empty snapshot (used at startup
// before the first reconciliation cycle or WAL replay).
func Empty() *GraphSnapshot {
	return &GraphSnapshot{
		Concepts:  NonLockingReadMap.New[*types.Concept, string](),
		Edges:     NonLockingReadMap.New[*types.EdgeList, string](),
		WordIndex: NonLockingReadMap.New[*WordIndexEntry, string](),
	}
}

// Concept looks up one concept by id, returning nil if absent.
func (g *GraphSnapshot) Concept(id types.ConceptId) *types.Concept {
	p := g.Concepts.Get(id.String())
	if p == nil {
		return nil
	}
	return *p
}

// OutgoingEdges returns the edge list for source, or nil if source has no
// recorded outgoing associations. Per invariant I5, the caller must not
// assume every edge's target exists in this snapshot.
func (g *GraphSnapshot) OutgoingEdges(source types.ConceptId) *types.EdgeList {
	p := g.Edges.Get(source.String())
	if p == nil {
		return nil
	}
	return *p
}

// ConceptIdsForWord returns the concept ids indexed under word, or nil.
func (g *GraphSnapshot) ConceptIdsForWord(word string) []string {
	p := g.WordIndex.Get(word)
	if p == nil {
		return nil
	}
	return (*p).ConceptIds
}

// ConceptCount reports how many concepts this snapshot holds (used by the
// protocol's GetStats response and by tests).
func (g *GraphSnapshot) ConceptCount() int {
	return len(g.Concepts.GetAll())
}

// ReadView holds the current GraphSnapshot behind a single atomic pointer.
// Readers call Load and get a stable reference for as long as they need it;
// the reconciler publishes a new snapshot with one atomic swap. There is no
// locking anywhere on this read path (spec.md §4.3).
type ReadView struct {
	ptr atomic.Pointer[GraphSnapshot]
}

// NewReadView creates a ReadView seeded with initial (use Empty() at
// startup, or the snapshot rebuilt from a checkpoint + WAL replay).
func NewReadView(initial *GraphSnapshot) *ReadView {
	rv := &ReadView{}
	rv.ptr.Store(initial)
	return rv
}

// Load returns the currently published snapshot.
func (rv *ReadView) Load() *GraphSnapshot {
	return rv.ptr.Load()
}

// Publish atomically swaps in next as the current snapshot, returning the
// snapshot it replaced.
func (rv *ReadView) Publish(next *GraphSnapshot) *GraphSnapshot {
	return rv.ptr.Swap(next)
}
