package vectorindex

import (
	"github.com/sutra-memory/engine/pkg/snapshot"
	"github.com/sutra-memory/engine/pkg/types"
)

// Observer implements reconciler.VectorIndexNotifier: it reacts to changed
// concept ids by reading their current vector out of the ReadView and
// applying it to the Index, keeping the index's eventual-consistency
// window bounded to one reconciliation cycle (spec.md §4.5 invariant).
type Observer struct {
	Index    *Index
	ReadView *snapshot.ReadView
}

// NewObserver wires an Index to a ReadView.
func NewObserver(index *Index, readView *snapshot.ReadView) *Observer {
	return &Observer{Index: index, ReadView: readView}
}

// NotifyChanged looks up each concept's current vector and either inserts/
// updates it in the index, or removes the id if the concept no longer
// carries a vector (or no longer exists at all).
func (o *Observer) NotifyChanged(ids []types.ConceptId) {
	snap := o.ReadView.Load()
	for _, id := range ids {
		c := snap.Concept(id)
		if c == nil || c.Vector == nil {
			o.Index.Remove(id)
			continue
		}
		// Dimension mismatches here would indicate a deployment
		// misconfiguration upstream (LearningPipeline already validates
		// against D before a concept is ever learned); ignore silently
		// at this layer rather than crash the reconciler's notify step.
		_ = o.Index.Insert(id, c.Vector)
	}
}

// BuildFromSnapshot performs the cold-start path (spec.md §4.5: "Startup
// without an existing index builds from the concept vectors in the
// snapshot"): every concept carrying a non-empty vector is inserted.
func BuildFromSnapshot(dimension int, snap *snapshot.GraphSnapshot) *Index {
	idx := New(dimension)
	for _, cp := range snap.Concepts.GetAll() {
		c := *cp
		if c.Vector == nil {
			continue
		}
		_ = idx.Insert(c.Id, c.Vector)
	}
	return idx
}
