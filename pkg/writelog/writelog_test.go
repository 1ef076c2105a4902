package writelog

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sutra-memory/engine/pkg/types"
)

func TestSequenceAllocatorMonotonic(t *testing.T) {
	seq := NewSequenceAllocator(0)
	first := seq.Next()
	second := seq.Next()
	if second <= first {
		t.Errorf("expected strictly increasing sequence, got %d then %d", first, second)
	}
	if seq.Current() != second {
		t.Errorf("expected Current() to report last allocated value %d, got %d", second, seq.Current())
	}
}

func TestSequenceAllocatorSet(t *testing.T) {
	seq := NewSequenceAllocator(0)
	seq.Set(100)
	if next := seq.Next(); next != 101 {
		t.Errorf("expected 101 after Set(100), got %d", next)
	}
}

func TestWriteLogAppendAndDrain(t *testing.T) {
	wl := New(10, PolicyBlock, nil)
	seq := NewSequenceAllocator(0)

	wl.Append(NewLearnConcept(seq.Next(), &ConceptWrite{Content: "first"}))
	wl.Append(NewLearnConcept(seq.Next(), &ConceptWrite{Content: "second"}))

	if pending := wl.PendingCount(); pending != 2 {
		t.Fatalf("expected 2 pending, got %d", pending)
	}

	drained := wl.Drain()
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained entries, got %d", len(drained))
	}
	if drained[0].Concept.Content != "first" || drained[1].Concept.Content != "second" {
		t.Error("drain should preserve FIFO/sequence order")
	}
	if wl.PendingCount() != 0 {
		t.Error("queue should be empty after drain")
	}
}

func TestWriteLogDrainIsEmptyWhenNothingPending(t *testing.T) {
	wl := New(4, PolicyBlock, nil)
	if drained := wl.Drain(); len(drained) != 0 {
		t.Errorf("expected empty drain, got %d entries", len(drained))
	}
}

func TestWriteLogEvictOldestDropsAndCounts(t *testing.T) {
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_dropped"})
	wl := New(2, PolicyEvictOldest, dropped)
	seq := NewSequenceAllocator(0)

	wl.Append(NewLearnConcept(seq.Next(), &ConceptWrite{Content: "a"}))
	wl.Append(NewLearnConcept(seq.Next(), &ConceptWrite{Content: "b"}))
	wl.Append(NewLearnConcept(seq.Next(), &ConceptWrite{Content: "c"})) // evicts "a"

	drained := wl.Drain()
	if len(drained) != 2 {
		t.Fatalf("expected capacity-bounded queue to hold 2 entries, got %d", len(drained))
	}
	if drained[0].Concept.Content != "b" || drained[1].Concept.Content != "c" {
		t.Errorf("expected oldest entry evicted, got %q then %q", drained[0].Concept.Content, drained[1].Concept.Content)
	}

	if got := testutil.ToFloat64(dropped); got != 1 {
		t.Errorf("expected dropped counter to be 1, got %v", got)
	}
}

func TestWriteLogStats(t *testing.T) {
	wl := New(10, PolicyBlock, nil)
	seq := NewSequenceAllocator(0)
	wl.Append(NewLearnAssociation(seq.Next(), &AssociationWrite{Type: types.Semantic}))

	stats := wl.Stats()
	if stats.Pending != 1 {
		t.Errorf("expected 1 pending, got %d", stats.Pending)
	}
	if stats.Appended != 1 {
		t.Errorf("expected 1 appended, got %d", stats.Appended)
	}
}
