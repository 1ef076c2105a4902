package writelog

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// AdmissionPolicy selects what happens when the WriteLog is full.
type AdmissionPolicy int

const (
	// PolicyBlock applies backpressure: Append blocks until a slot frees
	// up. The default (spec.md §4.2).
	PolicyBlock AdmissionPolicy = iota

	// PolicyEvictOldest drops the oldest pending entry to make room,
	// for soft-realtime workloads that prefer freshness over
	// completeness. Every eviction increments a Prometheus counter —
	// spec.md §4.2 calls a silent drop without counter exposure a defect.
	PolicyEvictOldest
)

// WriteLog is the bounded, append-only admission queue between callers and
// the reconciler. Grounded on the teacher's LSNTracker pattern for
// sequence handling (see sequence.go); the queue itself has no teacher
// analogue, since the teacher writes straight through to its B-tree.
type WriteLog struct {
	ch      chan *WriteEntry
	policy  AdmissionPolicy
	dropped prometheus.Counter

	mu       sync.Mutex
	appended uint64
}

// New creates a WriteLog with the given channel capacity and admission
// policy. dropped may be nil (tests), otherwise it should be
// metrics.Registry.WriteLogDropped.
func New(capacity int, policy AdmissionPolicy, dropped prometheus.Counter) *WriteLog {
	return &WriteLog{
		ch:      make(chan *WriteEntry, capacity),
		policy:  policy,
		dropped: dropped,
	}
}

// Append admits entry, applying the configured policy if the queue is
// full. entry.Seq must already be set by the caller (see SequenceAllocator)
// so that it matches the sequence written to the WAL for the same
// mutation. Never blocks indefinitely under PolicyEvictOldest; under
// PolicyBlock it blocks only as long as the queue stays full, same as the
// spec's "writers never block on each other beyond reserving a sequence
// number and pushing one entry."
func (w *WriteLog) Append(entry *WriteEntry) {
	switch w.policy {
	case PolicyEvictOldest:
		for {
			select {
			case w.ch <- entry:
				w.recordAppend()
				return
			default:
				select {
				case <-w.ch:
					if w.dropped != nil {
						w.dropped.Inc()
					}
				default:
				}
			}
		}
	default: // PolicyBlock
		w.ch <- entry
		w.recordAppend()
	}
}

func (w *WriteLog) recordAppend() {
	w.mu.Lock()
	w.appended++
	w.mu.Unlock()
}

// Drain atomically extracts every entry present in the queue at call time,
// in FIFO (and therefore sequence) order. New entries appended concurrently
// during the drain are left for the next cycle.
func (w *WriteLog) Drain() []*WriteEntry {
	var out []*WriteEntry
	for {
		select {
		case e := <-w.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

// PendingCount reports how many entries are currently queued.
func (w *WriteLog) PendingCount() int {
	return len(w.ch)
}

// Stats is the observability snapshot backing spec.md §4.2's stats()
// contract.
type Stats struct {
	Pending  int
	Appended uint64
}

func (w *WriteLog) Stats() Stats {
	w.mu.Lock()
	appended := w.appended
	w.mu.Unlock()
	return Stats{Pending: w.PendingCount(), Appended: appended}
}
