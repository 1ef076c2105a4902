// Package writelog implements the in-memory pending-write queue (C2): a
// bounded, lock-free-on-the-hot-path admission point that callers push
// WriteEntry values into and the reconciler drains in bulk. The teacher has
// no equivalent — its writes go straight to WAL and the B+tree — so this
// package is new, but the sequence allocator is a direct rename of the
// teacher's pkg/storage/lsn_tracker.go.
package writelog

import "sync/atomic"

// SequenceAllocator hands out the single monotonic sequence shared by every
// WriteLog entry and its corresponding WAL record (spec invariant I4:
// "sequence numbers are strictly monotonic across all WriteLog and WAL
// entries"). Callers allocate once per mutation and use the same value for
// both wal.Writer.Append's lsn and the WriteEntry.Seq pushed here.
type SequenceAllocator struct {
	current uint64
}

// NewSequenceAllocator starts counting from start (used by recovery to
// resume past the highest sequence found in the last durable WAL replay).
func NewSequenceAllocator(start uint64) *SequenceAllocator {
	return &SequenceAllocator{current: start}
}

// Next reserves and returns the next sequence number.
func (s *SequenceAllocator) Next() uint64 {
	return atomic.AddUint64(&s.current, 1)
}

// Current returns the most recently allocated sequence without advancing it.
func (s *SequenceAllocator) Current() uint64 {
	return atomic.LoadUint64(&s.current)
}

// Set overwrites the counter, used once at startup after WAL replay
// reports the highest sequence actually persisted.
func (s *SequenceAllocator) Set(val uint64) {
	atomic.StoreUint64(&s.current, val)
}
