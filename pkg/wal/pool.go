package wal

import "sync"

// entryPool reuses *Entry values across WriteEntry/ReadEntry calls to keep
// the append/replay hot path out of the GC, same technique as the
// teacher's pkg/wal/pool.go.
var entryPool = sync.Pool{
	New: func() interface{} {
		return &Entry{Payload: make([]byte, 0, 4096)}
	},
}

// AcquireEntry obtains a pooled *Entry.
func AcquireEntry() *Entry {
	return entryPool.Get().(*Entry)
}

// ReleaseEntry returns e to the pool after zeroing its header and
// truncating (not discarding) its payload backing array.
func ReleaseEntry(e *Entry) {
	e.Header = Header{}
	e.Payload = e.Payload[:0]
	entryPool.Put(e)
}
