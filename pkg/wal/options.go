package wal

import "time"

// SyncPolicy selects the durability/throughput tradeoff for fsync calls.
type SyncPolicy int

const (
	// SyncEveryWrite fsyncs after every append. Safest, slowest; used when
	// wal_fsync=true (spec §6) since an acknowledged learn call must
	// guarantee durability (spec §7).
	SyncEveryWrite SyncPolicy = iota

	// SyncInterval fsyncs on a background timer. Balanced.
	SyncInterval

	// SyncBatch fsyncs once accumulated bytes since the last sync cross a
	// threshold. Highest throughput, used when wal_fsync=false.
	SyncBatch
)

// Options configures a Writer.
type Options struct {
	// BufferSize is the bufio.Writer buffer size before it flushes to the
	// OS page cache.
	BufferSize int

	SyncPolicy SyncPolicy

	// SyncIntervalDuration is the background fsync period for SyncInterval.
	SyncIntervalDuration time.Duration

	// SyncBatchBytes is the accumulated-bytes threshold for SyncBatch.
	SyncBatchBytes int64
}

// DefaultOptions returns a conservative, durability-first configuration,
// mirroring the teacher's own DefaultOptions.
func DefaultOptions() Options {
	return Options{
		BufferSize:           64 * 1024,
		SyncPolicy:           SyncEveryWrite,
		SyncIntervalDuration: 200 * time.Millisecond,
		SyncBatchBytes:       1 * 1024 * 1024,
	}
}

// FromFsyncFlag maps the closed wal_fsync config bool (spec §6) onto a
// SyncPolicy: true selects an fsync after every append, false opts into
// batched syncs (an fsync once SyncBatchBytes have accumulated) for higher
// throughput.
func FromFsyncFlag(fsync bool) Options {
	opts := DefaultOptions()
	if !fsync {
		opts.SyncPolicy = SyncBatch
	}
	return opts
}
