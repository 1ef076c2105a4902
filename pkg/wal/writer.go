package wal

import (
	"bufio"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sutra-memory/engine/internal/errorsx"
)

// Writer is the single-writer-task owner of one WAL file (spec §5: "WAL
// file: single-writer, multi-reader"). Shape adapted directly from the
// teacher's WALWriter: bufio.Writer + SyncPolicy + background sync
// goroutine.
type Writer struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	writer  *bufio.Writer
	options Options

	batchBytes int64

	done   chan struct{}
	ticker *time.Ticker
	closed bool
}

// NewWriter opens (creating if absent) the WAL file at path in append mode.
func NewWriter(path string, opts Options) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, errorsx.Wrap(errorsx.DurabilityError, err, "open wal file")
	}

	w := &Writer{
		path:    path,
		file:    f,
		writer:  bufio.NewWriterSize(f, opts.BufferSize),
		options: opts,
		done:    make(chan struct{}),
	}

	if opts.SyncPolicy == SyncInterval {
		w.ticker = time.NewTicker(opts.SyncIntervalDuration)
		go w.backgroundSync()
	}

	return w, nil
}

// Path returns the WAL file path (used by callers to locate the
// checkpoint directory alongside it, same convention as the teacher).
func (w *Writer) Path() string { return w.path }

// Append writes a single, non-transactional entry and returns once it is at
// least in the OS page cache (and fsynced, if the policy calls for it).
// Fails with DurabilityError if the underlying file write or fsync fails —
// the caller must not treat the originating learn/associate call as
// acknowledged (spec §4.1/§7).
func (w *Writer) Append(entryType EntryType, lsn uint64, payload []byte) error {
	return w.writeEntry(entryType, lsn, payload)
}

// Begin writes a BeginTxn framing entry for txnID.
func (w *Writer) Begin(lsn uint64, txnID uuid.UUID) error {
	return w.writeEntry(EntryBeginTxn, lsn, EncodeTxnId(txnID))
}

// Commit writes a CommitTxn framing entry for txnID.
func (w *Writer) Commit(lsn uint64, txnID uuid.UUID) error {
	return w.writeEntry(EntryCommitTxn, lsn, EncodeTxnId(txnID))
}

// Rollback writes a RollbackTxn framing entry for txnID.
func (w *Writer) Rollback(lsn uint64, txnID uuid.UUID) error {
	return w.writeEntry(EntryRollbackTxn, lsn, EncodeTxnId(txnID))
}

func (w *Writer) writeEntry(entryType EntryType, lsn uint64, payload []byte) error {
	entry := AcquireEntry()
	defer ReleaseEntry(entry)

	entry.Header = Header{
		Magic:      Magic,
		Version:    Version,
		EntryType:  entryType,
		LSN:        lsn,
		PayloadLen: uint32(len(payload)),
		CRC32:      ChecksumPayload(payload),
	}
	entry.Payload = append(entry.Payload, payload...)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errorsx.New(errorsx.DurabilityError, "wal writer is closed")
	}

	n, err := entry.WriteTo(w.writer)
	if err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "wal append")
	}
	w.batchBytes += n

	switch w.options.SyncPolicy {
	case SyncEveryWrite:
		return w.syncLocked()
	case SyncBatch:
		if w.batchBytes >= w.options.SyncBatchBytes {
			return w.syncLocked()
		}
	}
	return nil
}

// Sync forces a flush + fsync regardless of policy (used by the 2PC
// coordinator when a Prepared reply must itself be durable).
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *Writer) syncLocked() error {
	if err := w.writer.Flush(); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "wal flush")
	}
	if err := w.file.Sync(); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "wal fsync")
	}
	w.batchBytes = 0
	return nil
}

// Close flushes, fsyncs, and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.ticker != nil {
		w.ticker.Stop()
		close(w.done)
	}

	if err := w.syncLocked(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *Writer) backgroundSync() {
	for {
		select {
		case <-w.ticker.C:
			w.Sync()
		case <-w.done:
			return
		}
	}
}
