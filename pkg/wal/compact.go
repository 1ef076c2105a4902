package wal

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sutra-memory/engine/internal/errorsx"
)

// TruncateCheckpointedPrefix drops every complete record at or below
// throughSeq, keeping anything appended after the reconciler captured the
// checkpoint (spec.md §4.4 step 7: "truncate the WAL up to the checkpointed
// sequence"). Unlike TruncateTornTail, the cut point here is a logical
// sequence number rather than a byte offset, since a Pipeline goroutine may
// still be appending entries past throughSeq concurrently with the
// reconciler's checkpoint-then-truncate step; re-reading the file and
// copying forward only the surviving records (rather than blindly
// truncating to a precomputed byte offset) keeps that race from losing a
// write. Same copy-to-temp, fsync, rename shape as TruncateTornTail.
//
// throughSeq must be the highest sequence number already reflected in the
// checkpoint that triggered this call; since a transaction's WriteLog
// entries are only appended after its CommitTxn record lands (see
// learning.Pipeline.LearnConcept), every transaction the reconciler's
// batch could have observed by the time it computed throughSeq has
// already committed, so no surviving record can belong to a transaction
// whose BeginTxn this call drops.
func TruncateCheckpointedPrefix(path string, throughSeq uint64) error {
	r, err := NewReader(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer r.Close()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".wal-compact-*")
	if err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "create temp file for wal compaction")
	}
	tmpPath := tmp.Name()

	for {
		entry, err := r.ReadEntry()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			// ReadEntry never returns a non-nil entry alongside a non-EOF
			// error (any partially-acquired entry is released internally
			// before the error surfaces), so there is nothing to release.
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
		if entry.Header.LSN > throughSeq {
			if _, werr := entry.WriteTo(tmp); werr != nil {
				ReleaseEntry(entry)
				tmp.Close()
				os.Remove(tmpPath)
				return errorsx.Wrap(errorsx.DurabilityError, werr, "copy surviving wal record")
			}
		}
		ReleaseEntry(entry)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errorsx.Wrap(errorsx.DurabilityError, err, "fsync compacted wal")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errorsx.Wrap(errorsx.DurabilityError, err, "close compacted wal")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errorsx.Wrap(errorsx.DurabilityError, err, "install compacted wal")
	}
	return nil
}
