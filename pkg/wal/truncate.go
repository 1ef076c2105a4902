package wal

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sutra-memory/engine/internal/errorsx"
)

// TruncateTornTail drops every byte in the WAL file at path beyond
// validOffset (the verified-good prefix reported by Replay when
// Truncated is true), so that subsequent appends don't leave a corrupt
// record sitting in the middle of the file. Implemented as a copy-to-temp,
// fsync, rename, matching the teacher's checkpoint.go atomic-write pattern
// rather than an in-place os.Truncate, since the WAL directory may be on a
// filesystem where truncate-then-crash can leave a zero-length file.
func TruncateTornTail(path string, validOffset int64) error {
	src, err := os.Open(path)
	if err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "open wal for truncation")
	}
	defer src.Close()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".wal-truncate-*")
	if err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "create temp file for wal truncation")
	}
	tmpPath := tmp.Name()

	if _, err := io.CopyN(tmp, src, validOffset); err != nil && err != io.EOF {
		tmp.Close()
		os.Remove(tmpPath)
		return errorsx.Wrap(errorsx.DurabilityError, err, "copy valid wal prefix")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errorsx.Wrap(errorsx.DurabilityError, err, "fsync truncated wal")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errorsx.Wrap(errorsx.DurabilityError, err, "close truncated wal")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errorsx.Wrap(errorsx.DurabilityError, err, "install truncated wal")
	}
	return nil
}
