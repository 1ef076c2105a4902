package wal

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConceptEntry(t *testing.T, w *Writer, lsn uint64, content string) {
	t.Helper()
	payload := EncodeLearnConcept(&LearnConceptPayload{Content: content})
	if err := w.Append(EntryLearnConcept, lsn, payload); err != nil {
		t.Fatalf("append failed: %v", err)
	}
}

func TestReadEntryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.log")

	w, err := NewWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	writeConceptEntry(t, w, 1, "machine learning")
	w.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	defer r.Close()

	entry, err := r.ReadEntry()
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if entry.Header.EntryType != EntryLearnConcept {
		t.Errorf("unexpected entry type: %v", entry.Header.EntryType)
	}

	if _, err := r.ReadEntry(); err == nil {
		t.Error("expected EOF reading past the last entry")
	}
}

func TestReplayCommittedTransaction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "committed.log")

	w, err := NewWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	txnID := mustNewTxnID(t)
	if err := w.Begin(1, txnID); err != nil {
		t.Fatalf("begin: %v", err)
	}
	writeConceptEntry(t, w, 2, "concept-a")
	writeConceptEntry(t, w, 3, "concept-b")
	if err := w.Commit(4, txnID); err != nil {
		t.Fatalf("commit: %v", err)
	}
	w.Close()

	result, err := Replay(path)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 committed entries, got %d", len(result.Entries))
	}
	if result.Entries[0].Concept.Content != "concept-a" {
		t.Errorf("unexpected order/content: %+v", result.Entries[0].Concept)
	}
	if result.Truncated {
		t.Error("a clean commit should not report truncation")
	}
}

func TestReplayDiscardsRolledBackTransaction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollback.log")

	w, err := NewWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	txnID := mustNewTxnID(t)
	if err := w.Begin(1, txnID); err != nil {
		t.Fatalf("begin: %v", err)
	}
	writeConceptEntry(t, w, 2, "should-vanish")
	if err := w.Rollback(3, txnID); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	w.Close()

	result, err := Replay(path)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Fatalf("expected 0 entries after rollback, got %d", len(result.Entries))
	}
}

func TestReplayDiscardsUncommittedTailAtEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uncommitted.log")

	w, err := NewWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	txnID := mustNewTxnID(t)
	if err := w.Begin(1, txnID); err != nil {
		t.Fatalf("begin: %v", err)
	}
	writeConceptEntry(t, w, 2, "never-committed")
	w.Close() // crash: no CommitTxn ever written

	result, err := Replay(path)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Fatalf("expected uncommitted entries to be discarded, got %d", len(result.Entries))
	}
}

func TestReplayToleratesTornTrailingRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torn.log")

	w, err := NewWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	writeConceptEntry(t, w, 1, "good-entry")
	w.Close()

	validSize, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	// Simulate a crash mid-write: append a partial header.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("write torn bytes: %v", err)
	}
	f.Close()

	result, err := Replay(path)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected the one good entry to survive, got %d", len(result.Entries))
	}
	if !result.Truncated {
		t.Error("expected Truncated to be true for a torn trailing record")
	}
	if result.ValidByteOffset != validSize.Size() {
		t.Errorf("expected valid offset %d, got %d", validSize.Size(), result.ValidByteOffset)
	}
}

func TestTruncateTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncate.log")

	w, err := NewWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	writeConceptEntry(t, w, 1, "keep-me")
	w.Close()

	validInfo, _ := os.Stat(path)
	validSize := validInfo.Size()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	f.Write([]byte{9, 9, 9})
	f.Close()

	if err := TruncateTornTail(path, validSize); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != validSize {
		t.Errorf("expected size %d after truncation, got %d", validSize, info.Size())
	}

	result, err := Replay(path)
	if err != nil {
		t.Fatalf("replay after truncate: %v", err)
	}
	if result.Truncated {
		t.Error("replay after truncation should see a clean file")
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry after truncation, got %d", len(result.Entries))
	}
}

func TestReplayMissingFileReturnsEmptyResult(t *testing.T) {
	result, err := Replay(filepath.Join(t.TempDir(), "does-not-exist.log"))
	if err != nil {
		t.Fatalf("replay of missing file should not error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Error("expected no entries for a missing file")
	}
}
