package vectorindex

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPersistAndLoadRoundTrip(t *testing.T) {
	idx := New(3)
	idx.Insert(id("a"), []float32{1, 0, 0})
	idx.Insert(id("b"), []float32{0, 1, 0})
	idx.Insert(id("c"), []float32{0, 0, 1})

	path := filepath.Join(t.TempDir(), "index.bin")
	if err := idx.Persist(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 3 {
		t.Fatalf("expected 3 nodes after load, got %d", loaded.Len())
	}

	results, err := loaded.Search([]float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Id != id("a") {
		t.Fatalf("expected exact match after reload, got %+v", results)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	if err := writeGarbage(path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected Load to reject a file with the wrong magic")
	}
}

func writeGarbage(path string) error {
	return os.WriteFile(path, make([]byte, 32), 0o644)
}
