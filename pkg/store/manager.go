package store

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/launix-de/NonLockingReadMap"
	"github.com/sutra-memory/engine/internal/errorsx"
	"github.com/sutra-memory/engine/pkg/snapshot"
	"github.com/sutra-memory/engine/pkg/types"
)

// compressedFlagOffset is a reserved header byte (spec.md §4.10 reserves
// 40 trailing bytes) repurposed to record whether the Concepts section's
// per-content bytes are zstd-compressed. Using a reserved byte rather than
// widening the header keeps the fixed 64-byte header spec.md pins.
const compressedFlagOffset = 24

// Manager persists and restores checkpoint files (C10). File writes are
// atomic: serialize to a temp path, then rename over the final path, the
// same two-step the teacher's CheckpointManager.CreateCheckpoint uses
// (os.WriteFile to a ".tmp" path, then os.Rename).
type Manager struct {
	path        string
	compression bool
}

// NewManager targets path (conventionally storage_dir/storage.dat, per
// spec.md §6's storage_dir configuration entry). compression enables zstd
// compression of concept content bytes.
func NewManager(path string, compression bool) *Manager {
	return &Manager{path: path, compression: compression}
}

// Persist writes snap to m.path atomically, satisfying
// reconciler.Checkpointer.
func (m *Manager) Persist(snap *snapshot.GraphSnapshot) error {
	concepts, edges, vectorCount := snapshotContents(snap)

	var encoder *zstd.Encoder
	if m.compression {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return errorsx.Wrap(errorsx.DurabilityError, err, "create zstd encoder")
		}
		defer enc.Close()
		encoder = enc
	}

	var buf bytes.Buffer
	header := Header{
		Version:      Version,
		ConceptCount: uint32(len(concepts)),
		EdgeCount:    0,
		VectorCount:  uint32(vectorCount),
	}
	for _, el := range edges {
		header.EdgeCount += uint32(len(el.Edges))
	}
	headerBytes := encodeHeader(header)
	if m.compression {
		headerBytes[compressedFlagOffset] = 1
	}
	buf.Write(headerBytes)

	for _, c := range concepts {
		content := []byte(c.Content)
		if encoder != nil {
			content = encoder.EncodeAll(content, nil)
		}
		buf.Write(encodeConcept(c, content))
	}

	for _, el := range edges {
		source, err := types.ParseConceptId(el.SourceKey)
		if err != nil {
			continue // cannot happen for a snapshot built through this package's own writers
		}
		for _, e := range el.Edges {
			buf.Write(encodeEdge(source, e))
		}
	}

	for _, c := range concepts {
		if c.Vector != nil {
			buf.Write(encodeVector(c.Id, c.Vector))
		}
	}

	return m.writeAtomic(buf.Bytes())
}

func (m *Manager) writeAtomic(data []byte) error {
	dir := filepath.Dir(m.path)
	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "write temp checkpoint file")
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "rename checkpoint into place")
	}
	// best-effort: fsync the containing directory so the rename itself is
	// durable, not just the file contents.
	if dirFile, err := os.Open(dir); err == nil {
		_ = dirFile.Sync()
		_ = dirFile.Close()
	}
	return nil
}

// Load reads m.path and rebuilds a GraphSnapshot. A missing file returns
// os.ErrNotExist (the caller treats this as "no checkpoint yet" and starts
// from an empty snapshot plus full WAL replay).
func (m *Manager) Load() (*snapshot.GraphSnapshot, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}

	header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	compressed := data[compressedFlagOffset] == 1

	var decoder *zstd.Decoder
	if compressed {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errorsx.Wrap(errorsx.DurabilityError, err, "create zstd decoder")
		}
		defer dec.Close()
		decoder = dec
	}

	off := HeaderSize
	concepts := make(map[string]*types.Concept, header.ConceptCount)
	conceptOrder := make([]types.ConceptId, 0, header.ConceptCount)
	for i := uint32(0); i < header.ConceptCount; i++ {
		dc, err := decodeConcept(data[off:])
		if err != nil {
			return nil, err
		}
		off += dc.consumed

		content := dc.content
		if decoder != nil {
			raw, err := decoder.DecodeAll([]byte(content), nil)
			if err != nil {
				return nil, errorsx.Wrap(errorsx.Corruption, err, "decompress concept content")
			}
			content = string(raw)
		}

		concepts[dc.id.String()] = &types.Concept{
			Id:             dc.id,
			Content:        content,
			Strength:       dc.strength,
			Confidence:     dc.confidence,
			AccessCount:    dc.accessCount,
			CreatedAt:      dc.createdAt,
			LastAccessedAt: dc.createdAt,
			SemanticType:   types.SemanticUnknown,
		}
		conceptOrder = append(conceptOrder, dc.id)
	}

	edgeLists := make(map[string]*types.EdgeList)
	edgeBytesRemaining := int(header.EdgeCount) * edgeRecordSize
	for consumed := 0; consumed < edgeBytesRemaining; consumed += edgeRecordSize {
		de, err := decodeEdge(data[off:])
		if err != nil {
			return nil, err
		}
		off += edgeRecordSize

		key := de.source.String()
		list := edgeLists[key]
		if list == nil {
			list = &types.EdgeList{SourceKey: key}
			edgeLists[key] = list
		}
		list.Edges = append(list.Edges, types.Edge{
			Target:     de.target,
			Type:       de.assocType,
			Confidence: de.confidence,
			Weight:     1.0,
		})
	}

	for i := uint32(0); i < header.VectorCount; i++ {
		dv, err := decodeVector(data[off:])
		if err != nil {
			return nil, err
		}
		off += dv.consumed
		if c, ok := concepts[dv.id.String()]; ok {
			c.Vector = dv.vector
		}
	}

	snap := &snapshot.GraphSnapshot{
		Concepts:  NonLockingReadMap.New[*types.Concept, string](),
		Edges:     NonLockingReadMap.New[*types.EdgeList, string](),
		WordIndex: NonLockingReadMap.New[*snapshot.WordIndexEntry, string](),
	}
	for _, id := range conceptOrder {
		c := concepts[id.String()]
		snap.Concepts.Set(&c)
		for _, word := range snapshot.Tokenize(c.Content) {
			entryPtr := snap.WordIndex.Get(word)
			var ids []string
			if entryPtr != nil {
				ids = (*entryPtr).ConceptIds
			}
			entry := &snapshot.WordIndexEntry{Word: word, ConceptIds: appendUnique(ids, c.Id.String())}
			snap.WordIndex.Set(&entry)
		}
	}
	for _, list := range edgeLists {
		snap.Edges.Set(&list)
	}

	return snap, nil
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
