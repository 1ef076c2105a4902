package vectorindex

import (
	"bufio"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/exp/mmap"

	"github.com/sutra-memory/engine/internal/errorsx"
	"github.com/sutra-memory/engine/pkg/types"
)

// fileMagic identifies a vectorindex on-disk snapshot.
const fileMagic uint32 = 0x53565831 // "SVX1"

// Persist writes the index to path as a flat vector array followed by an
// adjacency section, the layout Load reads back through
// golang.org/x/exp/mmap. Writes to a temp file and renames into place, mirroring the teacher's
// checkpoint atomic-write pattern (pkg/storage/checkpoint.go).
func (idx *Index) Persist(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), "vectorindex-*.tmp")
	if err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "create temp vectorindex file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	ids := make([]types.ConceptId, 0, len(idx.nodes))
	for id := range idx.nodes {
		ids = append(ids, id)
	}

	header := make([]byte, 16)
	binary.LittleEndian.PutUint32(header[0:4], fileMagic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(idx.dimension))
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(ids)))
	if _, err := w.Write(header); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "write vectorindex header")
	}

	for _, id := range ids {
		n := idx.nodes[id]
		if _, err := w.Write(id[:]); err != nil {
			return errorsx.Wrap(errorsx.DurabilityError, err, "write vectorindex id")
		}
		if err := binary.Write(w, binary.LittleEndian, n.vector); err != nil {
			return errorsx.Wrap(errorsx.DurabilityError, err, "write vectorindex vector")
		}
	}

	for _, id := range ids {
		n := idx.nodes[id]
		if err := binary.Write(w, binary.LittleEndian, uint32(len(n.neighbors))); err != nil {
			return errorsx.Wrap(errorsx.DurabilityError, err, "write vectorindex neighbor count")
		}
		for _, neighbor := range n.neighbors {
			if _, err := w.Write(neighbor[:]); err != nil {
				return errorsx.Wrap(errorsx.DurabilityError, err, "write vectorindex neighbor id")
			}
		}
	}

	if err := w.Flush(); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "flush vectorindex file")
	}
	if err := tmp.Sync(); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "sync vectorindex file")
	}
	if err := tmp.Close(); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "close vectorindex temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "install vectorindex file")
	}
	return nil
}

// Load reads an index previously written by Persist. The file is opened
// via golang.org/x/exp/mmap, but the whole vector section is copied out of
// the mapping and every vector is decoded, so startup cost grows with the
// full vector array as well as with the adjacency section.
func Load(path string) (*Index, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, errorsx.Wrap(errorsx.DurabilityError, err, "mmap open vectorindex file")
	}
	defer reader.Close()

	header := make([]byte, 16)
	if _, err := reader.ReadAt(header, 0); err != nil {
		return nil, errorsx.Wrap(errorsx.Corruption, err, "read vectorindex header")
	}
	if binary.LittleEndian.Uint32(header[0:4]) != fileMagic {
		return nil, errorsx.New(errorsx.IncompatibleFormat, "vectorindex file has unrecognized magic")
	}
	dimension := int(binary.LittleEndian.Uint32(header[4:8]))
	count := int(binary.LittleEndian.Uint64(header[8:16]))

	idx := New(dimension)

	// One bulk ReadAt over the whole vector section instead of one per
	// record: the mapped region is already demand-paged by the OS on
	// first touch, so the only cost this saves on top of that is the
	// per-record ReadAt call overhead, but it keeps the decode loop below
	// a single pass over a single buffer rather than N tiny allocations.
	recordSize := types.IdSize + 4*dimension
	offset := int64(16)
	order := make([]types.ConceptId, 0, count)

	section := make([]byte, recordSize*count)
	if count > 0 {
		if _, err := reader.ReadAt(section, offset); err != nil {
			return nil, errorsx.Wrap(errorsx.Corruption, err, "read vectorindex record section")
		}
	}

	for i := 0; i < count; i++ {
		buf := section[i*recordSize : (i+1)*recordSize]

		var id types.ConceptId
		copy(id[:], buf[:types.IdSize])
		vector := make([]float32, dimension)
		for j := 0; j < dimension; j++ {
			bits := binary.LittleEndian.Uint32(buf[types.IdSize+4*j : types.IdSize+4*j+4])
			vector[j] = math.Float32frombits(bits)
		}
		idx.nodes[id] = &node{id: id, vector: vector}
		order = append(order, id)
	}
	offset += int64(recordSize * count)

	for _, id := range order {
		countBuf := make([]byte, 4)
		if _, err := reader.ReadAt(countBuf, offset); err != nil {
			return nil, errorsx.Wrap(errorsx.Corruption, err, "read vectorindex neighbor count")
		}
		offset += 4
		neighborCount := int(binary.LittleEndian.Uint32(countBuf))

		neighbors := make([]types.ConceptId, 0, neighborCount)
		for j := 0; j < neighborCount; j++ {
			idBuf := make([]byte, types.IdSize)
			if _, err := reader.ReadAt(idBuf, offset); err != nil {
				return nil, errorsx.Wrap(errorsx.Corruption, err, "read vectorindex neighbor id")
			}
			offset += int64(types.IdSize)
			var neighborId types.ConceptId
			copy(neighborId[:], idBuf)
			neighbors = append(neighbors, neighborId)
		}
		idx.nodes[id].neighbors = neighbors
	}

	for i, id := range order {
		if i >= 4 {
			break
		}
		idx.entryPoints = append(idx.entryPoints, id)
	}
	return idx, nil
}

