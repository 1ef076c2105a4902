// Package sharding implements the ShardRouter and 2PC coordinator (C9): an
// optional layer that partitions concepts across S fixed shards and makes
// cross-shard association writes atomic. Grounded on the teacher's
// transaction-framing idea (EntryBeginTxn/EntryCommitTxn/EntryRollbackTxn in
// pkg/wal/entry.go), generalized from a single-process transaction marker
// to a two-phase commit protocol that writes the same markers per
// participant WAL.
package sharding

import (
	"github.com/cespare/xxhash/v2"
	"github.com/sutra-memory/engine/internal/errorsx"
	"github.com/sutra-memory/engine/pkg/types"
)

// ValidShardCounts is the closed set of deployable shard counts (spec §4.9).
var ValidShardCounts = map[uint32]bool{1: true, 2: true, 4: true, 8: true, 16: true}

// Router computes shard(concept_id) = hash(concept_id) mod S, using
// xxhash rather than ConceptId's own sha256 so placement doesn't correlate
// with content-derived id bits (spec §4.9: "a hash function independent of
// ConceptId's own hash").
type Router struct {
	numShards uint32
}

// NewRouter validates numShards against the closed set before accepting it.
func NewRouter(numShards uint32) (*Router, error) {
	if !ValidShardCounts[numShards] {
		return nil, errorsx.Newf(errorsx.InvalidRequest, "num_shards must be one of 1, 2, 4, 8, 16; got %d", numShards)
	}
	return &Router{numShards: numShards}, nil
}

// NumShards returns S.
func (r *Router) NumShards() uint32 { return r.numShards }

// Shard returns the owning shard index for id, in [0, NumShards).
func (r *Router) Shard(id types.ConceptId) uint32 {
	if r.numShards == 1 {
		return 0
	}
	return uint32(xxhash.Sum64(id[:]) % uint64(r.numShards))
}

// CrossShard reports whether source and target hash to different shards,
// the condition that triggers the 2PC path rather than a direct single-
// shard write (spec §4.9).
func (r *Router) CrossShard(source, target types.ConceptId) bool {
	return r.Shard(source) != r.Shard(target)
}
