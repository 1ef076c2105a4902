// Package learning implements the LearningPipeline (C6): the single
// write path for new content, per spec.md §4.6's "critical design
// decision (do not violate)" that learning logic lives inside the engine
// rather than accepting raw concept+vector pairs from clients. Grounded on
// the teacher's StorageEngine.Put/InsertRow control flow — allocate an
// LSN, append to the WAL, then update the in-memory structure — here
// generalized to allocate one shared sequence per mutation, write it to
// both the WAL and the WriteLog, and run classification/extraction in
// between.
package learning

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/sutra-memory/engine/internal/errorsx"
	"github.com/sutra-memory/engine/pkg/classifier"
	"github.com/sutra-memory/engine/pkg/extraction"
	"github.com/sutra-memory/engine/pkg/metrics"
	"github.com/sutra-memory/engine/pkg/types"
	"github.com/sutra-memory/engine/pkg/wal"
	"github.com/sutra-memory/engine/pkg/writelog"
)

// Embedder abstracts pkg/embedding.Client so this package doesn't need a
// build-order dependency on the HTTP client/circuit breaker.
type Embedder interface {
	Embed(ctx context.Context, content string) ([]float32, error)
}

// Clock abstracts the wall-clock timestamp source, overridden in tests so
// pipeline behavior is deterministic without faking real time.
type Clock func() int64

// AssociationOp mirrors sharding.AssociationOp field-for-field so this
// package doesn't need a build-order dependency on pkg/sharding; a caller
// wiring a multi-shard deployment converts between the two with a plain
// Go type conversion (cmd/sutrad does this).
type AssociationOp struct {
	Source     types.ConceptId
	Target     types.ConceptId
	Type       types.AssociationType
	Confidence float64
}

// AssociationCommitter abstracts pkg/sharding.Coordinator.CommitAssociation,
// used when an association extracted during LearnConcept targets a concept
// living on a different shard (spec.md §4.9).
type AssociationCommitter interface {
	CommitAssociation(ctx context.Context, op AssociationOp) error
}

// ShardRouter abstracts pkg/sharding.Router.Shard, letting the pipeline
// tell whether an extracted tuple's target concept is local to this
// shard or needs to go through the coordinator.
type ShardRouter interface {
	Shard(id types.ConceptId) uint32
}

// Pipeline is the LearningPipeline (C6).
type Pipeline struct {
	wal       *wal.Writer
	writeLog  *writelog.WriteLog
	sequence  *writelog.SequenceAllocator
	embedder  Embedder
	dimension int
	reg       *metrics.Registry
	now       Clock

	shardID     uint32
	router      ShardRouter
	coordinator AssociationCommitter
}

// SetSharding wires this pipeline into a multi-shard deployment: shardID is
// the shard this pipeline owns, router resolves a concept id to its home
// shard, and coordinator drives 2PC for any extracted association whose
// target resolves to a different shard. Leaving this unset (the default)
// keeps every extracted association local, matching the single-shard
// behavior spec.md §4.9 describes for num_shards=1.
func (p *Pipeline) SetSharding(shardID uint32, router ShardRouter, coordinator AssociationCommitter) {
	p.shardID = shardID
	p.router = router
	p.coordinator = coordinator
}

// New creates a Pipeline. sequence must be the one SequenceAllocator shared
// by every writer of this shard's WAL (in a sharded deployment that also
// includes the shard's ShardParticipant), seeded past WAL replay's highest
// LSN, so the WAL lsn and the WriteLog's WriteEntry.Seq always agree
// (invariant I4).
// embedder may be nil, in which case every learn call behaves as if
// generate_embedding were false.
func New(w *wal.Writer, wl *writelog.WriteLog, sequence *writelog.SequenceAllocator, embedder Embedder, dimension int, reg *metrics.Registry, now Clock) *Pipeline {
	return &Pipeline{
		wal:       w,
		writeLog:  wl,
		sequence:  sequence,
		embedder:  embedder,
		dimension: dimension,
		reg:       reg,
		now:       now,
	}
}

// LearnConcept runs the full algorithm of spec.md §4.6 and returns the
// derived ConceptId.
func (p *Pipeline) LearnConcept(ctx context.Context, content string, opts Options) (types.ConceptId, error) {
	id := types.DeriveConceptId(content)
	now := p.now()

	var vector []float32
	if opts.GenerateEmbedding && p.embedder != nil {
		v, err := p.embedder.Embed(ctx, content)
		if err != nil {
			if opts.StrictEmbedding {
				return id, err
			}
			// non-fatal: concept is stored without a vector (spec.md §4.6)
		} else {
			vector = v
		}
	}

	var semanticType types.SemanticType
	if opts.AnalyzeSemantics {
		semanticType = classifier.Classify(content)
	}

	var tuples []extraction.Tuple
	if opts.ExtractAssociations {
		tuples = selectTuples(extraction.Extract(content), opts.MinAssociationConfidence, opts.MaxAssociationsPerConcept)
	}

	txnID := uuid.New()
	if err := p.wal.Begin(p.sequence.Next(), txnID); err != nil {
		return id, errorsx.Wrap(errorsx.DurabilityError, err, "begin learn_concept transaction")
	}

	conceptSeq := p.sequence.Next()
	conceptPayload := wal.EncodeLearnConcept(&wal.LearnConceptPayload{
		Id:             id,
		Content:        content,
		Vector:         vector,
		Strength:       types.ClampStrength(opts.InitialStrength),
		Confidence:     types.ClampConfidence(opts.InitialConfidence),
		TimestampMicro: now,
		SemanticType:   string(semanticType),
	})
	if err := p.wal.Append(wal.EntryLearnConcept, conceptSeq, conceptPayload); err != nil {
		_ = p.wal.Rollback(p.sequence.Next(), txnID)
		return id, errorsx.Wrap(errorsx.DurabilityError, err, "append LearnConcept entry")
	}

	type pendingAssociation struct {
		seq    uint64
		source types.ConceptId
		target types.ConceptId
		assoc  types.AssociationType
		conf   float64
	}
	var pending []pendingAssociation

	var crossShard []pendingAssociation
	for _, tup := range tuples {
		source := types.DeriveConceptId(tup.Subject)
		target := types.DeriveConceptId(tup.Object)

		if p.coordinator != nil && p.router != nil && p.router.Shard(target) != p.shardID {
			// Cross-shard: deferred until after this transaction commits,
			// since the coordinator writes its own BeginTxn/CommitTxn
			// framing on each participant shard (spec.md §4.9) and must
			// not interleave with this shard's own in-flight transaction.
			crossShard = append(crossShard, pendingAssociation{source: source, target: target, assoc: tup.Relation, conf: tup.Confidence})
			continue
		}

		seq := p.sequence.Next()
		assocPayload := wal.EncodeLearnAssociation(&wal.LearnAssociationPayload{
			Source:     source,
			Target:     target,
			Type:       uint8(tup.Relation),
			Confidence: tup.Confidence,
		})
		if err := p.wal.Append(wal.EntryLearnAssociation, seq, assocPayload); err != nil {
			// association extraction failures are non-fatal (spec.md §4.6);
			// the concept itself is still committed below.
			continue
		}
		pending = append(pending, pendingAssociation{seq: seq, source: source, target: target, assoc: tup.Relation, conf: tup.Confidence})
	}

	if err := p.wal.Commit(p.sequence.Next(), txnID); err != nil {
		return id, errorsx.Wrap(errorsx.DurabilityError, err, "commit learn_concept transaction")
	}

	p.writeLog.Append(writelog.NewLearnConcept(conceptSeq, &writelog.ConceptWrite{
		Id:             id,
		Content:        content,
		Vector:         vector,
		Strength:       types.ClampStrength(opts.InitialStrength),
		Confidence:     types.ClampConfidence(opts.InitialConfidence),
		TimestampMicro: now,
		SemanticType:   semanticType,
	}))
	for _, a := range pending {
		p.writeLog.Append(writelog.NewLearnAssociation(a.seq, &writelog.AssociationWrite{
			Source:     a.source,
			Target:     a.target,
			Type:       a.assoc,
			Confidence: a.conf,
		}))
	}

	for _, a := range crossShard {
		op := AssociationOp{Source: a.source, Target: a.target, Type: a.assoc, Confidence: a.conf}
		if err := p.coordinator.CommitAssociation(ctx, op); err != nil {
			// same non-fatal treatment as a local association append
			// failure above: the concept itself has already committed.
			continue
		}
	}

	return id, nil
}

// Strengthen submits a Strengthen mutation outside of any transaction
// framing, used by the reasoning engine after a successful traversal
// (spec.md §4.7: "every concept visited is scheduled for a Strengthen
// entry").
func (p *Pipeline) Strengthen(id types.ConceptId) error {
	seq := p.sequence.Next()
	payload := wal.EncodeStrengthen(&wal.StrengthenPayload{Id: id})
	if err := p.wal.Append(wal.EntryStrengthen, seq, payload); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "append Strengthen entry")
	}
	p.writeLog.Append(&writelog.WriteEntry{
		Seq:        seq,
		Kind:       wal.EntryStrengthen,
		Strengthen: &writelog.StrengthenWrite{Id: id},
	})
	return nil
}

// selectTuples discards low-confidence tuples and caps the result at max,
// keeping the highest-confidence tuples first (spec.md §4.6 step 4).
func selectTuples(tuples []extraction.Tuple, minConfidence float64, max int) []extraction.Tuple {
	filtered := make([]extraction.Tuple, 0, len(tuples))
	for _, t := range tuples {
		if t.Confidence >= minConfidence {
			filtered = append(filtered, t)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Confidence > filtered[j].Confidence })
	if max > 0 && len(filtered) > max {
		filtered = filtered[:max]
	}
	return filtered
}
