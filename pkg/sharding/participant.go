package sharding

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sutra-memory/engine/internal/errorsx"
	"github.com/sutra-memory/engine/pkg/types"
	"github.com/sutra-memory/engine/pkg/wal"
	"github.com/sutra-memory/engine/pkg/writelog"
)

// ShardParticipant is the default Participant: one shard's own WAL writer,
// WriteLog, and sequence allocator driven by the coordinator instead of by
// learning.Pipeline directly. Grounded on Pipeline.LearnConcept's own
// Begin/Append/Commit-then-WriteLog.Append shape (pkg/learning/pipeline.go),
// generalized so the transaction framing is driven by external Prepare/
// Commit/Rollback calls rather than a single local method.
type ShardParticipant struct {
	wal      *wal.Writer
	writeLog *writelog.WriteLog
	sequence *writelog.SequenceAllocator

	mu      sync.Mutex
	pending map[uuid.UUID]pendingAssociation
}

type pendingAssociation struct {
	seq uint64
	op  AssociationOp
}

// NewShardParticipant wires one shard's durable surfaces into a Participant.
func NewShardParticipant(w *wal.Writer, wl *writelog.WriteLog, sequence *writelog.SequenceAllocator) *ShardParticipant {
	return &ShardParticipant{
		wal:      w,
		writeLog: wl,
		sequence: sequence,
		pending:  make(map[uuid.UUID]pendingAssociation),
	}
}

// Prepare writes a BeginTxn marker and the association's payload, then
// fsyncs before replying Prepared: a Prepared reply the coordinator relies
// on to send Commit must itself be durable (wal.Writer.Sync's own doc
// comment makes the same point).
func (p *ShardParticipant) Prepare(ctx context.Context, txnID uuid.UUID, op AssociationOp) error {
	beginSeq := p.sequence.Next()
	if err := p.wal.Begin(beginSeq, txnID); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "participant begin")
	}

	assocSeq := p.sequence.Next()
	payload := wal.EncodeLearnAssociation(&wal.LearnAssociationPayload{
		Source:     [types.IdSize]byte(op.Source),
		Target:     [types.IdSize]byte(op.Target),
		Type:       uint8(op.Type),
		Confidence: op.Confidence,
	})
	if err := p.wal.Append(wal.EntryLearnAssociation, assocSeq, payload); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "participant append association")
	}
	if err := p.wal.Sync(); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "participant fsync prepare")
	}

	p.mu.Lock()
	p.pending[txnID] = pendingAssociation{seq: assocSeq, op: op}
	p.mu.Unlock()
	return nil
}

// Commit writes a CommitTxn marker and admits the prepared association into
// the WriteLog. Idempotent in effect: a txnID with no pending entry
// (already committed, or prepared in a prior process before a crash) still
// gets a CommitTxn marker in the WAL but admits nothing into the WriteLog
// and returns nil, matching RecoverPending's expectation that replaying a
// commit twice is harmless.
func (p *ShardParticipant) Commit(ctx context.Context, txnID uuid.UUID) error {
	commitSeq := p.sequence.Next()
	if err := p.wal.Commit(commitSeq, txnID); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "participant commit")
	}

	p.mu.Lock()
	pending, ok := p.pending[txnID]
	delete(p.pending, txnID)
	p.mu.Unlock()
	if !ok {
		return nil
	}

	p.writeLog.Append(writelog.NewLearnAssociation(pending.seq, &writelog.AssociationWrite{
		Source:     pending.op.Source,
		Target:     pending.op.Target,
		Type:       pending.op.Type,
		Confidence: pending.op.Confidence,
	}))
	return nil
}

// Rollback writes a RollbackTxn marker and discards the prepared
// association without ever admitting it into the WriteLog.
func (p *ShardParticipant) Rollback(ctx context.Context, txnID uuid.UUID) error {
	rollbackSeq := p.sequence.Next()
	p.mu.Lock()
	delete(p.pending, txnID)
	p.mu.Unlock()
	if err := p.wal.Rollback(rollbackSeq, txnID); err != nil {
		return errorsx.Wrap(errorsx.DurabilityError, err, "participant rollback")
	}
	return nil
}
