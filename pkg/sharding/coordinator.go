package sharding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sutra-memory/engine/internal/errorsx"
	"github.com/sutra-memory/engine/pkg/types"
)

// DefaultPrepareTimeout is the bounded wait for a participant's Prepared
// reply before the coordinator treats it as an implicit Abort (spec §4.9:
// "a bounded timeout, default 5s, causes implicit Abort").
const DefaultPrepareTimeout = 5 * time.Second

// AssociationOp is the cross-shard operation the 2PC protocol carries:
// learning one association whose source and target concepts live on
// different shards.
type AssociationOp struct {
	Source     types.ConceptId
	Target     types.ConceptId
	Type       types.AssociationType
	Confidence float64
}

// Participant is a single shard's 2PC surface. Each shard's
// ShardParticipant (participant.go) implements this by writing the matching
// BeginTxn/CommitTxn/RollbackTxn WAL markers and buffering/admitting the
// op into its own WriteLog — the same framing pkg/wal.Writer already
// provides for single-shard transactions, here driven by the coordinator
// instead of the Pipeline itself.
type Participant interface {
	// Prepare writes a BeginTxn(txnID) entry and buffers op. It returns nil
	// (Prepared) or an error (Abort).
	Prepare(ctx context.Context, txnID uuid.UUID, op AssociationOp) error
	// Commit writes a CommitTxn(txnID) entry and admits the buffered op.
	Commit(ctx context.Context, txnID uuid.UUID) error
	// Rollback writes a RollbackTxn(txnID) entry and discards the buffered op.
	Rollback(ctx context.Context, txnID uuid.UUID) error
}

// CommitLog records the global commit record spec §4.9 describes: written
// once every participant has replied Prepared, before any Commit message is
// sent, so a coordinator crash mid-commit can be resolved on recovery
// ("the global commit record is used on recovery to drive remaining
// participants to commit").
type CommitLog interface {
	RecordCommit(txnID uuid.UUID, shards []uint32) error
	Committed(txnID uuid.UUID) ([]uint32, bool, error)
}

// Coordinator runs the 2PC protocol of spec §4.9 across a fixed set of
// shard participants.
type Coordinator struct {
	router       *Router
	participants map[uint32]Participant
	commitLog    CommitLog
	timeout      time.Duration
}

// NewCoordinator wires a Router, one Participant per shard index, and a
// CommitLog. timeout <= 0 uses DefaultPrepareTimeout.
func NewCoordinator(router *Router, participants map[uint32]Participant, commitLog CommitLog, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultPrepareTimeout
	}
	return &Coordinator{router: router, participants: participants, commitLog: commitLog, timeout: timeout}
}

// CommitAssociation routes op to its owning shard directly if source and
// target share a shard (spec §4.9: "single-shard writes: routed to the
// owning shard, which performs the normal learn path"), or drives a full
// 2PC round across the two participant shards otherwise.
func (c *Coordinator) CommitAssociation(ctx context.Context, op AssociationOp) error {
	sourceShard := c.router.Shard(op.Source)
	targetShard := c.router.Shard(op.Target)

	if sourceShard == targetShard {
		return c.commitSingleShard(ctx, sourceShard, op)
	}
	return c.commitTwoPhase(ctx, []uint32{sourceShard, targetShard}, op)
}

func (c *Coordinator) commitSingleShard(ctx context.Context, shard uint32, op AssociationOp) error {
	p, err := c.participant(shard)
	if err != nil {
		return err
	}
	txnID := uuid.New()
	if err := p.Prepare(ctx, txnID, op); err != nil {
		return errorsx.Wrap(errorsx.TransactionAborted, err, "single-shard prepare failed")
	}
	return p.Commit(ctx, txnID)
}

// commitTwoPhase implements spec §4.9 steps 1-3 across the given shard set.
func (c *Coordinator) commitTwoPhase(ctx context.Context, shards []uint32, op AssociationOp) error {
	txnID := uuid.New()

	prepared := make([]uint32, 0, len(shards))
	var prepareErr error
	for _, shard := range shards {
		p, err := c.participant(shard)
		if err != nil {
			prepareErr = err
			break
		}
		prepCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = p.Prepare(prepCtx, txnID, op)
		cancel()
		if err != nil {
			prepareErr = err
			break
		}
		prepared = append(prepared, shard)
	}

	if prepareErr != nil {
		c.rollbackAll(ctx, prepared, txnID)
		return errorsx.Wrap(errorsx.TransactionAborted, prepareErr, "cross-shard prepare failed")
	}

	if c.commitLog != nil {
		if err := c.commitLog.RecordCommit(txnID, shards); err != nil {
			c.rollbackAll(ctx, prepared, txnID)
			return errorsx.Wrap(errorsx.DurabilityError, err, "write global commit record")
		}
	}

	return c.commitAll(ctx, shards, txnID)
}

func (c *Coordinator) commitAll(ctx context.Context, shards []uint32, txnID uuid.UUID) error {
	var firstErr error
	for _, shard := range shards {
		p, err := c.participant(shard)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := p.Commit(ctx, txnID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Coordinator) rollbackAll(ctx context.Context, shards []uint32, txnID uuid.UUID) {
	for _, shard := range shards {
		if p, err := c.participant(shard); err == nil {
			_ = p.Rollback(ctx, txnID)
		}
	}
}

func (c *Coordinator) participant(shard uint32) (Participant, error) {
	p, ok := c.participants[shard]
	if !ok {
		return nil, errorsx.Newf(errorsx.InvalidRequest, "no participant registered for shard %d", shard)
	}
	return p, nil
}

// RecoverPending drives every transaction the CommitLog reports as
// committed, but which this coordinator process never saw finish, to
// Commit on every one of its shards (spec §4.9: "if the coordinator
// crashes after at least one shard has committed, the global commit record
// is used on recovery to drive remaining participants to commit"). Each
// participant's own Commit is expected to be idempotent for a txnID it has
// already committed, the same way replaying a WAL's CommitTxn twice is a
// no-op.
func (c *Coordinator) RecoverPending(ctx context.Context, pending []uuid.UUID) error {
	var firstErr error
	for _, txnID := range pending {
		shards, committed, err := c.commitLog.Committed(txnID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !committed {
			continue
		}
		if err := c.commitAll(ctx, shards, txnID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
