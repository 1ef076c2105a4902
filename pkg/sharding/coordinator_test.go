package sharding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sutra-memory/engine/pkg/types"
)

type fakeParticipant struct {
	prepareErr error
	prepared   []uuid.UUID
	committed  []uuid.UUID
	rolledBack []uuid.UUID
}

func (f *fakeParticipant) Prepare(ctx context.Context, txnID uuid.UUID, op AssociationOp) error {
	if f.prepareErr != nil {
		return f.prepareErr
	}
	f.prepared = append(f.prepared, txnID)
	return nil
}

func (f *fakeParticipant) Commit(ctx context.Context, txnID uuid.UUID) error {
	f.committed = append(f.committed, txnID)
	return nil
}

func (f *fakeParticipant) Rollback(ctx context.Context, txnID uuid.UUID) error {
	f.rolledBack = append(f.rolledBack, txnID)
	return nil
}

type fakeCommitLog struct {
	records map[uuid.UUID][]uint32
}

func newFakeCommitLog() *fakeCommitLog {
	return &fakeCommitLog{records: make(map[uuid.UUID][]uint32)}
}

func (f *fakeCommitLog) RecordCommit(txnID uuid.UUID, shards []uint32) error {
	f.records[txnID] = shards
	return nil
}

func (f *fakeCommitLog) Committed(txnID uuid.UUID) ([]uint32, bool, error) {
	shards, ok := f.records[txnID]
	return shards, ok, nil
}

func opBetween(a, b string) AssociationOp {
	return AssociationOp{
		Source:     types.DeriveConceptId(a),
		Target:     types.DeriveConceptId(b),
		Type:       types.Semantic,
		Confidence: 0.8,
	}
}

func TestCommitAssociationSingleShardSkipsTwoPhase(t *testing.T) {
	router, err := NewRouter(1)
	if err != nil {
		t.Fatal(err)
	}
	p := &fakeParticipant{}
	coord := NewCoordinator(router, map[uint32]Participant{0: p}, newFakeCommitLog(), time.Second)

	if err := coord.CommitAssociation(context.Background(), opBetween("a", "b")); err != nil {
		t.Fatal(err)
	}
	if len(p.committed) != 1 {
		t.Fatalf("expected one commit, got %d", len(p.committed))
	}
}

func TestCommitAssociationCrossShardCommitsBothParticipants(t *testing.T) {
	router, err := NewRouter(16)
	if err != nil {
		t.Fatal(err)
	}
	a, b := findCrossShardPair(t, router)

	p0 := &fakeParticipant{}
	p1 := &fakeParticipant{}
	participants := map[uint32]Participant{router.Shard(a): p0, router.Shard(b): p1}
	log := newFakeCommitLog()
	coord := NewCoordinator(router, participants, log, time.Second)

	op := AssociationOp{Source: a, Target: b, Type: types.Causal, Confidence: 0.7}
	if err := coord.CommitAssociation(context.Background(), op); err != nil {
		t.Fatal(err)
	}
	if len(p0.prepared) != 1 || len(p0.committed) != 1 {
		t.Errorf("expected shard 0 participant to be prepared and committed, got %+v", p0)
	}
	if len(p1.prepared) != 1 || len(p1.committed) != 1 {
		t.Errorf("expected shard 1 participant to be prepared and committed, got %+v", p1)
	}
	if len(log.records) != 1 {
		t.Errorf("expected exactly one global commit record, got %d", len(log.records))
	}
}

func TestCommitAssociationRollsBackOnPrepareFailure(t *testing.T) {
	router, err := NewRouter(16)
	if err != nil {
		t.Fatal(err)
	}
	a, b := findCrossShardPair(t, router)

	p0 := &fakeParticipant{}
	p1 := &fakeParticipant{prepareErr: errors.New("shard unavailable")}
	participants := map[uint32]Participant{router.Shard(a): p0, router.Shard(b): p1}
	log := newFakeCommitLog()
	coord := NewCoordinator(router, participants, log, time.Second)

	op := AssociationOp{Source: a, Target: b, Type: types.Causal, Confidence: 0.7}
	err = coord.CommitAssociation(context.Background(), op)
	if err == nil {
		t.Fatal("expected an error when a participant refuses prepare")
	}
	if len(p0.rolledBack) != 1 {
		t.Errorf("expected the successfully-prepared participant to be rolled back, got %+v", p0)
	}
	if len(p0.committed) != 0 || len(p1.committed) != 0 {
		t.Error("expected neither participant to commit after a failed prepare")
	}
	if len(log.records) != 0 {
		t.Error("expected no global commit record to be written on a failed prepare")
	}
}

func TestRecoverPendingDrivesCommittedTxnsForward(t *testing.T) {
	router, err := NewRouter(16)
	if err != nil {
		t.Fatal(err)
	}
	a, b := findCrossShardPair(t, router)
	shardA, shardB := router.Shard(a), router.Shard(b)

	p0 := &fakeParticipant{}
	p1 := &fakeParticipant{}
	participants := map[uint32]Participant{shardA: p0, shardB: p1}
	log := newFakeCommitLog()
	coord := NewCoordinator(router, participants, log, time.Second)

	txnID := uuid.New()
	if err := log.RecordCommit(txnID, []uint32{shardA, shardB}); err != nil {
		t.Fatal(err)
	}

	if err := coord.RecoverPending(context.Background(), []uuid.UUID{txnID}); err != nil {
		t.Fatal(err)
	}
	if len(p0.committed) != 1 || len(p1.committed) != 1 {
		t.Errorf("expected recovery to commit both participants, got p0=%+v p1=%+v", p0, p1)
	}
}

func findCrossShardPair(t *testing.T, router *Router) (types.ConceptId, types.ConceptId) {
	t.Helper()
	a := types.DeriveConceptId("concept-a")
	for i := 0; i < 100; i++ {
		b := types.DeriveConceptId(fixtureContent(i))
		if router.Shard(a) != router.Shard(b) {
			return a, b
		}
	}
	t.Fatal("could not find a cross-shard pair")
	return a, a
}
