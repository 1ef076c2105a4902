// Package reconciler implements the background reconciliation task (C4):
// the single task that drains the WriteLog, builds the next GraphSnapshot,
// and publishes it to the ReadView. Its lock-briefly-then-work-outside-the-
// lock shape is grounded on the teacher's
// StorageEngine.CreateCheckpoint/Recover control flow (pkg/storage/engine.go):
// capture a consistent point under a brief critical section, then do the
// expensive work without holding anything.
package reconciler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sutra-memory/engine/pkg/metrics"
	"github.com/sutra-memory/engine/pkg/snapshot"
	"github.com/sutra-memory/engine/pkg/types"
	"github.com/sutra-memory/engine/pkg/wal"
	"github.com/sutra-memory/engine/pkg/writelog"
)

// Config holds the adaptive-interval thresholds and checkpoint cadence
// (spec.md §4.4).
type Config struct {
	// IntervalLowMs is used when the recent write rate is below
	// LowRateThreshold (default 100ms: "saving CPU").
	IntervalLowMs uint32
	// IntervalModerateMs is used between the low and high thresholds
	// (default 10ms).
	IntervalModerateMs uint32
	// IntervalMinimalMs is used at or above HighRateThreshold, so
	// freshness stays tight during bursts (default 1ms).
	IntervalMinimalMs uint32
	// IntervalMaxMs is the hard upper bound the interval must never
	// exceed regardless of rate (default 100ms, configurable via
	// reconcile_interval_ms_max).
	IntervalMaxMs uint32

	// LowRateThreshold and HighRateThreshold are writes/sec boundaries
	// (spec.md defaults: 1,000 and 10,000).
	LowRateThreshold  float64
	HighRateThreshold float64

	// CheckpointThreshold is how many sequence numbers may elapse since
	// the last persisted checkpoint before the reconciler persists again.
	CheckpointThreshold uint64
}

// DefaultConfig mirrors spec.md §4.4/§6's stated defaults.
func DefaultConfig() Config {
	return Config{
		IntervalLowMs:       100,
		IntervalModerateMs:  10,
		IntervalMinimalMs:   1,
		IntervalMaxMs:       100,
		LowRateThreshold:    1000,
		HighRateThreshold:   10000,
		CheckpointThreshold: 10000,
	}
}

// VectorIndexNotifier is implemented by pkg/vectorindex; the reconciler
// tells it which concept ids got a new or changed vector this cycle
// (spec.md §4.4 step 6).
type VectorIndexNotifier interface {
	NotifyChanged(ids []types.ConceptId)
}

// Checkpointer is implemented by pkg/store; the reconciler calls it once
// the checkpoint threshold is crossed (spec.md §4.4 step 7).
type Checkpointer interface {
	Persist(snap *snapshot.GraphSnapshot) error
}

// WalTruncator is implemented in cmd/sutrad by a thin adapter that calls
// wal.TruncateCheckpointedPrefix on the WAL file's path; invoked after a
// checkpoint lands successfully.
type WalTruncator interface {
	TruncateBefore(seq uint64) error
}

// Reconciler owns the single background task described by C4.
type Reconciler struct {
	writeLog *writelog.WriteLog
	readView *snapshot.ReadView
	cfg      Config
	reg      *metrics.Registry
	log      zerolog.Logger

	vectorIndex  VectorIndexNotifier
	checkpointer Checkpointer
	walTruncator WalTruncator

	cycleSeq          uint64
	lastCheckpointSeq uint64
}

// New creates a Reconciler. reg and logger may be zero-valued in tests.
func New(wl *writelog.WriteLog, rv *snapshot.ReadView, cfg Config, reg *metrics.Registry, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		writeLog: wl,
		readView: rv,
		cfg:      cfg,
		reg:      reg,
		log:      logger,
	}
}

// SetVectorIndex wires an optional VectorIndex observer.
func (r *Reconciler) SetVectorIndex(v VectorIndexNotifier) { r.vectorIndex = v }

// SetCheckpointer wires an optional checkpoint persister.
func (r *Reconciler) SetCheckpointer(c Checkpointer) { r.checkpointer = c }

// SetWalTruncator wires an optional WAL truncator, invoked after a
// successful checkpoint.
func (r *Reconciler) SetWalTruncator(t WalTruncator) { r.walTruncator = t }

// Run is the reconciler's main loop: sleep for an adaptive interval, drain,
// reconcile, adjust the interval, repeat, until ctx is canceled.
func (r *Reconciler) Run(ctx context.Context) {
	interval := time.Duration(r.cfg.IntervalLowMs) * time.Millisecond
	timer := time.NewTimer(interval)
	defer timer.Stop()
	lastDrain := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			batch := r.writeLog.Drain()
			elapsed := time.Since(lastDrain)
			lastDrain = time.Now()
			if len(batch) > 0 {
				r.reconcileCycle(batch)
			}
			interval = r.nextInterval(len(batch), elapsed)
			if r.reg != nil {
				r.reg.ReconcileIntervalMs.Set(float64(interval.Milliseconds()))
			}
			timer.Reset(interval)
		}
	}
}

// RunOnce drains and reconciles a single cycle synchronously, used by
// tests and by shard shutdown to apply whatever is still queued.
func (r *Reconciler) RunOnce() {
	batch := r.writeLog.Drain()
	if len(batch) > 0 {
		r.reconcileCycle(batch)
	}
}

func (r *Reconciler) nextInterval(batchSize int, elapsed time.Duration) time.Duration {
	rate := 0.0
	if elapsed > 0 {
		rate = float64(batchSize) / elapsed.Seconds()
	}

	var ms uint32
	switch {
	case rate >= r.cfg.HighRateThreshold:
		ms = r.cfg.IntervalMinimalMs
	case rate >= r.cfg.LowRateThreshold:
		ms = r.cfg.IntervalModerateMs
	default:
		ms = r.cfg.IntervalLowMs
	}
	if ms > r.cfg.IntervalMaxMs {
		ms = r.cfg.IntervalMaxMs
	}
	return time.Duration(ms) * time.Millisecond
}

// reconcileCycle applies one drained batch to a new snapshot and publishes
// it (spec.md §4.4 steps 4-7).
func (r *Reconciler) reconcileCycle(batch []*writelog.WriteEntry) {
	prev := r.readView.Load()
	b := snapshot.NewBuilder(prev)

	now := time.Now().UnixMicro()
	var changedVectors []types.ConceptId
	var highestSeq uint64

	for _, entry := range batch {
		if entry.Seq > highestSeq {
			highestSeq = entry.Seq
		}
		switch entry.Kind {
		case wal.EntryLearnConcept:
			c := entry.Concept
			b.ApplyLearnConcept(c.Id, c.Content, c.Vector, c.Strength, c.Confidence, c.TimestampMicro, c.SemanticType)
			if c.Vector != nil {
				changedVectors = append(changedVectors, c.Id)
			}
		case wal.EntryLearnAssociation:
			a := entry.Association
			b.ApplyLearnAssociation(a.Source, a.Target, a.Type, a.Confidence, now)
		case wal.EntryStrengthen:
			b.ApplyStrengthen(entry.Strengthen.Id, now)
		}
	}

	r.cycleSeq++
	next := b.Finish(r.cycleSeq, now)
	r.readView.Publish(next)

	if r.reg != nil {
		r.reg.ReconcileCycles.Inc()
		r.reg.ReconcileBatchSize.Observe(float64(len(batch)))
		vectors := 0
		for _, c := range next.Concepts.GetAll() {
			if (*c).Vector != nil {
				vectors++
			}
		}
		r.reg.VectorIndexSize.Set(float64(vectors))
	}

	if r.vectorIndex != nil && len(changedVectors) > 0 {
		r.vectorIndex.NotifyChanged(changedVectors)
	}

	r.maybeCheckpoint(next, highestSeq)
}

func (r *Reconciler) maybeCheckpoint(snap *snapshot.GraphSnapshot, highestSeq uint64) {
	if r.checkpointer == nil || highestSeq < r.lastCheckpointSeq {
		return
	}
	if highestSeq-r.lastCheckpointSeq < r.cfg.CheckpointThreshold {
		return
	}
	if err := r.checkpointer.Persist(snap); err != nil {
		r.log.Error().Err(err).Msg("checkpoint persist failed")
		return
	}
	r.lastCheckpointSeq = highestSeq
	if r.walTruncator != nil {
		if err := r.walTruncator.TruncateBefore(highestSeq); err != nil {
			r.log.Error().Err(err).Msg("wal truncate after checkpoint failed")
		}
	}
}
