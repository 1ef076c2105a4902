// Command sutrad is the Sutra knowledge engine's server process: it loads
// configuration from the environment, recovers every shard's graph from
// its checkpoint plus WAL, serves the wire protocol over TCP, and runs the
// background reconciler. Grounded on the teacher's own
// examples/checkpoint_recovery bootstrap sequence (load checkpoint, then
// replay the WAL) generalized across a fixed shard count and wrapped in a
// long-running server loop the teacher's examples never needed.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sutra-memory/engine/internal/config"
	"github.com/sutra-memory/engine/internal/logging"
	"github.com/sutra-memory/engine/pkg/embedding"
	"github.com/sutra-memory/engine/pkg/learning"
	"github.com/sutra-memory/engine/pkg/metrics"
	"github.com/sutra-memory/engine/pkg/protocol"
	"github.com/sutra-memory/engine/pkg/sharding"
)

func main() {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		logging.Default().Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)
	reg := metrics.New()

	var embedder learning.Embedder
	if cfg.EmbeddingServiceURL != "" {
		embedder = embedding.New(cfg.EmbeddingServiceURL, cfg.VectorDimension, cfg.EmbeddingServiceTimeout,
			cfg.EmbeddingCircuitBreakerThreshold, cfg.EmbeddingCircuitBreakerCooldown, reg)
	}

	shards := make([]*shardRuntime, cfg.NumShards)
	for i := 0; i < cfg.NumShards; i++ {
		s, err := bootstrapShard(uint32(i), cfg, reg, logger, embedder)
		if err != nil {
			logger.Fatal().Err(err).Int("shard", i).Msg("failed to recover shard")
		}
		shards[i] = s
		logger.Info().Int("shard", i).Str("dir", s.dir).Msg("shard recovered")
	}

	if cfg.NumShards > 1 {
		wireSharding(shards, cfg, logger)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, s := range shards {
		go s.reconciler.Run(ctx)
	}

	primary := shards[0]
	handler := &protocol.Handler{
		Pipeline:  primary.pipeline,
		Reasoning: primary.reasoning,
		ReadView:  primary.readView,
		Vectors:   primary.vectors,
	}

	listener, err := net.Listen("tcp", cfg.StorageServerAddress)
	if err != nil {
		logger.Fatal().Err(err).Str("address", cfg.StorageServerAddress).Msg("failed to bind server address")
	}
	server := protocol.NewServer(listener, handler)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx)
	}()
	logger.Info().Str("address", cfg.StorageServerAddress).Int("shards", cfg.NumShards).Msg("sutrad listening")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	_ = listener.Close()

	for _, s := range shards {
		s.shutdown()
	}
	logger.Info().Msg("sutrad stopped")
}

// wireSharding builds a Router, one Participant per shard, a durable
// FileCommitLog, and a Coordinator, then points every shard's Pipeline at
// it for cross-shard association commits (spec.md §4.9). Single-shard
// deployments never call this, leaving every Pipeline's sharding hook
// unset (pkg/learning's documented default).
func wireSharding(shards []*shardRuntime, cfg config.Config, logger zerolog.Logger) {
	router, err := sharding.NewRouter(uint32(cfg.NumShards))
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid shard count")
	}

	participants := make(map[uint32]sharding.Participant, len(shards))
	for _, s := range shards {
		participants[s.id] = sharding.NewShardParticipant(s.wal, s.writeLog, s.sequence)
	}

	commitLogPath := filepath.Join(cfg.StorageDir, "commit.log")
	commitLog, err := sharding.NewFileCommitLog(commitLogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open commit log")
	}

	coordinator := sharding.NewCoordinator(router, participants, commitLog, sharding.DefaultPrepareTimeout)
	adapter := &coordinatorCommitter{coord: coordinator}

	for _, s := range shards {
		s.pipeline.SetSharding(s.id, router, adapter)
	}
}

// coordinatorCommitter satisfies learning.AssociationCommitter by
// converting learning.AssociationOp to sharding.AssociationOp, a plain
// field-for-field conversion since the two structs mirror each other
// exactly (see pkg/learning/pipeline.go's AssociationOp doc comment).
type coordinatorCommitter struct {
	coord *sharding.Coordinator
}

func (c *coordinatorCommitter) CommitAssociation(ctx context.Context, op learning.AssociationOp) error {
	return c.coord.CommitAssociation(ctx, sharding.AssociationOp(op))
}

func nowMicros() int64 {
	return time.Now().UnixMicro()
}

func itoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
