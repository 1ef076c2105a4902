// Package config loads the engine's closed-set configuration from
// environment variables (spec §6), following the teacher's hand-rolled
// Options-struct-plus-Default pattern (see pkg/wal.Options/DefaultOptions)
// rather than introducing a config-file library: the env-var set here is
// small and fixed, so a parsing layer on top would add indirection with no
// payoff.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full closed set of environment-recognized settings (§6 of
// spec.md, plus the embedding-timeout/circuit-breaker/log-level additions
// of SPEC_FULL.md §6).
type Config struct {
	StorageServerAddress string
	StorageDir            string
	VectorDimension       int
	NumShards             int

	ReconcileIntervalLowMs  int
	ReconcileIntervalHighMs int
	ReconcileIntervalMaxMs  int

	CheckpointEveryNWrites int
	WalFsync               bool

	EmbeddingServiceURL               string
	EmbeddingServiceTimeout           time.Duration
	EmbeddingCircuitBreakerThreshold  int
	EmbeddingCircuitBreakerCooldown   time.Duration

	LogLevel string
}

// Default returns a Config with the same conservative defaults the
// teacher applies to its own WAL options: safe over fast unless told
// otherwise.
func Default() Config {
	return Config{
		StorageServerAddress: "127.0.0.1:7420",
		StorageDir:           "./sutra_data",
		VectorDimension:      768,
		NumShards:            1,

		ReconcileIntervalLowMs:  100,
		ReconcileIntervalHighMs: 10,
		ReconcileIntervalMaxMs:  100,

		CheckpointEveryNWrites: 10000,
		WalFsync:               true,

		EmbeddingServiceURL:              "",
		EmbeddingServiceTimeout:          2 * time.Second,
		EmbeddingCircuitBreakerThreshold: 5,
		EmbeddingCircuitBreakerCooldown:  10 * time.Second,

		LogLevel: "info",
	}
}

// FromEnv overlays environment variables onto Default(), leaving any unset
// variable at its default value.
func FromEnv() Config {
	c := Default()

	if v, ok := os.LookupEnv("STORAGE_SERVER_ADDRESS"); ok {
		c.StorageServerAddress = v
	}
	if v, ok := os.LookupEnv("STORAGE_DIR"); ok {
		c.StorageDir = v
	}
	if v, ok := envInt("VECTOR_DIMENSION"); ok {
		c.VectorDimension = v
	}
	if v, ok := envInt("NUM_SHARDS"); ok {
		c.NumShards = v
	}
	if v, ok := envInt("RECONCILE_INTERVAL_MS_LOW"); ok {
		c.ReconcileIntervalLowMs = v
	}
	if v, ok := envInt("RECONCILE_INTERVAL_MS_HIGH"); ok {
		c.ReconcileIntervalHighMs = v
	}
	if v, ok := envInt("RECONCILE_INTERVAL_MS_MAX"); ok {
		c.ReconcileIntervalMaxMs = v
	}
	if v, ok := envInt("CHECKPOINT_EVERY_N_WRITES"); ok {
		c.CheckpointEveryNWrites = v
	}
	if v, ok := envBool("WAL_FSYNC"); ok {
		c.WalFsync = v
	}
	if v, ok := os.LookupEnv("EMBEDDING_SERVICE_URL"); ok {
		c.EmbeddingServiceURL = v
	}
	if v, ok := envInt("EMBEDDING_SERVICE_TIMEOUT_MS"); ok {
		c.EmbeddingServiceTimeout = time.Duration(v) * time.Millisecond
	}
	if v, ok := envInt("EMBEDDING_CIRCUIT_BREAKER_THRESHOLD"); ok {
		c.EmbeddingCircuitBreakerThreshold = v
	}
	if v, ok := envInt("EMBEDDING_CIRCUIT_BREAKER_COOLDOWN_MS"); ok {
		c.EmbeddingCircuitBreakerCooldown = time.Duration(v) * time.Millisecond
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		c.LogLevel = v
	}

	return c
}

// Validate checks the closed-set constraints spec.md places on config
// (num_shards must be one of 1/2/4/8/16).
func (c Config) Validate() error {
	switch c.NumShards {
	case 1, 2, 4, 8, 16:
	default:
		return errInvalidShardCount
	}
	if c.VectorDimension <= 0 {
		return errInvalidDimension
	}
	return nil
}

var (
	errInvalidShardCount = configError("num_shards must be one of 1, 2, 4, 8, 16")
	errInvalidDimension  = configError("vector_dimension must be positive")
)

type configError string

func (e configError) Error() string { return string(e) }

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
