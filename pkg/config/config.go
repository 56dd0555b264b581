// Package config holds the tunables for training and operating the
// quantization core, loaded the way the rest of this codebase loads
// configuration: a defaulted struct, optionally overridden from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all quantization-core configuration.
type Config struct {
	PQ      PQConfig
	BQ      BQConfig
	LVQ     LVQConfig
	NVQ     NVQConfig
	KMeans  KMeansConfig
	Runtime RuntimeConfig
}

// PQConfig holds product quantization training parameters.
type PQConfig struct {
	Subspaces       int  // number of subvectors (M)
	Codes           int  // centroids per subspace (K), default 256
	LloydIterations int  // Lloyd iterations during initial training
	RefinePasses    int  // additional Lloyd passes on Refine
	GloballyCenter  bool // subtract the sample mean before training (euclidean only)
}

// BQConfig holds binary quantization parameters (sign-bit encoding has no
// tunables beyond dimension, which is passed directly to NewBQCompressor).
type BQConfig struct{}

// LVQConfig holds locally-adaptive vector quantization parameters.
type LVQConfig struct {
	TurboPack bool // interleave bytes into 64-byte SIMD-gather blocks
}

// NVQConfig holds non-uniform vector quantization parameters.
type NVQConfig struct {
	Subspaces    int  // number of subvectors (M)
	Bits         int  // 4 or 8
	LearnWarp    bool // fit the Kumaraswamy (a, b) warp via xNES
	WarpRetries  int  // xNES restarts on a poor fit, default 10
	XNESMaxIters int  // cap on xNES iterations per attempt
}

// KMeansConfig holds parameters shared by every k-means++ invocation.
type KMeansConfig struct {
	MaxIterations   int     // Lloyd iteration cap (T)
	ConvergenceFrac float64 // stop when fewer than this fraction of points move
}

// RuntimeConfig holds parameters that govern training sampling and
// concurrency rather than any one quantizer family.
type RuntimeConfig struct {
	MaxTrainingSample int   // cap on vectors sampled for training (128 000 in spec)
	RandomSeed        int64 // seed for every stochastic routine
	WorkerCount       int   // default worker-pool size for EncodeAll
	TrainRatePerSec   float64
	TrainBurst        int
}

// Default returns the configuration the spec's own defaults describe.
func Default() *Config {
	return &Config{
		PQ: PQConfig{
			Subspaces:       8,
			Codes:           256,
			LloydIterations: 6,
			RefinePasses:    1,
			GloballyCenter:  false,
		},
		BQ: BQConfig{},
		LVQ: LVQConfig{
			TurboPack: true,
		},
		NVQ: NVQConfig{
			Subspaces:    8,
			Bits:         8,
			LearnWarp:    true,
			WarpRetries:  10,
			XNESMaxIters: 100,
		},
		KMeans: KMeansConfig{
			MaxIterations:   6,
			ConvergenceFrac: 0.01,
		},
		Runtime: RuntimeConfig{
			MaxTrainingSample: 128_000,
			RandomSeed:        42,
			WorkerCount:       8,
			TrainRatePerSec:   1,
			TrainBurst:        1,
		},
	}
}

// LoadFromEnv loads configuration from environment variables, falling
// back to Default() for anything unset or malformed.
func LoadFromEnv() *Config {
	cfg := Default()

	if v := os.Getenv("COREVQ_PQ_SUBSPACES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PQ.Subspaces = n
		}
	}
	if v := os.Getenv("COREVQ_PQ_CODES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PQ.Codes = n
		}
	}
	if v := os.Getenv("COREVQ_PQ_GLOBALLY_CENTER"); v == "true" {
		cfg.PQ.GloballyCenter = true
	}
	if v := os.Getenv("COREVQ_NVQ_BITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NVQ.Bits = n
		}
	}
	if v := os.Getenv("COREVQ_NVQ_LEARN_WARP"); v == "false" {
		cfg.NVQ.LearnWarp = false
	}
	if v := os.Getenv("COREVQ_MAX_TRAINING_SAMPLE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.MaxTrainingSample = n
		}
	}
	if v := os.Getenv("COREVQ_RANDOM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Runtime.RandomSeed = n
		}
	}
	if v := os.Getenv("COREVQ_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.WorkerCount = n
		}
	}
	if v := os.Getenv("COREVQ_TRAIN_RATE_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Runtime.TrainRatePerSec = f
		}
	}
	if v := os.Getenv("COREVQ_TRAIN_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.TrainBurst = n
		}
	}

	return cfg
}

// Validate checks that a configuration describes a trainable quantizer
// set, matching the InvalidConfiguration cases in the core's error model.
func (c *Config) Validate() error {
	if c.PQ.Subspaces < 1 {
		return fmt.Errorf("invalid PQ subspace count: %d (must be > 0)", c.PQ.Subspaces)
	}
	if c.PQ.Codes < 2 || c.PQ.Codes > 256 {
		return fmt.Errorf("invalid PQ code count: %d (must be in [2, 256])", c.PQ.Codes)
	}
	if c.PQ.LloydIterations < 0 {
		return fmt.Errorf("invalid PQ Lloyd iteration count: %d", c.PQ.LloydIterations)
	}
	if c.NVQ.Bits != 4 && c.NVQ.Bits != 8 {
		return fmt.Errorf("invalid NVQ bit width: %d (must be 4 or 8)", c.NVQ.Bits)
	}
	if c.NVQ.Subspaces < 1 {
		return fmt.Errorf("invalid NVQ subspace count: %d (must be > 0)", c.NVQ.Subspaces)
	}
	if c.KMeans.MaxIterations < 1 {
		return fmt.Errorf("invalid k-means iteration cap: %d (must be > 0)", c.KMeans.MaxIterations)
	}
	if c.KMeans.ConvergenceFrac <= 0 || c.KMeans.ConvergenceFrac >= 1 {
		return fmt.Errorf("invalid k-means convergence fraction: %v (must be in (0, 1))", c.KMeans.ConvergenceFrac)
	}
	if c.Runtime.MaxTrainingSample < 1 {
		return fmt.Errorf("invalid max training sample: %d (must be > 0)", c.Runtime.MaxTrainingSample)
	}
	if c.Runtime.WorkerCount < 1 {
		return fmt.Errorf("invalid worker count: %d (must be > 0)", c.Runtime.WorkerCount)
	}
	return nil
}
