package config

import (
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}
	if cfg.PQ.Codes != 256 {
		t.Errorf("expected default PQ codes 256, got %d", cfg.PQ.Codes)
	}
	if cfg.NVQ.Bits != 8 {
		t.Errorf("expected default NVQ bits 8, got %d", cfg.NVQ.Bits)
	}
	if cfg.Runtime.MaxTrainingSample != 128_000 {
		t.Errorf("expected default training sample cap 128000, got %d", cfg.Runtime.MaxTrainingSample)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("COREVQ_PQ_SUBSPACES", "16")
	t.Setenv("COREVQ_NVQ_BITS", "4")
	t.Setenv("COREVQ_NVQ_LEARN_WARP", "false")
	t.Setenv("COREVQ_RANDOM_SEED", "7")

	cfg := LoadFromEnv()
	if cfg.PQ.Subspaces != 16 {
		t.Errorf("expected PQ.Subspaces=16, got %d", cfg.PQ.Subspaces)
	}
	if cfg.NVQ.Bits != 4 {
		t.Errorf("expected NVQ.Bits=4, got %d", cfg.NVQ.Bits)
	}
	if cfg.NVQ.LearnWarp {
		t.Error("expected NVQ.LearnWarp=false")
	}
	if cfg.Runtime.RandomSeed != 7 {
		t.Errorf("expected RandomSeed=7, got %d", cfg.Runtime.RandomSeed)
	}
}

func TestLoadFromEnv_IgnoresMalformed(t *testing.T) {
	t.Setenv("COREVQ_PQ_CODES", "not-a-number")
	cfg := LoadFromEnv()
	if cfg.PQ.Codes != Default().PQ.Codes {
		t.Errorf("expected malformed env var to be ignored, got %d", cfg.PQ.Codes)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"zero subspaces", func(c *Config) { c.PQ.Subspaces = 0 }, true},
		{"codes too large", func(c *Config) { c.PQ.Codes = 512 }, true},
		{"negative lloyd iterations", func(c *Config) { c.PQ.LloydIterations = -1 }, true},
		{"nvq bad bits", func(c *Config) { c.NVQ.Bits = 5 }, true},
		{"nvq zero subspaces", func(c *Config) { c.NVQ.Subspaces = 0 }, true},
		{"kmeans zero iterations", func(c *Config) { c.KMeans.MaxIterations = 0 }, true},
		{"kmeans bad convergence frac", func(c *Config) { c.KMeans.ConvergenceFrac = 1.5 }, true},
		{"zero training sample cap", func(c *Config) { c.Runtime.MaxTrainingSample = 0 }, true},
		{"zero worker count", func(c *Config) { c.Runtime.WorkerCount = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected an error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}
