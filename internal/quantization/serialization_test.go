package quantization

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
)

func TestPQVectors_SerializationRoundTripPreservesBuildID(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	vectors := randomVectors(rng, 32, 8)
	src, _ := NewSliceVectorValues(vectors, 8)
	compressor, err := TrainPQ(src, PQTrainOptions{Subspaces: 2, Codes: 16, LloydIterations: 2, MaxSample: 32, RNG: rng})
	if err != nil {
		t.Fatalf("TrainPQ: %v", err)
	}
	dst := NewPQVectors(compressor)
	if err := EncodeAll(context.Background(), NewWorkerPool(2), compressor, src, dst); err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	if dst.BuildID() == "" {
		t.Fatal("expected non-empty BuildID after EncodeAll")
	}

	var buf bytes.Buffer
	if err := WritePQVectors(&buf, dst); err != nil {
		t.Fatalf("WritePQVectors: %v", err)
	}
	loaded, err := ReadPQVectors(&buf, nil)
	if err != nil {
		t.Fatalf("ReadPQVectors: %v", err)
	}
	if loaded.BuildID() != dst.BuildID() {
		t.Fatalf("BuildID mismatch after round trip: got %q want %q", loaded.BuildID(), dst.BuildID())
	}
	if loaded.Size() != dst.Size() {
		t.Fatalf("size mismatch: got %d want %d", loaded.Size(), dst.Size())
	}
}

func TestBQVectors_SerializationRoundTripPreservesBuildID(t *testing.T) {
	compressor, err := NewBQCompressor(8, nil)
	if err != nil {
		t.Fatalf("NewBQCompressor: %v", err)
	}
	dst := NewBQVectors(compressor, nil)
	code, _ := compressor.Encode([]float32{1, -1, 1, -1, 1, -1, 1, -1})
	dst.Append(code)
	dst.SetBuildID("bq-build-1")

	var buf bytes.Buffer
	if err := WriteBQVectors(&buf, dst); err != nil {
		t.Fatalf("WriteBQVectors: %v", err)
	}
	loaded, err := ReadBQVectors(&buf, nil)
	if err != nil {
		t.Fatalf("ReadBQVectors: %v", err)
	}
	if loaded.BuildID() != "bq-build-1" {
		t.Fatalf("BuildID mismatch after round trip: got %q", loaded.BuildID())
	}
}

func TestNVQVectors_SerializationRoundTripPreservesBuildID(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	vectors := randomVectors(rng, 40, 8)
	src, _ := NewSliceVectorValues(vectors, 8)
	compressor, err := TrainNVQ(src, NVQTrainOptions{Subspaces: 2, Bits: 8, LearnWarp: false, MaxSample: 40, RNG: rng})
	if err != nil {
		t.Fatalf("TrainNVQ: %v", err)
	}
	dst := NewNVQVectors(compressor)
	if err := EncodeAll(context.Background(), NewWorkerPool(2), compressor, src, dst); err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	if dst.BuildID() == "" {
		t.Fatal("expected non-empty BuildID after EncodeAll")
	}

	var buf bytes.Buffer
	if err := WriteNVQVectors(&buf, dst); err != nil {
		t.Fatalf("WriteNVQVectors: %v", err)
	}
	loaded, err := ReadNVQVectors(&buf, nil)
	if err != nil {
		t.Fatalf("ReadNVQVectors: %v", err)
	}
	if loaded.BuildID() != dst.BuildID() {
		t.Fatalf("BuildID mismatch after round trip: got %q want %q", loaded.BuildID(), dst.BuildID())
	}
}
