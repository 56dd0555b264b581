package quantization

import (
	"context"
	"math/rand"
	"testing"
)

func TestSliceVectorValues_GetAndSize(t *testing.T) {
	vectors := [][]float32{{1, 2}, {3, 4}, {5, 6}}
	vv, err := NewSliceVectorValues(vectors, 2)
	if err != nil {
		t.Fatalf("NewSliceVectorValues: %v", err)
	}
	if vv.Size() != 3 {
		t.Fatalf("expected size 3, got %d", vv.Size())
	}
	v, err := vv.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v[0] != 3 || v[1] != 4 {
		t.Errorf("unexpected vector: %v", v)
	}
}

func TestSliceVectorValues_RejectsDimensionMismatch(t *testing.T) {
	_, err := NewSliceVectorValues([][]float32{{1, 2}, {3}}, 2)
	if err == nil || !IsKind(err, DimensionMismatch) {
		t.Fatalf("expected DimensionMismatch, got %v", err)
	}
}

func TestSliceVectorValues_GetOutOfRange(t *testing.T) {
	vv, _ := NewSliceVectorValues([][]float32{{1, 2}}, 2)
	if _, err := vv.Get(5); err == nil {
		t.Fatal("expected error for out-of-range ordinal")
	}
}

func TestEncodeAll_PopulatesContainerInOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	vectors := randomVectors(rng, 64, 8)
	src, _ := NewSliceVectorValues(vectors, 8)
	compressor, err := TrainPQ(src, PQTrainOptions{Subspaces: 2, Codes: 16, LloydIterations: 2, MaxSample: 64, RNG: rng})
	if err != nil {
		t.Fatalf("TrainPQ: %v", err)
	}
	dst := NewPQVectors(compressor)
	pool := NewWorkerPool(4)
	if err := EncodeAll(context.Background(), pool, compressor, src, dst); err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	if dst.Size() != 64 {
		t.Fatalf("expected 64 encoded vectors, got %d", dst.Size())
	}
	for i := 0; i < 64; i++ {
		expected, err := compressor.Encode(vectors[i])
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got := dst.codeAt(i)
		for j := range expected {
			if got[j] != expected[j] {
				t.Fatalf("ordinal %d code mismatch at byte %d: got %d want %d", i, j, got[j], expected[j])
			}
		}
	}
}

func TestEncodeAndSet_OverwritesExistingOrdinal(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	vectors := randomVectors(rng, 16, 8)
	src, _ := NewSliceVectorValues(vectors, 8)
	compressor, err := TrainPQ(src, PQTrainOptions{Subspaces: 2, Codes: 16, LloydIterations: 2, MaxSample: 16, RNG: rng})
	if err != nil {
		t.Fatalf("TrainPQ: %v", err)
	}
	dst := NewPQVectors(compressor)
	pool := NewWorkerPool(2)
	if err := EncodeAll(context.Background(), pool, compressor, src, dst); err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}

	replacement := randomVectors(rng, 1, 8)[0]
	if err := EncodeAndSet(compressor, dst, 3, replacement); err != nil {
		t.Fatalf("EncodeAndSet: %v", err)
	}
	want, err := compressor.Encode(replacement)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got := dst.codeAt(3)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ordinal 3 code mismatch at byte %d: got %d want %d", i, got[i], want[i])
		}
	}

	if err := dst.SetZero(5); err != nil {
		t.Fatalf("SetZero: %v", err)
	}
	for _, b := range dst.codeAt(5) {
		if b != 0 {
			t.Fatalf("expected all-zero code after SetZero, got %v", dst.codeAt(5))
		}
	}

	if err := dst.Set(-1, want); err == nil {
		t.Fatal("expected error for out-of-range ordinal")
	}
}

func TestBQVectors_SetAndSetZero(t *testing.T) {
	compressor, err := NewBQCompressor(8, nil)
	if err != nil {
		t.Fatalf("NewBQCompressor: %v", err)
	}
	vecs := NewBQVectors(compressor, nil)
	code, _ := compressor.Encode([]float32{1, -1, 1, -1, 1, -1, 1, -1})
	vecs.Append(code)
	vecs.Append(code)

	other, _ := compressor.Encode([]float32{-1, -1, -1, -1, -1, -1, -1, -1})
	if err := vecs.Set(0, other); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if vecs.words[0][0] != 0 {
		t.Fatalf("expected all-zero word after Set to all-negative vector, got %v", vecs.words[0])
	}

	if err := vecs.SetZero(1); err != nil {
		t.Fatalf("SetZero: %v", err)
	}
	if vecs.words[1][0] != 0 {
		t.Fatalf("expected zeroed word, got %v", vecs.words[1])
	}

	if err := vecs.Set(9, other); err == nil {
		t.Fatal("expected error for out-of-range ordinal")
	}
}

func TestSimilarity_String(t *testing.T) {
	cases := map[Similarity]string{Dot: "dot", Euclidean: "euclidean", Cosine: "cosine", Similarity(99): "unknown"}
	for sim, want := range cases {
		if got := sim.String(); got != want {
			t.Errorf("Similarity(%d).String() = %q, want %q", sim, got, want)
		}
	}
}
