package quantization

import (
	"math/rand"
	"testing"
)

func TestKumaraswamyWarp_InvertRecoversInput(t *testing.T) {
	warp := KumaraswamyWarp{A: 2.0, B: 1.5}
	for _, u := range []float64{0.0, 0.1, 0.5, 0.9, 1.0} {
		y := warp.apply(u)
		back := warp.invert(y)
		if diff := back - u; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("invert(apply(%v)) = %v, want %v", u, back, u)
		}
	}
}

func TestPackUnpackNibbles_RoundTrips(t *testing.T) {
	vals := []byte{1, 15, 0, 7, 9}
	packed := packNibbles(vals)
	unpacked := unpackNibbles(packed, len(vals))
	for i := range vals {
		if unpacked[i] != vals[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, unpacked[i], vals[i])
		}
	}
}

func TestTrainNVQ_IdentityWarpWhenLearnDisabled(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	vectors := randomVectors(rng, 200, 16)
	src, _ := NewSliceVectorValues(vectors, 16)

	compressor, err := TrainNVQ(src, NVQTrainOptions{
		Subspaces: 4, Bits: 8, LearnWarp: false, MaxSample: 200, RNG: rng,
	})
	if err != nil {
		t.Fatalf("TrainNVQ: %v", err)
	}
	for _, w := range compressor.Warps {
		if w.A != 1 || w.B != 1 {
			t.Errorf("expected identity warp, got %+v", w)
		}
	}
}

func TestNVQ_EncodeDecodeRoundTripShape(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	vectors := randomVectors(rng, 150, 12)
	src, _ := NewSliceVectorValues(vectors, 12)

	compressor, err := TrainNVQ(src, NVQTrainOptions{
		Subspaces: 3, Bits: 8, LearnWarp: false, MaxSample: 150, RNG: rng,
	})
	if err != nil {
		t.Fatalf("TrainNVQ: %v", err)
	}

	code, err := compressor.Encode(vectors[0])
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	enc, err := decodeNVQVectorFromBytes(code)
	if err != nil {
		t.Fatalf("decodeNVQVectorFromBytes: %v", err)
	}
	if len(enc.Subvectors) != 3 {
		t.Fatalf("expected 3 subvectors, got %d", len(enc.Subvectors))
	}
}

func TestNVQ_FourBitPacking(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	vectors := randomVectors(rng, 100, 8)
	src, _ := NewSliceVectorValues(vectors, 8)

	compressor, err := TrainNVQ(src, NVQTrainOptions{
		Subspaces: 2, Bits: 4, LearnWarp: false, MaxSample: 100, RNG: rng,
	})
	if err != nil {
		t.Fatalf("TrainNVQ: %v", err)
	}
	code, err := compressor.Encode(vectors[0])
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	enc, err := decodeNVQVectorFromBytes(code)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, sv := range enc.Subvectors {
		expectedPacked := (sv.OriginalLen + 1) / 2
		if len(sv.Bytes) != expectedPacked {
			t.Errorf("expected packed length %d, got %d", expectedPacked, len(sv.Bytes))
		}
	}
}

func TestNVQVectors_DotScoreFavorsSimilarVector(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	vectors := randomVectors(rng, 120, 16)
	src, _ := NewSliceVectorValues(vectors, 16)

	compressor, err := TrainNVQ(src, NVQTrainOptions{
		Subspaces: 4, Bits: 8, LearnWarp: false, MaxSample: 120, RNG: rng,
	})
	if err != nil {
		t.Fatalf("TrainNVQ: %v", err)
	}

	store := NewNVQVectors(compressor)
	for _, v := range vectors {
		code, err := compressor.Encode(v)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		store.Append(code)
	}

	scoreFn, err := store.NewScoreFunction(vectors[5], Dot)
	if err != nil {
		t.Fatalf("NewScoreFunction: %v", err)
	}
	selfScore, err := scoreFn(5)
	if err != nil {
		t.Fatalf("scoreFn: %v", err)
	}
	otherScore, err := scoreFn(0)
	if err != nil {
		t.Fatalf("scoreFn: %v", err)
	}
	if selfScore < otherScore {
		t.Errorf("expected self score %v >= other %v", selfScore, otherScore)
	}
}

func TestNVQVectors_EuclideanAndCosineInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	vectors := randomVectors(rng, 90, 12)
	src, _ := NewSliceVectorValues(vectors, 12)

	compressor, err := TrainNVQ(src, NVQTrainOptions{
		Subspaces: 3, Bits: 8, LearnWarp: false, MaxSample: 90, RNG: rng,
	})
	if err != nil {
		t.Fatalf("TrainNVQ: %v", err)
	}
	store := NewNVQVectors(compressor)
	for _, v := range vectors {
		code, _ := compressor.Encode(v)
		store.Append(code)
	}

	for _, sim := range []Similarity{Euclidean, Cosine} {
		scoreFn, err := store.NewScoreFunction(vectors[0], sim)
		if err != nil {
			t.Fatalf("NewScoreFunction(%v): %v", sim, err)
		}
		for n := 0; n < store.Size(); n++ {
			s, err := scoreFn(n)
			if err != nil {
				t.Fatalf("scoreFn: %v", err)
			}
			if s < 0 || s > 1 {
				t.Errorf("%v score out of range: %v", sim, s)
			}
		}
	}
}

func TestNVQVectors_CosineAccountsForGlobalMean(t *testing.T) {
	compressor := &NVQCompressor{
		Dim:        2,
		GlobalMean: []float32{10, 10},
		Bits:       8,
		Subspaces:  []SubspaceInfo{{Size: 2, Offset: 0}},
		Warps:      []KumaraswamyWarp{{A: 1, B: 1}},
		vm:         DefaultVectorMath,
	}
	code, err := compressor.Encode([]float32{11, 9})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	store := NewNVQVectors(compressor)
	store.Append(code)

	scoreFn, err := store.NewScoreFunction([]float32{1, 1}, Cosine)
	if err != nil {
		t.Fatalf("NewScoreFunction: %v", err)
	}
	s, err := scoreFn(0)
	if err != nil {
		t.Fatalf("scoreFn: %v", err)
	}
	// True cosine(q=[1,1], v=[11,9]) is about 0.995, so the [0,1]-mapped
	// score should land near 0.9975. Scoring against the centered
	// reconstruction [1,-1] without adding globalMean back would yield
	// cosine 0 and a score of 0.5.
	if want := float32(0.9975); s < want-0.01 || s > want+0.01 {
		t.Fatalf("cosine score = %v, want close to %v (globalMean correction missing?)", s, want)
	}
}

func TestNVQVectors_SetAndSetZero(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	vectors := randomVectors(rng, 60, 12)
	src, _ := NewSliceVectorValues(vectors, 12)

	compressor, err := TrainNVQ(src, NVQTrainOptions{
		Subspaces: 3, Bits: 4, LearnWarp: false, MaxSample: 60, RNG: rng,
	})
	if err != nil {
		t.Fatalf("TrainNVQ: %v", err)
	}
	store := NewNVQVectors(compressor)
	for _, v := range vectors {
		code, _ := compressor.Encode(v)
		store.Append(code)
	}

	replacement, _ := compressor.Encode(vectors[1])
	if err := store.Set(0, replacement); err != nil {
		t.Fatalf("Set: %v", err)
	}
	wantEnc, _ := decodeNVQVectorFromBytes(replacement)
	gotEnc := store.entries[0]
	if len(gotEnc.Subvectors) != len(wantEnc.Subvectors) {
		t.Fatalf("subvector count mismatch after Set")
	}

	if err := store.SetZero(2); err != nil {
		t.Fatalf("SetZero: %v", err)
	}
	scoreFn, err := store.NewScoreFunction(make([]float32, 12), Euclidean)
	if err != nil {
		t.Fatalf("NewScoreFunction: %v", err)
	}
	s, err := scoreFn(2)
	if err != nil {
		t.Fatalf("scoreFn: %v", err)
	}
	if s < 0 || s > 1 {
		t.Errorf("expected score in range, got %v", s)
	}

	if err := store.Set(999, replacement); err == nil {
		t.Fatal("expected error for out-of-range ordinal")
	}
}

func TestTrainNVQ_RejectsBadBits(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	vectors := randomVectors(rng, 50, 8)
	src, _ := NewSliceVectorValues(vectors, 8)
	_, err := TrainNVQ(src, NVQTrainOptions{Subspaces: 2, Bits: 5, MaxSample: 50, RNG: rng})
	if err == nil || !IsKind(err, InvalidConfiguration) {
		t.Fatalf("expected InvalidConfiguration, got %v", err)
	}
}

func TestTrainNVQ_LearnWarpProducesFiniteParams(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vectors := randomVectors(rng, 300, 8)
	src, _ := NewSliceVectorValues(vectors, 8)

	compressor, err := TrainNVQ(src, NVQTrainOptions{
		Subspaces: 2, Bits: 8, LearnWarp: true, WarpRetries: 2,
		XNESMaxIters: 20, MaxSample: 300, RNG: rng,
	})
	if err != nil {
		t.Fatalf("TrainNVQ: %v", err)
	}
	for _, w := range compressor.Warps {
		if w.A <= 0 || w.B <= 0 {
			t.Errorf("expected positive warp params, got %+v", w)
		}
	}
}
