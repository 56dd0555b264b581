package quantization

import (
	"math/rand"
	"testing"
)

func TestBQCompressor_EncodeSignBits(t *testing.T) {
	c, err := NewBQCompressor(130, nil)
	if err != nil {
		t.Fatalf("NewBQCompressor: %v", err)
	}
	if c.WordsPerVector() != 3 {
		t.Fatalf("expected 3 words for dim 130, got %d", c.WordsPerVector())
	}

	v := make([]float32, 130)
	v[0] = 1
	v[64] = -1
	v[129] = 2
	code, err := c.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	words := unpackWords(code, 3)
	if words[0]&1 == 0 {
		t.Error("expected bit 0 set")
	}
	if words[1]&1 != 0 {
		t.Error("expected bit 0 of word 1 (component 64) clear, since it is negative")
	}
	if words[2]&(1<<1) == 0 {
		t.Error("expected bit 1 of word 2 (component 129) set")
	}
}

func TestBQCompressor_RejectsBadDimension(t *testing.T) {
	c, _ := NewBQCompressor(8, nil)
	_, err := c.Encode(make([]float32, 4))
	if err == nil || !IsKind(err, DimensionMismatch) {
		t.Fatalf("expected DimensionMismatch, got %v", err)
	}
}

func TestBQVectors_IdenticalVectorScoresOne(t *testing.T) {
	c, _ := NewBQCompressor(64, nil)
	store := NewBQVectors(c, nil)

	rng := rand.New(rand.NewSource(1))
	v := make([]float32, 64)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	code, _ := c.Encode(v)
	store.Append(code)

	scoreFn, err := store.NewScoreFunction(v, Dot)
	if err != nil {
		t.Fatalf("NewScoreFunction: %v", err)
	}
	score, err := scoreFn(0)
	if err != nil {
		t.Fatalf("scoreFn: %v", err)
	}
	if score != 1 {
		t.Errorf("expected identical vector to score 1, got %v", score)
	}
}

func TestBQVectors_RejectsCosine(t *testing.T) {
	c, _ := NewBQCompressor(64, nil)
	store := NewBQVectors(c, nil)
	_, err := store.NewScoreFunction(make([]float32, 64), Cosine)
	if err == nil || !IsKind(err, UnsupportedCombination) {
		t.Fatalf("expected UnsupportedCombination, got %v", err)
	}
}

func TestBQVectors_OppositeVectorScoresZero(t *testing.T) {
	c, _ := NewBQCompressor(64, nil)
	store := NewBQVectors(c, nil)

	v := make([]float32, 64)
	opp := make([]float32, 64)
	for i := range v {
		v[i] = 1
		opp[i] = -1
	}
	code, _ := c.Encode(opp)
	store.Append(code)

	scoreFn, err := store.NewScoreFunction(v, Dot)
	if err != nil {
		t.Fatalf("NewScoreFunction: %v", err)
	}
	score, err := scoreFn(0)
	if err != nil {
		t.Fatalf("scoreFn: %v", err)
	}
	if score != 0 {
		t.Errorf("expected fully opposite vector to score 0, got %v", score)
	}
}
