package quantization

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func TestTrainLimiter_ZeroRateDisablesThrottling(t *testing.T) {
	l := NewTrainLimiter(0, 0)
	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("call %d: expected unlimited rate to always allow", i)
		}
	}
}

func TestTrainLimiter_AllowConsumesBurst(t *testing.T) {
	l := NewTrainLimiter(1, 1)
	if !l.Allow() {
		t.Fatal("expected first call within burst to be allowed")
	}
	if l.Allow() {
		t.Fatal("expected second call to exhaust the burst of 1")
	}
}

func TestTrainLimiter_WaitRespectsCancellation(t *testing.T) {
	l := NewTrainLimiter(0.001, 1)
	l.Allow() // spend the only token; the next one is ~1000s away
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected Wait to fail once its context is canceled")
	} else if !IsKind(err, InvalidConfiguration) {
		t.Fatalf("expected InvalidConfiguration, got %v", err)
	}
}

func TestTrainLimiter_WaitSucceedsWithoutContention(t *testing.T) {
	l := NewTrainLimiter(0, 0)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestTrainPQ_PassesThroughUnthrottledLimiter(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vectors := randomVectors(rng, 20, 8)
	src, _ := NewSliceVectorValues(vectors, 8)

	opts := PQTrainOptions{Subspaces: 2, Codes: 4, LloydIterations: 1, MaxSample: 20, RNG: rng, Limiter: NewTrainLimiter(0, 0)}
	if _, err := TrainPQ(src, opts); err != nil {
		t.Fatalf("TrainPQ with a disabled limiter: %v", err)
	}
}
