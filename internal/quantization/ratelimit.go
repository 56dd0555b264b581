package quantization

import (
	"context"

	"golang.org/x/time/rate"
)

// TrainLimiter throttles how often a caller may start a training run
// against this package's compressors, the way a busy service protects
// itself from a burst of concurrent Train calls contending for CPU. It
// wraps a single golang.org/x/time/rate.Limiter rather than keying by
// client, since every quantizer family shares one training budget.
type TrainLimiter struct {
	limiter *rate.Limiter
}

// NewTrainLimiter returns a TrainLimiter allowing ratePerSec sustained
// training starts per second with a burst of burst. ratePerSec <= 0
// disables throttling entirely.
func NewTrainLimiter(ratePerSec float64, burst int) *TrainLimiter {
	if ratePerSec <= 0 {
		return &TrainLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &TrainLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Allow reports whether a training run may start immediately, consuming
// a token if so.
func (t *TrainLimiter) Allow() bool {
	return t.limiter.Allow()
}

// Wait blocks until a training run may start or ctx is canceled.
func (t *TrainLimiter) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return wrapErr(InvalidConfiguration, "TrainLimiter", "rate limit wait canceled", err)
	}
	return nil
}
