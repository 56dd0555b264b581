package quantization

import (
	"math"
	"math/rand"
	"sort"
)

// XNESOptions configures one separable-xNES run. Zero values for Lambda,
// LRMu, LRSigma, Tol, and Sigma0 trigger the auto hyperparameters
// described in the design; MaxIterations below 10, including zero, is
// raised to 10 (callers typically use config.NVQConfig.XNESMaxIters).
type XNESOptions struct {
	Lo, Hi        []float64 // per-dimension box constraints
	MaxIterations int
	Lambda        int
	LRMu          float64
	LRSigma       float64
	Tol           float64
	Sigma0        float64
}

// XNES runs separable, rank-based natural evolution strategy maximization
// of f over init's dimensionality, subject to the box constraints in
// opts. Returns the mean after the last iteration. Callers minimizing a loss pass a
// negated or reciprocal objective, as NVQ's warp fit does.
func XNES(f func([]float64) float64, init []float64, opts XNESOptions, rng *rand.Rand) []float64 {
	n := len(init)
	mu := make([]float64, n)
	copy(mu, init)
	projectBox(mu, opts.Lo, opts.Hi)

	sigma0 := opts.Sigma0
	if sigma0 <= 0 {
		sigma0 = 0.5
	}
	sigma := make([]float64, n)
	for i := range sigma {
		sigma[i] = sigma0
	}

	lambda := opts.Lambda
	if lambda <= 0 {
		lambda = 2 * (4 + int(3*math.Log(float64(n))))
	}
	lrMu := opts.LRMu
	if lrMu <= 0 {
		lrMu = 1.0
	}
	lrSigma := opts.LRSigma
	if lrSigma <= 0 {
		lrSigma = (9 + 3*math.Log(float64(n))) / (5 * float64(n) * math.Sqrt(float64(n)))
	}
	tol := opts.Tol
	if tol <= 0 {
		tol = 1e-6
	}
	maxIter := opts.MaxIterations
	if maxIter < 10 {
		maxIter = 10
	}

	prevF := f(mu)
	z := make([][]float64, lambda)
	x := make([][]float64, lambda)
	fx := make([]float64, lambda)
	for i := range z {
		z[i] = make([]float64, n)
		x[i] = make([]float64, n)
	}

	for iter := 0; iter < maxIter; iter++ {
		for i := 0; i < lambda; i++ {
			for j := 0; j < n; j++ {
				zv := rng.NormFloat64()
				z[i][j] = zv
				x[i][j] = mu[j] + sigma[j]*zv
			}
			projectBox(x[i], opts.Lo, opts.Hi)
			fx[i] = f(x[i])
		}

		order := make([]int, lambda)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return fx[order[a]] > fx[order[b]] })

		u := make([]float64, lambda)
		for rank, idx := range order {
			uv := math.Log(1+float64(lambda)/2) - math.Log(float64(rank+1))
			if uv < 0 {
				uv = 0
			}
			u[idx] = uv
		}
		var sumU float64
		for _, v := range u {
			sumU += v
		}
		uHat := make([]float64, lambda)
		for i := range u {
			if sumU > 0 {
				uHat[i] = u[i]/sumU - 1.0/float64(lambda)
			} else {
				uHat[i] = -1.0 / float64(lambda)
			}
		}

		deltaMu := make([]float64, n)
		deltaSigma := make([]float64, n)
		for i := 0; i < lambda; i++ {
			for j := 0; j < n; j++ {
				deltaMu[j] += uHat[i] * z[i][j]
				deltaSigma[j] += uHat[i] * (z[i][j]*z[i][j] - 1)
			}
		}

		for j := 0; j < n; j++ {
			mu[j] += lrMu * sigma[j] * deltaMu[j]
			sigma[j] *= math.Exp(deltaSigma[j] * lrSigma / 2)
		}
		projectBox(mu, opts.Lo, opts.Hi)

		curF := f(mu)
		if math.Abs(curF-prevF) < tol {
			prevF = curF
			break
		}
		prevF = curF
	}

	return mu
}

func projectBox(v []float64, lo, hi []float64) {
	for i := range v {
		if lo != nil && v[i] < lo[i] {
			v[i] = lo[i]
		}
		if hi != nil && v[i] > hi[i] {
			v[i] = hi[i]
		}
	}
}
