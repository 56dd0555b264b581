package quantization

import (
	"context"
	"math/rand"
	"strconv"
)

// SubspaceInfo describes one contiguous, non-overlapping slice of the
// full dimension that a PQ or NVQ codebook covers.
type SubspaceInfo struct {
	Size   int
	Offset int
}

// Partition splits dim into m contiguous subspaces, distributing the
// remainder of dim/m across the first dim%m subspaces, per the spec's
// partitioning rule.
func Partition(dim, m int) ([]SubspaceInfo, error) {
	if m < 1 {
		return nil, newErr(InvalidConfiguration, "Partition", "m", "subspace count must be positive")
	}
	if m > dim {
		return nil, newErr(InvalidConfiguration, "Partition", "m", "subspace count exceeds dimension")
	}
	base := dim / m
	remainder := dim % m
	out := make([]SubspaceInfo, m)
	offset := 0
	for i := 0; i < m; i++ {
		size := base
		if i < remainder {
			size++
		}
		out[i] = SubspaceInfo{Size: size, Offset: offset}
		offset += size
	}
	return out, nil
}

// PQCompressor is a trained product quantizer: a subspace partition and,
// per subspace, a K-centroid codebook, plus an optional global centroid
// subtracted before encoding (used only when training requested
// GloballyCenter, typically for Euclidean similarity).
type PQCompressor struct {
	Dim            int
	Subspaces      []SubspaceInfo
	K              int
	Codebooks      [][]float32 // one flat K*size buffer per subspace
	GlobalCentroid []float32   // nil when not globally centered
	vm             VectorMath
}

// PQTrainOptions configures a PQ training run.
type PQTrainOptions struct {
	Subspaces       int
	Codes           int // K, default 256
	LloydIterations int
	GloballyCenter  bool
	MaxSample       int // Bernoulli-subsample cap, spec default 128000
	RNG             *rand.Rand
	VM              VectorMath
	// Limiter, if set, is waited on before training starts, throttling
	// a burst of concurrent Train calls against a shared budget.
	Limiter *TrainLimiter
}

// TrainPQ trains a product quantizer from src. Training subsamples src
// with per-vector Bernoulli probability min(1, MaxSample/N), optionally
// subtracts the sample mean, partitions the dimension into
// opts.Subspaces pieces, and runs KMeansPP independently per subspace.
func TrainPQ(src RandomAccessVectorValues, opts PQTrainOptions) (*PQCompressor, error) {
	if opts.RNG == nil {
		return nil, newErr(InvalidConfiguration, "PQ.Train", "RNG", "a seeded RNG is required")
	}
	if opts.Limiter != nil {
		if err := opts.Limiter.Wait(context.Background()); err != nil {
			return nil, err
		}
	}
	vm := opts.VM
	if vm == nil {
		vm = DefaultVectorMath
	}
	dim := src.Dim()
	partition, err := Partition(dim, opts.Subspaces)
	if err != nil {
		return nil, err
	}
	k := opts.Codes
	if k == 0 {
		k = 256
	}
	if k < 2 || k > 256 {
		return nil, newErr(InvalidConfiguration, "PQ.Train", "Codes", "code count must be in [2, 256]")
	}

	maxSample := opts.MaxSample
	if maxSample <= 0 {
		maxSample = 128000
	}
	sample, err := subsample(src, maxSample, opts.RNG)
	if err != nil {
		return nil, err
	}

	var globalCentroid []float32
	if opts.GloballyCenter {
		globalCentroid = meanVector(sample, dim)
		for _, v := range sample {
			for j := range v {
				v[j] -= globalCentroid[j]
			}
		}
	}

	codebooks := make([][]float32, len(partition))
	for m, sub := range partition {
		subPoints := make([][]float32, len(sample))
		for i, v := range sample {
			subPoints[i] = v[sub.Offset : sub.Offset+sub.Size]
		}
		centroids, err := KMeansPP(subPoints, k, opts.LloydIterations, 0.01, opts.RNG, vm)
		if err != nil {
			return nil, wrapErr(InvalidConfiguration, "PQ.Train", "subspace "+sub.label(m), err)
		}
		flat := make([]float32, k*sub.Size)
		for c, centroid := range centroids {
			copy(flat[c*sub.Size:(c+1)*sub.Size], centroid)
		}
		codebooks[m] = flat
	}

	return &PQCompressor{
		Dim:            dim,
		Subspaces:      partition,
		K:              k,
		Codebooks:      codebooks,
		GlobalCentroid: globalCentroid,
		vm:             vm,
	}, nil
}

func (s SubspaceInfo) label(m int) string {
	return "m=" + strconv.Itoa(m)
}

// Refine re-clusters every subspace starting from the existing codebook
// as seeds, running passes additional Lloyd iterations each. The global
// centroid, if any, is preserved unchanged.
func (c *PQCompressor) Refine(src RandomAccessVectorValues, maxSample int, passes int, rng *rand.Rand) error {
	sample, err := subsample(src, maxSample, rng)
	if err != nil {
		return err
	}
	if c.GlobalCentroid != nil {
		for _, v := range sample {
			for j := range v {
				v[j] -= c.GlobalCentroid[j]
			}
		}
	}

	for m, sub := range c.Subspaces {
		subPoints := make([][]float32, len(sample))
		for i, v := range sample {
			subPoints[i] = v[sub.Offset : sub.Offset+sub.Size]
		}
		seeds := make([][]float32, c.K)
		for code := 0; code < c.K; code++ {
			seeds[code] = c.Codebooks[m][code*sub.Size : (code+1)*sub.Size]
		}
		refined, err := lloydFromSeeds(subPoints, seeds, passes, c.vm)
		if err != nil {
			return err
		}
		flat := make([]float32, c.K*sub.Size)
		for code, centroid := range refined {
			copy(flat[code*sub.Size:(code+1)*sub.Size], centroid)
		}
		c.Codebooks[m] = flat
	}
	return nil
}

// CodeSize returns the number of bytes Encode produces: one per subspace.
func (c *PQCompressor) CodeSize() int { return len(c.Subspaces) }

// Encode maps vector to its PQ code: one centroid index per subspace.
func (c *PQCompressor) Encode(vector []float32) ([]byte, error) {
	if len(vector) != c.Dim {
		return nil, newErr(DimensionMismatch, "PQ.Encode", "vector", "vector length does not match trained dimension")
	}
	v := vector
	if c.GlobalCentroid != nil {
		v = make([]float32, c.Dim)
		for i := range v {
			v[i] = vector[i] - c.GlobalCentroid[i]
		}
	}
	code := make([]byte, len(c.Subspaces))
	for m, sub := range c.Subspaces {
		best := 0
		bestDist := c.vm.SquaredL2(v, sub.Offset, c.Codebooks[m], 0, sub.Size)
		for ci := 1; ci < c.K; ci++ {
			dist := c.vm.SquaredL2(v, sub.Offset, c.Codebooks[m], ci*sub.Size, sub.Size)
			if dist < bestDist {
				bestDist = dist
				best = ci
			}
		}
		code[m] = byte(best)
	}
	return code, nil
}

func subsample(src RandomAccessVectorValues, maxSample int, rng *rand.Rand) ([][]float32, error) {
	n := src.Size()
	if n == 0 {
		return nil, newErr(InvalidConfiguration, "PQ.Train", "src", "empty training source")
	}
	if maxSample <= 0 {
		maxSample = n
	}
	prob := 1.0
	if n > maxSample {
		prob = float64(maxSample) / float64(n)
	}
	out := make([][]float32, 0, min(n, maxSample*2))
	for i := 0; i < n; i++ {
		if prob < 1.0 && rng.Float64() > prob {
			continue
		}
		v, err := src.Get(i)
		if err != nil {
			return nil, err
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		out = append(out, cp)
	}
	if len(out) == 0 {
		v, err := src.Get(0)
		if err != nil {
			return nil, err
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		out = append(out, cp)
	}
	return out, nil
}

func meanVector(sample [][]float32, dim int) []float32 {
	mean := make([]float32, dim)
	for _, v := range sample {
		for j, x := range v {
			mean[j] += x
		}
	}
	inv := 1.0 / float32(len(sample))
	for j := range mean {
		mean[j] *= inv
	}
	return mean
}

// lloydFromSeeds runs passes Lloyd iterations starting from seeds rather
// than k-means++ initialization, used by Refine.
func lloydFromSeeds(points [][]float32, seeds [][]float32, passes int, vm VectorMath) ([][]float32, error) {
	k := len(seeds)
	dim := len(seeds[0])
	centroids := make([][]float32, k)
	for i, s := range seeds {
		c := make([]float32, dim)
		copy(c, s)
		centroids[i] = c
	}

	for pass := 0; pass < passes; pass++ {
		num := make([][]float32, k)
		denom := make([]int, k)
		for c := range num {
			num[c] = make([]float32, dim)
		}
		for _, p := range points {
			best := nearestCentroid(p, centroids, vm)
			denom[best]++
			addInto(num[best], p)
		}
		for c := range centroids {
			if denom[c] == 0 {
				continue
			}
			inv := 1.0 / float32(denom[c])
			for j := range centroids[c] {
				centroids[c][j] = num[c][j] * inv
			}
		}
	}
	return centroids, nil
}
