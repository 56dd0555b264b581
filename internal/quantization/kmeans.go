package quantization

import "math/rand"

// KMeansPP seeds k clusters over points via k-means++ (squared-distance
// weighted sampling) and refines them with Lloyd iterations, maintaining
// incremental (num, denom) centroid accumulators so a re-assignment pass
// only touches the clusters that actually changed.
//
// points must all share the same length; rng drives both seeding and the
// uniform fallback used when the remaining squared distances sum to at
// most 1e-6. Returns k centroids, each of length len(points[0]).
func KMeansPP(points [][]float32, k int, maxIterations int, convergenceFrac float64, rng *rand.Rand, vm VectorMath) ([][]float32, error) {
	if k <= 0 {
		return nil, newErr(InvalidConfiguration, "KMeansPP", "k", "cluster count must be positive")
	}
	if k > len(points) {
		return nil, newErr(InvalidConfiguration, "KMeansPP", "k", "cluster count exceeds sample size")
	}
	if vm == nil {
		vm = DefaultVectorMath
	}
	dim := len(points[0])
	n := len(points)

	centroids := seedPlusPlus(points, k, dim, rng, vm)

	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = -1
	}
	num := make([][]float32, k)
	denom := make([]int, k)
	for c := range num {
		num[c] = make([]float32, dim)
	}

	// Initial assignment scans every point once, building num/denom from
	// scratch.
	for i, p := range points {
		best := nearestCentroid(p, centroids, vm)
		assignment[i] = best
		denom[best]++
		addInto(num[best], p)
	}
	recomputeCentroids(centroids, num, denom, points, rng)

	threshold := int(convergenceFrac * float64(n))
	if threshold < 1 {
		threshold = 1
	}

	for iter := 0; iter < maxIterations; iter++ {
		moved := 0
		for i, p := range points {
			best := nearestCentroid(p, centroids, vm)
			if best != assignment[i] {
				old := assignment[i]
				if old >= 0 {
					denom[old]--
					subInto(num[old], p)
				}
				denom[best]++
				addInto(num[best], p)
				assignment[i] = best
				moved++
			}
		}
		recomputeCentroids(centroids, num, denom, points, rng)
		if moved < threshold {
			break
		}
	}

	for _, c := range centroids {
		for _, v := range c {
			if isNonFinite(v) {
				return nil, newErr(InvalidConfiguration, "KMeansPP", "centroids", "non-finite centroid produced")
			}
		}
	}
	return centroids, nil
}

func seedPlusPlus(points [][]float32, k, dim int, rng *rand.Rand, vm VectorMath) [][]float32 {
	centroids := make([][]float32, 0, k)
	first := points[rng.Intn(len(points))]
	firstCopy := make([]float32, dim)
	copy(firstCopy, first)
	centroids = append(centroids, firstCopy)

	d := make([]float32, len(points))
	for i, p := range points {
		d[i] = vm.SquaredL2(p, 0, firstCopy, 0, dim)
	}

	for len(centroids) < k {
		var total float64
		for _, v := range d {
			total += float64(v)
		}
		var chosen int
		if total <= 1e-6 {
			chosen = rng.Intn(len(points))
		} else {
			r := rng.Float64() * total
			var prefix float64
			chosen = -1
			for i, v := range d {
				prefix += float64(v)
				if prefix >= r {
					chosen = i
					break
				}
			}
			if chosen == -1 {
				chosen = len(points) - 1
			}
		}
		next := make([]float32, dim)
		copy(next, points[chosen])
		centroids = append(centroids, next)
		for i, p := range points {
			nd := vm.SquaredL2(p, 0, next, 0, dim)
			if nd < d[i] {
				d[i] = nd
			}
		}
	}
	return centroids
}

func nearestCentroid(p []float32, centroids [][]float32, vm VectorMath) int {
	best := 0
	bestDist := vm.SquaredL2(p, 0, centroids[0], 0, len(p))
	for c := 1; c < len(centroids); c++ {
		dist := vm.SquaredL2(p, 0, centroids[c], 0, len(p))
		if dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	return best
}

func recomputeCentroids(centroids [][]float32, num [][]float32, denom []int, points [][]float32, rng *rand.Rand) {
	for c := range centroids {
		if denom[c] == 0 {
			reseed := points[rng.Intn(len(points))]
			copy(centroids[c], reseed)
			continue
		}
		inv := 1.0 / float32(denom[c])
		for j := range centroids[c] {
			centroids[c][j] = num[c][j] * inv
		}
	}
}

func addInto(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func subInto(dst, src []float32) {
	for i := range dst {
		dst[i] -= src[i]
	}
}

func isNonFinite(v float32) bool {
	return v != v || v > 3.4e38 || v < -3.4e38
}
