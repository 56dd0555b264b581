package quantization

import "math"

// QuickerADCDecoder is the fused, adaptive scorer for Quicker-ADC PQ. It
// is bound to exactly one query and must not be shared across goroutines:
// it owns mutable state (invocations seen so far, the worst distance
// observed, and the eventual u16 requantization delta) that only makes
// sense for a single query-scoped decoding session.
//
// Only Dot and Euclidean are supported; cosine requires a magnitude term
// that doesn't survive u16 requantization, so NewQuickerADCDecoder
// returns UnsupportedCombination for it.
type QuickerADCDecoder struct {
	c    *PQCompressor
	sim  Similarity
	maxi bool // true: higher raw sum is better (dot); false: lower is better (euclidean)

	partialSums         [][]float32 // [m][code]
	partialBest         []float32   // best entry per subspace, in the maximize/minimize sense above
	bestDistance        float32
	threshold           int
	invocations         int
	worstDistance       float32
	worstSet            bool
	delta               float32
	quantized           [][]uint16
	quantizedBestRawSum float32
	supportsQuantized   bool
}

// NewQuickerADCDecoder builds the f32 partial-sum tables for query and
// returns a decoder. threshold is the edge-group degree d: the number of
// slow-path calls made before the decoder switches to u16 requantized
// scoring.
func NewQuickerADCDecoder(c *PQCompressor, query []float32, sim Similarity, threshold int) (*QuickerADCDecoder, error) {
	if sim != Dot && sim != Euclidean {
		return nil, newErr(UnsupportedCombination, "QuickerADCDecoder", "sim", "fused ADC scoring supports only dot and euclidean")
	}
	if len(query) != c.Dim {
		return nil, newErr(DimensionMismatch, "QuickerADCDecoder", "query", "query length does not match trained dimension")
	}
	if threshold < 1 {
		threshold = 1
	}

	q := query
	if c.GlobalCentroid != nil {
		q = make([]float32, c.Dim)
		for i := range q {
			q[i] = query[i] - c.GlobalCentroid[i]
		}
	}

	maxi := sim == Dot
	table := buildPartialSumTable(c, q, sim == Euclidean)
	partialBest := make([]float32, len(c.Subspaces))
	var bestDistance float32
	for m, row := range table {
		best := row[0]
		for _, v := range row[1:] {
			if (maxi && v > best) || (!maxi && v < best) {
				best = v
			}
		}
		partialBest[m] = best
		bestDistance += best
	}

	return &QuickerADCDecoder{
		c:            c,
		sim:          sim,
		maxi:         maxi,
		partialSums:  table,
		partialBest:  partialBest,
		bestDistance: bestDistance,
		threshold:    threshold,
	}, nil
}

// Score computes the normalized [0,1] similarity for one code, using the
// slow f32 path until the invocation threshold is crossed and the fused
// u16 path afterward.
func (d *QuickerADCDecoder) Score(code []byte) float32 {
	var rawSum float32
	if !d.supportsQuantized {
		rawSum = d.slowSum(code)
		d.observe(rawSum)
		if d.invocations >= d.threshold {
			d.quantize()
		}
	} else {
		rawSum = d.quantizedSum(code)
	}
	return d.normalize(rawSum)
}

// BulkScoreEdge scores every code in codes (a neighbor list sharing one
// edge group), returning one score per entry in the same order.
func (d *QuickerADCDecoder) BulkScoreEdge(codes [][]byte) []float32 {
	out := make([]float32, len(codes))
	for i, code := range codes {
		out[i] = d.Score(code)
	}
	return out
}

func (d *QuickerADCDecoder) slowSum(code []byte) float32 {
	return sumTable(d.partialSums, d.c, code)
}

func (d *QuickerADCDecoder) observe(rawSum float32) {
	d.invocations++
	if !d.worstSet {
		d.worstDistance = rawSum
		d.worstSet = true
		return
	}
	if d.maxi {
		if rawSum < d.worstDistance {
			d.worstDistance = rawSum
		}
	} else {
		if rawSum > d.worstDistance {
			d.worstDistance = rawSum
		}
	}
}

// quantize computes delta = (worstDistance - bestDistance) / 65535 and
// requantizes every partial sum to round((v - bestInSubspace) / delta).
// bestDistance/worstDistance are already oriented in the favorable/
// unfavorable direction by partialBest and observe respectively (the max
// entry per subspace for dot, the min for euclidean; the min/max observed
// raw sum symmetrically), so delta's sign does the rest of the work: no
// separate case is needed for dot versus euclidean.
func (d *QuickerADCDecoder) quantize() {
	delta := (d.worstDistance - d.bestDistance) / 65535
	if delta == 0 {
		delta = 1e-6
	}
	d.delta = delta

	quantized := make([][]uint16, len(d.c.Subspaces))
	for m, row := range d.partialSums {
		qrow := make([]uint16, len(row))
		best := d.partialBest[m]
		for code, v := range row {
			scaled := (v - best) / delta
			if scaled < 0 {
				scaled = 0
			}
			if scaled > 65535 {
				scaled = 65535
			}
			qrow[code] = uint16(math.Round(float64(scaled)))
		}
		quantized[m] = qrow
	}
	d.quantized = quantized
	d.quantizedBestRawSum = d.bestDistance
	d.supportsQuantized = true
}

func (d *QuickerADCDecoder) quantizedSum(code []byte) float32 {
	var accum uint32
	for m := range d.c.Subspaces {
		accum += uint32(d.quantized[m][code[m]])
	}
	return d.quantizedBestRawSum + float32(accum)*d.delta
}

func (d *QuickerADCDecoder) normalize(rawSum float32) float32 {
	switch d.sim {
	case Dot:
		return (1 + rawSum) / 2
	case Euclidean:
		return 1 / (1 + rawSum)
	default:
		return 0
	}
}

// SupportsQuantizedSimilarity reports whether this decoder has crossed
// its warmup threshold and switched to the u16 fused path.
func (d *QuickerADCDecoder) SupportsQuantizedSimilarity() bool { return d.supportsQuantized }
