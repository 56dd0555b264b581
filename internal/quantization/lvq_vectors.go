package quantization

// LVQVectors stores packed LVQ codes. Unlike PQVectors and BQVectors it
// is not a standalone CompressedVectors: LVQ exposes exact-score
// functions meant for reranking a shortlist, not a primary ANN search
// path, so NewRerankScoreFunction takes the place of NewScoreFunction.
type LVQVectors struct {
	Compressor *LVQCompressor
	entries    [][]byte // one packed code (as produced by LVQCompressor.Encode) per ordinal
}

// NewLVQVectors returns an empty, appendable LVQVectors bound to
// compressor.
func NewLVQVectors(compressor *LVQCompressor) *LVQVectors {
	return &LVQVectors{Compressor: compressor}
}

func (l *LVQVectors) Size() int { return len(l.entries) }

// Append stores one already-encoded packed code and returns its ordinal.
func (l *LVQVectors) Append(code []byte) int {
	l.entries = append(l.entries, code)
	return len(l.entries) - 1
}

// Set overwrites the packed code at ordinal n, which must already exist.
func (l *LVQVectors) Set(n int, code []byte) error {
	if n < 0 || n >= len(l.entries) {
		return newErr(DimensionMismatch, "LVQVectors.Set", "n", "ordinal out of range")
	}
	l.entries[n] = code
	return nil
}

// SetZero overwrites the code at ordinal n with bias=0, scale=0 and
// all-zero bytes, reconstructing to the global mean everywhere.
func (l *LVQVectors) SetZero(n int) error {
	if n < 0 || n >= len(l.entries) {
		return newErr(DimensionMismatch, "LVQVectors.SetZero", "n", "ordinal out of range")
	}
	zeroBytes := make([]byte, l.Compressor.Dim)
	if l.Compressor.TurboPack {
		zeroBytes = turboPack(zeroBytes)
	}
	l.entries[n] = packLVQCode(0, 0, zeroBytes)
	return nil
}

// NewRerankScoreFunction returns an exact-score ScoreFunction against the
// packed LVQ storage. Dot works from the raw bytes, the per-vector bias
// and scale, and precomputed query sums; euclidean and cosine
// reconstruct each component from its byte before accumulating.
func (l *LVQVectors) NewRerankScoreFunction(query []float32, sim Similarity) (ScoreFunction, error) {
	c := l.Compressor
	if len(query) != c.Dim {
		return nil, newErr(DimensionMismatch, "LVQVectors.NewRerankScoreFunction", "query", "query length does not match trained dimension")
	}

	switch sim {
	case Dot:
		var querySum float32
		var queryGlobalBias float32
		for i, q := range query {
			querySum += q
			queryGlobalBias += q * c.GlobalMean[i]
		}
		return func(n int) (float32, error) {
			bytes, bias, scale, err := l.decodedAt(n)
			if err != nil {
				return 0, err
			}
			var qb float32
			for i, b := range bytes {
				qb += query[i] * float32(b)
			}
			lvqDot := qb*scale + bias*querySum + queryGlobalBias
			return (1 + lvqDot) / 2, nil
		}, nil
	case Euclidean:
		qTilde := make([]float32, c.Dim)
		for i, q := range query {
			qTilde[i] = q - c.GlobalMean[i]
		}
		return func(n int) (float32, error) {
			bytes, bias, scale, err := l.decodedAt(n)
			if err != nil {
				return 0, err
			}
			var dist float32
			for i, b := range bytes {
				recon := float32(b)*scale + bias
				d := qTilde[i] - recon
				dist += d * d
			}
			return 1 / (1 + dist), nil
		}, nil
	case Cosine:
		qNorm := normSafe(c.vm.SquaredNorm(query, 0, c.Dim))
		return func(n int) (float32, error) {
			bytes, bias, scale, err := l.decodedAt(n)
			if err != nil {
				return 0, err
			}
			var dot, normV float32
			for i, b := range bytes {
				recon := float32(b)*scale + bias + c.GlobalMean[i]
				dot += query[i] * recon
				normV += recon * recon
			}
			denom := normSafe(normV) * qNorm
			if denom <= 0 {
				return 0.5, nil
			}
			return (1 + dot/denom) / 2, nil
		}, nil
	default:
		return nil, newErr(UnsupportedCombination, "LVQVectors.NewRerankScoreFunction", "sim", "unknown similarity")
	}
}

func (l *LVQVectors) decodedAt(n int) (bytes []byte, bias, scale float32, err error) {
	if n < 0 || n >= len(l.entries) {
		return nil, 0, 0, newErr(DimensionMismatch, "LVQVectors.ScoreFunction", "n", "ordinal out of range")
	}
	bias, scale, packed := unpackLVQCode(l.entries[n])
	if l.Compressor.TurboPack {
		bytes = turboUnpack(packed, l.Compressor.Dim)
	} else {
		bytes = packed
	}
	return bytes, bias, scale, nil
}
