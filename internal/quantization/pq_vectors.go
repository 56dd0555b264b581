package quantization

// PQVectors is the standard (non-fused) CompressedVectors container for a
// trained PQCompressor: a flat M*N byte array of codes plus the
// compressor they were encoded against.
type PQVectors struct {
	Compressor *PQCompressor
	Codes      []byte // flat, row-major: code(n, m) = Codes[n*M+m]
	count      int
	buildID    string
}

// NewPQVectors returns an empty, appendable PQVectors bound to
// compressor.
func NewPQVectors(compressor *PQCompressor) *PQVectors {
	return &PQVectors{Compressor: compressor}
}

func (p *PQVectors) Size() int { return p.count }

// BuildID returns the identifier stamped by the last EncodeAll call, or
// "" if this container was never built through EncodeAll.
func (p *PQVectors) BuildID() string { return p.buildID }

// SetBuildID stamps this container's build identifier.
func (p *PQVectors) SetBuildID(id string) { p.buildID = id }

// Append stores one already-encoded code (length CodeSize()) and returns
// its ordinal.
func (p *PQVectors) Append(code []byte) int {
	p.Codes = append(p.Codes, code...)
	p.count++
	return p.count - 1
}

func (p *PQVectors) codeAt(n int) []byte {
	m := p.Compressor.CodeSize()
	return p.Codes[n*m : (n+1)*m]
}

// Set overwrites the code at ordinal n, which must already exist.
func (p *PQVectors) Set(n int, code []byte) error {
	if n < 0 || n >= p.count {
		return newErr(DimensionMismatch, "PQVectors.Set", "n", "ordinal out of range")
	}
	if len(code) != p.Compressor.CodeSize() {
		return newErr(DimensionMismatch, "PQVectors.Set", "code", "code length does not match CodeSize")
	}
	copy(p.codeAt(n), code)
	return nil
}

// SetZero overwrites the code at ordinal n with all-zero subspace codes
// (nearest centroid 0 in every subspace), the legacy padding value.
func (p *PQVectors) SetZero(n int) error {
	if n < 0 || n >= p.count {
		return newErr(DimensionMismatch, "PQVectors.SetZero", "n", "ordinal out of range")
	}
	dst := p.codeAt(n)
	for i := range dst {
		dst[i] = 0
	}
	return nil
}

// NewScoreFunction builds a per-subspace partial-sum table for query once
// and returns a ScoreFunction that looks up and sums M entries per call.
func (p *PQVectors) NewScoreFunction(query []float32, sim Similarity) (ScoreFunction, error) {
	c := p.Compressor
	if len(query) != c.Dim {
		return nil, newErr(DimensionMismatch, "PQVectors.NewScoreFunction", "query", "query length does not match trained dimension")
	}

	q := query
	if c.GlobalCentroid != nil {
		q = make([]float32, c.Dim)
		for i := range q {
			q[i] = query[i] - c.GlobalCentroid[i]
		}
	}

	switch sim {
	case Dot:
		table := buildPartialSumTable(c, q, false)
		return func(n int) (float32, error) {
			if n < 0 || n >= p.count {
				return 0, newErr(DimensionMismatch, "PQVectors.ScoreFunction", "n", "ordinal out of range")
			}
			sum := sumTable(table, c, p.codeAt(n))
			return (1 + sum) / 2, nil
		}, nil
	case Euclidean:
		table := buildPartialSumTable(c, q, true)
		return func(n int) (float32, error) {
			if n < 0 || n >= p.count {
				return 0, newErr(DimensionMismatch, "PQVectors.ScoreFunction", "n", "ordinal out of range")
			}
			sum := sumTable(table, c, p.codeAt(n))
			return 1 / (1 + sum), nil
		}, nil
	case Cosine:
		dotTable := buildPartialSumTable(c, q, false)
		magTable := buildMagnitudeTable(c)
		bMag := c.vm.SquaredNorm(q, 0, c.Dim)
		return func(n int) (float32, error) {
			if n < 0 || n >= p.count {
				return 0, newErr(DimensionMismatch, "PQVectors.ScoreFunction", "n", "ordinal out of range")
			}
			code := p.codeAt(n)
			dotSum := sumTable(dotTable, c, code)
			aMag := sumTable(magTable, c, code)
			denom := normSafe(aMag * bMag)
			if denom <= 0 {
				return 0.5, nil
			}
			return (1 + dotSum/denom) / 2, nil
		}, nil
	default:
		return nil, newErr(UnsupportedCombination, "PQVectors.NewScoreFunction", "sim", "unknown similarity")
	}
}

// buildPartialSumTable computes, for each subspace m and code c, the
// kernel between q's slice in subspace m and centroid c: dot product, or
// squared-L2 if squaredL2 is true.
func buildPartialSumTable(c *PQCompressor, q []float32, squaredL2 bool) [][]float32 {
	table := make([][]float32, len(c.Subspaces))
	for m, sub := range c.Subspaces {
		row := make([]float32, c.K)
		for code := 0; code < c.K; code++ {
			if squaredL2 {
				row[code] = c.vm.SquaredL2(q, sub.Offset, c.Codebooks[m], code*sub.Size, sub.Size)
			} else {
				row[code] = c.vm.Dot(q, sub.Offset, c.Codebooks[m], code*sub.Size, sub.Size)
			}
		}
		table[m] = row
	}
	return table
}

// buildMagnitudeTable computes, for each subspace m and code c, the
// squared norm of centroid c within subspace m.
func buildMagnitudeTable(c *PQCompressor) [][]float32 {
	table := make([][]float32, len(c.Subspaces))
	for m, sub := range c.Subspaces {
		row := make([]float32, c.K)
		for code := 0; code < c.K; code++ {
			row[code] = c.vm.SquaredNorm(c.Codebooks[m], code*sub.Size, sub.Size)
		}
		table[m] = row
	}
	return table
}

func sumTable(table [][]float32, c *PQCompressor, code []byte) float32 {
	var sum float32
	for m := range c.Subspaces {
		sum += table[m][code[m]]
	}
	return sum
}
