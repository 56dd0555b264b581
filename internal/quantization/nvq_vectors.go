package quantization

// NVQVectors is the CompressedVectors container for a trained
// NVQCompressor: one NVQEncodedVector per ordinal.
type NVQVectors struct {
	Compressor *NVQCompressor
	entries    []NVQEncodedVector
	buildID    string
}

// NewNVQVectors returns an empty, appendable NVQVectors bound to
// compressor.
func NewNVQVectors(compressor *NVQCompressor) *NVQVectors {
	return &NVQVectors{Compressor: compressor}
}

func (n *NVQVectors) Size() int { return len(n.entries) }

// BuildID returns the identifier stamped by the last EncodeAll call, or
// "" if this container was never built through EncodeAll.
func (n *NVQVectors) BuildID() string { return n.buildID }

// SetBuildID stamps this container's build identifier.
func (n *NVQVectors) SetBuildID(id string) { n.buildID = id }

// Append decodes one wire-format code (as produced by
// NVQCompressor.Encode) and stores it.
func (n *NVQVectors) Append(code []byte) int {
	enc, err := decodeNVQVectorFromBytes(code)
	if err != nil {
		// Append has no error return in the CompressedVectors contract;
		// a caller that passes a code NVQCompressor.Encode didn't
		// produce has already broken the container invariant.
		panic(err)
	}
	n.entries = append(n.entries, enc)
	return len(n.entries) - 1
}

// Set overwrites the code at ordinal n, which must already exist.
func (n *NVQVectors) Set(ord int, code []byte) error {
	if ord < 0 || ord >= len(n.entries) {
		return newErr(DimensionMismatch, "NVQVectors.Set", "ord", "ordinal out of range")
	}
	enc, err := decodeNVQVectorFromBytes(code)
	if err != nil {
		return err
	}
	n.entries[ord] = enc
	return nil
}

// SetZero overwrites the code at ordinal n with scale=0, bias=0
// subvectors in every subspace, which dequantize to the zero vector
// regardless of stored level.
func (n *NVQVectors) SetZero(ord int) error {
	if ord < 0 || ord >= len(n.entries) {
		return newErr(DimensionMismatch, "NVQVectors.SetZero", "ord", "ordinal out of range")
	}
	c := n.Compressor
	subvecs := make([]NVQSubvector, len(c.Subspaces))
	for m, sub := range c.Subspaces {
		packedLen := sub.Size
		if c.Bits == 4 {
			packedLen = (sub.Size + 1) / 2
		}
		subvecs[m] = NVQSubvector{
			Bits:        c.Bits,
			A:           1,
			B:           1,
			OriginalLen: sub.Size,
			Bytes:       make([]byte, packedLen),
		}
	}
	n.entries[ord] = NVQEncodedVector{Subvectors: subvecs}
	return nil
}

// NewScoreFunction returns a ScoreFunction that dequantizes each
// subspace's stored subvector against query and combines per-subspace
// contributions per sim.
func (n *NVQVectors) NewScoreFunction(query []float32, sim Similarity) (ScoreFunction, error) {
	c := n.Compressor
	if len(query) != c.Dim {
		return nil, newErr(DimensionMismatch, "NVQVectors.NewScoreFunction", "query", "query length does not match trained dimension")
	}

	switch sim {
	case Dot:
		var queryGlobalBias float32
		for i, q := range query {
			queryGlobalBias += q * c.GlobalMean[i]
		}
		return func(ord int) (float32, error) {
			entry, err := n.entryAt(ord)
			if err != nil {
				return 0, err
			}
			var sum float32
			for m, sub := range c.Subspaces {
				recon := dequantizeSubvector(entry.Subvectors[m])
				sum += c.vm.Dot(query, sub.Offset, recon, 0, sub.Size)
			}
			return (1 + sum + queryGlobalBias) / 2, nil
		}, nil
	case Euclidean:
		qTilde := make([]float32, c.Dim)
		for i, q := range query {
			qTilde[i] = q - c.GlobalMean[i]
		}
		return func(ord int) (float32, error) {
			entry, err := n.entryAt(ord)
			if err != nil {
				return 0, err
			}
			var sum float32
			for m, sub := range c.Subspaces {
				recon := dequantizeSubvector(entry.Subvectors[m])
				sum += c.vm.SquaredL2(qTilde, sub.Offset, recon, 0, sub.Size)
			}
			return 1 / (1 + sum), nil
		}, nil
	case Cosine:
		qNorm := normSafe(c.vm.SquaredNorm(query, 0, c.Dim))
		return func(ord int) (float32, error) {
			entry, err := n.entryAt(ord)
			if err != nil {
				return 0, err
			}
			var dot, vNormSq float32
			for m, sub := range c.Subspaces {
				recon := dequantizeSubvector(entry.Subvectors[m])
				for i := range recon {
					recon[i] += c.GlobalMean[sub.Offset+i]
				}
				dot += c.vm.Dot(query, sub.Offset, recon, 0, sub.Size)
				vNormSq += c.vm.SquaredNorm(recon, 0, sub.Size)
			}
			denom := normSafe(vNormSq) * qNorm
			if denom <= 0 {
				return 0.5, nil
			}
			return (1 + dot/denom) / 2, nil
		}, nil
	default:
		return nil, newErr(UnsupportedCombination, "NVQVectors.NewScoreFunction", "sim", "unknown similarity")
	}
}

func (n *NVQVectors) entryAt(ord int) (NVQEncodedVector, error) {
	if ord < 0 || ord >= len(n.entries) {
		return NVQEncodedVector{}, newErr(DimensionMismatch, "NVQVectors.ScoreFunction", "ordinal", "ordinal out of range")
	}
	return n.entries[ord], nil
}
