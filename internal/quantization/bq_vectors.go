package quantization

// BQVectors is the CompressedVectors container for a BQCompressor: one
// packed sign-bit code per ordinal.
type BQVectors struct {
	Compressor *BQCompressor
	words      [][]uint64
	vm         VectorMath
	buildID    string
}

// NewBQVectors returns an empty, appendable BQVectors bound to compressor.
func NewBQVectors(compressor *BQCompressor, vm VectorMath) *BQVectors {
	if vm == nil {
		vm = DefaultVectorMath
	}
	return &BQVectors{Compressor: compressor, vm: vm}
}

func (b *BQVectors) Size() int { return len(b.words) }

// BuildID returns the identifier stamped by the last EncodeAll call, or
// "" if this container was never built through EncodeAll.
func (b *BQVectors) BuildID() string { return b.buildID }

// SetBuildID stamps this container's build identifier.
func (b *BQVectors) SetBuildID(id string) { b.buildID = id }

// Append decodes one packed code back into u64 words and stores it.
func (b *BQVectors) Append(code []byte) int {
	words := unpackWords(code, b.Compressor.WordsPerVector())
	b.words = append(b.words, words)
	return len(b.words) - 1
}

// Set overwrites the code at ordinal n, which must already exist.
func (b *BQVectors) Set(n int, code []byte) error {
	if n < 0 || n >= len(b.words) {
		return newErr(DimensionMismatch, "BQVectors.Set", "n", "ordinal out of range")
	}
	b.words[n] = unpackWords(code, b.Compressor.WordsPerVector())
	return nil
}

// SetZero overwrites the code at ordinal n with the legacy all-zero
// words padding (see BQCompressor's zero-vector handling).
func (b *BQVectors) SetZero(n int) error {
	if n < 0 || n >= len(b.words) {
		return newErr(DimensionMismatch, "BQVectors.SetZero", "n", "ordinal out of range")
	}
	b.words[n] = make([]uint64, b.Compressor.WordsPerVector())
	return nil
}

// NewScoreFunction returns a Hamming-similarity ScoreFunction. Only
// Dot is accepted as the nominal similarity label for a Hamming-based
// score: BQ cannot compute a real inner product or cosine, so Euclidean
// and Cosine both return UnsupportedCombination.
func (b *BQVectors) NewScoreFunction(query []float32, sim Similarity) (ScoreFunction, error) {
	if sim != Dot {
		return nil, newErr(UnsupportedCombination, "BQVectors.NewScoreFunction", "sim", "binary quantization supports only Hamming-compatible scoring")
	}
	if len(query) != b.Compressor.Dim {
		return nil, newErr(DimensionMismatch, "BQVectors.NewScoreFunction", "query", "query length does not match declared dimension")
	}
	qWords := unpackWords(mustEncode(b.Compressor, query), b.Compressor.WordsPerVector())
	totalBits := float32(b.Compressor.WordsPerVector() * 64)

	return func(n int) (float32, error) {
		if n < 0 || n >= len(b.words) {
			return 0, newErr(DimensionMismatch, "BQVectors.ScoreFunction", "n", "ordinal out of range")
		}
		hamming := b.vm.Hamming(qWords, b.words[n])
		return 1 - float32(hamming)/totalBits, nil
	}, nil
}

func mustEncode(c *BQCompressor, v []float32) []byte {
	code, err := c.Encode(v)
	if err != nil {
		// Dimension was already validated by the caller before this
		// helper runs; only programmer error reaches here.
		panic(err)
	}
	return code
}
