package quantization

import "context"

// BQCompressor is a trained binary quantizer. Sign-bit encoding has no
// learned parameters beyond the dimension, but the compressor still
// carries a zero vector of that length: the legacy on-disk format
// reserves space for a previously-stored center that this package never
// populates (see serialization.go).
type BQCompressor struct {
	Dim         int
	legacyZeros []float32
}

// NewBQCompressor returns a binary quantizer for vectors of dimension
// dim. There is no training step: BQ's only parameter is the dimension,
// inferred directly rather than learned from a sample. limiter, if
// non-nil, is waited on before construction so that a burst of BQ
// instantiations shares the same training-rate budget as PQ/LVQ/NVQ.
func NewBQCompressor(dim int, limiter *TrainLimiter) (*BQCompressor, error) {
	if dim < 1 {
		return nil, newErr(InvalidConfiguration, "BQ.New", "dim", "dimension must be positive")
	}
	if limiter != nil {
		if err := limiter.Wait(context.Background()); err != nil {
			return nil, err
		}
	}
	return &BQCompressor{Dim: dim, legacyZeros: make([]float32, dim)}, nil
}

// WordsPerVector returns ceil(D/64), the number of u64 words one BQ code
// occupies.
func (c *BQCompressor) WordsPerVector() int {
	return (c.Dim + 63) / 64
}

// CodeSize returns the code length in bytes: 8 bytes per u64 word.
func (c *BQCompressor) CodeSize() int {
	return c.WordsPerVector() * 8
}

// Encode maps vector to its sign-bit code: bit j of word i is 1 iff
// component 64i+j is strictly positive.
func (c *BQCompressor) Encode(vector []float32) ([]byte, error) {
	if len(vector) != c.Dim {
		return nil, newErr(DimensionMismatch, "BQ.Encode", "vector", "vector length does not match declared dimension")
	}
	words := c.WordsPerVector()
	packed := make([]uint64, words)
	for i, v := range vector {
		if v > 0 {
			packed[i/64] |= 1 << uint(i%64)
		}
	}
	return packWords(packed), nil
}

func packWords(words []uint64) []byte {
	out := make([]byte, len(words)*8)
	for i, w := range words {
		putUint64LE(out[i*8:], w)
	}
	return out
}

func unpackWords(data []byte, count int) []uint64 {
	words := make([]uint64, count)
	for i := 0; i < count; i++ {
		words[i] = getUint64LE(data[i*8:])
	}
	return words
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func getUint64LE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}
