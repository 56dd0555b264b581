package quantization

import (
	"context"
	"strconv"

	"github.com/google/uuid"
)

// Similarity names the distance/similarity function a ScoreFunction
// computes. Not every quantizer family supports every value; requesting
// an unsupported combination returns an UnsupportedCombination error.
type Similarity int

const (
	// Dot is the inner product of the vectors as given (not normalized),
	// scored as (1 + dot) / 2.
	Dot Similarity = iota
	// Euclidean is squared L2 distance d, scored as 1 / (1 + d) so that
	// larger is always better across every Similarity value.
	Euclidean
	// Cosine is inner product over L2-normalized vectors.
	Cosine
)

func (s Similarity) String() string {
	switch s {
	case Dot:
		return "dot"
	case Euclidean:
		return "euclidean"
	case Cosine:
		return "cosine"
	default:
		return "unknown"
	}
}

// RandomAccessVectorValues is the source a Compressor trains against and
// EncodeAll reads from. Implementations are expected to be safe for
// concurrent Get calls at distinct ordinals from multiple goroutines, but
// are never mutated by this package.
type RandomAccessVectorValues interface {
	// Size returns the number of vectors.
	Size() int
	// Dim returns the dimensionality every vector shares.
	Dim() int
	// Get returns the vector at ordinal i. The returned slice must not be
	// retained past the call that produced it; implementations may reuse
	// the backing array.
	Get(i int) ([]float32, error)
}

// sliceVectorValues adapts a plain [][]float32 to RandomAccessVectorValues.
type sliceVectorValues struct {
	data [][]float32
	dim  int
}

// NewSliceVectorValues wraps vectors, all of which must share dim, as a
// RandomAccessVectorValues.
func NewSliceVectorValues(vectors [][]float32, dim int) (RandomAccessVectorValues, error) {
	for i, v := range vectors {
		if len(v) != dim {
			return nil, newErr(DimensionMismatch, "SliceVectorValues", "vectors",
				"vector at index "+strconv.Itoa(i)+" has length "+strconv.Itoa(len(v))+", expected "+strconv.Itoa(dim))
		}
	}
	return &sliceVectorValues{data: vectors, dim: dim}, nil
}

func (s *sliceVectorValues) Size() int { return len(s.data) }
func (s *sliceVectorValues) Dim() int  { return s.dim }
func (s *sliceVectorValues) Get(i int) ([]float32, error) {
	if i < 0 || i >= len(s.data) {
		return nil, newErr(DimensionMismatch, "SliceVectorValues", "i", "ordinal out of range")
	}
	return s.data[i], nil
}

// ScoreFunction computes a similarity score between one fixed query and
// whichever vector ordinal it is called with, reading directly from a
// CompressedVectors container's stored codes. A ScoreFunction is bound to
// a single query and a single calling goroutine: per-query work (PQ's
// partial-sum and magnitude tables, the query/global-mean terms of LVQ
// and NVQ) is done once when the ScoreFunction is built, not per call.
// NVQ still dequantizes each stored subvector on every call.
type ScoreFunction func(ordinal int) (float32, error)

// CompressedVectors is the read side of a quantizer's encoded store: the
// codes for Size() vectors, with a NewScoreFunction that binds a query
// against them.
type CompressedVectors interface {
	// Size returns the number of encoded vectors.
	Size() int
	// NewScoreFunction returns a ScoreFunction for query, computed with
	// the given similarity. Returns UnsupportedCombination if this
	// container cannot compute that similarity.
	NewScoreFunction(query []float32, sim Similarity) (ScoreFunction, error)
	// BuildID returns the identifier stamped onto this container the
	// last time EncodeAll populated it, or "" if it was never built
	// through EncodeAll (e.g. assembled by hand via repeated Append).
	BuildID() string
}

// MutableCompressedVectors is a CompressedVectors that a Compressor can
// append to during EncodeAll, and that a single-writer phase can also
// update in place by dense ordinal. Implementations must not be mutated
// concurrently with scoring, and set/setZero calls against each other
// must be externally serialized.
type MutableCompressedVectors interface {
	CompressedVectors
	// Append stores one already-encoded code, returning its ordinal.
	Append(code []byte) int
	// Set overwrites the code at ordinal, which must already exist
	// (0 <= ordinal < Size()).
	Set(ordinal int, code []byte) error
	// SetZero overwrites the code at ordinal with the family's zero
	// representation (legacy all-zero padding, not a trained code).
	SetZero(ordinal int) error
	// SetBuildID stamps this container's build identifier. Called by
	// EncodeAll once a batch finishes; not meant for direct use.
	SetBuildID(id string)
}

// EncodeAndSet encodes vector with compressor and stores the result at
// ordinal in dst, which must already hold an entry there.
func EncodeAndSet(compressor Compressor, dst MutableCompressedVectors, ordinal int, vector []float32) error {
	code, err := compressor.Encode(vector)
	if err != nil {
		return err
	}
	return dst.Set(ordinal, code)
}

// Compressor is the trained, frozen state of one quantizer family: it can
// encode new vectors into the code representation a matching
// CompressedVectors stores.
type Compressor interface {
	// Encode maps a single float32 vector to its code bytes.
	Encode(vector []float32) ([]byte, error)
	// CodeSize returns the number of bytes Encode produces.
	CodeSize() int
}

// EncodeAll runs compressor.Encode over every vector in src, distributing
// work across pool, and appends each resulting code to dst in ordinal
// order. Context cancellation stops the pool from starting further
// encodes but lets in-flight ones finish. If any vector was left
// unencoded by cancellation, or any encode failed, nothing is appended:
// the first encode error (in ordinal order) or the cancellation is
// returned once all submitted work has drained.
func EncodeAll(ctx context.Context, pool *WorkerPool, compressor Compressor, src RandomAccessVectorValues, dst MutableCompressedVectors) error {
	n := src.Size()
	codes := make([][]byte, n)
	errs := make([]error, n)

	tasks := make([]func(), 0, n)
	for i := 0; i < n; i++ {
		i := i
		tasks = append(tasks, func() {
			v, err := src.Get(i)
			if err != nil {
				errs[i] = err
				return
			}
			code, err := compressor.Encode(v)
			if err != nil {
				errs[i] = err
				return
			}
			codes[i] = code
		})
	}

	pool.RunAll(ctx, tasks)

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			return errs[i]
		}
		if codes[i] == nil {
			return wrapErr(InvalidConfiguration, "EncodeAll", "batch canceled before every vector was encoded", ctx.Err())
		}
	}
	for i := 0; i < n; i++ {
		dst.Append(codes[i])
	}
	dst.SetBuildID(uuid.New().String())
	return nil
}
