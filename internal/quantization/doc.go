// Package quantization implements the vector compression core of a
// disk-friendly approximate-nearest-neighbor index: Product Quantization
// (PQ), Binary Quantization (BQ), Locally-Adaptive Vector Quantization
// (LVQ, Turbo-packed), and Non-uniform Vector Quantization (NVQ) with a
// Kumaraswamy warp, plus the k-means++ clusterer and xNES optimizer they
// share.
//
// PQ, BQ and NVQ follow the same lifecycle: training on a float vector
// sample freezes a Compressor (BQ has no training step; NewBQCompressor
// needs only the dimension), EncodeAll runs that compressor over a
// RandomAccessVectorValues source into a CompressedVectors container,
// and a ScoreFunction bound to one query computes approximate similarity
// directly over the stored codes, in [0, 1] (for Dot, when the vectors
// have unit length). LVQ codes are kept in LVQVectors, which is not a
// CompressedVectors and offers rerank score functions instead. None of this package launches
// its own goroutines outside of the worker pool a caller supplies to
// EncodeAll; k-means and xNES run on the calling goroutine.
package quantization
