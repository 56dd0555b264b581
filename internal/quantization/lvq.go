package quantization

import (
	"context"
	"math"
)

// LVQCompressor holds the global mean every LVQ vector is centered
// against before its per-vector affine 8-bit quantization.
type LVQCompressor struct {
	Dim        int
	GlobalMean []float32
	TurboPack  bool
	vm         VectorMath
}

// TrainLVQ computes the global mean over src and returns a compressor
// ready to encode. limiter, if non-nil, is waited on before training
// starts.
func TrainLVQ(src RandomAccessVectorValues, turboPack bool, vm VectorMath, limiter *TrainLimiter) (*LVQCompressor, error) {
	if limiter != nil {
		if err := limiter.Wait(context.Background()); err != nil {
			return nil, err
		}
	}
	if vm == nil {
		vm = DefaultVectorMath
	}
	n := src.Size()
	if n == 0 {
		return nil, newErr(InvalidConfiguration, "LVQ.Train", "src", "empty training source")
	}
	dim := src.Dim()
	mean := make([]float32, dim)
	for i := 0; i < n; i++ {
		v, err := src.Get(i)
		if err != nil {
			return nil, err
		}
		for j, x := range v {
			mean[j] += x
		}
	}
	inv := 1.0 / float32(n)
	for j := range mean {
		mean[j] *= inv
	}
	return &LVQCompressor{Dim: dim, GlobalMean: mean, TurboPack: turboPack, vm: vm}, nil
}

// CodeSize returns the packed byte length: bias (f32) + scale (f32) +
// bytes, padded to the next 64-byte block when TurboPack is set.
func (c *LVQCompressor) CodeSize() int {
	n := c.Dim
	if c.TurboPack {
		n = ((c.Dim + 63) / 64) * 64
	}
	return 8 + n
}

// Encode computes v' = v - globalMean, bias = min(v'), scale =
// (max(v')-bias)/255, then rounds each component into [0,255]. When
// TurboPack is set, the bytes are interleaved into the block order
// described for LVQ packed storage before serialization.
func (c *LVQCompressor) Encode(vector []float32) ([]byte, error) {
	if len(vector) != c.Dim {
		return nil, newErr(DimensionMismatch, "LVQ.Encode", "vector", "vector length does not match trained dimension")
	}
	centered := make([]float32, c.Dim)
	for i := range centered {
		centered[i] = vector[i] - c.GlobalMean[i]
	}
	minV, maxV := centered[0], centered[0]
	for _, v := range centered[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	bias := minV
	scale := (maxV - minV) / 255
	if scale == 0 {
		scale = 1
	}

	bytes := make([]byte, c.Dim)
	for i, v := range centered {
		q := math.Round(float64((v - bias) / scale))
		if q < 0 {
			q = 0
		}
		if q > 255 {
			q = 255
		}
		bytes[i] = byte(q)
	}

	if c.TurboPack {
		bytes = turboPack(bytes)
	}

	return packLVQCode(bias, scale, bytes), nil
}

// turboPack permutes bytes into 64-byte blocks so that, within each
// block, lane i lands at blockStart + (i%16)*4 + (i/16). Tails shorter
// than a full 64-byte block are padded with zeros.
func turboPack(bytes []byte) []byte {
	n := len(bytes)
	padded := ((n + 63) / 64) * 64
	out := make([]byte, padded)
	for blockStart := 0; blockStart < padded; blockStart += 64 {
		for i := 0; i < 64; i++ {
			src := blockStart + i
			lane := blockStart + (i%16)*4 + (i / 16)
			if src < n {
				out[lane] = bytes[src]
			}
		}
	}
	return out
}

// turboUnpack inverts turboPack given the original (unpadded) length.
func turboUnpack(packed []byte, originalLen int) []byte {
	out := make([]byte, originalLen)
	padded := len(packed)
	for blockStart := 0; blockStart < padded; blockStart += 64 {
		for i := 0; i < 64; i++ {
			dst := blockStart + i
			lane := blockStart + (i%16)*4 + (i / 16)
			if dst < originalLen {
				out[dst] = packed[lane]
			}
		}
	}
	return out
}

func packLVQCode(bias, scale float32, bytes []byte) []byte {
	out := make([]byte, 8+len(bytes))
	putFloat32LE(out[0:4], bias)
	putFloat32LE(out[4:8], scale)
	copy(out[8:], bytes)
	return out
}

func unpackLVQCode(code []byte) (bias, scale float32, bytes []byte) {
	bias = getFloat32LE(code[0:4])
	scale = getFloat32LE(code[4:8])
	bytes = code[8:]
	return
}
