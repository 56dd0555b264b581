package quantization

import (
	"context"
	"math"
	"math/rand"
)

// KumaraswamyWarp is a fitted per-subspace Kumaraswamy CDF warp
// y = 1 - (1 - u^a)^b, shared by every vector's subvector in that
// subspace. (A, B) == (1, 1) is the identity warp.
type KumaraswamyWarp struct {
	A, B float32
}

func (w KumaraswamyWarp) isIdentity() bool {
	return w.A == 1 && w.B == 1
}

func (w KumaraswamyWarp) apply(u float64) float64 {
	return 1 - math.Pow(1-math.Pow(u, float64(w.A)), float64(w.B))
}

func (w KumaraswamyWarp) invert(y float64) float64 {
	inner := 1 - math.Pow(1-y, 1/float64(w.B))
	return math.Pow(inner, 1/float64(w.A))
}

// NVQCompressor holds the global mean, dimension partition, and per-
// subspace fitted warp every NVQ vector is encoded against.
type NVQCompressor struct {
	Dim        int
	GlobalMean []float32
	Bits       int
	Subspaces  []SubspaceInfo
	Warps      []KumaraswamyWarp
	vm         VectorMath
}

// NVQTrainOptions configures an NVQ training run.
type NVQTrainOptions struct {
	Subspaces    int
	Bits         int // 4 or 8
	LearnWarp    bool
	WarpRetries  int
	XNESMaxIters int
	MaxSample    int
	RNG          *rand.Rand
	VM           VectorMath
	// Limiter, if set, is waited on before training starts, throttling
	// a burst of concurrent Train calls against a shared budget.
	Limiter *TrainLimiter
}

func (c *NVQCompressor) CodeSize() int {
	total := 0
	for _, s := range c.Subspaces {
		total += nvqSubvectorWireSize(s.Size, c.Bits)
	}
	return total
}

func nvqSubvectorWireSize(n, bits int) int {
	packedLen := n
	if bits == 4 {
		packedLen = (n + 1) / 2
	}
	return 4 + 4 + 4 + 4 + 4 + 4 + packedLen // bits,bias,scale,a,b,origLen + bytes
}

// Encode maps vector to its NVQ code: per subspace, an affine-normalized,
// warped, uniformly quantized subvector.
func (c *NVQCompressor) Encode(vector []float32) ([]byte, error) {
	if len(vector) != c.Dim {
		return nil, newErr(DimensionMismatch, "NVQ.Encode", "vector", "vector length does not match trained dimension")
	}
	enc, err := c.encodeVector(vector)
	if err != nil {
		return nil, err
	}
	return encodeNVQVectorToBytes(enc), nil
}

func (c *NVQCompressor) encodeVector(vector []float32) (NVQEncodedVector, error) {
	subvecs := make([]NVQSubvector, len(c.Subspaces))
	for m, sub := range c.Subspaces {
		sPrime := make([]float64, sub.Size)
		for i := 0; i < sub.Size; i++ {
			sPrime[i] = float64(vector[sub.Offset+i] - c.GlobalMean[sub.Offset+i])
		}
		bias, scale := minMaxBiasScale(sPrime)
		warp := c.Warps[m]
		levels := (1 << uint(c.Bits)) - 1
		packed := make([]byte, 0, sub.Size)
		nibbles := make([]byte, sub.Size)
		for i, v := range sPrime {
			u := 0.0
			if scale > 0 {
				u = (v - bias) / scale
			}
			u = clamp01(u)
			y := u
			if !warp.isIdentity() {
				y = warp.apply(u)
			}
			level := int(math.Round(y * float64(levels)))
			if level < 0 {
				level = 0
			}
			if level > levels {
				level = levels
			}
			nibbles[i] = byte(level)
		}
		if c.Bits == 4 {
			packed = packNibbles(nibbles)
		} else {
			packed = nibbles
		}
		subvecs[m] = NVQSubvector{
			Bits:        c.Bits,
			Bias:        float32(bias),
			Scale:       float32(scale),
			A:           warp.A,
			B:           warp.B,
			OriginalLen: sub.Size,
			Bytes:       packed,
		}
	}
	return NVQEncodedVector{Subvectors: subvecs}, nil
}

func minMaxBiasScale(v []float64) (bias, scale float64) {
	minV, maxV := v[0], v[0]
	for _, x := range v[1:] {
		if x < minV {
			minV = x
		}
		if x > maxV {
			maxV = x
		}
	}
	bias = minV
	scale = maxV - minV
	return bias, scale
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func packNibbles(vals []byte) []byte {
	out := make([]byte, (len(vals)+1)/2)
	for i, v := range vals {
		if i%2 == 0 {
			out[i/2] = v & 0x0F
		} else {
			out[i/2] |= (v & 0x0F) << 4
		}
	}
	return out
}

func unpackNibbles(packed []byte, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b := packed[i/2]
		if i%2 == 0 {
			out[i] = b & 0x0F
		} else {
			out[i] = (b >> 4) & 0x0F
		}
	}
	return out
}

// NVQSubvector is one subspace's stored quantized payload.
type NVQSubvector struct {
	Bits        int
	Bias, Scale float32
	A, B        float32
	OriginalLen int
	Bytes       []byte
}

// NVQEncodedVector is one vector's full set of subvector payloads.
type NVQEncodedVector struct {
	Subvectors []NVQSubvector
}

// TrainNVQ computes the global mean and subspace partition over src, then
// (when opts.LearnWarp) fits a shared per-subspace Kumaraswamy warp by
// minimizing reconstruction error on the training sample via xNES.
func TrainNVQ(src RandomAccessVectorValues, opts NVQTrainOptions) (*NVQCompressor, error) {
	if opts.RNG == nil {
		return nil, newErr(InvalidConfiguration, "NVQ.Train", "RNG", "a seeded RNG is required")
	}
	if opts.Bits != 4 && opts.Bits != 8 {
		return nil, newErr(InvalidConfiguration, "NVQ.Train", "Bits", "bit width must be 4 or 8")
	}
	if opts.Limiter != nil {
		if err := opts.Limiter.Wait(context.Background()); err != nil {
			return nil, err
		}
	}
	vm := opts.VM
	if vm == nil {
		vm = DefaultVectorMath
	}
	dim := src.Dim()
	partition, err := Partition(dim, opts.Subspaces)
	if err != nil {
		return nil, err
	}

	sample, err := subsample(src, opts.MaxSample, opts.RNG)
	if err != nil {
		return nil, err
	}
	globalMean := meanVector(sample, dim)

	warps := make([]KumaraswamyWarp, len(partition))
	for m, sub := range partition {
		if !opts.LearnWarp {
			warps[m] = KumaraswamyWarp{A: 1, B: 1}
			continue
		}
		warps[m] = fitSubspaceWarp(sample, sub, globalMean, opts, vm)
	}

	return &NVQCompressor{
		Dim:        dim,
		GlobalMean: globalMean,
		Bits:       opts.Bits,
		Subspaces:  partition,
		Warps:      warps,
		vm:         vm,
	}, nil
}

// fitSubspaceWarp fits (a, b) for one subspace by minimizing, over the
// training sample, the squared reconstruction error of warp-then-quantize
// versus the un-warped subvector, retrying up to opts.WarpRetries times
// when a run lands on (or indistinguishable from) the identity warp with
// a worse-than-baseline loss.
func fitSubspaceWarp(sample [][]float32, sub SubspaceInfo, globalMean []float32, opts NVQTrainOptions, vm VectorMath) KumaraswamyWarp {
	sPrimes := make([][]float64, len(sample))
	for i, v := range sample {
		sp := make([]float64, sub.Size)
		for j := 0; j < sub.Size; j++ {
			sp[j] = float64(v[sub.Offset+j] - globalMean[sub.Offset+j])
		}
		sPrimes[i] = sp
	}

	loss := func(ab []float64) float64 {
		warp := KumaraswamyWarp{A: float32(ab[0]), B: float32(ab[1])}
		return reconstructionLoss(sPrimes, warp, opts.Bits)
	}
	baseline := loss([]float64{1, 1})
	if baseline <= 0 {
		baseline = 1e-9
	}

	best := KumaraswamyWarp{A: 1, B: 1}
	bestLoss := baseline

	retries := opts.WarpRetries
	if retries < 1 {
		retries = 1
	}
	for attempt := 0; attempt < retries; attempt++ {
		opt := XNES(
			func(ab []float64) float64 { return baseline / (loss(ab) + 1e-12) },
			[]float64{1, 1},
			XNESOptions{
				Lo:            []float64{1e-6, 1e-6},
				Hi:            []float64{1e6, 1e6},
				MaxIterations: opts.XNESMaxIters,
			},
			opts.RNG,
		)
		candidate := KumaraswamyWarp{A: float32(opt[0]), B: float32(opt[1])}
		candidateLoss := loss(opt)
		if candidateLoss < bestLoss {
			bestLoss = candidateLoss
			best = candidate
		}
		if bestLoss < baseline*0.999 {
			break
		}
	}
	return best
}

func reconstructionLoss(sPrimes [][]float64, warp KumaraswamyWarp, bits int) float64 {
	levels := float64(int(1)<<uint(bits) - 1)
	var total float64
	for _, sp := range sPrimes {
		bias, scale := minMaxBiasScale(sp)
		for _, v := range sp {
			u := 0.0
			if scale > 0 {
				u = clamp01((v - bias) / scale)
			}
			y := u
			if !warp.isIdentity() {
				y = warp.apply(u)
			}
			level := math.Round(y * levels)
			yHat := level / levels
			uHat := yHat
			if !warp.isIdentity() {
				uHat = warp.invert(yHat)
			}
			recon := uHat*scale + bias
			d := v - recon
			total += d * d
		}
	}
	return total
}

// encodeNVQVectorToBytes flattens one NVQEncodedVector to the wire layout
// used inside a PQ-style code buffer, mirroring the container format's
// per-vector fields without the shared compressor header.
func encodeNVQVectorToBytes(enc NVQEncodedVector) []byte {
	total := 0
	for _, sv := range enc.Subvectors {
		total += nvqSubvectorWireSize(sv.OriginalLen, sv.Bits)
	}
	out := make([]byte, 0, total)
	for _, sv := range enc.Subvectors {
		var buf [24]byte
		putFloat32LE(buf[0:4], float32(sv.Bits))
		putFloat32LE(buf[4:8], sv.Bias)
		putFloat32LE(buf[8:12], sv.Scale)
		putFloat32LE(buf[12:16], sv.A)
		putFloat32LE(buf[16:20], sv.B)
		putFloat32LE(buf[20:24], float32(sv.OriginalLen))
		out = append(out, buf[:]...)
		out = append(out, sv.Bytes...)
	}
	return out
}

// decodeNVQVectorFromBytes parses the wire layout encodeNVQVectorToBytes
// produces back into an NVQEncodedVector. Each subvector's header is
// self-describing (it carries its own bits and originalLen), so this
// needs no external subspace partition to know where one subvector ends
// and the next begins.
func decodeNVQVectorFromBytes(data []byte) (NVQEncodedVector, error) {
	var subvecs []NVQSubvector
	for len(data) > 0 {
		if len(data) < 24 {
			return NVQEncodedVector{}, newErr(CorruptedStream, "NVQ.decode", "header", "truncated subvector header")
		}
		bits := int(getFloat32LE(data[0:4]))
		bias := getFloat32LE(data[4:8])
		scale := getFloat32LE(data[8:12])
		a := getFloat32LE(data[12:16])
		b := getFloat32LE(data[16:20])
		origLen := int(getFloat32LE(data[20:24]))
		data = data[24:]

		packedLen := origLen
		if bits == 4 {
			packedLen = (origLen + 1) / 2
		}
		if len(data) < packedLen {
			return NVQEncodedVector{}, newErr(CorruptedStream, "NVQ.decode", "bytes", "truncated subvector payload")
		}
		bytes := make([]byte, packedLen)
		copy(bytes, data[:packedLen])
		data = data[packedLen:]

		subvecs = append(subvecs, NVQSubvector{
			Bits: bits, Bias: bias, Scale: scale, A: a, B: b,
			OriginalLen: origLen, Bytes: bytes,
		})
	}
	return NVQEncodedVector{Subvectors: subvecs}, nil
}

// dequantizeSubvector reconstructs the centered subvector (relative to
// globalMean) from a stored NVQSubvector.
func dequantizeSubvector(sv NVQSubvector) []float32 {
	levels := (1 << uint(sv.Bits)) - 1
	var nibbles []byte
	if sv.Bits == 4 {
		nibbles = unpackNibbles(sv.Bytes, sv.OriginalLen)
	} else {
		nibbles = sv.Bytes
	}
	warp := KumaraswamyWarp{A: sv.A, B: sv.B}
	out := make([]float32, sv.OriginalLen)
	for i, level := range nibbles {
		y := float64(level) / float64(levels)
		u := y
		if !warp.isIdentity() {
			u = warp.invert(y)
		}
		v := u*float64(sv.Scale) + float64(sv.Bias)
		out[i] = float32(v)
	}
	return out
}
