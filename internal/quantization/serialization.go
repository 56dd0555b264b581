package quantization

import (
	"encoding/binary"
	"io"
	"math"
)

// nvqMagic identifies an NVQ compressor stream; version 0 predates the
// magic/version header and is detected by a failed magic match on a
// stream that otherwise parses as a bare mean-length u32.
const nvqMagic uint32 = 0x75EC4012

// nvqVersion is the current NVQ stream version this package writes.
const nvqVersion uint32 = 1

func putFloat32LE(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func getFloat32LE(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	if err != nil {
		return wrapErr(IOFailure, "codec", "write u32", err)
	}
	return nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, wrapErr(IOFailure, "codec", "read u32", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeFloat32(w io.Writer, v float32) error {
	return writeUint32(w, math.Float32bits(v))
}

func readFloat32(r io.Reader) (float32, error) {
	bits, err := readUint32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func writeFloat32Slice(w io.Writer, v []float32) error {
	for _, x := range v {
		if err := writeFloat32(w, x); err != nil {
			return err
		}
	}
	return nil
}

func readFloat32Slice(r io.Reader, n int) ([]float32, error) {
	if n < 0 {
		return nil, newErr(CorruptedStream, "codec", "length", "negative float32 slice length")
	}
	out := make([]float32, n)
	for i := range out {
		v, err := readFloat32(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeUint32(w, uint32(len(b))); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return wrapErr(IOFailure, "codec", "write bytes", err)
	}
	return nil
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n > 1<<31 {
		return nil, newErr(CorruptedStream, "codec", "length", "implausible byte slice length")
	}
	out := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, wrapErr(IOFailure, "codec", "read bytes", err)
		}
	}
	return out, nil
}

func writeUint64Slice(w io.Writer, v []uint64) error {
	for _, x := range v {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], x)
		if _, err := w.Write(buf[:]); err != nil {
			return wrapErr(IOFailure, "codec", "write u64", err)
		}
	}
	return nil
}

func readUint64Slice(r io.Reader, n int) ([]uint64, error) {
	if n < 0 {
		return nil, newErr(CorruptedStream, "codec", "length", "negative u64 slice length")
	}
	out := make([]uint64, n)
	for i := range out {
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, wrapErr(IOFailure, "codec", "read u64", err)
		}
		out[i] = binary.LittleEndian.Uint64(buf[:])
	}
	return out, nil
}

// WritePQCompressor serializes c per the PQ compressor format: centroid
// length + optional global centroid, subspace count + sizes, K, then
// each subspace's flat codebook.
func WritePQCompressor(w io.Writer, c *PQCompressor) error {
	if c.GlobalCentroid == nil {
		if err := writeUint32(w, 0); err != nil {
			return err
		}
	} else {
		if err := writeUint32(w, uint32(len(c.GlobalCentroid))); err != nil {
			return err
		}
		if err := writeFloat32Slice(w, c.GlobalCentroid); err != nil {
			return err
		}
	}
	if err := writeUint32(w, uint32(len(c.Subspaces))); err != nil {
		return err
	}
	for _, s := range c.Subspaces {
		if err := writeUint32(w, uint32(s.Size)); err != nil {
			return err
		}
	}
	if err := writeUint32(w, uint32(c.K)); err != nil {
		return err
	}
	for _, cb := range c.Codebooks {
		if err := writeFloat32Slice(w, cb); err != nil {
			return err
		}
	}
	return nil
}

// ReadPQCompressor deserializes a PQ compressor written by
// WritePQCompressor.
func ReadPQCompressor(r io.Reader, vm VectorMath) (*PQCompressor, error) {
	centroidLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	var globalCentroid []float32
	if centroidLen > 0 {
		globalCentroid, err = readFloat32Slice(r, int(centroidLen))
		if err != nil {
			return nil, err
		}
	}
	m, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	subspaces := make([]SubspaceInfo, m)
	offset := 0
	for i := range subspaces {
		size, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		subspaces[i] = SubspaceInfo{Size: int(size), Offset: offset}
		offset += int(size)
	}
	k, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	codebooks := make([][]float32, m)
	for i, s := range subspaces {
		cb, err := readFloat32Slice(r, int(k)*s.Size)
		if err != nil {
			return nil, err
		}
		codebooks[i] = cb
	}
	if vm == nil {
		vm = DefaultVectorMath
	}
	return &PQCompressor{
		Dim:            offset,
		Subspaces:      subspaces,
		K:              int(k),
		Codebooks:      codebooks,
		GlobalCentroid: globalCentroid,
		vm:             vm,
	}, nil
}

// WritePQVectors serializes p per the PQ container format: compressor,
// count, M, the flat code array, then the build ID as a trailing
// length-prefixed string (empty when p was never built via EncodeAll).
func WritePQVectors(w io.Writer, p *PQVectors) error {
	if err := WritePQCompressor(w, p.Compressor); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(p.Size())); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(p.Compressor.CodeSize())); err != nil {
		return err
	}
	if _, err := w.Write(p.Codes); err != nil {
		return wrapErr(IOFailure, "codec", "write PQ codes", err)
	}
	return writeBytes(w, []byte(p.buildID))
}

// ReadPQVectors deserializes a PQVectors container written by
// WritePQVectors.
func ReadPQVectors(r io.Reader, vm VectorMath) (*PQVectors, error) {
	compressor, err := ReadPQCompressor(r, vm)
	if err != nil {
		return nil, err
	}
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	m, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if int(m) != compressor.CodeSize() {
		return nil, newErr(CorruptedStream, "codec", "M", "code size mismatch between header and compressor")
	}
	codes := make([]byte, int(count)*int(m))
	if len(codes) > 0 {
		if _, err := io.ReadFull(r, codes); err != nil {
			return nil, wrapErr(IOFailure, "codec", "read PQ codes", err)
		}
	}
	buildID, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	return &PQVectors{Compressor: compressor, Codes: codes, count: int(count), buildID: string(buildID)}, nil
}

// WriteBQCompressor serializes c per the BQ compressor format: D, then
// the legacy zero-vector padding.
func WriteBQCompressor(w io.Writer, c *BQCompressor) error {
	if err := writeUint32(w, uint32(c.Dim)); err != nil {
		return err
	}
	return writeFloat32Slice(w, c.legacyZeros)
}

// ReadBQCompressor deserializes a BQ compressor written by
// WriteBQCompressor.
func ReadBQCompressor(r io.Reader) (*BQCompressor, error) {
	dim, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	zeros, err := readFloat32Slice(r, int(dim))
	if err != nil {
		return nil, err
	}
	return &BQCompressor{Dim: int(dim), legacyZeros: zeros}, nil
}

// WriteBQVectors serializes b per the BQ container format: compressor,
// count, words-per-vector, the flat u64 word array, then the build ID
// as a trailing length-prefixed string.
func WriteBQVectors(w io.Writer, b *BQVectors) error {
	if err := WriteBQCompressor(w, b.Compressor); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(b.Size())); err != nil {
		return err
	}
	wpv := b.Compressor.WordsPerVector()
	if err := writeUint32(w, uint32(wpv)); err != nil {
		return err
	}
	for _, words := range b.words {
		if err := writeUint64Slice(w, words); err != nil {
			return err
		}
	}
	return writeBytes(w, []byte(b.buildID))
}

// ReadBQVectors deserializes a BQVectors container written by
// WriteBQVectors.
func ReadBQVectors(r io.Reader, vm VectorMath) (*BQVectors, error) {
	compressor, err := ReadBQCompressor(r)
	if err != nil {
		return nil, err
	}
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	wpv, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if int(wpv) != compressor.WordsPerVector() {
		return nil, newErr(CorruptedStream, "codec", "wordsPerVector", "word count mismatch between header and compressor")
	}
	words := make([][]uint64, count)
	for i := range words {
		w, err := readUint64Slice(r, int(wpv))
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	buildID, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	if vm == nil {
		vm = DefaultVectorMath
	}
	return &BQVectors{Compressor: compressor, words: words, vm: vm, buildID: string(buildID)}, nil
}

// WriteLVQCompressor serializes c per the LVQ compressor format: D, then
// globalMean.
func WriteLVQCompressor(w io.Writer, c *LVQCompressor) error {
	if err := writeUint32(w, uint32(c.Dim)); err != nil {
		return err
	}
	return writeFloat32Slice(w, c.GlobalMean)
}

// ReadLVQCompressor deserializes an LVQ compressor written by
// WriteLVQCompressor.
func ReadLVQCompressor(r io.Reader, turboPack bool, vm VectorMath) (*LVQCompressor, error) {
	dim, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	mean, err := readFloat32Slice(r, int(dim))
	if err != nil {
		return nil, err
	}
	if vm == nil {
		vm = DefaultVectorMath
	}
	return &LVQCompressor{Dim: int(dim), GlobalMean: mean, TurboPack: turboPack, vm: vm}, nil
}

// WriteNVQCompressor serializes c per the NVQ compressor format: MAGIC,
// version, mean length, mean, bits, M, sub-sizes, then each subspace's
// warp as an (a, b) f32 pair.
func WriteNVQCompressor(w io.Writer, c *NVQCompressor) error {
	if err := writeUint32(w, nvqMagic); err != nil {
		return err
	}
	if err := writeUint32(w, nvqVersion); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(c.GlobalMean))); err != nil {
		return err
	}
	if err := writeFloat32Slice(w, c.GlobalMean); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(c.Bits)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(c.Subspaces))); err != nil {
		return err
	}
	for _, s := range c.Subspaces {
		if err := writeUint32(w, uint32(s.Size)); err != nil {
			return err
		}
	}
	for _, warp := range c.Warps {
		if err := writeFloat32(w, warp.A); err != nil {
			return err
		}
		if err := writeFloat32(w, warp.B); err != nil {
			return err
		}
	}
	return nil
}

// ReadNVQCompressor deserializes an NVQ compressor, accepting both the
// current magic/version-prefixed format and the legacy version-0 stream
// that began directly with the mean length.
func ReadNVQCompressor(r io.Reader, vm VectorMath) (*NVQCompressor, error) {
	first, err := readUint32(r)
	if err != nil {
		return nil, err
	}

	var meanLen uint32
	if first == nvqMagic {
		version, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		if version != nvqVersion {
			return nil, newErr(CorruptedStream, "codec", "version", "unrecognized NVQ stream version")
		}
		meanLen, err = readUint32(r)
		if err != nil {
			return nil, err
		}
	} else {
		// Legacy version-0 stream: first is the mean length directly.
		meanLen = first
	}

	mean, err := readFloat32Slice(r, int(meanLen))
	if err != nil {
		return nil, err
	}
	bits, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	m, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	subspaces := make([]SubspaceInfo, m)
	offset := 0
	for i := range subspaces {
		size, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		subspaces[i] = SubspaceInfo{Size: int(size), Offset: offset}
		offset += int(size)
	}
	warps := make([]KumaraswamyWarp, m)
	for i := range warps {
		a, err := readFloat32(r)
		if err != nil {
			return nil, err
		}
		b, err := readFloat32(r)
		if err != nil {
			return nil, err
		}
		warps[i] = KumaraswamyWarp{A: a, B: b}
	}
	if vm == nil {
		vm = DefaultVectorMath
	}
	return &NVQCompressor{
		Dim:        offset,
		GlobalMean: mean,
		Bits:       int(bits),
		Subspaces:  subspaces,
		Warps:      warps,
		vm:         vm,
	}, nil
}

// WriteNVQVectors serializes n per the NVQ container format: compressor,
// count, per vector M and each subvector's fields, then the build ID as
// a trailing length-prefixed string.
func WriteNVQVectors(w io.Writer, n *NVQVectors) error {
	if err := WriteNVQCompressor(w, n.Compressor); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(n.Size())); err != nil {
		return err
	}
	for _, vec := range n.entries {
		if err := writeUint32(w, uint32(len(vec.Subvectors))); err != nil {
			return err
		}
		for _, sv := range vec.Subvectors {
			if err := writeUint32(w, uint32(sv.Bits)); err != nil {
				return err
			}
			if err := writeFloat32(w, sv.Bias); err != nil {
				return err
			}
			if err := writeFloat32(w, sv.Scale); err != nil {
				return err
			}
			if err := writeFloat32(w, sv.A); err != nil {
				return err
			}
			if err := writeFloat32(w, sv.B); err != nil {
				return err
			}
			if err := writeUint32(w, uint32(sv.OriginalLen)); err != nil {
				return err
			}
			if err := writeBytes(w, sv.Bytes); err != nil {
				return err
			}
		}
	}
	return writeBytes(w, []byte(n.buildID))
}

// ReadNVQVectors deserializes an NVQVectors container written by
// WriteNVQVectors.
func ReadNVQVectors(r io.Reader, vm VectorMath) (*NVQVectors, error) {
	compressor, err := ReadNVQCompressor(r, vm)
	if err != nil {
		return nil, err
	}
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	entries := make([]NVQEncodedVector, count)
	for i := range entries {
		m, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		subvecs := make([]NVQSubvector, m)
		for j := range subvecs {
			bits, err := readUint32(r)
			if err != nil {
				return nil, err
			}
			bias, err := readFloat32(r)
			if err != nil {
				return nil, err
			}
			scale, err := readFloat32(r)
			if err != nil {
				return nil, err
			}
			a, err := readFloat32(r)
			if err != nil {
				return nil, err
			}
			b, err := readFloat32(r)
			if err != nil {
				return nil, err
			}
			origLen, err := readUint32(r)
			if err != nil {
				return nil, err
			}
			bytes, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			subvecs[j] = NVQSubvector{
				Bits: int(bits), Bias: bias, Scale: scale,
				A: a, B: b, OriginalLen: int(origLen), Bytes: bytes,
			}
		}
		entries[i] = NVQEncodedVector{Subvectors: subvecs}
	}
	buildID, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	return &NVQVectors{Compressor: compressor, entries: entries, buildID: string(buildID)}, nil
}
