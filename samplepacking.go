package tiffcore

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// PackingParams carries everything SamplePacking needs beyond the raw
// bytes, derived from ImageLayout plus the handful of tags (YCbCr
// subsampling/coefficients/reference black-white) that only matter to the
// packing pipeline (§4.6).
type PackingParams struct {
	Layout ImageLayout

	YCbCrSub     [2]uint64    // (hSub, vSub), default (2,2)
	RefBlackWhite [6]uint32    // default (0,255,128,255,128,255)
	YCbCrCoeffs  [3]float64   // default (0.299, 0.587, 0.114)

	Invert bool // apply WhiteIsZero/CMYK/TransparencyMask brightness inversion
}

// DefaultPackingParams fills in YCbCr/inversion defaults from a layout,
// per §4.6's stated tag defaults.
func DefaultPackingParams(layout ImageLayout) PackingParams {
	return PackingParams{
		Layout:        layout,
		YCbCrSub:      [2]uint64{2, 2},
		RefBlackWhite: [6]uint32{0, 255, 128, 255, 128, 255},
		YCbCrCoeffs:   [3]float64{0.299, 0.587, 0.114},
		Invert:        layout.Photometric.NeedsInversion(),
	}
}

// unpackedSampleSize returns the byte width a single sample of bitWidth bits
// expands to: whole bytes are a no-op; anything else is rounded up to the
// next supported width per §4.6 "Bit unpack and inversion".
func unpackedSampleSize(bitWidth uint64) uint64 {
	switch {
	case bitWidth <= 8:
		return 1
	case bitWidth <= 16:
		return 2
	case bitWidth <= 24:
		return 3
	case bitWidth <= 32:
		return 4
	}
	return 0
}

// isSimpleFastPath reports whether the §4.6 "Separate unpacked samples"
// fast path applies: uniform whole-byte bits-per-sample, a non-JPEG-family
// codec, and no YCbCr conversion.
func isSimpleFastPath(p PackingParams) bool {
	l := p.Layout
	if l.Compression.IsJPEGFamily() {
		return false
	}
	if l.Photometric == PhotoYCbCr {
		return false
	}
	if len(l.BitsPerSample) == 0 {
		return false
	}
	first := l.BitsPerSample[0]
	if first%8 != 0 || first == 0 || first > 32 {
		return false
	}
	for _, b := range l.BitsPerSample {
		if b != first {
			return false
		}
	}
	switch first / 8 {
	case 1, 2, 3, 4, 8:
		return true
	}
	return false
}

// UnpackBits expands a row-packed bitstream of samplesPerRow values, each
// bitWidth bits wide (row-major, MSB-first, each row padded to a byte), to
// one-sample-per-unpackedSampleSize(bitWidth)-bytes, little-endian within
// each sample, per §4.6 "Bit unpack and inversion". rows and samplesPerRow
// describe the packed layout (e.g. dimY and dimX·samplesPerPixel for
// chunky).
func UnpackBits(packed []byte, bitWidth, rows, samplesPerRow uint64) ([]byte, error) {
	if bitWidth == 0 || bitWidth > 32 {
		return nil, newErr(KindUnsupportedFormat, "unsupported bit width %d", bitWidth)
	}
	outWidth := unpackedSampleSize(bitWidth)
	rowBits := bitWidth * samplesPerRow
	rowBytes := (rowBits + 7) / 8
	if uint64(len(packed)) < rowBytes*rows {
		return nil, newErr(KindCorruptedData, "packed buffer too short: have %d bytes, need %d", len(packed), rowBytes*rows)
	}
	out := make([]byte, rows*samplesPerRow*outWidth)
	outPos := uint64(0)
	for r := uint64(0); r < rows; r++ {
		rowStart := r * rowBytes
		bitPos := uint64(0)
		for s := uint64(0); s < samplesPerRow; s++ {
			v := readBitsMSB(packed[rowStart:rowStart+rowBytes], bitPos, bitWidth)
			bitPos += bitWidth
			putUnpackedSample(out[outPos:outPos+outWidth], v, outWidth)
			outPos += outWidth
		}
	}
	return out, nil
}

// PackBitsRow is the writer-side inverse of UnpackBits: given one sample
// per unpackedSampleSize(bitWidth) bytes, repacks to a row-major,
// MSB-first bitstream with each row zero-padded to a whole byte.
func PackBitsRow(unpacked []byte, bitWidth, rows, samplesPerRow uint64) ([]byte, error) {
	if bitWidth == 0 || bitWidth > 32 {
		return nil, newErr(KindUnsupportedFormat, "unsupported bit width %d", bitWidth)
	}
	inWidth := unpackedSampleSize(bitWidth)
	rowBits := bitWidth * samplesPerRow
	rowBytes := (rowBits + 7) / 8
	out := make([]byte, rowBytes*rows)
	inPos := uint64(0)
	mask := uint32(1)<<bitWidth - 1
	for r := uint64(0); r < rows; r++ {
		rowStart := r * rowBytes
		bitPos := uint64(0)
		for s := uint64(0); s < samplesPerRow; s++ {
			v := readUnpackedSample(unpacked[inPos:inPos+inWidth], inWidth) & mask
			writeBitsMSB(out[rowStart:rowStart+rowBytes], bitPos, bitWidth, v)
			bitPos += bitWidth
			inPos += inWidth
		}
	}
	return out, nil
}

func readBitsMSB(row []byte, bitPos, width uint64) uint32 {
	var v uint32
	for i := uint64(0); i < width; i++ {
		bytePos := (bitPos + i) / 8
		bitInByte := 7 - (bitPos+i)%8
		bit := (row[bytePos] >> bitInByte) & 1
		v = (v << 1) | uint32(bit)
	}
	return v
}

func writeBitsMSB(row []byte, bitPos, width uint64, v uint32) {
	for i := uint64(0); i < width; i++ {
		bit := (v >> (width - 1 - i)) & 1
		bytePos := (bitPos + i) / 8
		bitInByte := 7 - (bitPos+i)%8
		if bit != 0 {
			row[bytePos] |= 1 << bitInByte
		} else {
			row[bytePos] &^= 1 << bitInByte
		}
	}
}

func putUnpackedSample(dst []byte, v uint32, width uint64) {
	switch width {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case 3:
		dst[0] = byte(v)
		dst[1] = byte(v >> 8)
		dst[2] = byte(v >> 16)
	case 4:
		binary.LittleEndian.PutUint32(dst, v)
	}
}

func readUnpackedSample(src []byte, width uint64) uint32 {
	switch width {
	case 1:
		return uint32(src[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(src))
	case 3:
		return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16
	case 4:
		return binary.LittleEndian.Uint32(src)
	}
	return 0
}

// ScaleSamples multiplies each fromBits-wide sample (stored in an
// unpackedSampleSize(fromBits)-byte slot) by (2^toBits−1)/(2^fromBits−1) to
// fill the range of a toBits-wide output slot, per §4.6's optional scaling.
// Indexed (Palette) and TransparencyMask photometric suppress scaling —
// callers check that before calling.
func ScaleSamples(data []byte, fromBits, toBits uint64) []byte {
	fromWidth := unpackedSampleSize(fromBits)
	toWidth := unpackedSampleSize(toBits)
	n := uint64(len(data)) / fromWidth
	out := make([]byte, n*toWidth)
	fromMax := float64(uint64(1)<<fromBits - 1)
	toMax := float64(uint64(1)<<toBits - 1)
	for i := uint64(0); i < n; i++ {
		v := readUnpackedSample(data[i*fromWidth:i*fromWidth+fromWidth], fromWidth)
		scaled := uint32(math.Round(float64(v) / fromMax * toMax))
		putUnpackedSample(out[i*toWidth:i*toWidth+toWidth], scaled, toWidth)
	}
	return out
}

// InvertSamples applies the WhiteIsZero/CMYK/TransparencyMask brightness
// correction: new = maxValue − v, where maxValue = 2^bits − 1 (§4.6).
func InvertSamples(data []byte, bits uint64) {
	width := unpackedSampleSize(bits)
	maxVal := uint32(uint64(1)<<bits - 1)
	n := uint64(len(data)) / width
	for i := uint64(0); i < n; i++ {
		slot := data[i*width : i*width+width]
		v := readUnpackedSample(slot, width)
		putUnpackedSample(slot, maxVal-v, width)
	}
}

// Widen3ByteInt reads packed 24-bit unsigned integers (3 bytes each) and
// widens them to 32-bit, optionally left-shifting into the high bits
// (§4.6 "3-byte integer").
func Widen3ByteInt(data []byte, order binary.ByteOrder, shiftToHighBits bool) []byte {
	n := len(data) / 3
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		b := data[i*3 : i*3+3]
		var v uint32
		if order == binary.BigEndian {
			v = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
		} else {
			v = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
		}
		if shiftToHighBits {
			v <<= 8
		}
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// UnpackFloat16 widens packed IEEE 754 binary16 values to float32 bit
// patterns (stored little-endian), via github.com/x448/float16, which
// implements exactly the sign/exponent/mantissa widening §4.6 specifies
// (including subnormal renormalization and NaN/Inf preservation).
func UnpackFloat16(data []byte, order binary.ByteOrder) []byte {
	n := len(data) / 2
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		var bits uint16
		if order == binary.BigEndian {
			bits = binary.BigEndian.Uint16(data[i*2:])
		} else {
			bits = binary.LittleEndian.Uint16(data[i*2:])
		}
		f32 := float16.Frombits(bits).Float32()
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f32))
	}
	return out
}

// UnpackFloat24 widens packed 24-bit floats (sign(1)·exponent(7)·
// mantissa(16), bias 64) to float32 bit patterns, per §4.6 "24-bit
// float". No published ecosystem library models this unusual-precision
// format (it is specific to certain scientific TIFF dialects), so this is
// a direct, from-scratch bit manipulation justified as stdlib-only in
// DESIGN.md.
func UnpackFloat24(data []byte, order binary.ByteOrder) []byte {
	n := len(data) / 3
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		b := data[i*3 : i*3+3]
		var bits uint32
		if order == binary.BigEndian {
			bits = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
		} else {
			bits = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
		}
		sign := (bits >> 23) & 1
		exp := (bits >> 16) & 0x7F
		mant := bits & 0xFFFF

		var f32 uint32
		switch {
		case exp == 0x7F:
			// Inf/NaN.
			f32 = sign<<31 | 0xFF<<23 | (mant << 7)
		case exp == 0 && mant == 0:
			f32 = sign << 31
		case exp == 0:
			// Subnormal: renormalize by shifting the mantissa left until
			// the implicit leading bit appears, decrementing exponent.
			e := int32(1 - 64 + 127)
			for mant&0x10000 == 0 {
				mant <<= 1
				e--
			}
			mant &^= 0x10000
			f32 = sign<<31 | uint32(e)<<23 | (mant << 7)
		default:
			e := int32(exp) - 64 + 127
			f32 = sign<<31 | uint32(e)<<23 | (mant << 7)
		}
		binary.LittleEndian.PutUint32(out[i*4:], f32)
	}
	return out
}

// ApplyPredictorReverse reverses tag-317 prediction on read: horizontal
// difference (value 2) accumulates each sample with its row-predecessor
// per channel; floating-point (value 3) first de-shuffles bytes from
// planar-per-byte form before the same horizontal accumulation (§4.6).
func ApplyPredictorReverse(data []byte, kind PredictorKind, width, height, samplesPerPixel, bytesPerSample uint64) error {
	switch kind {
	case PredictorNone:
		return nil
	case PredictorHorizontal:
		return unpredictHorizontal(data, width, height, samplesPerPixel, bytesPerSample)
	case PredictorFloatingPoint:
		if err := deshuffleFloatBytes(data, width, height, samplesPerPixel, bytesPerSample); err != nil {
			return err
		}
		return unpredictHorizontal(data, width, height, samplesPerPixel, 1)
	}
	return newErr(KindMalformedIFD, "unrecognized predictor %d", kind)
}

// ApplyPredictorForward applies tag-317 prediction on write, the inverse
// of ApplyPredictorReverse.
func ApplyPredictorForward(data []byte, kind PredictorKind, width, height, samplesPerPixel, bytesPerSample uint64) error {
	switch kind {
	case PredictorNone:
		return nil
	case PredictorHorizontal:
		return predictHorizontal(data, width, height, samplesPerPixel, bytesPerSample)
	case PredictorFloatingPoint:
		if err := predictHorizontal(data, width, height, samplesPerPixel, 1); err != nil {
			return err
		}
		return shuffleFloatBytes(data, width, height, samplesPerPixel, bytesPerSample)
	}
	return newErr(KindMalformedIFD, "unrecognized predictor %d", kind)
}

func unpredictHorizontal(data []byte, width, height, spp, bps uint64) error {
	rowStride := width * spp * bps
	if uint64(len(data)) < rowStride*height {
		return newErr(KindCorruptedData, "predictor buffer too short")
	}
	for y := uint64(0); y < height; y++ {
		row := data[y*rowStride : (y+1)*rowStride]
		for x := uint64(1); x < width; x++ {
			for c := uint64(0); c < spp; c++ {
				for b := uint64(0); b < bps; b++ {
					idx := (x*spp+c)*bps + b
					prev := (x-1)*spp + c
					prevIdx := prev*bps + b
					row[idx] += row[prevIdx]
				}
			}
		}
	}
	return nil
}

// expectedPackedSize returns the byte count a tile's on-disk (still bit-
// packed, pre-unpack) sample data must at least reach for the given actual
// (clipped) dimensions, per §4.4's row-padded-to-a-byte packing. Used to
// catch a truncated tile before it reaches UnpackBits/the predictor, whose
// own bounds checks only fire for non-byte-aligned or predicted data.
func expectedPackedSize(width, height, spp, bits uint64) uint64 {
	rowBits := bits * width * spp
	rowBytes := (rowBits + 7) / 8
	return rowBytes * height
}

func predictHorizontal(data []byte, width, height, spp, bps uint64) error {
	rowStride := width * spp * bps
	if uint64(len(data)) < rowStride*height {
		return newErr(KindCorruptedData, "predictor buffer too short: have %d bytes, need %d", len(data), rowStride*height)
	}
	for y := uint64(0); y < height; y++ {
		row := data[y*rowStride : (y+1)*rowStride]
		for x := width; x > 1; x-- {
			xi := x - 1
			for c := uint64(0); c < spp; c++ {
				for b := uint64(0); b < bps; b++ {
					idx := (xi*spp+c)*bps + b
					prevIdx := ((xi-1)*spp + c) * bps + b
					row[idx] -= row[prevIdx]
				}
			}
		}
	}
	return nil
}

// deshuffleFloatBytes undoes the floating-point predictor's byte
// transposition: bytes arrive grouped by byte-significance across the row
// (all byte-0's, then all byte-1's, ...) and must be regrouped back to
// per-sample contiguous bytes before the horizontal un-difference.
func deshuffleFloatBytes(data []byte, width, height, spp, bps uint64) error {
	rowStride := width * spp * bps
	if uint64(len(data)) < rowStride*height {
		return newErr(KindCorruptedData, "float predictor buffer too short: have %d bytes, need %d", len(data), rowStride*height)
	}
	tmp := make([]byte, rowStride)
	samplesPerRow := width * spp
	for y := uint64(0); y < height; y++ {
		row := data[y*rowStride : (y+1)*rowStride]
		for s := uint64(0); s < samplesPerRow; s++ {
			for b := uint64(0); b < bps; b++ {
				tmp[s*bps+b] = row[b*samplesPerRow+s]
			}
		}
		copy(row, tmp)
	}
	return nil
}

func shuffleFloatBytes(data []byte, width, height, spp, bps uint64) error {
	rowStride := width * spp * bps
	if uint64(len(data)) < rowStride*height {
		return newErr(KindCorruptedData, "float predictor buffer too short: have %d bytes, need %d", len(data), rowStride*height)
	}
	tmp := make([]byte, rowStride)
	samplesPerRow := width * spp
	for y := uint64(0); y < height; y++ {
		row := data[y*rowStride : (y+1)*rowStride]
		for s := uint64(0); s < samplesPerRow; s++ {
			for b := uint64(0); b < bps; b++ {
				tmp[b*samplesPerRow+s] = row[s*bps+b]
			}
		}
		copy(row, tmp)
	}
	return nil
}

func clip8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// YCbCrToRGB converts a chunky YCbCr block (hSub·vSub Y samples followed
// by one Cb and one Cr, per §4.6) to planar-separated RGB, skipping any
// padded pixels outside (dimX, dimY). src holds the blocks in row-major
// order over the ceil(dimX/hSub)×ceil(dimY/vSub) macroblock grid.
func YCbCrToRGB(src []byte, params PackingParams, dimX, dimY uint64) []byte {
	hSub, vSub := params.YCbCrSub[0], params.YCbCrSub[1]
	ref := params.RefBlackWhite
	Lr, Lg, Lb := params.YCbCrCoeffs[0], params.YCbCrCoeffs[1], params.YCbCrCoeffs[2]

	blockSize := hSub*vSub + 2
	blocksX := ceilDiv(dimX, hSub)
	blocksY := ceilDiv(dimY, vSub)

	out := make([]byte, dimX*dimY*3) // planar: R plane, G plane, B plane
	planeSize := dimX * dimY

	pos := uint64(0)
	for by := uint64(0); by < blocksY; by++ {
		for bx := uint64(0); bx < blocksX; bx++ {
			block := src[pos : pos+blockSize]
			pos += blockSize
			cb := float64(block[hSub*vSub]) - float64(ref[2])
			cr := float64(block[hSub*vSub+1]) - float64(ref[4])
			for v := uint64(0); v < vSub; v++ {
				y := by*vSub + v
				if y >= dimY {
					continue
				}
				for h := uint64(0); h < hSub; h++ {
					x := bx*hSub + h
					if x >= dimX {
						continue
					}
					yv := float64(block[v*hSub+h]) - float64(ref[0])
					r := clip8(cr*(2-2*Lr) + yv)
					b := clip8(cb*(2-2*Lb) + yv)
					g := clip8((yv - Lb*float64(b) - Lr*float64(r)) / Lg)
					idx := y*dimX + x
					out[idx] = r
					out[planeSize+idx] = g
					out[2*planeSize+idx] = b
				}
			}
		}
	}
	return out
}
