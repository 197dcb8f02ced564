package tiffcore

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestUnpackBitsOneBitRoundTrip(t *testing.T) {
	// One row of 10 one-bit samples: 1010110011, padded to 2 bytes.
	packed := []byte{0b10101100, 0b11000000}
	unpacked, err := UnpackBits(packed, 1, 1, 10)
	if err != nil {
		t.Fatalf("UnpackBits: %v", err)
	}
	want := []byte{1, 0, 1, 0, 1, 1, 0, 0, 1, 1}
	for i, w := range want {
		if unpacked[i] != w {
			t.Errorf("sample %d = %d, want %d", i, unpacked[i], w)
		}
	}
	repacked, err := PackBitsRow(unpacked, 1, 1, 10)
	if err != nil {
		t.Fatalf("PackBitsRow: %v", err)
	}
	if repacked[0] != packed[0] || repacked[1] != packed[1] {
		t.Errorf("PackBitsRow round trip = %08b %08b, want %08b %08b", repacked[0], repacked[1], packed[0], packed[1])
	}
}

func TestUnpackBitsTwelveBitRoundTrip(t *testing.T) {
	rows, samplesPerRow := uint64(3), uint64(5)
	bitWidth := uint64(12)
	unpacked := make([]byte, rows*samplesPerRow*2)
	for i := 0; i < len(unpacked)/2; i++ {
		binary.LittleEndian.PutUint16(unpacked[i*2:], uint16((i*137)%4096))
	}
	packed, err := PackBitsRow(unpacked, bitWidth, rows, samplesPerRow)
	if err != nil {
		t.Fatalf("PackBitsRow: %v", err)
	}
	back, err := UnpackBits(packed, bitWidth, rows, samplesPerRow)
	if err != nil {
		t.Fatalf("UnpackBits: %v", err)
	}
	for i := uint64(0); i < rows*samplesPerRow; i++ {
		got := binary.LittleEndian.Uint16(back[i*2:])
		want := binary.LittleEndian.Uint16(unpacked[i*2:])
		if got != want {
			t.Errorf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestUnpackBitsRejectsShortBuffer(t *testing.T) {
	if _, err := UnpackBits([]byte{0}, 8, 1, 4); err == nil {
		t.Error("expected error for buffer too short for declared rows/samplesPerRow")
	}
}

func TestScaleSamplesExpandsToFullRange(t *testing.T) {
	// A single 4-bit sample of value 15 (max) should scale to 255 (max 8-bit).
	data := []byte{15}
	scaled := ScaleSamples(data, 4, 8)
	if scaled[0] != 255 {
		t.Errorf("ScaleSamples(15, 4->8) = %d, want 255", scaled[0])
	}
	data0 := []byte{0}
	if got := ScaleSamples(data0, 4, 8)[0]; got != 0 {
		t.Errorf("ScaleSamples(0, 4->8) = %d, want 0", got)
	}
}

func TestInvertSamplesComplementsAgainstMax(t *testing.T) {
	data := []byte{0, 255, 64}
	InvertSamples(data, 8)
	want := []byte{255, 0, 191}
	for i, w := range want {
		if data[i] != w {
			t.Errorf("InvertSamples[%d] = %d, want %d", i, data[i], w)
		}
	}
}

func TestWiden3ByteIntLittleEndian(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03} // LE 24-bit: 0x030201
	out := Widen3ByteInt(data, binary.LittleEndian, false)
	got := binary.LittleEndian.Uint32(out)
	if got != 0x030201 {
		t.Errorf("Widen3ByteInt = %#x, want %#x", got, 0x030201)
	}
}

func TestWiden3ByteIntBigEndian(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03} // BE 24-bit: 0x010203
	out := Widen3ByteInt(data, binary.BigEndian, false)
	got := binary.LittleEndian.Uint32(out)
	if got != 0x010203 {
		t.Errorf("Widen3ByteInt = %#x, want %#x", got, 0x010203)
	}
}

func TestUnpackFloat16MatchesKnownValues(t *testing.T) {
	// binary16 for 1.0 is 0x3C00.
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, 0x3C00)
	out := UnpackFloat16(data, binary.LittleEndian)
	f := math.Float32frombits(binary.LittleEndian.Uint32(out))
	if f != 1.0 {
		t.Errorf("UnpackFloat16(0x3C00) = %v, want 1.0", f)
	}
}

func TestUnpackFloat24Zero(t *testing.T) {
	data := []byte{0, 0, 0}
	out := UnpackFloat24(data, binary.LittleEndian)
	f := math.Float32frombits(binary.LittleEndian.Uint32(out))
	if f != 0 {
		t.Errorf("UnpackFloat24(zero) = %v, want 0", f)
	}
}

func TestUnpackFloat24Normal(t *testing.T) {
	// sign=0, exp=64 (bias 64 -> unbiased 0), mantissa=0 encodes 1.0.
	bits := uint32(64) << 16
	data := []byte{byte(bits), byte(bits >> 8), byte(bits >> 16)}
	out := UnpackFloat24(data, binary.LittleEndian)
	f := math.Float32frombits(binary.LittleEndian.Uint32(out))
	if f != 1.0 {
		t.Errorf("UnpackFloat24(exp=64,mant=0) = %v, want 1.0", f)
	}
}

func TestPredictorHorizontalRoundTrip(t *testing.T) {
	width, height, spp, bps := uint64(4), uint64(2), uint64(1), uint64(1)
	original := []byte{
		10, 20, 15, 40,
		5, 5, 5, 5,
	}
	data := make([]byte, len(original))
	copy(data, original)
	if err := ApplyPredictorForward(data, PredictorHorizontal, width, height, spp, bps); err != nil {
		t.Fatalf("ApplyPredictorForward: %v", err)
	}
	if err := ApplyPredictorReverse(data, PredictorHorizontal, width, height, spp, bps); err != nil {
		t.Fatalf("ApplyPredictorReverse: %v", err)
	}
	for i, want := range original {
		if data[i] != want {
			t.Errorf("byte %d = %d, want %d (predictor round trip)", i, data[i], want)
		}
	}
}

func TestPredictorFloatingPointRoundTrip(t *testing.T) {
	width, height, spp, bps := uint64(3), uint64(1), uint64(1), uint64(4)
	original := make([]byte, width*height*spp*bps)
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(original[i*4:], math.Float32bits(float32(i)*1.5+2))
	}
	data := make([]byte, len(original))
	copy(data, original)
	if err := ApplyPredictorForward(data, PredictorFloatingPoint, width, height, spp, bps); err != nil {
		t.Fatalf("ApplyPredictorForward: %v", err)
	}
	if err := ApplyPredictorReverse(data, PredictorFloatingPoint, width, height, spp, bps); err != nil {
		t.Fatalf("ApplyPredictorReverse: %v", err)
	}
	for i := range data {
		if data[i] != original[i] {
			t.Errorf("byte %d = %d, want %d (floating-point predictor round trip)", i, data[i], original[i])
			break
		}
	}
}

func TestApplyPredictorRejectsUnknownKind(t *testing.T) {
	data := make([]byte, 8)
	if err := ApplyPredictorReverse(data, PredictorKind(99), 2, 2, 1, 1); err == nil {
		t.Error("expected error for unrecognized predictor kind")
	}
}

func TestIsSimpleFastPathRejectsYCbCr(t *testing.T) {
	layout := ImageLayout{BitsPerSample: []uint64{8, 8, 8}, Photometric: PhotoYCbCr}
	params := PackingParams{Layout: layout}
	if isSimpleFastPath(params) {
		t.Error("expected YCbCr layout to bypass the fast path")
	}
}

func TestIsSimpleFastPathAcceptsUniformByteAligned(t *testing.T) {
	layout := ImageLayout{BitsPerSample: []uint64{8, 8, 8}, Photometric: PhotoRGB, Compression: CompNone}
	params := PackingParams{Layout: layout}
	if !isSimpleFastPath(params) {
		t.Error("expected uniform 8-bit RGB layout to take the fast path")
	}
}
