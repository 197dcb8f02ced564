package tiffcore

import "encoding/binary"

// ImageLayout is derived once from an IFD and is immutable for the
// lifetime of the TileMap built from it (§3 "ImageLayout").
type ImageLayout struct {
	DimX, DimY     uint64
	Tiled          bool
	TileW, TileH   uint64 // for stripped layouts, TileW=DimX, TileH=RowsPerStrip
	SamplesPerPixel uint64
	BitsPerSample  []uint64 // one entry per channel
	SampleFormat   []SampleFormat
	Planar         PlanarConfig
	Photometric    Photometric
	Compression    Compression
	Predictor      PredictorKind
	FillOrder      uint64
	BigTIFF        bool
	Order          binary.ByteOrder
}

// DeriveLayout computes an ImageLayout from a parsed IFD, per §3 and §4.4.
func DeriveLayout(t *IFDTable, order binary.ByteOrder, bigTiff bool) (ImageLayout, error) {
	var l ImageLayout
	l.Order = order
	l.BigTIFF = bigTiff
	if err := t.Validate(order); err != nil {
		return l, err
	}
	l.DimX = t.FirstUnsigned(ImageWidth, order, 0)
	l.DimY = t.FirstUnsigned(ImageLength, order, 0)
	l.SamplesPerPixel = t.FirstUnsigned(SamplesPerPixel, order, 1)
	if bps := t.Find(BitsPerSample); bps != nil {
		l.BitsPerSample = make([]uint64, bps.Count)
		for i := range l.BitsPerSample {
			l.BitsPerSample[i] = bps.AnyUnsigned(uint64(i), order)
		}
	} else {
		l.BitsPerSample = []uint64{1}
	}
	if l.SamplesPerPixel > uint64(len(l.BitsPerSample)) {
		return l, newErr(KindMalformedIFD, "SamplesPerPixel %d exceeds BitsPerSample length %d", l.SamplesPerPixel, len(l.BitsPerSample))
	}
	if sf := t.Find(SampleFormat); sf != nil {
		l.SampleFormat = make([]SampleFormat, sf.Count)
		for i := range l.SampleFormat {
			l.SampleFormat[i] = SampleFormat(sf.AnyUnsigned(uint64(i), order))
		}
	} else {
		l.SampleFormat = make([]SampleFormat, l.SamplesPerPixel)
		for i := range l.SampleFormat {
			l.SampleFormat[i] = SampleUint
		}
	}
	l.Planar = PlanarConfig(t.FirstUnsigned(PlanarConfiguration, order, uint64(PlanarChunky)))
	l.Photometric = Photometric(t.FirstUnsigned(PhotometricInterpretation, order, uint64(PhotoBlackIsZero)))
	l.Compression = Compression(t.FirstUnsigned(CompressionTag, order, uint64(CompNone)))
	l.Predictor = PredictorKind(t.FirstUnsigned(Predictor, order, uint64(PredictorNone)))
	l.FillOrder = t.FirstUnsigned(FillOrder, order, 1)
	if t.Find(TileWidth) != nil {
		l.Tiled = true
		l.TileW = t.FirstUnsigned(TileWidth, order, 0)
		l.TileH = t.FirstUnsigned(TileLength, order, 0)
	} else {
		l.Tiled = false
		l.TileW = l.DimX
		rows := t.FirstUnsigned(RowsPerStrip, order, l.DimY)
		if rows == 0 || rows > l.DimY {
			rows = l.DimY
		}
		l.TileH = rows
	}
	if l.Predictor != PredictorNone {
		switch l.Compression {
		case CompLZW, CompDeflate:
		default:
			return l, newErr(KindMalformedIFD, "predictor %d used with unsupported compression %d", l.Predictor, l.Compression)
		}
	}
	return l, nil
}

// TilesAcrossX returns the number of tile columns, ⌈dimX/tileW⌉.
func (l ImageLayout) TilesAcrossX() uint64 { return ceilDiv(l.DimX, l.TileW) }

// TilesAcrossY returns the number of tile rows, ⌈dimY/tileH⌉.
func (l ImageLayout) TilesAcrossY() uint64 { return ceilDiv(l.DimY, l.TileH) }

// PlaneCount returns the number of planes: SamplesPerPixel for planar
// configuration, 1 for chunky.
func (l ImageLayout) PlaneCount() uint64 {
	if l.Planar == PlanarPlane {
		return l.SamplesPerPixel
	}
	return 1
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
