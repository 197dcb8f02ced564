package tiffcore

import (
	"encoding/binary"

	lru "github.com/hashicorp/golang-lru/v2"
)

// OpenMode selects how strictly Open validates the header (§4.7).
type OpenMode int

const (
	// StrictOpen requires a valid classic or BigTIFF header; any mismatch
	// is a fatal error.
	StrictOpen OpenMode = iota
	// AllowNonTiff records a header failure on the Reader instead of
	// returning it, leaving the Reader otherwise unusable for IFD
	// operations but queryable for the retained failure.
	AllowNonTiff
	// NoChecksOpen skips header verification entirely, trusting the
	// stream's current byte order and assuming a classic (non-BigTIFF)
	// file whose first IFD is at offset 8.
	NoChecksOpen
)

// tileCacheKey identifies one cached decoded tile.
type tileCacheKey struct {
	ifdIndex int
	plane    uint64
	x, y     uint64
}

// Reader implements §4.7: IFD enumeration, tile decode orchestration with
// an optional LRU cache, and region assembly. Grounded on tiff66.go's
// IFD-chain walk for enumeration and on
// other_examples/7a1adf42_Echoflaresat-tiff__reader.go.go's io.ReaderAt-based
// random access model for tile addressing.
type Reader struct {
	stream  *ByteStream
	header  Header
	codecs  *CodecRegistry
	ifds    []IFDTable
	offsets []uint64
	layouts []ImageLayout
	tileMaps []*TileMap

	openErr error // retained failure under AllowNonTiff

	cache      *lru.Cache[tileCacheKey, []byte]
	cacheBytes uint64
	cacheCap   uint64

	fatal error // poisons the instance once set, per §9
}

// NewReader constructs a Reader around an already-opened ByteStream and
// validates/parses its header according to mode. The codecs registry may
// be nil to use NewCodecRegistry()'s defaults.
func NewReader(stream *ByteStream, mode OpenMode, codecs *CodecRegistry) (*Reader, error) {
	if codecs == nil {
		codecs = NewCodecRegistry()
	}
	r := &Reader{stream: stream, codecs: codecs}
	switch mode {
	case NoChecksOpen:
		// Caller is responsible for having set the stream's byte order;
		// assume classic TIFF layout with the first IFD at offset 8.
		r.header = Header{Order: stream.ByteOrder(), BigTIFF: false, FirstIFDOffset: HeaderSize}
	default:
		h, err := ReadHeader(stream)
		if err != nil {
			if mode == AllowNonTiff {
				r.openErr = err
				return r, nil
			}
			return nil, err
		}
		r.header = h
	}
	return r, nil
}

// OpenError returns the retained header failure when the Reader was opened
// with AllowNonTiff and the header did not validate, else nil.
func (r *Reader) OpenError() error { return r.openErr }

// poison records the first fatal error on this Reader; subsequent calls
// return it until the caller releases the Reader (§9 "Exceptions and
// control flow").
func (r *Reader) poison(err error) error {
	if err != nil && r.fatal == nil {
		r.fatal = err
	}
	if r.fatal != nil {
		return r.fatal
	}
	return err
}

// AllIFDs walks the whole chain starting at the header's first-IFD offset
// and caches the result (§4.7 allIFDs()).
func (r *Reader) AllIFDs() ([]IFDTable, error) {
	if r.fatal != nil {
		return nil, r.fatal
	}
	if r.ifds != nil {
		return r.ifds, nil
	}
	ifds, offsets, err := ReadIFDChain(r.stream, r.header.Order, r.header.BigTIFF, r.header.FirstIFDOffset)
	if err != nil {
		return nil, r.poison(err)
	}
	r.ifds = ifds
	r.offsets = offsets
	r.layouts = make([]ImageLayout, len(ifds))
	r.tileMaps = make([]*TileMap, len(ifds))
	return ifds, nil
}

// Layout derives (and caches) the ImageLayout for IFD ifdIndex.
func (r *Reader) Layout(ifdIndex int) (ImageLayout, error) {
	if _, err := r.AllIFDs(); err != nil {
		return ImageLayout{}, err
	}
	if ifdIndex < 0 || ifdIndex >= len(r.ifds) {
		return ImageLayout{}, newErr(KindMalformedIFD, "IFD index %d out of range (have %d)", ifdIndex, len(r.ifds))
	}
	if r.layouts[ifdIndex].DimX == 0 && r.layouts[ifdIndex].DimY == 0 {
		layout, err := DeriveLayout(&r.ifds[ifdIndex], r.header.Order, r.header.BigTIFF)
		if err != nil {
			return ImageLayout{}, r.poison(err)
		}
		r.layouts[ifdIndex] = layout
	}
	return r.layouts[ifdIndex], nil
}

// Map constructs (and caches) the TileMap for IFD ifdIndex (§4.7 map()).
func (r *Reader) Map(ifdIndex int) (*TileMap, error) {
	layout, err := r.Layout(ifdIndex)
	if err != nil {
		return nil, err
	}
	if r.tileMaps[ifdIndex] == nil {
		tm, err := BuildTileMap(&r.ifds[ifdIndex], layout, r.header.Order)
		if err != nil {
			return nil, r.poison(err)
		}
		r.tileMaps[ifdIndex] = tm
	}
	return r.tileMaps[ifdIndex], nil
}

// EnableCache installs an LRU decoded-tile cache with the given byte
// budget, per §4.7 "Caching": eviction is least-recently-used, and cached
// tiles are returned as clones, never the live buffer.
func (r *Reader) EnableCache(maxBytes uint64) error {
	// golang-lru's Cache is keyed by entry count, not bytes, so it is
	// created with a fixed entry limit; ReadTile enforces the byte budget
	// by evicting least-recently-used entries after each insertion.
	entries := 256
	c, err := lru.New[tileCacheKey, []byte](entries)
	if err != nil {
		return wrapErr(KindIoError, err, "creating tile cache")
	}
	r.cache = c
	r.cacheCap = maxBytes
	return nil
}

// ReadTile fetches and fully decodes one tile: encoded bytes via
// ByteStream, codec decode by CompressionTag, JPEGTables splicing for
// JPEG-family tiles, then the SamplePacking pipeline, per §4.7 readTile().
func (r *Reader) ReadTile(ifdIndex int, tile *Tile) ([]byte, error) {
	if r.fatal != nil {
		return nil, r.fatal
	}
	layout, err := r.Layout(ifdIndex)
	if err != nil {
		return nil, err
	}
	key := tileCacheKey{ifdIndex: ifdIndex, plane: tile.Plane, x: tile.X, y: tile.Y}
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			return append([]byte(nil), cached...), nil
		}
	}
	if tile.Offset == 0 || tile.Length == 0 {
		return nil, newErr(KindCorruptedData, "tile (%d,%d,%d) of IFD %d is missing", tile.Plane, tile.X, tile.Y, ifdIndex)
	}
	encoded, err := r.stream.ReadAt(int64(tile.Offset), int(tile.Length))
	if err != nil {
		return nil, r.poison(err)
	}
	if layout.Compression.IsJPEGFamily() {
		jt, err := r.jpegTables(ifdIndex)
		if err != nil {
			return nil, err
		}
		if len(jt) > 0 {
			encoded = spliceJPEGTables(encoded, jt)
		}
	}
	codec, err := r.codecs.Lookup(layout.Compression)
	if err != nil {
		return nil, r.poison(err)
	}
	actualW, actualH := ActualTileSize(layout, tile.X, tile.Y)
	opts := r.codecOptions(layout, actualW, actualH)
	decoded, err := codec.Decode(encoded, opts)
	if err != nil {
		return nil, r.poison(err)
	}
	if layout.Photometric != PhotoYCbCr && !layout.Compression.IsJPEGFamily() {
		if want := expectedPackedSize(actualW, actualH, layout.SamplesPerPixel, layout.BitsPerSample[0]); uint64(len(decoded)) < want {
			return nil, r.poison(newErr(KindCorruptedData, "decoded tile (%d,%d,%d) of IFD %d is %d bytes, need at least %d for %dx%d",
				tile.Plane, tile.X, tile.Y, ifdIndex, len(decoded), want, actualW, actualH))
		}
	}
	decoded, err = r.unpackTile(layout, actualW, actualH, decoded)
	if err != nil {
		return nil, r.poison(err)
	}
	if r.cache != nil {
		r.cache.Add(key, append([]byte(nil), decoded...))
		for {
			var total uint64
			for _, v := range r.cache.Values() {
				total += uint64(len(v))
			}
			if total <= r.cacheCap {
				break
			}
			if _, _, ok := r.cache.RemoveOldest(); !ok {
				break
			}
		}
	}
	return decoded, nil
}

// ICCProfile returns the embedded ICC color profile (tag 34675) attached to
// IFD ifdIndex, or nil if none is present.
func (r *Reader) ICCProfile(ifdIndex int) ([]byte, error) {
	if _, err := r.AllIFDs(); err != nil {
		return nil, err
	}
	if ifdIndex < 0 || ifdIndex >= len(r.ifds) {
		return nil, newErr(KindMalformedIFD, "IFD index %d out of range (have %d)", ifdIndex, len(r.ifds))
	}
	f := r.ifds[ifdIndex].Find(ICCProfile)
	if f == nil {
		return nil, nil
	}
	return append([]byte(nil), f.Data...), nil
}

// Describe classifies every IFD in the chain per §4.10's pyramid/thumbnail/
// label/macro heuristics, wrapping ClassifySpecialKinds with the IFD/layout
// enumeration it needs.
func (r *Reader) Describe() ([]ImageKind, error) {
	ifds, err := r.AllIFDs()
	if err != nil {
		return nil, err
	}
	layouts := make([]ImageLayout, len(ifds))
	for i := range ifds {
		layout, err := r.Layout(i)
		if err != nil {
			return nil, err
		}
		layouts[i] = layout
	}
	return ClassifySpecialKinds(ifds, layouts), nil
}

// Thumbnail decodes the IFD that Describe classifies as KindThumbnail, if
// any, returning its full pixel region and layout.
func (r *Reader) Thumbnail() ([]byte, ImageLayout, error) {
	kinds, err := r.Describe()
	if err != nil {
		return nil, ImageLayout{}, err
	}
	for i, k := range kinds {
		if k != KindThumbnail {
			continue
		}
		layout, err := r.Layout(i)
		if err != nil {
			return nil, ImageLayout{}, err
		}
		region := Rect{X: 0, Y: 0, W: layout.DimX, H: layout.DimY}
		pixels, err := r.ReadRegion(i, 0, region, 0, false)
		if err != nil {
			return nil, ImageLayout{}, err
		}
		return pixels, layout, nil
	}
	return nil, ImageLayout{}, newErr(KindMalformedIFD, "no IFD classified as a thumbnail")
}

func (r *Reader) jpegTables(ifdIndex int) ([]byte, error) {
	f := r.ifds[ifdIndex].Find(JPEGTables)
	if f == nil {
		return nil, nil
	}
	return f.Data, nil
}

// spliceJPEGTables inserts the abbreviated JPEG tables (quantization +
// Huffman) between the tile's SOI marker and the remainder of its
// compressed stream, per §4.7.
func spliceJPEGTables(tileData, tables []byte) []byte {
	if len(tileData) < 2 || tileData[0] != 0xFF || tileData[1] != 0xD8 {
		return tileData
	}
	// tables already includes its own SOI/EOI; strip both so we splice
	// just the table segments between the tile's SOI and the rest.
	body := tables
	if len(body) >= 4 && body[0] == 0xFF && body[1] == 0xD8 {
		body = body[2:]
	}
	if len(body) >= 2 && body[len(body)-2] == 0xFF && body[len(body)-1] == 0xD9 {
		body = body[:len(body)-2]
	}
	out := make([]byte, 0, len(tileData)+len(body))
	out = append(out, tileData[:2]...)
	out = append(out, body...)
	out = append(out, tileData[2:]...)
	return out
}

func (r *Reader) codecOptions(layout ImageLayout, actualW, actualH uint64) CodecOptions {
	order := LittleEndianOrder
	if layout.Order == binary.BigEndian {
		order = BigEndianOrder
	}
	return CodecOptions{
		Width:           actualW,
		Height:          actualH,
		BitsPerSample:   layout.BitsPerSample,
		SamplesPerPixel: layout.SamplesPerPixel,
		Order:           order,
		Photometric:     layout.Photometric,
	}
}

// unpackTile runs the SamplePacking read-side pipeline over one decoded,
// still-packed tile buffer: bit unpack, predictor reversal, YCbCr
// conversion, and brightness inversion, per §4.6. Unusual precisions are
// not widened here: 16-bit and 24-bit floats and 3-byte integers are
// returned in their stored byte form.
// actualW/actualH are the tile's clipped dimensions (§4.4, Open Question
// (ii)): the last row/column of tiles, or the last strip, may hold fewer
// valid rows/columns than the nominal layout.TileW/TileH, and the packed
// data on disk is sized to match — unpacking with the nominal size would
// read past the end of a legitimately short buffer.
func (r *Reader) unpackTile(layout ImageLayout, actualW, actualH uint64, decoded []byte) ([]byte, error) {
	params := DefaultPackingParams(layout)
	spp := layout.SamplesPerPixel
	bits := layout.BitsPerSample[0]

	if layout.Photometric == PhotoYCbCr && !layout.Compression.IsJPEGFamily() {
		return YCbCrToRGB(decoded, params, actualW, actualH), nil
	}

	bytesPerSample := unpackedSampleSize(bits)
	if bits%8 != 0 {
		unpacked, err := UnpackBits(decoded, bits, actualH, actualW*spp)
		if err != nil {
			return nil, err
		}
		decoded = unpacked
	}

	if layout.Predictor != PredictorNone {
		if err := ApplyPredictorReverse(decoded, layout.Predictor, actualW, actualH, spp, bytesPerSample); err != nil {
			return nil, err
		}
	}

	if params.Invert {
		InvertSamples(decoded, bits)
	}
	return decoded, nil
}

// ReadRegion iterates the tiles intersecting (x,y,w,h) and fills the
// output buffer with per-tile rectangles; any uncovered region (missing
// tiles, when allowed) keeps the filler byte the buffer is initialized
// with, per §4.7 readRegion().
// The returned buffer is tightly packed, row-major, w·h·samplesPerPixel·
// bytesPerSample bytes.
func (r *Reader) ReadRegion(ifdIndex int, plane uint64, region Rect, filler byte, missingTilesAllowed bool) ([]byte, error) {
	layout, err := r.Layout(ifdIndex)
	if err != nil {
		return nil, err
	}
	tm, err := r.Map(ifdIndex)
	if err != nil {
		return nil, err
	}
	spp := layout.SamplesPerPixel
	bps := unpackedSampleSize(layout.BitsPerSample[0])
	pixelStride := spp * bps
	out := make([]byte, region.W*region.H*pixelStride)
	for i := range out {
		out[i] = filler
	}

	for _, tile := range tm.TilesIntersecting(plane, region) {
		actual := tm.ActualRectangle(tile)
		overlap := region.Intersection(actual)
		if overlap.W == 0 || overlap.H == 0 {
			continue
		}
		if tile.Offset == 0 {
			if !missingTilesAllowed {
				return nil, newErr(KindCorruptedData, "missing tile (%d,%d,%d) and missing-tiles policy disabled", tile.Plane, tile.X, tile.Y)
			}
			continue
		}
		decoded, err := r.ReadTile(ifdIndex, tile)
		if err != nil {
			return nil, err
		}
		tileX0 := tile.X * layout.TileW
		tileY0 := tile.Y * layout.TileH
		for y := overlap.Y; y < overlap.Y+overlap.H; y++ {
			srcRow := (y - tileY0) * actual.W * pixelStride
			dstRow := (y - region.Y) * region.W * pixelStride
			srcOff := srcRow + (overlap.X-tileX0)*pixelStride
			dstOff := dstRow + (overlap.X-region.X)*pixelStride
			n := overlap.W * pixelStride
			copy(out[dstOff:dstOff+n], decoded[srcOff:srcOff+n])
		}
	}
	return out, nil
}
