package tiffcore

import "encoding/binary"

// WriterState is the Writer's lifecycle state (§4.8).
type WriterState int

const (
	StateUnopened WriterState = iota
	StateCreated
	StateAppending
	StateRewriting
	StateMapped
	StateClosed
)

// WriterOptions configures a Writer's behavior (§4.8).
type WriterOptions struct {
	BigTIFF              bool
	ByteOrder            binary.ByteOrder
	CompressionQuality    int // stored only; codecOptions passes no quality setting to codecs
	Predictor             PredictorKind
	MissingTilesAllowed   bool
	AlwaysWriteToFileEnd  bool
	SmartFormatCorrection bool
	AutoInterleaveSource  bool
	TileInitializer       func(tile *Tile) // called for each freshly created tile
}

// Writer implements §4.8: the tile-writer state machine, random-access
// layout, and IFD chain maintenance. Grounded on tiff66.go's
// IFD_T.Put/PutIFDTree write path, generalized to BigTIFF and to the
// tiled random-access layout SPEC_FULL.md calls for (tiff66.go only
// ever rewrites the whole file sequentially).
type Writer struct {
	stream *ByteStream
	opts   WriterOptions
	codecs *CodecRegistry

	state WriterState

	ifds         []IFDTable
	ifdOffsets   []uint64 // offset each already-flushed IFD was written at
	nextPtrSlot  uint64   // offset of the next-IFD pointer awaiting a patch
	lastIsHeader bool     // true until the first IFD is flushed

	curIFD    *IFDTable
	curLayout ImageLayout
	curMap    *TileMap
	lastIFD   bool // set by SetLastIFD; not read by CompleteWriting

	fatal error
}

// NewWriter constructs a Writer around a fresh ByteStream in CREATED state,
// writing the file header immediately.
func NewWriter(stream *ByteStream, opts WriterOptions, codecs *CodecRegistry) (*Writer, error) {
	if codecs == nil {
		codecs = NewCodecRegistry()
	}
	w := &Writer{stream: stream, opts: opts, codecs: codecs, lastIsHeader: true}
	if _, err := WriteHeader(stream, opts.ByteOrder, opts.BigTIFF, 0); err != nil {
		return nil, err
	}
	if opts.BigTIFF {
		w.nextPtrSlot = 8
	} else {
		w.nextPtrSlot = 4
	}
	w.state = StateCreated
	return w, nil
}

// OpenAppending constructs a Writer around an existing TIFF/BigTIFF
// stream, walks its IFD chain to find the chain's last next-pointer slot,
// and enters APPENDING state so new IFDs can be added after the existing
// ones.
func OpenAppending(stream *ByteStream, codecs *CodecRegistry) (*Writer, error) {
	if codecs == nil {
		codecs = NewCodecRegistry()
	}
	h, err := ReadHeader(stream)
	if err != nil {
		return nil, err
	}
	w := &Writer{stream: stream, codecs: codecs}
	w.opts.ByteOrder = h.Order
	w.opts.BigTIFF = h.BigTIFF

	ifds, offsets, err := ReadIFDChain(stream, h.Order, h.BigTIFF, h.FirstIFDOffset)
	if err != nil {
		return nil, err
	}
	w.ifds = ifds
	w.ifdOffsets = offsets
	if len(offsets) == 0 {
		w.nextPtrSlot = 4
		if h.BigTIFF {
			w.nextPtrSlot = 8
		}
		w.lastIsHeader = true
	} else {
		last := offsets[len(offsets)-1]
		countWidth := uint64(2)
		if h.BigTIFF {
			countWidth = 8
		}
		// nextPtrSlot sits right after the entry array: countWidth +
		// n*entryWidth past the IFD's own offset.
		w.nextPtrSlot = last + countWidth + entryWidth(h.BigTIFF)*uint64(len(ifds[len(ifds)-1].Fields))
	}
	w.state = StateAppending
	return w, nil
}

func (w *Writer) poison(err error) error {
	if err != nil && w.fatal == nil {
		w.fatal = err
	}
	if w.fatal != nil {
		return w.fatal
	}
	return err
}

// NewMap creates a fresh IFDTable and TileMap for a new image and enters
// MAPPED state (§4.8 newMap).
func (w *Writer) NewMap(fields []Field, layout ImageLayout) (*TileMap, error) {
	if w.state != StateCreated && w.state != StateAppending && w.state != StateRewriting {
		return nil, newErr(KindIoError, "NewMap called in state %d", w.state)
	}
	table := &IFDTable{}
	table.AddFields(fields)
	tm := NewTileMap(layout)
	if w.opts.TileInitializer != nil {
		for _, tile := range tm.AllTiles() {
			w.opts.TileInitializer(tile)
		}
	}
	w.curIFD = table
	w.curLayout = layout
	w.curMap = tm
	w.state = StateMapped
	return tm, nil
}

// ExistingMap rebuilds the TileMap for an already-parsed IFD (REWRITING
// path) and enters MAPPED state.
func (w *Writer) ExistingMap(ifdIndex int) (*TileMap, error) {
	if ifdIndex < 0 || ifdIndex >= len(w.ifds) {
		return nil, newErr(KindMalformedIFD, "IFD index %d out of range", ifdIndex)
	}
	layout, err := DeriveLayout(&w.ifds[ifdIndex], w.opts.ByteOrder, w.opts.BigTIFF)
	if err != nil {
		return nil, w.poison(err)
	}
	tm, err := BuildTileMap(&w.ifds[ifdIndex], layout, w.opts.ByteOrder)
	if err != nil {
		return nil, w.poison(err)
	}
	w.curIFD = &w.ifds[ifdIndex]
	w.curLayout = layout
	w.curMap = tm
	w.state = StateMapped
	return tm, nil
}

// WriteTile packs and encodes a decoded tile buffer and writes it in
// place or at the end of the file, per §4.8 writeTile(). decoded must be
// the full tile (no partial-tile merge); use PreloadAndStore first when
// only part of a tile is being updated and preservation is requested.
func (w *Writer) WriteTile(tile *Tile, decoded []byte) error {
	if w.state != StateMapped {
		return newErr(KindIoError, "WriteTile called outside MAPPED state")
	}
	encoded, err := w.EncodeTile(tile, decoded)
	if err != nil {
		return w.poison(err)
	}
	return w.PlaceTile(tile, encoded)
}

// EncodeTile runs the pack-then-compress half of WriteTile without
// touching the ByteStream: pure CPU work, safe to run concurrently across
// tiles from a bounded worker pool (§5 "Implementations may parallelize
// per-tile encode/decode across a worker pool"). Pair with PlaceTile,
// which must be called sequentially per the owning ByteStream's
// single-owner rule. tile supplies the (x,y) position used to clip to the
// tile's actual (non-padded) dimensions for the last row/column of tiles
// or the last strip (§4.4, Open Question (ii)).
func (w *Writer) EncodeTile(tile *Tile, decoded []byte) ([]byte, error) {
	actualW, actualH := ActualTileSize(w.curLayout, tile.X, tile.Y)
	packed, err := w.packTile(actualW, actualH, decoded)
	if err != nil {
		return nil, err
	}
	codec, err := w.codecs.Lookup(w.curLayout.Compression)
	if err != nil {
		return nil, err
	}
	encoded, err := codec.Encode(packed, w.codecOptions(actualW, actualH))
	if err != nil {
		return nil, wrapErr(KindCodecFailure, err, "encoding tile")
	}
	return encoded, nil
}

// PlaceTile writes an already-encoded tile buffer in place or at the end
// of the file, per §4.8's writeTile() placement rule. Must be serialized
// by the caller: it is the I/O half of WriteTile/EncodeTile.
func (w *Writer) PlaceTile(tile *Tile, encoded []byte) error {
	fitsInPlace := tile.Offset != 0 && uint64(len(encoded)) <= tile.Length && !w.opts.AlwaysWriteToFileEnd
	if fitsInPlace {
		if err := w.stream.WriteAt(int64(tile.Offset), encoded); err != nil {
			return w.poison(err)
		}
	} else {
		off, err := w.stream.AppendAtEnd(encoded)
		if err != nil {
			return w.poison(err)
		}
		tile.Offset = uint64(off)
	}
	tile.Length = uint64(len(encoded))
	tile.Dirty = false
	tile.Unset = nil
	return nil
}

func (w *Writer) codecOptions(actualW, actualH uint64) CodecOptions {
	order := LittleEndianOrder
	if w.curLayout.Order == binary.BigEndian {
		order = BigEndianOrder
	}
	return CodecOptions{
		Width:           actualW,
		Height:          actualH,
		BitsPerSample:   w.curLayout.BitsPerSample,
		SamplesPerPixel: w.curLayout.SamplesPerPixel,
		Order:           order,
		Photometric:     w.curLayout.Photometric,
	}
}

// packTile runs the SamplePacking write-side pipeline (predictor forward,
// photometric inversion, bit packing) on a decoded tile buffer, per §4.6
// "Pack path". actualW/actualH are the tile's clipped dimensions (§4.4,
// Open Question (ii)): decoded is sized to them, not to the nominal
// layout.TileW/TileH, for the last row/column of tiles or the last strip.
func (w *Writer) packTile(actualW, actualH uint64, decoded []byte) ([]byte, error) {
	layout := w.curLayout
	spp := layout.SamplesPerPixel
	bits := layout.BitsPerSample[0]
	bytesPerSample := unpackedSampleSize(bits)
	buf := append([]byte(nil), decoded...)

	params := DefaultPackingParams(layout)
	if params.Invert {
		InvertSamples(buf, bits)
	}

	if layout.Predictor != PredictorNone {
		if err := ApplyPredictorForward(buf, layout.Predictor, actualW, actualH, spp, bytesPerSample); err != nil {
			return nil, err
		}
	}

	if bits%8 != 0 {
		packed, err := PackBitsRow(buf, bits, actualH, actualW*spp)
		if err != nil {
			return nil, err
		}
		return packed, nil
	}
	return buf, nil
}

// PreloadAndStore implements partial-tile preload-and-merge (§4.8): for
// each tile intersecting the region whose rectangle is not fully
// contained within it, decode the tile's existing content via an internal
// Reader aliasing the same stream, and overlay newData (row-major, tightly
// packed for the region) on top before the caller proceeds to WriteTile.
// Returns the merged per-tile decoded buffers keyed by tile.
func (w *Writer) PreloadAndStore(plane uint64, region Rect, newData []byte, reader *Reader, ifdIndex int) (map[*Tile][]byte, error) {
	spp := w.curLayout.SamplesPerPixel
	bps := unpackedSampleSize(w.curLayout.BitsPerSample[0])
	pixelStride := spp * bps

	merged := make(map[*Tile][]byte)
	for _, tile := range w.curMap.TilesIntersecting(plane, region) {
		actual := w.curMap.ActualRectangle(tile)
		var baseline []byte
		if tile.Offset != 0 && reader != nil && !region.Contains(actual) {
			decoded, err := reader.ReadTile(ifdIndex, tile)
			if err != nil {
				return nil, err
			}
			baseline = decoded
		} else {
			baseline = make([]byte, actual.W*actual.H*pixelStride)
		}
		overlap := region.Intersection(actual)
		if overlap.W > 0 && overlap.H > 0 {
			tileX0 := tile.X * w.curLayout.TileW
			tileY0 := tile.Y * w.curLayout.TileH
			for y := overlap.Y; y < overlap.Y+overlap.H; y++ {
				dstRow := (y - tileY0) * actual.W * pixelStride
				srcRow := (y - region.Y) * region.W * pixelStride
				dstOff := dstRow + (overlap.X-tileX0)*pixelStride
				srcOff := srcRow + (overlap.X-region.X)*pixelStride
				n := overlap.W * pixelStride
				copy(baseline[dstOff:dstOff+n], newData[srcOff:srcOff+n])
			}
		}
		if !region.Contains(actual) {
			tile.Unset = append(tile.Unset, actual) // conservatively tracked; cleared on full WriteTile
		}
		merged[tile] = baseline
	}
	return merged, nil
}

// Contains reports whether r fully contains o.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.X+o.W <= r.X+r.W && o.Y+o.H <= r.Y+r.H
}

// SetICCProfile attaches an embedded ICC color profile (tag 34675) to the
// image currently under construction. Must be called after NewMap/
// ExistingMap and before CompleteWriting.
func (w *Writer) SetICCProfile(profile []byte) error {
	if w.state != StateMapped {
		return newErr(KindIoError, "SetICCProfile called outside MAPPED state")
	}
	w.curIFD.Set(Field{Tag: ICCProfile, Type: UNDEFINED, Count: uint64(len(profile)), Data: append([]byte(nil), profile...)})
	return nil
}

// SetLastIFD sets the writer's lastIFD flag. CompleteWriting does not read
// it: the IFD it writes always gets a zero next-pointer at the end of the
// chain, whether or not SetLastIFD was called.
func (w *Writer) SetLastIFD() { w.lastIFD = true }

// CompleteWriting builds (or rewrites) the IFD with updated
// offset/byte-count arrays and patches the chain pointer, per §4.8
// completeWriting(). It encodes no tiles itself: the arrays record the
// tiles already placed through WriteTile/PlaceTile (or a direct copy), and
// every other tile is recorded with offset and byte count 0.
func (w *Writer) CompleteWriting() error {
	if w.state != StateMapped {
		return newErr(KindIoError, "CompleteWriting called outside MAPPED state")
	}
	offsets, lengths := w.curMap.OffsetsAndByteCounts()
	offTag, cntTag := StripOffsets, StripByteCounts
	if w.curLayout.Tiled {
		offTag, cntTag = TileOffsets, TileByteCounts
	}
	w.curIFD.Set(uintArrayField(offTag, offsets, w.opts.BigTIFF))
	w.curIFD.Set(uintArrayField(cntTag, lengths, w.opts.BigTIFF))

	at := uint64(w.stream.Length())
	nextPtr := uint64(0)
	if _, err := WriteIFD(w.stream, w.opts.ByteOrder, w.opts.BigTIFF, *w.curIFD, at, nextPtr); err != nil {
		return w.poison(err)
	}

	if err := w.patchChainPointer(at); err != nil {
		return w.poison(err)
	}
	w.ifds = append(w.ifds, *w.curIFD)
	w.ifdOffsets = append(w.ifdOffsets, at)
	countWidth := uint64(2)
	if w.opts.BigTIFF {
		countWidth = 8
	}
	w.nextPtrSlot = at + countWidth + entryWidth(w.opts.BigTIFF)*uint64(len(w.curIFD.Fields))
	w.lastIsHeader = false
	w.state = StateClosed
	return nil
}

func (w *Writer) patchChainPointer(ifdOffset uint64) error {
	var buf []byte
	if w.opts.BigTIFF {
		buf = putU64(w.opts.ByteOrder, ifdOffset)
	} else {
		buf = putU32(w.opts.ByteOrder, uint32(ifdOffset))
	}
	return w.stream.WriteAt(int64(w.nextPtrSlot), buf)
}

// uintArrayField builds a LONG/LONG8 array field for an offset or
// byte-count array, choosing LONG8 only when BigTIFF is active (classic
// TIFF caps these at 32 bits).
func uintArrayField(tag Tag, values []uint64, bigTiff bool) Field {
	typ := LONG
	width := uint64(4)
	if bigTiff {
		typ, width = LONG8, 8
	}
	data := make([]byte, uint64(len(values))*width)
	for i, v := range values {
		if bigTiff {
			binary.LittleEndian.PutUint64(data[uint64(i)*width:], v)
		} else {
			binary.LittleEndian.PutUint32(data[uint64(i)*width:], uint32(v))
		}
	}
	return Field{Tag: tag, Type: typ, Count: uint64(len(values)), Data: data}
}

// RewriteDescription appends a new IFD table at end-of-file with an
// updated ImageDescription tag and patches the preceding chain pointer;
// image data is not touched, per §4.8.
func (w *Writer) RewriteDescription(ifdIndex int, text string) error {
	if ifdIndex < 0 || ifdIndex >= len(w.ifds) {
		return newErr(KindMalformedIFD, "IFD index %d out of range", ifdIndex)
	}
	table := w.ifds[ifdIndex]
	cp := IFDTable{Fields: append([]Field(nil), table.Fields...)}
	var desc Field
	desc.PutASCII(text)
	desc.Tag = ImageDescription
	cp.Set(desc)

	at := uint64(w.stream.Length())
	next := uint64(0)
	if ifdIndex+1 < len(w.ifdOffsets) {
		next = w.ifdOffsets[ifdIndex+1]
	}
	_, err := WriteIFD(w.stream, w.opts.ByteOrder, w.opts.BigTIFF, cp, at, next)
	if err != nil {
		return w.poison(err)
	}
	var patchAt uint64
	if ifdIndex == 0 {
		patchAt = 4
		if w.opts.BigTIFF {
			patchAt = 8
		}
	} else {
		prev := w.ifds[ifdIndex-1]
		countWidth := uint64(2)
		if w.opts.BigTIFF {
			countWidth = 8
		}
		patchAt = w.ifdOffsets[ifdIndex-1] + countWidth + entryWidth(w.opts.BigTIFF)*uint64(len(prev.Fields))
	}
	var buf []byte
	if w.opts.BigTIFF {
		buf = putU64(w.opts.ByteOrder, at)
	} else {
		buf = putU32(w.opts.ByteOrder, uint32(at))
	}
	if err := w.stream.WriteAt(int64(patchAt), buf); err != nil {
		return w.poison(err)
	}
	w.ifds[ifdIndex] = cp
	w.ifdOffsets[ifdIndex] = at
	if ifdIndex == len(w.ifds)-1 {
		countWidth := uint64(2)
		if w.opts.BigTIFF {
			countWidth = 8
		}
		w.nextPtrSlot = at + countWidth + entryWidth(w.opts.BigTIFF)*uint64(len(cp.Fields))
	}
	return nil
}
