package tiffcore

import "encoding/binary"

// Tile describes one addressable unit of encoded image data: a tile in a
// tiled IFD, or a strip treated as a one-column-wide tile (§4.4).
type Tile struct {
	Plane  uint64 // plane index, 0 for chunky
	X, Y   uint64 // tile column/row index, not pixel coordinates
	Offset uint64 // file offset of encoded data; 0 if missing
	Length uint64 // encoded byte length; 0 if missing

	Decoded []byte // cached decoded buffer, nil until first access
	Unset   []Rect // sub-rectangles (in image pixel coordinates) never written
	Dirty   bool
}

// Rect is an axis-aligned pixel rectangle, used both for TileMap region
// queries and for a Tile's Unset tracking.
type Rect struct {
	X, Y, W, H uint64
}

// Intersects reports whether r and o overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Intersection returns the overlapping sub-rectangle of r and o. The
// caller must check Intersects first; a non-overlapping pair returns a
// zero-area Rect.
func (r Rect) Intersection(o Rect) Rect {
	x0 := max64(r.X, o.X)
	y0 := max64(r.Y, o.Y)
	x1 := min64(r.X+r.W, o.X+o.W)
	y1 := min64(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// TileMap is the geometric index of tiles/strips for one IFD (§4.4): the
// per-(plane,x,y) offset/length table derived from StripOffsets/TileOffsets
// and StripByteCounts/TileByteCounts. Stripped IFDs are modeled as a tile
// map with one column per plane (tileW = dimX), following
// imageDataFields's strip-as-degenerate-tile handling, generalized to
// BigTIFF's uint64 offsets and to the planar case.
type TileMap struct {
	Layout ImageLayout
	tiles  map[[3]uint64]*Tile // keyed by [plane][y][x]
	across uint64              // tiles per row
	down   uint64              // tile rows
	planes uint64
}

// BuildTileMap constructs a TileMap from the IFD's offset/byte-count arrays
// and a previously derived ImageLayout, per §4.4.
func BuildTileMap(t *IFDTable, layout ImageLayout, order binary.ByteOrder) (*TileMap, error) {
	across := layout.TilesAcrossX()
	down := layout.TilesAcrossY()
	planes := layout.PlaneCount()
	expected := across * down * planes

	var offsets, lengths []uint64
	if layout.Tiled {
		offsets = t.UnsignedArray(TileOffsets, order)
		lengths = t.UnsignedArray(TileByteCounts, order)
	} else {
		offsets = t.UnsignedArray(StripOffsets, order)
		lengths = t.UnsignedArray(StripByteCounts, order)
	}
	if uint64(len(offsets)) != expected || uint64(len(lengths)) != expected {
		return nil, newErr(KindMalformedIFD, "tile/strip array length %d/%d does not match expected tile count %d (across=%d down=%d planes=%d)",
			len(offsets), len(lengths), expected, across, down, planes)
	}

	tm := &TileMap{
		Layout: layout,
		tiles:  make(map[[3]uint64]*Tile, expected),
		across: across,
		down:   down,
		planes: planes,
	}
	// Per-plane blocks are contiguous in the offset/byte-count arrays, in
	// row-major (y, then x) order within each plane, matching how writers
	// lay out StripOffsets/TileOffsets.
	idx := 0
	for p := uint64(0); p < planes; p++ {
		for y := uint64(0); y < down; y++ {
			for x := uint64(0); x < across; x++ {
				key := [3]uint64{p, y, x}
				tm.tiles[key] = &Tile{
					Plane:  p,
					X:      x,
					Y:      y,
					Offset: offsets[idx],
					Length: lengths[idx],
				}
				idx++
			}
		}
	}
	return tm, nil
}

// NewTileMap creates an empty TileMap for a Writer building a fresh image,
// with every tile starting out missing (offset/length zero).
func NewTileMap(layout ImageLayout) *TileMap {
	across := layout.TilesAcrossX()
	down := layout.TilesAcrossY()
	planes := layout.PlaneCount()
	tm := &TileMap{
		Layout: layout,
		tiles:  make(map[[3]uint64]*Tile, across*down*planes),
		across: across,
		down:   down,
		planes: planes,
	}
	for p := uint64(0); p < planes; p++ {
		for y := uint64(0); y < down; y++ {
			for x := uint64(0); x < across; x++ {
				tm.tiles[[3]uint64{p, y, x}] = &Tile{Plane: p, X: x, Y: y}
			}
		}
	}
	return tm
}

// NumberOfTiles returns the total tile count across all planes.
func (tm *TileMap) NumberOfTiles() uint64 { return tm.across * tm.down * tm.planes }

// TilesAcross returns the number of tile columns.
func (tm *TileMap) TilesAcross() uint64 { return tm.across }

// TilesDown returns the number of tile rows.
func (tm *TileMap) TilesDown() uint64 { return tm.down }

// Tile returns the tile at (plane, x, y), or nil if out of range.
func (tm *TileMap) Tile(plane, x, y uint64) *Tile {
	return tm.tiles[[3]uint64{plane, y, x}]
}

// ActualTileSize returns the clipped width/height of the tile at (x,y)
// within layout: the last tile row/column (and the last strip, when
// RowsPerStrip does not evenly divide the image height) is typically
// smaller than the nominal tile dimensions (§4.4, Open Question (ii)).
// Reader and Writer both use this directly, without needing a TileMap, so
// the SamplePacking pipeline can size its row/rows arguments to the data
// actually present on disk instead of the nominal geometry.
func ActualTileSize(layout ImageLayout, x, y uint64) (w, h uint64) {
	x0 := x * layout.TileW
	y0 := y * layout.TileH
	w = layout.TileW
	h = layout.TileH
	if x0+w > layout.DimX {
		w = layout.DimX - x0
	}
	if y0+h > layout.DimY {
		h = layout.DimY - y0
	}
	return w, h
}

// ActualRectangle returns the tile's pixel rectangle clipped to the image
// bounds: the last row/column of tiles is typically smaller than the
// nominal tile size (§4.4).
func (tm *TileMap) ActualRectangle(tile *Tile) Rect {
	w, h := ActualTileSize(tm.Layout, tile.X, tile.Y)
	return Rect{X: tile.X * tm.Layout.TileW, Y: tile.Y * tm.Layout.TileH, W: w, H: h}
}

// TilesIntersecting returns every tile in the given plane whose nominal
// (unclipped) rectangle overlaps region.
func (tm *TileMap) TilesIntersecting(plane uint64, region Rect) []*Tile {
	x0 := region.X / tm.Layout.TileW
	y0 := region.Y / tm.Layout.TileH
	x1 := ceilDiv(region.X+region.W, tm.Layout.TileW)
	y1 := ceilDiv(region.Y+region.H, tm.Layout.TileH)
	var out []*Tile
	for y := y0; y < y1 && y < tm.down; y++ {
		for x := x0; x < x1 && x < tm.across; x++ {
			if tile := tm.Tile(plane, x, y); tile != nil {
				out = append(out, tile)
			}
		}
	}
	return out
}

// HasUnset reports whether any tile in the map carries unset (never
// written) sub-rectangles, or is itself entirely missing.
func (tm *TileMap) HasUnset() bool {
	for _, tile := range tm.tiles {
		if tile.Offset == 0 || len(tile.Unset) > 0 {
			return true
		}
	}
	return false
}

// AllTiles returns every tile in the map, in plane/row/column order. Used
// by completeWriting and the copier to enumerate the whole image.
func (tm *TileMap) AllTiles() []*Tile {
	out := make([]*Tile, 0, tm.NumberOfTiles())
	for p := uint64(0); p < tm.planes; p++ {
		for y := uint64(0); y < tm.down; y++ {
			for x := uint64(0); x < tm.across; x++ {
				out = append(out, tm.Tile(p, x, y))
			}
		}
	}
	return out
}

// OffsetsAndByteCounts flattens the map back into parallel offset/length
// arrays in the same plane/row/column order BuildTileMap expects, for
// serializing StripOffsets/TileOffsets and StripByteCounts/TileByteCounts.
func (tm *TileMap) OffsetsAndByteCounts() (offsets, lengths []uint64) {
	tiles := tm.AllTiles()
	offsets = make([]uint64, len(tiles))
	lengths = make([]uint64, len(tiles))
	for i, tile := range tiles {
		offsets[i] = tile.Offset
		lengths[i] = tile.Length
	}
	return offsets, lengths
}
