package tiffcore

import (
	"encoding/binary"
	"testing"
)

func uintArrayFieldForTest(tag Tag, values []uint64) Field {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(v))
	}
	return Field{Tag: tag, Type: LONG, Count: uint64(len(values)), Data: data}
}

func stripLayout(dimX, dimY, tileW, tileH uint64) ImageLayout {
	return ImageLayout{
		DimX: dimX, DimY: dimY, Tiled: false, TileW: tileW, TileH: tileH,
		SamplesPerPixel: 1, BitsPerSample: []uint64{8},
		Planar: PlanarChunky, Order: binary.LittleEndian,
	}
}

func TestBuildTileMapRejectsMismatchedArrayLength(t *testing.T) {
	var table IFDTable
	table.AddFields([]Field{
		uintArrayFieldForTest(StripOffsets, []uint64{100}),
		uintArrayFieldForTest(StripByteCounts, []uint64{50}),
	})
	layout := stripLayout(17, 20, 17, 10) // expects 2 strips, got 1
	if _, err := BuildTileMap(&table, layout, binary.LittleEndian); err == nil {
		t.Error("expected error for mismatched strip array length")
	}
}

func TestBuildTileMapPopulatesRowMajorOrder(t *testing.T) {
	var table IFDTable
	table.AddFields([]Field{
		uintArrayFieldForTest(StripOffsets, []uint64{100, 200}),
		uintArrayFieldForTest(StripByteCounts, []uint64{50, 60}),
	})
	layout := stripLayout(17, 20, 17, 10)
	tm, err := BuildTileMap(&table, layout, binary.LittleEndian)
	if err != nil {
		t.Fatalf("BuildTileMap: %v", err)
	}
	if tm.NumberOfTiles() != 2 {
		t.Fatalf("NumberOfTiles = %d, want 2", tm.NumberOfTiles())
	}
	top := tm.Tile(0, 0, 0)
	bottom := tm.Tile(0, 0, 1)
	if top == nil || bottom == nil {
		t.Fatal("expected both strips present")
	}
	if top.Offset != 100 || top.Length != 50 {
		t.Errorf("top strip = (%d,%d), want (100,50)", top.Offset, top.Length)
	}
	if bottom.Offset != 200 || bottom.Length != 60 {
		t.Errorf("bottom strip = (%d,%d), want (200,60)", bottom.Offset, bottom.Length)
	}
}

func TestActualRectangleClipsLastTile(t *testing.T) {
	layout := ImageLayout{
		DimX: 129, DimY: 130, Tiled: true, TileW: 64, TileH: 64,
		SamplesPerPixel: 1, BitsPerSample: []uint64{8},
		Planar: PlanarChunky, Order: binary.LittleEndian,
	}
	tm := NewTileMap(layout)
	if tm.TilesAcross() != 3 || tm.TilesDown() != 3 {
		t.Fatalf("grid = %dx%d, want 3x3", tm.TilesAcross(), tm.TilesDown())
	}
	last := tm.Tile(0, 2, 2)
	if last == nil {
		t.Fatal("expected last tile present")
	}
	rect := tm.ActualRectangle(last)
	// 129 - 2*64 = 1, 130 - 2*64 = 2
	if rect.W != 1 || rect.H != 2 {
		t.Errorf("ActualRectangle(last) = %dx%d, want 1x2 (clamped to image edge)", rect.W, rect.H)
	}
	full := tm.ActualRectangle(tm.Tile(0, 0, 0))
	if full.W != 64 || full.H != 64 {
		t.Errorf("ActualRectangle(first) = %dx%d, want 64x64 (full nominal tile)", full.W, full.H)
	}
}

func TestTilesIntersectingClipsToGrid(t *testing.T) {
	layout := ImageLayout{
		DimX: 129, DimY: 130, Tiled: true, TileW: 64, TileH: 64,
		SamplesPerPixel: 1, BitsPerSample: []uint64{8},
		Planar: PlanarChunky, Order: binary.LittleEndian,
	}
	tm := NewTileMap(layout)
	region := Rect{X: 100, Y: 100, W: 50, H: 50} // extends past image bounds
	tiles := tm.TilesIntersecting(0, region)
	for _, tile := range tiles {
		if tile.X >= tm.TilesAcross() || tile.Y >= tm.TilesDown() {
			t.Errorf("tile (%d,%d) outside grid %dx%d", tile.X, tile.Y, tm.TilesAcross(), tm.TilesDown())
		}
	}
	if len(tiles) == 0 {
		t.Error("expected at least one intersecting tile")
	}
}

func TestHasUnsetTrueForFreshMap(t *testing.T) {
	layout := stripLayout(10, 10, 10, 10)
	tm := NewTileMap(layout)
	if !tm.HasUnset() {
		t.Error("expected HasUnset true for a fresh map with no tiles written")
	}
}

func TestHasUnsetFalseOncePopulated(t *testing.T) {
	var table IFDTable
	table.AddFields([]Field{
		uintArrayFieldForTest(StripOffsets, []uint64{100}),
		uintArrayFieldForTest(StripByteCounts, []uint64{50}),
	})
	layout := stripLayout(10, 10, 10, 10)
	tm, err := BuildTileMap(&table, layout, binary.LittleEndian)
	if err != nil {
		t.Fatalf("BuildTileMap: %v", err)
	}
	if tm.HasUnset() {
		t.Error("expected HasUnset false once every tile has a non-zero offset and no Unset rects")
	}
}

func TestOffsetsAndByteCountsRoundTripsThroughBuildTileMap(t *testing.T) {
	var table IFDTable
	table.AddFields([]Field{
		uintArrayFieldForTest(StripOffsets, []uint64{10, 20, 30}),
		uintArrayFieldForTest(StripByteCounts, []uint64{1, 2, 3}),
	})
	layout := stripLayout(10, 30, 10, 10)
	tm, err := BuildTileMap(&table, layout, binary.LittleEndian)
	if err != nil {
		t.Fatalf("BuildTileMap: %v", err)
	}
	offsets, lengths := tm.OffsetsAndByteCounts()
	wantOffsets := []uint64{10, 20, 30}
	wantLengths := []uint64{1, 2, 3}
	for i := range wantOffsets {
		if offsets[i] != wantOffsets[i] || lengths[i] != wantLengths[i] {
			t.Errorf("tile %d = (%d,%d), want (%d,%d)", i, offsets[i], lengths[i], wantOffsets[i], wantLengths[i])
		}
	}
}
