package tiffcore

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func rgbWriterFields(w, h uint64) ([]Field, ImageLayout) {
	fields := []Field{
		tagField(ImageWidth, LONG, uint32(w)),
		tagField(ImageLength, LONG, uint32(h)),
		shortArrayFieldForTest(BitsPerSample, []uint16{8, 8, 8}),
		tagField(CompressionTag, SHORT, uint32(CompNone)),
		tagField(PhotometricInterpretation, SHORT, uint32(PhotoRGB)),
		tagField(SamplesPerPixel, SHORT, 3),
		tagField(RowsPerStrip, LONG, uint32(h)),
	}
	layout := ImageLayout{
		DimX: w, DimY: h, Tiled: false, TileW: w, TileH: h,
		SamplesPerPixel: 3, BitsPerSample: []uint64{8, 8, 8},
		SampleFormat: []SampleFormat{SampleUint, SampleUint, SampleUint},
		Planar:       PlanarChunky, Photometric: PhotoRGB,
		Compression: CompNone, Predictor: PredictorNone,
		FillOrder: 1, Order: binary.LittleEndian,
	}
	return fields, layout
}

func TestWriterNewMapWriteTileCompleteRoundTrip(t *testing.T) {
	_, bs := newMemByteStream()
	writer, err := NewWriter(bs, WriterOptions{ByteOrder: binary.LittleEndian}, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	fields, layout := rgbWriterFields(2, 2)
	tm, err := writer.NewMap(fields, layout)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	pixels := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if err := writer.WriteTile(tm.Tile(0, 0, 0), pixels); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}
	if err := writer.CompleteWriting(); err != nil {
		t.Fatalf("CompleteWriting: %v", err)
	}

	reader, err := NewReader(bs, StrictOpen, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	ifds, err := reader.AllIFDs()
	if err != nil {
		t.Fatalf("AllIFDs: %v", err)
	}
	if len(ifds) != 1 {
		t.Fatalf("got %d IFDs, want 1", len(ifds))
	}
	region := Rect{X: 0, Y: 0, W: 2, H: 2}
	out, err := reader.ReadRegion(0, 0, region, 0, false)
	if err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	if !bytes.Equal(out, pixels) {
		t.Errorf("round trip = %v, want %v", out, pixels)
	}
}

func TestWriterNewMapRejectsWrongState(t *testing.T) {
	_, bs := newMemByteStream()
	writer, err := NewWriter(bs, WriterOptions{ByteOrder: binary.LittleEndian}, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	fields, layout := rgbWriterFields(2, 2)
	if _, err := writer.NewMap(fields, layout); err != nil {
		t.Fatalf("first NewMap: %v", err)
	}
	// Still in MAPPED state (CompleteWriting not yet called): a second
	// NewMap call is not one of the three states NewMap accepts.
	if _, err := writer.NewMap(fields, layout); err == nil {
		t.Error("expected error calling NewMap again while still in MAPPED state")
	}
}

func TestWriterEncodeTileThenPlaceTileMatchesWriteTile(t *testing.T) {
	_, bs := newMemByteStream()
	writer, err := NewWriter(bs, WriterOptions{ByteOrder: binary.LittleEndian}, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	fields, layout := rgbWriterFields(1, 1)
	tm, err := writer.NewMap(fields, layout)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	pixels := []byte{42, 43, 44}
	tile := tm.Tile(0, 0, 0)
	encoded, err := writer.EncodeTile(tile, pixels)
	if err != nil {
		t.Fatalf("EncodeTile: %v", err)
	}
	if !bytes.Equal(encoded, pixels) {
		t.Errorf("EncodeTile with CompNone/no predictor should be identity, got %v want %v", encoded, pixels)
	}
	if err := writer.PlaceTile(tile, encoded); err != nil {
		t.Fatalf("PlaceTile: %v", err)
	}
	if err := writer.CompleteWriting(); err != nil {
		t.Fatalf("CompleteWriting: %v", err)
	}
}

func TestWriterCompleteWritingRejectsWrongState(t *testing.T) {
	_, bs := newMemByteStream()
	writer, err := NewWriter(bs, WriterOptions{ByteOrder: binary.LittleEndian}, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := writer.CompleteWriting(); err == nil {
		t.Error("expected error calling CompleteWriting before any NewMap")
	}
}

func TestOpenAppendingAddsSecondIFD(t *testing.T) {
	_, bs := newMemByteStream()
	writer, err := NewWriter(bs, WriterOptions{ByteOrder: binary.LittleEndian}, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	fields, layout := rgbWriterFields(1, 1)
	tm, err := writer.NewMap(fields, layout)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	if err := writer.WriteTile(tm.Tile(0, 0, 0), []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}
	if err := writer.CompleteWriting(); err != nil {
		t.Fatalf("CompleteWriting: %v", err)
	}

	appender, err := OpenAppending(bs, nil)
	if err != nil {
		t.Fatalf("OpenAppending: %v", err)
	}
	fields2, layout2 := rgbWriterFields(1, 1)
	tm2, err := appender.NewMap(fields2, layout2)
	if err != nil {
		t.Fatalf("NewMap on appender: %v", err)
	}
	if err := appender.WriteTile(tm2.Tile(0, 0, 0), []byte{9, 9, 9}); err != nil {
		t.Fatalf("WriteTile on appender: %v", err)
	}
	if err := appender.CompleteWriting(); err != nil {
		t.Fatalf("CompleteWriting on appender: %v", err)
	}

	reader, err := NewReader(bs, StrictOpen, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	ifds, err := reader.AllIFDs()
	if err != nil {
		t.Fatalf("AllIFDs: %v", err)
	}
	if len(ifds) != 2 {
		t.Fatalf("got %d IFDs after append, want 2", len(ifds))
	}
}

func TestRewriteDescriptionUpdatesTag(t *testing.T) {
	_, bs := newMemByteStream()
	writer, err := NewWriter(bs, WriterOptions{ByteOrder: binary.LittleEndian}, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	fields, layout := rgbWriterFields(1, 1)
	tm, err := writer.NewMap(fields, layout)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	if err := writer.WriteTile(tm.Tile(0, 0, 0), []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}
	if err := writer.CompleteWriting(); err != nil {
		t.Fatalf("CompleteWriting: %v", err)
	}
	if err := writer.RewriteDescription(0, "updated by test"); err != nil {
		t.Fatalf("RewriteDescription: %v", err)
	}

	reader, err := NewReader(bs, StrictOpen, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	ifds, err := reader.AllIFDs()
	if err != nil {
		t.Fatalf("AllIFDs: %v", err)
	}
	desc := ifds[0].Find(ImageDescription)
	if desc == nil {
		t.Fatal("expected ImageDescription tag after RewriteDescription")
	}
	if got := desc.ASCII(); got != "updated by test" {
		t.Errorf("ImageDescription = %q, want %q", got, "updated by test")
	}
}
