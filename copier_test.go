package tiffcore

import (
	"encoding/binary"
	"testing"
)

func buildSourceFile(t *testing.T) *ByteStream {
	t.Helper()
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
	return bs
}

func TestCopierDirectCopyPreservesPixels(t *testing.T) {
	srcStream := buildSourceFile(t)
	srcReader, err := NewReader(srcStream, StrictOpen, nil)
	if err != nil {
		t.Fatalf("NewReader(src): %v", err)
	}

	_, dstBs := newMemByteStream()
	dstWriter, err := NewWriter(dstBs, WriterOptions{ByteOrder: binary.LittleEndian}, nil)
	if err != nil {
		t.Fatalf("NewWriter(dst): %v", err)
	}

	copier := NewCopier(srcReader, dstWriter, nil)
	if err := copier.CopyAll(0, -1, CopyOptions{}); err != nil {
		t.Fatalf("CopyAll: %v", err)
	}

	dstReader, err := NewReader(dstBs, StrictOpen, nil)
	if err != nil {
		t.Fatalf("NewReader(dst): %v", err)
	}
	ifds, err := dstReader.AllIFDs()
	if err != nil {
		t.Fatalf("AllIFDs: %v", err)
	}
	if len(ifds) != 1 {
		t.Fatalf("got %d IFDs, want 1", len(ifds))
	}
	region := Rect{X: 0, Y: 0, W: 2, H: 2}
	out, err := dstReader.ReadRegion(0, 0, region, 0, false)
	if err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("byte %d = %d, want %d", i, out[i], w)
		}
	}
}

func TestCopierForcedRepackPreservesPixels(t *testing.T) {
	srcStream := buildSourceFile(t)
	srcReader, err := NewReader(srcStream, StrictOpen, nil)
	if err != nil {
		t.Fatalf("NewReader(src): %v", err)
	}

	_, dstBs := newMemByteStream()
	dstWriter, err := NewWriter(dstBs, WriterOptions{ByteOrder: binary.LittleEndian}, nil)
	if err != nil {
		t.Fatalf("NewWriter(dst): %v", err)
	}

	copier := NewCopier(srcReader, dstWriter, nil)
	if err := copier.CopyAll(0, -1, CopyOptions{Repack: true}); err != nil {
		t.Fatalf("CopyAll(Repack): %v", err)
	}

	dstReader, err := NewReader(dstBs, StrictOpen, nil)
	if err != nil {
		t.Fatalf("NewReader(dst): %v", err)
	}
	region := Rect{X: 0, Y: 0, W: 2, H: 2}
	out, err := dstReader.ReadRegion(0, 0, region, 0, false)
	if err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("byte %d = %d, want %d", i, out[i], w)
		}
	}
}

func TestCopierProgressCallbackInvoked(t *testing.T) {
	srcStream := buildSourceFile(t)
	srcReader, err := NewReader(srcStream, StrictOpen, nil)
	if err != nil {
		t.Fatalf("NewReader(src): %v", err)
	}
	_, dstBs := newMemByteStream()
	dstWriter, err := NewWriter(dstBs, WriterOptions{ByteOrder: binary.LittleEndian}, nil)
	if err != nil {
		t.Fatalf("NewWriter(dst): %v", err)
	}
	copier := NewCopier(srcReader, dstWriter, nil)
	calls := 0
	opts := CopyOptions{Progress: func(imageIndex, imageCount, tileIndex, tileCount int, lastTile bool) {
		calls++
	}}
	if err := copier.CopyAll(0, -1, opts); err != nil {
		t.Fatalf("CopyAll: %v", err)
	}
	if calls == 0 {
		t.Error("expected Progress callback to be invoked at least once")
	}
}

func TestCopiedFieldsDropsOffsetAndByteCountTags(t *testing.T) {
	srcStream := buildSourceFile(t)
	srcReader, err := NewReader(srcStream, StrictOpen, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := srcReader.AllIFDs(); err != nil {
		t.Fatalf("AllIFDs: %v", err)
	}
	c := &Copier{src: srcReader}
	fields := c.copiedFields(0, false)
	for _, f := range fields {
		if f.Tag == StripOffsets || f.Tag == StripByteCounts {
			t.Errorf("copiedFields retained %s, expected it dropped", f.Tag.Name())
		}
	}
}
