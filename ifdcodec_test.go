package tiffcore

import (
	"encoding/binary"
	"testing"
)

func buildSimpleTable() IFDTable {
	var t IFDTable
	var w, h Field
	w.Type, w.Count, w.Data = LONG, 1, make([]byte, 4)
	binary.LittleEndian.PutUint32(w.Data, 64)
	w.Tag = ImageWidth
	h.Type, h.Count, h.Data = LONG, 1, make([]byte, 4)
	binary.LittleEndian.PutUint32(h.Data, 48)
	h.Tag = ImageLength
	t.AddFields([]Field{w, h})
	return t
}

func TestWriteReadIFDRoundTripClassic(t *testing.T) {
	_, bs := newMemByteStream()
	table := buildSimpleTable()
	end, err := WriteIFD(bs, binary.LittleEndian, false, table, 8, 0)
	if err != nil {
		t.Fatalf("WriteIFD: %v", err)
	}
	if end <= 8 {
		t.Fatalf("WriteIFD returned end %d <= start 8", end)
	}
	got, next, err := ReadIFD(bs, binary.LittleEndian, false, 8)
	if err != nil {
		t.Fatalf("ReadIFD: %v", err)
	}
	if next != 0 {
		t.Errorf("next = %d, want 0", next)
	}
	if len(got.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(got.Fields))
	}
	if got.FirstUnsigned(ImageWidth, binary.LittleEndian, 0) != 64 {
		t.Errorf("ImageWidth = %d, want 64", got.FirstUnsigned(ImageWidth, binary.LittleEndian, 0))
	}
	if got.FirstUnsigned(ImageLength, binary.LittleEndian, 0) != 48 {
		t.Errorf("ImageLength = %d, want 48", got.FirstUnsigned(ImageLength, binary.LittleEndian, 0))
	}
}

func TestWriteReadIFDRoundTripBigTIFF(t *testing.T) {
	_, bs := newMemByteStream()
	table := buildSimpleTable()
	if _, err := WriteIFD(bs, binary.BigEndian, true, table, 16, 0); err != nil {
		t.Fatalf("WriteIFD: %v", err)
	}
	got, _, err := ReadIFD(bs, binary.BigEndian, true, 16)
	if err != nil {
		t.Fatalf("ReadIFD: %v", err)
	}
	if got.FirstUnsigned(ImageWidth, binary.BigEndian, 0) != 64 {
		t.Errorf("ImageWidth mismatch in BigTIFF round trip")
	}
}

func TestWriteIFDRejectsUnsortedFields(t *testing.T) {
	_, bs := newMemByteStream()
	table := IFDTable{Fields: []Field{
		{Tag: ImageLength, Type: LONG, Count: 1, Data: make([]byte, 4)},
		{Tag: ImageWidth, Type: LONG, Count: 1, Data: make([]byte, 4)},
	}}
	if _, err := WriteIFD(bs, binary.LittleEndian, false, table, 8, 0); err == nil {
		t.Error("expected error for out-of-order tags")
	}
}

func TestReadIFDChainDetectsCycle(t *testing.T) {
	_, bs := newMemByteStream()
	table := buildSimpleTable()
	// Point the IFD's next-pointer at itself to create a one-node cycle.
	if _, err := WriteIFD(bs, binary.LittleEndian, false, table, 8, 8); err != nil {
		t.Fatalf("WriteIFD: %v", err)
	}
	_, _, err := ReadIFDChain(bs, binary.LittleEndian, false, 8)
	if err == nil {
		t.Fatal("expected cycle detection error")
	}
	te, ok := err.(*Error)
	if !ok || te.Kind != KindMalformedIFD {
		t.Errorf("got error %v, want KindMalformedIFD", err)
	}
}

func TestReadIFDChainWalksMultipleIFDs(t *testing.T) {
	_, bs := newMemByteStream()
	table := buildSimpleTable()
	secondOffset, err := WriteIFD(bs, binary.LittleEndian, false, table, 8, 0)
	if err != nil {
		t.Fatalf("WriteIFD first: %v", err)
	}
	if _, err := WriteIFD(bs, binary.LittleEndian, false, table, 8, secondOffset); err != nil {
		t.Fatalf("patching first IFD's next pointer: %v", err)
	}
	if _, err := WriteIFD(bs, binary.LittleEndian, false, table, secondOffset, 0); err != nil {
		t.Fatalf("WriteIFD second: %v", err)
	}
	tables, offsets, err := ReadIFDChain(bs, binary.LittleEndian, false, 8)
	if err != nil {
		t.Fatalf("ReadIFDChain: %v", err)
	}
	if len(tables) != 2 || len(offsets) != 2 {
		t.Fatalf("got %d IFDs, want 2", len(tables))
	}
}

func TestReadIFDRejectsBigTIFFTypeInClassicFile(t *testing.T) {
	_, bs := newMemByteStream()
	// Hand-assemble one raw classic-format entry: count=1, tag=ImageWidth,
	// type=LONG8 (BigTIFF-only), count=1, inline value, next-pointer=0.
	entry := make([]byte, 2+12+4)
	binary.LittleEndian.PutUint16(entry[0:2], 1)
	binary.LittleEndian.PutUint16(entry[2:4], uint16(ImageWidth))
	binary.LittleEndian.PutUint16(entry[4:6], uint16(LONG8))
	binary.LittleEndian.PutUint32(entry[6:10], 1)
	binary.LittleEndian.PutUint32(entry[10:14], 64)
	if err := bs.WriteAt(8, entry); err != nil {
		t.Fatalf("writing raw entry: %v", err)
	}
	if _, _, err := ReadIFD(bs, binary.LittleEndian, false, 8); err == nil {
		t.Error("expected error reading a BigTIFF-only type as classic")
	}
}
