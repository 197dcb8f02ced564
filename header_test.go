package tiffcore

import (
	"encoding/binary"
	"testing"
)

type memStream struct {
	data []byte
}

func (m *memStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || int(off) >= len(m.data) {
		return 0, nil
	}
	n := copy(p, m.data[off:])
	return n, nil
}

func (m *memStream) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(m.data) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:], p)
	return len(p), nil
}

func newMemByteStream() (*memStream, *ByteStream) {
	m := &memStream{}
	bs := NewByteStreamWriter(m, 0, binary.LittleEndian)
	return m, bs
}

func TestHeaderRoundTripClassic(t *testing.T) {
	_, bs := newMemByteStream()
	if _, err := WriteHeader(bs, binary.LittleEndian, false, 123); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	h, err := ReadHeader(bs)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.BigTIFF {
		t.Error("expected classic header")
	}
	if h.FirstIFDOffset != 123 {
		t.Errorf("FirstIFDOffset = %d, want 123", h.FirstIFDOffset)
	}
}

func TestHeaderRoundTripBigTIFF(t *testing.T) {
	_, bs := newMemByteStream()
	if _, err := WriteHeader(bs, binary.BigEndian, true, 999999); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	h, err := ReadHeader(bs)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if !h.BigTIFF {
		t.Error("expected BigTIFF header")
	}
	if h.FirstIFDOffset != 999999 {
		t.Errorf("FirstIFDOffset = %d, want 999999", h.FirstIFDOffset)
	}
}

func TestHeaderRejectsBadMagic(t *testing.T) {
	m := &memStream{data: []byte{'X', 'X', 42, 0, 0, 0, 0, 0}}
	bs := NewByteStreamReader(m, int64(len(m.data)), binary.LittleEndian)
	if _, err := ReadHeader(bs); err == nil {
		t.Error("expected error for bad magic")
	}
}

func TestHeaderRejectsShortBigTIFFFile(t *testing.T) {
	m := &memStream{data: []byte{'I', 'I', 43, 0, 8, 0, 0, 0}} // 8 bytes, needs 16
	bs := NewByteStreamReader(m, int64(len(m.data)), binary.LittleEndian)
	if _, err := ReadHeader(bs); err == nil {
		t.Error("expected error for too-short BigTIFF file")
	}
}

func TestHeaderRejectsBadBigTIFFReserved(t *testing.T) {
	_, bs := newMemByteStream()
	if _, err := WriteHeader(bs, binary.LittleEndian, true, 16); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := bs.WriteAt(6, []byte{1, 0}); err != nil {
		t.Fatalf("corrupt reserved field: %v", err)
	}
	if _, err := ReadHeader(bs); err == nil {
		t.Error("expected error for non-zero BigTIFF reserved field")
	}
}
