package tiffcore

import (
	"encoding/binary"
	"io"
)

// ByteStream is a random-access read/write cursor over a file or memory
// region, with a switchable byte order. Per §4.1/§3, it is single-owner:
// the Reader or Writer that opened it serializes its writes and its
// cursor-based calls. ReadAt keeps no cursor state and is called
// concurrently by the Copier's repack workers; the other calls are not
// safe for concurrent use without external serialization.
type ByteStream struct {
	rw    io.ReaderAt
	wa    io.WriterAt // nil for read-only streams
	order binary.ByteOrder
	pos   int64
	size  int64
}

// NewByteStreamReader wraps a read-only random-access source of the given
// length.
func NewByteStreamReader(r io.ReaderAt, size int64, order binary.ByteOrder) *ByteStream {
	return &ByteStream{rw: r, order: order, size: size}
}

// NewByteStreamWriter wraps a read/write random-access source of the given
// length.
func NewByteStreamWriter(rw interface {
	io.ReaderAt
	io.WriterAt
}, size int64, order binary.ByteOrder) *ByteStream {
	return &ByteStream{rw: rw, wa: rw, order: order, size: size}
}

// SetByteOrder switches the byte order used by subsequent multi-byte reads
// and writes.
func (bs *ByteStream) SetByteOrder(order binary.ByteOrder) { bs.order = order }

// ByteOrder returns the current byte order.
func (bs *ByteStream) ByteOrder() binary.ByteOrder { return bs.order }

// Length returns the current known size of the stream.
func (bs *ByteStream) Length() int64 { return bs.size }

// Seek moves the cursor. Per §4.1, reads may never start past the end of
// the stream, but a writer may seek to Length() in order to append.
func (bs *ByteStream) Seek(pos int64) error {
	if pos < 0 || pos > bs.size {
		return newErr(KindIoError, "seek to %d outside stream of length %d", pos, bs.size)
	}
	bs.pos = pos
	return nil
}

// Position returns the current cursor position.
func (bs *ByteStream) Position() int64 { return bs.pos }

func (bs *ByteStream) readAt(p []byte, off int64) error {
	if off < 0 || off+int64(len(p)) > bs.size {
		return newErr(KindIoError, "read of %d bytes at %d truncated by stream length %d", len(p), off, bs.size)
	}
	n, err := bs.rw.ReadAt(p, off)
	if n != len(p) {
		cause := err
		if cause == nil {
			cause = io.ErrUnexpectedEOF
		}
		return wrapErr(KindIoError, cause, "short read at %d", off)
	}
	return nil
}

// ReadBytes reads n bytes at the current cursor and advances it.
func (bs *ByteStream) ReadBytes(n int) ([]byte, error) {
	p := make([]byte, n)
	if err := bs.readAt(p, bs.pos); err != nil {
		return nil, err
	}
	bs.pos += int64(n)
	return p, nil
}

// ReadAt reads n bytes at an absolute offset without moving the cursor.
func (bs *ByteStream) ReadAt(offset int64, n int) ([]byte, error) {
	p := make([]byte, n)
	if err := bs.readAt(p, offset); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadU8 reads one byte at the cursor.
func (bs *ByteStream) ReadU8() (uint8, error) {
	p, err := bs.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// ReadU16 reads a 16-bit value at the cursor, honoring the current byte order.
func (bs *ByteStream) ReadU16() (uint16, error) {
	p, err := bs.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return bs.order.Uint16(p), nil
}

// ReadU32 reads a 32-bit value at the cursor, honoring the current byte order.
func (bs *ByteStream) ReadU32() (uint32, error) {
	p, err := bs.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return bs.order.Uint32(p), nil
}

// ReadU64 reads a 64-bit value at the cursor, honoring the current byte order.
func (bs *ByteStream) ReadU64() (uint64, error) {
	p, err := bs.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return bs.order.Uint64(p), nil
}

// WriteBytes writes p at the current cursor, extending the stream if the
// cursor is at or past the current end, and advances the cursor.
func (bs *ByteStream) WriteBytes(p []byte) error {
	if bs.wa == nil {
		return newErr(KindIoError, "WriteBytes called on a read-only ByteStream")
	}
	n, err := bs.wa.WriteAt(p, bs.pos)
	if n != len(p) {
		cause := err
		if cause == nil {
			cause = io.ErrShortWrite
		}
		return wrapErr(KindIoError, cause, "short write at %d", bs.pos)
	}
	if bs.pos+int64(len(p)) > bs.size {
		bs.size = bs.pos + int64(len(p))
	}
	bs.pos += int64(len(p))
	return nil
}

// WriteAt writes p at an absolute offset without moving the cursor.
func (bs *ByteStream) WriteAt(offset int64, p []byte) error {
	if bs.wa == nil {
		return newErr(KindIoError, "WriteAt called on a read-only ByteStream")
	}
	n, err := bs.wa.WriteAt(p, offset)
	if n != len(p) {
		cause := err
		if cause == nil {
			cause = io.ErrShortWrite
		}
		return wrapErr(KindIoError, cause, "short write at %d", offset)
	}
	if offset+int64(len(p)) > bs.size {
		bs.size = offset + int64(len(p))
	}
	return nil
}

// AppendAtEnd seeks to the end of the stream and writes p there, returning
// the offset at which it was written.
func (bs *ByteStream) AppendAtEnd(p []byte) (int64, error) {
	offset := bs.size
	if err := bs.WriteAt(offset, p); err != nil {
		return 0, err
	}
	return offset, nil
}

func putU16(order binary.ByteOrder, val uint16) []byte {
	p := make([]byte, 2)
	order.PutUint16(p, val)
	return p
}

func putU32(order binary.ByteOrder, val uint32) []byte {
	p := make([]byte, 4)
	order.PutUint32(p, val)
	return p
}

func putU64(order binary.ByteOrder, val uint64) []byte {
	p := make([]byte, 8)
	order.PutUint64(p, val)
	return p
}

// WriteU16 writes a 16-bit value at the cursor.
func (bs *ByteStream) WriteU16(val uint16) error { return bs.WriteBytes(putU16(bs.order, val)) }

// WriteU32 writes a 32-bit value at the cursor.
func (bs *ByteStream) WriteU32(val uint32) error { return bs.WriteBytes(putU32(bs.order, val)) }

// WriteU64 writes a 64-bit value at the cursor.
func (bs *ByteStream) WriteU64(val uint64) error { return bs.WriteBytes(putU64(bs.order, val)) }
