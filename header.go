package tiffcore

import "encoding/binary"

// HeaderSize is the size, in bytes, of a classic TIFF header (byte order
// mark, version, first-IFD offset).
const HeaderSize = 8

// BigHeaderSize is the size, in bytes, of a BigTIFF header (byte order
// mark, version, offset-size, reserved, first-IFD offset).
const BigHeaderSize = 16

// minBigTiffFileSize is the boundary named in §8's boundary behaviors: a
// BigTIFF header needs the full 16-byte preamble.
const minBigTiffFileSize = 16

// Header describes a parsed TIFF or BigTIFF file header (§4.2 "Header
// parse").
type Header struct {
	Order          binary.ByteOrder
	BigTIFF        bool
	FirstIFDOffset uint64
}

// ReadHeader parses the 8 (classic) or 16 (BigTIFF) leading bytes of a
// stream. A non-matching magic, an unrecognized version, or (for BigTIFF) a
// non-8 offset-size / non-zero reserved field all yield ErrNotTiff.
func ReadHeader(bs *ByteStream) (Header, error) {
	var h Header
	magic, err := bs.ReadAt(0, 2)
	if err != nil {
		return h, wrapErr(KindNotTiff, err, "reading magic bytes")
	}
	switch {
	case magic[0] == 'I' && magic[1] == 'I':
		h.Order = binary.LittleEndian
	case magic[0] == 'M' && magic[1] == 'M':
		h.Order = binary.BigEndian
	default:
		return h, newErr(KindNotTiff, "unrecognized byte-order mark %q", magic)
	}
	bs.SetByteOrder(h.Order)
	version, err := bs.ReadAt(2, 2)
	if err != nil {
		return h, wrapErr(KindNotTiff, err, "reading version")
	}
	switch h.Order.Uint16(version) {
	case 42:
		h.BigTIFF = false
		off, err := bs.ReadAt(4, 4)
		if err != nil {
			return h, wrapErr(KindNotTiff, err, "reading first IFD offset")
		}
		h.FirstIFDOffset = uint64(h.Order.Uint32(off))
	case 43:
		h.BigTIFF = true
		if bs.Length() < minBigTiffFileSize {
			return h, newErr(KindNotTiff, "file too short (%d bytes) to hold a BigTIFF header", bs.Length())
		}
		rest, err := bs.ReadAt(4, 12)
		if err != nil {
			return h, wrapErr(KindNotTiff, err, "reading BigTIFF preamble")
		}
		if offsetSize := h.Order.Uint16(rest[0:2]); offsetSize != 8 {
			return h, newErr(KindNotTiff, "BigTIFF offset size %d != 8", offsetSize)
		}
		if reserved := h.Order.Uint16(rest[2:4]); reserved != 0 {
			return h, newErr(KindNotTiff, "BigTIFF reserved field %d != 0", reserved)
		}
		h.FirstIFDOffset = h.Order.Uint64(rest[4:12])
	default:
		return h, newErr(KindNotTiff, "unrecognized version %d", h.Order.Uint16(version))
	}
	return h, nil
}

// WriteHeader serializes a classic or BigTIFF header at the start of bs and
// returns the number of bytes written (HeaderSize or BigHeaderSize).
func WriteHeader(bs *ByteStream, order binary.ByteOrder, bigTiff bool, firstIFDOffset uint64) (int64, error) {
	bs.SetByteOrder(order)
	var mark []byte
	if order == binary.LittleEndian {
		mark = []byte("II")
	} else {
		mark = []byte("MM")
	}
	if err := bs.WriteAt(0, mark); err != nil {
		return 0, err
	}
	if !bigTiff {
		if err := bs.WriteAt(2, putU16(order, 42)); err != nil {
			return 0, err
		}
		if err := bs.WriteAt(4, putU32(order, uint32(firstIFDOffset))); err != nil {
			return 0, err
		}
		return HeaderSize, nil
	}
	if err := bs.WriteAt(2, putU16(order, 43)); err != nil {
		return 0, err
	}
	if err := bs.WriteAt(4, putU16(order, 8)); err != nil {
		return 0, err
	}
	if err := bs.WriteAt(6, putU16(order, 0)); err != nil {
		return 0, err
	}
	if err := bs.WriteAt(8, putU64(order, firstIFDOffset)); err != nil {
		return 0, err
	}
	return BigHeaderSize, nil
}
