package tiffcore

import (
	"encoding/binary"
	"math"
)

// Field is a single IFD entry and its value data: a tagged union over the
// TIFF/BigTIFF types, modeled without reflection per §9's design note.
type Field struct {
	Tag   Tag
	Type  Type
	Count uint64
	Data  []byte
}

// Size returns the field's total data size in bytes.
func (f Field) Size() uint64 {
	return f.Type.Size() * f.Count
}

// Byte returns a BYTE field's ith element.
func (f Field) Byte(i uint64) uint8 { return f.Data[i] }

// PutByte sets a BYTE field's ith element.
func (f Field) PutByte(val uint8, i uint64) { f.Data[i] = val }

// Short returns a SHORT field's ith element.
func (f Field) Short(i uint64, order binary.ByteOrder) uint16 {
	return order.Uint16(f.Data[i*2:])
}

// PutShort sets a SHORT field's ith element.
func (f Field) PutShort(val uint16, i uint64, order binary.ByteOrder) {
	order.PutUint16(f.Data[i*2:], val)
}

// Long returns a LONG field's ith element.
func (f Field) Long(i uint64, order binary.ByteOrder) uint32 {
	return order.Uint32(f.Data[i*4:])
}

// PutLong sets a LONG field's ith element.
func (f Field) PutLong(val uint32, i uint64, order binary.ByteOrder) {
	order.PutUint32(f.Data[i*4:], val)
}

// Long8 returns a LONG8 field's ith element (BigTIFF only).
func (f Field) Long8(i uint64, order binary.ByteOrder) uint64 {
	return order.Uint64(f.Data[i*8:])
}

// PutLong8 sets a LONG8 field's ith element (BigTIFF only).
func (f Field) PutLong8(val uint64, i uint64, order binary.ByteOrder) {
	order.PutUint64(f.Data[i*8:], val)
}

// SByte returns a SBYTE field's ith element.
func (f Field) SByte(i uint64) int8 { return int8(f.Data[i]) }

// PutSByte sets a SBYTE field's ith element.
func (f Field) PutSByte(val int8, i uint64) { f.Data[i] = uint8(val) }

// SShort returns a SSHORT field's ith element.
func (f Field) SShort(i uint64, order binary.ByteOrder) int16 {
	return int16(order.Uint16(f.Data[i*2:]))
}

// PutSShort sets a SSHORT field's ith element.
func (f Field) PutSShort(val int16, i uint64, order binary.ByteOrder) {
	order.PutUint16(f.Data[i*2:], uint16(val))
}

// SLong returns a SLONG field's ith element.
func (f Field) SLong(i uint64, order binary.ByteOrder) int32 {
	return int32(order.Uint32(f.Data[i*4:]))
}

// PutSLong sets a SLONG field's ith element.
func (f Field) PutSLong(val int32, i uint64, order binary.ByteOrder) {
	order.PutUint32(f.Data[i*4:], uint32(val))
}

// SLong8 returns a SLONG8 field's ith element (BigTIFF only).
func (f Field) SLong8(i uint64, order binary.ByteOrder) int64 {
	return int64(order.Uint64(f.Data[i*8:]))
}

// PutSLong8 sets a SLONG8 field's ith element (BigTIFF only).
func (f Field) PutSLong8(val int64, i uint64, order binary.ByteOrder) {
	order.PutUint64(f.Data[i*8:], uint64(val))
}

// AnyInteger returns an integral-valued field's ith element, widened to
// int64 regardless of its concrete type.
func (f Field) AnyInteger(i uint64, order binary.ByteOrder) int64 {
	switch f.Type {
	case BYTE:
		return int64(f.Byte(i))
	case SHORT:
		return int64(f.Short(i, order))
	case LONG:
		return int64(f.Long(i, order))
	case LONG8:
		return int64(f.Long8(i, order))
	case SBYTE:
		return int64(f.SByte(i))
	case SSHORT:
		return int64(f.SShort(i, order))
	case SLONG:
		return int64(f.SLong(i, order))
	case SLONG8:
		return f.SLong8(i, order)
	}
	panic("Field.AnyInteger called with non-integral type")
}

// PutAnyInteger sets an integral-valued field's ith element.
func (f Field) PutAnyInteger(val int64, i uint64, order binary.ByteOrder) {
	switch f.Type {
	case BYTE:
		f.PutByte(uint8(val), i)
	case SHORT:
		f.PutShort(uint16(val), i, order)
	case LONG:
		f.PutLong(uint32(val), i, order)
	case LONG8:
		f.PutLong8(uint64(val), i, order)
	case SBYTE:
		f.PutSByte(int8(val), i)
	case SSHORT:
		f.PutSShort(int16(val), i, order)
	case SLONG:
		f.PutSLong(int32(val), i, order)
	case SLONG8:
		f.PutSLong8(val, i, order)
	default:
		panic("Field.PutAnyInteger called with non-integral type")
	}
}

// AnyUnsigned returns an integral-valued field's ith element widened to
// uint64, for use as an offset or count. Panics on a signed field type.
func (f Field) AnyUnsigned(i uint64, order binary.ByteOrder) uint64 {
	switch f.Type {
	case BYTE:
		return uint64(f.Byte(i))
	case SHORT:
		return uint64(f.Short(i, order))
	case LONG:
		return uint64(f.Long(i, order))
	case LONG8:
		return f.Long8(i, order)
	}
	panic("Field.AnyUnsigned called with non-unsigned-integral type")
}

// Rational returns a RATIONAL field's ith element.
func (f Field) Rational(i uint64, order binary.ByteOrder) (uint32, uint32) {
	return order.Uint32(f.Data[i*8:]), order.Uint32(f.Data[i*8+4:])
}

// PutRational sets a RATIONAL field's ith element.
func (f Field) PutRational(n, d uint32, i uint64, order binary.ByteOrder) {
	order.PutUint32(f.Data[i*8:], n)
	order.PutUint32(f.Data[i*8+4:], d)
}

// SRational returns a SRATIONAL field's ith element.
func (f Field) SRational(i uint64, order binary.ByteOrder) (int32, int32) {
	return int32(order.Uint32(f.Data[i*8:])), int32(order.Uint32(f.Data[i*8+4:]))
}

// PutSRational sets a SRATIONAL field's ith element.
func (f Field) PutSRational(n, d int32, i uint64, order binary.ByteOrder) {
	order.PutUint32(f.Data[i*8:], uint32(n))
	order.PutUint32(f.Data[i*8+4:], uint32(d))
}

// Float returns a FLOAT field's ith element.
func (f Field) Float(i uint64, order binary.ByteOrder) float32 {
	return math.Float32frombits(order.Uint32(f.Data[i*4:]))
}

// PutFloat sets a FLOAT field's ith element.
func (f Field) PutFloat(val float32, i uint64, order binary.ByteOrder) {
	order.PutUint32(f.Data[i*4:], math.Float32bits(val))
}

// Double returns a DOUBLE field's ith element.
func (f Field) Double(i uint64, order binary.ByteOrder) float64 {
	return math.Float64frombits(order.Uint64(f.Data[i*8:]))
}

// PutDouble sets a DOUBLE field's ith element.
func (f Field) PutDouble(val float64, i uint64, order binary.ByteOrder) {
	order.PutUint64(f.Data[i*8:], math.Float64bits(val))
}

// AnyFloat returns a floating point field's ith element widened to float64.
func (f Field) AnyFloat(i uint64, order binary.ByteOrder) float64 {
	switch f.Type {
	case FLOAT:
		return float64(f.Float(i, order))
	case DOUBLE:
		return f.Double(i, order)
	}
	panic("Field.AnyFloat called with non-float type")
}

// ASCII returns an ASCII field's data as a string, omitting a trailing NUL
// if present but retaining any embedded NULs.
func (f Field) ASCII() string {
	if len(f.Data) > 0 && f.Data[len(f.Data)-1] == 0 {
		return string(f.Data[:len(f.Data)-1])
	}
	return string(f.Data)
}

// PutASCII sets a field's data from a string plus a trailing NUL,
// reallocating Data and updating Count.
func (f *Field) PutASCII(val string) {
	f.Type = ASCII
	f.Count = uint64(len(val)) + 1
	f.Data = make([]byte, f.Count)
	copy(f.Data, val)
}

// FirstUnsigned is a convenience for reading the first (often only) element
// of an integral field, returning 0 if the field is absent. Callers
// typically obtain f via IFDTable.Find.
func (f *Field) FirstUnsigned(order binary.ByteOrder) uint64 {
	if f == nil || f.Count == 0 {
		return 0
	}
	return f.AnyUnsigned(0, order)
}
