package tiffcore

import (
	"encoding/binary"
	"sort"
)

// IFDTable is an ordered mapping from tag code to typed value: the
// in-memory form of an Image File Directory (§3, §4.2). Generalizes the
// teacher's IFD_T to both classic TIFF and BigTIFF by keeping Count and
// all derived sizes as uint64 throughout, narrowing only at the wire
// boundary.
type IFDTable struct {
	Fields []Field
}

// entryWidth returns the serialized width of one IFD entry: 12 bytes for
// classic TIFF, 20 for BigTIFF (§4.2/§6).
func entryWidth(bigTiff bool) uint64 {
	if bigTiff {
		return 20
	}
	return 12
}

// TableSize returns sizeOfIFDTable(): the serialized size of the entry
// array plus count and next-pointer fields, excluding any external value
// data (§4.3 "Size queries").
func (t IFDTable) TableSize(bigTiff bool) uint64 {
	countWidth, nextWidth := uint64(2), uint64(4)
	if bigTiff {
		countWidth, nextWidth = 8, 8
	}
	return countWidth + entryWidth(bigTiff)*uint64(len(t.Fields)) + nextWidth
}

// ExternalSize returns the total byte size of value payloads that do not
// fit inline in an entry slot (4 bytes classic, 8 BigTIFF).
func (t IFDTable) ExternalSize(bigTiff bool) uint64 {
	inlineWidth := uint64(4)
	if bigTiff {
		inlineWidth = 8
	}
	var total uint64
	for _, f := range t.Fields {
		if size := f.Size(); size > inlineWidth {
			total += size
		}
	}
	return total
}

// Find returns a pointer to the first field with the given tag, or nil.
func (t *IFDTable) Find(tag Tag) *Field {
	for i := range t.Fields {
		if t.Fields[i].Tag == tag {
			return &t.Fields[i]
		}
	}
	return nil
}

// FindAll returns pointers to every field matching any of the given tags,
// preserving the table's field order.
func (t *IFDTable) FindAll(tags []Tag) []*Field {
	fields := make([]*Field, 0, len(tags))
	for i := range t.Fields {
		for _, tag := range tags {
			if t.Fields[i].Tag == tag {
				fields = append(fields, &t.Fields[i])
			}
		}
	}
	return fields
}

// AddFields appends fields to the table and re-sorts by ascending tag, as
// required before serialization (§4.3 "Field ordering").
func (t *IFDTable) AddFields(fields []Field) {
	t.Fields = append(t.Fields, fields...)
	sort.Slice(t.Fields, func(i, j int) bool { return t.Fields[i].Tag < t.Fields[j].Tag })
}

// Set replaces (or appends) a single field by tag and keeps the table sorted.
func (t *IFDTable) Set(f Field) {
	for i := range t.Fields {
		if t.Fields[i].Tag == f.Tag {
			t.Fields[i] = f
			return
		}
	}
	t.AddFields([]Field{f})
}

// DeleteFields removes every field whose tag is in tags.
func (t *IFDTable) DeleteFields(tags []Tag) {
	kept := t.Fields[:0]
	for _, f := range t.Fields {
		drop := false
		for _, tag := range tags {
			if f.Tag == tag {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, f)
		}
	}
	t.Fields = kept
}

// UnsignedArray reads an integral field's full value array as uint64s, or
// nil if the tag is absent.
func (t *IFDTable) UnsignedArray(tag Tag, order binary.ByteOrder) []uint64 {
	f := t.Find(tag)
	if f == nil {
		return nil
	}
	out := make([]uint64, f.Count)
	for i := range out {
		out[i] = f.AnyUnsigned(uint64(i), order)
	}
	return out
}

// FirstUnsigned reads the first element of an integral field, or the given
// default if the tag is absent.
func (t *IFDTable) FirstUnsigned(tag Tag, order binary.ByteOrder, def uint64) uint64 {
	f := t.Find(tag)
	if f == nil || f.Count == 0 {
		return def
	}
	return f.AnyUnsigned(0, order)
}

// Validate checks the IFD invariants named in §3: ImageWidth/ImageLength
// present, BitsPerSample count matching SamplesPerPixel when present, and
// offsets/byte-count arrays of matching length.
func (t *IFDTable) Validate(order binary.ByteOrder) error {
	if t.Find(ImageWidth) == nil || t.Find(ImageLength) == nil {
		return newErr(KindMalformedIFD, "missing required ImageWidth/ImageLength tag")
	}
	spp := t.FirstUnsigned(SamplesPerPixel, order, 1)
	if bps := t.Find(BitsPerSample); bps != nil && bps.Count != spp {
		return newErr(KindMalformedIFD, "BitsPerSample count %d does not match SamplesPerPixel %d", bps.Count, spp)
	}
	pairs := []struct{ off, cnt Tag }{{StripOffsets, StripByteCounts}, {TileOffsets, TileByteCounts}}
	for _, p := range pairs {
		off, cnt := t.Find(p.off), t.Find(p.cnt)
		if (off == nil) != (cnt == nil) {
			return newErr(KindMalformedIFD, "tag %s present without matching %s", p.off.Name(), p.cnt.Name())
		}
		if off != nil && off.Count != cnt.Count {
			return newErr(KindMalformedIFD, "%s and %s arrays differ in length (%d vs %d)", p.off.Name(), p.cnt.Name(), off.Count, cnt.Count)
		}
	}
	if t.Find(TileWidth) != nil {
		tw := t.FirstUnsigned(TileWidth, order, 0)
		th := t.FirstUnsigned(TileLength, order, 0)
		if tw == 0 || th == 0 {
			return newErr(KindMalformedIFD, "non-positive tile dimensions %dx%d", tw, th)
		}
	}
	return nil
}
