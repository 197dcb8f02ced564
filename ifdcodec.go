package tiffcore

import "encoding/binary"

// maxIFDChainLength caps chain traversal to guard against cyclic or
// malformed next-IFD pointers (§4.2, §9 "Cyclic/back references").
const maxIFDChainLength = 1 << 20 // 1,048,576

// ReadIFD parses a single IFD at the given file offset, per §4.2 "IFD
// parse". It returns the parsed table and the offset of the next IFD (0 if
// this is the last one in the chain).
func ReadIFD(bs *ByteStream, order binary.ByteOrder, bigTiff bool, offset uint64) (IFDTable, uint64, error) {
	var table IFDTable
	var count uint64
	if bigTiff {
		c, err := bs.ReadAt(int64(offset), 8)
		if err != nil {
			return table, 0, wrapErr(KindMalformedIFD, err, "reading BigTIFF entry count at %d", offset)
		}
		count = order.Uint64(c)
	} else {
		c, err := bs.ReadAt(int64(offset), 2)
		if err != nil {
			return table, 0, wrapErr(KindMalformedIFD, err, "reading entry count at %d", offset)
		}
		count = uint64(order.Uint16(c))
	}
	ew := entryWidth(bigTiff)
	countWidth := uint64(2)
	if bigTiff {
		countWidth = 8
	}
	entriesPos := offset + countWidth
	table.Fields = make([]Field, count)
	var lastTag Tag = 0
	seen := make(map[Tag]bool, count)
	for i := uint64(0); i < count; i++ {
		entry, err := bs.ReadAt(int64(entriesPos+i*ew), int(ew))
		if err != nil {
			return table, 0, wrapErr(KindMalformedIFD, err, "reading entry %d of IFD at %d", i, offset)
		}
		tag := Tag(order.Uint16(entry[0:2]))
		typ := Type(order.Uint16(entry[2:4]))
		if typ.bigTiffOnly() && !bigTiff {
			return table, 0, newErr(KindMalformedIFD, "tag %s uses BigTIFF-only type %s in a classic IFD", tag.Name(), typ.Name())
		}
		if typ.Size() == 0 {
			return table, 0, newErr(KindMalformedIFD, "tag %s has unrecognized type code %d", tag.Name(), typ)
		}
		var cnt uint64
		var valueSlot []byte
		if bigTiff {
			cnt = order.Uint64(entry[4:12])
			valueSlot = entry[12:20]
		} else {
			cnt = uint64(order.Uint32(entry[4:8]))
			valueSlot = entry[8:12]
		}
		if seen[tag] {
			return table, 0, newErr(KindMalformedIFD, "duplicate tag %s in IFD at %d", tag.Name(), offset)
		}
		seen[tag] = true
		if tag < lastTag {
			// Tolerate out-of-order tags on read (some writers get this
			// wrong); ordering is only enforced on write.
		}
		lastTag = tag
		size := typ.Size() * cnt
		var data []byte
		if size <= uint64(len(valueSlot)) {
			data = append([]byte(nil), valueSlot[:size]...)
		} else {
			var dataOffset uint64
			if bigTiff {
				dataOffset = order.Uint64(valueSlot)
			} else {
				dataOffset = uint64(order.Uint32(valueSlot))
			}
			d, err := bs.ReadAt(int64(dataOffset), int(size))
			if err != nil {
				return table, 0, wrapErr(KindMalformedIFD, err, "reading external value for tag %s (%d bytes at %d)", tag.Name(), size, dataOffset)
			}
			data = d
		}
		table.Fields[i] = Field{Tag: tag, Type: typ, Count: cnt, Data: data}
	}
	nextPos := entriesPos + count*ew
	var next uint64
	if bigTiff {
		n, err := bs.ReadAt(int64(nextPos), 8)
		if err != nil {
			return table, 0, wrapErr(KindMalformedIFD, err, "reading next-IFD pointer at %d", nextPos)
		}
		next = order.Uint64(n)
	} else {
		n, err := bs.ReadAt(int64(nextPos), 4)
		if err != nil {
			return table, 0, wrapErr(KindMalformedIFD, err, "reading next-IFD pointer at %d", nextPos)
		}
		next = uint64(order.Uint32(n))
	}
	return table, next, nil
}

// ReadIFDChain walks the IFD chain starting at firstOffset, capped at
// maxIFDChainLength entries to guard against cycles (§4.2, §9).
func ReadIFDChain(bs *ByteStream, order binary.ByteOrder, bigTiff bool, firstOffset uint64) ([]IFDTable, []uint64, error) {
	var tables []IFDTable
	var offsets []uint64
	offset := firstOffset
	seen := make(map[uint64]bool)
	for offset != 0 {
		if len(tables) >= maxIFDChainLength {
			return tables, offsets, newErr(KindMalformedIFD, "IFD chain exceeds %d entries", maxIFDChainLength)
		}
		if seen[offset] {
			return tables, offsets, newErr(KindMalformedIFD, "IFD chain contains a cycle at offset %d", offset)
		}
		seen[offset] = true
		table, next, err := ReadIFD(bs, order, bigTiff, offset)
		if err != nil {
			return tables, offsets, err
		}
		tables = append(tables, table)
		offsets = append(offsets, offset)
		offset = next
	}
	return tables, offsets, nil
}

// WriteIFD serializes table's entry array and external value payloads
// starting at `at`, per §4.3 "Entry serialization". Tags are written in
// ascending order (the caller must have sorted/deduplicated already, as
// AddFields does). External payloads are appended immediately after the
// entry array and next-pointer; nextPtr is the offset of the next IFD in
// the chain, or 0 to terminate it. Returns the offset just past the last
// byte written (i.e., the start of whatever comes next in the file).
func WriteIFD(bs *ByteStream, order binary.ByteOrder, bigTiff bool, table IFDTable, at uint64, nextPtr uint64) (uint64, error) {
	ew := entryWidth(bigTiff)
	countWidth := uint64(2)
	if bigTiff {
		countWidth = 8
	}
	n := uint64(len(table.Fields))
	if bigTiff {
		if err := bs.WriteAt(int64(at), putU64(order, n)); err != nil {
			return 0, err
		}
	} else {
		if n > 0xFFFF {
			return 0, newErr(KindMalformedIFD, "classic IFD cannot hold %d entries", n)
		}
		if err := bs.WriteAt(int64(at), putU16(order, uint16(n))); err != nil {
			return 0, err
		}
	}
	entriesPos := at + countWidth
	nextPos := entriesPos + n*ew
	inlineWidth := uint64(4)
	nextPtrWidth := uint64(4)
	if bigTiff {
		inlineWidth = 8
		nextPtrWidth = 8
	}
	externalPos := nextPos + nextPtrWidth
	var lastTag Tag = 0
	for i, f := range table.Fields {
		if i > 0 && f.Tag < lastTag {
			return 0, newErr(KindMalformedIFD, "fields not sorted ascending by tag: %s follows %s", f.Tag.Name(), lastTag.Name())
		}
		lastTag = f.Tag
		entryPos := entriesPos + uint64(i)*ew
		if err := bs.WriteAt(int64(entryPos), putU16(order, uint16(f.Tag))); err != nil {
			return 0, err
		}
		if err := bs.WriteAt(int64(entryPos+2), putU16(order, uint16(f.Type))); err != nil {
			return 0, err
		}
		if bigTiff {
			if err := bs.WriteAt(int64(entryPos+4), putU64(order, f.Count)); err != nil {
				return 0, err
			}
		} else {
			if err := bs.WriteAt(int64(entryPos+4), putU32(order, uint32(f.Count))); err != nil {
				return 0, err
			}
		}
		size := f.Size()
		entryCountFieldWidth := uint64(4)
		if bigTiff {
			entryCountFieldWidth = 8
		}
		slotPos := entryPos + 4 + entryCountFieldWidth // position of value-or-offset slot
		if size <= inlineWidth {
			padded := make([]byte, inlineWidth)
			copy(padded, f.Data)
			if err := bs.WriteAt(int64(slotPos), padded); err != nil {
				return 0, err
			}
		} else {
			if err := bs.WriteAt(int64(externalPos), f.Data); err != nil {
				return 0, err
			}
			if bigTiff {
				if err := bs.WriteAt(int64(slotPos), putU64(order, externalPos)); err != nil {
					return 0, err
				}
			} else {
				if err := bs.WriteAt(int64(slotPos), putU32(order, uint32(externalPos))); err != nil {
					return 0, err
				}
			}
			externalPos += size
		}
	}
	if bigTiff {
		if err := bs.WriteAt(int64(nextPos), putU64(order, nextPtr)); err != nil {
			return 0, err
		}
	} else {
		if err := bs.WriteAt(int64(nextPos), putU32(order, uint32(nextPtr))); err != nil {
			return 0, err
		}
	}
	return externalPos, nil
}
