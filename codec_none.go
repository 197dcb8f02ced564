package tiffcore

// noneCodec is the identity codec for compression code 1 (§6): tile data
// is stored uncompressed.
type noneCodec struct{}

func (noneCodec) Encode(data []byte, opts CodecOptions) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

func (noneCodec) Decode(data []byte, opts CodecOptions) ([]byte, error) {
	cap := opts.MaxOutputSize
	if cap == 0 {
		cap = DefaultMaxOutputSize
	}
	if uint64(len(data)) > cap {
		return nil, newErr(KindResourceLimit, "uncompressed tile of %d bytes exceeds cap %d", len(data), cap)
	}
	return append([]byte(nil), data...), nil
}
