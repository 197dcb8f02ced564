package tiffcore

import (
	"bytes"
	"compress/lzw"
	"io"
)

// lzwCodec implements compression code 5, the TIFF variant of LZW (TIFF
// 6.0 §13): MSB-first bit packing with an initial 9-bit code width, table
// reset at 4094 entries sharing the clear/EOI conventions Go's
// compress/lzw package already implements for this exact variant (it is
// what Go's own image/tiff package uses internally, and nothing in the
// example pack ships an importable standalone TIFF-flavored LZW library —
// the only occurrences are either EXIF-only or bundled inside an
// unrelated, unpublished module path). See DESIGN.md.
type lzwCodec struct{}

func (lzwCodec) Decode(data []byte, opts CodecOptions) ([]byte, error) {
	cap := opts.MaxOutputSize
	if cap == 0 {
		cap = DefaultMaxOutputSize
	}
	r := lzw.NewReader(bytes.NewReader(data), lzw.MSB, 8)
	defer r.Close()
	limited := io.LimitReader(r, int64(cap)+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, wrapErr(KindCodecFailure, err, "LZW decode")
	}
	if uint64(len(out)) > cap {
		return nil, newErr(KindResourceLimit, "LZW output exceeds cap %d", cap)
	}
	return out, nil
}

func (lzwCodec) Encode(data []byte, opts CodecOptions) ([]byte, error) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, wrapErr(KindCodecFailure, err, "LZW encode")
	}
	if err := w.Close(); err != nil {
		return nil, wrapErr(KindCodecFailure, err, "closing LZW encoder")
	}
	return buf.Bytes(), nil
}
