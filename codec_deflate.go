package tiffcore

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// deflateCodec implements compression code 8 (Deflate/Adobe zlib-wrapped
// deflate, TIFF 6.0 Technical Note 1) via klauspost/compress, the same
// library the mdouchement-tiff repo in the example pack depends on for
// this concern.
type deflateCodec struct{}

func (deflateCodec) Decode(data []byte, opts CodecOptions) ([]byte, error) {
	cap := opts.MaxOutputSize
	if cap == 0 {
		cap = DefaultMaxOutputSize
	}
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, wrapErr(KindCodecFailure, err, "opening zlib stream")
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, int64(cap)+1))
	if err != nil {
		return nil, wrapErr(KindCodecFailure, err, "Deflate decode")
	}
	if uint64(len(out)) > cap {
		return nil, newErr(KindResourceLimit, "Deflate output exceeds cap %d", cap)
	}
	return out, nil
}

func (deflateCodec) Encode(data []byte, opts CodecOptions) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, wrapErr(KindCodecFailure, err, "opening zlib writer")
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, wrapErr(KindCodecFailure, err, "Deflate encode")
	}
	if err := w.Close(); err != nil {
		return nil, wrapErr(KindCodecFailure, err, "closing zlib writer")
	}
	return buf.Bytes(), nil
}
