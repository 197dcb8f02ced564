package tiffcore

import (
	"bufio"
	"bytes"
	"io"
)

// packBitsCodec implements compression code 32773, the Macintosh
// PackBits run-length scheme described in TIFF 6.0 §9. Grounded on
// other_examples/fa40dc55_mdouchement-tiff__compress.go.go's unpackBits,
// generalized with a defensive output cap and a matching encoder for the
// write path.
type packBitsCodec struct{}

type byteReader interface {
	io.Reader
	io.ByteReader
}

func (packBitsCodec) Decode(data []byte, opts CodecOptions) ([]byte, error) {
	cap := opts.MaxOutputSize
	if cap == 0 {
		cap = DefaultMaxOutputSize
	}
	var n int
	buf := make([]byte, 128)
	dst := make([]byte, 0, 1024)
	var br byteReader = bufio.NewReader(bytes.NewReader(data))
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return dst, nil
			}
			return nil, wrapErr(KindCodecFailure, err, "reading PackBits control byte")
		}
		code := int(int8(b))
		switch {
		case code >= 0:
			n, err = io.ReadFull(br, buf[:code+1])
			if err != nil {
				return nil, wrapErr(KindCorruptedData, err, "reading %d literal PackBits bytes", code+1)
			}
			dst = append(dst, buf[:n]...)
		case code == -128:
			// No-op control byte.
		default:
			rb, err := br.ReadByte()
			if err != nil {
				return nil, wrapErr(KindCorruptedData, err, "reading PackBits repeat byte")
			}
			for j := 0; j < 1-code; j++ {
				buf[j] = rb
			}
			dst = append(dst, buf[:1-code]...)
		}
		if uint64(len(dst)) > cap {
			return nil, newErr(KindResourceLimit, "PackBits output exceeds cap %d", cap)
		}
	}
}

// Encode applies a straightforward PackBits strategy: runs of 3+ identical
// bytes are repeat-encoded, everything else is emitted as literal runs up
// to 127 bytes. This is not byte-optimal but round-trips exactly, which is
// the property §8 P1 requires.
func (packBitsCodec) Encode(data []byte, opts CodecOptions) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(data) {
		runLen := 1
		for i+runLen < len(data) && data[i+runLen] == data[i] && runLen < 128 {
			runLen++
		}
		if runLen >= 3 {
			out.WriteByte(byte(int8(1 - runLen)))
			out.WriteByte(data[i])
			i += runLen
			continue
		}
		// Accumulate a literal run, breaking it if a long repeat starts.
		start := i
		i++
		for i < len(data) {
			if i+2 < len(data) && data[i] == data[i+1] && data[i+1] == data[i+2] {
				break
			}
			if i-start >= 127 {
				break
			}
			i++
		}
		litLen := i - start
		out.WriteByte(byte(int8(litLen - 1)))
		out.Write(data[start:i])
	}
	return out.Bytes(), nil
}
