package tiffcore

// CodecOptions carries everything a codec needs beyond the raw bytes:
// tile geometry, sample layout, and a defensive output cap (§4.5).
type CodecOptions struct {
	Width, Height   uint64
	BitsPerSample   []uint64
	SamplesPerPixel uint64
	Order           ByteOrderName
	Photometric     Photometric
	JPEGTables      []byte // tag 347, spliced before JPEG-family tile data
	MaxOutputSize   uint64 // 0 means use DefaultMaxOutputSize
}

// ByteOrderName avoids importing encoding/binary into every codec's public
// signature; codecs that care convert via LittleEndian()/BigEndian().
type ByteOrderName bool

const (
	LittleEndianOrder ByteOrderName = true
	BigEndianOrder    ByteOrderName = false
)

// DefaultMaxOutputSize bounds decoded tile growth absent an explicit cap,
// per §4.6 "Inputs exceeding 2 GB of expanded storage ⇒ ResourceLimit".
const DefaultMaxOutputSize = 2 << 30

// Codec is the encode/decode pair registered per compression code (§4.5).
type Codec interface {
	Encode(data []byte, opts CodecOptions) ([]byte, error)
	Decode(data []byte, opts CodecOptions) ([]byte, error)
}

// CodecRegistry is a lookup from compression tag value to Codec, with a
// caller-extension hook checked before the built-in table (§4.5).
type CodecRegistry struct {
	builtin  map[Compression]Codec
	override map[Compression]Codec
}

// NewCodecRegistry returns a registry pre-populated with the codecs this
// package implements directly: None, PackBits, LZW, Deflate.
func NewCodecRegistry() *CodecRegistry {
	r := &CodecRegistry{
		builtin:  make(map[Compression]Codec),
		override: make(map[Compression]Codec),
	}
	r.builtin[CompNone] = noneCodec{}
	r.builtin[CompPackBits] = packBitsCodec{}
	r.builtin[CompLZW] = lzwCodec{}
	r.builtin[CompDeflate] = deflateCodec{}
	return r
}

// Register installs or replaces a codec for the given compression code,
// taking precedence over any built-in codec for the same code. This is the
// extension hook that lets an enclosing Reader/Writer supply JPEG,
// JPEG-2000, CCITT, LERC or ZSTD support without this package depending on
// those codecs directly.
func (r *CodecRegistry) Register(code Compression, c Codec) {
	r.override[code] = c
}

// Lookup resolves a compression code to a codec, checking overrides first.
// Returns ErrUnsupportedCompression if neither table has an entry.
func (r *CodecRegistry) Lookup(code Compression) (Codec, error) {
	if c, ok := r.override[code]; ok {
		return c, nil
	}
	if c, ok := r.builtin[code]; ok {
		return c, nil
	}
	return nil, newErr(KindUnsupportedCompression, "no codec registered for compression code %d", code)
}
