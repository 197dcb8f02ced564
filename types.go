package tiffcore

// Type is a TIFF field data type, as used in classic TIFF and BigTIFF IFD
// entries.
type Type uint16

// TIFF data types (uppercase as in the TIFF spec). The BigTIFF-only types
// (LONG8, SLONG8, IFD8) were added by the BigTIFF specification and are
// rejected when read from a classic (32-bit) file.
const (
	BYTE      Type = 1
	ASCII     Type = 2
	SHORT     Type = 3
	LONG      Type = 4
	RATIONAL  Type = 5
	SBYTE     Type = 6
	UNDEFINED Type = 7
	SSHORT    Type = 8
	SLONG     Type = 9
	SRATIONAL Type = 10
	FLOAT     Type = 11
	DOUBLE    Type = 12
	IFD       Type = 13
	LONG8     Type = 16
	SLONG8    Type = 17
	IFD8      Type = 18
)

var typeNames = map[Type]string{
	BYTE: "Byte", ASCII: "ASCII", SHORT: "Short", LONG: "Long",
	RATIONAL: "Rational", SBYTE: "SByte", UNDEFINED: "Undefined",
	SSHORT: "SShort", SLONG: "SLong", SRATIONAL: "SRational",
	FLOAT: "Float", DOUBLE: "Double", IFD: "IFD",
	LONG8: "Long8", SLONG8: "SLong8", IFD8: "IFD8",
}

// Name returns the human-readable name of a TIFF type.
func (t Type) Name() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

var typeSizes = map[Type]uint64{
	BYTE: 1, ASCII: 1, SHORT: 2, LONG: 4, RATIONAL: 8, SBYTE: 1,
	UNDEFINED: 1, SSHORT: 2, SLONG: 4, SRATIONAL: 8, FLOAT: 4, DOUBLE: 8,
	IFD: 4, LONG8: 8, SLONG8: 8, IFD8: 8,
}

// Size returns the byte size of a single value of the given type, or 0 for
// an unrecognized type.
func (t Type) Size() uint64 {
	return typeSizes[t]
}

// IsIntegral reports whether t is one of the TIFF integer types.
func (t Type) IsIntegral() bool {
	switch t {
	case BYTE, SHORT, LONG, SBYTE, SSHORT, SLONG, LONG8, SLONG8:
		return true
	}
	return false
}

// IsRational reports whether t is one of the TIFF rational types.
func (t Type) IsRational() bool {
	return t == RATIONAL || t == SRATIONAL
}

// IsFloat reports whether t is one of the TIFF floating point types.
func (t Type) IsFloat() bool {
	return t == FLOAT || t == DOUBLE
}

// bigTiffOnly reports whether t requires the BigTIFF 64-bit entry layout.
func (t Type) bigTiffOnly() bool {
	return t == LONG8 || t == SLONG8 || t == IFD8
}

// Tag is a 16-bit TIFF field identifier.
type Tag uint16

// Required and commonly-recognized tags (TIFF 6.0 unless noted).
const (
	NewSubfileType              Tag = 0x0FE
	SubfileType                 Tag = 0x0FF
	ImageWidth                  Tag = 0x100
	ImageLength                 Tag = 0x101
	BitsPerSample               Tag = 0x102
	CompressionTag              Tag = 0x103
	PhotometricInterpretation   Tag = 0x106
	Threshholding               Tag = 0x107
	FillOrder                   Tag = 0x10A
	DocumentName                Tag = 0x10D
	ImageDescription            Tag = 0x10E
	Make                        Tag = 0x10F
	Model                       Tag = 0x110
	StripOffsets                Tag = 0x111
	Orientation                 Tag = 0x112
	SamplesPerPixel             Tag = 0x115
	RowsPerStrip                Tag = 0x116
	StripByteCounts             Tag = 0x117
	MinSampleValue              Tag = 0x118
	MaxSampleValue              Tag = 0x119
	XResolution                 Tag = 0x11A
	YResolution                 Tag = 0x11B
	PlanarConfiguration         Tag = 0x11C
	ResolutionUnit              Tag = 0x128
	Software                    Tag = 0x131
	DateTime                    Tag = 0x132
	Predictor                   Tag = 0x13D
	ColorMap                    Tag = 0x140
	TileWidth                   Tag = 0x142
	TileLength                  Tag = 0x143
	TileOffsets                 Tag = 0x144
	TileByteCounts              Tag = 0x145
	SubIFDs                     Tag = 0x14A
	ExtraSamples                Tag = 0x152
	SampleFormat                Tag = 0x153
	JPEGTables                  Tag = 0x15B
	JPEGProc                    Tag = 0x200
	JPEGInterchangeFormat       Tag = 0x201
	JPEGInterchangeFormatLength Tag = 0x202
	YCbCrCoefficients           Tag = 0x211
	YCbCrSubSampling            Tag = 0x212
	YCbCrPositioning            Tag = 0x213
	ReferenceBlackWhite         Tag = 0x214
	Copyright                   Tag = 0x8298
	ExifIFD                     Tag = 0x8769
	ICCProfile                  Tag = 0x8773
	GPSIFD                      Tag = 0x8825
)

var tagNames = map[Tag]string{
	NewSubfileType: "NewSubfileType", SubfileType: "SubfileType",
	ImageWidth: "ImageWidth", ImageLength: "ImageLength",
	BitsPerSample: "BitsPerSample", CompressionTag: "Compression",
	PhotometricInterpretation: "PhotometricInterpretation",
	Threshholding:              "Threshholding",
	FillOrder:                  "FillOrder",
	DocumentName:               "DocumentName",
	ImageDescription:           "ImageDescription",
	Make:                       "Make", Model: "Model",
	StripOffsets: "StripOffsets", Orientation: "Orientation",
	SamplesPerPixel: "SamplesPerPixel", RowsPerStrip: "RowsPerStrip",
	StripByteCounts: "StripByteCounts",
	MinSampleValue:  "MinSampleValue", MaxSampleValue: "MaxSampleValue",
	XResolution: "XResolution", YResolution: "YResolution",
	PlanarConfiguration: "PlanarConfiguration",
	ResolutionUnit:      "ResolutionUnit",
	Software:            "Software", DateTime: "DateTime",
	Predictor: "Predictor", ColorMap: "ColorMap",
	TileWidth: "TileWidth", TileLength: "TileLength",
	TileOffsets: "TileOffsets", TileByteCounts: "TileByteCounts",
	SubIFDs: "SubIFDs", ExtraSamples: "ExtraSamples",
	SampleFormat: "SampleFormat", JPEGTables: "JPEGTables",
	JPEGProc: "JPEGProc", JPEGInterchangeFormat: "JPEGInterchangeFormat",
	JPEGInterchangeFormatLength: "JPEGInterchangeFormatLength",
	YCbCrCoefficients:           "YCbCrCoefficients",
	YCbCrSubSampling:            "YCbCrSubSampling",
	YCbCrPositioning:            "YCbCrPositioning",
	ReferenceBlackWhite:         "ReferenceBlackWhite",
	Copyright:                   "Copyright", ExifIFD: "ExifIFD",
	ICCProfile: "ICCProfile", GPSIFD: "GPSIFD",
}

// Name returns the human-readable name of a tag, or "Unknown" if it is
// not one of the tags recognized by this package.
func (t Tag) Name() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Compression codes (tag 259). Only None/PackBits/LZW/Deflate have a
// built-in codec; the rest are recognized by name but require a
// caller-registered codec per §4.5's extension hook.
type Compression uint16

const (
	CompNone        Compression = 1
	CompCCITTRLE    Compression = 2
	CompCCITTFaxT4  Compression = 3
	CompCCITTFaxT6  Compression = 4
	CompLZW         Compression = 5
	CompOldJPEG     Compression = 6
	CompJPEG        Compression = 7
	CompDeflate     Compression = 8
	CompPackBits    Compression = 32773
	CompZSTD        Compression = 32946
	CompJPEG2000    Compression = 34712
	CompLERC        Compression = 34887
)

// IsJPEGFamily reports whether c is a JPEG-family codec, which changes
// nominal-size enforcement (§4.6) and requires JPEGTables splicing (§4.7).
func (c Compression) IsJPEGFamily() bool {
	return c == CompOldJPEG || c == CompJPEG
}

// Photometric codes (tag 262).
type Photometric uint16

const (
	PhotoWhiteIsZero     Photometric = 0
	PhotoBlackIsZero     Photometric = 1
	PhotoRGB             Photometric = 2
	PhotoPalette         Photometric = 3
	PhotoTransparencyMask Photometric = 4
	PhotoCMYK            Photometric = 5
	PhotoYCbCr           Photometric = 6
	PhotoCIELab          Photometric = 8
)

// NeedsInversion reports whether photometric p requires the
// brightness-inversion correction described in §4.6.
func (p Photometric) NeedsInversion() bool {
	return p == PhotoWhiteIsZero || p == PhotoCMYK || p == PhotoTransparencyMask
}

// PlanarConfig values (tag 284).
type PlanarConfig uint16

const (
	PlanarChunky PlanarConfig = 1
	PlanarPlane  PlanarConfig = 2
)

// SampleFormat values (tag 339).
type SampleFormat uint16

const (
	SampleUint    SampleFormat = 1
	SampleInt     SampleFormat = 2
	SampleFloat   SampleFormat = 3
	SampleUnknown SampleFormat = 4
)

// PredictorKind values (tag 317).
type PredictorKind uint16

const (
	PredictorNone             PredictorKind = 1
	PredictorHorizontal       PredictorKind = 2
	PredictorFloatingPoint    PredictorKind = 3
)
