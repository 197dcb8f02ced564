// Command tiffcore reads, writes and inspects TIFF/BigTIFF files.
package main

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/tilepix/tiffcore"
)

const usage = `usage:
  tiffcore info [--json] [--describe] <file>
  tiffcore copy [--append] [--repack] [--bigtiff|--no-bigtiff] [--le|--be] [--quality=q] <src> <dst> [first [last]]
  tiffcore to-tiff [--bigtiff] [--quality=q] <src.jpg|png> <dst.tiff>
  tiffcore from-tiff <src.tiff> <dst.jpg|png> <ifd>
  tiffcore thumbnail <src.tiff> <dst.jpg|png>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "info":
		err = cmdInfo(os.Args[2:])
	case "copy":
		err = cmdCopy(os.Args[2:])
	case "to-tiff":
		err = cmdToTiff(os.Args[2:])
	case "from-tiff":
		err = cmdFromTiff(os.Args[2:])
	case "thumbnail":
		err = cmdThumbnail(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		log.Print(err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	te, ok := err.(*tiffcore.Error)
	if !ok {
		return 2
	}
	switch te.Kind {
	case tiffcore.KindNotTiff, tiffcore.KindMalformedIFD, tiffcore.KindCorruptedData:
		return 1
	case tiffcore.KindUnsupportedCompression, tiffcore.KindUnsupportedFormat:
		return 3
	default:
		return 2
	}
}

func openReaderFile(path string) (*os.File, *tiffcore.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	bs := tiffcore.NewByteStreamReader(f, info.Size(), binary.LittleEndian)
	r, err := tiffcore.NewReader(bs, tiffcore.StrictOpen, nil)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, r, nil
}

func cmdInfo(args []string) error {
	asJSON := false
	describe := false
	var files []string
	for _, a := range args {
		switch a {
		case "--json":
			asJSON = true
		case "--describe":
			describe = true
		default:
			files = append(files, a)
		}
	}
	if len(files) != 1 {
		return fmt.Errorf("info: expected exactly one file")
	}
	f, r, err := openReaderFile(files[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ifds, err := r.AllIFDs()
	if err != nil {
		return err
	}
	var kinds []tiffcore.ImageKind
	if describe {
		kinds, err = r.Describe()
		if err != nil {
			return err
		}
	}
	for i := range ifds {
		layout, err := r.Layout(i)
		if err != nil {
			return err
		}
		kind := ""
		if describe {
			kind = kinds[i].String()
		}
		if asJSON {
			fmt.Printf("{\"ifd\":%d,\"width\":%d,\"height\":%d,\"tiled\":%v,\"compression\":%d,\"kind\":%q}\n",
				i, layout.DimX, layout.DimY, layout.Tiled, layout.Compression, kind)
		} else if describe {
			fmt.Printf("IFD %d: %dx%d tiled=%v compression=%d photometric=%d fields=%d kind=%s\n",
				i, layout.DimX, layout.DimY, layout.Tiled, layout.Compression, layout.Photometric, len(ifds[i].Fields), kind)
		} else {
			fmt.Printf("IFD %d: %dx%d tiled=%v compression=%d photometric=%d fields=%d\n",
				i, layout.DimX, layout.DimY, layout.Tiled, layout.Compression, layout.Photometric, len(ifds[i].Fields))
		}
	}
	if icc, err := r.ICCProfile(0); err == nil && len(icc) > 0 {
		fmt.Printf("IFD 0 carries an embedded ICC profile (%d bytes)\n", len(icc))
	}
	return nil
}

func cmdCopy(args []string) error {
	opts := tiffcore.CopyOptions{}
	wopts := tiffcore.WriterOptions{ByteOrder: binary.LittleEndian}
	appendMode := false
	var positional []string
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case a == "--append":
			appendMode = true
		case a == "--repack":
			opts.Repack = true
		case a == "--bigtiff":
			wopts.BigTIFF = true
		case a == "--no-bigtiff":
			wopts.BigTIFF = false
		case a == "--le":
			wopts.ByteOrder = binary.LittleEndian
		case a == "--be":
			wopts.ByteOrder = binary.BigEndian
		case strings.HasPrefix(a, "--quality="):
			q, err := strconv.Atoi(strings.TrimPrefix(a, "--quality="))
			if err != nil {
				return fmt.Errorf("copy: bad --quality value: %w", err)
			}
			wopts.CompressionQuality = q
		default:
			positional = append(positional, a)
		}
	}
	if len(positional) < 2 {
		return fmt.Errorf("copy: expected <src> <dst> [first [last]]")
	}
	src, dst := positional[0], positional[1]
	first, last := 0, -1
	if len(positional) >= 3 {
		v, err := strconv.Atoi(positional[2])
		if err != nil {
			return err
		}
		first = v
	}
	if len(positional) >= 4 {
		v, err := strconv.Atoi(positional[3])
		if err != nil {
			return err
		}
		last = v
	}

	sf, reader, err := openReaderFile(src)
	if err != nil {
		return err
	}
	defer sf.Close()

	var writer *tiffcore.Writer
	if appendMode {
		df, err := os.OpenFile(dst, os.O_RDWR, 0644)
		if err != nil {
			return err
		}
		defer df.Close()
		info, err := df.Stat()
		if err != nil {
			return err
		}
		dbs := tiffcore.NewByteStreamWriter(df, info.Size(), wopts.ByteOrder)
		writer, err = tiffcore.OpenAppending(dbs, nil)
		if err != nil {
			return err
		}
	} else {
		df, err := os.Create(dst)
		if err != nil {
			return err
		}
		defer df.Close()
		dbs := tiffcore.NewByteStreamWriter(df, 0, wopts.ByteOrder)
		writer, err = tiffcore.NewWriter(dbs, wopts, nil)
		if err != nil {
			return err
		}
	}
	copier := tiffcore.NewCopier(reader, writer, nil)
	return copier.CopyAll(first, last, opts)
}

func cmdToTiff(args []string) error {
	bigTiff := false
	var positional []string
	for _, a := range args {
		switch {
		case a == "--bigtiff":
			bigTiff = true
		case strings.HasPrefix(a, "--quality="):
			// Forwarded to the JPEG codec once registered; the built-in
			// codec set (None/PackBits/LZW/Deflate) ignores it.
		default:
			positional = append(positional, a)
		}
	}
	if len(positional) != 2 {
		return fmt.Errorf("to-tiff: expected <src.jpg|png> <dst.tiff>")
	}
	src, dst := positional[0], positional[1]
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sf.Close()
	img, _, err := image.Decode(sf)
	if err != nil {
		return err
	}
	bounds := img.Bounds()
	w, h := uint64(bounds.Dx()), uint64(bounds.Dy())

	data := make([]byte, w*h*3)
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := (uint64(y)*w + uint64(x)) * 3
			data[idx] = byte(r >> 8)
			data[idx+1] = byte(g >> 8)
			data[idx+2] = byte(b >> 8)
		}
	}

	df, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer df.Close()
	wopts := tiffcore.WriterOptions{ByteOrder: binary.LittleEndian, BigTIFF: bigTiff}
	dbs := tiffcore.NewByteStreamWriter(df, 0, wopts.ByteOrder)
	writer, err := tiffcore.NewWriter(dbs, wopts, nil)
	if err != nil {
		return err
	}
	fields := []tiffcore.Field{
		uint32Field(tiffcore.ImageWidth, uint32(w)),
		uint32Field(tiffcore.ImageLength, uint32(h)),
		shortArrayField(tiffcore.BitsPerSample, []uint16{8, 8, 8}),
		uint16Field(tiffcore.CompressionTag, uint16(tiffcore.CompNone)),
		uint16Field(tiffcore.PhotometricInterpretation, uint16(tiffcore.PhotoRGB)),
		uint16Field(tiffcore.SamplesPerPixel, 3),
		uint32Field(tiffcore.RowsPerStrip, uint32(h)),
		uint16Field(tiffcore.PlanarConfiguration, uint16(tiffcore.PlanarChunky)),
	}
	layout := tiffcore.ImageLayout{
		DimX: w, DimY: h, Tiled: false, TileW: w, TileH: h,
		SamplesPerPixel: 3, BitsPerSample: []uint64{8, 8, 8},
		SampleFormat: []tiffcore.SampleFormat{tiffcore.SampleUint, tiffcore.SampleUint, tiffcore.SampleUint},
		Planar:       tiffcore.PlanarChunky, Photometric: tiffcore.PhotoRGB,
		Compression: tiffcore.CompNone, Predictor: tiffcore.PredictorNone,
		FillOrder: 1, BigTIFF: bigTiff, Order: wopts.ByteOrder,
	}
	tm, err := writer.NewMap(fields, layout)
	if err != nil {
		return err
	}
	tile := tm.Tile(0, 0, 0)
	if err := writer.WriteTile(tile, data); err != nil {
		return err
	}
	return writer.CompleteWriting()
}

func cmdFromTiff(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("from-tiff: expected <src.tiff> <dst.jpg|png> <ifd>")
	}
	src, dst, ifdArg := args[0], args[1], args[2]
	ifdIndex, err := strconv.Atoi(ifdArg)
	if err != nil {
		return err
	}
	f, reader, err := openReaderFile(src)
	if err != nil {
		return err
	}
	defer f.Close()

	layout, err := reader.Layout(ifdIndex)
	if err != nil {
		return err
	}
	region := tiffcore.Rect{X: 0, Y: 0, W: layout.DimX, H: layout.DimY}
	pixels, err := reader.ReadRegion(ifdIndex, 0, region, 0, false)
	if err != nil {
		return err
	}
	return writeImageFile(dst, pixelsToRGBA(pixels, layout))
}

// cmdThumbnail decodes whichever IFD Reader.Thumbnail classifies as the
// thumbnail-candidate image and writes it out as a JPEG or PNG.
func cmdThumbnail(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("thumbnail: expected <src.tiff> <dst.jpg|png>")
	}
	src, dst := args[0], args[1]
	f, reader, err := openReaderFile(src)
	if err != nil {
		return err
	}
	defer f.Close()

	pixels, layout, err := reader.Thumbnail()
	if err != nil {
		return err
	}
	return writeImageFile(dst, pixelsToRGBA(pixels, layout))
}

func pixelsToRGBA(pixels []byte, layout tiffcore.ImageLayout) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(layout.DimX), int(layout.DimY)))
	spp := int(layout.SamplesPerPixel)
	bits := uint64(8)
	if len(layout.BitsPerSample) > 0 {
		bits = layout.BitsPerSample[0]
	}
	if bits != 8 && layout.Photometric != tiffcore.PhotoPalette && layout.Photometric != tiffcore.PhotoTransparencyMask {
		pixels = tiffcore.ScaleSamples(pixels, bits, 8)
	}
	for y := uint64(0); y < layout.DimY; y++ {
		for x := uint64(0); x < layout.DimX; x++ {
			idx := (y*layout.DimX + x) * uint64(spp)
			r, g, b := pixels[idx], pixels[idx], pixels[idx]
			if spp >= 3 {
				g, b = pixels[idx+1], pixels[idx+2]
			}
			img.Set(int(x), int(y), colorRGB{r, g, b})
		}
	}
	return img
}

func writeImageFile(dst string, img *image.RGBA) error {
	df, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer df.Close()
	if strings.HasSuffix(strings.ToLower(dst), ".png") {
		return png.Encode(df, img)
	}
	return jpeg.Encode(df, img, &jpeg.Options{Quality: 90})
}

type colorRGB struct{ R, G, B uint8 }

func (c colorRGB) RGBA() (r, g, b, a uint32) {
	return uint32(c.R) * 0x101, uint32(c.G) * 0x101, uint32(c.B) * 0x101, 0xFFFF
}

func uint32Field(tag tiffcore.Tag, v uint32) tiffcore.Field {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, v)
	return tiffcore.Field{Tag: tag, Type: tiffcore.LONG, Count: 1, Data: data}
}

func uint16Field(tag tiffcore.Tag, v uint16) tiffcore.Field {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, v)
	return tiffcore.Field{Tag: tag, Type: tiffcore.SHORT, Count: 1, Data: data}
}

func shortArrayField(tag tiffcore.Tag, vs []uint16) tiffcore.Field {
	data := make([]byte, len(vs)*2)
	for i, v := range vs {
		binary.LittleEndian.PutUint16(data[i*2:], v)
	}
	return tiffcore.Field{Tag: tag, Type: tiffcore.SHORT, Count: uint64(len(vs)), Data: data}
}
