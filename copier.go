package tiffcore

import "golang.org/x/sync/errgroup"

// maxParallelTiles bounds the per-tile encode worker pool (§5 "scheduling
// model"), grounded on brawer-wikidata-qrank's and Echoflaresat-spacecam's
// use of golang.org/x/sync/errgroup for bounded concurrent fan-out.
const maxParallelTiles = 8

// undesirableTagsOnRecompress lists tags dropped when an IFD's compression
// changes during copy, per §7 "Undesirable tags on copy": they describe
// container-specific context (JPEG tables, embedded color profile) that
// no longer applies once the encoding changes.
var undesirableTagsOnRecompress = []Tag{JPEGTables, ICCProfile}

// CopyProgress reports copier progress, per §4.9.
type CopyProgress func(imageIndex, imageCount, tileIndex, tileCount int, lastTile bool)

// CopyOptions configures the Copier.
type CopyOptions struct {
	Repack       bool // force full decode/re-encode even when direct copy would be legal
	NewCompression Compression
	Progress     CopyProgress
}

// Copier implements §4.9: image-to-image copy with direct tile
// pass-through where the destination's compression, byte order, tile
// geometry and bits-per-sample all permit, else a full decode/re-encode
// repack.
type Copier struct {
	src    *Reader
	dst    *Writer
	codecs *CodecRegistry
}

// NewCopier builds a Copier over an already-open source Reader and
// destination Writer, sharing a codec registry.
func NewCopier(src *Reader, dst *Writer, codecs *CodecRegistry) *Copier {
	if codecs == nil {
		codecs = NewCodecRegistry()
	}
	return &Copier{src: src, dst: dst, codecs: codecs}
}

// CopyAll copies every IFD in [first, last] (inclusive; last=-1 means "to
// the end") from src to dst.
func (c *Copier) CopyAll(first, last int, opts CopyOptions) error {
	ifds, err := c.src.AllIFDs()
	if err != nil {
		return err
	}
	if last < 0 || last >= len(ifds) {
		last = len(ifds) - 1
	}
	count := last - first + 1
	for i := first; i <= last; i++ {
		if i > first {
			// CompleteWriting closed the writer after the previous image;
			// reopen the same stream for appending to add the next one.
			next, err := OpenAppending(c.dst.stream, c.dst.codecs)
			if err != nil {
				return err
			}
			next.opts = c.dst.opts
			c.dst = next
		}
		if err := c.CopyOne(i, opts, i-first, count); err != nil {
			return err
		}
	}
	return nil
}

// CopyOne copies a single source IFD (by index) to the destination,
// choosing direct pass-through or repack once for the whole image.
func (c *Copier) CopyOne(ifdIndex int, opts CopyOptions, imageIndex, imageCount int) error {
	srcLayout, err := c.src.Layout(ifdIndex)
	if err != nil {
		return err
	}
	srcMap, err := c.src.Map(ifdIndex)
	if err != nil {
		return err
	}

	dstCompression := srcLayout.Compression
	if opts.NewCompression != 0 {
		dstCompression = opts.NewCompression
	}
	dstLayout := srcLayout
	dstLayout.Compression = dstCompression

	fields := c.copiedFields(ifdIndex, dstCompression != srcLayout.Compression)
	dstMap, err := c.dst.NewMap(fields, dstLayout)
	if err != nil {
		return err
	}

	directCopy := !opts.Repack && dstCompression == srcLayout.Compression &&
		srcLayout.Order == c.dst.opts.ByteOrder && !srcLayout.Compression.IsJPEGFamily()

	tiles := srcMap.AllTiles()
	if directCopy {
		for i, srcTile := range tiles {
			dstTile := dstMap.Tile(srcTile.Plane, srcTile.X, srcTile.Y)
			if err := c.copyTileDirect(srcTile, dstTile); err != nil {
				return err
			}
			if opts.Progress != nil {
				opts.Progress(imageIndex, imageCount, i, len(tiles), i == len(tiles)-1)
			}
		}
		return c.dst.CompleteWriting()
	}

	// Repack path: read+decode+pack+encode each tile concurrently across a
	// bounded worker pool, then place the results sequentially. Source reads
	// go through ByteStream.ReadAt, which keeps no cursor; only the
	// destination writes (PlaceTile) are serialized.
	encoded := make([][]byte, len(tiles))
	g := new(errgroup.Group)
	g.SetLimit(maxParallelTiles)
	for i, srcTile := range tiles {
		i, srcTile := i, srcTile
		if srcTile.Offset == 0 {
			continue
		}
		dstTile := dstMap.Tile(srcTile.Plane, srcTile.X, srcTile.Y)
		g.Go(func() error {
			decoded, err := c.src.ReadTile(ifdIndex, srcTile)
			if err != nil {
				return err
			}
			packed, err := c.dst.EncodeTile(dstTile, decoded)
			if err != nil {
				return err
			}
			encoded[i] = packed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, srcTile := range tiles {
		if encoded[i] == nil {
			continue
		}
		dstTile := dstMap.Tile(srcTile.Plane, srcTile.X, srcTile.Y)
		if err := c.dst.PlaceTile(dstTile, encoded[i]); err != nil {
			return err
		}
		if opts.Progress != nil {
			opts.Progress(imageIndex, imageCount, i, len(tiles), i == len(tiles)-1)
		}
	}
	return c.dst.CompleteWriting()
}

func (c *Copier) copyTileDirect(srcTile, dstTile *Tile) error {
	if srcTile.Offset == 0 {
		return nil
	}
	data, err := c.src.stream.ReadAt(int64(srcTile.Offset), int(srcTile.Length))
	if err != nil {
		return err
	}
	off, err := c.dst.stream.AppendAtEnd(data)
	if err != nil {
		return err
	}
	dstTile.Offset = uint64(off)
	dstTile.Length = uint64(len(data))
	return nil
}

// copiedFields copies every field from the source IFD except offset/
// byte-count arrays (rebuilt by CompleteWriting) and, when the
// compression is changing, the undesirable tags named in §7.
func (c *Copier) copiedFields(ifdIndex int, compressionChanged bool) []Field {
	src := c.src.ifds[ifdIndex]
	skip := map[Tag]bool{
		StripOffsets: true, StripByteCounts: true,
		TileOffsets: true, TileByteCounts: true,
	}
	if compressionChanged {
		for _, t := range undesirableTagsOnRecompress {
			skip[t] = true
		}
	}
	out := make([]Field, 0, len(src.Fields))
	for _, f := range src.Fields {
		if skip[f.Tag] {
			continue
		}
		cp := f
		cp.Data = append([]byte(nil), f.Data...)
		out = append(out, cp)
	}
	return out
}
