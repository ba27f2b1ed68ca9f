package apng

import (
	"bytes"
	"image"
)

// maxCanvasBytes bounds the size of the RGBA canvas and of each decoded frame.
const maxCanvasBytes = 1 << 30

// metadata holds the stream state established by a single forward scan of
// the chunks preceding the first image data.
type metadata struct {
	ihdr Chunk_IHDR

	// global holds the raw ancillary and palette chunks that precede
	// the image data. They are replayed to the codec for every frame.
	global [][]byte

	actl      *Chunk_acTL // nil for plain PNG streams
	skipFirst bool        // the default image is not part of the animation

	idat  int // offset of the first IDAT chunk
	first int // offset of the first chunk belonging to frame 0
}

// scan reads the signature and header chunks of the buffered stream in buf.
// Frame control chunks after the first image data are left unparsed.
func scan(buf []byte) (*metadata, error) {
	if !IsPNG(buf) {
		return nil, ErrSignatureMismatch
	}
	c, err := readChunk(buf, len(PngHeader))
	if err != nil {
		return nil, &MetadataError{Err: err}
	}
	if c.name != chunkIHDR {
		return nil, &MetadataError{Chunk: c.name, Err: FormatError("missing IHDR")}
	}
	var m metadata
	err = m.ihdr.parse(c.data)
	if err != nil {
		return nil, &MetadataError{Chunk: chunkIHDR, Err: err}
	}
	if 4*uint64(m.ihdr.Width)*uint64(m.ihdr.Height) > maxCanvasBytes {
		return nil, &MetadataError{Chunk: chunkIHDR, Err: FormatError("image too large")}
	}

	fctl := -1
	for off := c.next; ; off = c.next {
		c, err = readChunk(buf, off)
		if err != nil {
			return nil, &MetadataError{Err: err}
		}
		switch c.name {
		case chunkIDAT:
			m.idat = c.off
			m.first = c.off
			if m.actl != nil {
				if fctl < 0 {
					m.skipFirst = true
				} else {
					m.first = fctl
				}
			}
			return &m, nil
		case chunkacTL:
			if m.actl != nil {
				return nil, &MetadataError{Chunk: chunkacTL, Err: FormatError("duplicate acTL")}
			}
			var a Chunk_acTL
			err = a.parse(c.data)
			if err != nil {
				return nil, &MetadataError{Chunk: chunkacTL, Err: err}
			}
			m.actl = &a
		case chunkfcTL:
			if fctl >= 0 {
				return nil, &MetadataError{Chunk: chunkfcTL, Err: FormatError("duplicate fcTL before IDAT")}
			}
			fctl = c.off
		case chunkfdAT, chunkIEND:
			return nil, &MetadataError{Chunk: c.name, Err: FormatError("missing IDAT")}
		default:
			m.global = append(m.global, c.raw(buf))
		}
	}
}

// bounds returns the canvas rectangle.
func (m *metadata) bounds() image.Rectangle {
	return image.Rect(0, 0, int(m.ihdr.Width), int(m.ihdr.Height))
}

// decodeImage decodes the compressed image data of a width×height image
// by presenting it to codec as a standalone PNG stream that carries the
// stream's header and global chunks.
func (m *metadata) decodeImage(codec Codec, width, height uint32, data []byte) (*image.NRGBA, error) {
	var b bytes.Buffer
	n := len(PngHeader) + 2*sizeOfChunkOverhead + sizeOfIHDR + len(data)
	for _, g := range m.global {
		n += len(g)
	}
	b.Grow(n + sizeOfChunkOverhead)

	// Writes to a bytes.Buffer do not fail.
	b.WriteString(PngHeader)
	ihdr := m.ihdr
	ihdr.Width = width
	ihdr.Height = height
	ihdr.WriteTo(&b)
	for _, g := range m.global {
		b.Write(g)
	}
	writeChunkTo(chunkIDAT, data, &b)
	(&Chunk_IEND{}).WriteTo(&b)

	img, err := codec.DecodePNG(&b)
	if err != nil {
		return nil, err
	}
	return toNRGBA(img, int(width), int(height))
}
