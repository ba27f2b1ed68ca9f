// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apngtest

import (
	"bufio"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"io"

	apng "github.com/shutej/apngreader"
)

// ftNone is the PNG filter type of an unfiltered row.
const ftNone = 0

// A cb is a combination of color type and bit depth.
const (
	cbInvalid = iota
	cbG8
	cbTC8
	cbP8
	cbTCA8
	cbG16
	cbTC16
	cbTCA16
)

func cb(c *apng.Chunk_IHDR) int {
	switch true {
	case c.ColorType == apng.ColorType_Grayscale && c.BitDepth == apng.BitDepth_8:
		return cbG8
	case c.ColorType == apng.ColorType_TrueColor && c.BitDepth == apng.BitDepth_8:
		return cbTC8
	case c.ColorType == apng.ColorType_Paletted && c.BitDepth == apng.BitDepth_8:
		return cbP8
	case c.ColorType == apng.ColorType_TrueColorAlpha && c.BitDepth == apng.BitDepth_8:
		return cbTCA8
	case c.ColorType == apng.ColorType_TrueColor && c.BitDepth == apng.BitDepth_16:
		return cbTC16
	case c.ColorType == apng.ColorType_TrueColorAlpha && c.BitDepth == apng.BitDepth_16:
		return cbTCA16
	case c.ColorType == apng.ColorType_Grayscale && c.BitDepth == apng.BitDepth_16:
		return cbG16
	}
	return cbInvalid
}

// chunk_PLTE is the palette chunk, as per the PNG spec.  Write this after IHDR
// but before tRNS or any image data.
type chunk_PLTE struct {
	data []byte
}

// newChunk_PLTE makes a new palette chunk from a color.Palette.
func newChunk_PLTE(p color.Palette) *chunk_PLTE {
	chunk := &chunk_PLTE{
		data: make([]byte, 3*len(p)),
	}
	for i, c := range p {
		c1 := color.NRGBAModel.Convert(c).(color.NRGBA)
		chunk.data[3*i+0] = c1.R
		chunk.data[3*i+1] = c1.G
		chunk.data[3*i+2] = c1.B
	}
	return chunk
}

// WriteTo encodes the palette chunk to the io.Writer.  This supports the
// io.WriterTo interface.
func (c *chunk_PLTE) WriteTo(w io.Writer) (int64, error) {
	return writeChunkTo("PLTE", c.data, w)
}

// chunk_tRNS is the transparency chunk, as per the PNG spec.  Write this after
// IHDR and PLTE but before any image data.
type chunk_tRNS struct {
	data []byte
}

// newChunk_tRNS makes a new transparency chunk from a color.Palette.
func newChunk_tRNS(p color.Palette) *chunk_tRNS {
	chunk := &chunk_tRNS{
		data: make([]byte, len(p)),
	}
	for i, c := range p {
		c1 := color.NRGBAModel.Convert(c).(color.NRGBA)
		chunk.data[i] = c1.A
	}
	return chunk
}

// WriteTo encodes the transparency chunk to the io.Writer.  This supports the
// io.WriterTo interface.
func (c *chunk_tRNS) WriteTo(w io.Writer) (int64, error) {
	return writeChunkTo("tRNS", c.data, w)
}

// sequenceNumbers is used to track sequence numbers across all frames and
// chunks; use this with Chunk_fcTL and encoder_fdAT.
type sequenceNumbers uint32

func (s *sequenceNumbers) next() uint32 {
	tmp := uint32(*s)
	*s++
	return tmp
}

type atom struct {
	buf []byte
	err error
}

type atomWriter chan *atom

// Write sends a copy of b since the zlib and bufio writers reuse their
// buffers.
func (aw atomWriter) Write(b []byte) (int, error) {
	aw <- &atom{buf: append([]byte(nil), b...)}
	return len(b), nil
}

// encoder_IDAT is used to encode an image into one or more image data chunks.
type encoder_IDAT struct {
	aw atomWriter
	a  *atom
}

// newEncoder_IDAT makes a new image data encoder for the given header and image.
// The size of each chunk is bounded by chunkSize.
func newEncoder_IDAT(c *apng.Chunk_IHDR, m image.Image, chunkSize int) *encoder_IDAT {
	aw := make(atomWriter)
	go func() {
		defer close(aw)
		bw := bufio.NewWriterSize(aw, chunkSize)
		z, err := zlib.NewWriterLevel(bw, zlib.DefaultCompression)
		if err != nil {
			aw <- &atom{err: err}
			return
		}
		if err := writeImage(z, m, cb(c)); err != nil {
			aw <- &atom{err: err}
			return
		}
		if err := z.Close(); err != nil {
			aw <- &atom{err: err}
			return
		}
		if err := bw.Flush(); err != nil {
			aw <- &atom{err: err}
		}
	}()
	return &encoder_IDAT{aw: aw}
}

// next is used to advance the encoder to the next chunk.  Call this before
// using either chunk or err.
func (e *encoder_IDAT) next() bool {
	var ok bool
	if e.err() != nil {
		return false
	}
	e.a, ok = <-e.aw
	return ok && e.a.err == nil
}

// err returns any errors encountered while encoding image data chunks.
func (e *encoder_IDAT) err() error {
	if e.a != nil && e.a.err != nil {
		return e.a.err
	}
	return nil
}

// writeIDAT writes the image data chunks for m.
func writeIDAT(w io.Writer, c *apng.Chunk_IHDR, m image.Image, chunkSize int) error {
	e := newEncoder_IDAT(c, m, chunkSize)
	for e.next() {
		_, err := writeChunkTo("IDAT", e.a.buf, w)
		if err != nil {
			drain(e.aw)
			return err
		}
	}
	return e.err()
}

// writefdAT writes the frame data chunks for m, taking a sequence number for
// each chunk from seq.
func writefdAT(w io.Writer, c *apng.Chunk_IHDR, seq *sequenceNumbers, m image.Image, chunkSize int) error {
	e := newEncoder_IDAT(c, m, chunkSize)
	for e.next() {
		buf := make([]byte, 4+len(e.a.buf))
		binary.BigEndian.PutUint32(buf[0:4], seq.next())
		copy(buf[4:], e.a.buf)
		_, err := writeChunkTo("fdAT", buf, w)
		if err != nil {
			drain(e.aw)
			return err
		}
	}
	return e.err()
}

// drain releases the encoding goroutine after a failed write.
func drain(aw atomWriter) {
	for range aw {
	}
}

// writeChunkTo frames b as a chunk named name. It repeats the chunk framing
// of the apng package, which keeps its writer unexported.
func writeChunkTo(name string, b []byte, w io.Writer) (int64, error) {
	buf := make([]byte, 0, 12+len(b))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	buf = append(buf, name...)
	buf = append(buf, b...)
	buf = binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf[4:]))
	n, err := w.Write(buf)
	return int64(n), err
}

func writeImage(w io.Writer, m image.Image, cb int) error {
	bpp := 0 // Bytes per pixel.

	switch cb {
	case cbG8:
		bpp = 1
	case cbTC8:
		bpp = 3
	case cbP8:
		bpp = 1
	case cbTCA8:
		bpp = 4
	case cbTC16:
		bpp = 6
	case cbTCA16:
		bpp = 8
	case cbG16:
		bpp = 2
	}
	// Rows are written unfiltered. The +1 is for the filter type at row[0].
	b := m.Bounds()
	row := make([]uint8, 1+bpp*b.Dx())
	row[0] = ftNone

	nrgba, _ := m.(*image.NRGBA)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		// Convert from colors to bytes.
		i := 1
		switch cb {
		case cbG8:
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.GrayModel.Convert(m.At(x, y)).(color.Gray)
				row[i] = c.Y
				i++
			}
		case cbTC8:
			// Alpha is assumed to be fully opaque.
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, b, _ := m.At(x, y).RGBA()
				row[i+0] = uint8(r >> 8)
				row[i+1] = uint8(g >> 8)
				row[i+2] = uint8(b >> 8)
				i += 3
			}
		case cbP8:
			pi := m.(image.PalettedImage)
			for x := b.Min.X; x < b.Max.X; x++ {
				row[i] = pi.ColorIndexAt(x, y)
				i += 1
			}
		case cbTCA8:
			if nrgba != nil {
				offset := nrgba.PixOffset(b.Min.X, y)
				copy(row[1:], nrgba.Pix[offset:offset+b.Dx()*4])
			} else {
				// Convert from image.Image (which is alpha-premultiplied) to PNG's non-alpha-premultiplied.
				for x := b.Min.X; x < b.Max.X; x++ {
					c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
					row[i+0] = c.R
					row[i+1] = c.G
					row[i+2] = c.B
					row[i+3] = c.A
					i += 4
				}
			}
		case cbG16:
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.Gray16Model.Convert(m.At(x, y)).(color.Gray16)
				row[i+0] = uint8(c.Y >> 8)
				row[i+1] = uint8(c.Y)
				i += 2
			}
		case cbTC16:
			// Alpha is assumed to be fully opaque.
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, b, _ := m.At(x, y).RGBA()
				row[i+0] = uint8(r >> 8)
				row[i+1] = uint8(r)
				row[i+2] = uint8(g >> 8)
				row[i+3] = uint8(g)
				row[i+4] = uint8(b >> 8)
				row[i+5] = uint8(b)
				i += 6
			}
		case cbTCA16:
			// Convert from image.Image (which is alpha-premultiplied) to PNG's non-alpha-premultiplied.
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBA64Model.Convert(m.At(x, y)).(color.NRGBA64)
				row[i+0] = uint8(c.R >> 8)
				row[i+1] = uint8(c.R)
				row[i+2] = uint8(c.G >> 8)
				row[i+3] = uint8(c.G)
				row[i+4] = uint8(c.B >> 8)
				row[i+5] = uint8(c.B)
				row[i+6] = uint8(c.A >> 8)
				row[i+7] = uint8(c.A)
				i += 8
			}
		}

		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
