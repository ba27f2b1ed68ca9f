// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
)

const PngHeader = "\x89PNG\r\n\x1a\n"

// Chunk type names, as per the PNG and APNG specs.
const (
	chunkIHDR = "IHDR"
	chunkPLTE = "PLTE"
	chunkIDAT = "IDAT"
	chunkIEND = "IEND"
	chunkacTL = "acTL"
	chunkfcTL = "fcTL"
	chunkfdAT = "fdAT"
)

// ColorType is the type of color of the image, per the PNG spec.
type ColorType uint8

const sizeOfColorType = 1

const (
	ColorType_Grayscale      = ColorType(0)
	ColorType_TrueColor      = ColorType(2)
	ColorType_Paletted       = ColorType(3)
	ColorType_GrayscaleAlpha = ColorType(4)
	ColorType_TrueColorAlpha = ColorType(6)
)

// BitDepth is the bit depth of the image, as per the PNG spec.
type BitDepth uint8

const sizeOfBitDepth = 1

const (
	BitDepth_1  = BitDepth(1)
	BitDepth_2  = BitDepth(2)
	BitDepth_4  = BitDepth(4)
	BitDepth_8  = BitDepth(8)
	BitDepth_16 = BitDepth(16)
)

// CompressionMethod is the compression method, as per the PNG spec.
type CompressionMethod uint8

const sizeOfCompressionMethod = 1

const (
	CompressionMethod_Default = CompressionMethod(0)
)

// FilterMethod is the filter method, as per the PNG spec.
type FilterMethod uint8

const sizeOfFilterMethod = 1

const (
	FilterMethod_Default = FilterMethod(0)
)

// InterlaceMethod is the interlace method, as per the PNG spec.
type InterlaceMethod uint8

const sizeOfInterlaceMethod = 1

const (
	InterlaceMethod_NonInterlaced = InterlaceMethod(0)
	InterlaceMethod_Interlaced    = InterlaceMethod(1)
)

// Chunk_IHDR is the image header chunk, as per the PNG spec.
type Chunk_IHDR struct {
	Width             uint32
	Height            uint32
	BitDepth          BitDepth
	ColorType         ColorType
	CompressionMethod CompressionMethod
	FilterMethod      FilterMethod
	InterlaceMethod   InterlaceMethod
}

const sizeOfIHDR = sizeOfUint32*2 + sizeOfBitDepth + sizeOfColorType + sizeOfCompressionMethod + sizeOfFilterMethod + sizeOfInterlaceMethod

// WriteTo encodes the IHDR chunk to the io.Writer.  This supports the
// io.WriterTo interface.
func (c *Chunk_IHDR) WriteTo(w io.Writer) (int64, error) {
	buf := [sizeOfIHDR]byte{}
	writeUint32(buf[0:4], c.Width)
	writeUint32(buf[4:8], c.Height)
	buf[8] = byte(c.BitDepth)
	buf[9] = byte(c.ColorType)
	buf[10] = byte(c.CompressionMethod)
	buf[11] = byte(c.FilterMethod)
	buf[12] = byte(c.InterlaceMethod)
	return writeChunkTo(chunkIHDR, buf[0:len(buf)], w)
}

// parse decodes the IHDR chunk payload in b and checks it describes an image
// the PNG spec allows.
func (c *Chunk_IHDR) parse(b []byte) error {
	if len(b) != sizeOfIHDR {
		return FormatError(fmt.Sprintf("bad IHDR length: %d", len(b)))
	}
	c.Width = readUint32(b[0:4])
	c.Height = readUint32(b[4:8])
	c.BitDepth = BitDepth(b[8])
	c.ColorType = ColorType(b[9])
	c.CompressionMethod = CompressionMethod(b[10])
	c.FilterMethod = FilterMethod(b[11])
	c.InterlaceMethod = InterlaceMethod(b[12])

	// Dimensions are limited to 2^31-1 by the PNG spec.
	if c.Width == 0 || c.Height == 0 || c.Width > 1<<31-1 || c.Height > 1<<31-1 {
		return FormatError(fmt.Sprintf("invalid dimensions %dx%d", c.Width, c.Height))
	}
	if !c.validDepth() {
		return FormatError(fmt.Sprintf("invalid bit depth %d for color type %d", c.BitDepth, c.ColorType))
	}
	if c.CompressionMethod != CompressionMethod_Default {
		return FormatError("invalid compression method")
	}
	if c.FilterMethod != FilterMethod_Default {
		return FormatError("invalid filter method")
	}
	if c.InterlaceMethod != InterlaceMethod_NonInterlaced && c.InterlaceMethod != InterlaceMethod_Interlaced {
		return FormatError("invalid interlace method")
	}
	return nil
}

func (c *Chunk_IHDR) validDepth() bool {
	switch c.ColorType {
	case ColorType_Grayscale:
		switch c.BitDepth {
		case BitDepth_1, BitDepth_2, BitDepth_4, BitDepth_8, BitDepth_16:
			return true
		}
	case ColorType_Paletted:
		switch c.BitDepth {
		case BitDepth_1, BitDepth_2, BitDepth_4, BitDepth_8:
			return true
		}
	case ColorType_TrueColor, ColorType_GrayscaleAlpha, ColorType_TrueColorAlpha:
		switch c.BitDepth {
		case BitDepth_8, BitDepth_16:
			return true
		}
	}
	return false
}

// Chunk_IEND is the ending chunk, as per the PNG spec.  Write this after all other chunks.
type Chunk_IEND struct{}

// WriteTo encodes the ending chunk to the io.Writer.  This supports the
// io.WriterTo interface.
func (c *Chunk_IEND) WriteTo(w io.Writer) (int64, error) {
	return writeChunkTo(chunkIEND, nil, w)
}

// Chunk_acTL is the animation control chunk, as per the APNG spec.  It appears
// before any image data.
type Chunk_acTL struct {
	NumFrames uint32 // Number of frames
	NumPlays  uint32 // Number of times to loop this APNG. 0 indicates infinite looping.
}

const sizeOfacTL = sizeOfUint32 * 2

// WriteTo encodes the animation control chunk to the io.Writer.  This supports
// the io.WriterTo interface.
func (c *Chunk_acTL) WriteTo(w io.Writer) (int64, error) {
	buf := [sizeOfacTL]byte{}
	writeUint32(buf[0:4], c.NumFrames)
	writeUint32(buf[4:8], c.NumPlays)
	return writeChunkTo(chunkacTL, buf[0:len(buf)], w)
}

func (c *Chunk_acTL) parse(b []byte) error {
	if len(b) != sizeOfacTL {
		return FormatError(fmt.Sprintf("bad acTL length: %d", len(b)))
	}
	c.NumFrames = readUint32(b[0:4])
	c.NumPlays = readUint32(b[4:8])
	if c.NumFrames == 0 {
		return FormatError("acTL declares no frames")
	}
	return nil
}

// DisposeOp is the dispose operator, as per the APNG spec.
type DisposeOp uint8

const sizeOfDisposeOp = 1

const (
	DisposeOp_None       = DisposeOp(0)
	DisposeOp_Background = DisposeOp(1)
	DisposeOp_Previous   = DisposeOp(2)
)

func (op DisposeOp) String() string {
	switch op {
	case DisposeOp_None:
		return "None"
	case DisposeOp_Background:
		return "Background"
	case DisposeOp_Previous:
		return "Previous"
	default:
		return fmt.Sprintf("DisposeOp(%d)", uint8(op))
	}
}

// BlendOp is the blend operator, as per the APNG spec.
type BlendOp uint8

const sizeOfBlendOp = 1

const (
	BlendOp_Source = BlendOp(0)
	BlendOp_Over   = BlendOp(1)
)

func (op BlendOp) String() string {
	switch op {
	case BlendOp_Source:
		return "Source"
	case BlendOp_Over:
		return "Over"
	default:
		return fmt.Sprintf("BlendOp(%d)", uint8(op))
	}
}

// Chunk_fcTL is the frame control chunk, as per the APNG spec.
type Chunk_fcTL struct {
	SequenceNumber uint32    // Sequence number of the animation chunk, starting from 0
	Width          uint32    // Width of the following frame
	Height         uint32    // Height of the following frame
	XOffset        uint32    // X position at which to render the following frame
	YOffset        uint32    // Y position at which to render the following frame
	DelayNum       uint16    // Frame delay fraction numerator
	DelayDen       uint16    // Frame delay fraction denominator
	DisposeOp      DisposeOp // Type of frame area disposal to be done after rendering this frame
	BlendOp        BlendOp   // Type of frame area rendering for this frame
}

const sizeOffcTL = sizeOfUint32*5 + sizeOfUint16*2 + sizeOfDisposeOp + sizeOfBlendOp

// WriteTo encodes the frame control chunk to the io.Writer.  This supports the
// io.WriterTo interface.
func (c *Chunk_fcTL) WriteTo(w io.Writer) (int64, error) {
	buf := [sizeOffcTL]byte{}
	writeUint32(buf[0:4], c.SequenceNumber)
	writeUint32(buf[4:8], c.Width)
	writeUint32(buf[8:12], c.Height)
	writeUint32(buf[12:16], c.XOffset)
	writeUint32(buf[16:20], c.YOffset)
	writeUint16(buf[20:22], c.DelayNum)
	writeUint16(buf[22:24], c.DelayDen)
	buf[24] = byte(c.DisposeOp)
	buf[25] = byte(c.BlendOp)
	return writeChunkTo(chunkfcTL, buf[0:len(buf)], w)
}

// parse decodes the fcTL chunk payload in b. Geometry is checked against the
// image header by the caller.
func (c *Chunk_fcTL) parse(b []byte) error {
	if len(b) != sizeOffcTL {
		return FormatError(fmt.Sprintf("bad fcTL length: %d", len(b)))
	}
	c.SequenceNumber = readUint32(b[0:4])
	c.Width = readUint32(b[4:8])
	c.Height = readUint32(b[8:12])
	c.XOffset = readUint32(b[12:16])
	c.YOffset = readUint32(b[16:20])
	c.DelayNum = readUint16(b[20:22])
	c.DelayDen = readUint16(b[22:24])
	c.DisposeOp = DisposeOp(b[24])
	c.BlendOp = BlendOp(b[25])
	if c.DisposeOp > DisposeOp_Previous {
		return FormatError(fmt.Sprintf("invalid dispose op %d", c.DisposeOp))
	}
	if c.BlendOp > BlendOp_Over {
		return FormatError(fmt.Sprintf("invalid blend op %d", c.BlendOp))
	}
	return nil
}

// LogValue implements the slog.LogValuer interface.
func (c *Chunk_fcTL) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("seq", uint64(c.SequenceNumber)),
		slog.Uint64("width", uint64(c.Width)),
		slog.Uint64("height", uint64(c.Height)),
		slog.Uint64("x", uint64(c.XOffset)),
		slog.Uint64("y", uint64(c.YOffset)),
		slog.Uint64("delay_num", uint64(c.DelayNum)),
		slog.Uint64("delay_den", uint64(c.DelayDen)),
		slog.String("dispose", c.DisposeOp.String()),
		slog.String("blend", c.BlendOp.String()),
	)
}

// chunk is one chunk located in a buffered stream.
type chunk struct {
	name string
	data []byte // payload, aliasing the stream buffer
	off  int    // offset of the length field
	next int    // offset of the following chunk
}

// raw returns the complete chunk, including the length, type and CRC fields.
func (c chunk) raw(buf []byte) []byte {
	return buf[c.off:c.next]
}

const sizeOfChunkOverhead = sizeOfUint32 * 3

// readChunk reads the chunk starting at off in buf and verifies its CRC.
func readChunk(buf []byte, off int) (chunk, error) {
	if off < 0 || len(buf)-off < sizeOfChunkOverhead {
		return chunk{}, io.ErrUnexpectedEOF
	}
	n := readUint32(buf[off : off+4])
	if n > 1<<31-1 || uint64(n) > uint64(len(buf)-off-sizeOfChunkOverhead) {
		return chunk{}, io.ErrUnexpectedEOF
	}
	c := chunk{
		name: string(buf[off+4 : off+8]),
		data: buf[off+8 : off+8+int(n)],
		off:  off,
		next: off + 8 + int(n) + 4,
	}
	crc := crc32.NewIEEE()
	crc.Write(buf[off+4 : off+8+int(n)])
	if crc.Sum32() != readUint32(buf[c.next-4:c.next]) {
		return chunk{}, FormatError(c.name + " checksum mismatch")
	}
	return c, nil
}

// Big-endian.
func writeUint16(b []uint8, u uint16) {
	b[0] = uint8(u >> 8)
	b[1] = uint8(u >> 0)
}

// Big-endian.
func readUint16(b []uint8) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

const sizeOfUint16 = 2

// Big-endian.
func writeUint32(b []uint8, u uint32) {
	b[0] = uint8(u >> 24)
	b[1] = uint8(u >> 16)
	b[2] = uint8(u >> 8)
	b[3] = uint8(u >> 0)
}

// Big-endian.
func readUint32(b []uint8) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

const sizeOfUint32 = 4

func writeChunkTo(name string, b []byte, w io.Writer) (int64, error) {
	header := [8]byte{}
	footer := [4]byte{}

	writeUint32(header[:4], uint32(len(b)))
	header[4] = name[0]
	header[5] = name[1]
	header[6] = name[2]
	header[7] = name[3]

	crc := crc32.NewIEEE()
	crc.Write(header[4:8])
	crc.Write(b)
	writeUint32(footer[:4], crc.Sum32())

	hl, err := w.Write(header[:8])
	if err != nil {
		return int64(hl), err
	}
	bl, err := w.Write(b)
	if err != nil {
		return int64(hl + bl), err
	}
	fl, err := w.Write(footer[:4])
	return int64(hl + bl + fl), err
}
