package apng

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// Codec decodes the pixel data of a single non-animated PNG stream.
type Codec interface {
	DecodePNG(r io.Reader) (image.Image, error)
}

// CodecFunc is an adapter to allow the use of ordinary functions as a Codec.
type CodecFunc func(r io.Reader) (image.Image, error)

// DecodePNG calls f(r).
func (f CodecFunc) DecodePNG(r io.Reader) (image.Image, error) { return f(r) }

// PNGCodec is the default Codec, backed by image/png.
var PNGCodec Codec = CodecFunc(png.Decode)

// toNRGBA converts a decoded image to an 8-bit non-premultiplied RGBA image
// with its origin at (0, 0). Palettes are expanded, 16-bit samples reduced,
// gray promoted to RGB and images without alpha made opaque.
func toNRGBA(src image.Image, width, height int) (*image.NRGBA, error) {
	b := src.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, FormatError(fmt.Sprintf("decoded image is %dx%d, want %dx%d", b.Dx(), b.Dy(), width, height))
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	switch src := src.(type) {
	case *image.NRGBA:
		for y := 0; y < height; y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+4*width], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	case *image.NRGBA64:
		for y := 0; y < height; y++ {
			d := dst.Pix[y*dst.Stride : y*dst.Stride+4*width]
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for i, j := 0, 0; i < len(d); i, j = i+4, j+8 {
				d[i+0] = s[j+0]
				d[i+1] = s[j+2]
				d[i+2] = s[j+4]
				d[i+3] = s[j+6]
			}
		}
	case *image.RGBA:
		for y := 0; y < height; y++ {
			d := dst.Pix[y*dst.Stride : y*dst.Stride+4*width]
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for i := 0; i < len(d); i += 4 {
				switch a := s[i+3]; a {
				case 0xff:
					copy(d[i:i+4], s[i:i+4])
				case 0:
				default:
					c := color.NRGBAModel.Convert(color.RGBA{R: s[i+0], G: s[i+1], B: s[i+2], A: a}).(color.NRGBA)
					d[i+0], d[i+1], d[i+2], d[i+3] = c.R, c.G, c.B, c.A
				}
			}
		}
	case *image.Gray:
		for y := 0; y < height; y++ {
			d := dst.Pix[y*dst.Stride : y*dst.Stride+4*width]
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for i, j := 0, 0; i < len(d); i, j = i+4, j+1 {
				d[i+0], d[i+1], d[i+2], d[i+3] = s[j], s[j], s[j], 0xff
			}
		}
	case *image.Gray16:
		for y := 0; y < height; y++ {
			d := dst.Pix[y*dst.Stride : y*dst.Stride+4*width]
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for i, j := 0, 0; i < len(d); i, j = i+4, j+2 {
				d[i+0], d[i+1], d[i+2], d[i+3] = s[j], s[j], s[j], 0xff
			}
		}
	case *image.Paletted:
		var lut [256]color.NRGBA
		for i := range lut {
			if i < len(src.Palette) && src.Palette[i] != nil {
				lut[i] = color.NRGBAModel.Convert(src.Palette[i]).(color.NRGBA)
			} else {
				lut[i] = color.NRGBA{A: 0xff}
			}
		}
		for y := 0; y < height; y++ {
			d := dst.Pix[y*dst.Stride : y*dst.Stride+4*width]
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for i, j := 0, 0; i < len(d); i, j = i+4, j+1 {
				c := lut[s[j]]
				d[i+0], d[i+1], d[i+2], d[i+3] = c.R, c.G, c.B, c.A
			}
		}
	default:
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	}
	return dst, nil
}
