package apng

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToNRGBA(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.Pix[0], gray.Pix[1] = 0x40, 0xc0

	gray16 := image.NewGray16(image.Rect(0, 0, 1, 1))
	gray16.SetGray16(0, 0, color.Gray16{Y: 0x1234})

	nrgba64 := image.NewNRGBA64(image.Rect(0, 0, 1, 1))
	nrgba64.SetNRGBA64(0, 0, color.NRGBA64{R: 0xabcd, G: 0x1200, B: 0x00ff, A: 0x8080})

	premul := color.RGBA{R: 0x40, G: 0x20, B: 0, A: 0x80}
	rgba := image.NewRGBA(image.Rect(0, 0, 3, 1))
	rgba.SetRGBA(0, 0, premul)
	rgba.SetRGBA(1, 0, color.RGBA{R: 1, G: 2, B: 3, A: 0xff})

	paletted := image.NewPaletted(image.Rect(0, 0, 3, 1), color.Palette{
		color.NRGBA{R: 0xff, A: 0x80},
		nil,
	})
	paletted.Pix[0], paletted.Pix[1], paletted.Pix[2] = 0, 1, 7

	offset := image.NewNRGBA(image.Rect(2, 3, 4, 5))
	offset.SetNRGBA(2, 3, color.NRGBA{R: 1, A: 2})
	offset.SetNRGBA(3, 4, color.NRGBA{G: 3, A: 4})

	cmyk := image.NewCMYK(image.Rect(0, 0, 1, 1))
	cmyk.SetCMYK(0, 0, color.CMYK{C: 0xff})

	for _, test := range []struct {
		name string
		src  image.Image
		want []color.NRGBA
	}{
		{
			name: "gray",
			src:  gray,
			want: []color.NRGBA{{R: 0x40, G: 0x40, B: 0x40, A: 0xff}, {R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff}},
		},
		{
			name: "gray16",
			src:  gray16,
			want: []color.NRGBA{{R: 0x12, G: 0x12, B: 0x12, A: 0xff}},
		},
		{
			name: "nrgba64",
			src:  nrgba64,
			want: []color.NRGBA{{R: 0xab, G: 0x12, B: 0x00, A: 0x80}},
		},
		{
			name: "rgba",
			src:  rgba,
			want: []color.NRGBA{
				color.NRGBAModel.Convert(premul).(color.NRGBA),
				{R: 1, G: 2, B: 3, A: 0xff},
				{},
			},
		},
		{
			name: "paletted",
			src:  paletted,
			want: []color.NRGBA{{R: 0xff, A: 0x80}, {A: 0xff}, {A: 0xff}},
		},
		{
			name: "offset",
			src:  offset,
			want: []color.NRGBA{{R: 1, A: 2}, {}, {}, {G: 3, A: 4}},
		},
		{
			name: "cmyk",
			src:  cmyk,
			want: []color.NRGBA{{R: 0, G: 0xff, B: 0xff, A: 0xff}},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			b := test.src.Bounds()
			got, err := toNRGBA(test.src, b.Dx(), b.Dy())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Rect != image.Rect(0, 0, b.Dx(), b.Dy()) {
				t.Errorf("unexpected bounds: got:%v want origin at zero with size %v", got.Rect, b.Size())
			}
			var pix []color.NRGBA
			for y := 0; y < b.Dy(); y++ {
				for x := 0; x < b.Dx(); x++ {
					pix = append(pix, got.NRGBAAt(x, y))
				}
			}
			if !cmp.Equal(test.want, pix) {
				t.Errorf("unexpected result:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, pix))
			}
		})
	}

	_, err := toNRGBA(gray, 3, 1)
	var ferr FormatError
	if !errors.As(err, &ferr) {
		t.Errorf("expected FormatError for size mismatch, got:%v", err)
	}
}
