package apng

import (
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOver(t *testing.T) {
	for _, test := range []struct {
		name     string
		dst, src color.NRGBA
		want     color.NRGBA
	}{
		{
			name: "opaque_src",
			dst:  color.NRGBA{R: 10, G: 20, B: 30, A: 0xff},
			src:  color.NRGBA{R: 200, G: 100, B: 50, A: 0xff},
			want: color.NRGBA{R: 200, G: 100, B: 50, A: 0xff},
		},
		{
			name: "transparent_dst",
			dst:  color.NRGBA{},
			src:  color.NRGBA{R: 200, G: 100, B: 50, A: 0x40},
			want: color.NRGBA{R: 200, G: 100, B: 50, A: 0x40},
		},
		{
			name: "transparent_src",
			dst:  color.NRGBA{R: 10, G: 20, B: 30, A: 0x80},
			src:  color.NRGBA{R: 200, G: 100, B: 50},
			want: color.NRGBA{R: 10, G: 20, B: 30, A: 0x80},
		},
		{
			name: "half_over_opaque",
			dst:  color.NRGBA{R: 0, G: 0, B: 0xff, A: 0xff},
			src:  color.NRGBA{R: 0xff, G: 0, B: 0, A: 0x80},
			// Source weight is 128/255 against 127/255 for the destination.
			want: color.NRGBA{R: 0x80, G: 0, B: 0x7f, A: 0xff},
		},
		{
			name: "half_over_half",
			dst:  color.NRGBA{R: 0, G: 0, B: 0xff, A: 0x80},
			src:  color.NRGBA{R: 0xff, G: 0, B: 0, A: 0x80},
			want: color.NRGBA{R: 0xaa, G: 0, B: 0x55, A: 0xc0},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			dst := []byte{test.dst.R, test.dst.G, test.dst.B, test.dst.A}
			over(dst, []byte{test.src.R, test.src.G, test.src.B, test.src.A})
			got := color.NRGBA{R: dst[0], G: dst[1], B: dst[2], A: dst[3]}
			if got != test.want {
				t.Errorf("unexpected result:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
			}
		})
	}
}

func fill(r image.Rectangle, c color.NRGBA) *image.NRGBA {
	m := image.NewNRGBA(r)
	for i := 0; i < len(m.Pix); i += 4 {
		m.Pix[i+0], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return m
}

func TestCompose(t *testing.T) {
	var (
		red         = color.NRGBA{R: 0xff, A: 0xff}
		green       = color.NRGBA{G: 0xff, A: 0xff}
		blue        = color.NRGBA{B: 0xff, A: 0xff}
		transparent = color.NRGBA{}
	)
	canvas := image.Rect(0, 0, 4, 4)
	inner := image.Rect(1, 1, 3, 3)

	t.Run("background", func(t *testing.T) {
		c := newCompositor(canvas)
		c.compose(fill(canvas, red), FrameControl{Rect: canvas})
		snap := c.compose(fill(image.Rect(0, 0, 2, 2), green), FrameControl{Rect: inner, DisposeOp: DisposeOp_Background})
		if got := snap.NRGBAAt(1, 1); got != green {
			t.Errorf("unexpected snapshot pixel in frame: got:%v want:%v", got, green)
		}
		if got := snap.NRGBAAt(0, 0); got != red {
			t.Errorf("unexpected snapshot pixel outside frame: got:%v want:%v", got, red)
		}
		if got := c.canvas.NRGBAAt(2, 2); got != transparent {
			t.Errorf("unexpected disposed pixel: got:%v want:%v", got, transparent)
		}
		if got := c.canvas.NRGBAAt(3, 3); got != red {
			t.Errorf("unexpected pixel outside disposal: got:%v want:%v", got, red)
		}
	})

	t.Run("previous", func(t *testing.T) {
		c := newCompositor(canvas)
		c.compose(fill(canvas, red), FrameControl{Rect: canvas})
		before := c.snapshot()
		snap := c.compose(fill(image.Rect(0, 0, 2, 2), blue), FrameControl{Rect: inner, DisposeOp: DisposeOp_Previous})
		if got := snap.NRGBAAt(2, 1); got != blue {
			t.Errorf("unexpected snapshot pixel: got:%v want:%v", got, blue)
		}
		if !cmp.Equal(before.Pix, c.canvas.Pix) {
			t.Errorf("canvas not restored:\n--- want:\n+++ got:\n%s", cmp.Diff(before.Pix, c.canvas.Pix))
		}
	})

	t.Run("snapshot_independent", func(t *testing.T) {
		c := newCompositor(canvas)
		snap := c.compose(fill(canvas, red), FrameControl{Rect: canvas, DisposeOp: DisposeOp_Background})
		if got := snap.NRGBAAt(0, 0); got != red {
			t.Errorf("snapshot changed by disposal: got:%v want:%v", got, red)
		}
	})

	t.Run("over", func(t *testing.T) {
		c := newCompositor(canvas)
		c.compose(fill(canvas, red), FrameControl{Rect: canvas})
		snap := c.compose(fill(image.Rect(0, 0, 2, 2), transparent), FrameControl{Rect: inner, BlendOp: BlendOp_Over})
		if got := snap.NRGBAAt(1, 1); got != red {
			t.Errorf("unexpected pixel under transparent source: got:%v want:%v", got, red)
		}
		snap = c.compose(fill(image.Rect(0, 0, 2, 2), transparent), FrameControl{Rect: inner, BlendOp: BlendOp_Source})
		if got := snap.NRGBAAt(1, 1); got != transparent {
			t.Errorf("unexpected pixel under replacing source: got:%v want:%v", got, transparent)
		}
	})
}
