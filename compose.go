package apng

import (
	"image"

	"golang.org/x/image/draw"
)

// compositor holds the canvas of an animation and applies frames to it.
//
// Disposal is applied as soon as a frame's snapshot has been taken, so
// between frames the canvas holds the state the next frame is painted onto.
type compositor struct {
	canvas *image.NRGBA

	// saved holds the canvas region covered by the last frame with
	// DisposeOp_Previous, as it was before that frame was painted.
	// It is allocated on first use and has the canvas bounds.
	saved *image.NRGBA
}

// newCompositor returns a compositor with a transparent canvas covering r.
func newCompositor(r image.Rectangle) *compositor {
	return &compositor{canvas: image.NewNRGBA(r)}
}

// compose paints src into the canvas region fc.Rect using fc.BlendOp and
// returns a copy of the resulting canvas. The frame's disposal is then
// applied to the canvas.
func (c *compositor) compose(src *image.NRGBA, fc FrameControl) *image.NRGBA {
	r := fc.Rect.Intersect(c.canvas.Rect)
	if fc.DisposeOp == DisposeOp_Previous {
		if c.saved == nil {
			c.saved = image.NewNRGBA(c.canvas.Rect)
		}
		copyRect(c.saved, c.canvas, r)
	}
	c.paint(src, fc.Rect, fc.BlendOp)
	snap := c.snapshot()
	c.dispose(r, fc.DisposeOp)
	return snap
}

// paint writes src onto the canvas with its origin at rect.Min.
func (c *compositor) paint(src *image.NRGBA, rect image.Rectangle, op BlendOp) {
	r := rect.Intersect(c.canvas.Rect)
	if r.Empty() {
		return
	}
	n := 4 * r.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		d := c.canvas.Pix[c.canvas.PixOffset(r.Min.X, y):][:n]
		s := src.Pix[src.PixOffset(src.Rect.Min.X+r.Min.X-rect.Min.X, src.Rect.Min.Y+y-rect.Min.Y):][:n]
		if op == BlendOp_Source {
			copy(d, s)
			continue
		}
		for i := 0; i < n; i += 4 {
			over(d[i:i+4:i+4], s[i:i+4:i+4])
		}
	}
}

// dispose applies a frame's disposal to the canvas region r it covered.
func (c *compositor) dispose(r image.Rectangle, op DisposeOp) {
	switch op {
	case DisposeOp_Background:
		draw.Draw(c.canvas, r, image.Transparent, image.Point{}, draw.Src)
	case DisposeOp_Previous:
		copyRect(c.canvas, c.saved, r)
	}
}

// snapshot returns a copy of the canvas.
func (c *compositor) snapshot() *image.NRGBA {
	dst := image.NewNRGBA(c.canvas.Rect)
	copy(dst.Pix, c.canvas.Pix)
	return dst
}

// copyRect copies the region r from src to dst. Both images must contain r.
func copyRect(dst, src *image.NRGBA, r image.Rectangle) {
	n := 4 * r.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := dst.PixOffset(r.Min.X, y)
		j := src.PixOffset(r.Min.X, y)
		copy(dst.Pix[i:i+n], src.Pix[j:j+n])
	}
}

// over composites the non-premultiplied RGBA pixel src over dst in place.
func over(dst, src []byte) {
	sa := uint32(src[3])
	switch {
	case sa == 0xff, dst[3] == 0:
		copy(dst, src)
		return
	case sa == 0:
		return
	}
	// Weights are scaled by 0xff.
	dw := uint32(dst[3]) * (0xff - sa)
	a := sa*0xff + dw
	for k := 0; k < 3; k++ {
		dst[k] = uint8((uint32(src[k])*sa*0xff + uint32(dst[k])*dw + a/2) / a)
	}
	dst[3] = uint8((a + 0x7f) / 0xff)
}
