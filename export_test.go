package apng

import "image"

// Canvas returns the animation canvas as it stands between frames, after
// the last frame's disposal. It is nil for plain PNG streams.
func (d *Decoder) Canvas() *image.NRGBA {
	if d.comp == nil {
		return nil
	}
	return d.comp.canvas
}
