package apngtest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"

	apng "github.com/shutej/apngreader"
)

func chunkNames(t *testing.T, b []byte) []string {
	t.Helper()
	if !bytes.HasPrefix(b, []byte(apng.PngHeader)) {
		t.Fatal("missing PNG signature")
	}
	var names []string
	for off := len(apng.PngHeader); off < len(b); {
		n := int(binary.BigEndian.Uint32(b[off:]))
		names = append(names, string(b[off+4:off+8]))
		off += 12 + n
	}
	return names
}

func TestEncode(t *testing.T) {
	red := color.NRGBA{R: 0xff, A: 0xff}
	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

	for _, test := range []struct {
		name        string
		anim        *Animation
		wantChunks  []string
		wantDefault color.NRGBA
	}{
		{
			name: "visible_default",
			anim: &Animation{
				Width:  2,
				Height: 2,
				Frames: []Frame{
					{Image: Uniform(2, 2, red)},
					{Image: Uniform(1, 1, white), X: 1, Y: 1},
				},
			},
			wantChunks:  []string{"IHDR", "acTL", "fcTL", "IDAT", "fcTL", "fdAT", "IEND"},
			wantDefault: red,
		},
		{
			name: "hidden_default",
			anim: &Animation{
				Width:   2,
				Height:  2,
				Default: Uniform(2, 2, white),
				Frames: []Frame{
					{Image: Uniform(2, 2, red)},
				},
			},
			wantChunks:  []string{"IHDR", "acTL", "IDAT", "fcTL", "fdAT", "IEND"},
			wantDefault: white,
		},
		{
			name: "paletted",
			anim: &Animation{
				Width:     2,
				Height:    2,
				ColorType: apng.ColorType_Paletted,
				BitDepth:  apng.BitDepth_8,
				Palette:   color.Palette{red, white},
				Frames: []Frame{
					{Image: image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{red, white})},
				},
			},
			wantChunks:  []string{"IHDR", "PLTE", "tRNS", "acTL", "fcTL", "IDAT", "IEND"},
			wantDefault: red,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			b, err := Bytes(test.anim)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := chunkNames(t, b)
			if !cmp.Equal(test.wantChunks, got) {
				t.Errorf("unexpected chunks:\n--- want:\n+++ got:\n%s", cmp.Diff(test.wantChunks, got))
			}

			// Decoders without animation support see the default image.
			m, err := png.Decode(bytes.NewReader(b))
			if err != nil {
				t.Fatalf("unexpected error decoding default image: %v", err)
			}
			c := color.NRGBAModel.Convert(m.At(1, 1)).(color.NRGBA)
			if c != test.wantDefault {
				t.Errorf("unexpected default image pixel: got:%v want:%v", c, test.wantDefault)
			}
		})
	}
}

func TestEncodeSequenceNumbers(t *testing.T) {
	b, err := Bytes(&Animation{
		Width:     4,
		Height:    4,
		ChunkSize: 8,
		Frames: []Frame{
			{Image: Uniform(4, 4, color.NRGBA{A: 0xff})},
			{Image: Uniform(4, 4, color.NRGBA{R: 1, A: 0xff})},
			{Image: Uniform(4, 4, color.NRGBA{G: 1, A: 0xff})},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var want uint32
	for off := len(apng.PngHeader); off < len(b); {
		n := int(binary.BigEndian.Uint32(b[off:]))
		switch string(b[off+4 : off+8]) {
		case "fcTL", "fdAT":
			got := binary.BigEndian.Uint32(b[off+8:])
			if got != want {
				t.Errorf("unexpected sequence number at offset %d: got:%d want:%d", off, got, want)
			}
			want++
		}
		off += 12 + n
	}
	if want < 5 {
		t.Errorf("too few sequenced chunks: %d", want)
	}
}

func TestEncodeErrors(t *testing.T) {
	_, err := Bytes(&Animation{Width: 1, Height: 1})
	if err == nil {
		t.Error("expected error for animation without frames")
	}
	_, err = Bytes(&Animation{
		Width:     1,
		Height:    1,
		ColorType: apng.ColorType_Paletted,
		BitDepth:  apng.BitDepth_16,
		Frames:    []Frame{{Image: Uniform(1, 1, color.NRGBA{})}},
	})
	if err == nil {
		t.Error("expected error for unsupported pixel format")
	}
}
