package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	apng "github.com/shutej/apngreader"
	"github.com/shutej/apngreader/internal/apngtest"
)

var (
	update = flag.Bool("update", false, "update tests")
	keep   = flag.Bool("keep", false, "keep $WORK directory after tests")
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"apngframes": Main,
		"mkapng":     mkapng,
	}))
}

func TestScripts(t *testing.T) {
	t.Parallel()

	p := testscript.Params{
		Dir:           filepath.Join("testdata"),
		UpdateScripts: *update,
		TestWork:      *keep,
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			"pixel": pixel,
		},
	}
	testscript.Run(t, p)
}

var (
	red   = color.NRGBA{R: 0xff, A: 0xff}
	green = color.NRGBA{G: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0xff}
	white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// fixtures are the streams mkapng can write.
var fixtures = map[string]func() ([]byte, error){
	"anim": func() ([]byte, error) {
		return apngtest.Bytes(&apngtest.Animation{
			Width:    4,
			Height:   4,
			NumPlays: 2,
			Frames: []apngtest.Frame{
				{Image: apngtest.Uniform(4, 4, red), DelayNum: 1, DelayDen: 10},
				{Image: apngtest.Uniform(2, 2, green), X: 1, Y: 1, DelayNum: 1, DelayDen: 20, DisposeOp: apng.DisposeOp_Background},
				{Image: apngtest.Uniform(1, 1, blue), BlendOp: apng.BlendOp_Over},
			},
		})
	},
	"hidden": func() ([]byte, error) {
		return apngtest.Bytes(&apngtest.Animation{
			Width:   4,
			Height:  4,
			Default: apngtest.Uniform(4, 4, white),
			Frames: []apngtest.Frame{
				{Image: apngtest.Uniform(2, 2, red), X: 2, Y: 2, DelayNum: 1, DelayDen: 4},
				{Image: apngtest.Uniform(4, 4, blue), DelayNum: 1, DelayDen: 4},
			},
		})
	},
	"still": func() ([]byte, error) {
		var buf bytes.Buffer
		err := png.Encode(&buf, apngtest.Uniform(3, 2, green))
		return buf.Bytes(), err
	},
	"truncated": func() ([]byte, error) {
		b, err := apngtest.Bytes(&apngtest.Animation{
			Width:  4,
			Height: 4,
			Frames: []apngtest.Frame{
				{Image: apngtest.Uniform(4, 4, red)},
				{Image: apngtest.Uniform(4, 4, green)},
			},
		})
		if err != nil {
			return nil, err
		}
		// Drop IEND and the tail of the last fdAT.
		return b[:len(b)-20], nil
	},
}

// mkapng writes a named test stream.
//
//	usage: mkapng kind file
func mkapng() int {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: mkapng kind file")
		return 2
	}
	fixture, ok := fixtures[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown kind: %q\n", os.Args[1])
		return 2
	}
	b, err := fixture()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	err = os.WriteFile(os.Args[2], b, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// pixel checks the colour of a pixel in an image file.
//
//	usage: pixel file x y rrggbbaa
func pixel(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) != 4 {
		ts.Fatalf("usage: pixel file x y rrggbbaa")
	}
	f, err := os.Open(ts.MkAbs(args[0]))
	ts.Check(err)
	defer f.Close()
	m, _, err := image.Decode(f)
	ts.Check(err)
	x, err := strconv.Atoi(args[1])
	ts.Check(err)
	y, err := strconv.Atoi(args[2])
	ts.Check(err)
	b := m.Bounds()
	c := color.NRGBAModel.Convert(m.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
	got := fmt.Sprintf("%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
	if (got == args[3]) == neg {
		if neg {
			ts.Fatalf("unexpected pixel at (%d,%d): %s", x, y, got)
		}
		ts.Fatalf("unexpected pixel at (%d,%d): got:%s want:%s", x, y, got, args[3])
	}
}
