// Package apngtest writes APNG streams for use in tests.
package apngtest

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	apng "github.com/shutej/apngreader"
)

// Frame is one animation frame to encode. The frame's size is the size of
// its image's bounds.
type Frame struct {
	Image     image.Image
	X, Y      int
	DelayNum  uint16
	DelayDen  uint16
	DisposeOp apng.DisposeOp
	BlendOp   apng.BlendOp
}

// Animation describes an APNG stream.
type Animation struct {
	Width, Height int

	// ColorType and BitDepth give the stream's pixel format.
	// The zero values mean 8-bit RGBA.
	ColorType apng.ColorType
	BitDepth  apng.BitDepth

	// Palette is written as PLTE and tRNS chunks for paletted streams.
	Palette color.Palette

	// NumFrames is the frame count declared in the acTL chunk.
	// Zero means the number of frames in Frames.
	NumFrames uint32

	// NumPlays is the number of times to play the animation.
	// Zero means forever.
	NumPlays uint32

	// Default is written as the stream's default image when it is
	// not part of the animation. When Default is nil, the first
	// frame is the default image.
	Default image.Image

	// Frames holds the animation frames in order.
	Frames []Frame

	// ChunkSize bounds the size of image data chunks.
	// Zero means 1<<15.
	ChunkSize int
}

// Encode writes a as an APNG stream to w.
func Encode(w io.Writer, a *Animation) error {
	if len(a.Frames) == 0 {
		return errors.New("apngtest: no frames")
	}
	ihdr := &apng.Chunk_IHDR{
		Width:     uint32(a.Width),
		Height:    uint32(a.Height),
		BitDepth:  a.BitDepth,
		ColorType: a.ColorType,
	}
	if ihdr.BitDepth == 0 {
		ihdr.BitDepth = apng.BitDepth_8
	}
	if a.ColorType == 0 && a.BitDepth == 0 {
		ihdr.ColorType = apng.ColorType_TrueColorAlpha
	}
	if cb(ihdr) == cbInvalid {
		return fmt.Errorf("apngtest: unsupported color type %d with bit depth %d", ihdr.ColorType, ihdr.BitDepth)
	}
	chunkSize := a.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1 << 15
	}
	numFrames := a.NumFrames
	if numFrames == 0 {
		numFrames = uint32(len(a.Frames))
	}

	ew := &errWriter{w: w}
	io.WriteString(ew, apng.PngHeader)
	ihdr.WriteTo(ew)
	if ihdr.ColorType == apng.ColorType_Paletted {
		newChunk_PLTE(a.Palette).WriteTo(ew)
		newChunk_tRNS(a.Palette).WriteTo(ew)
	}
	(&apng.Chunk_acTL{NumFrames: numFrames, NumPlays: a.NumPlays}).WriteTo(ew)
	if ew.err != nil {
		return ew.err
	}

	var seq sequenceNumbers
	if a.Default != nil {
		err := writeIDAT(ew, frameHeader(ihdr, a.Default), a.Default, chunkSize)
		if err != nil {
			return err
		}
	}
	for i, f := range a.Frames {
		b := f.Image.Bounds()
		fctl := &apng.Chunk_fcTL{
			SequenceNumber: seq.next(),
			Width:          uint32(b.Dx()),
			Height:         uint32(b.Dy()),
			XOffset:        uint32(f.X),
			YOffset:        uint32(f.Y),
			DelayNum:       f.DelayNum,
			DelayDen:       f.DelayDen,
			DisposeOp:      f.DisposeOp,
			BlendOp:        f.BlendOp,
		}
		fctl.WriteTo(ew)
		if ew.err != nil {
			return ew.err
		}
		var err error
		if i == 0 && a.Default == nil {
			err = writeIDAT(ew, frameHeader(ihdr, f.Image), f.Image, chunkSize)
		} else {
			err = writefdAT(ew, frameHeader(ihdr, f.Image), &seq, f.Image, chunkSize)
		}
		if err != nil {
			return err
		}
	}
	(&apng.Chunk_IEND{}).WriteTo(ew)
	return ew.err
}

// Bytes returns the APNG encoding of a.
func Bytes(a *Animation) ([]byte, error) {
	var buf bytes.Buffer
	err := Encode(&buf, a)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Uniform returns a w×h image filled with c.
func Uniform(w, h int, c color.NRGBA) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(m.Pix); i += 4 {
		m.Pix[i+0] = c.R
		m.Pix[i+1] = c.G
		m.Pix[i+2] = c.B
		m.Pix[i+3] = c.A
	}
	return m
}

// frameHeader returns the header describing an image data stream for m.
func frameHeader(ihdr *apng.Chunk_IHDR, m image.Image) *apng.Chunk_IHDR {
	h := *ihdr
	h.Width = uint32(m.Bounds().Dx())
	h.Height = uint32(m.Bounds().Dy())
	return &h
}

// errWriter retains the first write error and discards later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (w *errWriter) Write(b []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	var n int
	n, w.err = w.w.Write(b)
	return n, w.err
}
