package apng

import (
	"errors"
	"fmt"
)

var (
	// ErrSignatureMismatch is returned when a stream does not start with
	// the PNG signature.
	ErrSignatureMismatch = errors.New("apng: not a PNG stream")

	// ErrNotSeekable is returned when the source does not support
	// random access.
	ErrNotSeekable = errors.New("apng: stream is not seekable")

	// ErrScanNotPerformed is returned, wrapped together with the scan
	// failure, when an operation needs stream metadata that could not
	// be scanned.
	ErrScanNotPerformed = errors.New("apng: no successful scan")

	// ErrNoMoreFrames is returned by ReadNextFrame after the last
	// declared frame has been read.
	ErrNoMoreFrames = errors.New("apng: no more frames")

	// ErrNoDefaultImage is returned by DefaultImage when the stream's
	// default image is part of the animation or there is no animation.
	ErrNoDefaultImage = errors.New("apng: no hidden default image")
)

// FormatError reports that the input is not a valid PNG or APNG stream.
type FormatError string

func (e FormatError) Error() string { return "apng: invalid format: " + string(e) }

// MetadataError is returned when the image header or animation control
// data cannot be established.
type MetadataError struct {
	Chunk string // Chunk being parsed when the failure occurred, if known.
	Err   error
}

func (e *MetadataError) Error() string {
	if e.Chunk == "" {
		return fmt.Sprintf("apng: metadata: %v", e.Err)
	}
	return fmt.Sprintf("apng: metadata: %s: %v", e.Chunk, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// DecodeError is returned when a frame's control or pixel data is
// corrupt, truncated or inconsistent with the image bounds.
type DecodeError struct {
	Frame int // Index of the frame being decoded.
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("apng: frame %d: %v", e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
