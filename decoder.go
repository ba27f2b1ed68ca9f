package apng

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"
)

// LoopForever is the loop count reported for animations that repeat
// indefinitely.
const LoopForever = -1

// Options configures a Decoder.
type Options struct {
	// Codec decodes each frame's pixel data.
	// PNGCodec is used if Codec is nil.
	Codec Codec

	// Logger receives debug and warning records.
	// Logging is discarded if Logger is nil.
	Logger *slog.Logger
}

type scanState int

const (
	scanNotScanned scanState = iota
	scanSuccess
	scanError
)

// Decoder reads the frames of a PNG or APNG stream in order.
//
// Stream metadata is scanned once, on first use, and the result, including
// failure, is retained. Frames can only be read forward and each frame is
// returned as a copy of the animation canvas, so returned images are never
// modified by later reads.
//
// A Decoder must not be used concurrently.
type Decoder struct {
	r        io.Reader
	data     []byte
	buffered bool // data holds the stream and r is unused

	codec Codec
	log   *slog.Logger

	state scanState
	err   error // scan failure
	meta  *metadata

	frames *frameSource
	comp   *compositor // nil for plain PNG streams

	n      int          // frames read
	fc     FrameControl // control of the last frame read
	failed error        // first frame read failure
}

// NewDecoder returns a Decoder reading from r. r must implement io.Seeker;
// its content is buffered in full on first use and its position restored.
// If opts is nil, default options are used.
func NewDecoder(r io.Reader, opts *Options) *Decoder {
	d := &Decoder{r: r}
	d.init(opts)
	return d
}

// NewDecoderBytes returns a Decoder reading from the stream held in b.
// b must not be modified while the Decoder is in use.
func NewDecoderBytes(b []byte, opts *Options) *Decoder {
	d := &Decoder{data: b, buffered: true}
	d.init(opts)
	return d
}

func (d *Decoder) init(opts *Options) {
	if opts != nil {
		d.codec = opts.Codec
		d.log = opts.Logger
	}
	if d.codec == nil {
		d.codec = PNGCodec
	}
	if d.log == nil {
		d.log = slog.New(slog.DiscardHandler)
	}
}

// Scan reads the stream's header and animation control data if that has not
// already been done, and returns the result of the scan. A failed scan is not
// retried.
func (d *Decoder) Scan() error {
	if d.state != scanNotScanned {
		return d.err
	}

	data := d.data
	if !d.buffered {
		var err error
		data, err = readAll(d.r)
		if err != nil {
			return d.fail(err)
		}
	}
	meta, err := scan(data)
	if err != nil {
		return d.fail(err)
	}

	d.data = data
	d.meta = meta
	d.frames = newFrameSource(data, meta, d.codec, d.log)
	d.fc = fullFrame(meta.bounds())
	if meta.actl != nil {
		d.comp = newCompositor(meta.bounds())
	}
	d.state = scanSuccess

	d.log.Debug("scanned stream",
		slog.Int("width", int(meta.ihdr.Width)),
		slog.Int("height", int(meta.ihdr.Height)),
		slog.Bool("animated", meta.actl != nil),
		slog.Int("frames", d.FrameCount()),
		slog.Int("loops", d.LoopCount()),
		slog.Bool("hidden_default", meta.skipFirst),
	)
	return nil
}

// fail records err as the result of the scan.
func (d *Decoder) fail(err error) error {
	d.state = scanError
	d.err = err
	d.log.Debug("scan failed", slog.Any("error", err))
	return err
}

func (d *Decoder) scanned() bool {
	return d.Scan() == nil
}

// CanReadMore returns whether a call to ReadNextFrame may succeed.
func (d *Decoder) CanReadMore() bool {
	return d.scanned() && d.failed == nil && d.n < d.FrameCount()
}

// ReadNextFrame decodes the next frame and returns the image to display.
// For animations this is a copy of the composited canvas; for plain PNG
// streams it is the decoded image. ErrNoMoreFrames is returned once every
// declared frame has been read. After a decode failure every later call
// returns the same error. If the stream could not be scanned, the scan
// failure is returned wrapped with ErrScanNotPerformed.
func (d *Decoder) ReadNextFrame() (*image.NRGBA, error) {
	err := d.Scan()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanNotPerformed, err)
	}
	if d.failed != nil {
		return nil, d.failed
	}
	if d.n >= d.FrameCount() {
		return nil, ErrNoMoreFrames
	}
	fc, img, err := d.frames.next()
	if err != nil {
		d.failed = &DecodeError{Frame: d.n, Err: err}
		d.log.Debug("frame read failed", slog.Int("frame", d.n), slog.Any("error", err))
		return nil, d.failed
	}
	if d.comp != nil {
		img = d.comp.compose(img, fc)
	}
	d.fc = fc
	d.n++
	return img, nil
}

// DefaultImage decodes the stream's default image when it is not part of the
// animation. It does not affect frame reading. ErrNoDefaultImage is returned
// when the default image is the first frame or the stream is not animated.
func (d *Decoder) DefaultImage() (*image.NRGBA, error) {
	err := d.Scan()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanNotPerformed, err)
	}
	if !d.meta.skipFirst {
		return nil, ErrNoDefaultImage
	}
	data, _, err := d.frames.collect(d.meta.idat, chunkIDAT)
	if err != nil {
		return nil, fmt.Errorf("apng: default image: %w", err)
	}
	img, err := d.meta.decodeImage(d.codec, d.meta.ihdr.Width, d.meta.ihdr.Height, data)
	if err != nil {
		return nil, fmt.Errorf("apng: default image: %w", err)
	}
	return img, nil
}

// Bounds returns the canvas bounds, or an empty rectangle if the stream
// could not be scanned.
func (d *Decoder) Bounds() image.Rectangle {
	if !d.scanned() {
		return image.Rectangle{}
	}
	return d.meta.bounds()
}

// IsAnimated returns whether the stream carries animation control data.
func (d *Decoder) IsAnimated() bool {
	return d.scanned() && d.meta.actl != nil
}

// FrameCount returns the number of frames in the stream: the declared
// number for animations and 1 for plain PNG streams. The hidden default
// image is not counted.
func (d *Decoder) FrameCount() int {
	if !d.scanned() {
		return 0
	}
	if d.meta.actl == nil {
		return 1
	}
	return int(d.meta.actl.NumFrames)
}

// LoopCount returns the number of times the animation is played, or
// LoopForever. It returns 0 for plain PNG streams.
func (d *Decoder) LoopCount() int {
	if !d.IsAnimated() {
		return 0
	}
	if d.meta.actl.NumPlays == 0 {
		return LoopForever
	}
	return int(d.meta.actl.NumPlays)
}

// CurrentFrameIndex returns the index of the last frame read, or 0 if no
// frame has been read.
func (d *Decoder) CurrentFrameIndex() int {
	if !d.IsAnimated() || d.n == 0 {
		return 0
	}
	return d.n - 1
}

// CurrentFrameControl returns the control record of the last frame read.
// Before the first read it describes a frame covering the whole canvas.
func (d *Decoder) CurrentFrameControl() FrameControl {
	if !d.scanned() {
		return FrameControl{}
	}
	return d.fc
}

// CurrentFrameRect returns the canvas region covered by the last frame read.
func (d *Decoder) CurrentFrameRect() image.Rectangle {
	return d.CurrentFrameControl().Rect
}

// NextFrameDelay returns how long the last frame read is displayed before
// the next one. It returns 0 for plain PNG streams.
func (d *Decoder) NextFrameDelay() time.Duration {
	if !d.IsAnimated() {
		return 0
	}
	return d.fc.Delay()
}

// NextFrameDelayMilliseconds returns NextFrameDelay rounded to the nearest
// millisecond.
func (d *Decoder) NextFrameDelayMilliseconds() int {
	if !d.IsAnimated() {
		return 0
	}
	return d.fc.DelayMilliseconds()
}

// APNG is a fully decoded stream.
type APNG struct {
	Width, Height int

	// LoopCount is the number of times the animation is played.
	// LoopForever means to repeat indefinitely and 0 that the
	// stream is a plain PNG image.
	LoopCount int

	// Frames holds the displayed images in order.
	Frames []Frame

	// Default is the hidden default image, if the stream has one.
	Default *image.NRGBA
}

// Frame is one displayed image of a decoded stream.
type Frame struct {
	Image   *image.NRGBA // Composited canvas.
	Control FrameControl
}

// DecodeAll reads every frame of the stream held by r. Unlike NewDecoder,
// DecodeAll accepts readers that are not seekable.
func DecodeAll(r io.Reader, opts *Options) (*APNG, error) {
	var d *Decoder
	if _, ok := r.(io.Seeker); ok {
		d = NewDecoder(r, opts)
	} else {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		d = NewDecoderBytes(b, opts)
	}
	err := d.Scan()
	if err != nil {
		return nil, err
	}
	b := d.Bounds()
	a := &APNG{
		Width:     b.Dx(),
		Height:    b.Dy(),
		LoopCount: d.LoopCount(),
	}
	// The declared frame count is not trusted for allocation.
	a.Frames = make([]Frame, 0, min(d.FrameCount(), 256))
	for d.CanReadMore() {
		img, err := d.ReadNextFrame()
		if err != nil {
			return nil, err
		}
		a.Frames = append(a.Frames, Frame{Image: img, Control: d.CurrentFrameControl()})
	}
	if d.meta.skipFirst {
		a.Default, err = d.DefaultImage()
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}
