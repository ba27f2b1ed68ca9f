package apng

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"time"
)

// The frame delay used when a stream gives none, or gives a zero denominator.
const (
	defaultDelayNum = 1
	defaultDelayDen = 10
)

// FrameControl describes where and for how long a frame is shown, and how it
// is combined with the canvas.
type FrameControl struct {
	Index     int             // Position in the displayed sequence, starting from 0.
	Rect      image.Rectangle // Region of the canvas covered by the frame.
	DelayNum  uint16          // Frame delay fraction numerator, in seconds.
	DelayDen  uint16          // Frame delay fraction denominator; never zero once decoded.
	DisposeOp DisposeOp       // Disposal applied after the frame has been shown.
	BlendOp   BlendOp         // How the frame is painted onto the canvas.
}

// Delay returns the time the frame is displayed for.
func (f FrameControl) Delay() time.Duration {
	num, den := f.delay()
	return time.Duration(num) * time.Second / time.Duration(den)
}

// DelayMilliseconds returns the frame delay rounded to the nearest
// millisecond.
func (f FrameControl) DelayMilliseconds() int {
	num, den := f.delay()
	return int(math.Round(1000 * float64(num) / float64(den)))
}

func (f FrameControl) delay() (num, den uint16) {
	if f.DelayDen == 0 {
		return defaultDelayNum, defaultDelayDen
	}
	return f.DelayNum, f.DelayDen
}

// LogValue implements the slog.LogValuer interface.
func (f FrameControl) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("index", f.Index),
		slog.String("rect", f.Rect.String()),
		slog.Duration("delay", f.Delay()),
		slog.String("dispose", f.DisposeOp.String()),
		slog.String("blend", f.BlendOp.String()),
	)
}

// fullFrame returns the control record of an image shown as a single frame
// covering the whole canvas.
func fullFrame(r image.Rectangle) FrameControl {
	return FrameControl{
		Rect:      r,
		DelayNum:  defaultDelayNum,
		DelayDen:  defaultDelayDen,
		DisposeOp: DisposeOp_None,
		BlendOp:   BlendOp_Source,
	}
}

// frameSource walks the frames of a scanned stream strictly forward.
type frameSource struct {
	buf   []byte
	meta  *metadata
	codec Codec
	log   *slog.Logger

	off int    // offset of the next chunk to examine
	seq uint32 // next expected animation sequence number
	n   int    // frames returned so far
}

func newFrameSource(buf []byte, meta *metadata, codec Codec, log *slog.Logger) *frameSource {
	return &frameSource{buf: buf, meta: meta, codec: codec, log: log, off: meta.first}
}

// next decodes the next frame in stream order, returning its control record
// and its pixels sized to the frame rectangle. The first frame's blend op is
// forced to Source and a Previous dispose op is treated as Background since
// there is no earlier canvas state.
func (s *frameSource) next() (FrameControl, *image.NRGBA, error) {
	if s.meta.actl == nil {
		fc := fullFrame(s.meta.bounds())
		data, off, err := s.collect(s.meta.idat, chunkIDAT)
		if err != nil {
			return fc, nil, err
		}
		img, err := s.meta.decodeImage(s.codec, s.meta.ihdr.Width, s.meta.ihdr.Height, data)
		if err != nil {
			return fc, nil, err
		}
		s.off = off
		s.n++
		return fc, img, nil
	}

	raw, err := s.control()
	if err != nil {
		return FrameControl{}, nil, err
	}
	fc := FrameControl{
		Index:     s.n,
		Rect:      image.Rect(int(raw.XOffset), int(raw.YOffset), int(raw.XOffset+raw.Width), int(raw.YOffset+raw.Height)),
		DelayNum:  raw.DelayNum,
		DelayDen:  raw.DelayDen,
		DisposeOp: raw.DisposeOp,
		BlendOp:   raw.BlendOp,
	}
	if fc.DelayDen == 0 {
		s.log.Warn("zero frame delay denominator", slog.Int("frame", s.n), slog.Uint64("delay_num", uint64(raw.DelayNum)))
		fc.DelayNum, fc.DelayDen = defaultDelayNum, defaultDelayDen
	}
	if s.n == 0 {
		fc.BlendOp = BlendOp_Source
		if fc.DisposeOp == DisposeOp_Previous {
			fc.DisposeOp = DisposeOp_Background
		}
	}

	// The default image carries the first frame's pixels unless it is
	// hidden, in which case every frame is held in fdAT chunks.
	var (
		data []byte
		off  int
	)
	if s.n == 0 && !s.meta.skipFirst {
		data, off, err = s.collect(s.meta.idat, chunkIDAT)
	} else {
		data, off, err = s.collect(s.off, chunkfdAT)
	}
	if err != nil {
		return fc, nil, err
	}
	img, err := s.meta.decodeImage(s.codec, raw.Width, raw.Height, data)
	if err != nil {
		return fc, nil, err
	}
	s.off = off
	s.n++
	s.log.Debug("frame", slog.Any("fctl", &raw), slog.Any("control", fc))
	return fc, img, nil
}

// control reads and validates the next fcTL chunk, skipping the hidden
// default image's data and any ancillary chunks before it.
func (s *frameSource) control() (Chunk_fcTL, error) {
	var fc Chunk_fcTL
	for {
		c, err := readChunk(s.buf, s.off)
		if err != nil {
			return fc, err
		}
		switch c.name {
		case chunkfcTL:
			err = fc.parse(c.data)
			if err != nil {
				return fc, err
			}
			if fc.SequenceNumber != s.seq {
				return fc, FormatError(fmt.Sprintf("fcTL sequence number %d, want %d", fc.SequenceNumber, s.seq))
			}
			s.seq++
			s.off = c.next
			return fc, s.checkGeometry(&fc)
		case chunkIEND:
			return fc, io.ErrUnexpectedEOF
		case chunkfdAT:
			return fc, FormatError("fdAT without fcTL")
		case chunkIDAT:
			if !s.meta.skipFirst || s.n != 0 {
				return fc, FormatError("unexpected IDAT")
			}
		}
		s.off = c.next
	}
}

// checkGeometry checks that the frame described by fc lies within the image.
func (s *frameSource) checkGeometry(fc *Chunk_fcTL) error {
	ihdr := &s.meta.ihdr
	if fc.Width == 0 || fc.Height == 0 {
		return FormatError(fmt.Sprintf("empty frame %dx%d", fc.Width, fc.Height))
	}
	if uint64(fc.XOffset)+uint64(fc.Width) > uint64(ihdr.Width) || uint64(fc.YOffset)+uint64(fc.Height) > uint64(ihdr.Height) {
		return FormatError(fmt.Sprintf("frame %dx%d at (%d,%d) outside %dx%d image",
			fc.Width, fc.Height, fc.XOffset, fc.YOffset, ihdr.Width, ihdr.Height))
	}
	if s.n == 0 && !s.meta.skipFirst {
		if fc.XOffset != 0 || fc.YOffset != 0 || fc.Width != ihdr.Width || fc.Height != ihdr.Height {
			return FormatError("default image frame does not cover the image")
		}
	}
	return nil
}

// collect concatenates the image data held by the run of chunks of the
// given type starting at off, returning the data and the offset of the
// first chunk after the run. fdAT sequence numbers are checked and removed.
func (s *frameSource) collect(off int, name string) ([]byte, int, error) {
	var data []byte
	for {
		c, err := readChunk(s.buf, off)
		if err != nil {
			return nil, off, err
		}
		if c.name != name {
			break
		}
		if name == chunkfdAT {
			if len(c.data) < sizeOfUint32 {
				return nil, off, FormatError("short fdAT")
			}
			seq := readUint32(c.data[:sizeOfUint32])
			if seq != s.seq {
				return nil, off, FormatError(fmt.Sprintf("fdAT sequence number %d, want %d", seq, s.seq))
			}
			s.seq++
			data = append(data, c.data[sizeOfUint32:]...)
		} else {
			data = append(data, c.data...)
		}
		off = c.next
	}
	if len(data) == 0 {
		return nil, off, FormatError("missing " + name + " data")
	}
	return data, off, nil
}
