package apng

import (
	"bufio"
	"io"
)

// IsPNG returns whether b starts with the PNG signature. APNG streams share
// the PNG signature.
func IsPNG(b []byte) bool {
	return len(b) >= len(PngHeader) && string(b[:len(PngHeader)]) == PngHeader
}

// ReadPeeker is an io.Reader that can also peek n bytes ahead.
type ReadPeeker interface {
	io.Reader
	Peek(n int) ([]byte, error)
}

// AsReadPeeker converts an io.Reader to a ReadPeeker.
func AsReadPeeker(r io.Reader) ReadPeeker {
	if r, ok := r.(ReadPeeker); ok {
		return r
	}
	return bufio.NewReader(r)
}

// CanRead returns whether the data held by r is a PNG family stream.
// No data is consumed from r.
func CanRead(r ReadPeeker) bool {
	if r == nil {
		return false
	}
	b, err := r.Peek(len(PngHeader))
	if err != nil {
		return false
	}
	return IsPNG(b)
}
