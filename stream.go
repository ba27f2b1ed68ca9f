package apng

import (
	"fmt"
	"io"
)

// readAll buffers the complete content of the seekable source r from its
// start, then returns r to the position it had on entry.
func readAll(r io.Reader) ([]byte, error) {
	s, ok := r.(io.Seeker)
	if !ok {
		return nil, ErrNotSeekable
	}
	pos, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSeekable, err)
	}
	_, err = s.Seek(0, io.SeekStart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSeekable, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	_, err = s.Seek(pos, io.SeekStart)
	if err != nil {
		return nil, err
	}
	return data, nil
}
