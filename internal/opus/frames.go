package opus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var ErrFrameTooLarge = errors.New("opus frame exceeds the length prefix")

// FrameSource yields Opus frames until it returns io.EOF.
type FrameSource interface {
	ReadFrame() ([]byte, error)
}

// FrameReader reads length-prefixed Opus frames from an io.Reader.
type FrameReader struct {
	r io.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame returns the next frame. A truncated trailing frame reads as
// io.EOF.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	var size uint16
	if err := binary.Read(f.r, binary.LittleEndian, &size); err != nil {
		return nil, eof(err)
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(f.r, frame); err != nil {
		return nil, eof(err)
	}
	return frame, nil
}

func eof(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}

// WriteFrame appends one length-prefixed frame to w.
func WriteFrame(w io.Writer, frame []byte) error {
	if len(frame) > math.MaxUint16 {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}
	var size [2]byte
	binary.LittleEndian.PutUint16(size[:], uint16(len(frame)))
	if _, err := w.Write(size[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}

// CopyFrames writes every frame of src to w and returns the frame count.
func CopyFrames(w io.Writer, src FrameSource) (int, error) {
	n := 0
	for {
		frame, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := WriteFrame(w, frame); err != nil {
			return n, err
		}
		n++
	}
}
