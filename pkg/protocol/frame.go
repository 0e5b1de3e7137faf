package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame read from a stream
const MaxFrameSize = 16 << 20

// SplitFrame is a bufio.SplitFunc that yields one complete frame, length
// prefix included, per token.
func SplitFrame(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) < 4 {
		if atEOF && len(data) > 0 {
			return 0, nil, ErrTruncated
		}
		return 0, nil, nil
	}

	n := binary.BigEndian.Uint32(data)
	if n < 4 || n > MaxFrameSize {
		return 0, nil, fmt.Errorf("%w: frame length %d", ErrLengthMismatch, n)
	}
	if uint32(len(data)) < n {
		if atEOF {
			return 0, nil, ErrTruncated
		}
		return 0, nil, nil
	}
	return int(n), data[:n], nil
}

// ReadFrame reads one complete frame from r
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(prefix[:])
	if n < 4 || n > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame length %d", ErrLengthMismatch, n)
	}

	frame := make([]byte, n)
	copy(frame, prefix[:])
	if _, err := io.ReadFull(r, frame[4:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// WriteFrame writes an encoded frame to w
func WriteFrame(w io.Writer, frame []byte) error {
	_, err := w.Write(frame)
	return err
}
