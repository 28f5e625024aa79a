package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	// Separator terminates every request and response line
	Separator = "\r\n"

	// maxLineSize bounds a single line; real commands are well below this
	maxLineSize = 1024 * 1024
)

var (
	separatorBytes = []byte(Separator)

	// ErrLineTooLong is returned when no terminator is found within maxLineSize bytes
	ErrLineTooLong = errors.New("line exceeds maximum size")
)

// Reader reads Separator-terminated lines from a stream
type Reader struct {
	br      *bufio.Reader
	scratch []byte // Reusable buffer for reading
}

// NewReader creates a new line reader
func NewReader(r io.Reader) *Reader {
	return &Reader{
		br:      bufio.NewReader(r),
		scratch: make([]byte, 0, 512),
	}
}

// ReadLine reads the next line and returns it without the terminator.
//
// It returns io.EOF when the stream ends on a line boundary and
// io.ErrUnexpectedEOF when the stream ends in the middle of a line.
func (r *Reader) ReadLine() (string, error) {
	r.scratch = r.scratch[:0]

	for {
		chunk, err := r.br.ReadSlice('\n')
		r.scratch = append(r.scratch, chunk...)

		switch {
		case err == nil:
			if bytes.HasSuffix(r.scratch, separatorBytes) {
				return string(r.scratch[:len(r.scratch)-len(separatorBytes)]), nil
			}
			// a bare '\n' is part of the line
		case errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			if len(r.scratch) == 0 {
				return "", io.EOF
			}
			return "", io.ErrUnexpectedEOF
		default:
			return "", fmt.Errorf("failed to read line: %w", err)
		}

		if len(r.scratch) > maxLineSize {
			return "", ErrLineTooLong
		}
	}
}

// IsIncomplete reports whether err means the peer went away, either between
// lines or in the middle of one
func IsIncomplete(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
