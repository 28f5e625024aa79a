package protocol

import (
	"bufio"
	"io"
)

// Writer writes Separator-terminated lines
type Writer struct {
	bw *bufio.Writer
}

// NewWriter creates a new line writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		bw: bufio.NewWriter(w),
	}
}

// WriteLine writes line followed by Separator and flushes
func (w *Writer) WriteLine(line string) error {
	if _, err := w.bw.WriteString(line); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(Separator); err != nil {
		return err
	}
	return w.bw.Flush()
}

// WriteLines writes each line as its own frame, flushing after every one
func (w *Writer) WriteLines(lines ...string) error {
	for _, line := range lines {
		if err := w.WriteLine(line); err != nil {
			return err
		}
	}
	return nil
}

// WriteRequest writes a formatted command line
func (w *Writer) WriteRequest(cmd Command, query Query) error {
	return w.WriteLine(FormatRequest(cmd, query))
}
