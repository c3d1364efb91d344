package segment

import (
	"bufio"
	"fmt"
	"io"

	"github.com/fidde/logcycle/internal/keyset"
)

// Writer emits segments verbatim. Output is buffered; call Flush when done.
type Writer struct {
	w     *bufio.Writer
	lines int
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// ProcessSegment implements Processor.
func (w *Writer) ProcessSegment(seg Segment, _ *keyset.Set) error {
	for _, line := range seg.Lines {
		if _, err := w.w.WriteString(line.Raw); err != nil {
			return fmt.Errorf("writing segment %d: %w", seg.Number, err)
		}
		w.lines++
	}
	return nil
}

// Lines returns the number of lines written so far.
func (w *Writer) Lines() int {
	return w.lines
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
