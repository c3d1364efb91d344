// Package segment splits a cycle log into segments and filters out the
// partial ones.
//
// A segment ends where a key repeats: the line carrying the repeated key
// opens the next segment. Segments are handed to a chain of Processors,
// typically a PartialDetector in front of a Writer.
package segment

import (
	"github.com/fidde/logcycle/internal/keyset"
	"github.com/fidde/logcycle/internal/logline"
)

// Segment is one detected cycle of the log.
type Segment struct {
	// Number is the 1-based position of the segment in the input.
	Number int
	Lines  []logline.Line
}

// Len returns the number of lines in the segment.
func (s Segment) Len() int {
	return len(s.Lines)
}

// Processor consumes completed segments. Once a segment is handed to a
// Processor the caller no longer touches it.
type Processor interface {
	ProcessSegment(seg Segment, ref *keyset.Set) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(seg Segment, ref *keyset.Set) error

// ProcessSegment calls f.
func (f ProcessorFunc) ProcessSegment(seg Segment, ref *keyset.Set) error {
	return f(seg, ref)
}
