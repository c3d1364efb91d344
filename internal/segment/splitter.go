package segment

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fidde/logcycle/internal/keyset"
	"github.com/fidde/logcycle/internal/logline"
)

// Stats summarizes one Split run.
type Stats struct {
	Lines    int
	Segments int
}

// splitter holds the state of the segment being accumulated.
type splitter struct {
	ref   *keyset.Set
	next  Processor
	buf   []logline.Line
	seen  map[string]struct{}
	stats Stats
}

// Split reads r and hands every detected segment to next together with ref.
//
// A boundary is triggered by key repetition only: a segment may be flushed
// before it holds every key of ref. Completeness is left to next. The end
// of input flushes whatever is buffered.
func Split(r io.Reader, ref *keyset.Set, next Processor) (Stats, error) {
	s := &splitter{
		ref:  ref,
		next: next,
		seen: make(map[string]struct{}, ref.Len()),
	}

	lr := logline.NewReader(r)
	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.stats, err
		}
		s.stats.Lines++

		key := line.Key()
		if _, dup := s.seen[key]; dup {
			if err := s.flush(); err != nil {
				return s.stats, err
			}
		}
		s.buf = append(s.buf, line)
		s.seen[key] = struct{}{}
	}

	if len(s.buf) > 0 {
		if err := s.flush(); err != nil {
			return s.stats, err
		}
	}
	return s.stats, nil
}

// SplitFile opens path and runs Split over it.
func SplitFile(path string, ref *keyset.Set, next Processor) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	stats, err := Split(f, ref, next)
	if err != nil {
		return stats, fmt.Errorf("splitting %s: %w", path, err)
	}
	return stats, nil
}

// flush hands the buffered lines off and starts a new segment. The buffer
// is replaced, not truncated, so the receiver owns the handed-off slice.
func (s *splitter) flush() error {
	s.stats.Segments++
	seg := Segment{Number: s.stats.Segments, Lines: s.buf}

	s.buf = nil
	clear(s.seen)

	if err := s.next.ProcessSegment(seg, s.ref); err != nil {
		return fmt.Errorf("processing segment %d: %w", seg.Number, err)
	}
	return nil
}
