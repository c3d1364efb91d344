package segment

import (
	"log/slog"

	"github.com/fidde/logcycle/internal/keyset"
)

// Rejection records a segment dropped by PartialDetector.
type Rejection struct {
	Segment int
	Got     int
	Want    int
}

// PartialDetector drops segments whose line count differs from the size
// of the reference key set and forwards the others unchanged.
//
// Each key should appear once per cycle, so a complete segment has exactly
// ref.Len() lines. Fewer lines means missing keys; more would mean a key
// repeated within one cycle.
type PartialDetector struct {
	next     Processor
	logger   *slog.Logger
	accepted int
	rejected []Rejection
}

// NewPartialDetector creates a detector in front of next. A nil next
// accepts segments without forwarding them.
func NewPartialDetector(next Processor, logger *slog.Logger) *PartialDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &PartialDetector{next: next, logger: logger}
}

// ProcessSegment implements Processor.
func (d *PartialDetector) ProcessSegment(seg Segment, ref *keyset.Set) error {
	if seg.Len() != ref.Len() {
		d.rejected = append(d.rejected, Rejection{
			Segment: seg.Number,
			Got:     seg.Len(),
			Want:    ref.Len(),
		})
		d.logger.Warn("segment contains partial data",
			"segment", seg.Number,
			"got", seg.Len(),
			"want", ref.Len(),
		)
		return nil
	}

	d.accepted++
	if d.next == nil {
		return nil
	}
	return d.next.ProcessSegment(seg, ref)
}

// Accepted returns the number of segments forwarded.
func (d *PartialDetector) Accepted() int {
	return d.accepted
}

// Rejected returns the dropped segments in input order.
func (d *PartialDetector) Rejected() []Rejection {
	out := make([]Rejection, len(d.rejected))
	copy(out, d.rejected)
	return out
}
