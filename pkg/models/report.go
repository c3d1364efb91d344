// Package models defines the records produced by a logcycle run.
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested run is not found.
// Storage implementations wrap this error when an item doesn't exist.
var ErrNotFound = errors.New("not found")

// Tool names recorded in RunReport.Tool.
const (
	ToolFilter = "logfilter"
	ToolPivot  = "log2tsv"
)

// RunReport summarizes one run of either tool.
type RunReport struct {
	// ID uniquely identifies the run
	ID string `json:"id"`

	Tool      string    `json:"tool"`
	InputPath string    `json:"input_path"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Lines is the number of input records read
	Lines int `json:"lines"`

	// KeyUniverse lists the reference keys in first-seen order
	KeyUniverse []string `json:"key_universe"`

	// Filter results
	Segments         int               `json:"segments,omitempty"`
	AcceptedSegments int               `json:"accepted_segments,omitempty"`
	AcceptedLines    int               `json:"accepted_lines,omitempty"`
	Rejected         []RejectedSegment `json:"rejected,omitempty"`

	// Pivot results
	PivotRows int `json:"pivot_rows,omitempty"`

	// Error holds the fatal error that ended the run, if any
	Error string `json:"error,omitempty"`

	Keys []*KeyProfile `json:"keys"`
}

// RejectedSegment describes a segment dropped as partial.
type RejectedSegment struct {
	Segment int `json:"segment"`
	Got     int `json:"got"`
	Want    int `json:"want"`
}

// NewRunReport starts a report for tool.
func NewRunReport(tool, inputPath string) *RunReport {
	return &RunReport{
		ID:        uuid.NewString(),
		Tool:      tool,
		InputPath: inputPath,
		StartedAt: time.Now().UTC(),
	}
}

// Finish stamps the end time and records err if non-nil.
func (r *RunReport) Finish(err error) {
	r.EndedAt = time.Now().UTC()
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run ended without a fatal error.
func (r *RunReport) Succeeded() bool {
	return r.Error == ""
}
