// Package logline parses records of the tab-separated cycle log.
package logline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// KeyField is the index of the field that carries the cycle key.
	KeyField = 1
	// ValueField is the index of the field that carries the value.
	ValueField = 2

	minFields = 3
)

// ErrMalformedLine is returned for records with fewer than three tab-separated fields.
var ErrMalformedLine = errors.New("malformed line: expected at least 3 tab-separated fields")

// Line is one record of the log.
type Line struct {
	// Raw holds the record exactly as read, including its terminator if any.
	Raw string
	// Fields holds the tab-separated fields with the terminator stripped.
	Fields []string
}

// Key returns the cycle key of the line.
func (l Line) Key() string {
	return l.Fields[KeyField]
}

// Value returns the value field of the line.
func (l Line) Value() string {
	return l.Fields[ValueField]
}

// Parse splits raw into fields. The line terminator is kept in Raw but
// does not become part of the last field.
func Parse(raw string) (Line, error) {
	trimmed := strings.TrimSuffix(raw, "\n")
	trimmed = strings.TrimSuffix(trimmed, "\r")

	fields := strings.Split(trimmed, "\t")
	if len(fields) < minFields {
		return Line{}, ErrMalformedLine
	}
	return Line{Raw: raw, Fields: fields}, nil
}

// Reader yields parsed lines from an io.Reader in input order.
type Reader struct {
	br     *bufio.Reader
	lineNo int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next returns the next line. It returns io.EOF once the input is
// exhausted. A final record without a trailing newline is still returned.
func (r *Reader) Next() (Line, error) {
	raw, err := r.br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Line{}, fmt.Errorf("reading line %d: %w", r.lineNo+1, err)
	}
	if raw == "" {
		return Line{}, io.EOF
	}

	r.lineNo++
	line, perr := Parse(raw)
	if perr != nil {
		return Line{}, fmt.Errorf("line %d: %w", r.lineNo, perr)
	}
	return line, nil
}

// LineNumber returns the 1-based number of the last line returned.
func (r *Reader) LineNumber() int {
	return r.lineNo
}
