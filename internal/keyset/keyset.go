// Package keyset computes the key universe of a cycle log.
package keyset

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fidde/logcycle/internal/logline"
)

// Set is an immutable set of distinct keys. Keys iterate in first-seen order.
type Set struct {
	order []string
	index map[string]struct{}
}

// New builds a Set from keys, dropping duplicates.
func New(keys ...string) *Set {
	s := &Set{index: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.add(k)
	}
	return s
}

func (s *Set) add(key string) {
	if _, ok := s.index[key]; ok {
		return
	}
	s.index[key] = struct{}{}
	s.order = append(s.order, key)
}

// Len returns the number of distinct keys.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Contains reports whether key is in the set.
func (s *Set) Contains(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[key]
	return ok
}

// Keys returns a copy of the keys in first-seen order.
func (s *Set) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Scan reads r and collects the distinct keys.
//
// With earlyStop set, scanning ends at the first repeated key and the
// result holds only the keys of the first cycle. This assumes the first
// cycle is representative of the whole log; callers that cannot assume
// that should scan the full input.
func Scan(r io.Reader, earlyStop bool) (*Set, error) {
	set := New()
	lr := logline.NewReader(r)

	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			return set, nil
		}
		if err != nil {
			return nil, err
		}

		key := line.Key()
		if earlyStop && set.Contains(key) {
			return set, nil
		}
		set.add(key)
	}
}

// ScanFile opens path and runs Scan over it.
func ScanFile(path string, earlyStop bool) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	set, err := Scan(f, earlyStop)
	if err != nil {
		return nil, fmt.Errorf("scanning keys in %s: %w", path, err)
	}
	return set, nil
}
