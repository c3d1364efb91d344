// Package pivot turns a long (key, value) cycle log into a wide table with
// one column per key.
package pivot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fidde/logcycle/internal/logline"
)

// ErrRaggedTable is matched by MismatchError.
var ErrRaggedTable = errors.New("pivot: keys have different value counts")

// MismatchError reports a key whose value count differs from the first key's.
type MismatchError struct {
	Key  string
	Got  int
	Want int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s has %d values, but should have %d values", e.Key, e.Got, e.Want)
}

// Is makes errors.Is(err, ErrRaggedTable) match.
func (e *MismatchError) Is(target error) bool {
	return target == ErrRaggedTable
}

// Store accumulates values per key. Columns keep the order in which keys
// were first appended.
type Store struct {
	keys   []string
	values map[string][]string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{values: make(map[string][]string)}
}

// Append adds value to the end of key's sequence.
func (s *Store) Append(key, value string) {
	seq, ok := s.values[key]
	if !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = append(seq, value)
}

// Load appends the key and value of every line in r.
func (s *Store) Load(r io.Reader) (int, error) {
	lr := logline.NewReader(r)
	n := 0
	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		s.Append(line.Key(), line.Value())
		n++
	}
}

// LoadFile opens path and runs Load over it.
func (s *Store) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	n, err := s.Load(f)
	if err != nil {
		return n, fmt.Errorf("loading %s: %w", path, err)
	}
	return n, nil
}

// Columns returns the keys in first-insertion order.
func (s *Store) Columns() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Values returns the sequence stored for key.
func (s *Store) Values(key string) []string {
	return s.values[key]
}

// RowCount checks that every key holds the same number of values and
// returns that number. The first key's length is the reference.
func (s *Store) RowCount() (int, error) {
	if len(s.keys) == 0 {
		return 0, nil
	}
	n := len(s.values[s.keys[0]])
	for _, k := range s.keys[1:] {
		if got := len(s.values[k]); got != n {
			return 0, &MismatchError{Key: k, Got: got, Want: n}
		}
	}
	return n, nil
}

// Rows returns the pivoted table, one slice per row.
func (s *Store) Rows() ([][]string, error) {
	n, err := s.RowCount()
	if err != nil {
		return nil, err
	}
	rows := make([][]string, n)
	for i := range rows {
		row := make([]string, len(s.keys))
		for j, k := range s.keys {
			row[j] = s.values[k][i]
		}
		rows[i] = row
	}
	return rows, nil
}

// Dump writes the table to w as tab-separated lines. A ragged table
// produces no output and a *MismatchError.
func (s *Store) Dump(w io.Writer) error {
	n, err := s.RowCount()
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	row := make([]string, len(s.keys))
	for i := 0; i < n; i++ {
		for j, k := range s.keys {
			row[j] = s.values[k][i]
		}
		if _, err := bw.WriteString(strings.Join(row, "\t")); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	return bw.Flush()
}
