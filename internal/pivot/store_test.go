package pivot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fidde/logcycle/internal/logline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "two keys two rows",
			input: "0\ta\t1\n0\tb\t2\n0\ta\t3\n0\tb\t4\n",
			want:  "1\t2\n3\t4\n",
		},
		{
			name:  "columns follow first insertion",
			input: "0\tz\tz1\n0\ta\ta1\n0\tm\tm1\n0\tz\tz2\n0\ta\ta2\n0\tm\tm2\n",
			want:  "z1\ta1\tm1\nz2\ta2\tm2\n",
		},
		{
			name:  "values without terminator and crlf",
			input: "0\ta\t1\r\n0\tb\t2\textra\n0\ta\t3\n0\tb\t4",
			want:  "1\t2\n3\t4\n",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			_, err := s.Load(strings.NewReader(tt.input))
			require.NoError(t, err)

			var out bytes.Buffer
			require.NoError(t, s.Dump(&out))
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestDumpRaggedTable(t *testing.T) {
	s := NewStore()
	for _, kv := range [][2]string{{"a", "1"}, {"b", "2"}, {"a", "3"}, {"b", "4"}, {"a", "5"}} {
		s.Append(kv[0], kv[1])
	}

	var out bytes.Buffer
	err := s.Dump(&out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRaggedTable))

	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "b", mismatch.Key)
	assert.Equal(t, 2, mismatch.Got)
	assert.Equal(t, 3, mismatch.Want)
	assert.Equal(t, "b has 2 values, but should have 3 values", err.Error())
	assert.Zero(t, out.Len())
}

func TestDumpRaggedTableFirstKeyShorter(t *testing.T) {
	s := NewStore()
	s.Append("b", "1")
	s.Append("a", "2")
	s.Append("a", "3")

	err := s.Dump(&bytes.Buffer{})
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, MismatchError{Key: "a", Got: 2, Want: 1}, *mismatch)
}

func TestRows(t *testing.T) {
	s := NewStore()
	s.Append("a", "1")
	s.Append("b", "2")
	s.Append("a", "3")
	s.Append("b", "4")

	rows, err := s.Rows()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, rows)
	assert.Equal(t, []string{"a", "b"}, s.Columns())
	assert.Equal(t, []string{"1", "3"}, s.Values("a"))
}

func TestLoadMalformedLine(t *testing.T) {
	s := NewStore()
	n, err := s.Load(strings.NewReader("0\ta\t1\n0\tb\n"))
	require.ErrorIs(t, err, logline.ErrMalformedLine)
	assert.Equal(t, 1, n)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.log")
	require.NoError(t, os.WriteFile(path, []byte("0\ta\t1\n0\tb\t2\n"), 0644))

	s := NewStore()
	n, err := s.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = NewStore().LoadFile(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
