package keyset

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fidde/logcycle/internal/logline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logOf(keys ...string) string {
	var b strings.Builder
	for i, k := range keys {
		b.WriteString("ts")
		b.WriteString("\t")
		b.WriteString(k)
		b.WriteString("\t")
		b.WriteString(strings.Repeat("v", i+1))
		b.WriteString("\n")
	}
	return b.String()
}

func TestScan(t *testing.T) {
	tests := []struct {
		name      string
		keys      []string
		earlyStop bool
		want      []string
	}{
		{
			name: "full scan returns union",
			keys: []string{"a", "b", "a", "b", "c"},
			want: []string{"a", "b", "c"},
		},
		{
			name:      "early stop returns first cycle",
			keys:      []string{"a", "b", "a", "b", "c"},
			earlyStop: true,
			want:      []string{"a", "b"},
		},
		{
			name:      "early stop at position 3",
			keys:      []string{"x", "y", "z", "y", "w"},
			earlyStop: true,
			want:      []string{"x", "y", "z"},
		},
		{
			name:      "early stop without repeat scans everything",
			keys:      []string{"a", "b", "c"},
			earlyStop: true,
			want:      []string{"a", "b", "c"},
		},
		{
			name:      "ragged first cycle with early stop",
			keys:      []string{"a", "a", "b"},
			earlyStop: true,
			want:      []string{"a"},
		},
		{
			name: "empty input",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Scan(strings.NewReader(logOf(tt.keys...)), tt.earlyStop)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), set.Len())
			assert.ElementsMatch(t, tt.want, set.Keys())
		})
	}
}

func TestScanKeepsFirstSeenOrder(t *testing.T) {
	set, err := Scan(strings.NewReader(logOf("c", "a", "b", "a")), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, set.Keys())
}

func TestScanMalformedLine(t *testing.T) {
	_, err := Scan(strings.NewReader("ts\ta\t1\nts\tb\n"), false)
	require.ErrorIs(t, err, logline.ErrMalformedLine)
}

func TestSetIsImmutable(t *testing.T) {
	set := New("a", "b", "a")
	keys := set.Keys()
	keys[0] = "mutated"

	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains("a"))
	assert.False(t, set.Contains("mutated"))
}

func TestNilSet(t *testing.T) {
	var set *Set
	assert.Equal(t, 0, set.Len())
	assert.False(t, set.Contains("a"))
	assert.Nil(t, set.Keys())
}

func TestScanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.log")
	require.NoError(t, os.WriteFile(path, []byte(logOf("a", "b", "a", "b")), 0644))

	set, err := ScanFile(path, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, set.Keys())

	_, err = ScanFile(filepath.Join(t.TempDir(), "missing.log"), false)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
