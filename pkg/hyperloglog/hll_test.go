package hyperloglog

import (
	"bytes"
	"fmt"
	"math"
	"testing"
)

func errorPct(estimate uint64, actual int) float64 {
	return math.Abs(float64(estimate)-float64(actual)) / float64(actual) * 100
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		precision uint8
		wantM     int
	}{
		{"precision 10", 10, 1024},
		{"precision 14", 14, 16384},
		{"invalid low", 2, 16384},
		{"invalid high", 20, 16384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.precision)
			if len(s.registers) != tt.wantM {
				t.Errorf("New(%d) registers = %d, want %d", tt.precision, len(s.registers), tt.wantM)
			}
		})
	}
}

func TestAddAndCount(t *testing.T) {
	tests := []struct {
		name        string
		count       int
		maxErrorPct float64
	}{
		{"10 unique", 10, 10.0},
		{"100 unique", 100, 10.0},
		{"10000 unique", 10000, 5.0},
		{"100000 unique", 100000, 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(DefaultPrecision)
			for i := 0; i < tt.count; i++ {
				s.Add(fmt.Sprintf("value_%d", i))
			}

			estimate := s.Count()
			if pct := errorPct(estimate, tt.count); pct > tt.maxErrorPct {
				t.Errorf("estimate %d for %d values: error %.2f%% exceeds %.2f%%", estimate, tt.count, pct, tt.maxErrorPct)
			}
		})
	}
}

func TestDuplicates(t *testing.T) {
	s := New(DefaultPrecision)
	for i := 0; i < 1000; i++ {
		s.Add("same_value")
	}
	if got := s.Count(); got != 1 {
		t.Errorf("Count() with duplicates = %d, want 1", got)
	}
}

func TestEmpty(t *testing.T) {
	if got := New(10).Count(); got != 0 {
		t.Errorf("Count() on empty sketch = %d, want 0", got)
	}
}

func TestMerge(t *testing.T) {
	a := New(DefaultPrecision)
	b := New(DefaultPrecision)
	for i := 0; i < 7000; i++ {
		a.Add(fmt.Sprintf("value_%d", i))
	}
	for i := 5000; i < 12000; i++ {
		b.Add(fmt.Sprintf("value_%d", i))
	}

	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if pct := errorPct(a.Count(), 12000); pct > 5.0 {
		t.Errorf("merged estimate %d: error %.2f%% exceeds 5%%", a.Count(), pct)
	}
}

func TestSuffixKeysSpreadAcrossRegisters(t *testing.T) {
	// Keys that differ only in a numeric suffix must still fill the
	// registers evenly.
	for _, n := range []int{2000, 12000, 50000} {
		s := New(DefaultPrecision)
		for i := 0; i < n; i++ {
			s.Add(fmt.Sprintf("value_%d", i))
		}
		if pct := errorPct(s.Count(), n); pct > 5.0 {
			t.Errorf("n=%d: estimate %d, error %.2f%% exceeds 5%%", n, s.Count(), pct)
		}
	}
}

func TestMix64(t *testing.T) {
	if mix64(0) != 0 {
		t.Errorf("mix64(0) = %d, want 0", mix64(0))
	}
	// Neighbouring inputs must differ in their low bits.
	if mix64(1)&0x3fff == mix64(2)&0x3fff {
		t.Error("mix64(1) and mix64(2) share register index bits")
	}
}

func TestMergePrecisionMismatch(t *testing.T) {
	if err := New(12).Merge(New(14)); err != ErrPrecisionMismatch {
		t.Errorf("Merge() = %v, want ErrPrecisionMismatch", err)
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	s := New(12)
	for i := 0; i < 500; i++ {
		s.Add(fmt.Sprintf("test_%d", i))
	}

	data, err := s.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	if len(data) != 1+4096 {
		t.Errorf("MarshalBinary() size = %d, want %d", len(data), 1+4096)
	}

	var restored Sketch
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if restored.Precision() != 12 {
		t.Errorf("precision = %d, want 12", restored.Precision())
	}
	if restored.Count() != s.Count() {
		t.Errorf("restored Count() = %d, want %d", restored.Count(), s.Count())
	}
	if !bytes.Equal(restored.registers, s.registers) {
		t.Error("registers differ after round trip")
	}
}

func TestUnmarshalBinaryInvalidData(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"too short", []byte{14}},
		{"invalid precision", []byte{1, 0, 0, 0}},
		{"wrong size", []byte{14, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Sketch
			if err := s.UnmarshalBinary(tt.data); err != ErrInvalidData {
				t.Errorf("UnmarshalBinary() = %v, want ErrInvalidData", err)
			}
		})
	}
}

func BenchmarkAdd(b *testing.B) {
	s := New(DefaultPrecision)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Add(fmt.Sprintf("value_%d", i))
	}
}
