// Package hyperloglog estimates the number of distinct values seen for a
// key using a fixed amount of memory.
package hyperloglog

import (
	"errors"
	"hash/fnv"
	"math"
	"math/bits"
)

const (
	minPrecision     = 4
	maxPrecision     = 18
	DefaultPrecision = 14
)

var (
	// ErrPrecisionMismatch is returned when merging sketches of different precision.
	ErrPrecisionMismatch = errors.New("hyperloglog: precision mismatch")

	// ErrInvalidData is returned when decoding a malformed sketch.
	ErrInvalidData = errors.New("hyperloglog: invalid serialized data")
)

// Sketch is a HyperLogLog cardinality estimator.
//
// Memory is 2^precision bytes; standard error is about 1.04/sqrt(2^precision).
// At the default precision of 14 that is 16KB and ~0.81%.
type Sketch struct {
	precision uint8
	registers []uint8
	alpha     float64
}

// New creates a sketch. Precision outside [4, 18] falls back to DefaultPrecision.
func New(precision uint8) *Sketch {
	if precision < minPrecision || precision > maxPrecision {
		precision = DefaultPrecision
	}
	m := uint32(1) << precision

	var alpha float64
	switch m {
	case 16:
		alpha = 0.673
	case 32:
		alpha = 0.697
	case 64:
		alpha = 0.709
	default:
		alpha = 0.7213 / (1 + 1.079/float64(m))
	}

	return &Sketch{
		precision: precision,
		registers: make([]uint8, m),
		alpha:     alpha,
	}
}

// Precision returns the number of index bits.
func (s *Sketch) Precision() uint8 {
	return s.precision
}

// Add records value.
func (s *Sketch) Add(value string) {
	h := fnv.New64a()
	h.Write([]byte(value))
	s.addHash(mix64(h.Sum64()))
}

// mix64 is the splitmix64 finalizer. FNV-1a leaves the low bits poorly
// spread for inputs that differ only in a suffix, and those bits pick the
// register.
func mix64(h uint64) uint64 {
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return h
}

func (s *Sketch) addHash(hash uint64) {
	idx := hash & ((1 << s.precision) - 1)
	w := hash >> s.precision

	// rank = position of the first set bit in the remaining 64-p bits.
	var rank uint8
	if w == 0 {
		rank = uint8(64 - s.precision + 1)
	} else {
		rank = uint8(bits.LeadingZeros64(w) - int(s.precision) + 1)
	}
	if rank > s.registers[idx] {
		s.registers[idx] = rank
	}
}

// Count returns the estimated number of distinct values added.
func (s *Sketch) Count() uint64 {
	sum := 0.0
	zeros := 0
	for _, r := range s.registers {
		sum += 1.0 / float64(uint64(1)<<r)
		if r == 0 {
			zeros++
		}
	}

	m := float64(len(s.registers))
	estimate := s.alpha * m * m / sum

	const two32 = 1 << 32
	switch {
	case estimate <= 2.5*m && zeros != 0:
		estimate = m * math.Log(m/float64(zeros))
	case estimate > two32/30.0:
		estimate = -two32 * math.Log(1-estimate/two32)
	}
	return uint64(estimate)
}

// Merge folds other into s.
func (s *Sketch) Merge(other *Sketch) error {
	if s.precision != other.precision {
		return ErrPrecisionMismatch
	}
	for i, r := range other.registers {
		if r > s.registers[i] {
			s.registers[i] = r
		}
	}
	return nil
}

// MarshalBinary encodes the sketch as [precision][registers...].
func (s *Sketch) MarshalBinary() ([]byte, error) {
	data := make([]byte, 1+len(s.registers))
	data[0] = s.precision
	copy(data[1:], s.registers)
	return data, nil
}

// UnmarshalBinary decodes a sketch produced by MarshalBinary.
func (s *Sketch) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return ErrInvalidData
	}
	p := data[0]
	if p < minPrecision || p > maxPrecision || len(data) != 1+(1<<p) {
		return ErrInvalidData
	}
	*s = *New(p)
	copy(s.registers, data[1:])
	return nil
}
