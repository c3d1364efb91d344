package models

import (
	"fmt"

	"github.com/fidde/logcycle/pkg/hyperloglog"
)

const defaultMaxSamples = 5

// KeyProfile tracks how often a key occurred and roughly how many distinct
// values it carried. Distinct counts come from a HyperLogLog sketch so
// memory per key stays fixed no matter how long the log is.
type KeyProfile struct {
	Key                  string   `json:"key"`
	Occurrences          int64    `json:"occurrences"`
	EstimatedCardinality uint64   `json:"estimated_cardinality"`
	SampleValues         []string `json:"sample_values,omitempty"`

	maxSamples int
	sketch     *hyperloglog.Sketch
}

// NewKeyProfile creates a profile for key.
// precision: HyperLogLog precision (4-18, 0 means default 14)
// maxSamples: distinct sample values to keep (0 means 5)
func NewKeyProfile(key string, precision uint8, maxSamples int) *KeyProfile {
	if precision == 0 {
		precision = hyperloglog.DefaultPrecision
	}
	if maxSamples <= 0 {
		maxSamples = defaultMaxSamples
	}
	return &KeyProfile{
		Key:          key,
		SampleValues: make([]string, 0, maxSamples),
		maxSamples:   maxSamples,
		sketch:       hyperloglog.New(precision),
	}
}

// Observe records one value of the key.
func (p *KeyProfile) Observe(value string) {
	p.Occurrences++
	p.sketch.Add(value)

	if len(p.SampleValues) < p.maxSamples {
		for _, s := range p.SampleValues {
			if s == value {
				return
			}
		}
		p.SampleValues = append(p.SampleValues, value)
	}
}

// Seal refreshes EstimatedCardinality from the sketch.
func (p *KeyProfile) Seal() {
	p.EstimatedCardinality = p.sketch.Count()
}

// Sketch exposes the underlying estimator, e.g. for persisting it.
func (p *KeyProfile) Sketch() *hyperloglog.Sketch {
	return p.sketch
}

// RestoreKeyProfile rebuilds a profile from persisted fields and an encoded
// sketch (see hyperloglog.Sketch.MarshalBinary).
func RestoreKeyProfile(key string, occurrences int64, samples []string, sketchData []byte) (*KeyProfile, error) {
	sketch := &hyperloglog.Sketch{}
	if err := sketch.UnmarshalBinary(sketchData); err != nil {
		return nil, fmt.Errorf("restoring sketch for %s: %w", key, err)
	}
	maxSamples := len(samples)
	if maxSamples < defaultMaxSamples {
		maxSamples = defaultMaxSamples
	}
	kp := &KeyProfile{
		Key:          key,
		Occurrences:  occurrences,
		SampleValues: append(make([]string, 0, maxSamples), samples...),
		maxSamples:   maxSamples,
		sketch:       sketch,
	}
	kp.Seal()
	return kp, nil
}

// Profiler builds KeyProfiles for every key seen, in first-seen order.
type Profiler struct {
	precision  uint8
	maxSamples int
	order      []*KeyProfile
	byKey      map[string]*KeyProfile
}

// NewProfiler creates a Profiler whose profiles use the given precision
// and sample limit.
func NewProfiler(precision uint8, maxSamples int) *Profiler {
	return &Profiler{
		precision:  precision,
		maxSamples: maxSamples,
		byKey:      make(map[string]*KeyProfile),
	}
}

// Observe records value under key.
func (p *Profiler) Observe(key, value string) {
	kp, ok := p.byKey[key]
	if !ok {
		kp = NewKeyProfile(key, p.precision, p.maxSamples)
		p.byKey[key] = kp
		p.order = append(p.order, kp)
	}
	kp.Observe(value)
}

// Profiles seals and returns all profiles in first-seen order.
func (p *Profiler) Profiles() []*KeyProfile {
	out := make([]*KeyProfile, len(p.order))
	for i, kp := range p.order {
		kp.Seal()
		out[i] = kp
	}
	return out
}
