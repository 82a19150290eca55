// Package sampleset stores labeled pose samples collected for reachability
// map training, together with their bounds and persistence.
package sampleset

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/mmurooka/differentiable-rmap/sampling"
)

// ErrEmptySet is returned when an operation needs at least one sample.
var ErrEmptySet = errors.New("sample set is empty")

// Set is an append-only collection of samples in one sampling space, each
// labeled reachable or unreachable.
type Set struct {
	space        sampling.Space
	samples      []sampling.Sample
	reachable    []bool
	numReachable int
}

// NewSet returns an empty set over the given sampling space.
func NewSet(kind sampling.Kind) (*Set, error) {
	space, err := sampling.NewSpace(kind)
	if err != nil {
		return nil, err
	}
	return &Set{space: space}, nil
}

// Kind returns the sampling space kind of the set.
func (s *Set) Kind() sampling.Kind {
	return s.space.Kind()
}

// Space returns the sampling space of the set.
func (s *Set) Space() sampling.Space {
	return s.space
}

// Add appends a sample with its reachability label.
func (s *Set) Add(sample sampling.Sample, reachable bool) error {
	if err := sampling.CheckSample(s.space, sample); err != nil {
		return err
	}
	s.samples = append(s.samples, sample.Clone())
	s.reachable = append(s.reachable, reachable)
	if reachable {
		s.numReachable++
	}
	return nil
}

// Len returns the number of stored samples.
func (s *Set) Len() int {
	return len(s.samples)
}

// NumReachable returns the number of reachable samples.
func (s *Set) NumReachable() int {
	return s.numReachable
}

// NumUnreachable returns the number of unreachable samples.
func (s *Set) NumUnreachable() int {
	return len(s.samples) - s.numReachable
}

// At returns the i-th sample and its label. The returned sample must not be
// modified.
func (s *Set) At(i int) (sampling.Sample, bool) {
	return s.samples[i], s.reachable[i]
}

// Bounds returns the elementwise minimum and maximum over all samples.
func (s *Set) Bounds() (sampling.Sample, sampling.Sample, error) {
	if len(s.samples) == 0 {
		return nil, nil, ErrEmptySet
	}
	dim := s.space.SampleDim()
	min := s.samples[0].Clone()
	max := s.samples[0].Clone()
	for _, sample := range s.samples[1:] {
		for j := 0; j < dim; j++ {
			if sample[j] < min[j] {
				min[j] = sample[j]
			}
			if sample[j] > max[j] {
				max[j] = sample[j]
			}
		}
	}
	return min, max, nil
}

// Ordered returns the samples and labels with reachable samples first and
// unreachable samples last, each group in insertion order. This is the
// training and persistence convention (positive class first).
func (s *Set) Ordered() ([]sampling.Sample, []bool) {
	samples := make([]sampling.Sample, 0, len(s.samples))
	labels := make([]bool, 0, len(s.samples))
	for i, sample := range s.samples {
		if s.reachable[i] {
			samples = append(samples, sample)
			labels = append(labels, true)
		}
	}
	for i, sample := range s.samples {
		if !s.reachable[i] {
			samples = append(samples, sample)
			labels = append(labels, false)
		}
	}
	return samples, labels
}

type setJSON struct {
	Version        int         `json:"version"`
	Space          string      `json:"space"`
	Samples        [][]float64 `json:"samples"`
	Reachabilities []bool      `json:"reachabilities"`
}

const formatVersion = 1

// Save writes the set to a JSON file, samples in the Ordered convention.
func (s *Set) Save(path string) error {
	samples, labels := s.Ordered()
	out := setJSON{
		Version:        formatVersion,
		Space:          s.space.Kind().String(),
		Samples:        make([][]float64, 0, len(samples)),
		Reachabilities: labels,
	}
	for _, sample := range samples {
		out.Samples = append(out.Samples, sample)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a set from a JSON file, validating space and dimensions.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in setJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrapf(err, "parsing sample set %s", path)
	}
	kind, err := sampling.KindFromString(in.Space)
	if err != nil {
		return nil, err
	}
	if len(in.Samples) != len(in.Reachabilities) {
		return nil, errors.Errorf(
			"sample set %s has %d samples but %d labels", path, len(in.Samples), len(in.Reachabilities))
	}
	set, err := NewSet(kind)
	if err != nil {
		return nil, err
	}
	for i, sample := range in.Samples {
		if err := set.Add(sampling.Sample(sample), in.Reachabilities[i]); err != nil {
			return nil, errors.Wrapf(err, "sample %d of %s", i, path)
		}
	}
	return set, nil
}
