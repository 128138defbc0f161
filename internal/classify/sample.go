// Package classify bins continuous raster and tabular values (population,
// GDP, exposure) into choropleth classes. The default hybrid method trades
// the quadratic cost of exact natural-breaks optimization for a log-space
// quantile partition that is visually equivalent on power-law data.
package classify

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// Sample is an immutable, sorted multiset of strictly positive finite
// values. It is built once per country/raster clip, consumed by one
// classification call, and discarded.
type Sample struct {
	values []float64 // ascending
}

// NewSample filters the input to strictly positive finite values and sorts
// them. Zeros, negatives, NaN and infinities are invalid pixels and are
// dropped. Returns ErrEmptySample when nothing survives the filter.
func NewSample(values []float64) (*Sample, error) {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		// v > 0 rejects NaN as well.
		if v > 0 && !math.IsInf(v, 1) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return nil, eris.Wrap(ErrEmptySample, "no positive finite values after filtering")
	}
	sort.Float64s(clean)
	return &Sample{values: clean}, nil
}

// FromGrid flattens a 2-D array into a Sample.
func FromGrid(rows [][]float64) (*Sample, error) {
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	flat := make([]float64, 0, n)
	for _, r := range rows {
		flat = append(flat, r...)
	}
	return NewSample(flat)
}

// Len reports the number of retained values.
func (s *Sample) Len() int { return len(s.values) }

// Min returns the smallest retained value.
func (s *Sample) Min() float64 { return s.values[0] }

// Max returns the largest retained value.
func (s *Sample) Max() float64 { return s.values[len(s.values)-1] }

// Values returns a copy of the sorted values.
func (s *Sample) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Quantile returns the empirical quantile at probability p in [0, 1].
func (s *Sample) Quantile(p float64) float64 {
	return stat.Quantile(p, stat.Empirical, s.values, nil)
}
