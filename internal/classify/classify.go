package classify

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// Defaults for the engine. Tolerance is the relative tolerance under which
// two computed boundaries are considered equal and merged.
const (
	DefaultTolerance      = 1e-9
	DefaultMaxExactSample = 10_000
)

// Classifier computes class breaks. The zero value is not ready; use New.
type Classifier struct {
	// Tolerance is the relative tolerance for merging equal boundaries.
	Tolerance float64
	// MaxExactSample caps the subsample handed to the sampled-exact
	// dynamic program, which is O(k*n^2).
	MaxExactSample int
}

// New returns a Classifier with default settings.
func New() *Classifier {
	return &Classifier{
		Tolerance:      DefaultTolerance,
		MaxExactSample: DefaultMaxExactSample,
	}
}

// Compute dispatches to the selected method using default settings.
func Compute(s *Sample, classes int, method Method) (Breaks, error) {
	return New().Compute(s, classes, method)
}

// Compute returns class breaks for the sample. Every method yields strictly
// increasing boundaries spanning [min, max]; boundaries that collide within
// Tolerance are merged, shrinking the effective class count. A zero-variance
// sample collapses to the degenerate single-class set {v, v} for all methods
// (documented policy; see ErrDegenerateSample for the one exception).
func (c *Classifier) Compute(s *Sample, classes int, method Method) (Breaks, error) {
	if s == nil || s.Len() == 0 {
		return nil, eris.Wrap(ErrEmptySample, "compute")
	}
	if classes < 1 {
		return nil, eris.Wrapf(ErrInvalidInput, "classes must be >= 1, got %d", classes)
	}
	if s.Min() == s.Max() {
		return Breaks{s.Min(), s.Max()}, nil
	}

	var b Breaks
	switch method {
	case MethodQuantile:
		b = quantileBreaks(s, classes)
	case MethodHybrid, "":
		b = hybridBreaks(s, classes)
	case MethodGeometric:
		gb, err := GeometricBreaks(s.Min(), s.Max(), classes)
		if err != nil {
			return nil, err
		}
		b = gb
	case MethodPercentile:
		return c.PercentileBreaks(s, hotspotPercentiles(classes))
	case MethodSampledExact:
		b = c.sampledExact(s, classes)
	default:
		return nil, eris.Wrapf(ErrInvalidInput, "unknown method %q", method)
	}

	return dedupe(b, c.tolerance()), nil
}

// PercentileBreaks computes breaks at caller-supplied percentile points in
// [0, 100]. Points must be strictly ascending and include enough spread to
// cover the sample; the first and last boundaries are clamped to min and max.
func (c *Classifier) PercentileBreaks(s *Sample, points []float64) (Breaks, error) {
	if s == nil || s.Len() == 0 {
		return nil, eris.Wrap(ErrEmptySample, "percentile breaks")
	}
	if len(points) < 2 {
		return nil, eris.Wrapf(ErrInvalidInput, "need at least 2 percentile points, got %d", len(points))
	}
	for i, p := range points {
		if p < 0 || p > 100 {
			return nil, eris.Wrapf(ErrInvalidInput, "percentile point %g out of [0, 100]", p)
		}
		if i > 0 && p <= points[i-1] {
			return nil, eris.Wrapf(ErrInvalidInput, "percentile points not ascending at index %d", i)
		}
	}
	if s.Min() == s.Max() {
		return Breaks{s.Min(), s.Max()}, nil
	}

	b := make(Breaks, len(points))
	for i, p := range points {
		b[i] = s.Quantile(p / 100)
	}
	b[0] = s.Min()
	b[len(b)-1] = s.Max()
	return dedupe(b, c.tolerance()), nil
}

// GeometricBreaks returns k+1 boundaries in constant-ratio progression
// between min and max: b_i = min * (max/min)^(i/k). Requires min > 0 and
// k >= 1 (ErrInvalidInput); returns ErrDegenerateSample when min == max,
// where no ratio exists.
func GeometricBreaks(min, max float64, k int) (Breaks, error) {
	if k < 1 {
		return nil, eris.Wrapf(ErrInvalidInput, "geometric: classes must be >= 1, got %d", k)
	}
	if min <= 0 {
		return nil, eris.Wrapf(ErrInvalidInput, "geometric: min must be positive, got %g", min)
	}
	if max < min {
		return nil, eris.Wrapf(ErrInvalidInput, "geometric: max %g < min %g", max, min)
	}
	if min == max {
		return nil, eris.Wrapf(ErrDegenerateSample, "geometric: min == max == %g", min)
	}

	r := math.Pow(max/min, 1/float64(k))
	b := make(Breaks, k+1)
	b[0] = min
	for i := 1; i < k; i++ {
		b[i] = b[i-1] * r
	}
	b[k] = max
	return b, nil
}

// quantileBreaks places boundaries at evenly spaced empirical quantiles.
// Heavy ties at percentile boundaries later merge in dedupe, reducing the
// effective class count.
func quantileBreaks(s *Sample, k int) Breaks {
	b := make(Breaks, k+1)
	for i := 0; i <= k; i++ {
		b[i] = s.Quantile(float64(i) / float64(k))
	}
	b[0] = s.Min()
	b[k] = s.Max()
	return b
}

// hybridBreaks computes evenly spaced quantiles of log10(v+1) and inverts
// them via 10^q - 1. Quantile positions are invariant under the monotone
// transform, so the already-sorted sample is reused directly.
func hybridBreaks(s *Sample, k int) Breaks {
	logged := make([]float64, s.Len())
	for i, v := range s.values {
		logged[i] = math.Log10(v + 1)
	}
	b := make(Breaks, k+1)
	for i := 0; i <= k; i++ {
		q := quantileSorted(logged, float64(i)/float64(k))
		b[i] = math.Pow(10, q) - 1
	}
	b[0] = s.Min()
	b[k] = s.Max()
	return b
}

// hotspotPercentiles is the default point set for MethodPercentile when
// dispatched without explicit points: p_i = 100*(1-(1-i/k)^2), which
// concentrates boundaries in the upper tail to foreground outliers. For
// k=5 the points are 0, 36, 64, 84, 96, 100.
func hotspotPercentiles(k int) []float64 {
	points := make([]float64, k+1)
	for i := 0; i <= k; i++ {
		f := 1 - float64(i)/float64(k)
		points[i] = 100 * (1 - f*f)
	}
	return points
}

func quantileSorted(sorted []float64, p float64) float64 {
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

func (c *Classifier) tolerance() float64 {
	if c.Tolerance > 0 {
		return c.Tolerance
	}
	return DefaultTolerance
}
