package classify

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSample(t *testing.T, values []float64) *Sample {
	t.Helper()
	s, err := NewSample(values)
	require.NoError(t, err)
	return s
}

func assertValidBreaks(t *testing.T, b Breaks, s *Sample, classes int) {
	t.Helper()
	require.NoError(t, b.Validate())
	assert.LessOrEqual(t, len(b), classes+1)
	assert.LessOrEqual(t, b[0], s.Min())
	assert.GreaterOrEqual(t, b[len(b)-1], s.Max())
	for i := 1; i < len(b); i++ {
		assert.Greater(t, b[i], b[i-1], "boundaries must be strictly increasing after merge")
	}
}

func TestCompute_HybridLogSpaced(t *testing.T) {
	// Powers of ten should yield approximately log-evenly-spaced breaks.
	s := mustSample(t, []float64{1, 10, 100, 1000, 10000})
	b, err := Compute(s, 4, MethodHybrid)
	require.NoError(t, err)
	assertValidBreaks(t, b, s, 4)
	require.Len(t, b, 5)
	for i, want := range []float64{1, 10, 100, 1000, 10000} {
		assert.InEpsilon(t, want, b[i], 0.01, "break %d", i)
	}
}

func TestCompute_ConstantSampleDegenerates(t *testing.T) {
	vals := make([]float64, 1000)
	for i := range vals {
		vals[i] = 5
	}
	s := mustSample(t, vals)
	for _, m := range []Method{MethodQuantile, MethodGeometric, MethodHybrid, MethodPercentile, MethodSampledExact} {
		b, err := Compute(s, 5, m)
		require.NoError(t, err, "method %s", m)
		assert.Equal(t, Breaks{5, 5}, b, "method %s", m)
	}
}

func TestCompute_EmptySample(t *testing.T) {
	_, err := Compute(nil, 5, MethodHybrid)
	assert.True(t, eris.Is(err, ErrEmptySample))
}

func TestCompute_InvalidClassCount(t *testing.T) {
	s := mustSample(t, []float64{1, 2, 3})
	_, err := Compute(s, 0, MethodHybrid)
	assert.True(t, eris.Is(err, ErrInvalidInput))
}

func TestCompute_UnknownMethod(t *testing.T) {
	s := mustSample(t, []float64{1, 2, 3})
	_, err := Compute(s, 3, Method("banana"))
	assert.True(t, eris.Is(err, ErrInvalidInput))
}

func TestCompute_SingleValueSample(t *testing.T) {
	s := mustSample(t, []float64{42})
	b, err := Compute(s, 5, MethodHybrid)
	require.NoError(t, err)
	assert.Equal(t, Breaks{42, 42}, b)
}

func TestCompute_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	vals := make([]float64, 5000)
	for i := range vals {
		vals[i] = math.Exp(r.NormFloat64())
	}
	s := mustSample(t, vals)
	for _, m := range []Method{MethodQuantile, MethodGeometric, MethodHybrid, MethodPercentile, MethodSampledExact} {
		a, err := Compute(s, 7, m)
		require.NoError(t, err)
		b, err := Compute(s, 7, m)
		require.NoError(t, err)
		assert.Equal(t, a, b, "method %s must be deterministic", m)
	}
}

func TestCompute_AllMethodsSpanSample(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	vals := make([]float64, 2000)
	for i := range vals {
		vals[i] = 1 + r.Float64()*1e5
	}
	s := mustSample(t, vals)
	for _, m := range []Method{MethodQuantile, MethodGeometric, MethodHybrid, MethodPercentile, MethodSampledExact} {
		b, err := Compute(s, 9, m)
		require.NoError(t, err, "method %s", m)
		assertValidBreaks(t, b, s, 9)
	}
}

func TestCompute_QuantileTiesMerge(t *testing.T) {
	// Heavy ties at percentile boundaries shrink the effective class count
	// instead of erroring.
	vals := []float64{1, 1, 1, 1, 1, 1, 1, 1, 2, 3}
	s := mustSample(t, vals)
	b, err := Compute(s, 5, MethodQuantile)
	require.NoError(t, err)
	assertValidBreaks(t, b, s, 5)
	assert.Less(t, b.Classes(), 5)
}

func TestCompute_HybridDensityBalance(t *testing.T) {
	// For log-normal data the hybrid bins should hold comparable counts.
	r := rand.New(rand.NewSource(3))
	vals := make([]float64, 50_000)
	for i := range vals {
		vals[i] = math.Exp(7 + r.NormFloat64()) // +1 shift negligible at this scale
	}
	s := mustSample(t, vals)
	b, err := Compute(s, 6, MethodHybrid)
	require.NoError(t, err)
	require.Equal(t, 6, b.Classes())

	counts := make([]int, b.Classes())
	for _, v := range vals {
		counts[b.Bin(v)]++
	}
	min, max := counts[0], counts[0]
	for _, c := range counts[1:] {
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	require.Greater(t, min, 0)
	assert.Less(t, float64(max)/float64(min), 3.0, "bin counts %v too unbalanced", counts)
}

func TestCompute_HybridLargeSample(t *testing.T) {
	if testing.Short() {
		t.Skip("large sample")
	}
	r := rand.New(rand.NewSource(5))
	vals := make([]float64, 1_000_000)
	for i := range vals {
		vals[i] = 1 + r.Float64()*(1e6-1)
	}
	s := mustSample(t, vals)
	b, err := Compute(s, 9, MethodHybrid)
	require.NoError(t, err)
	assertValidBreaks(t, b, s, 9)
}

func TestCompute_HybridGrowthLoglinear(t *testing.T) {
	if testing.Short() {
		t.Skip("timing ratio")
	}
	r := rand.New(rand.NewSource(13))
	gen := func(n int) []float64 {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = 1 + r.Float64()*1e6
		}
		return vals
	}
	measure := func(vals []float64) time.Duration {
		best := time.Duration(math.MaxInt64)
		for trial := 0; trial < 3; trial++ {
			start := time.Now()
			s, err := NewSample(vals)
			require.NoError(t, err)
			_, err = Compute(s, 9, MethodHybrid)
			require.NoError(t, err)
			if d := time.Since(start); d < best {
				best = d
			}
		}
		return best
	}

	const n = 200_000
	small := measure(gen(n))
	large := measure(gen(4 * n))

	// Loglinear growth predicts a ratio near 4.5 at 4x input; quadratic
	// growth would give 16. The bound leaves headroom for scheduler noise
	// while still rejecting a quadratic path.
	ratio := float64(large) / float64(small)
	assert.Less(t, ratio, 10.0, "4x input grew runtime %.1fx", ratio)
}

func TestGeometricBreaks(t *testing.T) {
	b, err := GeometricBreaks(1, 256, 8)
	require.NoError(t, err)
	require.Len(t, b, 9)
	for i, want := range []float64{1, 2, 4, 8, 16, 32, 64, 128, 256} {
		assert.InEpsilon(t, want, b[i], 1e-9, "break %d", i)
	}
}

func TestGeometricBreaks_NonPositiveMin(t *testing.T) {
	_, err := GeometricBreaks(0, 10, 5)
	assert.True(t, eris.Is(err, ErrInvalidInput))
	_, err = GeometricBreaks(-1, 10, 5)
	assert.True(t, eris.Is(err, ErrInvalidInput))
}

func TestGeometricBreaks_Degenerate(t *testing.T) {
	_, err := GeometricBreaks(7, 7, 5)
	assert.True(t, eris.Is(err, ErrDegenerateSample))
}

func TestGeometricBreaks_MaxBelowMin(t *testing.T) {
	_, err := GeometricBreaks(10, 1, 5)
	assert.True(t, eris.Is(err, ErrInvalidInput))
}

func TestPercentileBreaks_CustomPoints(t *testing.T) {
	vals := make([]float64, 1000)
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	s := mustSample(t, vals)
	c := New()
	b, err := c.PercentileBreaks(s, []float64{0, 85, 92.5, 99, 100})
	require.NoError(t, err)
	assertValidBreaks(t, b, s, 4)
	assert.InDelta(t, 850, b[1], 2)
	assert.InDelta(t, 925, b[2], 2)
	assert.InDelta(t, 990, b[3], 2)
}

func TestHotspotPercentiles_UpperTailEmphasis(t *testing.T) {
	points := hotspotPercentiles(5)
	require.Len(t, points, 6)
	for i, want := range []float64{0, 36, 64, 84, 96, 100} {
		assert.InDelta(t, want, points[i], 1e-9, "point %d", i)
	}
	// Every interior point sits above the even grid, pulling boundaries
	// toward the upper tail.
	for i := 1; i < len(points)-1; i++ {
		assert.Greater(t, points[i], 100*float64(i)/5, "point %d", i)
	}
}

func TestCompute_PercentileDefaultFocusesUpperTail(t *testing.T) {
	vals := make([]float64, 1000)
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	s := mustSample(t, vals)
	b, err := Compute(s, 5, MethodPercentile)
	require.NoError(t, err)
	assertValidBreaks(t, b, s, 5)
	require.Len(t, b, 6)
	// Each interior boundary lands above its even-interval counterpart,
	// so the top classes are the narrow ones.
	for i := 1; i < len(b)-1; i++ {
		assert.Greater(t, b[i], float64(i)*200, "break %d", i)
	}
	assert.InDelta(t, 960, b[4], 2)
}

func TestPercentileBreaks_RejectsBadPoints(t *testing.T) {
	s := mustSample(t, []float64{1, 2, 3})
	c := New()
	_, err := c.PercentileBreaks(s, []float64{0, 101})
	assert.True(t, eris.Is(err, ErrInvalidInput))
	_, err = c.PercentileBreaks(s, []float64{50, 50, 100})
	assert.True(t, eris.Is(err, ErrInvalidInput))
	_, err = c.PercentileBreaks(s, []float64{100})
	assert.True(t, eris.Is(err, ErrInvalidInput))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("quantile")
	require.NoError(t, err)
	assert.Equal(t, MethodQuantile, m)

	m, err = ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodHybrid, m)

	_, err = ParseMethod("optimal")
	assert.True(t, eris.Is(err, ErrInvalidInput))
}

func BenchmarkComputeHybrid(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	vals := make([]float64, 1_000_000)
	for i := range vals {
		vals[i] = 1 + r.Float64()*1e6
	}
	s, err := NewSample(vals)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Compute(s, 9, MethodHybrid); err != nil {
			b.Fatal(err)
		}
	}
}
