package classify

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJenksBreaks_TwoClusters(t *testing.T) {
	// Two well-separated clusters must split between them.
	sorted := []float64{1, 2, 3, 100, 101, 102}
	b := jenksBreaks(sorted, 2)
	require.Len(t, b, 3)
	assert.Equal(t, 1.0, b[0])
	assert.Equal(t, 3.0, b[1])
	assert.Equal(t, 102.0, b[2])
}

func TestJenksBreaks_ThreeClusters(t *testing.T) {
	sorted := []float64{1, 1, 2, 50, 51, 52, 900, 901}
	b := jenksBreaks(sorted, 3)
	require.Len(t, b, 4)
	assert.Equal(t, Breaks{1, 2, 52, 901}, b)
}

func TestJenksBreaks_FewerDistinctThanClasses(t *testing.T) {
	b := jenksBreaks([]float64{2, 2, 5, 5}, 4)
	assert.Equal(t, Breaks{2, 5}, b)
}

func TestJenksBreaks_SingleValue(t *testing.T) {
	b := jenksBreaks([]float64{3, 3, 3}, 2)
	assert.Equal(t, Breaks{3, 3}, b)
}

func TestStrideSample_Deterministic(t *testing.T) {
	vals := make([]float64, 1000)
	for i := range vals {
		vals[i] = float64(i)
	}
	a := strideSample(vals, 100)
	b := strideSample(vals, 100)
	require.Len(t, a, 100)
	assert.Equal(t, a, b)
	assert.Equal(t, 0.0, a[0])
	assert.Equal(t, 999.0, a[99])
}

func TestStrideSample_SmallInputUntouched(t *testing.T) {
	vals := []float64{1, 2, 3}
	assert.Equal(t, vals, strideSample(vals, 10))
}

func TestSampledExact_MatchesHybridOnLogNormal(t *testing.T) {
	// The hybrid approximation should land near the exact optimum for
	// log-normal data: compare total within-class variance.
	r := rand.New(rand.NewSource(9))
	vals := make([]float64, 4000)
	for i := range vals {
		vals[i] = math.Exp(5 + r.NormFloat64())
	}
	s := mustSample(t, vals)

	exact, err := Compute(s, 5, MethodSampledExact)
	require.NoError(t, err)
	hybrid, err := Compute(s, 5, MethodHybrid)
	require.NoError(t, err)

	exactSSE := withinClassSSE(s.Values(), exact)
	hybridSSE := withinClassSSE(s.Values(), hybrid)
	require.Greater(t, exactSSE, 0.0)
	assert.Less(t, hybridSSE/exactSSE, 10.0, "hybrid should stay within an order of magnitude of the exact optimum")
}

func withinClassSSE(sorted []float64, b Breaks) float64 {
	sums := make([]float64, b.Classes())
	sqs := make([]float64, b.Classes())
	counts := make([]float64, b.Classes())
	for _, v := range sorted {
		i := b.Bin(v)
		sums[i] += v
		sqs[i] += v * v
		counts[i]++
	}
	var total float64
	for i := range sums {
		if counts[i] == 0 {
			continue
		}
		total += sqs[i] - sums[i]*sums[i]/counts[i]
	}
	return total
}
