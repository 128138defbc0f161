package classify

import "math"

// sampledExact approximates optimal natural breaks on large inputs by
// running the Fisher-Jenks dynamic program on a deterministic stride
// subsample of the sorted values. The subsample is uniform across the
// sorted order, so the value distribution is preserved and the result is
// reproducible without a seed. Exists as a slow correctness baseline the
// approximate methods are validated against.
func (c *Classifier) sampledExact(s *Sample, k int) Breaks {
	max := c.MaxExactSample
	if max <= 0 {
		max = DefaultMaxExactSample
	}
	return jenksBreaks(strideSample(s.values, max), k)
}

// strideSample picks m values uniformly across the sorted input, always
// including the first and last elements.
func strideSample(sorted []float64, m int) []float64 {
	n := len(sorted)
	if n <= m {
		return sorted
	}
	out := make([]float64, m)
	step := float64(n-1) / float64(m-1)
	for i := range out {
		out[i] = sorted[int(math.Round(float64(i)*step))]
	}
	return out
}

// jenksBreaks runs the classic dynamic program minimizing total within-class
// variance over sorted values. O(k*n^2) time, O(k*n) space. When there are
// fewer distinct values than classes the result collapses to the distinct
// values, shrinking the effective class count.
func jenksBreaks(sorted []float64, k int) Breaks {
	n := len(sorted)
	if n == 0 {
		return nil
	}
	uniq := countDistinct(sorted)
	if uniq <= k {
		return distinctBreaks(sorted)
	}

	// Prefix sums for O(1) SSE of any contiguous run.
	sum := make([]float64, n+1)
	sqsum := make([]float64, n+1)
	for i, v := range sorted {
		sum[i+1] = sum[i] + v
		sqsum[i+1] = sqsum[i] + v*v
	}
	sse := func(i, j int) float64 { // values sorted[i..j] inclusive
		cnt := float64(j - i + 1)
		s := sum[j+1] - sum[i]
		return (sqsum[j+1] - sqsum[i]) - s*s/cnt
	}

	// cost[j] = best total SSE for sorted[0..j] split into the current
	// number of classes; split[m][j] = start index of the last class.
	cost := make([]float64, n)
	prev := make([]float64, n)
	split := make([][]int32, k)
	for m := range split {
		split[m] = make([]int32, n)
	}
	for j := 0; j < n; j++ {
		prev[j] = sse(0, j)
	}

	for m := 1; m < k; m++ {
		for j := n - 1; j >= m; j-- {
			best := math.Inf(1)
			var bestI int32
			for i := m; i <= j; i++ {
				c := prev[i-1] + sse(i, j)
				if c < best {
					best = c
					bestI = int32(i)
				}
			}
			cost[j] = best
			split[m][j] = bestI
		}
		copy(prev, cost)
	}

	// Backtrack class boundaries. Breaks are the class maxima plus the
	// global minimum, matching the conventional Jenks output.
	b := make(Breaks, k+1)
	b[0] = sorted[0]
	b[k] = sorted[n-1]
	j := n - 1
	for m := k - 1; m >= 1; m-- {
		i := int(split[m][j])
		b[m] = sorted[i-1]
		j = i - 1
	}
	return b
}

func countDistinct(sorted []float64) int {
	if len(sorted) == 0 {
		return 0
	}
	n := 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			n++
		}
	}
	return n
}

// distinctBreaks builds one class per distinct value.
func distinctBreaks(sorted []float64) Breaks {
	b := Breaks{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			b = append(b, sorted[i])
		}
	}
	if len(b) == 1 {
		b = append(b, b[0])
	}
	return b
}
