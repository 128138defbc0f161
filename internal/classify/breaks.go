package classify

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// Breaks is an ordered set of class boundaries: len(b)-1 half-open bins
// [b[i], b[i+1]), with the final bin closed on the right. The first boundary
// is <= the sample minimum and the last is >= the sample maximum.
type Breaks []float64

// Classes reports the number of bins the break set defines.
func (b Breaks) Classes() int {
	if len(b) < 2 {
		return 0
	}
	return len(b) - 1
}

// Bin returns the class index for v. Values below the first boundary map to
// bin 0 and values above the last boundary map to the final bin, so callers
// can classify a full raster against breaks computed from its positive cells.
func (b Breaks) Bin(v float64) int {
	if len(b) < 2 {
		return 0
	}
	// First boundary strictly greater than v; the bin is the one before it.
	idx := sort.SearchFloat64s(b, v)
	if idx < len(b) && b[idx] == v {
		idx++
	}
	bin := idx - 1
	if bin < 0 {
		return 0
	}
	if bin > len(b)-2 {
		return len(b) - 2
	}
	return bin
}

// Validate checks monotonicity. The engine never hands out breaks that fail
// this; it exists for records read back from the store.
func (b Breaks) Validate() error {
	if len(b) < 2 {
		return eris.Wrapf(ErrInvalidInput, "break set has %d boundaries", len(b))
	}
	for i := 1; i < len(b); i++ {
		if b[i] < b[i-1] {
			return eris.Wrapf(ErrInvalidInput, "breaks not monotonic at index %d", i)
		}
	}
	return nil
}

// dedupe merges adjacent boundaries that are equal within rel relative
// tolerance, reducing the effective class count. Merging is never an error.
func dedupe(b Breaks, rel float64) Breaks {
	if len(b) == 0 {
		return b
	}
	out := b[:1]
	for _, v := range b[1:] {
		last := out[len(out)-1]
		if almostEqual(last, v, rel) {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 1 {
		// Zero-width break set: keep the degenerate [v, v] form.
		out = append(out, out[0])
	}
	return out
}

func almostEqual(a, b, rel float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= rel*scale
}
