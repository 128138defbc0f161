package classify

import "github.com/rotisserie/eris"

// Method selects the break computation strategy.
type Method string

// Supported classification methods.
const (
	// MethodQuantile places breaks at evenly spaced empirical quantiles.
	MethodQuantile Method = "quantile"
	// MethodGeometric uses a constant-ratio progression between min and max.
	MethodGeometric Method = "geometric"
	// MethodHybrid computes quantiles in log10(v+1) space and inverts them.
	// Approximates natural breaks for log-normal data in O(n log n); this is
	// the default for population and GDP rasters.
	MethodHybrid Method = "hybrid"
	// MethodPercentile uses caller-supplied (or hotspot-weighted default)
	// percentile points rather than evenly spaced ones.
	MethodPercentile Method = "percentile"
	// MethodSampledExact runs the Fisher-Jenks dynamic program on a
	// deterministic stride subsample. Verification baseline, not for
	// production use on large inputs.
	MethodSampledExact Method = "sampled-exact"
)

func (m Method) String() string { return string(m) }

// ParseMethod validates a method name from config or CLI flags.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodQuantile, MethodGeometric, MethodHybrid, MethodPercentile, MethodSampledExact:
		return Method(s), nil
	case "":
		return MethodHybrid, nil
	default:
		return "", eris.Wrapf(ErrInvalidInput, "unknown method %q", s)
	}
}
