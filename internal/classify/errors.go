package classify

import "github.com/rotisserie/eris"

// Sentinel errors for the classification engine. Callers match with eris.Is
// (or errors.Is) and degrade to a placeholder rendering; none of these is
// fatal to a batch run.
var (
	// ErrEmptySample is returned when no strictly positive finite values
	// remain after filtering. Recoverable: render an empty legend.
	ErrEmptySample = eris.New("classify: empty sample")

	// ErrInvalidInput is returned on precondition violations such as a
	// non-positive class count, unordered percentile points, or a
	// non-positive minimum fed to the geometric formula.
	ErrInvalidInput = eris.New("classify: invalid input")

	// ErrDegenerateSample is returned by GeometricBreaks when min == max,
	// where no constant ratio exists. The dispatcher never returns it: a
	// zero-variance sample collapses to a single-class break set instead.
	ErrDegenerateSample = eris.New("classify: degenerate sample")
)
