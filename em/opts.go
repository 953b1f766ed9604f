package em

import "math"

// Opts configures an Estimator's Run, mirroring the subset of
// ProgramOptions the EM step of kallisto-style quantification consumes.
type Opts struct {
	// NIter bounds the number of EM iterations.
	NIter int
	// MinRounds is the minimum number of iterations before convergence
	// may be declared and before effective-length refresh kicks in.
	MinRounds int
	// LongRead selects the long-read effective-length model instead of the fragment-length-distribution model.
	LongRead bool
	// RecomputeEffLen enables the periodic effective-length/weight
	// refresh.
	RecomputeEffLen bool
}

// DefaultOpts returns the default iteration bounds.
func DefaultOpts() Opts {
	return Opts{
		NIter:           10000,
		MinRounds:       50,
		RecomputeEffLen: true,
	}
}

const (
	alphaLimit       = 1e-7
	alphaChangeLimit = 1e-2
	alphaChange      = 1e-2
)

// tolerance is the smallest positive denormal float64, used to guard
// against division by (near-)zero in the EM denominator and in ρ.
var tolerance = math.SmallestNonzeroFloat64
