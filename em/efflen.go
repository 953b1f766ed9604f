package em

// calcEffLensShort implements the short-read effective-length model:
// each target's effective length is its raw length minus the
// fragment-length distribution's conditional mean for that target, plus
// one, floored at 1 base.
func calcEffLensShort(targetLens []int32, flMeans []float64) []float64 {
	out := make([]float64, len(targetLens))
	for i, l := range targetLens {
		eff := float64(l) - flMeans[i] + 1
		if eff < 1 {
			eff = 1
		}
		out[i] = eff
	}
	return out
}

// postBiasBins is the size of the sequence position-bias correction
// table (4096 positions, defaulting to uniform 1.0, i.e. no correction).
const postBiasBins = 4096

func newUniformPostBias() []float64 {
	bias := make([]float64, postBiasBins)
	for i := range bias {
		bias[i] = 1.0
	}
	return bias
}

// meanPostBias summarizes a position-bias table into a single
// multiplicative correction. With the default uniform table this is
// exactly 1.0, leaving effective lengths unchanged; a non-uniform table
// (not produced by this implementation, but accepted if supplied)
// nudges the recomputed lengths by its average.
func meanPostBias(bias []float64) float64 {
	if len(bias) == 0 {
		return 1.0
	}
	var sum float64
	for _, b := range bias {
		sum += b
	}
	return sum / float64(len(bias))
}

// updateEffLens rebuilds effective lengths mid-EM (short-read branch):
// it recomputes from the fragment-length means exactly as the initial
// build did, additionally folding in the sequence-bias correction.
// alpha is accepted (a bias model may depend on the current abundance
// estimate) but, with the only implemented bias model being the
// uniform default, does not otherwise change the result: a
// position-resolved bias model would reweight per-target lengths by
// where under alpha's implied coverage the target is most probably
// sequenced, which this implementation does not model.
func updateEffLens(targetLens []int32, flMeans []float64, alpha []float64, postBias []float64) []float64 {
	out := calcEffLensShort(targetLens, flMeans)
	bias := meanPostBias(postBias)
	if bias == 1.0 {
		return out
	}
	for i := range out {
		out[i] *= bias
	}
	return out
}

// calcEffLensLongRead implements the long-read effective-length model:
// for target i, flensLRC[i] is the number of reads that mapped to i
// uniquely and flensLR[i] is the sum of their lengths.
func calcEffLensLongRead(targetLens []int32, flensLR, flensLRC []float64) []float64 {
	out := make([]float64, len(targetLens))
	for i, l := range targetLens {
		n := flensLRC[i]
		if n < 1e-6 {
			out[i] = 31
			continue
		}
		s := flensLR[i]
		delta := float64(l) - (s-31*n)/n
		if delta < 0 {
			delta = -delta
		}
		eff := float64(l) - delta
		if eff > 1.0 {
			eff = 31
		}
		out[i] = eff
	}
	return out
}
