// Package em implements the expectation-maximization abundance
// estimator: given equivalence-class counts and an effective length
// per transcript, it redistributes ambiguous-read counts over the
// transcripts they could have come from until the per-transcript
// abundance vector stabilizes.
package em

import (
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/kallisto/index"
)

// Estimator holds the abundance vector and everything needed to refine
// it across iterations. It borrows (rather than owns) the index's
// per-ec transcript lists and per-transcript metadata, since many
// estimators (e.g. a warm-started rerun) can share one read-only index.
type Estimator struct {
	numTrans      int
	ecTranscripts func(ec int32) []int32
	targetLens    []int32
	targetNames   []string

	counts map[int32]uint32
	ecIDs  []int32 // ec ids present in counts, sorted for determinism.

	allFlMeans        []float64
	flensLR, flensLRC []float64
	postBias          []float64

	effLens   []float64
	weightMap map[int32][]float64

	alpha             []float64
	alphaNext         []float64
	alphaBeforeZeroes []float64
	rho               []float64
	rhoSet            bool

	opts Opts
}

// NewEstimator builds an Estimator over idx's transcripts, seeded with
// a uniform abundance vector. counts maps an equivalence-class id to
// its observed read count; allFlMeans is used in short-read mode,
// flensLR/flensLRC in long-read mode.
func NewEstimator(idx *index.Index, counts map[int32]uint32, allFlMeans, flensLR, flensLRC []float64, opts Opts) *Estimator {
	numTrans := idx.NumTrans
	targetLens := idx.TransLens
	targetNames := idx.TransNames

	ecIDs := make([]int32, 0, len(counts))
	for ec := range counts {
		ecIDs = append(ecIDs, ec)
	}
	sort.Slice(ecIDs, func(i, j int) bool { return ecIDs[i] < ecIDs[j] })

	var effLens []float64
	if opts.LongRead {
		effLens = calcEffLensLongRead(targetLens, flensLR, flensLRC)
	} else {
		effLens = calcEffLensShort(targetLens, allFlMeans)
	}

	alpha := make([]float64, numTrans)
	uniform := 1.0 / float64(numTrans)
	for i := range alpha {
		alpha[i] = uniform
	}

	e := &Estimator{
		numTrans:      numTrans,
		ecTranscripts: idx.ECTranscripts,
		targetLens:    targetLens,
		targetNames:   targetNames,
		counts:        counts,
		ecIDs:         ecIDs,
		allFlMeans:    allFlMeans,
		flensLR:       flensLR,
		flensLRC:      flensLRC,
		postBias:      newUniformPostBias(),
		effLens:       effLens,
		alpha:         alpha,
		alphaNext:     make([]float64, numTrans),
		rho:           make([]float64, numTrans),
		opts:          opts,
	}
	e.weightMap = calcWeights(e.ecIDs, numTrans, idx.ECTranscripts, effLens)
	return e
}

// Run executes the EM loop and returns the loop counter at exit: NIter
// if the iteration bound was reached, otherwise the index of the final
// (post-threshold) round, which is one less than the number of rounds
// run.
func (e *Estimator) Run() int {
	finalRound := false
	i := 0
	for ; i < e.opts.NIter; i++ {
		if e.opts.RecomputeEffLen && !e.opts.LongRead && (i == e.opts.MinRounds || i == e.opts.MinRounds+500) {
			e.effLens = updateEffLens(e.targetLens, e.allFlMeans, e.alpha, e.postBias)
			e.weightMap = calcWeights(e.ecIDs, e.numTrans, e.ecTranscripts, e.effLens)
		}
		if e.opts.RecomputeEffLen && e.opts.LongRead && e.opts.MinRounds > 0 && (i == e.opts.MinRounds || i%e.opts.MinRounds == 0) {
			e.weightMap = calcWeights(e.ecIDs, e.numTrans, e.ecTranscripts, e.effLens)
		}

		for _, ec := range e.ecIDs {
			tids := e.ecTranscripts(ec)
			if len(tids) == 1 {
				e.alphaNext[tids[0]] = float64(e.counts[ec])
			}
		}

		for _, ec := range e.ecIDs {
			tids := e.ecTranscripts(ec)
			if len(tids) <= 1 {
				continue
			}
			c := e.counts[ec]
			if c == 0 {
				continue
			}
			w := e.weightMap[ec]
			denom := 0.0
			for j, t := range tids {
				denom += e.alpha[t] * w[j]
			}
			if denom < tolerance {
				continue
			}
			factor := float64(c) / denom
			for j, t := range tids {
				e.alphaNext[t] += e.alpha[t] * w[j] * factor
			}
		}

		chcount := 0
		for t := 0; t < e.numTrans; t++ {
			if e.alphaNext[t] > alphaChangeLimit {
				diff := e.alphaNext[t] - e.alpha[t]
				if diff < 0 {
					diff = -diff
				}
				if diff/e.alphaNext[t] > alphaChange {
					chcount++
				}
			}
			e.alpha[t] = e.alphaNext[t]
			e.alphaNext[t] = 0
		}

		stopEM := chcount == 0 && i > e.opts.MinRounds

		if finalRound {
			break
		}
		if stopEM {
			finalRound = true
			e.alphaBeforeZeroes = append([]float64(nil), e.alpha...)
			for t := 0; t < e.numTrans; t++ {
				if e.alpha[t] < alphaLimit/10.0 {
					e.alpha[t] = 0
				}
			}
		}
	}

	if i == e.opts.NIter {
		e.alphaBeforeZeroes = append([]float64(nil), e.alpha...)
	}
	return i
}

// Alpha returns the current abundance vector (est_counts in the
// output TSV).
func (e *Estimator) Alpha() []float64 { return e.alpha }

// ComputeRho fills in the relative-abundance vector ρ: ρ[t] = (α[t]/L*[t]) / Σ(...), renormalized to sum to 1.
// Calling it again recomputes from scratch, rather than accumulating.
func (e *Estimator) ComputeRho() {
	if e.rhoSet {
		for i := range e.rho {
			e.rho[i] = 0
		}
	}
	total := 0.0
	for i, a := range e.alpha {
		if e.effLens[i] < tolerance {
			log.Error.Printf("em: transcript %s has effective length %.6g below tolerance; skipping its rho term", e.targetNames[i], e.effLens[i])
			continue
		}
		e.rho[i] = a / e.effLens[i]
		total += e.rho[i]
	}
	for i := range e.rho {
		e.rho[i] /= total
	}
	e.rhoSet = true
}

// Rho returns the most recently computed ρ vector.
func (e *Estimator) Rho() []float64 { return e.rho }

// SetStart seeds this Estimator's α from a previous Estimator's
// pre-threshold snapshot (α°), for two-pass quantification where a
// first pass's converged result seeds a second pass over a refined
// equivalence-class assignment.
//
// This mirrors set_start in EMAlgorithm.h, including its two writes to
// alpha_: a conditional assignment (large values pass through, small
// ones are replaced by an even split of the total observed count
// across the non-large transcripts) followed unconditionally by a bulk
// copy of donor.alphaBeforeZeroes over the whole vector. The bulk copy
// is the actual final value; the conditional pass is retained because
// it is what the donor relationship is defined to do, matching the
// original's literal (if redundant) behavior.
func (e *Estimator) SetStart(donor *Estimator) {
	const big = 1.0
	sumCounts := 0.0
	for _, c := range e.counts {
		sumCounts += float64(c)
	}
	countBig := 0
	for _, x := range donor.alphaBeforeZeroes {
		if x >= big {
			countBig++
		}
	}
	n := len(e.alpha)
	for i := 0; i < n; i++ {
		if donor.alphaBeforeZeroes[i] >= big {
			e.alpha[i] = donor.alphaBeforeZeroes[i]
		} else {
			e.alpha[i] = sumCounts / float64(n-countBig)
		}
	}
	copy(e.alpha, donor.alphaBeforeZeroes)
}
