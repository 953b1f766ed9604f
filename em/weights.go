package em

// calcWeights builds the per-composite-ec weight vectors: for a
// composite equivalence class e = {t_1,...,t_m}, w[e][j] = 1/L*[t_j].
// Singleton classes are skipped: their weight is never
// consulted, since the EM seeds their next-α directly from the
// observation count.
//
// ecTranscripts resolves an ec id to its sorted transcript list; ecIDs
// is the set of ec ids that appear in the observation vector
// (composite ids considered; singletons filtered by
// the caller needn't be excluded here, since a singleton's ec id
// equals its transcript id and is skipped below).
func calcWeights(ecIDs []int32, numTrans int, ecTranscripts func(int32) []int32, effLens []float64) map[int32][]float64 {
	weights := make(map[int32][]float64, len(ecIDs))
	for _, ec := range ecIDs {
		tids := ecTranscripts(ec)
		if len(tids) <= 1 {
			continue
		}
		w := make([]float64, len(tids))
		for j, t := range tids {
			w[j] = 1.0 / effLens[t]
		}
		weights[ec] = w
	}
	return weights
}
