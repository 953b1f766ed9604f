package index

// computeSkipAhead fills in the fdist/bdist fields of every k-mer in
// kmerMap: for each k-mer whose distances are still
// unset, it builds the maximal unambiguous contig containing it and
// records, for every member of that contig, the distance (in k-mers) to
// the contig's forward/backward boundary.
func computeSkipAhead(kmerMap map[Kmer]KmerEntry, k int) {
	for x, entry := range kmerMap {
		if entry.FDist != noDist {
			continue // already resolved as part of an earlier contig.
		}
		ec := entry.EC
		twin := x.Twin()

		flist, selfLoop := walkChain(kmerMap, x, x, twin, ec, k, true)
		var blist []Kmer
		if !selfLoop {
			blist, _ = walkChain(kmerMap, twin, twin, x, ec, k, false)
		}

		klist := make([]Kmer, 0, len(blist)+len(flist))
		for i := len(blist) - 1; i >= 0; i-- {
			klist = append(klist, blist[i].Twin())
		}
		klist = append(klist, flist...)

		n := len(klist)
		for i, y := range klist {
			yr := y.Rep()
			e, ok := kmerMap[yr]
			if !ok {
				// Invariant violation: every k-mer on the contig must be in
				// the map, since walkChain only follows map membership.
				panic("index: skip-ahead contig references unknown k-mer")
			}
			if y == yr { // forward orientation.
				e.FDist = int32(n - 1 - i)
				e.BDist = int32(i)
			} else {
				e.FDist = int32(i)
				e.BDist = int32(n - 1 - i)
			}
			kmerMap[yr] = e
		}
	}
}

var dnaBases = [4]byte{'A', 'C', 'G', 'T'}

// fwStep attempts to extend end by one base within kmer entries sharing
// equivalence class ec: it requires exactly one forward extension
// present in the map with the same ec, and that from that extension
// exactly one backward extension lands back in the map.
func fwStep(kmerMap map[Kmer]KmerEntry, end Kmer, ec int32, k int) (Kmer, bool) {
	j := -1
	fwCount := 0
	for i, b := range dnaBases {
		fw, err := end.ForwardBase(b)
		if err != nil {
			continue
		}
		e, ok := kmerMap[fw.Rep()]
		if !ok {
			continue
		}
		if e.EC != ec {
			return 0, false
		}
		j = i
		fwCount++
		if fwCount > 1 {
			return 0, false
		}
	}
	if fwCount != 1 {
		return 0, false
	}

	fw, _ := end.ForwardBase(dnaBases[j])

	bwCount := 0
	for _, b := range dnaBases {
		bw, err := fw.BackwardBase(b)
		if err != nil {
			continue
		}
		if _, ok := kmerMap[bw.Rep()]; ok {
			bwCount++
			if bwCount > 1 {
				return 0, false
			}
		}
	}
	if bwCount != 1 {
		return 0, false
	}
	if fw == end {
		return 0, false
	}
	return fw, true
}

// walkChain repeatedly applies fwStep starting from start, stopping on
// self-loop (next==selfVal), Möbius loop (next==mobiusVal), hairpin
// (next==last.Twin(), discarded without being appended), or fwStep
// failure. If includeStart, start itself is the first chain element.
func walkChain(kmerMap map[Kmer]KmerEntry, start, selfVal, mobiusVal Kmer, ec int32, k int, includeStart bool) (chain []Kmer, selfLoop bool) {
	if includeStart {
		chain = append(chain, start)
	}
	end := start
	last := start
	for {
		next, ok := fwStep(kmerMap, end, ec, k)
		if !ok {
			break
		}
		if next == selfVal {
			selfLoop = true
			break
		}
		if next == mobiusVal {
			selfLoop = true
			break
		}
		if next == last.Twin() {
			break
		}
		chain = append(chain, next)
		last = next
		end = next
	}
	return chain, selfLoop
}
