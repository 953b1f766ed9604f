package index

// Hit records a single pseudo-alignment: the equivalence class and
// read position of a matched k-mer.
type Hit struct {
	EC  int32
	Pos int
}

// Match pseudo-aligns read against the index, returning one Hit per
// consulted k-mer that was present in the map, in scan order
//. It uses the skip-ahead walk, falling back to an
// exhaustive safe scan if the walk detects an equivalence-class
// inconsistency partway through.
func (idx *Index) Match(read string) []Hit {
	hits, backOff := idx.skipWalk(read)
	if backOff {
		return idx.safeScan(read)
	}
	return hits
}

// skipWalk performs the jump-ahead scan: once a k-mer's fdist/bdist
// indicates the remainder of its contig shares its equivalence class,
// the walk skips straight to the contig boundary instead of consulting
// every intervening k-mer.
func (idx *Index) skipWalk(read string) (hits []Hit, backOff bool) {
	kz := newKmerizer(read, idx.K)
	nextPos := 0
	jump := false
	var lastEc int32

	for {
		pos, fwd, _, ok := kz.Scan()
		if !ok {
			break
		}
		if pos < nextPos {
			continue
		}
		nextPos = pos + 1

		rep := fwd.Rep()
		e, found := idx.KmerMap[rep]
		if !found {
			continue
		}

		if jump && lastEc != e.EC {
			return nil, true
		}
		jump = false

		hits = append(hits, Hit{EC: e.EC, Pos: pos})

		forward := fwd == rep
		if forward {
			if e.FDist > 0 {
				nextPos = pos + int(e.FDist)
				jump = true
				lastEc = e.EC
			}
		} else if e.BDist > 0 {
			nextPos = pos + int(e.BDist)
			jump = true
			lastEc = e.EC
		}
	}
	return hits, false
}

// safeScan consults the map once per skip-sized block of k-mer
// positions, never jumping ahead on the strength of a
// skip-ahead distance; used after skipWalk aborts.
func (idx *Index) safeScan(read string) []Hit {
	var hits []Hit
	kz := newKmerizer(read, idx.K)
	block := defaultSkipBlock
	i := 0
	for {
		pos, fwd, _, ok := kz.Scan()
		if !ok {
			break
		}
		if i%block == 0 {
			if e, found := idx.KmerMap[fwd.Rep()]; found {
				hits = append(hits, Hit{EC: e.EC, Pos: pos})
			}
		}
		i++
	}
	return hits
}

// MapPair computes the fragment length implied by a pair of mates
// known to come from equivalence class ec: it anchors
// each mate's first map-present k-mer to a transcript coordinate among
// ec's member transcripts, then returns the absolute difference between
// the two anchors. It returns -1 if either mate fails to anchor, or if
// both anchor on the same strand (a genuine pair straddles the
// fragment from opposite strands).
func (idx *Index) MapPair(mate1, mate2 string, ec int32) int {
	allowed := idx.ec.lookup(ec)
	if len(allowed) == 0 {
		return -1
	}
	allowedSet := make(map[int32]bool, len(allowed))
	for _, t := range allowed {
		allowedSet[t] = true
	}

	p1, fwd1, ok1 := idx.anchorMate(mate1, allowedSet)
	if !ok1 {
		return -1
	}
	p2, fwd2, ok2 := idx.anchorMate(mate2, allowedSet)
	if !ok2 {
		return -1
	}
	if fwd1 == fwd2 {
		return -1
	}
	if p1 > p2 {
		return p1 - p2
	}
	return p2 - p1
}

// anchorMate scans read for its first k-mer present in the map (the
// iterator advances on both hit and miss, so a read with no present
// k-mer terminates the scan rather than looping forever), then locates
// that k-mer's occurrence among allowed's transcripts, in either
// orientation, returning the implied transcript coordinate of read's
// start and whether the match was on the forward strand.
func (idx *Index) anchorMate(read string, allowed map[int32]bool) (coord int, forwardStrand, ok bool) {
	k := idx.K
	kz := newKmerizer(read, k)
	for {
		pos, fwd, _, scanned := kz.Scan()
		if !scanned {
			return 0, false, false
		}
		if _, found := idx.KmerMap[fwd.Rep()]; !found {
			continue
		}

		literal := read[pos : pos+k]
		if tp, found := idx.locateAmong(literal, allowed); found {
			return tp - pos, true, true
		}
		twinStr := fwd.Twin().String()
		if tp, found := idx.locateAmong(twinStr, allowed); found {
			return tp + k + pos, false, true
		}
		return 0, false, false
	}
}

// locateAmong returns the transcript-local offset of the first
// occurrence of s within a transcript in allowed.
func (idx *Index) locateAmong(s string, allowed map[int32]bool) (int, bool) {
	offsets := idx.sufIdx.Lookup([]byte(s), -1)
	for _, off := range offsets {
		tid, tPos := idx.sufIdx.tidAt(off)
		if allowed[int32(tid)] {
			return tPos, true
		}
	}
	return 0, false
}
