package index

import (
	"encoding/binary"
	"sort"

	farm "github.com/dgryski/go-farm"
)

// ecRegistry is the bidirectional mapping between a sorted, deduplicated
// list of transcript ids (an equivalence class) and a dense integer id.
//
// Singleton classes {tid} are assigned id==tid by construction (so ids
// [0,numTrans) are reserved for singletons); composite classes are
// assigned ids numTrans, numTrans+1, ... in order of first use. This
// mirrors KmerIndex.cpp's ecmap/ecmapinv pair, generalized into one type.
//
// byKey buckets candidates under a farm hash of the tid list, the same
// hash-then-bucket idiom fusion/kmer_index.go uses to shard its k-mer
// map; a handful of entries sharing one farm hash is resolved by a
// direct slice comparison rather than trusting the hash alone.
type ecRegistry struct {
	numTrans int
	byID     [][]int32         // ec id -> sorted tid list.
	byKey    map[uint64][]int32 // farm hash of a tid list -> its ec ids, bucketed.
}

func newECRegistry(numTrans int) *ecRegistry {
	r := &ecRegistry{
		numTrans: numTrans,
		byID:     make([][]int32, numTrans, numTrans*2),
		byKey:    make(map[uint64][]int32, numTrans*2),
	}
	for tid := 0; tid < numTrans; tid++ {
		single := []int32{int32(tid)}
		r.byID[tid] = single
		h := ecHash(single)
		r.byKey[h] = append(r.byKey[h], int32(tid))
	}
	return r
}

// ecHash farm-hashes a sorted tid list's little-endian byte encoding into
// a bucket key for byKey.
func ecHash(tids []int32) uint64 {
	buf := make([]byte, 4*len(tids))
	for i, t := range tids {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(t))
	}
	return farm.Hash64(buf)
}

func tidsEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// findInBucket returns the id of tids among the candidate ids sharing
// its farm hash, or false if none of them actually matches.
func (r *ecRegistry) findInBucket(h uint64, tids []int32) (int32, bool) {
	for _, id := range r.byKey[h] {
		if tidsEqual(r.byID[id], tids) {
			return id, true
		}
	}
	return 0, false
}

// intern returns the id for the equivalence class tids (which must be
// sorted and free of duplicates), allocating a new composite id if this
// exact class has not been seen before.
func (r *ecRegistry) intern(tids []int32) int32 {
	if len(tids) == 1 {
		return tids[0]
	}
	h := ecHash(tids)
	if id, ok := r.findInBucket(h, tids); ok {
		return id
	}
	id := int32(len(r.byID))
	cp := append([]int32(nil), tids...)
	r.byID = append(r.byID, cp)
	r.byKey[h] = append(r.byKey[h], id)
	return id
}

// internAt records tids as equivalence class id directly, without
// allocating; used when reconstructing a registry from a serialized
// index, where composite ec ids are already assigned and must be
// preserved exactly for round-trip equality.
func (r *ecRegistry) internAt(id int32, tids []int32) {
	for int32(len(r.byID)) <= id {
		r.byID = append(r.byID, nil)
	}
	r.byID[id] = tids
	h := ecHash(tids)
	r.byKey[h] = append(r.byKey[h], id)
}

// lookup returns the sorted tid list for ec id, or nil if unknown.
func (r *ecRegistry) lookup(id int32) []int32 {
	if id < 0 || int(id) >= len(r.byID) {
		return nil
	}
	return r.byID[id]
}

// size returns the number of distinct equivalence classes registered
// (including the numTrans singletons).
func (r *ecRegistry) size() int {
	return len(r.byID)
}

// intersect returns the sorted intersection of ec id's tid list and v (v
// must be sorted). Returns an empty (non-nil) slice if ec is unknown or the
// intersection is empty: a miss here is a normal outcome, not an error.
func (r *ecRegistry) intersect(id int32, v []int32) []int32 {
	u := r.lookup(id)
	res := make([]int32, 0, minInt(len(u), len(v)))
	a, b := 0, 0
	for a < len(u) && b < len(v) {
		switch {
		case u[a] < v[b]:
			a++
		case v[b] < u[a]:
			b++
		default:
			res = append(res, u[a])
			a++
			b++
		}
	}
	return res
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// sortUniqueTids sorts tids in place and returns the deduplicated prefix.
func sortUniqueTids(tids []int32) []int32 {
	sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })
	if len(tids) == 0 {
		return tids
	}
	n := 1
	for i := 1; i < len(tids); i++ {
		if tids[i] != tids[n-1] {
			tids[n] = tids[i]
			n++
		}
	}
	return tids[:n]
}
