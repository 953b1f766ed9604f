package index

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestRegistrySingletonsReserveIDs(t *testing.T) {
	r := newECRegistry(5)
	expect.EQ(t, r.size(), 5)
	for tid := 0; tid < 5; tid++ {
		expect.EQ(t, r.intern([]int32{int32(tid)}), int32(tid))
		expect.EQ(t, r.lookup(int32(tid)), []int32{int32(tid)})
	}
}

func TestRegistryInternIsIdempotent(t *testing.T) {
	r := newECRegistry(3)
	id1 := r.intern([]int32{0, 2})
	id2 := r.intern([]int32{0, 2})
	expect.EQ(t, id1, id2)
	expect.True(t, id1 >= 3) // composite ids start after the singletons.
	expect.EQ(t, r.size(), 4)
}

func TestRegistryDistinctCompositesGetDistinctIDs(t *testing.T) {
	r := newECRegistry(4)
	idA := r.intern([]int32{0, 1})
	idB := r.intern([]int32{1, 2, 3})
	expect.True(t, idA != idB)
	expect.EQ(t, r.lookup(idA), []int32{0, 1})
	expect.EQ(t, r.lookup(idB), []int32{1, 2, 3})
}

func TestRegistryInternAtPreservesID(t *testing.T) {
	r := newECRegistry(2)
	r.internAt(7, []int32{0, 1})
	expect.EQ(t, r.lookup(7), []int32{0, 1})
	// A later intern() of the same class must find the pre-seeded id,
	// not allocate a fresh one.
	expect.EQ(t, r.intern([]int32{0, 1}), int32(7))
}

func TestRegistryLookupUnknownIsNil(t *testing.T) {
	r := newECRegistry(2)
	expect.EQ(t, len(r.lookup(99)), 0)
	expect.EQ(t, len(r.lookup(-1)), 0)
}

func TestRegistryIntersect(t *testing.T) {
	r := newECRegistry(6)
	id := r.intern([]int32{1, 2, 3, 4})
	got := r.intersect(id, []int32{2, 4, 5})
	expect.EQ(t, got, []int32{2, 4})
}

func TestSortUniqueTids(t *testing.T) {
	got := sortUniqueTids([]int32{3, 1, 2, 1, 3})
	expect.EQ(t, got, []int32{1, 2, 3})
}

func TestEcHashStable(t *testing.T) {
	// intern sorts its input implicitly only at the caller; ecHash itself
	// must agree on a list regardless of how many times it's requested.
	a := ecHash([]int32{1, 2, 3})
	b := ecHash([]int32{1, 2, 3})
	expect.EQ(t, a, b)
}
