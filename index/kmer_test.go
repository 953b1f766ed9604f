package index

import (
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func withK(t *testing.T, k int, fn func()) {
	resetKForTesting()
	assert.NoError(t, SetK(k))
	defer resetKForTesting()
	fn()
}

func TestSetKConflict(t *testing.T) {
	resetKForTesting()
	defer resetKForTesting()
	assert.NoError(t, SetK(21))
	assert.Error(t, SetK(31))
	assert.NoError(t, SetK(21)) // re-setting the same value is fine.
}

func TestSetKRange(t *testing.T) {
	resetKForTesting()
	defer resetKForTesting()
	assert.Error(t, SetK(0))
	assert.Error(t, SetK(MaxKmerLength+1))
}

func TestKmerRoundTrip(t *testing.T) {
	withK(t, 5, func() {
		for _, s := range []string{"ACGTA", "TTTTT", "GCGCG", "AAAAA"} {
			x := KmerFromString(s)
			expect.False(t, x == InvalidKmer)
			expect.EQ(t, x.String(), s)
		}
	})
}

func TestKmerFromStringRejectsAmbiguous(t *testing.T) {
	withK(t, 4, func() {
		expect.EQ(t, KmerFromString("ACNT"), InvalidKmer)
		expect.EQ(t, KmerFromString("ACG"), InvalidKmer) // wrong length
	})
}

func TestTwinInvolution(t *testing.T) {
	withK(t, 6, func() {
		x := KmerFromString("ACGTAC")
		expect.EQ(t, x.Twin().Twin(), x)
		expect.EQ(t, x.Twin().String(), "GTACGT")
	})
}

func TestRepIsCanonical(t *testing.T) {
	withK(t, 4, func() {
		x := KmerFromString("AAAA")
		y := x.Twin() // TTTT
		expect.EQ(t, x.Rep(), y.Rep())
		expect.True(t, x.Rep().IsRep())
		expect.True(t, y.Rep().IsRep())
	})
}

func TestForwardBackwardBaseInverse(t *testing.T) {
	withK(t, 5, func() {
		x := KmerFromString("ACGTA")
		fw, err := x.ForwardBase('C')
		assert.NoError(t, err)
		expect.EQ(t, fw.String(), "CGTAC")

		bw, err := fw.BackwardBase('A')
		assert.NoError(t, err)
		expect.EQ(t, bw.String(), x.String())
	})
}

func TestForwardBaseRejectsInvalidBase(t *testing.T) {
	withK(t, 4, func() {
		x := KmerFromString("ACGT")
		_, err := x.ForwardBase('N')
		assert.Error(t, err)
	})
}

func TestKmerizerScanSkipsAmbiguousWindows(t *testing.T) {
	withK(t, 3, func() {
		kz := newKmerizer("ACGNTACG", 3)
		var positions []int
		for {
			pos, fwd, twin, ok := kz.Scan()
			if !ok {
				break
			}
			expect.EQ(t, fwd.Twin(), twin)
			positions = append(positions, pos)
		}
		// Windows spanning the N (pos 1..3) are dropped; only windows
		// entirely within "ACG" (pos 0) and "TACG" (pos 4 "TAC", pos 5
		// "ACG") survive.
		expect.EQ(t, positions, []int{0, 4, 5})
	})
}

func TestKmerizerMatchesKmerFromString(t *testing.T) {
	withK(t, 4, func() {
		seq := "ACGTACGTAC"
		kz := newKmerizer(seq, 4)
		for {
			pos, fwd, _, ok := kz.Scan()
			if !ok {
				break
			}
			want := KmerFromString(seq[pos : pos+4])
			expect.EQ(t, fwd, want)
		}
	})
}
