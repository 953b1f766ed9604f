package index_test

import (
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/kallisto/index"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func buildSmallIndex(t *testing.T, dir string) *index.Index {
	ctx := vcontext.Background()
	idx, err := index.Build(ctx, index.BuildOpts{
		Index:      filepath.Join(dir, "idx"),
		TransFasta: writeTestFasta(t, dir),
		K:          12,
	})
	assert.NoError(t, err)
	return idx
}

func TestMatchReturnsHitsAlongARead(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	idx := buildSmallIndex(t, dir)

	// A read drawn verbatim from tx3, which shares no k-mer with
	// anything else, should resolve every hit to tx3's singleton ec.
	read := "GGCATTAGCCATGGTAACCTGGATCCAGGTTACCAA"
	hits := idx.Match(read)
	assert.True(t, len(hits) > 0)
	for _, h := range hits {
		expect.EQ(t, idx.ECTranscripts(h.EC), []int32{2})
	}
}

func TestMatchOnNonoverlappingReadIsEmpty(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	idx := buildSmallIndex(t, dir)

	hits := idx.Match("TTTTTTTTTTTTTTTTTTTTTTTTT")
	expect.EQ(t, len(hits), 0)
}

func TestMapPairRejectsUnknownEC(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	idx := buildSmallIndex(t, dir)

	got := idx.MapPair("GGCATTAGCCATGGTAACCTGGA", "TTGGTAACCTGGATCCAGGTTAC", 999999)
	expect.EQ(t, got, -1)
}
