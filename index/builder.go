package index

import (
	"context"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/kallisto/encoding/fasta"
)

// Build constructs an Index from a reference transcriptome FASTA
//: it reads every transcript, computes its canonical
// k-mers, compresses the per-k-mer transcript-occurrence sets into
// equivalence classes, purges the poly-A contaminant k-mer and its
// Hamming-distance-1 neighbors, and finally computes skip-ahead
// distances over the resulting map.
func Build(ctx context.Context, opts BuildOpts) (*Index, error) {
	if err := SetK(opts.K); err != nil {
		return nil, err
	}
	k := opts.K

	in, err := file.Open(ctx, opts.TransFasta)
	if err != nil {
		return nil, errors.E(err, "opening transcriptome fasta", opts.TransFasta)
	}
	defer func() { _ = in.Close(ctx) }()

	fa, err := fasta.New(in.Reader(ctx), fasta.OptClean)
	if err != nil {
		return nil, errors.E(err, "parsing transcriptome fasta", opts.TransFasta)
	}

	names := fa.SeqNames()
	numTrans := len(names)
	if numTrans == 0 {
		return nil, errors.Errorf("index: %s contains no sequences", opts.TransFasta)
	}

	seqs := make([]string, numTrans)
	lens := make([]int32, numTrans)
	for i, name := range names {
		n, err := fa.Len(name)
		if err != nil {
			return nil, errors.E(err, "reading length of", name)
		}
		s, err := fa.Get(name, 0, n)
		if err != nil {
			return nil, errors.E(err, "reading sequence", name)
		}
		seqs[i] = s
		lens[i] = int32(n)
	}
	log.Printf("[build] Loaded %s transcripts", formatCount(numTrans))

	concat, bounds := buildConcat(seqs)
	sufIdx, err := loadOrBuildSuffixIndex(ctx, concat, bounds, opts.Index+".sa")
	if err != nil {
		return nil, err
	}

	ec := newECRegistry(numTrans)
	kmerMap := make(map[Kmer]KmerEntry)

	for _, seq := range seqs {
		kz := newKmerizer(seq, k)
		for {
			pos, fwd, _, ok := kz.Scan()
			if !ok {
				break
			}
			rep := fwd.Rep()
			if _, seen := kmerMap[rep]; seen {
				continue
			}
			literal := seq[pos : pos+k]
			fwdTids := sufIdx.occurringTranscripts([]byte(literal))
			twinTids := sufIdx.occurringTranscripts([]byte(fwd.Twin().String()))
			merged := sortUniqueTids(append(fwdTids, twinTids...))
			kmerMap[rep] = KmerEntry{EC: ec.intern(merged), FDist: noDist, BDist: noDist}
		}
	}
	log.Printf("[build] k-mer map has %s distinct k-mers, %s equivalence classes", formatCount(len(kmerMap)), formatCount(ec.size()))

	purgePolyA(kmerMap, k)
	computeSkipAhead(kmerMap, k)

	return &Index{
		K:          k,
		NumTrans:   numTrans,
		TransLens:  lens,
		TransNames: names,
		KmerMap:    kmerMap,
		ec:         ec,
		sufIdx:     sufIdx,
	}, nil
}

// purgePolyA deletes the all-A k-mer and every k-mer at Hamming
// distance 1 from it: these arise from poly-A
// tails and carry no useful transcript specificity.
func purgePolyA(kmerMap map[Kmer]KmerEntry, k int) {
	polyA := strings.Repeat("A", k)
	delete(kmerMap, KmerFromString(polyA).Rep())

	variant := []byte(polyA)
	for i := 0; i < k; i++ {
		orig := variant[i]
		for _, b := range dnaBases {
			if b == orig {
				continue
			}
			variant[i] = b
			delete(kmerMap, KmerFromString(string(variant)).Rep())
		}
		variant[i] = orig
	}
}
