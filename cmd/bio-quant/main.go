// bio-quant builds a k-mer pseudo-alignment index over a reference
// transcriptome and quantifies transcript abundance from FASTQ reads
// against it.
//
// Usage:
//
//	bio-quant index -transcript transcripts.fa -index idx -k 31
//	bio-quant quant -index idx -o out.tsv -r1 r1.fastq -r2 r2.fastq
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/kallisto/em"
	"github.com/grailbio/kallisto/encoding/fastq"
	"github.com/grailbio/kallisto/index"
)

func usage() {
	fmt.Fprintf(os.Stderr, `bio-quant builds and queries a transcript pseudo-alignment index.

Usage:
  bio-quant index -transcript <fasta> -index <path> [-k <int>]
  bio-quant quant  -index <path> -o <tsv> -r1 <fastq> [-r2 <fastq>] [-long-read]

`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	cleanup := grail.Init()
	defer cleanup()

	if len(os.Args) < 2 {
		usage()
	}
	sub, rest := os.Args[1], os.Args[2:]
	ctx := vcontext.Background()

	switch sub {
	case "index":
		runIndex(ctx, rest)
	case "quant":
		runQuant(ctx, rest)
	case "downsample":
		runDownsample(ctx, rest)
	default:
		usage()
	}
}

func runIndex(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	transFasta := fs.String("transcript", "", "reference transcriptome FASTA")
	idxPath := fs.String("index", "", "output index path")
	k := fs.Int("k", 31, "k-mer length")
	if err := fs.Parse(args); err != nil {
		log.Fatal(err)
	}
	if *transFasta == "" || *idxPath == "" {
		log.Fatal("-transcript and -index are required")
	}

	idx, err := index.Build(ctx, index.BuildOpts{
		Index:      *idxPath,
		TransFasta: *transFasta,
		K:          *k,
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := idx.Write(ctx, *idxPath); err != nil {
		log.Fatal(err)
	}
	log.Printf("[index] %s transcripts, %s k-mers, %s equivalence classes",
		formatCount(idx.NumTrans), formatCount(len(idx.KmerMap)), formatCount(idx.NumEC()))
}

func runQuant(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("quant", flag.ExitOnError)
	idxPath := fs.String("index", "", "index path (as produced by 'bio-quant index')")
	outPath := fs.String("o", "", "output abundance TSV path")
	r1Path := fs.String("r1", "", "FASTQ file of R1 (or single-end) reads")
	r2Path := fs.String("r2", "", "FASTQ file of R2 reads, for paired-end input")
	longRead := fs.Bool("long-read", false, "use the long-read effective-length model")
	if err := fs.Parse(args); err != nil {
		log.Fatal(err)
	}
	if *idxPath == "" || *outPath == "" || *r1Path == "" {
		log.Fatal("-index, -o, and -r1 are required")
	}

	idx, err := index.Load(ctx, index.LoadOpts{Index: *idxPath})
	if err != nil {
		log.Fatal(err)
	}

	var counts map[int32]uint32
	var flMeans []float64
	if *r2Path != "" {
		counts, flMeans, err = collectPaired(idx, *r1Path, *r2Path)
	} else {
		counts, flMeans, err = collectSingle(idx, *r1Path)
	}
	if err != nil {
		log.Fatal(err)
	}

	opts := em.DefaultOpts()
	opts.LongRead = *longRead
	estimator := em.NewEstimator(idx, counts, flMeans, nil, nil, opts)
	rounds := estimator.Run()
	log.Printf("[quant] EM ran for %s rounds", formatCount(rounds))
	estimator.ComputeRho()

	if err := estimator.WriteTSV(ctx, *outPath); err != nil {
		log.Fatal(err)
	}
}

// runDownsample subsamples a paired FASTQ input, useful for shrinking a
// run down to a quick-turnaround size before quant (see
// encoding/fastq.Downsample/DownsampleToCount).
func runDownsample(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("downsample", flag.ExitOnError)
	r1Path := fs.String("r1", "", "input FASTQ R1 path")
	r2Path := fs.String("r2", "", "input FASTQ R2 path")
	out1Path := fs.String("o1", "", "output FASTQ R1 path")
	out2Path := fs.String("o2", "", "output FASTQ R2 path")
	rate := fs.Float64("rate", 0, "sampling rate in [0,1]; mutually exclusive with -count")
	count := fs.Int64("count", 0, "approximate number of pairs to keep; mutually exclusive with -rate")
	if err := fs.Parse(args); err != nil {
		log.Fatal(err)
	}
	if *r1Path == "" || *r2Path == "" || *out1Path == "" || *out2Path == "" {
		log.Fatal("-r1, -r2, -o1, -o2 are required")
	}

	out1, err := os.Create(*out1Path)
	if err != nil {
		log.Fatal(err)
	}
	defer out1.Close()
	out2, err := os.Create(*out2Path)
	if err != nil {
		log.Fatal(err)
	}
	defer out2.Close()

	switch {
	case *count > 0:
		err = fastq.DownsampleToCount(ctx, *count, *r1Path, *r2Path, out1, out2)
	case *rate > 0:
		err = fastq.Downsample(ctx, *rate, *r1Path, *r2Path, out1, out2)
	default:
		log.Fatal("one of -rate or -count must be set")
	}
	if err != nil {
		log.Fatal(err)
	}
}

// collectSingle pseudo-aligns every read in path against idx, folding
// each read's compatible transcript set into an equivalence-class
// count (see index.Index.Match/Intersect/InternEC).
func collectSingle(idx *index.Index, path string) (counts map[int32]uint32, flMeans []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	counts = make(map[int32]uint32)
	scanner := fastq.NewScanner(f, fastq.Seq)
	var r fastq.Read
	for scanner.Scan(&r) {
		if ec, ok := classify(idx, r.Seq); ok {
			counts[ec]++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return counts, uniformFlMeans(idx.NumTrans), nil
}

func collectPaired(idx *index.Index, r1Path, r2Path string) (counts map[int32]uint32, flMeans []float64, err error) {
	f1, err := os.Open(r1Path)
	if err != nil {
		return nil, nil, err
	}
	defer f1.Close()
	f2, err := os.Open(r2Path)
	if err != nil {
		return nil, nil, err
	}
	defer f2.Close()

	counts = make(map[int32]uint32)
	scanner := fastq.NewPairScanner(f1, f2, fastq.Seq)
	var r1, r2 fastq.Read
	for scanner.Scan(&r1, &r2) {
		ec, ok := classifyPair(idx, r1.Seq, r2.Seq)
		if ok {
			counts[ec]++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return counts, uniformFlMeans(idx.NumTrans), nil
}

// classify pseudo-aligns a single read, returning the ec id implied by
// the intersection of all its hits' transcript sets.
func classify(idx *index.Index, seq string) (int32, bool) {
	tids := intersectHits(idx, seq, nil)
	if len(tids) == 0 {
		return 0, false
	}
	return idx.InternEC(tids), true
}

func classifyPair(idx *index.Index, seq1, seq2 string) (int32, bool) {
	tids := intersectHits(idx, seq1, nil)
	if len(tids) == 0 {
		return 0, false
	}
	tids = intersectHits(idx, seq2, tids)
	if len(tids) == 0 {
		return 0, false
	}
	return idx.InternEC(tids), true
}

func intersectHits(idx *index.Index, seq string, running []int32) []int32 {
	hits := idx.Match(seq)
	seen := make(map[int32]bool, len(hits))
	for _, h := range hits {
		if seen[h.EC] {
			continue
		}
		seen[h.EC] = true
		if running == nil {
			running = append([]int32(nil), idx.ECTranscripts(h.EC)...)
		} else {
			running = idx.Intersect(h.EC, running)
		}
		if len(running) == 0 {
			return nil
		}
	}
	return running
}

// uniformFlMeans is a placeholder fragment-length-distribution
// estimate (a full empirical fit requires a dedicated collector pass
// this CLI does not implement): a constant mean equal to zero leaves
// effective length equal to raw transcript length, plus one base.
func uniformFlMeans(numTrans int) []float64 {
	return make([]float64, numTrans)
}

func formatCount(n int) string {
	s := fmt.Sprintf("%d", n)
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
