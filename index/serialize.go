package index

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/kallisto/encoding/fasta"
)

// formatVersion is the on-disk index format tag. A reader whose
// compiled-in formatVersion disagrees with the tag it reads refuses to
// proceed (FormatMismatch).
const formatVersion uint64 = 10

// Write persists idx to path: version, k, transcript count and
// lengths, the k-mer map, the equivalence-class registry, then
// transcript names. When idx has a suffix index, Write also writes the
// sibling .fa companion (path+".fa"). The companion .sa suffix array was
// already written by Build/loadOrBuildSuffixIndex; Write does not write
// it.
func (idx *Index) Write(ctx context.Context, path string) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "creating index file", path)
	}
	w := bufio.NewWriter(out.Writer(ctx))

	if err := writeScalar(w, formatVersion); err != nil {
		return errors.E(err, "writing index version")
	}
	if err := writeScalar(w, int32(idx.K)); err != nil {
		return errors.E(err, "writing k")
	}
	if err := writeScalar(w, int32(idx.NumTrans)); err != nil {
		return errors.E(err, "writing num_trans")
	}
	for _, l := range idx.TransLens {
		if err := writeScalar(w, l); err != nil {
			return errors.E(err, "writing transcript lengths")
		}
	}

	if err := writeScalar(w, uint64(len(idx.KmerMap))); err != nil {
		return errors.E(err, "writing kmap_size")
	}
	for km, e := range idx.KmerMap {
		if err := writeScalar(w, uint64(km)); err != nil {
			return errors.E(err, "writing kmer")
		}
		if err := writeScalar(w, e.EC); err != nil {
			return errors.E(err, "writing kmer entry ec")
		}
		if err := writeScalar(w, e.FDist); err != nil {
			return errors.E(err, "writing kmer entry fdist")
		}
		if err := writeScalar(w, e.BDist); err != nil {
			return errors.E(err, "writing kmer entry bdist")
		}
	}

	if err := writeScalar(w, uint64(idx.ec.size())); err != nil {
		return errors.E(err, "writing ecmap_size")
	}
	for id := 0; id < idx.ec.size(); id++ {
		tids := idx.ec.lookup(int32(id))
		if err := writeScalar(w, int32(id)); err != nil {
			return errors.E(err, "writing ec id")
		}
		if err := writeScalar(w, uint64(len(tids))); err != nil {
			return errors.E(err, "writing ec tid count")
		}
		for _, t := range tids {
			if err := writeScalar(w, t); err != nil {
				return errors.E(err, "writing ec tid")
			}
		}
	}

	for _, name := range idx.TransNames {
		if err := writeScalar(w, uint64(len(name))); err != nil {
			return errors.E(err, "writing transcript name length")
		}
		if _, err := w.WriteString(name); err != nil {
			return errors.E(err, "writing transcript name")
		}
	}

	if err := w.Flush(); err != nil {
		return errors.E(err, "flushing index file", path)
	}
	if err := out.Close(ctx); err != nil {
		return errors.E(err, "closing index file", path)
	}
	log.Printf("[index] wrote %s (%s k-mers, %s equivalence classes)", path, formatCount(len(idx.KmerMap)), formatCount(idx.ec.size()))

	if idx.sufIdx != nil {
		if err := writeFastaCompanion(ctx, idx, path+".fa"); err != nil {
			return errors.E(err, "writing fasta companion", path+".fa")
		}
	}
	return nil
}

// writeFastaCompanion persists the sibling .fa file: the transcript
// sequences that loadOrBuildSuffixIndex (and, on reload, Load) need to
// reconstruct the generalized index.
func writeFastaCompanion(ctx context.Context, idx *Index, path string) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out.Writer(ctx))
	for i, name := range idx.TransNames {
		if _, err := fmt.Fprintf(w, ">%s\n%s\n", name, idx.sufIdx.transcriptSeq(i)); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return out.Close(ctx)
}

// Load reconstitutes an Index previously written by Write. If opts.SkipKmerTable is set, the (large) k-mer map is
// read past but discarded, leaving KmerMap nil; callers that only need
// equivalence-class lookups should set this to avoid the allocation.
func Load(ctx context.Context, opts LoadOpts) (*Index, error) {
	in, err := file.Open(ctx, opts.Index)
	if err != nil {
		return nil, errors.E(err, "opening index file", opts.Index)
	}
	defer func() { _ = in.Close(ctx) }()
	r := bufio.NewReader(in.Reader(ctx))

	var version uint64
	if err := readScalar(r, &version); err != nil {
		return nil, errors.E(err, "reading index version")
	}
	if version != formatVersion {
		return nil, errors.Errorf("index: incompatible index version %d, expected %d", version, formatVersion)
	}

	var k, numTrans int32
	if err := readScalar(r, &k); err != nil {
		return nil, errors.E(err, "reading k")
	}
	if err := SetK(int(k)); err != nil {
		return nil, err
	}
	if err := readScalar(r, &numTrans); err != nil {
		return nil, errors.E(err, "reading num_trans")
	}

	lens := make([]int32, numTrans)
	for i := range lens {
		if err := readScalar(r, &lens[i]); err != nil {
			return nil, errors.E(err, "reading transcript lengths")
		}
	}

	var kmapSize uint64
	if err := readScalar(r, &kmapSize); err != nil {
		return nil, errors.E(err, "reading kmap_size")
	}
	var kmerMap map[Kmer]KmerEntry
	if opts.SkipKmerTable {
		for i := uint64(0); i < kmapSize; i++ {
			var km uint64
			var e KmerEntry
			if err := readScalar(r, &km); err != nil {
				return nil, errors.E(err, "skipping kmer")
			}
			if err := readScalar(r, &e.EC); err != nil {
				return nil, errors.E(err, "skipping kmer entry")
			}
			if err := readScalar(r, &e.FDist); err != nil {
				return nil, errors.E(err, "skipping kmer entry")
			}
			if err := readScalar(r, &e.BDist); err != nil {
				return nil, errors.E(err, "skipping kmer entry")
			}
		}
	} else {
		kmerMap = make(map[Kmer]KmerEntry, kmapSize)
		for i := uint64(0); i < kmapSize; i++ {
			var raw uint64
			var e KmerEntry
			if err := readScalar(r, &raw); err != nil {
				return nil, errors.E(err, "reading kmer")
			}
			if err := readScalar(r, &e.EC); err != nil {
				return nil, errors.E(err, "reading kmer entry ec")
			}
			if err := readScalar(r, &e.FDist); err != nil {
				return nil, errors.E(err, "reading kmer entry fdist")
			}
			if err := readScalar(r, &e.BDist); err != nil {
				return nil, errors.E(err, "reading kmer entry bdist")
			}
			kmerMap[Kmer(raw)] = e
		}
	}

	var ecmapSize uint64
	if err := readScalar(r, &ecmapSize); err != nil {
		return nil, errors.E(err, "reading ecmap_size")
	}
	ec := newECRegistry(int(numTrans))
	for i := uint64(0); i < ecmapSize; i++ {
		var id int32
		var tidCount uint64
		if err := readScalar(r, &id); err != nil {
			return nil, errors.E(err, "reading ec id")
		}
		if err := readScalar(r, &tidCount); err != nil {
			return nil, errors.E(err, "reading ec tid count")
		}
		tids := make([]int32, tidCount)
		for j := range tids {
			if err := readScalar(r, &tids[j]); err != nil {
				return nil, errors.E(err, "reading ec tid")
			}
		}
		if int(id) >= int(numTrans) {
			ec.internAt(id, tids)
		}
	}

	names := make([]string, numTrans)
	for i := range names {
		var nameLen uint64
		if err := readScalar(r, &nameLen); err != nil {
			return nil, errors.E(err, "reading transcript name length")
		}
		buf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.E(err, "reading transcript name")
		}
		names[i] = string(buf)
	}

	sufIdx, err := loadFastaCompanion(ctx, opts.Index+".fa", opts.Index+".sa", names)
	if err != nil {
		log.Error.Printf("index: could not reload fasta/suffix-array companions for %s: %v; MapPair will be unavailable", opts.Index, err)
	}

	return &Index{
		K:          int(k),
		NumTrans:   int(numTrans),
		TransLens:  lens,
		TransNames: names,
		KmerMap:    kmerMap,
		ec:         ec,
		sufIdx:     sufIdx,
	}, nil
}

// loadFastaCompanion reads the sibling .fa file in the order names
// specifies and reconstructs the suffix-array-backed generalized index
// over it, loading the sibling .sa file if present.
func loadFastaCompanion(ctx context.Context, faPath, saPath string, names []string) (*suffixIndex, error) {
	in, err := file.Open(ctx, faPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close(ctx) }()

	fa, err := fasta.New(in.Reader(ctx), fasta.OptClean)
	if err != nil {
		return nil, err
	}
	seqs := make([]string, len(names))
	for i, name := range names {
		n, err := fa.Len(name)
		if err != nil {
			return nil, err
		}
		s, err := fa.Get(name, 0, n)
		if err != nil {
			return nil, err
		}
		seqs[i] = s
	}
	concat, bounds := buildConcat(seqs)
	return loadOrBuildSuffixIndex(ctx, concat, bounds, saPath)
}

func writeScalar(w io.Writer, v interface{}) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readScalar(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.LittleEndian, v)
}
