package index

import (
	"bytes"
	"context"
	goSuffixArray "index/suffixarray"
	"io/ioutil"
	"os"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/minio/highwayhash"
	"golang.org/x/sys/unix"
)

// separator is inserted between concatenated transcripts so that no k-mer
// window spans two transcripts and so Lookup never reports a false
// cross-transcript match. It is not a valid base, so KmerFromString already
// rejects any window that would include it.
const separator = '\n'

// suffixIndex is the "generalized index": a suffix array over all
// reference transcripts concatenated together, used both to find
// every occurrence of a candidate k-mer while building the map (C3) and, at
// match time, to anchor a single k-mer back to a transcript coordinate for
// fragment-length computation (C6's mapPair).
type suffixIndex struct {
	concat []byte
	bounds []int // bounds[tid] = start offset of transcript tid in concat; bounds[numTrans] = len(concat).
	sa     *goSuffixArray.Index
}

func buildConcat(seqs []string) (concat []byte, bounds []int) {
	total := 0
	for _, s := range seqs {
		total += len(s) + 1
	}
	concat = make([]byte, 0, total)
	bounds = make([]int, 0, len(seqs)+1)
	for _, s := range seqs {
		bounds = append(bounds, len(concat))
		concat = append(concat, s...)
		concat = append(concat, separator)
	}
	bounds = append(bounds, len(concat))
	return concat, bounds
}

// tidAt maps a byte offset in concat back to (transcript id, offset within
// that transcript). An offset on a separator maps to the transcript that
// separator terminates, at a position equal to that transcript's length;
// this never happens for a genuine k-mer occurrence (k-mers never span the
// separator since it is not a valid base).
func (si *suffixIndex) tidAt(offset int) (tid, posInTranscript int) {
	// bounds[:len(bounds)-1] holds the numTrans start offsets, in order.
	n := len(si.bounds) - 1
	tid = sort.Search(n, func(i int) bool { return si.bounds[i+1] > offset })
	return tid, offset - si.bounds[tid]
}

// transcriptSeq returns the stored sequence of transcript tid, with the
// trailing separator stripped.
func (si *suffixIndex) transcriptSeq(tid int) string {
	return string(si.concat[si.bounds[tid] : si.bounds[tid+1]-1])
}

// Lookup returns up to n occurrences of s in the concatenated transcriptome
// (n<0 means "all"), mirroring TFinder's find() loop in KmerIndex.cpp.
func (si *suffixIndex) Lookup(s []byte, n int) []int {
	return si.sa.Lookup(s, n)
}

// occurringTranscripts returns the sorted, deduplicated set of transcript
// ids in which s occurs at least once.
func (si *suffixIndex) occurringTranscripts(s []byte) []int32 {
	offsets := si.sa.Lookup(s, -1)
	if len(offsets) == 0 {
		return nil
	}
	tids := make([]int32, 0, len(offsets))
	for _, off := range offsets {
		tid, _ := si.tidAt(off)
		tids = append(tids, int32(tid))
	}
	return sortUniqueTids(tids)
}

// checksumKey is a fixed, non-secret key: the checksum below guards against
// accidental truncation/corruption of the .sa companion file, not against a
// malicious adversary, so a well-known key is fine (highwayhash requires a
// 32-byte key).
var checksumKey = make([]byte, 32)

const checksumSize = 8

// loadOrBuildSuffixIndex acquires a suffix-array-backed generalized
// index: load the sibling .sa file if one is present and passes its
// checksum, else build from scratch and persist it for next time.
func loadOrBuildSuffixIndex(ctx context.Context, concat []byte, bounds []int, saPath string) (*suffixIndex, error) {
	if data, ok := tryReadChecked(saPath); ok {
		sa := new(goSuffixArray.Index)
		if err := sa.Read(bytes.NewReader(data)); err == nil {
			log.Printf("[build] Found suffix array %s", saPath)
			return &suffixIndex{concat: concat, bounds: bounds, sa: sa}, nil
		}
		log.Error.Printf("suffix array %s failed to parse, rebuilding", saPath)
	}

	log.Printf("[build] Constructing suffix array ...")
	sa := goSuffixArray.New(concat)
	if err := persistSuffixArray(sa, saPath); err != nil {
		return nil, errors.E(err, "writing suffix array", saPath)
	}
	log.Printf("[build] ... finished constructing suffix array")
	return &suffixIndex{concat: concat, bounds: bounds, sa: sa}, nil
}

// mmapThreshold is the file size above which tryReadChecked maps the
// .sa file read-only instead of copying it onto the heap. Below it, a
// plain read avoids the fixed cost of a mmap/munmap syscall pair.
const mmapThreshold = 64 << 20

func tryReadChecked(path string) ([]byte, bool) {
	fi, statErr := os.Stat(path)
	if statErr != nil {
		return nil, false
	}

	var raw []byte
	if fi.Size() >= mmapThreshold {
		data, closer, err := mmapFile(path)
		if err != nil {
			return nil, false
		}
		// tryReadChecked returns a heap copy of the body below, so it
		// is safe to unmap once tryReadChecked returns.
		defer closer()
		raw = data
	} else {
		var err error
		raw, err = ioutil.ReadFile(path)
		if err != nil {
			return nil, false
		}
	}

	if len(raw) < checksumSize {
		return nil, false
	}
	want := raw[:checksumSize]
	body := raw[checksumSize:]
	got := sumBody(body)
	for i := 0; i < checksumSize; i++ {
		if want[i] != got[i] {
			return nil, false
		}
	}
	return append([]byte(nil), body...), true
}

func sumBody(body []byte) []byte {
	sum := highwayhash.Sum64(body, checksumKey)
	out := make([]byte, checksumSize)
	for i := 0; i < checksumSize; i++ {
		out[i] = byte(sum >> uint(8*i))
	}
	return out
}

func persistSuffixArray(sa *goSuffixArray.Index, path string) error {
	var buf bytes.Buffer
	if err := sa.Write(&buf); err != nil {
		return err
	}
	checksum := sumBody(buf.Bytes())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.E(err, "could not open suffix array file for writing")
	}
	defer f.Close()
	if _, err := f.Write(checksum); err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return err
	}
	return f.Sync()
}

// mmapFile maps path read-only; tryReadChecked uses it for .sa companions
// at or above mmapThreshold, in the spirit of the unix.Mmap/unix.Madvise
// use in fusion/kmer_index.go. The caller must call the returned closer
// when done.
func mmapFile(path string) (data []byte, closer func() error, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if fi.Size() == 0 {
		return nil, func() error { return nil }, nil
	}
	data, err = unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
