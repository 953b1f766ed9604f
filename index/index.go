package index

// noDist is the sentinel FDist/BDist value meaning "skip-ahead distances
// not yet computed for this k-mer".
const noDist = int32(-1)

// KmerEntry is the value side of the k-mer map: the
// equivalence class a k-mer belongs to, plus the forward/backward
// skip-ahead distances computed over the unambiguous contig containing
// it.
type KmerEntry struct {
	EC    int32
	FDist int32
	BDist int32
}

// Index is the full in-memory pseudo-alignment structure built by Build
// or reconstituted by Load: the k-mer map, the equivalence-class
// registry, and the transcript metadata needed to report results in
// terms of transcript ids and names.
type Index struct {
	K          int
	NumTrans   int
	TransLens  []int32
	TransNames []string

	KmerMap map[Kmer]KmerEntry
	ec      *ecRegistry

	// sufIdx anchors single k-mers back to transcript coordinates for
	// fragment-length computation in MapPair; nil if Load could
	// not reload the .fa/.sa companions.
	sufIdx *suffixIndex
}

// NumEC returns the number of distinct equivalence classes registered,
// including the NumTrans singleton classes.
func (idx *Index) NumEC() int {
	return idx.ec.size()
}

// ECTranscripts returns the sorted transcript ids belonging to
// equivalence class ec, or nil if ec is unknown.
func (idx *Index) ECTranscripts(ec int32) []int32 {
	return idx.ec.lookup(ec)
}

// Intersect returns the sorted intersection of ec's transcript list
// with v (v must be sorted and deduplicated).
func (idx *Index) Intersect(ec int32, v []int32) []int32 {
	return idx.ec.intersect(ec, v)
}

// InternEC interns a sorted, deduplicated transcript id list as an
// equivalence class, allocating a new composite id if necessary. It is
// used by read classification to register the ec implied by a read's
// or pair's intersected hit set.
func (idx *Index) InternEC(tids []int32) int32 {
	return idx.ec.intern(tids)
}
