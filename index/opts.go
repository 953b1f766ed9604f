package index

// BuildOpts configures Build. It plays the role of the subset of
// ProgramOptions the index builder consumes.
type BuildOpts struct {
	// Index is the base path the resulting index (and its .fa/.sa
	// companions) is written to/read from.
	Index string
	// TransFasta is the path to the reference transcriptome FASTA.
	TransFasta string
	// K is the k-mer length. Fatal (FormatMismatch) if it conflicts with
	// an already-set process-global k.
	K int
}

// LoadOpts configures Load.
type LoadOpts struct {
	// Index is the base path of a previously built index.
	Index string
	// SkipKmerTable, if true, loads only the equivalence-class registry
	// and transcript metadata, omitting the (large) k-mer map. Used by
	// callers that only need ec->tids lookups.
	SkipKmerTable bool
}

// defaultSkipBlock is the "skip" constant referenced by the matcher's
// backoff scan: "consult the map once per skip-sized
// block (constant configured elsewhere; default 1)".
const defaultSkipBlock = 1
