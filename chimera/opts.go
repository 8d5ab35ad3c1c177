package chimera

// Opts holds the tunables of all the pipeline stages.
type Opts struct {
	// MaxGap is the largest distance between two alignments of the same
	// (strand, orientation) bucket that still puts them in one cluster.
	MaxGap int

	// ExonJunctionTrim is the distance in bases within which a breakpoint is
	// pulled flush to the neighboring exon boundary. It absorbs alignment
	// noise at the read ends.
	ExonJunctionTrim int

	// AnchorMin is the minimum number of bases a spanning read must align on
	// each side of the junction.
	AnchorMin int
	// AnchorMax is the anchor length below which the mismatch limit applies.
	AnchorMax int
	// AnchorMismatches is the number of mismatches allowed within an anchor
	// shorter than AnchorMax.
	AnchorMismatches int

	// MinWeightedUniqueFrags is the coverage threshold of the first filter.
	// Multimapped fragments count fractionally.
	MinWeightedUniqueFrags float64
	// MaxInsertSize drops candidates whose 5' or 3' inner distance exceeds
	// it. Values <= 0 disable the filter.
	MaxInsertSize int
	// MedianInsertSize is the half-width of the window around the 5'
	// breakpoint in which wild-type fragments are counted.
	MedianInsertSize int
	// IsoformFraction is the minimum ratio of chimeric to wild-type
	// fragments.
	IsoformFraction float64
	// FetchRefPrefix is prepended to a transcript name to form the reference
	// name in the wild-type alignment file.
	FetchRefPrefix string
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	MaxGap:                 0,       // -max-gap
	ExonJunctionTrim:       10,      // -exon-junction-trim
	AnchorMin:              0,       // -anchor-min
	AnchorMax:              5,       // -anchor-max
	AnchorMismatches:       0,       // -anchor-mismatches
	MinWeightedUniqueFrags: 3.0,     // -unique-frags
	MaxInsertSize:          1000000, // -max-isize
	MedianInsertSize:       200,     // -median-isize, or the median of -isize-stats
	IsoformFraction:        0.10,    // -isoform-fraction
	FetchRefPrefix:         "",      // -ref-prefix
}
