package chimera

import (
	"github.com/grailbio/base/log"
)

// Stats counts events of one pipeline run. Each stage fills in the fields it
// owns; the command line tool prints the total at the end of the run.
type Stats struct {
	// Records is the # of alignment records read by the clusterer.
	Records int
	// Loci is the # of overlapping windows found by the clusterer.
	Loci int
	// Clusters is the # of cluster rows written.
	Clusters int

	// Fragments is the # of discordant fragment rows read by the nominator.
	Fragments int
	// Candidates is the # of candidates nominated.
	Candidates int

	// SpanningReads is the # of junction alignments read by the merger.
	SpanningReads int
	// SpanningAccepted is the # of junction alignments that passed the
	// anchor rules.
	SpanningAccepted int

	// CoordinateErrors counts evidence dropped because of a
	// CoordinateOutOfRangeError.
	CoordinateErrors int
	// LookupErrors counts evidence dropped because of a ReferenceLookupError.
	LookupErrors int

	// FilteredCoverage .. FilteredNotBest count candidates removed by each
	// filter. A candidate is counted only by the first filter it fails.
	FilteredCoverage      int
	FilteredInsertSize    int
	FilteredFalsePositive int
	FilteredIsoformRatio  int
	FilteredNotBest       int
	// Survivors is the # of candidates in the final output.
	Survivors int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Records += o.Records
	s.Loci += o.Loci
	s.Clusters += o.Clusters
	s.Fragments += o.Fragments
	s.Candidates += o.Candidates
	s.SpanningReads += o.SpanningReads
	s.SpanningAccepted += o.SpanningAccepted
	s.CoordinateErrors += o.CoordinateErrors
	s.LookupErrors += o.LookupErrors
	s.FilteredCoverage += o.FilteredCoverage
	s.FilteredInsertSize += o.FilteredInsertSize
	s.FilteredFalsePositive += o.FilteredFalsePositive
	s.FilteredIsoformRatio += o.FilteredIsoformRatio
	s.FilteredNotBest += o.FilteredNotBest
	s.Survivors += o.Survivors
	return s
}

// recordDrop counts a recoverable error and logs it. It returns err unchanged
// if the error is not recoverable, and nil otherwise.
func (s *Stats) recordDrop(what string, err error) error {
	if !IsRecoverable(err) {
		return err
	}
	if _, ok := err.(*CoordinateOutOfRangeError); ok {
		s.CoordinateErrors++
	} else {
		s.LookupErrors++
	}
	log.Error.Printf("dropping %s: %v", what, err)
	return nil
}
