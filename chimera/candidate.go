package chimera

import (
	"fmt"
)

// Partner is one side of a chimera, in transcript offsets.
//
// For the 5' partner, End is the breakpoint: the last transcribed base
// before the junction is End-1. For the 3' partner, Start is the breakpoint.
type Partner struct {
	Tx         string
	Start, End int
	// InnerDist is the largest distance between a supporting read and the
	// breakpoint.
	InnerDist int
}

// EncompassingFrag is a read pair with one read on each partner.
type EncompassingFrag struct {
	Name string
	// NumHits is the number of equally good alignments of the fragment.
	NumHits        int
	Start5p, End5p int
	Start3p, End3p int
}

// SpanningRead is a read aligned across the junction sequence of a
// candidate. Pos and End are offsets on the junction sequence.
type SpanningRead struct {
	Name       string
	NumHits    int
	Pos, End   int
	Mismatches int
}

// Candidate is a putative chimera. The partners are fixed at nomination;
// the merge and filter stages only attach evidence and update the scores.
type Candidate struct {
	// Name identifies the candidate in the output. It does not take part in
	// any comparison.
	Name      string
	Partner5p Partner
	Partner3p Partner
	Frags     []EncompassingFrag
	Spanning  []SpanningRead

	// NumFrags is the number of encompassing fragments.
	NumFrags int
	// WeightedUniqueFrags sums 1/NumHits over fragments with distinct
	// alignment positions.
	WeightedUniqueFrags float64
	// WeightedCov sums 1/NumHits over all encompassing fragments and
	// spanning reads.
	WeightedCov float64
	// UniqueSpanningPos is the number of distinct junction offsets at which
	// spanning reads start.
	UniqueSpanningPos int
}

// BreakpointKey identifies a chimera by its exact breakpoints.
type BreakpointKey struct {
	Tx5p    string
	End5p   int
	Tx3p    string
	Start3p int
}

// Key returns the breakpoint key of c.
func (c *Candidate) Key() BreakpointKey {
	return BreakpointKey{Tx5p: c.Partner5p.Tx, End5p: c.Partner5p.End, Tx3p: c.Partner3p.Tx, Start3p: c.Partner3p.Start}
}

// candidateName forms the output name of a candidate.
func candidateName(k BreakpointKey) string {
	return fmt.Sprintf("%s:%d-%s:%d", k.Tx5p, k.End5p, k.Tx3p, k.Start3p)
}

// fragWeight is the contribution of one piece of evidence with the given
// number of alignments.
func fragWeight(numHits int) float64 {
	if numHits <= 0 {
		numHits = 1
	}
	return 1 / float64(numHits)
}

// computeFragScores recomputes NumFrags and WeightedUniqueFrags from Frags
// and returns the weighted coverage of the fragments.
func (c *Candidate) computeFragScores() float64 {
	type pos struct{ s5, e5, s3, e3 int }
	seen := make(map[pos]bool, len(c.Frags))
	c.NumFrags = len(c.Frags)
	c.WeightedUniqueFrags = 0
	cov := 0.0
	for _, f := range c.Frags {
		w := fragWeight(f.NumHits)
		cov += w
		p := pos{f.Start5p, f.End5p, f.Start3p, f.End3p}
		if !seen[p] {
			seen[p] = true
			c.WeightedUniqueFrags += w
		}
	}
	return cov
}
